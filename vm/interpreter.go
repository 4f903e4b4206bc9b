package vm

// ---------------------------------------------------------------------------
// The fetch-decode-execute loop
// ---------------------------------------------------------------------------

// run interprets until the frame stack shrinks to minFrames, returning the
// value produced by the frame that brought it there. Interpret calls
// run(0); dunder re-entry (callFunction) pushes the dunder's frame and calls
// run with the frame depth from before that push, so a nested call returns
// through the ordinary OpReturn path.
func (vm *VM) run(minFrames int) (result Value, err *RuntimeErr) {
	defer func() {
		if r := recover(); r != nil {
			re, ok := r.(*RuntimeErr)
			if !ok {
				panic(r)
			}
			vm.decorate(re)
			result, err = Nil, re
		}
	}()

	for {
		frame := vm.frame()
		opOffset := frame.IP
		vm.curLine = frame.chunk().Line(opOffset)
		op := Opcode(vm.readByte())
		if vm.tracer != nil {
			vm.tracer(len(vm.frames), opOffset, op)
		}

		var herr *RuntimeErr
		switch op {
		case OpConstant:
			vm.push(vm.readConstant())

		case OpNil:
			vm.push(Nil)

		case OpTrue:
			vm.push(True)

		case OpFalse:
			vm.push(False)

		case OpPop:
			vm.pop()

		case OpDup:
			vm.push(vm.peek(0))

		case OpSwap:
			top := vm.stack.Len()
			if top < 2 {
				panic(internalf("stack underflow in OpSwap"))
			}
			a, b := vm.stack.Get(top-1), vm.stack.Get(top-2)
			vm.stack.Set(top-1, b)
			vm.stack.Set(top-2, a)

		case OpDefineGlobal:
			name := vm.readName()
			vm.DefineGlobal(name, vm.peek(0))
			vm.pop()

		case OpGetGlobal:
			name := vm.readName()
			if v, ok := vm.globals[name]; ok {
				vm.push(v)
			} else {
				herr = errf(NameError, "name '%s' is not defined", name)
			}

		case OpSetGlobal:
			name := vm.readName()
			if _, ok := vm.globals[name]; ok {
				vm.globals[name] = vm.peek(0)
			} else {
				herr = errf(NameError, "name '%s' is not defined", name)
			}

		case OpGetLocal:
			slot := int(vm.readByte())
			vm.push(vm.stack.Get(frame.Base + slot))

		case OpSetLocal:
			slot := int(vm.readByte())
			vm.stack.Set(frame.Base+slot, vm.peek(0))

		case OpGetUpvalue:
			idx := int(vm.readByte())
			cell := vm.upvalueCell(frame, idx)
			vm.push(vm.upvalueGet(cell))

		case OpSetUpvalue:
			idx := int(vm.readByte())
			cell := vm.upvalueCell(frame, idx)
			vm.upvalueSet(cell, vm.peek(0))

		case OpCloseUpvalue:
			vm.closeUpvalues(vm.stack.Len() - 1)
			vm.pop()

		case OpAdd, OpSubtract, OpMultiply, OpDivide, OpModulo:
			herr = vm.binaryArith(op)

		case OpNegate:
			herr = vm.negate()

		case OpNot:
			v := vm.pop()
			vm.push(FromBool(!v.IsTruthy()))

		case OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(FromBool(Equal(a, b)))

		case OpLess, OpGreater:
			herr = vm.compare(op)

		case OpJump:
			offset := vm.readU16()
			frame.IP += offset

		case OpJumpIfFalse:
			offset := vm.readU16()
			if !vm.peek(0).IsTruthy() {
				frame.IP += offset
			}

		case OpLoop:
			offset := vm.readU16()
			frame.IP -= offset

		case OpIterNext:
			herr = vm.iterNext()

		case OpMakeFunction:
			herr = vm.makeFunction()

		case OpCall:
			argc := int(vm.readByte())
			herr = vm.callValue(argc)

		case OpReturn:
			done, ret := vm.handleReturn(minFrames)
			if done {
				return ret, nil
			}

		case OpMakeClass:
			herr = vm.makeClass()

		case OpInherit:
			herr = vm.inherit()

		case OpGetAttr:
			herr = vm.getAttr(vm.readName())

		case OpSetAttr:
			herr = vm.setAttr(vm.readName())

		case OpIndex:
			herr = vm.index()

		case OpSetIndex:
			herr = vm.setIndex()

		case OpSlice:
			herr = vm.slice()

		case OpLen:
			herr = vm.length()

		case OpAppend:
			herr = vm.appendElem()

		case OpRange:
			herr = vm.makeRange(int(vm.readByte()))

		case OpContains:
			herr = vm.contains()

		case OpMakeList:
			count := vm.readU16()
			elems := make([]Value, count)
			for i := count - 1; i >= 0; i-- {
				elems[i] = vm.pop()
			}
			vm.push(FromList(NewList(elems)))

		case OpMakeDict:
			herr = vm.makeDict(vm.readU16())

		case OpPrint:
			herr = vm.printValue("")

		case OpPrintln:
			vm.write("\n")

		case OpPrintSpaced:
			herr = vm.printValue(" ")

		default:
			herr = internalf("unknown opcode 0x%02X", byte(op))
		}

		if herr != nil {
			vm.decorate(herr)
			return Nil, herr
		}
	}
}

// decorate attaches the current source line and call trace to an error,
// unless an inner frame already did.
func (vm *VM) decorate(e *RuntimeErr) {
	if e.Line == 0 {
		e.Line = vm.curLine
	}
	if e.Trace == nil {
		e.Trace = vm.trace()
	}
}

// upvalueCell resolves the current closure's i-th cell.
func (vm *VM) upvalueCell(frame *CallFrame, idx int) *Upvalue {
	cells := frame.Closure.Upvalues
	if idx >= len(cells) {
		panic(internalf("upvalue index %d out of range (%d cells)", idx, len(cells)))
	}
	return cells[idx]
}

// makeFunction instantiates a closure from a proto constant: local captures
// take (or share) an open cell over the current frame's slot, non-local
// captures alias the enclosing closure's cell.
func (vm *VM) makeFunction() *RuntimeErr {
	c := vm.readConstant()
	if c.Kind() != KindProto {
		panic(internalf("OpMakeFunction operand is %s, not a function prototype", c.Kind()))
	}
	proto := c.Proto()
	frame := vm.frame()

	cells := make([]*Upvalue, len(proto.Upvalues))
	for i, desc := range proto.Upvalues {
		if desc.IsLocal {
			cells[i] = vm.captureUpvalue(frame.Base + int(desc.Index))
		} else {
			cells[i] = vm.upvalueCell(frame, int(desc.Index))
		}
	}
	vm.push(FromClosure(NewClosure(proto, cells)))
	return nil
}
