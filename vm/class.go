package vm

// ---------------------------------------------------------------------------
// Class and attribute handlers
// ---------------------------------------------------------------------------

// makeClass implements OpMakeClass: below the class-name string, the stack
// holds one (closure, name) pair per method, innermost definition first.
func (vm *VM) makeClass() *RuntimeErr {
	count := int(vm.readByte())

	nameV := vm.pop()
	if !nameV.IsStr() {
		panic(internalf("OpMakeClass expects a class name string, found %s", nameV.Kind()))
	}
	class := NewClass(nameV.Str())

	type method struct {
		name    string
		closure Value
	}
	methods := make([]method, count)
	for i := count - 1; i >= 0; i-- {
		mName := vm.pop()
		mClosure := vm.pop()
		if !mName.IsStr() {
			panic(internalf("OpMakeClass expects a method name string, found %s", mName.Kind()))
		}
		if mClosure.Kind() != KindClosure {
			panic(internalf("OpMakeClass expects a method closure, found %s", mClosure.Kind()))
		}
		methods[i] = method{mName.Str(), mClosure}
	}
	for _, m := range methods {
		m.closure.Closure().Owner = class
		class.AddMethod(m.name, m.closure)
	}

	vm.push(FromClass(class))
	return nil
}

// inherit implements OpInherit: [child, parent] on the stack; sets the
// parent link and leaves the child.
func (vm *VM) inherit() *RuntimeErr {
	parent := vm.pop()
	child := vm.pop()
	if parent.Kind() != KindClass {
		return errf(TypeError, "class must inherit from a class, not '%s'", parent.Kind())
	}
	if child.Kind() != KindClass {
		panic(internalf("OpInherit child is %s, not a class", child.Kind()))
	}
	child.Class().Parent = parent.Class()
	vm.push(child)
	return nil
}

// getAttr implements OpGetAttr: attribute lookup with MRO walk, bound-method
// construction, and function introspection.
func (vm *VM) getAttr(name string) *RuntimeErr {
	receiver := vm.pop()

	switch receiver.Kind() {
	case KindInstance:
		inst := receiver.Instance()
		if v, ok := inst.Field(name); ok {
			vm.push(v)
			return nil
		}
		if m, ok := inst.Class.ResolveMethod(name); ok {
			vm.push(FromBound(&BoundMethod{Receiver: receiver, Method: m}))
			return nil
		}
		return errf(AttributeError, "'%s' object has no attribute '%s'", inst.Class.Name, name)

	case KindClass:
		for cls := receiver.Class(); cls != nil; cls = cls.Parent {
			if v, ok := cls.Attr(name); ok {
				vm.push(v)
				return nil
			}
			if m, ok := cls.OwnMethod(name); ok {
				// Accessed through the class, methods come back unbound.
				vm.push(m)
				return nil
			}
		}
		return errf(AttributeError, "type object '%s' has no attribute '%s'",
			receiver.Class().Name, name)

	case KindClosure:
		return vm.closureAttr(receiver.Closure(), name)

	case KindSuper:
		proxy := receiver.Super()
		for cls := proxy.Start; cls != nil; cls = cls.Parent {
			if m, ok := cls.OwnMethod(name); ok {
				vm.push(FromBound(&BoundMethod{Receiver: proxy.Receiver, Method: m}))
				return nil
			}
		}
		return errf(AttributeError, "'super' object has no attribute '%s'", name)
	}
	return errf(AttributeError, "'%s' object has no attribute '%s'", receiver.Kind(), name)
}

// closureAttr serves the introspection attributes of function objects.
func (vm *VM) closureAttr(c *Closure, name string) *RuntimeErr {
	p := c.Proto
	switch name {
	case "__name__":
		vm.push(FromStr(p.Name))
	case "__qualname__":
		vm.push(FromStr(p.QualName))
	case "__doc__":
		if p.Doc == "" {
			vm.push(Nil)
		} else {
			vm.push(FromStr(p.Doc))
		}
	case "__module__":
		vm.push(FromStr(p.Module))
	case "__code__":
		vm.push(FromProto(p))
	case "__defaults__":
		if len(p.Defaults) == 0 {
			vm.push(Nil)
		} else {
			elems := make([]Value, len(p.Defaults))
			copy(elems, p.Defaults)
			vm.push(FromList(NewList(elems)))
		}
	case "__annotations__":
		d := NewDict()
		for i, param := range p.ParamNames {
			if i < len(p.ParamTypes) && p.ParamTypes[i] != "" {
				d.Set(param, FromStr(p.ParamTypes[i]))
			}
		}
		if p.ReturnType != "" {
			d.Set("return", FromStr(p.ReturnType))
		}
		vm.push(FromDict(d))
	case "__globals__":
		d := NewDict()
		for _, gname := range vm.globalOrder {
			d.Set(gname, vm.globals[gname])
		}
		vm.push(FromDict(d))
	case "__closure__":
		if len(c.Upvalues) == 0 {
			vm.push(Nil)
			return nil
		}
		cells := make([]Value, len(c.Upvalues))
		for i, cell := range c.Upvalues {
			cells[i] = vm.upvalueGet(cell)
		}
		vm.push(FromList(NewList(cells)))
	default:
		return errf(AttributeError, "'function' object has no attribute '%s'", name)
	}
	return nil
}

// setAttr implements OpSetAttr: [object, value] on the stack; stores a field
// on an instance or a class-level attribute on a class, leaving the value.
func (vm *VM) setAttr(name string) *RuntimeErr {
	value := vm.pop()
	receiver := vm.pop()

	switch receiver.Kind() {
	case KindInstance:
		receiver.Instance().SetField(name, value)
	case KindClass:
		receiver.Class().SetAttr(name, value)
	default:
		return errf(TypeError, "cannot set attribute '%s' on '%s' object", name, receiver.Kind())
	}
	vm.push(value)
	return nil
}
