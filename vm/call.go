package vm

// ---------------------------------------------------------------------------
// Function call and return
// ---------------------------------------------------------------------------

// callValue implements OpCall: the callee sits below argc stacked arguments
// and is dispatched by kind.
func (vm *VM) callValue(argc int) *RuntimeErr {
	if vm.stack.Len() < argc+1 {
		panic(internalf("call with %d arguments on a stack of %d", argc, vm.stack.Len()))
	}
	calleeIndex := vm.stack.Len() - argc - 1
	callee := vm.stack.Get(calleeIndex)

	switch callee.Kind() {
	case KindClosure:
		c := callee.Closure()
		return vm.callClosure(c, calleeIndex, argc, c.Owner, Nil, false)

	case KindBound:
		bound := callee.Bound()
		// The receiver becomes the implicit first argument: shift the
		// explicit arguments up one slot and dispatch the inner callable.
		vm.push(Nil)
		for i := vm.stack.Len() - 1; i > calleeIndex+1; i-- {
			vm.stack.Set(i, vm.stack.Get(i-1))
		}
		vm.stack.Set(calleeIndex, bound.Method)
		vm.stack.Set(calleeIndex+1, bound.Receiver)
		switch bound.Method.Kind() {
		case KindClosure:
			c := bound.Method.Closure()
			return vm.callClosure(c, calleeIndex, argc+1, c.Owner, Nil, false)
		case KindNative:
			return vm.callNative(bound.Method.Native(), calleeIndex, argc+1)
		}
		panic(internalf("bound method wraps %s", bound.Method.Kind()))

	case KindClass:
		return vm.construct(callee.Class(), calleeIndex, argc)

	case KindNative:
		return vm.callNative(callee.Native(), calleeIndex, argc)
	}
	return errf(TypeError, "'%s' object is not callable", callee.Kind())
}

// callClosure checks arity, materializes defaults for omitted trailing
// parameters, and pushes a frame based at the callee slot.
func (vm *VM) callClosure(c *Closure, calleeIndex, argc int, class *Class, initRecv Value, hasInitRecv bool) *RuntimeErr {
	proto := c.Proto
	required := proto.RequiredArgs()
	if argc < required || argc > proto.Arity {
		if len(proto.Defaults) == 0 {
			return errf(TypeError, "%s() takes %d arguments but %d were given",
				proto.Name, proto.Arity, argc)
		}
		return errf(TypeError, "%s() takes from %d to %d arguments but %d were given",
			proto.Name, required, proto.Arity, argc)
	}
	if len(vm.frames) >= FramesMax {
		return errf(RuntimeError, "maximum recursion depth exceeded")
	}

	for i := argc; i < proto.Arity; i++ {
		vm.push(proto.Defaults[i-required])
	}

	vm.frames = append(vm.frames, &CallFrame{
		Closure:     c,
		Base:        calleeIndex,
		Class:       class,
		initRecv:    initRecv,
		hasInitRecv: hasInitRecv,
	})
	return nil
}

// construct implements calling a class: allocate an instance, then run
// __init__ if the class chain has one. The instance, not __init__'s result,
// is what the call leaves behind.
func (vm *VM) construct(class *Class, calleeIndex, argc int) *RuntimeErr {
	instance := FromInstance(NewInstance(class))

	init, ok := class.ResolveMethod("__init__")
	if !ok {
		if argc != 0 {
			return errf(TypeError, "%s() takes no arguments (%d given)", class.Name, argc)
		}
		vm.stack.SetTop(calleeIndex)
		vm.push(instance)
		return nil
	}
	if init.Kind() != KindClosure {
		panic(internalf("__init__ of class %s is %s, not a closure", class.Name, init.Kind()))
	}

	// Rewrite [class, args...] into [__init__, self, args...] and call with
	// self included in the arity.
	vm.push(Nil)
	for i := vm.stack.Len() - 1; i > calleeIndex+1; i-- {
		vm.stack.Set(i, vm.stack.Get(i-1))
	}
	c := init.Closure()
	vm.stack.Set(calleeIndex, init)
	vm.stack.Set(calleeIndex+1, instance)
	return vm.callClosure(c, calleeIndex, argc+1, c.Owner, instance, true)
}

// callNative invokes a host function over the stacked argument slice and
// replaces callee and arguments with its result.
func (vm *VM) callNative(n *Native, calleeIndex, argc int) *RuntimeErr {
	if argc < n.MinArgs || argc > n.MaxArgs {
		if n.MinArgs == n.MaxArgs {
			return errf(TypeError, "%s() takes %d arguments but %d were given",
				n.Name, n.MinArgs, argc)
		}
		return errf(TypeError, "%s() takes from %d to %d arguments but %d were given",
			n.Name, n.MinArgs, n.MaxArgs, argc)
	}

	args := make([]Value, argc)
	for i := 0; i < argc; i++ {
		args[i] = vm.stack.Get(calleeIndex + 1 + i)
	}
	result, err := n.Fn(vm, args)
	if err != nil {
		if re, ok := err.(*RuntimeErr); ok {
			return re
		}
		return errf(RuntimeError, "%s", err)
	}
	vm.stack.SetTop(calleeIndex)
	vm.push(result)
	return nil
}

// handleReturn implements OpReturn: read the return value, close upvalues
// over the dying frame's slots, pop the frame, truncate the stack to the
// frame base, and either hand the value to the caller frame or — when the
// frame stack is back at minFrames — to run's caller.
func (vm *VM) handleReturn(minFrames int) (bool, Value) {
	if vm.stack.Len() == 0 {
		panic(internalf("return with an empty stack"))
	}
	f := vm.frames[len(vm.frames)-1]
	ret := vm.stack.Get(vm.stack.Len() - 1)

	vm.closeUpvalues(f.Base)
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.stack.SetTop(f.Base)

	if f.hasInitRecv {
		ret = f.initRecv
	}
	if len(vm.frames) == minFrames {
		return true, ret
	}
	vm.stack.SetLastPopped(ret)
	vm.push(ret)
	return false, Nil
}

// callFunction invokes an arbitrary callable with the given arguments and
// runs it to completion, re-entering the dispatcher for bytecode callables.
// The dunder protocol and natives such as str() use it.
func (vm *VM) callFunction(callee Value, args []Value) (Value, *RuntimeErr) {
	depth := len(vm.frames)
	base := vm.stack.Len()

	vm.push(callee)
	for _, a := range args {
		vm.push(a)
	}
	if err := vm.callValue(len(args)); err != nil {
		vm.stack.SetTop(base)
		return Nil, err
	}
	if len(vm.frames) == depth {
		// Native (or __init__-less construction): the result is already in
		// place of the callee.
		ret := vm.pop()
		vm.stack.SetTop(base)
		return ret, nil
	}
	ret, err := vm.run(depth)
	vm.stack.SetTop(base)
	if err != nil {
		return Nil, err
	}
	return ret, nil
}
