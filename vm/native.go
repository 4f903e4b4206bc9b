package vm

// ---------------------------------------------------------------------------
// Builtin natives
// ---------------------------------------------------------------------------

// registerBuiltins installs the host functions every VM starts with.
func (vm *VM) registerBuiltins() {
	vm.RegisterNative("super", 0, 0, nativeSuper)
	vm.RegisterNative("str", 0, 1, nativeStr)
	vm.RegisterNative("repr", 1, 1, nativeRepr)
	vm.RegisterNative("type", 1, 1, nativeType)
	vm.DefineGlobal("StopIteration", StopIteration)
}

// nativeSuper recovers self (the method's first local) and the defining
// class from the calling frame, and returns a proxy that resumes attribute
// lookup at the parent class.
func nativeSuper(vm *VM, args []Value) (Value, error) {
	if len(vm.frames) == 0 {
		return Nil, errf(RuntimeError, "super() can only be used inside a method")
	}
	frame := vm.frame()
	if frame.Class == nil {
		return Nil, errf(RuntimeError, "super() can only be used inside a method")
	}
	if frame.Class.Parent == nil {
		return Nil, errf(RuntimeError, "super() used in class '%s', which has no parent",
			frame.Class.Name)
	}
	self := vm.stack.Get(frame.Base + 1)
	return FromSuper(&SuperProxy{Receiver: self, Start: frame.Class.Parent}), nil
}

// nativeStr implements str(): the printable conversion, running __str__ on
// instances.
func nativeStr(vm *VM, args []Value) (Value, error) {
	if len(args) == 0 {
		return FromStr(""), nil
	}
	s, err := vm.stringify(args[0])
	if err != nil {
		return Nil, err
	}
	return FromStr(s), nil
}

// nativeRepr implements repr(): the developer-facing conversion, running
// __repr__ on instances and quoting strings.
func nativeRepr(vm *VM, args []Value) (Value, error) {
	s, err := vm.reprify(args[0])
	if err != nil {
		return Nil, err
	}
	return FromStr(s), nil
}

// nativeType returns the class of an instance, or the type name of any
// other value as a string.
func nativeType(vm *VM, args []Value) (Value, error) {
	v := args[0]
	if v.IsInstance() {
		return FromClass(v.Instance().Class), nil
	}
	return FromStr(v.Kind().String()), nil
}
