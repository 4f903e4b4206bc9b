package vm

import "strings"

// ---------------------------------------------------------------------------
// Collection handlers
// ---------------------------------------------------------------------------

// normalizeIndex maps a possibly-negative index onto [0, length) and
// reports whether it is in bounds.
func normalizeIndex(idx, length int64) (int64, bool) {
	if idx < 0 {
		idx += length
	}
	return idx, idx >= 0 && idx < length
}

// index implements OpIndex: container[key].
func (vm *VM) index() *RuntimeErr {
	key := vm.pop()
	container := vm.pop()

	switch container.Kind() {
	case KindList:
		elems := container.List().Elems
		switch key.Kind() {
		case KindInt:
			i, ok := normalizeIndex(key.Int(), int64(len(elems)))
			if !ok {
				return errf(IndexError, "list index out of range")
			}
			vm.push(elems[i])
			return nil
		case KindRange:
			r := key.Range()
			indices := sliceIndices(int64(len(elems)), &r.Start, &r.Stop, r.Step)
			out := make([]Value, 0, len(indices))
			for _, i := range indices {
				out = append(out, elems[i])
			}
			vm.push(FromList(NewList(out)))
			return nil
		}
		return errf(TypeError, "list indices must be integers, not '%s'", key.Kind())

	case KindStr:
		if key.Kind() != KindInt {
			return errf(TypeError, "string indices must be integers, not '%s'", key.Kind())
		}
		runes := []rune(container.Str())
		i, ok := normalizeIndex(key.Int(), int64(len(runes)))
		if !ok {
			return errf(IndexError, "string index out of range")
		}
		vm.push(FromStr(string(runes[i])))
		return nil

	case KindDict:
		if key.Kind() != KindStr {
			return errf(TypeError, "dict keys must be strings, not '%s'", key.Kind())
		}
		if v, ok := container.Dict().Get(key.Str()); ok {
			vm.push(v)
			return nil
		}
		return errf(KeyError, "'%s'", key.Str())
	}
	return errf(TypeError, "'%s' object is not subscriptable", container.Kind())
}

// setIndex implements OpSetIndex: container[key] = value, mutating the
// container in place. The assigned value is left on the stack.
func (vm *VM) setIndex() *RuntimeErr {
	value := vm.pop()
	key := vm.pop()
	container := vm.pop()

	switch container.Kind() {
	case KindList:
		if key.Kind() != KindInt {
			return errf(TypeError, "list indices must be integers, not '%s'", key.Kind())
		}
		elems := container.List().Elems
		i, ok := normalizeIndex(key.Int(), int64(len(elems)))
		if !ok {
			return errf(IndexError, "list assignment index out of range")
		}
		elems[i] = value
		vm.push(value)
		return nil

	case KindDict:
		if key.Kind() != KindStr {
			return errf(TypeError, "dict keys must be strings, not '%s'", key.Kind())
		}
		container.Dict().Set(key.Str(), value)
		vm.push(value)
		return nil
	}
	return errf(TypeError, "'%s' object does not support item assignment", container.Kind())
}

// sliceBound converts an optional slice endpoint (nil means absent) into a
// clamped concrete index. Out-of-bounds endpoints clamp instead of erroring.
func sliceBound(idx *int64, length int64, isEnd, stepPositive bool) int64 {
	if idx == nil {
		if stepPositive {
			if isEnd {
				return length
			}
			return 0
		}
		if isEnd || length <= 0 {
			return -1
		}
		return length - 1
	}
	v := *idx
	if v < 0 {
		v += length
	}
	if stepPositive {
		if v < 0 {
			v = 0
		}
		if v > length {
			v = length
		}
	} else {
		if v < -1 {
			v = -1
		}
		if v >= length {
			v = length - 1
		}
	}
	return v
}

// sliceIndices enumerates the element positions a slice selects. The caller
// guarantees step != 0.
func sliceIndices(length int64, start, stop *int64, step int64) []int64 {
	if length == 0 {
		return nil
	}
	positive := step > 0
	from := sliceBound(start, length, false, positive)
	to := sliceBound(stop, length, true, positive)

	var out []int64
	if positive {
		for i := from; i < to; i += step {
			if i >= 0 && i < length {
				out = append(out, i)
			}
		}
	} else {
		for i := from; i > to; i += step {
			if i >= 0 && i < length {
				out = append(out, i)
			}
		}
	}
	return out
}

// sliceEndpoint pops one slice operand: Nil (absent) or an Int.
func (vm *VM) sliceEndpoint(what string) (*int64, *RuntimeErr) {
	v := vm.pop()
	switch v.Kind() {
	case KindNil:
		return nil, nil
	case KindInt:
		n := v.Int()
		return &n, nil
	}
	return nil, errf(TypeError, "slice %s must be an integer or None, not '%s'", what, v.Kind())
}

// slice implements OpSlice: container[start:stop:step] with absent
// endpoints defaulting per step direction.
func (vm *VM) slice() *RuntimeErr {
	stepV, err := vm.sliceEndpoint("step")
	if err != nil {
		return err
	}
	stop, err := vm.sliceEndpoint("stop")
	if err != nil {
		return err
	}
	start, err := vm.sliceEndpoint("start")
	if err != nil {
		return err
	}
	container := vm.pop()

	step := int64(1)
	if stepV != nil {
		step = *stepV
	}
	if step == 0 {
		return errf(ValueError, "slice step cannot be zero")
	}

	switch container.Kind() {
	case KindList:
		elems := container.List().Elems
		indices := sliceIndices(int64(len(elems)), start, stop, step)
		out := make([]Value, 0, len(indices))
		for _, i := range indices {
			out = append(out, elems[i])
		}
		vm.push(FromList(NewList(out)))
		return nil
	case KindStr:
		runes := []rune(container.Str())
		indices := sliceIndices(int64(len(runes)), start, stop, step)
		out := make([]rune, 0, len(indices))
		for _, i := range indices {
			out = append(out, runes[i])
		}
		vm.push(FromStr(string(out)))
		return nil
	}
	return errf(TypeError, "'%s' object is not sliceable", container.Kind())
}

// length implements OpLen.
func (vm *VM) length() *RuntimeErr {
	v := vm.pop()
	switch v.Kind() {
	case KindList:
		vm.push(FromInt(int64(len(v.List().Elems))))
	case KindDict:
		vm.push(FromInt(int64(v.Dict().Len())))
	case KindStr:
		vm.push(FromInt(int64(len([]rune(v.Str())))))
	case KindRange:
		vm.push(FromInt(v.Range().Len()))
	default:
		return errf(TypeError, "object of type '%s' has no len()", v.Kind())
	}
	return nil
}

// appendElem implements OpAppend: list.append(value), in place. Pushes None,
// the call's result.
func (vm *VM) appendElem() *RuntimeErr {
	value := vm.pop()
	target := vm.pop()
	if !target.IsList() {
		return errf(TypeError, "'%s' object has no attribute 'append'", target.Kind())
	}
	l := target.List()
	l.Elems = append(l.Elems, value)
	vm.push(Nil)
	return nil
}

// makeRange implements OpRange for 1, 2, or 3 stacked Int arguments.
func (vm *VM) makeRange(arity int) *RuntimeErr {
	if arity < 1 || arity > 3 {
		panic(internalf("OpRange arity %d", arity))
	}
	args := make([]Value, arity)
	for i := arity - 1; i >= 0; i-- {
		args[i] = vm.pop()
	}
	for _, a := range args {
		if !a.IsInt() {
			return errf(TypeError, "range() argument must be an integer, not '%s'", a.Kind())
		}
	}

	r := &Range{Step: 1}
	switch arity {
	case 1:
		r.Stop = args[0].Int()
	case 2:
		r.Start, r.Stop = args[0].Int(), args[1].Int()
	case 3:
		r.Start, r.Stop, r.Step = args[0].Int(), args[1].Int(), args[2].Int()
		if r.Step == 0 {
			return errf(ValueError, "range() arg 3 must not be zero")
		}
	}
	vm.push(FromRange(r))
	return nil
}

// contains implements OpContains: needle in haystack.
func (vm *VM) contains() *RuntimeErr {
	haystack := vm.pop()
	needle := vm.pop()

	switch haystack.Kind() {
	case KindStr:
		if !needle.IsStr() {
			return errf(TypeError, "'in <string>' requires string as left operand, not '%s'",
				needle.Kind())
		}
		vm.push(FromBool(strings.Contains(haystack.Str(), needle.Str())))
	case KindList:
		found := false
		for _, e := range haystack.List().Elems {
			if Equal(e, needle) {
				found = true
				break
			}
		}
		vm.push(FromBool(found))
	case KindDict:
		if !needle.IsStr() {
			vm.push(False)
			return nil
		}
		_, ok := haystack.Dict().Get(needle.Str())
		vm.push(FromBool(ok))
	case KindRange:
		if !needle.IsInt() {
			vm.push(False)
			return nil
		}
		vm.push(FromBool(haystack.Range().Contains(needle.Int())))
	default:
		return errf(TypeError, "argument of type '%s' is not iterable", haystack.Kind())
	}
	return nil
}

// makeDict implements OpMakeDict over pairCount stacked key/value pairs.
func (vm *VM) makeDict(pairCount int) *RuntimeErr {
	type pair struct {
		key   string
		value Value
	}
	pairs := make([]pair, pairCount)
	for i := pairCount - 1; i >= 0; i-- {
		value := vm.pop()
		key := vm.pop()
		if !key.IsStr() {
			return errf(TypeError, "dict keys must be strings, not '%s'", key.Kind())
		}
		pairs[i] = pair{key.Str(), value}
	}
	d := NewDict()
	for _, p := range pairs {
		d.Set(p.key, p.value)
	}
	vm.push(FromDict(d))
	return nil
}
