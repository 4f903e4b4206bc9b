package vm

// ---------------------------------------------------------------------------
// Iteration
// ---------------------------------------------------------------------------

// iterNext implements OpIterNext. The loop preamble leaves [iterable,
// cursor] on the stack with the cursor at 0. Each execution either pushes
// [iterable, cursor+1, element] and falls through into the loop body, or —
// when the sequence is exhausted — leaves both values popped and jumps
// forward past the body.
//
// Built-in sequences advance by cursor. An instance iterable has __iter__
// invoked exactly once, on the first step; whatever it returns becomes the
// iterator, and an instance iterator has __next__ invoked per step until it
// returns the StopIteration sentinel.
func (vm *VM) iterNext() *RuntimeErr {
	offset := vm.readU16()
	cursorV := vm.pop()
	iterable := vm.pop()

	if !cursorV.IsInt() {
		panic(internalf("OpIterNext cursor is %s, not an int", cursorV.Kind()))
	}
	cursor := cursorV.Int()

	if iterable.IsInstance() && cursor == 0 {
		if iter, ok := iterable.Instance().Class.ResolveMethod("__iter__"); ok {
			result, err := vm.callFunction(
				FromBound(&BoundMethod{Receiver: iterable, Method: iter}), nil)
			if err != nil {
				return err
			}
			iterable = result
		}
	}

	var element Value
	done := false

	switch iterable.Kind() {
	case KindList:
		elems := iterable.List().Elems
		if cursor >= int64(len(elems)) {
			done = true
		} else {
			element = elems[cursor]
		}

	case KindStr:
		runes := []rune(iterable.Str())
		if cursor >= int64(len(runes)) {
			done = true
		} else {
			element = FromStr(string(runes[cursor]))
		}

	case KindDict:
		keys := iterable.Dict().Keys()
		if cursor >= int64(len(keys)) {
			done = true
		} else {
			element = FromStr(keys[cursor])
		}

	case KindRange:
		r := iterable.Range()
		if cursor >= r.Len() {
			done = true
		} else {
			element = FromInt(r.At(cursor))
		}

	case KindInstance:
		next, ok := iterable.Instance().Class.ResolveMethod("__next__")
		if !ok {
			return errf(TypeError, "'%s' object is not an iterator",
				iterable.Instance().Class.Name)
		}
		result, err := vm.callFunction(
			FromBound(&BoundMethod{Receiver: iterable, Method: next}), nil)
		if err != nil {
			return err
		}
		if result.Kind() == KindStop {
			done = true
		} else {
			element = result
		}

	default:
		return errf(TypeError, "'%s' object is not iterable", iterable.Kind())
	}

	if done {
		vm.frame().IP += offset
		return nil
	}
	vm.push(iterable)
	vm.push(FromInt(cursor + 1))
	vm.push(element)
	return nil
}
