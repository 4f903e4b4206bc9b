package vm

import "sort"

// ---------------------------------------------------------------------------
// Upvalue engine
// ---------------------------------------------------------------------------

// The VM keeps the open upvalue cells sorted by stack index. Capturing the
// same local twice must yield the same cell, so sibling closures share
// state; the sorted order makes closeUpvalues a suffix operation.

// captureUpvalue returns the open cell for the given absolute stack index,
// creating and inserting one if none exists yet.
func (vm *VM) captureUpvalue(index int) *Upvalue {
	i := sort.Search(len(vm.openUpvalues), func(i int) bool {
		return vm.openUpvalues[i].Location >= index
	})
	if i < len(vm.openUpvalues) && vm.openUpvalues[i].Location == index {
		return vm.openUpvalues[i]
	}
	cell := &Upvalue{Location: index}
	vm.openUpvalues = append(vm.openUpvalues, nil)
	copy(vm.openUpvalues[i+1:], vm.openUpvalues[i:])
	vm.openUpvalues[i] = cell
	return cell
}

// closeUpvalues closes every open cell whose captured slot is at or above
// from: the value is lifted off the stack into the cell and the cell leaves
// the open list. Invoked on frame return and by OpCloseUpvalue.
func (vm *VM) closeUpvalues(from int) {
	i := sort.Search(len(vm.openUpvalues), func(i int) bool {
		return vm.openUpvalues[i].Location >= from
	})
	for _, cell := range vm.openUpvalues[i:] {
		cell.Closed = vm.stack.Get(cell.Location)
		cell.IsClosed = true
	}
	vm.openUpvalues = vm.openUpvalues[:i]
}

// upvalueGet reads through a cell, transparent to its open/closed state.
func (vm *VM) upvalueGet(cell *Upvalue) Value {
	if cell.IsClosed {
		return cell.Closed
	}
	return vm.stack.Get(cell.Location)
}

// upvalueSet writes through a cell, transparent to its open/closed state.
func (vm *VM) upvalueSet(cell *Upvalue, v Value) {
	if cell.IsClosed {
		cell.Closed = v
	} else {
		vm.stack.Set(cell.Location, v)
	}
}
