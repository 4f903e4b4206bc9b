package vm

// FramesMax bounds the call depth. Exceeding it reports "maximum recursion
// depth exceeded" and terminates interpretation cleanly.
const FramesMax = 256

// ---------------------------------------------------------------------------
// Call frames
// ---------------------------------------------------------------------------

// CallFrame is the per-invocation record: the closure being executed, an
// instruction pointer into its chunk, and the absolute stack index where the
// frame's slots begin (the callee itself occupies slot 0).
type CallFrame struct {
	Closure *Closure
	IP      int
	Base    int

	// Class is the class whose method table supplied this closure, threaded
	// so super() can resume lookup at its parent. Nil outside methods.
	Class *Class

	// initRecv carries the freshly constructed instance across an __init__
	// call; the return path discards __init__'s result and yields it
	// instead.
	initRecv    Value
	hasInitRecv bool
}

// chunk returns the frame's bytecode chunk.
func (f *CallFrame) chunk() *Chunk {
	return f.Closure.Proto.Chunk
}

// name returns a human-readable frame description for traces.
func (f *CallFrame) name() string {
	p := f.Closure.Proto
	if p.QualName != "" {
		return p.QualName
	}
	return p.Name
}
