package vm

import (
	"io"
	"os"
)

// ---------------------------------------------------------------------------
// VM: the virtual machine
// ---------------------------------------------------------------------------

// VM executes compiled chunks. A VM owns its stack, frame stack, globals,
// and open-upvalue list; it is single-threaded and holds no process-wide
// state, so a host may run several VMs in distinct goroutines.
type VM struct {
	stack        *Stack
	frames       []*CallFrame
	globals      map[string]Value
	globalOrder  []string
	openUpvalues []*Upvalue

	out io.Writer

	// curLine is the source line of the instruction being executed.
	curLine int

	// tracer, when set, observes every instruction before it executes.
	tracer func(depth, offset int, op Opcode)
}

// New creates a VM with the builtin natives registered.
func New() *VM {
	vm := &VM{
		stack:   NewStack(),
		globals: make(map[string]Value),
		out:     os.Stdout,
	}
	vm.registerBuiltins()
	return vm
}

// SetOutput redirects the print family. The default is os.Stdout.
func (vm *VM) SetOutput(w io.Writer) { vm.out = w }

// SetTracer installs an instruction observer, or removes it when nil.
func (vm *VM) SetTracer(fn func(depth, offset int, op Opcode)) { vm.tracer = fn }

// DefineGlobal binds a name in the global table, creating it if absent.
func (vm *VM) DefineGlobal(name string, v Value) {
	if _, ok := vm.globals[name]; !ok {
		vm.globalOrder = append(vm.globalOrder, name)
	}
	vm.globals[name] = v
}

// GetGlobal returns the named global, and whether it exists.
func (vm *VM) GetGlobal(name string) (Value, bool) {
	v, ok := vm.globals[name]
	return v, ok
}

// RegisterNative binds a host function under name with an inclusive arity
// range.
func (vm *VM) RegisterNative(name string, minArgs, maxArgs int, fn NativeFn) {
	vm.DefineGlobal(name, FromNative(&Native{
		Name:    name,
		MinArgs: minArgs,
		MaxArgs: maxArgs,
		Fn:      fn,
	}))
}

// LastPopped returns the value most recently popped by the interpreter. The
// REPL displays it after an expression statement.
func (vm *VM) LastPopped() Value { return vm.stack.LastPopped() }

// Interpret executes a root chunk to completion. On failure it returns a
// *RuntimeErr carrying the error kind, message, source line, and a partial
// call-stack trace; the VM should be discarded (or a fresh Interpret started,
// which resets execution state) rather than inspected after an error.
func (vm *VM) Interpret(chunk *Chunk) error {
	vm.stack.Reset()
	vm.frames = vm.frames[:0]
	vm.openUpvalues = vm.openUpvalues[:0]

	script := &Closure{Proto: &Proto{
		Name:     "<script>",
		QualName: "<script>",
		Module:   "<script>",
		Chunk:    chunk,
	}}
	vm.stack.Push(FromClosure(script))
	vm.frames = append(vm.frames, &CallFrame{Closure: script})

	if _, err := vm.run(0); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Frame helpers
// ---------------------------------------------------------------------------

func (vm *VM) frame() *CallFrame {
	return vm.frames[len(vm.frames)-1]
}

// readByte fetches the next code byte of the current frame.
func (vm *VM) readByte() byte {
	f := vm.frame()
	code := f.chunk().Code
	if f.IP >= len(code) {
		panic(internalf("instruction pointer past end of chunk"))
	}
	b := code[f.IP]
	f.IP++
	return b
}

// readU16 fetches a 16-bit big-endian operand.
func (vm *VM) readU16() int {
	hi := vm.readByte()
	lo := vm.readByte()
	return int(hi)<<8 | int(lo)
}

// readConstant fetches a 16-bit constant-pool operand and resolves it.
func (vm *VM) readConstant() Value {
	idx := vm.readU16()
	consts := vm.frame().chunk().Constants
	if idx >= len(consts) {
		panic(internalf("constant index %d out of range (pool size %d)", idx, len(consts)))
	}
	return consts[idx]
}

// readName fetches a constant operand that must be a string.
func (vm *VM) readName() string {
	c := vm.readConstant()
	if !c.IsStr() {
		panic(internalf("expected string constant, found %s", c.Kind()))
	}
	return c.Str()
}

// ---------------------------------------------------------------------------
// Stack helpers
// ---------------------------------------------------------------------------

func (vm *VM) push(v Value) {
	if vm.stack.Len() >= StackMax {
		panic(errf(RuntimeError, "stack overflow"))
	}
	vm.stack.Push(v)
}

func (vm *VM) pop() Value {
	if vm.stack.Len() == 0 {
		panic(internalf("stack underflow"))
	}
	return vm.stack.Pop()
}

func (vm *VM) peek(n int) Value {
	if vm.stack.Len() <= n {
		panic(internalf("stack underflow in peek(%d)", n))
	}
	return vm.stack.Peek(n)
}

// trace builds the partial call-stack trace for diagnostics, innermost
// first, capped to keep runaway recursion readable.
func (vm *VM) trace() []string {
	const traceMax = 16
	var out []string
	for i := len(vm.frames) - 1; i >= 0 && len(out) < traceMax; i-- {
		out = append(out, vm.frames[i].name())
	}
	if len(vm.frames) > traceMax {
		out = append(out, "...")
	}
	return out
}
