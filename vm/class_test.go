package vm

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Class construction and attribute dispatch
// ---------------------------------------------------------------------------

// emitClass stacks one method per (name, proto) pair and assembles a class,
// leaving it on the stack.
func emitClass(t *testing.T, tb *testBuilder, className string, methods ...any) {
	t.Helper()
	count := 0
	for i := 0; i < len(methods); i += 2 {
		name := methods[i].(string)
		proto := methods[i+1].(*Proto)
		if err := tb.EmitConstant(1, OpMakeFunction, FromProto(proto)); err != nil {
			t.Fatal(err)
		}
		tb.Constant(1, FromStr(name))
		count++
	}
	tb.Constant(1, FromStr(className))
	tb.EmitByte(1, OpMakeClass, byte(count))
}

// constMethod builds a one-argument (self) method returning a constant.
func constMethod(t *testing.T, name string, v Value) *Proto {
	t.Helper()
	return protoReturning(t, name, 1, nil, nil, func(b *testBuilder) {
		b.Constant(1, v)
	})
}

func TestMakeClassAndInstanceFields(t *testing.T) {
	tb := newTestBuilder(t)
	emitClass(t, tb, "Point")
	tb.Named(1, OpDefineGlobal, "Point")

	tb.Named(2, OpGetGlobal, "Point")
	tb.EmitByte(2, OpCall, 0)
	tb.Named(2, OpDefineGlobal, "p")

	// p.x = 3
	tb.Named(3, OpGetGlobal, "p")
	tb.Constant(3, FromInt(3))
	tb.Named(3, OpSetAttr, "x")
	tb.Emit(3, OpPop)

	// p.x
	tb.Named(4, OpGetGlobal, "p")
	tb.Named(4, OpGetAttr, "x")
	tb.Emit(4, OpPop)
	wantInt(t, evalChunk(t, tb.finish(4)), 3)
}

func TestFieldShadowsMethod(t *testing.T) {
	tb := newTestBuilder(t)
	emitClass(t, tb, "C", "who", constMethod(t, "who", FromStr("method")))
	tb.Named(1, OpDefineGlobal, "C")

	tb.Named(2, OpGetGlobal, "C")
	tb.EmitByte(2, OpCall, 0)
	tb.Named(2, OpDefineGlobal, "c")

	tb.Named(3, OpGetGlobal, "c")
	tb.Constant(3, FromStr("field"))
	tb.Named(3, OpSetAttr, "who")
	tb.Emit(3, OpPop)

	tb.Named(4, OpGetGlobal, "c")
	tb.Named(4, OpGetAttr, "who")
	tb.Emit(4, OpPop)
	wantStr(t, evalChunk(t, tb.finish(4)), "field")
}

func TestBoundMethodDispatch(t *testing.T) {
	tb := newTestBuilder(t)
	emitClass(t, tb, "C", "who", constMethod(t, "who", FromStr("it's me")))
	tb.Named(1, OpDefineGlobal, "C")

	tb.Named(2, OpGetGlobal, "C")
	tb.EmitByte(2, OpCall, 0)
	tb.Named(2, OpDefineGlobal, "c")

	tb.Named(3, OpGetGlobal, "c")
	tb.Named(3, OpGetAttr, "who")
	tb.EmitByte(3, OpCall, 0)
	tb.Emit(3, OpPop)
	wantStr(t, evalChunk(t, tb.finish(3)), "it's me")
}

func TestMROWalkAndOverride(t *testing.T) {
	gp := constMethod(t, "who", FromStr("grandparent"))
	gpOnly := constMethod(t, "legacy", FromStr("heirloom"))
	p := constMethod(t, "who", FromStr("parent"))
	c := constMethod(t, "who", FromStr("child"))

	tb := newTestBuilder(t)
	emitClass(t, tb, "GP", "who", gp, "legacy", gpOnly)
	tb.Named(1, OpDefineGlobal, "GP")

	emitClass(t, tb, "P", "who", p)
	tb.Named(2, OpGetGlobal, "GP")
	tb.Emit(2, OpInherit)
	tb.Named(2, OpDefineGlobal, "P")

	emitClass(t, tb, "C", "who", c)
	tb.Named(3, OpGetGlobal, "P")
	tb.Emit(3, OpInherit)
	tb.Named(3, OpDefineGlobal, "C")

	tb.Named(4, OpGetGlobal, "C")
	tb.EmitByte(4, OpCall, 0)
	tb.Named(4, OpDefineGlobal, "obj")

	// The override in C shadows P and GP.
	tb.Named(5, OpGetGlobal, "obj")
	tb.Named(5, OpGetAttr, "who")
	tb.EmitByte(5, OpCall, 0)
	tb.Emit(5, OpPop)
	machine := New()
	if err := machine.Interpret(tb.finish(5)); err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	wantStr(t, machine.LastPopped(), "child")

	// A method defined only on the grandparent is reachable.
	tb2 := newTestBuilder(t)
	tb2.Named(6, OpGetGlobal, "obj")
	tb2.Named(6, OpGetAttr, "legacy")
	tb2.EmitByte(6, OpCall, 0)
	tb2.Emit(6, OpPop)
	if err := machine.Interpret(tb2.finish(6)); err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	wantStr(t, machine.LastPopped(), "heirloom")
}

func TestInheritNonClassIsTypeError(t *testing.T) {
	tb := newTestBuilder(t)
	emitClass(t, tb, "C")
	tb.Constant(1, FromInt(3))
	tb.Emit(1, OpInherit)
	machine := New()
	err := machine.Interpret(tb.finish(1))
	re, ok := err.(*RuntimeErr)
	if !ok || re.Kind != TypeError {
		t.Fatalf("err = %v, want TypeError", err)
	}
}

func TestMissingAttributeIsAttributeError(t *testing.T) {
	tb := newTestBuilder(t)
	emitClass(t, tb, "C")
	tb.EmitByte(1, OpCall, 0)
	tb.Named(1, OpGetAttr, "ghost")
	tb.Emit(1, OpPop)
	machine := New()
	err := machine.Interpret(tb.finish(1))
	re, ok := err.(*RuntimeErr)
	if !ok || re.Kind != AttributeError {
		t.Fatalf("err = %v, want AttributeError", err)
	}
	if !strings.Contains(re.Message, "ghost") {
		t.Fatalf("message = %q", re.Message)
	}
}

func TestClassAttrGetSet(t *testing.T) {
	tb := newTestBuilder(t)
	emitClass(t, tb, "Config")
	tb.Named(1, OpDefineGlobal, "Config")

	tb.Named(2, OpGetGlobal, "Config")
	tb.Constant(2, FromInt(30))
	tb.Named(2, OpSetAttr, "timeout")
	tb.Emit(2, OpPop)

	tb.Named(3, OpGetGlobal, "Config")
	tb.Named(3, OpGetAttr, "timeout")
	tb.Emit(3, OpPop)
	wantInt(t, evalChunk(t, tb.finish(3)), 30)
}

func TestUnboundMethodThroughClass(t *testing.T) {
	tb := newTestBuilder(t)
	emitClass(t, tb, "C", "who", constMethod(t, "who", FromStr("unbound")))
	tb.Named(1, OpDefineGlobal, "C")

	// C.who is a plain closure, callable with an explicit receiver.
	tb.Named(2, OpGetGlobal, "C")
	tb.Named(2, OpGetAttr, "who")
	tb.Emit(2, OpNil)
	tb.EmitByte(2, OpCall, 1)
	tb.Emit(2, OpPop)
	wantStr(t, evalChunk(t, tb.finish(2)), "unbound")
}

// ---------------------------------------------------------------------------
// Instance construction via __init__
// ---------------------------------------------------------------------------

func TestInitStoresFieldsAndReturnsInstance(t *testing.T) {
	// def __init__(self, x): self.x = x
	init := protoReturning(t, "__init__", 2, nil, nil, func(b *testBuilder) {
		b.EmitByte(1, OpGetLocal, 1)
		b.EmitByte(1, OpGetLocal, 2)
		b.Named(1, OpSetAttr, "x")
		b.Emit(1, OpPop)
		b.Emit(1, OpNil)
	})

	tb := newTestBuilder(t)
	emitClass(t, tb, "Box", "__init__", init)
	tb.Named(1, OpDefineGlobal, "Box")

	tb.Named(2, OpGetGlobal, "Box")
	tb.Constant(2, FromInt(7))
	tb.EmitByte(2, OpCall, 1)
	tb.Named(2, OpDefineGlobal, "b")

	tb.Named(3, OpGetGlobal, "b")
	tb.Named(3, OpGetAttr, "x")
	tb.Emit(3, OpPop)
	wantInt(t, evalChunk(t, tb.finish(3)), 7)
}

func TestConstructorArityWithoutInit(t *testing.T) {
	tb := newTestBuilder(t)
	emitClass(t, tb, "Empty")
	tb.Constant(1, FromInt(1))
	tb.EmitByte(1, OpCall, 1)
	tb.Emit(1, OpPop)
	machine := New()
	err := machine.Interpret(tb.finish(1))
	re, ok := err.(*RuntimeErr)
	if !ok || re.Kind != TypeError {
		t.Fatalf("err = %v, want TypeError", err)
	}
}

// ---------------------------------------------------------------------------
// Function introspection attributes
// ---------------------------------------------------------------------------

func TestClosureIntrospection(t *testing.T) {
	proto := &Proto{
		Name:       "area",
		QualName:   "shapes.<locals>.area",
		Arity:      2,
		Doc:        "Compute an area.",
		ParamNames: []string{"w", "h"},
		ParamTypes: []string{"int", "int"},
		ReturnType: "int",
		Module:     "geometry",
		Chunk:      NewChunk(),
	}
	proto.Chunk.Code = []byte{byte(OpNil), byte(OpReturn)}
	proto.Chunk.Lines = []int{1, 1}

	attr := func(name string) Value {
		t.Helper()
		full := newTestBuilder(t)
		if err := full.EmitConstant(1, OpMakeFunction, FromProto(proto)); err != nil {
			t.Fatal(err)
		}
		full.Named(1, OpDefineGlobal, "area")
		full.Named(2, OpGetGlobal, "area")
		full.Named(2, OpGetAttr, name)
		full.Emit(2, OpPop)
		return evalChunk(t, full.finish(2))
	}

	wantStr(t, attr("__name__"), "area")
	wantStr(t, attr("__qualname__"), "shapes.<locals>.area")
	wantStr(t, attr("__doc__"), "Compute an area.")
	wantStr(t, attr("__module__"), "geometry")

	ann := attr("__annotations__")
	if !ann.IsDict() {
		t.Fatalf("__annotations__ = %s, want dict", Repr(ann))
	}
	if got := Repr(ann); got != "{'w': 'int', 'h': 'int', 'return': 'int'}" {
		t.Fatalf("__annotations__ = %s", got)
	}

	if got := attr("__defaults__"); !got.IsNil() {
		t.Fatalf("__defaults__ = %s, want None", Repr(got))
	}
	if got := attr("__closure__"); !got.IsNil() {
		t.Fatalf("__closure__ = %s, want None", Repr(got))
	}
	if got := attr("__code__"); got.Kind() != KindProto {
		t.Fatalf("__code__ kind = %s, want code", got.Kind())
	}
}
