package vm

import "testing"

// ---------------------------------------------------------------------------
// Truthiness
// ---------------------------------------------------------------------------

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"nil", Nil, false},
		{"false", False, false},
		{"true", True, true},
		{"zero int", FromInt(0), false},
		{"nonzero int", FromInt(-3), true},
		{"zero float", FromFloat(0.0), false},
		{"nonzero float", FromFloat(0.5), true},
		{"empty str", FromStr(""), false},
		{"str", FromStr("x"), true},
		{"empty list", FromList(NewList(nil)), false},
		{"list", FromList(NewList([]Value{Nil})), true},
		{"empty dict", FromDict(NewDict()), false},
		{"empty range", FromRange(&Range{Start: 3, Stop: 3, Step: 1}), false},
		{"range", FromRange(&Range{Start: 0, Stop: 1, Step: 1}), true},
		{"backward empty range", FromRange(&Range{Start: 0, Stop: 5, Step: -1}), false},
		{"class", FromClass(NewClass("C")), true},
	}
	for _, tt := range tests {
		if got := tt.v.IsTruthy(); got != tt.want {
			t.Errorf("%s: IsTruthy = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Equality
// ---------------------------------------------------------------------------

func TestEqualValues(t *testing.T) {
	l1 := FromList(NewList([]Value{FromInt(1), FromStr("a")}))
	l2 := FromList(NewList([]Value{FromInt(1), FromStr("a")}))
	l3 := FromList(NewList([]Value{FromInt(2)}))

	d1 := NewDict()
	d1.Set("k", FromInt(1))
	d2 := NewDict()
	d2.Set("k", FromInt(1))

	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"int/int", FromInt(4), FromInt(4), true},
		{"int/float equal", FromInt(4), FromFloat(4.0), true},
		{"int/float unequal", FromInt(4), FromFloat(4.5), false},
		{"str content", FromStr("ab"), FromStr("ab"), true},
		{"nil/nil", Nil, Nil, true},
		{"bool/int", True, FromInt(1), false},
		{"list structural", l1, l2, true},
		{"list unequal", l1, l3, false},
		{"dict structural", FromDict(d1), FromDict(d2), true},
		{"range", FromRange(&Range{0, 5, 1}), FromRange(&Range{0, 5, 1}), true},
	}
	for _, tt := range tests {
		if got := Equal(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: Equal = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Ranges
// ---------------------------------------------------------------------------

func TestRangeLenAtContains(t *testing.T) {
	r := &Range{Start: 0, Stop: 10, Step: 3} // 0 3 6 9
	if r.Len() != 4 {
		t.Fatalf("Len = %d, want 4", r.Len())
	}
	if r.At(3) != 9 {
		t.Fatalf("At(3) = %d, want 9", r.At(3))
	}
	if !r.Contains(6) || r.Contains(7) || r.Contains(10) {
		t.Fatal("Contains gave wrong membership")
	}

	down := &Range{Start: 5, Stop: 0, Step: -2} // 5 3 1
	if down.Len() != 3 {
		t.Fatalf("Len = %d, want 3", down.Len())
	}
	if down.At(2) != 1 {
		t.Fatalf("At(2) = %d, want 1", down.At(2))
	}
	if !down.Contains(3) || down.Contains(0) || down.Contains(4) {
		t.Fatal("Contains gave wrong membership on negative step")
	}
}

// ---------------------------------------------------------------------------
// Dict ordering
// ---------------------------------------------------------------------------

func TestDictPreservesInsertionOrder(t *testing.T) {
	d := NewDict()
	d.Set("b", FromInt(1))
	d.Set("a", FromInt(2))
	d.Set("c", FromInt(3))
	d.Set("a", FromInt(9)) // update must not reorder

	want := []string{"b", "a", "c"}
	keys := d.Keys()
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
	if v, _ := d.Get("a"); v.Int() != 9 {
		t.Fatalf("a = %s, want 9", Repr(v))
	}
}

// ---------------------------------------------------------------------------
// Formatting
// ---------------------------------------------------------------------------

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		f    float64
		want string
	}{
		{17.5, "17.5"},
		{20.0, "20.0"},
		{-0.25, "-0.25"},
		{2.5, "2.5"},
	}
	for _, tt := range tests {
		if got := FormatFloat(tt.f); got != tt.want {
			t.Errorf("FormatFloat(%v) = %q, want %q", tt.f, got, tt.want)
		}
	}
}

func TestRepr(t *testing.T) {
	l := NewList([]Value{FromInt(1), FromStr("a"), Nil})
	if got := Repr(FromList(l)); got != "[1, 'a', None]" {
		t.Fatalf("Repr = %q", got)
	}
	d := NewDict()
	d.Set("k", FromBool(true))
	if got := Repr(FromDict(d)); got != "{'k': True}" {
		t.Fatalf("Repr = %q", got)
	}
	if got := Repr(FromRange(&Range{0, 5, 1})); got != "range(0, 5)" {
		t.Fatalf("Repr = %q", got)
	}
}
