package vm

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// String representation
// ---------------------------------------------------------------------------

// FormatFloat renders a float with enough digits to round-trip, trimming
// trailing zeros but always keeping a fractional marker so floats stay
// visually distinct from ints.
func FormatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Repr formats a value without invoking user code: strings come back
// quoted, containers recurse, instances fall back to "<C instance>". The
// disassembler and tests use it; the interpreter's own conversions go
// through stringify/reprify so __str__ and __repr__ participate.
func Repr(v Value) string {
	switch v.Kind() {
	case KindStr:
		return "'" + v.Str() + "'"
	default:
		return display(v, Repr)
	}
}

// display formats the non-instance kinds, delegating element rendering of
// containers to elem.
func display(v Value, elem func(Value) string) string {
	switch v.Kind() {
	case KindNil:
		return "None"
	case KindBool:
		if v.Bool() {
			return "True"
		}
		return "False"
	case KindInt:
		return strconv.FormatInt(v.Int(), 10)
	case KindFloat:
		return FormatFloat(v.Float())
	case KindStr:
		return v.Str()
	case KindList:
		parts := make([]string, len(v.List().Elems))
		for i, e := range v.List().Elems {
			parts[i] = elem(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindDict:
		d := v.Dict()
		parts := make([]string, 0, d.Len())
		for _, k := range d.Keys() {
			val, _ := d.Get(k)
			parts = append(parts, "'"+k+"': "+elem(val))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindRange:
		r := v.Range()
		if r.Step == 1 {
			return fmt.Sprintf("range(%d, %d)", r.Start, r.Stop)
		}
		return fmt.Sprintf("range(%d, %d, %d)", r.Start, r.Stop, r.Step)
	case KindProto:
		return "<code " + v.Proto().Name + ">"
	case KindClosure:
		return "<function " + v.Closure().Proto.Name + ">"
	case KindBound:
		if v.Bound().Method.Kind() == KindClosure {
			return "<bound method " + v.Bound().Method.Closure().Proto.Name + ">"
		}
		return "<bound method " + v.Bound().Method.Native().Name + ">"
	case KindClass:
		return "<class '" + v.Class().Name + "'>"
	case KindInstance:
		return "<" + v.Instance().Class.Name + " instance>"
	case KindNative:
		return "<built-in function " + v.Native().Name + ">"
	case KindSuper:
		return "<super>"
	case KindStop:
		return "StopIteration"
	}
	return "<unknown>"
}

// stringify converts a value for print and str(): instances try __str__,
// then __repr__; containers render their elements with reprify.
func (vm *VM) stringify(v Value) (string, *RuntimeErr) {
	if v.IsInstance() {
		if s, ok, err := vm.instanceDunderString(v, "__str__"); ok || err != nil {
			return s, err
		}
		if s, ok, err := vm.instanceDunderString(v, "__repr__"); ok || err != nil {
			return s, err
		}
		return display(v, nil), nil
	}
	return vm.renderContainer(v, false)
}

// reprify converts a value for repr() and container element display:
// instances try __repr__ only; strings come back quoted.
func (vm *VM) reprify(v Value) (string, *RuntimeErr) {
	if v.IsInstance() {
		if s, ok, err := vm.instanceDunderString(v, "__repr__"); ok || err != nil {
			return s, err
		}
		return display(v, nil), nil
	}
	if v.IsStr() {
		return "'" + v.Str() + "'", nil
	}
	return vm.renderContainer(v, true)
}

// renderContainer renders lists and dicts with re-entrant element reprs and
// every other non-instance kind directly.
func (vm *VM) renderContainer(v Value, quoted bool) (string, *RuntimeErr) {
	switch v.Kind() {
	case KindList:
		// Snapshot before re-entry: __repr__ may mutate the list.
		elems := append([]Value(nil), v.List().Elems...)
		parts := make([]string, len(elems))
		for i, e := range elems {
			s, err := vm.reprify(e)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case KindDict:
		d := v.Dict()
		keys := append([]string(nil), d.Keys()...)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			val, ok := d.Get(k)
			if !ok {
				continue
			}
			s, err := vm.reprify(val)
			if err != nil {
				return "", err
			}
			parts = append(parts, "'"+k+"': "+s)
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	}
	return display(v, nil), nil
}

// instanceDunderString calls the named zero-argument dunder on an instance,
// expecting a string back. Reports ok=false when the class chain does not
// define the method.
func (vm *VM) instanceDunderString(v Value, name string) (string, bool, *RuntimeErr) {
	method, ok := v.Instance().Class.ResolveMethod(name)
	if !ok {
		return "", false, nil
	}
	result, err := vm.callFunction(FromBound(&BoundMethod{Receiver: v, Method: method}), nil)
	if err != nil {
		return "", true, err
	}
	if !result.IsStr() {
		return "", true, errf(TypeError, "%s returned non-string (type '%s')", name, result.Kind())
	}
	return result.Str(), true, nil
}

// printValue pops, converts, and writes one value plus a suffix.
func (vm *VM) printValue(suffix string) *RuntimeErr {
	s, err := vm.stringify(vm.pop())
	if err != nil {
		return err
	}
	vm.write(s + suffix)
	return nil
}

// write sends text to the VM's output.
func (vm *VM) write(s string) {
	io.WriteString(vm.out, s)
}
