// Package dist implements the serialized form of compiled chunks. A chunk
// is flattened into CBOR with canonical encoding, so equal chunks serialize
// to equal bytes; the bytecode cache stores these blobs keyed by source
// hash.
package dist

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/pyrite-lang/pyrite/vm"
)

// cborEncMode uses canonical options for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("dist: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// valueKind tags a serialized constant. Only the kinds the compiler puts in
// a constants pool are representable.
type valueKind uint8

const (
	kindNil valueKind = iota
	kindBool
	kindInt
	kindFloat
	kindStr
	kindProto
)

// wireValue is the serialized form of a constant-pool Value.
type wireValue struct {
	Kind  valueKind  `cbor:"1,keyasint"`
	Bool  bool       `cbor:"2,keyasint,omitempty"`
	Int   int64      `cbor:"3,keyasint,omitempty"`
	Float float64    `cbor:"4,keyasint,omitempty"`
	Str   string     `cbor:"5,keyasint,omitempty"`
	Proto *wireProto `cbor:"6,keyasint,omitempty"`
}

// wireUpvalue is the serialized form of an upvalue descriptor.
type wireUpvalue struct {
	IsLocal bool   `cbor:"1,keyasint,omitempty"`
	Index   uint16 `cbor:"2,keyasint"`
}

// wireProto is the serialized form of a function prototype.
type wireProto struct {
	Name       string        `cbor:"1,keyasint"`
	Arity      int           `cbor:"2,keyasint"`
	Defaults   []wireValue   `cbor:"3,keyasint,omitempty"`
	Chunk      *wireChunk    `cbor:"4,keyasint"`
	Upvalues   []wireUpvalue `cbor:"5,keyasint,omitempty"`
	QualName   string        `cbor:"6,keyasint,omitempty"`
	Doc        string        `cbor:"7,keyasint,omitempty"`
	ParamNames []string      `cbor:"8,keyasint,omitempty"`
	ParamTypes []string      `cbor:"9,keyasint,omitempty"`
	ReturnType string        `cbor:"10,keyasint,omitempty"`
	Module     string        `cbor:"11,keyasint,omitempty"`
}

// wireChunk is the serialized form of a bytecode chunk.
type wireChunk struct {
	Code      []byte      `cbor:"1,keyasint"`
	Constants []wireValue `cbor:"2,keyasint,omitempty"`
	Lines     []int       `cbor:"3,keyasint,omitempty"`
}

// MarshalChunk serializes a compiled chunk to CBOR bytes.
func MarshalChunk(c *vm.Chunk) ([]byte, error) {
	wc, err := toWireChunk(c)
	if err != nil {
		return nil, err
	}
	return cborEncMode.Marshal(wc)
}

// UnmarshalChunk deserializes a chunk from CBOR bytes.
func UnmarshalChunk(data []byte) (*vm.Chunk, error) {
	var wc wireChunk
	if err := cbor.Unmarshal(data, &wc); err != nil {
		return nil, fmt.Errorf("dist: unmarshal chunk: %w", err)
	}
	return fromWireChunk(&wc)
}

func toWireChunk(c *vm.Chunk) (*wireChunk, error) {
	wc := &wireChunk{Code: c.Code, Lines: c.Lines}
	for _, v := range c.Constants {
		wv, err := toWireValue(v)
		if err != nil {
			return nil, err
		}
		wc.Constants = append(wc.Constants, wv)
	}
	return wc, nil
}

func toWireValue(v vm.Value) (wireValue, error) {
	switch v.Kind() {
	case vm.KindNil:
		return wireValue{Kind: kindNil}, nil
	case vm.KindBool:
		return wireValue{Kind: kindBool, Bool: v.Bool()}, nil
	case vm.KindInt:
		return wireValue{Kind: kindInt, Int: v.Int()}, nil
	case vm.KindFloat:
		return wireValue{Kind: kindFloat, Float: v.Float()}, nil
	case vm.KindStr:
		return wireValue{Kind: kindStr, Str: v.Str()}, nil
	case vm.KindProto:
		wp, err := toWireProto(v.Proto())
		if err != nil {
			return wireValue{}, err
		}
		return wireValue{Kind: kindProto, Proto: wp}, nil
	}
	return wireValue{}, fmt.Errorf("dist: constant of kind '%s' is not serializable", v.Kind())
}

func toWireProto(p *vm.Proto) (*wireProto, error) {
	wc, err := toWireChunk(p.Chunk)
	if err != nil {
		return nil, err
	}
	wp := &wireProto{
		Name:       p.Name,
		Arity:      p.Arity,
		Chunk:      wc,
		QualName:   p.QualName,
		Doc:        p.Doc,
		ParamNames: p.ParamNames,
		ParamTypes: p.ParamTypes,
		ReturnType: p.ReturnType,
		Module:     p.Module,
	}
	for _, d := range p.Defaults {
		wd, err := toWireValue(d)
		if err != nil {
			return nil, err
		}
		wp.Defaults = append(wp.Defaults, wd)
	}
	for _, uv := range p.Upvalues {
		wp.Upvalues = append(wp.Upvalues, wireUpvalue{IsLocal: uv.IsLocal, Index: uv.Index})
	}
	return wp, nil
}

func fromWireChunk(wc *wireChunk) (*vm.Chunk, error) {
	c := vm.NewChunk()
	c.Code = wc.Code
	c.Lines = wc.Lines
	for _, wv := range wc.Constants {
		v, err := fromWireValue(wv)
		if err != nil {
			return nil, err
		}
		c.Constants = append(c.Constants, v)
	}
	return c, nil
}

func fromWireValue(wv wireValue) (vm.Value, error) {
	switch wv.Kind {
	case kindNil:
		return vm.Nil, nil
	case kindBool:
		return vm.FromBool(wv.Bool), nil
	case kindInt:
		return vm.FromInt(wv.Int), nil
	case kindFloat:
		return vm.FromFloat(wv.Float), nil
	case kindStr:
		return vm.FromStr(wv.Str), nil
	case kindProto:
		if wv.Proto == nil {
			return vm.Nil, fmt.Errorf("dist: prototype constant without a body")
		}
		p, err := fromWireProto(wv.Proto)
		if err != nil {
			return vm.Nil, err
		}
		return vm.FromProto(p), nil
	}
	return vm.Nil, fmt.Errorf("dist: unknown constant kind %d", wv.Kind)
}

func fromWireProto(wp *wireProto) (*vm.Proto, error) {
	if wp.Chunk == nil {
		return nil, fmt.Errorf("dist: prototype %q without a chunk", wp.Name)
	}
	chunk, err := fromWireChunk(wp.Chunk)
	if err != nil {
		return nil, err
	}
	p := &vm.Proto{
		Name:       wp.Name,
		Arity:      wp.Arity,
		Chunk:      chunk,
		QualName:   wp.QualName,
		Doc:        wp.Doc,
		ParamNames: wp.ParamNames,
		ParamTypes: wp.ParamTypes,
		ReturnType: wp.ReturnType,
		Module:     wp.Module,
	}
	for _, wd := range wp.Defaults {
		d, err := fromWireValue(wd)
		if err != nil {
			return nil, err
		}
		p.Defaults = append(p.Defaults, d)
	}
	for _, uv := range wp.Upvalues {
		p.Upvalues = append(p.Upvalues, vm.UpvalueDesc{IsLocal: uv.IsLocal, Index: uv.Index})
	}
	return p, nil
}
