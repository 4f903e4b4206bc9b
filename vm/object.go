package vm

// ---------------------------------------------------------------------------
// Heap objects
// ---------------------------------------------------------------------------

// List is a mutable ordered sequence. All Values wrapping the same List
// alias it, so in-place mutation is visible everywhere.
type List struct {
	Elems []Value
}

// NewList creates a list from the given elements. The slice is adopted, not
// copied.
func NewList(elems []Value) *List {
	return &List{Elems: elems}
}

// Dict is a mutable string-keyed mapping that preserves insertion order.
type Dict struct {
	keys    []string
	entries map[string]Value
}

// NewDict creates an empty dict.
func NewDict() *Dict {
	return &Dict{entries: make(map[string]Value)}
}

// Get returns the value for key, and whether it was present.
func (d *Dict) Get(key string) (Value, bool) {
	v, ok := d.entries[key]
	return v, ok
}

// Set inserts or updates a key. New keys append to the iteration order.
func (d *Dict) Set(key string, v Value) {
	if _, ok := d.entries[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.entries[key] = v
}

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// Keys returns the keys in insertion order. The slice is shared; callers
// must not mutate it.
func (d *Dict) Keys() []string { return d.keys }

// Range is a lazy integer range. Step is never zero.
type Range struct {
	Start, Stop, Step int64
}

// Len returns the number of values the range produces.
func (r *Range) Len() int64 {
	if r.Step > 0 {
		if r.Start >= r.Stop {
			return 0
		}
		return (r.Stop - r.Start + r.Step - 1) / r.Step
	}
	if r.Start <= r.Stop {
		return 0
	}
	return (r.Start - r.Stop - r.Step - 1) / -r.Step
}

// At returns the i-th value. The caller guarantees 0 <= i < Len().
func (r *Range) At(i int64) int64 {
	return r.Start + i*r.Step
}

// Contains reports whether n is produced by the range, by arithmetic rather
// than enumeration.
func (r *Range) Contains(n int64) bool {
	if r.Step > 0 {
		if n < r.Start || n >= r.Stop {
			return false
		}
	} else {
		if n > r.Start || n <= r.Stop {
			return false
		}
	}
	return (n-r.Start)%r.Step == 0
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// UpvalueDesc describes how a closure captures one variable: from the
// enclosing frame's locals (IsLocal) or from the enclosing closure's own
// upvalues.
type UpvalueDesc struct {
	IsLocal bool
	Index   uint16
}

// Proto is the immutable compile-time function template. The compiler emits
// one Proto constant per def; the VM instantiates Closures from it.
type Proto struct {
	Name     string
	Arity    int     // declared parameter count, including self for methods
	Defaults []Value // values for the trailing len(Defaults) parameters
	Chunk    *Chunk
	Upvalues []UpvalueDesc

	// Introspection metadata surfaced through __qualname__, __doc__,
	// __annotations__ and friends.
	QualName   string
	Doc        string
	ParamNames []string
	ParamTypes []string
	ReturnType string
	Module     string
}

// RequiredArgs returns the number of parameters without default values.
func (p *Proto) RequiredArgs() int {
	return p.Arity - len(p.Defaults)
}

// Upvalue is a shared mutable cell for one captured variable. While the
// captured local is still live its cell is open and reads through the VM
// stack at Location; when the owning frame exits the cell is closed and
// carries the value itself. The transition is one-way.
type Upvalue struct {
	Location int // absolute stack index while open
	Closed   Value
	IsClosed bool
}

// Closure pairs a Proto with its captured upvalue cells.
type Closure struct {
	Proto    *Proto
	Upvalues []*Upvalue

	// Owner is the class whose method table holds this closure, recorded
	// when the class is built. super() resumes method lookup at its parent.
	// Nil for plain functions.
	Owner *Class
}

// NewClosure creates a closure over the given cells. The cell count must
// match the proto's descriptor count.
func NewClosure(proto *Proto, upvalues []*Upvalue) *Closure {
	return &Closure{Proto: proto, Upvalues: upvalues}
}

// BoundMethod carries a receiver together with the callable obtained from
// its class, so `obj.m` can be passed around and called later. The callable
// is always a Closure or Native value.
type BoundMethod struct {
	Receiver Value
	Method   Value
}

// NativeFn is the signature of a host-provided builtin. It receives the VM
// so it can re-enter the interpreter (str() on an instance runs __str__) and
// inspect frames (super() recovers self).
type NativeFn func(vm *VM, args []Value) (Value, error)

// Native is a host-provided callable with an inclusive arity range.
type Native struct {
	Name    string
	MinArgs int
	MaxArgs int
	Fn      NativeFn
}

// ---------------------------------------------------------------------------
// Classes
// ---------------------------------------------------------------------------

// Class holds a method table, an optional parent, and class-level
// attributes. Both tables preserve insertion order.
type Class struct {
	Name      string
	methods   map[string]Value // values are always Closures
	methodOrd []string
	attrs     map[string]Value
	attrOrd   []string
	Parent    *Class
}

// NewClass creates a class with no methods and no parent.
func NewClass(name string) *Class {
	return &Class{
		Name:    name,
		methods: make(map[string]Value),
		attrs:   make(map[string]Value),
	}
}

// AddMethod installs a method closure under name.
func (c *Class) AddMethod(name string, closure Value) {
	if _, ok := c.methods[name]; !ok {
		c.methodOrd = append(c.methodOrd, name)
	}
	c.methods[name] = closure
}

// OwnMethod looks up a method in this class only.
func (c *Class) OwnMethod(name string) (Value, bool) {
	m, ok := c.methods[name]
	return m, ok
}

// ResolveMethod walks the class chain and returns the first method found.
func (c *Class) ResolveMethod(name string) (Value, bool) {
	for cls := c; cls != nil; cls = cls.Parent {
		if m, ok := cls.methods[name]; ok {
			return m, true
		}
	}
	return Nil, false
}

// MethodNames returns this class's own method names in definition order.
func (c *Class) MethodNames() []string { return c.methodOrd }

// SetAttr installs or updates a class-level attribute.
func (c *Class) SetAttr(name string, v Value) {
	if _, ok := c.attrs[name]; !ok {
		c.attrOrd = append(c.attrOrd, name)
	}
	c.attrs[name] = v
}

// Attr looks up a class-level attribute in this class only.
func (c *Class) Attr(name string) (Value, bool) {
	v, ok := c.attrs[name]
	return v, ok
}

// Instance is an object with a class pointer and an insertion-ordered field
// map.
type Instance struct {
	Class  *Class
	fields map[string]Value
	order  []string
}

// NewInstance creates a field-less instance of class.
func NewInstance(class *Class) *Instance {
	return &Instance{Class: class, fields: make(map[string]Value)}
}

// Field returns the named field, and whether it exists.
func (i *Instance) Field(name string) (Value, bool) {
	v, ok := i.fields[name]
	return v, ok
}

// SetField inserts or updates a field, preserving insertion order.
func (i *Instance) SetField(name string, v Value) {
	if _, ok := i.fields[name]; !ok {
		i.order = append(i.order, name)
	}
	i.fields[name] = v
}

// FieldNames returns the field names in insertion order.
func (i *Instance) FieldNames() []string { return i.order }

// SuperProxy is the transient value super() returns: attribute lookups
// resume from Start (the parent of the defining class) and bind to Receiver.
type SuperProxy struct {
	Receiver Value
	Start    *Class
}
