package message

import (
	"fmt"
	"slices"

	"google.golang.org/protobuf/encoding/protowire"
)

// Kind is the type of a field's value (or of a repeated field's elements,
// or of a map field's values).
type Kind uint8

const (
	InvalidKind Kind = iota
	BoolKind
	EnumKind
	Int32Kind
	Sint32Kind
	Sfixed32Kind
	Uint32Kind
	Fixed32Kind
	Int64Kind
	Sint64Kind
	Sfixed64Kind
	Uint64Kind
	Fixed64Kind
	FloatKind
	DoubleKind
	StringKind
	BytesKind
	MessageKind
)

var kindNames = [...]string{
	InvalidKind:  "invalid",
	BoolKind:     "bool",
	EnumKind:     "enum",
	Int32Kind:    "int32",
	Sint32Kind:   "sint32",
	Sfixed32Kind: "sfixed32",
	Uint32Kind:   "uint32",
	Fixed32Kind:  "fixed32",
	Int64Kind:    "int64",
	Sint64Kind:   "sint64",
	Sfixed64Kind: "sfixed64",
	Uint64Kind:   "uint64",
	Fixed64Kind:  "fixed64",
	FloatKind:    "float",
	DoubleKind:   "double",
	StringKind:   "string",
	BytesKind:    "bytes",
	MessageKind:  "message",
}

// String returns the lower-case protobuf name of k.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsScalar reports whether values of kind k live in a fixed-size slot.
func (k Kind) IsScalar() bool {
	return k >= BoolKind && k <= DoubleKind
}

func (k Kind) valid() bool {
	return k > InvalidKind && k <= MessageKind
}

func (k Kind) validMapKey() bool {
	switch k {
	case BoolKind, Int32Kind, Sint32Kind, Sfixed32Kind, Uint32Kind, Fixed32Kind,
		Int64Kind, Sint64Kind, Sfixed64Kind, Uint64Kind, Fixed64Kind, StringKind:
		return true
	}
	return false
}

// Label is the cardinality of a field.
type Label uint8

const (
	// LabelImplicit fields have no presence: a field is set iff it is not
	// the zero value.
	LabelImplicit Label = iota
	// LabelOptional fields track presence explicitly.
	LabelOptional
	LabelRepeated
	LabelMap
)

func (l Label) String() string {
	switch l {
	case LabelImplicit:
		return "implicit"
	case LabelOptional:
		return "optional"
	case LabelRepeated:
		return "repeated"
	case LabelMap:
		return "map"
	}
	return fmt.Sprintf("Label(%d)", uint8(l))
}

// FieldDesc describes one field of a message type.
type FieldDesc struct {
	Number int32
	Name   string
	Kind   Kind
	Label  Label

	// MapKey is the key kind of a LabelMap field. Kind is then the value kind.
	MapKey Kind
	// Message is the type of a MessageKind field.
	Message *Descriptor
	// Default is returned for an unset LabelOptional scalar, string or bytes
	// field. Its dynamic type must match Kind (int32 for EnumKind, []byte for
	// BytesKind and so on).
	Default any
	// Unpacked selects the one-record-per-element encoding for a repeated
	// scalar field.
	Unpacked bool

	index  int
	offset int // slot offset in storage.data
	hasbit int // -1 when presence is not tracked by a bit
	side   int // index into the side table for the field's label and kind
}

// Index is the position of f in its descriptor, in field number order.
func (f *FieldDesc) Index() int { return f.index }

// IsList reports whether f is a repeated field.
func (f *FieldDesc) IsList() bool { return f.Label == LabelRepeated }

// IsMap reports whether f is a map field.
func (f *FieldDesc) IsMap() bool { return f.Label == LabelMap }

// HasPresence reports whether f distinguishes "unset" from "set to zero".
func (f *FieldDesc) HasPresence() bool {
	return f.Label == LabelOptional || (f.Kind == MessageKind && f.Label == LabelImplicit)
}

func (f *FieldDesc) singular() bool {
	return f.Label == LabelImplicit || f.Label == LabelOptional
}

// String formats f as "number:name(label kind)" for diagnostics.
func (f *FieldDesc) String() string {
	return fmt.Sprintf("%d:%s(%s %s)", f.Number, f.Name, f.Label, f.Kind)
}

// maxStorageSize bounds the per-message data block; the shared zero block
// backing default instances has this size.
const maxStorageSize = 32 << 10

const slotSize = 8

// Descriptor is the layout of a message type. A Descriptor is built once,
// before any message of its type exists, and is immutable afterwards.
type Descriptor struct {
	name    string
	fields  []FieldDesc
	byNum   map[int32]int
	defined bool

	size   int // bytes of hasbits plus scalar slots
	nbufs  int
	nsubs  int
	nlists int
	nmaps  int

	empty *storage // read-only default instance
}

// Declare returns an undefined descriptor. Use Define to add its fields;
// splitting the two steps lets message types refer to each other.
func Declare(name string) *Descriptor {
	return &Descriptor{name: name}
}

// NewDescriptor declares and defines a message type in one step.
func NewDescriptor(name string, fields ...FieldDesc) (*Descriptor, error) {
	d := Declare(name)
	if err := d.Define(fields...); err != nil {
		return nil, err
	}
	return d, nil
}

// MustDescriptor is like NewDescriptor but panics on error.
func MustDescriptor(name string, fields ...FieldDesc) *Descriptor {
	d, err := NewDescriptor(name, fields...)
	if err != nil {
		panic(err)
	}
	return d
}

// Define validates fields and computes the storage layout of d.
func (d *Descriptor) Define(fields ...FieldDesc) error {
	if d.defined {
		return fmt.Errorf("%w: %s already defined", ErrInvalidDescriptor, d.name)
	}
	fs := slices.Clone(fields)
	slices.SortFunc(fs, func(a, b FieldDesc) int { return int(a.Number) - int(b.Number) })

	byNum := make(map[int32]int, len(fs))
	nbits := 0
	for i := range fs {
		f := &fs[i]
		if err := validateField(f); err != nil {
			return fmt.Errorf("%w: %s field %d: %v", ErrInvalidDescriptor, d.name, f.Number, err)
		}
		if _, dup := byNum[f.Number]; dup {
			return fmt.Errorf("%w: %s: duplicate field number %d", ErrInvalidDescriptor, d.name, f.Number)
		}
		byNum[f.Number] = i
		if f.Label == LabelOptional && f.Kind != MessageKind {
			nbits++
		}
	}

	off := alignSlot((nbits + 7) / 8)
	bit := 0
	for i := range fs {
		f := &fs[i]
		f.index, f.offset, f.hasbit, f.side = i, -1, -1, -1
		if f.Label == LabelOptional && f.Kind != MessageKind {
			f.hasbit = bit
			bit++
		}
		switch {
		case f.Label == LabelRepeated:
			f.side = d.nlists
			d.nlists++
		case f.Label == LabelMap:
			f.side = d.nmaps
			d.nmaps++
		case f.Kind == MessageKind:
			f.side = d.nsubs
			d.nsubs++
		case f.Kind == StringKind || f.Kind == BytesKind:
			f.side = d.nbufs
			d.nbufs++
		default:
			f.offset = off
			off += slotSize
		}
	}
	if off > maxStorageSize {
		return fmt.Errorf("%w: %s: layout of %d bytes exceeds %d", ErrInvalidDescriptor, d.name, off, maxStorageSize)
	}

	d.fields, d.byNum, d.size = fs, byNum, off
	d.empty = &storage{desc: d, data: zeroBlock()[:off:off]}
	d.defined = true
	return nil
}

func validateField(f *FieldDesc) error {
	switch {
	case f.Number <= 0:
		return fmt.Errorf("field number must be positive")
	case protowire.Number(f.Number) > protowire.MaxValidNumber:
		return fmt.Errorf("field number %d exceeds %d", f.Number, protowire.MaxValidNumber)
	case !protowire.Number(f.Number).IsValid():
		return fmt.Errorf("field number %d is reserved", f.Number)
	case !f.Kind.valid():
		return fmt.Errorf("invalid kind %s", f.Kind)
	case f.Label > LabelMap:
		return fmt.Errorf("invalid label %s", f.Label)
	case (f.Kind == MessageKind) != (f.Message != nil):
		return fmt.Errorf("message type must be set exactly for message kind")
	case f.Label == LabelMap && !f.MapKey.validMapKey():
		return fmt.Errorf("invalid map key kind %s", f.MapKey)
	case f.Label != LabelMap && f.MapKey != InvalidKind:
		return fmt.Errorf("map key kind set on a non-map field")
	}
	if f.Default != nil {
		if f.Label != LabelOptional || f.Kind == MessageKind {
			return fmt.Errorf("default only applies to optional scalar, string and bytes fields")
		}
		if !goTypeMatches(f.Default, f.Kind) {
			return fmt.Errorf("default %T does not match kind %s", f.Default, f.Kind)
		}
	}
	return nil
}

func alignSlot(n int) int {
	return (n + slotSize - 1) &^ (slotSize - 1)
}

// Name returns the message type name.
func (d *Descriptor) Name() string { return d.name }

// NumFields returns the number of fields of d.
func (d *Descriptor) NumFields() int { return len(d.fields) }

// Field returns the i-th field in field number order.
func (d *Descriptor) Field(i int) *FieldDesc { return &d.fields[i] }

// FieldByNumber returns the field with the given number, or nil.
func (d *Descriptor) FieldByNumber(num int32) *FieldDesc {
	if i, ok := d.byNum[num]; ok {
		return &d.fields[i]
	}
	return nil
}

func (d *Descriptor) mustField(num int32) *FieldDesc {
	if !d.defined {
		panic(fmt.Errorf("%w: %s is declared but not defined", ErrInvalidDescriptor, d.name))
	}
	f := d.FieldByNumber(num)
	if f == nil {
		panic(fmt.Errorf("%w: %s has no field %d", ErrUnknownField, d.name, num))
	}
	return f
}

// goTypeMatches reports whether the dynamic type of v is the Go type used
// for values of kind k.
func goTypeMatches(v any, k Kind) bool {
	switch v.(type) {
	case bool:
		return k == BoolKind
	case int32:
		return k == EnumKind || k == Int32Kind || k == Sint32Kind || k == Sfixed32Kind
	case uint32:
		return k == Uint32Kind || k == Fixed32Kind
	case int64:
		return k == Int64Kind || k == Sint64Kind || k == Sfixed64Kind
	case uint64:
		return k == Uint64Kind || k == Fixed64Kind
	case float32:
		return k == FloatKind
	case float64:
		return k == DoubleKind
	case string:
		return k == StringKind
	case []byte:
		return k == BytesKind
	}
	return false
}

// accepts reports whether T is the Go type for kind k.
func accepts[T any](k Kind) bool {
	var zero T
	return goTypeMatches(any(zero), k)
}
