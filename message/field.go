package message

import (
	"fmt"

	"github.com/pavanmanishd/protoarena/arena"
)

// Scalar is the set of Go types stored in fixed-size slots. Enums use int32.
type Scalar interface {
	bool | int32 | int64 | uint32 | uint64 | float32 | float64
}

// Value is the set of Go types a non-message field can hold.
type Value interface {
	Scalar | string | []byte
}

func mismatch[T any](f *FieldDesc) error {
	var zero T
	return fmt.Errorf("%w: %v accessed as %T", ErrKindMismatch, f, zero)
}

func singularField[T Value](d *Descriptor, num int32) *FieldDesc {
	f := d.mustField(num)
	if !f.singular() || !accepts[T](f.Kind) {
		panic(mismatch[T](f))
	}
	return f
}

// FieldView is a read-only proxy for a singular field.
type FieldView[T Value] struct {
	st *storage
	f  *FieldDesc
	borrow
}

// Get returns the field value, or its default when unset. A bytes value
// points into the message's arena and must not be modified; a bytes
// default is a fresh copy.
func (v FieldView[T]) Get() T {
	v.read()
	return getValue[T](v.st, v.f)
}

// Has reports whether the field is set.
func (v FieldView[T]) Has() bool {
	v.read()
	return v.st.has(v.f)
}

// Optional returns the value together with its presence.
func (v FieldView[T]) Optional() Optional[T] {
	v.read()
	return Optional[T]{value: getValue[T](v.st, v.f), present: v.st.has(v.f)}
}

// Desc returns the descriptor of the field.
func (v FieldView[T]) Desc() *FieldDesc { return v.f }

// AsView reborrows v as a View of its own that must be ended with Done.
func (v FieldView[T]) AsView() FieldView[T] {
	v.borrow = v.derived()
	return v
}

// FieldMut is a read-write proxy for a singular field.
type FieldMut[T Value] struct {
	st *storage
	a  *arena.Arena
	f  *FieldDesc
	borrow
}

// Get returns the field value, or its default when unset.
func (m FieldMut[T]) Get() T {
	m.read()
	return getValue[T](m.st, m.f)
}

// Has reports whether the field is set.
func (m FieldMut[T]) Has() bool {
	m.read()
	return m.st.has(m.f)
}

// Optional returns the value together with its presence.
func (m FieldMut[T]) Optional() Optional[T] {
	m.read()
	return Optional[T]{value: getValue[T](m.st, m.f), present: m.st.has(m.f)}
}

// Set stores v and marks the field present. String and bytes values are
// copied into the message's arena.
func (m FieldMut[T]) Set(v T) {
	m.write()
	setValue(m.st, m.a, m.f, v)
}

// Clear resets the field to unset.
func (m FieldMut[T]) Clear() {
	m.write()
	m.st.clearField(m.f)
}

// Desc returns the descriptor of the field.
func (m FieldMut[T]) Desc() *FieldDesc { return m.f }

// AsView reborrows the field for reading. m cannot be written until the
// returned view is Done.
func (m FieldMut[T]) AsView() FieldView[T] {
	return FieldView[T]{st: m.st, f: m.f, borrow: m.asView()}
}

// AsMut reborrows the field for writing. m cannot be used until the
// returned proxy is Done.
func (m FieldMut[T]) AsMut() FieldMut[T] {
	m.borrow = m.asMut()
	return m
}

// IntoView converts m into a view of the same borrow. m must not be used
// afterwards.
func (m FieldMut[T]) IntoView() FieldView[T] {
	return FieldView[T]{st: m.st, f: m.f, borrow: m.intoView()}
}

func (m FieldMut[T]) IntoMut() FieldMut[T] { return m }

// Field returns a read proxy for singular field num of v. It panics with
// ErrKindMismatch when T is not the Go type of the field.
func Field[T Value](v View, num int32) FieldView[T] {
	f := singularField[T](v.st.desc, num)
	v.read()
	return FieldView[T]{st: v.st, f: f, borrow: v.derived()}
}

// MutField returns a write proxy for singular field num of m. Earlier
// proxies for the field expire.
func MutField[T Value](m Mut, num int32) FieldMut[T] {
	f := singularField[T](m.st.desc, num)
	m.write()
	return FieldMut[T]{st: m.st, a: m.a, f: f, borrow: m.claim(m.st, f.index)}
}

// Get is shorthand for Field[T](v, num).Get().
func Get[T Value](v View, num int32) T {
	f := singularField[T](v.st.desc, num)
	v.read()
	return getValue[T](v.st, f)
}

// Set is shorthand for MutField[T](m, num).Set(val).
func Set[T Value](m Mut, num int32, val T) {
	f := singularField[T](m.st.desc, num)
	m.write()
	m.st.expire(f.index)
	setValue(m.st, m.a, f, val)
}
