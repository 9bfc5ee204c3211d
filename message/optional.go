package message

import "fmt"

// Optional is a field value read together with its presence. An unset
// Optional still carries the field's default.
type Optional[T Value] struct {
	value   T
	present bool
}

// Some returns a set Optional holding v.
func Some[T Value](v T) Optional[T] { return Optional[T]{value: v, present: true} }

// None returns an unset Optional carrying def.
func None[T Value](def T) Optional[T] { return Optional[T]{value: def} }

// IsSet reports whether o holds a value.
func (o Optional[T]) IsSet() bool { return o.present }

// Value returns the value (the default when unset) and whether it was set.
func (o Optional[T]) Value() (T, bool) { return o.value, o.present }

// Or returns the value if set and def otherwise.
func (o Optional[T]) Or(def T) T {
	if o.present {
		return o.value
	}
	return def
}

func (o Optional[T]) String() string {
	if !o.present {
		return fmt.Sprintf("None(%v)", o.value)
	}
	return fmt.Sprintf("Some(%v)", o.value)
}

// FieldEntry is a mutable handle on a field with explicit presence. Its
// state is re-read on every call, so an entry stays valid across Set and
// Clear.
type FieldEntry[T Value] struct {
	m FieldMut[T]
}

// Entry returns the presence-aware handle on field num of m. It panics with
// ErrNoPresence when the field does not track presence.
func Entry[T Value](m Mut, num int32) FieldEntry[T] {
	fm := MutField[T](m, num)
	if fm.f.hasbit < 0 {
		panic(fmt.Errorf("%w: %v", ErrNoPresence, fm.f))
	}
	return FieldEntry[T]{m: fm}
}

// IsSet reports whether the field is present.
func (e FieldEntry[T]) IsSet() bool { return e.m.Has() }

// Get returns the value when present and the default otherwise.
func (e FieldEntry[T]) Get() T { return e.m.Get() }

// Present returns the present variant, or false when the field is unset.
func (e FieldEntry[T]) Present() (PresentField[T], bool) {
	if !e.m.Has() {
		return PresentField[T]{}, false
	}
	return PresentField[T](e), true
}

// Absent returns the absent variant, or false when the field is set.
func (e FieldEntry[T]) Absent() (AbsentField[T], bool) {
	if e.m.Has() {
		return AbsentField[T]{}, false
	}
	return AbsentField[T](e), true
}

// Set stores v and returns the present variant.
func (e FieldEntry[T]) Set(v T) PresentField[T] {
	e.m.Set(v)
	return PresentField[T](e)
}

// OrDefault sets an unset field to its default and returns the present
// variant either way.
func (e FieldEntry[T]) OrDefault() PresentField[T] {
	if p, ok := e.Present(); ok {
		return p
	}
	return AbsentField[T](e).SetDefault()
}

// Clear unsets the field.
func (e FieldEntry[T]) Clear() AbsentField[T] {
	e.m.Clear()
	return AbsentField[T](e)
}

func (e FieldEntry[T]) Optional() Optional[T] { return e.m.Optional() }

// PresentField is a set field. Set overwrites the value without touching
// presence.
type PresentField[T Value] struct {
	m FieldMut[T]
}

// Get returns the field value.
func (p PresentField[T]) Get() T { return p.m.Get() }

// Set replaces the field value; the field stays present.
func (p PresentField[T]) Set(v T) { p.m.Set(v) }

// Clear unsets the field and returns the absent variant.
func (p PresentField[T]) Clear() AbsentField[T] {
	p.m.Clear()
	return AbsentField[T](p)
}

func (p PresentField[T]) AsView() FieldView[T] { return p.m.AsView() }

// Entry converts p back to an entry.
func (p PresentField[T]) Entry() FieldEntry[T] { return FieldEntry[T](p) }

// AbsentField is an unset field.
type AbsentField[T Value] struct {
	m FieldMut[T]
}

// Default returns the value reads observe while the field is unset.
func (a AbsentField[T]) Default() T {
	a.m.read()
	return defaultOf[T](a.m.f)
}

// Set stores v and marks the field present.
func (a AbsentField[T]) Set(v T) PresentField[T] {
	a.m.Set(v)
	return PresentField[T](a)
}

// SetDefault marks the field present with its default value.
func (a AbsentField[T]) SetDefault() PresentField[T] {
	return a.Set(a.Default())
}

func (a AbsentField[T]) Entry() FieldEntry[T] { return FieldEntry[T](a) }
