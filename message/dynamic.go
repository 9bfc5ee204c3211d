package message

import "fmt"

// The functions in this file address fields by descriptor rather than by
// Go type. They back the wire codec and other reflective callers.

func scalarSingular(d *Descriptor, num int32) *FieldDesc {
	f := d.mustField(num)
	if !f.singular() || f.Kind == MessageKind {
		panic(fmt.Errorf("%w: %v is not a singular non-message field", ErrKindMismatch, f))
	}
	return f
}

func listField(d *Descriptor, num int32) *FieldDesc {
	f := d.mustField(num)
	if f.Label != LabelRepeated {
		panic(fmt.Errorf("%w: %v is not a repeated field", ErrKindMismatch, f))
	}
	return f
}

func mapFieldAny(d *Descriptor, num int32) *FieldDesc {
	f := d.mustField(num)
	if f.Label != LabelMap {
		panic(fmt.Errorf("%w: %v is not a map field", ErrKindMismatch, f))
	}
	return f
}

// GetAny returns the value of singular field num boxed in its Go type.
func GetAny(v View, num int32) any {
	f := scalarSingular(v.st.desc, num)
	v.read()
	return anyValue(v.st, f)
}

// SetAny stores val into singular field num. The dynamic type of val must
// be the Go type of the field's kind.
func SetAny(m Mut, num int32, val any) error {
	f := scalarSingular(m.st.desc, num)
	m.write()
	m.st.expire(f.index)
	if !setAnyValue(m.st, m.a, f, val) {
		return fmt.Errorf("%w: %T for %v", ErrKindMismatch, val, f)
	}
	return nil
}

// ListLen returns the length of repeated field num.
func ListLen(v View, num int32) int {
	f := listField(v.st.desc, num)
	v.read()
	if l := v.st.list(f); l != nil {
		return l.length()
	}
	return 0
}

// ListAt returns element i of repeated field num. Message elements are
// returned as a View.
func ListAt(v View, num int32, i int) any {
	f := listField(v.st.desc, num)
	v.read()
	l := v.st.list(f)
	if l == nil || i < 0 || i >= l.length() {
		panic(fmt.Errorf("%w: %d in %v", ErrIndexOutOfRange, i, f))
	}
	e := l.at(i)
	if st, ok := e.(*storage); ok {
		return View{st: st, borrow: v.derived()}
	}
	return e
}

// AppendAny appends val to repeated non-message field num. Use
// Mut.Messages to append to a repeated message field.
func AppendAny(m Mut, num int32, val any) error {
	f := listField(m.st.desc, num)
	m.write()
	m.st.expire(f.index)
	if f.Kind == MessageKind {
		return fmt.Errorf("%w: %v holds messages", ErrKindMismatch, f)
	}
	l := m.st.lists[f.side]
	if l == nil {
		l = newList(f)
		m.st.lists[f.side] = l
	}
	if !l.appendAny(m.a, val) {
		return fmt.Errorf("%w: %T for %v", ErrKindMismatch, val, f)
	}
	return nil
}

// RangeMap calls fn for each entry of map field num in ascending key order
// until fn returns false. Message values are passed as a View.
func RangeMap(v View, num int32, fn func(k, val any) bool) {
	f := mapFieldAny(v.st.desc, num)
	v.read()
	s := v.st.mapAt(f)
	if s == nil {
		return
	}
	s.rangeAny(func(k, val any) bool {
		if st, ok := val.(*storage); ok {
			val = View{st: st, borrow: v.derived()}
		}
		return fn(k, val)
	})
}

func (m Mut) materializeMap(f *FieldDesc) mapStore {
	s := m.st.maps[f.side]
	if s == nil {
		s = newMapStore(f)
		m.st.maps[f.side] = s
	}
	return s
}

// MapSetAny inserts or replaces an entry of map field num with non-message
// values.
func MapSetAny(m Mut, num int32, k, val any) error {
	f := mapFieldAny(m.st.desc, num)
	m.write()
	m.st.expire(f.index)
	if f.Kind == MessageKind {
		return fmt.Errorf("%w: %v holds messages", ErrKindMismatch, f)
	}
	if !m.materializeMap(f).setAny(m.a, k, val) {
		return fmt.Errorf("%w: %T => %T for %v", ErrKindMismatch, k, val, f)
	}
	return nil
}

// MapInsertMessage returns the message stored under k in map field num,
// inserting an empty one first if k is absent.
func MapInsertMessage(m Mut, num int32, k any) (Mut, error) {
	f := mapFieldAny(m.st.desc, num)
	m.write()
	mm, ok := m.materializeMap(f).(messageInserter)
	if !ok {
		return Mut{}, fmt.Errorf("%w: %v does not hold messages", ErrKindMismatch, f)
	}
	st, ok := mm.insertAny(m.a, k)
	if !ok {
		return Mut{}, fmt.Errorf("%w: key %T for %v", ErrKindMismatch, k, f)
	}
	return Mut{st: st, a: m.a, borrow: m.claim(m.st, f.index).claim(st, st.self())}, nil
}
