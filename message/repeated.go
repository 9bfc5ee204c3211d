package message

import (
	"fmt"
	"iter"

	"github.com/pavanmanishd/protoarena/arena"
)

// list is the type-erased store of a repeated field.
type list interface {
	length() int
	at(i int) any
	appendAny(a *arena.Arena, v any) bool
	clear()
	clone(a *arena.Arena) list
}

func newList(f *FieldDesc) list {
	switch f.Kind {
	case BoolKind:
		return &repeated[bool]{}
	case EnumKind, Int32Kind, Sint32Kind, Sfixed32Kind:
		return &repeated[int32]{}
	case Uint32Kind, Fixed32Kind:
		return &repeated[uint32]{}
	case Int64Kind, Sint64Kind, Sfixed64Kind:
		return &repeated[int64]{}
	case Uint64Kind, Fixed64Kind:
		return &repeated[uint64]{}
	case FloatKind:
		return &repeated[float32]{}
	case DoubleKind:
		return &repeated[float64]{}
	case StringKind:
		return &repeated[string]{}
	case BytesKind:
		return &repeated[[]byte]{}
	case MessageKind:
		return &messageList{desc: f.Message}
	}
	panic(fmt.Errorf("%w: no list for %v", ErrKindMismatch, f))
}

// repeated stores elements of a scalar, string or bytes field. Scalar
// element arrays live in the arena; string and bytes arrays live on the Go
// heap because they hold pointers, but their payloads are arena memory.
type repeated[T Value] struct {
	elems []T
}

func isPlain[T Value]() bool {
	var zero T
	switch any(zero).(type) {
	case string, []byte:
		return false
	}
	return true
}

// intern copies the payload of a string or bytes value into a.
func intern[T Value](a *arena.Arena, v T) T {
	switch x := any(v).(type) {
	case string:
		return any(arena.AllocString(a, x)).(T)
	case []byte:
		return any(arena.CopyBytes(a, x)).(T)
	}
	return v
}

func (r *repeated[T]) reserve(a *arena.Arena, n int) {
	if n <= 0 || cap(r.elems)-len(r.elems) >= n {
		return
	}
	if isPlain[T]() {
		r.elems = arena.GrowSlice(a, r.elems, n)
		return
	}
	ns := make([]T, len(r.elems), max(len(r.elems)+n, 2*cap(r.elems), 4))
	copy(ns, r.elems)
	r.elems = ns
}

func (r *repeated[T]) push(a *arena.Arena, v T) {
	r.reserve(a, 1)
	r.elems = append(r.elems, intern(a, v))
}

func (r *repeated[T]) length() int { return len(r.elems) }

func (r *repeated[T]) at(i int) any { return r.elems[i] }

func (r *repeated[T]) appendAny(a *arena.Arena, v any) bool {
	x, ok := v.(T)
	if ok {
		r.push(a, x)
	}
	return ok
}

func (r *repeated[T]) clear() { r.elems = r.elems[:0] }

func (r *repeated[T]) clone(a *arena.Arena) list {
	c := &repeated[T]{}
	c.reserve(a, len(r.elems))
	for _, e := range r.elems {
		c.push(a, e)
	}
	return c
}

func (r *repeated[T]) size() int {
	if r == nil {
		return 0
	}
	return len(r.elems)
}

func (r *repeated[T]) get(i int) (T, bool) {
	if r == nil || i < 0 || i >= len(r.elems) {
		var zero T
		return zero, false
	}
	return r.elems[i], true
}

func (r *repeated[T]) all() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		if r == nil {
			return
		}
		for i, e := range r.elems {
			if !yield(i, e) {
				return
			}
		}
	}
}

func repeatedField[T Value](d *Descriptor, num int32) *FieldDesc {
	f := d.mustField(num)
	if f.Label != LabelRepeated || !accepts[T](f.Kind) {
		panic(mismatch[T](f))
	}
	return f
}

// Repeated returns a read proxy for repeated field num of v.
func Repeated[T Value](v View, num int32) RepeatedView[T] {
	f := repeatedField[T](v.st.desc, num)
	v.read()
	r, _ := v.st.list(f).(*repeated[T])
	return RepeatedView[T]{r: r, borrow: v.derived()}
}

// MutRepeated returns a write proxy for repeated field num of m.
func MutRepeated[T Value](m Mut, num int32) RepeatedMut[T] {
	f := repeatedField[T](m.st.desc, num)
	m.write()
	r, _ := m.st.lists[f.side].(*repeated[T])
	if r == nil {
		r = &repeated[T]{}
		m.st.lists[f.side] = r
	}
	return RepeatedMut[T]{r: r, a: m.a, borrow: m.claim(m.st, f.index)}
}

// RepeatedView is a read-only proxy for a repeated scalar, string or bytes
// field.
type RepeatedView[T Value] struct {
	r *repeated[T]
	borrow
}

// Len returns the number of elements.
func (v RepeatedView[T]) Len() int {
	v.read()
	return v.r.size()
}

// Get returns element i, or false when i is out of range.
func (v RepeatedView[T]) Get(i int) (T, bool) {
	v.read()
	return v.r.get(i)
}

// GetUnchecked returns element i. The caller guarantees 0 <= i < Len().
func (v RepeatedView[T]) GetUnchecked(i int) T {
	v.read()
	return v.r.elems[i]
}

// All yields the elements in order.
func (v RepeatedView[T]) All() iter.Seq2[int, T] {
	v.read()
	return v.r.all()
}

// Slice returns a copy of the elements.
func (v RepeatedView[T]) Slice() []T {
	v.read()
	if v.r == nil {
		return nil
	}
	return append([]T(nil), v.r.elems...)
}

func (v RepeatedView[T]) AsView() RepeatedView[T] {
	v.borrow = v.derived()
	return v
}

// RepeatedMut is a read-write proxy for a repeated scalar, string or bytes
// field.
type RepeatedMut[T Value] struct {
	r *repeated[T]
	a *arena.Arena
	borrow
}

// Len returns the number of elements.
func (m RepeatedMut[T]) Len() int {
	m.read()
	return m.r.size()
}

// Get returns element i; ok is false when i is out of range.
func (m RepeatedMut[T]) Get(i int) (T, bool) {
	m.read()
	return m.r.get(i)
}

// GetUnchecked returns element i. The caller guarantees 0 <= i < Len().
func (m RepeatedMut[T]) GetUnchecked(i int) T {
	m.read()
	return m.r.elems[i]
}

func (m RepeatedMut[T]) All() iter.Seq2[int, T] {
	m.read()
	return m.r.all()
}

// Set overwrites element i and reports whether i was in range.
func (m RepeatedMut[T]) Set(i int, v T) bool {
	m.write()
	if i < 0 || i >= len(m.r.elems) {
		return false
	}
	m.r.elems[i] = intern(m.a, v)
	return true
}

// SetUnchecked overwrites element i. The caller guarantees
// 0 <= i < Len().
func (m RepeatedMut[T]) SetUnchecked(i int, v T) {
	m.write()
	m.r.elems[i] = intern(m.a, v)
}

// Push appends v, copying string and bytes payloads into the arena.
func (m RepeatedMut[T]) Push(v T) {
	m.write()
	m.r.push(m.a, v)
}

// Extend appends vs, reserving room for all of them first.
func (m RepeatedMut[T]) Extend(vs ...T) {
	m.write()
	m.r.reserve(m.a, len(vs))
	for _, v := range vs {
		m.r.push(m.a, v)
	}
}

// ExtendSeq appends the values of seq. hint is the expected number of
// values and is reserved up front; it does not have to be exact.
func (m RepeatedMut[T]) ExtendSeq(seq iter.Seq[T], hint int) {
	m.write()
	m.r.reserve(m.a, hint)
	for v := range seq {
		m.r.push(m.a, v)
	}
}

// Reserve makes room for n more elements.
func (m RepeatedMut[T]) Reserve(n int) {
	m.write()
	m.r.reserve(m.a, n)
}

// Truncate shortens the field to n elements. It is a no-op when n >= Len().
func (m RepeatedMut[T]) Truncate(n int) {
	m.write()
	if n < 0 {
		panic(fmt.Errorf("%w: truncate to %d", ErrIndexOutOfRange, n))
	}
	if n < len(m.r.elems) {
		m.r.elems = m.r.elems[:n]
	}
}

// Clear removes every element, keeping the backing array for reuse.
func (m RepeatedMut[T]) Clear() {
	m.write()
	m.r.clear()
}

// CopyFrom replaces the contents of m with the elements of src.
func (m RepeatedMut[T]) CopyFrom(src RepeatedView[T]) {
	src.read()
	m.write()
	if src.r == m.r {
		return
	}
	m.r.clear()
	if src.r == nil {
		return
	}
	m.r.reserve(m.a, len(src.r.elems))
	for _, v := range src.r.elems {
		m.r.push(m.a, v)
	}
}

func (m RepeatedMut[T]) AsView() RepeatedView[T] {
	return RepeatedView[T]{r: m.r, borrow: m.asView()}
}

func (m RepeatedMut[T]) AsMut() RepeatedMut[T] {
	m.borrow = m.asMut()
	return m
}

// IntoView downgrades m to a View, ending its write access.
func (m RepeatedMut[T]) IntoView() RepeatedView[T] {
	return RepeatedView[T]{r: m.r, borrow: m.intoView()}
}

func (m RepeatedMut[T]) IntoMut() RepeatedMut[T] { return m }

// messageList stores the elements of a repeated message field.
type messageList struct {
	desc  *Descriptor
	elems []*storage
}

func (l *messageList) length() int { return len(l.elems) }

func (l *messageList) at(i int) any { return l.elems[i] }

func (l *messageList) appendAny(*arena.Arena, any) bool { return false }

func (l *messageList) clear() {
	clear(l.elems)
	l.elems = l.elems[:0]
}

func (l *messageList) clone(a *arena.Arena) list {
	c := &messageList{desc: l.desc, elems: make([]*storage, len(l.elems))}
	for i, e := range l.elems {
		c.elems[i] = cloneStorage(a, e)
	}
	return c
}

func (l *messageList) size() int {
	if l == nil {
		return 0
	}
	return len(l.elems)
}

func messageListField(d *Descriptor, num int32) *FieldDesc {
	f := d.mustField(num)
	if f.Label != LabelRepeated || f.Kind != MessageKind {
		panic(fmt.Errorf("%w: %v is not a repeated message field", ErrKindMismatch, f))
	}
	return f
}

// Messages returns a read proxy for repeated message field num.
func (v View) Messages(num int32) RepeatedMessagesView {
	f := messageListField(v.st.desc, num)
	v.read()
	l, _ := v.st.list(f).(*messageList)
	return RepeatedMessagesView{l: l, borrow: v.derived()}
}

// Messages returns a write proxy for repeated message field num.
func (m Mut) Messages(num int32) RepeatedMessagesMut {
	f := messageListField(m.st.desc, num)
	m.write()
	l, _ := m.st.lists[f.side].(*messageList)
	if l == nil {
		l = &messageList{desc: f.Message}
		m.st.lists[f.side] = l
	}
	return RepeatedMessagesMut{l: l, a: m.a, borrow: m.claim(m.st, f.index)}
}

// RepeatedMessagesView is a read-only proxy for a repeated message field.
type RepeatedMessagesView struct {
	l *messageList
	borrow
}

func (v RepeatedMessagesView) Len() int {
	v.read()
	return v.l.size()
}

// Get returns element i; ok is false when i is out of range.
func (v RepeatedMessagesView) Get(i int) (View, bool) {
	v.read()
	if i < 0 || i >= v.l.size() {
		return View{}, false
	}
	return View{st: v.l.elems[i], borrow: v.derived()}, true
}

// GetUnchecked returns element i. The caller guarantees 0 <= i < Len().
func (v RepeatedMessagesView) GetUnchecked(i int) View {
	return View{st: v.l.elems[i], borrow: v.derived()}
}

func (v RepeatedMessagesView) All() iter.Seq2[int, View] {
	v.read()
	return func(yield func(int, View) bool) {
		for i := 0; i < v.l.size(); i++ {
			if !yield(i, View{st: v.l.elems[i], borrow: v.derived()}) {
				return
			}
		}
	}
}

// RepeatedMessagesMut is a read-write proxy for a repeated message field.
type RepeatedMessagesMut struct {
	l *messageList
	a *arena.Arena
	borrow
}

func (m RepeatedMessagesMut) Len() int {
	m.read()
	return m.l.size()
}

// Get returns a Mut of element i. It expires when the element is removed
// or Get is called for it again.
func (m RepeatedMessagesMut) Get(i int) (Mut, bool) {
	m.write()
	if i < 0 || i >= len(m.l.elems) {
		return Mut{}, false
	}
	return m.elem(m.l.elems[i]), true
}

// GetUnchecked returns element i. The caller guarantees 0 <= i < Len().
func (m RepeatedMessagesMut) GetUnchecked(i int) Mut {
	m.write()
	return m.elem(m.l.elems[i])
}

func (m RepeatedMessagesMut) elem(st *storage) Mut {
	return Mut{st: st, a: m.a, borrow: m.claim(st, st.self())}
}

// Push appends an empty element and returns a proxy for it.
func (m RepeatedMessagesMut) Push() Mut {
	m.write()
	st := newStorage(m.a, m.l.desc)
	m.l.elems = append(m.l.elems, st)
	return m.elem(st)
}

// Append appends a deep copy of src.
func (m RepeatedMessagesMut) Append(src View) {
	sameType(m.l.desc, src.st.desc)
	src.read()
	m.write()
	m.l.elems = append(m.l.elems, cloneStorage(m.a, src.st))
}

// Truncate drops every element from index n on. Muts of the dropped
// elements expire.
func (m RepeatedMessagesMut) Truncate(n int) {
	m.write()
	if n < 0 {
		panic(fmt.Errorf("%w: truncate to %d", ErrIndexOutOfRange, n))
	}
	if n < len(m.l.elems) {
		for _, st := range m.l.elems[n:] {
			st.expire(st.self())
		}
		clear(m.l.elems[n:])
		m.l.elems = m.l.elems[:n]
	}
}

// Clear removes every element. Proxies for removed elements expire.
func (m RepeatedMessagesMut) Clear() {
	m.Truncate(0)
}

func (m RepeatedMessagesMut) All() iter.Seq2[int, Mut] {
	m.write()
	return func(yield func(int, Mut) bool) {
		for i := 0; i < len(m.l.elems); i++ {
			if !yield(i, m.elem(m.l.elems[i])) {
				return
			}
		}
	}
}

func (m RepeatedMessagesMut) AsView() RepeatedMessagesView {
	return RepeatedMessagesView{l: m.l, borrow: m.asView()}
}

func (m RepeatedMessagesMut) AsMut() RepeatedMessagesMut {
	m.borrow = m.asMut()
	return m
}

func (m RepeatedMessagesMut) IntoView() RepeatedMessagesView {
	return RepeatedMessagesView{l: m.l, borrow: m.intoView()}
}

func (m RepeatedMessagesMut) IntoMut() RepeatedMessagesMut { return m }
