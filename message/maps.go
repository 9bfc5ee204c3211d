package message

import (
	"cmp"
	"fmt"
	"iter"
	"maps"
	"slices"

	"github.com/pavanmanishd/protoarena/arena"
)

// MapKey is the set of Go types a map field can be keyed by.
type MapKey interface {
	bool | int32 | int64 | uint32 | uint64 | string
}

// mapStore is the type-erased store of a map field.
type mapStore interface {
	length() int
	// rangeAny visits entries in ascending key order. Message values are
	// passed as *storage.
	rangeAny(fn func(k, v any) bool)
	setAny(a *arena.Arena, k, v any) bool
	clear()
	clone(a *arena.Arena) mapStore
}

// messageInserter is implemented by map stores with message values.
type messageInserter interface {
	insertAny(a *arena.Arena, k any) (*storage, bool)
}

func newMapStore(f *FieldDesc) mapStore {
	switch f.MapKey {
	case BoolKind:
		return newMapFor[bool](f)
	case Int32Kind, Sint32Kind, Sfixed32Kind:
		return newMapFor[int32](f)
	case Uint32Kind, Fixed32Kind:
		return newMapFor[uint32](f)
	case Int64Kind, Sint64Kind, Sfixed64Kind:
		return newMapFor[int64](f)
	case Uint64Kind, Fixed64Kind:
		return newMapFor[uint64](f)
	case StringKind:
		return newMapFor[string](f)
	}
	panic(fmt.Errorf("%w: no map for %v", ErrKindMismatch, f))
}

func newMapFor[K MapKey](f *FieldDesc) mapStore {
	switch f.Kind {
	case BoolKind:
		return &scalarMap[K, bool]{}
	case EnumKind, Int32Kind, Sint32Kind, Sfixed32Kind:
		return &scalarMap[K, int32]{}
	case Uint32Kind, Fixed32Kind:
		return &scalarMap[K, uint32]{}
	case Int64Kind, Sint64Kind, Sfixed64Kind:
		return &scalarMap[K, int64]{}
	case Uint64Kind, Fixed64Kind:
		return &scalarMap[K, uint64]{}
	case FloatKind:
		return &scalarMap[K, float32]{}
	case DoubleKind:
		return &scalarMap[K, float64]{}
	case StringKind:
		return &scalarMap[K, string]{}
	case BytesKind:
		return &scalarMap[K, []byte]{}
	case MessageKind:
		return &messageMap[K]{desc: f.Message}
	}
	panic(fmt.Errorf("%w: no map for %v", ErrKindMismatch, f))
}

func compareKeys[K MapKey](a, b K) int {
	switch x := any(a).(type) {
	case bool:
		y := any(b).(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case int32:
		return cmp.Compare(x, any(b).(int32))
	case int64:
		return cmp.Compare(x, any(b).(int64))
	case uint32:
		return cmp.Compare(x, any(b).(uint32))
	case uint64:
		return cmp.Compare(x, any(b).(uint64))
	case string:
		return cmp.Compare(x, any(b).(string))
	}
	return 0
}

func sortedKeys[K MapKey, V any](m map[K]V) []K {
	return slices.SortedFunc(maps.Keys(m), compareKeys[K])
}

// scalarMap stores a map field with non-message values. String and bytes
// keys and values are copied into the arena.
type scalarMap[K MapKey, V Value] struct {
	m map[K]V
}

func (s *scalarMap[K, V]) size() int {
	if s == nil {
		return 0
	}
	return len(s.m)
}

func (s *scalarMap[K, V]) length() int { return len(s.m) }

func (s *scalarMap[K, V]) get(k K) (V, bool) {
	if s == nil {
		var zero V
		return zero, false
	}
	v, ok := s.m[k]
	return v, ok
}

func (s *scalarMap[K, V]) set(a *arena.Arena, k K, v V) {
	if s.m == nil {
		s.m = make(map[K]V)
	}
	if _, ok := s.m[k]; !ok {
		k = intern(a, k)
	}
	s.m[k] = intern(a, v)
}

func (s *scalarMap[K, V]) all() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		if s == nil {
			return
		}
		for _, k := range sortedKeys(s.m) {
			if !yield(k, s.m[k]) {
				return
			}
		}
	}
}

func (s *scalarMap[K, V]) rangeAny(fn func(k, v any) bool) {
	for k, v := range s.all() {
		if !fn(k, v) {
			return
		}
	}
}

func (s *scalarMap[K, V]) setAny(a *arena.Arena, k, v any) bool {
	kk, ok := k.(K)
	if !ok {
		return false
	}
	vv, ok := v.(V)
	if !ok {
		return false
	}
	s.set(a, kk, vv)
	return true
}

func (s *scalarMap[K, V]) clear() { clear(s.m) }

func (s *scalarMap[K, V]) clone(a *arena.Arena) mapStore {
	c := &scalarMap[K, V]{m: make(map[K]V, len(s.m))}
	for k, v := range s.m {
		c.m[intern(a, k)] = intern(a, v)
	}
	return c
}

// messageMap stores a map field with message values.
type messageMap[K MapKey] struct {
	desc *Descriptor
	m    map[K]*storage
}

func (s *messageMap[K]) size() int {
	if s == nil {
		return 0
	}
	return len(s.m)
}

func (s *messageMap[K]) length() int { return len(s.m) }

func (s *messageMap[K]) get(k K) *storage {
	if s == nil {
		return nil
	}
	return s.m[k]
}

// insert returns the value for k, creating an empty message if needed.
func (s *messageMap[K]) insert(a *arena.Arena, k K) *storage {
	if st, ok := s.m[k]; ok {
		return st
	}
	if s.m == nil {
		s.m = make(map[K]*storage)
	}
	st := newStorage(a, s.desc)
	s.m[intern(a, k)] = st
	return st
}

func (s *messageMap[K]) insertAny(a *arena.Arena, k any) (*storage, bool) {
	kk, ok := k.(K)
	if !ok {
		return nil, false
	}
	return s.insert(a, kk), true
}

func (s *messageMap[K]) rangeAny(fn func(k, v any) bool) {
	for _, k := range sortedKeys(s.m) {
		if !fn(k, s.m[k]) {
			return
		}
	}
}

func (s *messageMap[K]) setAny(*arena.Arena, any, any) bool { return false }

func (s *messageMap[K]) clear() { clear(s.m) }

func (s *messageMap[K]) clone(a *arena.Arena) mapStore {
	c := &messageMap[K]{desc: s.desc, m: make(map[K]*storage, len(s.m))}
	for k, v := range s.m {
		c.m[intern(a, k)] = cloneStorage(a, v)
	}
	return c
}

func mapField[K MapKey, V any](d *Descriptor, num int32) *FieldDesc {
	f := d.mustField(num)
	if f.Label != LabelMap || !accepts[K](f.MapKey) {
		panic(mismatch[map[K]V](f))
	}
	return f
}

func scalarMapField[K MapKey, V Value](d *Descriptor, num int32) *FieldDesc {
	f := mapField[K, V](d, num)
	if !accepts[V](f.Kind) {
		panic(mismatch[map[K]V](f))
	}
	return f
}

func messageMapField[K MapKey](d *Descriptor, num int32) *FieldDesc {
	f := mapField[K, View](d, num)
	if f.Kind != MessageKind {
		panic(mismatch[map[K]View](f))
	}
	return f
}

// Map returns a read proxy for map field num of v.
func Map[K MapKey, V Value](v View, num int32) MapView[K, V] {
	f := scalarMapField[K, V](v.st.desc, num)
	v.read()
	s, _ := v.st.mapAt(f).(*scalarMap[K, V])
	return MapView[K, V]{s: s, borrow: v.derived()}
}

// MutMap returns a write proxy for map field num of m.
func MutMap[K MapKey, V Value](m Mut, num int32) MapMut[K, V] {
	f := scalarMapField[K, V](m.st.desc, num)
	m.write()
	s, _ := m.st.maps[f.side].(*scalarMap[K, V])
	if s == nil {
		s = &scalarMap[K, V]{}
		m.st.maps[f.side] = s
	}
	return MapMut[K, V]{s: s, a: m.a, borrow: m.claim(m.st, f.index)}
}

// MapView is a read-only proxy for a map field with non-message values.
// Iteration is in ascending key order.
type MapView[K MapKey, V Value] struct {
	s *scalarMap[K, V]
	borrow
}

// Len returns the number of entries.
func (v MapView[K, V]) Len() int {
	v.read()
	return v.s.size()
}

// Get returns the value stored under k.
func (v MapView[K, V]) Get(k K) (V, bool) {
	v.read()
	return v.s.get(k)
}

// All yields every entry in unspecified order.
func (v MapView[K, V]) All() iter.Seq2[K, V] {
	v.read()
	return v.s.all()
}

// AsView reborrows v; end the result with Done.
func (v MapView[K, V]) AsView() MapView[K, V] {
	v.borrow = v.derived()
	return v
}

// MapMut is a read-write proxy for a map field with non-message values.
type MapMut[K MapKey, V Value] struct {
	s *scalarMap[K, V]
	a *arena.Arena
	borrow
}

// Len returns the number of entries.
func (m MapMut[K, V]) Len() int {
	m.read()
	return m.s.size()
}

// Get returns the value stored under k.
func (m MapMut[K, V]) Get(k K) (V, bool) {
	m.read()
	return m.s.get(k)
}

// All yields every entry in unspecified order.
func (m MapMut[K, V]) All() iter.Seq2[K, V] {
	m.read()
	return m.s.all()
}

// Set inserts or replaces the value for k.
func (m MapMut[K, V]) Set(k K, v V) {
	m.write()
	m.s.set(m.a, k, v)
}

// Delete removes k and reports whether it was present.
func (m MapMut[K, V]) Delete(k K) bool {
	m.write()
	if _, ok := m.s.m[k]; !ok {
		return false
	}
	delete(m.s.m, k)
	return true
}

// Clear removes every entry.
func (m MapMut[K, V]) Clear() {
	m.write()
	m.s.clear()
}

// CopyFrom replaces the contents of m with the entries of src.
func (m MapMut[K, V]) CopyFrom(src MapView[K, V]) {
	src.read()
	m.write()
	if src.s == m.s {
		return
	}
	m.s.clear()
	for k, v := range src.s.all() {
		m.s.set(m.a, k, v)
	}
}

// AsView reborrows m for reading. m cannot be written until the result
// is ended with Done.
func (m MapMut[K, V]) AsView() MapView[K, V] {
	return MapView[K, V]{s: m.s, borrow: m.asView()}
}

// AsMut reborrows m exclusively until the result is ended with Done.
func (m MapMut[K, V]) AsMut() MapMut[K, V] {
	m.borrow = m.asMut()
	return m
}

// IntoView downgrades m to a View, ending its write access.
func (m MapMut[K, V]) IntoView() MapView[K, V] {
	return MapView[K, V]{s: m.s, borrow: m.intoView()}
}

func (m MapMut[K, V]) IntoMut() MapMut[K, V] { return m }

// MessageMap returns a read proxy for map field num of v whose values are
// messages.
func MessageMap[K MapKey](v View, num int32) MessageMapView[K] {
	f := messageMapField[K](v.st.desc, num)
	v.read()
	s, _ := v.st.mapAt(f).(*messageMap[K])
	return MessageMapView[K]{s: s, borrow: v.derived()}
}

// MutMessageMap returns a write proxy for map field num of m whose values
// are messages.
func MutMessageMap[K MapKey](m Mut, num int32) MessageMapMut[K] {
	f := messageMapField[K](m.st.desc, num)
	m.write()
	s, _ := m.st.maps[f.side].(*messageMap[K])
	if s == nil {
		s = &messageMap[K]{desc: f.Message}
		m.st.maps[f.side] = s
	}
	return MessageMapMut[K]{s: s, a: m.a, borrow: m.claim(m.st, f.index)}
}

// MessageMapView is a read-only proxy for a map field with message values.
type MessageMapView[K MapKey] struct {
	s *messageMap[K]
	borrow
}

func (v MessageMapView[K]) Len() int {
	v.read()
	return v.s.size()
}

// Get returns the message stored under k.
func (v MessageMapView[K]) Get(k K) (View, bool) {
	v.read()
	st := v.s.get(k)
	if st == nil {
		return View{}, false
	}
	return View{st: st, borrow: v.derived()}, true
}

func (v MessageMapView[K]) All() iter.Seq2[K, View] {
	v.read()
	return func(yield func(K, View) bool) {
		if v.s == nil {
			return
		}
		for _, k := range sortedKeys(v.s.m) {
			if !yield(k, View{st: v.s.m[k], borrow: v.derived()}) {
				return
			}
		}
	}
}

// MessageMapMut is a read-write proxy for a map field with message values.
type MessageMapMut[K MapKey] struct {
	s *messageMap[K]
	a *arena.Arena
	borrow
}

func (m MessageMapMut[K]) Len() int {
	m.read()
	return m.s.size()
}

// Get returns a Mut of the message stored under k. The Mut expires when
// the entry is replaced or deleted.
func (m MessageMapMut[K]) Get(k K) (Mut, bool) {
	m.write()
	st := m.s.get(k)
	if st == nil {
		return Mut{}, false
	}
	return m.value(st), true
}

func (m MessageMapMut[K]) value(st *storage) Mut {
	return Mut{st: st, a: m.a, borrow: m.claim(st, st.self())}
}

// Insert returns the value for k, inserting an empty message first if k
// is absent.
func (m MessageMapMut[K]) Insert(k K) Mut {
	m.write()
	return m.value(m.s.insert(m.a, k))
}

// Delete removes k and reports whether it was present. Proxies for the
// removed value expire.
func (m MessageMapMut[K]) Delete(k K) bool {
	m.write()
	st, ok := m.s.m[k]
	if !ok {
		return false
	}
	st.expire(st.self())
	delete(m.s.m, k)
	return true
}

// Clear removes every entry. Proxies for removed values expire.
func (m MessageMapMut[K]) Clear() {
	m.write()
	for _, st := range m.s.m {
		st.expire(st.self())
	}
	m.s.clear()
}

func (m MessageMapMut[K]) All() iter.Seq2[K, Mut] {
	m.write()
	return func(yield func(K, Mut) bool) {
		for _, k := range sortedKeys(m.s.m) {
			if !yield(k, m.value(m.s.m[k])) {
				return
			}
		}
	}
}

func (m MessageMapMut[K]) AsView() MessageMapView[K] {
	return MessageMapView[K]{s: m.s, borrow: m.asView()}
}

func (m MessageMapMut[K]) AsMut() MessageMapMut[K] {
	m.borrow = m.asMut()
	return m
}

func (m MessageMapMut[K]) IntoView() MessageMapView[K] {
	return MessageMapView[K]{s: m.s, borrow: m.intoView()}
}

func (m MessageMapMut[K]) IntoMut() MessageMapMut[K] { return m }
