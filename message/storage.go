package message

import (
	"bytes"
	"fmt"
	"slices"
	"sync"
	"unsafe"

	"github.com/pavanmanishd/protoarena/arena"
)

// zeroBlock backs the default instance of every message type. It is never
// written.
var zeroBlock = sync.OnceValue(func() []byte {
	return make([]byte, maxStorageSize)
})

// storage is the representation of one message. data (hasbits followed by
// scalar slots) is arena memory; the side tables hold the Go headers of
// string, bytes, submessage, repeated and map fields, whose payloads are
// again arena memory where the element type is pointer free. gens holds
// one generation per field plus one for the message itself; it is only
// allocated once a Mut proxy is claimed from the message.
type storage struct {
	desc  *Descriptor
	data  []byte
	bufs  [][]byte
	subs  []*storage
	lists []list
	maps  []mapStore
	gens  []uint32
}

func newStorage(a *arena.Arena, d *Descriptor) *storage {
	st := &storage{desc: d}
	if d.size > 0 {
		st.data = a.Alloc(d.size, slotSize)
	}
	if d.nbufs > 0 {
		st.bufs = make([][]byte, d.nbufs)
	}
	if d.nsubs > 0 {
		st.subs = make([]*storage, d.nsubs)
	}
	if d.nlists > 0 {
		st.lists = make([]list, d.nlists)
	}
	if d.nmaps > 0 {
		st.maps = make([]mapStore, d.nmaps)
	}
	return st
}

// self is the generation slot of the message itself.
func (st *storage) self() int { return len(st.desc.fields) }

func (st *storage) gen(i int) uint32 {
	if st.gens == nil {
		return 0
	}
	return st.gens[i]
}

func (st *storage) bump(i int) uint32 {
	if st.readOnly() {
		panic(fmt.Errorf("%w: default instance of %s", ErrBorrowConflict, st.desc.name))
	}
	if st.gens == nil {
		st.gens = make([]uint32, len(st.desc.fields)+1)
	}
	st.gens[i]++
	return st.gens[i]
}

// expire invalidates every proxy claimed for slot i.
func (st *storage) expire(i int) {
	if st.gens != nil {
		st.gens[i]++
	}
}

// expireFields invalidates every proxy claimed for a field of st. Proxies
// for st itself stay valid.
func (st *storage) expireFields() {
	for i := range st.desc.fields {
		st.expire(i)
	}
}

func (st *storage) readOnly() bool { return st == st.desc.empty }

func (st *storage) hasBit(f *FieldDesc) bool {
	return st.data[f.hasbit/8]&(1<<(f.hasbit%8)) != 0
}

func (st *storage) setBit(f *FieldDesc, on bool) {
	if on {
		st.data[f.hasbit/8] |= 1 << (f.hasbit % 8)
	} else {
		st.data[f.hasbit/8] &^= 1 << (f.hasbit % 8)
	}
}

func (st *storage) slot(f *FieldDesc) []byte {
	return st.data[f.offset : f.offset+slotSize]
}

func (st *storage) buf(f *FieldDesc) []byte {
	if st.bufs == nil {
		return nil
	}
	return st.bufs[f.side]
}

func (st *storage) sub(f *FieldDesc) *storage {
	if st.subs == nil {
		return nil
	}
	return st.subs[f.side]
}

func (st *storage) list(f *FieldDesc) list {
	if st.lists == nil {
		return nil
	}
	return st.lists[f.side]
}

func (st *storage) mapAt(f *FieldDesc) mapStore {
	if st.maps == nil {
		return nil
	}
	return st.maps[f.side]
}

// has reports presence. Fields without explicit presence count as present
// when they differ from their zero value.
func (st *storage) has(f *FieldDesc) bool {
	switch {
	case f.Label == LabelRepeated:
		l := st.list(f)
		return l != nil && l.length() > 0
	case f.Label == LabelMap:
		m := st.mapAt(f)
		return m != nil && m.length() > 0
	case f.Kind == MessageKind:
		return st.sub(f) != nil
	case f.hasbit >= 0:
		return st.hasBit(f)
	case f.Kind == StringKind || f.Kind == BytesKind:
		return len(st.buf(f)) > 0
	}
	for _, b := range st.slot(f) {
		if b != 0 {
			return true
		}
	}
	return false
}

// clearField resets f to its unset state. List and map stores are emptied
// in place so that their arena capacity can be reused.
func (st *storage) clearField(f *FieldDesc) {
	switch {
	case f.Label == LabelRepeated:
		if l := st.lists[f.side]; l != nil {
			l.clear()
		}
	case f.Label == LabelMap:
		if m := st.maps[f.side]; m != nil {
			m.clear()
		}
	case f.Kind == MessageKind:
		st.subs[f.side] = nil
	case f.Kind == StringKind || f.Kind == BytesKind:
		st.bufs[f.side] = nil
	default:
		clear(st.slot(f))
	}
	if f.hasbit >= 0 {
		st.setBit(f, false)
	}
}

func (st *storage) clearAll() {
	for i := range st.desc.fields {
		st.clearField(&st.desc.fields[i])
	}
}

// copyFrom deep copies src into st, allocating in a. Both must share a
// descriptor.
func (st *storage) copyFrom(a *arena.Arena, src *storage) {
	copy(st.data, src.data)
	d := st.desc
	for i := range d.fields {
		f := &d.fields[i]
		switch {
		case f.Label == LabelRepeated:
			st.lists[f.side] = nil
			if l := src.list(f); l != nil && l.length() > 0 {
				st.lists[f.side] = l.clone(a)
			}
		case f.Label == LabelMap:
			st.maps[f.side] = nil
			if m := src.mapAt(f); m != nil && m.length() > 0 {
				st.maps[f.side] = m.clone(a)
			}
		case f.Kind == MessageKind:
			st.subs[f.side] = nil
			if s := src.sub(f); s != nil {
				st.subs[f.side] = cloneStorage(a, s)
			}
		case f.Kind == StringKind || f.Kind == BytesKind:
			st.bufs[f.side] = arena.CopyBytes(a, src.buf(f))
		}
	}
}

func cloneStorage(a *arena.Arena, src *storage) *storage {
	st := newStorage(a, src.desc)
	st.copyFrom(a, src)
	return st
}

// loadScalar reads the slot of f as a T. T must be the Go type of f.Kind.
func loadScalar[T any](st *storage, f *FieldDesc) T {
	return *(*T)(unsafe.Pointer(&st.data[f.offset]))
}

func storeScalar[T any](st *storage, f *FieldDesc, v T) {
	*(*T)(unsafe.Pointer(&st.data[f.offset])) = v
}

// getValue returns the value of a singular non-message field, or its
// default when the field tracks presence and is unset. A set bytes value
// aliases the arena with its capacity clipped; a bytes default is a copy.
func getValue[T Value](st *storage, f *FieldDesc) T {
	if f.hasbit >= 0 && !st.hasBit(f) {
		return defaultOf[T](f)
	}
	var out T
	switch p := any(&out).(type) {
	case *string:
		b := st.buf(f)
		*p = unsafe.String(unsafe.SliceData(b), len(b))
	case *[]byte:
		*p = slices.Clip(st.buf(f))
	default:
		out = loadScalar[T](st, f)
	}
	return out
}

// setValue stores v into f, copying string and bytes payloads into a.
func setValue[T Value](st *storage, a *arena.Arena, f *FieldDesc, v T) {
	switch x := any(v).(type) {
	case string:
		st.bufs[f.side] = arena.CopyBytes(a, unsafe.Slice(unsafe.StringData(x), len(x)))
	case []byte:
		st.bufs[f.side] = arena.CopyBytes(a, x)
	default:
		storeScalar(st, f, v)
	}
	if f.hasbit >= 0 {
		st.setBit(f, true)
	}
}

func defaultOf[T Value](f *FieldDesc) T {
	switch d := f.Default.(type) {
	case nil:
		var zero T
		return zero
	case []byte:
		return any(bytes.Clone(d)).(T)
	}
	return f.Default.(T)
}

// anyValue boxes the value of a singular non-message field.
func anyValue(st *storage, f *FieldDesc) any {
	switch f.Kind {
	case BoolKind:
		return getValue[bool](st, f)
	case EnumKind, Int32Kind, Sint32Kind, Sfixed32Kind:
		return getValue[int32](st, f)
	case Uint32Kind, Fixed32Kind:
		return getValue[uint32](st, f)
	case Int64Kind, Sint64Kind, Sfixed64Kind:
		return getValue[int64](st, f)
	case Uint64Kind, Fixed64Kind:
		return getValue[uint64](st, f)
	case FloatKind:
		return getValue[float32](st, f)
	case DoubleKind:
		return getValue[float64](st, f)
	case StringKind:
		return getValue[string](st, f)
	case BytesKind:
		return getValue[[]byte](st, f)
	}
	return nil
}

// setAnyValue stores a boxed value. It reports false when the dynamic type
// of v does not match f.Kind.
func setAnyValue(st *storage, a *arena.Arena, f *FieldDesc, v any) bool {
	if !goTypeMatches(v, f.Kind) {
		return false
	}
	switch x := v.(type) {
	case bool:
		setValue(st, a, f, x)
	case int32:
		setValue(st, a, f, x)
	case uint32:
		setValue(st, a, f, x)
	case int64:
		setValue(st, a, f, x)
	case uint64:
		setValue(st, a, f, x)
	case float32:
		setValue(st, a, f, x)
	case float64:
		setValue(st, a, f, x)
	case string:
		setValue(st, a, f, x)
	case []byte:
		setValue(st, a, f, x)
	}
	return true
}
