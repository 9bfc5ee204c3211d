package message

import (
	"fmt"

	"github.com/pavanmanishd/protoarena/arena"
)

// View is a read-only proxy for a message. Views are cheap to copy; every
// copy shares the borrow it was created under.
type View struct {
	st *storage
	borrow
}

// Mut is a read-write proxy for a message. Writes allocate in the arena of
// the Owned message the proxy was borrowed from.
type Mut struct {
	st *storage
	a  *arena.Arena
	borrow
}

func messageField(d *Descriptor, num int32) *FieldDesc {
	f := d.mustField(num)
	if !f.singular() || f.Kind != MessageKind {
		panic(fmt.Errorf("%w: %v is not a singular message field", ErrKindMismatch, f))
	}
	return f
}

func sameType(dst, src *Descriptor) {
	if dst != src {
		panic(fmt.Errorf("%w: %s used as %s", ErrKindMismatch, src.name, dst.name))
	}
}

// Descriptor returns the message type of v.
func (v View) Descriptor() *Descriptor { return v.st.desc }

// Has reports whether field num is set.
func (v View) Has(num int32) bool {
	f := v.st.desc.mustField(num)
	v.read()
	return v.st.has(f)
}

// Message returns a view of submessage num. An unset submessage reads as
// the shared default instance of its type; nothing is allocated.
func (v View) Message(num int32) View {
	f := messageField(v.st.desc, num)
	v.read()
	sub := v.st.sub(f)
	if sub == nil {
		sub = f.Message.empty
	}
	return View{st: sub, borrow: v.derived()}
}

// Range calls fn for every set field in field number order until fn
// returns false.
func (v View) Range(fn func(f *FieldDesc) bool) {
	v.read()
	for i := range v.st.desc.fields {
		f := &v.st.desc.fields[i]
		if v.st.has(f) && !fn(f) {
			return
		}
	}
}

// IsDefault reports whether no field of v is set.
func (v View) IsDefault() bool {
	empty := true
	v.Range(func(*FieldDesc) bool {
		empty = false
		return false
	})
	return empty
}

// AsView reborrows v as a View that must be ended with Done on its own.
func (v View) AsView() View {
	v.borrow = v.derived()
	return v
}

// IntoView returns v unchanged.
func (v View) IntoView() View { return v }

// Descriptor returns the message type of m.
func (m Mut) Descriptor() *Descriptor { return m.st.desc }

// Has reports whether field num is set. It panics if num is not a field
// of the message.
func (m Mut) Has(num int32) bool {
	f := m.st.desc.mustField(num)
	m.read()
	return m.st.has(f)
}

// Message returns a proxy for submessage num, creating it in the arena if
// it is unset. Earlier proxies for the submessage expire.
func (m Mut) Message(num int32) Mut {
	f := messageField(m.st.desc, num)
	m.write()
	sub := m.st.subs[f.side]
	if sub == nil {
		sub = newStorage(m.a, f.Message)
		m.st.subs[f.side] = sub
	}
	return Mut{st: sub, a: m.a, borrow: m.claim(m.st, f.index)}
}

// SetMessage replaces submessage num with a deep copy of src.
func (m Mut) SetMessage(num int32, src View) {
	f := messageField(m.st.desc, num)
	sameType(f.Message, src.st.desc)
	src.read()
	m.write()
	m.st.expire(f.index)
	m.st.subs[f.side] = cloneStorage(m.a, src.st)
}

// Attach makes o submessage num of m and consumes o. When the two arenas
// can be fused the storage is adopted as is; otherwise it is deep copied.
// Attach reports whether the arenas were fused. o must not be borrowed.
func (m Mut) Attach(num int32, o *Owned) (fused bool) {
	f := messageField(m.st.desc, num)
	sameType(f.Message, o.st.desc)
	m.write()
	o.flag.acquire(true)
	m.st.expire(f.index)

	if err := arena.Fuse(m.a, o.arena); err == nil {
		m.st.subs[f.side] = o.st
		fused = true
	} else {
		m.st.subs[f.side] = cloneStorage(m.a, o.st)
	}
	o.drop()
	return fused
}

// CopyFrom replaces the contents of m with a deep copy of src.
func (m Mut) CopyFrom(src View) {
	sameType(m.st.desc, src.st.desc)
	src.read()
	m.write()
	if src.st == m.st {
		return
	}
	m.st.expireFields()
	m.st.copyFrom(m.a, src.st)
}

// ClearField resets field num to unset. Proxies taken for the field
// expire.
func (m Mut) ClearField(num int32) {
	f := m.st.desc.mustField(num)
	m.write()
	m.st.expire(f.index)
	m.st.clearField(f)
}

// Clear resets every field of m. Proxies taken for any field of m expire;
// m itself stays usable.
func (m Mut) Clear() {
	m.write()
	m.st.expireFields()
	m.st.clearAll()
}

// AsView reborrows m for reading. m cannot be written until the view is
// Done.
func (m Mut) AsView() View {
	return View{st: m.st, borrow: m.asView()}
}

// AsMut reborrows m for writing. m cannot be used until the returned proxy
// is Done.
func (m Mut) AsMut() Mut {
	m.borrow = m.asMut()
	return m
}

// IntoView converts m into a view of the same borrow. m must not be used
// afterwards.
func (m Mut) IntoView() View {
	return View{st: m.st, borrow: m.intoView()}
}

// IntoMut returns m unchanged.
func (m Mut) IntoMut() Mut { return m }
