package message

import (
	"fmt"

	"github.com/pavanmanishd/protoarena/arena"
)

// Owned is a message that owns its arena handle. At any time it has
// either one live Mut or any number of live Views.
type Owned struct {
	st    *storage
	arena *arena.Arena
	flag  borrowFlag
}

// New returns an empty message of type d in a new arena.
func New(d *Descriptor, opts ...arena.Option) *Owned {
	return NewIn(arena.New(opts...), d)
}

// NewIn returns an empty message of type d allocated in a. The message
// takes ownership of the handle and releases it in Release.
func NewIn(a *arena.Arena, d *Descriptor) *Owned {
	if !d.defined {
		panic(fmt.Errorf("%w: %s is declared but not defined", ErrInvalidDescriptor, d.name))
	}
	return &Owned{st: newStorage(a, d), arena: a}
}

// Descriptor returns the message type of o.
func (o *Owned) Descriptor() *Descriptor { return o.st.desc }

// Arena returns the handle backing o.
func (o *Owned) Arena() *arena.Arena { return o.arena }

// View borrows o for reading until Done is called on the result.
func (o *Owned) View() View {
	return View{st: o.st, borrow: borrow{l: o.flag.acquire(false), own: true}}
}

// Mut borrows o for writing until Done is called on the result.
func (o *Owned) Mut() Mut {
	return Mut{st: o.st, a: o.arena, borrow: borrow{l: o.flag.acquire(true), own: true}}
}

// Clone returns a deep copy of o in a new arena.
func (o *Owned) Clone(opts ...arena.Option) *Owned {
	v := o.View()
	defer v.Done()
	c := New(o.st.desc, opts...)
	c.st.copyFrom(c.arena, o.st)
	return c
}

// Released reports whether Release has been called or o was consumed by
// Attach or Freeze.
func (o *Owned) Released() bool { return o.flag.released.Load() }

// Release drops the message and its arena handle. It panics with
// ErrBorrowActive while a View or Mut is live; releasing twice is a no-op.
func (o *Owned) Release() {
	if o.flag.released.Load() {
		return
	}
	if o.flag.state.Load() != 0 {
		panic(ErrBorrowActive)
	}
	o.drop()
}

func (o *Owned) drop() {
	if o.flag.released.CompareAndSwap(false, true) {
		o.arena.Release()
	}
}
