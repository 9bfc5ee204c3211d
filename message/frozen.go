package message

import "github.com/pavanmanishd/protoarena/arena"

// Frozen is an immutable message. Every handle made with Share holds its
// own reference on the arena, so holders on different goroutines release
// independently and the memory goes away with the last of them.
type Frozen struct {
	st     *storage
	arena  *arena.Arena
	flag   borrowFlag
	shared bool
}

// Freeze consumes o and returns its contents as a Frozen message. It panics
// with ErrBorrowActive while o is borrowed.
func (o *Owned) Freeze() *Frozen {
	if o.flag.released.Load() {
		panic(ErrReleased)
	}
	if !o.flag.state.CompareAndSwap(0, -1) {
		panic(ErrBorrowActive)
	}
	o.flag.released.Store(true)
	o.flag.state.Store(0)
	return &Frozen{st: o.st, arena: o.arena}
}

// Descriptor returns the message type of f.
func (f *Frozen) Descriptor() *Descriptor { return f.st.desc }

// View borrows f for reading until Done is called on the result. Views of
// a Frozen never conflict.
func (f *Frozen) View() View {
	return View{st: f.st, borrow: borrow{l: f.flag.acquire(false), own: true}}
}

// Share returns another handle on the same message. When the arena cannot
// be referenced, because it was built over a caller supplied block, the new
// handle holds a deep copy in an arena of its own.
func (f *Frozen) Share() *Frozen {
	if f.flag.released.Load() {
		panic(ErrReleased)
	}
	if f.arena.IncRef() {
		return &Frozen{st: f.st, arena: f.arena, shared: true}
	}
	c := New(f.st.desc)
	c.st.copyFrom(c.arena, f.st)
	return &Frozen{st: c.st, arena: c.arena}
}

// Released reports whether Release has been called on this handle.
func (f *Frozen) Released() bool { return f.flag.released.Load() }

// Release drops this handle. It panics with ErrBorrowActive while a View
// taken from it is live; releasing twice is a no-op.
func (f *Frozen) Release() {
	if f.flag.released.Load() {
		return
	}
	if f.flag.state.Load() != 0 {
		panic(ErrBorrowActive)
	}
	if !f.flag.released.CompareAndSwap(false, true) {
		return
	}
	if f.shared {
		f.arena.DecRef()
		return
	}
	f.arena.Release()
}
