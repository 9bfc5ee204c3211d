package message

import (
	"fmt"
	"sync/atomic"
)

// borrowFlag guards an Owned message: state is -1 while a Mut is out, the
// number of Views otherwise.
type borrowFlag struct {
	state    atomic.Int32
	released atomic.Bool
}

func (f *borrowFlag) acquire(excl bool) *lease {
	if f.released.Load() {
		panic(ErrReleased)
	}
	if excl {
		if !f.state.CompareAndSwap(0, -1) {
			panic(fmt.Errorf("%w: Mut requested while the message is borrowed", ErrBorrowConflict))
		}
	} else {
		for {
			s := f.state.Load()
			if s < 0 {
				panic(fmt.Errorf("%w: View requested while a Mut is live", ErrBorrowConflict))
			}
			if f.state.CompareAndSwap(s, s+1) {
				break
			}
		}
	}
	l := &lease{flag: f}
	l.excl.Store(excl)
	return l
}

// lease is one borrow of a message tree. Reborrows form a chain through
// parent: a live exclusive child freezes its parent entirely, live shared
// children freeze it for writing.
type lease struct {
	flag    *borrowFlag
	parent  *lease
	excl    atomic.Bool
	ended   atomic.Bool
	readers atomic.Int32
	writer  atomic.Pointer[lease]
}

// check panics unless the lease may be used for reading, or writing when
// write is set.
func (l *lease) check(write bool) {
	if l.flag.released.Load() {
		panic(ErrReleased)
	}
	if l.ended.Load() {
		panic(ErrBorrowExpired)
	}
	if l.writer.Load() != nil {
		panic(fmt.Errorf("%w: proxy used while reborrowed as Mut", ErrBorrowConflict))
	}
	if write {
		if !l.excl.Load() {
			panic(fmt.Errorf("%w: write through a View", ErrBorrowConflict))
		}
		if l.readers.Load() > 0 {
			panic(fmt.Errorf("%w: write while reborrowed as View", ErrBorrowConflict))
		}
	}
	prev := l
	for p := l.parent; p != nil; prev, p = p, p.parent {
		if w := p.writer.Load(); w != nil && w != prev {
			panic(fmt.Errorf("%w: proxy used while an ancestor is reborrowed", ErrBorrowConflict))
		}
	}
}

func (l *lease) reborrowView() *lease {
	l.check(false)
	c := &lease{flag: l.flag, parent: l}
	l.readers.Add(1)
	return c
}

func (l *lease) reborrowMut() *lease {
	l.check(true)
	c := &lease{flag: l.flag, parent: l}
	c.excl.Store(true)
	l.writer.Store(c)
	return c
}

// downgrade turns an exclusive lease into a shared one in place.
func (l *lease) downgrade() {
	l.check(false)
	if !l.excl.CompareAndSwap(true, false) {
		return
	}
	if l.parent == nil {
		l.flag.state.CompareAndSwap(-1, 1)
		return
	}
	l.parent.readers.Add(1)
	l.parent.writer.CompareAndSwap(l, nil)
}

// end returns the lease to its parent or to the borrow flag. Ending twice
// is a no-op; ending a lease with live reborrows panics.
func (l *lease) end() {
	if l.ended.Load() {
		return
	}
	if l.writer.Load() != nil || l.readers.Load() > 0 {
		panic(ErrBorrowActive)
	}
	if !l.ended.CompareAndSwap(false, true) {
		return
	}
	excl := l.excl.Load()
	switch {
	case l.parent == nil && excl:
		l.flag.state.CompareAndSwap(-1, 0)
	case l.parent == nil:
		l.flag.state.Add(-1)
	case excl:
		l.parent.writer.CompareAndSwap(l, nil)
	default:
		l.parent.readers.Add(-1)
	}
}

// stamp ties a proxy taken through a Mut to the generation of the slot it
// was taken from: a field of a message, or the message itself when it is
// an element of a list or map. Taking another Mut for the slot, or
// replacing or removing its contents through the parent, bumps the
// generation and expires the proxy together with everything derived from
// it.
type stamp struct {
	st  *storage
	idx int
	gen uint32
	up  *stamp
}

func (s *stamp) live() bool {
	for ; s != nil; s = s.up {
		if s.st.gen(s.idx) != s.gen {
			return false
		}
	}
	return true
}

// borrow is embedded by every proxy. Proxies created by AsView, AsMut or an
// Owned own their lease and must be ended with Done; proxies derived from
// them share it.
type borrow struct {
	l   *lease
	s   *stamp
	own bool
}

// Done ends a borrow taken with AsView, AsMut, Owned.View or Owned.Mut.
// It is a no-op on derived proxies and when called twice.
func (b borrow) Done() {
	if b.own {
		b.l.end()
	}
}

func (b borrow) check(write bool) {
	b.l.check(write)
	if !b.s.live() {
		panic(fmt.Errorf("%w: the field was borrowed again or replaced", ErrBorrowExpired))
	}
}

func (b borrow) read()  { b.check(false) }
func (b borrow) write() { b.check(true) }

func (b borrow) derived() borrow { return borrow{l: b.l, s: b.s} }

// claim derives the borrow of a Mut for slot idx of st. Earlier claims on
// the same slot expire.
func (b borrow) claim(st *storage, idx int) borrow {
	return borrow{l: b.l, s: &stamp{st: st, idx: idx, gen: st.bump(idx), up: b.s}}
}

func (b borrow) asView() borrow {
	b.read()
	return borrow{l: b.l.reborrowView(), s: b.s, own: true}
}

func (b borrow) asMut() borrow {
	b.write()
	return borrow{l: b.l.reborrowMut(), s: b.s, own: true}
}

// intoView downgrades an owned lease. A derived proxy cannot downgrade the
// lease it shares, so it takes a shared reborrow instead.
func (b borrow) intoView() borrow {
	b.read()
	if b.own {
		b.l.downgrade()
		return b
	}
	return b.asView()
}
