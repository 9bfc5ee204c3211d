package arena

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/rs/zerolog"
)

// Arena is a bump allocator handle onto a fuse group. Not goroutine-safe;
// use SyncArena to share one handle.
type Arena struct {
	group atomic.Pointer[fuseGroup]

	cur     []byte // free tail of the current block
	curSize int    // size of the current block

	// initial is a caller supplied first block. It is never recorded in the
	// fuse group and never freed by it.
	initial []byte

	minBlock int
	alloc    BlockAllocator
	log      *zerolog.Logger
	released atomic.Bool

	// pins counts references taken with IncRef and not yet dropped.
	pins atomic.Int32
}

// New returns an arena with an empty fuse group. No memory is allocated
// until the first Alloc.
func New(opts ...Option) *Arena {
	o := buildOptions(opts)
	a := &Arena{minBlock: o.minBlock, alloc: o.alloc, log: o.log}
	g := newFuseGroup(o.log)
	if o.cleanup != nil {
		g.cleanups = append(g.cleanups, o.cleanup)
	}
	a.group.Store(g)
	a.log.Debug().Uint64("group", g.id).Int("min_block", a.minBlock).Msg("arena init")
	return a
}

// Init returns an arena that bumps from buf before asking its allocator for
// blocks. buf is cleared and must outlive the arena; it is not counted by
// SpaceAllocated and such an arena cannot be fused.
func Init(buf []byte, opts ...Option) *Arena {
	a := New(opts...)
	clear(buf)
	a.initial = buf
	a.cur = buf
	a.curSize = len(buf)
	return a
}

// Alloc returns size zeroed bytes aligned to align. A non-positive size
// returns nil; align 0 means MinAlign. It panics with ErrOutOfMemory when
// the block allocator fails.
func (a *Arena) Alloc(size, align int) []byte {
	if size <= 0 {
		return nil
	}
	if align == 0 {
		align = MinAlign
	}
	if !validAlign(align) {
		panic(fmt.Errorf("%w: %d", ErrBadAlignment, align))
	}

	// Fast path: bump inside the current block.
	if b := a.bump(size, align); b != nil {
		return b
	}
	return a.allocSlow(size, align)
}

func (a *Arena) bump(size, align int) []byte {
	if len(a.cur) == 0 {
		return nil
	}
	pad := padding(a.cur, align)
	if pad+size > len(a.cur) {
		return nil
	}
	b := a.cur[pad : pad+size : pad+size]
	a.cur = a.cur[pad+size:]
	return b
}

// allocSlow starts a new block sized for the request.
func (a *Arena) allocSlow(size, align int) []byte {
	a.panicIfReleased()

	l := Layout{Size: max(size, a.minBlock), Align: MaxAlign}
	buf := a.newBlock(l)
	if buf == nil || len(buf) < l.Size {
		panic(fmt.Errorf("%w: block of %d bytes", ErrOutOfMemory, l.Size))
	}
	buf = buf[:l.Size:l.Size]
	if padding(buf, MaxAlign) != 0 {
		panic(ErrMisalignedBlk)
	}

	a.cur = buf
	a.curSize = l.Size
	return a.bump(size, align)
}

// newBlock asks the allocator for a block while holding the root group's
// lock and records it there.
func (a *Arena) newBlock(l Layout) []byte {
	g := a.lockRoot()
	defer g.unlock()

	buf := a.alloc.AllocBlock(l)
	if len(buf) < l.Size {
		return nil
	}
	g.blocks = append(g.blocks, Block{buf: buf, layout: l, alloc: a.alloc})
	g.allocated += l.Size
	return buf
}

// Resize changes the size of b, which must be the result of an earlier
// Alloc or Resize on this arena with the same align. Shrinking and growing
// the most recent allocation happen in place; otherwise the contents are
// copied into a new allocation and the old bytes are left to the arena.
func (a *Arena) Resize(b []byte, newSize, align int) []byte {
	if newSize <= 0 {
		return nil
	}
	if len(b) == 0 {
		return a.Alloc(newSize, align)
	}
	if newSize <= len(b) {
		return b[:newSize:newSize]
	}

	extra := newSize - len(b)
	if len(a.cur) >= extra && a.isLast(b) {
		start := unsafe.Pointer(unsafe.SliceData(b))
		a.cur = a.cur[extra:]
		return unsafe.Slice((*byte)(start), newSize)
	}

	nb := a.Alloc(newSize, align)
	copy(nb, b)
	return nb
}

// isLast reports whether b ends exactly where the free tail begins.
func (a *Arena) isLast(b []byte) bool {
	end := uintptr(unsafe.Pointer(unsafe.SliceData(b))) + uintptr(len(b))
	return end == uintptr(unsafe.Pointer(unsafe.SliceData(a.cur)))
}

// Release drops this handle's reference on its fuse group. When the last
// reference goes away every block is returned to its allocator, after the
// group lock has been released, and then the group's cleanups run. Release
// is idempotent; any other use after Release panics, except DecRef and an
// IncRef made while this handle still holds an IncRef reference.
func (a *Arena) Release() {
	if a.released.Swap(true) {
		return
	}
	a.cur = nil
	a.curSize = 0
	a.unref("arena release")
}

// IncRef takes an extra reference on the arena's fuse group, keeping every
// block alive after Release until a matching DecRef. It reports false, and
// takes nothing, for an arena built with Init: its caller owned first block
// cannot be kept alive by the group. IncRef and DecRef may be called from
// any goroutine.
func (a *Arena) IncRef() bool {
	if a.released.Load() && a.pins.Load() == 0 {
		panic(ErrReleased)
	}
	if a.initial != nil {
		return false
	}
	g := a.lockGroup()
	defer g.unlock()

	g.refs++
	a.pins.Add(1)
	return true
}

// DecRef drops a reference taken with IncRef on this handle. It may be
// called after Release. It panics with ErrNoRef when no such reference is
// outstanding.
func (a *Arena) DecRef() {
	for {
		n := a.pins.Load()
		if n <= 0 {
			panic(ErrNoRef)
		}
		if a.pins.CompareAndSwap(n, n-1) {
			break
		}
	}
	a.unref("arena decref")
}

// unref drops one reference on the group. The last one frees the blocks and
// then runs the cleanups, both outside the lock.
func (a *Arena) unref(event string) {
	g, blocks, cleanups, last := a.drop()
	if !last {
		a.log.Debug().Uint64("group", g.id).Msg(event)
		return
	}
	for _, b := range blocks {
		b.alloc.FreeBlock(b.buf, b.layout)
	}
	for _, fn := range cleanups {
		fn()
	}
	a.log.Debug().Uint64("group", g.id).Int("blocks", len(blocks)).Int("cleanups", len(cleanups)).Msg("arena free")
}

func (a *Arena) drop() (*fuseGroup, []Block, []func(), bool) {
	g := a.lockGroup()
	defer g.unlock()

	g.refs--
	if g.refs > 0 {
		return g, nil, nil, false
	}
	blocks, cleanups := g.blocks, g.cleanups
	g.blocks = nil
	g.cleanups = nil
	g.allocated = 0
	return g, blocks, cleanups, true
}

// root resolves the handle to the current root group and caches it.
func (a *Arena) root() *fuseGroup {
	a.panicIfReleased()
	return a.resolve()
}

func (a *Arena) resolve() *fuseGroup {
	g := a.group.Load()
	r := g.root()
	if r != g {
		a.group.Store(r)
	}
	return r
}

// lockRoot locks the root group of a live handle.
func (a *Arena) lockRoot() *fuseGroup {
	a.panicIfReleased()
	return a.lockGroup()
}

// lockGroup locks the root group, retrying if a concurrent fuse drained it
// before the lock was acquired.
func (a *Arena) lockGroup() *fuseGroup {
	for {
		g := a.resolve()
		g.lock()
		if g.parent.Load() == nil {
			return g
		}
		g.mu.Unlock()
	}
}

// panicIfReleased panics if the arena has been released.
func (a *Arena) panicIfReleased() {
	if a.released.Load() {
		panic(ErrReleased)
	}
}
