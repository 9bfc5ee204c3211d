package arena

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var nextGroupID atomic.Uint64

// fuseGroup is the lifetime owner of every block allocated by the arenas
// fused into it.
type fuseGroup struct {
	// id totally orders groups; fuses lock the lower id first.
	id uint64
	mu sync.Mutex

	// Guarded by mu.
	blocks    []Block
	allocated int
	refs      int
	poisoned  bool

	// cleanups run after the blocks are freed, in registration order.
	cleanups []func()

	// parent is set, under mu, when this group is drained into another one.
	// A group with a nil parent is a root.
	parent atomic.Pointer[fuseGroup]

	log *zerolog.Logger
}

func newFuseGroup(log *zerolog.Logger) *fuseGroup {
	return &fuseGroup{
		id:   nextGroupID.Add(1),
		refs: 1,
		log:  log,
	}
}

// lock acquires mu. A group poisoned by a panic in an earlier critical
// section is recovered rather than abandoned, since abandoning it would leak
// every block it owns.
func (g *fuseGroup) lock() {
	g.mu.Lock()
	if g.poisoned {
		g.poisoned = false
		g.log.Warn().Uint64("group", g.id).Int("blocks", len(g.blocks)).Msg("arena: recovered poisoned fuse group")
	}
}

// unlock must be deferred directly so that recover observes a panic raised
// while the lock was held.
func (g *fuseGroup) unlock() {
	if r := recover(); r != nil {
		g.poisoned = true
		g.mu.Unlock()
		panic(r)
	}
	g.mu.Unlock()
}

// root follows forwarding pointers left behind by fuses.
func (g *fuseGroup) root() *fuseGroup {
	for {
		p := g.parent.Load()
		if p == nil {
			return g
		}
		g = p
	}
}

// fuseGroups merges two distinct root groups. It reports false when either
// stopped being a root before both locks were held; the caller retries.
func fuseGroups(x, y *fuseGroup) (*fuseGroup, bool) {
	first, second := x, y
	if second.id < first.id {
		first, second = second, first
	}
	first.lock()
	defer first.unlock()
	second.lock()
	defer second.unlock()

	if first.parent.Load() != nil || second.parent.Load() != nil {
		return nil, false
	}

	keep, drain := first, second
	if len(second.blocks) > len(first.blocks) {
		keep, drain = second, first
	}
	keep.blocks = append(keep.blocks, drain.blocks...)
	keep.allocated += drain.allocated
	keep.refs += drain.refs
	keep.cleanups = append(keep.cleanups, drain.cleanups...)

	drain.blocks = nil
	drain.allocated = 0
	drain.refs = 0
	drain.cleanups = nil
	drain.parent.Store(keep)
	return keep, true
}
