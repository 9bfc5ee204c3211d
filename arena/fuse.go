package arena

// Fuse merges the lifetimes of a and b: memory from either stays valid until
// both, and every arena previously fused with either, have been released.
//
// Fusing arenas that already share a group, or an arena with itself, is a
// no-op. The two groups are locked in ascending id order regardless of
// argument order, so Fuse(a, b) and Fuse(b, a) may run concurrently. The
// group with fewer blocks is drained into the other.
//
// Fuse returns ErrInitialBlock if either arena was created with Init and
// ErrReleased if either has been released.
func Fuse(a, b *Arena) error {
	if a == b {
		return nil
	}
	if a.released.Load() || b.released.Load() {
		return ErrReleased
	}
	if a.initial != nil || b.initial != nil {
		return ErrInitialBlock
	}

	for {
		ga, gb := a.root(), b.root()
		if ga == gb {
			return nil
		}
		kept, ok := fuseGroups(ga, gb)
		if !ok {
			continue
		}
		a.group.Store(kept)
		b.group.Store(kept)
		a.log.Debug().
			Uint64("left", ga.id).
			Uint64("right", gb.id).
			Uint64("kept", kept.id).
			Msg("arena fuse")
		return nil
	}
}

// IsFused reports whether a and b currently share a fuse group.
func IsFused(a, b *Arena) bool {
	if a == b {
		return true
	}
	return a.root() == b.root()
}

// RefCount returns the number of references on a's fuse group: one per live
// handle plus one per outstanding IncRef. It is meant for tests and
// debugging.
func (a *Arena) RefCount() int {
	g := a.lockRoot()
	defer g.unlock()
	return g.refs
}
