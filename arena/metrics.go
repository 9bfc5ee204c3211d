package arena

// SpaceAllocated returns the number of bytes requested from block
// allocators by the whole fuse group this arena belongs to. External
// initial blocks are not counted.
func (a *Arena) SpaceAllocated() int {
	g := a.lockRoot()
	defer g.unlock()
	return g.allocated
}

// NumBlocks returns the number of blocks owned by the arena's fuse group.
func (a *Arena) NumBlocks() int {
	g := a.lockRoot()
	defer g.unlock()
	return len(g.blocks)
}

// SpaceUsed approximates the bytes handed out by this handle. It only
// accounts for the handle's current block: earlier blocks, and blocks of
// arenas fused into the same group, are not included.
func (a *Arena) SpaceUsed() int {
	return a.curSize - len(a.cur)
}

// MinBlockSize returns the smallest block this arena requests.
func (a *Arena) MinBlockSize() int {
	return a.minBlock
}

// Utilization returns SpaceUsed over the current block size (0.0 to 1.0).
// Returns 0.0 before the first block.
func (a *Arena) Utilization() float64 {
	if a.curSize == 0 {
		return 0
	}
	return float64(a.SpaceUsed()) / float64(a.curSize)
}

// Metrics returns a snapshot of arena statistics.
func (a *Arena) Metrics() Metrics {
	g := a.lockRoot()
	m := Metrics{
		SpaceAllocated: g.allocated,
		NumBlocks:      len(g.blocks),
		RefCount:       g.refs,
	}
	g.mu.Unlock()

	m.SpaceUsed = a.SpaceUsed()
	m.MinBlockSize = a.minBlock
	m.Utilization = a.Utilization()
	return m
}

// Metrics contains statistical information about an arena.
type Metrics struct {
	SpaceAllocated int     // Bytes requested from allocators by the fuse group
	SpaceUsed      int     // Bytes used in the handle's current block
	NumBlocks      int     // Blocks owned by the fuse group
	RefCount       int     // Live handles on the fuse group
	MinBlockSize   int     // Minimum block size
	Utilization    float64 // SpaceUsed over the current block size
}
