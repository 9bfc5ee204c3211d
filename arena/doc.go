// Package arena implements a block-based bump allocator whose lifetime can
// be fused with other arenas at runtime.
//
// # Overview
//
// An Arena hands out memory by bumping a cursor through the current block.
// When the block runs out, a new block of at least the configured minimum
// size is requested from a BlockAllocator and recorded in the arena's fuse
// group. Memory is never freed piecemeal: every block is released together
// when the last arena referencing the group is released.
//
// # Basic Usage
//
//	a := arena.New()           // no memory is allocated yet
//	defer a.Release()
//
//	buf := a.Alloc(1024, 8)    // zeroed, 8-byte aligned
//	n := arena.Alloc[int64](a) // typed, pointer-free values only
//	s := arena.AllocString(a, "copied into the arena")
//
// # Fusing
//
// Fuse merges the lifetimes of two arenas. After
//
//	arena.Fuse(a, b)
//
// memory allocated from either arena stays valid until both a and b (and
// anything previously fused with either of them) have been released.
// Concurrent fuses are deadlock free: the two groups are always locked in
// ascending group id order, whatever order the caller passed.
//
// # References
//
// IncRef keeps a group alive past its handle's Release until the matching
// DecRef. Arenas built with Init refuse it. Cleanups registered with
// WithCleanup run after the last reference frees the blocks.
//
// # Thread Safety
//
// An Arena handle is not safe for concurrent allocation; its bump cursor is
// local state. Move it between goroutines, or wrap it in a SyncArena. The
// fuse group behind it is mutex protected and may be touched from any
// goroutine holding an arena that points at it (block growth, Fuse,
// Release).
//
// # Important Notes
//
//   - Allocated memory is only valid until the fuse group is released
//   - Only pointer-free types may be placed in arena memory with Alloc and
//     AllocSlice; the garbage collector does not scan arena blocks
//   - Allocation failure is fatal and panics with ErrOutOfMemory
//   - SpaceUsed only accounts for the handle's current block
package arena
