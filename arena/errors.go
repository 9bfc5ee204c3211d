package arena

import "errors"

var (
	// ErrOutOfMemory is the panic value when a BlockAllocator returns no
	// block or a short one.
	ErrOutOfMemory = errors.New("arena: block allocator failed")
	// ErrReleased reports use of an arena handle after Release.
	ErrReleased = errors.New("arena: use after Release()")
	// ErrInitialBlock is returned by Fuse for arenas built with Init.
	ErrInitialBlock = errors.New("arena: cannot fuse an arena with an initial block")
	// ErrBadAlignment is the panic value for an alignment that is not a
	// power of two or exceeds MaxAlign.
	ErrBadAlignment = errors.New("arena: alignment must be a power of two no larger than MaxAlign")
	// ErrMisalignedBlk is the panic value when a BlockAllocator returns a
	// block not aligned to MaxAlign.
	ErrMisalignedBlk = errors.New("arena: block allocator returned misaligned memory")
	// ErrNoRef is the panic value for DecRef without an outstanding IncRef.
	ErrNoRef = errors.New("arena: DecRef without a matching IncRef")
)
