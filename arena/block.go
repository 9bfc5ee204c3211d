package arena

import "unsafe"

const (
	// MinAlign is the alignment every block start satisfies, two pointer
	// widths.
	MinAlign = 2 * int(unsafe.Sizeof(uintptr(0)))

	// MaxAlign is the largest alignment Alloc accepts. Blocks are aligned to
	// it, so an allocation at the start of a fresh block never needs padding.
	MaxAlign = MinAlign
)

// Layout describes a block request.
type Layout struct {
	Size  int
	Align int
}

// Block is one contiguous allocation owned by a fuse group until the group
// is released.
type Block struct {
	buf    []byte
	layout Layout
	alloc  BlockAllocator
}

// Layout returns the layout the block was requested with.
func (b Block) Layout() Layout { return b.layout }

// BlockAllocator is the system allocator behind an arena.
//
// AllocBlock returns at least l.Size bytes aligned to l.Align, or nil on
// failure. FreeBlock is called exactly once per block, after the last arena
// of the owning fuse group is released and outside of any arena lock.
type BlockAllocator interface {
	AllocBlock(l Layout) []byte
	FreeBlock(buf []byte, l Layout)
}

// HeapAllocator allocates blocks from the Go heap. FreeBlock drops the
// reference and leaves reclamation to the garbage collector.
type HeapAllocator struct{}

// AllocBlock implements BlockAllocator.
func (HeapAllocator) AllocBlock(l Layout) []byte {
	if l.Size <= 0 {
		return nil
	}
	align := max(l.Align, 1)
	raw := make([]byte, l.Size+align-1)
	off := padding(raw, align)
	return raw[off : off+l.Size : off+l.Size]
}

// FreeBlock implements BlockAllocator.
func (HeapAllocator) FreeBlock([]byte, Layout) {}

// padding returns how many bytes to skip from the start of buf to reach the
// next multiple of align. buf must be non-empty.
func padding(buf []byte, align int) int {
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	mask := uintptr(align) - 1
	return int(((addr + mask) &^ mask) - addr)
}

// alignUp rounds n up to a multiple of align, which must be a power of two.
func alignUp(n, align int) int {
	mask := align - 1
	return (n + mask) &^ mask
}

func validAlign(align int) bool {
	return align > 0 && align <= MaxAlign && align&(align-1) == 0
}
