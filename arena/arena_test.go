package arena

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"unsafe"

	"github.com/rs/zerolog"
)

// countingAllocator records every block request and release.
type countingAllocator struct {
	mu        sync.Mutex
	requested []int
	freed     map[*byte]int
	frees     int
	fail      bool
	panicNext bool
}

func newCountingAllocator() *countingAllocator {
	return &countingAllocator{freed: make(map[*byte]int)}
}

func (c *countingAllocator) AllocBlock(l Layout) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.panicNext {
		c.panicNext = false
		panic("allocator exploded")
	}
	if c.fail {
		return nil
	}
	c.requested = append(c.requested, l.Size)
	return HeapAllocator{}.AllocBlock(l)
}

func (c *countingAllocator) FreeBlock(buf []byte, l Layout) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frees++
	c.freed[unsafe.SliceData(buf)]++
}

func (c *countingAllocator) allocs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requested)
}

func (c *countingAllocator) totalRequested() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	sum := 0
	for _, n := range c.requested {
		sum += n
	}
	return sum
}

func (c *countingAllocator) freeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frees
}

func mustPanicWith(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic with %v", target)
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, target) {
			t.Fatalf("panic = %v, want %v", r, target)
		}
	}()
	fn()
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		expected int
	}{
		{"default block size", nil, DefaultMinBlockSize},
		{"non-positive block size", []Option{WithMinBlockSize(-1)}, DefaultMinBlockSize},
		{"custom block size", []Option{WithMinBlockSize(8192)}, 8192},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCountingAllocator()
			a := New(append(tt.opts, WithAllocator(c))...)
			defer a.Release()

			if a.MinBlockSize() != tt.expected {
				t.Errorf("MinBlockSize() = %d, want %d", a.MinBlockSize(), tt.expected)
			}
			if c.allocs() != 0 {
				t.Errorf("New allocated %d blocks eagerly", c.allocs())
			}
			if a.SpaceAllocated() != 0 {
				t.Errorf("SpaceAllocated() = %d, want 0", a.SpaceAllocated())
			}
			if a.RefCount() != 1 {
				t.Errorf("RefCount() = %d, want 1", a.RefCount())
			}
		})
	}
}

func TestArenaAlloc(t *testing.T) {
	a := New(WithMinBlockSize(1024))
	defer a.Release()

	b1 := a.Alloc(100, 8)
	if len(b1) != 100 || cap(b1) != 100 {
		t.Errorf("Alloc(100) len/cap = %d/%d, want 100/100", len(b1), cap(b1))
	}
	for i, v := range b1 {
		if v != 0 {
			t.Fatalf("b1[%d] = %d, want zeroed memory", i, v)
		}
	}

	if b := a.Alloc(0, 8); b != nil {
		t.Errorf("Alloc(0) = %v, want nil", b)
	}
	if b := a.Alloc(-1, 8); b != nil {
		t.Errorf("Alloc(-1) = %v, want nil", b)
	}

	// Larger than the minimum block size.
	b4 := a.Alloc(2000, 8)
	if len(b4) != 2000 {
		t.Errorf("Alloc(2000) length = %d, want 2000", len(b4))
	}
	if a.NumBlocks() != 2 {
		t.Errorf("NumBlocks after large allocation = %d, want 2", a.NumBlocks())
	}
}

func TestArenaAllocAlignment(t *testing.T) {
	a := New(WithMinBlockSize(256))
	defer a.Release()

	for _, align := range []int{1, 2, 4, 8, 16} {
		a.Alloc(3, 1) // knock the cursor off alignment
		b := a.Alloc(5, align)
		if addr := uintptr(unsafe.Pointer(unsafe.SliceData(b))); addr%uintptr(align) != 0 {
			t.Errorf("Alloc(5, %d) returned address %#x", align, addr)
		}
	}

	for _, align := range []int{3, 32, -8} {
		t.Run(fmt.Sprintf("bad-%d", align), func(t *testing.T) {
			mustPanicWith(t, ErrBadAlignment, func() { a.Alloc(8, align) })
		})
	}
}

func TestArenaAllocNeverOverlaps(t *testing.T) {
	a := New(WithMinBlockSize(512))
	defer a.Release()

	type span struct{ start, end uintptr }
	var spans []span
	sizes := []int{1, 7, 64, 300, 511, 512, 513, 2048, 3, 90}
	aligns := []int{1, 2, 4, 8, 16}
	for i := 0; i < 200; i++ {
		size := sizes[i%len(sizes)]
		b := a.Alloc(size, aligns[i%len(aligns)])
		start := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
		spans = append(spans, span{start, start + uintptr(size)})
		for j := range b {
			b[j] = byte(i)
		}
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			t.Fatalf("allocations overlap: [%#x,%#x) and [%#x,%#x)",
				spans[i-1].start, spans[i-1].end, spans[i].start, spans[i].end)
		}
	}
}

func TestSpaceAllocatedCountsBlocksNotPayload(t *testing.T) {
	c := newCountingAllocator()
	a := New(WithMinBlockSize(4096), WithAllocator(c))
	defer a.Release()

	a.Alloc(3000, 8)
	if c.allocs() != 1 {
		t.Fatalf("blocks after 3000 bytes = %d, want 1", c.allocs())
	}
	a.Alloc(2000, 8)
	if c.allocs() != 2 {
		t.Fatalf("blocks after 2000 more bytes = %d, want 2", c.allocs())
	}
	if c.requested[1] < 2000 {
		t.Errorf("second block = %d bytes, want >= 2000", c.requested[1])
	}

	got := a.SpaceAllocated()
	if got != c.totalRequested() {
		t.Errorf("SpaceAllocated() = %d, want %d (sum of block sizes)", got, c.totalRequested())
	}
	if got == 5000 {
		t.Errorf("SpaceAllocated() reports payload bytes")
	}

	a.Alloc(10000, 8)
	if last := c.requested[len(c.requested)-1]; last != 10000 {
		t.Errorf("oversized block = %d, want 10000", last)
	}
}

func TestArenaResize(t *testing.T) {
	a := New(WithMinBlockSize(1024))
	defer a.Release()

	b := a.Alloc(16, 8)
	copy(b, "0123456789abcdef")

	grown := a.Resize(b, 64, 8)
	if unsafe.SliceData(grown) != unsafe.SliceData(b) {
		t.Error("growing the last allocation should happen in place")
	}
	if string(grown[:16]) != "0123456789abcdef" {
		t.Errorf("resize lost contents: %q", grown[:16])
	}

	other := a.Alloc(8, 8)
	moved := a.Resize(grown, 128, 8)
	if unsafe.SliceData(moved) == unsafe.SliceData(grown) {
		t.Error("growing a non-last allocation must copy")
	}
	if string(moved[:16]) != "0123456789abcdef" {
		t.Errorf("copying resize lost contents: %q", moved[:16])
	}
	_ = other

	shrunk := a.Resize(moved, 4, 8)
	if len(shrunk) != 4 || unsafe.SliceData(shrunk) != unsafe.SliceData(moved) {
		t.Error("shrinking should happen in place")
	}

	if r := a.Resize(nil, 10, 8); len(r) != 10 {
		t.Errorf("Resize(nil, 10) length = %d, want 10", len(r))
	}
	if r := a.Resize(shrunk, 0, 8); r != nil {
		t.Errorf("Resize(_, 0) = %v, want nil", r)
	}
}

func TestArenaRelease(t *testing.T) {
	c := newCountingAllocator()
	a := New(WithMinBlockSize(64), WithAllocator(c))
	a.Alloc(64, 8)
	a.Alloc(64, 8)
	a.Alloc(64, 8)

	a.Release()
	if c.freeCount() != 3 {
		t.Errorf("frees after Release = %d, want 3", c.freeCount())
	}

	// Release is idempotent.
	a.Release()
	if c.freeCount() != 3 {
		t.Errorf("second Release freed again: %d", c.freeCount())
	}

	mustPanicWith(t, ErrReleased, func() { a.Alloc(8, 8) })
	mustPanicWith(t, ErrReleased, func() { a.SpaceAllocated() })
}

func TestInitUsesExternalBlockFirst(t *testing.T) {
	c := newCountingAllocator()
	buf := make([]byte, 256)
	for i := range buf {
		buf[i] = 0xff
	}
	a := Init(buf, WithAllocator(c), WithMinBlockSize(1024))
	defer a.Release()

	b := a.Alloc(100, 8)
	start := uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
	got := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	if got < start || got+100 > start+256 {
		t.Fatal("first allocation did not come from the initial block")
	}
	if b[0] != 0 {
		t.Error("initial block was not cleared")
	}
	if c.allocs() != 0 || a.SpaceAllocated() != 0 {
		t.Errorf("initial block counted: allocs=%d space=%d", c.allocs(), a.SpaceAllocated())
	}

	a.Alloc(512, 8)
	if c.allocs() != 1 {
		t.Errorf("allocs after overflowing the initial block = %d, want 1", c.allocs())
	}

	a.Release()
	if c.freeCount() != 1 {
		t.Errorf("frees = %d, want 1 (initial block is not owned)", c.freeCount())
	}
}

func TestAllocatorFailureIsFatal(t *testing.T) {
	c := newCountingAllocator()
	c.fail = true
	a := New(WithAllocator(c))
	defer a.Release()

	mustPanicWith(t, ErrOutOfMemory, func() { a.Alloc(32, 8) })
}

func TestPoisonedGroupIsRecovered(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs).Level(zerolog.WarnLevel)
	c := newCountingAllocator()
	c.panicNext = true
	a := New(WithAllocator(c), WithLogger(&logger), WithMinBlockSize(64))
	defer a.Release()

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected allocator panic")
			}
		}()
		a.Alloc(8, 8)
	}()

	b := a.Alloc(8, 8)
	if len(b) != 8 {
		t.Fatalf("Alloc after poisoning length = %d, want 8", len(b))
	}
	if !strings.Contains(logs.String(), "recovered poisoned fuse group") {
		t.Errorf("expected recovery warning, got %q", logs.String())
	}
	if a.NumBlocks() != 1 {
		t.Errorf("NumBlocks() = %d, want 1", a.NumBlocks())
	}
}

func BenchmarkArenaAlloc(b *testing.B) {
	sizes := []int{8, 64, 256, 1024}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("size-%d", size), func(b *testing.B) {
			a := New(WithMinBlockSize(1 << 20))
			defer a.Release()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				a.Alloc(size, 8)
			}
		})
	}
}

func BenchmarkArenaVsBuiltin(b *testing.B) {
	b.Run("arena", func(b *testing.B) {
		a := New(WithMinBlockSize(1 << 20))
		defer a.Release()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			a.Alloc(64, 8)
		}
	})

	b.Run("builtin", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = make([]byte, 64)
		}
	})
}
