package arena

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func TestFuseKeepsMemoryUntilBothReleased(t *testing.T) {
	c := newCountingAllocator()
	a := New(WithAllocator(c), WithMinBlockSize(64))
	b := New(WithAllocator(c), WithMinBlockSize(64))

	fromA := a.Alloc(16, 8)
	fromB := b.Alloc(16, 8)
	copy(fromA, "from a")
	copy(fromB, "from b")

	if err := Fuse(a, b); err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	if !IsFused(a, b) {
		t.Fatal("IsFused = false after Fuse")
	}
	if a.RefCount() != 2 {
		t.Errorf("RefCount() = %d, want 2", a.RefCount())
	}

	a.Release()
	if c.freeCount() != 0 {
		t.Fatalf("blocks freed with a live fused arena: %d", c.freeCount())
	}
	if string(fromA[:6]) != "from a" {
		t.Errorf("memory from a changed: %q", fromA[:6])
	}

	b.Release()
	if c.freeCount() != 2 {
		t.Errorf("frees = %d, want 2", c.freeCount())
	}
}

func TestFuseIsSymmetricAndIdempotent(t *testing.T) {
	a := New(WithMinBlockSize(128))
	b := New(WithMinBlockSize(256))
	defer a.Release()
	defer b.Release()
	a.Alloc(10, 8)
	b.Alloc(10, 8)

	if err := Fuse(a, a); err != nil {
		t.Fatalf("Fuse(a, a): %v", err)
	}
	if a.RefCount() != 1 {
		t.Fatalf("self fuse changed RefCount to %d", a.RefCount())
	}

	if err := Fuse(a, b); err != nil {
		t.Fatalf("Fuse(a, b): %v", err)
	}
	once := a.SpaceAllocated()
	if once != 384 {
		t.Errorf("SpaceAllocated() after fuse = %d, want 384", once)
	}

	if err := Fuse(b, a); err != nil {
		t.Fatalf("Fuse(b, a): %v", err)
	}
	if got := b.SpaceAllocated(); got != once {
		t.Errorf("SpaceAllocated() after second fuse = %d, want %d", got, once)
	}
	if a.RefCount() != 2 {
		t.Errorf("RefCount() = %d, want 2", a.RefCount())
	}
}

func TestFuseDrainsSmallerGroup(t *testing.T) {
	a := New(WithMinBlockSize(64))
	b := New(WithMinBlockSize(64))
	defer a.Release()
	defer b.Release()

	for i := 0; i < 3; i++ {
		a.Alloc(64, 8)
	}
	b.Alloc(64, 8)
	ga, gb := a.root(), b.root()

	if err := Fuse(b, a); err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	if b.root() != ga {
		t.Error("group with more blocks should be kept")
	}
	if gb.parent.Load() != ga {
		t.Error("drained group should forward to the kept group")
	}
	gb.mu.Lock()
	drained := len(gb.blocks) == 0 && gb.refs == 0 && gb.allocated == 0
	gb.mu.Unlock()
	if !drained {
		t.Error("drained group bookkeeping not zeroed")
	}
	if a.NumBlocks() != 4 {
		t.Errorf("NumBlocks() = %d, want 4", a.NumBlocks())
	}
}

func TestFuseIsTransitive(t *testing.T) {
	c := newCountingAllocator()
	arenas := make([]*Arena, 4)
	for i := range arenas {
		arenas[i] = New(WithAllocator(c), WithMinBlockSize(64))
		arenas[i].Alloc(64, 8)
		arenas[i].Alloc(64, 8)
	}

	mustFuse := func(x, y *Arena) {
		t.Helper()
		if err := Fuse(x, y); err != nil {
			t.Fatalf("Fuse: %v", err)
		}
	}
	mustFuse(arenas[0], arenas[1])
	mustFuse(arenas[2], arenas[3])
	mustFuse(arenas[1], arenas[2])

	for i := range arenas {
		for j := range arenas {
			if !IsFused(arenas[i], arenas[j]) {
				t.Fatalf("arenas %d and %d not fused", i, j)
			}
		}
	}
	if arenas[3].RefCount() != 4 {
		t.Fatalf("RefCount() = %d, want 4", arenas[3].RefCount())
	}

	// A handle whose group was drained still allocates into the kept group.
	before := arenas[0].SpaceAllocated()
	arenas[0].Alloc(128, 8)
	if got := arenas[3].SpaceAllocated(); got != before+128 {
		t.Errorf("SpaceAllocated() = %d, want %d", got, before+128)
	}

	for i, a := range arenas {
		a.Release()
		if i < len(arenas)-1 && c.freeCount() != 0 {
			t.Fatalf("blocks freed after %d of %d releases", i+1, len(arenas))
		}
	}

	if c.freeCount() != c.allocs() {
		t.Errorf("frees = %d, allocs = %d", c.freeCount(), c.allocs())
	}
	for p, n := range c.freed {
		if n != 1 {
			t.Errorf("block %p freed %d times", p, n)
		}
	}
}

func TestFuseRejections(t *testing.T) {
	plain := New()
	defer plain.Release()

	withInitial := Init(make([]byte, 64))
	defer withInitial.Release()
	if err := Fuse(plain, withInitial); !errors.Is(err, ErrInitialBlock) {
		t.Errorf("Fuse with initial block = %v, want ErrInitialBlock", err)
	}
	if err := Fuse(withInitial, plain); !errors.Is(err, ErrInitialBlock) {
		t.Errorf("Fuse with initial block = %v, want ErrInitialBlock", err)
	}

	gone := New()
	gone.Release()
	if err := Fuse(plain, gone); !errors.Is(err, ErrReleased) {
		t.Errorf("Fuse with released arena = %v, want ErrReleased", err)
	}
}

func TestConcurrentFuseIsDeadlockFree(t *testing.T) {
	done := make(chan error, 1)
	go func() {
		for i := 0; i < 500; i++ {
			a, b := New(WithMinBlockSize(64)), New(WithMinBlockSize(64))
			a.Alloc(8, 8)
			b.Alloc(8, 8)

			var g errgroup.Group
			g.Go(func() error { return Fuse(a, b) })
			g.Go(func() error { return Fuse(b, a) })
			if err := g.Wait(); err != nil {
				done <- err
				return
			}
			if !IsFused(a, b) || a.RefCount() != 2 {
				done <- errors.New("pair not fused exactly once")
				return
			}
			a.Release()
			b.Release()
		}
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("concurrent Fuse(a, b) / Fuse(b, a) did not terminate")
	}
}

func TestConcurrentFuseChain(t *testing.T) {
	const n = 32
	c := newCountingAllocator()
	arenas := make([]*Arena, n)
	for i := range arenas {
		arenas[i] = New(WithAllocator(c), WithMinBlockSize(64))
		arenas[i].Alloc(8, 8)
	}

	var g errgroup.Group
	for i := 0; i < n-1; i++ {
		x, y := arenas[i], arenas[i+1]
		if i%2 == 1 {
			x, y = y, x
		}
		g.Go(func() error { return Fuse(x, y) })
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Fuse: %v", err)
	}

	if got := arenas[0].RefCount(); got != n {
		t.Fatalf("RefCount() = %d, want %d", got, n)
	}
	if got := arenas[n-1].SpaceAllocated(); got != c.totalRequested() {
		t.Errorf("SpaceAllocated() = %d, want %d", got, c.totalRequested())
	}
	for _, a := range arenas {
		a.Release()
	}
	if c.freeCount() != n {
		t.Errorf("frees = %d, want %d", c.freeCount(), n)
	}
}

func TestFuseIsLogged(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs).Level(zerolog.DebugLevel)
	a := New(WithLogger(&logger))
	b := New(WithLogger(&logger))

	if err := Fuse(a, b); err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	a.Release()
	b.Release()

	out := logs.String()
	for _, want := range []string{"arena init", "arena fuse", "arena release", "arena free"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %s", want, out)
		}
	}
}
