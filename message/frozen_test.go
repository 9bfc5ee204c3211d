package message

import (
	"context"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/pavanmanishd/protoarena/arena"
)

type freeCounter struct {
	mu    sync.Mutex
	frees int
}

func (c *freeCounter) AllocBlock(l arena.Layout) []byte { return arena.HeapAllocator{}.AllocBlock(l) }

func (c *freeCounter) FreeBlock(buf []byte, l arena.Layout) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frees++
}

func (c *freeCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frees
}

func frozenPerson(t *testing.T, opts ...arena.Option) *Frozen {
	t.Helper()
	o := New(personDesc, opts...)
	m := o.Mut()
	Set(m, 1, "frozen")
	MutRepeated[int32](m, 4).Extend(1, 2, 3)
	Set(m.Message(5), 2, int32(94107))
	m.Done()
	return o.Freeze()
}

func TestFreezeConsumesOwned(t *testing.T) {
	o := New(personDesc)
	v := o.View()
	mustPanicWith(t, ErrBorrowActive, func() { o.Freeze() })
	v.Done()

	f := o.Freeze()
	defer f.Release()
	if !o.Released() {
		t.Error("Released() = false after Freeze")
	}
	mustPanicWith(t, ErrReleased, func() { o.Mut() })
	mustPanicWith(t, ErrReleased, func() { o.Freeze() })
	o.Release()

	fv := f.View()
	defer fv.Done()
	if f.Descriptor() != personDesc {
		t.Errorf("Descriptor() = %s", f.Descriptor().Name())
	}
}

func TestSharedHandleOutlivesOriginal(t *testing.T) {
	c := &freeCounter{}
	f := frozenPerson(t, arena.WithAllocator(c))
	g := f.Share()

	f.Release()
	if c.count() != 0 {
		t.Fatalf("frees = %d while a shared handle is live", c.count())
	}

	v := g.View()
	if got := Get[string](v, 1); got != "frozen" {
		t.Errorf("name = %q", got)
	}
	if got := Get[int32](v.Message(5), 2); got != 94107 {
		t.Errorf("address.zip = %d", got)
	}
	v.Done()

	h := g.Share()
	g.Release()
	if c.count() != 0 {
		t.Fatalf("frees = %d while a shared handle is live", c.count())
	}
	h.Release()
	if c.count() == 0 {
		t.Error("last Release freed nothing")
	}
}

func TestFrozenReleaseRefusesLiveView(t *testing.T) {
	f := frozenPerson(t)
	v := f.View()
	mustPanicWith(t, ErrBorrowActive, func() { f.Release() })
	v.Done()
	f.Release()
	f.Release()
	if !f.Released() {
		t.Error("Released() = false")
	}
	mustPanicWith(t, ErrReleased, func() { f.View() })
	mustPanicWith(t, ErrReleased, func() { f.Share() })
}

func TestShareCopiesInitialBlockArena(t *testing.T) {
	o := NewIn(arena.Init(make([]byte, 4096)), personDesc)
	m := o.Mut()
	Set(m, 1, "stack")
	m.Done()
	f := o.Freeze()

	g := f.Share()
	f.Release()
	defer g.Release()
	if g.arena == f.arena {
		t.Fatal("Share referenced an arena with an initial block")
	}
	v := g.View()
	defer v.Done()
	if got := Get[string](v, 1); got != "stack" {
		t.Errorf("name = %q", got)
	}
}

func TestFrozenSharedAcrossGoroutines(t *testing.T) {
	const workers = 8
	c := &freeCounter{}
	f := frozenPerson(t, arena.WithAllocator(c))

	handles := make([]*Frozen, workers)
	for i := range handles {
		handles[i] = f.Share()
	}
	f.Release()

	g, _ := errgroup.WithContext(context.Background())
	for _, h := range handles {
		g.Go(func() error {
			defer h.Release()
			for i := 0; i < 50; i++ {
				v := h.View()
				if s := Repeated[int32](v, 4).Slice(); len(s) != 3 || s[2] != 3 {
					t.Errorf("scores = %v", s)
				}
				v.Done()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if c.count() == 0 {
		t.Error("arena was not freed after every handle was released")
	}
}
