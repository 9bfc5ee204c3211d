package message

import (
	"fmt"
	"sync"
	"testing"

	"github.com/pavanmanishd/protoarena/arena"
)

// TestManyMessagesShareArena builds many messages in one arena and checks
// that no write bleeds into a neighbour.
func TestManyMessagesShareArena(t *testing.T) {
	a := arena.New(arena.WithMinBlockSize(1024))
	defer a.Release()

	people := make([]*Owned, 100)
	for i := range people {
		people[i] = NewIn(a, personDesc)
		m := people[i].Mut()
		Set(m, 1, fmt.Sprintf("p%d", i))
		Set(m, 2, int32(i))
		Set(m, 14, uint64(i)<<32)
		MutRepeated[int32](m, 4).Extend(int32(i), int32(i+1))
		m.Done()
	}

	for i, p := range people {
		v := p.View()
		if got := Get[string](v, 1); got != fmt.Sprintf("p%d", i) {
			t.Errorf("people[%d].name = %q", i, got)
		}
		if Get[int32](v, 2) != int32(i) || Get[uint64](v, 14) != uint64(i)<<32 {
			t.Errorf("people[%d] scalars = %d, %d", i, Get[int32](v, 2), Get[uint64](v, 14))
		}
		if s := Repeated[int32](v, 4).Slice(); len(s) != 2 || s[0] != int32(i) || s[1] != int32(i+1) {
			t.Errorf("people[%d].scores = %v", i, s)
		}
		v.Done()
	}
	if a.NumBlocks() < 2 {
		t.Errorf("NumBlocks() = %d, want the arena to have grown", a.NumBlocks())
	}
}

// TestConcurrentRequestTrees builds one message tree per goroutine and
// fuses every child into its parent.
func TestConcurrentRequestTrees(t *testing.T) {
	const workers, children = 8, 20

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			root := New(personDesc)
			defer root.Release()

			m := root.Mut()
			for i := 0; i < children; i++ {
				child := New(addressDesc)
				cm := child.Mut()
				Set(cm, 2, int32(w*children+i))
				cm.Done()
				if !m.Attach(5, child) {
					errs <- fmt.Errorf("worker %d: attach %d was not fused", w, i)
				}
			}
			m.Done()

			v := root.View()
			defer v.Done()
			if got := Get[int32](v.Message(5), 2); got != int32(w*children+children-1) {
				errs <- fmt.Errorf("worker %d: address.zip = %d", w, got)
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

// BenchmarkRequestScenarios models a server that builds one message per
// request and drops it when the response is written.
func BenchmarkRequestScenarios(b *testing.B) {
	b.Run("PerRequest/Arena", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			o := New(personDesc, arena.WithMinBlockSize(8192))
			m := o.Mut()
			Set(m, 1, "request")
			Set(m, 2, int32(i))
			tags := MutRepeated[string](m, 6)
			for j := 0; j < 20; j++ {
				tags.Push("header")
			}
			homes := m.Messages(8)
			for j := 0; j < 5; j++ {
				Set(homes.Push(), 2, int32(j))
			}
			m.Done()
			o.Release()
		}
	})

	b.Run("PerRequest/Builtin", func(b *testing.B) {
		type address struct {
			street string
			zip    int32
		}
		type person struct {
			name  string
			id    int32
			tags  []string
			homes []*address
		}
		for i := 0; i < b.N; i++ {
			p := &person{name: "request", id: int32(i)}
			for j := 0; j < 20; j++ {
				p.tags = append(p.tags, "header")
			}
			for j := 0; j < 5; j++ {
				p.homes = append(p.homes, &address{zip: int32(j)})
			}
		}
	})

	b.Run("Pooled/Arena", func(b *testing.B) {
		const conns = 64
		pool := make([]*arena.Arena, conns)
		for i := range pool {
			pool[i] = arena.New(arena.WithMinBlockSize(4096))
		}
		defer func() {
			for _, a := range pool {
				a.Release()
			}
		}()

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			o := NewIn(pool[i%conns], addressDesc)
			m := o.Mut()
			Set(m, 1, "street")
			Set(m, 2, int32(i))
			m.Done()
		}
	})
}
