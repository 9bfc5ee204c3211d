package arena

import "sync"

// SyncArena is a mutex-protected Arena handle for callers that must
// allocate from one handle on several goroutines.
type SyncArena struct {
	mu sync.Mutex
	a  *Arena
}

// NewSync creates a new goroutine-safe arena.
func NewSync(opts ...Option) *SyncArena {
	return &SyncArena{a: New(opts...)}
}

// Alloc thread-safely allocates size zeroed bytes aligned to align.
func (s *SyncArena) Alloc(size, align int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Alloc(size, align)
}

// Resize thread-safely resizes an allocation made by this arena.
func (s *SyncArena) Resize(b []byte, newSize, align int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Resize(b, newSize, align)
}

// Fuse thread-safely fuses this arena with other.
func (s *SyncArena) Fuse(other *Arena) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Fuse(s.a, other)
}

// Release thread-safely releases the underlying handle.
func (s *SyncArena) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.a.Release()
}

// Metrics thread-safely returns a snapshot of arena statistics.
func (s *SyncArena) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.a.Metrics()
}

// SyncAlloc thread-safely returns a pointer to a zeroed T inside the arena.
func SyncAlloc[T any](s *SyncArena) *T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Alloc[T](s.a)
}

// SyncAllocSlice thread-safely allocates a zeroed slice of n elements.
func SyncAllocSlice[T any](s *SyncArena, n int) []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AllocSlice[T](s.a, n)
}
