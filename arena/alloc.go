package arena

import (
	"fmt"
	"math"
	"unsafe"
)

// Alloc returns a pointer to a zeroed T stored inside the arena. T must not
// contain Go pointers: the garbage collector does not scan arena blocks.
func Alloc[T any](a *Arena) *T {
	var zero T
	size, align := int(unsafe.Sizeof(zero)), int(unsafe.Alignof(zero))
	if size == 0 {
		return new(T)
	}
	b := a.Alloc(size, align)
	return (*T)(unsafe.Pointer(unsafe.SliceData(b)))
}

// AllocSlice allocates a zeroed slice of n elements of type T inside the
// arena. T must not contain Go pointers. Returns nil if n <= 0.
func AllocSlice[T any](a *Arena, n int) []T {
	if n <= 0 {
		return nil
	}
	var zero T
	size, align := int(unsafe.Sizeof(zero)), int(unsafe.Alignof(zero))
	if size == 0 {
		return make([]T, n)
	}
	if n > math.MaxInt/size {
		panic(fmt.Errorf("%w: %d elements of %d bytes", ErrOutOfMemory, n, size))
	}
	b := a.Alloc(size*n, align)
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// GrowSlice returns a slice with the contents of s and capacity for at
// least n more elements, allocated in the arena when s has no room. The old
// backing array is left to the arena. T must not contain Go pointers.
func GrowSlice[T any](a *Arena, s []T, n int) []T {
	if n <= 0 || cap(s)-len(s) >= n {
		return s
	}
	want := max(len(s)+n, 2*cap(s), 4)
	ns := AllocSlice[T](a, want)[:len(s)]
	copy(ns, s)
	return ns
}

// AllocString copies s into the arena.
func AllocString(a *Arena, s string) string {
	if len(s) == 0 {
		return ""
	}
	b := a.Alloc(len(s), 1)
	copy(b, s)
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// CopyBytes copies b into the arena. The result has len == cap so that an
// append by the caller cannot write into neighbouring arena memory.
func CopyBytes(a *Arena, b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	nb := a.Alloc(len(b), 1)
	copy(nb, b)
	return nb
}
