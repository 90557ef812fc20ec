package mm

import (
	"unsafe"

	"golang.org/x/exp/constraints"
)

// MallocArray allocates zeroed storage for n values of type T and returns
// its offset. Use Slice to access the values.
//
// The data stored in the arena is invisible to the garbage collector, so T
// must not contain Go pointers (including strings, slices, maps and
// interfaces) that are the only reference to their target.
//
// It will panic if n is less than 0.
func MallocArray[T any, N constraints.Integer](a *Allocator, n N) (Ptr, error) {
	if n < 0 {
		panic("mm.MallocArray: invalid argument: n < 0")
	}

	size := sizeof[T]() * uintptr(n)
	if n != 0 && size/uintptr(n) != sizeof[T]() {
		// Overflow. Let Malloc reject it.
		size = ^uintptr(0)
	}

	p, err := a.Malloc(size)
	if err != nil || p == Nil {
		return p, err
	}

	clear(a.Bytes(p))
	return p, nil
}

// Slice returns a []T of length n over the payload at p. It will panic if
// p is not an allocated block, if n is negative, if n values of T do not
// fit in the block, or if T needs more alignment than the allocator
// provides.
//
// The slice aliases the arena and follows the same rules as Bytes: it must
// not be used after p is freed, or after a call that grows a SliceArena.
func Slice[T any, N constraints.Integer](a *Allocator, p Ptr, n N) []T {
	if n < 0 {
		panic("mm.Slice: invalid argument: n < 0")
	}

	buf := a.Bytes(p)
	if buf == nil {
		panic("mm.Slice: pointer is not an allocated block")
	}
	if n == 0 {
		return []T{}
	}
	if sizeof[T]()*uintptr(n) > uintptr(len(buf)) {
		panic("mm.Slice: block is too small")
	}
	if uintptr(unsafe.Pointer(&buf[0]))%alignof[T]() != 0 {
		panic("mm.Slice: payload is not aligned for the element type")
	}

	return unsafe.Slice((*T)(unsafe.Pointer(&buf[0])), int(n))
}

func sizeof[T any]() uintptr {
	return unsafe.Sizeof((*(*T)(nil)))
}

func alignof[T any]() uintptr {
	return unsafe.Alignof((*(*T)(nil)))
}
