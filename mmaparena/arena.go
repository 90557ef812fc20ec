// Package mmaparena provides an mm.Arena backed by an anonymous memory
// mapping. The whole address range is reserved up front and pages are made
// accessible as the arena grows, so the arena's memory never moves and
// slices into it stay valid for the life of the arena.
package mmaparena

import "github.com/cockroachdb/errors"

var (
	// ErrExhausted is returned by Grow when the reservation is used up.
	ErrExhausted = errors.New("mmaparena: reservation exhausted")

	// ErrClosed is returned by Grow after Close.
	ErrClosed = errors.New("mmaparena: arena is closed")

	// ErrUnsupported is returned by New on platforms without mmap.
	ErrUnsupported = errors.New("mmaparena: not supported on this platform")
)

// Arena is a grow-only region inside a reserved mapping.
//
// Arena is not safe for concurrent use.
type Arena struct {
	mem       []byte // the whole reservation
	n         int    // bytes handed out
	committed int    // bytes made readable and writable, a multiple of the page size
	pageSize  int
}

// Bytes returns the part of the reservation that has been grown into.
func (a *Arena) Bytes() []byte {
	return a.mem[:a.n:a.n]
}

// Len returns the current size of the arena.
func (a *Arena) Len() int {
	return a.n
}

// Reserved returns the maximum size of the arena.
func (a *Arena) Reserved() int {
	return len(a.mem)
}

// Committed returns the number of bytes currently backed by accessible
// pages.
func (a *Arena) Committed() int {
	return a.committed
}

func roundUp(n, to int) int {
	return (n + to - 1) / to * to
}
