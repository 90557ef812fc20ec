//go:build linux || darwin || freebsd

package mmaparena

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// New reserves size bytes of address space, rounded up to the page size.
// No memory is accessible until the arena grows.
func New(size int) (*Arena, error) {
	if size <= 0 {
		return nil, errors.Newf("mmaparena: invalid size %d", size)
	}

	pageSize := unix.Getpagesize()
	size = roundUp(size, pageSize)

	mem, err := unix.Mmap(-1, 0, size, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrapf(err, "mmaparena: reserve %d bytes", size)
	}

	return &Arena{
		mem:      mem,
		pageSize: pageSize,
	}, nil
}

// Grow extends the arena by n bytes and returns the offset of the first new
// byte. Newly committed pages are zeroed by the kernel.
func (a *Arena) Grow(n int) (int, error) {
	if a.mem == nil {
		return 0, ErrClosed
	}
	if n <= 0 {
		return 0, errors.Newf("mmaparena: invalid increment %d", n)
	}

	start := a.n
	if n > len(a.mem)-start {
		return 0, errors.Wrapf(ErrExhausted, "%d + %d > %d", start, n, len(a.mem))
	}

	if end := start + n; end > a.committed {
		commit := min(roundUp(end, a.pageSize), len(a.mem))
		if err := unix.Mprotect(a.mem[a.committed:commit], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			return 0, errors.Wrapf(err, "mmaparena: commit %d bytes", commit-a.committed)
		}
		a.committed = commit
	}

	a.n = start + n
	return start, nil
}

// Close unmaps the arena. Any slice obtained from Bytes must not be used
// afterwards.
func (a *Arena) Close() error {
	if a.mem == nil {
		return nil
	}

	err := unix.Munmap(a.mem)
	a.mem = nil
	a.n = 0
	a.committed = 0
	return err
}
