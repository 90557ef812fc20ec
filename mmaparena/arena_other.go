//go:build !linux && !darwin && !freebsd

package mmaparena

// New returns ErrUnsupported on this platform. Use mm.SliceArena instead.
func New(size int) (*Arena, error) {
	return nil, ErrUnsupported
}

// Grow always fails on this platform.
func (a *Arena) Grow(n int) (int, error) {
	return 0, ErrUnsupported
}

// Close does nothing on this platform.
func (a *Arena) Close() error {
	return nil
}
