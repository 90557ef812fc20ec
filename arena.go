package mm

import (
	"slices"

	"github.com/cockroachdb/errors"
)

// MaxArenaSize is the largest heap the allocator can address. Pointers and
// block sizes are stored as 32-bit values, and the limit keeps offsets
// representable as a non-negative int on every platform.
const MaxArenaSize = 0x7FFFFFF8

// ErrArenaFull is returned by SliceArena.Grow when growing would exceed the
// arena's limit.
var ErrArenaFull = errors.New("arena limit reached")

// Arena is the backing store for an Allocator. It starts empty and can only
// grow.
//
// Grow extends the region by n bytes immediately after its current end and
// returns the offset of the first new byte. A failed Grow must leave the
// region unchanged. Bytes returns the entire region; the allocator calls it
// again after every successful Grow, so implementations are free to move the
// underlying memory.
type Arena interface {
	Grow(n int) (int, error)
	Bytes() []byte
}

// SliceArena is an Arena held in an ordinary Go byte slice. New memory is
// zeroed.
//
// Growing a SliceArena may move its contents, which invalidates any slices
// previously obtained from it.
type SliceArena struct {
	buf   []byte
	limit int
}

// NewSliceArena returns an empty arena that can grow up to limit bytes. A
// limit <= 0 (or above MaxArenaSize) means MaxArenaSize.
func NewSliceArena(limit int) *SliceArena {
	if limit <= 0 || limit > MaxArenaSize {
		limit = MaxArenaSize
	}
	return &SliceArena{limit: limit}
}

// Grow implements Arena.
func (a *SliceArena) Grow(n int) (int, error) {
	if n <= 0 {
		return 0, errors.Newf("invalid arena increment %d", n)
	}

	start := len(a.buf)
	if n > a.limit-start {
		return 0, errors.Wrapf(ErrArenaFull, "%d + %d > %d", start, n, a.limit)
	}

	a.buf = slices.Grow(a.buf, n)[:start+n]
	return start, nil
}

// Bytes implements Arena.
func (a *SliceArena) Bytes() []byte {
	return a.buf
}

// Len returns the current size of the arena in bytes.
func (a *SliceArena) Len() int {
	return len(a.buf)
}

// Limit returns the maximum size of the arena in bytes.
func (a *SliceArena) Limit() int {
	return a.limit
}
