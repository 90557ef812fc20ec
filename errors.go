package mm

import "github.com/cockroachdb/errors"

var (
	// ErrOutOfMemory is returned when the arena cannot grow enough to satisfy
	// the request. Errors from the arena itself are marked with
	// ErrOutOfMemory, so use errors.Is to test for it.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrInvalidPointer is returned by Free and Realloc when the pointer
	// does not address a live block in the heap.
	ErrInvalidPointer = errors.New("invalid pointer")

	// ErrDoubleFree is returned by Free and Realloc when the pointer
	// addresses a block that is already free.
	ErrDoubleFree = errors.New("double free")

	// ErrArenaNotEmpty is returned by Init when the arena already holds
	// data. Arenas never shrink, so a heap can only be laid out once.
	ErrArenaNotEmpty = errors.New("arena is not empty")

	// ErrBadConfig is returned by New for invalid options.
	ErrBadConfig = errors.New("invalid allocator configuration")
)

// outOfMemory wraps an arena growth failure so it still matches
// ErrOutOfMemory.
func outOfMemory(err error, increment int) error {
	return errors.Mark(errors.Wrapf(err, "grow arena by %d bytes", increment), ErrOutOfMemory)
}
