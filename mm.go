// Package mm is a general purpose memory allocator over a single grow-only
// arena. Blocks carry boundary tags at both ends, free blocks are kept on an
// address-ordered explicit free list and are coalesced as soon as they are
// freed.
package mm

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Ptr is the offset of a payload within the arena.
type Ptr uint32

// Nil is the null Ptr. Offset 0 is inside the heap's alignment pad, so no
// payload ever has it.
const Nil Ptr = 0

// Allocator manages memory in an Arena. Pointers returned by the allocator
// are aligned to the configured alignment (8 bytes by default).
//
// Allocator is not safe for concurrent use. Use Locked, or a mutex around
// every call, if it will be used in multiple goroutines.
type Allocator struct {
	arena Arena
	buf   []byte

	// First block of the free list, or 0 when the list is empty.
	head int

	align    int
	minBlock int
	growth   int
	log      *zap.Logger

	stats counters
}

type counters struct {
	grows           int
	mallocs         int
	frees           int
	reallocs        int
	inPlaceReallocs int
}

// New creates an allocator over an empty arena and initializes the heap.
func New(arena Arena, opts ...Option) (*Allocator, error) {
	c, err := newConfig(opts)
	if err != nil {
		return nil, err
	}

	a := &Allocator{
		arena:    arena,
		align:    c.alignment,
		minBlock: alignUp(overhead+linkSize, c.alignment),
		log:      c.log,
	}
	a.growth = max(c.growth, a.minBlock)

	if err := a.Init(); err != nil {
		return nil, err
	}
	return a, nil
}

// Init resets the allocator and lays out the heap: an alignment pad, the
// prologue block, one free block of the growth increment and the epilogue
// header. The arena must be empty.
//
// The sentinels and the first free block are requested from the arena in a
// single Grow, so a failed Init leaves the arena empty.
func (a *Allocator) Init() error {
	if n := len(a.arena.Bytes()); n != 0 {
		return errors.Wrapf(ErrArenaNotEmpty, "arena holds %d bytes", n)
	}

	a.head = 0
	a.stats = counters{}

	// The prologue's payload offset is the alignment, and the first real
	// block starts right after the prologue.
	prologue := a.align
	first := 2 * a.align
	total := first + a.growth

	if _, err := a.arena.Grow(total); err != nil {
		return outOfMemory(err, total)
	}
	a.buf = a.arena.Bytes()

	clear(a.buf[:hdrp(prologue)])
	setTags(a.buf, prologue, a.align, true)
	setTags(a.buf, first, a.growth, false)
	putWord(a.buf, hdrp(len(a.buf)), pack(0, true))
	a.insertOrdered(first)

	a.log.Debug("heap initialized",
		zap.Int("alignment", a.align),
		zap.Int("heap_size", len(a.buf)))

	return nil
}

// Malloc allocates at least size bytes and returns the payload's offset.
// Unlike the typical behavior in Go, the payload is not zeroed.
//
// Malloc returns Nil and no error when size is 0. It returns an error
// matching ErrOutOfMemory when the arena cannot grow enough.
func (a *Allocator) Malloc(size uintptr) (Ptr, error) {
	if size == 0 {
		return Nil, nil
	}

	asize, ok := a.adjust(size)
	if !ok {
		return Nil, errors.Wrapf(ErrOutOfMemory, "request of %d bytes", size)
	}

	bp := a.findFirstFit(asize)
	if bp == 0 {
		var err error
		bp, err = a.extendHeap(max(asize, a.growth))
		if err != nil {
			return Nil, err
		}
	}

	a.place(bp, asize)
	a.stats.mallocs++
	return Ptr(bp), nil
}

// Free releases the block at p and merges it with any free neighbours.
// Freeing Nil does nothing.
//
// Free checks that p addresses an allocated block before touching the heap.
// It returns an error matching ErrInvalidPointer or ErrDoubleFree otherwise,
// and the heap is left as it was.
func (a *Allocator) Free(p Ptr) error {
	if p == Nil {
		return nil
	}

	bp, err := a.validate(p, "free")
	if err != nil {
		return err
	}

	a.release(bp)
	a.stats.frees++
	return nil
}

// Realloc changes the size of the block at p to at least size bytes and
// returns the new payload offset. The contents are preserved up to the
// smaller of the old and new sizes.
//
// The block is resized in place when possible: shrinking splits off the
// unused tail, and growing absorbs free neighbours. Absorbing the previous
// block moves the payload, so the returned Ptr may differ from p even
// without a copy to a new block. Otherwise a new block is allocated, the
// contents are copied and p is freed.
//
// Realloc(Nil, size) is Malloc(size), and Realloc(p, 0) frees p and returns
// Nil. When growing fails the error matches ErrOutOfMemory and p is left
// untouched.
func (a *Allocator) Realloc(p Ptr, size uintptr) (Ptr, error) {
	if p == Nil {
		return a.Malloc(size)
	}
	if size == 0 {
		return Nil, a.Free(p)
	}

	bp, err := a.validate(p, "realloc")
	if err != nil {
		return Nil, err
	}

	asize, ok := a.adjust(size)
	if !ok {
		return Nil, errors.Wrapf(ErrOutOfMemory, "request of %d bytes", size)
	}

	a.stats.reallocs++
	oldSize := blockSize(a.buf, bp)

	if asize <= oldSize {
		a.trim(bp, oldSize, asize)
		a.stats.inPlaceReallocs++
		return p, nil
	}

	next := nextBlock(a.buf, bp)
	nextFree := 0
	if !isAllocated(a.buf, next) {
		nextFree = blockSize(a.buf, next)
	}

	// Growing into the next block keeps the payload where it is.
	if oldSize+nextFree >= asize {
		a.remove(next)
		setTags(a.buf, bp, oldSize+nextFree, true)
		a.trim(bp, oldSize+nextFree, asize)
		a.stats.inPlaceReallocs++
		return p, nil
	}

	prevFree := 0
	if !prevAllocated(a.buf, bp) {
		prevFree = bp - prevBlock(a.buf, bp)
	}

	if prevFree > 0 && oldSize+prevFree+nextFree >= asize {
		prev := bp - prevFree
		total := prevFree + oldSize

		a.remove(prev)
		if total < asize {
			a.remove(next)
			total += nextFree
		}

		copy(a.buf[prev:], a.buf[bp:bp+oldSize-overhead])
		setTags(a.buf, prev, total, true)
		a.trim(prev, total, asize)
		a.stats.inPlaceReallocs++
		return Ptr(prev), nil
	}

	np, err := a.Malloc(size)
	if err != nil {
		return Nil, err
	}

	// Malloc may have grown the arena, so a.buf is only read from here on.
	n := min(oldSize-overhead, int(size))
	copy(a.buf[int(np):int(np)+n], a.buf[bp:bp+n])
	a.release(bp)
	return np, nil
}

// Bytes returns the payload of the allocated block at p. The slice's length
// is the block's usable size, which may exceed the size that was requested.
// Bytes returns nil if p does not address an allocated block.
//
// The slice aliases the arena. It must not be used after p is freed, and
// with an arena that moves its memory when growing (such as SliceArena) it
// must not be used after any call that may grow the heap.
func (a *Allocator) Bytes(p Ptr) []byte {
	bp, err := a.check(p)
	if err != nil {
		return nil
	}

	end := bp + blockSize(a.buf, bp) - overhead
	return a.buf[bp:end:end]
}

// UsableSize returns the number of payload bytes in the allocated block at
// p, or 0 if p does not address an allocated block.
func (a *Allocator) UsableSize(p Ptr) int {
	bp, err := a.check(p)
	if err != nil {
		return 0
	}
	return blockSize(a.buf, bp) - overhead
}

// Alignment returns the alignment of every payload in bytes.
func (a *Allocator) Alignment() int {
	return a.align
}

// MinBlockSize returns the size of the smallest block the allocator creates,
// including boundary tags.
func (a *Allocator) MinBlockSize() int {
	return a.minBlock
}

// adjust converts a request into a block size that covers the boundary tags,
// the alignment and the minimum block size. It reports false when such a
// block could never fit in the arena.
func (a *Allocator) adjust(size uintptr) (int, bool) {
	if size > MaxArenaSize-overhead-uintptr(a.align) {
		return 0, false
	}
	return max(alignUp(int(size)+overhead, a.align), a.minBlock), true
}

// extendHeap grows the arena by size bytes and turns the new space into a
// free block, merged with the heap's last block if that one is free.
// Returns the resulting free block.
func (a *Allocator) extendHeap(size int) (int, error) {
	if size > MaxArenaSize-len(a.buf) {
		return 0, errors.Wrapf(ErrOutOfMemory, "heap of %d bytes cannot grow by %d", len(a.buf), size)
	}

	end := len(a.buf)
	start, err := a.arena.Grow(size)
	if err != nil {
		a.log.Debug("arena growth failed", zap.Int("increment", size), zap.Error(err))
		return 0, outOfMemory(err, size)
	}
	if start != end {
		panic(errors.AssertionFailedf("arena grew at offset %d, expected %d", start, end))
	}
	a.buf = a.arena.Bytes()

	// The old epilogue header becomes the new block's header.
	bp := start
	setTags(a.buf, bp, size, false)
	putWord(a.buf, hdrp(bp+size), pack(0, true))

	a.stats.grows++
	a.log.Debug("arena grown",
		zap.Int("increment", size),
		zap.Int("heap_size", len(a.buf)))

	return a.coalesce(bp), nil
}

// place allocates asize bytes at the start of the free block bp. The rest
// of the block is split off as a new free block when it is large enough to
// stand on its own, and takes bp's place in the free list.
func (a *Allocator) place(bp, asize int) {
	csize := blockSize(a.buf, bp)
	pred := a.listPred(bp)
	a.remove(bp)

	if csize-asize < a.minBlock {
		setTags(a.buf, bp, csize, true)
		return
	}

	setTags(a.buf, bp, asize, true)
	rest := bp + asize
	setTags(a.buf, rest, csize-asize, false)
	a.insertAfter(pred, rest)
}

// trim shrinks the allocated block bp of size bytes to asize bytes when the
// difference is large enough to become a free block. The freed tail is
// merged with the following block if that one is free.
func (a *Allocator) trim(bp, size, asize int) {
	if size-asize < a.minBlock {
		return
	}

	setTags(a.buf, bp, asize, true)
	rest := bp + asize
	setTags(a.buf, rest, size-asize, false)
	a.coalesce(rest)
}

// release marks the allocated block bp free and coalesces it.
func (a *Allocator) release(bp int) {
	setTags(a.buf, bp, blockSize(a.buf, bp), false)
	a.coalesce(bp)
}

// coalesce merges the free block bp, which is not yet on the free list, with
// its free neighbours and puts the result on the free list. Returns the
// merged block.
func (a *Allocator) coalesce(bp int) int {
	prevAlloc := prevAllocated(a.buf, bp)
	next := nextBlock(a.buf, bp)
	nextAlloc := isAllocated(a.buf, next)
	size := blockSize(a.buf, bp)

	switch {
	case prevAlloc && nextAlloc:
		a.insertOrdered(bp)

	case prevAlloc && !nextAlloc:
		// bp takes over next's position in the list.
		pred := a.listPred(next)
		a.remove(next)
		size += blockSize(a.buf, next)
		setTags(a.buf, bp, size, false)
		a.insertAfter(pred, bp)

	case !prevAlloc && nextAlloc:
		// The previous block keeps its position in the list.
		prev := prevBlock(a.buf, bp)
		size += blockSize(a.buf, prev)
		setTags(a.buf, prev, size, false)
		bp = prev

	default:
		prev := prevBlock(a.buf, bp)
		a.remove(next)
		size += blockSize(a.buf, prev) + blockSize(a.buf, next)
		setTags(a.buf, prev, size, false)
		bp = prev
	}

	return bp
}

// validate is check plus a warning in the log, for operations that would
// corrupt the heap if they went ahead.
func (a *Allocator) validate(p Ptr, op string) (int, error) {
	bp, err := a.check(p)
	if err != nil {
		a.log.Warn("rejected pointer",
			zap.String("op", op),
			zap.Uint32("ptr", uint32(p)),
			zap.Error(err))
		return 0, errors.Wrap(err, op)
	}
	return bp, nil
}

// check verifies that p addresses an allocated block, using only the block's
// own boundary tags.
func (a *Allocator) check(p Ptr) (int, error) {
	bp := int(p)
	first := 2 * a.align
	if bp < first || bp > len(a.buf)-a.minBlock || bp%a.align != 0 {
		return 0, errors.Wrapf(ErrInvalidPointer, "%#x is outside the heap [%#x, %#x)", bp, first, len(a.buf))
	}

	tag := getWord(a.buf, hdrp(bp))
	size, alloc := unpack(tag)
	if size < a.minBlock || size%a.align != 0 || size > len(a.buf)-bp {
		return 0, errors.Wrapf(ErrInvalidPointer, "%#x has no valid block header (tag %#x)", bp, tag)
	}
	if !alloc {
		return 0, errors.Wrapf(ErrDoubleFree, "block %#x is not allocated", bp)
	}
	if footer := getWord(a.buf, bp+size-overhead); footer != tag {
		return 0, errors.Wrapf(ErrInvalidPointer, "block %#x header %#x does not match footer %#x", bp, tag, footer)
	}

	return bp, nil
}
