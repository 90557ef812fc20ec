package mm

import (
	"fmt"
	"io"
)

// Stats is a snapshot of the heap's shape and the allocator's counters.
type Stats struct {
	HeapSize        int // Bytes in the arena
	FreeBytes       int // Bytes in free blocks, including their tags
	FreeBlocks      int
	AllocatedBlocks int // Not counting the sentinels

	Grows           int // Successful arena growths after Init
	Mallocs         int
	Frees           int
	Reallocs        int
	InPlaceReallocs int // Reallocs that did not copy to a new block
}

// Stats walks the heap and returns its current statistics.
func (a *Allocator) Stats() Stats {
	s := Stats{
		HeapSize:        len(a.buf),
		Grows:           a.stats.grows,
		Mallocs:         a.stats.mallocs,
		Frees:           a.stats.frees,
		Reallocs:        a.stats.reallocs,
		InPlaceReallocs: a.stats.inPlaceReallocs,
	}

	a.walk(func(bp, size int, alloc bool) {
		if alloc {
			s.AllocatedBlocks++
			return
		}
		s.FreeBlocks++
		s.FreeBytes += size
	})

	return s
}

// Size returns the total amount of memory (in bytes) in the arena.
func (a *Allocator) Size() int {
	return len(a.buf)
}

// FreeBytes returns the number of bytes in free blocks, boundary tags
// included.
//
// This requires walking the free list, so it can be slow.
func (a *Allocator) FreeBytes() int {
	if a.head == 0 {
		return 0
	}

	n := 0
	bp := a.head
	for {
		n += blockSize(a.buf, bp)
		bp = succLink(a.buf, bp)
		if bp == a.head {
			return n
		}
	}
}

// Owns reports whether p falls inside the heap's block region. It does not
// check that p is the start of a live block.
func (a *Allocator) Owns(p Ptr) bool {
	bp := int(p)
	return bp >= 2*a.align && bp < len(a.buf)-wordSize
}

// Raw makes a copy of the memory for debugging.
func (a *Allocator) Raw() []byte {
	buf := make([]byte, len(a.buf))
	copy(buf, a.buf)
	return buf
}

// Dump writes one line per block, followed by the free list, to w.
func (a *Allocator) Dump(w io.Writer) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	printf("heap size=%d alignment=%d min block=%d\n", len(a.buf), a.align, a.minBlock)

	i := 0
	a.walk(func(bp, size int, alloc bool) {
		state := "free"
		if alloc {
			state = "used"
		}
		printf("%4d. %s bp=%#x size=%d\n", i, state, bp, size)
		i++
	})

	printf("free list:")
	if a.head != 0 {
		bp := a.head
		for n := 0; n <= i; n++ {
			printf(" %#x", bp)
			bp = succLink(a.buf, bp)
			if bp == a.head {
				break
			}
		}
	}
	printf("\n")

	return err
}

// walk calls fn for every block between the sentinels, in address order.
// It stops early at a block with an invalid size so that it cannot loop on
// a corrupted heap.
func (a *Allocator) walk(fn func(bp, size int, alloc bool)) {
	for bp := 2 * a.align; bp < len(a.buf); {
		size, alloc := unpack(getWord(a.buf, hdrp(bp)))
		if size == 0 || bp+size > len(a.buf) {
			return
		}
		fn(bp, size, alloc)
		bp += size
	}
}
