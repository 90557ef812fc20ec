package mm

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Invariant identifies a heap property verified by Check.
type Invariant int

const (
	// InvariantSentinels: the prologue and epilogue are intact.
	InvariantSentinels Invariant = iota + 1

	// InvariantTags: every block's header matches its footer.
	InvariantTags

	// InvariantCoalesced: no two adjacent blocks are both free.
	InvariantCoalesced

	// InvariantFreeList: the free list holds exactly the free blocks, once
	// each, in ascending address order, as a single cycle.
	InvariantFreeList

	// InvariantConservation: the blocks and sentinels cover the arena
	// exactly.
	InvariantConservation

	// InvariantBlockSize: every block is aligned and at least the minimum
	// block size.
	InvariantBlockSize
)

func (i Invariant) String() string {
	switch i {
	case InvariantSentinels:
		return "sentinels"
	case InvariantTags:
		return "boundary tags"
	case InvariantCoalesced:
		return "no adjacent free blocks"
	case InvariantFreeList:
		return "free list"
	case InvariantConservation:
		return "conservation"
	case InvariantBlockSize:
		return "block size"
	default:
		return fmt.Sprintf("Invariant(%d)", int(i))
	}
}

// InvariantError describes the first heap inconsistency found by Check.
type InvariantError struct {
	Invariant Invariant

	// Block is the payload offset of the offending block, or -1 when the
	// problem is not tied to one block.
	Block int

	Want int
	Got  int
	Msg  string
}

func (e *InvariantError) Error() string {
	if e.Block < 0 {
		return fmt.Sprintf("mm: %s: %s (want %d, got %d)", e.Invariant, e.Msg, e.Want, e.Got)
	}
	return fmt.Sprintf("mm: %s: block %#x: %s (want %#x, got %#x)", e.Invariant, e.Block, e.Msg, e.Want, e.Got)
}

func violation(inv Invariant, block, want, got int, format string, args ...any) error {
	return errors.WithStack(&InvariantError{
		Invariant: inv,
		Block:     block,
		Want:      want,
		Got:       got,
		Msg:       fmt.Sprintf(format, args...),
	})
}

// Check walks the whole heap and the free list and returns an error
// describing the first broken invariant, or nil if the heap is consistent.
// The returned error unwraps to an *InvariantError.
//
// Check does not modify the heap. It is meant for tests and debugging; the
// allocator never calls it.
func (a *Allocator) Check() error {
	buf := a.buf
	first := 2 * a.align

	if len(buf) < first+wordSize {
		return violation(InvariantConservation, -1, first+wordSize, len(buf), "heap is smaller than its sentinels")
	}

	prologue := a.align
	if got := getWord(buf, hdrp(prologue)); got != pack(a.align, true) {
		return violation(InvariantSentinels, prologue, int(pack(a.align, true)), int(got), "bad prologue header")
	}
	if got := getWord(buf, first-overhead); got != pack(a.align, true) {
		return violation(InvariantSentinels, prologue, int(pack(a.align, true)), int(got), "bad prologue footer")
	}

	// Forward walk over every block between the sentinels.
	free := map[int]bool{}
	total := hdrp(prologue) + a.align
	prevFree := false
	bp := first
	for {
		if bp > len(buf) {
			return violation(InvariantConservation, bp, len(buf), bp, "block runs past the end of the arena")
		}

		tag := getWord(buf, hdrp(bp))
		size, alloc := unpack(tag)
		if size == 0 {
			if !alloc || bp != len(buf) {
				return violation(InvariantSentinels, bp, len(buf), bp, "zero-size block is not a valid epilogue")
			}
			break
		}

		if bp%a.align != 0 {
			return violation(InvariantBlockSize, bp, alignUp(bp, a.align), bp, "payload is not aligned")
		}
		if size%a.align != 0 || size < a.minBlock {
			return violation(InvariantBlockSize, bp, max(alignUp(size, a.align), a.minBlock), size, "invalid block size")
		}
		if bp+size > len(buf) {
			return violation(InvariantConservation, bp, len(buf)-bp, size, "block runs past the end of the arena")
		}
		if footer := getWord(buf, bp+size-overhead); footer != tag {
			return violation(InvariantTags, bp, int(tag), int(footer), "footer does not match header")
		}

		if !alloc {
			if prevFree {
				return violation(InvariantCoalesced, bp, bp, prevBlock(buf, bp), "free block follows free block")
			}
			free[bp] = true
		}

		prevFree = !alloc
		total += size
		bp += size
	}

	total += wordSize
	if total != len(buf) {
		return violation(InvariantConservation, -1, len(buf), total, "block sizes do not add up to the arena size")
	}

	return a.checkFreeList(free)
}

// checkFreeList walks the free list and compares it with the free blocks
// found by the forward walk.
func (a *Allocator) checkFreeList(free map[int]bool) error {
	if a.head == 0 {
		if len(free) != 0 {
			return violation(InvariantFreeList, -1, len(free), 0, "free list is empty but the heap has free blocks")
		}
		return nil
	}

	seen := 0
	bp := a.head
	for {
		if !free[bp] {
			return violation(InvariantFreeList, bp, 0, bp, "free list entry is not a free block")
		}
		seen++
		if seen > len(free) {
			return violation(InvariantFreeList, bp, len(free), seen, "free list does not cycle back to its head")
		}

		succ := succLink(a.buf, bp)
		if !free[succ] {
			return violation(InvariantFreeList, bp, 0, succ, "successor link is not a free block")
		}
		if pred := predLink(a.buf, succ); pred != bp {
			return violation(InvariantFreeList, succ, bp, pred, "predecessor link does not mirror successor link")
		}

		if succ == a.head {
			break
		}
		if succ <= bp {
			return violation(InvariantFreeList, succ, bp+1, succ, "free list is not in ascending address order")
		}
		bp = succ
	}

	if seen != len(free) {
		return violation(InvariantFreeList, -1, len(free), seen, "free list length differs from the number of free blocks")
	}

	return nil
}
