package mm

// The free list is circular, doubly linked and kept in ascending address
// order. a.head is the lowest free block, or 0 when there are none. A
// single free block links to itself in both directions.

// insertOrdered links bp into the free list at its address-ordered position.
func (a *Allocator) insertOrdered(bp int) {
	if a.head == 0 {
		a.linkSingleton(bp)
		return
	}

	// Most insertions during growth are above everything else.
	tail := predLink(a.buf, a.head)
	if bp > tail {
		a.linkBetween(tail, bp, a.head)
		return
	}

	// Find the first node above bp. The tail check guarantees one exists.
	n := a.head
	for n < bp {
		n = succLink(a.buf, n)
	}

	a.linkBetween(predLink(a.buf, n), bp, n)
	if n == a.head {
		a.head = bp
	}
}

// insertAfter links bp directly after pred without searching. pred == 0
// inserts bp as the new head. The caller is responsible for pred being the
// correct address-ordered predecessor.
func (a *Allocator) insertAfter(pred, bp int) {
	switch {
	case a.head == 0:
		a.linkSingleton(bp)
	case pred == 0:
		a.linkBetween(predLink(a.buf, a.head), bp, a.head)
		a.head = bp
	default:
		a.linkBetween(pred, bp, succLink(a.buf, pred))
	}
}

// remove unlinks bp from the free list.
func (a *Allocator) remove(bp int) {
	succ := succLink(a.buf, bp)
	if succ == bp {
		a.head = 0
		return
	}

	pred := predLink(a.buf, bp)
	setSuccLink(a.buf, pred, succ)
	setPredLink(a.buf, succ, pred)
	if a.head == bp {
		a.head = succ
	}
}

// listPred returns the hint to pass to insertAfter so that a block can take
// over bp's position after bp is removed.
func (a *Allocator) listPred(bp int) int {
	if bp == a.head {
		return 0
	}
	return predLink(a.buf, bp)
}

// findFirstFit returns the lowest-addressed free block of at least asize
// bytes, or 0 if there is none.
func (a *Allocator) findFirstFit(asize int) int {
	if a.head == 0 {
		return 0
	}

	bp := a.head
	for {
		if blockSize(a.buf, bp) >= asize {
			return bp
		}
		bp = succLink(a.buf, bp)
		if bp == a.head {
			return 0
		}
	}
}

func (a *Allocator) linkSingleton(bp int) {
	setPredLink(a.buf, bp, bp)
	setSuccLink(a.buf, bp, bp)
	a.head = bp
}

func (a *Allocator) linkBetween(pred, bp, succ int) {
	setPredLink(a.buf, bp, pred)
	setSuccLink(a.buf, bp, succ)
	setSuccLink(a.buf, pred, bp)
	setPredLink(a.buf, succ, bp)
}
