package mm

import "encoding/binary"

// Block layout, with bp the payload offset of a block of size n:
//
//	bp-4      header tag  (n | allocated)
//	bp        payload, or the predecessor link when free
//	bp+4      successor link when free
//	bp+n-8    footer tag  (n | allocated)
//
// The next block's header immediately follows the footer.
const (
	// Bytes in a boundary tag or a free-list link.
	wordSize = 4

	// Header plus footer.
	overhead = 2 * wordSize

	// Space taken by the two free-list links.
	linkSize = 2 * wordSize

	allocBit = 0x1
	sizeMask = ^uint32(0x7)
)

// pack encodes a boundary tag. size must already be aligned.
func pack(size int, allocated bool) uint32 {
	tag := uint32(size)
	if allocated {
		tag |= allocBit
	}
	return tag
}

// unpack decodes a boundary tag.
func unpack(tag uint32) (size int, allocated bool) {
	return int(tag & sizeMask), tag&allocBit != 0
}

func getWord(buf []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(buf[off : off+wordSize])
}

func putWord(buf []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(buf[off:off+wordSize], v)
}

// hdrp returns the offset of the header for the block at bp.
func hdrp(bp int) int {
	return bp - wordSize
}

// ftrp returns the offset of the footer for the block at bp. It reads the
// block's header, so the header must be current.
func ftrp(buf []byte, bp int) int {
	return bp + blockSize(buf, bp) - overhead
}

// blockSize reads the size from the header of the block at bp.
func blockSize(buf []byte, bp int) int {
	size, _ := unpack(getWord(buf, hdrp(bp)))
	return size
}

// isAllocated reads the allocated bit from the header of the block at bp.
func isAllocated(buf []byte, bp int) bool {
	_, alloc := unpack(getWord(buf, hdrp(bp)))
	return alloc
}

// setTags writes matching header and footer tags for the block at bp.
func setTags(buf []byte, bp, size int, allocated bool) {
	tag := pack(size, allocated)
	putWord(buf, hdrp(bp), tag)
	putWord(buf, bp+size-overhead, tag)
}

// nextBlock returns the payload offset of the block following bp.
func nextBlock(buf []byte, bp int) int {
	return bp + blockSize(buf, bp)
}

// prevBlock returns the payload offset of the block preceding bp, found
// through the previous block's footer.
func prevBlock(buf []byte, bp int) int {
	size, _ := unpack(getWord(buf, bp-overhead))
	return bp - size
}

// prevAllocated reads the allocated bit from the footer of the block
// preceding bp.
func prevAllocated(buf []byte, bp int) bool {
	_, alloc := unpack(getWord(buf, bp-overhead))
	return alloc
}

// Free-list links live in the first two words of a free block's payload.

func predLink(buf []byte, bp int) int {
	return int(getWord(buf, bp))
}

func succLink(buf []byte, bp int) int {
	return int(getWord(buf, bp+wordSize))
}

func setPredLink(buf []byte, bp, pred int) {
	putWord(buf, bp, uint32(pred))
}

func setSuccLink(buf []byte, bp, succ int) {
	putWord(buf, bp+wordSize, uint32(succ))
}

// alignUp rounds n up to a multiple of align, which must be a power of two.
func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
