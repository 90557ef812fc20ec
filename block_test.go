package mm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackUnpack(t *testing.T) {
	assert := assert.New(t)

	for _, tc := range []struct {
		size  int
		alloc bool
		tag   uint32
	}{
		{0, true, 0x1},
		{8, true, 0x9},
		{16, false, 0x10},
		{4096, true, 0x1001},
		{MaxArenaSize, false, MaxArenaSize},
	} {
		assert.Equal(tc.tag, pack(tc.size, tc.alloc))

		size, alloc := unpack(tc.tag)
		assert.Equal(tc.size, size)
		assert.Equal(tc.alloc, alloc)
	}
}

func TestBlockNavigation(t *testing.T) {
	assert := assert.New(t)

	// Three blocks back to back: 24 allocated, 32 free, 16 allocated.
	buf := make([]byte, 128)
	setTags(buf, 16, 24, true)
	setTags(buf, 40, 32, false)
	setTags(buf, 72, 16, true)

	assert.Equal(12, hdrp(16))
	assert.Equal(32, ftrp(buf, 16))
	assert.Equal(getWord(buf, hdrp(40)), getWord(buf, ftrp(buf, 40)))

	assert.Equal(40, nextBlock(buf, 16))
	assert.Equal(72, nextBlock(buf, 40))
	assert.Equal(40, prevBlock(buf, 72))
	assert.Equal(16, prevBlock(buf, 40))

	assert.True(isAllocated(buf, 16))
	assert.False(isAllocated(buf, 40))
	assert.True(prevAllocated(buf, 40))
	assert.False(prevAllocated(buf, 72))
	assert.Equal(32, blockSize(buf, 40))

	setPredLink(buf, 40, 1000)
	setSuccLink(buf, 40, 2000)
	assert.Equal(1000, predLink(buf, 40))
	assert.Equal(2000, succLink(buf, 40))

	// Links are payload, the tags are untouched.
	assert.Equal(pack(32, false), getWord(buf, hdrp(40)))
	assert.Equal(pack(32, false), getWord(buf, ftrp(buf, 40)))
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, 0, alignUp(0, 8))
	assert.Equal(t, 8, alignUp(1, 8))
	assert.Equal(t, 8, alignUp(8, 8))
	assert.Equal(t, 16, alignUp(9, 16))
	assert.Equal(t, 4096, alignUp(4000, 4096))
}
