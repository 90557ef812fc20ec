package mm

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// A trace is a script of heap operations, one per line:
//
//	a <id> <size>   allocate size bytes as id
//	r <id> <size>   resize id to size bytes
//	f <id>          free id
//
// Blank lines and lines starting with # are ignored.
var traces = map[string]string{
	"short": `
a 0 2040
a 1 2040
f 1
a 2 48
a 3 4072
f 3
a 4 4072
f 0
f 2
a 5 4072
f 4
f 5
`,
	"coalesce": `
a 0 100
a 1 100
a 2 100
a 3 100
a 4 100
f 1
f 3
f 2
f 0
f 4
a 5 600
f 5
`,
	"realloc": `
a 0 512
a 1 128
r 0 640
a 2 128
f 1
r 0 768
a 3 128
f 2
r 0 896
r 3 16
r 0 64
f 3
f 0
`,
	"shift": `
# Freeing the neighbour first lets the block grow backwards.
a 0 64
a 1 64
a 2 64
f 0
r 1 120
f 2
r 1 200
r 1 10
f 1
`,
	"binary": binaryTrace(64, 448, 512, 200),
	"sawtooth": sawtoothTrace(50),
}

// binaryTrace interleaves small and large blocks, frees the large ones and
// then asks for blocks slightly bigger than the holes they left.
func binaryTrace(small, large, bigger, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "a %d %d\n", 2*i, small)
		fmt.Fprintf(&b, "a %d %d\n", 2*i+1, large)
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "f %d\n", 2*i+1)
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "a %d %d\n", 2*n+i, bigger)
	}
	for i := 0; i < 3*n; i++ {
		if i%2 == 1 && i < 2*n {
			continue
		}
		fmt.Fprintf(&b, "f %d\n", i)
	}
	return b.String()
}

// sawtoothTrace grows a set of blocks step by step in round robin, the
// pattern that benefits most from resizing in place.
func sawtoothTrace(n int) string {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "a %d 8\n", i)
	}
	for step := 1; step <= n; step++ {
		for i := 0; i < 10; i++ {
			fmt.Fprintf(&b, "r %d %d\n", i, 8+step*(i+1)*3)
		}
	}
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "f %d\n", i)
	}
	return b.String()
}

type traceOp struct {
	line int
	kind byte
	id   int
	size int
}

func parseTrace(t *testing.T, trace string) []traceOp {
	t.Helper()

	var ops []traceOp
	s := bufio.NewScanner(strings.NewReader(trace))
	for n := 1; s.Scan(); n++ {
		line := strings.TrimSpace(s.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		fields := strings.Fields(line)
		op := traceOp{line: n, kind: fields[0][0]}

		want := 3
		if op.kind == 'f' {
			want = 2
		}
		require.Len(t, fields, want, "line %d: %q", n, line)

		var err error
		op.id, err = strconv.Atoi(fields[1])
		require.NoError(t, err, "line %d", n)
		if want == 3 {
			op.size, err = strconv.Atoi(fields[2])
			require.NoError(t, err, "line %d", n)
		}

		ops = append(ops, op)
	}
	require.NoError(t, s.Err())
	return ops
}

// replay runs the trace, filling every block with a pattern and checking the
// heap and every live block's contents after each operation.
func replay(t *testing.T, a *Allocator, ops []traceOp) {
	type block struct {
		p    Ptr
		size int
		seed byte
	}
	live := map[int]block{}

	verify := func(op traceOp) {
		require.NoError(t, a.Check(), "line %d", op.line)
		for id, b := range live {
			require.True(t, bytes.Equal(pattern(b.size, b.seed), a.Bytes(b.p)[:b.size]),
				"line %d: contents of %d", op.line, id)
		}
	}

	for _, op := range ops {
		seed := byte(op.line)

		switch op.kind {
		case 'a':
			p, err := a.Malloc(uintptr(op.size))
			require.NoError(t, err, "line %d", op.line)
			require.NotEqual(t, Nil, p, "line %d", op.line)
			require.Zero(t, int(p)%a.Alignment(), "line %d", op.line)
			fill(a.Bytes(p)[:op.size], seed)
			live[op.id] = block{p, op.size, seed}

		case 'r':
			b, ok := live[op.id]
			require.True(t, ok, "line %d: resize of unknown id %d", op.line, op.id)

			p, err := a.Realloc(b.p, uintptr(op.size))
			require.NoError(t, err, "line %d", op.line)

			kept := min(b.size, op.size)
			require.True(t, bytes.Equal(pattern(kept, b.seed), a.Bytes(p)[:kept]),
				"line %d: resize lost contents", op.line)
			fill(a.Bytes(p)[:op.size], seed)
			live[op.id] = block{p, op.size, seed}

		case 'f':
			b, ok := live[op.id]
			require.True(t, ok, "line %d: free of unknown id %d", op.line, op.id)
			require.NoError(t, a.Free(b.p), "line %d", op.line)
			delete(live, op.id)

		default:
			t.Fatalf("line %d: unknown operation %q", op.line, op.kind)
		}

		verify(op)
	}

	require.Empty(t, live, "trace leaves blocks allocated")
}

func TestTraces(t *testing.T) {
	for name, trace := range traces {
		ops := parseTrace(t, trace)
		for _, align := range []int{8, 16, 64} {
			t.Run(fmt.Sprintf("%s/align=%d", name, align), func(t *testing.T) {
				a := newTestAllocator(t, WithAlignment(align), WithGrowthIncrement(512))
				replay(t, a, ops)

				// Everything was freed, so the heap is one free block.
				s := a.Stats()
				require.Equal(t, 1, s.FreeBlocks)
				require.Equal(t, s.HeapSize-2*align, s.FreeBytes)
			})
		}
	}
}
