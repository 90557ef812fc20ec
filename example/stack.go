package example

import (
	"github.com/cockroachdb/errors"

	"github.com/pboyd/mm"
)

// ErrStackOverflow is returned by Push when the memory has been exhausted.
var ErrStackOverflow = errors.New("stack overflow")

// ErrStackUnderflow is returned by Pop when the stack is empty.
var ErrStackUnderflow = errors.New("stack underflow")

// Stack is a simple stack for a single data type which uses a fixed amount
// of memory.
//
// T is stored in the arena, where the garbage collector cannot see it, so it
// must not hold Go pointers.
type Stack[T any] struct {
	alloc *mm.Allocator
	top   mm.Ptr
}

type stackItemHeader struct {
	data mm.Ptr
	prev mm.Ptr
}

// NewStack returns a stack using a specific amount of memory. Size is in
// bytes and includes the allocator's own bookkeeping.
func NewStack[T any](size int) (*Stack[T], error) {
	alloc, err := mm.New(mm.NewSliceArena(size), mm.WithGrowthIncrement(64))
	if err != nil {
		return nil, errors.Wrap(err, "new stack")
	}

	return &Stack[T]{alloc: alloc}, nil
}

// Push adds a copy of an item to the stack.
//
// Returns ErrStackOverflow if the stack is full.
func (s *Stack[T]) Push(item *T) error {
	header, err := s.malloc(mm.MallocArray[stackItemHeader](s.alloc, 1))
	if err != nil {
		return err
	}

	data, err := s.malloc(mm.MallocArray[T](s.alloc, 1))
	if err != nil {
		if freeErr := s.alloc.Free(header); freeErr != nil {
			return errors.CombineErrors(err, freeErr)
		}
		return err
	}

	mm.Slice[T](s.alloc, data, 1)[0] = *item
	mm.Slice[stackItemHeader](s.alloc, header, 1)[0] = stackItemHeader{
		data: data,
		prev: s.top,
	}
	s.top = header

	return nil
}

func (s *Stack[T]) malloc(p mm.Ptr, err error) (mm.Ptr, error) {
	if err != nil {
		if errors.Is(err, mm.ErrOutOfMemory) {
			return mm.Nil, ErrStackOverflow
		}
		return mm.Nil, err
	}
	return p, nil
}

// Pop removes the last item pushed onto the stack and returns it.
//
// If the stack is empty ErrStackUnderflow is returned.
func (s *Stack[T]) Pop() (*T, error) {
	if s.top == mm.Nil {
		return nil, ErrStackUnderflow
	}

	header := mm.Slice[stackItemHeader](s.alloc, s.top, 1)[0]
	dup := mm.Slice[T](s.alloc, header.data, 1)[0]

	oldTop := s.top
	s.top = header.prev

	if err := s.alloc.Free(header.data); err != nil {
		return nil, err
	}
	if err := s.alloc.Free(oldTop); err != nil {
		return nil, err
	}

	return &dup, nil
}

// Len returns the number of items on the stack.
func (s *Stack[T]) Len() int {
	n := 0
	for p := s.top; p != mm.Nil; n++ {
		p = mm.Slice[stackItemHeader](s.alloc, p, 1)[0].prev
	}
	return n
}

// Check verifies the consistency of the stack's heap.
func (s *Stack[T]) Check() error {
	return s.alloc.Check()
}
