package example

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stackTestItem struct {
	Int   int
	Float float64
}

func TestStack(t *testing.T) {
	assert := assert.New(t)

	stack, err := NewStack[stackTestItem](1024)
	if !assert.NoError(err) {
		return
	}

	max := 0
	for i := 0; ; i++ {
		err := stack.Push(&stackTestItem{
			Int:   i,
			Float: float64(i),
		})
		if errors.Is(err, ErrStackOverflow) {
			break
		}
		if assert.NoError(err) {
			max = i
		}
	}
	assert.Greater(max, 0)
	assert.Equal(max+1, stack.Len())
	assert.NoError(stack.Check())

	for i := max; i >= 0; i-- {
		item, err := stack.Pop()
		if assert.NoError(err) {
			assert.Equal(i, item.Int)
			assert.Equal(float64(i), item.Float)
		}
	}

	_, err = stack.Pop()
	assert.ErrorIs(err, ErrStackUnderflow)
	assert.NoError(stack.Check())
}

func TestStackReuse(t *testing.T) {
	assert := assert.New(t)

	stack, err := NewStack[stackTestItem](512)
	if !assert.NoError(err) {
		return
	}

	// Popping must return memory to the allocator, otherwise the second
	// round would overflow.
	for round := 0; round < 3; round++ {
		for i := 0; i < 5; i++ {
			assert.NoError(stack.Push(&stackTestItem{Int: i}))
		}
		for i := 4; i >= 0; i-- {
			item, err := stack.Pop()
			if assert.NoError(err) {
				assert.Equal(i, item.Int)
			}
		}
	}

	assert.Equal(0, stack.Len())
	assert.NoError(stack.Check())
}

func TestNewStackTooSmall(t *testing.T) {
	_, err := NewStack[stackTestItem](16)
	assert.Error(t, err)
}
