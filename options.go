package mm

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const (
	// DefaultAlignment is the payload alignment when WithAlignment is not
	// given.
	DefaultAlignment = 8

	// DefaultGrowthIncrement is the minimum number of bytes requested from
	// the arena when no free block fits.
	DefaultGrowthIncrement = 4096

	// Largest supported alignment. Keeps the sentinels from dominating the
	// heap.
	maxAlignment = 4096
)

type config struct {
	alignment int
	growth    int
	log       *zap.Logger
}

// Option configures an Allocator.
type Option func(*config)

// WithAlignment sets the alignment, in bytes, of every payload returned by
// the allocator. It must be a power of two between 8 and 4096.
func WithAlignment(n int) Option {
	return func(c *config) {
		c.alignment = n
	}
}

// WithGrowthIncrement sets the minimum number of bytes requested from the
// arena when the heap must grow. It is rounded up to the alignment.
func WithGrowthIncrement(n int) Option {
	return func(c *config) {
		c.growth = n
	}
}

// WithLogger sets the logger used for heap growth and rejected pointers.
// The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

func newConfig(opts []Option) (config, error) {
	c := config{
		alignment: DefaultAlignment,
		growth:    DefaultGrowthIncrement,
	}
	for _, opt := range opts {
		opt(&c)
	}

	if c.alignment < 8 || c.alignment > maxAlignment || c.alignment&(c.alignment-1) != 0 {
		return c, errors.Wrapf(ErrBadConfig, "alignment %d is not a power of two in [8, %d]", c.alignment, maxAlignment)
	}
	if c.growth <= 0 || c.growth > MaxArenaSize/2 {
		return c, errors.Wrapf(ErrBadConfig, "growth increment %d out of range", c.growth)
	}
	c.growth = alignUp(c.growth, c.alignment)

	if c.log == nil {
		c.log = zap.NewNop()
	}

	return c, nil
}
