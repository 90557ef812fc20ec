package mm

import "sync"

// Locked serializes every call to an Allocator with a mutex, so it can be
// shared between goroutines. Realloc runs under a single lock acquisition,
// including when it falls back to allocating a new block.
type Locked struct {
	mu sync.Mutex
	a  *Allocator
}

// NewLocked creates an allocator over arena, like New, and wraps it.
func NewLocked(arena Arena, opts ...Option) (*Locked, error) {
	a, err := New(arena, opts...)
	if err != nil {
		return nil, err
	}
	return &Locked{a: a}, nil
}

// Malloc is Allocator.Malloc under the lock.
func (l *Locked) Malloc(size uintptr) (Ptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Malloc(size)
}

// Free is Allocator.Free under the lock.
func (l *Locked) Free(p Ptr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Free(p)
}

// Realloc is Allocator.Realloc under the lock.
func (l *Locked) Realloc(p Ptr, size uintptr) (Ptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Realloc(p, size)
}

// Do calls fn with the lock held, for callers that need several operations,
// or access to a payload, to happen atomically.
func (l *Locked) Do(fn func(a *Allocator) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l.a)
}

// Check is Allocator.Check under the lock.
func (l *Locked) Check() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Check()
}

// Stats is Allocator.Stats under the lock.
func (l *Locked) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.a.Stats()
}
