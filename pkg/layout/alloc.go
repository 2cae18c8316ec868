package layout

import (
	"errors"
	"sync"
)

// ErrOutOfMemory aborts the current pass. Whatever returned it has left
// the markup tree as it was before the failed step.
var ErrOutOfMemory = errors.New("layout: out of memory")

// AllocKind names what an allocation is for.
type AllocKind int

const (
	AllocRecord AllocKind = iota
	AllocBox
	AllocContent
	AllocElement   // anonymous structural element
	AllocPseudo    // ::before, ::after, ::marker, ::first-letter node
	AllocGenerated // generated-content child
	numAllocKinds
)

func (k AllocKind) String() string {
	switch k {
	case AllocRecord:
		return "record"
	case AllocBox:
		return "box"
	case AllocContent:
		return "content"
	case AllocElement:
		return "element"
	case AllocPseudo:
		return "pseudo"
	case AllocGenerated:
		return "generated"
	}
	return "unknown"
}

// Allocator accounts for every object the engine creates. Reserve is
// called before the object is built; a failed Reserve means nothing was
// built. Release returns a reservation that was not used.
type Allocator interface {
	Reserve(kind AllocKind, n int) error
	Release(kind AllocKind, n int)
}

type unlimited struct{}

func (unlimited) Reserve(AllocKind, int) error { return nil }
func (unlimited) Release(AllocKind, int)       {}

// Unlimited never fails.
func Unlimited() Allocator { return unlimited{} }

// BudgetAllocator fails once more than Budget objects are live.
type BudgetAllocator struct {
	mu     sync.Mutex
	budget int
	used   int
}

func NewBudgetAllocator(budget int) *BudgetAllocator {
	return &BudgetAllocator{budget: budget}
}

func (b *BudgetAllocator) Reserve(_ AllocKind, n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.used+n > b.budget {
		return ErrOutOfMemory
	}
	b.used += n
	return nil
}

func (b *BudgetAllocator) Release(_ AllocKind, n int) {
	b.mu.Lock()
	b.used -= n
	if b.used < 0 {
		b.used = 0
	}
	b.mu.Unlock()
}

// AllocatorFunc adapts a function to Allocator. Release is a no-op.
// Tests use it to inject failures at a chosen allocation.
type AllocatorFunc func(kind AllocKind, n int) error

func (f AllocatorFunc) Reserve(kind AllocKind, n int) error { return f(kind, n) }
func (f AllocatorFunc) Release(AllocKind, int)              {}

// FailOn returns an allocator that fails every reservation of kind after
// the first `after` successful ones.
func FailOn(kind AllocKind, after int) AllocatorFunc {
	var mu sync.Mutex
	seen := 0
	return func(k AllocKind, n int) error {
		if k != kind {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		if seen >= after {
			return ErrOutOfMemory
		}
		seen += n
		return nil
	}
}

// countingAllocator records successful reservations and releases per
// kind for pass statistics.
type countingAllocator struct {
	inner    Allocator
	counts   [numAllocKinds]int
	released [numAllocKinds]int
}

func (c *countingAllocator) Reserve(kind AllocKind, n int) error {
	if err := c.inner.Reserve(kind, n); err != nil {
		return err
	}
	c.counts[kind] += n
	return nil
}

func (c *countingAllocator) Release(kind AllocKind, n int) {
	c.inner.Release(kind, n)
	c.released[kind] += n
}

func (c *countingAllocator) reset() {
	c.counts = [numAllocKinds]int{}
	c.released = [numAllocKinds]int{}
}
