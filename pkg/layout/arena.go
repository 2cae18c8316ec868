package layout

import (
	"errors"
	"fmt"

	"l14box/pkg/css"
	"l14box/pkg/html"
)

// ErrStaleHandle is returned for a handle whose record has been retired.
var ErrStaleHandle = errors.New("layout: stale cascade record handle")

// Handle refers to a cascade record. It is only valid until the record at
// its depth is retired; afterwards Get reports ErrStaleHandle.
type Handle struct {
	depth int32
	gen   uint32
}

// NoHandle is the parent handle of the root record.
var NoHandle = Handle{depth: -1}

func (h Handle) Valid() bool { return h.gen != 0 && h.depth >= 0 }
func (h Handle) Depth() int  { return int(h.depth) }

// Record is the computed style of one element on the path currently being
// visited, linked to the record of its parent.
type Record struct {
	Element *html.Node
	Parent  Handle
	Style   *css.ComputedStyle
	Change  StyleChange

	// Box is set once the factory has materialized the element.
	Box *Box
	// ParentBox is the box of the nearest ancestor that has one.
	ParentBox *Box
	// Nearest enclosing boxes of each kind, nil if none.
	Container *Box
	Table     *Box
	Flex      *Box

	// QuoteDepth is the open-quote nesting level. Only records that
	// establish a quote scope use it.
	QuoteDepth int

	counters    []string          // counter instances opened in this scope
	afterQuotes []css.ContentItem // quote-only ::after content, applied at Finish
	handle      Handle
}

// Handle returns the handle this record was issued under.
func (r *Record) Handle() Handle { return r.handle }

type slot struct {
	rec  Record
	gen  uint32
	live bool
}

// Arena holds one cascade record per traversal depth. The driver owns it
// and resets it between passes.
type Arena struct {
	slots    []slot
	alloc    Allocator
	maxDepth int
}

// NewArena returns an arena that reserves records from alloc. maxDepth
// bounds the traversal depth; 0 means unbounded.
func NewArena(alloc Allocator, maxDepth int) *Arena {
	if alloc == nil {
		alloc = Unlimited()
	}
	return &Arena{alloc: alloc, maxDepth: maxDepth}
}

// acquire returns a fresh record at depth. The slot must not be live.
func (a *Arena) acquire(depth int) (*Record, error) {
	if a.maxDepth > 0 && depth >= a.maxDepth {
		return nil, fmt.Errorf("%w: nesting depth %d exceeds %d", ErrOutOfMemory, depth, a.maxDepth)
	}
	for len(a.slots) <= depth {
		a.slots = append(a.slots, slot{gen: 1})
	}
	s := &a.slots[depth]
	if s.live {
		return nil, fmt.Errorf("layout: record at depth %d still live", depth)
	}
	if err := a.alloc.Reserve(AllocRecord, 1); err != nil {
		return nil, err
	}
	s.live = true
	s.rec = Record{handle: Handle{depth: int32(depth), gen: s.gen}}
	return &s.rec, nil
}

// Get resolves a handle.
func (a *Arena) Get(h Handle) (*Record, error) {
	if !h.Valid() || int(h.depth) >= len(a.slots) {
		return nil, ErrStaleHandle
	}
	s := &a.slots[h.depth]
	if !s.live || s.gen != h.gen {
		return nil, ErrStaleHandle
	}
	return &s.rec, nil
}

// at returns the live record at depth, if any.
func (a *Arena) at(depth int) (*Record, bool) {
	if depth < 0 || depth >= len(a.slots) || !a.slots[depth].live {
		return nil, false
	}
	return &a.slots[depth].rec, true
}

// Retire invalidates h. Records deeper than h are retired first, so a
// record never outlives its parent. Retiring a stale handle is a no-op.
func (a *Arena) Retire(h Handle) {
	if _, err := a.Get(h); err != nil {
		return
	}
	for d := len(a.slots) - 1; d >= int(h.depth); d-- {
		a.retireAt(d)
	}
}

func (a *Arena) retireAt(depth int) {
	s := &a.slots[depth]
	if !s.live {
		return
	}
	s.live = false
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.rec = Record{}
	a.alloc.Release(AllocRecord, 1)
}

// Reset retires every record.
func (a *Arena) Reset() {
	for d := len(a.slots) - 1; d >= 0; d-- {
		a.retireAt(d)
	}
}

// Live reports how many records are live.
func (a *Arena) Live() int {
	n := 0
	for i := range a.slots {
		if a.slots[i].live {
			n++
		}
	}
	return n
}

// Path returns the elements of the live records from the root down.
func (a *Arena) Path() []*html.Node {
	var path []*html.Node
	for i := range a.slots {
		if !a.slots[i].live {
			break
		}
		path = append(path, a.slots[i].rec.Element)
	}
	return path
}
