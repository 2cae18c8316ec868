package layout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"l14box/pkg/css"
	"l14box/pkg/html"
)

var (
	// ErrReentrant is returned when the driver is entered again while it
	// is already running, e.g. from a callback.
	ErrReentrant = errors.New("layout: driver re-entered while running")
	// ErrPassInProgress is returned when a pass is started, or the tree is
	// about to be mutated, while a suspended pass is outstanding.
	ErrPassInProgress = errors.New("layout: pass in progress")
	// ErrNoPass is returned by Resume when no pass has been begun.
	ErrNoPass = errors.New("layout: no pass in progress")
)

// ElementState is the progress of one element within a pass.
type ElementState int

const (
	NotVisited ElementState = iota
	BoxCreationPending
	ChildrenPending
	Finished
)

func (s ElementState) String() string {
	switch s {
	case BoxCreationPending:
		return "box-creation-pending"
	case ChildrenPending:
		return "children-pending"
	case Finished:
		return "finished"
	}
	return "not-visited"
}

// PassStatus is what Resume returns when it stops.
type PassStatus int

const (
	Suspended PassStatus = iota
	Done
)

func (s PassStatus) String() string {
	if s == Done {
		return "done"
	}
	return "suspended"
}

// ResultKind says how the driver continues after constructing one box.
type ResultKind int

const (
	ResultContinue ResultKind = iota
	ResultRetry
	ResultFailed
)

// Result is the outcome of ConstructBox. Retry asks the driver to restart
// construction at At, an element that now sits where the current one was.
type Result struct {
	Kind    ResultKind
	At      *html.Node
	Err     error
	Descend bool // construct the element's children next
}

// PassStats describes the last pass.
type PassStats struct {
	ID             string
	Elements       int
	BoxesAllocated int
	BoxesReused    int
	CellsDropped   int
	Repairs        int
	Generated      int
	Retries        int
	Yields         int
	Complete       bool
	Duration       time.Duration

	// Reservations counts every successful reservation of the pass per
	// kind. Released counts reservations handed back unused, so the
	// objects actually built are Reservations minus Released.
	Reservations map[AllocKind]int
	Released     map[AllocKind]int
}

type frame struct {
	h     Handle
	elem  *html.Node
	state ElementState
	last  *html.Node // child most recently pushed
}

// Option configures a Driver.
type Option func(*Driver)

func WithLogger(l *zap.Logger) Option { return func(d *Driver) { d.logger = l } }
func WithLoader(l Loader) Option      { return func(d *Driver) { d.loader = l } }

// WithAllocator routes every engine allocation through a.
func WithAllocator(a Allocator) Option { return func(d *Driver) { d.alloc.inner = a } }

// WithYieldEvery makes Resume suspend after every n constructed elements.
// 0 never suspends.
func WithYieldEvery(n int) Option { return func(d *Driver) { d.yieldEvery = n } }

// WithMaxColumns overrides MaxColumns.
func WithMaxColumns(n int) Option { return func(d *Driver) { d.maxColumns = n } }

// WithReducedMode gives elements that are not visible no box.
func WithReducedMode(on bool) Option { return func(d *Driver) { d.reducedMode = on } }

// WithBlockList suppresses replaced elements whose source it matches.
func WithBlockList(b BlockList) Option { return func(d *Driver) { d.blocked = b } }

// WithMaxDepth bounds nesting; deeper trees fail with ErrOutOfMemory.
func WithMaxDepth(n int) Option { return func(d *Driver) { d.maxDepth = n } }

// PassOption configures a single pass.
type PassOption func(*Driver)

// StopBefore ends the pass when the walk reaches n. The partial pass keeps
// every box built so far.
func StopBefore(n *html.Node) PassOption { return func(d *Driver) { d.stopBefore = n } }

// Driver runs construction passes over a markup tree. It owns the cascade
// arena and the box tree and is not safe for concurrent use, except for
// RequestReflow and NeedsReflow.
type Driver struct {
	styles      StyleSource
	logger      *zap.Logger
	loader      Loader
	alloc       *countingAllocator
	yieldEvery  int
	maxColumns  int
	maxDepth    int
	reducedMode bool
	blocked     BlockList

	arena    *Arena
	tree     *BoxTree
	chain    *ChainBuilder
	factory  *Factory
	repair   *Repairer
	synth    *Synthesizer
	counters *Counters

	root       *html.Node
	stack      []frame
	stopBefore *html.Node
	stopped    bool
	visited    map[*html.Node]bool
	active     bool
	running    bool
	sinceYield int
	started    time.Time
	stats      PassStats

	mu          sync.Mutex
	pending     []*html.Node
	needsReflow bool
}

func NewDriver(styles StyleSource, opts ...Option) *Driver {
	d := &Driver{
		styles: styles,
		logger: zap.NewNop(),
		loader: nopLoader{},
		alloc:  &countingAllocator{inner: Unlimited()},
	}
	for _, o := range opts {
		o(d)
	}
	if d.loader == nil {
		d.loader = nopLoader{}
	}
	d.arena = NewArena(d.alloc, d.maxDepth)
	d.tree = NewBoxTree()
	d.counters = NewCounters()
	d.chain = NewChainBuilder(d.arena, styles, d.tree, d.logger.Named("chain"))
	d.chain.finalize = d.finishRecord
	d.factory = NewFactory(d.alloc, d.tree, styles, d.loader, d.maxColumns, d.logger.Named("factory"))
	d.repair = NewRepairer(d.arena, styles, d.alloc, d.logger.Named("repair"))
	d.repair.OnRemove(d.tree.forget)
	d.synth = NewSynthesizer(d.arena, styles, d.alloc, d.loader, d.counters, d.logger.Named("synth"))
	d.synth.OnRemove(d.tree.forget)
	return d
}

// Tree returns the box tree. It is complete only after a pass is Done.
func (d *Driver) Tree() *BoxTree { return d.tree }

// Stats describes the last pass.
func (d *Driver) Stats() PassStats { return d.stats }

// Repairer exposes the structural repair engine the driver uses.
func (d *Driver) Repairer() *Repairer { return d.repair }

// RequestReflow asks for a new pass that rebuilds n. It may be called from
// any goroutine; the element is marked dirty when the next pass begins.
func (d *Driver) RequestReflow(n *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n != nil {
		d.pending = append(d.pending, n)
	}
	d.needsReflow = true
}

// NeedsReflow reports whether a pass has been requested since the last
// one began, or whether the last one failed.
func (d *Driver) NeedsReflow() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.needsReflow
}

// AllowMutation reports whether the markup tree may be changed now. It
// may not while a suspended pass is outstanding.
func (d *Driver) AllowMutation() error {
	if d.active {
		return ErrPassInProgress
	}
	return nil
}

// Begin starts a pass over root. The pass does no work until Resume.
func (d *Driver) Begin(root *html.Node, opts ...PassOption) error {
	if d.running {
		return ErrReentrant
	}
	if d.active {
		return ErrPassInProgress
	}
	d.stopBefore, d.stopped = nil, false
	for _, o := range opts {
		o(d)
	}

	d.mu.Lock()
	pending := d.pending
	d.pending, d.needsReflow = nil, false
	d.mu.Unlock()
	for _, n := range pending {
		if a := n.AuthorElement(); a != nil {
			a.MarkDirty()
		}
	}

	if b, ok := d.styles.(binder); ok {
		b.Bind(root)
	}
	d.root = root
	d.arena.Reset()
	d.counters.Clear()
	d.alloc.reset()
	d.factory.allocated, d.factory.reused, d.factory.dropped = 0, 0, 0
	d.repair.repairs, d.synth.generated = 0, 0
	d.visited = make(map[*html.Node]bool)
	d.sinceYield = 0
	d.started = time.Now()
	d.stats = PassStats{ID: uuid.NewString()}

	h, _, err := d.chain.Root(root)
	if err != nil {
		return d.abort(err)
	}
	d.stack = append(d.stack[:0], frame{h: h, elem: root, state: BoxCreationPending})
	d.active = true
	d.logger.Debug("pass begin", zap.String("pass", d.stats.ID))
	return nil
}

// Run performs a whole pass over root, resuming after every suspension
// until it is done or ctx ends.
func (d *Driver) Run(ctx context.Context, root *html.Node, opts ...PassOption) error {
	if err := d.Begin(root, opts...); err != nil {
		return err
	}
	for {
		status, err := d.Resume(ctx)
		if err != nil {
			return err
		}
		if status == Done {
			return nil
		}
	}
}

// Resume continues the pass until it is done or suspends. A suspended
// pass picks up at exactly the element it stopped before. When ctx ends
// the pass stays suspended and ctx's error is returned.
func (d *Driver) Resume(ctx context.Context) (PassStatus, error) {
	if d.running {
		return Suspended, ErrReentrant
	}
	if !d.active {
		return Done, ErrNoPass
	}
	d.running = true
	defer func() { d.running = false }()

	for len(d.stack) > 0 {
		if err := ctx.Err(); err != nil {
			return Suspended, err
		}
		top := &d.stack[len(d.stack)-1]
		switch top.state {
		case BoxCreationPending:
			res := d.ConstructBox(top.h)
			switch res.Kind {
			case ResultFailed:
				return Done, d.abort(res.Err)
			case ResultRetry:
				d.retry(res.At)
				continue
			}
			top.state = Finished
			if res.Descend {
				top.state = ChildrenPending
			}
			d.sinceYield++
			if d.yieldEvery > 0 && d.sinceYield >= d.yieldEvery {
				d.sinceYield = 0
				d.stats.Yields++
				return Suspended, nil
			}
		case ChildrenPending:
			next := d.nextChild(top)
			if next == nil {
				top.state = Finished
				continue
			}
			top.last = next
			h, _, err := d.chain.ExtendCascadeChain(top.h, next)
			if err != nil {
				return Done, d.abort(err)
			}
			d.stack = append(d.stack, frame{h: h, elem: next, state: BoxCreationPending})
		case Finished:
			d.pop()
		}
	}
	d.complete()
	return Done, nil
}

func (d *Driver) nextChild(f *frame) *html.Node {
	if d.stopped {
		return nil
	}
	var next *html.Node
	if f.last == nil {
		next = f.elem.FirstChild()
	} else {
		next = f.last.NextSibling()
	}
	if next != nil && next == d.stopBefore {
		d.stopped = true
		return nil
	}
	return next
}

func (d *Driver) pop() {
	f := d.stack[len(d.stack)-1]
	if rec, err := d.arena.Get(f.h); err == nil {
		d.finishRecord(rec)
		if !d.stopped {
			rec.Element.ClearDirty()
		}
	}
	d.arena.Retire(f.h)
	d.stack = d.stack[:len(d.stack)-1]
}

// finishRecord closes what the element opened while it was visited.
func (d *Driver) finishRecord(rec *Record) {
	d.synth.Finish(rec)
	d.synth.ApplyFirstLine(rec)
	d.counters.Leave(rec)
}

// retry drops the current frame and continues with at, which the repair
// engine put into the tree in place of the current element.
func (d *Driver) retry(at *html.Node) {
	d.stats.Retries++
	f := d.stack[len(d.stack)-1]
	d.arena.Retire(f.h)
	d.stack = d.stack[:len(d.stack)-1]
	for len(d.stack) > 0 && d.stack[len(d.stack)-1].elem != at.Parent {
		d.pop()
	}
	if len(d.stack) == 0 {
		return
	}
	top := &d.stack[len(d.stack)-1]
	top.last = at.PrevSibling()
	if rec, err := d.arena.Get(top.h); err == nil && rec.Box != nil {
		if row, ok := rec.Box.Content.(*RowContent); ok {
			row.settle()
		}
	}
}

// ConstructBox builds the box of the element whose record is h: guard
// checks, structural legality, box materialization, then pseudo-element
// synthesis.
func (d *Driver) ConstructBox(h Handle) Result {
	rec, err := d.arena.Get(h)
	if err != nil {
		return Result{Kind: ResultFailed, Err: err}
	}
	elem := rec.Element
	d.visited[elem] = true
	d.stats.Elements++

	if reason, skip := d.guard(rec); skip {
		d.tree.markNoBox(elem, reason)
		return Result{Kind: ResultContinue}
	}
	if elem.IsDirty() && elem.Type == html.ElementNode {
		d.repair.RemoveElementsInsertedByLayout(elem)
	}

	if rec.Parent.Valid() {
		out, at, err := d.structure(rec)
		if err != nil {
			return Result{Kind: ResultFailed, Err: err}
		}
		if out != Continue {
			return Result{Kind: ResultRetry, At: at}
		}
	}

	scope := rec
	if p, err := d.arena.Get(rec.Parent); err == nil {
		scope = p
	}

	// Generated content sees the counters its own element changes.
	generated := elem.IsBeforePseudo() || elem.IsAfterPseudo() || elem.IsMarkerPseudo()
	if generated {
		d.counters.Enter(rec, scope)
		if err := d.synth.SynthesizeGeneratedContent(rec); err != nil {
			return Result{Kind: ResultFailed, Err: err}
		}
	}

	if _, err := d.synth.SynthesizeAltText(rec); err != nil {
		return Result{Kind: ResultFailed, Err: err}
	}
	if _, err := d.factory.AllocateBoxAndContent(rec); err != nil {
		return Result{Kind: ResultFailed, Err: err}
	}
	if rec.Box == nil {
		return Result{Kind: ResultContinue}
	}
	if !generated {
		d.counters.Enter(rec, scope)
	}

	kind := rec.Box.Content.Kind()
	if IsContainer(rec.Box.Content) && kind != ContentMarker {
		if _, err := d.synth.SynthesizePseudoElements(rec); err != nil {
			return Result{Kind: ResultFailed, Err: err}
		}
		if _, err := d.synth.SynthesizeFirstLetter(rec); err != nil {
			return Result{Kind: ResultFailed, Err: err}
		}
	}
	if kind.IsFlex() {
		if _, err := d.repair.WrapFlexItems(rec); err != nil {
			return Result{Kind: ResultFailed, Err: err}
		}
	}
	return Result{Kind: ResultContinue, Descend: IsContainer(rec.Box.Content)}
}

func (d *Driver) structure(rec *Record) (Outcome, *html.Node, error) {
	if required := d.repair.RequiredAncestor(rec); required != RoleNone {
		return d.repair.EnsureStructuralAncestor(rec, required)
	}
	return d.repair.EnsureFlexItem(rec)
}

// guard reports the reason an element gets no box at all.
func (d *Driver) guard(rec *Record) (NoBoxReason, bool) {
	elem, cs := rec.Element, rec.Style
	if elem.Type == html.TextNode {
		if elem.Text == "" {
			return NoBoxEmptyText, true
		}
		if isCollapsibleWhitespace(elem) && rec.ParentBox != nil {
			switch k := rec.ParentBox.Content.Kind(); {
			case k.IsTableStructure():
				return NoBoxTableWhitespace, true
			case k.IsFlex():
				return NoBoxFlexWhitespace, true
			}
		}
		if rec.ParentBox != nil && rec.ParentBox.Content.Kind() == ContentTableColumnGroup {
			return NoBoxColumnGroupChild, true
		}
		return "", false
	}

	if cs.Display == css.DisplayNone {
		return NoBoxDisplayNone, true
	}
	if d.reducedMode && cs.Visibility != "" && cs.Visibility != css.VisibilityVisible {
		return NoBoxHiddenReduced, true
	}
	if d.blocked != nil {
		for _, a := range []string{"src", "data"} {
			if v, ok := elem.GetAttribute(a); ok && strings.TrimSpace(v) != "" && d.blocked(strings.TrimSpace(v)) {
				return NoBoxContentBlocked, true
			}
		}
	}
	if rec.ParentBox != nil && rec.ParentBox.Content.Kind() == ContentTableColumnGroup && cs.Display != css.DisplayTableColumn {
		return NoBoxColumnGroupChild, true
	}
	switch {
	case elem.IsBeforePseudo(), elem.IsAfterPseudo():
		if !hasRealContent(cs.Content) {
			return NoBoxEmptyPseudo, true
		}
	case elem.IsMarkerPseudo():
		if !hasRealContent(cs.Content) {
			owner, err := d.arena.Get(rec.Parent)
			if err != nil || d.synth.ListMarkerContentType(owner) == MarkerNone {
				return NoBoxEmptyPseudo, true
			}
		}
	}
	return "", false
}

func (d *Driver) complete() {
	if !d.stopped {
		d.tree.sweep(d.visited)
	}
	d.active = false
	d.stats.Complete = !d.stopped
	d.fillStats()
	d.logger.Debug("pass end",
		zap.String("pass", d.stats.ID),
		zap.Int("elements", d.stats.Elements),
		zap.Int("boxes_allocated", d.stats.BoxesAllocated),
		zap.Int("boxes_reused", d.stats.BoxesReused),
		zap.Int("yields", d.stats.Yields),
		zap.Duration("duration", d.stats.Duration))
}

// abort discards all partial cascade state after a failure. The boxes and
// elements built so far stay; the next pass revisits everything.
func (d *Driver) abort(err error) error {
	d.arena.Reset()
	d.stack = d.stack[:0]
	d.counters.Clear()
	d.active = false
	d.mu.Lock()
	d.needsReflow = true
	d.mu.Unlock()
	d.fillStats()
	d.logger.Warn("pass aborted", zap.String("pass", d.stats.ID), zap.Error(err))
	return fmt.Errorf("layout pass %s: %w", d.stats.ID, err)
}

func (d *Driver) fillStats() {
	d.stats.BoxesAllocated = d.factory.allocated
	d.stats.BoxesReused = d.factory.reused
	d.stats.CellsDropped = d.factory.dropped
	d.stats.Repairs = d.repair.repairs
	d.stats.Generated = d.synth.generated
	d.stats.Duration = time.Since(d.started)
	d.stats.Reservations = kindCounts(d.alloc.counts)
	d.stats.Released = kindCounts(d.alloc.released)
}

func kindCounts(counts [numAllocKinds]int) map[AllocKind]int {
	m := make(map[AllocKind]int, numAllocKinds)
	for k, n := range counts {
		if n != 0 {
			m[AllocKind(k)] = n
		}
	}
	return m
}
