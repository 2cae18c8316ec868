package resource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"l14box/pkg/css"
	"l14box/pkg/html"
	"l14box/pkg/images"
	"l14box/pkg/js"
	"l14box/pkg/layout"
)

// ErrUnsettled is returned by Settle when the document still wants a
// reflow after MaxPasses passes.
var ErrUnsettled = errors.New("resource: document did not settle")

const defaultMaxPasses = 16

// Options configures a Session.
type Options struct {
	Viewport css.MediaContext
	// Engine options are applied after the session's own, so they may
	// replace its logger or loader.
	Engine []layout.Option

	// RatePerSecond bounds how often reflow passes run. 0 means no limit.
	RatePerSecond float64
	Burst         int
	MaxPasses     int

	Scripts bool
	Logger  *zap.Logger

	LoaderWorkers int
	LoaderTimeout time.Duration
}

// Session carries one document from markup to a settled box tree: it
// parses, resolves styles, runs the construction passes, executes scripts
// and reflows as resources arrive.
type Session struct {
	id      string
	doc     *html.Document
	styles  *css.Resolver
	loader  *images.Loader
	driver  *layout.Driver
	engine  *js.Engine
	limiter *rate.Limiter
	logger  *zap.Logger

	maxPasses  int
	passes     int
	scriptsRan bool
	lastErr    error
}

// Open parses markup and prepares a session. Stylesheets are loaded
// through fetcher, which may be nil for self-contained documents. No pass
// runs until Settle.
func Open(ctx context.Context, markup string, fetcher Fetcher, opts Options) (*Session, error) {
	s := &Session{
		id:        uuid.NewString(),
		logger:    opts.Logger,
		maxPasses: opts.MaxPasses,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("session", s.id))
	if s.maxPasses <= 0 {
		s.maxPasses = defaultMaxPasses
	}

	var cssFetch html.CSSFetcher
	if fetcher != nil {
		cssFetch = func(uri string) (string, error) {
			text, err := FetchCSS(ctx, fetcher, uri)
			if err != nil {
				s.logger.Warn("stylesheet not loaded", zap.String("href", uri), zap.Error(err))
			}
			return text, err
		}
	}
	doc, err := html.ParseWithFetcher(markup, cssFetch)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	s.doc = doc

	s.styles, err = css.NewDocumentResolver(doc, opts.Viewport)
	if err != nil {
		s.logger.Warn("skipped invalid stylesheets", zap.Error(err))
	}

	loaderOpts := []images.Option{
		images.WithLogger(s.logger.Named("loader")),
		images.WithWorkers(opts.LoaderWorkers),
		images.WithTimeout(opts.LoaderTimeout),
	}
	if fetcher != nil {
		loaderOpts = append(loaderOpts, images.WithFetch(ImageFetch(fetcher)))
	}
	s.loader = images.NewLoader(loaderOpts...)

	engineOpts := append([]layout.Option{
		layout.WithLogger(s.logger.Named("driver")),
		layout.WithLoader(s.loader),
	}, opts.Engine...)
	s.driver = layout.NewDriver(s.styles, engineOpts...)
	s.loader.SetNotify(s.driver.RequestReflow)

	if opts.Scripts && len(doc.Scripts) > 0 {
		s.engine = js.New(
			js.WithLogger(s.logger.Named("js")),
			js.WithGuard(s.driver.AllowMutation),
			js.WithMutationHook(s.driver.RequestReflow),
		)
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(limit, burst)
	return s, nil
}

func (s *Session) ID() string               { return s.id }
func (s *Session) Document() *html.Document { return s.doc }
func (s *Session) Styles() *css.Resolver    { return s.styles }
func (s *Session) Driver() *layout.Driver   { return s.driver }
func (s *Session) Tree() *layout.BoxTree    { return s.driver.Tree() }
func (s *Session) Loader() *images.Loader   { return s.loader }

// Passes returns the number of passes started so far.
func (s *Session) Passes() int { return s.passes }

// Settle runs passes until nothing asks for another one: the initial pass,
// then the document's scripts, then one pass per batch of mutations or
// arrived resources. A pass that ran out of memory is retried on the next
// round. When ctx ends mid-pass the pass stays suspended and the next
// Settle finishes it.
func (s *Session) Settle(ctx context.Context) error {
	if s.passes == 0 || s.driver.AllowMutation() != nil {
		if err := s.pass(ctx); err != nil {
			return err
		}
	}
	if s.engine != nil && !s.scriptsRan {
		s.scriptsRan = true
		if err := s.engine.Execute(s.doc); err != nil {
			s.logger.Warn("script failed", zap.Error(err))
		}
	}
	for {
		if err := s.loader.Wait(ctx); err != nil {
			return err
		}
		if !s.driver.NeedsReflow() {
			if s.lastErr != nil {
				return s.lastErr
			}
			return nil
		}
		if s.passes >= s.maxPasses {
			return fmt.Errorf("%w after %d passes", ErrUnsettled, s.passes)
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := s.pass(ctx); err != nil {
			return err
		}
	}
}

// pass runs or finishes one construction pass. Running out of memory is
// not an error here; the driver keeps the tree as it was and asks for a
// reflow.
func (s *Session) pass(ctx context.Context) error {
	var err error
	if s.driver.AllowMutation() != nil {
		err = s.finish(ctx)
	} else {
		s.passes++
		err = s.driver.Run(ctx, s.doc.Root)
	}
	switch {
	case errors.Is(err, layout.ErrOutOfMemory):
		s.lastErr = err
		s.logger.Warn("pass ran out of memory", zap.Int("pass", s.passes), zap.Error(err))
		return nil
	case err != nil:
		return fmt.Errorf("pass %d: %w", s.passes, err)
	}
	s.lastErr = nil
	st := s.driver.Stats()
	s.logger.Debug("pass done",
		zap.Int("pass", s.passes),
		zap.String("id", st.ID),
		zap.Int("elements", st.Elements),
		zap.Int("allocated", st.BoxesAllocated),
		zap.Int("reused", st.BoxesReused),
		zap.Int("repairs", st.Repairs),
		zap.Duration("elapsed", st.Duration),
	)
	return nil
}

func (s *Session) finish(ctx context.Context) error {
	for {
		status, err := s.driver.Resume(ctx)
		if err != nil || status == layout.Done {
			return err
		}
	}
}

// Close stops outstanding resource loads.
func (s *Session) Close() error {
	return s.loader.Close()
}
