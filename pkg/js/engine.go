package js

import (
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"l14box/pkg/html"
)

// Engine executes JavaScript against an HTML document's DOM. Scripts see
// the tree as the author wrote it; every change they make marks the
// affected element dirty so the next layout pass rebuilds it.
type Engine struct {
	vm     *goja.Runtime
	logger *zap.Logger

	// guard is asked before every mutation; a non-nil error is thrown
	// into the script instead of changing the tree.
	guard    func() error
	onMutate func(*html.Node)
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithGuard installs a check run before every DOM mutation, normally the
// layout driver's AllowMutation.
func WithGuard(f func() error) Option { return func(e *Engine) { e.guard = f } }

// WithMutationHook is told about every element a script changed, normally
// the layout driver's RequestReflow.
func WithMutationHook(f func(*html.Node)) Option { return func(e *Engine) { e.onMutate = f } }

// New creates a new JS engine with a fresh goja runtime.
func New(opts ...Option) *Engine {
	e := &Engine{
		vm:       goja.New(),
		logger:   zap.NewNop(),
		guard:    func() error { return nil },
		onMutate: func(*html.Node) {},
	}
	for _, o := range opts {
		o(e)
	}
	c := &consoleAPI{logger: e.logger}
	c.register(e.vm)
	return e
}

// Execute runs all scripts from the document against the DOM, in order.
// The first script error stops execution and is returned.
func (e *Engine) Execute(doc *html.Document) error {
	registerDocument(e, doc)
	for i, script := range doc.Scripts {
		if _, err := e.vm.RunString(script); err != nil {
			return fmt.Errorf("script %d: %w", i, err)
		}
		e.logger.Debug("script done", zap.Int("index", i))
	}
	return nil
}
