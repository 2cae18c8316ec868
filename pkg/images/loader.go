package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"

	"l14box/pkg/html"
	"l14box/pkg/layout"
)

// ErrClosed is returned for loads requested after Close.
var ErrClosed = errors.New("images: loader closed")

// ImageCache caches decoded images by URL.
type ImageCache struct {
	cache map[string]image.Image
	mu    sync.RWMutex
}

func NewImageCache() *ImageCache {
	return &ImageCache{cache: make(map[string]image.Image)}
}

func (c *ImageCache) Get(url string) (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.cache[url]
	return img, ok
}

func (c *ImageCache) Put(url string, img image.Image) {
	c.mu.Lock()
	c.cache[url] = img
	c.mu.Unlock()
}

func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// IsDataURI reports whether s is a data: URI.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// DataURIBytes returns the payload of a data: URI.
func DataURIBytes(uri string) ([]byte, error) {
	if !IsDataURI(uri) {
		return nil, fmt.Errorf("not a data URI: %.32q", uri)
	}
	meta, payload, ok := strings.Cut(uri[len("data:"):], ",")
	if !ok {
		return nil, errors.New("data URI without payload")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decoding data URI: %w", err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding data URI: %w", err)
	}
	return []byte(s), nil
}

// Decode decodes any registered image format.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// FetchFunc retrieves the raw bytes of a resource.
type FetchFunc func(ctx context.Context, url string) ([]byte, error)

// ReadFile is the FetchFunc for local paths and file:// URLs.
func ReadFile(_ context.Context, url string) ([]byte, error) {
	return os.ReadFile(strings.TrimPrefix(url, "file://"))
}

// Loader loads the resources referenced by replaced elements and list
// markers in the background. Concurrent requests for one URL share a
// single fetch. When a load finishes, every element that asked for it is
// handed to the notify callback, normally the layout driver's
// RequestReflow.
type Loader struct {
	fetch   FetchFunc
	cache   *ImageCache
	notify  func(*html.Node)
	logger  *zap.Logger
	timeout time.Duration

	group  singleflight.Group
	sem    chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	waiting map[string][]*html.Node // owners per in-flight URL
	done    map[string]bool         // non-image resources that arrived
	errs    map[string]error
	closed  bool
}

// Option configures a Loader.
type Option func(*Loader)

func WithFetch(f FetchFunc) Option         { return func(l *Loader) { l.fetch = f } }
func WithNotify(f func(*html.Node)) Option { return func(l *Loader) { l.notify = f } }
func WithLogger(lg *zap.Logger) Option     { return func(l *Loader) { l.logger = lg } }
func WithCache(c *ImageCache) Option       { return func(l *Loader) { l.cache = c } }
func WithTimeout(d time.Duration) Option   { return func(l *Loader) { l.timeout = d } }
func WithWorkers(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.sem = make(chan struct{}, n)
		}
	}
}

var _ layout.Loader = (*Loader)(nil)

func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		fetch:   ReadFile,
		cache:   NewImageCache(),
		notify:  func(*html.Node) {},
		logger:  zap.NewNop(),
		sem:     make(chan struct{}, 4),
		waiting: make(map[string][]*html.Node),
		done:    make(map[string]bool),
		errs:    make(map[string]error),
	}
	for _, o := range opts {
		o(l)
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	return l
}

// SetNotify replaces the completion callback. The session installs the
// driver's RequestReflow here once both exist.
func (l *Loader) SetNotify(f func(*html.Node)) {
	l.mu.Lock()
	l.notify = f
	l.mu.Unlock()
}

// Ready reports whether url has been loaded.
func (l *Loader) Ready(url string) bool {
	if _, ok := l.cache.Get(url); ok {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done[url]
}

// Err returns the error of a failed load of url, if any.
func (l *Loader) Err(url string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errs[url]
}

// Load starts loading url for owner unless it is loaded, failed, or
// already on its way, in which case owner just joins the waiters. It
// never blocks.
func (l *Loader) Load(url string, kind layout.ResourceKind, owner *html.Node) {
	if url == "" || l.Ready(url) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.errs[url] != nil {
		return
	}
	owners, inFlight := l.waiting[url]
	l.waiting[url] = append(owners, owner)
	if inFlight {
		return
	}
	l.wg.Add(1)
	go l.run(url, kind)
}

func (l *Loader) run(url string, kind layout.ResourceKind) {
	defer l.wg.Done()
	start := time.Now()
	_, err := l.load(l.ctx, url, kind)

	l.mu.Lock()
	owners := l.waiting[url]
	delete(l.waiting, url)
	if err != nil {
		l.errs[url] = err
	} else if kind != layout.ResourceImage {
		l.done[url] = true
	}
	notify := l.notify
	l.mu.Unlock()

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			l.logger.Warn("resource load failed", zap.String("url", url), zap.Stringer("kind", kind), zap.Error(err))
		}
		return
	}
	l.logger.Debug("resource loaded", zap.String("url", url), zap.Stringer("kind", kind),
		zap.Int("waiters", len(owners)), zap.Duration("elapsed", time.Since(start)))
	for _, o := range owners {
		notify(o)
	}
}

// load fetches and, for images, decodes url. Concurrent callers share
// one fetch.
func (l *Loader) load(ctx context.Context, url string, kind layout.ResourceKind) (image.Image, error) {
	v, err, _ := l.group.Do(url, func() (any, error) {
		if img, ok := l.cache.Get(url); ok {
			return img, nil
		}
		select {
		case l.sem <- struct{}{}:
			defer func() { <-l.sem }()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if l.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, l.timeout)
			defer cancel()
		}

		var data []byte
		var err error
		if IsDataURI(url) {
			data, err = DataURIBytes(url)
		} else {
			data, err = l.fetch(ctx, url)
		}
		if err != nil {
			return nil, err
		}
		if kind != layout.ResourceImage {
			return nil, nil
		}
		img, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", url, err)
		}
		l.cache.Put(url, img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	img, _ := v.(image.Image)
	return img, nil
}

// Image returns the decoded image at url, loading it synchronously when
// it is not cached yet.
func (l *Loader) Image(ctx context.Context, url string) (image.Image, error) {
	if img, ok := l.cache.Get(url); ok {
		return img, nil
	}
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	return l.load(ctx, url, layout.ResourceImage)
}

// Dimensions returns the pixel size of the image at url once it is
// loaded.
func (l *Loader) Dimensions(url string) (width, height int, ok bool) {
	img, ok := l.cache.Get(url)
	if !ok {
		return 0, 0, false
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), true
}

// Pending returns the number of URLs still loading.
func (l *Loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.waiting)
}

// Wait blocks until every load started so far has finished or ctx ends.
func (l *Loader) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels outstanding loads and waits for their goroutines.
func (l *Loader) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cancel()
	l.wg.Wait()
	return nil
}
