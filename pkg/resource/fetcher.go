package resource

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"l14box/pkg/images"
	stdnet "l14box/std/net"
)

// Fetcher retrieves resources by URI.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (body []byte, contentType string, err error)
}

// DefaultFetcher fetches over HTTP/HTTPS, from the filesystem and from data
// URIs, resolving relative URIs against a base.
type DefaultFetcher struct {
	baseURL string
}

// NewFetcher creates a DefaultFetcher with the given base URL, which may be
// an http(s) URL, a file:// URL or a directory path.
func NewFetcher(baseURL string) *DefaultFetcher {
	return &DefaultFetcher{baseURL: baseURL}
}

// Resolve returns uri made absolute against the base.
func (f *DefaultFetcher) Resolve(uri string) string {
	switch {
	case images.IsDataURI(uri), stdnet.IsNetworkURL(uri), strings.HasPrefix(uri, "file://"):
		return uri
	case stdnet.IsNetworkURL(f.baseURL):
		return stdnet.ResolveURL(f.baseURL, uri)
	case f.baseURL != "" && !filepath.IsAbs(uri):
		return filepath.Join(strings.TrimPrefix(f.baseURL, "file://"), uri)
	}
	return uri
}

// Fetch retrieves the resource at uri.
func (f *DefaultFetcher) Fetch(ctx context.Context, uri string) ([]byte, string, error) {
	resolved := f.Resolve(uri)
	switch {
	case images.IsDataURI(resolved):
		body, err := images.DataURIBytes(resolved)
		if err != nil {
			return nil, "", err
		}
		ct, _, _ := strings.Cut(strings.TrimPrefix(resolved, "data:"), ",")
		ct = strings.TrimSuffix(ct, ";base64")
		return body, ct, nil
	case stdnet.IsNetworkURL(resolved):
		return stdnet.Fetch(ctx, resolved)
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	path := strings.TrimPrefix(resolved, "file://")
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}
	return body, mime.TypeByExtension(filepath.Ext(path)), nil
}

// FetchCSS fetches a stylesheet URI and returns its text content.
// Returns an error if the content type does not look like CSS or text.
func FetchCSS(ctx context.Context, f Fetcher, uri string) (string, error) {
	body, contentType, err := f.Fetch(ctx, uri)
	if err != nil {
		return "", err
	}
	ct := strings.ToLower(contentType)
	if ct != "" && !strings.HasPrefix(ct, "text/") && !strings.Contains(ct, "css") {
		return "", fmt.Errorf("unexpected content type for CSS: %s", contentType)
	}
	return string(body), nil
}

// ImageFetch adapts f to the image loader.
func ImageFetch(f Fetcher) images.FetchFunc {
	return func(ctx context.Context, uri string) ([]byte, error) {
		body, _, err := f.Fetch(ctx, uri)
		return body, err
	}
}
