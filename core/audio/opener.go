package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Opener resolves a track locator into a seekable byte stream.
type Opener interface {
	Open(ctx context.Context, locator string) (io.ReadSeekCloser, error)
}

// FileOpener reads locators as paths relative to Root.
type FileOpener struct {
	Root string
}

// Open implements Opener.
func (o FileOpener) Open(_ context.Context, locator string) (io.ReadSeekCloser, error) {
	p := strings.TrimPrefix(locator, "file://")
	if !filepath.IsAbs(p) {
		rel := filepath.Clean(filepath.FromSlash(p))
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("locator %q escapes assets root", locator)
		}
		p = filepath.Join(o.Root, rel)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return f, nil
}

// HTTPOpener downloads http(s) locators fully into memory; decoders need to seek.
// Locators without a scheme are resolved against BaseURL when it is set.
type HTTPOpener struct {
	Client  *http.Client
	BaseURL string
}

// NewHTTPOpener returns an opener with a bounded request timeout.
func NewHTTPOpener() HTTPOpener {
	return HTTPOpener{Client: &http.Client{Timeout: 60 * time.Second}}
}

// Open implements Opener.
func (o HTTPOpener) Open(ctx context.Context, locator string) (io.ReadSeekCloser, error) {
	if o.BaseURL != "" && !strings.Contains(locator, "://") {
		locator = strings.TrimRight(o.BaseURL, "/") + "/" + escapePath(strings.TrimLeft(locator, "/"))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, err
	}
	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", locator, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", locator, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", locator, err)
	}
	return nopSeekCloser{bytes.NewReader(data)}, nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

type nopSeekCloser struct {
	*bytes.Reader
}

func (nopSeekCloser) Close() error { return nil }

// MultiOpener routes a locator by its scheme prefix ("minio://", "https://").
// Locators without a registered scheme go to Fallback.
type MultiOpener struct {
	Schemes  map[string]Opener
	Fallback Opener
}

// Open implements Opener.
func (m MultiOpener) Open(ctx context.Context, locator string) (io.ReadSeekCloser, error) {
	if i := strings.Index(locator, "://"); i > 0 {
		if o, ok := m.Schemes[strings.ToLower(locator[:i])]; ok {
			return o.Open(ctx, locator)
		}
	}
	if m.Fallback == nil {
		return nil, fmt.Errorf("no opener for %q", locator)
	}
	return m.Fallback.Open(ctx, locator)
}
