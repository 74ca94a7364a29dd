// Package fetch retrieves remote documents into a local cache directory.
//
// The cache is correctness-relevant, not just a performance win: repeated
// opens of the same remote book must not re-download it. Cache entries are
// keyed by a hash of the full URL plus the sanitized final path segment, so
// distinct URLs that happen to share a filename never collide.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrorKind classifies fetch failures.
type ErrorKind int

const (
	// InvalidURL means the source string is not a fetchable URL.
	InvalidURL ErrorKind = iota
	// TransferFailed means the network transfer did not complete with a
	// success status.
	TransferFailed
	// StorageFailed means the transferred bytes could not be stored
	// durably.
	StorageFailed
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidURL:
		return "invalid url"
	case TransferFailed:
		return "transfer failed"
	case StorageFailed:
		return "storage failed"
	default:
		return "unknown"
	}
}

// Error is the typed failure returned by Fetch.
type Error struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fetcher downloads documents into a single cache directory.
type Fetcher struct {
	client *http.Client
	dir    string
	log    *zap.Logger
}

// New creates a fetcher caching into dir. log may be nil.
func New(dir string, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{
		client: &http.Client{Timeout: 5 * time.Minute},
		dir:    dir,
		log:    log,
	}
}

// DefaultDir returns XDG_CACHE_HOME/fable or ~/.cache/fable.
func DefaultDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "fable")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "fable")
}

// Fetch returns a local path holding the document at rawURL. With useCache,
// an existing cache entry is returned without any network traffic. A miss
// downloads to a temporary file, validates the response status, and
// atomically replaces any previous entry.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, useCache bool) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &Error{Kind: InvalidURL, URL: rawURL, Err: err}
	}
	if u.Scheme == "" || u.Host == "" {
		return "", &Error{Kind: InvalidURL, URL: rawURL, Err: fmt.Errorf("not an absolute URL")}
	}

	dest := filepath.Join(f.dir, cacheName(u))
	if useCache {
		if _, err := os.Stat(dest); err == nil {
			f.log.Debug("cache hit", zap.String("url", rawURL), zap.String("path", dest))
			return dest, nil
		}
	}

	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return "", &Error{Kind: StorageFailed, URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &Error{Kind: InvalidURL, URL: rawURL, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", &Error{Kind: TransferFailed, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{Kind: TransferFailed, URL: rawURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	tmp, err := os.CreateTemp(f.dir, ".fable-*")
	if err != nil {
		return "", &Error{Kind: StorageFailed, URL: rawURL, Err: err}
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		err = multierr.Append(err, tmp.Close())
		err = multierr.Append(err, os.Remove(tmp.Name()))
		return "", &Error{Kind: TransferFailed, URL: rawURL, Err: err}
	}
	if err := tmp.Close(); err != nil {
		err = multierr.Append(err, os.Remove(tmp.Name()))
		return "", &Error{Kind: StorageFailed, URL: rawURL, Err: err}
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		err = multierr.Append(err, os.Remove(tmp.Name()))
		return "", &Error{Kind: StorageFailed, URL: rawURL, Err: err}
	}

	f.log.Info("fetched", zap.String("url", rawURL), zap.String("path", dest))
	return dest, nil
}

// cacheName derives the destination filename from the whole URL, keeping
// the original basename for readability.
func cacheName(u *url.URL) string {
	sum := sha256.Sum256([]byte(u.String()))
	base := sanitizeName(path.Base(u.Path))
	return hex.EncodeToString(sum[:6]) + "-" + base
}

func sanitizeName(base string) string {
	if base == "" || base == "." || base == "/" {
		return "document"
	}
	out := make([]rune, 0, len(base))
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}
