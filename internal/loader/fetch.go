package loader

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/cryguy/fontworker/internal/core"
)

// fetcher retrieves resources over HTTP or from the filesystem.
type fetcher struct {
	client  *http.Client
	base    string
	maxSize int64
}

// resolve returns the absolute location of ref and whether it is remote.
func (f *fetcher) resolve(ref string) (string, bool, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", false, err
	}
	switch u.Scheme {
	case "http", "https":
		return u.String(), true, nil
	case "file":
		return filepath.FromSlash(u.Path), false, nil
	case "":
	default:
		return "", false, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if f.base != "" {
		b, err := url.Parse(f.base)
		if err == nil && (b.Scheme == "http" || b.Scheme == "https") {
			return b.ResolveReference(u).String(), true, nil
		}
	}
	if filepath.IsAbs(ref) {
		return ref, false, nil
	}
	dir := f.base
	if strings.HasPrefix(dir, "file://") {
		if b, err := url.Parse(dir); err == nil {
			dir = filepath.FromSlash(b.Path)
		}
	}
	return filepath.Join(dir, filepath.FromSlash(ref)), false, nil
}

// fetch returns the body of ref. Every failure is a *core.FetchError.
func (f *fetcher) fetch(ctx context.Context, ref string) ([]byte, error) {
	loc, remote, err := f.resolve(ref)
	if err != nil {
		return nil, &core.FetchError{URL: ref, Err: err}
	}
	if !remote {
		data, err := f.readFile(loc)
		if err != nil {
			return nil, &core.FetchError{URL: loc, Err: err}
		}
		return data, nil
	}
	return f.get(ctx, loc)
}

func (f *fetcher) readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return f.readAll(file)
}

func (f *fetcher) get(ctx context.Context, loc string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, &core.FetchError{URL: loc, Err: err}
	}
	req.Header.Set("Accept-Encoding", "br, gzip")

	client := f.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &core.FetchError{URL: loc, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &core.FetchError{URL: loc, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		body = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, &core.FetchError{URL: loc, Err: fmt.Errorf("decompressing: %w", err)}
		}
		defer func() { _ = gz.Close() }()
		body = gz
	case "", "identity":
	default:
		return nil, &core.FetchError{URL: loc, Err: fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))}
	}

	data, err := f.readAll(body)
	if err != nil {
		return nil, &core.FetchError{URL: loc, Err: err}
	}
	return data, nil
}

func (f *fetcher) readAll(r io.Reader) ([]byte, error) {
	limit := f.maxSize
	if limit <= 0 {
		limit = DefaultMaxResourceSize
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("resource larger than %d bytes", limit)
	}
	return data, nil
}
