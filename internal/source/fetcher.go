// Package source retrieves the case line-list from a URL or a local path.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	apperrors "mpxreport/internal/errors"
)

// Fetcher opens the raw line-list. The caller closes the returned reader.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client used for remote locations
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithUserAgent sets the User-Agent header for remote requests
func WithUserAgent(userAgent string) Option {
	return func(f *Fetcher) {
		f.userAgent = userAgent
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a fetcher whose remote requests time out after timeout.
func NewFetcher(timeout time.Duration, opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: timeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// IsRemote reports whether location is fetched over HTTP
func IsRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Fetch opens location. http(s) URLs are downloaded, file:// URLs and plain
// paths are opened from disk.
func (f *Fetcher) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	if strings.TrimSpace(location) == "" {
		return nil, apperrors.NewValidationError("source location is empty")
	}
	if IsRemote(location) {
		return f.fetchRemote(ctx, location)
	}
	return f.openLocal(location)
}

func (f *Fetcher) fetchRemote(ctx context.Context, location string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid source URL %q: %v", location, err))
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/csv, */*")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperrors.NewNetworkError("failed to download source", err).
			WithContext("location", location)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, apperrors.NewNetworkError(
			fmt.Sprintf("source returned status %d", resp.StatusCode), nil).
			WithContext("location", location).
			WithContext("status", resp.StatusCode)
	}

	f.logger.InfoContext(ctx, "Source response received",
		slog.String("location", location),
		slog.Int("status", resp.StatusCode),
		slog.Int64("content_length", resp.ContentLength),
		slog.Duration("elapsed", time.Since(start)))

	return resp.Body, nil
}

func (f *Fetcher) openLocal(location string) (io.ReadCloser, error) {
	path := location
	if strings.HasPrefix(strings.ToLower(location), "file://") {
		u, err := url.Parse(location)
		if err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("invalid file URL %q: %v", location, err))
		}
		path = u.Path
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError("source file " + path)
		}
		return nil, apperrors.NewStorageError("failed to open source file", err).
			WithContext("path", path)
	}

	f.logger.Info("Source file opened", slog.String("path", path))
	return file, nil
}
