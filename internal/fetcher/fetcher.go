// Package fetcher downloads filter lists and resource files over HTTP
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/adblock-dashboard/internal/models"
)

const userAgent = "adblock-dashboard/1.0"

// Fetcher downloads remote files with retries
type Fetcher struct {
	client  *http.Client
	retries int
	backoff time.Duration
	logger  *slog.Logger
}

// New creates a new fetcher from config. A nil logger discards output.
func New(cfg models.HTTPConfig, logger *slog.Logger) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retries := cfg.Retries
	if retries == 0 {
		retries = 3
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		retries: retries,
		backoff: time.Second,
		logger:  logger,
	}
}

// Fetch downloads content from a URL with retries
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for i := 0; i < f.retries; i++ {
		if i > 0 {
			// Linear backoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * f.backoff):
			}
		}

		data, err := f.doFetch(ctx, url)
		if err == nil {
			f.logger.Debug("fetched", "url", url, "bytes", len(data), "attempt", i+1)
			return data, nil
		}
		f.logger.Warn("fetch failed", "url", url, "attempt", i+1, "error", err)
		lastErr = err
	}

	return nil, fmt.Errorf("failed after %d retries: %w", f.retries, lastErr)
}

// FetchLists downloads every list and joins them into one filter list text.
// A list that cannot be fetched is skipped; the call only fails when none
// could be fetched.
func (f *Fetcher) FetchLists(ctx context.Context, lists []models.FilterList) (string, error) {
	if len(lists) == 0 {
		return "", fmt.Errorf("no enabled filter lists")
	}

	var b strings.Builder
	fetched := 0
	var lastErr error
	for _, list := range lists {
		data, err := f.Fetch(ctx, list.URL)
		if err != nil {
			f.logger.Error("skipping list", "list", list.Name, "error", err)
			lastErr = err
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.Write(data)
		fetched++
		f.logger.Info("list fetched", "list", list.Name, "bytes", len(data))
	}

	if fetched == 0 {
		return "", fmt.Errorf("fetch filter lists: %w", lastErr)
	}
	return b.String(), nil
}

func (f *Fetcher) doFetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	return io.ReadAll(resp.Body)
}
