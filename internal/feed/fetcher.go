package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"podfetchd/internal/logctx"
)

// Fetcher retrieves raw feed XML over the shared pooled HTTP client.
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
}

func NewFetcher(client *http.Client, timeout time.Duration) *Fetcher {
	return &Fetcher{client: client, timeout: timeout}
}

// Fetch issues a single GET for the feed URL and returns the full body.
// Non-2xx responses surface as a FetchError so a broken feed is reported
// instead of being parsed as empty content. No retry.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	logger := logctx.LoggerFromContext(ctx)

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	logger.Debug("fetched feed", "url", url, "bytes", len(body))

	return body, nil
}
