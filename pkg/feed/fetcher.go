package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/umputun/newsclass/pkg/domain"
)

// maxFeedSize limits the body read from a feed endpoint
const maxFeedSize = 16 * 1024 * 1024

// HTTPFetcher retrieves raw feed documents over HTTP
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates a new feed fetcher, timeout bounds the whole request including body read
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// Fetch returns the raw bytes of the feed at feedURL. All failures are reported as transport errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, feedURL string) ([]byte, error) {
	data, err := f.fetch(ctx, feedURL)
	if err != nil {
		return nil, domain.NewError(domain.KindTransport, feedURL, err)
	}
	return data, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	addBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxFeedSize {
		return nil, fmt.Errorf("feed exceeds %d bytes", maxFeedSize)
	}
	return data, nil
}
