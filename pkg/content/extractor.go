// Package content pulls readable article text from source pages, used to fill
// articles whose feed entry carries no description.
package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/markusmobius/go-trafilatura"
)

const maxPageSize = 8 << 20

// ErrTooShort is returned when extracted text is shorter than the configured minimum
var ErrTooShort = errors.New("extracted text too short")

// Options for HTTPExtractor
type Options struct {
	Timeout       time.Duration
	UserAgent     string
	MinTextLength int
}

// HTTPExtractor extracts article content from URLs using trafilatura
type HTTPExtractor struct {
	client        *http.Client
	userAgent     string
	minTextLength int
}

// NewHTTPExtractor creates a new content extractor
func NewHTTPExtractor(opts Options) *HTTPExtractor {
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; Newsclass/1.0)"
	}
	return &HTTPExtractor{
		client:        &http.Client{Timeout: opts.Timeout},
		userAgent:     opts.UserAgent,
		minTextLength: opts.MinTextLength,
	}
}

// Extract retrieves the page and returns its main text content
func (e *HTTPExtractor) Extract(ctx context.Context, urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL: %q", urlStr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL %s: %w", urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d for URL %s", resp.StatusCode, urlStr)
	}

	opts := trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		Deduplicate:     true,
		OriginalURL:     parsedURL,
	}

	result, err := trafilatura.Extract(io.LimitReader(resp.Body, maxPageSize), opts)
	if err != nil {
		return "", fmt.Errorf("extract content from %s: %w", urlStr, err)
	}
	if result == nil {
		return "", fmt.Errorf("no content extracted from %s", urlStr)
	}

	text := strings.TrimSpace(result.ContentText)
	if text == "" {
		return "", fmt.Errorf("no text content extracted from %s", urlStr)
	}
	if len([]rune(text)) < e.minTextLength {
		return "", fmt.Errorf("%s: %w (%d < %d)", urlStr, ErrTooShort, len([]rune(text)), e.minTextLength)
	}
	return text, nil
}
