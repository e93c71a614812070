package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"comic-price-lab/internal/domain"
)

const (
	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond

	defaultPageSize = 500
)

// HTTPListingSource fetches historical listing captures from a marketplace
// REST API, paging by cursor. Requests are rate limited to stay within the
// provider's quota. Implements ListingSource.
type HTTPListingSource struct {
	baseURL  string
	client   *http.Client
	limiter  *rate.Limiter
	pageSize int
}

// HTTPSourceOptions contains configuration for creating an HTTPListingSource.
type HTTPSourceOptions struct {
	BaseURL           string
	Client            *http.Client
	RequestsPerSecond float64
	Burst             int
	PageSize          int
}

// NewHTTPListingSource creates a new REST backfill source.
func NewHTTPListingSource(opts HTTPSourceOptions) *HTTPListingSource {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	rps := opts.RequestsPerSecond
	if rps == 0 {
		rps = 5
	}

	burst := opts.Burst
	if burst == 0 {
		burst = 1
	}

	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = defaultPageSize
	}

	return &HTTPListingSource{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		pageSize: pageSize,
	}
}

// listingPage is one page of the backfill API response.
type listingPage struct {
	Listings   []*wireListing `json:"listings"`
	NextCursor string         `json:"next_cursor"`
}

// Fetch returns captures for a source within [from, to], paging until the API
// reports no further cursor. Captures may be unordered.
func (s *HTTPListingSource) Fetch(ctx context.Context, sourceID string, from, to int64) ([]*domain.RawListing, error) {
	var all []*domain.RawListing
	cursor := ""

	for {
		page, err := s.fetchPage(ctx, sourceID, from, to, cursor)
		if err != nil {
			return nil, err
		}

		for _, w := range page.Listings {
			all = append(all, w.toDomain())
		}

		if page.NextCursor == "" || len(page.Listings) == 0 {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// fetchPage requests a single page with exponential backoff retry.
func (s *HTTPListingSource) fetchPage(ctx context.Context, sourceID string, from, to int64, cursor string) (*listingPage, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		page, err := s.getPage(ctx, sourceID, from, to, cursor)
		if err == nil {
			return page, nil
		}
		lastErr = err

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Exponential backoff: 500ms, 1s, 2s
		delay := baseRetryDelay * time.Duration(1<<attempt)
		log.Printf("[backfill] Retry %d/%d for source %s after %v: %v", attempt+1, maxRetries, sourceID, delay, err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// getPage performs one GET against the listings endpoint.
func (s *HTTPListingSource) getPage(ctx context.Context, sourceID string, from, to int64, cursor string) (*listingPage, error) {
	q := url.Values{}
	q.Set("source", sourceID)
	q.Set("from_ms", strconv.FormatInt(from, 10))
	q.Set("to_ms", strconv.FormatInt(to, 10))
	q.Set("limit", strconv.Itoa(s.pageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/listings?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("listings request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var page listingPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode listings page: %w", err)
	}

	return &page, nil
}
