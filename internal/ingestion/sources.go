package ingestion

import (
	"context"

	"comic-price-lab/internal/domain"
)

// ListingSource provides raw listing captures from an external marketplace.
type ListingSource interface {
	// Fetch returns captures for a source within time range [from, to] (inclusive, Unix ms).
	// Captures may be unordered; Manager enforces deterministic ordering.
	Fetch(ctx context.Context, sourceID string, from, to int64) ([]*domain.RawListing, error)
}

// LiveListingSource provides a continuous stream of listing captures.
type LiveListingSource interface {
	// Subscribe returns a channel of captures from a live feed.
	// The channel is closed when the context is cancelled or the feed shuts down.
	Subscribe(ctx context.Context) (<-chan *domain.RawListing, error)
}
