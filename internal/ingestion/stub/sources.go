package stub

import (
	"context"

	"comic-price-lab/internal/domain"
)

// StubListingSource returns fixed in-memory captures for testing and offline
// runs. Captures can be intentionally unordered to test sorting.
// Implements ingestion.ListingSource.
type StubListingSource struct {
	listings []*domain.RawListing
}

// NewStubListingSource creates a new stub source with the given captures.
func NewStubListingSource(listings []*domain.RawListing) *StubListingSource {
	return &StubListingSource{listings: listings}
}

// Fetch returns captures matching the source ID and time range.
// Returns copies to prevent mutation.
func (s *StubListingSource) Fetch(_ context.Context, sourceID string, from, to int64) ([]*domain.RawListing, error) {
	var result []*domain.RawListing
	for _, l := range s.listings {
		if l.SourceID == sourceID && l.TimestampMs >= from && l.TimestampMs <= to {
			copy := *l
			result = append(result, &copy)
		}
	}
	return result, nil
}

// StubLiveSource replays fixed captures over a channel.
// Implements ingestion.LiveListingSource.
type StubLiveSource struct {
	listings []*domain.RawListing
}

// NewStubLiveSource creates a new stub live feed with the given captures.
func NewStubLiveSource(listings []*domain.RawListing) *StubLiveSource {
	return &StubLiveSource{listings: listings}
}

// Subscribe returns a channel pre-filled with all captures. The channel stays
// open until the context is cancelled.
func (s *StubLiveSource) Subscribe(ctx context.Context) (<-chan *domain.RawListing, error) {
	ch := make(chan *domain.RawListing, len(s.listings)+1)
	for _, l := range s.listings {
		copy := *l
		ch <- &copy
	}

	go func() {
		<-ctx.Done()
		close(ch)
	}()

	return ch, nil
}
