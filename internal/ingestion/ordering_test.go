package ingestion

import (
	"errors"
	"testing"

	"comic-price-lab/internal/domain"
)

func TestSortListings(t *testing.T) {
	// Intentionally unordered captures
	listings := []*domain.RawListing{
		{TimestampMs: 2000, SourceID: "ebay", ExternalID: "b"},
		{TimestampMs: 1000, SourceID: "heritage", ExternalID: "a"},
		{TimestampMs: 1000, SourceID: "ebay", ExternalID: "b"},
		{TimestampMs: 1000, SourceID: "ebay", ExternalID: "a"},
		{TimestampMs: 3000, SourceID: "ebay", ExternalID: "a"},
	}

	SortListings(listings)

	// Verify order: (timestamp_ms ASC, source_id ASC, external_id ASC)
	expected := []struct {
		ts         int64
		sourceID   string
		externalID string
	}{
		{1000, "ebay", "a"},
		{1000, "ebay", "b"},
		{1000, "heritage", "a"},
		{2000, "ebay", "b"},
		{3000, "ebay", "a"},
	}

	for i, exp := range expected {
		if listings[i].TimestampMs != exp.ts || listings[i].SourceID != exp.sourceID || listings[i].ExternalID != exp.externalID {
			t.Errorf("Index %d: got (%d, %s, %s), want (%d, %s, %s)",
				i, listings[i].TimestampMs, listings[i].SourceID, listings[i].ExternalID,
				exp.ts, exp.sourceID, exp.externalID)
		}
	}
}

func TestSortListings_Empty(t *testing.T) {
	var listings []*domain.RawListing
	SortListings(listings) // Should not panic
}

func TestSortListings_SingleElement(t *testing.T) {
	listings := []*domain.RawListing{{TimestampMs: 1000, SourceID: "ebay", ExternalID: "a"}}
	SortListings(listings)
	if listings[0].TimestampMs != 1000 {
		t.Error("Single element should remain unchanged")
	}
}

func TestSortListings_RecaptureTiebreak(t *testing.T) {
	// Two distinct captures of the same listing at the same capture time
	// must sort the same way regardless of input order.
	a := &domain.RawListing{TimestampMs: 1000, SourceID: "ebay", ExternalID: "lot-1", GradeLabel: "CGC 9.8", PriceMinor: 100}
	b := &domain.RawListing{TimestampMs: 1000, SourceID: "ebay", ExternalID: "lot-1", GradeLabel: "CGC 9.6", PriceMinor: 100}

	first := []*domain.RawListing{a, b}
	SortListings(first)

	second := []*domain.RawListing{b, a}
	SortListings(second)

	if first[0].GradeLabel != second[0].GradeLabel || first[1].GradeLabel != second[1].GradeLabel {
		t.Errorf("Tiebreak not deterministic: first=(%s,%s) second=(%s,%s)",
			first[0].GradeLabel, first[1].GradeLabel, second[0].GradeLabel, second[1].GradeLabel)
	}
}

func TestValidateListingOrdering_Valid(t *testing.T) {
	listings := []*domain.RawListing{
		{TimestampMs: 1000, SourceID: "ebay", ExternalID: "a"},
		{TimestampMs: 1000, SourceID: "ebay", ExternalID: "b"},
		{TimestampMs: 1000, SourceID: "heritage", ExternalID: "a"},
		{TimestampMs: 2000, SourceID: "ebay", ExternalID: "a"},
	}

	err := ValidateListingOrdering(listings)
	if err != nil {
		t.Errorf("Valid ordering should pass, got error: %v", err)
	}
}

func TestValidateListingOrdering_Invalid_Timestamp(t *testing.T) {
	listings := []*domain.RawListing{
		{TimestampMs: 2000, SourceID: "ebay", ExternalID: "a"},
		{TimestampMs: 1000, SourceID: "ebay", ExternalID: "a"}, // timestamp goes backwards
	}

	err := ValidateListingOrdering(listings)
	if !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("Expected ErrInvalidOrdering, got %v", err)
	}
}

func TestValidateListingOrdering_Invalid_ExternalID(t *testing.T) {
	listings := []*domain.RawListing{
		{TimestampMs: 1000, SourceID: "ebay", ExternalID: "b"},
		{TimestampMs: 1000, SourceID: "ebay", ExternalID: "a"}, // external_id not ascending
	}

	err := ValidateListingOrdering(listings)
	if !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("Expected ErrInvalidOrdering, got %v", err)
	}
}

func TestValidateListingOrdering_IdenticalCaptures(t *testing.T) {
	// Identical captures compare equal; strict ordering rejects them.
	l := domain.RawListing{TimestampMs: 1000, SourceID: "ebay", ExternalID: "a", GradeLabel: "CGC 9.8"}
	dup := l

	err := ValidateListingOrdering([]*domain.RawListing{&l, &dup})
	if !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("Expected ErrInvalidOrdering for identical captures, got %v", err)
	}
}

func TestValidateListingOrdering_Empty(t *testing.T) {
	if err := ValidateListingOrdering(nil); err != nil {
		t.Errorf("Empty slice should be valid, got %v", err)
	}
}
