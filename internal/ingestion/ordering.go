package ingestion

import (
	"errors"
	"sort"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/idhash"
)

// ErrInvalidOrdering is returned when captures are not properly ordered.
var ErrInvalidOrdering = errors.New("captures are not in deterministic order")

// SortListings orders captures by (timestamp_ms ASC, source_id ASC,
// external_id ASC, content fingerprint ASC). This provides deterministic
// ordering regardless of the order sources deliver captures in.
func SortListings(listings []*domain.RawListing) {
	sort.Slice(listings, func(i, j int) bool {
		return compareListings(listings[i], listings[j]) < 0
	})
}

// ValidateListingOrdering checks if captures are properly ordered.
// Returns ErrInvalidOrdering if not.
func ValidateListingOrdering(listings []*domain.RawListing) error {
	for i := 1; i < len(listings); i++ {
		if compareListings(listings[i-1], listings[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareListings returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (timestamp_ms ASC, source_id ASC, external_id ASC, fingerprint ASC).
// The fingerprint breaks ties between distinct re-captures of one listing
// that carry the same capture time.
func compareListings(a, b *domain.RawListing) int {
	if a.TimestampMs != b.TimestampMs {
		if a.TimestampMs < b.TimestampMs {
			return -1
		}
		return 1
	}
	if a.SourceID != b.SourceID {
		if a.SourceID < b.SourceID {
			return -1
		}
		return 1
	}
	if a.ExternalID != b.ExternalID {
		if a.ExternalID < b.ExternalID {
			return -1
		}
		return 1
	}
	fa, fb := idhash.ComputeContentHash(a), idhash.ComputeContentHash(b)
	if fa != fb {
		if fa < fb {
			return -1
		}
		return 1
	}
	return 0
}
