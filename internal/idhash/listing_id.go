package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
)

// ComputeListingID computes a deterministic listing_id using SHA256.
// Formula: SHA256(source_id|external_id)
// Returns hex-encoded hash (64 characters).
func ComputeListingID(sourceID, externalID string) string {
	data := fmt.Sprintf("%s|%s", sourceID, externalID)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ShortID returns a compact base58 form of a hex listing_id for logs and
// report rows. Falls back to the first 12 characters if the input is not
// valid hex.
func ShortID(listingID string) string {
	raw, err := hex.DecodeString(listingID)
	if err != nil || len(raw) < 8 {
		if len(listingID) > 12 {
			return listingID[:12]
		}
		return listingID
	}
	return base58.Encode(raw[:8])
}
