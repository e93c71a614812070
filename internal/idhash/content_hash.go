package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"comic-price-lab/internal/domain"
)

// ComputeContentHash computes a deterministic hash over every descriptive
// field of a raw listing. Two captures of the same listing with identical
// content hash are interchangeable; the hash is the tie-breaker when electing
// a duplicate survivor.
// Formula: SHA256(source_id|external_id|series|issue|grade|variant|sale_type|price|currency|timestamp|status)
// Returns hex-encoded hash (64 characters).
func ComputeContentHash(l *domain.RawListing) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%d|%s|%d|%s",
		l.SourceID,
		l.ExternalID,
		l.SeriesTitle,
		l.IssueNumber,
		l.GradeLabel,
		l.VariantLabel,
		string(l.SaleType),
		l.PriceMinor,
		l.Currency,
		l.TimestampMs,
		string(l.Status),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
