package reporting

import (
	"fmt"
	"strings"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/idhash"
)

// RenderAcceptedCSV renders normalized records as a CSV string.
// Records keep the order they were given in. The listing_ref column is the
// compact form of the listing id shared with the raw_listings table.
func RenderAcceptedCSV(records []*domain.NormalizedRecord) string {
	var sb strings.Builder

	// Header
	sb.WriteString("run_id,source_id,external_id,listing_ref,series,issue,variant_class,grade,grade_qualifier,")
	sb.WriteString("adjusted_price_minor,currency,sale_type,timestamp_ms,confidence\n")

	// Rows
	for _, r := range records {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%.1f,%s,%d,%s,%s,%d,%.4f\n",
			csvField(r.RunID),
			csvField(r.SourceID),
			csvField(r.ExternalID),
			listingRef(r.SourceID, r.ExternalID),
			csvField(r.Variant.Series),
			csvField(r.Variant.Issue),
			r.Variant.Class,
			r.Grade.Value,
			r.Grade.Qualifier,
			r.AdjustedPriceMinor,
			csvField(r.Currency),
			r.SaleType,
			r.TimestampMs,
			r.Confidence,
		))
	}

	return sb.String()
}

// RenderRejectedCSV renders rejected records as a CSV string.
func RenderRejectedCSV(records []*domain.RejectedRecord) string {
	var sb strings.Builder

	// Header
	sb.WriteString("run_id,source_id,external_id,listing_ref,reason,detail\n")

	// Rows
	for _, r := range records {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s\n",
			csvField(r.RunID),
			csvField(r.SourceID),
			csvField(r.ExternalID),
			listingRef(r.SourceID, r.ExternalID),
			r.Reason,
			csvField(r.Detail),
		))
	}

	return sb.String()
}

// listingRef renders the compact listing id for a source/external pair.
func listingRef(sourceID, externalID string) string {
	return idhash.ShortID(idhash.ComputeListingID(sourceID, externalID))
}

// csvField quotes a free-text value when it contains a delimiter, quote or
// newline: embedded quotes are doubled per RFC 4180.
func csvField(v string) string {
	if !strings.ContainsAny(v, ",\"\n\r") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
}
