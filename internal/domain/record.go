package domain

// NormalizedRecord represents a fully normalized sale record, comparable
// across sources. Corresponds to normalized_records table in ClickHouse.
type NormalizedRecord struct {
	RunID      string // batch run that produced the record
	SourceID   string // marketplace identifier
	ExternalID string // listing/lot id within the source

	Variant VariantKey     // canonical instrument identity
	Grade   CanonicalGrade // canonical grade + qualifier

	AdjustedPriceMinor int64    // bias-adjusted price, minor units, >= 0
	Currency           string   // ISO-4217 code
	SaleType           SaleType // carried through from the raw listing
	TimestampMs        int64    // sale/listing time (ms)
	Confidence         float64  // [0,1], 1.0 = exact labels throughout
}

// Key returns the batch identity of the record.
func (r *NormalizedRecord) Key() ListingKey {
	return ListingKey{SourceID: r.SourceID, ExternalID: r.ExternalID}
}

// RejectedRecord represents a listing excluded from normalization, kept for
// audit. Corresponds to rejected_records table in PostgreSQL.
type RejectedRecord struct {
	RunID      string       // batch run that rejected the record
	SourceID   string       // marketplace identifier
	ExternalID string       // listing/lot id within the source
	Reason     RejectReason // taxonomy reason code
	Detail     string       // human-readable context ("price 0 below floor 500")
}

// Key returns the batch identity of the record.
func (r *RejectedRecord) Key() ListingKey {
	return ListingKey{SourceID: r.SourceID, ExternalID: r.ExternalID}
}

// RejectReason enumerates every way a record can be excluded. The set is
// closed: new rejection behavior requires a new reason code.
type RejectReason string

const (
	RejectCancelledSale      RejectReason = "CANCELLED_SALE"
	RejectNotCompleted       RejectReason = "NOT_COMPLETED"
	RejectImplausiblePrice   RejectReason = "IMPLAUSIBLE_PRICE"
	RejectUnparsableIdentity RejectReason = "UNPARSABLE_IDENTITY"
	RejectDuplicate          RejectReason = "DUPLICATE"
	RejectStatisticalOutlier RejectReason = "STATISTICAL_OUTLIER"
)

// String returns the string representation of RejectReason.
func (r RejectReason) String() string {
	return string(r)
}

// IsValid checks if the reason is a valid value.
func (r RejectReason) IsValid() bool {
	switch r {
	case RejectCancelledSale, RejectNotCompleted, RejectImplausiblePrice,
		RejectUnparsableIdentity, RejectDuplicate, RejectStatisticalOutlier:
		return true
	}
	return false
}

// AllRejectReasons lists the taxonomy in stable report order.
var AllRejectReasons = []RejectReason{
	RejectCancelledSale,
	RejectNotCompleted,
	RejectImplausiblePrice,
	RejectUnparsableIdentity,
	RejectDuplicate,
	RejectStatisticalOutlier,
}
