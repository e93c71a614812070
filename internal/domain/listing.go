package domain

// RawListing represents a single sale or listing record as captured from a
// marketplace source, before any normalization. Immutable once ingested.
// Corresponds to raw_listings table in PostgreSQL.
type RawListing struct {
	ListingID    string     // deterministic hash of (source_id, external_id), shared by all captures of a listing
	SourceID     string     // marketplace identifier ("ebay", "heritage", ...)
	ExternalID   string     // listing/lot id unique within the source
	SeriesTitle  string     // free text, as captured
	IssueNumber  string     // free text ("#1", "001", "1.5", "Annual 2")
	GradeLabel   string     // free text ("CGC 9.8", "VF/NM", "raw")
	VariantLabel string     // free text ("1:25 Ratio Incentive", "Cover B", "")
	SaleType     SaleType   // AUCTION | BUY_IT_NOW | BEST_OFFER | PRIVATE_SALE | UNKNOWN
	PriceMinor   int64      // observed price in minor currency units
	Currency     string     // ISO-4217 code, never converted
	TimestampMs  int64      // sale/listing time, Unix milliseconds
	Status       SaleStatus // SOLD | ACTIVE | CANCELLED | RELISTED
	IngestedAt   int64      // record ingestion timestamp (ms)
}

// Key returns the batch identity of the listing.
func (l *RawListing) Key() ListingKey {
	return ListingKey{SourceID: l.SourceID, ExternalID: l.ExternalID}
}

// ListingKey identifies a listing within and across batches.
type ListingKey struct {
	SourceID   string
	ExternalID string
}

// SaleType represents how the price of a listing was formed.
type SaleType string

const (
	SaleTypeAuction     SaleType = "AUCTION"
	SaleTypeBuyItNow    SaleType = "BUY_IT_NOW"
	SaleTypeBestOffer   SaleType = "BEST_OFFER"
	SaleTypePrivateSale SaleType = "PRIVATE_SALE"
	SaleTypeUnknown     SaleType = "UNKNOWN"
)

// String returns the string representation of SaleType.
func (s SaleType) String() string {
	return string(s)
}

// IsValid checks if the sale type is a valid value.
func (s SaleType) IsValid() bool {
	switch s {
	case SaleTypeAuction, SaleTypeBuyItNow, SaleTypeBestOffer, SaleTypePrivateSale, SaleTypeUnknown:
		return true
	}
	return false
}

// SaleStatus represents the lifecycle state of a listing at capture time.
type SaleStatus string

const (
	SaleStatusSold      SaleStatus = "SOLD"
	SaleStatusActive    SaleStatus = "ACTIVE"
	SaleStatusCancelled SaleStatus = "CANCELLED"
	SaleStatusRelisted  SaleStatus = "RELISTED"
)

// String returns the string representation of SaleStatus.
func (s SaleStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s SaleStatus) IsValid() bool {
	switch s {
	case SaleStatusSold, SaleStatusActive, SaleStatusCancelled, SaleStatusRelisted:
		return true
	}
	return false
}
