package domain

// VariantKey is the canonical identity of a market instrument. Two listings
// with different variant text but the same VariantKey are priced as the same
// instrument.
type VariantKey struct {
	Series string       // canonicalized series title
	Issue  string       // canonicalized issue number
	Class  VariantClass // variant classification
}

// VariantClass represents the market class of a printed variant.
type VariantClass string

const (
	VariantStandard     VariantClass = "STANDARD"
	VariantIncentive    VariantClass = "INCENTIVE_RATIO"
	VariantRetailer     VariantClass = "RETAILER_EXCLUSIVE"
	VariantVirgin       VariantClass = "VIRGIN"
	VariantFacsimile    VariantClass = "FACSIMILE_REPRINT"
	VariantConvention   VariantClass = "CONVENTION_EXCLUSIVE"
	VariantErrorEdition VariantClass = "ERROR_EDITION"
	VariantUnknown      VariantClass = "UNKNOWN"
)

// String returns the string representation of VariantClass.
func (c VariantClass) String() string {
	return string(c)
}

// IsValid checks if the variant class is a valid value.
func (c VariantClass) IsValid() bool {
	switch c {
	case VariantStandard, VariantIncentive, VariantRetailer, VariantVirgin,
		VariantFacsimile, VariantConvention, VariantErrorEdition, VariantUnknown:
		return true
	}
	return false
}
