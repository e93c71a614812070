package validity

import (
	"fmt"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/idhash"
	"comic-price-lab/internal/variant"
)

// RelistedPolicy controls how RELISTED listings are handled.
type RelistedPolicy string

const (
	// RelistedTreatAsNew runs relisted listings through the pipeline as a
	// fresh listing event (they still fail sold-only mode, not being sales).
	RelistedTreatAsNew RelistedPolicy = "TREAT_AS_NEW"
	// RelistedSuppress rejects relisted listings as duplicates of the prior
	// unsold listing.
	RelistedSuppress RelistedPolicy = "SUPPRESS"
)

// IsValid checks if the policy is a valid value.
func (p RelistedPolicy) IsValid() bool {
	return p == RelistedTreatAsNew || p == RelistedSuppress
}

// Config holds the validity thresholds. Zero MaxPriceMinor disables the
// plausibility ceiling.
type Config struct {
	SoldOnly       bool           // only completed sales become records
	MinPriceMinor  int64          // plausibility floor, minor units
	MaxPriceMinor  int64          // plausibility ceiling, minor units (0 = none)
	RelistedPolicy RelistedPolicy // defaults to RelistedTreatAsNew when empty
}

// Verdict is the outcome of checking one listing. A rejecting verdict names
// the taxonomy reason and a human-readable detail.
type Verdict struct {
	OK     bool
	Reason domain.RejectReason
	Detail string
}

func rejected(reason domain.RejectReason, detail string) Verdict {
	return Verdict{Reason: reason, Detail: detail}
}

// survivorRef identifies the elected survivor among duplicate captures of
// one listing key.
type survivorRef struct {
	timestampMs int64
	contentHash string
}

// Checker applies the ordered validity rules to listings of one batch.
// Construction scans the batch once to elect duplicate survivors, so Check
// itself is a pure function of the listing and the immutable index.
type Checker struct {
	cfg       Config
	dupCount  map[domain.ListingKey]int
	survivors map[domain.ListingKey]survivorRef
}

// NewChecker builds a checker over one batch. The duplicate survivor for a
// key is the capture with the lowest (timestamp, content hash), which keeps
// every verdict independent of input order.
func NewChecker(cfg Config, batch []*domain.RawListing) *Checker {
	if cfg.RelistedPolicy == "" {
		cfg.RelistedPolicy = RelistedTreatAsNew
	}

	c := &Checker{
		cfg:       cfg,
		dupCount:  make(map[domain.ListingKey]int, len(batch)),
		survivors: make(map[domain.ListingKey]survivorRef, len(batch)),
	}

	for _, l := range batch {
		key := l.Key()
		ref := survivorRef{timestampMs: l.TimestampMs, contentHash: idhash.ComputeContentHash(l)}
		c.dupCount[key]++

		cur, seen := c.survivors[key]
		if !seen || ref.timestampMs < cur.timestampMs ||
			(ref.timestampMs == cur.timestampMs && ref.contentHash < cur.contentHash) {
			c.survivors[key] = ref
		}
	}
	return c
}

// Check applies the validity rules in order; the first matching rule decides.
// Rules:
//  1. cancelled listing            -> CANCELLED_SALE
//  2. relisted under suppression   -> DUPLICATE
//  3. not sold in sold-only mode   -> NOT_COMPLETED
//  4. price at/below zero or floor -> IMPLAUSIBLE_PRICE
//  5. price above ceiling          -> IMPLAUSIBLE_PRICE
//  6. unparsable series/issue      -> UNPARSABLE_IDENTITY
//  7. duplicate capture in batch   -> DUPLICATE
func (c *Checker) Check(l *domain.RawListing) Verdict {
	if l.Status == domain.SaleStatusCancelled {
		return rejected(domain.RejectCancelledSale, "listing was cancelled")
	}

	if l.Status == domain.SaleStatusRelisted && c.cfg.RelistedPolicy == RelistedSuppress {
		return rejected(domain.RejectDuplicate, "relisted capture suppressed by policy")
	}

	if c.cfg.SoldOnly && l.Status != domain.SaleStatusSold {
		return rejected(domain.RejectNotCompleted,
			fmt.Sprintf("status %s is not a completed sale", l.Status))
	}

	if l.PriceMinor <= 0 {
		return rejected(domain.RejectImplausiblePrice,
			fmt.Sprintf("price %d is not positive", l.PriceMinor))
	}
	if l.PriceMinor < c.cfg.MinPriceMinor {
		return rejected(domain.RejectImplausiblePrice,
			fmt.Sprintf("price %d below plausibility floor %d", l.PriceMinor, c.cfg.MinPriceMinor))
	}
	if c.cfg.MaxPriceMinor > 0 && l.PriceMinor > c.cfg.MaxPriceMinor {
		return rejected(domain.RejectImplausiblePrice,
			fmt.Sprintf("price %d above plausibility ceiling %d", l.PriceMinor, c.cfg.MaxPriceMinor))
	}

	if variant.NormalizeSeriesTitle(l.SeriesTitle) == "" {
		return rejected(domain.RejectUnparsableIdentity, "series title is blank")
	}
	if _, ok := variant.NormalizeIssueNumber(l.IssueNumber); !ok {
		return rejected(domain.RejectUnparsableIdentity,
			fmt.Sprintf("issue number %q cannot be canonicalized", l.IssueNumber))
	}

	if c.dupCount[l.Key()] > 1 {
		ref := survivorRef{timestampMs: l.TimestampMs, contentHash: idhash.ComputeContentHash(l)}
		if ref != c.survivors[l.Key()] {
			return rejected(domain.RejectDuplicate,
				fmt.Sprintf("duplicate capture of %s/%s", l.SourceID, l.ExternalID))
		}
	}

	return Verdict{OK: true}
}
