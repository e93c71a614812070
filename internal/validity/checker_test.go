package validity

import (
	"testing"

	"comic-price-lab/internal/domain"
)

func defaultConfig() Config {
	return Config{
		SoldOnly:      true,
		MinPriceMinor: 100,
		MaxPriceMinor: 100000000,
	}
}

func validListing() *domain.RawListing {
	return &domain.RawListing{
		SourceID:    "ebay",
		ExternalID:  "1001",
		SeriesTitle: "Amazing Spider-Man",
		IssueNumber: "#300",
		GradeLabel:  "CGC 9.8",
		SaleType:    domain.SaleTypeAuction,
		PriceMinor:  250000,
		Currency:    "USD",
		TimestampMs: 1704067200000,
		Status:      domain.SaleStatusSold,
	}
}

func TestCheck_ValidListing(t *testing.T) {
	c := NewChecker(defaultConfig(), nil)

	v := c.Check(validListing())
	if !v.OK {
		t.Fatalf("Check() rejected valid listing: %s (%s)", v.Reason, v.Detail)
	}
}

func TestCheck_RuleOrder(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*domain.RawListing)
		wantReason domain.RejectReason
	}{
		{
			name:       "cancelled",
			mutate:     func(l *domain.RawListing) { l.Status = domain.SaleStatusCancelled },
			wantReason: domain.RejectCancelledSale,
		},
		{
			name:       "active in sold-only mode",
			mutate:     func(l *domain.RawListing) { l.Status = domain.SaleStatusActive },
			wantReason: domain.RejectNotCompleted,
		},
		{
			name:       "relisted in sold-only mode",
			mutate:     func(l *domain.RawListing) { l.Status = domain.SaleStatusRelisted },
			wantReason: domain.RejectNotCompleted,
		},
		{
			name:       "zero price",
			mutate:     func(l *domain.RawListing) { l.PriceMinor = 0 },
			wantReason: domain.RejectImplausiblePrice,
		},
		{
			name:       "negative price",
			mutate:     func(l *domain.RawListing) { l.PriceMinor = -500 },
			wantReason: domain.RejectImplausiblePrice,
		},
		{
			name:       "below floor",
			mutate:     func(l *domain.RawListing) { l.PriceMinor = 99 },
			wantReason: domain.RejectImplausiblePrice,
		},
		{
			name:       "above ceiling",
			mutate:     func(l *domain.RawListing) { l.PriceMinor = 100000001 },
			wantReason: domain.RejectImplausiblePrice,
		},
		{
			name:       "blank series",
			mutate:     func(l *domain.RawListing) { l.SeriesTitle = "   " },
			wantReason: domain.RejectUnparsableIdentity,
		},
		{
			name:       "unparsable issue",
			mutate:     func(l *domain.RawListing) { l.IssueNumber = "###" },
			wantReason: domain.RejectUnparsableIdentity,
		},
		{
			name: "cancelled wins over bad price",
			mutate: func(l *domain.RawListing) {
				l.Status = domain.SaleStatusCancelled
				l.PriceMinor = 0
			},
			wantReason: domain.RejectCancelledSale,
		},
		{
			name: "bad price wins over bad identity",
			mutate: func(l *domain.RawListing) {
				l.PriceMinor = 0
				l.SeriesTitle = ""
			},
			wantReason: domain.RejectImplausiblePrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := validListing()
			tt.mutate(l)

			c := NewChecker(defaultConfig(), []*domain.RawListing{l})
			v := c.Check(l)
			if v.OK {
				t.Fatal("Check() accepted listing, want rejection")
			}
			if v.Reason != tt.wantReason {
				t.Errorf("Check() reason = %s, want %s", v.Reason, tt.wantReason)
			}
			if v.Detail == "" {
				t.Error("Check() rejection has empty detail")
			}
		})
	}
}

func TestCheck_SoldOnlyDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.SoldOnly = false
	c := NewChecker(cfg, nil)

	l := validListing()
	l.Status = domain.SaleStatusActive
	l.SaleType = domain.SaleTypeBuyItNow

	if v := c.Check(l); !v.OK {
		t.Errorf("active listing rejected with SoldOnly=false: %s", v.Reason)
	}
}

func TestCheck_CeilingDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxPriceMinor = 0
	c := NewChecker(cfg, nil)

	l := validListing()
	l.PriceMinor = 999999999999

	if v := c.Check(l); !v.OK {
		t.Errorf("listing rejected with ceiling disabled: %s", v.Reason)
	}
}

func TestCheck_RelistedPolicies(t *testing.T) {
	l := validListing()
	l.Status = domain.SaleStatusRelisted

	// Suppression rejects as duplicate even when not sold-only.
	cfg := defaultConfig()
	cfg.SoldOnly = false
	cfg.RelistedPolicy = RelistedSuppress
	if v := NewChecker(cfg, nil).Check(l); v.OK || v.Reason != domain.RejectDuplicate {
		t.Errorf("suppress policy verdict = %+v, want DUPLICATE rejection", v)
	}

	// Treat-as-new lets it through outside sold-only mode.
	cfg.RelistedPolicy = RelistedTreatAsNew
	if v := NewChecker(cfg, nil).Check(l); !v.OK {
		t.Errorf("treat-as-new policy rejected relisted listing: %s", v.Reason)
	}
}

func TestCheck_DuplicateElection(t *testing.T) {
	early := validListing()
	late := validListing()
	late.TimestampMs = early.TimestampMs + 60000
	late.PriceMinor = 260000

	// Survivor is the earliest capture regardless of batch order.
	for name, batch := range map[string][]*domain.RawListing{
		"early first": {early, late},
		"late first":  {late, early},
	} {
		c := NewChecker(defaultConfig(), batch)

		if v := c.Check(early); !v.OK {
			t.Errorf("%s: survivor rejected: %s", name, v.Reason)
		}
		if v := c.Check(late); v.OK || v.Reason != domain.RejectDuplicate {
			t.Errorf("%s: later capture verdict = %+v, want DUPLICATE", name, v)
		}
	}
}

func TestCheck_DistinctKeysNotDuplicates(t *testing.T) {
	a := validListing()
	b := validListing()
	b.ExternalID = "1002"

	c := NewChecker(defaultConfig(), []*domain.RawListing{a, b})
	if v := c.Check(a); !v.OK {
		t.Errorf("listing a rejected: %s", v.Reason)
	}
	if v := c.Check(b); !v.OK {
		t.Errorf("listing b rejected: %s", v.Reason)
	}
}
