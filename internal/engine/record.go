package engine

import (
	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/grading"
	"comic-price-lab/internal/outlier"
)

// Stage is a state of the per-record normalization lifecycle. Records only
// move forward; rejection is terminal from any stage.
type Stage string

const (
	StageReceived        Stage = "RECEIVED"
	StageValidated       Stage = "VALIDATED"
	StageGradeResolved   Stage = "GRADE_RESOLVED"
	StageVariantResolved Stage = "VARIANT_RESOLVED"
	StagePriceAdjusted   Stage = "PRICE_ADJUSTED"
	StageOutlierChecked  Stage = "OUTLIER_CHECKED"
	StageAccepted        Stage = "ACCEPTED"
	StageRejected        Stage = "REJECTED"
)

// stageRank orders stages for the forward-only transition check.
var stageRank = map[Stage]int{
	StageReceived:        0,
	StageValidated:       1,
	StageGradeResolved:   2,
	StageVariantResolved: 3,
	StagePriceAdjusted:   4,
	StageOutlierChecked:  5,
	StageAccepted:        6,
	StageRejected:        6,
}

// inflight carries one listing through the pipeline stages.
type inflight struct {
	listing     *domain.RawListing
	fingerprint string // content hash

	stage      Stage
	reject     *domain.RejectedRecord // set when stage == StageRejected
	grade      domain.CanonicalGrade
	gradeKind  grading.Kind
	variantKey domain.VariantKey
	cohort     outlier.CohortKey
	adjusted   int64
	confidence float64
}

// advance moves the record to the next stage. Transitions never skip or
// move backward; a violation is a programming error.
func (f *inflight) advance(next Stage) {
	if stageRank[next] != stageRank[f.stage]+1 && next != StageRejected {
		panic("engine: non-sequential stage transition " + string(f.stage) + " -> " + string(next))
	}
	if f.stage == StageRejected || f.stage == StageAccepted {
		panic("engine: transition out of terminal stage " + string(f.stage))
	}
	f.stage = next
}

// rejectWith terminates the record with a taxonomy reason.
func (f *inflight) rejectWith(reason domain.RejectReason, detail string) {
	f.reject = &domain.RejectedRecord{
		SourceID:   f.listing.SourceID,
		ExternalID: f.listing.ExternalID,
		Reason:     reason,
		Detail:     detail,
	}
	f.advance(StageRejected)
}

// terminal reports whether the record has reached a terminal stage.
func (f *inflight) terminal() bool {
	return f.stage == StageAccepted || f.stage == StageRejected
}
