package engine

import (
	"sort"

	"comic-price-lab/internal/domain"
)

// BatchResult holds the complete outcome of one batch run. Accepted and
// Rejected are sorted by (source_id, external_id) so identical batches
// produce byte-identical results.
type BatchResult struct {
	Received int
	Accepted []*domain.NormalizedRecord
	Rejected []*domain.RejectedRecord
}

// assembleResult collects terminal records into a sorted result.
func assembleResult(records []*inflight) *BatchResult {
	result := &BatchResult{Received: len(records)}

	for _, f := range records {
		switch f.stage {
		case StageAccepted:
			l := f.listing
			result.Accepted = append(result.Accepted, &domain.NormalizedRecord{
				SourceID:           l.SourceID,
				ExternalID:         l.ExternalID,
				Variant:            f.variantKey,
				Grade:              f.grade,
				AdjustedPriceMinor: f.adjusted,
				Currency:           l.Currency,
				SaleType:           l.SaleType,
				TimestampMs:        l.TimestampMs,
				Confidence:         f.confidence,
			})
		case StageRejected:
			result.Rejected = append(result.Rejected, f.reject)
		default:
			panic("engine: record finished in non-terminal stage " + string(f.stage))
		}
	}

	sort.Slice(result.Accepted, func(i, j int) bool {
		a, b := result.Accepted[i], result.Accepted[j]
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		return a.ExternalID < b.ExternalID
	})
	sort.Slice(result.Rejected, func(i, j int) bool {
		a, b := result.Rejected[i], result.Rejected[j]
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		return a.ExternalID < b.ExternalID
	})

	return result
}

// StampRunID sets the run id on every record of the result.
func (r *BatchResult) StampRunID(runID string) {
	for _, rec := range r.Accepted {
		rec.RunID = runID
	}
	for _, rej := range r.Rejected {
		rej.RunID = runID
	}
}

// AcceptedByKey returns the accepted records keyed by listing identity.
func (r *BatchResult) AcceptedByKey() map[domain.ListingKey]*domain.NormalizedRecord {
	out := make(map[domain.ListingKey]*domain.NormalizedRecord, len(r.Accepted))
	for _, rec := range r.Accepted {
		out[rec.Key()] = rec
	}
	return out
}

// RejectedByKey returns the rejected records keyed by listing identity.
// Duplicate captures collapse to one entry per key.
func (r *BatchResult) RejectedByKey() map[domain.ListingKey]*domain.RejectedRecord {
	out := make(map[domain.ListingKey]*domain.RejectedRecord, len(r.Rejected))
	for _, rej := range r.Rejected {
		out[rej.Key()] = rej
	}
	return out
}

// RejectedByReason counts rejections per taxonomy reason.
func (r *BatchResult) RejectedByReason() map[domain.RejectReason]int {
	out := make(map[domain.RejectReason]int)
	for _, rej := range r.Rejected {
		out[rej.Reason]++
	}
	return out
}

// ToBatchRun builds the audit row for this result.
func (r *BatchResult) ToBatchRun(runID string, startedAtMs, finishedAtMs int64) *domain.BatchRun {
	return &domain.BatchRun{
		RunID:            runID,
		StartedAtMs:      startedAtMs,
		FinishedAtMs:     finishedAtMs,
		Received:         r.Received,
		Accepted:         len(r.Accepted),
		Rejected:         len(r.Rejected),
		RejectedByReason: r.RejectedByReason(),
	}
}
