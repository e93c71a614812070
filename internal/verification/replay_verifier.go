package verification

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/engine"
	"comic-price-lab/internal/storage"
)

var (
	// ErrRunNotFound is returned when the run ID doesn't exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrNoInputWindow is returned when a run recorded no input window,
	// so its batch cannot be reloaded.
	ErrNoInputWindow = errors.New("run record carries no input window")
)

// ReplayVerifier implements Verifier.
type ReplayVerifier struct {
	runStore      storage.BatchRunStore
	listingStore  storage.RawListingStore
	recordStore   storage.NormalizedRecordStore
	rejectedStore storage.RejectedRecordStore

	// pipeline re-executes normalization. It must carry the same
	// configuration the original run used; a config change shows up as
	// divergence, which is the point.
	pipeline *engine.Pipeline
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	RunStore      storage.BatchRunStore
	ListingStore  storage.RawListingStore
	RecordStore   storage.NormalizedRecordStore
	RejectedStore storage.RejectedRecordStore
	Pipeline      *engine.Pipeline
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	return &ReplayVerifier{
		runStore:      opts.RunStore,
		listingStore:  opts.ListingStore,
		recordStore:   opts.RecordStore,
		rejectedStore: opts.RejectedStore,
		pipeline:      opts.Pipeline,
	}
}

// VerifyRun replays a single run by reloading its input window and
// re-executing the pipeline.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationReport, error) {
	if v.pipeline == nil {
		return nil, errors.New("verifier requires a pipeline")
	}

	// 1. Load stored run
	run, err := v.runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	// 2. Reload the input batch from the recorded window
	listings, err := v.loadWindow(ctx, run)
	if err != nil {
		return nil, err
	}

	// 3. Re-execute normalization
	replayed, err := v.pipeline.Run(ctx, listings)
	if err != nil {
		return nil, fmt.Errorf("replay run %s: %w", runID, err)
	}

	// 4. Load stored outputs
	storedAccepted, err := v.recordStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	storedRejected, err := v.rejectedStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	// 5. Compare
	report := compareRun(run, storedAccepted, storedRejected, replayed)
	report.RunID = runID
	report.ReplayedInputs = len(listings)
	return report, nil
}

// VerifyRecent replays the most recent runs, newest first.
func (v *ReplayVerifier) VerifyRecent(ctx context.Context, limit int) ([]*VerificationReport, error) {
	runs, err := v.runStore.GetRecent(ctx, limit)
	if err != nil {
		return nil, err
	}

	reports := make([]*VerificationReport, 0, len(runs))
	for _, run := range runs {
		report, err := v.VerifyRun(ctx, run.RunID)
		if err != nil {
			// Record the error in place so one broken run does not hide
			// the others.
			reports = append(reports, &VerificationReport{
				RunID: run.RunID,
				RunDivergences: []FieldDivergence{
					{Field: "Error", Expected: nil, Actual: err.Error()},
				},
			})
			continue
		}
		reports = append(reports, report)
	}

	return reports, nil
}

// loadWindow reloads every capture the run's batch was built from.
func (v *ReplayVerifier) loadWindow(ctx context.Context, run *domain.BatchRun) ([]*domain.RawListing, error) {
	if len(run.Sources) == 0 {
		return nil, ErrNoInputWindow
	}

	var listings []*domain.RawListing
	for _, src := range run.Sources {
		batch, err := v.listingStore.GetByTimeRange(ctx, src, run.WindowFromMs, run.WindowToMs)
		if err != nil {
			return nil, fmt.Errorf("load window for source %s: %w", src, err)
		}
		listings = append(listings, batch...)
	}
	return listings, nil
}

// compareRun diffs a run's stored outputs against a replayed result.
func compareRun(run *domain.BatchRun, storedAccepted []*domain.NormalizedRecord,
	storedRejected []*domain.RejectedRecord, replayed *engine.BatchResult) *VerificationReport {

	report := &VerificationReport{}

	// Run-level counts
	if replayed.Received != run.Received {
		report.RunDivergences = append(report.RunDivergences, FieldDivergence{
			Field: "Received", Expected: run.Received, Actual: replayed.Received,
		})
	}
	if len(replayed.Accepted) != run.Accepted {
		report.RunDivergences = append(report.RunDivergences, FieldDivergence{
			Field: "Accepted", Expected: run.Accepted, Actual: len(replayed.Accepted),
		})
	}
	if len(replayed.Rejected) != run.Rejected {
		report.RunDivergences = append(report.RunDivergences, FieldDivergence{
			Field: "Rejected", Expected: run.Rejected, Actual: len(replayed.Rejected),
		})
	}

	storedAcc := make(map[domain.ListingKey]*domain.NormalizedRecord, len(storedAccepted))
	for _, rec := range storedAccepted {
		storedAcc[rec.Key()] = rec
	}
	storedRej := groupRejections(storedRejected)
	replayAcc := replayed.AcceptedByKey()
	replayRej := groupRejections(replayed.Rejected)

	keys := keyUnion(storedAcc, replayAcc, storedRej, replayRej)

	for _, key := range keys {
		result := RecordResult{Key: key}

		sa, storedHas := storedAcc[key]
		ra, replayHas := replayAcc[key]

		switch {
		case storedHas && replayHas:
			result.Divergences = append(result.Divergences, CompareNormalizedRecords(sa, ra)...)
			result.Divergences = append(result.Divergences,
				CompareRejectedLists(storedRej[key], replayRej[key])...)
		case storedHas != replayHas:
			// The outcome flipped; a rejection diff would only restate it.
			result.Divergences = append(result.Divergences, FieldDivergence{
				Field:    "Outcome",
				Expected: outcomeLabel(storedHas, storedRej[key]),
				Actual:   outcomeLabel(replayHas, replayRej[key]),
			})
		default:
			result.Divergences = append(result.Divergences,
				CompareRejectedLists(storedRej[key], replayRej[key])...)
		}

		result.Match = len(result.Divergences) == 0
		if result.Match {
			report.MatchedKeys++
		} else {
			report.DivergentKeys++
		}
		report.Results = append(report.Results, result)
	}

	report.TotalKeys = len(keys)
	return report
}

// groupRejections buckets rejections per listing key in canonical order.
func groupRejections(records []*domain.RejectedRecord) map[domain.ListingKey][]*domain.RejectedRecord {
	out := make(map[domain.ListingKey][]*domain.RejectedRecord)
	for _, rej := range records {
		out[rej.Key()] = append(out[rej.Key()], rej)
	}
	for _, list := range out {
		sort.Slice(list, func(i, j int) bool {
			if list[i].Reason != list[j].Reason {
				return list[i].Reason < list[j].Reason
			}
			return list[i].Detail < list[j].Detail
		})
	}
	return out
}

// keyUnion collects every listing key present on either side, sorted.
func keyUnion(storedAcc, replayAcc map[domain.ListingKey]*domain.NormalizedRecord,
	storedRej, replayRej map[domain.ListingKey][]*domain.RejectedRecord) []domain.ListingKey {

	seen := make(map[domain.ListingKey]bool)
	for key := range storedAcc {
		seen[key] = true
	}
	for key := range replayAcc {
		seen[key] = true
	}
	for key := range storedRej {
		seen[key] = true
	}
	for key := range replayRej {
		seen[key] = true
	}

	keys := make([]domain.ListingKey, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].SourceID != keys[j].SourceID {
			return keys[i].SourceID < keys[j].SourceID
		}
		return keys[i].ExternalID < keys[j].ExternalID
	})
	return keys
}

// outcomeLabel names a side's terminal outcome for one key.
func outcomeLabel(accepted bool, rejections []*domain.RejectedRecord) string {
	if accepted {
		return "ACCEPTED"
	}
	if len(rejections) > 0 {
		return fmt.Sprintf("REJECTED(%s)", rejections[0].Reason)
	}
	return "ABSENT"
}

var _ Verifier = (*ReplayVerifier)(nil)
