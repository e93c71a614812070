// Package orchestrator provides end-to-end batch run orchestration.
// It coordinates: load window -> normalize -> persist -> report
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/engine"
	"comic-price-lab/internal/reporting"
	"comic-price-lab/internal/storage"
)

// Orchestrator coordinates one batch run over a capture window.
type Orchestrator struct {
	// Stores
	listingStore  storage.RawListingStore
	recordStore   storage.NormalizedRecordStore
	rejectedStore storage.RejectedRecordStore
	runStore      storage.BatchRunStore

	pipeline  *engine.Pipeline
	generator *reporting.Generator

	sources []string
	verbose bool

	clock    func() time.Time
	newRunID func() string
}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	ListingStore  storage.RawListingStore
	RecordStore   storage.NormalizedRecordStore
	RejectedStore storage.RejectedRecordStore
	RunStore      storage.BatchRunStore

	// Required pipeline
	Pipeline *engine.Pipeline

	// Optional report generator. When set, each run ends with a report.
	Generator *reporting.Generator

	// Sources whose captures form the batch
	Sources []string

	Verbose bool

	// Clock and run id generation, overridable for deterministic runs
	Clock    func() time.Time
	NewRunID func() string
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	newRunID := opts.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}

	return &Orchestrator{
		listingStore:  opts.ListingStore,
		recordStore:   opts.RecordStore,
		rejectedStore: opts.RejectedStore,
		runStore:      opts.RunStore,
		pipeline:      opts.Pipeline,
		generator:     opts.Generator,
		sources:       opts.Sources,
		verbose:       opts.Verbose,
		clock:         clock,
		newRunID:      newRunID,
	}
}

// RunResult contains results from one orchestrated batch run.
type RunResult struct {
	RunID    string
	Received int
	Accepted int
	Rejected int

	// Report is set when a generator is configured and generation succeeded.
	Report *reporting.Report

	Errors []string
}

// Run executes one batch run over captures with timestamps in [fromMs, toMs].
// Phases:
//  1. Load the capture window from every configured source
//  2. Normalize the batch
//  3. Persist outputs (run row last, as the commit marker)
//  4. Generate the run report
func (o *Orchestrator) Run(ctx context.Context, fromMs, toMs int64) (*RunResult, error) {
	if o.pipeline == nil || len(o.sources) == 0 {
		return nil, errors.New("orchestrator requires a pipeline and at least one source")
	}

	runID := o.newRunID()
	startedAtMs := o.clock().UnixMilli()
	result := &RunResult{RunID: runID}

	// Phase 1: Load the capture window
	o.log("Phase 1: Loading captures in [%d, %d]...", fromMs, toMs)
	listings, err := o.loadWindow(ctx, fromMs, toMs)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (load window) failed: %w", err)
	}
	o.log("  Loaded %d captures from %d sources", len(listings), len(o.sources))

	if len(listings) == 0 {
		// Nothing to normalize; no run row is written for an empty window.
		return result, nil
	}

	// Phase 2: Normalize
	o.log("Phase 2: Normalizing batch...")
	batch, err := o.pipeline.Run(ctx, listings)
	if err != nil {
		return nil, fmt.Errorf("phase 2 (normalize) failed: %w", err)
	}
	batch.StampRunID(runID)
	result.Received = batch.Received
	result.Accepted = len(batch.Accepted)
	result.Rejected = len(batch.Rejected)
	o.log("  Received %d, accepted %d, rejected %d",
		result.Received, result.Accepted, result.Rejected)

	// Phase 3: Persist
	o.log("Phase 3: Persisting outputs...")
	if err := o.persist(ctx, runID, startedAtMs, fromMs, toMs, batch); err != nil {
		return nil, fmt.Errorf("phase 3 (persist) failed: %w", err)
	}

	// Phase 4: Report
	if o.generator != nil {
		o.log("Phase 4: Generating report...")
		report, err := o.generator.Generate(ctx, runID)
		if err != nil {
			// The run is already persisted; a report failure must not
			// roll it back.
			result.Errors = append(result.Errors, fmt.Sprintf("generate report: %v", err))
		} else {
			result.Report = report
		}
	}

	o.log("Run %s completed: %d received, %d accepted, %d rejected",
		runID, result.Received, result.Accepted, result.Rejected)

	return result, nil
}

// loadWindow loads every capture in the window from every configured source.
func (o *Orchestrator) loadWindow(ctx context.Context, fromMs, toMs int64) ([]*domain.RawListing, error) {
	var listings []*domain.RawListing
	for _, src := range o.sources {
		batch, err := o.listingStore.GetByTimeRange(ctx, src, fromMs, toMs)
		if err != nil {
			return nil, fmt.Errorf("load source %s: %w", src, err)
		}
		listings = append(listings, batch...)
	}
	return listings, nil
}

// persist stores the batch outputs. The run row is written last so a run id
// present in batch_runs always references complete outputs.
func (o *Orchestrator) persist(ctx context.Context, runID string, startedAtMs, fromMs, toMs int64, batch *engine.BatchResult) error {
	if len(batch.Accepted) > 0 {
		if err := o.recordStore.InsertBulk(ctx, batch.Accepted); err != nil {
			return fmt.Errorf("store accepted records: %w", err)
		}
	}
	if len(batch.Rejected) > 0 {
		if err := o.rejectedStore.InsertBulk(ctx, batch.Rejected); err != nil {
			return fmt.Errorf("store rejected records: %w", err)
		}
	}

	run := batch.ToBatchRun(runID, startedAtMs, o.clock().UnixMilli())
	run.Sources = append([]string(nil), o.sources...)
	run.WindowFromMs = fromMs
	run.WindowToMs = toMs
	if err := o.runStore.Insert(ctx, run); err != nil {
		return fmt.Errorf("store run row: %w", err)
	}
	return nil
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose {
		log.Printf("[orchestrator] "+format, args...)
	}
}
