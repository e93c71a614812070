package ingestion

import (
	"context"
	"errors"
	"log"
	"time"

	"comic-price-lab/internal/domain"
	"comic-price-lab/internal/storage"
)

// Runner drains a live listing feed into storage.
// Captures are buffered and flushed on an interval so late arrivals within
// the window still land in deterministic order; each flush goes through the
// Manager for stamping, ordering and fingerprint dedupe.
type Runner struct {
	source        LiveListingSource
	manager       *Manager
	flushInterval time.Duration
	maxBuffered   int
	logger        *log.Logger

	pending []*domain.RawListing
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source        LiveListingSource
	Manager       *Manager
	FlushInterval time.Duration // Default: 5s
	MaxBuffered   int           // Default: 1000 - flush early past this many captures
	Logger        *log.Logger
}

// NewRunner creates a new live ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	flushInterval := opts.FlushInterval
	if flushInterval == 0 {
		flushInterval = 5 * time.Second
	}

	maxBuffered := opts.MaxBuffered
	if maxBuffered == 0 {
		maxBuffered = 1000
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		source:        opts.Source,
		manager:       opts.Manager,
		flushInterval: flushInterval,
		maxBuffered:   maxBuffered,
		logger:        logger,
	}
}

// Run starts continuous ingestion. It blocks until the context is cancelled
// or the feed channel closes.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil || r.manager == nil {
		return errors.New("runner requires a source and a manager")
	}

	ch, err := r.source.Subscribe(ctx)
	if err != nil {
		return err
	}
	r.logger.Println("Subscribed to live listing feed")

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	r.logger.Printf("Runner started, flush interval: %v, max buffered: %d", r.flushInterval, r.maxBuffered)

	for {
		select {
		case <-ctx.Done():
			// Flush remaining captures before shutdown
			r.flush(context.WithoutCancel(ctx))
			r.logger.Println("Runner stopping...")
			return ctx.Err()

		case l, ok := <-ch:
			if !ok {
				r.flush(ctx)
				r.logger.Println("Listing feed channel closed")
				return errors.New("listing feed channel closed")
			}
			r.buffer(ctx, l)

		case <-ticker.C:
			r.flush(ctx)
		}
	}
}

// buffer appends a capture and flushes early when the buffer is full.
func (r *Runner) buffer(ctx context.Context, l *domain.RawListing) {
	if l == nil {
		return
	}

	r.pending = append(r.pending, l)
	if len(r.pending) >= r.maxBuffered {
		r.flush(ctx)
	}
}

// flush ingests all buffered captures as one ordered batch.
func (r *Runner) flush(ctx context.Context) {
	if len(r.pending) == 0 {
		return
	}

	batch := r.pending
	r.pending = nil

	count, err := r.manager.IngestBatch(ctx, batch)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Insert one by one so fresh captures are not lost to a replayed one
			count = r.flushIndividually(ctx, batch)
		} else {
			r.logger.Printf("Error flushing %d captures: %v", len(batch), err)
			return
		}
	}

	if count > 0 {
		r.logger.Printf("Flushed %d captures (%d new)", len(batch), count)
	}
}

// flushIndividually ingests captures one at a time, skipping replayed ones.
func (r *Runner) flushIndividually(ctx context.Context, batch []*domain.RawListing) int {
	stored := 0
	for _, l := range batch {
		count, err := r.manager.IngestBatch(ctx, []*domain.RawListing{l})
		if err != nil {
			if !errors.Is(err, storage.ErrDuplicateKey) {
				r.logger.Printf("Error storing capture %s/%s: %v", l.SourceID, l.ExternalID, err)
			}
			continue
		}
		stored += count
	}
	return stored
}
