// Package main provides the listing capture ingestion entry point.
// Live mode drains the marketplace WebSocket feed; backfill mode pages
// historical captures over REST, resuming from per-source checkpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"comic-price-lab/internal/config"
	"comic-price-lab/internal/ingestion"
	"comic-price-lab/internal/observability"
	"comic-price-lab/internal/storage"
	"comic-price-lab/internal/storage/memory"
	pgstore "comic-price-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file (optional)")
	mode := flag.String("mode", "live", "Ingestion mode: live or backfill")
	fromTime := flag.String("from-time", "", "Start time for backfill (RFC3339, empty resumes from checkpoint)")
	toTime := flag.String("to-time", "", "End time for backfill (RFC3339, empty means now)")
	sources := flag.String("sources", "", "Comma-separated marketplace source IDs (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}

	// Apply flag overrides before validation
	if *sources != "" {
		cfg.Sources.IDs = splitSources(*sources)
	}
	if *useMemory {
		cfg.Storage.UseMemory = true
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}
	logger.Printf("Ingesting sources: %v", cfg.Sources.IDs)

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal main goroutine completion
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Run based on mode
	switch *mode {
	case "live":
		err = runLive(ctx, logger, cfg)
	case "backfill":
		err = runBackfill(ctx, logger, cfg, *fromTime, *toTime)
	default:
		logger.Fatalf("Unknown mode: %s", *mode)
	}

	// Signal completion to shutdown handler
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// splitSources parses the comma-separated source ID flag.
func splitSources(flagValue string) []string {
	var list []string
	for _, s := range strings.Split(flagValue, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			list = append(list, s)
		}
	}
	return list
}

// runLive runs continuous ingestion from the live listing feed.
func runLive(ctx context.Context, logger *log.Logger, cfg *config.Config) error {
	if cfg.Sources.FeedWSURL == "" {
		return fmt.Errorf("sources.feed_ws_url is required for live mode")
	}

	// Create stores (use interfaces)
	var listingStore storage.RawListingStore = memory.NewRawListingStore()
	var checkpointStore storage.SourceCheckpointStore = memory.NewSourceCheckpointStore()

	if !cfg.Storage.UseMemory {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		listingStore = pgstore.NewRawListingStore(pool)
		checkpointStore = pgstore.NewSourceCheckpointStore(pool)
	}

	// Connect to the marketplace feed
	feed, err := ingestion.NewWSListingSource(ctx, cfg.Sources.FeedWSURL, cfg.Sources.IDs, nil)
	if err != nil {
		return fmt.Errorf("connect to listing feed: %w", err)
	}
	defer feed.Close()

	manager := ingestion.NewManager(ingestion.ManagerOptions{
		ListingStore:    listingStore,
		CheckpointStore: checkpointStore,
	})

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Source:  feed,
		Manager: manager,
		Logger:  logger,
	})

	logger.Println("Starting live ingestion...")
	return runner.Run(ctx)
}

// runBackfill pages historical captures for each source. Without an explicit
// --from-time each source resumes from its checkpoint, so repeated runs only
// fetch what the previous run has not stored yet.
func runBackfill(ctx context.Context, logger *log.Logger, cfg *config.Config, fromTimeStr, toTimeStr string) error {
	if cfg.Sources.FeedBaseURL == "" {
		return fmt.Errorf("sources.feed_base_url is required for backfill mode")
	}

	// Create stores (use interfaces)
	var listingStore storage.RawListingStore = memory.NewRawListingStore()
	var checkpointStore storage.SourceCheckpointStore = memory.NewSourceCheckpointStore()

	if !cfg.Storage.UseMemory {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		listingStore = pgstore.NewRawListingStore(pool)
		checkpointStore = pgstore.NewSourceCheckpointStore(pool)
	}

	source := ingestion.NewHTTPListingSource(ingestion.HTTPSourceOptions{
		BaseURL:           cfg.Sources.FeedBaseURL,
		RequestsPerSecond: cfg.Sources.RequestsPerSecond,
		PageSize:          cfg.Sources.PageSize,
	})

	manager := ingestion.NewManager(ingestion.ManagerOptions{
		ListingSource:   source,
		ListingStore:    listingStore,
		CheckpointStore: checkpointStore,
	})

	// Determine time range
	var explicitFrom, to int64

	if fromTimeStr != "" {
		t, err := time.Parse(time.RFC3339, fromTimeStr)
		if err != nil {
			return fmt.Errorf("parse from-time: %w", err)
		}
		explicitFrom = t.UnixMilli()
	}

	if toTimeStr != "" {
		t, err := time.Parse(time.RFC3339, toTimeStr)
		if err != nil {
			return fmt.Errorf("parse to-time: %w", err)
		}
		to = t.UnixMilli()
	} else {
		to = time.Now().UnixMilli()
	}

	total := 0
	for _, sourceID := range cfg.Sources.IDs {
		from := explicitFrom
		if from == 0 {
			resume, err := manager.ResumePoint(ctx, sourceID)
			if err != nil {
				return fmt.Errorf("resume point for %s: %w", sourceID, err)
			}
			from = resume
		}
		if from == 0 {
			// First run for this source: no checkpoint, default to last 24 hours
			from = to - (24 * time.Hour).Milliseconds()
		}
		if from > to {
			logger.Printf("Source %s is already caught up", sourceID)
			continue
		}

		logger.Printf("Backfilling %s from %s to %s", sourceID,
			time.UnixMilli(from).UTC().Format(time.RFC3339),
			time.UnixMilli(to).UTC().Format(time.RFC3339))

		count, err := manager.IngestListings(ctx, sourceID, from, to)
		if err != nil {
			observability.RecordIngestError(sourceID, "backfill")
			return fmt.Errorf("backfill %s: %w", sourceID, err)
		}

		observability.RecordCapturesIngested(count)
		logger.Printf("Source %s: %d new captures", sourceID, count)
		total += count
	}

	observability.MarkIngestionSuccess()
	logger.Printf("Backfill complete: %d new captures across %d source(s)", total, len(cfg.Sources.IDs))
	return nil
}
