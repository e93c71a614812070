// Package main provides the one-shot normalization run entry point.
// Executes: load window -> normalize -> persist -> report
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"comic-price-lab/internal/config"
	"comic-price-lab/internal/engine"
	"comic-price-lab/internal/orchestrator"
	"comic-price-lab/internal/reporting"
	"comic-price-lab/internal/storage"
	chstore "comic-price-lab/internal/storage/clickhouse"
	"comic-price-lab/internal/storage/memory"
	pgstore "comic-price-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file")
	fromTime := flag.String("from-time", "", "Window start (RFC3339, default: lookback before window end)")
	toTime := flag.String("to-time", "", "Window end (RFC3339, default: now)")
	outputDir := flag.String("output-dir", "", "Output directory for report files (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	useFixtures := flag.Bool("use-fixtures", false, "Load demo captures into in-memory storage")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Apply flag overrides
	if *useMemory || *useFixtures {
		cfg.Storage.UseMemory = true
	}
	if *outputDir != "" {
		cfg.Report.OutputDir = *outputDir
	}
	if *useFixtures && len(cfg.Sources.IDs) == 0 {
		cfg.Sources.IDs = orchestrator.FixtureSources()
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, cancelling run...\n", sig)
		cancel()
	}()

	// Create stores based on mode
	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating stores: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	if *useFixtures {
		if err := orchestrator.LoadFixtures(ctx, stores.listingStore); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading fixtures: %v\n", err)
			os.Exit(1)
		}
	}

	from, to, err := resolveWindow(*fromTime, *toTime, cfg.Server.Lookback, *useFixtures)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving window: %v\n", err)
		os.Exit(1)
	}

	pipeline, err := engine.NewPipeline(cfg.Engine.ToEngine())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating pipeline: %v\n", err)
		os.Exit(1)
	}

	generator := reporting.NewGenerator(stores.runStore, stores.recordStore, stores.rejectedStore).
		WithMinCohortSize(cfg.Engine.MinCohortSize)

	orch := orchestrator.New(orchestrator.Options{
		ListingStore:  stores.listingStore,
		RecordStore:   stores.recordStore,
		RejectedStore: stores.rejectedStore,
		RunStore:      stores.runStore,
		Pipeline:      pipeline,
		Generator:     generator,
		Sources:       cfg.Sources.IDs,
		Verbose:       *verbose,
	})

	fmt.Println("=== Normalization Run ===")
	fmt.Printf("Window: %s .. %s\n",
		time.UnixMilli(from).UTC().Format(time.RFC3339),
		time.UnixMilli(to).UTC().Format(time.RFC3339))

	result, err := orch.Run(ctx, from, to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Run %s completed:\n", result.RunID)
	fmt.Printf("  Received: %d\n", result.Received)
	fmt.Printf("  Accepted: %d\n", result.Accepted)
	fmt.Printf("  Rejected: %d\n", result.Rejected)
	if len(result.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}

	if result.Received == 0 {
		fmt.Println("\nWindow contained no captures; nothing persisted.")
		return
	}

	files, err := writeReportFiles(ctx, cfg.Report.OutputDir, result, stores)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report files: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nNormalization run completed successfully:")
	for _, f := range files {
		fmt.Printf("  - %s\n", f)
	}
}

// resolveWindow turns the time flags into a [from, to] millisecond range.
// Fixture mode without explicit flags uses the fixture capture window.
func resolveWindow(fromTime, toTime string, lookback time.Duration, useFixtures bool) (int64, int64, error) {
	if useFixtures && fromTime == "" && toTime == "" {
		from, to := orchestrator.FixtureWindow()
		return from, to, nil
	}

	to := time.Now().UnixMilli()
	if toTime != "" {
		t, err := time.Parse(time.RFC3339, toTime)
		if err != nil {
			return 0, 0, fmt.Errorf("parse to-time: %w", err)
		}
		to = t.UnixMilli()
	}

	from := to - lookback.Milliseconds()
	if fromTime != "" {
		t, err := time.Parse(time.RFC3339, fromTime)
		if err != nil {
			return 0, 0, fmt.Errorf("parse from-time: %w", err)
		}
		from = t.UnixMilli()
	}

	if from > to {
		return 0, 0, fmt.Errorf("window start %d after window end %d", from, to)
	}
	return from, to, nil
}

// writeReportFiles renders the run report and both CSVs into outputDir.
func writeReportFiles(ctx context.Context, outputDir string, result *orchestrator.RunResult, stores *runStores) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	accepted, err := stores.recordStore.GetByRunID(ctx, result.RunID)
	if err != nil {
		return nil, fmt.Errorf("load accepted records: %w", err)
	}
	rejected, err := stores.rejectedStore.GetByRunID(ctx, result.RunID)
	if err != nil {
		return nil, fmt.Errorf("load rejected records: %w", err)
	}

	files := []reportFile{
		{"accepted_records.csv", reporting.RenderAcceptedCSV(accepted)},
		{"rejected_records.csv", reporting.RenderRejectedCSV(rejected)},
	}
	// The markdown report is absent when generation failed; the run itself
	// already surfaced that through result.Errors.
	if result.Report != nil {
		files = append(files, reportFile{"NORMALIZATION_REPORT.md", reporting.RenderMarkdown(result.Report)})
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(outputDir, f.name)
		if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// reportFile is one rendered output file.
type reportFile struct {
	name    string
	content string
}

// runStores holds the stores one normalization run needs.
type runStores struct {
	listingStore  storage.RawListingStore
	recordStore   storage.NormalizedRecordStore
	rejectedStore storage.RejectedRecordStore
	runStore      storage.BatchRunStore
}

// createStores creates all required stores.
func createStores(ctx context.Context, cfg *config.Config) (*runStores, func(), error) {
	if cfg.Storage.UseMemory {
		stores := &runStores{
			listingStore:  memory.NewRawListingStore(),
			recordStore:   memory.NewNormalizedRecordStore(),
			rejectedStore: memory.NewRejectedRecordStore(),
			runStore:      memory.NewBatchRunStore(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// ClickHouse
	chConn, err := chstore.NewConn(ctx, cfg.Storage.ClickHouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	stores := &runStores{
		// PostgreSQL stores (captures + audit trail)
		listingStore:  pgstore.NewRawListingStore(pool),
		rejectedStore: pgstore.NewRejectedRecordStore(pool),
		runStore:      pgstore.NewBatchRunStore(pool),

		// ClickHouse store (normalized analytics rows)
		recordStore: chstore.NewNormalizedRecordStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}
