// Package main provides the standalone report generation entry point.
// It renders the markdown report and CSV exports for a stored batch run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

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
	runID := flag.String("run-id", "", "Batch run to report on (default: most recent)")
	outputDir := flag.String("output-dir", "", "Output directory for generated files (overrides config)")
	useFixtures := flag.Bool("use-fixtures", false, "Run the pipeline over demo captures in memory and report on that run")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *outputDir != "" {
		cfg.Report.OutputDir = *outputDir
	}

	ctx := context.Background()

	// Validate flags
	if !*useFixtures && (cfg.Storage.PostgresDSN == "" || cfg.Storage.ClickHouseDSN == "") {
		fmt.Fprintln(os.Stderr, "Error: postgres and clickhouse DSNs are required when not using fixtures")
		fmt.Fprintln(os.Stderr, "Use --use-fixtures to report on demo data instead")
		os.Exit(1)
	}

	// Create stores based on mode
	var (
		listingStore  storage.RawListingStore
		recordStore   storage.NormalizedRecordStore
		rejectedStore storage.RejectedRecordStore
		runStore      storage.BatchRunStore
	)

	if *useFixtures {
		listingStore = memory.NewRawListingStore()
		recordStore = memory.NewNormalizedRecordStore()
		rejectedStore = memory.NewRejectedRecordStore()
		runStore = memory.NewBatchRunStore()

		id, err := runFixturePipeline(ctx, cfg, listingStore, recordStore, rejectedStore, runStore)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error running fixture pipeline: %v\n", err)
			os.Exit(1)
		}
		*runID = id
	} else {
		var cleanup func()
		recordStore, rejectedStore, runStore, cleanup, err = createDatabaseStores(ctx, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to databases: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
	}

	// Default to the most recent run
	if *runID == "" {
		runs, err := runStore.GetRecent(ctx, 1)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading recent runs: %v\n", err)
			os.Exit(1)
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "Error: no batch runs found; run a normalization first")
			os.Exit(1)
		}
		*runID = runs[0].RunID
	}

	generator := reporting.NewGenerator(runStore, recordStore, rejectedStore).
		WithMinCohortSize(cfg.Engine.MinCohortSize)

	report, err := generator.Generate(ctx, *runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "Error: run %s not found\n", *runID)
		} else {
			fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		}
		os.Exit(1)
	}

	accepted, err := recordStore.GetByRunID(ctx, *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading accepted records: %v\n", err)
		os.Exit(1)
	}
	rejected, err := rejectedStore.GetByRunID(ctx, *runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading rejected records: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Report.OutputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	outputs := map[string]string{
		"NORMALIZATION_REPORT.md": reporting.RenderMarkdown(report),
		"accepted_records.csv":    reporting.RenderAcceptedCSV(accepted),
		"rejected_records.csv":    reporting.RenderRejectedCSV(rejected),
	}
	for name, content := range outputs {
		path := filepath.Join(cfg.Report.OutputDir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", name, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Report for run %s generated successfully:\n", *runID)
	fmt.Printf("  - %s/NORMALIZATION_REPORT.md\n", cfg.Report.OutputDir)
	fmt.Printf("  - %s/accepted_records.csv\n", cfg.Report.OutputDir)
	fmt.Printf("  - %s/rejected_records.csv\n", cfg.Report.OutputDir)
	fmt.Printf("\nQuality gate verdict: %s\n", report.QualityGate.Verdict)
}

// runFixturePipeline loads the demo captures and executes one in-memory
// normalization run, returning its run id.
func runFixturePipeline(
	ctx context.Context,
	cfg *config.Config,
	listingStore storage.RawListingStore,
	recordStore storage.NormalizedRecordStore,
	rejectedStore storage.RejectedRecordStore,
	runStore storage.BatchRunStore,
) (string, error) {
	if err := orchestrator.LoadFixtures(ctx, listingStore); err != nil {
		return "", fmt.Errorf("load fixtures: %w", err)
	}

	pipeline, err := engine.NewPipeline(cfg.Engine.ToEngine())
	if err != nil {
		return "", fmt.Errorf("create pipeline: %w", err)
	}

	orch := orchestrator.New(orchestrator.Options{
		ListingStore:  listingStore,
		RecordStore:   recordStore,
		RejectedStore: rejectedStore,
		RunStore:      runStore,
		Pipeline:      pipeline,
		Sources:       orchestrator.FixtureSources(),
	})

	from, to := orchestrator.FixtureWindow()
	result, err := orch.Run(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("run pipeline: %w", err)
	}
	return result.RunID, nil
}

// createDatabaseStores connects to PostgreSQL and ClickHouse and creates the
// stores the report needs.
func createDatabaseStores(ctx context.Context, cfg *config.Config) (
	storage.NormalizedRecordStore,
	storage.RejectedRecordStore,
	storage.BatchRunStore,
	func(),
	error,
) {
	// Connect to PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Connect to ClickHouse
	chConn, err := chstore.NewConn(ctx, cfg.Storage.ClickHouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	// Postgres stores (audit trail)
	rejectedStore := pgstore.NewRejectedRecordStore(pool)
	runStore := pgstore.NewBatchRunStore(pool)

	// ClickHouse store (normalized analytics rows)
	recordStore := chstore.NewNormalizedRecordStore(chConn)

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return recordStore, rejectedStore, runStore, cleanup, nil
}
