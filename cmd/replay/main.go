// Package main provides the replay verification entry point. It re-executes
// stored batch runs from their persisted input windows and reports whether
// the stored outputs still reproduce.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"comic-price-lab/internal/config"
	"comic-price-lab/internal/engine"
	"comic-price-lab/internal/storage"
	chstore "comic-price-lab/internal/storage/clickhouse"
	"comic-price-lab/internal/storage/memory"
	pgstore "comic-price-lab/internal/storage/postgres"
	"comic-price-lab/internal/verification"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file")
	runID := flag.String("run-id", "", "Batch run to verify (default: most recent runs)")
	recent := flag.Int("recent", 1, "Number of recent runs to verify when --run-id is not set")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	// Setup structured logger
	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if *runID == "" && *recent < 1 {
		logger.Fatal("--recent must be at least 1")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Create stores
	var (
		listingStore  storage.RawListingStore       = memory.NewRawListingStore()
		recordStore   storage.NormalizedRecordStore = memory.NewNormalizedRecordStore()
		rejectedStore storage.RejectedRecordStore   = memory.NewRejectedRecordStore()
		runStore      storage.BatchRunStore         = memory.NewBatchRunStore()
	)

	if !*useMemory && cfg.Storage.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		listingStore = pgstore.NewRawListingStore(pool)
		rejectedStore = pgstore.NewRejectedRecordStore(pool)
		runStore = pgstore.NewBatchRunStore(pool)

		if cfg.Storage.ClickHouseDSN != "" {
			chConn, err := chstore.NewConn(ctx, cfg.Storage.ClickHouseDSN)
			if err != nil {
				logger.Fatalf("connect to clickhouse: %v", err)
			}
			defer chConn.Close()

			recordStore = chstore.NewNormalizedRecordStore(chConn)
		}
	}

	// The verifying pipeline carries the configured engine settings; a
	// config change since the original run shows up as divergence.
	pipeline, err := engine.NewPipeline(cfg.Engine.ToEngine())
	if err != nil {
		logger.Fatalf("create pipeline: %v", err)
	}

	verifier := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
		RunStore:      runStore,
		ListingStore:  listingStore,
		RecordStore:   recordStore,
		RejectedStore: rejectedStore,
		Pipeline:      pipeline,
	})

	// Verify either one named run or the most recent runs
	var reports []*verification.VerificationReport
	if *runID != "" {
		logger.Printf("Verifying run %s", *runID)
		report, err := verifier.VerifyRun(ctx, *runID)
		if err != nil {
			logger.Fatalf("verification failed: %v", err)
		}
		reports = append(reports, report)
	} else {
		logger.Printf("Verifying %d most recent runs", *recent)
		reports, err = verifier.VerifyRecent(ctx, *recent)
		if err != nil {
			logger.Fatalf("verification failed: %v", err)
		}
		if len(reports) == 0 {
			logger.Fatal("no batch runs found; run a normalization first")
		}
	}

	// Output results
	diverged := 0
	if *outputJSON {
		output, _ := json.MarshalIndent(reports, "", "  ")
		fmt.Println(string(output))
		for _, r := range reports {
			if !r.Match() {
				diverged++
			}
		}
	} else {
		for _, r := range reports {
			printReport(r)
			if !r.Match() {
				diverged++
			}
		}
		fmt.Printf("\nVerified %d run(s), %d diverged\n", len(reports), diverged)
	}

	if diverged > 0 {
		os.Exit(1)
	}
}

// printReport renders one verification report as text.
func printReport(r *verification.VerificationReport) {
	fmt.Printf("\n=== Verification Summary ===\n")
	fmt.Printf("Run ID:          %s\n", r.RunID)
	fmt.Printf("Replayed Inputs: %d\n", r.ReplayedInputs)
	fmt.Printf("Total Keys:      %d\n", r.TotalKeys)
	fmt.Printf("Matched Keys:    %d\n", r.MatchedKeys)
	fmt.Printf("Divergent Keys:  %d\n", r.DivergentKeys)

	for _, d := range r.RunDivergences {
		fmt.Printf("  run %s: stored %v, replayed %v\n", d.Field, d.Expected, d.Actual)
	}

	for _, result := range r.Results {
		if result.Match {
			continue
		}
		fmt.Printf("  %s/%s:\n", result.Key.SourceID, result.Key.ExternalID)
		for _, d := range result.Divergences {
			fmt.Printf("    %s: stored %v, replayed %v\n", d.Field, d.Expected, d.Actual)
		}
	}

	if r.Match() {
		fmt.Println("Result: MATCH")
	} else {
		fmt.Println("Result: DIVERGED")
	}
}
