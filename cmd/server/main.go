// Package main provides the unified server that runs all components together:
// - Ingestion (continuous): live marketplace feed into capture storage
// - Normalization (scheduled): load window -> normalize -> persist
// - Reporting (per run): NORMALIZATION_REPORT.md and accepted/rejected CSVs
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"comic-price-lab/internal/config"
	"comic-price-lab/internal/engine"
	"comic-price-lab/internal/ingestion"
	"comic-price-lab/internal/observability"
	"comic-price-lab/internal/orchestrator"
	"comic-price-lab/internal/reporting"
	"comic-price-lab/internal/storage"
	chstore "comic-price-lab/internal/storage/clickhouse"
	"comic-price-lab/internal/storage/memory"
	pgstore "comic-price-lab/internal/storage/postgres"
)

// Server holds all components of the unified service.
type Server struct {
	// Configuration
	cfg       *config.Config
	outputDir string

	// Stores
	stores *allStores

	// Components
	pipeline  *engine.Pipeline
	generator *reporting.Generator
	logger    *log.Logger

	// State
	mu              sync.Mutex
	started         time.Time
	lastRun         time.Time
	runRunning      bool
	ingestionActive bool

	// Stats
	runsCompleted int
	runsFailed    int
}

// allStores holds all storage implementations.
type allStores struct {
	listingStore    storage.RawListingStore
	recordStore     storage.NormalizedRecordStore
	rejectedStore   storage.RejectedRecordStore
	runStore        storage.BatchRunStore
	checkpointStore storage.SourceCheckpointStore
}

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file (optional)")
	outputDir := flag.String("output-dir", "", "Output directory for reports (overrides config)")
	runInterval := flag.Duration("run-interval", 0, "Normalization run interval (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for health/metrics/status (overrides config)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}

	// Apply flag overrides before validation
	if *useMemory {
		cfg.Storage.UseMemory = true
	}
	if *outputDir != "" {
		cfg.Report.OutputDir = *outputDir
	}
	if *runInterval > 0 {
		cfg.Server.RunInterval = *runInterval
	}
	if *metricsAddr != "" {
		cfg.Server.MetricsAddr = *metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}
	logger.Printf("Normalizing sources: %v", cfg.Sources.IDs)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	pipeline, err := engine.NewPipeline(cfg.Engine.ToEngine())
	if err != nil {
		logger.Fatalf("Failed to create pipeline: %v", err)
	}

	generator := reporting.NewGenerator(stores.runStore, stores.recordStore, stores.rejectedStore).
		WithMinCohortSize(cfg.Engine.MinCohortSize)

	// Create server
	server := &Server{
		cfg:       cfg,
		outputDir: cfg.Report.OutputDir,
		stores:    stores,
		pipeline:  pipeline,
		generator: generator,
		logger:    logger,
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

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

	// Start HTTP server
	go server.startHTTPServer(cfg.Server.MetricsAddr)

	// Run the unified server
	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, cfg *config.Config) (*allStores, func(), error) {
	if cfg.Storage.UseMemory {
		stores := &allStores{
			listingStore:    memory.NewRawListingStore(),
			recordStore:     memory.NewNormalizedRecordStore(),
			rejectedStore:   memory.NewRejectedRecordStore(),
			runStore:        memory.NewBatchRunStore(),
			checkpointStore: memory.NewSourceCheckpointStore(),
		}
		return stores, func() {}, nil
	}

	if cfg.Storage.ClickHouseDSN == "" {
		return nil, nil, fmt.Errorf("storage.clickhouse_dsn is required (use --use-memory for in-memory storage)")
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

	stores := &allStores{
		// PostgreSQL stores (captures + run bookkeeping)
		listingStore:    pgstore.NewRawListingStore(pool),
		rejectedStore:   pgstore.NewRejectedRecordStore(pool),
		runStore:        pgstore.NewBatchRunStore(pool),
		checkpointStore: pgstore.NewSourceCheckpointStore(pool),

		// ClickHouse stores (normalized analytics)
		recordStore: chstore.NewNormalizedRecordStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// Run starts the unified server with all components.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting unified server...")

	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()

	// Create error channel for goroutines
	errCh := make(chan error, 2)

	// Start ingestion in background
	go func() {
		err := s.runIngestion(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("ingestion: %w", err)
		}
	}()

	// Start run scheduler in background
	go func() {
		err := s.runScheduler(ctx)
		if err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("run scheduler: %w", err)
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runIngestion runs continuous ingestion from the live listing feed. Without a
// configured feed the server still runs scheduled normalization over whatever
// the backfill command has stored.
func (s *Server) runIngestion(ctx context.Context) error {
	if s.cfg.Sources.FeedWSURL == "" {
		s.logger.Println("No live feed configured (sources.feed_ws_url), skipping ingestion")
		return nil
	}

	s.logger.Println("Starting ingestion...")

	feed, err := ingestion.NewWSListingSource(ctx, s.cfg.Sources.FeedWSURL, s.cfg.Sources.IDs, nil)
	if err != nil {
		return fmt.Errorf("connect to listing feed: %w", err)
	}
	defer feed.Close()

	manager := ingestion.NewManager(ingestion.ManagerOptions{
		ListingStore:    s.stores.listingStore,
		CheckpointStore: s.stores.checkpointStore,
	})

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Source:  feed,
		Manager: manager,
		Logger:  log.New(os.Stdout, "[ingestion] ", log.LstdFlags|log.Lshortfile),
	})

	s.mu.Lock()
	s.ingestionActive = true
	s.mu.Unlock()

	s.logger.Println("Ingestion started")
	return runner.Run(ctx)
}

// runScheduler runs normalization on schedule.
func (s *Server) runScheduler(ctx context.Context) error {
	s.logger.Printf("Starting run scheduler (interval: %v, lookback: %v)...",
		s.cfg.Server.RunInterval, s.cfg.Server.Lookback)

	// Run immediately on start
	s.runNormalization(ctx)

	ticker := time.NewTicker(s.cfg.Server.RunInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runNormalization(ctx)
		}
	}
}

// runNormalization executes one batch run over the trailing lookback window.
func (s *Server) runNormalization(ctx context.Context) {
	s.mu.Lock()
	if s.runRunning {
		s.mu.Unlock()
		s.logger.Println("Normalization run already in progress, skipping...")
		return
	}
	s.runRunning = true
	s.mu.Unlock()

	failed := false
	defer func() {
		s.mu.Lock()
		s.runRunning = false
		s.lastRun = time.Now()
		if failed {
			s.runsFailed++
		} else {
			s.runsCompleted++
		}
		s.mu.Unlock()
	}()

	s.logger.Println("Running normalization...")
	start := time.Now()

	orch := orchestrator.New(orchestrator.Options{
		ListingStore:  s.stores.listingStore,
		RecordStore:   s.stores.recordStore,
		RejectedStore: s.stores.rejectedStore,
		RunStore:      s.stores.runStore,
		Pipeline:      s.pipeline,
		Generator:     s.generator,
		Sources:       s.cfg.Sources.IDs,
	})

	to := time.Now().UnixMilli()
	from := to - s.cfg.Server.Lookback.Milliseconds()

	result, err := orch.Run(ctx, from, to)
	if err != nil {
		failed = true
		s.logger.Printf("Normalization error: %v", err)
		observability.RecordBatchRun("error", time.Since(start).Seconds())
		return
	}

	if result.Received == 0 {
		s.logger.Println("Window contained no captures, nothing to normalize")
		return
	}

	for _, msg := range result.Errors {
		s.logger.Printf("Run warning: %s", msg)
	}

	s.logger.Printf("Run %s completed in %v: %d received, %d accepted, %d rejected",
		result.RunID, time.Since(start), result.Received, result.Accepted, result.Rejected)

	observability.RecordBatchRun("success", time.Since(start).Seconds())
	observability.RecordBatchCounts(result.Received, result.Accepted)
	observability.MarkRunSuccess()
	s.recordRejections(ctx, result.RunID)

	if result.Report != nil {
		observability.RecordReportGenerated()
	}

	s.writeRunReport(ctx, result)
}

// recordRejections exports the per-reason rejection counts for one run.
func (s *Server) recordRejections(ctx context.Context, runID string) {
	counts, err := s.stores.rejectedStore.CountByReason(ctx, runID)
	if err != nil {
		s.logger.Printf("Failed to count rejections for run %s: %v", runID, err)
		return
	}
	for reason, n := range counts {
		observability.RecordRejections(string(reason), n)
	}
}

// writeRunReport renders the latest run report and CSVs into the output
// directory, replacing the previous run's files.
func (s *Server) writeRunReport(ctx context.Context, result *orchestrator.RunResult) {
	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		s.logger.Printf("Failed to create output directory: %v", err)
		return
	}

	accepted, err := s.stores.recordStore.GetByRunID(ctx, result.RunID)
	if err != nil {
		s.logger.Printf("Failed to load accepted records: %v", err)
		return
	}
	rejected, err := s.stores.rejectedStore.GetByRunID(ctx, result.RunID)
	if err != nil {
		s.logger.Printf("Failed to load rejected records: %v", err)
		return
	}

	outputs := map[string]string{
		"accepted_records.csv": reporting.RenderAcceptedCSV(accepted),
		"rejected_records.csv": reporting.RenderRejectedCSV(rejected),
	}
	if result.Report != nil {
		outputs["NORMALIZATION_REPORT.md"] = reporting.RenderMarkdown(result.Report)
	}

	for name, content := range outputs {
		if err := os.WriteFile(filepath.Join(s.outputDir, name), []byte(content), 0644); err != nil {
			s.logger.Printf("Failed to write %s: %v", name, err)
			return
		}
	}

	s.logger.Printf("Reports written to %s/", s.outputDir)
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status          string    `json:"status"`
	Uptime          string    `json:"uptime"`
	IngestionActive bool      `json:"ingestion_active"`
	LastRun         time.Time `json:"last_run,omitempty"`
	RunsCompleted   int       `json:"runs_completed"`
	RunsFailed      int       `json:"runs_failed"`
	RunRunning      bool      `json:"run_running"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatusResponse{
		Status:          "running",
		Uptime:          time.Since(s.started).String(),
		IngestionActive: s.ingestionActive,
		LastRun:         s.lastRun,
		RunsCompleted:   s.runsCompleted,
		RunsFailed:      s.runsFailed,
		RunRunning:      s.runRunning,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
