package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadFromFile(t *testing.T) {
	content := `
storage:
  use_memory: true

sources:
  ids:
    - ebay
    - heritage
  feed_base_url: "https://feeds.example.com"
  requests_per_second: 2.5
  page_size: 50
  poll_interval: 30s

engine:
  bin_discount_factor: 0.9
  min_cohort_size: 8

report:
  output_dir: "./reports"

server:
  metrics_addr: ":9100"
  run_interval: 2h
  lookback: 720h
`
	tmpfile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpfile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Sources.IDs) != 2 {
		t.Errorf("Expected 2 sources, got %d", len(cfg.Sources.IDs))
	}
	if cfg.Sources.RequestsPerSecond != 2.5 {
		t.Errorf("Unexpected requests per second: %f", cfg.Sources.RequestsPerSecond)
	}
	if cfg.Sources.PollInterval != 30*time.Second {
		t.Errorf("Unexpected poll interval: %v", cfg.Sources.PollInterval)
	}
	if cfg.Engine.BinDiscountFactor != 0.9 {
		t.Errorf("Unexpected discount factor: %f", cfg.Engine.BinDiscountFactor)
	}
	if cfg.Engine.MinCohortSize != 8 {
		t.Errorf("Unexpected min cohort size: %d", cfg.Engine.MinCohortSize)
	}

	// Keys absent from the file keep their defaults.
	if !cfg.Engine.SoldOnly {
		t.Error("Expected sold_only default to survive a partial file")
	}
	if cfg.Engine.OutlierKFactor != 3.5 {
		t.Errorf("Unexpected outlier k factor: %f", cfg.Engine.OutlierKFactor)
	}
	if cfg.Server.RunInterval != 2*time.Hour {
		t.Errorf("Unexpected run interval: %v", cfg.Server.RunInterval)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Engine.MinCohortSize != 5 {
		t.Errorf("Unexpected min cohort size: %d", cfg.Engine.MinCohortSize)
	}
	if cfg.Engine.RelistedPolicy != "TREAT_AS_NEW" {
		t.Errorf("Unexpected relisted policy: %s", cfg.Engine.RelistedPolicy)
	}
	if cfg.Server.MetricsAddr != ":9090" {
		t.Errorf("Unexpected metrics addr: %s", cfg.Server.MetricsAddr)
	}
	if cfg.Sources.PageSize != 100 {
		t.Errorf("Unexpected page size: %d", cfg.Sources.PageSize)
	}

	// The defaults alone name no sources and no store, so they do not
	// validate as a runnable configuration.
	if err := cfg.Validate(); err == nil {
		t.Error("Expected Validate to fail without sources and storage")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("COMICLAB_SERVER_METRICS_ADDR", ":9191")
	t.Setenv("COMICLAB_ENGINE_MIN_COHORT_SIZE", "7")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.MetricsAddr != ":9191" {
		t.Errorf("Unexpected metrics addr: %s", cfg.Server.MetricsAddr)
	}
	if cfg.Engine.MinCohortSize != 7 {
		t.Errorf("Unexpected min cohort size: %d", cfg.Engine.MinCohortSize)
	}
}

func TestToEngine(t *testing.T) {
	ec := EngineConfig{
		SoldOnly:          true,
		MinPriceMinor:     100,
		MaxPriceMinor:     500000000,
		RelistedPolicy:    "suppress",
		BinDiscountFactor: 0.85,
		OutlierKFactor:    3.5,
		MinCohortSize:     5,
		WindowDays:        90,
		WindowCount:       200,
		Workers:           4,
	}

	got := ec.ToEngine()
	if string(got.RelistedPolicy) != "SUPPRESS" {
		t.Errorf("Expected policy uppercased, got %s", got.RelistedPolicy)
	}
	if got.BinDiscountFactor != 0.85 {
		t.Errorf("Unexpected discount factor: %f", got.BinDiscountFactor)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("Projected engine config failed validation: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid baseline",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "missing postgres dsn without memory fallback",
			mutate: func(c *Config) {
				c.Storage.UseMemory = false
				c.Storage.PostgresDSN = ""
			},
			wantErr: true,
		},
		{
			name: "no sources",
			mutate: func(c *Config) {
				c.Sources.IDs = nil
			},
			wantErr: true,
		},
		{
			name: "discount factor above one",
			mutate: func(c *Config) {
				c.Engine.BinDiscountFactor = 1.5
			},
			wantErr: true,
		},
		{
			name: "run interval too short",
			mutate: func(c *Config) {
				c.Server.RunInterval = time.Second
			},
			wantErr: true,
		},
		{
			name: "empty output dir",
			mutate: func(c *Config) {
				c.Report.OutputDir = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Storage: StorageConfig{UseMemory: true},
		Sources: SourcesConfig{
			IDs:               []string{"ebay"},
			RequestsPerSecond: 5,
			PageSize:          100,
			PollInterval:      time.Minute,
		},
		Engine: EngineConfig{
			SoldOnly:          true,
			MinPriceMinor:     100,
			MaxPriceMinor:     500000000,
			RelistedPolicy:    "TREAT_AS_NEW",
			BinDiscountFactor: 0.85,
			OutlierKFactor:    3.5,
			MinCohortSize:     5,
			WindowDays:        90,
			WindowCount:       200,
			Workers:           4,
		},
		Report: ReportConfig{OutputDir: "output"},
		Server: ServerConfig{
			MetricsAddr: ":9090",
			RunInterval: time.Hour,
			Lookback:    90 * 24 * time.Hour,
		},
	}
}
