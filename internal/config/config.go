// Package config loads application configuration from an optional config
// file and COMICLAB_-prefixed environment variables.
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"comic-price-lab/internal/engine"
	"comic-price-lab/internal/validity"
)

// Config represents the complete application configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Sources SourcesConfig `mapstructure:"sources"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Report  ReportConfig  `mapstructure:"report"`
	Server  ServerConfig  `mapstructure:"server"`
}

// StorageConfig holds store backend configuration.
type StorageConfig struct {
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickHouseDSN string `mapstructure:"clickhouse_dsn"`
	UseMemory     bool   `mapstructure:"use_memory"`
}

// SourcesConfig holds marketplace feed configuration.
type SourcesConfig struct {
	IDs               []string      `mapstructure:"ids"`
	FeedBaseURL       string        `mapstructure:"feed_base_url"`
	FeedWSURL         string        `mapstructure:"feed_ws_url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	PageSize          int           `mapstructure:"page_size"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
}

// EngineConfig holds normalization pipeline knobs. Fields mirror
// engine.Config; the relisted policy is carried as its wire string.
type EngineConfig struct {
	SoldOnly              bool    `mapstructure:"sold_only"`
	MinPriceMinor         int64   `mapstructure:"min_price_minor"`
	MaxPriceMinor         int64   `mapstructure:"max_price_minor"`
	RelistedPolicy        string  `mapstructure:"relisted_policy"`
	UngradedFallbackGrade float64 `mapstructure:"ungraded_fallback_grade"`
	BinDiscountFactor     float64 `mapstructure:"bin_discount_factor"`
	OutlierKFactor        float64 `mapstructure:"outlier_k_factor"`
	MinCohortSize         int     `mapstructure:"min_cohort_size"`
	WindowDays            int     `mapstructure:"window_days"`
	WindowCount           int     `mapstructure:"window_count"`
	Workers               int     `mapstructure:"workers"`
}

// ReportConfig holds report output configuration.
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// ServerConfig holds long-running server configuration.
type ServerConfig struct {
	MetricsAddr string        `mapstructure:"metrics_addr"`
	RunInterval time.Duration `mapstructure:"run_interval"`
	Lookback    time.Duration `mapstructure:"lookback"`
}

// Load reads configuration from an optional file and environment variables.
// An empty path skips the file and uses defaults plus environment only.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("COMICLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Storage defaults
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.clickhouse_dsn", "")
	v.SetDefault("storage.use_memory", false)

	// Sources defaults
	v.SetDefault("sources.ids", []string{})
	v.SetDefault("sources.feed_base_url", "")
	v.SetDefault("sources.feed_ws_url", "")
	v.SetDefault("sources.requests_per_second", 5.0)
	v.SetDefault("sources.page_size", 100)
	v.SetDefault("sources.poll_interval", "1m")

	// Engine defaults mirror engine.DefaultConfig
	def := engine.DefaultConfig()
	v.SetDefault("engine.sold_only", def.SoldOnly)
	v.SetDefault("engine.min_price_minor", def.MinPriceMinor)
	v.SetDefault("engine.max_price_minor", def.MaxPriceMinor)
	v.SetDefault("engine.relisted_policy", string(def.RelistedPolicy))
	v.SetDefault("engine.ungraded_fallback_grade", def.UngradedFallbackGrade)
	v.SetDefault("engine.bin_discount_factor", def.BinDiscountFactor)
	v.SetDefault("engine.outlier_k_factor", def.OutlierKFactor)
	v.SetDefault("engine.min_cohort_size", def.MinCohortSize)
	v.SetDefault("engine.window_days", def.WindowDays)
	v.SetDefault("engine.window_count", def.WindowCount)
	v.SetDefault("engine.workers", def.Workers)

	// Report defaults
	v.SetDefault("report.output_dir", "output")

	// Server defaults
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.run_interval", "1h")
	v.SetDefault("server.lookback", "2160h") // 90 days
}

// ToEngine projects the engine section onto engine.Config.
func (c EngineConfig) ToEngine() engine.Config {
	return engine.Config{
		SoldOnly:              c.SoldOnly,
		MinPriceMinor:         c.MinPriceMinor,
		MaxPriceMinor:         c.MaxPriceMinor,
		RelistedPolicy:        validity.RelistedPolicy(strings.ToUpper(c.RelistedPolicy)),
		UngradedFallbackGrade: c.UngradedFallbackGrade,
		BinDiscountFactor:     c.BinDiscountFactor,
		OutlierKFactor:        c.OutlierKFactor,
		MinCohortSize:         c.MinCohortSize,
		WindowDays:            c.WindowDays,
		WindowCount:           c.WindowCount,
		Workers:               c.Workers,
	}
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	// Validate Storage config
	if !c.Storage.UseMemory && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn is required unless storage.use_memory is set")
	}

	// Validate Sources config
	if len(c.Sources.IDs) == 0 {
		return fmt.Errorf("sources.ids must contain at least one marketplace source")
	}
	if c.Sources.RequestsPerSecond <= 0 {
		return fmt.Errorf("sources.requests_per_second must be positive")
	}
	if c.Sources.PageSize < 1 {
		return fmt.Errorf("sources.page_size must be at least 1")
	}
	if c.Sources.PollInterval < time.Second {
		return fmt.Errorf("sources.poll_interval must be at least 1 second")
	}

	// Validate Engine config via the engine's own rules
	if err := c.Engine.ToEngine().Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	// Validate Report config
	if c.Report.OutputDir == "" {
		return fmt.Errorf("report.output_dir is required")
	}

	// Validate Server config
	if c.Server.MetricsAddr == "" {
		return fmt.Errorf("server.metrics_addr is required")
	}
	if c.Server.RunInterval < time.Minute {
		return fmt.Errorf("server.run_interval must be at least 1 minute")
	}
	if c.Server.Lookback < time.Hour {
		return fmt.Errorf("server.lookback must be at least 1 hour")
	}

	return nil
}
