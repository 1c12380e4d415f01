// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

// Package config provides layered configuration for Zipscore.
//
// Configuration is loaded with koanf v2 in three layers, later layers
// overriding earlier ones:
//
//  1. Built-in defaults (structs provider)
//  2. Optional YAML config file (file provider)
//  3. Environment variables (env provider)
//
// Every numeric coefficient used by the scoring components lives here so
// thresholds are documented and testable independently of request handling.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Zipscore server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Database DatabaseConfig `koanf:"database"`
	Model    ModelConfig    `koanf:"model"`
	Cache    CacheConfig    `koanf:"cache"`
	Scoring  ScoringConfig  `koanf:"scoring"`
	Forecast ForecastConfig `koanf:"forecast"`
	District DistrictConfig `koanf:"district"`
	NATS     NATSConfig     `koanf:"nats"`
	API      APIConfig      `koanf:"api"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// DatabaseConfig holds statistics-repository connection settings.
// The repository is Postgres (the upstream collector writes to Supabase).
type DatabaseConfig struct {
	DSN          string        `koanf:"dsn"`
	MaxOpenConns int           `koanf:"max_open_conns"`
	MaxIdleConns int           `koanf:"max_idle_conns"`
	QueryTimeout time.Duration `koanf:"query_timeout"`

	// RetryAttempts bounds transient-failure retries per call; retries use
	// exponential backoff starting at RetryInitialDelay.
	RetryAttempts     int           `koanf:"retry_attempts"`
	RetryInitialDelay time.Duration `koanf:"retry_initial_delay"`
}

// ModelConfig holds trained-artifact and inference settings.
type ModelConfig struct {
	// ArtifactDir contains classifier.json, scaler.json, residuals.json.
	ArtifactDir string `koanf:"artifact_dir"`

	// InferenceWorkers bounds concurrent classifier inference.
	// 0 = 2 x runtime.NumCPU().
	InferenceWorkers int `koanf:"inference_workers"`

	// InferenceRateLimit caps inference dispatches per second.
	// 0 = unlimited.
	InferenceRateLimit float64 `koanf:"inference_rate_limit"`

	// ExplainTopK is the number of top-magnitude feature contributions
	// returned by explanations.
	ExplainTopK int `koanf:"explain_top_k"`
}

// CacheConfig holds per-namespace TTLs for the response cache.
type CacheConfig struct {
	CleanupInterval time.Duration `koanf:"cleanup_interval"`

	InvestScoreTTL     time.Duration `koanf:"invest_score_ttl"`
	InvestForecastTTL  time.Duration `koanf:"invest_forecast_ttl"`
	CommercialTTL      time.Duration `koanf:"commercial_ttl"`
	DistrictTTL        time.Duration `koanf:"district_ttl"`
	IndustryRankTTL    time.Duration `koanf:"industry_rank_ttl"`
	IntegratedTTL      time.Duration `koanf:"integrated_ttl"`
}

// ScoringConfig holds InvestmentScorer thresholds and weights.
//
// The BUY verdict requires ROI(1y) above BuyROI, liquidity at or above
// BuyLiquidity, and no speculative-risk signal (jeonse ratio rising faster
// than MaxRisingJeonseSlope while 1-year ROI sits below FlatROI). AVOID
// triggers on ROI(1y) below AvoidROI or liquidity below AvoidLiquidity.
type ScoringConfig struct {
	BuyROI         float64 `koanf:"buy_roi"`
	BuyLiquidity   float64 `koanf:"buy_liquidity"`
	AvoidROI       float64 `koanf:"avoid_roi"`
	AvoidLiquidity float64 `koanf:"avoid_liquidity"`

	MaxRisingJeonseSlope float64 `koanf:"max_rising_jeonse_slope"`
	FlatROI              float64 `koanf:"flat_roi"`

	// Liquidity score inputs. Transaction frequency over the trailing 12
	// months is normalized against TxnReferenceCeiling; days-on-market is
	// inverted against ReferenceDaysOnMarket.
	TxnFrequencyWeight    float64 `koanf:"txn_frequency_weight"`
	DaysOnMarketWeight    float64 `koanf:"days_on_market_weight"`
	TxnReferenceCeiling   int     `koanf:"txn_reference_ceiling" validate:"gt=0"`
	ReferenceDaysOnMarket float64 `koanf:"reference_days_on_market" validate:"gt=0"`
}

// ForecastConfig holds PricePredictor settings.
type ForecastConfig struct {
	// TrendWindowMonths is the trailing window for the log-price fit.
	TrendWindowMonths int `koanf:"trend_window_months" validate:"gte=2"`

	// MaxAnnualGrowth bounds predictions to a multiplicative envelope of
	// (1 +/- MaxAnnualGrowth)^years around the last observed price.
	MaxAnnualGrowth float64 `koanf:"max_annual_growth" validate:"gt=0,lt=1"`

	// ConfidenceZ is the z-score applied to per-horizon residual stddev
	// when building confidence intervals. 1.645 = 90% two-sided.
	ConfidenceZ float64 `koanf:"confidence_z" validate:"gt=0"`
}

// DistrictConfig holds DistrictAnalytics weights and coefficients.
type DistrictConfig struct {
	// Growth-potential blend weights; re-normalized over available inputs.
	SalesGrowthWeight float64 `koanf:"sales_growth_weight"`
	StoreGrowthWeight float64 `koanf:"store_growth_weight"`
	FootGrowthWeight  float64 `koanf:"foot_growth_weight"`

	// GrowthReferenceRange min-max normalizes each year-over-year delta:
	// a delta of -range maps to 0, +range maps to 100.
	GrowthReferenceRange float64 `koanf:"growth_reference_range" validate:"gt=0"`

	// CompetitionPenalty is subtracted from predicted probability per unit
	// of competition density when ranking industries.
	CompetitionPenalty float64 `koanf:"competition_penalty"`

	// DefaultTopN industries returned by recommendation ranking.
	DefaultTopN int `koanf:"default_top_n" validate:"gt=0"`
}

// NATSConfig holds the data-refresh invalidation consumer settings.
type NATSConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url"`
	Topic         string        `koanf:"topic"`
	QueueGroup    string        `koanf:"queue_group"`
	DurableName   string        `koanf:"durable_name"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
	AckWait       time.Duration `koanf:"ack_wait"`
	CloseTimeout  time.Duration `koanf:"close_timeout"`
}

// APIConfig holds API middleware settings.
type APIConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8094,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Database: DatabaseConfig{
			DSN:               "",
			MaxOpenConns:      16,
			MaxIdleConns:      4,
			QueryTimeout:      5 * time.Second,
			RetryAttempts:     3,
			RetryInitialDelay: 200 * time.Millisecond,
		},
		Model: ModelConfig{
			ArtifactDir:        "/data/model",
			InferenceWorkers:   0, // 0 = 2 x runtime.NumCPU()
			InferenceRateLimit: 0, // unlimited
			ExplainTopK:        8,
		},
		Cache: CacheConfig{
			CleanupInterval:   5 * time.Minute,
			InvestScoreTTL:    10 * time.Minute,
			InvestForecastTTL: 10 * time.Minute,
			CommercialTTL:     time.Hour,
			DistrictTTL:       time.Hour,
			IndustryRankTTL:   5 * time.Minute,
			IntegratedTTL:     5 * time.Minute,
		},
		Scoring: ScoringConfig{
			BuyROI:                0.05,
			BuyLiquidity:          60,
			AvoidROI:              -0.05,
			AvoidLiquidity:        20,
			MaxRisingJeonseSlope:  0.05,
			FlatROI:               0.02,
			TxnFrequencyWeight:    60,
			DaysOnMarketWeight:    40,
			TxnReferenceCeiling:   24,
			ReferenceDaysOnMarket: 30,
		},
		Forecast: ForecastConfig{
			TrendWindowMonths: 24,
			MaxAnnualGrowth:   0.30,
			ConfidenceZ:       1.645,
		},
		District: DistrictConfig{
			SalesGrowthWeight:    0.4,
			StoreGrowthWeight:    0.3,
			FootGrowthWeight:     0.3,
			GrowthReferenceRange: 0.5,
			CompetitionPenalty:   0.02,
			DefaultTopN:          5,
		},
		NATS: NATSConfig{
			Enabled:       false, // opt-in; cache TTLs alone are sufficient for correctness
			URL:           "nats://127.0.0.1:4222",
			Topic:         "statistics.refreshed",
			QueueGroup:    "zipscore",
			DurableName:   "cache-invalidator",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			AckWait:       30 * time.Second,
			CloseTimeout:  10 * time.Second,
		},
		API: APIConfig{
			RateLimitReqs:     300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
	}
}

// Validate checks cross-field configuration invariants that struct tags
// cannot express. Called by LoadWithKoanf after unmarshaling.
func (c *Config) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}

	if c.Scoring.TxnFrequencyWeight+c.Scoring.DaysOnMarketWeight <= 0 {
		return fmt.Errorf("scoring: liquidity weights must sum to a positive value")
	}
	if c.Scoring.AvoidROI >= c.Scoring.BuyROI {
		return fmt.Errorf("scoring: avoid_roi (%.3f) must be below buy_roi (%.3f)", c.Scoring.AvoidROI, c.Scoring.BuyROI)
	}
	if c.Scoring.AvoidLiquidity >= c.Scoring.BuyLiquidity {
		return fmt.Errorf("scoring: avoid_liquidity (%.1f) must be below buy_liquidity (%.1f)", c.Scoring.AvoidLiquidity, c.Scoring.BuyLiquidity)
	}

	wSum := c.District.SalesGrowthWeight + c.District.StoreGrowthWeight + c.District.FootGrowthWeight
	if wSum <= 0 {
		return fmt.Errorf("district: growth weights must sum to a positive value, got %.3f", wSum)
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats: url is required when the invalidation consumer is enabled")
	}

	return nil
}
