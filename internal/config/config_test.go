// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithKoanf_Defaults(t *testing.T) {
	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf failed: %v", err)
	}

	if cfg.Server.Port != 8094 {
		t.Errorf("default port = %d, want 8094", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Forecast.TrendWindowMonths != 24 {
		t.Errorf("trend window = %d, want 24", cfg.Forecast.TrendWindowMonths)
	}
	if cfg.Scoring.BuyROI <= cfg.Scoring.AvoidROI {
		t.Error("default thresholds must keep buy above avoid")
	}
	if cfg.NATS.Enabled {
		t.Error("NATS consumer must be opt-in")
	}
}

func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	t.Setenv("ZIPSCORE_SERVER_PORT", "9000")
	t.Setenv("ZIPSCORE_FORECAST_MAX_ANNUAL_GROWTH", "0.5")
	t.Setenv("ZIPSCORE_DATABASE_DSN", "postgres://stats:secret@db:5432/zipscore")
	t.Setenv("ZIPSCORE_API_CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Forecast.MaxAnnualGrowth != 0.5 {
		t.Errorf("max annual growth = %f, want 0.5", cfg.Forecast.MaxAnnualGrowth)
	}
	if cfg.Database.DSN != "postgres://stats:secret@db:5432/zipscore" {
		t.Errorf("unexpected DSN: %s", cfg.Database.DSN)
	}
	if len(cfg.API.CORSOrigins) != 2 || cfg.API.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("cors origins = %v", cfg.API.CORSOrigins)
	}
}

func TestLoadWithKoanf_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 8200\nscoring:\n  buy_roi: 0.08\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ZIPSCORE_CONFIG", path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf failed: %v", err)
	}

	if cfg.Server.Port != 8200 {
		t.Errorf("port = %d, want 8200 from file", cfg.Server.Port)
	}
	if cfg.Scoring.BuyROI != 0.08 {
		t.Errorf("buy_roi = %f, want 0.08 from file", cfg.Scoring.BuyROI)
	}
	// Untouched settings keep their defaults.
	if cfg.Forecast.TrendWindowMonths != 24 {
		t.Errorf("trend window = %d, want default 24", cfg.Forecast.TrendWindowMonths)
	}
}

func TestLoadWithKoanf_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8200\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ZIPSCORE_CONFIG", path)
	t.Setenv("ZIPSCORE_SERVER_PORT", "8300")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf failed: %v", err)
	}
	if cfg.Server.Port != 8300 {
		t.Errorf("port = %d, environment must beat the file", cfg.Server.Port)
	}
}

func TestLoadWithKoanf_InvalidLogLevel(t *testing.T) {
	t.Setenv("ZIPSCORE_LOGGING_LEVEL", "verbose")

	if _, err := LoadWithKoanf(); err == nil {
		t.Fatal("expected validation failure for unknown log level")
	}
}

func TestValidate_CrossFieldRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"avoid_roi above buy_roi", func(c *Config) { c.Scoring.AvoidROI = 0.10 }},
		{"avoid_liquidity above buy_liquidity", func(c *Config) { c.Scoring.AvoidLiquidity = 90 }},
		{"zero liquidity weights", func(c *Config) {
			c.Scoring.TxnFrequencyWeight = 0
			c.Scoring.DaysOnMarketWeight = 0
		}},
		{"zero growth weights", func(c *Config) {
			c.District.SalesGrowthWeight = 0
			c.District.StoreGrowthWeight = 0
			c.District.FootGrowthWeight = 0
		}},
		{"nats enabled without url", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.URL = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SERVER_PORT", "server.port"},
		{"DATABASE_QUERY_TIMEOUT", "database.query_timeout"},
		{"FORECAST_MAX_ANNUAL_GROWTH", "forecast.max_annual_growth"},
		{"CACHE_INVEST_SCORE_TTL", "cache.invest_score_ttl"},
		{"UNRELATED_THING", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
