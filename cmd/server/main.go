// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

// Package main is the entry point for the Zipscore analytics server.
//
// Zipscore scores apartment investments, forecasts sale prices, and
// predicts commercial success per district and industry over statistics an
// out-of-scope collector pipeline loads into Postgres.
//
// Startup order:
//
//  1. Configuration: koanf v2 layering defaults, optional YAML file, and
//     ZIPSCORE_* environment variables
//  2. Logging: zerolog, JSON or console format
//  3. Model artifact: trained classifier bundle; a load failure degrades
//     commercial predictions to 503 instead of aborting startup
//  4. Repository: Postgres statistics reads behind a circuit breaker with
//     bounded retries
//  5. Engines: investment scorer, price predictor, commercial predictor,
//     district analytics, integrated analyzer
//  6. Supervision: suture tree running the cache janitor, the optional
//     NATS invalidation consumer, and the HTTP server
//
// The server shuts down gracefully on SIGINT and SIGTERM, draining
// in-flight requests within the configured shutdown timeout.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/zipscore/zipscore/internal/analyzer"
	"github.com/zipscore/zipscore/internal/api"
	"github.com/zipscore/zipscore/internal/artifact"
	"github.com/zipscore/zipscore/internal/cache"
	"github.com/zipscore/zipscore/internal/commercial"
	"github.com/zipscore/zipscore/internal/config"
	"github.com/zipscore/zipscore/internal/district"
	"github.com/zipscore/zipscore/internal/forecast"
	"github.com/zipscore/zipscore/internal/invalidation"
	"github.com/zipscore/zipscore/internal/logging"
	"github.com/zipscore/zipscore/internal/metrics"
	"github.com/zipscore/zipscore/internal/repository"
	"github.com/zipscore/zipscore/internal/scoring"
	"github.com/zipscore/zipscore/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server exited with error")
	}
}

func run() error {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).
		Msg("starting zipscore")

	// The artifact is optional at startup: investment and district
	// analytics work without it, commercial predictions return 503.
	var art *artifact.Artifact
	if art, err = artifact.Load(cfg.Model.ArtifactDir); err != nil {
		logging.Warn().Err(err).Str("dir", cfg.Model.ArtifactDir).
			Msg("model artifact unavailable; commercial predictions disabled")
		art = nil
		metrics.ModelLoaded.Set(0)
	} else {
		logging.Info().Int("features", art.NumFeatures()).Msg("model artifact loaded")
		metrics.ModelLoaded.Set(1)
	}

	pg, err := repository.NewPostgresRepository(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open statistics repository: %w", err)
	}
	defer pg.Close()
	repo := repository.NewResilient(pg, cfg.Database.RetryAttempts, cfg.Database.RetryInitialDelay)

	responseCache := cache.New(cfg.Cache.CleanupInterval)

	scorer := scoring.NewInvestmentScorer(repo, &cfg.Scoring)
	forecaster := forecast.NewPricePredictor(repo, &cfg.Forecast, art)
	commercialPred := commercial.NewCommercialPredictor(repo, &cfg.Model, art)
	districtAn := district.NewDistrictAnalytics(repo, commercialPred, &cfg.District)
	integrated := analyzer.NewIntegratedAnalyzer(scorer, commercialPred)

	handler := api.NewHandler(cfg, responseCache, scorer, forecaster, commercialPred, districtAn, integrated)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(cfg, handler),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddBackgroundService(responseCache)
	tree.AddAPIService(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	if cfg.NATS.Enabled {
		consumer, err := invalidation.NewConsumer(&cfg.NATS, responseCache)
		if err != nil {
			return fmt.Errorf("create invalidation consumer: %w", err)
		}
		tree.AddBackgroundService(consumer)
		logging.Info().Str("topic", cfg.NATS.Topic).Msg("invalidation consumer enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(unstopped) > 0 {
		for _, s := range unstopped {
			logging.Warn().Str("service", s.Name).Msg("service did not stop within timeout")
		}
	}

	logging.Info().Msg("shutdown complete")
	return nil
}
