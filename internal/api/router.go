// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

// Package api exposes the analytics engine over HTTP using chi.
//
// All endpoints respond with the APIResponse envelope. Read endpoints run
// through the response cache; identical concurrent requests share one
// engine computation. Errors map onto the engine taxonomy: validation and
// data-sufficiency problems return 422, unknown identifiers 404, and an
// unavailable model or upstream 503.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zipscore/zipscore/internal/config"
)

// NewRouter wires every endpoint with the global middleware stack.
func NewRouter(cfg *config.Config, handler *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(&cfg.API))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(&cfg.API))
		r.Use(Instrument())

		r.Route("/invest/{propertyID}", func(r chi.Router) {
			r.Get("/score", handler.InvestScore)
			r.Get("/forecast", handler.InvestForecast)
		})

		r.Route("/commercial", func(r chi.Router) {
			r.Get("/predict", handler.CommercialPredict)
			r.Get("/compare", handler.CommercialCompare)
		})

		r.Route("/district/{code}", func(r chi.Router) {
			r.Get("/characteristics", handler.DistrictCharacteristics)
			r.Get("/industries", handler.DistrictIndustries)
		})

		r.Get("/analysis/integrated", handler.IntegratedAnalysis)

		r.Route("/cache", func(r chi.Router) {
			r.Post("/invalidate", handler.CacheInvalidate)
			r.Get("/stats", handler.CacheStats)
		})

		r.Route("/health", func(r chi.Router) {
			r.Get("/live", handler.HealthLive)
			r.Get("/ready", handler.HealthReady)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
