// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/zipscore/zipscore/internal/analyzer"
	"github.com/zipscore/zipscore/internal/cache"
	"github.com/zipscore/zipscore/internal/commercial"
	"github.com/zipscore/zipscore/internal/config"
	"github.com/zipscore/zipscore/internal/district"
	"github.com/zipscore/zipscore/internal/forecast"
	"github.com/zipscore/zipscore/internal/scoring"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Handler bundles the engine components behind HTTP endpoints. Every read
// endpoint runs through the response cache, so concurrent identical
// requests share one computation.
type Handler struct {
	cfg        *config.Config
	cache      *cache.Cache
	scorer     *scoring.InvestmentScorer
	forecaster *forecast.PricePredictor
	commercial *commercial.CommercialPredictor
	district   *district.DistrictAnalytics
	analyzer   *analyzer.IntegratedAnalyzer
}

// NewHandler creates the handler.
func NewHandler(
	cfg *config.Config,
	c *cache.Cache,
	scorer *scoring.InvestmentScorer,
	forecaster *forecast.PricePredictor,
	commercialPred *commercial.CommercialPredictor,
	districtAn *district.DistrictAnalytics,
	integrated *analyzer.IntegratedAnalyzer,
) *Handler {
	return &Handler{
		cfg:        cfg,
		cache:      c,
		scorer:     scorer,
		forecaster: forecaster,
		commercial: commercialPred,
		district:   districtAn,
		analyzer:   integrated,
	}
}

// cached funnels a computation through the response cache.
func (h *Handler) cached(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) (interface{}, error)) (interface{}, bool, error) {
	return h.cache.GetOrCompute(ctx, key, ttl, fn)
}

// InvestScore handles GET /api/v1/invest/{propertyID}/score.
func (h *Handler) InvestScore(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	propertyID := chi.URLParam(r, "propertyID")
	if propertyID == "" {
		respondBadRequest(w, "propertyID is required", start)
		return
	}

	key := cache.Key("invest:score", propertyID)
	data, cached, err := h.cached(r.Context(), key, h.cfg.Cache.InvestScoreTTL, func(ctx context.Context) (interface{}, error) {
		return h.scorer.Score(ctx, propertyID)
	})
	if err != nil {
		respondError(w, r, err, start)
		return
	}
	respondJSON(w, http.StatusOK, data, start, cached)
}

// InvestForecast handles GET /api/v1/invest/{propertyID}/forecast.
func (h *Handler) InvestForecast(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	propertyID := chi.URLParam(r, "propertyID")
	if propertyID == "" {
		respondBadRequest(w, "propertyID is required", start)
		return
	}

	key := cache.Key("invest:forecast", propertyID)
	data, cached, err := h.cached(r.Context(), key, h.cfg.Cache.InvestForecastTTL, func(ctx context.Context) (interface{}, error) {
		return h.forecaster.Predict(ctx, propertyID)
	})
	if err != nil {
		respondError(w, r, err, start)
		return
	}
	respondJSON(w, http.StatusOK, data, start, cached)
}

type predictParams struct {
	District string `validate:"required"`
	Industry string `validate:"required"`
	Explain  bool
}

// CommercialPredict handles GET /api/v1/commercial/predict.
func (h *Handler) CommercialPredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	params := predictParams{
		District: r.URL.Query().Get("district"),
		Industry: r.URL.Query().Get("industry"),
		Explain:  r.URL.Query().Get("explain") == "true",
	}
	if err := validate.Struct(&params); err != nil {
		respondBadRequest(w, "district and industry query parameters are required", start)
		return
	}

	key := cache.Key("commercial:predict", params)
	data, cached, err := h.cached(r.Context(), key, h.cfg.Cache.CommercialTTL, func(ctx context.Context) (interface{}, error) {
		return h.commercial.Predict(ctx, params.District, params.Industry, params.Explain)
	})
	if err != nil {
		respondError(w, r, err, start)
		return
	}
	respondJSON(w, http.StatusOK, data, start, cached)
}

type compareParams struct {
	Districts []string `validate:"required,min=2,dive,required"`
	Industry  string   `validate:"required"`
}

// CommercialCompare handles GET /api/v1/commercial/compare.
func (h *Handler) CommercialCompare(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	params := compareParams{
		Industry: r.URL.Query().Get("industry"),
	}
	if raw := r.URL.Query().Get("districts"); raw != "" {
		for _, d := range strings.Split(raw, ",") {
			if d = strings.TrimSpace(d); d != "" {
				params.Districts = append(params.Districts, d)
			}
		}
	}
	if err := validate.Struct(&params); err != nil {
		respondBadRequest(w, "industry and at least two districts are required", start)
		return
	}

	key := cache.Key("commercial:compare", params)
	data, cached, err := h.cached(r.Context(), key, h.cfg.Cache.CommercialTTL, func(ctx context.Context) (interface{}, error) {
		return h.commercial.Compare(ctx, params.Districts, params.Industry)
	})
	if err != nil {
		respondError(w, r, err, start)
		return
	}
	respondJSON(w, http.StatusOK, data, start, cached)
}

// DistrictCharacteristics handles GET /api/v1/district/{code}/characteristics.
func (h *Handler) DistrictCharacteristics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	code := chi.URLParam(r, "code")
	if code == "" {
		respondBadRequest(w, "district code is required", start)
		return
	}

	key := cache.Key("district:characteristics", code)
	data, cached, err := h.cached(r.Context(), key, h.cfg.Cache.DistrictTTL, func(ctx context.Context) (interface{}, error) {
		return h.district.Characteristics(ctx, code)
	})
	if err != nil {
		respondError(w, r, err, start)
		return
	}
	respondJSON(w, http.StatusOK, data, start, cached)
}

// DistrictIndustries handles GET /api/v1/district/{code}/industries.
func (h *Handler) DistrictIndustries(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	code := chi.URLParam(r, "code")
	if code == "" {
		respondBadRequest(w, "district code is required", start)
		return
	}

	topN := 0
	if raw := r.URL.Query().Get("top_n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondBadRequest(w, "top_n must be a positive integer", start)
			return
		}
		topN = n
	}

	key := cache.Key("industry_rank", struct {
		Code string
		TopN int
	}{code, topN})
	data, cached, err := h.cached(r.Context(), key, h.cfg.Cache.IndustryRankTTL, func(ctx context.Context) (interface{}, error) {
		return h.district.RecommendIndustries(ctx, code, topN)
	})
	if err != nil {
		respondError(w, r, err, start)
		return
	}
	respondJSON(w, http.StatusOK, data, start, cached)
}

type integratedParams struct {
	PropertyID string `validate:"required"`
	District   string `validate:"required"`
	Industry   string `validate:"required"`
}

// IntegratedAnalysis handles GET /api/v1/analysis/integrated.
func (h *Handler) IntegratedAnalysis(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	params := integratedParams{
		PropertyID: r.URL.Query().Get("property_id"),
		District:   r.URL.Query().Get("district"),
		Industry:   r.URL.Query().Get("industry"),
	}
	if err := validate.Struct(&params); err != nil {
		respondBadRequest(w, "property_id, district, and industry query parameters are required", start)
		return
	}

	key := cache.Key("integrated", params)
	data, cached, err := h.cached(r.Context(), key, h.cfg.Cache.IntegratedTTL, func(ctx context.Context) (interface{}, error) {
		return h.analyzer.Analyze(ctx, params.PropertyID, params.District, params.Industry)
	})
	if err != nil {
		respondError(w, r, err, start)
		return
	}
	respondJSON(w, http.StatusOK, data, start, cached)
}

type invalidateRequest struct {
	Prefix string `json:"prefix"`
	All    bool   `json:"all"`
}

// CacheInvalidate handles POST /api/v1/cache/invalidate, the operator's
// manual override of the event-driven invalidation path.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "body must be JSON with a prefix or all flag", start)
		return
	}

	var evicted int
	switch {
	case req.All:
		evicted = h.cache.Len()
		h.cache.Clear()
	case req.Prefix != "":
		evicted = h.cache.InvalidatePrefix(req.Prefix)
	default:
		respondBadRequest(w, "either prefix or all must be set", start)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"evicted": evicted}, start, false)
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	stats := h.cache.GetStats()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stats":    stats,
		"hit_rate": h.cache.HitRate(),
	}, start, false)
}

// HealthLive handles GET /api/v1/health/live.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, time.Now(), false)
}

// HealthReady handles GET /api/v1/health/ready. The service stays ready
// without a model artifact; commercial predictions degrade to 503 per
// request while investment analytics keep serving.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := "ok"
	if !h.commercial.Loaded() {
		status = "degraded"
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       status,
		"model_loaded": h.commercial.Loaded(),
		"cache_keys":   h.cache.Len(),
	}, start, false)
}
