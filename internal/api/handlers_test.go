// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/zipscore/zipscore/internal/analyzer"
	"github.com/zipscore/zipscore/internal/artifact"
	"github.com/zipscore/zipscore/internal/cache"
	"github.com/zipscore/zipscore/internal/commercial"
	"github.com/zipscore/zipscore/internal/config"
	"github.com/zipscore/zipscore/internal/district"
	"github.com/zipscore/zipscore/internal/forecast"
	"github.com/zipscore/zipscore/internal/models"
	"github.com/zipscore/zipscore/internal/scoring"
)

var refTime = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

type mockRepo struct {
	prices     map[string]*models.PriceSeries
	districts  map[string]*models.DistrictProfile
	industries map[string]*models.IndustryProfile
}

func (m *mockRepo) GetPriceSeries(_ context.Context, id string) (*models.PriceSeries, error) {
	if s, ok := m.prices[id]; ok {
		return s, nil
	}
	return nil, models.ErrNotFound
}

func (m *mockRepo) GetJeonseSeries(_ context.Context, id string) (*models.JeonseSeries, error) {
	return &models.JeonseSeries{PropertyID: id}, nil
}

func (m *mockRepo) GetTransactions(_ context.Context, _ string) ([]models.TransactionRecord, error) {
	return nil, nil
}

func (m *mockRepo) GetDistrictProfile(_ context.Context, code string) (*models.DistrictProfile, error) {
	if p, ok := m.districts[code]; ok {
		return p, nil
	}
	return nil, models.ErrNotFound
}

func (m *mockRepo) GetIndustryProfile(_ context.Context, code string) (*models.IndustryProfile, error) {
	if p, ok := m.industries[code]; ok {
		return p, nil
	}
	return nil, models.ErrNotFound
}

func (m *mockRepo) ListIndustryProfiles(_ context.Context) ([]models.IndustryProfile, error) {
	out := make([]models.IndustryProfile, 0, len(m.industries))
	for _, p := range m.industries {
		out = append(out, *p)
	}
	return out, nil
}

func fixtureRepo() *mockRepo {
	points := make([]models.PricePoint, 0, 24)
	for i := 23; i >= 0; i-- {
		points = append(points, models.PricePoint{
			Timestamp: models.MonthStart(refTime.AddDate(0, -i, 0)),
			Price:     100 + float64(23-i),
		})
	}
	return &mockRepo{
		prices: map[string]*models.PriceSeries{
			"apt-1": {PropertyID: "apt-1", Points: points},
		},
		districts: map[string]*models.DistrictProfile{
			"D-1": {
				DistrictCode:    "D-1",
				SalesStats:      map[string]float64{"sales_monthly": 50_000_000},
				Characteristics: map[string]float64{models.StatAreaKm2: 1},
				AgeDistribution: map[string]float64{"20s": 1, "30s": 2},
			},
		},
		industries: map[string]*models.IndustryProfile{
			"cafe": {IndustryCode: "cafe", Name: "Coffee shop", SurvivalRate: 0.6},
		},
	}
}

func testArtifact() *artifact.Artifact {
	return &artifact.Artifact{
		Weights:      []float64{1},
		FeatureNames: []string{"sales_monthly"},
		Means:        []float64{40_000_000},
		Stds:         []float64{10_000_000},
		ResidualStd:  map[string]float64{"3mo": 0.02},
	}
}

func newTestServer(t *testing.T, repo *mockRepo, art *artifact.Artifact) *httptest.Server {
	t.Helper()

	cfg := &config.Config{}
	cfg.Cache = config.CacheConfig{
		CleanupInterval:   time.Minute,
		InvestScoreTTL:    time.Minute,
		InvestForecastTTL: time.Minute,
		CommercialTTL:     time.Minute,
		DistrictTTL:       time.Minute,
		IndustryRankTTL:   time.Minute,
		IntegratedTTL:     time.Minute,
	}
	cfg.Scoring = config.ScoringConfig{
		BuyROI: 0.05, BuyLiquidity: 60, AvoidROI: -0.05, AvoidLiquidity: 20,
		MaxRisingJeonseSlope: 0.05, FlatROI: 0.02,
		TxnFrequencyWeight: 60, DaysOnMarketWeight: 40,
		TxnReferenceCeiling: 24, ReferenceDaysOnMarket: 30,
	}
	cfg.Forecast = config.ForecastConfig{TrendWindowMonths: 24, MaxAnnualGrowth: 0.30, ConfidenceZ: 1.645}
	cfg.District = config.DistrictConfig{
		SalesGrowthWeight: 0.4, StoreGrowthWeight: 0.3, FootGrowthWeight: 0.3,
		GrowthReferenceRange: 0.5, CompetitionPenalty: 0.02, DefaultTopN: 5,
	}
	cfg.Model = config.ModelConfig{InferenceWorkers: 4, ExplainTopK: 8}
	cfg.API = config.APIConfig{RateLimitDisabled: true, CORSOrigins: []string{"*"}}

	c := cache.New(cfg.Cache.CleanupInterval)
	scorer := scoring.NewInvestmentScorer(repo, &cfg.Scoring)
	forecaster := forecast.NewPricePredictor(repo, &cfg.Forecast, art)
	commercialPred := commercial.NewCommercialPredictor(repo, &cfg.Model, art)
	districtAn := district.NewDistrictAnalytics(repo, commercialPred, &cfg.District)
	integrated := analyzer.NewIntegratedAnalyzer(scorer, commercialPred)

	handler := NewHandler(cfg, c, scorer, forecaster, commercialPred, districtAn, integrated)
	srv := httptest.NewServer(NewRouter(cfg, handler))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string) (int, *models.APIResponse) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var body models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	return resp.StatusCode, &body
}

func TestInvestScoreEndpoint(t *testing.T) {
	srv := newTestServer(t, fixtureRepo(), testArtifact())

	status, body := getJSON(t, srv.URL+"/api/v1/invest/apt-1/score")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body.Status != "success" {
		t.Fatalf("envelope status = %q", body.Status)
	}
	if body.Metadata.Cached {
		t.Error("first request must not be cached")
	}

	// Second request is served from cache.
	status, body = getJSON(t, srv.URL+"/api/v1/invest/apt-1/score")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if !body.Metadata.Cached {
		t.Error("second request must be cached")
	}
}

func TestInvestScoreEndpoint_UnknownProperty(t *testing.T) {
	srv := newTestServer(t, fixtureRepo(), testArtifact())

	status, body := getJSON(t, srv.URL+"/api/v1/invest/ghost/score")
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
	if body.Error == nil || body.Error.Code != "not_found" {
		t.Errorf("unexpected error payload: %+v", body.Error)
	}
}

func TestForecastEndpoint(t *testing.T) {
	srv := newTestServer(t, fixtureRepo(), testArtifact())

	status, body := getJSON(t, srv.URL+"/api/v1/invest/apt-1/forecast")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if body.Status != "success" {
		t.Errorf("envelope status = %q", body.Status)
	}
}

func TestCommercialPredictEndpoint(t *testing.T) {
	srv := newTestServer(t, fixtureRepo(), testArtifact())

	status, body := getJSON(t, srv.URL+"/api/v1/commercial/predict?district=D-1&industry=cafe&explain=true")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}

	data, ok := body.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected data shape: %T", body.Data)
	}
	if _, ok := data["explanation"]; !ok {
		t.Error("explain=true must include an explanation")
	}
}

func TestCommercialPredictEndpoint_MissingParams(t *testing.T) {
	srv := newTestServer(t, fixtureRepo(), testArtifact())

	status, body := getJSON(t, srv.URL+"/api/v1/commercial/predict?district=D-1")
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if body.Error == nil || body.Error.Code != "bad_request" {
		t.Errorf("unexpected error payload: %+v", body.Error)
	}
}

func TestCommercialPredictEndpoint_ModelNotLoaded(t *testing.T) {
	srv := newTestServer(t, fixtureRepo(), nil)

	status, body := getJSON(t, srv.URL+"/api/v1/commercial/predict?district=D-1&industry=cafe")
	if status != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", status)
	}
	if body.Error == nil || body.Error.Code != "model_not_loaded" {
		t.Errorf("unexpected error payload: %+v", body.Error)
	}
}

func TestCommercialCompareEndpoint_RequiresTwoDistricts(t *testing.T) {
	srv := newTestServer(t, fixtureRepo(), testArtifact())

	status, _ := getJSON(t, srv.URL+"/api/v1/commercial/compare?districts=D-1&industry=cafe")
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestDistrictEndpoints(t *testing.T) {
	srv := newTestServer(t, fixtureRepo(), testArtifact())

	status, _ := getJSON(t, srv.URL+"/api/v1/district/D-1/characteristics")
	if status != http.StatusOK {
		t.Fatalf("characteristics status = %d, want 200", status)
	}

	status, _ = getJSON(t, srv.URL+"/api/v1/district/D-1/industries?top_n=3")
	if status != http.StatusOK {
		t.Fatalf("industries status = %d, want 200", status)
	}

	status, body := getJSON(t, srv.URL+"/api/v1/district/ghost/characteristics")
	if status != http.StatusNotFound {
		t.Fatalf("unknown district status = %d, want 404", status)
	}
	if body.Error == nil || body.Error.Code != "unknown_district" {
		t.Errorf("unexpected error payload: %+v", body.Error)
	}
}

func TestIntegratedEndpoint(t *testing.T) {
	srv := newTestServer(t, fixtureRepo(), testArtifact())

	status, body := getJSON(t, srv.URL+"/api/v1/analysis/integrated?property_id=apt-1&district=D-1&industry=cafe")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}

	data, ok := body.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected data shape: %T", body.Data)
	}
	if data["investment"] == nil || data["commercial"] == nil {
		t.Error("integrated analysis must carry both views")
	}
}

func TestCacheInvalidateEndpoint(t *testing.T) {
	srv := newTestServer(t, fixtureRepo(), testArtifact())

	// Warm the cache.
	if status, _ := getJSON(t, srv.URL+"/api/v1/invest/apt-1/score"); status != http.StatusOK {
		t.Fatal("warm-up request failed")
	}

	resp, err := http.Post(srv.URL+"/api/v1/cache/invalidate", "application/json", strings.NewReader(`{"prefix":"invest:"}`))
	if err != nil {
		t.Fatalf("POST invalidate: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("invalidate status = %d, want 200", resp.StatusCode)
	}

	var body models.APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data := body.Data.(map[string]interface{})
	if data["evicted"].(float64) < 1 {
		t.Errorf("expected at least one evicted entry, got %v", data["evicted"])
	}

	// Next read recomputes.
	_, fresh := getJSON(t, srv.URL+"/api/v1/invest/apt-1/score")
	if fresh.Metadata.Cached {
		t.Error("request after invalidation must not be served from cache")
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, fixtureRepo(), nil)

	status, _ := getJSON(t, srv.URL+"/api/v1/health/live")
	if status != http.StatusOK {
		t.Fatalf("live status = %d, want 200", status)
	}

	status, body := getJSON(t, srv.URL+"/api/v1/health/ready")
	if status != http.StatusOK {
		t.Fatalf("ready status = %d, want 200", status)
	}
	data := body.Data.(map[string]interface{})
	if data["status"] != "degraded" {
		t.Errorf("ready without a model must report degraded, got %v", data["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, fixtureRepo(), testArtifact())

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d, want 200", resp.StatusCode)
	}
}
