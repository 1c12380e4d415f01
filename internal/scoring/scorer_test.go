// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

package scoring

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/zipscore/zipscore/internal/config"
	"github.com/zipscore/zipscore/internal/models"
)

var refTime = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

// mockRepo serves fixed fixtures for one property.
type mockRepo struct {
	prices *models.PriceSeries
	jeonse *models.JeonseSeries
	txns   []models.TransactionRecord
	err    error
}

func (m *mockRepo) GetPriceSeries(_ context.Context, _ string) (*models.PriceSeries, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.prices, nil
}

func (m *mockRepo) GetJeonseSeries(_ context.Context, id string) (*models.JeonseSeries, error) {
	if m.jeonse != nil {
		return m.jeonse, nil
	}
	return &models.JeonseSeries{PropertyID: id}, nil
}

func (m *mockRepo) GetTransactions(_ context.Context, _ string) ([]models.TransactionRecord, error) {
	return m.txns, nil
}

func (m *mockRepo) GetDistrictProfile(_ context.Context, _ string) (*models.DistrictProfile, error) {
	return nil, models.ErrNotFound
}

func (m *mockRepo) GetIndustryProfile(_ context.Context, _ string) (*models.IndustryProfile, error) {
	return nil, models.ErrNotFound
}

func (m *mockRepo) ListIndustryProfiles(_ context.Context) ([]models.IndustryProfile, error) {
	return nil, nil
}

// monthlyPrices builds a series of n monthly points ending at refTime, with
// prices produced by priceAt(monthsBeforeEnd).
func monthlyPrices(n int, priceAt func(monthsBeforeEnd int) float64) *models.PriceSeries {
	points := make([]models.PricePoint, 0, n)
	for i := n - 1; i >= 0; i-- {
		points = append(points, models.PricePoint{
			Timestamp: models.MonthStart(refTime.AddDate(0, -i, 0)),
			Price:     priceAt(i),
		})
	}
	return &models.PriceSeries{PropertyID: "apt-1", Points: points}
}

// liquidTxns produces count transactions spread over the trailing year,
// each with the given days on market.
func liquidTxns(count, daysOnMarket int) []models.TransactionRecord {
	txns := make([]models.TransactionRecord, 0, count)
	for i := 0; i < count; i++ {
		txns = append(txns, models.TransactionRecord{
			Timestamp:    refTime.AddDate(0, 0, -(i*14 + 1)),
			Price:        500_000_000,
			DaysOnMarket: daysOnMarket,
		})
	}
	return txns
}

func newTestScorer(repo *mockRepo) *InvestmentScorer {
	cfg := config.ScoringConfig{
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
	}
	s := NewInvestmentScorer(repo, &cfg)
	s.now = func() time.Time { return refTime }
	return s
}

func TestScore_ROIExactDoubling(t *testing.T) {
	// Price doubles linearly over the trailing 12 months.
	prices := monthlyPrices(13, func(monthsBefore int) float64 {
		return 200 - float64(monthsBefore)*(100.0/12.0)
	})
	s := newTestScorer(&mockRepo{prices: prices})

	score, err := s.Score(context.Background(), "apt-1")
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	roi, ok := score.ROIFor("1y")
	if !ok {
		t.Fatal("missing 1y ROI")
	}
	if math.Abs(roi-1.0) > 1e-9 {
		t.Errorf("ROI(1y) = %f, want 1.0", roi)
	}
}

func TestScore_PartialHorizons(t *testing.T) {
	// 13 months of history: 1y computable, 3y not.
	prices := monthlyPrices(13, func(int) float64 { return 100 })
	s := newTestScorer(&mockRepo{prices: prices})

	score, err := s.Score(context.Background(), "apt-1")
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	if _, ok := score.ROIFor("1y"); !ok {
		t.Error("1y horizon should be present")
	}
	if _, ok := score.ROIFor("3y"); ok {
		t.Error("3y horizon should be omitted for a 13-month history")
	}
}

func TestScore_InsufficientData(t *testing.T) {
	prices := monthlyPrices(1, func(int) float64 { return 100 })
	s := newTestScorer(&mockRepo{prices: prices})

	_, err := s.Score(context.Background(), "apt-1")
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestScore_RepositoryErrorPropagates(t *testing.T) {
	s := newTestScorer(&mockRepo{err: models.ErrNotFound})

	_, err := s.Score(context.Background(), "missing")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScore_BuyVerdict(t *testing.T) {
	// 10% appreciation over the year, strong liquidity, stable jeonse.
	prices := monthlyPrices(13, func(monthsBefore int) float64 {
		return 110 - float64(monthsBefore)*(10.0/12.0)
	})
	s := newTestScorer(&mockRepo{
		prices: prices,
		txns:   liquidTxns(24, 15),
	})

	score, err := s.Score(context.Background(), "apt-1")
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score.Recommendation != models.RecommendationBuy {
		t.Errorf("recommendation = %s, want BUY (liquidity=%f)", score.Recommendation, score.LiquidityScore)
	}
}

func TestScore_SpeculativeJeonseBlocksBuy(t *testing.T) {
	// Flat prices but a jeonse ratio climbing ~20 points/year: deposits are
	// running ahead of a market the sale prices do not support.
	prices := monthlyPrices(13, func(monthsBefore int) float64 {
		return 101 - float64(monthsBefore)*(1.0/12.0)
	})
	jeonse := &models.JeonseSeries{PropertyID: "apt-1"}
	for i := 12; i >= 0; i-- {
		ratio := 0.60 + float64(12-i)*(0.20/12.0)
		ts := models.MonthStart(refTime.AddDate(0, -i, 0))
		price := 101 - float64(i)*(1.0/12.0)
		jeonse.Points = append(jeonse.Points, models.JeonsePoint{
			Timestamp: ts,
			Deposit:   ratio * price,
		})
	}

	s := newTestScorer(&mockRepo{
		prices: prices,
		jeonse: jeonse,
		txns:   liquidTxns(24, 15),
	})

	score, err := s.Score(context.Background(), "apt-1")
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score.JeonseTrend.SlopePerYear <= 0.05 {
		t.Fatalf("fixture should produce a steep slope, got %f", score.JeonseTrend.SlopePerYear)
	}
	if score.Recommendation == models.RecommendationBuy {
		t.Error("speculative jeonse signal must block BUY")
	}
}

func TestScore_FlatJeonseRatioHasZeroSlope(t *testing.T) {
	prices := monthlyPrices(13, func(int) float64 { return 100 })
	jeonse := &models.JeonseSeries{PropertyID: "apt-1"}
	for i := 12; i >= 0; i-- {
		jeonse.Points = append(jeonse.Points, models.JeonsePoint{
			Timestamp: models.MonthStart(refTime.AddDate(0, -i, 0)),
			Deposit:   60,
		})
	}

	s := newTestScorer(&mockRepo{
		prices: prices,
		jeonse: jeonse,
		txns:   liquidTxns(24, 15),
	})

	score, err := s.Score(context.Background(), "apt-1")
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if math.Abs(score.JeonseTrend.SlopePerYear) > 1e-9 {
		t.Errorf("slope = %g, want 0 for a constant ratio", score.JeonseTrend.SlopePerYear)
	}
	if math.Abs(score.JeonseTrend.CurrentRatio-0.6) > 1e-9 {
		t.Errorf("current ratio = %f, want 0.6", score.JeonseTrend.CurrentRatio)
	}
	if score.JeonseTrend.LowConfidence {
		t.Error("13 ratio points must not be low-confidence")
	}
}

func TestScore_AvoidOnNegativeROI(t *testing.T) {
	// 10% decline over the year.
	prices := monthlyPrices(13, func(monthsBefore int) float64 {
		return 90 + float64(monthsBefore)*(10.0/12.0)
	})
	s := newTestScorer(&mockRepo{
		prices: prices,
		txns:   liquidTxns(24, 15),
	})

	score, err := s.Score(context.Background(), "apt-1")
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if score.Recommendation != models.RecommendationAvoid {
		t.Errorf("recommendation = %s, want AVOID", score.Recommendation)
	}
}

func TestScore_MissingJeonseIsLowConfidence(t *testing.T) {
	prices := monthlyPrices(13, func(int) float64 { return 100 })
	s := newTestScorer(&mockRepo{prices: prices})

	score, err := s.Score(context.Background(), "apt-1")
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if !score.JeonseTrend.LowConfidence {
		t.Error("empty jeonse history must flag low confidence")
	}
	if score.JeonseTrend.SlopePerYear != 0 {
		t.Errorf("slope = %f, want 0", score.JeonseTrend.SlopePerYear)
	}
}

func TestLiquidityScore(t *testing.T) {
	s := newTestScorer(&mockRepo{})

	tests := []struct {
		name string
		txns []models.TransactionRecord
		want float64
	}{
		{"no transactions", nil, 0},
		{"at reference levels", liquidTxns(24, 30), 100},
		{"half frequency, fast sales", liquidTxns(12, 15), 30 + 40},
		{"stale transactions ignored", []models.TransactionRecord{
			{Timestamp: refTime.AddDate(-2, 0, 0), DaysOnMarket: 5},
		}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.liquidityScore(tt.txns)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("liquidityScore = %f, want %f", got, tt.want)
			}
		})
	}
}
