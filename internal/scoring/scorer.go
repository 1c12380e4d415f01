// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

// Package scoring derives investment verdicts for individual properties.
//
// The scorer combines three independent signals from the statistics
// repository: trailing return on investment over fixed horizons, the jeonse
// deposit-to-price ratio trend, and a transaction-based liquidity score.
// The verdict thresholds are configuration, not code, so operators can tune
// them without a release.
package scoring

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zipscore/zipscore/internal/config"
	"github.com/zipscore/zipscore/internal/logging"
	"github.com/zipscore/zipscore/internal/models"
	"github.com/zipscore/zipscore/internal/repository"
)

// ROI horizons evaluated per score, labeled as exposed in responses.
var horizons = []struct {
	Label  string
	Months int
}{
	{"1y", 12},
	{"3y", 36},
}

// InvestmentScorer scores properties for purchase attractiveness.
type InvestmentScorer struct {
	repo repository.StatisticsRepository
	cfg  *config.ScoringConfig

	// now is swappable for tests; liquidity windows are anchored on it.
	now func() time.Time
}

// NewInvestmentScorer creates a scorer backed by the given repository.
func NewInvestmentScorer(repo repository.StatisticsRepository, cfg *config.ScoringConfig) *InvestmentScorer {
	return &InvestmentScorer{repo: repo, cfg: cfg, now: time.Now}
}

// Score computes the investment score for one property.
//
// The price history must support at least the shortest ROI horizon;
// otherwise models.ErrInsufficientData is returned. Longer horizons the
// history cannot cover are omitted from the result rather than failing the
// whole score. A missing jeonse history degrades the trend to
// low-confidence instead of failing.
func (s *InvestmentScorer) Score(ctx context.Context, propertyID string) (*models.InvestmentScore, error) {
	var (
		prices *models.PriceSeries
		jeonse *models.JeonseSeries
		txns   []models.TransactionRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		prices, err = s.repo.GetPriceSeries(gctx, propertyID)
		return err
	})
	g.Go(func() error {
		var err error
		jeonse, err = s.repo.GetJeonseSeries(gctx, propertyID)
		return err
	})
	g.Go(func() error {
		var err error
		txns, err = s.repo.GetTransactions(gctx, propertyID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := prices.Validate(); err != nil {
		return nil, err
	}
	if len(prices.Points) < 2 {
		return nil, fmt.Errorf("%w: %d price points for %s, need at least 2", models.ErrInsufficientData, len(prices.Points), propertyID)
	}

	rois := computeROIs(prices)
	if _, ok := roiFor(rois, horizons[0].Label); !ok {
		return nil, fmt.Errorf("%w: price history for %s does not cover the %s horizon", models.ErrInsufficientData, propertyID, horizons[0].Label)
	}

	trend := jeonseTrend(jeonse, prices)
	liquidity := s.liquidityScore(txns)

	score := &models.InvestmentScore{
		PropertyID:     propertyID,
		ROI:            rois,
		JeonseTrend:    trend,
		LiquidityScore: liquidity,
		ComputedAt:     s.now().UTC(),
	}
	score.Recommendation = s.recommend(score)

	logging.Debug().
		Str("property_id", propertyID).
		Float64("liquidity", liquidity).
		Str("recommendation", string(score.Recommendation)).
		Msg("investment score computed")

	return score, nil
}

// computeROIs evaluates each configured horizon against the price history.
// A horizon is included only when an observation at or before the horizon
// start exists.
func computeROIs(prices *models.PriceSeries) []models.ROIResult {
	last, _ := prices.Last()

	rois := make([]models.ROIResult, 0, len(horizons))
	for _, h := range horizons {
		start := models.MonthStart(last.Timestamp.AddDate(0, -h.Months, 0))
		past, ok := prices.At(start)
		if !ok {
			continue
		}
		rois = append(rois, models.ROIResult{
			Horizon: h.Label,
			ROI:     (last.Price - past.Price) / past.Price,
		})
	}
	return rois
}

func roiFor(rois []models.ROIResult, horizon string) (float64, bool) {
	for _, r := range rois {
		if r.Horizon == horizon {
			return r.ROI, true
		}
	}
	return 0, false
}

// jeonseTrend regresses the joined jeonse ratio series over time.
// Fewer than two ratio points yields a zero slope flagged low-confidence.
func jeonseTrend(jeonse *models.JeonseSeries, prices *models.PriceSeries) models.JeonseTrend {
	if jeonse == nil {
		return models.JeonseTrend{LowConfidence: true}
	}

	ratios := jeonse.Ratios(prices)
	if len(ratios) == 0 {
		return models.JeonseTrend{LowConfidence: true}
	}

	current := ratios[len(ratios)-1].Ratio
	if len(ratios) < 2 {
		return models.JeonseTrend{CurrentRatio: current, LowConfidence: true}
	}

	// Least-squares slope with time in years relative to the first point.
	origin := ratios[0].Timestamp
	var sumX, sumY, sumXY, sumXX float64
	for _, r := range ratios {
		x := r.Timestamp.Sub(origin).Hours() / (24 * 365.25)
		sumX += x
		sumY += r.Ratio
		sumXY += x * r.Ratio
		sumXX += x * x
	}
	n := float64(len(ratios))
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return models.JeonseTrend{CurrentRatio: current, LowConfidence: true}
	}

	return models.JeonseTrend{
		CurrentRatio: current,
		SlopePerYear: (n*sumXY - sumX*sumY) / denom,
	}
}

// liquidityScore blends trailing-12-month transaction frequency with the
// inverse of average days on market, each capped at its full-score
// reference, onto a 0-100 scale.
func (s *InvestmentScorer) liquidityScore(txns []models.TransactionRecord) float64 {
	cutoff := s.now().AddDate(-1, 0, 0)

	var count int
	var domSum float64
	for _, t := range txns {
		if t.Timestamp.Before(cutoff) {
			continue
		}
		count++
		domSum += float64(t.DaysOnMarket)
	}

	freq := min(1, float64(count)/float64(s.cfg.TxnReferenceCeiling))

	var domScore float64
	if count > 0 {
		avgDOM := domSum / float64(count)
		if avgDOM <= 0 {
			domScore = 1
		} else {
			domScore = min(1, s.cfg.ReferenceDaysOnMarket/avgDOM)
		}
	}

	score := s.cfg.TxnFrequencyWeight*freq + s.cfg.DaysOnMarketWeight*domScore
	return max(0, min(100, score))
}

// recommend maps the signal bundle onto the BUY/HOLD/AVOID verdict.
// AVOID is checked first so a property cannot be both.
func (s *InvestmentScorer) recommend(score *models.InvestmentScore) models.Recommendation {
	roi1y, _ := score.ROIFor(horizons[0].Label)

	if roi1y < s.cfg.AvoidROI || score.LiquidityScore < s.cfg.AvoidLiquidity {
		return models.RecommendationAvoid
	}

	// A sharply rising jeonse ratio against flat prices signals deposits
	// chasing a market the sale prices do not support.
	speculative := !score.JeonseTrend.LowConfidence &&
		score.JeonseTrend.SlopePerYear > s.cfg.MaxRisingJeonseSlope &&
		roi1y < s.cfg.FlatROI

	if roi1y > s.cfg.BuyROI && score.LiquidityScore >= s.cfg.BuyLiquidity && !speculative {
		return models.RecommendationBuy
	}
	return models.RecommendationHold
}
