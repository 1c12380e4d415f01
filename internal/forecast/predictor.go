// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

// Package forecast predicts apartment sale prices over fixed horizons.
//
// The model is an ordinary least-squares trend fit in log-price space over
// a trailing window, plus a monthly seasonal adjustment derived from the
// fit residuals. Predictions are clamped to a maximum-annual-growth
// envelope so a short noisy history cannot extrapolate to absurd prices.
// Confidence intervals come from
// per-horizon residual statistics in the trained artifact when available.
package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/zipscore/zipscore/internal/artifact"
	"github.com/zipscore/zipscore/internal/config"
	"github.com/zipscore/zipscore/internal/logging"
	"github.com/zipscore/zipscore/internal/models"
	"github.com/zipscore/zipscore/internal/repository"
)

// Forecast horizons, labeled as exposed in responses and keyed in the
// artifact's residual statistics.
var horizons = []struct {
	Label  string
	Months int
}{
	{"3mo", 3},
	{"6mo", 6},
	{"1yr", 12},
}

// PricePredictor forecasts sale prices from historical series.
type PricePredictor struct {
	repo repository.StatisticsRepository
	cfg  *config.ForecastConfig

	// art supplies per-horizon residual stddev for confidence intervals.
	// nil is allowed: forecasts then carry confidence "unavailable".
	art *artifact.Artifact

	now func() time.Time
}

// NewPricePredictor creates a predictor. art may be nil when the trained
// artifact failed to load; point estimates still work.
func NewPricePredictor(repo repository.StatisticsRepository, cfg *config.ForecastConfig, art *artifact.Artifact) *PricePredictor {
	return &PricePredictor{repo: repo, cfg: cfg, art: art, now: time.Now}
}

// Predict forecasts the property's price at every configured horizon.
//
// At least two observations inside the trend window are required;
// otherwise models.ErrInsufficientData is returned. Invalid series data
// (non-positive prices, out-of-order timestamps) returns
// models.ErrInvalidData.
func (p *PricePredictor) Predict(ctx context.Context, propertyID string) (*models.Forecast, error) {
	series, err := p.repo.GetPriceSeries(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	last, ok := series.Last()
	if !ok {
		return nil, fmt.Errorf("%w: empty price history for %s", models.ErrInsufficientData, propertyID)
	}

	window := windowPoints(series, p.cfg.TrendWindowMonths)
	if len(window) < 2 {
		return nil, fmt.Errorf("%w: %d points in the trend window for %s, need at least 2", models.ErrInsufficientData, len(window), propertyID)
	}

	fit := fitLogTrend(window)

	predictions := make([]models.Prediction, 0, len(horizons))
	for _, h := range horizons {
		predictions = append(predictions, p.predictHorizon(fit, last, h.Label, h.Months))
	}

	logging.Debug().
		Str("property_id", propertyID).
		Int("window_points", len(window)).
		Float64("monthly_trend", fit.slope).
		Msg("price forecast computed")

	return &models.Forecast{
		PropertyID:  propertyID,
		LastPrice:   last.Price,
		Predictions: predictions,
		ComputedAt:  p.now().UTC(),
	}, nil
}

// windowPoints returns the observations within the trailing window,
// anchored on the most recent point.
func windowPoints(series *models.PriceSeries, months int) []models.PricePoint {
	last, ok := series.Last()
	if !ok {
		return nil
	}
	cutoff := models.MonthStart(last.Timestamp.AddDate(0, -(months - 1), 0))

	for i, pt := range series.Points {
		if !pt.Timestamp.Before(cutoff) {
			return series.Points[i:]
		}
	}
	return nil
}

// trendFit is the fitted log-price model: trend line plus a seasonal
// adjustment per calendar month derived from residuals.
type trendFit struct {
	origin    time.Time
	intercept float64
	slope     float64 // log-price per month
	seasonal  [12]float64
	hasSeason [12]bool
}

// fitLogTrend fits log(price) = intercept + slope*monthIndex by least
// squares, then averages residuals by calendar month into a seasonal index.
func fitLogTrend(points []models.PricePoint) trendFit {
	origin := models.MonthStart(points[0].Timestamp)

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	var sumX, sumY, sumXY, sumXX float64
	for i, pt := range points {
		x := monthsBetween(origin, pt.Timestamp)
		y := math.Log(pt.Price)
		xs[i], ys[i] = x, y
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	n := float64(len(points))
	fit := trendFit{origin: origin}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		// All observations share a month; fall back to a flat fit.
		fit.intercept = sumY / n
	} else {
		fit.slope = (n*sumXY - sumX*sumY) / denom
		fit.intercept = (sumY - fit.slope*sumX) / n
	}

	var residSum [12]float64
	var residCount [12]int
	for i, pt := range points {
		resid := ys[i] - (fit.intercept + fit.slope*xs[i])
		m := int(pt.Timestamp.Month()) - 1
		residSum[m] += resid
		residCount[m]++
	}
	for m := 0; m < 12; m++ {
		if residCount[m] > 0 {
			fit.seasonal[m] = residSum[m] / float64(residCount[m])
			fit.hasSeason[m] = true
		}
	}
	return fit
}

// monthsBetween counts whole months from a to b.
func monthsBetween(a, b time.Time) float64 {
	ay, am, _ := a.UTC().Date()
	by, bm, _ := b.UTC().Date()
	return float64((by-ay)*12 + int(bm-am))
}

// logAt evaluates the fitted log price at a target month.
func (f *trendFit) logAt(t time.Time) float64 {
	v := f.intercept + f.slope*monthsBetween(f.origin, t)
	m := int(t.Month()) - 1
	if f.hasSeason[m] {
		v += f.seasonal[m]
	}
	return v
}

// predictHorizon produces one clamped prediction with confidence bounds.
func (p *PricePredictor) predictHorizon(fit trendFit, last models.PricePoint, label string, months int) models.Prediction {
	target := models.MonthStart(last.Timestamp.AddDate(0, months, 0))
	price := math.Exp(fit.logAt(target))

	// Clamp the point estimate and its bounds to the growth envelope.
	years := float64(months) / 12
	upperEnv := last.Price * math.Pow(1+p.cfg.MaxAnnualGrowth, years)
	lowerEnv := last.Price * math.Pow(1-p.cfg.MaxAnnualGrowth, years)
	price = clamp(price, lowerEnv, upperEnv)

	pred := models.Prediction{
		Horizon:    label,
		Price:      price,
		Lower:      price,
		Upper:      price,
		Confidence: "unavailable",
	}

	if p.art != nil {
		if std, ok := p.art.ResidualFor(label); ok && std > 0 {
			spread := p.cfg.ConfidenceZ * std
			pred.Lower = clamp(price*math.Exp(-spread), lowerEnv, upperEnv)
			pred.Upper = clamp(price*math.Exp(spread), lowerEnv, upperEnv)
			pred.Confidence = "90%"
		}
	}
	return pred
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
