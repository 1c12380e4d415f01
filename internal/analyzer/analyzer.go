// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

// Package analyzer merges the residential and commercial views of a
// location into one integrated result.
package analyzer

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zipscore/zipscore/internal/commercial"
	"github.com/zipscore/zipscore/internal/logging"
	"github.com/zipscore/zipscore/internal/models"
	"github.com/zipscore/zipscore/internal/scoring"
)

// IntegratedAnalyzer fans out to the investment scorer and the commercial
// predictor concurrently and merges their results.
type IntegratedAnalyzer struct {
	scorer    *scoring.InvestmentScorer
	predictor *commercial.CommercialPredictor

	now func() time.Time
}

// NewIntegratedAnalyzer creates the analyzer.
func NewIntegratedAnalyzer(scorer *scoring.InvestmentScorer, predictor *commercial.CommercialPredictor) *IntegratedAnalyzer {
	return &IntegratedAnalyzer{scorer: scorer, predictor: predictor, now: time.Now}
}

// Analyze scores the property and predicts commercial success for the
// industry in the surrounding district, concurrently.
//
// The property is the subject of the analysis, so a failing investment
// score fails the whole request. The commercial half degrades gracefully:
// when it fails (an unloaded model, say) the result carries the investment
// view alone and the commercial slot stays nil.
func (a *IntegratedAnalyzer) Analyze(ctx context.Context, propertyID, districtCode, industryCode string) (*models.IntegratedAnalysis, error) {
	result := &models.IntegratedAnalysis{
		PropertyID:   propertyID,
		DistrictCode: districtCode,
	}

	var commercialErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		score, err := a.scorer.Score(gctx, propertyID)
		if err != nil {
			return err
		}
		result.Investment = score
		return nil
	})
	g.Go(func() error {
		pred, err := a.predictor.Predict(gctx, districtCode, industryCode, false)
		if err != nil {
			commercialErr = err
			return nil
		}
		result.Commercial = pred
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if commercialErr != nil {
		logging.Warn().
			Err(commercialErr).
			Str("district", districtCode).
			Str("industry", industryCode).
			Msg("integrated analysis degraded to investment view only")
	}

	result.ComputedAt = a.now().UTC()
	return result, nil
}
