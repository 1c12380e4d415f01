// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

// Package commercial predicts the success probability of opening a business
// of a given industry in a given district.
//
// Inference runs a pre-trained logistic classifier over features assembled
// from district and industry statistics. Because the model is linear, the
// optional explanation is exact: the intercept plus each feature's signed
// contribution reproduces the raw model output to numeric precision, with
// no sampling involved.
//
// Inference dispatch is bounded by a worker semaphore and an optional rate
// limiter so a burst of comparison requests cannot monopolize CPU.
package commercial

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/zipscore/zipscore/internal/artifact"
	"github.com/zipscore/zipscore/internal/config"
	"github.com/zipscore/zipscore/internal/logging"
	"github.com/zipscore/zipscore/internal/metrics"
	"github.com/zipscore/zipscore/internal/models"
	"github.com/zipscore/zipscore/internal/repository"
)

// OtherFeatures labels the aggregated tail of an explanation truncated to
// the top-K contributions; it preserves the additive identity.
const OtherFeatures = "other"

// CommercialPredictor scores industry/district combinations.
type CommercialPredictor struct {
	repo repository.StatisticsRepository
	cfg  *config.ModelConfig

	// art is nil when the trained bundle failed to load; every prediction
	// then fails with models.ErrModelNotLoaded.
	art *artifact.Artifact

	sem     chan struct{}
	limiter *rate.Limiter
}

// NewCommercialPredictor creates a predictor. art may be nil (degraded
// mode).
func NewCommercialPredictor(repo repository.StatisticsRepository, cfg *config.ModelConfig, art *artifact.Artifact) *CommercialPredictor {
	workers := cfg.InferenceWorkers
	if workers <= 0 {
		workers = 2 * runtime.NumCPU()
	}

	var limiter *rate.Limiter
	if cfg.InferenceRateLimit > 0 {
		burst := int(math.Max(1, cfg.InferenceRateLimit))
		limiter = rate.NewLimiter(rate.Limit(cfg.InferenceRateLimit), burst)
	}

	return &CommercialPredictor{
		repo:    repo,
		cfg:     cfg,
		art:     art,
		sem:     make(chan struct{}, workers),
		limiter: limiter,
	}
}

// Loaded reports whether the trained artifact is available.
func (p *CommercialPredictor) Loaded() bool {
	return p.art != nil
}

// Predict returns the success probability for opening a business of the
// given industry in the given district. When explain is set the result
// carries an exact additive feature attribution.
//
// Unknown identifiers return models.ErrUnknownDistrict or
// models.ErrUnknownIndustry; a missing artifact returns
// models.ErrModelNotLoaded.
func (p *CommercialPredictor) Predict(ctx context.Context, districtCode, industryCode string, explain bool) (*models.CommercialPrediction, error) {
	profile, industry, err := p.fetchInputs(ctx, districtCode, industryCode)
	if err != nil {
		return nil, err
	}
	return p.predictProfile(ctx, profile, industry, explain)
}

// Compare scores one industry across several districts and returns entries
// ranked best-first. Equal probabilities rank the lower competition density
// first. All districts must exist; an unknown code fails the comparison.
func (p *CommercialPredictor) Compare(ctx context.Context, districtCodes []string, industryCode string) ([]models.DistrictComparison, error) {
	if len(districtCodes) == 0 {
		return nil, fmt.Errorf("%w: no districts to compare", models.ErrInvalidData)
	}
	if p.art == nil {
		metrics.InferenceErrors.WithLabelValues("not_loaded").Inc()
		return nil, models.ErrModelNotLoaded
	}

	results := make([]models.DistrictComparison, len(districtCodes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cap(p.sem))
	for i, code := range districtCodes {
		g.Go(func() error {
			profile, industry, err := p.fetchInputs(gctx, code, industryCode)
			if err != nil {
				return err
			}
			pred, err := p.predictProfile(gctx, profile, industry, false)
			if err != nil {
				return err
			}
			results[i] = models.DistrictComparison{
				DistrictCode:       code,
				Probability:        pred.Probability,
				CompetitionDensity: profile.CompetitionFor(industryCode).Density,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Probability != results[j].Probability {
			return results[i].Probability > results[j].Probability
		}
		return results[i].CompetitionDensity < results[j].CompetitionDensity
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

// fetchInputs loads both profiles, translating not-found into the
// identifier-specific sentinels.
func (p *CommercialPredictor) fetchInputs(ctx context.Context, districtCode, industryCode string) (*models.DistrictProfile, *models.IndustryProfile, error) {
	profile, err := p.repo.GetDistrictProfile(ctx, districtCode)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", models.ErrUnknownDistrict, districtCode)
		}
		return nil, nil, err
	}

	industry, err := p.repo.GetIndustryProfile(ctx, industryCode)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", models.ErrUnknownIndustry, industryCode)
		}
		return nil, nil, err
	}
	return profile, industry, nil
}

// predictProfile runs bounded inference over already-loaded inputs.
func (p *CommercialPredictor) predictProfile(ctx context.Context, profile *models.DistrictProfile, industry *models.IndustryProfile, explain bool) (*models.CommercialPrediction, error) {
	if p.art == nil {
		metrics.InferenceErrors.WithLabelValues("not_loaded").Inc()
		return nil, models.ErrModelNotLoaded
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			metrics.InferenceErrors.WithLabelValues("throttled").Inc()
			return nil, err
		}
	}

	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		metrics.InferenceErrors.WithLabelValues("throttled").Inc()
		return nil, ctx.Err()
	}

	start := time.Now()
	raw := p.featureVector(profile, industry)
	scaled, err := p.art.Scale(raw)
	if err != nil {
		metrics.InferenceErrors.WithLabelValues("feature_mismatch").Inc()
		return nil, err
	}
	logit := p.art.RawOutput(scaled)
	metrics.InferenceDuration.Observe(time.Since(start).Seconds())

	pred := &models.CommercialPrediction{
		DistrictCode: profile.DistrictCode,
		IndustryCode: industry.IndustryCode,
		Probability:  sigmoid(logit),
	}
	if explain {
		pred.Explanation = p.explain(scaled)
	}

	logging.Debug().
		Str("district", profile.DistrictCode).
		Str("industry", industry.IndustryCode).
		Float64("probability", pred.Probability).
		Msg("commercial prediction computed")

	return pred, nil
}

// featureVector assembles raw features in the artifact's trained order.
// A feature the statistics do not cover takes the scaler mean, which
// standardizes to zero and contributes nothing to the output.
func (p *CommercialPredictor) featureVector(profile *models.DistrictProfile, industry *models.IndustryProfile) []float64 {
	available := make(map[string]float64)
	for _, m := range []map[string]float64{
		profile.BusinessStats,
		profile.SalesStats,
		profile.StoreStats,
		profile.FootTrafficStats,
		profile.Characteristics,
	} {
		for k, v := range m {
			available[k] = v
		}
	}
	available["survival_rate"] = industry.SurvivalRate
	available["industry_open_count"] = float64(industry.OpenCount)
	available["industry_close_count"] = float64(industry.CloseCount)
	available["competition_density"] = profile.CompetitionFor(industry.IndustryCode).Density
	available["competition_store_count"] = float64(profile.StoresByIndustry[industry.IndustryCode])

	raw := make([]float64, p.art.NumFeatures())
	for i, name := range p.art.FeatureNames {
		if v, ok := available[name]; ok {
			raw[i] = v
		} else {
			raw[i] = p.art.Means[i]
		}
	}
	return raw
}

// explain builds the exact additive attribution for a scaled vector:
// BaseValue + sum(contributions) equals the raw model output. When the
// feature count exceeds the configured top-K, the tail is aggregated under
// OtherFeatures so the identity survives truncation.
func (p *CommercialPredictor) explain(scaled []float64) *models.Explanation {
	contribs := make([]models.FeatureContribution, len(scaled))
	for i, v := range scaled {
		contribs[i] = models.FeatureContribution{
			Feature:      p.art.FeatureNames[i],
			Contribution: p.art.Weights[i] * v,
		}
	}

	sort.SliceStable(contribs, func(i, j int) bool {
		return math.Abs(contribs[i].Contribution) > math.Abs(contribs[j].Contribution)
	})

	topK := p.cfg.ExplainTopK
	if topK > 0 && len(contribs) > topK {
		var tail float64
		for _, c := range contribs[topK:] {
			tail += c.Contribution
		}
		contribs = append(contribs[:topK:topK], models.FeatureContribution{
			Feature:      OtherFeatures,
			Contribution: tail,
		})
	}

	return &models.Explanation{
		BaseValue:     p.art.Intercept,
		Contributions: contribs,
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
