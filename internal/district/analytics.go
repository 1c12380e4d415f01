// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

// Package district derives descriptive analytics for commercial districts:
// foot-traffic peaks, demographic mix, weekend leaning, growth potential,
// competition, and classifier-backed industry recommendations.
package district

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zipscore/zipscore/internal/commercial"
	"github.com/zipscore/zipscore/internal/config"
	"github.com/zipscore/zipscore/internal/logging"
	"github.com/zipscore/zipscore/internal/models"
	"github.com/zipscore/zipscore/internal/repository"
)

// Stat keys consumed by the growth-potential blend. Each pairs a current
// value with its value one year earlier.
const (
	statSalesMonthly  = "sales_monthly"
	statStoreCount    = "store_count"
	statFootTraffic   = "foot_traffic_daily"
	prevSuffix        = "_prev"
	statWeekendTraf   = "weekend_foot_traffic"
	statWeekdayTraf   = "weekday_foot_traffic"
)

// DistrictAnalytics computes derived district metrics.
type DistrictAnalytics struct {
	repo      repository.StatisticsRepository
	predictor *commercial.CommercialPredictor
	cfg       *config.DistrictConfig

	now func() time.Time
}

// NewDistrictAnalytics creates the analytics component. The commercial
// predictor backs industry recommendations; everything else is pure
// arithmetic over the district profile.
func NewDistrictAnalytics(repo repository.StatisticsRepository, predictor *commercial.CommercialPredictor, cfg *config.DistrictConfig) *DistrictAnalytics {
	return &DistrictAnalytics{repo: repo, predictor: predictor, cfg: cfg, now: time.Now}
}

// Characteristics derives the descriptive bundle for one district.
// Unknown codes return models.ErrUnknownDistrict.
func (a *DistrictAnalytics) Characteristics(ctx context.Context, code string) (*models.DistrictCharacteristics, error) {
	profile, err := a.profile(ctx, code)
	if err != nil {
		return nil, err
	}

	ratio, leaning := weekendRatio(profile)

	return &models.DistrictCharacteristics{
		DistrictCode:    profile.DistrictCode,
		PeakHours:       peakHours(profile.HourlyFootTraffic),
		Demographics:    demographics(profile.AgeDistribution),
		WeekendRatio:    ratio,
		WeekendLeaning:  leaning,
		GrowthPotential: a.growthPotential(profile),
		ComputedAt:      a.now().UTC(),
	}, nil
}

// Competition reports same-industry competition within a district.
func (a *DistrictAnalytics) Competition(ctx context.Context, code, industryCode string) (*models.Competition, error) {
	profile, err := a.profile(ctx, code)
	if err != nil {
		return nil, err
	}
	c := profile.CompetitionFor(industryCode)
	return &c, nil
}

// RecommendIndustries ranks every known industry for a district by
// predicted success probability minus a competition penalty. Probability
// and penalty are reported separately so the ranking stays auditable.
func (a *DistrictAnalytics) RecommendIndustries(ctx context.Context, code string, topN int) ([]models.IndustryRecommendation, error) {
	if topN <= 0 {
		topN = a.cfg.DefaultTopN
	}

	profile, err := a.profile(ctx, code)
	if err != nil {
		return nil, err
	}

	industries, err := a.repo.ListIndustryProfiles(ctx)
	if err != nil {
		return nil, err
	}
	if len(industries) == 0 {
		return nil, fmt.Errorf("%w: no industry profiles available", models.ErrInsufficientData)
	}

	recs := make([]models.IndustryRecommendation, len(industries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, ind := range industries {
		g.Go(func() error {
			pred, err := a.predictor.Predict(gctx, code, ind.IndustryCode, false)
			if err != nil {
				return err
			}
			penalty := profile.CompetitionFor(ind.IndustryCode).Density * a.cfg.CompetitionPenalty
			recs[i] = models.IndustryRecommendation{
				IndustryCode: ind.IndustryCode,
				IndustryName: ind.Name,
				Probability:  pred.Probability,
				Penalty:      penalty,
				Score:        pred.Probability - penalty,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].IndustryCode < recs[j].IndustryCode
	})
	if len(recs) > topN {
		recs = recs[:topN]
	}

	logging.Debug().
		Str("district", code).
		Int("candidates", len(industries)).
		Int("returned", len(recs)).
		Msg("industry recommendations ranked")

	return recs, nil
}

func (a *DistrictAnalytics) profile(ctx context.Context, code string) (*models.DistrictProfile, error) {
	profile, err := a.repo.GetDistrictProfile(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrUnknownDistrict, code)
		}
		return nil, err
	}
	return profile, nil
}

// peakHours finds the busiest hour and the top three, ties resolved toward
// the earlier hour.
func peakHours(hourly []float64) models.PeakHours {
	type bucket struct {
		hour  int
		count float64
	}
	buckets := make([]bucket, 0, len(hourly))
	for h, c := range hourly {
		buckets = append(buckets, bucket{hour: h, count: c})
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		if buckets[i].count != buckets[j].count {
			return buckets[i].count > buckets[j].count
		}
		return buckets[i].hour < buckets[j].hour
	})

	top := models.PeakHours{}
	for i, b := range buckets {
		if i == 0 {
			top.Peak = b.hour
		}
		if i == 3 {
			break
		}
		top.Top3 = append(top.Top3, b.hour)
	}
	return top
}

// demographics normalizes the raw age counts to shares. A district with no
// demographic data yields empty shares and no dominant bucket.
func demographics(counts map[string]float64) models.Demographics {
	d := models.Demographics{Shares: make(map[string]float64)}

	var total float64
	for _, c := range counts {
		if c > 0 {
			total += c
		}
	}
	if total == 0 {
		return d
	}

	best := -1.0
	for _, bucket := range models.AgeBuckets {
		c := counts[bucket]
		if c < 0 {
			c = 0
		}
		share := c / total
		d.Shares[bucket] = share
		if share > best {
			best = share
			d.DominantBucket = bucket
		}
	}
	return d
}

// weekendRatio compares weekend to weekday foot traffic. Missing inputs
// yield a zero ratio and no leaning.
func weekendRatio(profile *models.DistrictProfile) (float64, bool) {
	weekend, okW := profile.FootTrafficStats[statWeekendTraf]
	weekday, okD := profile.FootTrafficStats[statWeekdayTraf]
	if !okW || !okD || weekday <= 0 {
		return 0, false
	}
	ratio := weekend / weekday
	return ratio, ratio > 1
}

// growthPotential blends year-over-year momentum of sales, store count, and
// foot traffic onto a 0-100 scale. Inputs whose current or prior value is
// missing are excluded and the remaining weights re-normalized; Coverage
// reports the weight fraction that had data.
func (a *DistrictAnalytics) growthPotential(profile *models.DistrictProfile) models.GrowthPotential {
	inputs := []struct {
		stats  map[string]float64
		key    string
		weight float64
	}{
		{profile.SalesStats, statSalesMonthly, a.cfg.SalesGrowthWeight},
		{profile.StoreStats, statStoreCount, a.cfg.StoreGrowthWeight},
		{profile.FootTrafficStats, statFootTraffic, a.cfg.FootGrowthWeight},
	}

	var totalWeight, usedWeight, weighted float64
	for _, in := range inputs {
		totalWeight += in.weight

		cur, okC := in.stats[in.key]
		prev, okP := in.stats[in.key+prevSuffix]
		if !okC || !okP || prev <= 0 {
			continue
		}

		delta := (cur - prev) / prev
		normalized := (delta + a.cfg.GrowthReferenceRange) / (2 * a.cfg.GrowthReferenceRange) * 100
		normalized = max(0, min(100, normalized))

		usedWeight += in.weight
		weighted += in.weight * normalized
	}

	if usedWeight == 0 || totalWeight == 0 {
		return models.GrowthPotential{}
	}
	return models.GrowthPotential{
		Score:    weighted / usedWeight,
		Coverage: usedWeight / totalWeight,
	}
}
