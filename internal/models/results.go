// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

package models

import "time"

// Recommendation is the ordinal investment verdict for a property.
type Recommendation string

const (
	RecommendationBuy   Recommendation = "BUY"
	RecommendationHold  Recommendation = "HOLD"
	RecommendationAvoid Recommendation = "AVOID"
)

// ROIResult is the return on investment over one trailing horizon.
type ROIResult struct {
	Horizon string  `json:"horizon"`
	ROI     float64 `json:"roi"`
}

// JeonseTrend reports the current jeonse ratio and its regression slope.
// Slope is change in ratio per year. LowConfidence is set when fewer than
// two ratio points were available and the slope defaulted to zero.
type JeonseTrend struct {
	CurrentRatio  float64 `json:"current_ratio"`
	SlopePerYear  float64 `json:"slope_per_year"`
	LowConfidence bool    `json:"low_confidence"`
}

// InvestmentScore is the full scoring result for one property.
// Immutable once produced.
type InvestmentScore struct {
	PropertyID     string         `json:"property_id"`
	ROI            []ROIResult    `json:"roi"`
	JeonseTrend    JeonseTrend    `json:"jeonse_trend"`
	LiquidityScore float64        `json:"liquidity_score"`
	Recommendation Recommendation `json:"recommendation"`
	ComputedAt     time.Time      `json:"computed_at"`
}

// ROIFor returns the ROI entry for the named horizon.
func (s *InvestmentScore) ROIFor(horizon string) (float64, bool) {
	for _, r := range s.ROI {
		if r.Horizon == horizon {
			return r.ROI, true
		}
	}
	return 0, false
}

// Prediction is a single-horizon price forecast.
//
// Lower/Upper bound the prediction when residual statistics for the horizon
// were available in the model artifact; otherwise Confidence is
// "unavailable" and the bounds equal the point estimate.
type Prediction struct {
	Horizon    string  `json:"horizon"`
	Price      float64 `json:"price"`
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Confidence string  `json:"confidence"`
}

// Forecast is the multi-horizon prediction result for one property.
type Forecast struct {
	PropertyID  string       `json:"property_id"`
	LastPrice   float64      `json:"last_price"`
	Predictions []Prediction `json:"predictions"`
	ComputedAt  time.Time    `json:"computed_at"`
}

// FeatureContribution is one feature's signed additive contribution to a
// model output.
type FeatureContribution struct {
	Feature      string  `json:"feature"`
	Contribution float64 `json:"contribution"`
}

// Explanation is an additive feature-attribution breakdown of a model
// output: BaseValue plus the sum of all contributions reproduces the raw
// model output within numeric tolerance.
type Explanation struct {
	BaseValue     float64               `json:"base_value"`
	Contributions []FeatureContribution `json:"contributions"`
}

// CommercialPrediction is the success probability for an industry in a
// district, with optional explanation.
type CommercialPrediction struct {
	DistrictCode string       `json:"district_code"`
	IndustryCode string       `json:"industry_code"`
	Probability  float64      `json:"probability"`
	Explanation  *Explanation `json:"explanation,omitempty"`
}

// DistrictComparison is one entry of a ranked multi-district comparison.
type DistrictComparison struct {
	DistrictCode       string  `json:"district_code"`
	Probability        float64 `json:"probability"`
	CompetitionDensity float64 `json:"competition_density"`
	Rank               int     `json:"rank"`
}

// PeakHours reports the busiest foot-traffic hours of a district.
type PeakHours struct {
	Peak int   `json:"peak"`
	Top3 []int `json:"top3"`
}

// Demographics is the normalized age distribution of a district.
type Demographics struct {
	Shares         map[string]float64 `json:"shares"`
	DominantBucket string             `json:"dominant_bucket"`
}

// Competition reports same-industry competition within a district.
// When no area or population normalizer was available, Density holds the
// raw count and RawCountOnly is set.
type Competition struct {
	IndustryCode string  `json:"industry_code"`
	StoreCount   int     `json:"store_count"`
	Density      float64 `json:"density"`
	RawCountOnly bool    `json:"raw_count_only"`
}

// GrowthPotential is the 0-100 composite of year-over-year momentum.
// Coverage reports the fraction of configured weight that had inputs
// available; missing inputs are excluded with re-normalized weights.
type GrowthPotential struct {
	Score    float64 `json:"score"`
	Coverage float64 `json:"coverage"`
}

// DistrictCharacteristics bundles the derived metrics for one district.
type DistrictCharacteristics struct {
	DistrictCode    string          `json:"district_code"`
	PeakHours       PeakHours       `json:"peak_hours"`
	Demographics    Demographics    `json:"demographics"`
	WeekendRatio    float64         `json:"weekend_ratio"`
	WeekendLeaning  bool            `json:"weekend_leaning"`
	GrowthPotential GrowthPotential `json:"growth_potential"`
	ComputedAt      time.Time       `json:"computed_at"`
}

// IndustryRecommendation is one ranked entry of an industry ranking for a
// district. Probability and the competition penalty are shown separately
// for transparency; Score = Probability - Penalty.
type IndustryRecommendation struct {
	IndustryCode string  `json:"industry_code"`
	IndustryName string  `json:"industry_name"`
	Probability  float64 `json:"probability"`
	Penalty      float64 `json:"penalty"`
	Score        float64 `json:"score"`
}

// IntegratedAnalysis merges the residential and commercial views for a
// property and its surrounding district.
type IntegratedAnalysis struct {
	PropertyID   string                `json:"property_id"`
	DistrictCode string                `json:"district_code"`
	Investment   *InvestmentScore      `json:"investment"`
	Commercial   *CommercialPrediction `json:"commercial"`
	ComputedAt   time.Time             `json:"computed_at"`
}
