// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

package models

// Hourly foot-traffic bucket count. Index 0 is midnight-01:00 local time.
const HourlyBuckets = 24

// Age-bucket labels used for demographic distributions, in display order.
// The final bucket aggregates everyone 60 and over.
var AgeBuckets = []string{"10s", "20s", "30s", "40s", "50s", "60+"}

// DistrictProfile holds the persisted aggregate statistics for one
// commercial district. Profiles are produced by out-of-scope ingestion jobs
// and read-only inside the engine.
//
// The stat maps key metric names (e.g. "sales_monthly", "sales_monthly_prev",
// "store_count", "store_count_prev", "foot_traffic_daily",
// "foot_traffic_daily_prev", "weekend_foot_traffic", "weekday_foot_traffic",
// "area_km2", "resident_population") to numeric values. Missing keys mean
// the statistic was not collected for this district, never zero.
type DistrictProfile struct {
	DistrictCode string `json:"district_code" db:"district_code"`
	Name         string `json:"name" db:"name"`

	BusinessStats    map[string]float64 `json:"business_stats"`
	SalesStats       map[string]float64 `json:"sales_stats"`
	StoreStats       map[string]float64 `json:"store_stats"`
	FootTrafficStats map[string]float64 `json:"foot_traffic_stats"`
	Characteristics  map[string]float64 `json:"characteristics"`

	// HourlyFootTraffic has exactly HourlyBuckets entries.
	HourlyFootTraffic []float64 `json:"hourly_foot_traffic"`

	// AgeDistribution maps AgeBuckets labels to raw counts.
	AgeDistribution map[string]float64 `json:"age_distribution"`

	// StoresByIndustry maps industry code to active store count within the
	// district, used for competition metrics.
	StoresByIndustry map[string]int `json:"stores_by_industry"`
}

// Stat keys with engine-level meaning.
const (
	StatAreaKm2            = "area_km2"
	StatResidentPopulation = "resident_population"
)

// CompetitionFor derives same-industry competition within the district.
// Density is stores per square kilometer when the district's area is known,
// falling back to stores per 1000 residents; with neither normalizer the
// raw store count is reported and RawCountOnly is set.
func (p *DistrictProfile) CompetitionFor(industryCode string) Competition {
	count := p.StoresByIndustry[industryCode]
	c := Competition{IndustryCode: industryCode, StoreCount: count}

	if area, ok := p.Characteristics[StatAreaKm2]; ok && area > 0 {
		c.Density = float64(count) / area
		return c
	}
	if pop, ok := p.Characteristics[StatResidentPopulation]; ok && pop > 0 {
		c.Density = float64(count) / (pop / 1000)
		return c
	}
	c.Density = float64(count)
	c.RawCountOnly = true
	return c
}

// IndustryProfile holds persisted aggregates for one industry category.
type IndustryProfile struct {
	IndustryCode string  `json:"industry_code" db:"industry_code"`
	Name         string  `json:"name" db:"name"`
	SurvivalRate float64 `json:"survival_rate" db:"survival_rate"`
	OpenCount    int     `json:"open_count" db:"open_count"`
	CloseCount   int     `json:"close_count" db:"close_count"`
}
