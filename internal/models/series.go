// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

package models

import (
	"fmt"
	"time"
)

// PricePoint is a single observation in a property's sale-price history.
// Timestamps are month granularity: UTC, truncated to the first of the month.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp" db:"observed_at"`
	Price     float64   `json:"price" db:"price"`
}

// PriceSeries is an ordered sale-price history for one property.
//
// Invariants: timestamps strictly increasing, prices positive. Gaps are
// tolerated; a minimum of 2 points is required to compute trend or ROI.
type PriceSeries struct {
	PropertyID string       `json:"property_id"`
	Points     []PricePoint `json:"points"`
}

// Validate checks series invariants: strictly increasing timestamps and
// positive prices. Violations return ErrInvalidData wrapped with detail.
func (s *PriceSeries) Validate() error {
	for i, p := range s.Points {
		if p.Price <= 0 {
			return fmt.Errorf("%w: non-positive price %.2f at %s", ErrInvalidData, p.Price, p.Timestamp.Format("2006-01"))
		}
		if i > 0 && !p.Timestamp.After(s.Points[i-1].Timestamp) {
			return fmt.Errorf("%w: timestamps not strictly increasing at index %d", ErrInvalidData, i)
		}
	}
	return nil
}

// Last returns the most recent observation. ok is false for an empty series.
func (s *PriceSeries) Last() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// At returns the latest observation at or before t.
// ok is false when every point is after t.
func (s *PriceSeries) At(t time.Time) (PricePoint, bool) {
	for i := len(s.Points) - 1; i >= 0; i-- {
		if !s.Points[i].Timestamp.After(t) {
			return s.Points[i], true
		}
	}
	return PricePoint{}, false
}

// JeonsePoint is a single observation in a property's jeonse-deposit history.
type JeonsePoint struct {
	Timestamp time.Time `json:"timestamp" db:"observed_at"`
	Deposit   float64   `json:"deposit" db:"deposit"`
}

// JeonseSeries is an ordered jeonse-deposit history for one property.
// The jeonse ratio at a timestamp is deposit / sale price at the matching
// timestamp.
type JeonseSeries struct {
	PropertyID string        `json:"property_id"`
	Points     []JeonsePoint `json:"points"`
}

// RatioPoint is a derived jeonse-ratio observation.
type RatioPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Ratio     float64   `json:"ratio"`
}

// Ratios joins the jeonse series against a price series on matching month
// timestamps and returns deposit/price ratio points in time order. Months
// present in only one series are skipped.
func (s *JeonseSeries) Ratios(prices *PriceSeries) []RatioPoint {
	byMonth := make(map[time.Time]float64, len(prices.Points))
	for _, p := range prices.Points {
		byMonth[p.Timestamp] = p.Price
	}

	ratios := make([]RatioPoint, 0, len(s.Points))
	for _, j := range s.Points {
		price, ok := byMonth[j.Timestamp]
		if !ok || price <= 0 {
			continue
		}
		ratios = append(ratios, RatioPoint{Timestamp: j.Timestamp, Ratio: j.Deposit / price})
	}
	return ratios
}

// TransactionRecord is an individual completed sale, used to derive
// liquidity metrics.
type TransactionRecord struct {
	Timestamp    time.Time `json:"timestamp" db:"transacted_at"`
	Price        float64   `json:"price" db:"price"`
	DaysOnMarket int       `json:"days_on_market" db:"days_on_market"`
}

// MonthStart truncates t to the first day of its month in UTC.
// All series timestamps are normalized through this before comparison.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
