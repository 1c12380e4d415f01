// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

// Package repository provides read-only access to persisted statistics.
//
// The engine never depends on a specific query-builder surface: all
// components consume the narrow StatisticsRepository interface. The
// Postgres implementation maps the interface onto the collector's tables;
// the Resilient wrapper adds a circuit breaker and bounded retries for
// transient upstream failures.
package repository

import (
	"context"

	"github.com/zipscore/zipscore/internal/models"
)

// StatisticsRepository supplies the time series and aggregate statistics
// the engine consumes. Implementations fail with models.ErrNotFound when an
// identifier is unknown and models.ErrUpstream on connectivity failure.
type StatisticsRepository interface {
	// GetPriceSeries returns the monthly sale-price history for a property.
	GetPriceSeries(ctx context.Context, propertyID string) (*models.PriceSeries, error)

	// GetJeonseSeries returns the monthly jeonse-deposit history for a
	// property.
	GetJeonseSeries(ctx context.Context, propertyID string) (*models.JeonseSeries, error)

	// GetTransactions returns completed sales for a property, oldest first.
	GetTransactions(ctx context.Context, propertyID string) ([]models.TransactionRecord, error)

	// GetDistrictProfile returns the aggregate statistics for a district.
	GetDistrictProfile(ctx context.Context, code string) (*models.DistrictProfile, error)

	// GetIndustryProfile returns the aggregates for one industry.
	GetIndustryProfile(ctx context.Context, code string) (*models.IndustryProfile, error)

	// ListIndustryProfiles returns every known industry, used as the
	// candidate set for industry recommendations.
	ListIndustryProfiles(ctx context.Context) ([]models.IndustryProfile, error)
}
