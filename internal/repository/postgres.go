// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/zipscore/zipscore/internal/config"
	"github.com/zipscore/zipscore/internal/metrics"
	"github.com/zipscore/zipscore/internal/models"
)

// PostgresRepository implements StatisticsRepository over the collector's
// Postgres (Supabase) schema.
type PostgresRepository struct {
	db           *sqlx.DB
	queryTimeout time.Duration
}

// NewPostgresRepository opens a connection pool against the configured DSN.
// The connection is verified with a ping so misconfiguration fails at
// startup rather than on the first request.
func NewPostgresRepository(cfg *config.DatabaseConfig) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", models.ErrUpstream, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	return &PostgresRepository{db: db, queryTimeout: cfg.QueryTimeout}, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// withTimeout derives the per-query context deadline.
func (r *PostgresRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

// mapError translates driver errors into the engine taxonomy.
func mapError(operation string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		metrics.RepositoryQueryErrors.WithLabelValues(operation, "not_found").Inc()
		return fmt.Errorf("%s: %w", operation, models.ErrNotFound)
	default:
		// Timeouts, connection resets, and driver failures all surface as
		// upstream errors; the resilient wrapper decides about retries.
		metrics.RepositoryQueryErrors.WithLabelValues(operation, "upstream").Inc()
		return fmt.Errorf("%s: %w: %v", operation, models.ErrUpstream, err)
	}
}

// GetPriceSeries returns the monthly sale-price history for a property.
func (r *PostgresRepository) GetPriceSeries(ctx context.Context, propertyID string) (*models.PriceSeries, error) {
	const op = "get_price_series"
	defer metrics.ObserveRepositoryQuery(op, time.Now())

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const query = `
		SELECT observed_at, price
		FROM price_points
		WHERE property_id = $1
		ORDER BY observed_at ASC`

	var points []models.PricePoint
	if err := r.db.SelectContext(ctx, &points, query, propertyID); err != nil {
		return nil, mapError(op, err)
	}
	if len(points) == 0 {
		if err := r.propertyExists(ctx, propertyID); err != nil {
			return nil, mapError(op, err)
		}
	}

	return &models.PriceSeries{PropertyID: propertyID, Points: points}, nil
}

// GetJeonseSeries returns the monthly jeonse-deposit history for a property.
func (r *PostgresRepository) GetJeonseSeries(ctx context.Context, propertyID string) (*models.JeonseSeries, error) {
	const op = "get_jeonse_series"
	defer metrics.ObserveRepositoryQuery(op, time.Now())

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const query = `
		SELECT observed_at, deposit
		FROM jeonse_points
		WHERE property_id = $1
		ORDER BY observed_at ASC`

	var points []models.JeonsePoint
	if err := r.db.SelectContext(ctx, &points, query, propertyID); err != nil {
		return nil, mapError(op, err)
	}

	return &models.JeonseSeries{PropertyID: propertyID, Points: points}, nil
}

// GetTransactions returns completed sales for a property, oldest first.
func (r *PostgresRepository) GetTransactions(ctx context.Context, propertyID string) ([]models.TransactionRecord, error) {
	const op = "get_transactions"
	defer metrics.ObserveRepositoryQuery(op, time.Now())

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const query = `
		SELECT transacted_at, price, days_on_market
		FROM transactions
		WHERE property_id = $1
		ORDER BY transacted_at ASC`

	var records []models.TransactionRecord
	if err := r.db.SelectContext(ctx, &records, query, propertyID); err != nil {
		return nil, mapError(op, err)
	}
	return records, nil
}

// propertyExists distinguishes "no data yet" from "unknown property".
func (r *PostgresRepository) propertyExists(ctx context.Context, propertyID string) error {
	var one int
	err := r.db.GetContext(ctx, &one, `SELECT 1 FROM properties WHERE property_id = $1`, propertyID)
	return err
}

// districtRow is the scan target for the district master row.
type districtRow struct {
	DistrictCode string `db:"district_code"`
	Name         string `db:"name"`
}

// statRow is the scan target for category/key/value statistics rows.
type statRow struct {
	Category string  `db:"category"`
	StatKey  string  `db:"stat_key"`
	Value    float64 `db:"value"`
}

// GetDistrictProfile assembles a DistrictProfile from the district master
// row, its keyed statistics, hourly foot traffic, age distribution, and
// per-industry store counts.
func (r *PostgresRepository) GetDistrictProfile(ctx context.Context, code string) (*models.DistrictProfile, error) {
	const op = "get_district_profile"
	defer metrics.ObserveRepositoryQuery(op, time.Now())

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var row districtRow
	if err := r.db.GetContext(ctx, &row, `SELECT district_code, name FROM districts WHERE district_code = $1`, code); err != nil {
		return nil, mapError(op, err)
	}

	profile := &models.DistrictProfile{
		DistrictCode:      row.DistrictCode,
		Name:              row.Name,
		BusinessStats:     make(map[string]float64),
		SalesStats:        make(map[string]float64),
		StoreStats:        make(map[string]float64),
		FootTrafficStats:  make(map[string]float64),
		Characteristics:   make(map[string]float64),
		HourlyFootTraffic: make([]float64, models.HourlyBuckets),
		AgeDistribution:   make(map[string]float64),
		StoresByIndustry:  make(map[string]int),
	}

	var stats []statRow
	if err := r.db.SelectContext(ctx, &stats, `SELECT category, stat_key, value FROM district_stats WHERE district_code = $1`, code); err != nil {
		return nil, mapError(op, err)
	}
	for _, s := range stats {
		switch s.Category {
		case "business":
			profile.BusinessStats[s.StatKey] = s.Value
		case "sales":
			profile.SalesStats[s.StatKey] = s.Value
		case "store":
			profile.StoreStats[s.StatKey] = s.Value
		case "foot_traffic":
			profile.FootTrafficStats[s.StatKey] = s.Value
		default:
			profile.Characteristics[s.StatKey] = s.Value
		}
	}

	type hourRow struct {
		Hour  int     `db:"hour"`
		Count float64 `db:"count"`
	}
	var hours []hourRow
	if err := r.db.SelectContext(ctx, &hours, `SELECT hour, count FROM district_hourly_traffic WHERE district_code = $1`, code); err != nil {
		return nil, mapError(op, err)
	}
	for _, h := range hours {
		if h.Hour >= 0 && h.Hour < models.HourlyBuckets {
			profile.HourlyFootTraffic[h.Hour] = h.Count
		}
	}

	type ageRow struct {
		Bucket string  `db:"bucket"`
		Count  float64 `db:"count"`
	}
	var ages []ageRow
	if err := r.db.SelectContext(ctx, &ages, `SELECT bucket, count FROM district_age_distribution WHERE district_code = $1`, code); err != nil {
		return nil, mapError(op, err)
	}
	for _, a := range ages {
		profile.AgeDistribution[a.Bucket] = a.Count
	}

	type storeRow struct {
		IndustryCode string `db:"industry_code"`
		Count        int    `db:"count"`
	}
	var stores []storeRow
	if err := r.db.SelectContext(ctx, &stores, `SELECT industry_code, count FROM district_industry_stores WHERE district_code = $1`, code); err != nil {
		return nil, mapError(op, err)
	}
	for _, s := range stores {
		profile.StoresByIndustry[s.IndustryCode] = s.Count
	}

	return profile, nil
}

// GetIndustryProfile returns the aggregates for one industry.
func (r *PostgresRepository) GetIndustryProfile(ctx context.Context, code string) (*models.IndustryProfile, error) {
	const op = "get_industry_profile"
	defer metrics.ObserveRepositoryQuery(op, time.Now())

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const query = `
		SELECT industry_code, name, survival_rate, open_count, close_count
		FROM industry_profiles
		WHERE industry_code = $1`

	var profile models.IndustryProfile
	if err := r.db.GetContext(ctx, &profile, query, code); err != nil {
		return nil, mapError(op, err)
	}
	return &profile, nil
}

// ListIndustryProfiles returns every known industry.
func (r *PostgresRepository) ListIndustryProfiles(ctx context.Context) ([]models.IndustryProfile, error) {
	const op = "list_industry_profiles"
	defer metrics.ObserveRepositoryQuery(op, time.Now())

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	const query = `
		SELECT industry_code, name, survival_rate, open_count, close_count
		FROM industry_profiles
		ORDER BY industry_code ASC`

	var profiles []models.IndustryProfile
	if err := r.db.SelectContext(ctx, &profiles, query); err != nil {
		return nil, mapError(op, err)
	}
	return profiles, nil
}

// Ensure interface compliance.
var _ StatisticsRepository = (*PostgresRepository)(nil)
