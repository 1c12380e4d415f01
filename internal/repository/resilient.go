// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/zipscore/zipscore/internal/logging"
	"github.com/zipscore/zipscore/internal/metrics"
	"github.com/zipscore/zipscore/internal/models"
)

// Resilient wraps a StatisticsRepository with a circuit breaker and
// bounded exponential-backoff retries for transient upstream failures.
//
// Only models.ErrUpstream is retried and counted against the breaker.
// models.ErrNotFound is a correct answer from a healthy upstream; it
// passes through untouched and never trips the breaker.
type Resilient struct {
	inner        StatisticsRepository
	cb           *gobreaker.CircuitBreaker[any]
	attempts     int
	initialDelay time.Duration
	name         string
}

// NewResilient creates the resilience wrapper.
//
// Breaker policy: opens after a 60% failure rate with at least 10 requests
// in a 1-minute window, waits 2 minutes before half-open probing.
func NewResilient(inner StatisticsRepository, attempts int, initialDelay time.Duration) *Resilient {
	const cbName = "statistics-repository"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("opening repository circuit")
			}
			return shouldTrip
		},
		IsSuccessful: func(err error) bool {
			// Not-found is a healthy response; only upstream failures
			// count against the breaker.
			return err == nil || errors.Is(err, models.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("repository circuit state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	if attempts <= 0 {
		attempts = 1
	}
	if initialDelay <= 0 {
		initialDelay = 200 * time.Millisecond
	}

	return &Resilient{
		inner:        inner,
		cb:           cb,
		attempts:     attempts,
		initialDelay: initialDelay,
		name:         cbName,
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// execute runs fn through the breaker with bounded retries.
func execute[T any](ctx context.Context, r *Resilient, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	bo := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(backoff.WithInitialInterval(r.initialDelay)),
		uint64(r.attempts-1), //nolint:gosec // attempts is validated > 0
	), ctx)

	attempt := 0
	result, err := backoff.RetryWithData(func() (T, error) {
		if attempt > 0 {
			metrics.RepositoryRetries.WithLabelValues(operation).Inc()
		}
		attempt++

		out, err := r.cb.Execute(func() (any, error) {
			return fn(ctx)
		})
		switch {
		case err == nil:
			metrics.CircuitBreakerRequests.WithLabelValues(r.name, "success").Inc()
			v, _ := out.(T)
			return v, nil
		case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.CircuitBreakerRequests.WithLabelValues(r.name, "rejected").Inc()
			// No point hammering an open breaker with further retries.
			return zero, backoff.Permanent(errors.Join(models.ErrUpstream, err))
		case errors.Is(err, models.ErrUpstream):
			metrics.CircuitBreakerRequests.WithLabelValues(r.name, "failure").Inc()
			return zero, err // retryable
		default:
			// Not-found, invalid data: surface immediately.
			return zero, backoff.Permanent(err)
		}
	}, bo)
	if err != nil {
		return zero, err
	}
	return result, nil
}

// GetPriceSeries implements StatisticsRepository.
func (r *Resilient) GetPriceSeries(ctx context.Context, propertyID string) (*models.PriceSeries, error) {
	return execute(ctx, r, "get_price_series", func(ctx context.Context) (*models.PriceSeries, error) {
		return r.inner.GetPriceSeries(ctx, propertyID)
	})
}

// GetJeonseSeries implements StatisticsRepository.
func (r *Resilient) GetJeonseSeries(ctx context.Context, propertyID string) (*models.JeonseSeries, error) {
	return execute(ctx, r, "get_jeonse_series", func(ctx context.Context) (*models.JeonseSeries, error) {
		return r.inner.GetJeonseSeries(ctx, propertyID)
	})
}

// GetTransactions implements StatisticsRepository.
func (r *Resilient) GetTransactions(ctx context.Context, propertyID string) ([]models.TransactionRecord, error) {
	return execute(ctx, r, "get_transactions", func(ctx context.Context) ([]models.TransactionRecord, error) {
		return r.inner.GetTransactions(ctx, propertyID)
	})
}

// GetDistrictProfile implements StatisticsRepository.
func (r *Resilient) GetDistrictProfile(ctx context.Context, code string) (*models.DistrictProfile, error) {
	return execute(ctx, r, "get_district_profile", func(ctx context.Context) (*models.DistrictProfile, error) {
		return r.inner.GetDistrictProfile(ctx, code)
	})
}

// GetIndustryProfile implements StatisticsRepository.
func (r *Resilient) GetIndustryProfile(ctx context.Context, code string) (*models.IndustryProfile, error) {
	return execute(ctx, r, "get_industry_profile", func(ctx context.Context) (*models.IndustryProfile, error) {
		return r.inner.GetIndustryProfile(ctx, code)
	})
}

// ListIndustryProfiles implements StatisticsRepository.
func (r *Resilient) ListIndustryProfiles(ctx context.Context) ([]models.IndustryProfile, error) {
	return execute(ctx, r, "list_industry_profiles", func(ctx context.Context) ([]models.IndustryProfile, error) {
		return r.inner.ListIndustryProfiles(ctx)
	})
}

// Ensure interface compliance.
var _ StatisticsRepository = (*Resilient)(nil)
