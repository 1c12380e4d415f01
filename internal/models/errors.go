// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

package models

import "errors"

// Engine-wide error taxonomy.
//
// Components return these sentinels (usually wrapped with fmt.Errorf and %w)
// and the API layer maps them to HTTP status codes. Validation and
// data-sufficiency errors are surfaced immediately; ErrUpstream may be
// retried a bounded number of times by the repository layer before it
// reaches a caller.
var (
	// ErrInsufficientData indicates too few data points for a computation,
	// e.g. no price point exists at or before the requested ROI horizon.
	ErrInsufficientData = errors.New("insufficient data for computation")

	// ErrInvalidData indicates malformed or non-physical input values,
	// e.g. a non-positive price. Never silently clamped.
	ErrInvalidData = errors.New("invalid data")

	// ErrNotFound indicates an unknown property, district, or industry
	// identifier in the statistics repository.
	ErrNotFound = errors.New("not found")

	// ErrModelNotLoaded indicates the trained model artifact failed to
	// initialize. Predictions are refused rather than falling back to a
	// stale or default probability.
	ErrModelNotLoaded = errors.New("model artifact not loaded")

	// ErrFeatureMismatch indicates the engineered feature vector disagrees
	// with the artifact's expected feature schema.
	ErrFeatureMismatch = errors.New("feature vector does not match model schema")

	// ErrUnknownDistrict indicates a district code with no profile.
	ErrUnknownDistrict = errors.New("unknown district")

	// ErrUnknownIndustry indicates an industry code with no profile.
	ErrUnknownIndustry = errors.New("unknown industry")

	// ErrUpstream indicates the statistics repository was unreachable or
	// timed out after bounded retries.
	ErrUpstream = errors.New("upstream data source unavailable")
)
