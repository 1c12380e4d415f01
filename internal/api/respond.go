// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/zipscore/zipscore/internal/logging"
	"github.com/zipscore/zipscore/internal/models"
)

// respondJSON writes a success envelope.
func respondJSON(w http.ResponseWriter, status int, data interface{}, start time.Time, cached bool) {
	resp := models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
			Cached:      cached,
		},
	}
	writeJSON(w, status, &resp)
}

// respondError maps an engine error onto the HTTP taxonomy and writes an
// error envelope.
func respondError(w http.ResponseWriter, r *http.Request, err error, start time.Time) {
	status, code := classify(err)

	if status >= http.StatusInternalServerError {
		logging.Error().
			Err(err).
			Str("request_id", RequestIDFrom(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}

	resp := models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
		Error: &models.APIError{
			Code:    code,
			Message: err.Error(),
		},
	}
	writeJSON(w, status, &resp)
}

// respondBadRequest reports a malformed request (missing or unparsable
// parameters) before any engine work happens.
func respondBadRequest(w http.ResponseWriter, message string, start time.Time) {
	resp := models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
		Error: &models.APIError{
			Code:    "bad_request",
			Message: message,
		},
	}
	writeJSON(w, http.StatusBadRequest, &resp)
}

func writeJSON(w http.ResponseWriter, status int, resp *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Warn().Err(err).Msg("failed to encode response")
	}
}

// classify maps the engine error taxonomy onto status codes and stable
// machine-readable error codes.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInsufficientData):
		return http.StatusUnprocessableEntity, "insufficient_data"
	case errors.Is(err, models.ErrInvalidData):
		return http.StatusUnprocessableEntity, "invalid_data"
	case errors.Is(err, models.ErrFeatureMismatch):
		return http.StatusUnprocessableEntity, "feature_mismatch"
	case errors.Is(err, models.ErrUnknownDistrict):
		return http.StatusNotFound, "unknown_district"
	case errors.Is(err, models.ErrUnknownIndustry):
		return http.StatusNotFound, "unknown_industry"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrModelNotLoaded):
		return http.StatusServiceUnavailable, "model_not_loaded"
	case errors.Is(err, models.ErrUpstream):
		return http.StatusServiceUnavailable, "upstream_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
