// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

// Package artifact loads the pre-trained commercial-success model bundle.
//
// The bundle is produced by an out-of-scope training pipeline and consists
// of three JSON files under one directory:
//
//   - classifier.json: logistic-regression weights and intercept
//   - scaler.json: ordered feature names with standardization parameters
//   - residuals.json: forecast residual stddev keyed by horizon
//
// An Artifact is loaded once at process start and never mutated, so it is
// safe for unlimited concurrent reads without locking. When loading fails
// the service degrades to "model unavailable" instead of crashing:
// predictors hold a nil Artifact and refuse predictions with
// models.ErrModelNotLoaded.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/zipscore/zipscore/internal/models"
)

// Bundle file names within the artifact directory.
const (
	ClassifierFile = "classifier.json"
	ScalerFile     = "scaler.json"
	ResidualsFile  = "residuals.json"
)

// Artifact is the immutable trained model bundle.
type Artifact struct {
	// Weights and Intercept define the logistic classifier over the
	// scaled feature vector: p = sigmoid(Intercept + Weights . x).
	Weights   []float64
	Intercept float64

	// FeatureNames fixes the feature order the classifier was trained
	// with; Means and Stds are the standard-scaler parameters in the
	// same order.
	FeatureNames []string
	Means        []float64
	Stds         []float64

	// ResidualStd maps forecast horizon ("3mo", "6mo", "1yr") to the
	// residual standard deviation observed during training, in log-price
	// space. Horizons without residual stats yield point estimates only.
	ResidualStd map[string]float64
}

type classifierFile struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

type scalerFile struct {
	FeatureNames []string  `json:"feature_names"`
	Means        []float64 `json:"means"`
	Stds         []float64 `json:"stds"`
}

// Load reads and validates the model bundle from dir.
//
// All three files must exist and agree on dimensions. residuals.json may
// be an empty object: forecasts then report confidence "unavailable".
func Load(dir string) (*Artifact, error) {
	var clf classifierFile
	if err := readJSON(filepath.Join(dir, ClassifierFile), &clf); err != nil {
		return nil, fmt.Errorf("load classifier: %w", err)
	}

	var sc scalerFile
	if err := readJSON(filepath.Join(dir, ScalerFile), &sc); err != nil {
		return nil, fmt.Errorf("load scaler: %w", err)
	}

	residuals := make(map[string]float64)
	if err := readJSON(filepath.Join(dir, ResidualsFile), &residuals); err != nil {
		return nil, fmt.Errorf("load residuals: %w", err)
	}

	a := &Artifact{
		Weights:      clf.Weights,
		Intercept:    clf.Intercept,
		FeatureNames: sc.FeatureNames,
		Means:        sc.Means,
		Stds:         sc.Stds,
		ResidualStd:  residuals,
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrInvalidData, filepath.Base(path), err)
	}
	return nil
}

// validate checks the bundle's internal consistency.
func (a *Artifact) validate() error {
	n := len(a.FeatureNames)
	if n == 0 {
		return fmt.Errorf("%w: scaler has no feature names", models.ErrInvalidData)
	}
	if len(a.Weights) != n {
		return fmt.Errorf("%w: classifier has %d weights for %d features", models.ErrFeatureMismatch, len(a.Weights), n)
	}
	if len(a.Means) != n || len(a.Stds) != n {
		return fmt.Errorf("%w: scaler dimensions disagree (names=%d means=%d stds=%d)", models.ErrFeatureMismatch, n, len(a.Means), len(a.Stds))
	}
	for i, s := range a.Stds {
		if s <= 0 {
			return fmt.Errorf("%w: non-positive std %.4f for feature %s", models.ErrInvalidData, s, a.FeatureNames[i])
		}
	}
	return nil
}

// NumFeatures returns the expected feature vector length.
func (a *Artifact) NumFeatures() int {
	return len(a.FeatureNames)
}

// Scale standardizes a raw feature vector into model space.
// Returns models.ErrFeatureMismatch when the length disagrees with the
// trained schema.
func (a *Artifact) Scale(raw []float64) ([]float64, error) {
	if len(raw) != len(a.FeatureNames) {
		return nil, fmt.Errorf("%w: got %d features, want %d", models.ErrFeatureMismatch, len(raw), len(a.FeatureNames))
	}
	scaled := make([]float64, len(raw))
	for i, v := range raw {
		scaled[i] = (v - a.Means[i]) / a.Stds[i]
	}
	return scaled, nil
}

// RawOutput computes the classifier's pre-sigmoid output (logit) for a
// scaled feature vector.
func (a *Artifact) RawOutput(scaled []float64) float64 {
	out := a.Intercept
	for i, v := range scaled {
		out += a.Weights[i] * v
	}
	return out
}

// ResidualFor returns the residual stddev for a forecast horizon.
func (a *Artifact) ResidualFor(horizon string) (float64, bool) {
	s, ok := a.ResidualStd[horizon]
	return s, ok
}
