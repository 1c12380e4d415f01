// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

/*
Package models defines data structures shared across the Zipscore engine.

This package contains all domain models used throughout the application:
time-series inputs read from the statistics repository, district and industry
profiles, scorer and predictor result records, the standardized API response
envelope, and the engine-wide error taxonomy. It has no dependencies on other
internal packages so every component can import it freely.

Model Categories:

 1. Time-Series Inputs:
    - PricePoint / PriceSeries: monthly sale-price history for a property
    - JeonsePoint / JeonseSeries: parallel jeonse (lump-sum deposit) history
    - TransactionRecord: individual sales with days-on-market

 2. District & Industry Profiles:
    - DistrictProfile: aggregate statistics, hourly foot traffic, demographics
    - IndustryProfile: per-industry survival and churn aggregates

 3. Result Records (immutable once produced):
    - InvestmentScore, Forecast, Prediction
    - Explanation, FeatureContribution
    - DistrictCharacteristics, IndustryRecommendation, IntegratedAnalysis

 4. API Models:
    - APIResponse: standard response wrapper
    - APIError: error details
    - Metadata: response metadata (timestamp, query time, cache hit)

 5. Error Taxonomy:
    - Sentinel errors (ErrInsufficientData, ErrNotFound, ...) shared by all
      engine components and mapped to HTTP status codes by the API layer
*/
package models
