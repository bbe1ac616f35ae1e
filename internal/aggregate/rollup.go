// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package aggregate

import "github.com/tomtom215/tideline/internal/models"

// BillingPeriod is the number of units the observed window is scaled to when
// projecting the monthly bill.
const BillingPeriod = 30

// Rollup holds the aggregates computed over a sample window.
type Rollup struct {
	TotalUsage           float64
	AverageDailyUsage    float64
	EstimatedMonthlyBill float64
	WindowSize           int
}

// ComputeRollup aggregates a sample window:
//
//	totalUsage           = Σ usage
//	averageDailyUsage    = totalUsage / max(1, n)
//	estimatedMonthlyBill = Σ cost × (30 / n), or 0 when n == 0
//
// The bill scales whatever window was observed to 30 units regardless of the
// calendar days it covers.
func ComputeRollup(window []models.TimeSeriesSample) Rollup {
	n := len(window)
	var totalUsage, totalCost float64
	for _, s := range window {
		totalUsage += s.Usage
		totalCost += s.Cost
	}

	r := Rollup{TotalUsage: totalUsage, WindowSize: n}
	r.AverageDailyUsage = totalUsage / float64(max(1, n))
	if n > 0 {
		r.EstimatedMonthlyBill = totalCost * (BillingPeriod / float64(n))
	}
	return r
}
