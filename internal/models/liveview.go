// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package models

import (
	"time"

	"github.com/tomtom215/tideline/internal/docstore"
)

// Sample document field names.
const (
	FieldUsage     = "usage"
	FieldCost      = "cost"
	FieldFlowRate  = "flowRate"
	FieldPressure  = "pressure"
	FieldTimestamp = "timestamp"
)

// TimeSeriesSample is one immutable measurement owned by an account.
type TimeSeriesSample struct {
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Usage     float64   `json:"usage"`
	Cost      float64   `json:"cost"`
	FlowRate  float64   `json:"flowRate"`
	Pressure  float64   `json:"pressure"`
}

// SampleFromDocument converts a stored sample; missing measurements read as 0.
func SampleFromDocument(doc docstore.Document) TimeSeriesSample {
	f := doc.Fields
	s := TimeSeriesSample{
		ID:        doc.ID,
		Timestamp: f.Time(FieldTimestamp),
		Usage:     f.Float(FieldUsage),
		Cost:      f.Float(FieldCost),
		FlowRate:  f.Float(FieldFlowRate),
		Pressure:  f.Float(FieldPressure),
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = doc.CreateTime
	}
	return s
}

// ZeroSample is the synthesized sample used when an account has no readings.
func ZeroSample(now time.Time) TimeSeriesSample {
	return TimeSeriesSample{Timestamp: now}
}

// ValveState is the derived flow state of an account's meter.
type ValveState string

// Valve states.
const (
	ValveOpen   ValveState = "open"
	ValveClosed ValveState = "closed"
)

// ValveStateFor derives the valve state from the current flow rate.
func ValveStateFor(flowRate float64) ValveState {
	if flowRate > 0 {
		return ValveOpen
	}
	return ValveClosed
}

// LiveView is the derived, never-persisted aggregate of one account, its most
// recent sample and rollups over the recent window. Every numeric field is
// always populated; absent data reads as zero.
type LiveView struct {
	AccountProfile

	CurrentSample        TimeSeriesSample `json:"currentSample"`
	TotalUsage           float64          `json:"totalUsage"`
	AverageDailyUsage    float64          `json:"averageDailyUsage"`
	EstimatedMonthlyBill float64          `json:"estimatedMonthlyBill"`
	WindowSize           int              `json:"windowSize"`
	ImageURL             string           `json:"imageUrl"`
	ValveState           ValveState       `json:"valveState"`
	UnreadAlerts         int              `json:"unreadAlerts"`
	ComputedAt           time.Time        `json:"computedAt"`
}

// LiveViews is a complete snapshot of live views, in feed order.
type LiveViews []LiveView

// Find returns the view with the given account ID. Callers holding a
// "currently selected" pointer refresh it from each new snapshot with Find.
func (v LiveViews) Find(id string) (LiveView, bool) {
	for i := range v {
		if v[i].ID == id {
			return v[i], true
		}
	}
	return LiveView{}, false
}

// IDs returns the account IDs in snapshot order.
func (v LiveViews) IDs() []string {
	out := make([]string, len(v))
	for i := range v {
		out[i] = v[i].ID
	}
	return out
}
