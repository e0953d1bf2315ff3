// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package monitoring

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/topherchris420/aqal/pkg/logging"
	"github.com/topherchris420/aqal/services/studio/datatypes"
)

// Analytics buffer sizes.
const (
	DefaultEventCapacity = 1000
	SnapshotEvents       = 100
	SnapshotErrors       = 50
)

// EventType classifies analytics events.
type EventType string

const (
	EventPageView       EventType = "page_view"
	EventUserAction     EventType = "user_action"
	EventPerformance    EventType = "performance"
	EventBusinessMetric EventType = "business_metric"
)

// Event is one analytics event.
type Event struct {
	Type       EventType      `json:"type"`
	UserID     string         `json:"userId,omitempty"`
	Page       string         `json:"page,omitempty"`
	Action     string         `json:"action,omitempty"`
	Metric     string         `json:"metric,omitempty"`
	Event      string         `json:"event,omitempty"`
	Value      float64        `json:"value,omitempty"`
	Unit       string         `json:"unit,omitempty"`
	Category   string         `json:"category,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Name returns the page, action, metric or event name, whichever the
// event type uses.
func (e Event) Name() string {
	switch e.Type {
	case EventPageView:
		return e.Page
	case EventUserAction:
		return e.Action
	case EventPerformance:
		return e.Metric
	}
	return e.Event
}

// Sink forwards analytics events to an external store.
type Sink interface {
	Write(ctx context.Context, e Event) error
	Ping(ctx context.Context) error
	Close()
}

// Summary totals a snapshot.
type Summary struct {
	TotalEvents int `json:"totalEvents"`
	TotalErrors int `json:"totalErrors"`
}

// Snapshot is the admin view of analytics.
type Snapshot struct {
	Events     []Event         `json:"events"`
	Errors     []CapturedError `json:"errors"`
	ErrorStats ErrorStats      `json:"errorStats"`
	Summary    Summary         `json:"summary"`
}

// AnalyticsConfig configures Analytics.
type AnalyticsConfig struct {
	// Capacity bounds the number of kept events. Default: 1000.
	Capacity int

	// Sink is optional.
	Sink Sink

	Clock  func() time.Time
	Logger *logging.Logger
}

// Analytics buffers recent events and forwards them to an optional sink.
//
// # Thread Safety
//
// Safe for concurrent use.
type Analytics struct {
	cfg     AnalyticsConfig
	tracker *ErrorTracker

	mu     sync.RWMutex
	events []Event
}

// NewAnalytics creates an analytics buffer. tracker supplies the error
// half of snapshots and is cleared together with the events.
func NewAnalytics(tracker *ErrorTracker, cfg AnalyticsConfig) *Analytics {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultEventCapacity
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Analytics{cfg: cfg, tracker: tracker}
}

// Sink returns the configured sink or nil.
func (a *Analytics) Sink() Sink { return a.cfg.Sink }

// TrackPageView records a page view.
func (a *Analytics) TrackPageView(ctx context.Context, page, userID string) {
	a.record(ctx, Event{Type: EventPageView, Page: page, UserID: userID})
}

// TrackUserAction records a user action.
func (a *Analytics) TrackUserAction(ctx context.Context, userID, action string, properties map[string]any) {
	a.record(ctx, Event{Type: EventUserAction, UserID: userID, Action: action, Properties: properties})
}

// TrackPerformance records a timing and categorizes it. An empty unit
// means milliseconds.
func (a *Analytics) TrackPerformance(ctx context.Context, metric string, value float64, unit string) {
	if unit == "" {
		unit = "ms"
	}
	category := PerformanceCategory(value)
	a.cfg.Logger.Module(logging.ModulePerformance).Info("performance metric",
		"metric", metric,
		"value", value,
		"unit", unit,
		"category", category,
	)
	a.record(ctx, Event{Type: EventPerformance, Metric: metric, Value: value, Unit: unit, Category: category})
}

// TrackBusinessMetric records a domain event.
func (a *Analytics) TrackBusinessMetric(ctx context.Context, event string, value float64, metadata map[string]any) {
	args := []any{"value", value}
	for k, v := range metadata {
		args = append(args, k, v)
	}
	a.cfg.Logger.Business(event, args...)
	a.record(ctx, Event{Type: EventBusinessMetric, Event: event, Value: value, Properties: metadata})
}

// Track records a client-reported event.
func (a *Analytics) Track(ctx context.Context, userID string, req datatypes.AnalyticsEventRequest) {
	switch EventType(req.Type) {
	case EventPageView:
		a.TrackPageView(ctx, req.Page, userID)
	case EventUserAction:
		a.TrackUserAction(ctx, userID, req.Action, req.Properties)
	case EventPerformance:
		a.TrackPerformance(ctx, req.Metric, req.Value, req.Unit)
	case EventBusinessMetric:
		a.TrackBusinessMetric(ctx, req.Event, req.Value, req.Properties)
	}
}

// PerformanceCategory grades a millisecond value: excellent under 100,
// good under 500, acceptable under 1000, poor otherwise.
func PerformanceCategory(ms float64) string {
	return logging.PerformanceCategory(time.Duration(ms * float64(time.Millisecond)))
}

func (a *Analytics) record(ctx context.Context, e Event) {
	e.Timestamp = a.cfg.Clock().UTC()

	a.mu.Lock()
	a.events = append(a.events, e)
	if over := len(a.events) - a.cfg.Capacity; over > 0 {
		a.events = slices.Delete(a.events, 0, over)
	}
	a.mu.Unlock()

	if a.cfg.Sink != nil {
		if err := a.cfg.Sink.Write(ctx, e); err != nil {
			a.cfg.Logger.Warn("analytics sink write failed",
				"event_type", string(e.Type),
				"error", err,
			)
		}
	}
}

// Events returns up to limit of the most recent events, oldest first.
func (a *Analytics) Events(limit int) []Event {
	a.mu.RLock()
	defer a.mu.RUnlock()
	start := max(0, len(a.events)-limit)
	return slices.Clone(a.events[start:])
}

// Snapshot returns recent events and errors for the admin dashboard.
func (a *Analytics) Snapshot() Snapshot {
	a.mu.RLock()
	total := len(a.events)
	a.mu.RUnlock()

	snap := Snapshot{
		Events: a.Events(SnapshotEvents),
		Errors: []CapturedError{},
	}
	if a.tracker != nil {
		snap.Errors = a.tracker.Errors(SnapshotErrors)
		snap.ErrorStats = a.tracker.Stats()
	}
	snap.Summary = Summary{TotalEvents: total, TotalErrors: len(snap.Errors)}
	return snap
}

// Clear drops all events and captured errors.
func (a *Analytics) Clear() {
	a.mu.Lock()
	a.events = nil
	a.mu.Unlock()
	if a.tracker != nil {
		a.tracker.Clear()
	}
}
