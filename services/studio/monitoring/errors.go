// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package monitoring holds the studio's in-process error tracker,
// analytics buffer and health checks.
package monitoring

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/topherchris420/aqal/pkg/logging"
)

// DefaultErrorCapacity is how many captured errors are kept.
const DefaultErrorCapacity = 1000

// DefaultErrorLimit is used by Errors when limit is not positive.
const DefaultErrorLimit = 50

// CapturedError is one tracked application error.
type CapturedError struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Type        string         `json:"type"`
	Message     string         `json:"message"`
	Context     map[string]any `json:"context,omitempty"`
	Environment string         `json:"environment"`
}

// ErrorStats summarizes recent errors. ErrorRate is errors per minute
// over the last hour.
type ErrorStats struct {
	Total     int     `json:"total"`
	LastHour  int     `json:"lastHour"`
	LastDay   int     `json:"lastDay"`
	ErrorRate float64 `json:"errorRate"`
}

// ErrorTrackerConfig configures an ErrorTracker.
type ErrorTrackerConfig struct {
	// Capacity bounds the number of kept errors. Default: 1000.
	Capacity int

	// Environment is recorded with every error. Default: "development".
	Environment string

	Clock  func() time.Time
	Logger *logging.Logger
}

// ErrorTracker keeps the most recent application errors in memory.
//
// # Thread Safety
//
// Safe for concurrent use.
type ErrorTracker struct {
	cfg ErrorTrackerConfig

	mu     sync.RWMutex
	errors []CapturedError
}

// NewErrorTracker creates a tracker.
func NewErrorTracker(cfg ErrorTrackerConfig) *ErrorTracker {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultErrorCapacity
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &ErrorTracker{cfg: cfg}
}

// Capture logs err and records it. It returns the error ID.
func (t *ErrorTracker) Capture(err error, context map[string]any) string {
	args := make([]any, 0, len(context)*2)
	for _, k := range slices.Sorted(maps.Keys(context)) {
		args = append(args, k, context[k])
	}
	id := t.cfg.Logger.CaptureError(err, args...)

	entry := CapturedError{
		ID:          id,
		Timestamp:   t.cfg.Clock().UTC(),
		Type:        fmt.Sprintf("%T", err),
		Message:     "<nil>",
		Context:     maps.Clone(context),
		Environment: t.cfg.Environment,
	}
	if err != nil {
		entry.Message = err.Error()
	}

	t.mu.Lock()
	t.errors = append(t.errors, entry)
	if over := len(t.errors) - t.cfg.Capacity; over > 0 {
		t.errors = slices.Delete(t.errors, 0, over)
	}
	t.mu.Unlock()
	return id
}

// Errors returns up to limit errors, newest first.
func (t *ErrorTracker) Errors(limit int) []CapturedError {
	if limit <= 0 {
		limit = DefaultErrorLimit
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := min(limit, len(t.errors))
	out := make([]CapturedError, 0, n)
	for i := len(t.errors) - 1; i >= len(t.errors)-n; i-- {
		out = append(out, t.errors[i])
	}
	return out
}

// ErrorByID looks up a captured error.
func (t *ErrorTracker) ErrorByID(id string) (CapturedError, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.errors {
		if e.ID == id {
			return e, true
		}
	}
	return CapturedError{}, false
}

// Clear drops every captured error.
func (t *ErrorTracker) Clear() {
	t.mu.Lock()
	t.errors = nil
	t.mu.Unlock()
}

// Stats counts errors in the last hour and day.
func (t *ErrorTracker) Stats() ErrorStats {
	now := t.cfg.Clock()
	hourAgo := now.Add(-time.Hour)
	dayAgo := now.Add(-24 * time.Hour)

	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := ErrorStats{Total: len(t.errors)}
	for _, e := range t.errors {
		if e.Timestamp.After(hourAgo) {
			stats.LastHour++
		}
		if e.Timestamp.After(dayAgo) {
			stats.LastDay++
		}
	}
	stats.ErrorRate = float64(stats.LastHour) / 60
	return stats
}
