// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Modules
// =============================================================================

// Module names a subsystem for child loggers.
type Module string

const (
	ModuleAuth        Module = "auth"
	ModuleAPI         Module = "api"
	ModuleStorage     Module = "storage"
	ModuleCache       Module = "cache"
	ModuleSecurity    Module = "security"
	ModulePerformance Module = "performance"
)

// Module returns a child logger tagged with the given module name.
func (l *Logger) Module(m Module) *Logger {
	child := l.With("module", string(m))
	child.module = string(m)
	return child
}

// =============================================================================
// Event IDs
// =============================================================================

// NewEventID returns an identifier of the form "<prefix>_<unix-ms>_<9 chars>".
//
// Prefixes in use: "err" (captured errors), "evt" (business events),
// "sec" (security events).
func NewEventID(prefix string) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), random)
}

// =============================================================================
// Performance
// =============================================================================

// PerformanceCategory classifies how long an operation took.
//
// # Description
//
// Thresholds: under 100ms is "excellent", under 500ms "good",
// under 1000ms "acceptable", anything slower "poor".
func PerformanceCategory(d time.Duration) string {
	switch ms := d.Milliseconds(); {
	case ms < 100:
		return "excellent"
	case ms < 500:
		return "good"
	case ms < 1000:
		return "acceptable"
	default:
		return "poor"
	}
}

// RequestSpeed classifies an HTTP request duration as "fast" (under
// 100ms), "normal" (under 500ms) or "slow".
func RequestSpeed(d time.Duration) string {
	switch ms := d.Milliseconds(); {
	case ms < 100:
		return "fast"
	case ms < 500:
		return "normal"
	default:
		return "slow"
	}
}

// SlowRequestThreshold is the duration above which a request is
// reported on the performance module at Warn.
const SlowRequestThreshold = time.Second

// Performance records the duration of a named operation.
//
// The level scales with the duration: Warn above one second, Info above
// 500ms, Debug otherwise.
func (l *Logger) Performance(operation string, d time.Duration, args ...any) {
	level := LevelDebug
	switch {
	case d > time.Second:
		level = LevelWarn
	case d > 500*time.Millisecond:
		level = LevelInfo
	}
	attrs := append([]any{
		"operation", operation,
		"duration_ms", d.Milliseconds(),
		"performance_category", PerformanceCategory(d),
	}, args...)
	l.Module(ModulePerformance).Log(context.Background(), level, "Performance Metric", attrs...)
}

// =============================================================================
// Security, Business, Error
// =============================================================================

// Severity grades security events.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Security logs a security event and returns its ID.
//
// Critical events log at Error, high at Warn, everything else at Info.
func (l *Logger) Security(event string, severity Severity, args ...any) string {
	level := LevelInfo
	switch severity {
	case SeverityCritical:
		level = LevelError
	case SeverityHigh:
		level = LevelWarn
	}
	id := NewEventID("sec")
	attrs := append([]any{"event", event, "severity", string(severity)}, args...)
	attrs = append(attrs, "security_event_id", id)
	l.Module(ModuleSecurity).Log(context.Background(), level, "Security Event", attrs...)
	return id
}

// Business logs a domain event (sign-in, assessment completed, pack
// installed) and returns its ID.
func (l *Logger) Business(event string, args ...any) string {
	id := NewEventID("evt")
	attrs := append([]any{"event", event}, args...)
	attrs = append(attrs, "event_id", id)
	l.Info("Business Event", attrs...)
	return id
}

// CaptureError logs an application error with a fresh error ID and
// returns the ID so it can be surfaced to the caller.
func (l *Logger) CaptureError(err error, args ...any) string {
	id := NewEventID("err")
	msg := "<nil>"
	if err != nil {
		msg = err.Error()
	}
	attrs := append([]any{"error", msg, "error_type", fmt.Sprintf("%T", err)}, args...)
	attrs = append(attrs, "error_id", id)
	l.Error("Application Error", attrs...)
	return id
}
