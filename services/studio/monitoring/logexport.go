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
	"fmt"
	"time"

	"github.com/topherchris420/aqal/pkg/logging"
)

// EventLog marks log records forwarded to the analytics sink.
const EventLog EventType = "log"

// SinkExporter is a logging.LogExporter that forwards warnings and errors
// to an analytics Sink as EventLog events.
//
// # Description
//
// Records below MinLevel are dropped. The event name is the log message,
// the category is the level and the module is kept as a property. A
// failed write is returned to the logger, which discards it, so a broken
// sink never produces more log records.
//
// # Thread Safety
//
// Safe for concurrent use if the Sink is.
type SinkExporter struct {
	sink     Sink
	minLevel logging.Level
}

// NewSinkExporter creates an exporter. minLevel below LevelWarn is raised
// to LevelWarn.
func NewSinkExporter(sink Sink, minLevel logging.Level) *SinkExporter {
	return &SinkExporter{sink: sink, minLevel: max(minLevel, logging.LevelWarn)}
}

// Export writes entry to the sink when it is at or above the minimum level.
func (e *SinkExporter) Export(ctx context.Context, entry logging.LogEntry) error {
	if entry.Level < e.minLevel {
		return nil
	}
	if err := e.sink.Write(ctx, LogEvent(entry)); err != nil {
		return fmt.Errorf("export log record: %w", err)
	}
	return nil
}

// Flush is a no-op; every Export writes synchronously.
func (e *SinkExporter) Flush(ctx context.Context) error { return nil }

// Close is a no-op. The sink is owned and closed by the service.
func (e *SinkExporter) Close() error { return nil }

// LogEvent converts a log record into an analytics event.
func LogEvent(entry logging.LogEntry) Event {
	props := make(map[string]any, len(entry.Attrs)+2)
	for k, v := range entry.Attrs {
		props[k] = v
	}
	if entry.Module != "" {
		props["module"] = entry.Module
	}
	if entry.Service != "" {
		props["service"] = entry.Service
	}
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Event{
		Type:       EventLog,
		Event:      entry.Message,
		Category:   entry.Level.String(),
		Value:      1,
		Properties: props,
		Timestamp:  ts,
	}
}

var _ logging.LogExporter = (*SinkExporter)(nil)
