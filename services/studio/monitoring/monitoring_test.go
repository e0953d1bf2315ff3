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
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/topherchris420/aqal/pkg/logging"
	"github.com/topherchris420/aqal/services/studio/datatypes"
	"go.uber.org/goleak"
)

// =============================================================================
// Test Helpers
// =============================================================================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	fail   error
}

func (s *recordingSink) Write(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.fail
}

func (s *recordingSink) Ping(context.Context) error { return s.fail }
func (s *recordingSink) Close()                     {}

func quietLogger() *logging.Logger {
	return logging.New(logging.Config{Quiet: true})
}

// =============================================================================
// Error Tracker
// =============================================================================

func TestErrorTracker_CaptureAndQuery(t *testing.T) {
	clock := newFakeClock()
	tr := NewErrorTracker(ErrorTrackerConfig{Clock: clock.Now, Logger: quietLogger(), Environment: "test"})

	id1 := tr.Capture(errors.New("first"), map[string]any{"route": "/v1/profile"})
	id2 := tr.Capture(fmt.Errorf("wrapped: %w", errors.New("second")), nil)
	assert.True(t, strings.HasPrefix(id1, "err_"))
	assert.NotEqual(t, id1, id2)

	errs := tr.Errors(0)
	require.Len(t, errs, 2)
	assert.Equal(t, "wrapped: second", errs[0].Message, "newest first")
	assert.Equal(t, "first", errs[1].Message)
	assert.Equal(t, "test", errs[1].Environment)
	assert.Equal(t, "/v1/profile", errs[1].Context["route"])

	got, ok := tr.ErrorByID(id1)
	require.True(t, ok)
	assert.Equal(t, "*errors.errorString", got.Type)
	_, ok = tr.ErrorByID("err_missing")
	assert.False(t, ok)

	assert.Len(t, tr.Errors(1), 1)

	tr.Clear()
	assert.Empty(t, tr.Errors(10))
}

func TestErrorTracker_Capacity(t *testing.T) {
	tr := NewErrorTracker(ErrorTrackerConfig{Capacity: 3, Logger: quietLogger()})
	for i := range 5 {
		tr.Capture(fmt.Errorf("e%d", i), nil)
	}
	errs := tr.Errors(10)
	require.Len(t, errs, 3)
	assert.Equal(t, "e4", errs[0].Message)
	assert.Equal(t, "e2", errs[2].Message)
}

func TestErrorTracker_Stats(t *testing.T) {
	clock := newFakeClock()
	tr := NewErrorTracker(ErrorTrackerConfig{Clock: clock.Now, Logger: quietLogger()})

	tr.Capture(errors.New("old"), nil)
	clock.Advance(2 * time.Hour)
	tr.Capture(errors.New("recent-1"), nil)
	tr.Capture(errors.New("recent-2"), nil)
	clock.Advance(time.Minute)
	tr.Capture(errors.New("recent-3"), nil)

	stats := tr.Stats()
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.LastHour)
	assert.Equal(t, 4, stats.LastDay)
	assert.InDelta(t, 0.05, stats.ErrorRate, 1e-9)

	clock.Advance(25 * time.Hour)
	stats = tr.Stats()
	assert.Zero(t, stats.LastDay)
	assert.Equal(t, 4, stats.Total)
}

// =============================================================================
// Analytics
// =============================================================================

func TestPerformanceCategory(t *testing.T) {
	assert.Equal(t, "excellent", PerformanceCategory(99))
	assert.Equal(t, "good", PerformanceCategory(100))
	assert.Equal(t, "acceptable", PerformanceCategory(999))
	assert.Equal(t, "poor", PerformanceCategory(1000))
}

func TestAnalytics_TrackAndSnapshot(t *testing.T) {
	clock := newFakeClock()
	sink := &recordingSink{}
	tr := NewErrorTracker(ErrorTrackerConfig{Clock: clock.Now, Logger: quietLogger()})
	a := NewAnalytics(tr, AnalyticsConfig{Sink: sink, Clock: clock.Now, Logger: quietLogger()})
	ctx := context.Background()

	a.TrackPageView(ctx, "/builder", "user_001")
	a.TrackUserAction(ctx, "user_001", "component_added", map[string]any{"component": "achiever"})
	a.TrackPerformance(ctx, "insights_generation", 640, "")
	a.TrackBusinessMetric(ctx, "assessment_completed", 1, nil)
	tr.Capture(errors.New("boom"), nil)

	snap := a.Snapshot()
	require.Len(t, snap.Events, 4)
	assert.Equal(t, EventPageView, snap.Events[0].Type)
	assert.Equal(t, "/builder", snap.Events[0].Name())
	assert.Equal(t, "acceptable", snap.Events[2].Category)
	assert.Equal(t, "ms", snap.Events[2].Unit)
	assert.Equal(t, clock.Now(), snap.Events[3].Timestamp)
	assert.Len(t, snap.Errors, 1)
	assert.Equal(t, 1, snap.ErrorStats.Total)
	assert.Equal(t, Summary{TotalEvents: 4, TotalErrors: 1}, snap.Summary)
	assert.Len(t, sink.events, 4)

	a.Clear()
	snap = a.Snapshot()
	assert.Empty(t, snap.Events)
	assert.Empty(t, snap.Errors)
}

func TestAnalytics_Track(t *testing.T) {
	a := NewAnalytics(nil, AnalyticsConfig{Logger: quietLogger()})
	ctx := context.Background()

	a.Track(ctx, "u1", datatypes.AnalyticsEventRequest{Type: "page_view", Page: "/map"})
	a.Track(ctx, "u1", datatypes.AnalyticsEventRequest{Type: "user_action", Action: "drag"})
	a.Track(ctx, "u1", datatypes.AnalyticsEventRequest{Type: "performance", Metric: "render", Value: 40})
	a.Track(ctx, "u1", datatypes.AnalyticsEventRequest{Type: "business_metric", Event: "pack_installed", Value: 1})

	events := a.Events(10)
	require.Len(t, events, 4)
	assert.Equal(t, "u1", events[0].UserID)
	assert.Equal(t, "drag", events[1].Name())
	assert.Equal(t, "excellent", events[2].Category)
	assert.Equal(t, "pack_installed", events[3].Name())

	snap := a.Snapshot()
	assert.NotNil(t, snap.Errors)
}

func TestAnalytics_CapacityAndSinkFailure(t *testing.T) {
	sink := &recordingSink{fail: errors.New("influx down")}
	a := NewAnalytics(nil, AnalyticsConfig{Capacity: 150, Sink: sink, Logger: quietLogger()})
	for i := range 200 {
		a.TrackPageView(context.Background(), fmt.Sprintf("/p%d", i), "")
	}
	snap := a.Snapshot()
	assert.Equal(t, 150, snap.Summary.TotalEvents)
	require.Len(t, snap.Events, SnapshotEvents)
	assert.Equal(t, "/p199", snap.Events[SnapshotEvents-1].Page)
	assert.Len(t, sink.events, 200, "sink failures do not stop tracking")
}

func TestEventPoint(t *testing.T) {
	ts := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	p := EventPoint(Event{Type: EventPerformance, Metric: "render", Value: 12.5, Unit: "ms", Category: "excellent", Timestamp: ts})

	line := write.PointToLineProtocol(p, time.Nanosecond)
	assert.True(t, strings.HasPrefix(line, EventMeasurement+","), line)
	assert.Contains(t, line, "name=render")
	assert.Contains(t, line, "type=performance")
	assert.Contains(t, line, "category=excellent")
	assert.Contains(t, line, "value=12.5")
	assert.Contains(t, line, fmt.Sprint(ts.UnixNano()))
}

func TestSinkExporter_ForwardsWarningsAndErrors(t *testing.T) {
	sink := &recordingSink{}
	exp := NewSinkExporter(sink, logging.LevelDebug)
	ctx := context.Background()
	ts := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, exp.Export(ctx, logging.LogEntry{Level: logging.LevelInfo, Message: "started"}))
	require.NoError(t, exp.Export(ctx, logging.LogEntry{
		Timestamp: ts,
		Level:     logging.LevelWarn,
		Message:   "store full",
		Service:   "aqal",
		Module:    "storage",
		Attrs:     map[string]any{"evicted": 3},
	}))
	require.NoError(t, exp.Export(ctx, logging.LogEntry{Level: logging.LevelError, Message: "boom"}))

	require.Len(t, sink.events, 2)
	e := sink.events[0]
	assert.Equal(t, EventLog, e.Type)
	assert.Equal(t, "store full", e.Name())
	assert.Equal(t, "WARN", e.Category)
	assert.Equal(t, ts, e.Timestamp)
	assert.Equal(t, "storage", e.Properties["module"])
	assert.Equal(t, 3, e.Properties["evicted"])
	assert.Equal(t, "ERROR", sink.events[1].Category)
	assert.False(t, sink.events[1].Timestamp.IsZero())

	line := write.PointToLineProtocol(EventPoint(e), time.Nanosecond)
	assert.Contains(t, line, "type=log")
	assert.Contains(t, line, "category=WARN")
}

func TestSinkExporter_WriteFailure(t *testing.T) {
	sink := &recordingSink{fail: errors.New("influx down")}
	exp := NewSinkExporter(sink, logging.LevelError)

	err := exp.Export(context.Background(), logging.LogEntry{Level: logging.LevelWarn, Message: "below minimum"})
	require.NoError(t, err)
	err = exp.Export(context.Background(), logging.LogEntry{Level: logging.LevelError, Message: "boom"})
	assert.ErrorContains(t, err, "influx down")
}

func TestSinkExporter_ThroughLogger(t *testing.T) {
	sink := &recordingSink{}
	logger := quietLogger().WithExporter(NewSinkExporter(sink, logging.LevelWarn))

	logger.Module(logging.ModuleStorage).Warn("evicted", "key", "k1")
	logger.Info("ignored")

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.events) == 1
	}, time.Second, 10*time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, "evicted", sink.events[0].Event)
	assert.Equal(t, "k1", sink.events[0].Properties["key"])
}

func TestNewInfluxSink_Validation(t *testing.T) {
	_, err := NewInfluxSink(InfluxConfig{URL: "http://localhost:8086"})
	assert.Error(t, err)

	sink, err := NewInfluxSink(InfluxConfig{URL: "http://localhost:8086", Org: "aqal", Bucket: "events"})
	require.NoError(t, err)
	sink.Close()
}

// =============================================================================
// Health
// =============================================================================

func lowMemory(ms *runtime.MemStats) {
	ms.HeapSys = 100 << 20
	ms.HeapAlloc = 50 << 20
	ms.Sys = 120 << 20
}

func newChecker(cfg HealthConfig) *HealthChecker {
	cfg.Logger = quietLogger()
	if cfg.MemStats == nil {
		cfg.MemStats = lowMemory
	}
	return NewHealthChecker(cfg)
}

func checkOK(context.Context) (bool, error)   { return true, nil }
func checkFail(context.Context) (bool, error) { return false, nil }

func TestHealth_AllHealthy(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newChecker(HealthConfig{Version: "2.0.0"})
	h.Register("storage", true, checkOK)
	h.Register("sessions", false, checkOK)

	r := h.Report(context.Background())
	assert.Equal(t, StatusHealthy, r.Status)
	assert.Equal(t, "2.0.0", r.Version)
	assert.Equal(t, "development", r.Environment)
	require.Len(t, r.Checks, 2)
	assert.True(t, r.Checks["storage"].Critical)
	assert.Equal(t, StatusHealthy, r.Checks["sessions"].Status)
	assert.True(t, r.Memory.Healthy)
	assert.Equal(t, uint64(100), r.Memory.HeapSysMB)
	assert.Equal(t, 20, r.Memory.HeapUtilization)
	assert.True(t, r.Disk.Healthy)
	assert.True(t, r.Application.Healthy)
	assert.Equal(t, runtime.GOOS, r.System.Platform)
}

func TestHealth_Statuses(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("non-critical failure degrades", func(t *testing.T) {
		h := newChecker(HealthConfig{})
		h.Register("storage", true, checkOK)
		h.Register("analytics_sink", false, checkFail)
		assert.Equal(t, StatusDegraded, h.Report(context.Background()).Status)
	})

	t.Run("critical failure is unhealthy", func(t *testing.T) {
		h := newChecker(HealthConfig{})
		h.Register("storage", true, checkFail)
		h.Register("analytics_sink", false, checkFail)
		r := h.Report(context.Background())
		assert.Equal(t, StatusUnhealthy, r.Status)
		assert.Equal(t, StatusUnhealthy, r.Checks["storage"].Status)
	})

	t.Run("memory over threshold is unhealthy", func(t *testing.T) {
		h := newChecker(HealthConfig{MemStats: func(ms *runtime.MemStats) {
			ms.HeapSys = 600 << 20
			ms.HeapAlloc = 100 << 20
		}})
		assert.Equal(t, StatusUnhealthy, h.Report(context.Background()).Status)

		prod := newChecker(HealthConfig{Environment: "production", MemStats: func(ms *runtime.MemStats) {
			ms.HeapSys = 600 << 20
			ms.HeapAlloc = 100 << 20
		}})
		assert.Equal(t, StatusHealthy, prod.Report(context.Background()).Status)
	})

	t.Run("application component down is unhealthy", func(t *testing.T) {
		h := newChecker(HealthConfig{Components: func() map[string]bool {
			return map[string]bool{"insights": false}
		}})
		r := h.Report(context.Background())
		assert.Equal(t, StatusUnhealthy, r.Status)
		assert.False(t, r.Application.Components["insights"])
		assert.True(t, r.Application.Components["routing"])
	})
}

func TestRunCheck_ErrorsAndTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := NewErrorTracker(ErrorTrackerConfig{Logger: quietLogger()})
	a := NewAnalytics(tr, AnalyticsConfig{Logger: quietLogger()})
	h := newChecker(HealthConfig{CheckTimeout: 50 * time.Millisecond, Tracker: tr, Analytics: a})

	r := h.RunCheck(context.Background(), "storage", func(context.Context) (bool, error) {
		return false, errors.New("db closed")
	})
	assert.Equal(t, StatusError, r.Status)
	assert.Equal(t, "db closed", r.Error)
	assert.True(t, strings.HasPrefix(r.ErrorID, "err_"))
	_, found := tr.ErrorByID(r.ErrorID)
	assert.True(t, found)

	release := make(chan struct{})
	r = h.RunCheck(context.Background(), "slow", func(context.Context) (bool, error) {
		<-release
		return true, nil
	})
	close(release)
	assert.Equal(t, StatusError, r.Status)
	assert.Equal(t, ErrCheckTimeout.Error(), r.Error)

	r = h.RunCheck(context.Background(), "fast", checkOK)
	assert.Equal(t, StatusHealthy, r.Status)
	events := a.Events(10)
	require.NotEmpty(t, events)
	assert.Equal(t, "health_check_fast", events[len(events)-1].Metric)
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "0h 0m 0s", formatUptime(0))
	assert.Equal(t, "2h 3m 4s", formatUptime(2*time.Hour+3*time.Minute+4*time.Second))
}

func TestMemoryThresholds(t *testing.T) {
	m, h := MemoryThresholds("production")
	assert.Equal(t, []uint64{1024, 512}, []uint64{m, h})
	m, h = MemoryThresholds("staging")
	assert.Equal(t, []uint64{512, 256}, []uint64{m, h})
}
