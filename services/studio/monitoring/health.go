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
	"math"
	"os"
	"runtime"
	"time"

	"github.com/topherchris420/aqal/pkg/logging"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// Types
// =============================================================================

// Status is a health state.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusError     Status = "error"
)

// Health check timeouts.
const (
	DefaultCheckTimeout  = 5 * time.Second
	DefaultReportTimeout = 10 * time.Second
)

// ErrCheckTimeout is reported when a check does not finish in time.
var ErrCheckTimeout = errors.New("health check timeout")

// CheckFunc reports whether a dependency is healthy. A returned error is
// reported as status "error".
type CheckFunc func(ctx context.Context) (bool, error)

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	Critical   bool      `json:"critical"`
	DurationMs int64     `json:"duration"`
	Error      string    `json:"error,omitempty"`
	ErrorID    string    `json:"errorId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Healthy reports whether the check passed.
func (r CheckResult) Healthy() bool { return r.Status == StatusHealthy }

// MemoryReport compares heap figures against thresholds in MB.
type MemoryReport struct {
	HeapSysMB         uint64 `json:"heapSysMB"`
	HeapAllocMB       uint64 `json:"heapAllocMB"`
	SysMB             uint64 `json:"sysMB"`
	MemoryThresholdMB uint64 `json:"memoryThresholdMB"`
	HeapThresholdMB   uint64 `json:"heapThresholdMB"`
	MemoryUtilization int    `json:"memoryUtilization"`
	HeapUtilization   int    `json:"heapUtilization"`
	Healthy           bool   `json:"healthy"`
}

// DiskReport describes the data directory. Disk never fails the report.
type DiskReport struct {
	Available bool   `json:"available"`
	Healthy   bool   `json:"healthy"`
	Message   string `json:"message"`
}

// ApplicationReport lists in-process components.
type ApplicationReport struct {
	Components     map[string]bool `json:"components"`
	ResponseTimeMs float64         `json:"responseTime"`
	Healthy        bool            `json:"healthy"`
}

// SystemReport describes the running process.
type SystemReport struct {
	GoVersion  string `json:"goVersion"`
	Platform   string `json:"platform"`
	Arch       string `json:"arch"`
	PID        int    `json:"pid"`
	Goroutines int    `json:"goroutines"`
}

// Report is the full health response.
type Report struct {
	Status      Status                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Uptime      string                 `json:"uptime"`
	Version     string                 `json:"version"`
	Environment string                 `json:"environment"`
	BuildID     string                 `json:"buildId"`
	BuildTime   string                 `json:"buildTime"`
	Checks      map[string]CheckResult `json:"checks"`
	Memory      MemoryReport           `json:"memory"`
	Disk        DiskReport             `json:"disk"`
	Application ApplicationReport      `json:"application"`
	Duration    time.Duration          `json:"-"`
	DurationMs  int64                  `json:"healthCheckDuration"`
	System      SystemReport           `json:"system"`
}

// =============================================================================
// Health Checker
// =============================================================================

// HealthConfig configures a HealthChecker.
type HealthConfig struct {
	Version     string
	Environment string
	BuildID     string
	BuildTime   string

	// DataDir is stat'ed for the disk report. Empty means in-memory.
	DataDir string

	// CheckTimeout bounds each check. Default: 5s.
	CheckTimeout time.Duration

	// ReportTimeout bounds the whole report. Default: 10s.
	ReportTimeout time.Duration

	// Components are reported under application. All must be true for
	// the application to be healthy.
	Components func() map[string]bool

	// MemStats reads memory statistics. Default: runtime.ReadMemStats.
	MemStats func(*runtime.MemStats)

	Clock     func() time.Time
	Logger    *logging.Logger
	Tracker   *ErrorTracker
	Analytics *Analytics
}

type check struct {
	name     string
	critical bool
	fn       CheckFunc
}

// HealthChecker runs registered dependency checks in parallel and
// combines them with memory, disk and application reports.
//
// # Thread Safety
//
// Register before serving; Report is safe for concurrent use.
type HealthChecker struct {
	cfg     HealthConfig
	checks  []check
	started time.Time
}

// NewHealthChecker creates a checker.
func NewHealthChecker(cfg HealthConfig) *HealthChecker {
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.BuildID == "" {
		cfg.BuildID = "unknown"
	}
	if cfg.BuildTime == "" {
		cfg.BuildTime = "unknown"
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = DefaultCheckTimeout
	}
	if cfg.ReportTimeout <= 0 {
		cfg.ReportTimeout = DefaultReportTimeout
	}
	if cfg.MemStats == nil {
		cfg.MemStats = runtime.ReadMemStats
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &HealthChecker{cfg: cfg, started: cfg.Clock()}
}

// Register adds a dependency check. A failed critical check makes the
// service unhealthy; a failed non-critical check makes it degraded.
func (h *HealthChecker) Register(name string, critical bool, fn CheckFunc) {
	h.checks = append(h.checks, check{name: name, critical: critical, fn: fn})
}

// RunCheck runs fn under the check timeout.
//
// # Description
//
// fn runs in its own goroutine so a check that ignores its context
// still times out. Errors are captured by the tracker and the duration
// is recorded as a performance metric named health_check_<name>.
func (h *HealthChecker) RunCheck(ctx context.Context, name string, fn CheckFunc) CheckResult {
	start := h.cfg.Clock()
	ctx, cancel := context.WithTimeout(ctx, h.cfg.CheckTimeout)
	defer cancel()

	type outcome struct {
		ok  bool
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		ok, err := fn(ctx)
		done <- outcome{ok, err}
	}()

	var res outcome
	select {
	case res = <-done:
	case <-ctx.Done():
		res = outcome{err: ErrCheckTimeout}
	}

	result := CheckResult{Name: name, Timestamp: h.cfg.Clock().UTC()}
	if res.err != nil {
		result.Status = StatusError
		result.Error = res.err.Error()
		if h.cfg.Tracker != nil {
			result.ErrorID = h.cfg.Tracker.Capture(res.err, map[string]any{"health_check": name})
		}
		return result
	}

	elapsed := h.cfg.Clock().Sub(start)
	result.DurationMs = elapsed.Milliseconds()
	result.Status = StatusUnhealthy
	if res.ok {
		result.Status = StatusHealthy
	}
	if h.cfg.Analytics != nil {
		h.cfg.Analytics.TrackPerformance(ctx, "health_check_"+name, float64(result.DurationMs), "ms")
	}
	return result
}

// Report runs every check and computes the overall status.
func (h *HealthChecker) Report(ctx context.Context) Report {
	start := h.cfg.Clock()
	ctx, cancel := context.WithTimeout(ctx, h.cfg.ReportTimeout)
	defer cancel()

	results := make([]CheckResult, len(h.checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range h.checks {
		g.Go(func() error {
			r := h.RunCheck(gctx, c.name, c.fn)
			r.Critical = c.critical
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:      StatusHealthy,
		Timestamp:   h.cfg.Clock().UTC(),
		Uptime:      formatUptime(h.cfg.Clock().Sub(h.started)),
		Version:     h.cfg.Version,
		Environment: h.cfg.Environment,
		BuildID:     h.cfg.BuildID,
		BuildTime:   h.cfg.BuildTime,
		Checks:      make(map[string]CheckResult, len(results)),
		Memory:      h.memory(),
		Disk:        h.disk(),
		Application: h.application(),
		System: SystemReport{
			GoVersion:  runtime.Version(),
			Platform:   runtime.GOOS,
			Arch:       runtime.GOARCH,
			PID:        os.Getpid(),
			Goroutines: runtime.NumGoroutine(),
		},
	}

	criticalOK := report.Memory.Healthy && report.Application.Healthy
	nonCriticalOK := true
	for _, r := range results {
		report.Checks[r.Name] = r
		switch {
		case r.Healthy():
		case r.Critical:
			criticalOK = false
		default:
			nonCriticalOK = false
		}
	}
	switch {
	case !criticalOK:
		report.Status = StatusUnhealthy
	case !nonCriticalOK:
		report.Status = StatusDegraded
	}

	report.Duration = h.cfg.Clock().Sub(start)
	report.DurationMs = report.Duration.Milliseconds()

	level := logging.LevelInfo
	if report.Status != StatusHealthy {
		level = logging.LevelWarn
	}
	h.cfg.Logger.Log(ctx, level, "Health Check Completed",
		"status", string(report.Status),
		"duration_ms", report.DurationMs,
	)
	return report
}

// MemoryThresholds returns the heap-sys and heap-alloc limits in MB for
// an environment.
func MemoryThresholds(environment string) (memoryMB, heapMB uint64) {
	if environment == "production" {
		return 1024, 512
	}
	return 512, 256
}

func (h *HealthChecker) memory() MemoryReport {
	var ms runtime.MemStats
	h.cfg.MemStats(&ms)
	memLimit, heapLimit := MemoryThresholds(h.cfg.Environment)

	r := MemoryReport{
		HeapSysMB:         toMB(ms.HeapSys),
		HeapAllocMB:       toMB(ms.HeapAlloc),
		SysMB:             toMB(ms.Sys),
		MemoryThresholdMB: memLimit,
		HeapThresholdMB:   heapLimit,
	}
	r.MemoryUtilization = percent(r.HeapSysMB, memLimit)
	r.HeapUtilization = percent(r.HeapAllocMB, heapLimit)
	r.Healthy = r.HeapSysMB < memLimit && r.HeapAllocMB < heapLimit
	return r
}

func toMB(b uint64) uint64 {
	return uint64(math.Round(float64(b) / 1024 / 1024))
}

func percent(v, limit uint64) int {
	return int(math.Round(float64(v) / float64(limit) * 100))
}

func (h *HealthChecker) disk() DiskReport {
	if h.cfg.DataDir == "" {
		return DiskReport{Available: false, Healthy: true, Message: "in-memory storage; no data directory"}
	}
	if _, err := os.Stat(h.cfg.DataDir); err != nil {
		return DiskReport{Available: false, Healthy: true, Message: "data directory not available"}
	}
	return DiskReport{Available: true, Healthy: true, Message: "disk space check not implemented"}
}

func (h *HealthChecker) application() ApplicationReport {
	start := time.Now()
	components := map[string]bool{"routing": true, "api": true}
	if h.cfg.Components != nil {
		for k, v := range h.cfg.Components() {
			components[k] = v
		}
	}
	healthy := true
	for _, ok := range components {
		healthy = healthy && ok
	}
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	return ApplicationReport{
		Components:     components,
		ResponseTimeMs: math.Round(elapsed*100) / 100,
		Healthy:        healthy,
	}
}

func formatUptime(d time.Duration) string {
	s := int64(d.Seconds())
	return fmt.Sprintf("%dh %dm %ds", s/3600, (s%3600)/60, s%60)
}
