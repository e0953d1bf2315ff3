// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ttl runs the background sweep that removes expired and
// corrupted entries from the studio's key-value store.
package ttl

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/topherchris420/aqal/pkg/logging"
	"github.com/topherchris420/aqal/services/storage/kvstore"
)

// ErrAlreadyRunning is returned by Start on a running scheduler.
var ErrAlreadyRunning = errors.New("scheduler is already running")

// DefaultInterval is the sweep interval when none is configured.
const DefaultInterval = time.Hour

// =============================================================================
// Dependencies
// =============================================================================

// Sweeper removes expired entries. Implemented by kvstore.Store.
type Sweeper interface {
	Cleanup(ctx context.Context) (kvstore.CleanupResult, error)
}

// SessionCounter reports live sessions after a sweep. Implemented by
// auth.Service.
type SessionCounter interface {
	ActiveSessions(ctx context.Context) (int, error)
}

// Metrics receives sweep outcomes. Implemented by observability.Metrics.
type Metrics interface {
	RecordSweep(removed int, success bool)
	SetActiveSessions(n int)
}

// =============================================================================
// Scheduler
// =============================================================================

// Config configures a Scheduler.
//
// # Fields
//
//   - Interval: Time between sweeps. Default: 1 hour.
//   - Sessions: Optional. Refreshes the active session gauge.
//   - Metrics: Optional.
//   - Log: Optional hash-chained audit log of every sweep.
//   - Logger: Structured logger. Default: logging.Default().
type Config struct {
	Interval time.Duration
	Sessions SessionCounter
	Metrics  Metrics
	Log      *SweepLog
	Logger   *logging.Logger
	Clock    func() time.Time
}

// Result summarizes one sweep.
type Result struct {
	kvstore.CleanupResult
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Sessions  int       `json:"activeSessions"`
}

// Duration is the sweep's wall time.
func (r Result) Duration() time.Duration { return r.EndTime.Sub(r.StartTime) }

// Scheduler sweeps the store on a ticker.
//
// # Description
//
// Start runs one sweep immediately and then one per interval until Stop
// is called or the context is cancelled. Sweep errors are logged and
// recorded; they never stop the scheduler.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Stop waits for an in-flight
// sweep to finish.
type Scheduler struct {
	sweeper Sweeper
	cfg     Config
	log     *logging.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(sweeper Sweeper, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Scheduler{
		sweeper: sweeper,
		cfg:     cfg,
		log:     cfg.Logger.Module(logging.ModuleStorage),
	}
}

// Start launches the background loop.
//
// # Outputs
//
//   - error: ErrAlreadyRunning if Start was called without Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.done = make(chan struct{})

	s.log.Info("TTL sweep scheduler starting", "interval", s.cfg.Interval.String())

	s.wg.Add(1)
	go s.runLoop(ctx, s.done)
	return nil
}

// Stop signals the loop and waits for it to exit. Safe to call more than
// once.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	close(s.done)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("TTL sweep scheduler stopped")
	return nil
}

// RunNow sweeps immediately, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) (Result, error) {
	return s.sweep(ctx, "manual")
}

func (s *Scheduler) runLoop(ctx context.Context, done <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	_, _ = s.sweep(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			_, _ = s.sweep(ctx, "scheduled")
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context, trigger string) (Result, error) {
	res := Result{StartTime: s.cfg.Clock()}
	cleaned, err := s.sweeper.Cleanup(ctx)
	res.CleanupResult = cleaned
	res.EndTime = s.cfg.Clock()

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordSweep(cleaned.Removed(), err == nil)
	}
	if err == nil && s.cfg.Sessions != nil {
		if n, serr := s.cfg.Sessions.ActiveSessions(ctx); serr == nil {
			res.Sessions = n
			if s.cfg.Metrics != nil {
				s.cfg.Metrics.SetActiveSessions(n)
			}
		} else {
			s.log.Warn("failed to count active sessions", "error", serr)
		}
	}

	switch {
	case err != nil:
		s.log.Error("TTL sweep failed", "trigger", trigger, "error", err)
	case cleaned.Removed() > 0:
		s.log.Info("TTL sweep completed",
			"trigger", trigger,
			"scanned", cleaned.Scanned,
			"expired", cleaned.Expired,
			"corrupted", cleaned.Corrupted,
			"duration_ms", res.Duration().Milliseconds(),
		)
	default:
		s.log.Debug("TTL sweep completed (nothing to remove)", "trigger", trigger, "scanned", cleaned.Scanned)
	}

	if s.cfg.Log != nil {
		rec := SweepRecord{
			Timestamp:  res.StartTime.UTC().Format(time.RFC3339Nano),
			Trigger:    trigger,
			Scanned:    cleaned.Scanned,
			Expired:    cleaned.Expired,
			Corrupted:  cleaned.Corrupted,
			DurationMs: res.Duration().Milliseconds(),
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if _, lerr := s.cfg.Log.Append(rec); lerr != nil {
			s.log.Warn("failed to append sweep audit record", "error", lerr)
		}
	}
	return res, err
}
