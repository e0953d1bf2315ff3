// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package insight_engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/topherchris420/aqal/pkg/logging"
	"github.com/topherchris420/aqal/services/insight_engine/knowledge"
)

// DefaultReloadDebounce is how long the watcher waits for writes to
// settle before reparsing the file.
const DefaultReloadDebounce = 200 * time.Millisecond

// KnowledgeWatcher reloads an external knowledge base file into an engine
// whenever the file changes.
//
// # Description
//
// The parent directory is watched rather than the file itself, so editors
// that save by renaming a temp file over the original are still seen.
// Events for other files are ignored. Bursts of events are collapsed with
// a debounce window. A file that fails to parse is logged and the engine
// keeps its previous knowledge base.
//
// # Thread Safety
//
// Start and Stop may be called from any goroutine. Reloads happen on a
// single background goroutine.
type KnowledgeWatcher struct {
	path     string
	engine   *Engine
	logger   *logging.Logger
	debounce time.Duration

	watcher  *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	// OnReload, when set, is called after every reload attempt.
	OnReload func(err error)
}

// NewKnowledgeWatcher loads path into the engine once and prepares a
// watcher for it. Call Start to begin watching.
func NewKnowledgeWatcher(path string, engine *Engine, logger *logging.Logger) (*KnowledgeWatcher, error) {
	if logger == nil {
		logger = logging.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve knowledge base path: %w", err)
	}

	kb, err := knowledge.LoadFile(abs)
	if err != nil {
		return nil, err
	}
	engine.SetKnowledgeBase(kb)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &KnowledgeWatcher{
		path:     abs,
		engine:   engine,
		logger:   logger,
		debounce: DefaultReloadDebounce,
		watcher:  fw,
		done:     make(chan struct{}),
	}, nil
}

// SetDebounce changes the debounce window. Call before Start.
func (w *KnowledgeWatcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Start begins watching in the background until ctx is cancelled or Stop
// is called.
func (w *KnowledgeWatcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop ends watching and waits for the background goroutine to exit.
func (w *KnowledgeWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
	w.wg.Wait()
}

func (w *KnowledgeWatcher) loop(ctx context.Context) {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Knowledge base watcher error", "error", err)
		case <-timerC:
			timer, timerC = nil, nil
			w.reload()
		}
	}
}

func (w *KnowledgeWatcher) reload() {
	kb, err := knowledge.LoadFile(w.path)
	if err != nil {
		w.logger.CaptureError(err, "operation", "knowledge_reload", "path", w.path)
	} else {
		w.engine.SetKnowledgeBase(kb)
		w.logger.Info("Knowledge base reloaded",
			"path", w.path,
			"ego_stages", len(kb.EgoStages),
			"spiral_tiers", len(kb.SpiralTiers),
			"lines", len(kb.DevelopmentLines),
		)
	}
	if w.OnReload != nil {
		w.OnReload(err)
	}
}
