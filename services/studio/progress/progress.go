// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package progress tracks practice of individual components: journal
// entries, levels, milestones and trends.
package progress

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/topherchris420/aqal/services/studio/catalog"
	"github.com/topherchris420/aqal/services/studio/datatypes"
)

// TrendThreshold is the minimum change in mean level that counts as
// improving or declining.
const TrendThreshold = 0.5

// Tracker creates and updates progress records.
type Tracker struct {
	catalog *catalog.Catalog
	now     func() time.Time
}

// NewTracker returns a tracker using cat for milestone templates. A nil
// now uses time.Now.
func NewTracker(cat *catalog.Catalog, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{catalog: cat, now: now}
}

// Initialize starts tracking a component at level 1 with its milestone
// template.
func (t *Tracker) Initialize(componentID string) datatypes.ComponentProgress {
	now := t.now().UTC()
	return datatypes.ComponentProgress{
		ComponentID:  componentID,
		CurrentLevel: 1,
		Entries:      []datatypes.ProgressEntry{},
		Milestones:   t.catalog.MilestonesFor(componentID),
		StartDate:    now,
		LastUpdated:  now,
	}
}

// AddEntry records a journal entry.
//
// # Description
//
// Blank practices, challenges and insights are dropped. The entry is
// prepended so entries stay newest first. Every unachieved milestone at
// or below the entry's level is marked achieved. Records created before
// milestones existed get the template first.
//
// # Outputs
//
//   - datatypes.ComponentProgress: The updated record (a copy).
//   - datatypes.ProgressEntry: The stored entry.
//   - []datatypes.Milestone: Milestones achieved by this entry.
func (t *Tracker) AddEntry(p datatypes.ComponentProgress, req datatypes.ProgressEntryRequest) (datatypes.ComponentProgress, datatypes.ProgressEntry, []datatypes.Milestone) {
	now := t.now().UTC()
	entry := datatypes.ProgressEntry{
		ID:         uuid.NewString(),
		Date:       now,
		Level:      req.Level,
		Reflection: req.Reflection,
		Milestone:  req.Milestone,
		Practices:  nonBlank(req.Practices),
		Challenges: nonBlank(req.Challenges),
		Insights:   nonBlank(req.Insights),
		Hours:      req.Hours,
	}

	out := p
	if out.StartDate.IsZero() {
		out.StartDate = now
	}
	milestones := slices.Clone(p.Milestones)
	if len(milestones) == 0 {
		milestones = t.catalog.MilestonesFor(p.ComponentID)
	}

	var achieved []datatypes.Milestone
	for i, m := range milestones {
		if !m.Achieved && req.Level >= m.Level {
			date := now
			milestones[i].Achieved = true
			milestones[i].AchievedDate = &date
			achieved = append(achieved, milestones[i])
		}
	}

	out.Entries = append([]datatypes.ProgressEntry{entry}, p.Entries...)
	out.Milestones = milestones
	out.CurrentLevel = req.Level
	out.TotalPracticeHours += req.Hours
	out.LastUpdated = now
	return out, entry, achieved
}

func nonBlank(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// Trend compares the last three entries with the three before them.
//
// Fewer than two entries is stable. When there are no older entries the
// recent mean is compared with itself.
func Trend(p datatypes.ComponentProgress) datatypes.Trend {
	if len(p.Entries) < 2 {
		return datatypes.TrendStable
	}
	recent := meanLevel(p.Entries[:min(3, len(p.Entries))])
	older := recent
	if len(p.Entries) > 3 {
		older = meanLevel(p.Entries[3:min(6, len(p.Entries))])
	}

	switch {
	case recent > older+TrendThreshold:
		return datatypes.TrendImproving
	case recent < older-TrendThreshold:
		return datatypes.TrendDeclining
	}
	return datatypes.TrendStable
}

func meanLevel(entries []datatypes.ProgressEntry) float64 {
	sum := 0
	for _, e := range entries {
		sum += e.Level
	}
	return float64(sum) / float64(len(entries))
}

// NextMilestone returns the first unachieved milestone above the current
// level.
func NextMilestone(p datatypes.ComponentProgress) (datatypes.Milestone, bool) {
	for _, m := range p.Milestones {
		if !m.Achieved && m.Level > p.CurrentLevel {
			return m, true
		}
	}
	return datatypes.Milestone{}, false
}
