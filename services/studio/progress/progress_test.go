// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/topherchris420/aqal/services/studio/catalog"
	"github.com/topherchris420/aqal/services/studio/datatypes"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTracker(t *testing.T) (*Tracker, *fakeClock) {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	clock := &fakeClock{t: epoch}
	return NewTracker(cat, clock.Now), clock
}

func withLevels(levels ...int) datatypes.ComponentProgress {
	p := datatypes.ComponentProgress{ComponentID: "x"}
	for _, l := range levels {
		p.Entries = append(p.Entries, datatypes.ProgressEntry{Level: l})
	}
	return p
}

func TestInitialize(t *testing.T) {
	tr, _ := newTracker(t)

	p := tr.Initialize("achiever")
	assert.Equal(t, "achiever", p.ComponentID)
	assert.Equal(t, 1, p.CurrentLevel)
	assert.Empty(t, p.Entries)
	assert.NotNil(t, p.Entries)
	require.Len(t, p.Milestones, 4)
	assert.Equal(t, "balance", p.Milestones[0].ID)
	assert.Equal(t, epoch, p.StartDate)
	assert.Equal(t, epoch, p.LastUpdated)

	generic := tr.Initialize("cognitive")
	require.Len(t, generic.Milestones, 3)
	assert.Equal(t, []int{3, 6, 9}, []int{generic.Milestones[0].Level, generic.Milestones[1].Level, generic.Milestones[2].Level})
}

func TestAddEntry(t *testing.T) {
	tr, clock := newTracker(t)
	p := tr.Initialize("achiever")
	clock.Advance(time.Hour)

	out, entry, achieved := tr.AddEntry(p, datatypes.ProgressEntryRequest{
		Level:      5,
		Reflection: "steadier week",
		Practices:  []string{"journaling", "  ", ""},
		Challenges: []string{" "},
		Insights:   []string{"rest matters"},
		Hours:      1.5,
	})

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, epoch.Add(time.Hour), entry.Date)
	assert.Equal(t, []string{"journaling"}, entry.Practices)
	assert.Empty(t, entry.Challenges)
	assert.Equal(t, []string{"rest matters"}, entry.Insights)

	assert.Equal(t, 5, out.CurrentLevel)
	assert.Equal(t, 1.5, out.TotalPracticeHours)
	assert.Equal(t, epoch.Add(time.Hour), out.LastUpdated)
	assert.Equal(t, epoch, out.StartDate)
	require.Len(t, out.Entries, 1)

	require.Len(t, achieved, 2)
	assert.Equal(t, "balance", achieved[0].ID)
	assert.Equal(t, "emotional_intelligence", achieved[1].ID)
	require.NotNil(t, out.Milestones[0].AchievedDate)
	assert.Equal(t, epoch.Add(time.Hour), *out.Milestones[0].AchievedDate)
	assert.False(t, out.Milestones[2].Achieved)

	assert.False(t, p.Milestones[0].Achieved, "input must not change")
	assert.Empty(t, p.Entries)

	clock.Advance(time.Hour)
	out2, _, achieved := tr.AddEntry(out, datatypes.ProgressEntryRequest{Level: 4, Hours: 2})
	assert.Empty(t, achieved, "milestones are only achieved once")
	assert.Equal(t, 4, out2.CurrentLevel)
	assert.Equal(t, 3.5, out2.TotalPracticeHours)
	require.Len(t, out2.Entries, 2)
	assert.Equal(t, 4, out2.Entries[0].Level, "newest entry first")
	assert.True(t, out2.Milestones[1].Achieved)
}

func TestAddEntry_FillsMissingMilestones(t *testing.T) {
	tr, _ := newTracker(t)
	legacy := datatypes.ComponentProgress{ComponentID: "meditative", CurrentLevel: 1}

	out, _, achieved := tr.AddEntry(legacy, datatypes.ProgressEntryRequest{Level: 2})
	require.Len(t, out.Milestones, 4)
	require.Len(t, achieved, 1)
	assert.Equal(t, "concentration", achieved[0].ID)
	assert.Equal(t, epoch, out.StartDate)
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name string
		p    datatypes.ComponentProgress
		want datatypes.Trend
	}{
		{"no entries", withLevels(), datatypes.TrendStable},
		{"one entry", withLevels(9), datatypes.TrendStable},
		{"only recent entries", withLevels(9, 1), datatypes.TrendStable},
		{"improving", withLevels(7, 7, 6, 4, 4, 4), datatypes.TrendImproving},
		{"declining", withLevels(3, 3, 3, 5, 5, 5), datatypes.TrendDeclining},
		{"within threshold", withLevels(5, 5, 5, 5, 5, 4), datatypes.TrendStable},
		{"single older entry", withLevels(6, 6, 6, 4), datatypes.TrendImproving},
		{"ignores entries past six", withLevels(5, 5, 5, 5, 5, 5, 1, 1), datatypes.TrendStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Trend(tt.p))
		})
	}
}

func TestNextMilestone(t *testing.T) {
	tr, _ := newTracker(t)
	p := tr.Initialize("cognitive")

	m, ok := NextMilestone(p)
	require.True(t, ok)
	assert.Equal(t, "basic", m.ID)

	p, _, _ = tr.AddEntry(p, datatypes.ProgressEntryRequest{Level: 6})
	m, ok = NextMilestone(p)
	require.True(t, ok)
	assert.Equal(t, "integration", m.ID)

	p, _, _ = tr.AddEntry(p, datatypes.ProgressEntryRequest{Level: 10})
	_, ok = NextMilestone(p)
	assert.False(t, ok)
}

func TestDashboard(t *testing.T) {
	tr, clock := newTracker(t)
	cat, err := catalog.Default()
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		stats := Dashboard(cat, nil)
		assert.Zero(t, stats.TrackedComponents)
		assert.Zero(t, stats.AverageLevel)
		assert.NotNil(t, stats.TopComponents)
		assert.NotNil(t, stats.RecentActivity)
	})

	all := map[string]datatypes.ComponentProgress{}
	add := func(id string, levels ...int) {
		p, ok := all[id]
		if !ok {
			p = tr.Initialize(id)
		}
		for _, l := range levels {
			clock.Advance(time.Minute)
			p, _, _ = tr.AddEntry(p, datatypes.ProgressEntryRequest{Level: l, Hours: 1})
		}
		all[id] = p
	}
	add("achiever", 3, 5)
	add("cognitive", 7)
	add("meditative", 2)
	add("homebrew")
	add("green", 4)
	add("moral", 4)
	add("emotional", 6, 2)

	stats := Dashboard(cat, all)
	assert.Equal(t, 7, stats.TrackedComponents)
	assert.InDelta(t, (5+7+2+1+4+4+2)/7.0, stats.AverageLevel, 1e-9)
	assert.Equal(t, 8, stats.TotalEntries)
	assert.Equal(t, 8.0, stats.TotalPracticeHours)
	// achiever 2, cognitive 2, meditative 1, green 1, moral 1, emotional 3
	assert.Equal(t, 10, stats.AchievedMilestones)

	require.Len(t, stats.TopComponents, TopComponentsLimit)
	var ids []string
	for _, c := range stats.TopComponents {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"cognitive", "achiever", "green", "moral", "emotional"}, ids)
	assert.Equal(t, "Cognitive", stats.TopComponents[0].Name)
	assert.Equal(t, "lines", stats.TopComponents[0].Category)

	require.Len(t, stats.RecentActivity, RecentActivityLimit)
	assert.Equal(t, "emotional", stats.RecentActivity[0].ComponentID)
	assert.Equal(t, 2, stats.RecentActivity[0].Level)
	assert.Equal(t, "Emotional", stats.RecentActivity[0].ComponentName)
	assert.Equal(t, "emotional", stats.RecentActivity[1].ComponentID)
	assert.Equal(t, "moral", stats.RecentActivity[2].ComponentID)

	only := Dashboard(cat, map[string]datatypes.ComponentProgress{"homebrew": all["homebrew"]})
	assert.Equal(t, "homebrew", only.TopComponents[0].Name)
	assert.Equal(t, "unknown", only.TopComponents[0].Category)
}
