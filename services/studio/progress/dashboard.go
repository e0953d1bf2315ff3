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
	"cmp"
	"slices"
	"sort"

	"github.com/topherchris420/aqal/services/studio/catalog"
	"github.com/topherchris420/aqal/services/studio/datatypes"
)

// Dashboard list sizes.
const (
	TopComponentsLimit  = 5
	RecentActivityLimit = 5
)

// ComponentSummary is one row of the top components list.
type ComponentSummary struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Level    int             `json:"level"`
	Trend    datatypes.Trend `json:"trend"`
}

// Activity is a journal entry tagged with its component.
type Activity struct {
	datatypes.ProgressEntry
	ComponentID   string `json:"componentId"`
	ComponentName string `json:"componentName"`
}

// DashboardStats summarizes progress across all components.
type DashboardStats struct {
	TrackedComponents  int                `json:"trackedComponents"`
	AverageLevel       float64            `json:"averageLevel"`
	AchievedMilestones int                `json:"achievedMilestones"`
	TotalEntries       int                `json:"totalEntries"`
	TotalPracticeHours float64            `json:"totalPracticeHours"`
	TopComponents      []ComponentSummary `json:"topComponents"`
	RecentActivity     []Activity         `json:"recentActivity"`
}

// Dashboard aggregates all progress records.
//
// # Description
//
// Components are visited in ID order so equal levels and equal entry
// dates always resolve the same way. Names and categories come from the
// catalog, falling back to the ID and "unknown".
func Dashboard(cat *catalog.Catalog, all map[string]datatypes.ComponentProgress) DashboardStats {
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	stats := DashboardStats{
		TrackedComponents: len(ids),
		TopComponents:     []ComponentSummary{},
		RecentActivity:    []Activity{},
	}

	totalLevel := 0
	var activity []Activity
	for _, id := range ids {
		p := all[id]
		totalLevel += p.CurrentLevel
		stats.TotalEntries += len(p.Entries)
		stats.TotalPracticeHours += p.TotalPracticeHours
		for _, m := range p.Milestones {
			if m.Achieved {
				stats.AchievedMilestones++
			}
		}

		name, category := id, "unknown"
		if comp, ok := cat.ComponentByID(id); ok {
			name, category = comp.Name, comp.Category
		}
		stats.TopComponents = append(stats.TopComponents, ComponentSummary{
			ID:       id,
			Name:     name,
			Category: category,
			Level:    p.CurrentLevel,
			Trend:    Trend(p),
		})
		for _, e := range p.Entries {
			activity = append(activity, Activity{ProgressEntry: e, ComponentID: id, ComponentName: name})
		}
	}
	if len(ids) > 0 {
		stats.AverageLevel = float64(totalLevel) / float64(len(ids))
	}

	slices.SortStableFunc(stats.TopComponents, func(a, b ComponentSummary) int {
		return cmp.Compare(b.Level, a.Level)
	})
	stats.TopComponents = stats.TopComponents[:min(TopComponentsLimit, len(stats.TopComponents))]

	slices.SortStableFunc(activity, func(a, b Activity) int {
		return b.Date.Compare(a.Date)
	})
	stats.RecentActivity = append(stats.RecentActivity, activity[:min(RecentActivityLimit, len(activity))]...)
	return stats
}
