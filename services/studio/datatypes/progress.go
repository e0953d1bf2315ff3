// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

// Milestone is a level target within a component's practice.
type Milestone struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Level        int        `json:"level"`
	Achieved     bool       `json:"achieved"`
	AchievedDate *time.Time `json:"achievedDate,omitempty"`
}

// ProgressEntry is one journal entry for a component.
type ProgressEntry struct {
	ID         string    `json:"id"`
	Date       time.Time `json:"date"`
	Level      int       `json:"level"`
	Reflection string    `json:"reflection"`
	Milestone  string    `json:"milestone,omitempty"`
	Practices  []string  `json:"practices"`
	Challenges []string  `json:"challenges"`
	Insights   []string  `json:"insights"`
	Hours      float64   `json:"hours,omitempty"`
}

// ComponentProgress tracks a user's practice of one component.
// Entries are newest first.
type ComponentProgress struct {
	ComponentID        string          `json:"componentId"`
	CurrentLevel       int             `json:"currentLevel"`
	Entries            []ProgressEntry `json:"entries"`
	Milestones         []Milestone     `json:"milestones"`
	TotalPracticeHours float64         `json:"totalPracticeHours"`
	StartDate          time.Time       `json:"startDate"`
	LastUpdated        time.Time       `json:"lastUpdated"`
}

// Trend describes the direction of recent progress.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)
