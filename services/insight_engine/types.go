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
	"time"

	"github.com/topherchris420/aqal/services/studio/datatypes"
)

// Severity ranks how urgently an insight should be addressed.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsHighPriority reports whether s is high or critical.
func (s Severity) IsHighPriority() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Category groups insights by the kind of work they suggest.
type Category string

const (
	CategoryIntegration  Category = "integration"
	CategoryShadow       Category = "shadow"
	CategoryAlignment    Category = "alignment"
	CategoryGrowth       Category = "growth"
	CategoryCosmological Category = "cosmological"
)

// Insight is one finding about a profile.
type Insight struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Severity          Severity       `json:"severity"`
	Confidence        float64        `json:"confidence"`
	Recommendations   []string       `json:"recommendations"`
	Category          Category       `json:"category"`
	QuadrantRelevance map[string]int `json:"quadrantRelevance"`
}

// DevelopmentPlan turns insights into staged goals.
type DevelopmentPlan struct {
	ShortTerm          []string   `json:"shortTerm"`
	MediumTerm         []string   `json:"mediumTerm"`
	LongTerm           []string   `json:"longTerm"`
	FocusAreas         []Category `json:"focusAreas"`
	EstimatedTimeframe string     `json:"estimatedTimeframe"`
}

// Path is a suggested development path.
type Path struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Timeframe   string   `json:"timeframe"`
	Progress    int      `json:"progress"`
	NextSteps   []string `json:"nextSteps"`
}

// Resource is a suggested study or practice resource.
type Resource struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Duration    string `json:"duration"`
	Difficulty  string `json:"difficulty"`
	Type        string `json:"type"`
}

// Report is the full insights page for a profile.
type Report struct {
	OverallScore     int        `json:"overallScore"`
	ActiveGoals      int        `json:"activeGoals"`
	GrowthAreas      int        `json:"growthAreas"`
	Summary          string     `json:"summary"`
	Recommendations  []Insight  `json:"recommendations"`
	DevelopmentPaths []Path     `json:"developmentPaths"`
	Resources        []Resource `json:"resources"`
	GeneratedAt      time.Time  `json:"generatedAt"`
}

// QuadrantStrength is a quadrant's fill level on the visual map.
type QuadrantStrength struct {
	Quadrant   datatypes.QuadrantID `json:"quadrant"`
	Components int                  `json:"components"`
	Strength   float64              `json:"strength"`
}

// VisualMap summarizes a profile for the map view.
type VisualMap struct {
	Quadrants          []QuadrantStrength    `json:"quadrants"`
	Lines              []datatypes.LineValue `json:"lines"`
	OverallDevelopment float64               `json:"overallDevelopment"`
	SpiralTier         string                `json:"spiralTier"`
	EgoStage           string                `json:"egoStage"`
	StrongestQuadrant  datatypes.QuadrantID  `json:"strongestQuadrant"`
	HighestLine        string                `json:"highestLine,omitempty"`
}
