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
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/topherchris420/aqal/services/studio/datatypes"
)

// Limits on generated lists.
const (
	MaxPaths           = 4
	MaxResources       = 6
	MaxRecommendedPack = 3
)

// EstimatedTimeframe is the fixed plan horizon.
const EstimatedTimeframe = "12-18 months for significant progress"

// =============================================================================
// Development Plan
// =============================================================================

// GenerateDevelopmentPlan stages the profile's insights into goals.
//
// # Description
//
// Short term takes the first two recommendations of each of the first two
// high or critical insights, then two fixed habits. Medium term does the
// same with medium insights and adds three fixed items. Long term is a
// fixed list. Focus areas are the categories of the first three insights.
func (e *Engine) GenerateDevelopmentPlan(p datatypes.Profile) DevelopmentPlan {
	return buildPlan(e.GenerateInsights(p))
}

func buildPlan(insights []Insight) DevelopmentPlan {
	var high, medium []Insight
	for _, in := range insights {
		switch {
		case in.Severity.IsHighPriority():
			high = append(high, in)
		case in.Severity == SeverityMedium:
			medium = append(medium, in)
		}
	}

	short := leadingRecommendations(high)
	short = append(short,
		"Establish daily mindfulness practice",
		"Begin regular self-reflection journaling",
	)

	mid := leadingRecommendations(medium)
	mid = append(mid,
		"Join a development-focused community",
		"Seek mentorship or coaching",
		"Explore shadow work practices",
	)

	focus := make([]Category, 0, 3)
	for _, in := range insights[:min(3, len(insights))] {
		focus = append(focus, in.Category)
	}

	return DevelopmentPlan{
		ShortTerm:  short,
		MediumTerm: mid,
		LongTerm: []string{
			"Integrate multiple development lines",
			"Develop teaching or mentoring capabilities",
			"Contribute to collective development",
			"Explore advanced contemplative practices",
			"Consider leadership roles in your field",
		},
		FocusAreas:         focus,
		EstimatedTimeframe: EstimatedTimeframe,
	}
}

// leadingRecommendations collects up to two recommendations from each of
// the first two insights.
func leadingRecommendations(insights []Insight) []string {
	var out []string
	for _, in := range insights[:min(2, len(insights))] {
		out = append(out, in.Recommendations[:min(2, len(in.Recommendations))]...)
	}
	return out
}

// =============================================================================
// Report
// =============================================================================

// GenerateReport builds the full insights page.
//
// # Outputs
//
//   - OverallScore: the line average times ten, rounded.
//   - ActiveGoals: short plus medium term goal count.
//   - GrowthAreas: number of high or critical insights.
func (e *Engine) GenerateReport(p datatypes.Profile) Report {
	insights := e.GenerateInsights(p)
	plan := buildPlan(insights)

	growth := 0
	for _, in := range insights {
		if in.Severity.IsHighPriority() {
			growth++
		}
	}

	return Report{
		OverallScore:     int(math.Round(p.AverageLine() * 10)),
		ActiveGoals:      len(plan.ShortTerm) + len(plan.MediumTerm),
		GrowthAreas:      growth,
		Summary:          summarize(p, growth),
		Recommendations:  insights,
		DevelopmentPaths: developmentPaths(p, insights),
		Resources:        recommendedResources(p, insights),
		GeneratedAt:      e.now().UTC(),
	}
}

// StrongestLine returns the highest rated line. Ties go to the line that
// comes later in canonical order. Returns "" when there are no lines.
func StrongestLine(lines map[string]float64) string {
	ordered := datatypes.OrderedLines(lines)
	if len(ordered) == 0 {
		return ""
	}
	best := ordered[0]
	for _, lv := range ordered[1:] {
		if !(best.Value > lv.Value) {
			best = lv
		}
	}
	return best.Line
}

func summarize(p datatypes.Profile, highPriority int) string {
	var b strings.Builder

	if strongest := StrongestLine(p.DevelopmentalLines); strongest != "" {
		fmt.Fprintf(&b, "Your integral development shows an average level of %.1f/10 across all lines, with particular strength in %s development. ",
			p.AverageLine(), strongest)
	} else {
		b.WriteString("Your integral development has no line ratings yet. ")
	}

	fmt.Fprintf(&b, "You're operating from the %s spiral level and %s ego stage. ", p.SpiralTier, p.EgoStage)

	if highPriority > 0 {
		fmt.Fprintf(&b, "There are %d high-priority areas for focused development. ", highPriority)
	} else {
		b.WriteString("Your development appears well-balanced with opportunities for continued growth. ")
	}

	practices := "intermediate"
	if p.Line("cognitive") >= 7 {
		practices = "advanced"
	}
	spiritual := "foundational spiritual development"
	if p.Line("spiritual") >= 7 {
		spiritual = "deep contemplative work"
	}
	fmt.Fprintf(&b, "Your profile suggests readiness for %s integral practices and %s.", practices, spiritual)
	return b.String()
}

func hasCategory(insights []Insight, c Category) bool {
	return slices.ContainsFunc(insights, func(in Insight) bool { return in.Category == c })
}

func developmentPaths(p datatypes.Profile, insights []Insight) []Path {
	cognitive, spiritual := p.Line("cognitive"), p.Line("spiritual")

	paths := make([]Path, 0, MaxPaths)
	if hasCategory(insights, CategoryShadow) {
		paths = append(paths, Path{
			Title:       "Shadow Integration Path",
			Description: "Work with unconscious aspects for greater wholeness",
			Timeframe:   "medium",
			Progress:    25,
			NextSteps: []string{
				"Begin daily shadow journaling",
				"Practice projection identification",
				"Explore dream work techniques",
			},
		})
	}
	if cognitive < 7 {
		paths = append(paths, Path{
			Title:       "Cognitive Enhancement Path",
			Description: "Develop critical thinking and complex reasoning abilities",
			Timeframe:   "long",
			Progress:    int(math.Round(cognitive * 10)),
			NextSteps: []string{
				"Engage with complex philosophical texts",
				"Practice systems thinking exercises",
				"Join intellectual discussion groups",
			},
		})
	}
	if spiritual < 8 {
		paths = append(paths, Path{
			Title:       "Spiritual Deepening Path",
			Description: "Explore meaning, transcendence, and contemplative practices",
			Timeframe:   "long",
			Progress:    int(math.Round(spiritual * 10)),
			NextSteps: []string{
				"Establish regular meditation practice",
				"Study wisdom traditions",
				"Engage in contemplative inquiry",
			},
		})
	}
	if cognitive >= 7 && spiritual >= 6 {
		paths = append(paths, Path{
			Title:       "Cosmological Integration Path",
			Description: "Explore multiverse theories and their implications for consciousness",
			Timeframe:   "long",
			Progress:    0,
			NextSteps: []string{
				"Study multiverse models and their implications",
				"Practice perspective-taking across scales",
				"Integrate cosmological insights with personal development",
			},
		})
	}
	return paths[:min(MaxPaths, len(paths))]
}

func recommendedResources(p datatypes.Profile, insights []Insight) []Resource {
	resources := []Resource{{
		Title:       "Integral Theory Foundations",
		Description: "Core texts on AQAL framework and integral development",
		Duration:    "4-6 weeks",
		Difficulty:  "Intermediate",
		Type:        "reading",
	}}
	if hasCategory(insights, CategoryShadow) {
		resources = append(resources, Resource{
			Title:       "Shadow Work Practices",
			Description: "Guided exercises for shadow integration",
			Duration:    "2-3 weeks",
			Difficulty:  "Intermediate",
			Type:        "practice",
		})
	}
	if p.Line("cognitive") >= 7 {
		resources = append(resources, Resource{
			Title:       "Multiverse Theories Study",
			Description: "Comprehensive analysis of cosmological models",
			Duration:    "8-12 weeks",
			Difficulty:  "Advanced",
			Type:        "study",
		})
	}
	if p.Line("spiritual") < 8 {
		resources = append(resources, Resource{
			Title:       "Contemplative Practices Guide",
			Description: "Progressive meditation and inquiry techniques",
			Duration:    "6-8 weeks",
			Difficulty:  "Beginner",
			Type:        "practice",
		})
	}
	return resources[:min(MaxResources, len(resources))]
}

// =============================================================================
// Expansion Packs
// =============================================================================

// RecommendExpansionPacks suggests up to three packs.
//
// # Description
//
// Insight categories are considered first, in insight order, then line
// thresholds. A pack is never listed twice.
func (e *Engine) RecommendExpansionPacks(p datatypes.Profile) []string {
	cognitive := p.Line("cognitive")
	spiritual := p.Line("spiritual")

	var recs []string
	add := func(id string) {
		if !slices.Contains(recs, id) {
			recs = append(recs, id)
		}
	}

	for _, in := range e.GenerateInsights(p) {
		switch in.Category {
		case CategoryShadow:
			add("shadow-work")
		case CategoryIntegration:
			add("somatic-integration")
		case CategoryGrowth:
			if spiritual < 7 {
				add("contemplative-tools")
			}
		case CategoryCosmological:
			add("cosmological-perspectives")
		}
	}

	if cognitive > 7 {
		add("philosophical-expansion")
	}
	if cognitive >= 7 && spiritual >= 6 {
		add("cosmological-perspectives")
	}
	if p.Line("interpersonal") > 7 {
		add("collective-intelligence")
	}

	if recs == nil {
		return []string{}
	}
	return recs[:min(MaxRecommendedPack, len(recs))]
}

// =============================================================================
// Visual Map
// =============================================================================

// BuildVisualMap summarizes the profile for the map view.
//
// # Description
//
// A quadrant's strength is its component count as a share of five,
// capped at 100. The strongest quadrant is the first with the most
// components, and the highest line the first with the top rating.
func (e *Engine) BuildVisualMap(p datatypes.Profile) VisualMap {
	m := VisualMap{
		Quadrants:          make([]QuadrantStrength, 0, len(datatypes.QuadrantIDs)),
		Lines:              datatypes.OrderedLines(p.DevelopmentalLines),
		OverallDevelopment: p.AverageLine(),
		SpiralTier:         p.SpiralTier,
		EgoStage:           p.EgoStage,
	}

	best := -1
	for _, q := range datatypes.QuadrantIDs {
		n := len(p.Quadrants[q].Components)
		m.Quadrants = append(m.Quadrants, QuadrantStrength{
			Quadrant:   q,
			Components: n,
			Strength:   math.Min(float64(n)*100/5, 100),
		})
		if n > best {
			best, m.StrongestQuadrant = n, q
		}
	}

	top := math.Inf(-1)
	for _, lv := range m.Lines {
		if lv.Value > top {
			top, m.HighestLine = lv.Value, lv.Line
		}
	}
	return m
}
