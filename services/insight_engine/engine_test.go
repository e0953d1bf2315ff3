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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/topherchris420/aqal/services/insight_engine/knowledge"
	"github.com/topherchris420/aqal/services/studio/datatypes"
)

// =============================================================================
// Fixtures
// =============================================================================

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine()
	require.NoError(t, err)
	e.SetClock(func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) })
	return e
}

func components(n int) []datatypes.ComponentRef {
	out := make([]datatypes.ComponentRef, n)
	for i := range out {
		out[i] = datatypes.ComponentRef{ID: "c", Category: "ego"}
	}
	return out
}

// richProfile has a lopsided grid, a weak emotional line and a yellow
// tier with high cognitive and spiritual lines.
func richProfile() datatypes.Profile {
	p := datatypes.NewProfile()
	p.Quadrants[datatypes.IndividualInterior] = datatypes.Quadrant{Components: components(6)}
	p.DevelopmentalLines = map[string]float64{
		"cognitive":     8,
		"emotional":     2,
		"moral":         6,
		"spiritual":     7,
		"interpersonal": 6,
		"kinesthetic":   6.5,
	}
	p.SpiralTier = "yellow"
	p.EgoStage = "strategist"
	return p
}

func ids(insights []Insight) []string {
	out := make([]string, len(insights))
	for i, in := range insights {
		out[i] = in.ID
	}
	return out
}

// =============================================================================
// GenerateInsights
// =============================================================================

func TestGenerateInsights_DefaultProfile(t *testing.T) {
	e := newTestEngine(t)

	insights := e.GenerateInsights(datatypes.NewProfile())

	assert.Equal(t, []string{"spiral-evolution", "ego-development"}, ids(insights))

	spiral := insights[0]
	assert.Equal(t, "Orange Spiral Development", spiral.Title)
	assert.Equal(t, "You're operating from the orange level, focused on achievement. Consider evolving to the next level while integrating current strengths.", spiral.Description)
	assert.Equal(t, []string{
		"Integrate green values of community",
		"Consider environmental impact",
		"Balance achievement with relationships",
	}, spiral.Recommendations)
	assert.Equal(t, SeverityLow, spiral.Severity)

	ego := insights[1]
	assert.Equal(t, "Achiever Ego Stage Development", ego.Title)
	assert.Equal(t, "At the achiever stage, you excel at goal-oriented, effectiveness. Focus on addressing common challenges at this level.", ego.Description)
	assert.Equal(t, "Work on work-life balance and relationships", ego.Recommendations[0])
	assert.Equal(t, 95, ego.QuadrantRelevance["individual_interior"])
}

func TestGenerateInsights_RichProfile(t *testing.T) {
	e := newTestEngine(t)

	insights := e.GenerateInsights(richProfile())

	require.Equal(t, []string{
		"quadrant-imbalance",
		"line-emotional",
		"cosmological-readiness",
		"spiral-evolution",
		"ego-development",
	}, ids(insights))

	imb := insights[0]
	assert.Equal(t, SeverityHigh, imb.Severity)
	assert.Equal(t, CategoryIntegration, imb.Category)
	assert.Equal(t, 0.85, imb.Confidence)
	assert.Equal(t, "Your individual interior quadrant is significantly more developed than your individual exterior quadrant.", imb.Description)
	assert.Equal(t, "Focus on developing your individual exterior quadrant", imb.Recommendations[0])
	assert.Equal(t, map[string]int{"individual_exterior": 90, "individual_interior": 70}, imb.QuadrantRelevance)

	line := insights[1]
	assert.Equal(t, "Underdeveloped Emotional Line", line.Title)
	assert.Equal(t, SeverityHigh, line.Severity)
	assert.Equal(t, CategoryShadow, line.Category)
	assert.Equal(t, "Your emotional development (2/10) is significantly below your average (5.9). This may create blind spots in emotional intelligence and regulation.", line.Description)
	assert.Equal(t, "Practice mindfulness, therapy, journaling", line.Recommendations[0])
	assert.Equal(t, "Seek learning opportunities in emotional development", line.Recommendations[1])
	assert.Equal(t, 95, line.QuadrantRelevance["individual_interior"])

	cosmo := insights[2]
	assert.Equal(t, CategoryCosmological, cosmo.Category)
	assert.Equal(t, SeverityLow, cosmo.Severity)
}

func TestGenerateInsights_MediumImbalance(t *testing.T) {
	e := newTestEngine(t)
	p := datatypes.NewProfile()
	p.Quadrants[datatypes.CollectiveExterior] = datatypes.Quadrant{Components: components(3)}

	insights := e.GenerateInsights(p)

	require.Equal(t, "quadrant-imbalance", insights[0].ID)
	assert.Equal(t, SeverityMedium, insights[0].Severity)
	assert.Contains(t, insights[0].Description, "Your collective exterior quadrant")
	assert.Contains(t, insights[0].Description, "than your individual interior quadrant")
}

func TestGenerateInsights_SmallGapIsBalanced(t *testing.T) {
	e := newTestEngine(t)
	p := datatypes.NewProfile()
	p.Quadrants[datatypes.IndividualInterior] = datatypes.Quadrant{Components: components(2)}

	assert.NotContains(t, ids(e.GenerateInsights(p)), "quadrant-imbalance")
}

func TestGenerateInsights_UnknownTierAndStage(t *testing.T) {
	e := newTestEngine(t)
	p := datatypes.NewProfile()
	p.SpiralTier = "violet"
	p.EgoStage = "sage"

	assert.Empty(t, e.GenerateInsights(p))
}

func TestGenerateInsights_PreparationAndUnknownLine(t *testing.T) {
	e := newTestEngine(t)
	p := datatypes.NewProfile()
	p.DevelopmentalLines = map[string]float64{"cognitive": 6, "spiritual": 5, "culinary": 0}

	insights := e.GenerateInsights(p)

	assert.Equal(t, []string{"line-culinary", "spiral-evolution", "ego-development", "cosmological-preparation"}, ids(insights))

	line := insights[0]
	assert.Equal(t, "Underdeveloped Culinary Line", line.Title)
	assert.Equal(t, SeverityHigh, line.Severity)
	assert.Equal(t, "Your culinary development (0/10) is significantly below your average (3.7). This may create blind spots in this area.", line.Description)
	for _, v := range line.QuadrantRelevance {
		assert.Equal(t, 50, v)
	}

	prep := insights[3]
	assert.Equal(t, SeverityMedium, prep.Severity)
	assert.Equal(t, CategoryGrowth, prep.Category)
}

func TestGenerateInsights_FractionalRating(t *testing.T) {
	e := newTestEngine(t)
	p := datatypes.NewProfile()
	p.DevelopmentalLines = map[string]float64{"cognitive": 9, "moral": 9, "emotional": 4.5}

	insights := e.GenerateInsights(p)

	require.Equal(t, "line-emotional", insights[0].ID)
	assert.Equal(t, SeverityMedium, insights[0].Severity)
	assert.Contains(t, insights[0].Description, "(4.5/10)")
	assert.Contains(t, insights[0].Description, "average (7.5)")
}

func TestGenerateInsights_NoLines(t *testing.T) {
	e := newTestEngine(t)
	p := datatypes.NewProfile()
	p.DevelopmentalLines = map[string]float64{}

	insights := e.GenerateInsights(p)

	assert.Equal(t, []string{"spiral-evolution", "ego-development"}, ids(insights))
}

// =============================================================================
// Plan and Report
// =============================================================================

func TestGenerateDevelopmentPlan(t *testing.T) {
	e := newTestEngine(t)

	plan := e.GenerateDevelopmentPlan(richProfile())

	assert.Equal(t, []string{
		"Focus on developing your individual exterior quadrant",
		"Practice exercises that integrate multiple quadrants",
		"Practice mindfulness, therapy, journaling",
		"Seek learning opportunities in emotional development",
		"Establish daily mindfulness practice",
		"Begin regular self-reflection journaling",
	}, plan.ShortTerm)
	assert.Equal(t, []string{
		"Join a development-focused community",
		"Seek mentorship or coaching",
		"Explore shadow work practices",
	}, plan.MediumTerm)
	assert.Len(t, plan.LongTerm, 5)
	assert.Equal(t, []Category{CategoryIntegration, CategoryShadow, CategoryCosmological}, plan.FocusAreas)
	assert.Equal(t, "12-18 months for significant progress", plan.EstimatedTimeframe)
}

func TestGenerateReport_DefaultProfile(t *testing.T) {
	e := newTestEngine(t)

	r := e.GenerateReport(datatypes.NewProfile())

	assert.Equal(t, 0, r.OverallScore)
	assert.Equal(t, 5, r.ActiveGoals)
	assert.Equal(t, 0, r.GrowthAreas)
	assert.Equal(t, "Your integral development shows an average level of 0.0/10 across all lines, with particular strength in kinesthetic development. "+
		"You're operating from the orange spiral level and achiever ego stage. "+
		"Your development appears well-balanced with opportunities for continued growth. "+
		"Your profile suggests readiness for intermediate integral practices and foundational spiritual development.", r.Summary)

	require.Len(t, r.DevelopmentPaths, 2)
	assert.Equal(t, "Cognitive Enhancement Path", r.DevelopmentPaths[0].Title)
	assert.Equal(t, "Spiritual Deepening Path", r.DevelopmentPaths[1].Title)
	require.Len(t, r.Resources, 2)
	assert.Equal(t, "Integral Theory Foundations", r.Resources[0].Title)
	assert.Equal(t, "Contemplative Practices Guide", r.Resources[1].Title)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), r.GeneratedAt)
}

func TestGenerateReport_RichProfile(t *testing.T) {
	e := newTestEngine(t)

	r := e.GenerateReport(richProfile())

	assert.Equal(t, 59, r.OverallScore)
	assert.Equal(t, 9, r.ActiveGoals)
	assert.Equal(t, 2, r.GrowthAreas)
	assert.Contains(t, r.Summary, "average level of 5.9/10")
	assert.Contains(t, r.Summary, "particular strength in cognitive development")
	assert.Contains(t, r.Summary, "There are 2 high-priority areas for focused development.")
	assert.Contains(t, r.Summary, "readiness for advanced integral practices and deep contemplative work.")

	titles := make([]string, len(r.DevelopmentPaths))
	for i, p := range r.DevelopmentPaths {
		titles[i] = p.Title
	}
	assert.Equal(t, []string{"Shadow Integration Path", "Spiritual Deepening Path", "Cosmological Integration Path"}, titles)
	assert.Equal(t, 70, r.DevelopmentPaths[1].Progress)
	assert.Len(t, r.Resources, 4)
}

func TestGenerateReport_NoLines(t *testing.T) {
	e := newTestEngine(t)
	p := datatypes.NewProfile()
	p.DevelopmentalLines = nil

	r := e.GenerateReport(p)

	assert.Equal(t, 0, r.OverallScore)
	assert.Contains(t, r.Summary, "no line ratings yet")
}

func TestStrongestLine_TiesGoToLater(t *testing.T) {
	assert.Equal(t, "moral", StrongestLine(map[string]float64{"cognitive": 7, "emotional": 3, "moral": 7}))
	assert.Equal(t, "cognitive", StrongestLine(map[string]float64{"cognitive": 9, "moral": 7}))
	assert.Equal(t, "", StrongestLine(nil))
}

// =============================================================================
// Packs and Map
// =============================================================================

func TestRecommendExpansionPacks(t *testing.T) {
	e := newTestEngine(t)

	assert.Equal(t, []string{"contemplative-tools"}, e.RecommendExpansionPacks(datatypes.NewProfile()))

	assert.Equal(t,
		[]string{"somatic-integration", "shadow-work", "cosmological-perspectives"},
		e.RecommendExpansionPacks(richProfile()))

	p := datatypes.NewProfile()
	p.SpiralTier = "none"
	p.EgoStage = "none"
	p.DevelopmentalLines = map[string]float64{"cognitive": 8, "spiritual": 2, "interpersonal": 8}
	// spiritual sits more than two points below the average, so the line
	// analysis contributes shadow-work first.
	assert.Equal(t,
		[]string{"shadow-work", "philosophical-expansion", "collective-intelligence"},
		e.RecommendExpansionPacks(p))

	p.DevelopmentalLines = map[string]float64{}
	assert.Equal(t, []string{}, e.RecommendExpansionPacks(p))
}

func TestBuildVisualMap(t *testing.T) {
	e := newTestEngine(t)
	p := datatypes.NewProfile()
	p.Quadrants[datatypes.IndividualExterior] = datatypes.Quadrant{Components: components(2)}
	p.Quadrants[datatypes.CollectiveInterior] = datatypes.Quadrant{Components: components(7)}
	p.DevelopmentalLines = map[string]float64{"cognitive": 5, "emotional": 5, "moral": 2}

	m := e.BuildVisualMap(p)

	require.Len(t, m.Quadrants, 4)
	assert.Equal(t, 0.0, m.Quadrants[0].Strength)
	assert.Equal(t, 40.0, m.Quadrants[1].Strength)
	assert.Equal(t, 100.0, m.Quadrants[2].Strength)
	assert.Equal(t, datatypes.CollectiveInterior, m.StrongestQuadrant)
	assert.Equal(t, "cognitive", m.HighestLine)
	assert.Equal(t, 4.0, m.OverallDevelopment)
	assert.Equal(t, "orange", m.SpiralTier)
	assert.Equal(t, "achiever", m.EgoStage)
}

func TestSetKnowledgeBase(t *testing.T) {
	e := newTestEngine(t)
	kb, err := knowledge.Parse([]byte(`
egoStages: {achiever: {level: 4, description: Getting things done, challenges: [Rest]}}
spiralTiers: {orange: {tier: 1, focus: Results}}
developmentLines: {cognitive: {description: Thinking}}
`))
	require.NoError(t, err)

	e.SetKnowledgeBase(kb)
	e.SetKnowledgeBase(nil)

	insights := e.GenerateInsights(datatypes.NewProfile())
	require.Len(t, insights, 2)
	assert.Contains(t, insights[0].Description, "focused on results")
	assert.Equal(t, []string{"Continue your development journey"}, insights[0].Recommendations)
	assert.Equal(t, "Work on rest", insights[1].Recommendations[0])
}
