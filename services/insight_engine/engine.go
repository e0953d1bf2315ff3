// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package insight_engine turns an AQAL profile into insights, a development
// plan, a full report and expansion-pack recommendations.
//
// Every rule is a simple comparison (averages, gaps and thresholds) over
// the profile; the text comes from the knowledge base and fixed tables.
package insight_engine

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/topherchris420/aqal/services/insight_engine/knowledge"
	"github.com/topherchris420/aqal/services/studio/datatypes"
)

// Engine generates insights from profiles.
//
// # Thread Safety
//
// Engine is safe for concurrent use. The knowledge base may be swapped at
// any time with SetKnowledgeBase; each call reads one consistent snapshot.
type Engine struct {
	kb  atomic.Pointer[knowledge.KnowledgeBase]
	now func() time.Time
}

// NewEngine builds an engine backed by the embedded knowledge base.
func NewEngine() (*Engine, error) {
	kb, err := knowledge.Embedded()
	if err != nil {
		return nil, fmt.Errorf("failed to load the embedded knowledge base: %w", err)
	}
	return NewEngineWithKnowledge(kb), nil
}

// NewEngineWithKnowledge builds an engine over an already parsed
// knowledge base.
func NewEngineWithKnowledge(kb *knowledge.KnowledgeBase) *Engine {
	e := &Engine{now: time.Now}
	e.kb.Store(kb)
	return e
}

// SetClock replaces the time source used for report timestamps.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// KnowledgeBase returns the current knowledge base.
func (e *Engine) KnowledgeBase() *knowledge.KnowledgeBase {
	return e.kb.Load()
}

// SetKnowledgeBase atomically replaces the knowledge base.
func (e *Engine) SetKnowledgeBase(kb *knowledge.KnowledgeBase) {
	if kb != nil {
		e.kb.Store(kb)
	}
}

// =============================================================================
// Insights
// =============================================================================

// GenerateInsights runs every analysis over the profile.
//
// # Description
//
// Analyses run in a fixed order: quadrant balance, developmental lines,
// spiral tier, ego stage and cosmological readiness. The combined list is
// then stable-sorted by confidence, highest first, so insights with equal
// confidence keep analysis order.
//
// # Outputs
//
// An empty (non-nil) slice when nothing applies.
func (e *Engine) GenerateInsights(p datatypes.Profile) []Insight {
	kb := e.kb.Load()

	insights := make([]Insight, 0, 8)
	if in, ok := analyzeQuadrantBalance(p); ok {
		insights = append(insights, in)
	}
	insights = append(insights, analyzeLines(kb, p)...)
	if in, ok := analyzeSpiral(kb, p); ok {
		insights = append(insights, in)
	}
	if in, ok := analyzeEgo(kb, p); ok {
		insights = append(insights, in)
	}
	if in, ok := analyzeCosmological(p); ok {
		insights = append(insights, in)
	}

	slices.SortStableFunc(insights, func(a, b Insight) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})
	return insights
}

func quadrantKeys() []string {
	out := make([]string, len(datatypes.QuadrantIDs))
	for i, q := range datatypes.QuadrantIDs {
		out[i] = string(q)
	}
	return out
}

func relevance(ii, ie, ci, ce int) map[string]int {
	return map[string]int{
		string(datatypes.IndividualInterior): ii,
		string(datatypes.IndividualExterior): ie,
		string(datatypes.CollectiveInterior): ci,
		string(datatypes.CollectiveExterior): ce,
	}
}

// analyzeQuadrantBalance compares component counts. The weakest and
// strongest quadrants are the first, in canonical order, holding the
// minimum and maximum counts.
func analyzeQuadrantBalance(p datatypes.Profile) (Insight, bool) {
	var weakest, strongest datatypes.QuadrantID
	minCount, maxCount := -1, -1
	for _, q := range datatypes.QuadrantIDs {
		n := len(p.Quadrants[q].Components)
		if minCount < 0 || n < minCount {
			minCount, weakest = n, q
		}
		if maxCount < 0 || n > maxCount {
			maxCount, strongest = n, q
		}
	}

	gap := maxCount - minCount
	if gap <= 2 {
		return Insight{}, false
	}

	severity := SeverityMedium
	if gap > 4 {
		severity = SeverityHigh
	}
	weak, strong := weakest.Label(), strongest.Label()
	return Insight{
		ID:    "quadrant-imbalance",
		Title: "Quadrant Development Imbalance",
		Description: fmt.Sprintf(
			"Your %s quadrant is significantly more developed than your %s quadrant.", strong, weak),
		Severity:   severity,
		Confidence: 0.85,
		Category:   CategoryIntegration,
		Recommendations: []string{
			fmt.Sprintf("Focus on developing your %s quadrant", weak),
			"Practice exercises that integrate multiple quadrants",
			"Seek feedback from others about blind spots",
			"Consider working with a coach or mentor",
		},
		QuadrantRelevance: map[string]int{
			string(weakest):   90,
			string(strongest): 70,
		},
	}, true
}

// analyzeLines flags each line more than two points below the average.
func analyzeLines(kb *knowledge.KnowledgeBase, p datatypes.Profile) []Insight {
	if len(p.DevelopmentalLines) == 0 {
		return nil
	}
	avg := p.AverageLine()

	var out []Insight
	for _, lv := range datatypes.OrderedLines(p.DevelopmentalLines) {
		if lv.Value >= avg-2 {
			continue
		}
		severity := SeverityMedium
		if lv.Value < avg-3 {
			severity = SeverityHigh
		}

		blindSpot := "this area"
		practice := "Practice exercises that strengthen this line"
		if info, ok := kb.DevelopmentLines[lv.Line]; ok {
			blindSpot = strings.ToLower(info.Description)
			practice = "Practice " + strings.ToLower(strings.Join(info.Practices, ", "))
		}

		out = append(out, Insight{
			ID:    "line-" + lv.Line,
			Title: fmt.Sprintf("Underdeveloped %s Line", capitalize(lv.Line)),
			Description: fmt.Sprintf(
				"Your %s development (%s/10) is significantly below your average (%.1f). This may create blind spots in %s.",
				lv.Line, formatNumber(lv.Value), avg, blindSpot),
			Severity:   severity,
			Confidence: 0.8,
			Category:   CategoryShadow,
			Recommendations: []string{
				practice,
				fmt.Sprintf("Seek learning opportunities in %s development", lv.Line),
				"Work with a specialist in this area",
				"Join groups focused on this development line",
			},
			QuadrantRelevance: kb.LineRelevance(lv.Line, quadrantKeys()),
		})
	}
	return out
}

// analyzeSpiral describes the current tier. Unknown tiers yield nothing.
func analyzeSpiral(kb *knowledge.KnowledgeBase, p datatypes.Profile) (Insight, bool) {
	info, ok := kb.SpiralTiers[p.SpiralTier]
	if !ok {
		return Insight{}, false
	}
	recs := slices.Clone(info.Recommendations)
	if len(recs) == 0 {
		recs = []string{"Continue your development journey"}
	}
	return Insight{
		ID:    "spiral-evolution",
		Title: fmt.Sprintf("%s Spiral Development", capitalize(p.SpiralTier)),
		Description: fmt.Sprintf(
			"You're operating from the %s level, focused on %s. Consider evolving to the next level while integrating current strengths.",
			p.SpiralTier, strings.ToLower(info.Focus)),
		Severity:          SeverityLow,
		Confidence:        0.75,
		Category:          CategoryGrowth,
		Recommendations:   recs,
		QuadrantRelevance: relevance(80, 60, 85, 70),
	}, true
}

// analyzeEgo describes the current ego stage. Unknown stages yield nothing.
func analyzeEgo(kb *knowledge.KnowledgeBase, p datatypes.Profile) (Insight, bool) {
	info, ok := kb.EgoStages[p.EgoStage]
	if !ok {
		return Insight{}, false
	}
	return Insight{
		ID:    "ego-development",
		Title: fmt.Sprintf("%s Ego Stage Development", capitalize(p.EgoStage)),
		Description: fmt.Sprintf(
			"At the %s stage, you excel at %s. Focus on addressing common challenges at this level.",
			p.EgoStage, strings.ToLower(info.Description)),
		Severity:   SeverityLow,
		Confidence: 0.7,
		Category:   CategoryGrowth,
		Recommendations: []string{
			"Work on " + strings.ToLower(strings.Join(info.Challenges, " and ")),
			"Seek feedback from trusted advisors",
			"Practice self-reflection and mindfulness",
			"Consider working with a developmental coach",
		},
		QuadrantRelevance: relevance(95, 70, 60, 40),
	}, true
}

// analyzeCosmological checks readiness for the cosmological material.
func analyzeCosmological(p datatypes.Profile) (Insight, bool) {
	cognitive, spiritual := p.Line("cognitive"), p.Line("spiritual")

	if cognitive >= 7 && spiritual >= 6 && (p.SpiralTier == "yellow" || p.SpiralTier == "turquoise") {
		return Insight{
			ID:          "cosmological-readiness",
			Title:       "Ready for Cosmological Perspectives",
			Description: "Your cognitive and spiritual development suggests readiness to explore multiverse theories and their implications for consciousness and identity.",
			Severity:    SeverityLow,
			Confidence:  0.8,
			Category:    CategoryCosmological,
			Recommendations: []string{
				"Explore the Cosmological Perspectives expansion pack",
				"Study multiverse theories and their philosophical implications",
				"Practice perspective-taking across cosmic scales",
				"Integrate cosmological insights with personal development",
			},
			QuadrantRelevance: relevance(90, 40, 70, 80),
		}, true
	}

	if cognitive >= 6 && spiritual >= 5 {
		return Insight{
			ID:          "cosmological-preparation",
			Title:       "Preparing for Cosmological Perspectives",
			Description: "Continue developing your cognitive and spiritual lines to fully engage with advanced cosmological concepts.",
			Severity:    SeverityMedium,
			Confidence:  0.7,
			Category:    CategoryGrowth,
			Recommendations: []string{
				"Strengthen cognitive development through complex problem-solving",
				"Deepen spiritual practice and contemplation",
				"Study philosophy of science and consciousness",
				"Practice holding paradox and uncertainty",
			},
			QuadrantRelevance: relevance(85, 30, 60, 70),
		}, true
	}
	return Insight{}, false
}

// =============================================================================
// Helpers
// =============================================================================

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// formatNumber prints a rating the way it was entered: 3 as "3", 2.5 as
// "2.5".
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
