// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/topherchris420/aqal/pkg/ux"
	"github.com/topherchris420/aqal/services/insight_engine"
	"github.com/topherchris420/aqal/services/studio/datatypes"
)

var quadrantColors = map[datatypes.QuadrantID]lipgloss.Color{
	datatypes.IndividualInterior: ux.ColorInterior,
	datatypes.IndividualExterior: ux.ColorBehavioral,
	datatypes.CollectiveInterior: ux.ColorCultural,
	datatypes.CollectiveExterior: ux.ColorSocial,
}

const (
	quadrantCellWidth = 32
	lineBarWidth      = 20
)

// renderMap draws the 2x2 quadrant grid, the line ratings and the
// tier/stage footer. Machine output is one key=value record per line.
func renderMap(m insight_engine.VisualMap) string {
	var b strings.Builder
	if ux.GetPersonality().Level == ux.PersonalityMachine {
		for _, q := range m.Quadrants {
			fmt.Fprintf(&b, "quadrant=%s components=%d strength=%.0f\n", q.Quadrant, q.Components, q.Strength)
		}
		for _, lv := range m.Lines {
			fmt.Fprintf(&b, "line=%s value=%.1f\n", lv.Line, lv.Value)
		}
		fmt.Fprintf(&b, "overall=%.1f spiral=%s ego=%s strongest=%s\n",
			m.OverallDevelopment, m.SpiralTier, m.EgoStage, m.StrongestQuadrant)
		return b.String()
	}

	cells := make(map[datatypes.QuadrantID]string, len(m.Quadrants))
	for _, q := range m.Quadrants {
		color := quadrantColors[q.Quadrant]
		title := lipgloss.NewStyle().Bold(true).Foreground(color).Render(strings.ToUpper(q.Quadrant.Label()))
		if q.Quadrant == m.StrongestQuadrant && q.Components > 0 {
			title += " " + ux.Styles.Highlight.Render("★")
		}
		body := fmt.Sprintf("%s\n%d components\n%s", title, q.Components, ux.ProgressBar(q.Strength, 100, 16))
		cells[q.Quadrant] = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(color).
			Width(quadrantCellWidth).
			Padding(0, 1).
			Render(body)
	}
	b.WriteString(lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, cells[datatypes.IndividualInterior], cells[datatypes.IndividualExterior]),
		lipgloss.JoinHorizontal(lipgloss.Top, cells[datatypes.CollectiveInterior], cells[datatypes.CollectiveExterior]),
	))
	b.WriteString("\n\n")

	b.WriteString(ux.Styles.Title.Render("Developmental lines") + "\n")
	for _, lv := range m.Lines {
		name := fmt.Sprintf("%-14s", lv.Line)
		if lv.Line == m.HighestLine {
			name = ux.Styles.Highlight.Render(name)
		}
		fmt.Fprintf(&b, "  %s %s\n", name, ux.ProgressBar(lv.Value, 10, lineBarWidth))
	}
	fmt.Fprintf(&b, "\n  %s %s   %s %s   %s %.1f/10\n",
		ux.Styles.Muted.Render("spiral"), m.SpiralTier,
		ux.Styles.Muted.Render("ego"), m.EgoStage,
		ux.Styles.Muted.Render("overall"), m.OverallDevelopment,
	)
	return b.String()
}

// renderReport lays out the insight report followed by the plan.
func renderReport(r insight_engine.Report, plan insight_engine.DevelopmentPlan) string {
	var b strings.Builder
	machine := ux.GetPersonality().Level == ux.PersonalityMachine

	if machine {
		fmt.Fprintf(&b, "score=%d goals=%d growth_areas=%d\n", r.OverallScore, r.ActiveGoals, r.GrowthAreas)
		fmt.Fprintf(&b, "summary=%s\n", r.Summary)
		for _, in := range r.Recommendations {
			fmt.Fprintf(&b, "insight=%s severity=%s category=%s title=%q\n", in.ID, in.Severity, in.Category, in.Title)
		}
		fmt.Fprintf(&b, "timeframe=%s\n", plan.EstimatedTimeframe)
		return b.String()
	}

	b.WriteString(ux.Styles.Title.Render("Integral insights") + "\n")
	fmt.Fprintf(&b, "  %s %d   %s %d   %s %d\n\n",
		ux.Styles.Muted.Render("score"), r.OverallScore,
		ux.Styles.Muted.Render("active goals"), r.ActiveGoals,
		ux.Styles.Muted.Render("growth areas"), r.GrowthAreas,
	)
	b.WriteString(ux.Styles.Box.Width(72).Render(r.Summary) + "\n\n")

	for _, in := range r.Recommendations {
		fmt.Fprintf(&b, "%s %s %s\n", severityIcon(in.Severity).Render(), ux.Styles.Bold.Render(in.Title),
			ux.Styles.Muted.Render("("+string(in.Category)+")"))
		fmt.Fprintf(&b, "  %s\n", in.Description)
		for _, rec := range in.Recommendations {
			fmt.Fprintf(&b, "  %s %s\n", ux.IconArrow, rec)
		}
		b.WriteString("\n")
	}

	b.WriteString(ux.Styles.Title.Render("Development plan") + ux.Styles.Muted.Render(" ("+plan.EstimatedTimeframe+")") + "\n")
	for _, stage := range []struct {
		name  string
		goals []string
	}{
		{"Short term", plan.ShortTerm},
		{"Medium term", plan.MediumTerm},
		{"Long term", plan.LongTerm},
	} {
		if len(stage.goals) == 0 {
			continue
		}
		b.WriteString(ux.Styles.Subtitle.Render(stage.name) + "\n")
		for _, g := range stage.goals {
			fmt.Fprintf(&b, "  %s %s\n", ux.IconBullet, g)
		}
	}
	return b.String()
}

func severityIcon(s insight_engine.Severity) ux.Icon {
	switch s {
	case insight_engine.SeverityCritical:
		return ux.IconError
	case insight_engine.SeverityHigh:
		return ux.IconWarning
	case insight_engine.SeverityMedium:
		return ux.IconPending
	default:
		return ux.IconBullet
	}
}
