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
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/topherchris420/aqal/cmd/aqal/config"
	"github.com/topherchris420/aqal/pkg/ux"
	"github.com/topherchris420/aqal/services/studio/catalog"
	"github.com/topherchris420/aqal/services/studio/datatypes"
	"github.com/topherchris420/aqal/services/studio/profile"
)

var errNotInteractive = errors.New("assess needs an interactive terminal; pass answers through the API instead")

// assessmentAnswers are the values the wizard's fields are bound to.
type assessmentAnswers struct {
	SpiralTier  string
	EgoStage    string
	Lines       []string
	Ratings     map[string]*int
	Reflections map[datatypes.QuadrantID]*string
}

// newAssessmentAnswers prefills the wizard from p. Ratings start at the
// profile's value, rounded and clamped to 1..10. A profile without lines
// is asked about the default ones.
func newAssessmentAnswers(p datatypes.Profile) *assessmentAnswers {
	a := &assessmentAnswers{
		SpiralTier:  p.SpiralTier,
		EgoStage:    p.EgoStage,
		Ratings:     make(map[string]*int),
		Reflections: make(map[datatypes.QuadrantID]*string, len(datatypes.QuadrantIDs)),
	}
	lines := datatypes.OrderedLines(p.DevelopmentalLines)
	if len(lines) == 0 {
		for _, line := range datatypes.DefaultLines {
			lines = append(lines, datatypes.LineValue{Line: line})
		}
	}
	for _, lv := range lines {
		v := max(1, min(10, int(math.Round(lv.Value))))
		a.Lines = append(a.Lines, lv.Line)
		a.Ratings[lv.Line] = &v
	}
	for _, q := range datatypes.QuadrantIDs {
		text := p.QuadrantReflections[q]
		a.Reflections[q] = &text
	}
	return a
}

// Submission converts the answers. Empty reflections are dropped.
func (a *assessmentAnswers) Submission() datatypes.AssessmentSubmission {
	sub := datatypes.AssessmentSubmission{
		LineRatings:         make(map[string]float64, len(a.Ratings)),
		QuadrantReflections: make(map[string]string),
		SpiralTier:          a.SpiralTier,
		EgoStage:            a.EgoStage,
	}
	for line, v := range a.Ratings {
		sub.LineRatings[line] = float64(*v)
	}
	for q, text := range a.Reflections {
		if *text != "" {
			sub.QuadrantReflections[string(q)] = *text
		}
	}
	return sub
}

// assessmentForm builds one wizard page per assessment step: stage,
// tier, line ratings and quadrant reflections.
func assessmentForm(cat *catalog.Catalog, a *assessmentAnswers) *huh.Form {
	var ratingFields []huh.Field
	for _, line := range a.Lines {
		title := line
		if comp, ok := cat.ComponentByID(line); ok {
			title = comp.Name
		}
		options := make([]huh.Option[int], 0, 10)
		for i := 1; i <= 10; i++ {
			options = append(options, huh.NewOption(strconv.Itoa(i), i))
		}
		ratingFields = append(ratingFields, huh.NewSelect[int]().
			Title(title).
			Options(options...).
			Inline(true).
			Value(a.Ratings[line]))
	}

	var reflectionFields []huh.Field
	for _, q := range datatypes.QuadrantIDs {
		title := q.Label()
		description := ""
		if info, ok := cat.Quadrant(q); ok {
			title, description = info.Title, info.Subtitle
		}
		reflectionFields = append(reflectionFields, huh.NewText().
			Title(title).
			Description(description).
			CharLimit(4000).
			Value(a.Reflections[q]))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Ego development stage").
				Options(categoryOptions(cat, "ego")...).
				Value(&a.EgoStage),
			huh.NewSelect[string]().
				Title("Spiral Dynamics tier").
				Options(categoryOptions(cat, "spiral")...).
				Value(&a.SpiralTier),
		).Title("Stages"),
		huh.NewGroup(ratingFields...).
			Title("Developmental lines").
			Description("Rate each line from 1 (emerging) to 10 (mastered)."),
		huh.NewGroup(reflectionFields...).
			Title("Quadrant reflections").
			Description("Optional. Leave blank to skip."),
	)
}

func categoryOptions(cat *catalog.Catalog, categoryID string) []huh.Option[string] {
	var out []huh.Option[string]
	for _, c := range cat.Categories {
		if c.ID != categoryID {
			continue
		}
		for _, comp := range c.Components {
			out = append(out, huh.NewOption(comp.Name, comp.ID))
		}
	}
	return out
}

func runAssess(cmd *cobra.Command, args []string) error {
	if !ux.IsInteractive() {
		return errNotInteractive
	}
	ctx := cmd.Context()

	cat, err := catalog.Default()
	if err != nil {
		return err
	}

	var (
		ls      *localStore
		current datatypes.Profile
	)
	if profilePath != "" {
		if current, err = readProfileFile(profilePath); err != nil {
			return err
		}
	} else {
		if ls, err = openLocalStore(ctx, config.Global); err != nil {
			return err
		}
		defer ls.Close()
		data, err := ls.users.Load(ctx, config.Global.UserID)
		if err != nil {
			return err
		}
		current = data.Profile
	}

	answers := newAssessmentAnswers(current)
	if err := assessmentForm(cat, answers).RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			ux.Warning("Assessment cancelled, nothing was saved.")
			return nil
		}
		return err
	}

	sub := answers.Submission()
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("invalid answers: %w", err)
	}
	updated := profile.CompleteAssessment(current, sub)

	if ls == nil {
		if err := writeProfileFile(profilePath, updated); err != nil {
			return err
		}
		ux.Success("Assessment saved to " + profilePath)
		return nil
	}
	if _, err := ls.users.Update(ctx, config.Global.UserID, func(ud *datatypes.UserData) error {
		ud.Profile = updated
		return nil
	}); err != nil {
		return err
	}
	ux.Success("Assessment saved for " + config.Global.UserID)
	return nil
}
