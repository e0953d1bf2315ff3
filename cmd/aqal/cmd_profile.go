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
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/topherchris420/aqal/pkg/ux"
	"github.com/topherchris420/aqal/services/insight_engine"
)

func runInsights(cmd *cobra.Command, args []string) error {
	p, err := loadProfile(cmd.Context(), profilePath)
	if err != nil {
		return err
	}
	engine, err := insight_engine.NewEngine()
	if err != nil {
		return err
	}
	report := engine.GenerateReport(p)
	plan := engine.GenerateDevelopmentPlan(p)

	if jsonOutput {
		return printJSON(struct {
			Report insight_engine.Report          `json:"report"`
			Plan   insight_engine.DevelopmentPlan `json:"plan"`
			Packs  []string                       `json:"recommendedPacks"`
		}{report, plan, engine.RecommendExpansionPacks(p)})
	}
	fmt.Fprint(ux.Output, renderReport(report, plan))
	if ux.GetPersonality().ShowTips && len(report.Recommendations) == 0 {
		ux.Info("Add components to each quadrant or run `aqal assess` for richer insights.")
	}
	return nil
}

func runMap(cmd *cobra.Command, args []string) error {
	p, err := loadProfile(cmd.Context(), profilePath)
	if err != nil {
		return err
	}
	engine, err := insight_engine.NewEngine()
	if err != nil {
		return err
	}
	m := engine.BuildVisualMap(p)
	if jsonOutput {
		return printJSON(m)
	}
	fmt.Fprint(ux.Output, renderMap(m))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(ux.Output)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
