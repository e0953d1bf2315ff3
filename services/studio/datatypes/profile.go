// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the studio service.
//
// This file contains the AQAL profile: the four quadrants with their
// placed components, the developmental line ratings, and the spiral tier
// and ego stage chosen during assessment.
package datatypes

import (
	"maps"
	"slices"
	"sort"
)

// =============================================================================
// Quadrants
// =============================================================================

// QuadrantID names one of the four AQAL quadrants.
type QuadrantID string

const (
	IndividualInterior QuadrantID = "individual_interior"
	IndividualExterior QuadrantID = "individual_exterior"
	CollectiveInterior QuadrantID = "collective_interior"
	CollectiveExterior QuadrantID = "collective_exterior"
)

// QuadrantIDs lists the quadrants in canonical order. Every analysis that
// picks "the first" quadrant with some property walks this slice.
var QuadrantIDs = []QuadrantID{
	IndividualInterior,
	IndividualExterior,
	CollectiveInterior,
	CollectiveExterior,
}

// Valid reports whether q is one of the four quadrants.
func (q QuadrantID) Valid() bool {
	return slices.Contains(QuadrantIDs, q)
}

// Label returns the quadrant with its first underscore replaced by a
// space, e.g. "individual interior".
func (q QuadrantID) Label() string {
	s := string(q)
	for i := 0; i < len(s); i++ {
		if s[i] == '_' {
			return s[:i] + " " + s[i+1:]
		}
	}
	return s
}

// ComponentRef is a library component placed in a quadrant.
type ComponentRef struct {
	ID          string `json:"id" validate:"required,max=128"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
}

// Quadrant holds the components a user placed in one quadrant.
type Quadrant struct {
	Components []ComponentRef `json:"components" validate:"max=100,dive"`
	Rating     int            `json:"rating" validate:"gte=0,lte=10"`
}

// =============================================================================
// Developmental Lines
// =============================================================================

// CanonicalLines is the fixed iteration order for developmental lines.
// Lines outside this list follow in alphabetical order.
var CanonicalLines = []string{
	"cognitive",
	"emotional",
	"moral",
	"spiritual",
	"interpersonal",
	"kinesthetic",
	"aesthetic",
}

// DefaultLines are the lines a new profile starts with.
var DefaultLines = []string{
	"cognitive",
	"emotional",
	"moral",
	"spiritual",
	"interpersonal",
	"kinesthetic",
}

// LineValue is one developmental line rating.
type LineValue struct {
	Line  string  `json:"line"`
	Value float64 `json:"value"`
}

// OrderedLines returns the ratings in canonical order.
//
// # Description
//
// Go maps have no order, so every computation that depends on position
// (strongest line ties, insight ordering) goes through this function.
//
// # Examples
//
//	OrderedLines(map[string]float64{"zeal": 1, "moral": 4, "cognitive": 6})
//	// [{cognitive 6} {moral 4} {zeal 1}]
func OrderedLines(lines map[string]float64) []LineValue {
	out := make([]LineValue, 0, len(lines))
	for _, name := range CanonicalLines {
		if v, ok := lines[name]; ok {
			out = append(out, LineValue{Line: name, Value: v})
		}
	}

	var extra []string
	for name := range lines {
		if !slices.Contains(CanonicalLines, name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		out = append(out, LineValue{Line: name, Value: lines[name]})
	}
	return out
}

// =============================================================================
// Profile
// =============================================================================

// Profile is a user's AQAL map.
//
// Line ratings and quadrant ratings are 0..10. The tier and stage must be
// one of the known spiral tiers and ego stages.
type Profile struct {
	Quadrants           map[QuadrantID]Quadrant `json:"quadrants" validate:"dive,keys,quadrant,endkeys"`
	DevelopmentalLines  map[string]float64      `json:"developmentalLines" validate:"max=32,dive,keys,required,max=64,endkeys,gte=0,lte=10"`
	SpiralTier          string                  `json:"spiralTier" validate:"required,oneof=beige purple red blue orange green yellow turquoise"`
	EgoStage            string                  `json:"egoStage" validate:"required,oneof=opportunist diplomat expert achiever individualist strategist alchemist"`
	StateExperiences    []string                `json:"stateExperiences" validate:"max=100,dive,max=500"`
	QuadrantReflections map[QuadrantID]string   `json:"quadrantReflections,omitempty" validate:"dive,keys,quadrant,endkeys,max=4000"`
	Completion          int                     `json:"completion" validate:"gte=0,lte=100"`
}

// Default profile values.
const (
	DefaultSpiralTier = "orange"
	DefaultEgoStage   = "achiever"
	BaseCompletion    = 15
)

// NewProfile returns the starting profile: empty quadrants, six lines at
// zero, orange tier, achiever stage and 15% completion.
func NewProfile() Profile {
	p := Profile{
		Quadrants:          make(map[QuadrantID]Quadrant, len(QuadrantIDs)),
		DevelopmentalLines: make(map[string]float64, len(DefaultLines)),
		SpiralTier:         DefaultSpiralTier,
		EgoStage:           DefaultEgoStage,
		StateExperiences:   []string{},
		Completion:         BaseCompletion,
	}
	for _, q := range QuadrantIDs {
		p.Quadrants[q] = Quadrant{Components: []ComponentRef{}}
	}
	for _, line := range DefaultLines {
		p.DevelopmentalLines[line] = 0
	}
	return p
}

// Normalize fills in any quadrant, map, tier or stage missing from a
// decoded profile.
func (p *Profile) Normalize() {
	if p.SpiralTier == "" {
		p.SpiralTier = DefaultSpiralTier
	}
	if p.EgoStage == "" {
		p.EgoStage = DefaultEgoStage
	}
	if p.Quadrants == nil {
		p.Quadrants = make(map[QuadrantID]Quadrant, len(QuadrantIDs))
	}
	for _, q := range QuadrantIDs {
		quad := p.Quadrants[q]
		if quad.Components == nil {
			quad.Components = []ComponentRef{}
		}
		p.Quadrants[q] = quad
	}
	if p.DevelopmentalLines == nil {
		p.DevelopmentalLines = make(map[string]float64)
	}
	if p.StateExperiences == nil {
		p.StateExperiences = []string{}
	}
}

// Validate checks ratings, quadrant keys, tier and stage.
func (p *Profile) Validate() error {
	return validate.Struct(p)
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (p Profile) Clone() Profile {
	out := p
	out.Quadrants = make(map[QuadrantID]Quadrant, len(p.Quadrants))
	for id, q := range p.Quadrants {
		out.Quadrants[id] = Quadrant{
			Components: slices.Clone(q.Components),
			Rating:     q.Rating,
		}
	}
	out.DevelopmentalLines = maps.Clone(p.DevelopmentalLines)
	out.StateExperiences = slices.Clone(p.StateExperiences)
	out.QuadrantReflections = maps.Clone(p.QuadrantReflections)
	return out
}

// TotalComponents counts components across all quadrants.
func (p Profile) TotalComponents() int {
	total := 0
	for _, q := range p.Quadrants {
		total += len(q.Components)
	}
	return total
}

// Line returns a line rating, zero when absent.
func (p Profile) Line(name string) float64 {
	return p.DevelopmentalLines[name]
}

// AverageLine is the mean line rating, or zero with no lines.
func (p Profile) AverageLine() float64 {
	if len(p.DevelopmentalLines) == 0 {
		return 0
	}
	sum := 0.0
	for _, lv := range OrderedLines(p.DevelopmentalLines) {
		sum += lv.Value
	}
	return sum / float64(len(p.DevelopmentalLines))
}
