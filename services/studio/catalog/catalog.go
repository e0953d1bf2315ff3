// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package catalog holds the studio's static content: the component library,
quadrant descriptions, expansion packs, the assessment wizard and the
milestone templates used by the progress tracker.

The content lives in catalog.yaml, which is baked into the binary with the
embed package so the library is identical on every host.
*/
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/topherchris420/aqal/services/studio/datatypes"
	"gopkg.in/yaml.v3"
)

// Embedded holds the raw bytes of catalog.yaml.
//
//go:embed catalog.yaml
var Embedded []byte

// ErrUnknownComponent is returned when a component lookup misses.
var ErrUnknownComponent = errors.New("unknown component")

// =============================================================================
// Types
// =============================================================================

// Difficulty grades a library component.
type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
)

// Rank orders difficulties from 1 (beginner) to 3 (advanced).
func (d Difficulty) Rank() int {
	switch d {
	case Beginner:
		return 1
	case Intermediate:
		return 2
	case Advanced:
		return 3
	}
	return 0
}

// UnmarshalYAML rejects unknown difficulty values at load time.
func (d *Difficulty) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch Difficulty(s) {
	case Beginner, Intermediate, Advanced:
		*d = Difficulty(s)
		return nil
	case "":
		*d = Intermediate
		return nil
	}
	return fmt.Errorf("line %d: invalid difficulty %q", value.Line, s)
}

// Component is one draggable item in the library.
type Component struct {
	ID                string         `yaml:"id" json:"id"`
	Name              string         `yaml:"name" json:"name"`
	Description       string         `yaml:"description" json:"description"`
	Difficulty        Difficulty     `yaml:"difficulty" json:"difficulty"`
	Keywords          []string       `yaml:"keywords" json:"keywords"`
	Category          string         `yaml:"-" json:"category"`
	CategoryTitle     string         `yaml:"-" json:"categoryTitle"`
	QuadrantRelevance map[string]int `yaml:"-" json:"quadrantRelevance"`
}

// DraggableID is the identifier the builder uses for a library item.
func (c Component) DraggableID() string {
	return c.Category + "-" + c.ID
}

// Ref converts the component into the form stored inside a quadrant.
func (c Component) Ref() datatypes.ComponentRef {
	return datatypes.ComponentRef{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Category:    c.Category,
	}
}

// MaxRelevance is the component's highest quadrant relevance.
func (c Component) MaxRelevance() int {
	best := 0
	for _, v := range c.QuadrantRelevance {
		best = max(best, v)
	}
	return best
}

// Category groups library components.
type Category struct {
	ID         string         `yaml:"id" json:"id"`
	Title      string         `yaml:"title" json:"title"`
	Relevance  map[string]int `yaml:"relevance" json:"relevance"`
	Components []Component    `yaml:"components" json:"components"`
}

// QuadrantInfo describes one quadrant for display.
type QuadrantInfo struct {
	ID          datatypes.QuadrantID `yaml:"id" json:"id"`
	Title       string               `yaml:"title" json:"title"`
	ShortTitle  string               `yaml:"shortTitle" json:"shortTitle"`
	Subtitle    string               `yaml:"subtitle" json:"subtitle"`
	Description string               `yaml:"description" json:"description"`
	Examples    []string             `yaml:"examples" json:"examples"`
}

// PackModule is one unit of an expansion pack.
type PackModule struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
}

// Pack is an expansion pack.
//
// A locked pack opens when every pack in Requires is complete, or when at
// least RequiresCompleted other packs are complete.
type Pack struct {
	ID                string       `yaml:"id" json:"id"`
	Title             string       `yaml:"title" json:"title"`
	Description       string       `yaml:"description" json:"description"`
	Difficulty        string       `yaml:"difficulty" json:"difficulty"`
	Duration          string       `yaml:"duration" json:"duration"`
	Category          string       `yaml:"category" json:"category"`
	Unlocked          bool         `yaml:"unlocked" json:"unlocked"`
	Prerequisite      string       `yaml:"prerequisite" json:"prerequisite,omitempty"`
	Requires          []string     `yaml:"requires" json:"requires,omitempty"`
	RequiresCompleted int          `yaml:"requiresCompleted" json:"requiresCompleted,omitempty"`
	Modules           []PackModule `yaml:"modules" json:"modules"`
	Benefits          []string     `yaml:"benefits" json:"benefits"`
}

// HasModule reports whether id names one of the pack's modules.
func (p Pack) HasModule(id string) bool {
	return slices.ContainsFunc(p.Modules, func(m PackModule) bool { return m.ID == id })
}

// StepOption is a selectable choice on an assessment step.
type StepOption struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// AssessmentStep is one page of the assessment wizard.
type AssessmentStep struct {
	ID          string       `yaml:"id" json:"id"`
	Title       string       `yaml:"title" json:"title"`
	Description string       `yaml:"description" json:"description"`
	Options     []StepOption `yaml:"options" json:"options,omitempty"`
}

// QuestionOption is one answer to an assessment question.
type QuestionOption struct {
	Value string `yaml:"value" json:"value"`
	Text  string `yaml:"text" json:"text"`
}

// Question is a multiple-choice assessment question.
type Question struct {
	ID       string           `yaml:"id" json:"id"`
	Category string           `yaml:"category" json:"category"`
	Question string           `yaml:"question" json:"question"`
	Options  []QuestionOption `yaml:"options" json:"options"`
}

// Assessment bundles the wizard steps and questions.
type Assessment struct {
	Steps     []AssessmentStep `yaml:"steps" json:"steps"`
	Questions []Question       `yaml:"questions" json:"questions"`
}

// MilestoneTemplate is an unachieved milestone definition.
type MilestoneTemplate struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Level       int    `yaml:"level" json:"level"`
}

// MilestoneSet holds per-component templates and the fallback set.
type MilestoneSet struct {
	Default    []MilestoneTemplate            `yaml:"default"`
	Components map[string][]MilestoneTemplate `yaml:"components"`
}

// Catalog is the parsed content file.
type Catalog struct {
	Quadrants  []QuadrantInfo `yaml:"quadrants" json:"quadrants"`
	Categories []Category     `yaml:"categories" json:"categories"`
	Packs      []Pack         `yaml:"packs" json:"packs"`
	Assessment Assessment     `yaml:"assessment" json:"assessment"`
	Milestones MilestoneSet   `yaml:"milestones" json:"-"`
}

// =============================================================================
// Loading
// =============================================================================

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Load(Embedded)
})

// Default returns the catalog parsed from the embedded file. It is parsed
// once and shared; callers must not modify it.
func Default() (*Catalog, error) {
	return loadDefault()
}

// Load parses and checks a catalog document.
//
// # Description
//
// Decodes the YAML, copies each category's ID, title and quadrant relevance
// onto its components, and checks cross references: every quadrant is
// described, component IDs are unique within a category, and every pack
// named in a prerequisite exists.
//
// # Outputs
//
// Returns an error wrapping the first problem found.
func Load(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the catalog file: %w", err)
	}

	for _, q := range datatypes.QuadrantIDs {
		if !slices.ContainsFunc(c.Quadrants, func(info QuadrantInfo) bool { return info.ID == q }) {
			return nil, fmt.Errorf("catalog is missing quadrant %q", q)
		}
	}

	for i := range c.Categories {
		cat := &c.Categories[i]
		seen := make(map[string]bool, len(cat.Components))
		for j := range cat.Components {
			comp := &cat.Components[j]
			if comp.ID == "" {
				return nil, fmt.Errorf("category %q has a component without an id", cat.ID)
			}
			if seen[comp.ID] {
				return nil, fmt.Errorf("category %q has duplicate component %q", cat.ID, comp.ID)
			}
			seen[comp.ID] = true
			if comp.Difficulty == "" {
				comp.Difficulty = Intermediate
			}
			comp.Category = cat.ID
			comp.CategoryTitle = cat.Title
			comp.QuadrantRelevance = relevanceOrDefault(cat.Relevance)
		}
	}

	packIDs := make(map[string]bool, len(c.Packs))
	for _, p := range c.Packs {
		packIDs[p.ID] = true
	}
	for _, p := range c.Packs {
		if len(p.Modules) == 0 {
			return nil, fmt.Errorf("pack %q has no modules", p.ID)
		}
		for _, req := range p.Requires {
			if !packIDs[req] {
				return nil, fmt.Errorf("pack %q requires unknown pack %q", p.ID, req)
			}
		}
	}

	if len(c.Milestones.Default) == 0 {
		return nil, errors.New("catalog has no default milestones")
	}
	return &c, nil
}

// relevanceOrDefault returns a copy of rel, or 50 for every quadrant when
// the category defines none.
func relevanceOrDefault(rel map[string]int) map[string]int {
	out := make(map[string]int, len(datatypes.QuadrantIDs))
	for _, q := range datatypes.QuadrantIDs {
		v, ok := rel[string(q)]
		if !ok {
			v = 50
		}
		out[string(q)] = v
	}
	return out
}

// =============================================================================
// Lookups
// =============================================================================

// Components returns every library component in category order.
func (c *Catalog) Components() []Component {
	var out []Component
	for _, cat := range c.Categories {
		out = append(out, cat.Components...)
	}
	return out
}

// Component finds a component by category and ID.
func (c *Catalog) Component(category, id string) (Component, error) {
	for _, cat := range c.Categories {
		if cat.ID != category {
			continue
		}
		for _, comp := range cat.Components {
			if comp.ID == id {
				return comp, nil
			}
		}
	}
	return Component{}, fmt.Errorf("%w: %s-%s", ErrUnknownComponent, category, id)
}

// ComponentByID returns the first component with the given ID in any
// category. Progress records are keyed by bare component ID.
func (c *Catalog) ComponentByID(id string) (Component, bool) {
	for _, cat := range c.Categories {
		for _, comp := range cat.Components {
			if comp.ID == id {
				return comp, true
			}
		}
	}
	return Component{}, false
}

// ComponentByDraggable resolves a builder draggable ID of the form
// "<category>-<id>". Only the first dash separates the two, so
// "states-deep-sleep" resolves to the deep-sleep state.
func (c *Catalog) ComponentByDraggable(draggableID string) (Component, error) {
	for i := 0; i < len(draggableID); i++ {
		if draggableID[i] == '-' {
			return c.Component(draggableID[:i], draggableID[i+1:])
		}
	}
	return Component{}, fmt.Errorf("%w: %s", ErrUnknownComponent, draggableID)
}

// Quadrant returns the display information for q.
func (c *Catalog) Quadrant(q datatypes.QuadrantID) (QuadrantInfo, bool) {
	for _, info := range c.Quadrants {
		if info.ID == q {
			return info, true
		}
	}
	return QuadrantInfo{}, false
}

// Pack finds an expansion pack by ID.
func (c *Catalog) Pack(id string) (Pack, bool) {
	for _, p := range c.Packs {
		if p.ID == id {
			return p, true
		}
	}
	return Pack{}, false
}

// MilestonesFor returns fresh, unachieved milestones for a component. The
// default set is used when the component has no template.
func (c *Catalog) MilestonesFor(componentID string) []datatypes.Milestone {
	tmpl, ok := c.Milestones.Components[componentID]
	if !ok {
		tmpl = c.Milestones.Default
	}
	out := make([]datatypes.Milestone, len(tmpl))
	for i, m := range tmpl {
		out[i] = datatypes.Milestone{
			ID:          m.ID,
			Title:       m.Title,
			Description: m.Description,
			Level:       m.Level,
		}
	}
	return out
}
