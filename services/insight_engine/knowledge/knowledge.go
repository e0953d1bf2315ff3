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
Package knowledge bakes the integral theory knowledge base into the binary
with the embed package. The engine parses it at startup; an operator may
point the engine at an external copy instead, which is parsed with the
same Parse function.
*/
package knowledge

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// KnowledgeBaseYAML holds the raw bytes of knowledge_base.yaml.
//
// Usage:
//
//	kb, err := knowledge.Parse(knowledge.KnowledgeBaseYAML)
//
//go:embed knowledge_base.yaml
var KnowledgeBaseYAML []byte

// DefaultRelevance is the quadrant relevance used for unknown lines.
const DefaultRelevance = 50

// EgoStage describes one stage of ego development.
type EgoStage struct {
	Level       int      `yaml:"level" json:"level"`
	Description string   `yaml:"description" json:"description"`
	Challenges  []string `yaml:"challenges" json:"challenges"`
}

// SpiralTier describes one spiral dynamics level.
type SpiralTier struct {
	Tier            int      `yaml:"tier" json:"tier"`
	Focus           string   `yaml:"focus" json:"focus"`
	Values          []string `yaml:"values" json:"values"`
	Recommendations []string `yaml:"recommendations" json:"recommendations"`
}

// DevelopmentLine describes one line of development.
type DevelopmentLine struct {
	Description string         `yaml:"description" json:"description"`
	Practices   []string       `yaml:"practices" json:"practices"`
	Relevance   map[string]int `yaml:"relevance" json:"relevance"`
}

// MultiverseModel is one cosmological model.
type MultiverseModel struct {
	ID           string   `yaml:"id" json:"id"`
	Name         string   `yaml:"name" json:"name"`
	Description  string   `yaml:"description" json:"description"`
	Implications []string `yaml:"implications" json:"implications"`
	Practices    []string `yaml:"practices" json:"practices"`
}

// CosmologicalPerspectives groups the multiverse material.
type CosmologicalPerspectives struct {
	MultiverseModels          []MultiverseModel `yaml:"multiverseModels" json:"multiverseModels"`
	ConsciousnessImplications map[string]string `yaml:"consciousnessImplications" json:"consciousnessImplications"`
}

// KnowledgeBase is the parsed knowledge file.
type KnowledgeBase struct {
	EgoStages                map[string]EgoStage        `yaml:"egoStages" json:"egoStages"`
	SpiralTiers              map[string]SpiralTier      `yaml:"spiralTiers" json:"spiralTiers"`
	DevelopmentLines         map[string]DevelopmentLine `yaml:"developmentLines" json:"developmentLines"`
	CosmologicalPerspectives CosmologicalPerspectives   `yaml:"cosmologicalPerspectives" json:"cosmologicalPerspectives"`
}

// Parse decodes and checks a knowledge base document.
func Parse(data []byte) (*KnowledgeBase, error) {
	var kb KnowledgeBase
	if err := yaml.Unmarshal(data, &kb); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the knowledge base: %w", err)
	}
	if len(kb.EgoStages) == 0 {
		return nil, errors.New("knowledge base has no ego stages")
	}
	if len(kb.SpiralTiers) == 0 {
		return nil, errors.New("knowledge base has no spiral tiers")
	}
	if len(kb.DevelopmentLines) == 0 {
		return nil, errors.New("knowledge base has no development lines")
	}
	for name, tier := range kb.SpiralTiers {
		if tier.Focus == "" {
			return nil, fmt.Errorf("spiral tier %q has no focus", name)
		}
	}
	return &kb, nil
}

// Embedded parses the knowledge base compiled into the binary.
func Embedded() (*KnowledgeBase, error) {
	return Parse(KnowledgeBaseYAML)
}

// LoadFile parses a knowledge base from disk.
func LoadFile(path string) (*KnowledgeBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base %s: %w", path, err)
	}
	return Parse(data)
}

// LineRelevance returns the quadrant relevance of a line, or 50 for every
// quadrant when the line is unknown.
func (kb *KnowledgeBase) LineRelevance(line string, quadrants []string) map[string]int {
	out := make(map[string]int, len(quadrants))
	info, ok := kb.DevelopmentLines[line]
	for _, q := range quadrants {
		v := DefaultRelevance
		if ok {
			if r, found := info.Relevance[q]; found {
				v = r
			}
		}
		out[q] = v
	}
	return out
}
