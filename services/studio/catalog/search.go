// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"cmp"
	"slices"
	"strings"
)

// Sort keys accepted by Search.
const (
	SortByName       = "name"
	SortByDifficulty = "difficulty"
	SortByCategory   = "category"
	SortByRelevance  = "relevance"
)

// SearchQuery filters and orders the component library. Empty fields and
// the value "all" disable a filter.
type SearchQuery struct {
	Query      string `form:"q"`
	Category   string `form:"category"`
	Difficulty string `form:"difficulty"`
	SortBy     string `form:"sortBy"`
	Order      string `form:"order"`
}

// Search filters the library and sorts the result.
//
// # Description
//
// The query matches case-insensitively against name, description and any
// keyword. Sorting is stable, so components with equal keys keep library
// order. "relevance" sorts by highest quadrant relevance, most relevant
// first in ascending order. Order "desc" reverses every comparison.
//
// # Examples
//
//	c.Search(SearchQuery{Query: "body", SortBy: "difficulty"})
//	// Kinesthetic (lines)
func (c *Catalog) Search(q SearchQuery) []Component {
	needle := strings.ToLower(strings.TrimSpace(q.Query))

	out := make([]Component, 0)
	for _, comp := range c.Components() {
		if needle != "" && !matches(comp, needle) {
			continue
		}
		if q.Category != "" && q.Category != "all" && comp.Category != q.Category {
			continue
		}
		if q.Difficulty != "" && q.Difficulty != "all" && string(comp.Difficulty) != q.Difficulty {
			continue
		}
		out = append(out, comp)
	}

	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = SortByName
	}
	desc := q.Order == "desc"
	slices.SortStableFunc(out, func(a, b Component) int {
		var r int
		switch sortBy {
		case SortByName:
			r = cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case SortByDifficulty:
			r = cmp.Compare(a.Difficulty.Rank(), b.Difficulty.Rank())
		case SortByCategory:
			r = cmp.Compare(a.CategoryTitle, b.CategoryTitle)
		case SortByRelevance:
			r = cmp.Compare(b.MaxRelevance(), a.MaxRelevance())
		}
		if desc {
			return -r
		}
		return r
	})
	return out
}

func matches(comp Component, needle string) bool {
	if strings.Contains(strings.ToLower(comp.Name), needle) ||
		strings.Contains(strings.ToLower(comp.Description), needle) {
		return true
	}
	for _, kw := range comp.Keywords {
		if strings.Contains(strings.ToLower(kw), needle) {
			return true
		}
	}
	return false
}
