// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package profile implements the state transitions of the quadrant
// builder: drag-and-drop placement, removal and assessment completion.
//
// Every function takes a profile by value and returns a new one; the
// input is never modified.
package profile

import (
	"errors"
	"fmt"
	"slices"

	"github.com/topherchris420/aqal/services/studio/catalog"
	"github.com/topherchris420/aqal/services/studio/datatypes"
)

var (
	// ErrUnknownQuadrant is returned for a droppable that is not a quadrant.
	ErrUnknownQuadrant = errors.New("unknown quadrant")

	// ErrIndexOutOfRange is returned when a source index has no component.
	ErrIndexOutOfRange = errors.New("component index out of range")
)

// Completion bounds.
const (
	MaxBuilderCompletion   = 85
	AssessmentCompletion   = 90
	CompletionPerComponent = 5
)

// CompletionFor returns the builder completion for a component count:
// 15 plus 5 per component, capped at 85.
func CompletionFor(total int) int {
	return min(datatypes.BaseCompletion+total*CompletionPerComponent, MaxBuilderCompletion)
}

// DragOutcome describes what a drag changed.
type DragOutcome struct {
	// Changed is false when the drag was a no-op.
	Changed bool `json:"changed"`

	// Added is set when a library component was placed. The caller should
	// start progress tracking for it.
	Added *datatypes.ComponentRef `json:"added,omitempty"`

	// Removed is set when a component was dragged back to the library.
	Removed *datatypes.ComponentRef `json:"removed,omitempty"`
}

// ApplyDragEnd applies a finished drag to the profile.
//
// # Description
//
// Mirrors the builder's drag-and-drop rules:
//
//   - no destination, or dropped where it started: no-op
//   - library to quadrant: the component is looked up by its draggable ID
//     and inserted at the destination index, unless the quadrant already
//     holds it
//   - quadrant to quadrant: the component is moved, splicing by index
//   - quadrant to library: the component is removed
//   - library to library: no-op
//
// Completion is recomputed after every add or remove. Insert indexes past
// the end append.
//
// # Outputs
//
//   - datatypes.Profile: The updated profile (a copy).
//   - DragOutcome: What changed.
//   - error: ErrUnknownQuadrant, ErrIndexOutOfRange or
//     catalog.ErrUnknownComponent.
func ApplyDragEnd(p datatypes.Profile, cat *catalog.Catalog, drag datatypes.DragRequest) (datatypes.Profile, DragOutcome, error) {
	dst := drag.Destination
	src := drag.Source
	if dst == nil {
		return p, DragOutcome{}, nil
	}
	if dst.DroppableID == src.DroppableID && dst.Index == src.Index {
		return p, DragOutcome{}, nil
	}

	switch {
	case src.IsLibrary() && !dst.IsLibrary():
		return addFromLibrary(p, cat, drag.DraggableID, *dst)
	case !src.IsLibrary() && !dst.IsLibrary():
		return move(p, src, *dst)
	case !src.IsLibrary() && dst.IsLibrary():
		out, removed, err := RemoveComponent(p, datatypes.QuadrantID(src.DroppableID), src.Index)
		if err != nil {
			return p, DragOutcome{}, err
		}
		return out, DragOutcome{Changed: true, Removed: &removed}, nil
	}
	return p, DragOutcome{}, nil
}

func addFromLibrary(p datatypes.Profile, cat *catalog.Catalog, draggableID string, dst datatypes.DragLocation) (datatypes.Profile, DragOutcome, error) {
	q := datatypes.QuadrantID(dst.DroppableID)
	if !q.Valid() {
		return p, DragOutcome{}, fmt.Errorf("%w: %s", ErrUnknownQuadrant, dst.DroppableID)
	}
	comp, err := cat.ComponentByDraggable(draggableID)
	if err != nil {
		return p, DragOutcome{}, err
	}
	ref := comp.Ref()

	out := p.Clone()
	out.Normalize()
	quad := out.Quadrants[q]
	if slices.ContainsFunc(quad.Components, func(c datatypes.ComponentRef) bool {
		return c.ID == ref.ID && c.Category == ref.Category
	}) {
		return p, DragOutcome{}, nil
	}

	quad.Components = slices.Insert(quad.Components, clampIndex(dst.Index, len(quad.Components)), ref)
	out.Quadrants[q] = quad
	out.Completion = CompletionFor(out.TotalComponents())
	return out, DragOutcome{Changed: true, Added: &ref}, nil
}

func move(p datatypes.Profile, src, dst datatypes.DragLocation) (datatypes.Profile, DragOutcome, error) {
	from, to := datatypes.QuadrantID(src.DroppableID), datatypes.QuadrantID(dst.DroppableID)
	if !from.Valid() {
		return p, DragOutcome{}, fmt.Errorf("%w: %s", ErrUnknownQuadrant, src.DroppableID)
	}
	if !to.Valid() {
		return p, DragOutcome{}, fmt.Errorf("%w: %s", ErrUnknownQuadrant, dst.DroppableID)
	}

	out := p.Clone()
	out.Normalize()
	fq := out.Quadrants[from]
	if src.Index < 0 || src.Index >= len(fq.Components) {
		return p, DragOutcome{}, fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, from, src.Index)
	}
	moved := fq.Components[src.Index]
	fq.Components = slices.Delete(fq.Components, src.Index, src.Index+1)
	out.Quadrants[from] = fq

	tq := out.Quadrants[to]
	tq.Components = slices.Insert(tq.Components, clampIndex(dst.Index, len(tq.Components)), moved)
	out.Quadrants[to] = tq
	return out, DragOutcome{Changed: true}, nil
}

func clampIndex(i, n int) int {
	return max(0, min(i, n))
}

// RemoveComponent removes the component at index from a quadrant and
// recomputes completion.
func RemoveComponent(p datatypes.Profile, q datatypes.QuadrantID, index int) (datatypes.Profile, datatypes.ComponentRef, error) {
	if !q.Valid() {
		return p, datatypes.ComponentRef{}, fmt.Errorf("%w: %s", ErrUnknownQuadrant, q)
	}
	out := p.Clone()
	out.Normalize()
	quad := out.Quadrants[q]
	if index < 0 || index >= len(quad.Components) {
		return p, datatypes.ComponentRef{}, fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, q, index)
	}
	removed := quad.Components[index]
	quad.Components = slices.Delete(quad.Components, index, index+1)
	out.Quadrants[q] = quad
	out.Completion = CompletionFor(out.TotalComponents())
	return out, removed, nil
}

// CompleteAssessment applies a finished assessment.
//
// Submitted line ratings are merged over the existing lines, the tier and
// stage are replaced, reflections are stored and completion is set to 90.
func CompleteAssessment(p datatypes.Profile, sub datatypes.AssessmentSubmission) datatypes.Profile {
	out := p.Clone()
	out.Normalize()
	for line, v := range sub.LineRatings {
		out.DevelopmentalLines[line] = v
	}
	out.SpiralTier = sub.SpiralTier
	out.EgoStage = sub.EgoStage
	if len(sub.QuadrantReflections) > 0 {
		out.QuadrantReflections = make(map[datatypes.QuadrantID]string, len(sub.QuadrantReflections))
		for q, text := range sub.QuadrantReflections {
			out.QuadrantReflections[datatypes.QuadrantID(q)] = text
		}
	}
	out.Completion = AssessmentCompletion
	return out
}
