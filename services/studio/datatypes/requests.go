// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// LibraryPrefix marks droppable areas inside the component library.
const LibraryPrefix = "library-"

// =============================================================================
// Shared Validator Instance
// =============================================================================

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("quadrant", validateQuadrant)
	_ = validate.RegisterValidation("droppable", validateDroppable)
}

// validateQuadrant accepts the four canonical quadrant IDs.
func validateQuadrant(fl validator.FieldLevel) bool {
	return QuadrantID(fl.Field().String()).Valid()
}

// validateDroppable accepts a quadrant ID or any library area.
func validateDroppable(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	return strings.HasPrefix(id, LibraryPrefix) || QuadrantID(id).Valid()
}

// =============================================================================
// Auth
// =============================================================================

// SignInRequest is the body of POST /v1/auth/signin.
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Validate checks the request.
func (r *SignInRequest) Validate() error {
	return validate.Struct(r)
}

// =============================================================================
// Profile
// =============================================================================

// DragLocation is one end of a drag: a droppable area and an index in it.
type DragLocation struct {
	DroppableID string `json:"droppableId" validate:"required,droppable"`
	Index       int    `json:"index" validate:"gte=0"`
}

// IsLibrary reports whether the location is inside the component library.
func (l DragLocation) IsLibrary() bool {
	return strings.HasPrefix(l.DroppableID, LibraryPrefix)
}

// DragRequest is a completed drag-and-drop gesture. A nil Destination
// means the item was dropped outside any droppable area.
type DragRequest struct {
	DraggableID string        `json:"draggableId" validate:"required"`
	Source      DragLocation  `json:"source"`
	Destination *DragLocation `json:"destination" validate:"omitempty"`
}

// Validate checks the request.
func (r *DragRequest) Validate() error {
	return validate.Struct(r)
}

// AssessmentSubmission is the result of the four-step assessment wizard.
type AssessmentSubmission struct {
	QuadrantReflections map[string]string  `json:"quadrantReflections" validate:"dive,keys,quadrant,endkeys,max=4000"`
	LineRatings         map[string]float64 `json:"lineRatings" validate:"required,min=1,dive,keys,required,endkeys,gte=1,lte=10"`
	SpiralTier          string             `json:"spiralTier" validate:"required,oneof=beige purple red blue orange green yellow turquoise"`
	EgoStage            string             `json:"egoStage" validate:"required,oneof=opportunist diplomat expert achiever individualist strategist alchemist"`
}

// Validate checks the submission.
func (r *AssessmentSubmission) Validate() error {
	return validate.Struct(r)
}

// =============================================================================
// Progress
// =============================================================================

// ProgressEntryRequest is the body of POST /v1/progress/:component/entries.
type ProgressEntryRequest struct {
	Level      int      `json:"level" validate:"gte=1,lte=10"`
	Reflection string   `json:"reflection" validate:"max=4000"`
	Milestone  string   `json:"milestone"`
	Practices  []string `json:"practices" validate:"max=50"`
	Challenges []string `json:"challenges" validate:"max=50"`
	Insights   []string `json:"insights" validate:"max=50"`
	Hours      float64  `json:"hours" validate:"gte=0,lte=24"`
}

// Validate checks the request.
func (r *ProgressEntryRequest) Validate() error {
	return validate.Struct(r)
}

// =============================================================================
// Analytics
// =============================================================================

// AnalyticsEventRequest is a client-reported analytics event.
type AnalyticsEventRequest struct {
	Type       string         `json:"type" validate:"required,oneof=page_view user_action performance business_metric"`
	Page       string         `json:"page" validate:"required_if=Type page_view"`
	Action     string         `json:"action" validate:"required_if=Type user_action"`
	Metric     string         `json:"metric" validate:"required_if=Type performance"`
	Event      string         `json:"event" validate:"required_if=Type business_metric"`
	Value      float64        `json:"value"`
	Unit       string         `json:"unit"`
	Properties map[string]any `json:"properties"`
}

// Validate checks the request.
func (r *AnalyticsEventRequest) Validate() error {
	return validate.Struct(r)
}
