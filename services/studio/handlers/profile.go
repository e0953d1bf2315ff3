// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/topherchris420/aqal/services/insight_engine"
	"github.com/topherchris420/aqal/services/studio/catalog"
	"github.com/topherchris420/aqal/services/studio/datatypes"
	"github.com/topherchris420/aqal/services/studio/monitoring"
	"github.com/topherchris420/aqal/services/studio/profile"
	"github.com/topherchris420/aqal/services/studio/progress"
)

// ProfileDeps are the dependencies of the profile endpoints.
type ProfileDeps struct {
	Users     *Users
	Catalog   *catalog.Catalog
	Tracker   *progress.Tracker
	Engine    *insight_engine.Engine
	Analytics *monitoring.Analytics
	Errors    *monitoring.ErrorTracker
}

// GetProfile handles GET /v1/profile.
func GetProfile(d ProfileDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := d.Users.Load(c.Request.Context(), caller(c).UserID)
		if err != nil {
			respondError(c, d.Errors, err)
			return
		}
		c.JSON(http.StatusOK, data.Profile)
	}
}

// PutProfile handles PUT /v1/profile.
//
// # Description
//
// Replaces the stored profile with the body. Missing quadrants, tier and
// stage are filled in and completion is clamped to 0..100. Quadrant keys
// other than the four canonical quadrants are rejected.
//
// # Outputs
//
//   - 200: the stored Profile
//   - 400: malformed body, unknown quadrant, a line or quadrant rating
//     outside 0..10, or an unknown tier or stage
func PutProfile(d ProfileDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p datatypes.Profile
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}
		for q := range p.Quadrants {
			if !q.Valid() {
				respondError(c, d.Errors, fmt.Errorf("%w: %q", profile.ErrUnknownQuadrant, q))
				return
			}
		}
		p.Normalize()
		p.Completion = min(max(p.Completion, 0), 100)
		if err := p.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "details": err.Error()})
			return
		}

		data, err := d.Users.Update(c.Request.Context(), caller(c).UserID, func(ud *datatypes.UserData) error {
			ud.Profile = p
			return nil
		})
		if err != nil {
			respondError(c, d.Errors, err)
			return
		}
		c.JSON(http.StatusOK, data.Profile)
	}
}

// Drag handles POST /v1/profile/drag.
//
// # Description
//
// Applies a finished drag-and-drop gesture from the builder. A component
// newly placed from the library starts progress tracking unless it is
// already tracked.
//
// # Outputs
//
//   - 200: {"profile": Profile, "outcome": profile.DragOutcome}
//   - 400: invalid drag or unknown quadrant
//   - 404: unknown component
func Drag(d ProfileDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindJSON[datatypes.DragRequest](c)
		if !ok {
			return
		}
		info := caller(c)

		var outcome profile.DragOutcome
		data, err := d.Users.Update(c.Request.Context(), info.UserID, func(ud *datatypes.UserData) error {
			p, out, err := profile.ApplyDragEnd(ud.Profile, d.Catalog, req)
			if err != nil {
				return err
			}
			ud.Profile = p
			outcome = out
			if out.Added != nil {
				if _, tracked := ud.Progress[out.Added.ID]; !tracked {
					ud.Progress[out.Added.ID] = d.Tracker.Initialize(out.Added.ID)
				}
			}
			return nil
		})
		if err != nil {
			respondError(c, d.Errors, err)
			return
		}

		switch {
		case outcome.Added != nil:
			d.Analytics.TrackUserAction(c.Request.Context(), info.UserID, "component_added",
				map[string]any{"component": outcome.Added.ID, "quadrant": req.Destination.DroppableID})
		case outcome.Removed != nil:
			d.Analytics.TrackUserAction(c.Request.Context(), info.UserID, "component_removed",
				map[string]any{"component": outcome.Removed.ID})
		}
		c.JSON(http.StatusOK, gin.H{"profile": data.Profile, "outcome": outcome})
	}
}

// RemoveComponent handles DELETE /v1/profile/quadrants/:quadrant/components/:index.
func RemoveComponent(d ProfileDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
			return
		}
		q := datatypes.QuadrantID(c.Param("quadrant"))

		var removed datatypes.ComponentRef
		data, err := d.Users.Update(c.Request.Context(), caller(c).UserID, func(ud *datatypes.UserData) error {
			p, r, err := profile.RemoveComponent(ud.Profile, q, index)
			if err != nil {
				return err
			}
			ud.Profile = p
			removed = r
			return nil
		})
		if err != nil {
			respondError(c, d.Errors, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"profile": data.Profile, "removed": removed})
	}
}

// SubmitAssessment handles POST /v1/assessment.
//
// The submission's ratings, tier, stage and reflections are applied and
// the response carries the fresh insights for the updated profile.
func SubmitAssessment(d ProfileDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, ok := bindJSON[datatypes.AssessmentSubmission](c)
		if !ok {
			return
		}
		info := caller(c)

		data, err := d.Users.Update(c.Request.Context(), info.UserID, func(ud *datatypes.UserData) error {
			ud.Profile = profile.CompleteAssessment(ud.Profile, sub)
			return nil
		})
		if err != nil {
			respondError(c, d.Errors, err)
			return
		}

		d.Analytics.TrackBusinessMetric(c.Request.Context(), "assessment_completed", 1,
			map[string]any{"user_id": info.UserID, "spiral_tier": sub.SpiralTier, "ego_stage": sub.EgoStage})
		c.JSON(http.StatusOK, gin.H{
			"profile":  data.Profile,
			"insights": d.Engine.GenerateInsights(data.Profile),
		})
	}
}

// VisualMap handles GET /v1/map.
func VisualMap(d ProfileDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := d.Users.Load(c.Request.Context(), caller(c).UserID)
		if err != nil {
			respondError(c, d.Errors, err)
			return
		}
		c.JSON(http.StatusOK, d.Engine.BuildVisualMap(data.Profile))
	}
}
