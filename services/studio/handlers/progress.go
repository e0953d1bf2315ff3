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

	"github.com/gin-gonic/gin"
	"github.com/topherchris420/aqal/services/studio/catalog"
	"github.com/topherchris420/aqal/services/studio/datatypes"
	"github.com/topherchris420/aqal/services/studio/monitoring"
	"github.com/topherchris420/aqal/services/studio/progress"
)

// ProgressDeps are the dependencies of the progress endpoints.
type ProgressDeps struct {
	Users     *Users
	Catalog   *catalog.Catalog
	Tracker   *progress.Tracker
	Analytics *monitoring.Analytics
	Errors    *monitoring.ErrorTracker
}

// ComponentProgressView is one tracked component with derived fields.
type ComponentProgressView struct {
	datatypes.ComponentProgress
	Trend         datatypes.Trend      `json:"trend"`
	NextMilestone *datatypes.Milestone `json:"nextMilestone,omitempty"`
}

func viewOf(p datatypes.ComponentProgress) ComponentProgressView {
	v := ComponentProgressView{ComponentProgress: p, Trend: progress.Trend(p)}
	if m, ok := progress.NextMilestone(p); ok {
		v.NextMilestone = &m
	}
	return v
}

// ListProgress handles GET /v1/progress.
func ListProgress(d ProgressDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := d.Users.Load(c.Request.Context(), caller(c).UserID)
		if err != nil {
			respondError(c, d.Errors, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"progress":  data.Progress,
			"dashboard": progress.Dashboard(d.Catalog, data.Progress),
		})
	}
}

// GetProgress handles GET /v1/progress/:component.
func GetProgress(d ProgressDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("component")
		data, err := d.Users.Load(c.Request.Context(), caller(c).UserID)
		if err != nil {
			respondError(c, d.Errors, err)
			return
		}
		p, ok := data.Progress[id]
		if !ok {
			respondError(c, d.Errors, fmt.Errorf("%s: %w", id, errNotTracked))
			return
		}
		c.JSON(http.StatusOK, viewOf(p))
	}
}

// AddProgressEntry handles POST /v1/progress/:component/entries.
//
// # Description
//
// Records a practice entry. A catalog component that is not tracked yet
// is initialized first. Milestones reached by the entry's level are
// returned and reported as business metrics.
//
// # Outputs
//
//   - 201: {"progress": ComponentProgressView, "entry": ProgressEntry,
//     "achievedMilestones": []Milestone}
//   - 404: the component is neither tracked nor in the catalog
func AddProgressEntry(d ProgressDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindJSON[datatypes.ProgressEntryRequest](c)
		if !ok {
			return
		}
		info := caller(c)
		id := c.Param("component")

		var (
			entry    datatypes.ProgressEntry
			achieved []datatypes.Milestone
		)
		data, err := d.Users.Update(c.Request.Context(), info.UserID, func(ud *datatypes.UserData) error {
			p, tracked := ud.Progress[id]
			if !tracked {
				if _, known := d.Catalog.ComponentByID(id); !known {
					return fmt.Errorf("%s: %w", id, catalog.ErrUnknownComponent)
				}
				p = d.Tracker.Initialize(id)
			}
			next, e, reached := d.Tracker.AddEntry(p, req)
			ud.Progress[id] = next
			entry, achieved = e, reached
			return nil
		})
		if err != nil {
			respondError(c, d.Errors, err)
			return
		}

		for _, m := range achieved {
			d.Analytics.TrackBusinessMetric(c.Request.Context(), "milestone_achieved", float64(m.Level),
				map[string]any{"user_id": info.UserID, "component": id, "milestone": m.ID})
		}
		if achieved == nil {
			achieved = []datatypes.Milestone{}
		}
		c.JSON(http.StatusCreated, gin.H{
			"progress":           viewOf(data.Progress[id]),
			"entry":              entry,
			"achievedMilestones": achieved,
		})
	}
}
