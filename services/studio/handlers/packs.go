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
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/topherchris420/aqal/services/insight_engine"
	"github.com/topherchris420/aqal/services/studio/datatypes"
	"github.com/topherchris420/aqal/services/studio/monitoring"
	"github.com/topherchris420/aqal/services/studio/packs"
)

// PackDeps are the dependencies of the expansion-pack endpoints.
type PackDeps struct {
	Users     *Users
	Manager   *packs.Manager
	Engine    *insight_engine.Engine
	Analytics *monitoring.Analytics
	Errors    *monitoring.ErrorTracker
}

// ListPacks handles GET /v1/packs.
func ListPacks(d PackDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := caller(c)
		data, err := d.Users.Load(c.Request.Context(), info.UserID)
		if err != nil {
			respondError(c, d.Errors, err)
			return
		}
		recommended := d.Engine.RecommendExpansionPacks(data.Profile)
		c.JSON(http.StatusOK, d.Manager.List(data, roleOf(info), recommended))
	}
}

// InstallPack handles POST /v1/packs/:id/install.
//
// # Outputs
//
//   - 200: datatypes.PackState (also for an already installed pack)
//   - 403: the pack is locked for the caller
//   - 404: unknown pack
func InstallPack(d PackDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := caller(c)
		packID := c.Param("id")

		var st datatypes.PackState
		_, err := d.Users.Update(c.Request.Context(), info.UserID, func(ud *datatypes.UserData) error {
			next, state, err := d.Manager.Install(*ud, packID, roleOf(info))
			if err != nil {
				return err
			}
			*ud = next
			st = state
			return nil
		})
		if err != nil {
			respondError(c, d.Errors, err)
			return
		}

		d.Analytics.TrackBusinessMetric(c.Request.Context(), "pack_installed", 1,
			map[string]any{"user_id": info.UserID, "pack_id": packID})
		c.JSON(http.StatusOK, st)
	}
}

// CompleteModule handles POST /v1/packs/:id/modules/:module/complete.
func CompleteModule(d PackDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := caller(c)
		packID, moduleID := c.Param("id"), c.Param("module")

		var st datatypes.PackState
		_, err := d.Users.Update(c.Request.Context(), info.UserID, func(ud *datatypes.UserData) error {
			next, state, err := d.Manager.CompleteModule(*ud, packID, moduleID)
			if err != nil {
				return err
			}
			*ud = next
			st = state
			return nil
		})
		if err != nil {
			respondError(c, d.Errors, err)
			return
		}

		d.Analytics.TrackUserAction(c.Request.Context(), info.UserID, "pack_module_completed",
			map[string]any{"pack_id": packID, "module_id": moduleID})
		c.JSON(http.StatusOK, st)
	}
}
