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
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/topherchris420/aqal/pkg/extensions"
	"github.com/topherchris420/aqal/services/studio/datatypes"
	"github.com/topherchris420/aqal/services/studio/monitoring"
)

// MaxImportBytes bounds an import document.
const MaxImportBytes = 10 << 20

// UserDataDeps are the dependencies of the preference and user data
// endpoints.
type UserDataDeps struct {
	Users  *Users
	Audit  extensions.AuditLogger
	Errors *monitoring.ErrorTracker
}

func (d UserDataDeps) audit(c *gin.Context, action, outcome string) {
	if d.Audit == nil {
		return
	}
	info := caller(c)
	_ = d.Audit.Log(c.Request.Context(), extensions.AuditEvent{
		EventType:    "userdata." + action,
		UserID:       info.UserID,
		Action:       action,
		ResourceType: "user_data",
		ResourceID:   info.UserID,
		Outcome:      outcome,
	})
}

// GetPreferences handles GET /v1/preferences.
func GetPreferences(d UserDataDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := d.Users.Load(c.Request.Context(), caller(c).UserID)
		if err != nil {
			respondError(c, d.Errors, err)
			return
		}
		c.JSON(http.StatusOK, data.Preferences)
	}
}

// PutPreferences handles PUT /v1/preferences.
func PutPreferences(d UserDataDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		prefs, ok := bindJSON[datatypes.Preferences](c)
		if !ok {
			return
		}
		data, err := d.Users.Update(c.Request.Context(), caller(c).UserID, func(ud *datatypes.UserData) error {
			ud.Preferences = prefs
			return nil
		})
		if err != nil {
			respondError(c, d.Errors, err)
			return
		}
		c.JSON(http.StatusOK, data.Preferences)
	}
}

// ExportUserData handles GET /v1/userdata/export.
//
// The document is served as a JSON attachment. 404 when the caller has
// never saved anything.
func ExportUserData(d UserDataDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := caller(c)
		doc, err := d.Users.Store().ExportUserData(c.Request.Context(), info.UserID)
		if err != nil {
			d.audit(c, "export", "failure")
			respondError(c, d.Errors, err)
			return
		}
		d.audit(c, "export", "success")
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="aqal-export-%s.json"`, info.UserID))
		c.Data(http.StatusOK, "application/json", doc)
	}
}

// ImportUserData handles POST /v1/userdata/import.
//
// # Description
//
// The body is an export document. Its data replaces the caller's data;
// the document's own userId is ignored. The imported data is returned.
//
// # Outputs
//
//   - 200: datatypes.UserData
//   - 400: not an export document
//   - 413: body larger than MaxImportBytes or the store's size limit
func ImportUserData(d UserDataDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := caller(c)
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxImportBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}
		if len(body) > MaxImportBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "import document too large"})
			return
		}

		if err := d.Users.Import(c.Request.Context(), info.UserID, body); err != nil {
			d.audit(c, "import", "failure")
			respondError(c, d.Errors, err)
			return
		}
		d.audit(c, "import", "success")

		data, err := d.Users.Load(c.Request.Context(), info.UserID)
		if err != nil {
			respondError(c, d.Errors, err)
			return
		}
		c.JSON(http.StatusOK, data)
	}
}

// DeleteUserData handles DELETE /v1/userdata.
func DeleteUserData(d UserDataDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.Users.Delete(c.Request.Context(), caller(c).UserID); err != nil {
			respondError(c, d.Errors, err)
			return
		}
		d.audit(c, "delete", "success")
		c.Status(http.StatusNoContent)
	}
}
