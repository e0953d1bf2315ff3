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
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/topherchris420/aqal/pkg/extensions"
	"github.com/topherchris420/aqal/services/storage/kvstore"
	"github.com/topherchris420/aqal/services/studio/auth"
	"github.com/topherchris420/aqal/services/studio/datatypes"
	"github.com/topherchris420/aqal/services/studio/monitoring"
)

// TrackEvent handles POST /v1/analytics/events.
func TrackEvent(analytics *monitoring.Analytics) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindJSON[datatypes.AnalyticsEventRequest](c)
		if !ok {
			return
		}
		analytics.Track(c.Request.Context(), caller(c).UserID, req)
		c.Status(http.StatusAccepted)
	}
}

// AnalyticsSnapshot handles GET /v1/admin/analytics.
func AnalyticsSnapshot(analytics *monitoring.Analytics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, analytics.Snapshot())
	}
}

// ClearAnalytics handles DELETE /v1/admin/analytics. Captured errors are
// cleared too.
func ClearAnalytics(analytics *monitoring.Analytics, audit extensions.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		analytics.Clear()
		if audit != nil {
			info := caller(c)
			_ = audit.Log(c.Request.Context(), extensions.AuditEvent{
				EventType:    "analytics.clear",
				UserID:       info.UserID,
				Action:       "clear",
				ResourceType: "analytics",
				Outcome:      "success",
			})
		}
		c.Status(http.StatusNoContent)
	}
}

// Audit listing bounds.
const (
	DefaultAuditLimit = 100
	MaxAuditLimit     = 1000
)

// ListAudit handles GET /v1/admin/audit.
//
// # Description
//
// Returns recorded audit events, newest first. Query parameters narrow
// the result:
//
//	?type=auth.signin,auth.signout   event types, comma separated
//	?user=user_001                   acting user
//	?outcome=failure                 success, failure or denied
//	?since=2025-03-01T00:00:00Z      RFC 3339 lower bound
//	?limit=50                        1..1000, default 100
//
// # Outputs
//
//   - 200: {"events": [...], "count": n}
//   - 400: malformed since or limit
func ListAudit(audit extensions.AuditLogger, tracker *monitoring.ErrorTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := extensions.AuditFilter{
			UserID:  c.Query("user"),
			Outcome: c.Query("outcome"),
			Limit:   DefaultAuditLimit,
		}
		if types := c.Query("type"); types != "" {
			for _, t := range strings.Split(types, ",") {
				if t = strings.TrimSpace(t); t != "" {
					filter.EventTypes = append(filter.EventTypes, t)
				}
			}
		}
		if since := c.Query("since"); since != "" {
			ts, err := time.Parse(time.RFC3339, since)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC 3339 timestamp"})
				return
			}
			filter.StartTime = ts
		}
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > MaxAuditLimit {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
				return
			}
			filter.Limit = n
		}

		events := []extensions.AuditEvent{}
		if audit != nil {
			found, err := audit.Query(c.Request.Context(), filter)
			if err != nil {
				respondError(c, tracker, err)
				return
			}
			events = found
		}
		c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
	}
}

// StorageStats handles GET /v1/admin/storage.
func StorageStats(store *kvstore.Store, svc *auth.Service, tracker *monitoring.ErrorTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := store.Stats(c.Request.Context())
		if err != nil {
			respondError(c, tracker, err)
			return
		}
		sessions, err := svc.ActiveSessions(c.Request.Context())
		if err != nil {
			respondError(c, tracker, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"stats":          stats,
			"maxSize":        store.MaxSize(),
			"activeSessions": sessions,
		})
	}
}

// ListErrors handles GET /v1/admin/errors.
//
// ?limit= bounds the list (default 50). ?id= returns a single error or
// 404.
func ListErrors(tracker *monitoring.ErrorTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.Query("id"); id != "" {
			e, ok := tracker.ErrorByID(id)
			if !ok {
				c.JSON(http.StatusNotFound, gin.H{"error": "error not found"})
				return
			}
			c.JSON(http.StatusOK, e)
			return
		}

		limit := monitoring.DefaultErrorLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}
		c.JSON(http.StatusOK, gin.H{
			"errors": tracker.Errors(limit),
			"stats":  tracker.Stats(),
		})
	}
}
