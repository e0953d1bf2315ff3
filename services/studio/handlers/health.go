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

	"github.com/gin-gonic/gin"
	"github.com/topherchris420/aqal/services/studio/monitoring"
)

// ServiceName is reported by HEAD /health.
const ServiceName = "aqal-studio"

// HealthCheck handles GET /health.
//
// # Description
//
// Runs every registered check and returns the full report. The status
// code is 503 when the report is unhealthy and 200 otherwise, so a
// degraded service stays in rotation.
//
// # Outputs
//
//   - Headers: Cache-Control (no caching), X-Health-Check-Duration (ms),
//     X-Health-Status.
//   - Body: monitoring.Report
func HealthCheck(checker *monitoring.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := checker.Report(c.Request.Context())

		code := http.StatusOK
		if report.Status == monitoring.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("X-Health-Check-Duration", strconv.FormatInt(report.DurationMs, 10)+"ms")
		c.Header("X-Health-Status", string(report.Status))
		c.JSON(code, report)
	}
}

// HealthHead handles HEAD /health without running any check.
func HealthHead() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("X-Service", ServiceName)
		c.Header("X-Status", "available")
		c.Status(http.StatusOK)
	}
}
