// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/topherchris420/aqal/pkg/logging"
)

// RequestLogger logs every finished request on the api module.
//
// Server errors log at Error, client errors at Warn and the rest at the
// HTTP level. Requests slower than logging.SlowRequestThreshold are also
// reported on the performance module.
func RequestLogger(logger *logging.Logger) gin.HandlerFunc {
	api := logger.Module(logging.ModuleAPI)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", c.FullPath(),
			"status", status,
			"status_class", statusClass(status),
			"duration_ms", elapsed.Milliseconds(),
			"speed", logging.RequestSpeed(elapsed),
			"performance", logging.PerformanceCategory(elapsed),
			"client_ip", c.ClientIP(),
		}
		if info := GetAuthInfo(c); info != nil {
			args = append(args, "user_id", info.UserID)
		}
		if len(c.Errors) > 0 {
			args = append(args, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			api.Error("HTTP Request", args...)
		case status >= 400:
			api.Warn("HTTP Request", args...)
		default:
			api.HTTP("HTTP Request", args...)
		}

		if elapsed > logging.SlowRequestThreshold {
			logger.Performance("slow_request", elapsed,
				"method", c.Request.Method,
				"route", c.FullPath(),
			)
		}
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	}
	return "1xx"
}
