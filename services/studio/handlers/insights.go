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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/topherchris420/aqal/services/insight_engine"
	"github.com/topherchris420/aqal/services/studio/datatypes"
	"github.com/topherchris420/aqal/services/studio/monitoring"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var insightTracer = otel.Tracer("aqal.handlers.insights")

// InsightRecorder receives insight generation timings. Implemented by
// observability.Metrics.
type InsightRecorder interface {
	RecordInsightGeneration(kind string, d time.Duration)
}

// InsightDeps are the dependencies of the insight endpoints.
type InsightDeps struct {
	Users     *Users
	Engine    *insight_engine.Engine
	Analytics *monitoring.Analytics
	Metrics   InsightRecorder
	Errors    *monitoring.ErrorTracker
}

// generate loads the caller's profile and times fn against it.
func generate[T any](c *gin.Context, d InsightDeps, kind string, fn func(datatypes.Profile) T) {
	data, err := d.Users.Load(c.Request.Context(), caller(c).UserID)
	if err != nil {
		respondError(c, d.Errors, err)
		return
	}

	_, span := insightTracer.Start(c.Request.Context(), "insights.generate",
		trace.WithAttributes(
			attribute.String("insight.kind", kind),
			attribute.Int("profile.completion", data.Profile.Completion),
		),
	)
	start := time.Now()
	out := fn(data.Profile)
	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int64("insight.duration_us", elapsed.Microseconds()))
	span.End()

	if d.Metrics != nil {
		d.Metrics.RecordInsightGeneration(kind, elapsed)
	}
	d.Analytics.TrackPerformance(c.Request.Context(), "insight_"+kind, float64(elapsed.Microseconds())/1000, "ms")
	c.JSON(http.StatusOK, out)
}

// Insights handles GET /v1/insights and returns the full report.
func Insights(d InsightDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		generate(c, d, "report", d.Engine.GenerateReport)
	}
}

// DevelopmentPlan handles GET /v1/insights/plan.
func DevelopmentPlan(d InsightDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		generate(c, d, "plan", d.Engine.GenerateDevelopmentPlan)
	}
}

// PackRecommendations handles GET /v1/insights/packs.
func PackRecommendations(d InsightDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		generate(c, d, "packs", func(p datatypes.Profile) gin.H {
			return gin.H{"packs": d.Engine.RecommendExpansionPacks(p)}
		})
	}
}
