// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/topherchris420/aqal/pkg/extensions"
	"github.com/topherchris420/aqal/pkg/logging"
	"github.com/topherchris420/aqal/services/insight_engine"
	"github.com/topherchris420/aqal/services/storage/kvstore"
	"github.com/topherchris420/aqal/services/studio/auth"
	"github.com/topherchris420/aqal/services/studio/catalog"
	"github.com/topherchris420/aqal/services/studio/handlers"
	"github.com/topherchris420/aqal/services/studio/middleware"
	"github.com/topherchris420/aqal/services/studio/monitoring"
	"github.com/topherchris420/aqal/services/studio/packs"
	"github.com/topherchris420/aqal/services/studio/progress"
)

// Deps are the components the routes are wired to.
type Deps struct {
	Store     *kvstore.Store
	Users     *handlers.Users
	Auth      *auth.Service
	Provider  extensions.AuthProvider
	Audit     extensions.AuditLogger
	Catalog   *catalog.Catalog
	Engine    *insight_engine.Engine
	Tracker   *progress.Tracker
	Packs     *packs.Manager
	Errors    *monitoring.ErrorTracker
	Analytics *monitoring.Analytics
	Health    *monitoring.HealthChecker
	Logger    *logging.Logger

	// Metrics is served at /metrics and records insight timings. Optional.
	Metrics interface {
		handlers.InsightRecorder
		Handler() http.Handler
	}

	// SignInLimiter guards the sign-in endpoints. Optional.
	SignInLimiter *middleware.RateLimiter
}

// SetupRoutes registers every studio endpoint on router.
func SetupRoutes(router *gin.Engine, d Deps) {
	router.GET("/health", handlers.HealthCheck(d.Health))
	router.HEAD("/health", handlers.HealthHead())
	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	var insightRecorder handlers.InsightRecorder
	if d.Metrics != nil {
		insightRecorder = d.Metrics
	}
	profileDeps := handlers.ProfileDeps{
		Users: d.Users, Catalog: d.Catalog, Tracker: d.Tracker,
		Engine: d.Engine, Analytics: d.Analytics, Errors: d.Errors,
	}
	insightDeps := handlers.InsightDeps{
		Users: d.Users, Engine: d.Engine, Analytics: d.Analytics,
		Metrics: insightRecorder, Errors: d.Errors,
	}
	packDeps := handlers.PackDeps{
		Users: d.Users, Manager: d.Packs, Engine: d.Engine,
		Analytics: d.Analytics, Errors: d.Errors,
	}
	progressDeps := handlers.ProgressDeps{
		Users: d.Users, Catalog: d.Catalog, Tracker: d.Tracker,
		Analytics: d.Analytics, Errors: d.Errors,
	}
	userDataDeps := handlers.UserDataDeps{Users: d.Users, Audit: d.Audit, Errors: d.Errors}

	requireAuth := middleware.Auth(d.Provider)
	signInGuard := func(c *gin.Context) { c.Next() }
	if d.SignInLimiter != nil {
		signInGuard = d.SignInLimiter.Handler()
	}

	// API version 1 group
	v1 := router.Group("/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/signin", signInGuard, handlers.SignIn(d.Auth, d.Errors))
			authGroup.POST("/guest", signInGuard, handlers.SignInGuest(d.Auth, d.Errors))
			authGroup.POST("/signout", requireAuth, handlers.SignOut(d.Auth, d.Errors))
			authGroup.GET("/me", requireAuth, handlers.Me(d.Auth, d.Errors))
			authGroup.GET("/events", requireAuth, handlers.AuthEvents(d.Auth, d.Logger))
		}

		v1.GET("/catalog/components", handlers.ListComponents(d.Catalog))
		v1.GET("/catalog/packs", handlers.ListCatalogPacks(d.Catalog))
		v1.GET("/assessment/steps", handlers.AssessmentSteps(d.Catalog))
		v1.GET("/assessment/questions", handlers.AssessmentQuestions(d.Catalog))

		user := v1.Group("", requireAuth)
		{
			user.GET("/profile", handlers.GetProfile(profileDeps))
			user.PUT("/profile", handlers.PutProfile(profileDeps))
			user.POST("/profile/drag", handlers.Drag(profileDeps))
			user.DELETE("/profile/quadrants/:quadrant/components/:index", handlers.RemoveComponent(profileDeps))
			user.POST("/assessment", handlers.SubmitAssessment(profileDeps))
			user.GET("/map", handlers.VisualMap(profileDeps))

			user.GET("/insights", handlers.Insights(insightDeps))
			user.GET("/insights/plan", handlers.DevelopmentPlan(insightDeps))
			user.GET("/insights/packs", handlers.PackRecommendations(insightDeps))

			user.GET("/packs", handlers.ListPacks(packDeps))
			user.POST("/packs/:id/install", handlers.InstallPack(packDeps))
			user.POST("/packs/:id/modules/:module/complete", handlers.CompleteModule(packDeps))

			user.GET("/progress", handlers.ListProgress(progressDeps))
			user.GET("/progress/:component", handlers.GetProgress(progressDeps))
			user.POST("/progress/:component/entries", handlers.AddProgressEntry(progressDeps))

			user.GET("/preferences", handlers.GetPreferences(userDataDeps))
			user.PUT("/preferences", handlers.PutPreferences(userDataDeps))
			user.GET("/userdata/export", handlers.ExportUserData(userDataDeps))
			user.POST("/userdata/import", handlers.ImportUserData(userDataDeps))
			user.DELETE("/userdata", handlers.DeleteUserData(userDataDeps))

			user.POST("/analytics/events", handlers.TrackEvent(d.Analytics))
		}

		// Admin routes
		admin := v1.Group("/admin", requireAuth, middleware.RequireRole(extensions.RoleAdmin))
		{
			admin.GET("/analytics", handlers.AnalyticsSnapshot(d.Analytics))
			admin.DELETE("/analytics", handlers.ClearAnalytics(d.Analytics, d.Audit))
			admin.GET("/storage", handlers.StorageStats(d.Store, d.Auth, d.Errors))
			admin.GET("/errors", handlers.ListErrors(d.Errors))
			admin.GET("/audit", handlers.ListAudit(d.Audit, d.Errors))
		}
	}
}
