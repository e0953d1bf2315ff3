// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides the studio's HTTP middleware.
//
// # Authentication Flow
//
//	Request
//	   │
//	   ▼
//	Auth
//	   │
//	   ├─► token from "Authorization: Bearer <token>"
//	   │   (or ?token= on websocket upgrades)
//	   │
//	   ├─► provider.Validate(ctx, token)
//	   │
//	   └─► AuthInfo stored in the gin context
//	           │
//	           ▼
//	       RequireRole (admin routes) ─► Handler (GetAuthInfo)
//
// The session service in services/studio/auth is the provider in
// production. extensions.NopAuthProvider authenticates everything as a
// local admin and is used by single-user CLI runs.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/topherchris420/aqal/pkg/extensions"
)

// =============================================================================
// Context Keys
// =============================================================================

// authInfoKey is the gin context key for the caller's AuthInfo.
const authInfoKey = "aqal_auth_info"

// =============================================================================
// Context Helpers
// =============================================================================

// SetAuthInfo stores the authenticated caller in the gin context.
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo returns the caller stored by Auth.
//
// # Outputs
//
//   - *extensions.AuthInfo: The caller, or nil on routes without Auth.
//
// # Examples
//
//	info := middleware.GetAuthInfo(c)
//	data, err := h.store.GetUserData(ctx, info.UserID, &ud)
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	if info, exists := c.Get(authInfoKey); exists {
		if authInfo, ok := info.(*extensions.AuthInfo); ok {
			return authInfo
		}
	}
	return nil
}

// =============================================================================
// Auth Middleware
// =============================================================================

// Auth authenticates requests with a bearer token.
//
// # Description
//
// The token is read from the Authorization header. Websocket upgrade
// requests may pass it as the token query parameter instead, since
// browsers cannot set headers on a websocket handshake.
//
// A provider error wrapping extensions.ErrUnauthorized answers 401
// {"error":"unauthorized"}; any other provider failure answers 401
// {"error":"authentication failed"}.
//
// # Thread Safety
//
// The returned handler is safe for concurrent use if the provider is.
func Auth(provider extensions.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)

		authInfo, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, extensions.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}

		SetAuthInfo(c, authInfo)
		c.Next()
	}
}

// RequireRole rejects callers that lack role with 403. It must run after
// Auth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := GetAuthInfo(c)
		if info == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !info.HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": extensions.ErrForbidden.Error()})
			return
		}
		c.Next()
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// BearerToken extracts the caller's token.
//
// # Description
//
// Parses "Authorization: Bearer <token>", matching the scheme
// case-insensitively. Websocket upgrades of EventsRoute may send the
// token query parameter instead. Every other route ignores it.
//
// # Outputs
//
//   - string: The token, or "" when none was sent.
func BearerToken(c *gin.Context) string {
	if token := extractBearerToken(c); token != "" {
		return token
	}
	if c.FullPath() == EventsRoute && strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return strings.TrimSpace(c.Query("token"))
	}
	return ""
}

// EventsRoute is the only route that accepts ?token=.
const EventsRoute = "/v1/auth/events"

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
