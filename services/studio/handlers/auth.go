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
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/topherchris420/aqal/pkg/logging"
	"github.com/topherchris420/aqal/services/studio/auth"
	"github.com/topherchris420/aqal/services/studio/datatypes"
	"github.com/topherchris420/aqal/services/studio/middleware"
	"github.com/topherchris420/aqal/services/studio/monitoring"
)

// =============================================================================
// Sign In / Out
// =============================================================================

// SignIn handles POST /v1/auth/signin.
//
// # Description
//
// Authenticates a demo account and returns a bearer token. Wrong
// credentials answer 401 without saying which field was wrong.
//
// # Inputs
//
//   - Body: datatypes.SignInRequest
//
// # Outputs
//
//   - 200: datatypes.SignInResponse
//   - 400: malformed body
//   - 401: {"error":"invalid email or password"}
func SignIn(svc *auth.Service, tracker *monitoring.ErrorTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindJSON[datatypes.SignInRequest](c)
		if !ok {
			return
		}

		resp, err := svc.SignIn(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
				return
			}
			respondError(c, tracker, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// SignInGuest handles POST /v1/auth/guest.
func SignInGuest(svc *auth.Service, tracker *monitoring.ErrorTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := svc.SignInAsGuest(c.Request.Context())
		if err != nil {
			respondError(c, tracker, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// SignOut handles POST /v1/auth/signout. The caller's token is revoked.
func SignOut(svc *auth.Service, tracker *monitoring.ErrorTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.SignOut(c.Request.Context(), middleware.BearerToken(c)); err != nil {
			respondError(c, tracker, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// Me handles GET /v1/auth/me.
func Me(svc *auth.Service, tracker *monitoring.ErrorTracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := svc.Session(c.Request.Context(), middleware.BearerToken(c))
		if err != nil {
			respondError(c, tracker, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user":            sess.User,
			"isAuthenticated": true,
			"isLoading":       false,
			"expiresAt":       sess.ExpiresAt,
		})
	}
}

// =============================================================================
// Auth State Events
// =============================================================================

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsBuffer     = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// AuthEvents handles GET /v1/auth/events.
//
// # Description
//
// Upgrades to a websocket and streams the caller's AuthState as JSON:
// first the current state, then every loading, sign-in and sign-out
// change. Browsers pass the token as ?token= because the handshake cannot
// carry an Authorization header.
//
// Messages from the client are read and discarded; a read error ends the
// stream. States are dropped for a client that falls wsBuffer messages
// behind.
//
// # Limitations
//
// Only the in-process auth service is observed. Sessions created by
// another replica are not seen.
func AuthEvents(svc *auth.Service, logger *logging.Logger) gin.HandlerFunc {
	log := logger.Module(logging.ModuleAuth)
	return func(c *gin.Context) {
		info := caller(c)
		token, _ := info.Metadata["session_token"].(string)

		states := make(chan datatypes.AuthState, wsBuffer)
		unsubscribe, err := svc.SubscribeSession(c.Request.Context(), token, func(st datatypes.AuthState) {
			select {
			case states <- st:
			default:
			}
		})
		if err != nil {
			respondError(c, nil, err)
			return
		}
		defer unsubscribe()

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn("failed to upgrade the websocket", "error", err, "user_id", info.UserID)
			return
		}
		defer ws.Close()
		log.Debug("auth events subscriber connected", "user_id", info.UserID)

		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := ws.NextReader(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-closed:
				log.Debug("auth events subscriber disconnected", "user_id", info.UserID)
				return
			case <-c.Request.Context().Done():
				return
			case st := <-states:
				_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := ws.WriteJSON(st); err != nil {
					log.Debug("failed to write auth state", "error", err)
					return
				}
			case <-ping.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}
}
