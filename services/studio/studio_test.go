// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/topherchris420/aqal/pkg/logging"
	"github.com/topherchris420/aqal/services/studio/datatypes"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Test Helpers
// =============================================================================

func newTestService(t *testing.T, mutate ...func(*Config)) Service {
	t.Helper()
	cfg := Config{
		GinMode:     gin.TestMode,
		Environment: "test",
		Version:     "test",
		Logger:      logging.New(logging.Config{Quiet: true}),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	svc, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

type client struct {
	t      *testing.T
	router http.Handler
	token  string
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.10:4000"
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	return w
}

func (c *client) signIn(email string) datatypes.SignInResponse {
	c.t.Helper()
	w := c.do(http.MethodPost, "/v1/auth/signin", map[string]string{"email": email, "password": "demo123"})
	require.Equal(c.t, http.StatusOK, w.Code, w.Body.String())
	var resp datatypes.SignInResponse
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(c.t, resp.Token)
	c.token = resp.Token
	return resp
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// =============================================================================
// Health and Metrics
// =============================================================================

func TestService_Health(t *testing.T) {
	svc := newTestService(t)
	c := &client{t: t, router: svc.Router()}

	w := c.do(http.MethodGet, "/health", nil)
	assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))
	assert.True(t, strings.HasSuffix(w.Header().Get("X-Health-Check-Duration"), "ms"))

	report := decode[struct {
		Status      string `json:"status"`
		Environment string `json:"environment"`
		Checks      map[string]struct {
			Status   string `json:"status"`
			Critical bool   `json:"critical"`
		} `json:"checks"`
	}](t, w)
	assert.Equal(t, report.Status, w.Header().Get("X-Health-Status"))
	assert.Equal(t, "test", report.Environment)
	require.Contains(t, report.Checks, "storage")
	assert.Equal(t, "healthy", report.Checks["storage"].Status)
	assert.True(t, report.Checks["storage"].Critical)
	if report.Status == "unhealthy" {
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	} else {
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w = c.do(http.MethodHead, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ServiceName, w.Header().Get("X-Service"))
	assert.Equal(t, "available", w.Header().Get("X-Status"))
}

func TestService_Metrics(t *testing.T) {
	svc := newTestService(t)
	c := &client{t: t, router: svc.Router()}

	c.do(http.MethodGet, "/v1/catalog/components", nil)

	w := c.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "aqal_http_requests_total")
	assert.Contains(t, w.Body.String(), `route="/v1/catalog/components"`)
}

// =============================================================================
// End-to-end Flow
// =============================================================================

func TestService_AuthRequired(t *testing.T) {
	svc := newTestService(t)
	c := &client{t: t, router: svc.Router()}

	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/v1/profile", nil).Code)

	w := c.do(http.MethodPost, "/v1/auth/signin", map[string]string{"email": "user@aqal-studio.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = c.do(http.MethodPost, "/v1/auth/signin", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Public routes need no token.
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/v1/assessment/steps", nil).Code)
}

func TestService_ProfileFlow(t *testing.T) {
	svc := newTestService(t)
	c := &client{t: t, router: svc.Router()}
	c.signIn("user@aqal-studio.com")

	w := c.do(http.MethodGet, "/v1/profile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[datatypes.Profile](t, w)
	assert.Empty(t, profile.Quadrants[datatypes.QuadrantID("individual_interior")].Components)

	// Drag a component from the library into a quadrant.
	w = c.do(http.MethodPost, "/v1/profile/drag", datatypes.DragRequest{
		DraggableID: "lines-emotional",
		Source:      datatypes.DragLocation{DroppableID: "library-lines", Index: 0},
		Destination: &datatypes.DragLocation{DroppableID: "individual_interior", Index: 0},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	dragged := decode[struct {
		Profile datatypes.Profile `json:"profile"`
	}](t, w)
	comps := dragged.Profile.Quadrants[datatypes.QuadrantID("individual_interior")].Components
	require.Len(t, comps, 1)
	assert.Equal(t, "emotional", comps[0].ID)

	// Adding the component started tracking it.
	w = c.do(http.MethodGet, "/v1/progress/emotional", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = c.do(http.MethodPost, "/v1/progress/emotional/entries", map[string]any{
		"level":      4,
		"reflection": "Noticed anger without acting on it.",
		"practices":  []string{"journaling"},
		"hours":      1.5,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	added := decode[struct {
		Progress struct {
			CurrentLevel       int     `json:"currentLevel"`
			TotalPracticeHours float64 `json:"totalPracticeHours"`
		} `json:"progress"`
		AchievedMilestones []datatypes.Milestone `json:"achievedMilestones"`
	}](t, w)
	assert.Equal(t, 4, added.Progress.CurrentLevel)
	assert.InDelta(t, 1.5, added.Progress.TotalPracticeHours, 0.001)
	assert.NotNil(t, added.AchievedMilestones)

	w = c.do(http.MethodPost, "/v1/progress/no-such-component/entries", map[string]any{"level": 2})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Insights reflect the stored profile.
	w = c.do(http.MethodGet, "/v1/insights", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Remove it again.
	w = c.do(http.MethodDelete, "/v1/profile/quadrants/individual_interior/components/0", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = c.do(http.MethodDelete, "/v1/profile/quadrants/individual_interior/components/0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestService_AdminRoutes(t *testing.T) {
	svc := newTestService(t)
	user := &client{t: t, router: svc.Router()}
	user.signIn("user@aqal-studio.com")
	assert.Equal(t, http.StatusForbidden, user.do(http.MethodGet, "/v1/admin/storage", nil).Code)

	admin := &client{t: t, router: svc.Router()}
	admin.signIn("admin@aqal-studio.com")
	w := admin.do(http.MethodGet, "/v1/admin/storage", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := decode[struct {
		ActiveSessions int `json:"activeSessions"`
	}](t, w)
	assert.Equal(t, 2, stats.ActiveSessions)

	assert.Equal(t, http.StatusOK, admin.do(http.MethodGet, "/v1/admin/errors", nil).Code)
}

func TestService_ExportImportRoundTrip(t *testing.T) {
	svc := newTestService(t)
	c := &client{t: t, router: svc.Router()}
	c.signIn("user@aqal-studio.com")

	w := c.do(http.MethodPut, "/v1/preferences", map[string]any{"theme": "dark", "reducedMotion": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = c.do(http.MethodGet, "/v1/userdata/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "aqal-export-")
	exported := w.Body.Bytes()

	assert.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/v1/userdata", nil).Code)
	prefs := decode[datatypes.Preferences](t, c.do(http.MethodGet, "/v1/preferences", nil))
	assert.NotEqual(t, "dark", prefs.Theme)

	w = c.do(http.MethodPost, "/v1/userdata/import", exported)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	prefs = decode[datatypes.Preferences](t, c.do(http.MethodGet, "/v1/preferences", nil))
	assert.Equal(t, "dark", prefs.Theme)
	assert.True(t, prefs.ReducedMotion)

	w = c.do(http.MethodPost, "/v1/userdata/import", []byte(`{"nope":true}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestService_SweepLogOnDisk(t *testing.T) {
	dir := t.TempDir()
	svc := newTestService(t, func(cfg *Config) {
		cfg.DataDir = filepath.Join(dir, "data")
		cfg.SweepLogPath = filepath.Join(dir, "logs", "ttl_sweeps.log")
	})
	c := &client{t: t, router: svc.Router()}
	c.signIn("user@aqal-studio.com")
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/v1/profile", nil).Code)
}

// =============================================================================
// Auth Events
// =============================================================================

func TestService_AuthEventsWebsocket(t *testing.T) {
	svc := newTestService(t)
	server := httptest.NewServer(svc.Router())
	defer server.Close()

	c := &client{t: t, router: svc.Router()}
	c.signIn("user@aqal-studio.com")

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/auth/events?token=" + c.token
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer ws.Close()

	var state datatypes.AuthState
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, ws.ReadJSON(&state))
	assert.True(t, state.IsAuthenticated)
	require.NotNil(t, state.User)
	assert.Equal(t, "user@aqal-studio.com", state.User.Email)

	assert.Equal(t, http.StatusNoContent, c.do(http.MethodPost, "/v1/auth/signout", nil).Code)

	// Loading states may arrive first; read until the signed-out state.
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var next datatypes.AuthState
		require.NoError(t, ws.ReadJSON(&next))
		if !next.IsAuthenticated && !next.IsLoading {
			assert.Nil(t, next.User)
			break
		}
	}
}

func TestService_AuthEventsRequiresToken(t *testing.T) {
	svc := newTestService(t)
	server := httptest.NewServer(svc.Router())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/auth/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
