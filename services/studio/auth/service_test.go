// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/topherchris420/aqal/pkg/extensions"
	"github.com/topherchris420/aqal/pkg/logging"
	aqalbadger "github.com/topherchris420/aqal/services/storage/badger"
	"github.com/topherchris420/aqal/services/storage/kvstore"
	"github.com/topherchris420/aqal/services/studio/datatypes"
)

// =============================================================================
// Test Helpers
// =============================================================================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type attemptMetrics struct {
	mu       sync.Mutex
	attempts map[string]int
}

func (m *attemptMetrics) RecordAuthAttempt(method string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempts == nil {
		m.attempts = make(map[string]int)
	}
	key := method + ":fail"
	if success {
		key = method + ":ok"
	}
	m.attempts[key]++
}

type fixture struct {
	svc     *Service
	store   *kvstore.Store
	clock   *fakeClock
	audit   *extensions.MemoryAuditLogger
	metrics *attemptMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := aqalbadger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := logging.New(logging.Config{Quiet: true})
	clock := &fakeClock{now: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
	store, err := kvstore.Open(context.Background(), db, kvstore.Config{Clock: clock.Now, Logger: logger})
	require.NoError(t, err)

	audit := extensions.NewMemoryAuditLogger(100, logger.Slog())
	metrics := &attemptMetrics{}
	svc := NewService(store, Config{
		Clock:   clock.Now,
		Logger:  logger,
		Audit:   audit,
		Metrics: metrics,
	})
	return &fixture{svc: svc, store: store, clock: clock, audit: audit, metrics: metrics}
}

// =============================================================================
// Tests
// =============================================================================

func TestDemoUsers(t *testing.T) {
	users := DemoUsers()
	require.Len(t, users, 2)
	assert.Equal(t, "admin_001", users[0].ID)
	assert.Equal(t, datatypes.RoleAdmin, users[0].Role)
	assert.Equal(t, "user@aqal-studio.com", users[1].Email)
	assert.Equal(t, "2024-01-01T00:00:00Z", users[1].CreatedAt.Format(time.RFC3339))
}

func TestSignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.SignIn(ctx, "admin@aqal-studio.com", "demo123")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "admin_001", resp.User.ID)
	assert.Equal(t, f.clock.Now(), resp.User.LastActive)
	assert.Equal(t, f.clock.Now().Add(DefaultSessionTTL), resp.ExpiresAt)

	found, err := f.store.Get(ctx, SessionKeyPrefix+resp.Token, nil)
	require.NoError(t, err)
	assert.True(t, found)

	info, err := f.svc.Validate(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin_001", info.UserID)
	assert.True(t, info.HasRole(extensions.RoleAdmin))
	assert.Equal(t, resp.Token, info.Metadata["session_token"])

	_, err = f.svc.SignIn(ctx, "  USER@aqal-studio.com ", "demo123")
	assert.NoError(t, err, "email match ignores case and spaces")

	n, err := f.svc.ActiveSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, f.metrics.attempts["password:ok"])
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SignIn(ctx, "user@aqal-studio.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.SignIn(ctx, "nobody@example.com", "demo123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	n, err := f.svc.ActiveSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, f.metrics.attempts["password:fail"])

	events, err := f.audit.Query(ctx, extensions.AuditFilter{Outcome: "failure"})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestSignInAsGuest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.SignInAsGuest(ctx)
	require.NoError(t, err)
	b, err := f.svc.SignInAsGuest(ctx)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a.User.ID, "guest_"))
	assert.Len(t, a.User.ID, len("guest_")+8)
	assert.NotEqual(t, a.User.ID, b.User.ID)
	assert.Equal(t, "Guest User", a.User.Name)
	assert.Equal(t, "guest@aqal-studio.com", a.User.Email)

	info, err := f.svc.Validate(ctx, a.Token)
	require.NoError(t, err)
	assert.True(t, info.IsGuest())
	assert.Equal(t, 2, f.metrics.attempts["guest:ok"])
}

func TestValidate_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Validate(ctx, "")
	assert.ErrorIs(t, err, extensions.ErrUnauthorized)
	_, err = f.svc.Validate(ctx, "not-a-token")
	assert.ErrorIs(t, err, extensions.ErrUnauthorized)

	resp, err := f.svc.SignIn(ctx, "user@aqal-studio.com", "demo123")
	require.NoError(t, err)
	f.clock.Advance(DefaultSessionTTL + time.Minute)
	_, err = f.svc.Validate(ctx, resp.Token)
	assert.ErrorIs(t, err, extensions.ErrUnauthorized)
}

func TestSignOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.SignIn(ctx, "user@aqal-studio.com", "demo123")
	require.NoError(t, err)
	require.True(t, f.svc.State("user_001").IsAuthenticated)

	require.NoError(t, f.svc.SignOut(ctx, resp.Token))
	_, err = f.svc.Validate(ctx, resp.Token)
	assert.ErrorIs(t, err, extensions.ErrUnauthorized)
	assert.False(t, f.svc.State("user_001").IsAuthenticated)
	assert.Nil(t, f.svc.State("user_001").User)

	assert.NoError(t, f.svc.SignOut(ctx, resp.Token), "signing out twice is fine")

	events, err := f.audit.Query(ctx, extensions.AuditFilter{EventTypes: []string{"auth.signout"}})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var mu sync.Mutex
	var seen []datatypes.AuthState
	unsubscribe := f.svc.Subscribe("user_001", func(st datatypes.AuthState) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, st)
	})

	_, err := f.svc.SignIn(ctx, "user@aqal-studio.com", "nope")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	resp, err := f.svc.SignIn(ctx, "user@aqal-studio.com", "demo123")
	require.NoError(t, err)
	require.NoError(t, f.svc.SignOut(ctx, resp.Token))

	unsubscribe()
	unsubscribe()
	_, err = f.svc.SignIn(ctx, "user@aqal-studio.com", "demo123")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 6)
	assert.Equal(t, datatypes.AuthState{}, seen[0], "initial state")
	assert.True(t, seen[1].IsLoading)
	assert.False(t, seen[2].IsLoading)
	assert.False(t, seen[2].IsAuthenticated)
	assert.True(t, seen[3].IsLoading)
	assert.True(t, seen[4].IsAuthenticated)
	assert.False(t, seen[4].IsLoading)
	require.NotNil(t, seen[4].User)
	assert.Equal(t, "user_001", seen[4].User.ID)
	assert.Equal(t, datatypes.AuthState{}, seen[5], "signed out")

	// late subscribers get the current state immediately
	var late datatypes.AuthState
	f.svc.Subscribe("user_001", func(st datatypes.AuthState) { late = st })()
	assert.True(t, late.IsAuthenticated)
}

func TestSignOut_SharedAccountKeepsOtherSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.SignIn(ctx, "user@aqal-studio.com", "demo123")
	require.NoError(t, err)
	second, err := f.svc.SignIn(ctx, "user@aqal-studio.com", "demo123")
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []datatypes.AuthState
	unsubscribe := f.svc.Subscribe("user_001", func(st datatypes.AuthState) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, st)
	})
	defer unsubscribe()

	require.NoError(t, f.svc.SignOut(ctx, first.Token))
	assert.True(t, f.svc.State("user_001").IsAuthenticated, "the second session is still live")
	_, err = f.svc.Validate(ctx, second.Token)
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, seen, 1, "no state is published while another session remains")
	assert.True(t, seen[0].IsAuthenticated)
	mu.Unlock()

	require.NoError(t, f.svc.SignOut(ctx, second.Token))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Equal(t, datatypes.AuthState{}, seen[1])
	assert.False(t, f.svc.State("user_001").IsAuthenticated)
}

func TestSignOut_ExpiredSessionsDoNotCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SignIn(ctx, "user@aqal-studio.com", "demo123")
	require.NoError(t, err)
	f.clock.Advance(DefaultSessionTTL - time.Minute)
	fresh, err := f.svc.SignIn(ctx, "user@aqal-studio.com", "demo123")
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)

	require.NoError(t, f.svc.SignOut(ctx, fresh.Token))
	assert.False(t, f.svc.State("user_001").IsAuthenticated)
}

func (s *Service) trackedStates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

func TestGuestStates_HeldOnlyWhileSubscribed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := f.svc.SignInAsGuest(ctx)
		require.NoError(t, err)
	}
	assert.Zero(t, f.svc.trackedStates())

	guest, err := f.svc.SignInAsGuest(ctx)
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []datatypes.AuthState
	unsubscribe, err := f.svc.SubscribeSession(ctx, guest.Token, func(st datatypes.AuthState) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, st)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.svc.trackedStates())
	assert.True(t, f.svc.State(guest.User.ID).IsAuthenticated)

	require.NoError(t, f.svc.SignOut(ctx, guest.Token))
	unsubscribe()
	unsubscribe()
	assert.Zero(t, f.svc.trackedStates())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.True(t, seen[0].IsAuthenticated, "seeded from the session")
	require.NotNil(t, seen[0].User)
	assert.Equal(t, guest.User.ID, seen[0].User.ID)
	assert.Equal(t, datatypes.AuthState{}, seen[1])
}

func TestSubscribeSession_UnknownToken(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SubscribeSession(context.Background(), "missing", func(datatypes.AuthState) {
		t.Fatal("callback must not run")
	})
	assert.ErrorIs(t, err, extensions.ErrUnauthorized)
	assert.Zero(t, f.svc.trackedStates())
}
