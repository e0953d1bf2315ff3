// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package auth is the studio's session service.
//
// Users sign in against a fixed list of demo accounts or as anonymous
// guests. Each sign-in creates a bearer token whose session is persisted
// in the key-value store, so sessions survive restarts and expire through
// the store's TTL. The service implements extensions.AuthProvider for the
// HTTP middleware.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/topherchris420/aqal/pkg/extensions"
	"github.com/topherchris420/aqal/pkg/logging"
	"github.com/topherchris420/aqal/services/storage/kvstore"
	"github.com/topherchris420/aqal/services/studio/datatypes"
)

// =============================================================================
// Constants and Errors
// =============================================================================

const (
	// DefaultSessionTTL is how long a session token stays valid.
	DefaultSessionTTL = 24 * time.Hour

	// DefaultDemoPassword is shared by all demo accounts.
	DefaultDemoPassword = "demo123"

	// SessionKeyPrefix namespaces session records in the store.
	SessionKeyPrefix = "auth_session_"

	guestEmail = "guest@aqal-studio.com"
	guestName  = "Guest User"
)

// ErrInvalidCredentials is returned by SignIn for an unknown email or a
// wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// demoCreated is the creation time of the built-in demo accounts.
var demoCreated = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// DemoUsers returns the built-in demo accounts.
func DemoUsers() []datatypes.User {
	return []datatypes.User{
		{
			ID:        "admin_001",
			Name:      "Admin User",
			Email:     "admin@aqal-studio.com",
			Role:      datatypes.RoleAdmin,
			CreatedAt: demoCreated,
		},
		{
			ID:        "user_001",
			Name:      "Demo User",
			Email:     "user@aqal-studio.com",
			Role:      datatypes.RoleUser,
			CreatedAt: demoCreated,
		},
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Metrics receives sign-in outcomes. Implemented by the studio's
// Prometheus metrics; nil disables recording.
type Metrics interface {
	RecordAuthAttempt(method string, success bool)
}

// Config configures the session service.
type Config struct {
	// SessionTTL bounds session lifetime. Default: 24h.
	SessionTTL time.Duration

	// DemoPassword is the password for every demo account. Default: demo123.
	DemoPassword string

	// Users replaces the demo accounts when non-empty.
	Users []datatypes.User

	// Clock returns the current time. Default: time.Now.
	Clock func() time.Time

	Logger  *logging.Logger
	Audit   extensions.AuditLogger
	Metrics Metrics
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.DemoPassword == "" {
		cfg.DemoPassword = DefaultDemoPassword
	}
	if len(cfg.Users) == 0 {
		cfg.Users = DemoUsers()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	cfg.Logger = cfg.Logger.Module(logging.ModuleAuth)
	if cfg.Audit == nil {
		cfg.Audit = &extensions.NopAuditLogger{}
	}
	return cfg
}

// =============================================================================
// Service
// =============================================================================

// Service signs users in and out and validates their tokens.
//
// # Description
//
// Sessions live in the key-value store under auth_session_<token>. The
// service also keeps the latest AuthState in memory for the configured
// accounts and for users with a live subscriber, and pushes every change
// to that user's subscribers (the websocket event stream).
//
// # Thread Safety
//
// Safe for concurrent use. Subscriber callbacks run outside the lock,
// in the goroutine that caused the change.
type Service struct {
	store *kvstore.Store
	cfg   Config

	mu       sync.Mutex
	users    map[string]datatypes.User // by lower-case email
	accounts map[string]bool           // configured user IDs
	states   map[string]datatypes.AuthState
	subs     map[string]map[uint64]func(datatypes.AuthState)
	nextSub  uint64
}

// NewService returns a session service persisting to store.
func NewService(store *kvstore.Store, cfg Config) *Service {
	cfg = applyConfigDefaults(cfg)
	users := make(map[string]datatypes.User, len(cfg.Users))
	accounts := make(map[string]bool, len(cfg.Users))
	for _, u := range cfg.Users {
		users[normalizeEmail(u.Email)] = u
		accounts[u.ID] = true
	}
	return &Service{
		store:    store,
		cfg:      cfg,
		users:    users,
		accounts: accounts,
		states:   make(map[string]datatypes.AuthState),
		subs:     make(map[string]map[uint64]func(datatypes.AuthState)),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func sessionKey(token string) string {
	return SessionKeyPrefix + token
}

// SignIn authenticates a demo account.
//
// # Description
//
// The account's subscribers see a loading state while the password is
// checked, then either the authenticated state or the previous state
// with loading cleared. A new session token is created on success.
//
// # Outputs
//
//   - datatypes.SignInResponse: Token, user and expiry.
//   - error: ErrInvalidCredentials, or a store error.
func (s *Service) SignIn(ctx context.Context, email, password string) (datatypes.SignInResponse, error) {
	s.mu.Lock()
	user, known := s.users[normalizeEmail(email)]
	s.mu.Unlock()

	if !known {
		s.recordAttempt(ctx, "password", "", false)
		return datatypes.SignInResponse{}, ErrInvalidCredentials
	}

	s.setLoading(user.ID, true)
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.DemoPassword)) != 1 {
		s.setLoading(user.ID, false)
		s.recordAttempt(ctx, "password", user.ID, false)
		return datatypes.SignInResponse{}, ErrInvalidCredentials
	}

	user.LastActive = s.cfg.Clock().UTC()
	s.mu.Lock()
	s.users[normalizeEmail(user.Email)] = user
	s.mu.Unlock()

	resp, err := s.createSession(ctx, user)
	if err != nil {
		s.setLoading(user.ID, false)
		return datatypes.SignInResponse{}, err
	}
	s.recordAttempt(ctx, "password", user.ID, true)
	return resp, nil
}

// SignInAsGuest creates an anonymous guest account and session.
func (s *Service) SignInAsGuest(ctx context.Context) (datatypes.SignInResponse, error) {
	now := s.cfg.Clock().UTC()
	user := datatypes.User{
		ID:         "guest_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		Name:       guestName,
		Email:      guestEmail,
		Role:       datatypes.RoleGuest,
		CreatedAt:  now,
		LastActive: now,
	}
	resp, err := s.createSession(ctx, user)
	if err != nil {
		return datatypes.SignInResponse{}, err
	}
	s.recordAttempt(ctx, "guest", user.ID, true)
	return resp, nil
}

func (s *Service) createSession(ctx context.Context, user datatypes.User) (datatypes.SignInResponse, error) {
	now := s.cfg.Clock().UTC()
	sess := datatypes.Session{
		Token:     uuid.NewString(),
		User:      user,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if err := s.store.Set(ctx, sessionKey(sess.Token), sess, s.cfg.SessionTTL); err != nil {
		return datatypes.SignInResponse{}, fmt.Errorf("failed to store session: %w", err)
	}

	u := user
	s.publish(user.ID, datatypes.AuthState{User: &u, IsAuthenticated: true})
	s.cfg.Logger.Business("user_signed_in",
		"user_id", user.ID,
		"role", string(user.Role),
	)
	return datatypes.SignInResponse{Token: sess.Token, User: user, ExpiresAt: sess.ExpiresAt}, nil
}

// SignOut ends the session behind token. Unknown tokens are ignored.
//
// Demo accounts are shared, so subscribers only see the signed-out state
// once the account has no other live session.
func (s *Service) SignOut(ctx context.Context, token string) error {
	sess, err := s.Session(ctx, token)
	if err != nil {
		if errors.Is(err, extensions.ErrUnauthorized) {
			return nil
		}
		return err
	}
	if err := s.store.Remove(ctx, sessionKey(token)); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}

	remaining, err := s.liveSessions(ctx, sess.User.ID)
	switch {
	case err != nil:
		s.cfg.Logger.Warn("failed to count remaining sessions", "user_id", sess.User.ID, "error", err)
	case remaining == 0:
		s.publish(sess.User.ID, datatypes.AuthState{})
	}
	s.audit(ctx, "auth.signout", sess.User.ID, "success")
	s.cfg.Logger.Business("user_signed_out", "user_id", sess.User.ID)
	return nil
}

// Session returns the live session behind token.
//
// Returns an error wrapping extensions.ErrUnauthorized when the token is
// empty, unknown or expired.
func (s *Service) Session(ctx context.Context, token string) (datatypes.Session, error) {
	if token == "" {
		return datatypes.Session{}, fmt.Errorf("empty token: %w", extensions.ErrUnauthorized)
	}
	var sess datatypes.Session
	found, err := s.store.Get(ctx, sessionKey(token), &sess)
	if err != nil {
		return datatypes.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	if !found {
		return datatypes.Session{}, fmt.Errorf("session %s: %w", shortToken(token), extensions.ErrUnauthorized)
	}
	if !sess.ExpiresAt.IsZero() && !s.cfg.Clock().Before(sess.ExpiresAt) {
		_ = s.store.Remove(ctx, sessionKey(token))
		return datatypes.Session{}, fmt.Errorf("session %s expired: %w", shortToken(token), extensions.ErrUnauthorized)
	}
	return sess, nil
}

// Validate implements extensions.AuthProvider.
func (s *Service) Validate(ctx context.Context, token string) (*extensions.AuthInfo, error) {
	sess, err := s.Session(ctx, token)
	if err != nil {
		return nil, err
	}
	return &extensions.AuthInfo{
		UserID: sess.User.ID,
		Name:   sess.User.Name,
		Email:  sess.User.Email,
		Roles:  []string{string(sess.User.Role)},
		Metadata: map[string]any{
			"session_token": token,
			"expires_at":    sess.ExpiresAt,
		},
	}, nil
}

// ActiveSessions counts stored session records.
func (s *Service) ActiveSessions(ctx context.Context) (int, error) {
	keys, err := s.store.Keys(ctx, SessionKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	return len(keys), nil
}

// liveSessions counts unexpired sessions belonging to userID.
func (s *Service) liveSessions(ctx context.Context, userID string) (int, error) {
	keys, err := s.store.Keys(ctx, SessionKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	now := s.cfg.Clock()
	n := 0
	for _, key := range keys {
		var sess datatypes.Session
		found, err := s.store.Get(ctx, key, &sess)
		if err != nil {
			return 0, fmt.Errorf("failed to load session: %w", err)
		}
		if !found || sess.User.ID != userID {
			continue
		}
		if sess.ExpiresAt.IsZero() || now.Before(sess.ExpiresAt) {
			n++
		}
	}
	return n, nil
}

func shortToken(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}

func (s *Service) recordAttempt(ctx context.Context, method, userID string, success bool) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordAuthAttempt(method, success)
	}
	outcome := "success"
	if !success {
		outcome = "failure"
		s.cfg.Logger.Security("signin_failed", logging.SeverityMedium,
			"method", method,
			"user_id", userID,
		)
	}
	eventType := "auth.signin"
	if method == "guest" {
		eventType = "auth.guest"
	}
	s.audit(ctx, eventType, userID, outcome)
}

func (s *Service) audit(ctx context.Context, eventType, userID, outcome string) {
	err := s.cfg.Audit.Log(ctx, extensions.AuditEvent{
		EventType:    eventType,
		Timestamp:    s.cfg.Clock().UTC(),
		UserID:       userID,
		Action:       strings.TrimPrefix(eventType, "auth."),
		ResourceType: "session",
		Outcome:      outcome,
	})
	if err != nil {
		s.cfg.Logger.Warn("failed to write audit event", "event_type", eventType, "error", err)
	}
}
