// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"errors"
	"slices"
)

// ErrUnauthorized is returned when a token is missing, unknown or expired.
//
// Providers should wrap it with context:
//
//	return nil, fmt.Errorf("session %s expired: %w", short, extensions.ErrUnauthorized)
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden is returned when an authenticated user lacks a required role.
var ErrForbidden = errors.New("forbidden")

// Role names understood by the studio.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
	RoleGuest = "guest"
)

// AuthInfo contains identity information returned after successful
// authentication.
//
// UserID is always populated. Email and Name may be empty for guests.
// Metadata carries provider-specific values such as the session token
// that authenticated the request.
type AuthInfo struct {
	// UserID is the unique identifier for the authenticated user.
	UserID string

	// Name is the display name.
	Name string

	// Email is the user's email address.
	Email string

	// Roles contains the user's role memberships.
	Roles []string

	// Metadata holds provider-specific values.
	//
	// Keys set by the session provider:
	//   - "session_token": the bearer token that was validated
	//   - "expires_at": session expiry as time.Time
	Metadata map[string]any
}

// HasRole reports whether the user holds the given role.
func (a *AuthInfo) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// IsGuest reports whether the user is an anonymous guest.
func (a *AuthInfo) IsGuest() bool {
	return a.HasRole(RoleGuest)
}

// AuthProvider validates bearer tokens.
//
// # Description
//
// The studio's HTTP middleware calls Validate for every protected request.
// The open source build uses the session service in services/studio/auth;
// NopAuthProvider is for tests and single-user local runs.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type AuthProvider interface {
	// Validate checks the token and returns the caller's identity.
	//
	// Returns ErrUnauthorized (or a wrapped form) for a bad token and any
	// other error for infrastructure failures.
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider accepts every token as a single local admin.
type NopAuthProvider struct{}

// Validate always succeeds.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Name:   "Local User",
		Roles:  []string{RoleAdmin},
	}, nil
}

var _ AuthProvider = (*NopAuthProvider)(nil)
