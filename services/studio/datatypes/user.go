// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Role is a user's access level.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// User is an authenticated studio user.
type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Avatar     string    `json:"avatar,omitempty"`
	Role       Role      `json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
	LastActive time.Time `json:"lastActive"`
}

// AuthState is what subscribers see whenever authentication changes.
type AuthState struct {
	User            *User `json:"user"`
	IsAuthenticated bool  `json:"isAuthenticated"`
	IsLoading       bool  `json:"isLoading"`
}

// Session is the persisted record behind a bearer token.
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SignInResponse is returned by the sign-in endpoints.
type SignInResponse struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// =============================================================================
// Per-user Data
// =============================================================================

// Preferences are user interface settings.
type Preferences struct {
	Theme              string `json:"theme" validate:"omitempty,oneof=light dark system"`
	DefaultTab         string `json:"defaultTab" validate:"omitempty,oneof=builder assessment map insights progress packs"`
	ReducedMotion      bool   `json:"reducedMotion"`
	EmailNotifications bool   `json:"emailNotifications"`
}

// Validate checks preference values.
func (p *Preferences) Validate() error {
	return validate.Struct(p)
}

// PackState is a user's state for one expansion pack.
type PackState struct {
	PackID           string     `json:"packId"`
	Installed        bool       `json:"installed"`
	InstalledAt      *time.Time `json:"installedAt,omitempty"`
	CompletedModules []string   `json:"completedModules"`
}

// ErrInvalidUserData is returned by DecodeUserData for a document that is
// not a valid user data object.
var ErrInvalidUserData = errors.New("invalid user data")

// UserData is everything the studio stores for one user under a single
// key-value entry.
type UserData struct {
	Profile     Profile                      `json:"profile"`
	Progress    map[string]ComponentProgress `json:"progress"`
	Packs       map[string]PackState         `json:"packs"`
	Preferences Preferences                  `json:"preferences"`
	UpdatedAt   time.Time                    `json:"updatedAt"`
}

// NewUserData returns empty data with a fresh profile.
func NewUserData() UserData {
	return UserData{
		Profile:     NewProfile(),
		Progress:    make(map[string]ComponentProgress),
		Packs:       make(map[string]PackState),
		Preferences: Preferences{Theme: "system", DefaultTab: "builder"},
	}
}

// Normalize fills in nil maps after decoding.
func (d *UserData) Normalize() {
	d.Profile.Normalize()
	if d.Progress == nil {
		d.Progress = make(map[string]ComponentProgress)
	}
	if d.Packs == nil {
		d.Packs = make(map[string]PackState)
	}
}

// Validate checks the profile and preferences.
func (d *UserData) Validate() error {
	return validate.Struct(d)
}

// DecodeUserData parses, normalizes and validates a stored or imported
// user data object.
//
// # Outputs
//
//   - UserData: the normalized data.
//   - error: wraps ErrInvalidUserData when raw is not a JSON object of the
//     right shape or a value is out of range.
func DecodeUserData(raw []byte) (UserData, error) {
	var data UserData
	if err := json.Unmarshal(raw, &data); err != nil {
		return UserData{}, fmt.Errorf("%w: %v", ErrInvalidUserData, err)
	}
	data.Normalize()
	if err := data.Validate(); err != nil {
		return UserData{}, fmt.Errorf("%w: %v", ErrInvalidUserData, err)
	}
	return data, nil
}
