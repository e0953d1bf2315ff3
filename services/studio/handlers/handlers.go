// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the studio's HTTP endpoints.
//
// Each exported function takes the dependencies its endpoint needs and
// returns a gin.HandlerFunc. Routes are wired in services/studio/routes.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/topherchris420/aqal/pkg/extensions"
	"github.com/topherchris420/aqal/services/storage/kvstore"
	"github.com/topherchris420/aqal/services/studio/auth"
	"github.com/topherchris420/aqal/services/studio/catalog"
	"github.com/topherchris420/aqal/services/studio/datatypes"
	"github.com/topherchris420/aqal/services/studio/middleware"
	"github.com/topherchris420/aqal/services/studio/monitoring"
	"github.com/topherchris420/aqal/services/studio/packs"
	"github.com/topherchris420/aqal/services/studio/profile"
)

// =============================================================================
// User Data Repository
// =============================================================================

// Users loads and saves per-user data in the key-value store.
//
// # Description
//
// Every mutation is a read-modify-write of the user's single UserData
// entry. Update serializes mutations per user so concurrent requests from
// the same account do not lose writes.
//
// # Thread Safety
//
// Safe for concurrent use.
type Users struct {
	store *kvstore.Store
	now   func() time.Time
	locks *lockTable
}

// NewUsers creates a repository. now defaults to time.Now.
func NewUsers(store *kvstore.Store, now func() time.Time) *Users {
	if now == nil {
		now = time.Now
	}
	return &Users{store: store, now: now, locks: newLockTable()}
}

// Store returns the underlying store.
func (u *Users) Store() *kvstore.Store { return u.store }

func (u *Users) lock(userID string) func() {
	return u.locks.lock(userID)
}

// lockTable hands out per-key mutexes. An entry lives only while some
// goroutine holds or waits for it.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*refLock)}
}

func (t *lockTable) lock(key string) func() {
	t.mu.Lock()
	l := t.locks[key]
	if l == nil {
		l = &refLock{}
		t.locks[key] = l
	}
	l.refs++
	t.mu.Unlock()

	l.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			t.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(t.locks, key)
			}
			t.mu.Unlock()
		})
	}
}

// Load returns userID's data, or fresh data when none is stored.
func (u *Users) Load(ctx context.Context, userID string) (datatypes.UserData, error) {
	var data datatypes.UserData
	found, err := u.store.GetUserData(ctx, userID, &data)
	if err != nil {
		return datatypes.UserData{}, fmt.Errorf("load user data: %w", err)
	}
	if !found {
		return datatypes.NewUserData(), nil
	}
	data.Normalize()
	return data, nil
}

// Update applies fn to userID's data and saves the result. Nothing is
// saved when fn returns an error.
func (u *Users) Update(ctx context.Context, userID string, fn func(*datatypes.UserData) error) (datatypes.UserData, error) {
	unlock := u.lock(userID)
	defer unlock()

	data, err := u.Load(ctx, userID)
	if err != nil {
		return datatypes.UserData{}, err
	}
	if err := fn(&data); err != nil {
		return datatypes.UserData{}, err
	}
	data.UpdatedAt = u.now().UTC()
	if err := u.store.SaveUserData(ctx, userID, data); err != nil {
		return datatypes.UserData{}, fmt.Errorf("save user data: %w", err)
	}
	return data, nil
}

// Import replaces userID's data with an export document. The data must
// decode into a valid UserData; anything else is rejected with
// kvstore.ErrInvalidImport and the stored data is left as it was.
func (u *Users) Import(ctx context.Context, userID string, document []byte) error {
	unlock := u.lock(userID)
	defer unlock()
	return u.store.ImportUserData(ctx, userID, document, func(raw json.RawMessage) (any, error) {
		data, err := datatypes.DecodeUserData(raw)
		if err != nil {
			return nil, err
		}
		data.UpdatedAt = u.now().UTC()
		return data, nil
	})
}

// Delete removes userID's data.
func (u *Users) Delete(ctx context.Context, userID string) error {
	unlock := u.lock(userID)
	defer unlock()
	return u.store.DeleteUserData(ctx, userID)
}

// =============================================================================
// Errors
// =============================================================================

// statusFor maps domain errors to HTTP status codes. Unknown errors are
// internal.
func statusFor(err error) int {
	switch {
	case errors.Is(err, extensions.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, extensions.ErrForbidden),
		errors.Is(err, packs.ErrLocked):
		return http.StatusForbidden
	case errors.Is(err, kvstore.ErrNotFound),
		errors.Is(err, catalog.ErrUnknownComponent),
		errors.Is(err, packs.ErrUnknownPack),
		errors.Is(err, packs.ErrUnknownModule),
		errors.Is(err, errNotTracked):
		return http.StatusNotFound
	case errors.Is(err, packs.ErrNotInstalled):
		return http.StatusConflict
	case errors.Is(err, profile.ErrUnknownQuadrant),
		errors.Is(err, profile.ErrIndexOutOfRange),
		errors.Is(err, kvstore.ErrInvalidImport),
		errors.Is(err, datatypes.ErrInvalidUserData),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, kvstore.ErrValueTooLarge):
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusInternalServerError
}

var (
	errBadRequest = errors.New("bad request")
	errNotTracked = errors.New("component is not tracked")
)

// respondError writes err as {"error": ...}. Internal errors are captured
// by the tracker and answered with a generic message and the error ID.
func respondError(c *gin.Context, tracker *monitoring.ErrorTracker, err error) {
	code := statusFor(err)
	if code < http.StatusInternalServerError {
		c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
		return
	}

	_ = c.Error(err)
	body := gin.H{"error": "internal server error"}
	if tracker != nil {
		body["errorId"] = tracker.Capture(err, map[string]any{
			"method": c.Request.Method,
			"route":  c.FullPath(),
		})
	}
	c.AbortWithStatusJSON(code, body)
}

// bindJSON decodes and validates the request body. It answers 400 and
// returns false on failure.
func bindJSON[T any, PT interface {
	*T
	Validate() error
}](c *gin.Context) (T, bool) {
	var req T
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return req, false
	}
	if err := PT(&req).Validate(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation failed", "details": err.Error()})
		return req, false
	}
	return req, true
}

// caller returns the authenticated user. Routes using it run behind
// middleware.Auth.
func caller(c *gin.Context) *extensions.AuthInfo {
	if info := middleware.GetAuthInfo(c); info != nil {
		return info
	}
	return &extensions.AuthInfo{Roles: []string{extensions.RoleGuest}}
}

// roleOf returns the caller's most privileged role.
func roleOf(info *extensions.AuthInfo) datatypes.Role {
	switch {
	case info.HasRole(extensions.RoleAdmin):
		return datatypes.RoleAdmin
	case info.HasRole(extensions.RoleUser):
		return datatypes.RoleUser
	}
	return datatypes.RoleGuest
}
