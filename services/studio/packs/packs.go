// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package packs manages a user's expansion packs: unlocking, installing
// and completing modules.
package packs

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/topherchris420/aqal/services/studio/catalog"
	"github.com/topherchris420/aqal/services/studio/datatypes"
)

var (
	// ErrUnknownPack is returned for a pack ID not in the catalog.
	ErrUnknownPack = errors.New("unknown expansion pack")

	// ErrUnknownModule is returned for a module the pack does not have.
	ErrUnknownModule = errors.New("unknown pack module")

	// ErrLocked is returned when installing a pack whose prerequisite is
	// not met.
	ErrLocked = errors.New("expansion pack is locked")

	// ErrNotInstalled is returned when completing a module of a pack that
	// is not installed.
	ErrNotInstalled = errors.New("expansion pack is not installed")
)

// Status is a pack together with one user's state for it.
type Status struct {
	catalog.Pack
	Unlocked         bool       `json:"unlocked"`
	Installed        bool       `json:"installed"`
	InstalledAt      *time.Time `json:"installedAt,omitempty"`
	CompletedModules []string   `json:"completedModules"`
	Progress         int        `json:"progress"`
	Completed        bool       `json:"completed"`
	Recommended      bool       `json:"recommended"`
}

// Listing is the response of List.
type Listing struct {
	Packs       []Status `json:"packs"`
	Recommended []string `json:"recommended"`
}

// Manager applies pack operations to user data.
//
// # Thread Safety
//
// Manager holds no mutable state. Callers serialize writes to a user's
// data.
type Manager struct {
	catalog *catalog.Catalog
	now     func() time.Time
}

// NewManager returns a manager over cat. A nil now uses time.Now.
func NewManager(cat *catalog.Catalog, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{catalog: cat, now: now}
}

// Progress returns the percentage of the pack's modules completed.
func Progress(p catalog.Pack, st datatypes.PackState) int {
	if len(p.Modules) == 0 {
		return 0
	}
	done := 0
	for _, m := range p.Modules {
		if slices.Contains(st.CompletedModules, m.ID) {
			done++
		}
	}
	return int(math.Round(float64(done) / float64(len(p.Modules)) * 100))
}

// IsCompleted reports whether every module of the pack is done.
func IsCompleted(p catalog.Pack, st datatypes.PackState) bool {
	return len(p.Modules) > 0 && Progress(p, st) == 100
}

// IsUnlocked reports whether a user may install the pack.
//
// # Description
//
// Default-unlocked packs are always open, and so is every pack for
// admins. Otherwise the pack opens when all of Requires are completed, or
// when at least RequiresCompleted other packs are completed. A locked pack
// with neither condition never opens.
func (m *Manager) IsUnlocked(p catalog.Pack, states map[string]datatypes.PackState, role datatypes.Role) bool {
	if p.Unlocked || role == datatypes.RoleAdmin {
		return true
	}
	if len(p.Requires) > 0 {
		all := true
		for _, id := range p.Requires {
			req, ok := m.catalog.Pack(id)
			if !ok || !IsCompleted(req, states[id]) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	if p.RequiresCompleted > 0 {
		completed := 0
		for _, other := range m.catalog.Packs {
			if other.ID != p.ID && IsCompleted(other, states[other.ID]) {
				completed++
			}
		}
		return completed >= p.RequiresCompleted
	}
	return false
}

// Install marks a pack installed. Installing twice keeps the first
// install time.
func (m *Manager) Install(data datatypes.UserData, packID string, role datatypes.Role) (datatypes.UserData, datatypes.PackState, error) {
	p, ok := m.catalog.Pack(packID)
	if !ok {
		return data, datatypes.PackState{}, fmt.Errorf("%w: %s", ErrUnknownPack, packID)
	}
	st := data.Packs[packID]
	if st.Installed {
		return data, st, nil
	}
	if !m.IsUnlocked(p, data.Packs, role) {
		return data, datatypes.PackState{}, fmt.Errorf("%w: %s requires: %s", ErrLocked, packID, p.Prerequisite)
	}

	now := m.now().UTC()
	st.PackID = packID
	st.Installed = true
	st.InstalledAt = &now
	if st.CompletedModules == nil {
		st.CompletedModules = []string{}
	}
	out := withPackState(data, st)
	return out, st, nil
}

// CompleteModule records completion of one module of an installed pack.
// Completing a module twice is a no-op.
func (m *Manager) CompleteModule(data datatypes.UserData, packID, moduleID string) (datatypes.UserData, datatypes.PackState, error) {
	p, ok := m.catalog.Pack(packID)
	if !ok {
		return data, datatypes.PackState{}, fmt.Errorf("%w: %s", ErrUnknownPack, packID)
	}
	if !p.HasModule(moduleID) {
		return data, datatypes.PackState{}, fmt.Errorf("%w: %s/%s", ErrUnknownModule, packID, moduleID)
	}
	st := data.Packs[packID]
	if !st.Installed {
		return data, datatypes.PackState{}, fmt.Errorf("%w: %s", ErrNotInstalled, packID)
	}
	if slices.Contains(st.CompletedModules, moduleID) {
		return data, st, nil
	}
	st.CompletedModules = append(slices.Clone(st.CompletedModules), moduleID)
	return withPackState(data, st), st, nil
}

func withPackState(data datatypes.UserData, st datatypes.PackState) datatypes.UserData {
	out := data
	out.Packs = maps.Clone(data.Packs)
	if out.Packs == nil {
		out.Packs = make(map[string]datatypes.PackState)
	}
	out.Packs[st.PackID] = st
	return out
}

// List returns every catalog pack with the user's state. recommended is
// the engine's pack recommendation for the user's profile.
func (m *Manager) List(data datatypes.UserData, role datatypes.Role, recommended []string) Listing {
	if recommended == nil {
		recommended = []string{}
	}
	out := Listing{Packs: make([]Status, 0, len(m.catalog.Packs)), Recommended: recommended}
	for _, p := range m.catalog.Packs {
		st := data.Packs[p.ID]
		completed := st.CompletedModules
		if completed == nil {
			completed = []string{}
		}
		out.Packs = append(out.Packs, Status{
			Pack:             p,
			Unlocked:         m.IsUnlocked(p, data.Packs, role),
			Installed:        st.Installed,
			InstalledAt:      st.InstalledAt,
			CompletedModules: completed,
			Progress:         Progress(p, st),
			Completed:        IsCompleted(p, st),
			Recommended:      slices.Contains(recommended, p.ID),
		})
	}
	return out
}
