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

	"github.com/topherchris420/aqal/services/studio/datatypes"
)

// Subscribe registers fn for userID's auth state changes.
//
// fn is called immediately with the current state and then after every
// sign-in, sign-out and loading change for that user. The returned func
// unsubscribes and is safe to call more than once.
func (s *Service) Subscribe(userID string, fn func(datatypes.AuthState)) (unsubscribe func()) {
	return s.subscribe(userID, nil, fn)
}

// SubscribeSession subscribes to the state of the account behind token.
//
// # Description
//
// Guest states are only held while someone is subscribed, so a guest
// connecting after sign-in would otherwise start from the empty state.
// SubscribeSession seeds the signed-in state from the session record
// when nothing newer is known.
//
// # Outputs
//
//   - func(): Unsubscribes. Safe to call more than once.
//   - error: Wraps extensions.ErrUnauthorized for an unknown or expired token.
func (s *Service) SubscribeSession(ctx context.Context, token string, fn func(datatypes.AuthState)) (func(), error) {
	sess, err := s.Session(ctx, token)
	if err != nil {
		return nil, err
	}
	u := sess.User
	return s.subscribe(u.ID, &datatypes.AuthState{User: &u, IsAuthenticated: true}, fn), nil
}

func (s *Service) subscribe(userID string, seed *datatypes.AuthState, fn func(datatypes.AuthState)) func() {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	if s.subs[userID] == nil {
		s.subs[userID] = make(map[uint64]func(datatypes.AuthState))
	}
	s.subs[userID][id] = fn
	current, known := s.states[userID]
	if !known && seed != nil {
		current = *seed
		s.states[userID] = current
	}
	s.mu.Unlock()

	fn(current)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[userID], id)
		if len(s.subs[userID]) == 0 {
			delete(s.subs, userID)
			if !s.accounts[userID] {
				delete(s.states, userID)
			}
		}
	}
}

// State returns the last published state for userID.
//
// States are kept for configured accounts and for any user with a live
// subscriber. Other users report the empty state.
func (s *Service) State(userID string) datatypes.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[userID]
}

func (s *Service) setLoading(userID string, loading bool) {
	s.mu.Lock()
	st := s.states[userID]
	s.mu.Unlock()
	st.IsLoading = loading
	s.publish(userID, st)
}

func (s *Service) publish(userID string, st datatypes.AuthState) {
	s.mu.Lock()
	if len(s.subs[userID]) > 0 || s.accounts[userID] {
		s.states[userID] = st
	} else {
		delete(s.states, userID)
	}
	fns := make([]func(datatypes.AuthState), 0, len(s.subs[userID]))
	for _, fn := range s.subs[userID] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
