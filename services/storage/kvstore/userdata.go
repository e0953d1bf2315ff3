// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// sessionKey holds the last saved client session blob.
const sessionKey = "session"

// UserKey returns the store key for a user's data.
func UserKey(userID string) string {
	return "user_" + userID
}

// ExportDocument is the portable form of a user's data.
type ExportDocument struct {
	UserID     string          `json:"userId"`
	Data       json.RawMessage `json:"data"`
	ExportedAt string          `json:"exportedAt"`
	Version    string          `json:"version"`
}

// SaveUserData stores data for userID with the default TTL.
func (s *Store) SaveUserData(ctx context.Context, userID string, data any) error {
	return s.Set(ctx, UserKey(userID), data, 0)
}

// GetUserData decodes userID's data into out.
func (s *Store) GetUserData(ctx context.Context, userID string, out any) (bool, error) {
	return s.Get(ctx, UserKey(userID), out)
}

// DeleteUserData removes userID's data.
func (s *Store) DeleteUserData(ctx context.Context, userID string) error {
	return s.Remove(ctx, UserKey(userID))
}

// ExportUserData renders userID's data as an indented export document.
//
// # Outputs
//
//   - []byte: JSON with userId, data, exportedAt (RFC 3339) and version.
//   - error: ErrNotFound when the user has no stored data.
func (s *Store) ExportUserData(ctx context.Context, userID string) ([]byte, error) {
	var raw json.RawMessage
	found, err := s.GetUserData(ctx, userID, &raw)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("export %s: %w", userID, ErrNotFound)
	}

	doc := ExportDocument{
		UserID:     userID,
		Data:       raw,
		ExportedAt: s.cfg.Clock().UTC().Format(time.RFC3339Nano),
		Version:    FormatVersion,
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return out, nil
}

// ImportDecoder turns the data section of an export document into the
// value that is stored. An error rejects the import.
type ImportDecoder func(data json.RawMessage) (any, error)

// ImportUserData replaces userID's data with the data section of an
// export document.
//
// # Description
//
// The document's own userId is ignored so an export can be restored
// under a different account. The data section must be a JSON object.
// When decode is set it runs before anything is written, so a document
// it rejects leaves the stored data untouched.
//
// # Outputs
//
//   - error: ErrInvalidImport for a document missing data or version, with
//     non-object data, or rejected by decode.
func (s *Store) ImportUserData(ctx context.Context, userID string, document []byte, decode ImportDecoder) error {
	var doc ExportDocument
	if err := json.Unmarshal(document, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	trimmed := bytes.TrimSpace(doc.Data)
	if len(trimmed) == 0 || trimmed[0] != '{' || doc.Version == "" {
		return ErrInvalidImport
	}

	var value any = json.RawMessage(trimmed)
	if decode != nil {
		v, err := decode(json.RawMessage(trimmed))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidImport, err)
		}
		value = v
	}
	return s.SaveUserData(ctx, userID, value)
}

// SaveSession stores an opaque client session blob under a fixed key.
func (s *Store) SaveSession(ctx context.Context, data any) error {
	if err := s.Set(ctx, sessionKey, data, 0); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession decodes the stored session blob into out.
func (s *Store) GetSession(ctx context.Context, out any) (bool, error) {
	return s.Get(ctx, sessionKey, out)
}
