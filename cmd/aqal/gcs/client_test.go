// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gcs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// NewClient Tests (error paths that don't require GCS connection)
// ============================================================================

func TestNewClient_MissingBucket(t *testing.T) {
	_, err := NewClient(context.Background(), "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestNewClient_NonExistentSAKeyPath(t *testing.T) {
	_, err := NewClient(context.Background(), "test-bucket", "/nonexistent/path/to/key.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service account key not found")
	assert.Contains(t, err.Error(), "/nonexistent/path/to/key.json")
}

func TestNewClient_DirectoryInsteadOfFile(t *testing.T) {
	_, err := NewClient(context.Background(), "test-bucket", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}

func TestNewClient_InvalidCredentialsFile(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "invalid_key.json")
	require.NoError(t, os.WriteFile(keyPath, []byte("not valid json"), 0o600))

	_, err := NewClient(context.Background(), "test-bucket", keyPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create GCS storage client")
}

// ============================================================================
// ObjectName Tests
// ============================================================================

func TestObjectName(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.FixedZone("PST", -8*3600))

	assert.Equal(t, "aqal/exports/local-user/20260304T130607Z.json", ObjectName("/aqal/exports/", "local-user", at))
	assert.Equal(t, "alice/20260304T130607Z.json", ObjectName("", "alice", at))
}
