// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_CreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "aqal.yaml")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "local-user", cfg.UserID)
	assert.Equal(t, 50, cfg.Store.MaxSizeMB)
	assert.Equal(t, 7*24*time.Hour, cfg.Store.DefaultTTL)

	_, err = os.Stat(path)
	require.NoError(t, err, "the default config is written to disk")
}

func TestLoadFrom_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aqal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("user_id: alice\nbackup:\n  bucket: my-bucket\n"), 0o644))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.UserID)
	assert.Equal(t, "my-bucket", cfg.Backup.Bucket)
	assert.Equal(t, "aqal/exports", cfg.Backup.Prefix)
	assert.Equal(t, int64(50<<20), cfg.Store.MaxSizeBytes())
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aqal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [unclosed"), 0o644))

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestDefaultPath_EnvOverride(t *testing.T) {
	t.Setenv("AQAL_CONFIG", "/tmp/custom.yaml")
	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.yaml", path)
}
