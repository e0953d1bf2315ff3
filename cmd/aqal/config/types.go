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
	"time"
)

type AqalConfig struct {
	// UserID owns the profile the local commands read and write.
	UserID string `yaml:"user_id"`

	// DataDir holds the local Badger store, e.g. ~/.aqal/data
	DataDir string `yaml:"data_dir"`

	// Personality is full, standard, minimal or machine. Empty detects
	// from the terminal.
	Personality string `yaml:"personality,omitempty"`

	Store  StoreConfig  `yaml:"store"`
	Backup BackupConfig `yaml:"backup"`
}

type StoreConfig struct {
	MaxSizeMB  int           `yaml:"max_size_mb"` // e.g. 50
	DefaultTTL time.Duration `yaml:"default_ttl"` // e.g. 168h
}

type BackupConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`           // object prefix, e.g. aqal/exports
	CredentialsFile string `yaml:"credentials_file"` // empty uses application default credentials
}

// MaxSizeBytes converts the configured store bound to bytes.
func (s StoreConfig) MaxSizeBytes() int64 {
	return int64(s.MaxSizeMB) << 20
}

func DefaultConfig() AqalConfig {
	dataDir := "data"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".aqal", "data")
	}
	return AqalConfig{
		UserID:  "local-user",
		DataDir: dataDir,
		Store: StoreConfig{
			MaxSizeMB:  50,
			DefaultTTL: 7 * 24 * time.Hour,
		},
		Backup: BackupConfig{
			Prefix: "aqal/exports",
		},
	}
}
