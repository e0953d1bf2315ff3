// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/topherchris420/aqal/cmd/aqal/config"
	"github.com/topherchris420/aqal/pkg/logging"
	aqalbadger "github.com/topherchris420/aqal/services/storage/badger"
	"github.com/topherchris420/aqal/services/storage/kvstore"
	"github.com/topherchris420/aqal/services/studio/datatypes"
	"github.com/topherchris420/aqal/services/studio/handlers"
)

var errNoProfile = errors.New("file holds no profile")

// localStore is the CLI's handle on the on-disk store.
type localStore struct {
	db    *aqalbadger.DB
	store *kvstore.Store
	users *handlers.Users
}

// cliLogger logs warnings and above to stderr as text.
func cliLogger() *logging.Logger {
	return logging.New(logging.Config{Service: "aqal-cli", Level: logging.LevelWarn})
}

// openLocalStore opens the store under cfg.DataDir. Only one process may
// hold it at a time.
func openLocalStore(ctx context.Context, cfg config.AqalConfig) (*localStore, error) {
	logger := cliLogger()
	dbCfg := aqalbadger.DefaultConfig()
	dbCfg.Path = filepath.Join(cfg.DataDir, "badger")
	dbCfg.GCInterval = 0
	dbCfg.Logger = logger.Module(logging.ModuleStorage).Slog()

	db, err := aqalbadger.OpenDB(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open the local store at %s (is the service running?): %w", dbCfg.Path, err)
	}
	store, err := kvstore.Open(ctx, db, kvstore.Config{
		MaxSize:    cfg.Store.MaxSizeBytes(),
		DefaultTTL: cfg.Store.DefaultTTL,
		Logger:     logger,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open the key-value store: %w", err)
	}
	return &localStore{db: db, store: store, users: handlers.NewUsers(store, nil)}, nil
}

func (l *localStore) Close() error {
	return l.db.Close()
}

// readProfileFile accepts a bare profile, user data, or an export
// document wrapping user data.
func readProfileFile(path string) (datatypes.Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return datatypes.Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}
	p, err := decodeProfile(raw)
	if err != nil {
		return datatypes.Profile{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func decodeProfile(raw []byte) (datatypes.Profile, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return datatypes.Profile{}, fmt.Errorf("invalid JSON: %w", err)
	}

	switch {
	case fields["quadrants"] != nil:
		var p datatypes.Profile
		if err := json.Unmarshal(raw, &p); err != nil {
			return datatypes.Profile{}, err
		}
		p.Normalize()
		return p, nil
	case fields["profile"] != nil:
		var data datatypes.UserData
		if err := json.Unmarshal(raw, &data); err != nil {
			return datatypes.Profile{}, err
		}
		data.Normalize()
		return data.Profile, nil
	case fields["data"] != nil:
		return decodeProfile(fields["data"])
	}
	return datatypes.Profile{}, errNoProfile
}

// writeProfileFile writes p as an indented bare profile. A user data or
// export wrapper in the original file is not kept.
func writeProfileFile(path string, p datatypes.Profile) error {
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(raw, '\n'), 0o644)
}

// loadProfile reads --profile when given, otherwise the configured
// user's stored profile.
func loadProfile(ctx context.Context, path string) (datatypes.Profile, error) {
	if path != "" {
		return readProfileFile(path)
	}
	ls, err := openLocalStore(ctx, config.Global)
	if err != nil {
		return datatypes.Profile{}, err
	}
	defer ls.Close()
	data, err := ls.users.Load(ctx, config.Global.UserID)
	if err != nil {
		return datatypes.Profile{}, err
	}
	return data.Profile, nil
}
