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
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/topherchris420/aqal/cmd/aqal/config"
	"github.com/topherchris420/aqal/pkg/ux"
	"github.com/topherchris420/aqal/services/storage/kvstore"
)

func runExport(cmd *cobra.Command, args []string) error {
	doc, err := exportLocal(cmd.Context(), config.Global)
	if err != nil {
		return err
	}
	if outputPath == "" {
		_, err := ux.Output.Write(append(doc, '\n'))
		return err
	}
	if err := os.WriteFile(outputPath, doc, 0o600); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	ux.Success(fmt.Sprintf("Exported %s to %s (%d bytes)", config.Global.UserID, outputPath, len(doc)))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	doc, err := os.ReadFile(importPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", importPath, err)
	}
	if err := importLocal(cmd.Context(), config.Global, doc); err != nil {
		return err
	}
	ux.Success(fmt.Sprintf("Imported %s into %s", importPath, config.Global.UserID))
	return nil
}

// storeReport is what `aqal stats` prints.
type storeReport struct {
	Stats   kvstore.Stats         `json:"stats"`
	MaxSize int64                 `json:"maxSize"`
	Sweep   kvstore.CleanupResult `json:"sweep"`
}

func runStats(cmd *cobra.Command, args []string) error {
	rep, err := statsLocal(cmd.Context(), config.Global)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(rep)
	}

	ux.Title("Local store")
	ux.KeyValue("items", rep.Stats.ItemCount)
	ux.KeyValue("size", fmt.Sprintf("%d / %d bytes", rep.Stats.TotalSize, rep.MaxSize))
	ux.KeyValue("usage", ux.ProgressBar(float64(rep.Stats.TotalSize), float64(rep.MaxSize), 20))
	if rep.Stats.ItemCount > 0 {
		ux.KeyValue("oldest", time.UnixMilli(rep.Stats.OldestItem).Format(time.RFC3339))
		ux.KeyValue("newest", time.UnixMilli(rep.Stats.NewestItem).Format(time.RFC3339))
	}
	if removed := rep.Sweep.Removed(); removed > 0 {
		ux.Warning(fmt.Sprintf("Removed %d expired or corrupted entries", removed))
	}
	return nil
}

func exportLocal(ctx context.Context, cfg config.AqalConfig) ([]byte, error) {
	ls, err := openLocalStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer ls.Close()
	return ls.store.ExportUserData(ctx, cfg.UserID)
}

func importLocal(ctx context.Context, cfg config.AqalConfig, doc []byte) error {
	ls, err := openLocalStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer ls.Close()
	return ls.users.Import(ctx, cfg.UserID, doc)
}

// statsLocal sweeps expired entries first so the numbers reflect live data.
func statsLocal(ctx context.Context, cfg config.AqalConfig) (storeReport, error) {
	ls, err := openLocalStore(ctx, cfg)
	if err != nil {
		return storeReport{}, err
	}
	defer ls.Close()

	sweep, err := ls.store.Cleanup(ctx)
	if err != nil {
		return storeReport{}, err
	}
	stats, err := ls.store.Stats(ctx)
	if err != nil {
		return storeReport{}, err
	}
	return storeReport{Stats: stats, MaxSize: ls.store.MaxSize(), Sweep: sweep}, nil
}
