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
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/topherchris420/aqal/cmd/aqal/config"
	"github.com/topherchris420/aqal/cmd/aqal/gcs"
	"github.com/topherchris420/aqal/pkg/ux"
)

var errNoBucket = errors.New("no bucket: pass --bucket or set backup.bucket in the config")

// runBackup exports the local user's data and uploads it as
// gs://<bucket>/<prefix>/<user>/<timestamp>.json.
func runBackup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := config.Global
	bucket := backupBucket
	if bucket == "" {
		bucket = cfg.Backup.Bucket
	}
	if bucket == "" {
		return errNoBucket
	}

	doc, err := exportLocal(ctx, cfg)
	if err != nil {
		return err
	}

	client, err := gcs.NewClient(ctx, bucket, cfg.Backup.CredentialsFile)
	if err != nil {
		return err
	}
	defer client.Close()

	object := gcs.ObjectName(cfg.Backup.Prefix, cfg.UserID, time.Now())
	if err := client.UploadExport(ctx, object, doc); err != nil {
		return err
	}
	ux.Success(fmt.Sprintf("Uploaded %d bytes to gs://%s/%s", len(doc), bucket, object))
	return nil
}
