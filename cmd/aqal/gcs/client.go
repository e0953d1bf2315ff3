// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gcs uploads user data exports to Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type Client struct {
	storageClient *storage.Client
	BucketName    string
}

// NewClient connects to GCS. An empty saKeyPath uses application default
// credentials.
func NewClient(ctx context.Context, bucketName, saKeyPath string) (*Client, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("a bucket name is required")
	}
	var opts []option.ClientOption
	if saKeyPath != "" {
		info, err := os.Stat(saKeyPath)
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", saKeyPath)
		}
		if err == nil && info.IsDir() {
			return nil, fmt.Errorf("service account key path is a directory: %s", saKeyPath)
		}
		opts = append(opts, option.WithCredentialsFile(saKeyPath))
	}

	storageClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &Client{storageClient: storageClient, BucketName: bucketName}, nil
}

// ObjectName builds "<prefix>/<userID>/<UTC timestamp>.json".
func ObjectName(prefix, userID string, at time.Time) string {
	name := fmt.Sprintf("%s.json", at.UTC().Format("20060102T150405Z"))
	return path.Join(strings.Trim(prefix, "/"), userID, name)
}

// UploadExport writes one export document to gcsPath.
func (c *Client) UploadExport(ctx context.Context, gcsPath string, doc []byte) error {
	obj := c.storageClient.Bucket(c.BucketName).Object(gcsPath)
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(writer, bytes.NewReader(doc)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write GCS object %s: %w", gcsPath, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %s: %w", gcsPath, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.storageClient.Close()
}
