// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command aqal runs the AQAL Studio backend and works with a local profile.
//
// # Subcommands
//
//   - serve: start the HTTP service (configured from the environment)
//   - insights, map, assess: read or update a profile
//   - export, import, stats, backup: manage the local data store
//
// # Environment Variables (serve)
//
//   - AQAL_PORT: HTTP server port (default: 12310)
//   - AQAL_ENV: environment name reported by /health (default: development)
//   - AQAL_DATA_DIR: Badger directory; empty keeps data in memory
//   - AQAL_STORE_MAX_SIZE_MB, AQAL_STORE_TTL, AQAL_SESSION_TTL
//   - AQAL_SWEEP_INTERVAL, AQAL_SWEEP_LOG
//   - AQAL_KNOWLEDGE_BASE: hot-reloaded knowledge base YAML
//   - AQAL_DEMO_PASSWORD, AQAL_SIGNIN_BURST
//   - INFLUX_URL, INFLUX_TOKEN, INFLUX_ORG, INFLUX_BUCKET
//   - OTEL_EXPORTER_OTLP_ENDPOINT, AQAL_TRACE_STDOUT
//   - AQAL_LOG_LEVEL, AQAL_LOG_JSON, AQAL_LOG_DIR
//
// # Usage
//
//	# Build
//	go build -o aqal ./cmd/aqal
//
//	# Run the service with a persistent store
//	AQAL_DATA_DIR=/var/lib/aqal ./aqal serve
//
//	# Render the local profile
//	./aqal map
package main

import (
	"os"

	"github.com/topherchris420/aqal/pkg/ux"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		ux.Error(err.Error())
		os.Exit(1)
	}
}
