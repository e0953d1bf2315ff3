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
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/topherchris420/aqal/pkg/logging"
	"github.com/topherchris420/aqal/services/studio"
	"github.com/topherchris420/aqal/services/studio/monitoring"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildID=...".
var (
	version   = "dev"
	buildID   = ""
	buildTime = ""
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg := serveConfigFromEnv()
	defer cfg.Logger.Close()

	cfg.Logger.Info("Starting AQAL Studio",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"data_dir", cfg.DataDir,
		"otel_endpoint", cfg.OTelEndpoint,
		"influx", cfg.Influx.URL != "",
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Enterprise builds pass custom ServiceOptions here.
	svc, err := studio.New(ctx, cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create studio: %w", err)
	}
	defer svc.Close()

	return svc.Run(ctx)
}

// serveConfigFromEnv builds the service configuration from environment
// variables. Unset variables fall back to the service defaults.
func serveConfigFromEnv() studio.Config {
	logger := logging.New(logging.Config{
		Service: studio.ServiceName,
		JSON:    getEnvBool("AQAL_LOG_JSON", true),
		Level:   logging.ParseLevel(getEnvString("AQAL_LOG_LEVEL", "info")),
		LogDir:  os.Getenv("AQAL_LOG_DIR"),
	})

	return studio.Config{
		Port:              getEnvInt("AQAL_PORT", 12310),
		Environment:       getEnvString("AQAL_ENV", "development"),
		Version:           getEnvString("AQAL_VERSION", version),
		BuildID:           getEnvString("AQAL_BUILD_ID", buildID),
		BuildTime:         getEnvString("AQAL_BUILD_TIME", buildTime),
		GinMode:           os.Getenv("GIN_MODE"),
		DataDir:           os.Getenv("AQAL_DATA_DIR"),
		StoreMaxSize:      int64(getEnvInt("AQAL_STORE_MAX_SIZE_MB", 50)) << 20,
		StoreDefaultTTL:   getEnvDuration("AQAL_STORE_TTL", 7*24*time.Hour),
		SessionTTL:        getEnvDuration("AQAL_SESSION_TTL", 24*time.Hour),
		DemoPassword:      os.Getenv("AQAL_DEMO_PASSWORD"),
		SweepInterval:     getEnvDuration("AQAL_SWEEP_INTERVAL", time.Hour),
		SweepLogPath:      os.Getenv("AQAL_SWEEP_LOG"),
		KnowledgeBasePath: os.Getenv("AQAL_KNOWLEDGE_BASE"),
		Influx: monitoring.InfluxConfig{
			URL:    os.Getenv("INFLUX_URL"),
			Token:  os.Getenv("INFLUX_TOKEN"),
			Org:    getEnvString("INFLUX_ORG", "aqal"),
			Bucket: getEnvString("INFLUX_BUCKET", "studio"),
		},
		OTelEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TraceStdout:  getEnvBool("AQAL_TRACE_STDOUT", false),
		SignInBurst:  getEnvInt("AQAL_SIGNIN_BURST", 5),
		Logger:       logger,
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration parses values like "90s" or "12h".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool accepts anything strconv.ParseBool does.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
