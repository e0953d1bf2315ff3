// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// EventMeasurement is the InfluxDB measurement analytics events are
// written to.
const EventMeasurement = "aqal_events"

// InfluxConfig configures the InfluxDB sink.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	// WriteTimeout bounds each point write. Default: 2s.
	WriteTimeout time.Duration
}

// InfluxSink writes analytics events to InfluxDB as points.
type InfluxSink struct {
	client  influxdb2.Client
	write   api.WriteAPIBlocking
	timeout time.Duration
}

// NewInfluxSink connects lazily; nothing is sent until the first write or
// ping.
func NewInfluxSink(cfg InfluxConfig) (*InfluxSink, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("influx sink requires url, org and bucket")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{
		client:  client,
		write:   client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		timeout: cfg.WriteTimeout,
	}, nil
}

// Write sends one event.
func (s *InfluxSink) Write(ctx context.Context, e Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.write.WritePoint(ctx, EventPoint(e)); err != nil {
		return fmt.Errorf("write %s point: %w", e.Type, err)
	}
	return nil
}

// Ping checks the server's health endpoint.
func (s *InfluxSink) Ping(ctx context.Context) error {
	health, err := s.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("influx health: %w", err)
	}
	if health.Status != "pass" {
		msg := string(health.Status)
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("influx not ready: %s", msg)
	}
	return nil
}

// Close releases the client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

// EventPoint converts an event to a point. The event type and name are
// tags; the value and a count of 1 are fields.
func EventPoint(e Event) *write.Point {
	tags := map[string]string{
		"type": string(e.Type),
		"name": e.Name(),
	}
	if e.UserID != "" {
		tags["user_id"] = e.UserID
	}
	if e.Category != "" {
		tags["category"] = e.Category
	}
	if e.Unit != "" {
		tags["unit"] = e.Unit
	}
	return influxdb2.NewPoint(EventMeasurement, tags, map[string]interface{}{
		"value": e.Value,
		"count": 1,
	}, e.Timestamp)
}

var _ Sink = (*InfluxSink)(nil)
