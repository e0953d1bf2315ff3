// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extensions defines the pluggable seams of the studio service.
//
// The service depends only on these interfaces. Callers swap in their own
// authentication or audit backends through ServiceOptions:
//
//	opts := extensions.DefaultOptions().
//	    WithAuth(sessionService).
//	    WithAudit(extensions.NewMemoryAuditLogger(500, nil))
//	svc, err := studio.New(cfg, &opts)
package extensions

// ServiceOptions bundles the extension points passed to studio.New.
type ServiceOptions struct {
	// AuthProvider validates bearer tokens. When nil the studio wires its
	// own session service.
	AuthProvider AuthProvider

	// AuditLogger receives security-relevant events.
	AuditLogger AuditLogger
}

// DefaultOptions returns options with no auth override and a no-op
// audit logger.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuditLogger: &NopAuditLogger{},
	}
}

// WithAuth returns a copy with the auth provider replaced.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithAudit returns a copy with the audit logger replaced.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}
