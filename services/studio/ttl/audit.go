// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ttl

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// GenesisHash is the PrevHash of the first record in a sweep log.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// sweepLogFileMode keeps the audit file readable by its owner only.
const sweepLogFileMode = 0o600

// SweepRecord is one line of the sweep audit log.
//
// # Hash Chain
//
// EntryHash is the SHA-256 of the record's other fields, PrevHash
// included. Editing or deleting a line breaks every later link, which
// VerifyChain detects.
type SweepRecord struct {
	Sequence   int64  `json:"sequence"`
	Timestamp  string `json:"timestamp"`
	Trigger    string `json:"trigger"`
	Scanned    int    `json:"scanned"`
	Expired    int    `json:"expired"`
	Corrupted  int    `json:"corrupted"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	PrevHash   string `json:"prev_hash"`
	EntryHash  string `json:"entry_hash"`
}

// SweepLog appends sweep records to a hash-chained JSON lines file.
//
// # Limitations
//
//   - Rotation must be handled externally; a rotated file starts a new
//     chain only if the old one is removed.
//
// # Thread Safety
//
// Safe for concurrent use.
type SweepLog struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	sequence int64
	prevHash string
}

// OpenSweepLog opens or creates the log at path and continues its chain.
func OpenSweepLog(path string) (*SweepLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create sweep log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, sweepLogFileMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open sweep log: %w", err)
	}

	l := &SweepLog{file: file, path: path, prevHash: GenesisHash}
	last, err := readLast(path)
	if err != nil {
		file.Close()
		return nil, err
	}
	if last.Sequence > 0 {
		l.sequence = last.Sequence
		l.prevHash = last.EntryHash
	}
	return l, nil
}

// Append chains rec to the log and writes it. Sequence, PrevHash and
// EntryHash are filled in; the written record is returned.
func (l *SweepLog) Append(rec SweepRecord) (SweepRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec.Sequence = l.sequence + 1
	rec.PrevHash = l.prevHash
	rec.EntryHash = recordHash(rec)

	line, err := json.Marshal(rec)
	if err != nil {
		return SweepRecord{}, fmt.Errorf("failed to marshal sweep record: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return SweepRecord{}, fmt.Errorf("failed to write sweep record: %w", err)
	}

	l.sequence = rec.Sequence
	l.prevHash = rec.EntryHash
	return rec, nil
}

// VerifyChain re-reads the file and checks every link. breakIndex is the
// zero-based index of the first bad record, or -1.
func (l *SweepLog) VerifyChain() (valid bool, breakIndex int64, err error) {
	records, err := readAll(l.path)
	if err != nil {
		return false, -1, err
	}
	prev := GenesisHash
	for i, rec := range records {
		if rec.PrevHash != prev || recordHash(rec) != rec.EntryHash {
			return false, int64(i), nil
		}
		prev = rec.EntryHash
	}
	return true, -1, nil
}

// Records returns every record in file order.
func (l *SweepLog) Records() ([]SweepRecord, error) {
	return readAll(l.path)
}

// Close closes the file.
func (l *SweepLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func readAll(path string) ([]SweepRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open sweep log for reading: %w", err)
	}
	defer file.Close()

	var out []SweepRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec SweepRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil || rec.Sequence == 0 {
			continue
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading sweep log: %w", err)
	}
	return out, nil
}

func readLast(path string) (SweepRecord, error) {
	records, err := readAll(path)
	if err != nil || len(records) == 0 {
		return SweepRecord{}, err
	}
	return records[len(records)-1], nil
}

func recordHash(r SweepRecord) string {
	data := fmt.Sprintf("%d|%s|%s|%d|%d|%d|%d|%s|%s",
		r.Sequence,
		r.Timestamp,
		r.Trigger,
		r.Scanned,
		r.Expired,
		r.Corrupted,
		r.DurationMs,
		r.Error,
		r.PrevHash,
	)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
