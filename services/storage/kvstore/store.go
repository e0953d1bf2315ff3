// Copyright (C) 2025 The AQAL Studio Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kvstore is a TTL key-value store with size-bounded eviction.
//
// # Description
//
// Every value is wrapped in a versioned envelope recording when it was
// written and how long it lives. Reads drop expired or unreadable entries.
// Writes that would push the total stored size past MaxSize first evict
// the entries with the oldest write timestamps.
//
//	key "profile"  ──►  badger key "aqal_profile"
//	                    value {"id":..,"data":..,"timestamp":..,"ttl":..,"version":"1.0.0"}
//
// # Thread Safety
//
// Store is safe for concurrent use. Writes are serialized so that the
// size check and eviction observe a consistent view.
package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/topherchris420/aqal/pkg/logging"
	aqalbadger "github.com/topherchris420/aqal/services/storage/badger"
)

const (
	// DefaultPrefix namespaces every key the store writes.
	DefaultPrefix = "aqal_"

	// FormatVersion is written into every envelope and export.
	FormatVersion = "1.0.0"

	// DefaultTTL applies when Set is called with a zero TTL.
	DefaultTTL = 7 * 24 * time.Hour

	// DefaultMaxSize bounds the total serialized size of all entries.
	DefaultMaxSize int64 = 50 * 1024 * 1024
)

var (
	// ErrNotFound is returned when a key is absent, expired or corrupted.
	ErrNotFound = errors.New("kvstore: not found")

	// ErrValueTooLarge is returned when a single value exceeds MaxSize.
	ErrValueTooLarge = errors.New("kvstore: value exceeds maximum store size")

	// ErrInvalidImport is returned when an import document lacks data or version.
	ErrInvalidImport = errors.New("kvstore: invalid import format")
)

// Metrics receives store operation counts. Implemented by the studio's
// Prometheus metrics; nil disables recording.
type Metrics interface {
	RecordStoreOperation(op string, success bool)
	RecordEvictions(n int)
}

// Config configures a Store.
type Config struct {
	// Prefix namespaces keys. Default: "aqal_".
	Prefix string

	// DefaultTTL is used when Set receives a zero TTL. Default: 7 days.
	DefaultTTL time.Duration

	// MaxSize bounds total serialized bytes. Default: 50 MiB.
	MaxSize int64

	// Clock returns the current time. Default: time.Now.
	Clock func() time.Time

	// Logger receives eviction and corruption notices.
	Logger *logging.Logger

	// Metrics is optional.
	Metrics Metrics
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	cfg.Logger = cfg.Logger.Module(logging.ModuleStorage)
	return cfg
}

// envelope is the on-disk wrapper around every stored value.
type envelope struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	TTL       int64           `json:"ttl,omitempty"`
	Version   string          `json:"version"`
}

func (e envelope) expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.UnixMilli() > e.Timestamp+e.TTL
}

// Stats summarizes the store contents.
//
// OldestItem defaults to the current time and NewestItem to zero when the
// store is empty. Both are Unix milliseconds.
type Stats struct {
	TotalSize  int64 `json:"totalSize"`
	ItemCount  int   `json:"itemCount"`
	OldestItem int64 `json:"oldestItem"`
	NewestItem int64 `json:"newestItem"`
}

// CleanupResult reports what a Cleanup pass removed.
type CleanupResult struct {
	Scanned   int `json:"scanned"`
	Expired   int `json:"expired"`
	Corrupted int `json:"corrupted"`
}

// Removed returns the total number of deleted entries.
func (r CleanupResult) Removed() int { return r.Expired + r.Corrupted }

// Store is the envelope key-value store.
type Store struct {
	db  *aqalbadger.DB
	cfg Config
	mu  sync.Mutex
}

// Open wraps db in a Store and runs an initial cleanup pass.
//
// # Description
//
// Expired and corrupted entries left from a previous run are removed
// before the store is returned, so the first Stats call reflects live
// data only.
//
// # Inputs
//
//   - ctx: Bounds the initial cleanup.
//   - db: An open database. The Store does not take ownership.
//   - cfg: Zero fields take defaults.
//
// # Outputs
//
//   - *Store: Ready for use.
//   - error: Non-nil if the initial cleanup fails.
func Open(ctx context.Context, db *aqalbadger.DB, cfg Config) (*Store, error) {
	if db == nil {
		return nil, errors.New("kvstore: db must not be nil")
	}
	s := &Store{db: db, cfg: applyConfigDefaults(cfg)}
	if _, err := s.Cleanup(ctx); err != nil {
		return nil, fmt.Errorf("initial cleanup: %w", err)
	}
	return s, nil
}

// DB returns the underlying database for health checks.
func (s *Store) DB() *aqalbadger.DB { return s.db }

// MaxSize returns the configured size bound.
func (s *Store) MaxSize() int64 { return s.cfg.MaxSize }

func (s *Store) key(k string) []byte {
	return []byte(s.cfg.Prefix + k)
}

func (s *Store) record(op string, err error) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordStoreOperation(op, err == nil)
	}
}

// =============================================================================
// Core Operations
// =============================================================================

// Set stores data under key for ttl. A zero ttl uses DefaultTTL.
//
// # Description
//
// The value is JSON-encoded into an envelope. If the write would push the
// total stored size past MaxSize, entries are evicted oldest first until
// it fits. The entry being overwritten counts toward the total and may
// itself be evicted.
//
// # Outputs
//
//   - error: ErrValueTooLarge if the envelope alone exceeds MaxSize,
//     or a wrapped encoding or storage error.
func (s *Store) Set(ctx context.Context, key string, data any, ttl time.Duration) (err error) {
	defer func() { s.record("set", err) }()

	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode value for %q: %w", key, err)
	}
	env := envelope{
		ID:        uuid.NewString(),
		Data:      raw,
		Timestamp: s.cfg.Clock().UnixMilli(),
		TTL:       ttl.Milliseconds(),
		Version:   FormatVersion,
	}
	serialized, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope for %q: %w", key, err)
	}
	if int64(len(serialized)) > s.cfg.MaxSize {
		return fmt.Errorf("%q is %d bytes: %w", key, len(serialized), ErrValueTooLarge)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.makeSpace(ctx, int64(len(serialized))); err != nil {
		return err
	}

	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		entry := badger.NewEntry(s.key(key), serialized).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
}

// Get decodes the value stored under key into out.
//
// # Outputs
//
//   - bool: False when the key is absent, expired or corrupted. Expired
//     and corrupted entries are deleted as a side effect.
//   - error: Storage failures, or a decode failure of a valid envelope
//     into out.
func (s *Store) Get(ctx context.Context, key string, out any) (found bool, err error) {
	defer func() { s.record("get", err) }()

	var serialized []byte
	err = s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(key))
		if err != nil {
			return err
		}
		serialized, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %q: %w", key, err)
	}

	var env envelope
	if jsonErr := json.Unmarshal(serialized, &env); jsonErr != nil {
		s.cfg.Logger.Warn("removing corrupted entry", "key", key, "error", jsonErr)
		_, err := s.deleteIfUnchanged(ctx, s.key(key), serialized)
		return false, err
	}
	if env.expired(s.cfg.Clock()) {
		_, err := s.deleteIfUnchanged(ctx, s.key(key), serialized)
		return false, err
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return false, fmt.Errorf("decode %q: %w", key, err)
		}
	}
	return true, nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, key string) (err error) {
	defer func() { s.record("remove", err) }()
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Delete(s.key(key))
	})
}

// Clear deletes every key under the store prefix and returns the count.
// Keys outside the prefix are untouched.
func (s *Store) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys [][]byte
	err := s.scan(ctx, s.cfg.Prefix, func(k []byte, _ []byte, _ int64) {
		keys = append(keys, k)
	}, false)
	if err != nil {
		return 0, err
	}
	if err := s.deleteKeys(ctx, keys); err != nil {
		return 0, err
	}
	s.record("clear", nil)
	return len(keys), nil
}

// Keys lists the unprefixed keys that start with sub.
func (s *Store) Keys(ctx context.Context, sub string) ([]string, error) {
	var keys []string
	err := s.scan(ctx, s.cfg.Prefix+sub, func(k []byte, _ []byte, _ int64) {
		keys = append(keys, strings.TrimPrefix(string(k), s.cfg.Prefix))
	}, false)
	return keys, err
}

// =============================================================================
// Maintenance
// =============================================================================

// Cleanup deletes expired and corrupted entries.
//
// An entry rewritten between the scan and the delete is kept; the counts
// include only entries actually removed.
func (s *Store) Cleanup(ctx context.Context) (CleanupResult, error) {
	type candidate struct {
		key, value []byte
		corrupted  bool
	}

	var (
		result CleanupResult
		doomed []candidate
	)
	now := s.cfg.Clock()

	err := s.scan(ctx, s.cfg.Prefix, func(k []byte, v []byte, _ int64) {
		result.Scanned++
		var env envelope
		if err := json.Unmarshal(v, &env); err != nil {
			doomed = append(doomed, candidate{key: k, value: v, corrupted: true})
			return
		}
		if env.expired(now) {
			doomed = append(doomed, candidate{key: k, value: v})
		}
	}, true)
	if err != nil {
		return result, fmt.Errorf("scan for cleanup: %w", err)
	}

	for _, c := range doomed {
		removed, err := s.deleteIfUnchanged(ctx, c.key, c.value)
		if err != nil {
			return result, fmt.Errorf("delete expired: %w", err)
		}
		switch {
		case !removed:
		case c.corrupted:
			result.Corrupted++
		default:
			result.Expired++
		}
	}
	if result.Removed() > 0 {
		s.cfg.Logger.Info("store cleanup removed entries",
			"expired", result.Expired,
			"corrupted", result.Corrupted,
		)
	}
	s.record("cleanup", nil)
	return result, nil
}

// Stats returns size and age information for the prefixed entries.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{OldestItem: s.cfg.Clock().UnixMilli()}
	err := s.scan(ctx, s.cfg.Prefix, func(_ []byte, v []byte, size int64) {
		stats.ItemCount++
		stats.TotalSize += size
		var env envelope
		if json.Unmarshal(v, &env) == nil && env.Timestamp > 0 {
			stats.OldestItem = min(stats.OldestItem, env.Timestamp)
			stats.NewestItem = max(stats.NewestItem, env.Timestamp)
		}
	}, true)
	return stats, err
}

// makeSpace evicts the oldest entries until required more bytes fit.
// Callers hold s.mu.
func (s *Store) makeSpace(ctx context.Context, required int64) error {
	type aged struct {
		key       []byte
		size      int64
		timestamp int64
	}

	var (
		items []aged
		total int64
	)
	err := s.scan(ctx, s.cfg.Prefix, func(k []byte, v []byte, size int64) {
		total += size
		var env envelope
		_ = json.Unmarshal(v, &env)
		items = append(items, aged{key: k, size: size, timestamp: env.Timestamp})
	}, true)
	if err != nil {
		return fmt.Errorf("measure store: %w", err)
	}
	if total+required <= s.cfg.MaxSize {
		return nil
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].timestamp < items[j].timestamp })

	var evict [][]byte
	for _, it := range items {
		evict = append(evict, it.key)
		total -= it.size
		if total+required <= s.cfg.MaxSize {
			break
		}
	}
	if err := s.deleteKeys(ctx, evict); err != nil {
		return fmt.Errorf("evict: %w", err)
	}

	s.cfg.Logger.Warn("store full, evicted oldest entries",
		"evicted", len(evict),
		"required_bytes", required,
		"max_bytes", s.cfg.MaxSize,
	)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordEvictions(len(evict))
	}
	return nil
}

// scan visits every key under prefix. Values are fetched only when
// withValues is set, in which case size is exact; otherwise it is
// Badger's estimate.
func (s *Store) scan(ctx context.Context, prefix string, fn func(k, v []byte, size int64), withValues bool) error {
	return s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = withValues
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			k := item.KeyCopy(nil)
			var v []byte
			size := item.ValueSize()
			if withValues {
				var err error
				if v, err = item.ValueCopy(nil); err != nil {
					return err
				}
				size = int64(len(v))
			}
			fn(k, v, size)
		}
		return nil
	})
}

// deleteIfUnchanged deletes key only while it still holds seen. The
// re-read and the delete share one transaction, so a concurrent Set either
// lands first and is kept, or conflicts the commit and is kept.
func (s *Store) deleteIfUnchanged(ctx context.Context, key, seen []byte) (bool, error) {
	removed := false
	err := s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		current, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if !bytes.Equal(current, seen) {
			return nil
		}
		removed = true
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (s *Store) deleteKeys(ctx context.Context, keys [][]byte) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
