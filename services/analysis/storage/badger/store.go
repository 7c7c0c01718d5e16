// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger persists per-file analysis results between runs.
//
// Re-analyzing an unchanged file is pure waste: extraction is
// deterministic over the file content and the rule set, so the result can
// be keyed by a content digest and reused until the file or the rules
// change. BadgerDB keeps this embedded — no network call, no availability
// dependency — and its native TTL expires stale entries without any
// application-side invalidation code.
package badger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// resultKeyPrefix is prepended to the content digest to form the key.
// Versioned (v1) to allow future format changes without collision.
const resultKeyPrefix = "analysis/result/v1/"

// defaultTTL is the default lifetime of a cached result entry.
const defaultTTL = 7 * 24 * time.Hour

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("badger: store closed")

// Config configures the embedded database.
type Config struct {
	// Path is the on-disk directory. Ignored when InMemory is set.
	Path string

	// InMemory runs fully in memory, for tests.
	InMemory bool
}

// DefaultConfig returns the standard configuration.
func DefaultConfig() Config {
	return Config{}
}

// DB wraps the embedded BadgerDB handle.
type DB struct {
	db *dgbadger.DB
}

// OpenDB opens the embedded database.
func OpenDB(cfg Config) (*DB, error) {
	opts := dgbadger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)
	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %q: %w", cfg.Path, err)
	}
	return &DB{db: db}, nil
}

// Close releases the database. Safe to call more than once.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// =============================================================================
// ResultStore
// =============================================================================

// CachedResult is the persisted shape of one file's analysis output.
// Kept separate from the engine's live result type so cache format
// changes never leak into the pipeline types.
type CachedResult struct {
	// FilePath is the analyzed file path at store time.
	FilePath string `json:"file_path"`

	// Layer and Architecture are the classification results.
	Layer        string `json:"layer"`
	Architecture string `json:"architecture"`

	// Mappings is the emitted edge list, JSON-encoded as produced.
	Mappings json.RawMessage `json:"mappings,omitempty"`

	// StoredAt records when the entry was written.
	StoredAt time.Time `json:"stored_at"`
}

// ResultStore caches per-file analysis results keyed by content digest.
//
// Description:
//
//	The key is SHA256(file bytes) plus a rule-set digest supplied by the
//	caller, so both a file edit and a rule change produce a different
//	key. Expired or absent keys surface as a cache miss, never an error.
//	Both methods are nil-safe: a nil store behaves as an always-miss
//	cache, which is the correct mode for tests and cache-less runs.
//
// Thread Safety: Safe for concurrent use.
type ResultStore struct {
	db  *DB
	ttl time.Duration
}

// NewResultStore builds a store over an open database. A ttl of 0 uses
// the 7-day default.
func NewResultStore(db *DB, ttl time.Duration) *ResultStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ResultStore{db: db, ttl: ttl}
}

// ContentHash digests file bytes plus the rule fingerprint into a cache
// key component.
func ContentHash(fileBytes []byte, ruleFingerprint string) string {
	h := sha256.New()
	h.Write(fileBytes)
	h.Write([]byte{0})
	h.Write([]byte(ruleFingerprint))
	return hex.EncodeToString(h.Sum(nil))
}

// Load retrieves a cached result.
//
// Outputs:
//
//	*CachedResult - The hit, or nil on miss.
//	error         - Non-nil only on storage failure, never on miss.
func (s *ResultStore) Load(ctx context.Context, contentHash string) (*CachedResult, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if s.db.db == nil {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var payload []byte
	err := s.db.db.View(func(txn *dgbadger.Txn) error {
		item, err := txn.Get([]byte(resultKeyPrefix + contentHash))
		if err != nil {
			return err
		}
		payload, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, dgbadger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("badger: load result: %w", err)
	}

	var result CachedResult
	if err := json.Unmarshal(payload, &result); err != nil {
		// A corrupt entry is a miss, not a failure: the caller just
		// recomputes and overwrites it.
		slog.Warn("Discarding corrupt cached analysis result",
			slog.String("hash", contentHash),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	return &result, nil
}

// Save persists one result under its content hash with the store TTL.
// Persistence failure is non-fatal for callers: the result is simply
// recomputed next run.
func (s *ResultStore) Save(ctx context.Context, contentHash string, result CachedResult) error {
	if s == nil || s.db == nil {
		return nil
	}
	if s.db.db == nil {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	result.StoredAt = time.Now().UTC()
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("badger: encode result: %w", err)
	}

	err = s.db.db.Update(func(txn *dgbadger.Txn) error {
		entry := dgbadger.NewEntry([]byte(resultKeyPrefix+contentHash), payload).
			WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("badger: save result: %w", err)
	}
	return nil
}
