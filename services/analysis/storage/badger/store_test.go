// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *ResultStore {
	t.Helper()
	db, err := OpenDB(Config{InMemory: true})
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewResultStore(db, time.Hour)
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("class A {}"), "rules-v1")
	b := ContentHash([]byte("class A {}"), "rules-v1")
	if a != b {
		t.Error("same inputs produced different hashes")
	}
	if ContentHash([]byte("class B {}"), "rules-v1") == a {
		t.Error("different content produced the same hash")
	}
	if ContentHash([]byte("class A {}"), "rules-v2") == a {
		t.Error("different rule fingerprint produced the same hash")
	}
}

func TestResultStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	mappings, _ := json.Marshal([]map[string]string{{"from_reference": "com.acme.A"}})
	key := ContentHash([]byte("class A {}"), "fp")
	saved := CachedResult{
		FilePath:     "src/A.java",
		Layer:        "service",
		Architecture: "web",
		Mappings:     mappings,
	}
	if err := store.Save(ctx, key, saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("saved entry missed")
	}
	if got.FilePath != "src/A.java" || got.Layer != "service" {
		t.Errorf("loaded = %+v", got)
	}
	if got.StoredAt.IsZero() {
		t.Error("StoredAt not stamped on save")
	}
	if string(got.Mappings) != string(mappings) {
		t.Errorf("mappings payload = %s", got.Mappings)
	}
}

func TestResultStoreMiss(t *testing.T) {
	store := openTestStore(t)

	got, err := store.Load(context.Background(), ContentHash([]byte("never saved"), ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != nil {
		t.Fatalf("got %+v, want miss", got)
	}
}

func TestNilStoreAlwaysMisses(t *testing.T) {
	var store *ResultStore
	ctx := context.Background()

	got, err := store.Load(ctx, "whatever")
	if err != nil || got != nil {
		t.Fatalf("nil store Load = %+v, %v", got, err)
	}
	if err := store.Save(ctx, "whatever", CachedResult{}); err != nil {
		t.Fatalf("nil store Save: %v", err)
	}
}

func TestClosedStore(t *testing.T) {
	db, err := OpenDB(Config{InMemory: true})
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	store := NewResultStore(db, 0)
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := store.Load(context.Background(), "k"); err != ErrClosed {
		t.Errorf("Load on closed store: %v, want ErrClosed", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
