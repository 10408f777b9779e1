// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package variantstore

import (
	"testing"

	"github.com/dgraph-io/badger/v4"

	"github.com/davech88/reclens/internal/orchestrate"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	// Use in-memory storage for testing
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("Failed to open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewStore(db)
}

func TestStorePutGet(t *testing.T) {
	store := setupStore(t)

	want := orchestrate.Variant{
		ID:             "v-caller-1",
		Algorithm:      orchestrate.AlgorithmML,
		RolloutPercent: 25,
	}
	if err := store.Put("caller-1", want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, ok, err := store.Get("caller-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("stored variant not found")
	}
	if got.ID != want.ID || got.Algorithm != want.Algorithm || got.RolloutPercent != want.RolloutPercent {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := setupStore(t)

	_, ok, err := store.Get("nobody")
	if err != nil {
		t.Fatalf("Get of missing key errored: %v", err)
	}
	if ok {
		t.Error("missing key reported as found")
	}
}

func TestStoreDelete(t *testing.T) {
	store := setupStore(t)

	v := orchestrate.Variant{ID: "v-gone", Algorithm: orchestrate.AlgorithmControl}
	if err := store.Put("caller-gone", v); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("caller-gone"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, ok, err := store.Get("caller-gone")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("deleted variant still present")
	}

	// Deleting again must be a no-op.
	if err := store.Delete("caller-gone"); err != nil {
		t.Errorf("double delete errored: %v", err)
	}
}

func TestStorePutOverwrites(t *testing.T) {
	store := setupStore(t)

	first := orchestrate.Variant{ID: "v-x", Algorithm: orchestrate.AlgorithmControl, RolloutPercent: 10}
	second := orchestrate.Variant{ID: "v-x", Algorithm: orchestrate.AlgorithmML, RolloutPercent: 90}

	if err := store.Put("caller-x", first); err != nil {
		t.Fatal(err)
	}
	if err := store.Put("caller-x", second); err != nil {
		t.Fatal(err)
	}

	got, ok, err := store.Get("caller-x")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if got.Algorithm != orchestrate.AlgorithmML || got.RolloutPercent != 90 {
		t.Errorf("overwrite not applied: %+v", got)
	}
}

func TestStoreCount(t *testing.T) {
	store := setupStore(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Put(id, orchestrate.Variant{ID: "v-" + id}); err != nil {
			t.Fatal(err)
		}
	}

	count, err := store.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Count = %d, want 3", count)
	}
}

func TestStoreSatisfiesVariantStore(t *testing.T) {
	var _ orchestrate.VariantStore = setupStore(t)
}
