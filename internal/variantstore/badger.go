// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

// Package variantstore persists experiment variant assignments in BadgerDB
// so callers keep their buckets across process restarts.
package variantstore

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/davech88/reclens/internal/orchestrate"
)

const variantKeyPrefix = "variant:"

// Store implements orchestrate.VariantStore on BadgerDB.
type Store struct {
	db *badger.DB
}

// Open opens a BadgerDB at path and wraps it in a Store. The caller owns
// the returned store and must Close it.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Suppress BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db for variants: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already-open BadgerDB.
func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

// Get returns the stored assignment for a caller, if any.
func (s *Store) Get(callerID string) (orchestrate.Variant, bool, error) {
	var v orchestrate.Variant

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(callerID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return orchestrate.Variant{}, false, nil
	}
	if err != nil {
		return orchestrate.Variant{}, false, fmt.Errorf("get variant: %w", err)
	}
	return v, true, nil
}

// Put stores an assignment.
func (s *Store) Put(callerID string, v orchestrate.Variant) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal variant: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(makeKey(callerID), data)
	})
	if err != nil {
		return fmt.Errorf("put variant: %w", err)
	}
	return nil
}

// Delete removes an assignment. Deleting an absent key is not an error.
func (s *Store) Delete(callerID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(makeKey(callerID))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("delete variant: %w", err)
	}
	return nil
}

// Count returns the number of stored assignments.
func (s *Store) Count() (int, error) {
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(variantKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func makeKey(callerID string) []byte {
	return []byte(variantKeyPrefix + callerID)
}
