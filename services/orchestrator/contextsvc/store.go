// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package contextsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/pathwise-ai/pathwise/services/orchestrator/datatypes"
	"github.com/pathwise-ai/pathwise/services/orchestrator/storage/badgerstore"
)

// ErrNotFound indicates no durable record exists for the session.
var ErrNotFound = errors.New("context record not found")

// contextPrefix namespaces context records inside the shared BadgerDB
// keyspace. The full key is "context/<userID>:<sessionID>".
const contextPrefix = "context/"

// Store is the durable tier for ContextRecords, backed by BadgerDB.
//
// Records are JSON-encoded under a stable per-session key, so the store is
// the source of truth across process restarts. All methods are safe for
// concurrent use; per-session write serialization is the job of
// ContextService, not the store.
type Store struct {
	db *badgerstore.DB
}

// NewStore creates a Store over an open BadgerDB handle.
func NewStore(db *badgerstore.DB) *Store {
	return &Store{db: db}
}

func storeKey(userID, sessionID string) []byte {
	return []byte(contextPrefix + datatypes.ContextKey(userID, sessionID))
}

// Get loads the record for a session. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, userID, sessionID string) (*datatypes.ContextRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var record datatypes.ContextRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storeKey(userID, sessionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		storeOperations.WithLabelValues("get", "miss").Inc()
		return nil, ErrNotFound
	}
	if err != nil {
		storeOperations.WithLabelValues("get", "error").Inc()
		return nil, fmt.Errorf("load context record: %w", err)
	}
	storeOperations.WithLabelValues("get", "ok").Inc()
	return &record, nil
}

// Put persists the record under its session key, creating or replacing it.
func (s *Store) Put(ctx context.Context, record *datatypes.ContextRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode context record: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(storeKey(record.UserID, record.SessionID), payload)
	})
	if err != nil {
		storeOperations.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("persist context record: %w", err)
	}
	storeOperations.WithLabelValues("put", "ok").Inc()
	return nil
}

// Delete removes the record for a session. Returns false if it was absent.
func (s *Store) Delete(ctx context.Context, userID, sessionID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	key := storeKey(userID, sessionID)
	found := false
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return txn.Delete(key)
	})
	if err != nil {
		storeOperations.WithLabelValues("delete", "error").Inc()
		return false, fmt.Errorf("delete context record: %w", err)
	}
	storeOperations.WithLabelValues("delete", "ok").Inc()
	return found, nil
}

// List returns summaries of every session belonging to a user, via a
// prefix scan over the user's escaped key prefix.
func (s *Store) List(ctx context.Context, userID string) ([]datatypes.ContextSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(contextPrefix + datatypes.ContextKey(userID, ""))
	summaries := []datatypes.ContextSummary{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			var record datatypes.ContextRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return err
			}
			summaries = append(summaries, record.Summary())
		}
		return nil
	})
	if err != nil {
		storeOperations.WithLabelValues("list", "error").Inc()
		return nil, fmt.Errorf("list context records: %w", err)
	}
	storeOperations.WithLabelValues("list", "ok").Inc()
	return summaries, nil
}

// SessionRef identifies one session in the durable tier.
type SessionRef struct {
	UserID    string
	SessionID string
}

// StaleBefore returns every session whose record was last updated before
// the cutoff, via a full scan over the context keyspace. Used by the
// retention sweeper; sessions are small and the scan runs off the request
// path.
func (s *Store) StaleBefore(ctx context.Context, cutoff time.Time) ([]SessionRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(contextPrefix)
	var stale []SessionRef

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			var record datatypes.ContextRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return err
			}
			if record.UpdatedAt.Before(cutoff) {
				stale = append(stale, SessionRef{UserID: record.UserID, SessionID: record.SessionID})
			}
		}
		return nil
	})
	if err != nil {
		storeOperations.WithLabelValues("scan", "error").Inc()
		return nil, fmt.Errorf("scan context records: %w", err)
	}
	storeOperations.WithLabelValues("scan", "ok").Inc()
	return stale, nil
}
