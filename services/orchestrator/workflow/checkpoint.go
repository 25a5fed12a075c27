// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/pathwise-ai/pathwise/services/orchestrator/datatypes"
	"github.com/pathwise-ai/pathwise/services/orchestrator/storage/badgerstore"
)

// ErrCheckpointNotFound indicates no suspended state exists for a session.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// checkpointPrefix namespaces checkpoints inside the shared BadgerDB
// keyspace. The full key is "checkpoint/<userID>:<sessionID>", stable
// across process restarts so any worker can resume any session.
const checkpointPrefix = "checkpoint/"

// CheckpointStore persists the full PipelineState at the suspend point and
// after completion. JSON encoding keeps the payload inspectable and
// forward-tolerant of added fields.
//
// Thread Safety: safe for concurrent use.
type CheckpointStore struct {
	db *badgerstore.DB
}

// NewCheckpointStore creates a CheckpointStore over an open BadgerDB handle.
func NewCheckpointStore(db *badgerstore.DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

func checkpointKey(userID, sessionID string) []byte {
	return []byte(checkpointPrefix + datatypes.ContextKey(userID, sessionID))
}

// Save persists the state under its session key, replacing any previous
// checkpoint for the session.
func (c *CheckpointStore) Save(ctx context.Context, state *datatypes.PipelineState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(checkpointKey(state.UserID, state.SessionID), payload)
	})
	if err != nil {
		checkpointOperations.WithLabelValues("save", "error").Inc()
		return fmt.Errorf("persist checkpoint: %w", err)
	}
	checkpointOperations.WithLabelValues("save", "ok").Inc()
	return nil
}

// Load retrieves the state for a session using only (userID, sessionID).
// Returns ErrCheckpointNotFound if the session was never suspended.
func (c *CheckpointStore) Load(ctx context.Context, userID, sessionID string) (*datatypes.PipelineState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var state datatypes.PipelineState
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(checkpointKey(userID, sessionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		checkpointOperations.WithLabelValues("load", "miss").Inc()
		return nil, ErrCheckpointNotFound
	}
	if err != nil {
		checkpointOperations.WithLabelValues("load", "error").Inc()
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	checkpointOperations.WithLabelValues("load", "ok").Inc()
	return &state, nil
}

// Delete removes the checkpoint for a session, if any.
func (c *CheckpointStore) Delete(ctx context.Context, userID, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(checkpointKey(userID, sessionID))
	})
	if err != nil {
		checkpointOperations.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	checkpointOperations.WithLabelValues("delete", "ok").Inc()
	return nil
}
