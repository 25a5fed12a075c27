// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package contextsvc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwise-ai/pathwise/services/orchestrator/storage/badgerstore"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := badgerstore.Open(badgerstore.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestStore_PutGetDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	record := testRecord("s1")
	require.NoError(t, store.Put(ctx, record))

	got, err := store.Get(ctx, "user-1", "s1")
	require.NoError(t, err)
	assert.Equal(t, record.SessionID, got.SessionID)
	assert.Equal(t, record.State, got.State)

	found, err := store.Delete(ctx, "user-1", "s1")
	require.NoError(t, err)
	assert.True(t, found)

	_, err = store.Get(ctx, "user-1", "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	found, err = store.Delete(ctx, "user-1", "s1")
	require.NoError(t, err)
	assert.False(t, found, "second delete should report not found")
}

func TestStore_GetMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Get(context.Background(), "user-1", "absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestStore_ListScopedToUser verifies the prefix scan returns only the
// requested user's sessions.
func TestStore_ListScopedToUser(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, sessionID := range []string{"s1", "s2"} {
		require.NoError(t, store.Put(ctx, testRecord(sessionID)))
	}
	other := testRecord("s9")
	other.UserID = "user-2"
	require.NoError(t, store.Put(ctx, other))

	summaries, err := store.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	ids := []string{summaries[0].SessionID, summaries[1].SessionID}
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)

	summaries, err = store.List(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

// TestStore_SeparatorInIDs verifies IDs containing the key separator
// neither collide nor leak into another user's listing.
func TestStore_SeparatorInIDs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := testRecord("b:c")
	first.UserID = "a"
	require.NoError(t, store.Put(ctx, first))

	second := testRecord("c")
	second.UserID = "a:b"
	second.State = "profiling"
	require.NoError(t, store.Put(ctx, second))

	got, err := store.Get(ctx, "a", "b:c")
	require.NoError(t, err)
	assert.Equal(t, StateCreated, got.State)

	got, err = store.Get(ctx, "a:b", "c")
	require.NoError(t, err)
	assert.Equal(t, "profiling", got.State)

	summaries, err := store.List(ctx, "a")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "b:c", summaries[0].SessionID)

	summaries, err = store.List(ctx, "a:b")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "c", summaries[0].SessionID)
}

// TestStore_SurvivesReopen verifies records persist across a close/reopen
// of the same database directory.
func TestStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := badgerstore.Config{Path: dir, SyncWrites: true}
	db, err := badgerstore.Open(cfg)
	require.NoError(t, err)

	store := NewStore(db)
	require.NoError(t, store.Put(ctx, testRecord("s1")))
	require.NoError(t, db.Close())

	db, err = badgerstore.Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	got, err := NewStore(db).Get(ctx, "user-1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
}

func TestStore_CancelledContext(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Get(ctx, "user-1", "s1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Put(ctx, testRecord("s1")), context.Canceled)
}
