// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package contextsvc implements the two-tier consistency layer for
// per-session context: a durable BadgerDB store (source of truth) fronted
// by a volatile TTL cache (best-effort accelerator).
//
// Read path: cache by context key; on miss read the durable store and
// populate the cache with a fixed one-hour expiry. Absence in the durable
// store is returned as ErrNotFound without negative caching.
//
// Write path: load the current record from the durable store (never the
// cache, so stale cached data cannot clobber concurrent durable changes),
// apply the field updates, persist, then repopulate the cache entry so
// subsequent reads in this process observe the write.
//
// All writes to one session are serialized by a per-key mutex. The legacy
// system built AddMessage as an unserialized read-modify-write and could
// lose an append under concurrent writers; the mutex closes that race, so
// InteractionCount always equals the number of successful AddMessage calls.
package contextsvc

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/pathwise-ai/pathwise/services/orchestrator/datatypes"
)

var tracer = otel.Tracer("pathwise.orchestrator.contextsvc")

// StateCreated is the lifecycle label of a freshly created record.
const StateCreated = "created"

// Fields is the set of field-level updates Update applies to a record.
// Metadata keys are merged into the existing metadata map; a nil value
// leaves that field untouched.
type Fields struct {
	State    *string
	Metadata map[string]any
}

// ContextService exposes the consistency-layer operations used by every
// pipeline stage and by the transport layer.
//
// Thread Safety: safe for concurrent use. Writes to the same session are
// serialized; independent sessions proceed in parallel.
type ContextService struct {
	store  *Store
	cache  *Cache
	logger *slog.Logger

	// flight coalesces concurrent cache-miss loads of the same key.
	flight singleflight.Group

	// keyMu serializes durable writes per session key.
	mu    sync.Mutex
	keyMu map[string]*sync.Mutex
}

// NewContextService builds the service over its two tiers. cache may be
// nil, in which case every read goes to the durable store (cache
// unavailability is a performance degradation, never an error).
func NewContextService(store *Store, cache *Cache, logger *slog.Logger) *ContextService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextService{
		store:  store,
		cache:  cache,
		logger: logger,
		keyMu:  make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing writes for one session key.
// Locks are retained for the process lifetime; the map is bounded by the
// number of distinct sessions a process touches.
func (s *ContextService) sessionLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.keyMu[key]
	if !ok {
		lock = &sync.Mutex{}
		s.keyMu[key] = lock
	}
	return lock
}

// GetOrCreate returns the record for a session, creating it idempotently
// if absent. Calling it twice with the same pair returns the same record.
func (s *ContextService) GetOrCreate(ctx context.Context, userID, sessionID string, initial map[string]any) (*datatypes.ContextRecord, error) {
	ctx, span := tracer.Start(ctx, "ContextService.GetOrCreate")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID))

	key := datatypes.ContextKey(userID, sessionID)
	lock := s.sessionLock(key)
	lock.Lock()
	defer lock.Unlock()

	record, err := s.store.Get(ctx, userID, sessionID)
	if err == nil {
		s.cacheSet(key, record)
		return record, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	record = &datatypes.ContextRecord{
		UserID:    userID,
		SessionID: sessionID,
		State:     StateCreated,
		Metadata:  initial,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Put(ctx, record); err != nil {
		return nil, err
	}
	s.cacheSet(key, record)
	s.logger.Info("context record created", "user_id", userID, "session_id", sessionID)
	return record, nil
}

// Get returns the record for a session, or ErrNotFound. Cache hits skip
// the durable store; misses are coalesced per key and populate the cache.
func (s *ContextService) Get(ctx context.Context, userID, sessionID string) (*datatypes.ContextRecord, error) {
	ctx, span := tracer.Start(ctx, "ContextService.Get")
	defer span.End()

	key := datatypes.ContextKey(userID, sessionID)
	if s.cache != nil {
		if record, ok := s.cache.Get(key); ok {
			return record, nil
		}
	}

	v, err, _ := s.flight.Do(key, func() (any, error) {
		record, err := s.store.Get(ctx, userID, sessionID)
		if err != nil {
			return nil, err
		}
		s.cacheSet(key, record)
		return record, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*datatypes.ContextRecord), nil
}

// Update applies field-level updates to a session's record and returns the
// updated record, or ErrNotFound if the session does not exist.
func (s *ContextService) Update(ctx context.Context, userID, sessionID string, fields Fields) (*datatypes.ContextRecord, error) {
	ctx, span := tracer.Start(ctx, "ContextService.Update")
	defer span.End()

	key := datatypes.ContextKey(userID, sessionID)
	lock := s.sessionLock(key)
	lock.Lock()
	defer lock.Unlock()

	record, err := s.store.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if fields.State != nil {
		record.State = *fields.State
	}
	if len(fields.Metadata) > 0 {
		if record.Metadata == nil {
			record.Metadata = make(map[string]any, len(fields.Metadata))
		}
		for k, v := range fields.Metadata {
			record.Metadata[k] = v
		}
	}
	record.UpdatedAt = time.Now().UTC()

	if err := s.store.Put(ctx, record); err != nil {
		return nil, err
	}
	s.cacheSet(key, record)
	return record, nil
}

// AddMessage appends a conversation entry and increments the interaction
// counter in one serialized read-modify-write. Returns the updated record,
// or ErrNotFound if the session does not exist.
func (s *ContextService) AddMessage(ctx context.Context, userID, sessionID, actor, text, kind string) (*datatypes.ContextRecord, error) {
	ctx, span := tracer.Start(ctx, "ContextService.AddMessage")
	defer span.End()

	key := datatypes.ContextKey(userID, sessionID)
	lock := s.sessionLock(key)
	lock.Lock()
	defer lock.Unlock()

	record, err := s.store.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record.History = append(record.History, datatypes.ConversationEntry{
		Timestamp: now,
		Actor:     actor,
		Kind:      kind,
		Text:      text,
	})
	record.InteractionCount++
	record.UpdatedAt = now

	if err := s.store.Put(ctx, record); err != nil {
		return nil, err
	}
	s.cacheSet(key, record)
	return record, nil
}

// List returns summaries of every session belonging to a user.
func (s *ContextService) List(ctx context.Context, userID string) ([]datatypes.ContextSummary, error) {
	ctx, span := tracer.Start(ctx, "ContextService.List")
	defer span.End()
	return s.store.List(ctx, userID)
}

// Delete removes a session's record and invalidates its cache entry.
// Returns false if the session did not exist.
func (s *ContextService) Delete(ctx context.Context, userID, sessionID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "ContextService.Delete")
	defer span.End()

	key := datatypes.ContextKey(userID, sessionID)
	lock := s.sessionLock(key)
	lock.Lock()
	defer lock.Unlock()

	found, err := s.store.Delete(ctx, userID, sessionID)
	if err != nil {
		return false, err
	}
	if s.cache != nil {
		s.cache.Invalidate(key)
	}
	return found, nil
}

// cacheSet repopulates the cache entry after a durable read or write.
// Invalidate-then-set keeps the TTL fresh from the time of the write.
func (s *ContextService) cacheSet(key string, record *datatypes.ContextRecord) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(key)
	s.cache.Set(key, record)
}
