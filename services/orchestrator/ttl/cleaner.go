// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ttl implements durable-session retention: a background sweeper
// that removes context records and checkpoints untouched for longer than a
// configured window. The in-process cache has its own TTL; this package
// covers the durable tier, which otherwise grows without bound.
package ttl

import (
	"context"
	"log/slog"
	"time"

	"github.com/pathwise-ai/pathwise/services/orchestrator/contextsvc"
	"github.com/pathwise-ai/pathwise/services/orchestrator/workflow"
)

// DefaultSweepInterval is how often the cleaner scans for stale sessions.
const DefaultSweepInterval = time.Hour

// Cleaner removes sessions whose durable record has not been updated
// within the retention window. Deleting through the context service keeps
// the cache coherent; the matching checkpoint is removed alongside.
//
// Thread Safety: Start and Stop must be called from a single goroutine;
// SweepOnce is safe to call concurrently with a running sweep.
type Cleaner struct {
	store       *contextsvc.Store
	contexts    *contextsvc.ContextService
	checkpoints *workflow.CheckpointStore
	retention   time.Duration
	interval    time.Duration
	logger      *slog.Logger

	stop chan struct{}
	done chan struct{}

	// now is swappable for tests
	now func() time.Time
}

// NewCleaner builds a cleaner with the given retention window. interval
// may be zero to use DefaultSweepInterval; logger may be nil.
func NewCleaner(store *contextsvc.Store, contexts *contextsvc.ContextService,
	checkpoints *workflow.CheckpointStore, retention, interval time.Duration,
	logger *slog.Logger) *Cleaner {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{
		store:       store,
		contexts:    contexts,
		checkpoints: checkpoints,
		retention:   retention,
		interval:    interval,
		logger:      logger,
		now:         time.Now,
	}
}

// Start launches the periodic sweep goroutine.
func (c *Cleaner) Start() {
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				removed, err := c.SweepOnce(context.Background())
				if err != nil {
					c.logger.Warn("session retention sweep failed", "error", err.Error())
				} else if removed > 0 {
					c.logger.Info("session retention sweep removed stale sessions", "count", removed)
				}
			}
		}
	}()
}

// Stop halts the sweep goroutine and waits for it to exit.
func (c *Cleaner) Stop() {
	if c.stop == nil {
		return
	}
	close(c.stop)
	<-c.done
	c.stop = nil
}

// SweepOnce removes every session older than the retention window and
// returns how many were removed. Individual deletion failures are logged
// and skipped so one bad record cannot stall the sweep.
func (c *Cleaner) SweepOnce(ctx context.Context) (int, error) {
	cutoff := c.now().UTC().Add(-c.retention)
	stale, err := c.store.StaleBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, ref := range stale {
		if _, err := c.contexts.Delete(ctx, ref.UserID, ref.SessionID); err != nil {
			c.logger.Warn("failed to remove stale session record",
				"user_id", ref.UserID, "session_id", ref.SessionID, "error", err.Error())
			continue
		}
		if err := c.checkpoints.Delete(ctx, ref.UserID, ref.SessionID); err != nil {
			c.logger.Warn("failed to remove stale checkpoint",
				"user_id", ref.UserID, "session_id", ref.SessionID, "error", err.Error())
		}
		removed++
	}
	return removed, nil
}
