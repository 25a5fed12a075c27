// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"net/url"
	"time"
)

// ContextRecord is the durable per-session audit record: the source of
// truth for conversation history, interaction count and lifecycle state.
//
// One ContextRecord maps 1:1 to one PipelineState; the checkpointed
// PipelineState is a richer superset used only during active execution.
// Records are deleted only by an explicit caller request or by the opt-in
// retention sweeper.
type ContextRecord struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`

	// State is the session lifecycle label, mirroring the pipeline's
	// CurrentStep at the time of the last update.
	State string `json:"state"`

	Metadata map[string]any `json:"metadata,omitempty"`

	// History is append-only; InteractionCount equals the number of
	// successful AddMessage calls observed by the durable store.
	History          []ConversationEntry `json:"history,omitempty"`
	InteractionCount int                 `json:"interaction_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContextSummary is the listing projection of a ContextRecord.
type ContextSummary struct {
	SessionID        string    `json:"session_id"`
	State            string    `json:"state"`
	InteractionCount int       `json:"interaction_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Summary returns the listing projection of the record.
func (r *ContextRecord) Summary() ContextSummary {
	return ContextSummary{
		SessionID:        r.SessionID,
		State:            r.State,
		InteractionCount: r.InteractionCount,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// ContextKey builds the stable composite key for a session. The same key
// addresses the durable record and, with the cache namespace prefix, the
// cache entry. It must not change across process restarts.
//
// Both components are escaped before joining, so IDs containing the
// separator cannot collide ("a"/"b:c" and "a:b"/"c" get distinct keys)
// and a per-user prefix scan never crosses into another user's sessions.
func ContextKey(userID, sessionID string) string {
	return url.QueryEscape(userID) + ":" + url.QueryEscape(sessionID)
}
