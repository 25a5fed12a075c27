// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pathwise-ai/pathwise/services/orchestrator/contextsvc"
	"github.com/pathwise-ai/pathwise/services/orchestrator/workflow"
)

// AppendMessageRequest is the body for appending one conversation message.
type AppendMessageRequest struct {
	Actor string `json:"actor" binding:"required"`
	Text  string `json:"text" binding:"required"`
	Kind  string `json:"kind"`
}

// ListSessions returns summaries of every session context for a user.
func ListSessions(contexts *contextsvc.ContextService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userID")

		summaries, err := contexts.List(c.Request.Context(), userID)
		if err != nil {
			slog.Error("failed to list sessions", "user_id", userID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": summaries})
	}
}

// DeleteSession removes a session context from the store and cache, and
// the workflow checkpoint with it, so the session can neither be inspected
// nor resurrected by the start-profiling idempotence path afterwards.
//
// Deleting a session that does not exist reports deleted: false rather
// than an error, so the operation is safe to retry.
func DeleteSession(contexts *contextsvc.ContextService, checkpoints *workflow.CheckpointStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userID")
		sessionID := c.Param("sessionID")
		slog.Info("Received a request to delete a session",
			"user_id", userID, "session_id", sessionID)

		deleted, err := contexts.Delete(c.Request.Context(), userID, sessionID)
		if err != nil {
			slog.Error("failed to delete session", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete session"})
			return
		}
		if err := checkpoints.Delete(c.Request.Context(), userID, sessionID); err != nil {
			slog.Error("failed to delete session checkpoint", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": deleted, "session_id": sessionID})
	}
}

// AppendMessage appends one conversation entry to a session context.
func AppendMessage(contexts *contextsvc.ContextService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userID")
		sessionID := c.Param("sessionID")

		var req AppendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
		kind := req.Kind
		if kind == "" {
			kind = "message"
		}

		record, err := contexts.AddMessage(c.Request.Context(), userID, sessionID,
			req.Actor, req.Text, kind)
		if err != nil {
			if errors.Is(err, contextsvc.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			slog.Error("failed to append message", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to append message"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"interaction_count": record.InteractionCount,
			"history_length":    len(record.History),
		})
	}
}
