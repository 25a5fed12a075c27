// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP surface of the orchestrator.
//
// Each handler is a constructor taking its collaborators and returning a
// gin.HandlerFunc, so the wiring stays explicit in routes.SetupRoutes.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pathwise-ai/pathwise/services/orchestrator/datatypes"
	"github.com/pathwise-ai/pathwise/services/orchestrator/workflow"
)

// StartProfilingRequest is the body for starting a learning session.
type StartProfilingRequest struct {
	Profile map[string]any `json:"profile" binding:"required"`
}

// SubmitResponsesRequest carries the learner's answers for resumption.
type SubmitResponsesRequest struct {
	Responses []datatypes.Response `json:"responses" binding:"required,min=1"`
}

// StartProfiling launches the pipeline for a session and returns the
// suspended state with the generated questions.
func StartProfiling(engine *workflow.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userID")
		sessionID := c.Param("sessionID")

		var req StartProfilingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}

		slog.Info("Received profiling request", "user_id", userID, "session_id", sessionID)

		state, err := engine.Start(c.Request.Context(), userID, sessionID, req.Profile)
		if err != nil {
			slog.Error("failed to start pipeline", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

// SubmitResponses resumes a suspended session with the learner's answers
// and returns the completed (or errored) state.
func SubmitResponses(engine *workflow.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userID")
		sessionID := c.Param("sessionID")

		var req SubmitResponsesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}

		slog.Info("Received responses", "user_id", userID, "session_id", sessionID,
			"count", len(req.Responses))

		state, err := engine.Resume(c.Request.Context(), userID, sessionID, req.Responses)
		if err != nil {
			if errors.Is(err, workflow.ErrCheckpointNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not started"})
				return
			}
			slog.Error("failed to resume pipeline", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resume session"})
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

// GetWorkflowState returns the last checkpointed state for a session.
func GetWorkflowState(engine *workflow.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userID")
		sessionID := c.Param("sessionID")

		state, err := engine.GetState(c.Request.Context(), userID, sessionID)
		if err != nil {
			if errors.Is(err, workflow.ErrCheckpointNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			slog.Error("failed to load state", "session_id", sessionID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session state"})
			return
		}
		c.JSON(http.StatusOK, state)
	}
}
