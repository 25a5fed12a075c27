// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pathwise-ai/pathwise/services/orchestrator/contextsvc"
	"github.com/pathwise-ai/pathwise/services/orchestrator/handlers"
	"github.com/pathwise-ai/pathwise/services/orchestrator/workflow"
)

// SetupRoutes registers every endpoint on the router.
func SetupRoutes(router *gin.Engine, engine *workflow.Engine, contexts *contextsvc.ContextService, checkpoints *workflow.CheckpointStore) {

	router.GET("/healthz", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.GET("/:userID", handlers.ListSessions(contexts))
			sessions.POST("/:userID/:sessionID/profiling", handlers.StartProfiling(engine))
			sessions.POST("/:userID/:sessionID/responses", handlers.SubmitResponses(engine))
			sessions.GET("/:userID/:sessionID/state", handlers.GetWorkflowState(engine))
			sessions.POST("/:userID/:sessionID/messages", handlers.AppendMessage(contexts))
			sessions.DELETE("/:userID/:sessionID", handlers.DeleteSession(contexts, checkpoints))
		}
	}
}
