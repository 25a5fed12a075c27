// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pathwise-ai/pathwise/services/orchestrator/contextsvc"
	"github.com/pathwise-ai/pathwise/services/orchestrator/datatypes"
)

var tracer = otel.Tracer("pathwise.orchestrator.workflow")

// Engine interprets the static routing table over a set of stage
// functions, checkpointing at the suspend point and resuming later from
// durable state.
//
// Description:
//
//	One Engine serves all sessions of a process. A single session's run is
//	strictly sequential (each stage's output is the next stage's input);
//	independent sessions run fully in parallel with no shared mutable
//	state beyond the context service. Suspension is a logical pause: Start
//	returns once the checkpoint is saved, holding no goroutine or other
//	resource, and Resume may happen arbitrarily later on a different
//	worker because checkpoint retrieval needs only (userID, sessionID).
//
// Failure semantics: any error or panic inside a stage is converted into
// errorMessage + needsHumanReview on the state and the run halts along the
// error edge. The engine itself never crashes because a stage failed.
//
// Thread Safety: safe for concurrent use across sessions.
type Engine struct {
	stages      map[string]Stage
	edges       []Edge
	checkpoints *CheckpointStore
	contexts    *contextsvc.ContextService
	logger      *slog.Logger
}

// NewEngine wires the engine from its stage set and routing table.
// contexts may be nil; audit mirroring into the context service is then
// skipped (used by unit tests exercising the graph alone).
func NewEngine(stages []Stage, edges []Edge, checkpoints *CheckpointStore, contexts *contextsvc.ContextService, logger *slog.Logger) (*Engine, error) {
	if checkpoints == nil {
		return nil, errors.New("checkpoint store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	byName := make(map[string]Stage, len(stages))
	for _, s := range stages {
		if s.Run == nil {
			return nil, fmt.Errorf("stage %q has no function", s.Name)
		}
		if _, dup := byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate stage %q", s.Name)
		}
		byName[s.Name] = s
	}
	for _, e := range edges {
		if _, ok := byName[e.From]; !ok {
			return nil, fmt.Errorf("edge from unknown node %q", e.From)
		}
		if e.To != NodeEnd && e.To != NodeSuspend {
			if _, ok := byName[e.To]; !ok {
				return nil, fmt.Errorf("edge to unknown node %q", e.To)
			}
		}
	}

	return &Engine{
		stages:      byName,
		edges:       edges,
		checkpoints: checkpoints,
		contexts:    contexts,
		logger:      logger,
	}, nil
}

// Start runs a new session up to the suspend point and checkpoints it.
//
// Idempotent per session: if a checkpoint already exists for the pair the
// existing state is returned without re-running any stage.
func (e *Engine) Start(ctx context.Context, userID, sessionID string, profile map[string]any) (*datatypes.PipelineState, error) {
	ctx, span := tracer.Start(ctx, "Engine.Start")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID))

	if existing, err := e.checkpoints.Load(ctx, userID, sessionID); err == nil {
		e.logger.Info("session already started, returning checkpointed state",
			"user_id", userID, "session_id", sessionID, "step", existing.CurrentStep)
		return existing, nil
	} else if !errors.Is(err, ErrCheckpointNotFound) {
		return nil, err
	}

	if e.contexts != nil {
		if _, err := e.contexts.GetOrCreate(ctx, userID, sessionID, profile); err != nil {
			return nil, fmt.Errorf("create session context: %w", err)
		}
	}

	state := datatypes.NewPipelineState(userID, sessionID, profile)
	stopped := e.run(ctx, state, NodeProfile)

	switch {
	case state.ErrorMessage != "":
		state.CurrentStep = datatypes.StepError
		runsTotal.WithLabelValues("start", "error").Inc()
	case stopped == NodeSuspend:
		state.CurrentStep = datatypes.StepQuestionsGenerated
		runsTotal.WithLabelValues("start", "suspended").Inc()
	default:
		runsTotal.WithLabelValues("start", "completed").Inc()
	}

	if err := e.checkpoints.Save(ctx, state); err != nil {
		return nil, err
	}
	e.mirrorLifecycle(ctx, state)
	return state, nil
}

// Resume loads the checkpoint for a session, merges the supplied
// responses, and runs the remainder of the graph starting at evaluate.
//
// Returns ErrCheckpointNotFound when the session was never started. A
// session that already completed is returned unchanged.
func (e *Engine) Resume(ctx context.Context, userID, sessionID string, responses []datatypes.Response) (*datatypes.PipelineState, error) {
	ctx, span := tracer.Start(ctx, "Engine.Resume")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID))

	state, err := e.checkpoints.Load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if state.IsComplete {
		return state, nil
	}

	state.Responses = responses
	state.CurrentStep = datatypes.StepResponsesReceived
	state.CurrentQuestionIndex = len(state.Questions)
	state.UpdatedAt = time.Now().UTC()

	e.run(ctx, state, NodeEvaluate)

	if state.ErrorMessage != "" {
		state.CurrentStep = datatypes.StepError
		runsTotal.WithLabelValues("resume", "error").Inc()
	} else {
		state.IsComplete = true
		state.CurrentStep = datatypes.StepCompleted
		runsTotal.WithLabelValues("resume", "completed").Inc()
	}

	if err := e.checkpoints.Save(ctx, state); err != nil {
		return nil, err
	}
	e.mirrorLifecycle(ctx, state)
	return state, nil
}

// GetState returns the persisted state for a session, from whichever
// segment last checkpointed it. Returns ErrCheckpointNotFound if absent.
func (e *Engine) GetState(ctx context.Context, userID, sessionID string) (*datatypes.PipelineState, error) {
	return e.checkpoints.Load(ctx, userID, sessionID)
}

// run interprets the routing table from a node until a pseudo-node stops
// it, and returns the pseudo-node reached.
func (e *Engine) run(ctx context.Context, state *datatypes.PipelineState, node string) string {
	for node != NodeEnd && node != NodeSuspend {
		stage, ok := e.stages[node]
		if !ok {
			e.failStage(state, node, fmt.Errorf("no stage registered for node %q", node))
			return NodeEnd
		}
		e.execStage(ctx, stage, state)
		node = nextNode(e.edges, node, state)
	}
	return node
}

// execStage runs one stage with panic recovery, validates the ownership
// of its update, and merges it into the state.
func (e *Engine) execStage(ctx context.Context, stage Stage, state *datatypes.PipelineState) {
	ctx, span := tracer.Start(ctx, "stage."+stage.Name,
		trace.WithAttributes(attribute.String("stage", stage.Name)))
	defer span.End()

	start := time.Now()
	state.CurrentStep = datatypes.Step(stage.Name)

	update, err := runProtected(ctx, stage, state)
	if err == nil && update != nil {
		err = checkOwnership(stage, update)
	}
	if err != nil {
		e.failStage(state, stage.Name, err)
		return
	}
	if update != nil {
		update.Apply(state)
		e.mirrorHistory(ctx, state, update.AppendHistory)
	}
	stageDuration.WithLabelValues(stage.Name).Observe(time.Since(start).Seconds())
	e.logger.Debug("stage completed", "stage", stage.Name,
		"session_id", state.SessionID, "duration_ms", time.Since(start).Milliseconds())
}

// runProtected converts a stage panic into an ordinary error.
func runProtected(ctx context.Context, stage Stage, state *datatypes.PipelineState) (update *datatypes.StateUpdate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage panic: %v", r)
		}
	}()
	return stage.Run(ctx, state)
}

// checkOwnership rejects updates that write fields the stage does not own.
func checkOwnership(stage Stage, update *datatypes.StateUpdate) error {
	owned := make(map[datatypes.Field]struct{}, len(stage.Owns))
	for _, f := range stage.Owns {
		owned[f] = struct{}{}
	}
	// Every stage may append to the audit fields.
	owned[datatypes.FieldConversationHistory] = struct{}{}
	owned[datatypes.FieldAgentDecisions] = struct{}{}

	for _, f := range update.Touched() {
		if _, ok := owned[f]; !ok {
			return fmt.Errorf("stage %q wrote undeclared field %q", stage.Name, f)
		}
	}
	return nil
}

// failStage records a stage failure on the state. The run then follows
// the error edge; the engine never propagates the failure as a crash.
func (e *Engine) failStage(state *datatypes.PipelineState, stageName string, err error) {
	stageFailures.WithLabelValues(stageName).Inc()
	e.logger.Error("stage failed", "stage", stageName,
		"session_id", state.SessionID, "error", err.Error())

	now := time.Now().UTC()
	state.ErrorMessage = fmt.Sprintf("%s: %v", stageName, err)
	state.NeedsHumanReview = true
	state.AgentDecisions = append(state.AgentDecisions, datatypes.AgentDecision{
		ID:        uuid.NewString(),
		Stage:     stageName,
		Outcome:   "error",
		Detail:    err.Error(),
		Timestamp: now,
	})
	state.UpdatedAt = now
}

// mirrorHistory forwards a stage's history entries to the durable context
// record. Mirroring is best-effort; the run does not fail on audit lag.
func (e *Engine) mirrorHistory(ctx context.Context, state *datatypes.PipelineState, entries []datatypes.ConversationEntry) {
	if e.contexts == nil {
		return
	}
	for _, entry := range entries {
		_, err := e.contexts.AddMessage(ctx, state.UserID, state.SessionID, entry.Actor, entry.Text, entry.Kind)
		if err != nil {
			e.logger.Warn("failed to mirror history entry",
				"session_id", state.SessionID, "error", err.Error())
			return
		}
	}
}

// mirrorLifecycle pushes the current lifecycle label to the context record.
func (e *Engine) mirrorLifecycle(ctx context.Context, state *datatypes.PipelineState) {
	if e.contexts == nil {
		return
	}
	label := string(state.CurrentStep)
	_, err := e.contexts.Update(ctx, state.UserID, state.SessionID, contextsvc.Fields{State: &label})
	if err != nil {
		e.logger.Warn("failed to mirror lifecycle state",
			"session_id", state.SessionID, "error", err.Error())
	}
}
