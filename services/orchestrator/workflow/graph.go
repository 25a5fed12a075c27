// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package workflow implements the stage graph driving a learning session:
// a directed set of stage functions with conditional routing, durable
// checkpointing at the suspend point, and resume-from-checkpoint
// semantics keyed by (userID, sessionID).
package workflow

import (
	"context"

	"github.com/pathwise-ai/pathwise/services/orchestrator/datatypes"
)

// Node names. NodeSuspend and NodeEnd are pseudo-nodes: reaching them
// stops the interpreter rather than running a stage.
const (
	NodeProfile            = "profile"
	NodeGenerateQuestions  = "generateQuestions"
	NodeEvaluate           = "evaluate"
	NodeBuildTutoring      = "buildTutoring"
	NodeRecommend          = "recommend"
	NodePlan               = "plan"
	NodeMonitorProgression = "monitorProgression"
	NodeVisualize          = "visualize"
	NodeGenerateContent    = "generateContent"
	NodeFinalize           = "finalize"
	NodeSuspend            = "suspend"
	NodeEnd                = "end"
)

// StageFunc is a pure transformation unit: it reads the state and returns
// a partial update touching only its declared fields. It must not mutate
// the state it receives.
type StageFunc func(ctx context.Context, state *datatypes.PipelineState) (*datatypes.StateUpdate, error)

// Stage binds a node name to its function and its field ownership. The
// engine rejects any update that writes a field outside Owns.
type Stage struct {
	Name string
	Run  StageFunc
	Owns []datatypes.Field
}

// Predicate is a pure routing condition over the current state.
type Predicate func(state *datatypes.PipelineState) bool

// Edge is one row of the static routing table. Edges are evaluated in
// table order; the first row matching (From, When) wins.
type Edge struct {
	From string
	To   string
	When Predicate
}

func always(*datatypes.PipelineState) bool { return true }

func stageFailed(s *datatypes.PipelineState) bool { return s.ErrorMessage != "" }

func stageOK(s *datatypes.PipelineState) bool { return s.ErrorMessage == "" }

// Topology is the fixed routing table for the learning pipeline.
//
// profile and evaluate carry explicit error edges routing straight to
// termination for human review. Every other forward edge is guarded on
// stageOK, so a failure anywhere falls through to NodeEnd instead of
// running further stages against a failed state. The suspend pseudo-node
// after question generation is where the state is checkpointed to wait
// for responses.
var Topology = []Edge{
	{From: NodeProfile, To: NodeEnd, When: stageFailed},
	{From: NodeProfile, To: NodeGenerateQuestions, When: stageOK},
	{From: NodeGenerateQuestions, To: NodeSuspend, When: stageOK},
	{From: NodeEvaluate, To: NodeEnd, When: stageFailed},
	{From: NodeEvaluate, To: NodeBuildTutoring, When: stageOK},
	{From: NodeBuildTutoring, To: NodeRecommend, When: stageOK},
	{From: NodeRecommend, To: NodePlan, When: stageOK},
	{From: NodePlan, To: NodeMonitorProgression, When: stageOK},
	{From: NodeMonitorProgression, To: NodeVisualize, When: stageOK},
	{From: NodeVisualize, To: NodeGenerateContent, When: stageOK},
	{From: NodeGenerateContent, To: NodeFinalize, When: stageOK},
	{From: NodeFinalize, To: NodeEnd, When: always},
}

// nextNode resolves the successor of a node for the given state. A failed
// stage with no explicit error edge halts the run.
func nextNode(edges []Edge, from string, state *datatypes.PipelineState) string {
	for _, e := range edges {
		if e.From == from && e.When(state) {
			return e.To
		}
	}
	return NodeEnd
}
