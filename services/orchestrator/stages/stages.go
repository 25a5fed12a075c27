// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package stages implements the stage functions of the learning pipeline.
//
// Each stage is a pure transformation: it reads the PipelineState and
// returns a StateUpdate touching only the fields it owns, plus append-only
// audit entries. Stages that consult the text-generation collaborator
// degrade to deterministic fallbacks when it is slow or unavailable, so a
// collaborator outage never takes the pipeline down on its own.
package stages

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pathwise-ai/pathwise/services/llm"
	"github.com/pathwise-ai/pathwise/services/orchestrator/datatypes"
	"github.com/pathwise-ai/pathwise/services/orchestrator/evaluation"
	"github.com/pathwise-ai/pathwise/services/orchestrator/workflow"
)

// DefaultLLMTimeout bounds each collaborator call made by a stage.
const DefaultLLMTimeout = 30 * time.Second

// Deps carries the collaborators stage functions draw on. LLM may be nil;
// every stage then uses its deterministic fallback.
type Deps struct {
	LLM      llm.Client
	Enricher *evaluation.Enricher
	Logger   *slog.Logger
	Timeout  time.Duration
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *Deps) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultLLMTimeout
}

// All returns the full stage set wired to deps, in pipeline order.
func All(deps *Deps) []workflow.Stage {
	return []workflow.Stage{
		{
			Name: workflow.NodeProfile,
			Run:  deps.profile,
			Owns: []datatypes.Field{
				datatypes.FieldLevel,
				datatypes.FieldLevelLabel,
				datatypes.FieldCompetences,
				datatypes.FieldObjectives,
			},
		},
		{
			Name: workflow.NodeGenerateQuestions,
			Run:  deps.generateQuestions,
			Owns: []datatypes.Field{
				datatypes.FieldQuestions,
				datatypes.FieldCurrentQuestionIndex,
			},
		},
		{
			Name: workflow.NodeEvaluate,
			Run:  deps.evaluate,
			Owns: []datatypes.Field{
				datatypes.FieldEvaluationResult,
				datatypes.FieldLevel,
				datatypes.FieldLevelLabel,
				datatypes.FieldOpenQuestionAnalysis,
				datatypes.FieldStrengths,
				datatypes.FieldWeaknesses,
				datatypes.FieldRecommendations,
			},
		},
		{
			Name: workflow.NodeBuildTutoring,
			Run:  deps.buildTutoring,
			Owns: []datatypes.Field{datatypes.FieldLearningPath},
		},
		{
			Name: workflow.NodeRecommend,
			Run:  deps.recommend,
			Owns: []datatypes.Field{datatypes.FieldRecommendations},
		},
		{
			Name: workflow.NodePlan,
			Run:  deps.plan,
			Owns: []datatypes.Field{datatypes.FieldRoadmap},
		},
		{
			Name: workflow.NodeMonitorProgression,
			Run:  deps.monitorProgression,
			Owns: []datatypes.Field{datatypes.FieldProgressionSnapshot},
		},
		{
			Name: workflow.NodeVisualize,
			Run:  deps.visualize,
			Owns: []datatypes.Field{datatypes.FieldVisualizationPayload},
		},
		{
			Name: workflow.NodeGenerateContent,
			Run:  deps.generateContent,
			Owns: []datatypes.Field{datatypes.FieldGeneratedContent},
		},
		{
			Name: workflow.NodeFinalize,
			Run:  deps.finalize,
			Owns: nil, // audit entries only
		},
	}
}

// historyEntry builds one append-only conversation entry.
func historyEntry(actor, kind, text string) datatypes.ConversationEntry {
	return datatypes.ConversationEntry{
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Kind:      kind,
		Text:      text,
	}
}

// decision builds one audit log entry for a stage outcome.
func decision(stage, outcome, detail string) datatypes.AgentDecision {
	return datatypes.AgentDecision{
		ID:        uuid.NewString(),
		Stage:     stage,
		Outcome:   outcome,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}
}
