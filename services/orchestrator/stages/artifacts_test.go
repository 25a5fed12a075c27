// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwise-ai/pathwise/services/orchestrator/datatypes"
)

func TestBuildTutoring_WeaknessesFirst(t *testing.T) {
	deps := &Deps{}
	state := newState(map[string]any{"goals": "x"})
	state.Level = 5.2
	state.Weaknesses = []string{"gaps in foundational knowledge"}
	state.Competences = []string{"sql", "testing"}

	update, err := deps.buildTutoring(context.Background(), state)
	require.NoError(t, err)

	path := update.LearningPath
	require.NotNil(t, path)
	require.Len(t, path.Modules, 3)
	assert.Contains(t, path.Modules[0].Title, "Close the gap")
	assert.Equal(t, 1, path.Modules[0].Order)
	assert.Equal(t, "sql", path.Modules[1].Competence)
	assert.Equal(t, 3, path.Modules[2].Order)
	assert.Equal(t, 6, path.EstimatedWeeks)
	assert.Equal(t, state.Weaknesses, path.FocusAreas)
}

func TestBuildTutoring_EmptyInputsGetFundamentals(t *testing.T) {
	deps := &Deps{}
	update, err := deps.buildTutoring(context.Background(), newState(map[string]any{"goals": "x"}))
	require.NoError(t, err)

	path := update.LearningPath
	require.Len(t, path.Modules, 1)
	assert.Equal(t, "Structured fundamentals review", path.Modules[0].Title)
	assert.Equal(t, 2, path.EstimatedWeeks)
}

func TestRecommend_MergesAndDeduplicates(t *testing.T) {
	deps := &Deps{}
	state := newState(map[string]any{"goals": "x"})
	state.Recommendations = []string{"practice more open-ended answers"}
	state.Objectives = "pass the certification"
	state.LearningPath = &datatypes.LearningPath{Modules: []datatypes.PathModule{
		{Order: 1, Title: "Basics"},
		{Order: 2, Title: "Intermediate"},
		{Order: 3, Title: "Advanced"},
		{Order: 4, Title: "Expert"},
	}}

	update, err := deps.recommend(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, "practice more open-ended answers", update.Recommendations[0])
	assert.Contains(t, update.Recommendations, "Start with module 1: Basics")
	assert.Contains(t, update.Recommendations, "Start with module 3: Advanced")
	assert.NotContains(t, update.Recommendations, "Start with module 4: Expert")
	assert.Contains(t, update.Recommendations[len(update.Recommendations)-1], "pass the certification")

	// Running again over the merged list must not duplicate entries.
	state.Recommendations = update.Recommendations
	again, err := deps.recommend(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, update.Recommendations, again.Recommendations)
}

func TestPlan_ThreeModulesPerPhase(t *testing.T) {
	deps := &Deps{}
	state := newState(map[string]any{"goals": "x"})
	state.LearningPath = &datatypes.LearningPath{Modules: []datatypes.PathModule{
		{Order: 1, Title: "a"}, {Order: 2, Title: "b"}, {Order: 3, Title: "c"},
		{Order: 4, Title: "d"}, {Order: 5, Title: "e"},
	}}

	update, err := deps.plan(context.Background(), state)
	require.NoError(t, err)

	roadmap := update.Roadmap
	require.NotNil(t, roadmap)
	require.Len(t, roadmap.Phases, 2)
	assert.Equal(t, "Phase 1", roadmap.Phases[0].Name)
	assert.Len(t, roadmap.Phases[0].Goals, 3)
	assert.Equal(t, 6, roadmap.Phases[0].DurationWeeks)
	assert.Len(t, roadmap.Phases[1].Goals, 2)
	assert.Equal(t, 4, roadmap.Phases[1].DurationWeeks)
	require.Len(t, roadmap.Milestones, 2)
	assert.Contains(t, roadmap.Milestones[0], "Phase 1")
}

func TestPlan_NoPathGetsDefaultPhase(t *testing.T) {
	deps := &Deps{}
	update, err := deps.plan(context.Background(), newState(map[string]any{"goals": "x"}))
	require.NoError(t, err)

	require.Len(t, update.Roadmap.Phases, 1)
	assert.Equal(t, "Phase 1", update.Roadmap.Phases[0].Name)
	assert.Equal(t, 2, update.Roadmap.Phases[0].DurationWeeks)
}

func TestMonitorProgression_DedupesCompletedStages(t *testing.T) {
	deps := &Deps{}
	state := newState(map[string]any{"goals": "x"})
	state.Level = 4.5
	state.LevelLabel = "intermediate"
	state.AgentDecisions = []datatypes.AgentDecision{
		{Stage: "profile", Outcome: "ok"},
		{Stage: "profile", Outcome: "ok"},
		{Stage: "generateQuestions", Outcome: "ok"},
		{Stage: "evaluate", Outcome: "error"},
	}

	update, err := deps.monitorProgression(context.Background(), state)
	require.NoError(t, err)

	snapshot := update.ProgressionSnapshot
	require.NotNil(t, snapshot)
	assert.Equal(t, 4.5, snapshot.Level)
	assert.Equal(t, "intermediate", snapshot.LevelLabel)
	assert.Equal(t, []string{"profile", "generateQuestions"}, snapshot.CompletedSteps)
	assert.False(t, snapshot.CapturedAt.IsZero())
}

func TestVisualize_AveragesOpenSubScores(t *testing.T) {
	deps := &Deps{}
	state := newState(map[string]any{"goals": "x"})
	state.EvaluationResult = &datatypes.EvaluationResult{
		Level:       6.0,
		LevelLabel:  "intermediate",
		ClosedScore: 7.5,
		QuestionScores: []datatypes.QuestionScore{
			{Type: datatypes.QuestionOpen, Answered: true, Coherence: 8, Depth: 4, Precision: 6, Completeness: 5},
			{Type: datatypes.QuestionOpen, Answered: true, Coherence: 6, Depth: 2, Precision: 4, Completeness: 3},
			{Type: datatypes.QuestionOpen, Answered: false},
			{Type: datatypes.QuestionClosed, Answered: true},
		},
	}

	update, err := deps.visualize(context.Background(), state)
	require.NoError(t, err)

	payload := update.VisualizationPayload
	require.NotNil(t, payload)
	assert.Equal(t, []string{"coherence", "depth", "precision", "completeness", "closed"}, payload.Labels)
	require.Len(t, payload.Scores, 5)
	assert.InDelta(t, 7, payload.Scores[0], 0.01)
	assert.InDelta(t, 3, payload.Scores[1], 0.01)
	assert.InDelta(t, 5, payload.Scores[2], 0.01)
	assert.InDelta(t, 4, payload.Scores[3], 0.01)
	assert.InDelta(t, 7.5, payload.Scores[4], 0.01)
	assert.Contains(t, payload.Summary, "6.0")
}

func TestVisualize_NoResultYieldsZeros(t *testing.T) {
	deps := &Deps{}
	update, err := deps.visualize(context.Background(), newState(map[string]any{"goals": "x"}))
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0, 0, 0, 0}, update.VisualizationPayload.Scores)
	assert.Empty(t, update.VisualizationPayload.Summary)
}
