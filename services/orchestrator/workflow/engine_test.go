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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwise-ai/pathwise/services/orchestrator/contextsvc"
	"github.com/pathwise-ai/pathwise/services/orchestrator/datatypes"
	"github.com/pathwise-ai/pathwise/services/orchestrator/storage/badgerstore"
)

// stubStages returns a minimal stage implementation for every node of the
// production topology, counting invocations per stage.
func stubStages(calls map[string]int) []Stage {
	count := func(name string) { calls[name]++ }
	level := 3.0
	label := "elementary"
	index := 0

	return []Stage{
		{
			Name: NodeProfile,
			Owns: []datatypes.Field{datatypes.FieldLevel, datatypes.FieldLevelLabel, datatypes.FieldCompetences, datatypes.FieldObjectives},
			Run: func(ctx context.Context, s *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
				count(NodeProfile)
				return &datatypes.StateUpdate{Level: &level, LevelLabel: &label}, nil
			},
		},
		{
			Name: NodeGenerateQuestions,
			Owns: []datatypes.Field{datatypes.FieldQuestions, datatypes.FieldCurrentQuestionIndex},
			Run: func(ctx context.Context, s *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
				count(NodeGenerateQuestions)
				return &datatypes.StateUpdate{
					Questions: []datatypes.Question{
						{Number: 1, Type: datatypes.QuestionOpen, Prompt: "Explain maps"},
						{Number: 2, Type: datatypes.QuestionClosed, Prompt: "Pick", CorrectAnswer: "A"},
					},
					CurrentQuestionIndex: &index,
					AppendHistory: []datatypes.ConversationEntry{
						{Actor: NodeGenerateQuestions, Kind: "question", Text: "Explain maps"},
					},
				}, nil
			},
		},
		{
			Name: NodeEvaluate,
			Owns: []datatypes.Field{datatypes.FieldEvaluationResult, datatypes.FieldLevel, datatypes.FieldLevelLabel},
			Run: func(ctx context.Context, s *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
				count(NodeEvaluate)
				return &datatypes.StateUpdate{
					EvaluationResult: &datatypes.EvaluationResult{Level: level, LevelLabel: label},
				}, nil
			},
		},
		{
			Name: NodeBuildTutoring,
			Owns: []datatypes.Field{datatypes.FieldLearningPath},
			Run: func(ctx context.Context, s *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
				count(NodeBuildTutoring)
				return &datatypes.StateUpdate{
					LearningPath: &datatypes.LearningPath{
						Modules: []datatypes.PathModule{{Order: 1, Title: "Basics"}},
					},
				}, nil
			},
		},
		{
			Name: NodeRecommend,
			Owns: []datatypes.Field{datatypes.FieldRecommendations},
			Run: func(ctx context.Context, s *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
				count(NodeRecommend)
				return &datatypes.StateUpdate{Recommendations: []string{"start with basics"}}, nil
			},
		},
		{
			Name: NodePlan,
			Owns: []datatypes.Field{datatypes.FieldRoadmap},
			Run: func(ctx context.Context, s *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
				count(NodePlan)
				return &datatypes.StateUpdate{Roadmap: &datatypes.Roadmap{}}, nil
			},
		},
		{
			Name: NodeMonitorProgression,
			Owns: []datatypes.Field{datatypes.FieldProgressionSnapshot},
			Run: func(ctx context.Context, s *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
				count(NodeMonitorProgression)
				return &datatypes.StateUpdate{ProgressionSnapshot: &datatypes.ProgressionSnapshot{Level: s.Level}}, nil
			},
		},
		{
			Name: NodeVisualize,
			Owns: []datatypes.Field{datatypes.FieldVisualizationPayload},
			Run: func(ctx context.Context, s *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
				count(NodeVisualize)
				return &datatypes.StateUpdate{VisualizationPayload: &datatypes.VisualizationPayload{}}, nil
			},
		},
		{
			Name: NodeGenerateContent,
			Owns: []datatypes.Field{datatypes.FieldGeneratedContent},
			Run: func(ctx context.Context, s *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
				count(NodeGenerateContent)
				return &datatypes.StateUpdate{GeneratedContent: &datatypes.GeneratedContent{Title: "Guide"}}, nil
			},
		},
		{
			Name: NodeFinalize,
			Run: func(ctx context.Context, s *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
				count(NodeFinalize)
				return nil, nil
			},
		},
	}
}

func newTestEngine(t *testing.T, stages []Stage) *Engine {
	t.Helper()
	db, err := badgerstore.Open(badgerstore.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	engine, err := NewEngine(stages, Topology, NewCheckpointStore(db), nil, nil)
	require.NoError(t, err)
	return engine
}

func TestNewEngine_Validation(t *testing.T) {
	calls := map[string]int{}
	stages := stubStages(calls)

	db, err := badgerstore.Open(badgerstore.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	checkpoints := NewCheckpointStore(db)

	_, err = NewEngine(stages, Topology, nil, nil, nil)
	assert.Error(t, err, "missing checkpoint store must be rejected")

	_, err = NewEngine(stages, []Edge{{From: "nowhere", To: NodeEnd, When: always}}, checkpoints, nil, nil)
	assert.Error(t, err, "edge from unknown node must be rejected")

	dup := append(stages, stages[0])
	_, err = NewEngine(dup, Topology, checkpoints, nil, nil)
	assert.Error(t, err, "duplicate stage must be rejected")
}

// TestStart_SuspendsWithQuestions verifies the first segment runs profile
// and question generation, then checkpoints at the suspend point with a
// non-empty question list.
func TestStart_SuspendsWithQuestions(t *testing.T) {
	calls := map[string]int{}
	engine := newTestEngine(t, stubStages(calls))
	ctx := context.Background()

	state, err := engine.Start(ctx, "user-1", "s1", map[string]any{"goal": "learn go"})
	require.NoError(t, err)

	assert.Equal(t, datatypes.StepQuestionsGenerated, state.CurrentStep)
	assert.NotEmpty(t, state.Questions)
	assert.False(t, state.IsComplete)
	assert.Equal(t, 1, calls[NodeProfile])
	assert.Equal(t, 1, calls[NodeGenerateQuestions])
	assert.Zero(t, calls[NodeEvaluate], "second segment must not run before resume")

	// The suspended state is durably loadable by session pair alone.
	loaded, err := engine.GetState(ctx, "user-1", "s1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.StepQuestionsGenerated, loaded.CurrentStep)
	assert.Len(t, loaded.Questions, len(state.Questions))
}

// TestStart_Idempotent verifies starting an already-started session
// returns the checkpoint without re-running any stage.
func TestStart_Idempotent(t *testing.T) {
	calls := map[string]int{}
	engine := newTestEngine(t, stubStages(calls))
	ctx := context.Background()

	first, err := engine.Start(ctx, "user-1", "s1", nil)
	require.NoError(t, err)
	second, err := engine.Start(ctx, "user-1", "s1", nil)
	require.NoError(t, err)

	assert.Equal(t, first.CurrentStep, second.CurrentStep)
	assert.Equal(t, 1, calls[NodeProfile], "profile must run exactly once")
	assert.Equal(t, 1, calls[NodeGenerateQuestions])
}

// TestResume_RunsToCompletion verifies the second segment merges the
// responses, runs every remaining stage, and completes the pipeline.
func TestResume_RunsToCompletion(t *testing.T) {
	calls := map[string]int{}
	engine := newTestEngine(t, stubStages(calls))
	ctx := context.Background()

	started, err := engine.Start(ctx, "user-1", "s1", nil)
	require.NoError(t, err)

	responses := []datatypes.Response{
		{QuestionNumber: 1, Text: "maps associate keys with values"},
		{QuestionNumber: 2, SelectedOption: "A"},
	}
	state, err := engine.Resume(ctx, "user-1", "s1", responses)
	require.NoError(t, err)

	assert.True(t, state.IsComplete)
	assert.Equal(t, datatypes.StepCompleted, state.CurrentStep)
	assert.Equal(t, responses, state.Responses)
	assert.Equal(t, len(started.Questions), state.CurrentQuestionIndex)
	assert.NotNil(t, state.LearningPath)
	assert.NotNil(t, state.Roadmap)
	assert.NotNil(t, state.GeneratedContent)
	for _, node := range []string{NodeEvaluate, NodeBuildTutoring, NodeRecommend, NodePlan,
		NodeMonitorProgression, NodeVisualize, NodeGenerateContent, NodeFinalize} {
		assert.Equal(t, 1, calls[node], "stage %s", node)
	}
}

// TestResume_NeverStarted verifies resuming an unknown session reports
// ErrCheckpointNotFound.
func TestResume_NeverStarted(t *testing.T) {
	engine := newTestEngine(t, stubStages(map[string]int{}))
	_, err := engine.Resume(context.Background(), "user-1", "ghost", nil)
	assert.ErrorIs(t, err, ErrCheckpointNotFound)
}

// TestResume_CompletedSessionUnchanged verifies a second resume returns
// the completed state without re-running stages.
func TestResume_CompletedSessionUnchanged(t *testing.T) {
	calls := map[string]int{}
	engine := newTestEngine(t, stubStages(calls))
	ctx := context.Background()

	_, err := engine.Start(ctx, "user-1", "s1", nil)
	require.NoError(t, err)
	_, err = engine.Resume(ctx, "user-1", "s1", []datatypes.Response{{QuestionNumber: 1, Text: "x"}})
	require.NoError(t, err)

	again, err := engine.Resume(ctx, "user-1", "s1", []datatypes.Response{{QuestionNumber: 1, Text: "different"}})
	require.NoError(t, err)
	assert.True(t, again.IsComplete)
	assert.Equal(t, "x", again.Responses[0].Text, "completed state must not absorb new responses")
	assert.Equal(t, 1, calls[NodeEvaluate])
}

// TestStart_StageErrorFollowsErrorEdge verifies a failing profile stage
// halts the run with errorMessage and needsHumanReview set, and the
// failure is checkpointed.
func TestStart_StageErrorFollowsErrorEdge(t *testing.T) {
	calls := map[string]int{}
	stages := stubStages(calls)
	stages[0].Run = func(ctx context.Context, s *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
		return nil, errors.New("profile extraction failed")
	}
	engine := newTestEngine(t, stages)

	state, err := engine.Start(context.Background(), "user-1", "s1", nil)
	require.NoError(t, err, "stage failure is state, not an engine error")

	assert.Equal(t, datatypes.StepError, state.CurrentStep)
	assert.True(t, state.NeedsHumanReview)
	assert.Contains(t, state.ErrorMessage, "profile:")
	assert.Zero(t, calls[NodeGenerateQuestions], "error edge must skip question generation")

	require.NotEmpty(t, state.AgentDecisions)
	last := state.AgentDecisions[len(state.AgentDecisions)-1]
	assert.Equal(t, "error", last.Outcome)
	assert.NotEmpty(t, last.ID)

	loaded, err := engine.GetState(context.Background(), "user-1", "s1")
	require.NoError(t, err)
	assert.Equal(t, datatypes.StepError, loaded.CurrentStep)
}

// TestStart_StagePanicIsContained verifies a panicking stage becomes an
// error state rather than a crash.
func TestStart_StagePanicIsContained(t *testing.T) {
	calls := map[string]int{}
	stages := stubStages(calls)
	stages[1].Run = func(ctx context.Context, s *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
		panic("nil question bank")
	}
	engine := newTestEngine(t, stages)

	state, err := engine.Start(context.Background(), "user-1", "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StepError, state.CurrentStep)
	assert.Contains(t, state.ErrorMessage, "stage panic")
	assert.True(t, state.NeedsHumanReview)
}

// TestResume_MidPipelineFailureHaltsRun verifies a failure after evaluate
// stops the run at the failed stage instead of driving the remaining
// stages over a failed state.
func TestResume_MidPipelineFailureHaltsRun(t *testing.T) {
	calls := map[string]int{}
	stages := stubStages(calls)
	stages[5].Run = func(ctx context.Context, s *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
		panic("roadmap construction failed")
	}
	engine := newTestEngine(t, stages)
	ctx := context.Background()

	_, err := engine.Start(ctx, "user-1", "s1", nil)
	require.NoError(t, err)
	state, err := engine.Resume(ctx, "user-1", "s1", []datatypes.Response{
		{QuestionNumber: 1, Text: "maps hash keys to values"},
	})
	require.NoError(t, err)

	assert.Equal(t, datatypes.StepError, state.CurrentStep)
	assert.True(t, state.NeedsHumanReview)
	assert.False(t, state.IsComplete)
	assert.Contains(t, state.ErrorMessage, "plan:")

	assert.Equal(t, 1, calls[NodeEvaluate])
	assert.Equal(t, 1, calls[NodeBuildTutoring])
	assert.Zero(t, calls[NodeMonitorProgression], "stages after the failure must not run")
	assert.Zero(t, calls[NodeVisualize])
	assert.Zero(t, calls[NodeGenerateContent])
	assert.Zero(t, calls[NodeFinalize])
}

// TestExecStage_OwnershipViolationRejected verifies an update touching an
// undeclared field fails the stage instead of merging.
func TestExecStage_OwnershipViolationRejected(t *testing.T) {
	calls := map[string]int{}
	stages := stubStages(calls)
	rogue := 9.9
	stages[1].Run = func(ctx context.Context, s *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
		// generateQuestions does not own the level field.
		return &datatypes.StateUpdate{Level: &rogue}, nil
	}
	engine := newTestEngine(t, stages)

	state, err := engine.Start(context.Background(), "user-1", "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, datatypes.StepError, state.CurrentStep)
	assert.Contains(t, state.ErrorMessage, "undeclared field")
	assert.NotEqual(t, rogue, state.Level, "rejected update must not merge")
}

// TestEngine_MirrorsAuditTrail verifies history entries and lifecycle
// labels flow into the context service during a run.
func TestEngine_MirrorsAuditTrail(t *testing.T) {
	db, err := badgerstore.Open(badgerstore.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	contexts := contextsvc.NewContextService(contextsvc.NewStore(db), nil, nil)
	engine, err := NewEngine(stubStages(map[string]int{}), Topology, NewCheckpointStore(db), contexts, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = engine.Start(ctx, "user-1", "s1", map[string]any{"goal": "learn go"})
	require.NoError(t, err)

	record, err := contexts.Get(ctx, "user-1", "s1")
	require.NoError(t, err)
	assert.Equal(t, string(datatypes.StepQuestionsGenerated), record.State)
	require.NotEmpty(t, record.History)
	assert.Equal(t, "Explain maps", record.History[0].Text)
	assert.Equal(t, 1, record.InteractionCount)
}
