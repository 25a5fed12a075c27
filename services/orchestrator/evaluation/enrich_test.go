// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package evaluation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwise-ai/pathwise/services/llm"
	"github.com/pathwise-ai/pathwise/services/orchestrator/datatypes"
)

func answeredResult() (*datatypes.EvaluationResult, []datatypes.Question, []datatypes.Response) {
	questions := []datatypes.Question{
		{Number: 1, Type: datatypes.QuestionOpen, Prompt: "Explain recursion"},
	}
	responses := []datatypes.Response{
		{QuestionNumber: 1, Text: "A function calls itself until a base case stops it."},
	}
	return Score(questions, responses), questions, responses
}

// TestEnrich_ParsesFencedAdvisory verifies that markdown-fenced collaborator
// output still yields an advisory.
func TestEnrich_ParsesFencedAdvisory(t *testing.T) {
	result, questions, responses := answeredResult()

	client := &llm.StaticClient{Responses: []string{
		"```json\n{\"open_question_analysis\": \"clear grasp of base cases\", \"strengths\": [\"concise\"], \"weaknesses\": [], \"recommendations\": [\"try tree recursion\"]}\n```",
	}}
	enricher := NewEnricher(client, time.Second, nil)

	advisory, err := enricher.Enrich(context.Background(), questions, responses, result)
	require.NoError(t, err)
	require.NotNil(t, advisory)
	assert.Equal(t, "clear grasp of base cases", advisory.OpenQuestionAnalysis)
	assert.Equal(t, []string{"concise"}, advisory.Strengths)
}

// TestEnrich_SkipsWithoutOpenAnswers verifies enrichment is a no-op when no
// open question was answered.
func TestEnrich_SkipsWithoutOpenAnswers(t *testing.T) {
	questions := []datatypes.Question{
		{Number: 1, Type: datatypes.QuestionOpen, Prompt: "Explain recursion"},
	}
	result := Score(questions, nil)

	client := &llm.StaticClient{Responses: []string{"{}"}}
	enricher := NewEnricher(client, time.Second, nil)

	advisory, err := enricher.Enrich(context.Background(), questions, nil, result)
	require.NoError(t, err)
	assert.Nil(t, advisory)
	assert.Zero(t, client.Calls())
}

// TestEnrich_GenerationErrorSurfaces verifies collaborator failures are
// returned, not swallowed, so callers can discard them explicitly.
func TestEnrich_GenerationErrorSurfaces(t *testing.T) {
	result, questions, responses := answeredResult()

	client := &llm.StaticClient{Err: errors.New("backend down")}
	enricher := NewEnricher(client, time.Second, nil)

	advisory, err := enricher.Enrich(context.Background(), questions, responses, result)
	require.Error(t, err)
	assert.Nil(t, advisory)
}

// TestApplyAdvisory_CannotChangeLevel verifies the one-way merge: the
// deterministic result is identical before and after enrichment.
func TestApplyAdvisory_CannotChangeLevel(t *testing.T) {
	result, _, _ := answeredResult()
	levelBefore := result.Level
	labelBefore := result.LevelLabel

	base := Summarize(result)
	merged := ApplyAdvisory(base, &datatypes.Advisory{
		OpenQuestionAnalysis: "replacement analysis",
		Strengths:            []string{"new strength"},
	})

	assert.Equal(t, levelBefore, result.Level)
	assert.Equal(t, labelBefore, result.LevelLabel)
	assert.Equal(t, "replacement analysis", merged.Analysis)
	assert.Contains(t, merged.Strengths, "new strength")
}

// TestApplyAdvisory_NilLeavesBaseline verifies a discarded advisory leaves
// the deterministic summary untouched.
func TestApplyAdvisory_NilLeavesBaseline(t *testing.T) {
	result, _, _ := answeredResult()
	base := Summarize(result)

	merged := ApplyAdvisory(base, nil)
	assert.Equal(t, base, merged)
}

// TestApplyAdvisory_DeduplicatesCaseFolded verifies list merging skips
// items already present under trim/case-fold comparison.
func TestApplyAdvisory_DeduplicatesCaseFolded(t *testing.T) {
	base := Summary{
		Strengths:       []string{"Solid recall of factual material"},
		Recommendations: []string{"review the fundamentals"},
	}
	merged := ApplyAdvisory(base, &datatypes.Advisory{
		Strengths:       []string{"  solid recall of factual material  ", "good vocabulary"},
		Recommendations: []string{"Review the Fundamentals", ""},
	})

	assert.Equal(t, []string{"Solid recall of factual material", "good vocabulary"}, merged.Strengths)
	assert.Equal(t, []string{"review the fundamentals"}, merged.Recommendations)
}

// TestSummarize_CoversEdges pins the deterministic baseline text for the
// no-open-answers case.
func TestSummarize_CoversEdges(t *testing.T) {
	questions := []datatypes.Question{
		{Number: 1, Type: datatypes.QuestionOpen, Prompt: "Explain recursion"},
		{Number: 2, Type: datatypes.QuestionClosed, CorrectAnswer: "A"},
	}
	responses := []datatypes.Response{{QuestionNumber: 2, SelectedOption: "B"}}

	s := Summarize(Score(questions, responses))
	assert.Contains(t, s.Weaknesses, "no open-ended answers provided")
	assert.Contains(t, s.Weaknesses, "gaps in foundational knowledge")
	assert.NotEmpty(t, s.Analysis)
}
