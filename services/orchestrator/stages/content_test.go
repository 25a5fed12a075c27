// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwise-ai/pathwise/services/llm"
	"github.com/pathwise-ai/pathwise/services/orchestrator/datatypes"
)

func TestGenerateContent_FallbackOutline(t *testing.T) {
	deps := &Deps{}
	state := newState(map[string]any{"goals": "x"})
	state.Strengths = []string{"clear explanations"}
	state.Weaknesses = []string{"shallow on internals"}
	state.LearningPath = &datatypes.LearningPath{Modules: []datatypes.PathModule{
		{Order: 1, Title: "Deepen sql"},
	}}
	state.Roadmap = &datatypes.Roadmap{Phases: []datatypes.RoadmapPhase{
		{Name: "Phase 1", Goals: []string{"Deepen sql"}, DurationWeeks: 2},
	}}

	update, err := deps.generateContent(context.Background(), state)
	require.NoError(t, err)

	content := update.GeneratedContent
	require.NotNil(t, content)
	assert.Equal(t, "Deepen sql", content.Title)
	require.Len(t, content.Sections, 3)
	assert.Equal(t, "What you already do well", content.Sections[0].Heading)
	assert.Equal(t, "Where to focus", content.Sections[1].Heading)
	assert.Contains(t, content.Sections[2].Body, "Phase 1 (2 weeks)")
}

func TestGenerateContent_BareStateGetsStarterSection(t *testing.T) {
	deps := &Deps{}
	update, err := deps.generateContent(context.Background(), newState(map[string]any{"goals": "x"}))
	require.NoError(t, err)

	content := update.GeneratedContent
	assert.Equal(t, "Personal study guide", content.Title)
	require.Len(t, content.Sections, 1)
	assert.Equal(t, "Getting started", content.Sections[0].Heading)
}

func TestGenerateContent_CollaboratorProseWins(t *testing.T) {
	client := &llm.StaticClient{Responses: []string{"```json\n" +
		`{"title": "Indexing deep dive", "sections": [{"heading": "B-trees", "body": "A B-tree keeps keys sorted."}]}` +
		"\n```"}}
	deps := &Deps{LLM: client}

	update, err := deps.generateContent(context.Background(), newState(map[string]any{"goals": "x"}))
	require.NoError(t, err)

	assert.Equal(t, "Indexing deep dive", update.GeneratedContent.Title)
	require.Len(t, update.GeneratedContent.Sections, 1)
	assert.Equal(t, "B-trees", update.GeneratedContent.Sections[0].Heading)
}

func TestGenerateContent_CollaboratorErrorKeepsOutline(t *testing.T) {
	deps := &Deps{LLM: &llm.StaticClient{Err: errors.New("timeout")}}
	update, err := deps.generateContent(context.Background(), newState(map[string]any{"goals": "x"}))
	require.NoError(t, err)
	assert.Equal(t, "Getting started", update.GeneratedContent.Sections[0].Heading)
}

func TestParseContent(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *datatypes.GeneratedContent
	}{
		{
			name: "valid content",
			raw:  `{"title": "T", "sections": [{"heading": "H", "body": "B"}]}`,
			want: &datatypes.GeneratedContent{Title: "T", Sections: []datatypes.ContentSection{{Heading: "H", Body: "B"}}},
		},
		{
			name: "missing title inherits fallback",
			raw:  `{"sections": [{"heading": "H", "body": "B"}]}`,
			want: &datatypes.GeneratedContent{Title: "fallback", Sections: []datatypes.ContentSection{{Heading: "H", Body: "B"}}},
		},
		{
			name: "blank sections dropped",
			raw:  `{"title": "T", "sections": [{"heading": " ", "body": ""}, {"heading": "H", "body": "B"}]}`,
			want: &datatypes.GeneratedContent{Title: "T", Sections: []datatypes.ContentSection{{Heading: "H", Body: "B"}}},
		},
		{name: "no sections", raw: `{"title": "T", "sections": []}`, want: nil},
		{name: "all sections blank", raw: `{"title": "T", "sections": [{"heading": "", "body": ""}]}`, want: nil},
		{name: "not json", raw: "sorry, I cannot do that", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseContent(tt.raw, "fallback"))
		})
	}
}

func TestFinalize_WritesSummary(t *testing.T) {
	deps := &Deps{}
	state := newState(map[string]any{"goals": "x"})
	state.Level = 5.5
	state.LevelLabel = "intermediate"
	state.Questions = make([]datatypes.Question, 8)
	state.Recommendations = []string{"a", "b"}

	update, err := deps.finalize(context.Background(), state)
	require.NoError(t, err)

	require.Len(t, update.AppendHistory, 1)
	assert.Equal(t, "Session complete. Level 5.5 (intermediate), 8 questions evaluated, 2 recommendations.",
		update.AppendHistory[0].Text)
	assert.Equal(t,
		[]datatypes.Field{datatypes.FieldConversationHistory, datatypes.FieldAgentDecisions},
		update.Touched(), "finalize writes audit fields only")
}
