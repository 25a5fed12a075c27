// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pathwise-ai/pathwise/services/llm"
	"github.com/pathwise-ai/pathwise/services/orchestrator/datatypes"
	"github.com/pathwise-ai/pathwise/services/orchestrator/workflow"
)

// generateContent produces study material for the first learning-path
// module. The collaborator writes the prose when available; otherwise a
// deterministic outline is built from the path and roadmap.
func (d *Deps) generateContent(ctx context.Context, state *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
	content := fallbackContent(state)

	if d.LLM != nil {
		callCtx, cancel := context.WithTimeout(ctx, d.timeout())
		defer cancel()

		temperature := float32(0.5)
		maxTokens := 1200
		raw, err := d.LLM.Generate(callCtx, buildContentPrompt(state), llm.GenerationParams{
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		})
		if err != nil {
			d.logger().Warn("content generation fell back to outline",
				"session_id", state.SessionID, "error", err)
		} else if generated := parseContent(raw, content.Title); generated != nil {
			content = generated
		}
	}

	return &datatypes.StateUpdate{
		GeneratedContent: content,
		AppendHistory: []datatypes.ConversationEntry{
			historyEntry(workflow.NodeGenerateContent, "content",
				fmt.Sprintf("Study content ready: %q (%d sections).", content.Title, len(content.Sections))),
		},
		AppendDecisions: []datatypes.AgentDecision{
			decision(workflow.NodeGenerateContent, "ok",
				fmt.Sprintf("%d sections", len(content.Sections))),
		},
	}, nil
}

// finalize closes out the session in the audit trail. It owns no state
// fields; the engine marks completion after the run finishes.
func (d *Deps) finalize(ctx context.Context, state *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
	summary := fmt.Sprintf("Session complete. Level %.1f (%s), %d questions evaluated, %d recommendations.",
		state.Level, state.LevelLabel, len(state.Questions), len(state.Recommendations))

	return &datatypes.StateUpdate{
		AppendHistory: []datatypes.ConversationEntry{
			historyEntry(workflow.NodeFinalize, "message", summary),
		},
		AppendDecisions: []datatypes.AgentDecision{
			decision(workflow.NodeFinalize, "ok", "pipeline complete"),
		},
	}, nil
}

func buildContentPrompt(state *datatypes.PipelineState) string {
	var b strings.Builder
	b.WriteString("Write concise study content for a learner at level ")
	fmt.Fprintf(&b, "%.1f (%s).\n", state.Level, state.LevelLabel)
	if state.LearningPath != nil && len(state.LearningPath.Modules) > 0 {
		first := state.LearningPath.Modules[0]
		fmt.Fprintf(&b, "Topic: %s\n", first.Title)
		if first.Description != "" {
			fmt.Fprintf(&b, "Context: %s\n", first.Description)
		}
	}
	if len(state.Weaknesses) > 0 {
		fmt.Fprintf(&b, "Address these gaps: %s\n", strings.Join(state.Weaknesses, "; "))
	}
	b.WriteString("Respond with a JSON object: {\"title\": string, \"sections\": [{\"heading\": string, \"body\": string}]}.\n")
	b.WriteString("Two to four sections, bodies under 150 words each. Respond with JSON only.")
	return b.String()
}

// parseContent extracts the collaborator's JSON content; nil if unusable.
func parseContent(raw, fallbackTitle string) *datatypes.GeneratedContent {
	var content datatypes.GeneratedContent
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &content); err != nil {
		return nil
	}
	if len(content.Sections) == 0 {
		return nil
	}
	if content.Title == "" {
		content.Title = fallbackTitle
	}
	kept := content.Sections[:0]
	for _, section := range content.Sections {
		if strings.TrimSpace(section.Heading) == "" || strings.TrimSpace(section.Body) == "" {
			continue
		}
		kept = append(kept, section)
	}
	if len(kept) == 0 {
		return nil
	}
	content.Sections = kept
	return &content
}

// fallbackContent builds a deterministic outline from the artifacts already
// on the state.
func fallbackContent(state *datatypes.PipelineState) *datatypes.GeneratedContent {
	title := "Personal study guide"
	if state.LearningPath != nil && len(state.LearningPath.Modules) > 0 {
		title = state.LearningPath.Modules[0].Title
	}

	content := &datatypes.GeneratedContent{Title: title}

	if len(state.Strengths) > 0 {
		content.Sections = append(content.Sections, datatypes.ContentSection{
			Heading: "What you already do well",
			Body:    strings.Join(state.Strengths, ". ") + ".",
		})
	}
	if len(state.Weaknesses) > 0 {
		content.Sections = append(content.Sections, datatypes.ContentSection{
			Heading: "Where to focus",
			Body:    strings.Join(state.Weaknesses, ". ") + ".",
		})
	}
	if state.Roadmap != nil && len(state.Roadmap.Phases) > 0 {
		var lines []string
		for _, phase := range state.Roadmap.Phases {
			lines = append(lines, fmt.Sprintf("%s (%d weeks): %s",
				phase.Name, phase.DurationWeeks, strings.Join(phase.Goals, ", ")))
		}
		content.Sections = append(content.Sections, datatypes.ContentSection{
			Heading: "Your roadmap",
			Body:    strings.Join(lines, ". "),
		})
	}
	if len(content.Sections) == 0 {
		content.Sections = append(content.Sections, datatypes.ContentSection{
			Heading: "Getting started",
			Body:    "Begin with a structured review of the fundamentals, then revisit the assessment to measure progress.",
		})
	}
	return content
}
