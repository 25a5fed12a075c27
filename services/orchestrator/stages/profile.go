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
	"errors"
	"fmt"
	"strings"

	"github.com/pathwise-ai/pathwise/services/llm"
	"github.com/pathwise-ai/pathwise/services/orchestrator/datatypes"
	"github.com/pathwise-ai/pathwise/services/orchestrator/evaluation"
	"github.com/pathwise-ai/pathwise/services/orchestrator/workflow"
)

// profileAnalysis is the JSON shape requested from the collaborator.
type profileAnalysis struct {
	Level       float64  `json:"level"`
	Competences []string `json:"competences"`
	Objectives  string   `json:"objectives"`
}

// profile analyzes the learner's declared profile into an initial level
// estimate, competence set and objectives.
//
// The collaborator refines the estimate when available; otherwise a
// deterministic heuristic over the profile map stands in. An empty profile
// is a stage failure: there is nothing to assess, so the run routes to
// human review via the profile error edge.
func (d *Deps) profile(ctx context.Context, state *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
	if len(state.UserProfile) == 0 {
		return nil, errors.New("user profile is empty")
	}

	analysis := heuristicProfile(state.UserProfile)
	source := "heuristic"

	if d.LLM != nil {
		if refined, err := d.askProfile(ctx, state.UserProfile); err == nil {
			analysis = mergeProfile(analysis, refined)
			source = "collaborator"
		} else {
			d.logger().Warn("profile analysis fell back to heuristic", "error", err.Error())
		}
	}

	level := clampLevel(analysis.Level)
	label := evaluation.LevelLabel(level)
	update := &datatypes.StateUpdate{
		Level:       &level,
		LevelLabel:  &label,
		Competences: analysis.Competences,
		Objectives:  &analysis.Objectives,
		AppendHistory: []datatypes.ConversationEntry{
			historyEntry(workflow.NodeProfile, "analysis",
				fmt.Sprintf("Initial level estimate %.1f (%s), %d competences identified.",
					level, label, len(analysis.Competences))),
		},
		AppendDecisions: []datatypes.AgentDecision{
			decision(workflow.NodeProfile, "ok", "profile analyzed via "+source),
		},
	}
	return update, nil
}

func (d *Deps) askProfile(ctx context.Context, profile map[string]any) (profileAnalysis, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout())
	defer cancel()

	encoded, err := json.Marshal(profile)
	if err != nil {
		return profileAnalysis{}, fmt.Errorf("encode profile: %w", err)
	}

	prompt := fmt.Sprintf(
		"Analyze this learner profile and respond with a single JSON object "+
			`{"level": <1-10>, "competences": ["..."], "objectives": "..."} and nothing else.`+
			"\n\nProfile:\n%s", encoded)

	raw, err := d.LLM.Generate(ctx, prompt, llm.GenerationParams{})
	if err != nil {
		return profileAnalysis{}, err
	}
	var analysis profileAnalysis
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &analysis); err != nil {
		return profileAnalysis{}, fmt.Errorf("parse profile analysis: %w", err)
	}
	return analysis, nil
}

// heuristicProfile derives a deterministic baseline from the profile map.
func heuristicProfile(profile map[string]any) profileAnalysis {
	analysis := profileAnalysis{Level: 3}

	if years, ok := asFloat(profile["experience_years"]); ok {
		switch {
		case years >= 8:
			analysis.Level = 8
		case years >= 4:
			analysis.Level = 6
		case years >= 1:
			analysis.Level = 4
		default:
			analysis.Level = 2
		}
	}
	if declared, ok := asFloat(profile["self_assessment"]); ok {
		// Average declared ability into the experience estimate.
		analysis.Level = (analysis.Level + clampLevel(declared)) / 2
	}
	for _, key := range []string{"competences", "interests", "skills"} {
		analysis.Competences = append(analysis.Competences, asStrings(profile[key])...)
	}
	if goals, ok := profile["goals"].(string); ok {
		analysis.Objectives = goals
	}
	return analysis
}

// mergeProfile prefers the collaborator's view but keeps heuristic values
// for anything it omitted.
func mergeProfile(base, refined profileAnalysis) profileAnalysis {
	out := base
	if refined.Level > 0 {
		out.Level = refined.Level
	}
	if len(refined.Competences) > 0 {
		out.Competences = refined.Competences
	}
	if strings.TrimSpace(refined.Objectives) != "" {
		out.Objectives = refined.Objectives
	}
	return out
}

func clampLevel(v float64) float64 {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func asStrings(v any) []string {
	switch items := v.(type) {
	case []string:
		return items
	case []any:
		var out []string
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if strings.TrimSpace(items) == "" {
			return nil
		}
		parts := strings.Split(items, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	default:
		return nil
	}
}
