// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/pathwise-ai/pathwise/services/orchestrator/datatypes"
	"github.com/pathwise-ai/pathwise/services/orchestrator/workflow"
)

// buildTutoring constructs the learning path from the evaluation outcome:
// one module per identified weakness, then one per declared competence,
// ordered weakest-first.
func (d *Deps) buildTutoring(ctx context.Context, state *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
	path := &datatypes.LearningPath{FocusAreas: state.Weaknesses}

	order := 1
	for _, weakness := range state.Weaknesses {
		path.Modules = append(path.Modules, datatypes.PathModule{
			Order:       order,
			Title:       fmt.Sprintf("Close the gap: %s", weakness),
			Description: fmt.Sprintf("Targeted practice addressing: %s", weakness),
		})
		order++
	}
	for _, competence := range state.Competences {
		path.Modules = append(path.Modules, datatypes.PathModule{
			Order:       order,
			Title:       fmt.Sprintf("Deepen %s", competence),
			Description: fmt.Sprintf("Level-appropriate material for %s at level %.1f.", competence, state.Level),
			Competence:  competence,
		})
		order++
	}
	if len(path.Modules) == 0 {
		path.Modules = append(path.Modules, datatypes.PathModule{
			Order: 1,
			Title: "Structured fundamentals review",
		})
	}
	// Two weeks per module is the planning default.
	path.EstimatedWeeks = len(path.Modules) * 2

	return &datatypes.StateUpdate{
		LearningPath: path,
		AppendHistory: []datatypes.ConversationEntry{
			historyEntry(workflow.NodeBuildTutoring, "analysis",
				fmt.Sprintf("Learning path built: %d modules over ~%d weeks.", len(path.Modules), path.EstimatedWeeks)),
		},
		AppendDecisions: []datatypes.AgentDecision{
			decision(workflow.NodeBuildTutoring, "ok", fmt.Sprintf("%d modules", len(path.Modules))),
		},
	}, nil
}

// recommend consolidates the recommendation list: the evaluation's
// recommendations first, then path-derived ones, deduplicated.
func (d *Deps) recommend(ctx context.Context, state *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
	recs := append([]string{}, state.Recommendations...)
	if state.LearningPath != nil {
		for _, module := range state.LearningPath.Modules {
			if module.Order > 3 {
				break // recommend only the immediate next steps
			}
			recs = appendUnique(recs, fmt.Sprintf("Start with module %d: %s", module.Order, module.Title))
		}
	}
	if state.Objectives != "" {
		recs = appendUnique(recs, fmt.Sprintf("Keep sessions aligned with your stated objective: %s", state.Objectives))
	}

	return &datatypes.StateUpdate{
		Recommendations: recs,
		AppendDecisions: []datatypes.AgentDecision{
			decision(workflow.NodeRecommend, "ok", fmt.Sprintf("%d recommendations", len(recs))),
		},
	}, nil
}

// plan folds the learning path into a phased roadmap, three modules per
// phase.
func (d *Deps) plan(ctx context.Context, state *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
	roadmap := &datatypes.Roadmap{}

	if state.LearningPath != nil {
		modules := state.LearningPath.Modules
		for start := 0; start < len(modules); start += 3 {
			end := start + 3
			if end > len(modules) {
				end = len(modules)
			}
			phase := datatypes.RoadmapPhase{
				Name:          fmt.Sprintf("Phase %d", len(roadmap.Phases)+1),
				DurationWeeks: (end - start) * 2,
			}
			for _, module := range modules[start:end] {
				phase.Goals = append(phase.Goals, module.Title)
			}
			roadmap.Phases = append(roadmap.Phases, phase)
			roadmap.Milestones = append(roadmap.Milestones,
				fmt.Sprintf("Complete %s (%d goals)", phase.Name, len(phase.Goals)))
		}
	}
	if len(roadmap.Phases) == 0 {
		roadmap.Phases = append(roadmap.Phases, datatypes.RoadmapPhase{
			Name:          "Phase 1",
			Goals:         []string{"Structured fundamentals review"},
			DurationWeeks: 2,
		})
	}

	return &datatypes.StateUpdate{
		Roadmap: roadmap,
		AppendDecisions: []datatypes.AgentDecision{
			decision(workflow.NodePlan, "ok", fmt.Sprintf("%d phases", len(roadmap.Phases))),
		},
	}, nil
}

// monitorProgression captures the learner's standing and the stages that
// have run, for longitudinal tracking.
func (d *Deps) monitorProgression(ctx context.Context, state *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
	snapshot := &datatypes.ProgressionSnapshot{
		Level:      state.Level,
		LevelLabel: state.LevelLabel,
		CapturedAt: time.Now().UTC(),
	}
	seen := make(map[string]struct{})
	for _, dec := range state.AgentDecisions {
		if dec.Outcome != "ok" {
			continue
		}
		if _, ok := seen[dec.Stage]; ok {
			continue
		}
		seen[dec.Stage] = struct{}{}
		snapshot.CompletedSteps = append(snapshot.CompletedSteps, dec.Stage)
	}

	return &datatypes.StateUpdate{
		ProgressionSnapshot: snapshot,
		AppendDecisions: []datatypes.AgentDecision{
			decision(workflow.NodeMonitorProgression, "ok",
				fmt.Sprintf("%d steps completed", len(snapshot.CompletedSteps))),
		},
	}, nil
}

// visualize builds the chart-ready summary of the evaluation breakdown.
func (d *Deps) visualize(ctx context.Context, state *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
	payload := &datatypes.VisualizationPayload{
		Labels: []string{"coherence", "depth", "precision", "completeness", "closed"},
	}

	if result := state.EvaluationResult; result != nil {
		var coherence, depth, precision, completeness float64
		answered := 0
		for _, qs := range result.QuestionScores {
			if qs.Type != datatypes.QuestionOpen || !qs.Answered {
				continue
			}
			coherence += qs.Coherence
			depth += qs.Depth
			precision += qs.Precision
			completeness += qs.Completeness
			answered++
		}
		if answered > 0 {
			n := float64(answered)
			payload.Scores = []float64{coherence / n, depth / n, precision / n, completeness / n, result.ClosedScore}
		} else {
			payload.Scores = []float64{0, 0, 0, 0, result.ClosedScore}
		}
		payload.Summary = fmt.Sprintf("Level %.1f (%s)", result.Level, result.LevelLabel)
	} else {
		payload.Scores = []float64{0, 0, 0, 0, 0}
	}

	return &datatypes.StateUpdate{
		VisualizationPayload: payload,
		AppendDecisions: []datatypes.AgentDecision{
			decision(workflow.NodeVisualize, "ok", "visualization payload built"),
		},
	}, nil
}

func appendUnique(items []string, candidate string) []string {
	for _, item := range items {
		if item == candidate {
			return items
		}
	}
	return append(items, candidate)
}
