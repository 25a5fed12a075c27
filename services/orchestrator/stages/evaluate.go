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
	"fmt"

	"github.com/pathwise-ai/pathwise/services/orchestrator/datatypes"
	"github.com/pathwise-ai/pathwise/services/orchestrator/evaluation"
	"github.com/pathwise-ai/pathwise/services/orchestrator/workflow"
)

// evaluate scores the responses deterministically, then optionally layers
// qualitative enrichment on top.
//
// The numeric path is pure: level, label and the per-question breakdown
// come from evaluation.Score alone. Enrichment failure or timeout is
// logged and discarded; the deterministic result always stands.
func (d *Deps) evaluate(ctx context.Context, state *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
	if len(state.Questions) == 0 {
		return nil, errors.New("no questions to evaluate")
	}

	result := evaluation.Score(state.Questions, state.Responses)
	summary := evaluation.Summarize(result)

	enriched := "skipped"
	if d.Enricher != nil && result.OpenAnswered > 0 {
		advisory, err := d.Enricher.Enrich(ctx, state.Questions, state.Responses, result)
		if err != nil {
			d.logger().Warn("evaluation enrichment discarded", "error", err.Error())
			enriched = "failed"
		} else if advisory != nil {
			summary = evaluation.ApplyAdvisory(summary, advisory)
			enriched = "applied"
		}
	}

	// Level and label come from the deterministic result, never the
	// advisory: Advisory has no numeric fields to merge from.
	level := result.Level
	label := result.LevelLabel
	update := &datatypes.StateUpdate{
		EvaluationResult:     result,
		Level:                &level,
		LevelLabel:           &label,
		OpenQuestionAnalysis: &summary.Analysis,
		Strengths:            summary.Strengths,
		Weaknesses:           summary.Weaknesses,
		Recommendations:      summary.Recommendations,
		AppendHistory: []datatypes.ConversationEntry{
			historyEntry(workflow.NodeEvaluate, "analysis",
				fmt.Sprintf("Evaluation complete: level %.1f (%s), open %.1f/10, closed %.1f/10.",
					result.Level, result.LevelLabel, result.OpenAverage, result.ClosedScore)),
		},
		AppendDecisions: []datatypes.AgentDecision{
			decision(workflow.NodeEvaluate, "ok", "deterministic scoring done, enrichment "+enriched),
		},
	}
	return update, nil
}
