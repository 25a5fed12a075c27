// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pathwise-ai/pathwise/services/llm"
	"github.com/pathwise-ai/pathwise/services/orchestrator/datatypes"
)

// DefaultEnrichTimeout bounds the collaborator call during enrichment.
// On expiry the deterministic result stands alone.
const DefaultEnrichTimeout = 20 * time.Second

// Summary is the qualitative side of an evaluation: the authoritative
// deterministic baseline, optionally enriched by advisory text.
type Summary struct {
	Analysis        string
	Strengths       []string
	Weaknesses      []string
	Recommendations []string
}

// Enricher requests qualitative strengths/weaknesses/recommendation text
// from the text-generation collaborator. It never touches the numeric
// evaluation: its output is an Advisory, a type that cannot carry a level.
type Enricher struct {
	client  llm.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewEnricher builds an enricher. client may be nil, in which case Enrich
// always reports the collaborator as unavailable.
func NewEnricher(client llm.Client, timeout time.Duration, logger *slog.Logger) *Enricher {
	if timeout <= 0 {
		timeout = DefaultEnrichTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{client: client, timeout: timeout, logger: logger}
}

// Enrich asks the collaborator for qualitative feedback on the open
// answers. It is only meaningful when at least one open question was
// answered; callers skip it otherwise. Failures are returned for the
// caller to discard; enrichment is never fatal.
func (e *Enricher) Enrich(ctx context.Context, questions []datatypes.Question, responses []datatypes.Response, result *datatypes.EvaluationResult) (*datatypes.Advisory, error) {
	if e.client == nil {
		return nil, fmt.Errorf("no text-generation client configured")
	}
	if result.OpenAnswered == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	prompt := buildEnrichPrompt(questions, responses, result)
	raw, err := e.client.Generate(ctx, prompt, llm.GenerationParams{})
	if err != nil {
		return nil, fmt.Errorf("enrichment generation: %w", err)
	}

	var advisory datatypes.Advisory
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &advisory); err != nil {
		return nil, fmt.Errorf("parse enrichment output: %w", err)
	}
	e.logger.Debug("enrichment advisory received",
		"strengths", len(advisory.Strengths),
		"weaknesses", len(advisory.Weaknesses),
		"recommendations", len(advisory.Recommendations),
	)
	return &advisory, nil
}

// buildEnrichPrompt sends the deterministic scores and the raw open
// answers, and requests qualitative text only. The numeric level is stated
// as fixed so the model does not try to re-grade.
func buildEnrichPrompt(questions []datatypes.Question, responses []datatypes.Response, result *datatypes.EvaluationResult) string {
	var b strings.Builder
	b.WriteString("A learner completed an assessment. The numeric level has already been ")
	b.WriteString(fmt.Sprintf("computed and is fixed at %.1f/10 (%s); do not restate or revise it.\n\n", result.Level, result.LevelLabel))
	b.WriteString("Open-ended answers and their deterministic scores:\n")

	byNumber := make(map[int]datatypes.Response, len(responses))
	for _, r := range responses {
		byNumber[r.QuestionNumber] = r
	}
	for _, qs := range result.QuestionScores {
		if qs.Type != datatypes.QuestionOpen || !qs.Answered {
			continue
		}
		for _, q := range questions {
			if q.Number == qs.QuestionNumber {
				b.WriteString(fmt.Sprintf("\nQ%d: %s\nScore: %.1f/10\nAnswer: %s\n",
					q.Number, q.Prompt, qs.Score, byNumber[q.Number].Text))
				break
			}
		}
	}

	b.WriteString("\nRespond with a single JSON object and nothing else:\n")
	b.WriteString(`{"open_question_analysis": "...", "strengths": ["..."], "weaknesses": ["..."], "recommendations": ["..."]}`)
	b.WriteString("\nKeep each list to at most four short items.")
	return b.String()
}

// Summarize derives a deterministic qualitative baseline from the score
// breakdown, so the pipeline has strengths/weaknesses/recommendations even
// when enrichment is skipped or fails.
func Summarize(result *datatypes.EvaluationResult) Summary {
	var s Summary

	if result.OpenAnswered > 0 {
		if result.OpenAverage >= 7 {
			s.Strengths = append(s.Strengths, "explains concepts clearly in open-ended answers")
		} else if result.OpenAverage < 4 {
			s.Weaknesses = append(s.Weaknesses, "open-ended answers lack depth and precision")
			s.Recommendations = append(s.Recommendations, "practice writing out explanations of core concepts in full sentences")
		}
	} else {
		s.Weaknesses = append(s.Weaknesses, "no open-ended answers provided")
		s.Recommendations = append(s.Recommendations, "answer open-ended questions to demonstrate deeper understanding")
	}

	if result.ClosedTotal > 0 {
		ratio := float64(result.ClosedCorrect) / float64(result.ClosedTotal)
		if ratio >= 0.8 {
			s.Strengths = append(s.Strengths, "solid recall of factual material")
		} else if ratio < 0.5 {
			s.Weaknesses = append(s.Weaknesses, "gaps in foundational knowledge")
			s.Recommendations = append(s.Recommendations, "review the fundamentals before moving to applied topics")
		}
	}

	s.Analysis = fmt.Sprintf(
		"Open questions averaged %.1f/10 across %d of %d answered; closed questions scored %.1f/10 (%d/%d correct). Overall level %.1f (%s).",
		result.OpenAverage, result.OpenAnswered, result.OpenTotal,
		result.ClosedScore, result.ClosedCorrect, result.ClosedTotal,
		result.Level, result.LevelLabel,
	)
	return s
}

// ApplyAdvisory merges an optional advisory into the deterministic
// summary. The merge is strictly one-way: it fills the analysis gap and
// appends deduplicated list items. It cannot touch numeric fields because
// Advisory has none.
func ApplyAdvisory(base Summary, advisory *datatypes.Advisory) Summary {
	if advisory == nil {
		return base
	}
	if advisory.OpenQuestionAnalysis != "" {
		base.Analysis = advisory.OpenQuestionAnalysis
	}
	base.Strengths = appendDedup(base.Strengths, advisory.Strengths)
	base.Weaknesses = appendDedup(base.Weaknesses, advisory.Weaknesses)
	base.Recommendations = appendDedup(base.Recommendations, advisory.Recommendations)
	return base
}

// appendDedup appends items not already present, comparing trimmed and
// case-folded text.
func appendDedup(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base))
	for _, item := range base {
		seen[normalize(item)] = struct{}{}
	}
	for _, item := range extra {
		if strings.TrimSpace(item) == "" {
			continue
		}
		key := normalize(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		base = append(base, item)
	}
	return base
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
