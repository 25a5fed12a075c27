// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// QuestionScore is the deterministic score breakdown for one question.
//
// For open questions the four sub-scores are populated and Score is their
// average. For closed questions only Correct and Score are meaningful.
type QuestionScore struct {
	QuestionNumber int          `json:"question_number"`
	Type           QuestionType `json:"type"`
	Score          float64      `json:"score"` // [0, 10]

	// Open-question sub-scores, each in [0, 10].
	Coherence    float64 `json:"coherence,omitempty"`
	Depth        float64 `json:"depth,omitempty"`
	Precision    float64 `json:"precision,omitempty"`
	Completeness float64 `json:"completeness,omitempty"`

	// Closed-question outcome.
	Correct  bool `json:"correct,omitempty"`
	Answered bool `json:"answered"`
}

// EvaluationResult is the structured outcome of the deterministic scorer.
//
// Identical (questions, responses) inputs always yield an identical
// EvaluationResult; qualitative enrichment never writes into this type.
type EvaluationResult struct {
	QuestionScores []QuestionScore `json:"question_scores"`

	OpenAnswered int     `json:"open_answered"`
	OpenTotal    int     `json:"open_total"`
	OpenAverage  float64 `json:"open_average"`

	ClosedCorrect int     `json:"closed_correct"`
	ClosedTotal   int     `json:"closed_total"`
	ClosedScore   float64 `json:"closed_score"`

	RawScore float64 `json:"raw_score"`

	// Level is the clamped, one-decimal final level, always in [1, 10].
	Level      float64 `json:"level"`
	LevelLabel string  `json:"level_label"`

	// ClampApplied names the clamp rule that fired, empty if none.
	ClampApplied string `json:"clamp_applied,omitempty"`
}

// Advisory is the optional qualitative enrichment produced by the
// text-generation collaborator.
//
// The type deliberately carries no numeric fields: merging an Advisory into
// an evaluation can only fill gaps in the text lists, so the deterministic
// Level can never be overwritten by enrichment. That guarantee is enforced
// here by type, not by convention.
type Advisory struct {
	OpenQuestionAnalysis string   `json:"open_question_analysis,omitempty"`
	Strengths            []string `json:"strengths,omitempty"`
	Weaknesses           []string `json:"weaknesses,omitempty"`
	Recommendations      []string `json:"recommendations,omitempty"`
}
