// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package evaluation implements the deterministic scoring engine for
// learner assessments, plus the optional qualitative enrichment merge.
//
// Score computes a reproducible, bounded, evidence-weighted level from the
// (questions, responses) pair: identical inputs always yield an identical
// level, label and per-question breakdown. Free-text answers are scored by
// fixed lexical heuristics; no model output ever feeds the numeric path.
package evaluation

import (
	"math"
	"strings"

	"github.com/pathwise-ai/pathwise/services/orchestrator/datatypes"
)

// Weighting of the two signals. Open questions are the authoritative
// signal of comprehension; closed questions carry less evidence.
const (
	openWeight   = 0.7
	closedWeight = 0.3
)

// Clamp rule names recorded in EvaluationResult.ClampApplied.
const (
	clampNoOpenAnswered = "no_open_answered"
	clampOpenBelow4     = "open_avg_below_4"
	clampOpenBelow6     = "open_avg_below_6"
	clampOpenAbove8     = "open_avg_above_8"
)

// technicalVocabulary is the fixed term list used by the precision
// heuristic. Matching is case-insensitive on whole words.
var technicalVocabulary = []string{
	"algorithm", "function", "variable", "complexity", "structure",
	"memory", "performance", "recursion", "interface", "protocol",
	"concurrency", "thread", "process", "query", "index", "transaction",
	"array", "iteration", "abstraction", "encapsulation", "inheritance",
	"polymorphism", "compile", "runtime", "pointer", "reference",
	"optimization", "architecture", "dependency", "module",
}

// connectors is the fixed list used by the coherence heuristic: discourse
// markers that indicate structured reasoning.
var connectors = []string{
	"because", "therefore", "however", "moreover", "consequently",
	"for example", "in contrast", "first", "then", "finally", "so that",
	"in order to", "as a result",
}

// Score runs the deterministic scoring algorithm.
//
// Description:
//
//	Partitions questions by type. Each open question with a missing or
//	blank response scores exactly 0; otherwise four sub-scores in [0,10]
//	(coherence, depth, precision, completeness) are computed from fixed
//	lexical heuristics and averaged. Closed questions compare the selected
//	option letter against the correct answer. The raw level is
//	0.7*openAvg + 0.3*closedScore, with one priority-ordered clamp applied,
//	rounded to one decimal and bounded to [1,10].
//
// Malformed or unanswered data never raises an error; it scores zero.
func Score(questions []datatypes.Question, responses []datatypes.Response) *datatypes.EvaluationResult {
	result := &datatypes.EvaluationResult{}

	byNumber := make(map[int]datatypes.Response, len(responses))
	for _, r := range responses {
		byNumber[r.QuestionNumber] = r
	}

	var openSum float64
	for _, q := range questions {
		resp, answered := byNumber[q.Number]
		switch q.Type {
		case datatypes.QuestionOpen:
			result.OpenTotal++
			qs := scoreOpen(q, resp, answered)
			if qs.Answered {
				result.OpenAnswered++
			}
			openSum += qs.Score
			result.QuestionScores = append(result.QuestionScores, qs)
		case datatypes.QuestionClosed:
			result.ClosedTotal++
			qs := scoreClosed(q, resp, answered)
			if qs.Correct {
				result.ClosedCorrect++
			}
			result.QuestionScores = append(result.QuestionScores, qs)
		}
	}

	if result.OpenTotal > 0 {
		result.OpenAverage = round1(openSum / float64(result.OpenTotal))
	}
	if result.ClosedTotal > 0 {
		result.ClosedScore = round1(10 * float64(result.ClosedCorrect) / float64(result.ClosedTotal))
	}
	result.RawScore = round1(openWeight*result.OpenAverage + closedWeight*result.ClosedScore)

	// Priority-ordered clamps, exactly one applied.
	level := result.RawScore
	switch {
	case result.OpenAnswered == 0:
		level = math.Min(level, 2)
		result.ClampApplied = clampNoOpenAnswered
	case result.OpenAverage < 4:
		level = math.Min(level, 3)
		result.ClampApplied = clampOpenBelow4
	case result.OpenAverage < 6:
		level = math.Min(level, 5)
		result.ClampApplied = clampOpenBelow6
	case result.OpenAverage > 8:
		level = math.Max(level, 7)
		result.ClampApplied = clampOpenAbove8
	}

	// Final bound into the valid level range.
	level = math.Min(math.Max(level, 1), 10)
	result.Level = round1(level)
	result.LevelLabel = LevelLabel(result.Level)
	return result
}

// LevelLabel maps a level to its ordinal label via fixed breakpoints.
func LevelLabel(level float64) string {
	switch {
	case level <= 2:
		return "beginner"
	case level <= 4:
		return "elementary"
	case level <= 6:
		return "intermediate"
	case level <= 8.5:
		return "advanced"
	default:
		return "expert"
	}
}

// scoreOpen computes the four sub-scores for one open question.
func scoreOpen(q datatypes.Question, resp datatypes.Response, present bool) datatypes.QuestionScore {
	qs := datatypes.QuestionScore{
		QuestionNumber: q.Number,
		Type:           datatypes.QuestionOpen,
	}
	text := strings.TrimSpace(resp.Text)
	if !present || text == "" {
		return qs // unanswered open questions score exactly 0
	}
	qs.Answered = true

	lower := strings.ToLower(text)
	words := strings.Fields(lower)
	wordCount := len(words)
	sentences := countSentences(text)

	connectorHits := 0
	for _, c := range connectors {
		if strings.Contains(lower, c) {
			connectorHits++
		}
	}
	techHits := 0
	wordSet := make(map[string]struct{}, wordCount)
	for _, w := range words {
		wordSet[strings.Trim(w, ".,;:!?()\"'")] = struct{}{}
	}
	for _, term := range technicalVocabulary {
		if _, ok := wordSet[term]; ok {
			techHits++
		}
	}
	promptOverlap := overlapWithPrompt(q.Prompt, wordSet)

	qs.Coherence = clamp10(2 + 2*float64(sentences) + 1.5*float64(connectorHits) + float64(promptOverlap))
	qs.Depth = clamp10(float64(wordCount) / 12)
	qs.Precision = clamp10(2 + 2.5*float64(techHits))
	qs.Completeness = clamp10(float64(wordCount) / 8)
	qs.Score = round1((qs.Coherence + qs.Depth + qs.Precision + qs.Completeness) / 4)
	return qs
}

// scoreClosed compares the selected option letter to the correct answer.
func scoreClosed(q datatypes.Question, resp datatypes.Response, present bool) datatypes.QuestionScore {
	qs := datatypes.QuestionScore{
		QuestionNumber: q.Number,
		Type:           datatypes.QuestionClosed,
	}
	selected := strings.ToUpper(strings.TrimSpace(resp.SelectedOption))
	if !present || selected == "" {
		return qs
	}
	qs.Answered = true
	if selected == strings.ToUpper(strings.TrimSpace(q.CorrectAnswer)) {
		qs.Correct = true
		qs.Score = 10
	}
	return qs
}

// overlapWithPrompt counts distinct prompt words longer than five runes
// that reappear in the answer, capped at 3.
func overlapWithPrompt(prompt string, answerWords map[string]struct{}) int {
	hits := 0
	for _, w := range strings.Fields(strings.ToLower(prompt)) {
		w = strings.Trim(w, ".,;:!?()\"'")
		if len([]rune(w)) <= 5 {
			continue
		}
		if _, ok := answerWords[w]; ok {
			hits++
			if hits == 3 {
				break
			}
		}
	}
	return hits
}

func countSentences(text string) int {
	n := strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?")
	if n == 0 && strings.TrimSpace(text) != "" {
		n = 1
	}
	return n
}

func clamp10(v float64) float64 {
	return math.Min(math.Max(v, 0), 10)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
