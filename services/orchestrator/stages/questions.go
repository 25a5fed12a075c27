// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stages

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pathwise-ai/pathwise/services/llm"
	"github.com/pathwise-ai/pathwise/services/orchestrator/datatypes"
	"github.com/pathwise-ai/pathwise/services/orchestrator/workflow"
)

//go:embed questionbank.yaml
var questionBankYAML []byte

var (
	bankOnce sync.Once
	bank     []datatypes.Question
	bankErr  error
)

// fallbackQuestions parses the embedded bank once.
func fallbackQuestions() ([]datatypes.Question, error) {
	bankOnce.Do(func() {
		var doc struct {
			Questions []datatypes.Question `yaml:"questions"`
		}
		if err := yaml.Unmarshal(questionBankYAML, &doc); err != nil {
			bankErr = fmt.Errorf("parse embedded question bank: %w", err)
			return
		}
		bank = doc.Questions
	})
	return bank, bankErr
}

// generateQuestions produces the assessment for the learner's level and
// competences. The collaborator generates a tailored set; when it fails,
// times out, or returns an unusable set, the embedded bank steps in so the
// suspend point is always reached with a non-empty question sequence.
func (d *Deps) generateQuestions(ctx context.Context, state *datatypes.PipelineState) (*datatypes.StateUpdate, error) {
	var (
		questions []datatypes.Question
		source    = "fallback bank"
	)

	if d.LLM != nil {
		generated, err := d.askQuestions(ctx, state)
		if err == nil {
			questions = generated
			source = "collaborator"
		} else {
			d.logger().Warn("question generation fell back to embedded bank", "error", err.Error())
		}
	}
	if questions == nil {
		fallback, err := fallbackQuestions()
		if err != nil {
			return nil, err
		}
		questions = fallback
	}

	zero := 0
	update := &datatypes.StateUpdate{
		Questions:            questions,
		CurrentQuestionIndex: &zero,
		AppendHistory: []datatypes.ConversationEntry{
			historyEntry(workflow.NodeGenerateQuestions, "question",
				fmt.Sprintf("Generated %d questions (%d open, %d closed).",
					len(questions), countType(questions, datatypes.QuestionOpen),
					countType(questions, datatypes.QuestionClosed))),
		},
		AppendDecisions: []datatypes.AgentDecision{
			decision(workflow.NodeGenerateQuestions, "ok", "questions from "+source),
		},
	}
	return update, nil
}

func (d *Deps) askQuestions(ctx context.Context, state *datatypes.PipelineState) ([]datatypes.Question, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout())
	defer cancel()

	prompt := fmt.Sprintf(
		"Create an assessment for a learner at level %.1f/10 (%s) with competences: %s.\n"+
			"Produce exactly 3 open questions and 5 closed single-choice questions.\n"+
			"Respond with a single JSON array and nothing else, each element shaped as\n"+
			`{"number": 1, "type": "open"|"closed", "prompt": "...", "options": ["A) ...","B) ...","C) ...","D) ..."], "correct_answer": "A"}`+
			"\nOpen questions omit options and correct_answer. Number questions 1..8.",
		state.Level, state.LevelLabel, strings.Join(state.Competences, ", "))

	raw, err := d.LLM.Generate(ctx, prompt, llm.GenerationParams{})
	if err != nil {
		return nil, err
	}
	var questions []datatypes.Question
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &questions); err != nil {
		return nil, fmt.Errorf("parse generated questions: %w", err)
	}
	if err := validateQuestions(questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// validateQuestions rejects sets the scorer could not work with.
func validateQuestions(questions []datatypes.Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("collaborator returned no questions")
	}
	seen := make(map[int]struct{}, len(questions))
	for _, q := range questions {
		if q.Number <= 0 {
			return fmt.Errorf("question with non-positive number %d", q.Number)
		}
		if _, dup := seen[q.Number]; dup {
			return fmt.Errorf("duplicate question number %d", q.Number)
		}
		seen[q.Number] = struct{}{}
		if strings.TrimSpace(q.Prompt) == "" {
			return fmt.Errorf("question %d has an empty prompt", q.Number)
		}
		switch q.Type {
		case datatypes.QuestionOpen:
		case datatypes.QuestionClosed:
			if len(q.Options) < 2 {
				return fmt.Errorf("closed question %d has %d options", q.Number, len(q.Options))
			}
			if strings.TrimSpace(q.CorrectAnswer) == "" {
				return fmt.Errorf("closed question %d has no correct answer", q.Number)
			}
		default:
			return fmt.Errorf("question %d has unknown type %q", q.Number, q.Type)
		}
	}
	return nil
}

func countType(questions []datatypes.Question, t datatypes.QuestionType) int {
	n := 0
	for _, q := range questions {
		if q.Type == t {
			n++
		}
	}
	return n
}
