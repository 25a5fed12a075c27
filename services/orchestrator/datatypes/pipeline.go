// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the shared data model for the Pathwise
// orchestration pipeline: the per-session PipelineState threaded through
// every stage, the partial StateUpdate a stage returns, and the durable
// ContextRecord projection managed by the context service.
package datatypes

import (
	"time"
)

// Step is a lifecycle label for the learning pipeline.
//
// The workflow engine advances CurrentStep through these values. The
// suspend point is StepQuestionsGenerated: the pipeline checkpoints there
// and waits for externally supplied responses.
type Step string

const (
	StepProfile            Step = "profile"
	StepGenerateQuestions  Step = "generateQuestions"
	StepQuestionsGenerated Step = "questionsGenerated"
	StepResponsesReceived  Step = "responsesReceived"
	StepEvaluate           Step = "evaluate"
	StepBuildTutoring      Step = "buildTutoring"
	StepRecommend          Step = "recommend"
	StepPlan               Step = "plan"
	StepMonitorProgression Step = "monitorProgression"
	StepVisualize          Step = "visualize"
	StepGenerateContent    Step = "generateContent"
	StepCompleted          Step = "completed"
	StepError              Step = "error"
)

// QuestionType distinguishes free-text questions from single-choice ones.
//
// Open questions are the authoritative signal of comprehension; closed
// questions are the lower-weighted signal (see the evaluation package).
type QuestionType string

const (
	QuestionOpen   QuestionType = "open"
	QuestionClosed QuestionType = "closed"
)

// Question is a single assessment question.
type Question struct {
	Number int          `json:"number" yaml:"number"`
	Type   QuestionType `json:"type" yaml:"type"`
	Prompt string       `json:"prompt" yaml:"prompt"`

	// Options holds the candidate answers for closed questions,
	// prefixed with their option letter ("A) ..."). Empty for open questions.
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`

	// CorrectAnswer is the option letter for closed questions ("A".."D").
	// Empty for open questions.
	CorrectAnswer string `json:"correct_answer,omitempty" yaml:"correct_answer,omitempty"`
}

// Response is a learner's answer to one question, keyed by question number.
type Response struct {
	QuestionNumber int    `json:"question_number"`
	Text           string `json:"text,omitempty"`
	SelectedOption string `json:"selected_option,omitempty"`
}

// ConversationEntry is one append-only audit entry in the session history.
//
// History is never reordered or truncated by any stage; its length is
// monotonically non-decreasing for the lifetime of the session.
type ConversationEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"` // "learner", "system", or a stage name
	Kind      string    `json:"kind"`  // "message", "question", "analysis", ...
	Text      string    `json:"text"`
}

// AgentDecision records the outcome of one stage for the audit trail.
type AgentDecision struct {
	ID        string    `json:"id"` // uuid
	Stage     string    `json:"stage"`
	Outcome   string    `json:"outcome"` // "ok" or "error"
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PathModule is one unit of a learning path.
type PathModule struct {
	Order       int    `json:"order"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Competence  string `json:"competence,omitempty"`
}

// LearningPath is the ordered tutoring path built after evaluation.
type LearningPath struct {
	Modules        []PathModule `json:"modules"`
	FocusAreas     []string     `json:"focus_areas,omitempty"`
	EstimatedWeeks int          `json:"estimated_weeks"`
}

// RoadmapPhase is one phase of the study roadmap.
type RoadmapPhase struct {
	Name          string   `json:"name"`
	Goals         []string `json:"goals,omitempty"`
	DurationWeeks int      `json:"duration_weeks"`
}

// Roadmap is the phased study plan derived from the learning path.
type Roadmap struct {
	Phases     []RoadmapPhase `json:"phases"`
	Milestones []string       `json:"milestones,omitempty"`
}

// ProgressionSnapshot captures the learner's standing at pipeline completion.
type ProgressionSnapshot struct {
	Level          float64   `json:"level"`
	LevelLabel     string    `json:"level_label"`
	CompletedSteps []string  `json:"completed_steps"`
	CapturedAt     time.Time `json:"captured_at"`
}

// VisualizationPayload is the chart-ready summary of the evaluation.
type VisualizationPayload struct {
	Labels  []string  `json:"labels"`
	Scores  []float64 `json:"scores"`
	Summary string    `json:"summary,omitempty"`
}

// ContentSection is one section of generated study content.
type ContentSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// GeneratedContent is the study material produced by the final stage.
type GeneratedContent struct {
	Title    string           `json:"title"`
	Sections []ContentSection `json:"sections"`
}

// PipelineState is the single mutable record threaded through every stage
// of one learning session.
//
// Description:
//
//	Identity (UserID, SessionID) is immutable after creation; exactly one
//	PipelineState exists per pair. The full state is JSON-serializable so
//	the workflow engine can checkpoint it at the suspend point and a
//	different process can resume from it later.
//
// Invariants:
//
//   - CurrentQuestionIndex is in [0, len(Questions)].
//   - Level is in [1, 10] once set by evaluation.
//   - ConversationHistory and AgentDecisions are append-only.
//
// Thread Safety: NOT safe for concurrent use. The engine runs one pipeline
// per session at a time; independent sessions get independent states.
type PipelineState struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`

	CurrentStep      Step   `json:"current_step"`
	NextStep         Step   `json:"next_step,omitempty"`
	IsComplete       bool   `json:"is_complete"`
	NeedsHumanReview bool   `json:"needs_human_review"`
	ErrorMessage     string `json:"error_message,omitempty"`

	UserProfile map[string]any `json:"user_profile,omitempty"`
	Level       float64        `json:"level,omitempty"`
	LevelLabel  string         `json:"level_label,omitempty"`
	Competences []string       `json:"competences,omitempty"`
	Objectives  string         `json:"objectives,omitempty"`

	Questions            []Question `json:"questions,omitempty"`
	Responses            []Response `json:"responses,omitempty"`
	CurrentQuestionIndex int        `json:"current_question_index"`

	EvaluationResult     *EvaluationResult `json:"evaluation_result,omitempty"`
	OpenQuestionAnalysis string            `json:"open_question_analysis,omitempty"`
	Strengths            []string          `json:"strengths,omitempty"`
	Weaknesses           []string          `json:"weaknesses,omitempty"`
	Recommendations      []string          `json:"recommendations,omitempty"`

	LearningPath         *LearningPath         `json:"learning_path,omitempty"`
	Roadmap              *Roadmap              `json:"roadmap,omitempty"`
	ProgressionSnapshot  *ProgressionSnapshot  `json:"progression_snapshot,omitempty"`
	VisualizationPayload *VisualizationPayload `json:"visualization_payload,omitempty"`
	GeneratedContent     *GeneratedContent     `json:"generated_content,omitempty"`

	ConversationHistory []ConversationEntry `json:"conversation_history,omitempty"`
	AgentDecisions      []AgentDecision     `json:"agent_decisions,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPipelineState creates the initial state for a session.
func NewPipelineState(userID, sessionID string, profile map[string]any) *PipelineState {
	now := time.Now().UTC()
	return &PipelineState{
		UserID:      userID,
		SessionID:   sessionID,
		CurrentStep: StepProfile,
		UserProfile: profile,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ResponseFor returns the response for a question number, if one was given.
func (s *PipelineState) ResponseFor(number int) (Response, bool) {
	for _, r := range s.Responses {
		if r.QuestionNumber == number {
			return r, true
		}
	}
	return Response{}, false
}
