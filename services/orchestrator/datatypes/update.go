// Copyright (C) 2026 Pathwise AI (dev@pathwise.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// Field names a PipelineState field for ownership and merge-policy checks.
type Field string

const (
	FieldLevel                Field = "level"
	FieldLevelLabel           Field = "levelLabel"
	FieldCompetences          Field = "competences"
	FieldObjectives           Field = "objectives"
	FieldQuestions            Field = "questions"
	FieldCurrentQuestionIndex Field = "currentQuestionIndex"
	FieldEvaluationResult     Field = "evaluationResult"
	FieldOpenQuestionAnalysis Field = "openQuestionAnalysis"
	FieldStrengths            Field = "strengths"
	FieldWeaknesses           Field = "weaknesses"
	FieldRecommendations      Field = "recommendations"
	FieldLearningPath         Field = "learningPath"
	FieldRoadmap              Field = "roadmap"
	FieldProgressionSnapshot  Field = "progressionSnapshot"
	FieldVisualizationPayload Field = "visualizationPayload"
	FieldGeneratedContent     Field = "generatedContent"
	FieldConversationHistory  Field = "conversationHistory"
	FieldAgentDecisions       Field = "agentDecisions"
)

// StateUpdate is the partial update a stage function returns.
//
// Scalar and collection fields replace the corresponding state field when
// set (pointer non-nil, or slice/map non-nil). AppendHistory and
// AppendDecisions are concatenated onto their append-only targets, never
// replaced. A stage must only populate fields it owns; the workflow engine
// validates that against its ownership table before merging.
type StateUpdate struct {
	Level                *float64
	LevelLabel           *string
	Competences          []string
	Objectives           *string
	Questions            []Question
	CurrentQuestionIndex *int
	EvaluationResult     *EvaluationResult
	OpenQuestionAnalysis *string
	Strengths            []string
	Weaknesses           []string
	Recommendations      []string
	LearningPath         *LearningPath
	Roadmap              *Roadmap
	ProgressionSnapshot  *ProgressionSnapshot
	VisualizationPayload *VisualizationPayload
	GeneratedContent     *GeneratedContent

	// Append-only audit fields (concatenated, never replaced).
	AppendHistory   []ConversationEntry
	AppendDecisions []AgentDecision
}

// Touched returns the fields this update writes, in declaration order.
func (u *StateUpdate) Touched() []Field {
	var fields []Field
	if u.Level != nil {
		fields = append(fields, FieldLevel)
	}
	if u.LevelLabel != nil {
		fields = append(fields, FieldLevelLabel)
	}
	if u.Competences != nil {
		fields = append(fields, FieldCompetences)
	}
	if u.Objectives != nil {
		fields = append(fields, FieldObjectives)
	}
	if u.Questions != nil {
		fields = append(fields, FieldQuestions)
	}
	if u.CurrentQuestionIndex != nil {
		fields = append(fields, FieldCurrentQuestionIndex)
	}
	if u.EvaluationResult != nil {
		fields = append(fields, FieldEvaluationResult)
	}
	if u.OpenQuestionAnalysis != nil {
		fields = append(fields, FieldOpenQuestionAnalysis)
	}
	if u.Strengths != nil {
		fields = append(fields, FieldStrengths)
	}
	if u.Weaknesses != nil {
		fields = append(fields, FieldWeaknesses)
	}
	if u.Recommendations != nil {
		fields = append(fields, FieldRecommendations)
	}
	if u.LearningPath != nil {
		fields = append(fields, FieldLearningPath)
	}
	if u.Roadmap != nil {
		fields = append(fields, FieldRoadmap)
	}
	if u.ProgressionSnapshot != nil {
		fields = append(fields, FieldProgressionSnapshot)
	}
	if u.VisualizationPayload != nil {
		fields = append(fields, FieldVisualizationPayload)
	}
	if u.GeneratedContent != nil {
		fields = append(fields, FieldGeneratedContent)
	}
	if len(u.AppendHistory) > 0 {
		fields = append(fields, FieldConversationHistory)
	}
	if len(u.AppendDecisions) > 0 {
		fields = append(fields, FieldAgentDecisions)
	}
	return fields
}

// Apply merges the update into the state under the declared merge policy:
// replace for scalars and collections, concatenate for the append-only
// audit fields. UpdatedAt is bumped on every apply.
func (u *StateUpdate) Apply(s *PipelineState) {
	if u.Level != nil {
		s.Level = *u.Level
	}
	if u.LevelLabel != nil {
		s.LevelLabel = *u.LevelLabel
	}
	if u.Competences != nil {
		s.Competences = u.Competences
	}
	if u.Objectives != nil {
		s.Objectives = *u.Objectives
	}
	if u.Questions != nil {
		s.Questions = u.Questions
	}
	if u.CurrentQuestionIndex != nil {
		s.CurrentQuestionIndex = *u.CurrentQuestionIndex
	}
	if u.EvaluationResult != nil {
		s.EvaluationResult = u.EvaluationResult
	}
	if u.OpenQuestionAnalysis != nil {
		s.OpenQuestionAnalysis = *u.OpenQuestionAnalysis
	}
	if u.Strengths != nil {
		s.Strengths = u.Strengths
	}
	if u.Weaknesses != nil {
		s.Weaknesses = u.Weaknesses
	}
	if u.Recommendations != nil {
		s.Recommendations = u.Recommendations
	}
	if u.LearningPath != nil {
		s.LearningPath = u.LearningPath
	}
	if u.Roadmap != nil {
		s.Roadmap = u.Roadmap
	}
	if u.ProgressionSnapshot != nil {
		s.ProgressionSnapshot = u.ProgressionSnapshot
	}
	if u.VisualizationPayload != nil {
		s.VisualizationPayload = u.VisualizationPayload
	}
	if u.GeneratedContent != nil {
		s.GeneratedContent = u.GeneratedContent
	}
	s.ConversationHistory = append(s.ConversationHistory, u.AppendHistory...)
	s.AgentDecisions = append(s.AgentDecisions, u.AppendDecisions...)
	s.UpdatedAt = time.Now().UTC()
}
