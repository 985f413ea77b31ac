package dto

import (
	"basegraph.app/assist/internal/knowledge"
	"basegraph.app/assist/internal/model"
)

type AddScriptsRequest struct {
	Scripts []knowledge.Item `json:"scripts" binding:"required,min=1,max=1000,dive"`
}

type AddScriptsResponse struct {
	IDs []string `json:"ids"`
}

type SearchScriptsRequest struct {
	Query    string `json:"query" binding:"required,max=2000"`
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty" binding:"omitempty,min=1,max=100"`
}

type SearchScriptsResponse struct {
	Scripts []model.CandidateScript `json:"scripts"`
}

type DeleteScriptsRequest struct {
	IDs      []string `json:"ids,omitempty"`
	Category string   `json:"category,omitempty"`
}

type ExtractQuestionsRequest struct {
	Conversation string `json:"conversation" binding:"required,max=50000"`
	MaxQuestions int    `json:"max_questions,omitempty" binding:"omitempty,min=1"`
}

type ClassifyQueryRequest struct {
	Query      string   `json:"query" binding:"required,max=2000"`
	Categories []string `json:"categories,omitempty" binding:"omitempty,max=50"`
}

type GenerateQuestionsRequest struct {
	Topic        string                 `json:"topic" binding:"required,max=2000"`
	QuestionType knowledge.QuestionKind `json:"question_type,omitempty"`
	Count        int                    `json:"count,omitempty" binding:"omitempty,min=1"`
	Category     string                 `json:"category,omitempty"`
}

type GenerateScriptsRequest struct {
	ScriptType    knowledge.ScriptKind `json:"script_type" binding:"required"`
	Count         int                  `json:"count,omitempty" binding:"omitempty,min=1"`
	Tone          string               `json:"tone,omitempty"`
	Scenario      string               `json:"scenario,omitempty"`
	CustomerType  model.CustomerType   `json:"customer_type,omitempty"`
	OverdueDays   int                  `json:"overdue_days,omitempty"`
	CustomerRisk  string               `json:"customer_risk,omitempty"`
	ComplaintType string               `json:"complaint_type,omitempty"`
	Emotion       model.Emotion        `json:"customer_emotion,omitempty"`
	// Save stores the drafted scripts in the knowledge base under Category.
	Save     bool   `json:"save,omitempty"`
	Category string `json:"category,omitempty" binding:"required_if=Save true"`
}

type GenerateScriptsResponse struct {
	*knowledge.ScriptSet
	IDs []string `json:"ids,omitempty"`
}
