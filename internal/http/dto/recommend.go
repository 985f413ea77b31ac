package dto

import (
	"basegraph.app/assist/internal/model"
)

type AnalyzeContextRequest struct {
	SessionID string                   `json:"session_id" binding:"required,max=128"`
	Turns     []model.ConversationTurn `json:"turns" binding:"required,min=1"`
}

type RecognizeIntentRequest struct {
	SessionID string                     `json:"session_id" binding:"required,max=128"`
	Utterance string                     `json:"utterance" binding:"required,max=4000"`
	Context   *model.ConversationContext `json:"context,omitempty"`
}

type NextIntentRequest struct {
	SessionID string `json:"session_id" binding:"required,max=128"`
}

type EmotionRequest struct {
	Text string `json:"text" binding:"required,max=4000"`
}

type RecommendScriptsRequest struct {
	SessionID string                   `json:"session_id" binding:"required,max=128"`
	Turns     []model.ConversationTurn `json:"turns" binding:"required,min=1"`
	Profile   *model.CustomerProfile   `json:"profile,omitempty"`
	Count     int                      `json:"count,omitempty" binding:"omitempty,min=1,max=20"`
}

type PersonalizeRequest struct {
	Script  string                     `json:"script" binding:"required,max=4000"`
	Profile model.CustomerProfile      `json:"profile"`
	Context *model.ConversationContext `json:"context,omitempty"`
}

type GreetingRequest struct {
	Profile model.CustomerProfile `json:"profile"`
}
