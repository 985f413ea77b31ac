package model

import "time"

type Stage string

const (
	StageOpening    Stage = "opening"
	StageDiagnosis  Stage = "diagnosis"
	StageResolution Stage = "resolution"
	StageClosing    Stage = "closing"
)

func (s Stage) Valid() bool {
	switch s {
	case StageOpening, StageDiagnosis, StageResolution, StageClosing:
		return true
	}
	return false
}

type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

func (c Complexity) Valid() bool {
	switch c {
	case ComplexityLow, ComplexityMedium, ComplexityHigh:
		return true
	}
	return false
}

// ConversationContext is the latest derived view of a session. A newer context
// replaces the previous one entirely.
type ConversationContext struct {
	Topic        string     `json:"topic"`
	Stage        Stage      `json:"stage"`
	Complexity   Complexity `json:"complexity"`
	Satisfaction float64    `json:"satisfaction"`
	KeyPoints    []string   `json:"key_points"`
	Emotion      Emotion    `json:"emotion,omitempty"`
	AnalyzedAt   time.Time  `json:"analyzed_at"`
}
