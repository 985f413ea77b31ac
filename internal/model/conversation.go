package model

import "time"

type Speaker string

const (
	SpeakerCustomer Speaker = "customer"
	SpeakerAgent    Speaker = "agent"
)

func (s Speaker) Valid() bool {
	return s == SpeakerCustomer || s == SpeakerAgent
}

type Emotion string

const (
	EmotionPositive Emotion = "positive"
	EmotionNeutral  Emotion = "neutral"
	EmotionNegative Emotion = "negative"
	EmotionAngry    Emotion = "angry"
	EmotionAnxious  Emotion = "anxious"
)

var Emotions = []Emotion{EmotionPositive, EmotionNeutral, EmotionNegative, EmotionAngry, EmotionAnxious}

// ConversationTurn is a single utterance. Turns are values and are never mutated
// after parsing.
type ConversationTurn struct {
	Speaker   Speaker    `json:"speaker"`
	Text      string     `json:"text"`
	Timestamp time.Time  `json:"timestamp,omitzero"`
	Emotion   Emotion    `json:"emotion,omitempty"`
	Intent    IntentType `json:"intent,omitempty"`
}

type ParsedConversation struct {
	SessionID string             `json:"session_id"`
	Turns     []ConversationTurn `json:"turns"`
	Metadata  map[string]any     `json:"metadata,omitempty"`
}

// LastCustomerUtterance returns the text of the most recent customer turn.
func LastCustomerUtterance(turns []ConversationTurn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Speaker == SpeakerCustomer {
			return turns[i].Text
		}
	}
	return ""
}

// RecentTurns returns at most n trailing turns.
func RecentTurns(turns []ConversationTurn, n int) []ConversationTurn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
