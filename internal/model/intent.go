package model

import "time"

type IntentType string

const (
	IntentAccountInquiry   IntentType = "account_inquiry"
	IntentBusinessHandling IntentType = "business_handling"
	IntentComplaint        IntentType = "complaint"
	IntentFeedback         IntentType = "feedback"
	IntentTechnicalSupport IntentType = "technical_support"
	IntentOther            IntentType = "other"
)

var IntentTypes = []IntentType{
	IntentAccountInquiry,
	IntentBusinessHandling,
	IntentComplaint,
	IntentFeedback,
	IntentTechnicalSupport,
	IntentOther,
}

func (t IntentType) Valid() bool {
	for _, v := range IntentTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Category maps an intent to the knowledge-base category searched for scripts.
func (t IntentType) Category() string {
	switch t {
	case IntentAccountInquiry:
		return "billing"
	case IntentBusinessHandling:
		return "business"
	case IntentComplaint:
		return "complaint"
	case IntentFeedback:
		return "feedback"
	case IntentTechnicalSupport:
		return "technical"
	}
	return ""
}

type UserIntent struct {
	Sequence         int64      `json:"sequence"`
	IntentType       IntentType `json:"intent_type"`
	SubIntent        string     `json:"sub_intent,omitempty"`
	Confidence       float64    `json:"confidence"`
	RequiredInfo     []string   `json:"required_info"`
	SuggestedActions []string   `json:"suggested_actions"`
	RecognizedAt     time.Time  `json:"recognized_at"`
}
