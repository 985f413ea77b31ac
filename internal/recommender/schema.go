package recommender

import (
	"basegraph.app/assist/common/llm"
	"basegraph.app/assist/internal/model"
)

// Numeric fields are pointers so a reply that omits one is rejected instead of read as 0.

type contextResponse struct {
	Topic        string   `json:"topic" jsonschema_description:"Short topic of the conversation"`
	Stage        string   `json:"stage" jsonschema:"enum=opening,enum=diagnosis,enum=resolution,enum=closing" jsonschema_description:"Current conversation stage"`
	Complexity   string   `json:"complexity" jsonschema:"enum=low,enum=medium,enum=high"`
	Satisfaction *float64 `json:"satisfaction" jsonschema_description:"Estimated customer satisfaction 0.0-1.0"`
	KeyPoints    []string `json:"key_points" jsonschema_description:"Facts the agent must keep in mind"`
	Emotion      string   `json:"emotion" jsonschema:"enum=positive,enum=neutral,enum=negative,enum=angry,enum=anxious"`
}

type intentResponse struct {
	IntentType       string   `json:"intent_type" jsonschema:"enum=account_inquiry,enum=business_handling,enum=complaint,enum=feedback,enum=technical_support,enum=other"`
	SubIntent        string   `json:"sub_intent" jsonschema_description:"Finer-grained intent, e.g. bill_dispute"`
	Confidence       *float64 `json:"confidence" jsonschema_description:"Confidence 0.0-1.0"`
	RequiredInfo     []string `json:"required_info" jsonschema_description:"Information the agent still needs from the customer"`
	SuggestedActions []string `json:"suggested_actions"`
}

type emotionResponse struct {
	Emotion    string   `json:"emotion" jsonschema:"enum=positive,enum=neutral,enum=negative,enum=angry,enum=anxious"`
	Confidence *float64 `json:"confidence"`
	Intensity  *float64 `json:"intensity" jsonschema_description:"Emotion intensity 0.0-1.0"`
	Traits     []string `json:"traits"`
}

type nextIntentResponse struct {
	IntentType string   `json:"intent_type" jsonschema:"enum=account_inquiry,enum=business_handling,enum=complaint,enum=feedback,enum=technical_support,enum=other"`
	Confidence *float64 `json:"confidence"`
	Reason     string   `json:"reason"`
}

var (
	contextSchema    = llm.GenerateSchema[contextResponse]()
	intentSchema     = llm.GenerateSchema[intentResponse]()
	emotionSchema    = llm.GenerateSchema[emotionResponse]()
	nextIntentSchema = llm.GenerateSchema[nextIntentResponse]()
)

func required(field string, v *float64) (float64, error) {
	if v == nil {
		return 0, model.NewValidationError(field, "missing from response")
	}
	return *v, nil
}
