package inspector

import (
	"basegraph.app/assist/common/llm"
	"basegraph.app/assist/internal/model"
)

type dimensionResponse struct {
	Score       *float64        `json:"score" jsonschema_description:"Score 0-100, higher is better"`
	Issues      []issueResponse `json:"issues"`
	Suggestions []string        `json:"suggestions" jsonschema_description:"Concrete advice for the agent"`
}

type issueResponse struct {
	IssueType   string `json:"issue_type" jsonschema_description:"Short snake_case label, e.g. curt_reply"`
	Severity    string `json:"severity" jsonschema:"enum=low,enum=medium,enum=high"`
	Description string `json:"description"`
	TurnIndex   int    `json:"turn_index" jsonschema_description:"Bracketed index of the offending turn"`
	Remedy      string `json:"remedy"`
}

var dimensionSchema = llm.GenerateSchema[dimensionResponse]()

const scoringRules = `

Each transcript line starts with its turn index in brackets. Judge only the agent's turns.
Score from 0 to 100. Report every problem as an issue pointing at the turn it occurs in.
Answer in the language of the conversation. Output only the JSON object.`

var dimensionPrompts = map[model.Dimension]string{
	model.DimensionAttitude: `You are a customer-service quality inspector scoring service ATTITUDE.

Consider politeness, warmth, patience and empathy. One-word or dismissive replies,
blaming the customer and ignoring expressed frustration are issues. A detailed,
courteous reply that acknowledges the customer's situation scores high.` + scoringRules,

	model.DimensionProfessionalism: `You are a customer-service quality inspector scoring PROFESSIONALISM.

Consider accuracy of information, whether the agent asked for the facts needed to resolve
the case, clear next steps and correct use of procedures. Vague or wrong answers and
unresolved questions are issues.` + scoringRules,

	model.DimensionCompliance: `You are a customer-service quality inspector scoring COMPLIANCE.

Consider identity verification before account details are discussed, no promises the
agent cannot keep, no disclosure of other customers' data, required disclosures for
charges and refunds, and no prohibited language.` + scoringRules,
}
