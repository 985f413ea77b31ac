package knowledge

import (
	"fmt"
	"strings"

	"basegraph.app/assist/common/llm"
)

// Numeric fields are pointers so a reply that omits one is rejected instead of read as 0.

type extractResponse struct {
	Questions []struct {
		Question string `json:"question"`
		Context  string `json:"context" jsonschema_description:"What led the customer to ask"`
		Emotion  string `json:"emotion" jsonschema:"enum=positive,enum=neutral,enum=negative,enum=angry,enum=anxious"`
		Priority *int   `json:"priority" jsonschema_description:"1 (most urgent) to 5"`
	} `json:"questions"`
	KeyInfo struct {
		CustomerID  string   `json:"customer_id"`
		Product     string   `json:"product"`
		MainTopic   string   `json:"main_topic"`
		KeyEntities []string `json:"key_entities" jsonschema_description:"Amounts, dates, plan and product names"`
		Emotion     string   `json:"emotion" jsonschema:"enum=positive,enum=neutral,enum=negative,enum=angry,enum=anxious"`
	} `json:"key_info"`
}

type classifyResponse struct {
	PrimaryIntent   string   `json:"primary_intent"`
	SecondaryIntent string   `json:"secondary_intent" jsonschema_description:"Second-best category, empty when none fits"`
	Confidence      *float64 `json:"confidence" jsonschema_description:"Confidence 0.0-1.0"`
	RewrittenQuery  string   `json:"rewritten_query" jsonschema_description:"The query restated for knowledge-base search"`
}

type questionResponse struct {
	Questions []string `json:"questions"`
}

type scoreResponse struct {
	Scores []struct {
		Index  *int     `json:"index"`
		Score  *float64 `json:"score" jsonschema_description:"Quality 0.0-1.0"`
		Reason string   `json:"reason"`
	} `json:"scores"`
}

type callScriptResponse struct {
	Scripts []struct {
		Greeting    string `json:"greeting"`
		MainContent string `json:"main_content"`
		Closing     string `json:"closing"`
	} `json:"scripts"`
}

type collectionScriptResponse struct {
	Scripts []struct {
		Opening           string `json:"opening"`
		Negotiation       string `json:"negotiation"`
		CommitmentRequest string `json:"commitment_request"`
	} `json:"scripts"`
}

var (
	extractSchema          = llm.GenerateSchema[extractResponse]()
	classifySchema         = llm.GenerateSchema[classifyResponse]()
	questionSchema         = llm.GenerateSchema[questionResponse]()
	scoreSchema            = llm.GenerateSchema[scoreResponse]()
	callScriptSchema       = llm.GenerateSchema[callScriptResponse]()
	collectionScriptSchema = llm.GenerateSchema[collectionScriptResponse]()
)

const extractSystemPrompt = `You read customer-service transcripts and pull out what the customer asked.

For each distinct question the customer raised, report the question in the customer's own
words, the context that led to it, the customer's emotion while asking and a priority from
1 (must be answered first) to 5. Then report the key facts of the whole conversation.
Leave customer_id and product empty when the transcript does not state them.
Output only the JSON object.`

const classifySystemPrompt = `You route knowledge-base search queries from customer-service agents.

Pick the category that best fits the query as primary_intent and the runner-up, if any, as
secondary_intent. Both must be taken verbatim from the category list. Rewrite the query as a
short, unambiguous search phrase in the query's language. Output only the JSON object.`

const questionSystemPrompt = `You write customer questions for a customer-service knowledge base.
Questions must sound like real customers, be self-contained and be written in the language of
the topic. Output only the JSON object.`

const scoreSystemPrompt = `You review questions drafted for a customer-service knowledge base.
Score each question from 0.0 to 1.0 for how natural, clear and on-topic it is, and give a
one-line reason. Output only the JSON object.`

const callScriptSystemPrompt = `You write scripts for customer-service agents. Each script has a greeting,
the main content and a closing. Scripts must be polite, concrete and ready to read aloud.
Output only the JSON object.`

const collectionScriptSystemPrompt = `You write payment-collection scripts for customer-service agents. Each
script has an opening, a negotiation section and a request for a payment commitment. Stay
firm but respectful and never threaten the customer. Output only the JSON object.`

func buildExtractPrompt(conversation string, limit int) string {
	return fmt.Sprintf("Report at most %d questions.\n\nTranscript:\n%s", limit, conversation)
}

func buildClassifyPrompt(query string, categories []string) string {
	return fmt.Sprintf("Categories: %s\n\nQuery: %s", strings.Join(categories, ", "), query)
}

func buildQuestionPrompt(req QuestionRequest, count int) string {
	var b strings.Builder
	switch req.Kind {
	case QuestionSimilar:
		fmt.Fprintf(&b, "Write %d different ways a customer could ask this question. Keep the meaning, change the wording.\n", count)
		fmt.Fprintf(&b, "Question: %s\n", req.Topic)
	case QuestionFAQ:
		fmt.Fprintf(&b, "Write the %d questions customers ask most often about this topic.\n", count)
		fmt.Fprintf(&b, "Topic: %s\n", req.Topic)
	default:
		fmt.Fprintf(&b, "Write %d distinct questions a customer could ask about this topic.\n", count)
		fmt.Fprintf(&b, "Topic: %s\n", req.Topic)
	}
	if c := strings.TrimSpace(req.Category); c != "" {
		fmt.Fprintf(&b, "Category: %s\n", c)
	}
	return b.String()
}

func buildScorePrompt(topic string, questions []string, idx []int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n\nQuestions:\n", topic)
	for _, i := range idx {
		fmt.Fprintf(&b, "%d. %s\n", i, questions[i])
	}
	b.WriteString("\nUse the numbers above as index.")
	return b.String()
}

func buildScriptPrompt(req ScriptRequest, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d %s scripts in a %s tone.\n", count, req.Kind, req.Tone)
	switch req.Kind {
	case ScriptCall:
		fmt.Fprintf(&b, "Scenario: %s\n", req.Scenario)
		if req.CustomerType != "" {
			fmt.Fprintf(&b, "Customer type: %s\n", req.CustomerType)
		}
	case ScriptCollection:
		fmt.Fprintf(&b, "Days overdue: %d\nCustomer risk: %s\n", req.OverdueDays, req.RiskLevel)
	case ScriptComplaint:
		fmt.Fprintf(&b, "Complaint type: %s\nCustomer emotion: %s\n", req.ComplaintType, req.Emotion)
		b.WriteString("Acknowledge the problem, apologize once and state the next concrete step.\n")
	}
	return b.String()
}
