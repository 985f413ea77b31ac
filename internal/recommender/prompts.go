package recommender

import (
	"fmt"
	"sort"
	"strings"

	"basegraph.app/assist/internal/model"
)

const contextSystemPrompt = `You analyze live customer-service conversations for the agent handling them.

Read the transcript and report:
- topic: what the customer is contacting us about, in a few words
- stage: opening (greeting, problem not yet stated), diagnosis (agent is gathering facts),
  resolution (a fix or answer is being delivered), closing (wrap-up)
- complexity: how hard the case looks to resolve
- satisfaction: your estimate of the customer's satisfaction right now, 0.0-1.0
- key_points: concrete facts stated so far (amounts, dates, product names)
- emotion: the customer's dominant emotion

Answer in the language of the conversation. Output only the JSON object.`

const intentSystemPrompt = `You classify the intent of the customer's latest message in a customer-service chat.

Intent types:
- account_inquiry: bills, balances, charges, account status
- business_handling: opening, changing or cancelling a service or plan
- complaint: dissatisfaction with service, staff or outcome
- feedback: suggestions and praise
- technical_support: something is broken or does not work
- other: none of the above

Use the conversation context to disambiguate. Confidence reflects how clearly the message
fits the chosen type. Output only the JSON object.`

const emotionSystemPrompt = `You label the emotion expressed in one customer-service message.
Choose one of positive, neutral, negative, angry, anxious. Output only the JSON object.`

const nextIntentSystemPrompt = `You predict what a customer is most likely to ask for next, given the intents
recognized so far in the conversation and its current context. Output only the JSON object.`

const personalizeSystemPrompt = `You rewrite a customer-service script for one specific customer.
Keep every fact, amount and instruction of the original. Adjust tone and wording only.
Reply with the rewritten script text and nothing else.`

const greetingSystemPrompt = `You write the opening greeting of a customer-service conversation.
Be polite, professional and brief. Reply with the greeting text only.`

func formatTurns(turns []model.ConversationTurn) string {
	var b strings.Builder
	for _, t := range turns {
		label := "Customer"
		if t.Speaker == model.SpeakerAgent {
			label = "Agent"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, t.Text)
	}
	return b.String()
}

func buildContextPrompt(turns []model.ConversationTurn) string {
	return "Conversation:\n" + formatTurns(turns)
}

func buildIntentPrompt(utterance string, c *model.ConversationContext) string {
	var b strings.Builder
	if c != nil {
		fmt.Fprintf(&b, "Context: topic=%q stage=%s emotion=%s\n", c.Topic, c.Stage, c.Emotion)
		if len(c.KeyPoints) > 0 {
			fmt.Fprintf(&b, "Key points: %s\n", strings.Join(c.KeyPoints, "; "))
		}
	}
	fmt.Fprintf(&b, "Latest customer message: %s\n", utterance)
	return b.String()
}

func buildNextIntentPrompt(history []model.UserIntent, c *model.ConversationContext) string {
	var b strings.Builder
	b.WriteString("Intents so far, oldest first:\n")
	for _, in := range history {
		fmt.Fprintf(&b, "%d. %s", in.Sequence, in.IntentType)
		if in.SubIntent != "" {
			fmt.Fprintf(&b, " (%s)", in.SubIntent)
		}
		b.WriteString("\n")
	}
	if c != nil {
		fmt.Fprintf(&b, "Current context: topic=%q stage=%s\n", c.Topic, c.Stage)
	}
	return b.String()
}

var ageTone = map[string]string{
	"young":  "concise and upbeat",
	"middle": "professional and clear",
	"senior": "patient and detailed",
}

func buildPersonalizePrompt(script string, p model.CustomerProfile, c *model.ConversationContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original script:\n%s\n\nCustomer:\n", script)
	if p.Name != "" {
		fmt.Fprintf(&b, "- name: %s\n", p.Name)
	}
	if p.CustomerType != "" {
		fmt.Fprintf(&b, "- customer type: %s\n", p.CustomerType)
	}
	band := p.AgeBand()
	if tone, ok := ageTone[band]; ok {
		fmt.Fprintf(&b, "- age band: %s (use a %s tone)\n", band, tone)
	}
	if p.Gender != "" {
		fmt.Fprintf(&b, "- gender: %s\n", p.Gender)
	}
	if len(p.Preferences) > 0 {
		keys := make([]string, 0, len(p.Preferences))
		for k := range p.Preferences {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- prefers %s: %s\n", k, p.Preferences[k])
		}
	}
	if c != nil && c.Emotion != "" {
		fmt.Fprintf(&b, "\nThe customer currently feels %s.\n", c.Emotion)
	}
	return b.String()
}

func buildGreetingPrompt(p model.CustomerProfile) string {
	return fmt.Sprintf("Customer name: %s\nCustomer type: %s\nAge band: %s\nGender: %s\n",
		orDefault(p.Name, "unknown"), orDefault(string(p.CustomerType), "regular"),
		p.AgeBand(), orDefault(p.Gender, "unknown"))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
