package inspector

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"basegraph.app/assist/internal/model"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	customerLabels = []string{"客户", "用户", "顾客", "customer", "user"}
	agentLabels    = []string{"客服", "坐席", "agent", "service"}

	labelAlt = strings.Join(append(append([]string{}, customerLabels...), agentLabels...), "|")

	// [10:02:11] 客户: text, 客户：text, [Customer] text
	turnLinePattern = regexp.MustCompile(
		`(?i)^\s*(?:\[?(\d{1,2}:\d{2}(?::\d{2})?)\]?\s+)?(?:\[(` + labelAlt + `)\]\s*|(` + labelAlt + `)\s*[:：]\s*)(.*)$`)
)

// Parse segments a conversation into turns. JSON input (a list of turns or an object
// with session_id and turns) is detected by its first character; anything else is
// read as speaker-labelled lines. Input without any recognizable speaker label fails
// with a ParsingError.
func Parse(raw string) (*model.ParsedConversation, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &model.ParsingError{Reason: "empty conversation"}
	}
	if trimmed[0] == '[' || trimmed[0] == '{' {
		conv, err := parseJSON(trimmed)
		if err == nil || trimmed[0] == '{' {
			return conv, err
		}
		// A leading "[Customer]" is a bracketed text line, not a JSON array.
		var syntaxErr *jsonSyntaxError
		if !errors.As(err, &syntaxErr) {
			return nil, err
		}
	}
	return parseText(trimmed)
}

func parseText(raw string) (*model.ParsedConversation, error) {
	conv := &model.ParsedConversation{
		SessionID: sessionIDFor(raw),
		Metadata:  map[string]any{"format": FormatText},
	}

	base := time.Time{}
	var preamble int
	for i, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := turnLinePattern.FindStringSubmatch(line)
		if m == nil {
			if len(conv.Turns) == 0 {
				preamble++
				continue
			}
			last := &conv.Turns[len(conv.Turns)-1]
			last.Text = strings.TrimSpace(last.Text + " " + line)
			continue
		}

		label := m[2]
		if label == "" {
			label = m[3]
		}
		speaker, _ := speakerFor(label)
		text := strings.TrimSpace(m[4])
		if text == "" {
			return nil, &model.ParsingError{Reason: "speaker label without text", Line: i + 1}
		}

		turn := model.ConversationTurn{Speaker: speaker, Text: text}
		if m[1] != "" {
			turn.Timestamp = clockTime(base, m[1])
		}
		conv.Turns = append(conv.Turns, turn)
	}

	if len(conv.Turns) == 0 {
		return nil, &model.ParsingError{Reason: "no recognizable speaker labels"}
	}
	if preamble > 0 {
		conv.Metadata["skipped_lines"] = preamble
	}
	return conv, nil
}

type jsonTurn struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type jsonConversation struct {
	SessionID    string         `json:"session_id"`
	Turns        []jsonTurn     `json:"turns"`
	Conversation []jsonTurn     `json:"conversation"`
	Metadata     map[string]any `json:"metadata"`
}

type jsonSyntaxError struct{ err error }

func (e *jsonSyntaxError) Error() string { return e.err.Error() }

func parseJSON(raw string) (*model.ParsedConversation, error) {
	var doc jsonConversation
	if raw[0] == '[' {
		if err := json.Unmarshal([]byte(raw), &doc.Turns); err != nil {
			return nil, &jsonSyntaxError{err: err}
		}
	} else if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, &model.ParsingError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	turns := doc.Turns
	if len(turns) == 0 {
		turns = doc.Conversation
	}
	if len(turns) == 0 {
		return nil, &model.ParsingError{Reason: "JSON conversation has no turns"}
	}

	conv := &model.ParsedConversation{
		SessionID: doc.SessionID,
		Turns:     make([]model.ConversationTurn, 0, len(turns)),
		Metadata:  map[string]any{"format": FormatJSON},
	}
	for k, v := range doc.Metadata {
		if k != "format" {
			conv.Metadata[k] = v
		}
	}
	if conv.SessionID == "" {
		conv.SessionID = sessionIDFor(raw)
	}

	for i, t := range turns {
		speaker, ok := speakerFor(t.Speaker)
		if !ok {
			return nil, &model.ParsingError{Reason: fmt.Sprintf("turn %d: unknown speaker %q", i, t.Speaker)}
		}
		text := strings.TrimSpace(t.Text)
		if text == "" {
			text = strings.TrimSpace(t.Content)
		}
		if text == "" {
			return nil, &model.ParsingError{Reason: fmt.Sprintf("turn %d: empty text", i)}
		}
		conv.Turns = append(conv.Turns, model.ConversationTurn{Speaker: speaker, Text: text, Timestamp: t.Timestamp})
	}
	return conv, nil
}

func speakerFor(label string) (model.Speaker, bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	for _, c := range customerLabels {
		if l == c {
			return model.SpeakerCustomer, true
		}
	}
	for _, a := range agentLabels {
		if l == a {
			return model.SpeakerAgent, true
		}
	}
	return "", false
}

// clockTime anchors a wall-clock "hh:mm[:ss]" on base's date.
func clockTime(base time.Time, clock string) time.Time {
	layout := "15:04"
	if strings.Count(clock, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, clock)
	if err != nil {
		return time.Time{}
	}
	return time.Date(base.Year(), base.Month(), base.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

func sessionIDFor(raw string) string {
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])[:12]
}
