package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencedObjectPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")

// ExtractJSON pulls a JSON object out of a model response. It accepts a bare object,
// an object inside a markdown fence, or an object surrounded by prose. Returns "" when
// no object is present.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)
	if m := fencedObjectPattern.FindStringSubmatch(content); len(m) > 1 {
		return m[1]
	}

	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

// StripTrailingCommas removes commas directly before a closing brace or bracket.
// Commas inside string literals are left alone.
func StripTrailingCommas(raw string) string {
	var (
		out      strings.Builder
		inString bool
		escaped  bool
	)
	out.Grow(len(raw))

	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			out.WriteByte(ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case ',':
			j := i + 1
			for j < len(raw) && isJSONSpace(raw[j]) {
				j++
			}
			if j < len(raw) && (raw[j] == '}' || raw[j] == ']') {
				continue
			}
		}
		out.WriteByte(ch)
	}
	return out.String()
}

func isJSONSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// DecodeStrict extracts the JSON object from content and decodes it into v, rejecting
// unknown fields and trailing data. Trailing commas are tolerated: when the object does
// not decode as written, it is decoded once more with them stripped.
func DecodeStrict(content string, v any) error {
	raw := ExtractJSON(content)
	if raw == "" {
		return fmt.Errorf("no JSON object in response")
	}

	err := decodeStrict(raw, v)
	if err == nil {
		return nil
	}
	if fixed := StripTrailingCommas(raw); fixed != raw {
		if decodeStrict(fixed, v) == nil {
			return nil
		}
	}
	return fmt.Errorf("decoding response: %w", err)
}

func decodeStrict(raw string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after object")
	}
	return nil
}
