package knowledge

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/vectorstore"
)

// Item is a script or knowledge entry as authored. UsageCount and SuccessRate are
// feedback statistics imported with the item.
type Item struct {
	ID          string   `json:"id,omitempty" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Content     string   `json:"content" yaml:"content"`
	Category    string   `json:"category,omitempty" yaml:"category"`
	UsageCount  int64    `json:"usage_count,omitempty" yaml:"usage_count"`
	SuccessRate float64  `json:"success_rate,omitempty" yaml:"success_rate"`
	Tags        []string `json:"tags,omitempty" yaml:"tags"`
}

// Document flattens the item into vector store metadata.
func (i Item) Document() vectorstore.Document {
	meta := map[string]any{
		"title":        i.Title,
		"usage_count":  i.UsageCount,
		"success_rate": i.SuccessRate,
	}
	if i.Category != "" {
		meta["category"] = i.Category
	}
	if len(i.Tags) > 0 {
		meta["tags"] = i.Tags
	}
	return vectorstore.Document{ID: i.ID, Content: i.Content, Metadata: meta}
}

// Candidate reads a search hit back as a script. Metadata written by any backend is
// accepted: numbers may arrive as float, int, json.Number or text, tags as a list or a
// comma-separated string.
func Candidate(h vectorstore.Hit) model.CandidateScript {
	return model.CandidateScript{
		ID:          h.ID,
		Title:       metaString(h.Metadata, "title"),
		Content:     h.Content,
		Category:    metaString(h.Metadata, "category"),
		Tags:        metaStrings(h.Metadata, "tags"),
		Relevance:   model.Clamp01(h.Score),
		UsageCount:  int64(metaFloat(h.Metadata, "usage_count")),
		SuccessRate: model.Clamp01(metaFloat(h.Metadata, "success_rate")),
	}
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

// metaFloat reads a numeric metadata value. Missing, malformed and non-finite values
// read as 0.
func metaFloat(meta map[string]any, key string) float64 {
	f := rawMetaFloat(meta, key)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func rawMetaFloat(meta map[string]any, key string) float64 {
	switch v := meta[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

func metaStrings(meta map[string]any, key string) []string {
	switch v := meta[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, s := range v {
			out = append(out, fmt.Sprint(s))
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		out := strings.Split(v, ",")
		for i := range out {
			out[i] = strings.TrimSpace(out[i])
		}
		return out
	}
	return nil
}
