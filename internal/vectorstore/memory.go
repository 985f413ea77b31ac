package vectorstore

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Memory is an in-process Store scored by cosine similarity over term counts. CJK
// text is tokenized into character unigrams and bigrams. It backs development mode
// and tests.
type Memory struct {
	mu    sync.RWMutex
	docs  map[string]Document
	terms map[string]map[string]float64
	order []string
}

func NewMemory() *Memory {
	return &Memory{
		docs:  make(map[string]Document),
		terms: make(map[string]map[string]float64),
	}
}

func (m *Memory) Add(_ context.Context, docs []Document) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		if _, exists := m.docs[d.ID]; !exists {
			m.order = append(m.order, d.ID)
		}
		m.docs[d.ID] = d
		m.terms[d.ID] = termVector(d.Content + " " + metaString(d.Metadata, "title"))
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (m *Memory) Search(ctx context.Context, queries []string, limit int, filter Filter) ([][]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([][]Hit, len(queries))
	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		qv := termVector(q)
		var hits []Hit
		for _, id := range m.order {
			doc, ok := m.docs[id]
			if !ok || !matches(doc.Metadata, filter) {
				continue
			}
			score := cosine(qv, m.terms[id])
			if score <= 0 {
				continue
			}
			hits = append(hits, Hit{Document: doc, Score: score})
		}
		sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
		if limit > 0 && len(hits) > limit {
			hits = hits[:limit]
		}
		out[i] = hits
	}
	return out, nil
}

func (m *Memory) Delete(_ context.Context, ids []string, filter Filter) error {
	if len(ids) == 0 && len(filter) == 0 {
		return ErrEmptyDelete
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	drop := make(map[string]bool)
	for _, id := range ids {
		drop[id] = true
	}
	if len(ids) == 0 {
		for id, d := range m.docs {
			if matches(d.Metadata, filter) {
				drop[id] = true
			}
		}
	}

	kept := m.order[:0]
	for _, id := range m.order {
		if drop[id] {
			delete(m.docs, id)
			delete(m.terms, id)
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func termVector(text string) map[string]float64 {
	vec := make(map[string]float64)
	var word []rune
	var prevHan rune

	flush := func() {
		if len(word) > 0 {
			vec[strings.ToLower(string(word))]++
			word = word[:0]
		}
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			vec[string(r)]++
			if prevHan != 0 {
				vec[string([]rune{prevHan, r})]++
			}
			prevHan = r
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word = append(word, r)
		default:
			flush()
		}
		prevHan = 0
	}
	flush()
	return vec
}

// Similarity is the cosine similarity of the term vectors of a and b, in [0,1].
func Similarity(a, b string) float64 {
	return cosine(termVector(a), termVector(b))
}

func cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, na, nb float64
	for t, w := range a {
		na += w * w
		dot += w * b[t]
	}
	for _, w := range b {
		nb += w * w
	}
	if dot == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}
