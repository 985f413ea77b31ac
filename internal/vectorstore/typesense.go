package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/typesense/typesense-go/v4/typesense"
	"github.com/typesense/typesense-go/v4/typesense/api"
	"github.com/typesense/typesense-go/v4/typesense/api/pointer"
)

type TypesenseConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Typesense stores scripts in a Typesense collection. Metadata keys become top-level
// document fields; relevance is the hit's text-match score normalized against the
// best hit of the same query.
type Typesense struct {
	client     *typesense.Client
	collection string
}

func NewTypesense(cfg TypesenseConfig) *Typesense {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Typesense{
		client: typesense.NewClient(
			typesense.WithServer(cfg.URL),
			typesense.WithAPIKey(cfg.APIKey),
			typesense.WithConnectionTimeout(timeout),
		),
		collection: cfg.Collection,
	}
}

// EnsureCollection creates the collection when it does not exist.
func (t *Typesense) EnsureCollection(ctx context.Context) error {
	_, err := t.client.Collection(t.collection).Retrieve(ctx)
	if err == nil {
		return nil
	}
	var httpErr *typesense.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != 404 {
		return fmt.Errorf("retrieving collection %s: %w", t.collection, normalize(err))
	}

	_, err = t.client.Collections().Create(ctx, &api.CollectionSchema{
		Name: t.collection,
		Fields: []api.Field{
			{Name: "content", Type: "string"},
			{Name: "title", Type: "string", Optional: pointer.True()},
			{Name: "category", Type: "string", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "tags", Type: "string[]", Facet: pointer.True(), Optional: pointer.True()},
			{Name: "usage_count", Type: "int64", Optional: pointer.True()},
			{Name: "success_rate", Type: "float", Optional: pointer.True()},
			{Name: ".*", Type: "auto", Optional: pointer.True()},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", t.collection, normalize(err))
	}
	return nil
}

// Add upserts docs. Existing ids are removed before import so re-ingest replaces them.
func (t *Typesense) Add(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(docs))
	payload := make([]interface{}, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		row := make(map[string]interface{}, len(d.Metadata)+2)
		for k, v := range d.Metadata {
			row[k] = v
		}
		row["id"] = d.ID
		row["content"] = d.Content
		payload[i] = row
	}

	if err := t.deleteByIDs(ctx, ids); err != nil {
		return nil, err
	}

	results, err := t.client.Collection(t.collection).Documents().Import(ctx, payload, &api.ImportDocumentsParams{})
	if err != nil {
		return nil, fmt.Errorf("importing documents: %w", normalize(err))
	}

	var failed []string
	for i, r := range results {
		if r != nil && !r.Success {
			failed = append(failed, fmt.Sprintf("%s: %s", ids[i], r.Error))
		}
	}
	if len(failed) > 0 {
		return nil, fmt.Errorf("importing documents: %d rejected: %s", len(failed), strings.Join(failed, "; "))
	}
	return ids, nil
}

func (t *Typesense) Search(ctx context.Context, queries []string, limit int, filter Filter) ([][]Hit, error) {
	out := make([][]Hit, len(queries))
	for i, q := range queries {
		params := &api.SearchCollectionParams{
			Q:       pointer.String(q),
			QueryBy: pointer.String("content,title"),
			PerPage: pointer.Int(limit),
		}
		if fb := filterBy(filter); fb != "" {
			params.FilterBy = pointer.String(fb)
		}

		res, err := t.client.Collection(t.collection).Documents().Search(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("searching %s: %w", t.collection, normalize(err))
		}
		out[i] = toHits(res)
	}
	return out, nil
}

func (t *Typesense) Delete(ctx context.Context, ids []string, filter Filter) error {
	if len(ids) > 0 {
		return t.deleteByIDs(ctx, ids)
	}
	fb := filterBy(filter)
	if fb == "" {
		return ErrEmptyDelete
	}
	if _, err := t.client.Collection(t.collection).Documents().Delete(ctx, &api.DeleteDocumentsParams{FilterBy: pointer.String(fb)}); err != nil {
		return fmt.Errorf("deleting documents: %w", normalize(err))
	}
	return nil
}

func (t *Typesense) deleteByIDs(ctx context.Context, ids []string) error {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = "`" + id + "`"
	}
	fb := "id:[" + strings.Join(quoted, ",") + "]"
	if _, err := t.client.Collection(t.collection).Documents().Delete(ctx, &api.DeleteDocumentsParams{FilterBy: pointer.String(fb)}); err != nil {
		return fmt.Errorf("deleting documents: %w", normalize(err))
	}
	return nil
}

func toHits(res *api.SearchResult) []Hit {
	if res == nil || res.Hits == nil {
		return nil
	}

	var best int64
	for _, h := range *res.Hits {
		if h.TextMatch != nil && *h.TextMatch > best {
			best = *h.TextMatch
		}
	}

	hits := make([]Hit, 0, len(*res.Hits))
	for _, h := range *res.Hits {
		if h.Document == nil {
			continue
		}
		raw := *h.Document
		doc := Document{Metadata: make(map[string]any, len(raw))}
		for k, v := range raw {
			switch k {
			case "id":
				doc.ID = fmt.Sprint(v)
			case "content":
				doc.Content, _ = v.(string)
			default:
				doc.Metadata[k] = v
			}
		}

		score := 0.0
		if h.TextMatch != nil && best > 0 {
			score = float64(*h.TextMatch) / float64(best)
		}
		hits = append(hits, Hit{Document: doc, Score: score})
	}
	return hits
}

// filterBy renders a Filter as a Typesense filter_by expression with backtick-quoted
// values, in key order.
func filterBy(filter Filter) string {
	if len(filter) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s:=`%s`", k, filter[k])
	}
	return strings.Join(parts, " && ")
}

func normalize(err error) error {
	var httpErr *typesense.HTTPError
	if errors.As(err, &httpErr) {
		return &HTTPStatusError{StatusCode: httpErr.Status, Body: string(httpErr.Body)}
	}
	return err
}
