package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"basegraph.app/assist/common/llm"
	"basegraph.app/assist/core/db"
	"basegraph.app/assist/internal/model"
)

// PGVector stores embeddings in Postgres with the pgvector extension. Relevance is
// 1 - cosine distance, clamped to [0,1]. A batch Add commits all documents or none.
type PGVector struct {
	q          db.Querier
	withTx     func(ctx context.Context, fn func(q db.Querier) error) error
	embedder   llm.Embedder
	table      string
	dimensions int
}

func NewPGVector(database *db.DB, embedder llm.Embedder, table string, dimensions int) *PGVector {
	return &PGVector{
		q:          database.Pool(),
		withTx:     database.WithTx,
		embedder:   embedder,
		table:      table,
		dimensions: dimensions,
	}
}

func (p *PGVector) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id         TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
			embedding  vector(%d) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, p.table, p.dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_metadata_idx ON %s USING gin (metadata)`, p.table, p.table),
	}
	for _, s := range stmts {
		if _, err := p.q.Exec(ctx, s); err != nil {
			return fmt.Errorf("ensuring pgvector schema: %w", err)
		}
	}
	return nil
}

func (p *PGVector) Add(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}

	sql := fmt.Sprintf(`INSERT INTO %s (id, content, metadata, embedding, updated_at)
		VALUES ($1, $2, $3, $4::vector, now())
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding, updated_at = now()`, p.table)

	ids := make([]string, len(docs))
	err = p.withTx(ctx, func(q db.Querier) error {
		for i, d := range docs {
			meta, err := json.Marshal(orEmpty(d.Metadata))
			if err != nil {
				return fmt.Errorf("encoding metadata for %s: %w", d.ID, err)
			}
			vec, err := pgvector.NewVector(vectors[i]).Value()
			if err != nil {
				return fmt.Errorf("encoding vector for %s: %w", d.ID, err)
			}
			if _, err := q.Exec(ctx, sql, d.ID, d.Content, meta, vec); err != nil {
				return fmt.Errorf("upserting %s: %w", d.ID, err)
			}
			ids[i] = d.ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (p *PGVector) Search(ctx context.Context, queries []string, limit int, filter Filter) ([][]Hit, error) {
	vectors, err := p.embedder.Embed(ctx, queries)
	if err != nil {
		return nil, fmt.Errorf("embedding queries: %w", err)
	}

	containment, err := json.Marshal(filterMap(filter))
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`SELECT id, content, metadata, embedding <=> $1::vector AS distance
		FROM %s
		WHERE metadata @> $2::jsonb
		ORDER BY distance
		LIMIT $3`, p.table)

	out := make([][]Hit, len(queries))
	for i := range queries {
		vec, err := pgvector.NewVector(vectors[i]).Value()
		if err != nil {
			return nil, err
		}
		hits, err := p.query(ctx, sql, vec, containment, limit)
		if err != nil {
			return nil, err
		}
		out[i] = hits
	}
	return out, nil
}

func (p *PGVector) query(ctx context.Context, sql string, args ...any) ([]Hit, error) {
	rows, err := p.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", p.table, err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h        Hit
			meta     []byte
			distance float64
		)
		if err := rows.Scan(&h.ID, &h.Content, &meta, &distance); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &h.Metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata for %s: %w", h.ID, err)
			}
		}
		h.Score = model.Clamp01(1 - distance)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (p *PGVector) Delete(ctx context.Context, ids []string, filter Filter) error {
	if len(ids) > 0 {
		_, err := p.q.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, p.table), ids)
		if err != nil {
			return fmt.Errorf("deleting documents: %w", err)
		}
		return nil
	}
	if len(filter) == 0 {
		return ErrEmptyDelete
	}

	containment, err := json.Marshal(filterMap(filter))
	if err != nil {
		return err
	}
	if _, err := p.q.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE metadata @> $1::jsonb`, p.table), containment); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}
	return nil
}

func filterMap(f Filter) map[string]string {
	if f == nil {
		return map[string]string{}
	}
	return f
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
