package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"basegraph.app/assist/core/db"
	"basegraph.app/assist/internal/model"
)

type reportStore struct {
	q db.Querier
}

func newReportStore(q db.Querier) ReportStore {
	return &reportStore{q: q}
}

func (s *reportStore) Create(ctx context.Context, report *model.InspectionReport) error {
	doc, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report %d: %w", report.ID, err)
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO inspection_reports (id, session_id, review_status, overall_score, report, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		report.ID, report.SessionID, string(report.State()), report.OverallScore, doc, report.CreatedAt)
	return err
}

func (s *reportStore) Get(ctx context.Context, id int64) (*model.InspectionReport, error) {
	row := s.q.QueryRow(ctx, `SELECT report FROM inspection_reports WHERE id = $1`, id)
	report, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return report, err
}

func (s *reportStore) UpdateReview(ctx context.Context, report *model.InspectionReport, expected model.ReviewState) error {
	doc, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding report %d: %w", report.ID, err)
	}
	tag, err := s.q.Exec(ctx, `
		UPDATE inspection_reports
		SET review_status = $2, report = $3, updated_at = now()
		WHERE id = $1 AND review_status = $4`,
		report.ID, string(report.State()), doc, string(expected))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inspection_reports WHERE id = $1)`, report.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStaleState
}

func (s *reportStore) ListByState(ctx context.Context, state model.ReviewState, limit int) ([]*model.InspectionReport, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.q.Query(ctx, `
		SELECT report FROM inspection_reports
		WHERE review_status = $1
		ORDER BY updated_at, id
		LIMIT $2`, string(state), limit)
	if err != nil {
		return nil, err
	}
	return collectReports(rows)
}

func (s *reportStore) ListBySession(ctx context.Context, sessionID string) ([]*model.InspectionReport, error) {
	rows, err := s.q.Query(ctx, `
		SELECT report FROM inspection_reports
		WHERE session_id = $1
		ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	return collectReports(rows)
}

func scanReport(row pgx.Row) (*model.InspectionReport, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		return nil, err
	}
	var report model.InspectionReport
	if err := json.Unmarshal(doc, &report); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &report, nil
}

func collectReports(rows pgx.Rows) ([]*model.InspectionReport, error) {
	defer rows.Close()
	var out []*model.InspectionReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
