package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"dental-inspections/internal/domain/submissions"
)

type SubmissionsRepo struct {
	db *sql.DB
}

func NewSubmissionsRepo(db *sql.DB) *SubmissionsRepo {
	return &SubmissionsRepo{db: db}
}

const submissionColumns = `id, reference_number, draft_id, visit_id, clinic_id, visit_type, sections, violations, submitted_by, submitted_at`

func (r *SubmissionsRepo) Create(ctx context.Context, s submissions.Submission) error {
	sections, err := json.Marshal(s.Sections)
	if err != nil {
		return err
	}
	viol := s.Violations
	if viol == nil {
		viol = []submissions.ViolationSnapshot{}
	}
	violJSON, err := json.Marshal(viol)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb,$8::jsonb,$9,$10)
	`,
		s.ID, s.ReferenceNumber, s.DraftID, s.VisitID, s.ClinicID, s.VisitType,
		string(sections), string(violJSON), s.SubmittedBy, s.SubmittedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *SubmissionsRepo) GetByID(ctx context.Context, id string) (submissions.Submission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return submissions.Submission{}, ErrNotFound
	}
	return scanSubmission(r.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
}

func (r *SubmissionsRepo) GetByReference(ctx context.Context, ref string) (submissions.Submission, error) {
	return scanSubmission(r.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE reference_number = $1`, ref))
}

func (r *SubmissionsRepo) List(ctx context.Context, f submissions.ListFilter) ([]submissions.Submission, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ClinicID != "" {
		add("clinic_id = $%d", f.ClinicID)
	}
	if f.SubmittedBy != "" {
		add("submitted_by = $%d", f.SubmittedBy)
	}
	if f.From != nil {
		add("submitted_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("submitted_at < $%d", *f.To)
	}

	q := `SELECT ` + submissionColumns + ` FROM submissions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit)
	q += fmt.Sprintf(" ORDER BY submitted_at DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]submissions.Submission, 0)
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// NextSequence: upsert con RETURNING, el lock de fila serializa envíos concurrentes del mismo año.
func (r *SubmissionsRepo) NextSequence(ctx context.Context, year int) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO submission_sequences (year, last) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last = submission_sequences.last + 1
		RETURNING last
	`, year).Scan(&n)
	return n, err
}

func scanSubmission(s rowScanner) (submissions.Submission, error) {
	var sub submissions.Submission
	var sections, viol []byte
	if err := s.Scan(
		&sub.ID, &sub.ReferenceNumber, &sub.DraftID, &sub.VisitID, &sub.ClinicID, &sub.VisitType,
		&sections, &viol, &sub.SubmittedBy, &sub.SubmittedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return submissions.Submission{}, ErrNotFound
		}
		return submissions.Submission{}, err
	}
	if err := json.Unmarshal(sections, &sub.Sections); err != nil {
		return submissions.Submission{}, fmt.Errorf("submission %s sections: %w", sub.ID, err)
	}
	if len(viol) > 0 {
		if err := json.Unmarshal(viol, &sub.Violations); err != nil {
			return submissions.Submission{}, fmt.Errorf("submission %s violations: %w", sub.ID, err)
		}
	}
	return sub, nil
}
