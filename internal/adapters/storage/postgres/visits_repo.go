package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"dental-inspections/internal/domain/visits"
)

type VisitsRepo struct {
	db *sql.DB
}

func NewVisitsRepo(db *sql.DB) *VisitsRepo {
	return &VisitsRepo{db: db}
}

const visitColumns = `id, clinic_id, type, status, scheduled_for, created_by, notes, created_at, updated_at, submitted_at`

func (r *VisitsRepo) Create(ctx context.Context, v visits.Visit) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO visits (`+visitColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		v.ID, v.ClinicID, string(v.Type), string(v.Status), v.ScheduledFor,
		v.CreatedBy, v.Notes, v.CreatedAt, v.UpdatedAt, toNullTime(v.SubmittedAt),
	)
	return err
}

func (r *VisitsRepo) Update(ctx context.Context, v visits.Visit) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE visits
		SET status = $2, notes = $3, updated_at = $4, submitted_at = $5
		WHERE id = $1
	`, v.ID, string(v.Status), v.Notes, v.UpdatedAt, toNullTime(v.SubmittedAt))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *VisitsRepo) GetByID(ctx context.Context, id string) (visits.Visit, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return visits.Visit{}, ErrNotFound
	}
	return scanVisit(r.db.QueryRowContext(ctx, `SELECT `+visitColumns+` FROM visits WHERE id = $1`, id))
}

func (r *VisitsRepo) List(ctx context.Context, f visits.ListFilter) ([]visits.Visit, error) {
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
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Type != "" {
		add("type = $%d", string(f.Type))
	}
	if f.From != nil {
		add("scheduled_for >= $%d", *f.From)
	}
	if f.To != nil {
		add("scheduled_for <= $%d", *f.To)
	}

	q := `SELECT ` + visitColumns + ` FROM visits`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit)
	q += fmt.Sprintf(" ORDER BY scheduled_for DESC, created_at DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]visits.Visit, 0)
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVisit(s rowScanner) (visits.Visit, error) {
	var v visits.Visit
	var typ, status string
	var submittedAt sql.NullTime
	if err := s.Scan(
		&v.ID, &v.ClinicID, &typ, &status, &v.ScheduledFor,
		&v.CreatedBy, &v.Notes, &v.CreatedAt, &v.UpdatedAt, &submittedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return visits.Visit{}, ErrNotFound
		}
		return visits.Visit{}, err
	}
	v.Type = visits.VisitType(typ)
	v.Status = visits.Status(status)
	v.SubmittedAt = fromNullTime(submittedAt)
	return v, nil
}
