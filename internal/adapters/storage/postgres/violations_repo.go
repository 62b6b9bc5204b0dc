package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"dental-inspections/internal/domain/violations"
)

type ViolationsRepo struct {
	db *sql.DB
}

func NewViolationsRepo(db *sql.DB) *ViolationsRepo {
	return &ViolationsRepo{db: db}
}

const reportColumns = `id, visit_id, kind, description, articles, action, issued_by, issued_at, recorded_at, status, voided_by, voided_at`

func (r *ViolationsRepo) Create(ctx context.Context, rep violations.Report) error {
	articles := rep.Articles
	if articles == nil {
		articles = []string{}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO violation_reports (`+reportColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		rep.ID, rep.VisitID, string(rep.Kind), rep.Description, articles, string(rep.Action),
		rep.IssuedBy, rep.IssuedAt, rep.RecordedAt, string(rep.Status),
		rep.VoidedBy, toNullTime(rep.VoidedAt),
	)
	return err
}

func (r *ViolationsRepo) GetByID(ctx context.Context, id string) (violations.Report, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return violations.Report{}, ErrNotFound
	}
	return scanReport(r.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM violation_reports WHERE id = $1`, id))
}

func (r *ViolationsRepo) ListByVisit(ctx context.Context, visitID string, f violations.ListFilter) ([]violations.Report, error) {
	args := []any{visitID}
	q := `SELECT ` + reportColumns + ` FROM violation_reports WHERE visit_id = $1`
	if !f.IncludeVoided {
		q += ` AND status <> 'voided'`
	}
	if len(f.Kinds) > 0 {
		kinds := make([]string, 0, len(f.Kinds))
		for _, k := range f.Kinds {
			kinds = append(kinds, string(k))
		}
		args = append(args, kinds)
		q += fmt.Sprintf(` AND kind = ANY($%d)`, len(args))
	}
	q += ` ORDER BY issued_at ASC, recorded_at ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]violations.Report, 0)
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

// Void es idempotente: un acta ya anulada conserva quién y cuándo.
func (r *ViolationsRepo) Void(ctx context.Context, id, actorID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE violation_reports
		SET status = 'voided', voided_by = $2, voided_at = $3
		WHERE id = $1 AND status <> 'voided'
	`, id, actorID, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return nil
}

func scanReport(s rowScanner) (violations.Report, error) {
	var rep violations.Report
	var kind, action, status string
	var articles []string
	var voidedAt sql.NullTime
	if err := s.Scan(
		&rep.ID, &rep.VisitID, &kind, &rep.Description, textArray(&articles), &action,
		&rep.IssuedBy, &rep.IssuedAt, &rep.RecordedAt, &status,
		&rep.VoidedBy, &voidedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return violations.Report{}, ErrNotFound
		}
		return violations.Report{}, err
	}
	rep.Kind = violations.Kind(kind)
	rep.Action = violations.Action(action)
	rep.Status = violations.Status(status)
	rep.Articles = articles
	rep.VoidedAt = fromNullTime(voidedAt)
	return rep, nil
}
