package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"dental-inspections/internal/domain/drafts"
)

type DraftsRepo struct {
	db *sql.DB
}

func NewDraftsRepo(db *sql.DB) *DraftsRepo {
	return &DraftsRepo{db: db}
}

const draftColumns = `id, visit_id, status, sections, version, created_by, updated_by, created_at, updated_at`

func (r *DraftsRepo) Create(ctx context.Context, d drafts.Draft) error {
	sections, err := encodeSections(d.Sections)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO drafts (`+draftColumns+`)
		VALUES ($1,$2,$3,$4::jsonb,$5,$6,$7,$8,$9)
	`,
		d.ID, d.VisitID, string(d.Status), sections, d.Version,
		d.CreatedBy, d.UpdatedBy, d.CreatedAt, d.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *DraftsRepo) GetByID(ctx context.Context, id string) (drafts.Draft, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return drafts.Draft{}, ErrNotFound
	}
	return scanDraft(r.db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id = $1`, id))
}

func (r *DraftsRepo) GetByVisit(ctx context.Context, visitID string) (drafts.Draft, error) {
	return scanDraft(r.db.QueryRowContext(ctx, `
		SELECT `+draftColumns+`
		FROM drafts
		WHERE visit_id = $1
		ORDER BY (status = 'open') DESC, updated_at DESC
		LIMIT 1
	`, visitID))
}

// MergeSections usa el operador || de jsonb: las claves nuevas pisan las viejas en una sola sentencia.
// Con expectVersion > 0 el WHERE también exige la versión leída (sin fila = otro escribió antes).
func (r *DraftsRepo) MergeSections(ctx context.Context, id string, sections map[drafts.Section]json.RawMessage, actorID string, at time.Time, expectVersion int64) (drafts.Draft, error) {
	patch, err := encodeSections(sections)
	if err != nil {
		return drafts.Draft{}, err
	}
	return scanDraft(r.db.QueryRowContext(ctx, `
		UPDATE drafts
		SET sections = sections || $2::jsonb,
			version = version + 1,
			updated_by = $3,
			updated_at = $4
		WHERE id = $1 AND status = 'open' AND ($5::bigint = 0 OR version = $5::bigint)
		RETURNING `+draftColumns,
		id, patch, actorID, at, expectVersion,
	))
}

func (r *DraftsRepo) SetStatus(ctx context.Context, id string, from, to drafts.Status, at time.Time) (drafts.Draft, error) {
	d, err := scanDraft(r.db.QueryRowContext(ctx, `
		UPDATE drafts SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING `+draftColumns,
		id, string(from), string(to), at,
	))
	if isUniqueViolation(err) {
		return drafts.Draft{}, ErrConflict
	}
	return d, err
}

func (r *DraftsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeSections(in map[drafts.Section]json.RawMessage) (string, error) {
	if len(in) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func scanDraft(s rowScanner) (drafts.Draft, error) {
	var d drafts.Draft
	var status string
	var sections []byte
	if err := s.Scan(
		&d.ID, &d.VisitID, &status, &sections, &d.Version,
		&d.CreatedBy, &d.UpdatedBy, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return drafts.Draft{}, ErrNotFound
		}
		return drafts.Draft{}, err
	}
	d.Status = drafts.Status(status)
	d.Sections = map[drafts.Section]json.RawMessage{}
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &d.Sections); err != nil {
			return drafts.Draft{}, err
		}
	}
	return d, nil
}
