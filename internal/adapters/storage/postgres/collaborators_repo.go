package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"dental-inspections/internal/domain/collaborators"
)

type CollaboratorsRepo struct {
	db *sql.DB
}

func NewCollaboratorsRepo(db *sql.DB) *CollaboratorsRepo {
	return &CollaboratorsRepo{db: db}
}

const grantColumns = `id, draft_id, owner_user_id, grantee_user_id, scopes, status, created_at, updated_at, revoked_at`

func (r *CollaboratorsRepo) Create(ctx context.Context, g collaborators.Grant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO collaborator_grants (`+grantColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		g.ID,
		g.DraftID,
		g.OwnerUserID,
		g.GranteeUserID,
		scopesToTextArray(g.Scopes),
		string(g.Status),
		g.CreatedAt,
		g.UpdatedAt,
		toNullTime(g.RevokedAt),
	)
	return err
}

func (r *CollaboratorsRepo) Update(ctx context.Context, g collaborators.Grant) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE collaborator_grants
		SET
			scopes = $2,
			status = $3,
			updated_at = $4,
			revoked_at = $5
		WHERE id = $1
	`,
		g.ID,
		scopesToTextArray(g.Scopes),
		string(g.Status),
		g.UpdatedAt,
		toNullTime(g.RevokedAt),
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CollaboratorsRepo) GetByID(ctx context.Context, id string) (collaborators.Grant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return collaborators.Grant{}, ErrNotFound
	}
	return scanGrant(r.db.QueryRowContext(ctx, `SELECT `+grantColumns+` FROM collaborator_grants WHERE id = $1`, id))
}

func (r *CollaboratorsRepo) ListByDraft(ctx context.Context, draftID string) ([]collaborators.Grant, error) {
	draftID = strings.TrimSpace(draftID)
	if draftID == "" {
		return nil, nil
	}
	return r.list(ctx, `
		SELECT `+grantColumns+`
		FROM collaborator_grants
		WHERE draft_id = $1
		ORDER BY created_at ASC
	`, draftID)
}

func (r *CollaboratorsRepo) GetActiveGrant(ctx context.Context, draftID, granteeUserID string) (collaborators.Grant, error) {
	draftID = strings.TrimSpace(draftID)
	granteeUserID = strings.TrimSpace(granteeUserID)
	if draftID == "" || granteeUserID == "" {
		return collaborators.Grant{}, ErrNotFound
	}

	return scanGrant(r.db.QueryRowContext(ctx, `
		SELECT `+grantColumns+`
		FROM collaborator_grants
		WHERE draft_id = $1
		  AND grantee_user_id = $2
		  AND status = 'active'
		ORDER BY updated_at DESC
		LIMIT 1
	`, draftID, granteeUserID))
}

func (r *CollaboratorsRepo) ListByGrantee(ctx context.Context, granteeUserID string) ([]collaborators.Grant, error) {
	granteeUserID = strings.TrimSpace(granteeUserID)
	if granteeUserID == "" {
		return nil, nil
	}
	return r.list(ctx, `
		SELECT `+grantColumns+`
		FROM collaborator_grants
		WHERE grantee_user_id = $1
		ORDER BY updated_at DESC
	`, granteeUserID)
}

func (r *CollaboratorsRepo) list(ctx context.Context, q string, args ...any) ([]collaborators.Grant, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]collaborators.Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanGrant(s rowScanner) (collaborators.Grant, error) {
	var g collaborators.Grant
	var status string
	var scopes []string
	var revokedAt sql.NullTime

	if err := s.Scan(
		&g.ID,
		&g.DraftID,
		&g.OwnerUserID,
		&g.GranteeUserID,
		textArray(&scopes),
		&status,
		&g.CreatedAt,
		&g.UpdatedAt,
		&revokedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return collaborators.Grant{}, ErrNotFound
		}
		return collaborators.Grant{}, err
	}

	g.Status = collaborators.Status(status)
	g.Scopes = textArrayToScopes(scopes)
	g.RevokedAt = fromNullTime(revokedAt)
	return g, nil
}

func scopesToTextArray(in []collaborators.Scope) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}

func textArrayToScopes(in []string) []collaborators.Scope {
	out := make([]collaborators.Scope, 0, len(in))
	for _, s := range in {
		out = append(out, collaborators.Scope(s))
	}
	return out
}
