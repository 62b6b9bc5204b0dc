package collaborators

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrBadState     = errors.New("invalid state")
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type InviteInput struct {
	DraftID       string
	OwnerUserID   string
	GranteeUserID string
	Scopes        []Scope
}

func (s *Service) Invite(ctx context.Context, in InviteInput) (Grant, error) {
	draftID := strings.TrimSpace(in.DraftID)
	ownerID := strings.TrimSpace(in.OwnerUserID)
	granteeID := strings.TrimSpace(in.GranteeUserID)

	if draftID == "" || ownerID == "" || granteeID == "" {
		return Grant{}, ErrInvalidInput
	}
	if ownerID == granteeID {
		return Grant{}, ErrInvalidInput
	}

	// Vacío => leer + editar (el caso normal de "ayúdame con este formulario").
	var scopes []Scope
	var err error
	if len(in.Scopes) == 0 {
		scopes = []Scope{ScopeDraftRead, ScopeDraftEdit}
	} else {
		scopes, err = normalizeScopesStrict(in.Scopes)
		if err != nil {
			return Grant{}, err
		}
		if len(scopes) == 0 {
			return Grant{}, ErrInvalidInput
		}
	}

	now := s.now()

	existing, allMatches, err := s.findLatestMatch(ctx, draftID, ownerID, granteeID)
	if err == nil && existing.ID != "" && existing.Status != StatusRevoked {
		// re-invitar actualiza scopes del grant vigente y revoca duplicados
		s.revokeOtherMatches(ctx, existing.ID, allMatches, now)

		existing.Scopes = scopes
		existing.UpdatedAt = now
		if err := s.repo.Update(ctx, existing); err != nil {
			return Grant{}, err
		}
		return existing, nil
	}

	g := Grant{
		ID:            uuid.NewString(),
		DraftID:       draftID,
		OwnerUserID:   ownerID,
		GranteeUserID: granteeID,
		Scopes:        scopes,
		Status:        StatusInvited,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// Accept activa la invitación. Idempotente. Si hubiera otros grants vigentes para el mismo
// (borrador, colaborador) se revocan: queda exactamente uno activo.
func (s *Service) Accept(ctx context.Context, grantID, granteeUserID string) (Grant, error) {
	grantID = strings.TrimSpace(grantID)
	granteeUserID = strings.TrimSpace(granteeUserID)
	if grantID == "" || granteeUserID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return Grant{}, ErrNotFound
	}
	if g.GranteeUserID != granteeUserID {
		return Grant{}, ErrForbidden
	}

	switch g.Status {
	case StatusRevoked:
		return Grant{}, ErrBadState
	case StatusActive:
		return g, nil
	case StatusInvited:
	default:
		return Grant{}, ErrBadState
	}

	now := s.now()
	if _, matches, err := s.findLatestMatch(ctx, g.DraftID, g.OwnerUserID, g.GranteeUserID); err == nil {
		s.revokeOtherMatches(ctx, g.ID, matches, now)
	}

	g.Status = StatusActive
	g.UpdatedAt = now
	if err := s.repo.Update(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

func (s *Service) Revoke(ctx context.Context, grantID, ownerUserID string) (Grant, error) {
	grantID = strings.TrimSpace(grantID)
	ownerUserID = strings.TrimSpace(ownerUserID)
	if grantID == "" || ownerUserID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil {
		return Grant{}, ErrNotFound
	}
	if g.OwnerUserID != ownerUserID {
		return Grant{}, ErrForbidden
	}
	if g.Status == StatusRevoked {
		return g, nil
	}

	now := s.now()
	g.Status = StatusRevoked
	g.UpdatedAt = now
	g.RevokedAt = &now
	if err := s.repo.Update(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

func (s *Service) ListByDraft(ctx context.Context, draftID string) ([]Grant, error) {
	draftID = strings.TrimSpace(draftID)
	if draftID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByDraft(ctx, draftID)
}

func (s *Service) GetActiveGrant(ctx context.Context, draftID, granteeUserID string) (Grant, error) {
	draftID = strings.TrimSpace(draftID)
	granteeUserID = strings.TrimSpace(granteeUserID)
	if draftID == "" || granteeUserID == "" {
		return Grant{}, ErrInvalidInput
	}
	g, err := s.repo.GetActiveGrant(ctx, draftID, granteeUserID)
	if err != nil {
		return Grant{}, ErrNotFound
	}
	return g, nil
}

func (s *Service) ListByGrantee(ctx context.Context, granteeUserID string) ([]Grant, error) {
	granteeUserID = strings.TrimSpace(granteeUserID)
	if granteeUserID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByGrantee(ctx, granteeUserID)
}

// Allows: el usuario tiene grant activo con el scope sobre el borrador.
func (s *Service) Allows(ctx context.Context, draftID, userID string, scope Scope) bool {
	g, err := s.GetActiveGrant(ctx, draftID, userID)
	if err != nil {
		return false
	}
	return HasScope(g, scope)
}

// HasScope valida si el grant incluye un scope. draft:edit implica draft:read.
func HasScope(g Grant, scope Scope) bool {
	for _, s := range g.Scopes {
		if s == scope {
			return true
		}
		if scope == ScopeDraftRead && s == ScopeDraftEdit {
			return true
		}
	}
	return false
}

func (s *Service) findLatestMatch(ctx context.Context, draftID, ownerID, granteeID string) (Grant, []Grant, error) {
	items, err := s.repo.ListByDraft(ctx, draftID)
	if err != nil {
		return Grant{}, nil, err
	}

	matches := make([]Grant, 0)
	var winner Grant
	hasWinner := false
	for _, g := range items {
		if g.DraftID != draftID || g.OwnerUserID != ownerID || g.GranteeUserID != granteeID {
			continue
		}
		matches = append(matches, g)
		if !hasWinner || g.UpdatedAt.After(winner.UpdatedAt) {
			winner = g
			hasWinner = true
		}
	}

	if !hasWinner {
		return Grant{}, matches, ErrNotFound
	}
	return winner, matches, nil
}

func (s *Service) revokeOtherMatches(ctx context.Context, keepID string, matches []Grant, now time.Time) {
	for _, g := range matches {
		if g.ID == "" || g.ID == keepID || g.Status == StatusRevoked {
			continue
		}
		g.Status = StatusRevoked
		g.UpdatedAt = now
		g.RevokedAt = &now
		_ = s.repo.Update(ctx, g) // best-effort
	}
}

func normalizeScopesStrict(in []Scope) ([]Scope, error) {
	allowed := map[Scope]struct{}{
		ScopeDraftRead:   {},
		ScopeDraftEdit:   {},
		ScopeDraftSubmit: {},
	}

	seen := map[Scope]struct{}{}
	out := make([]Scope, 0, len(in))
	for _, raw := range in {
		sc := Scope(strings.TrimSpace(string(raw)))
		if sc == "" {
			continue
		}
		if _, ok := allowed[sc]; !ok {
			return nil, ErrInvalidInput
		}
		if _, ok := seen[sc]; ok {
			continue
		}
		seen[sc] = struct{}{}
		out = append(out, sc)
	}
	return out, nil
}
