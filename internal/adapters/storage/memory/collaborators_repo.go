package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"dental-inspections/internal/domain/collaborators"
)

type grantRepo struct {
	mu   sync.RWMutex
	byID map[string]collaborators.Grant
}

func NewCollaboratorRepo() collaborators.Repository {
	return &grantRepo{
		byID: make(map[string]collaborators.Grant),
	}
}

func (r *grantRepo) Create(ctx context.Context, g collaborators.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g.ID == "" {
		return errors.New("grant id required")
	}
	if _, exists := r.byID[g.ID]; exists {
		return errors.New("grant already exists")
	}
	r.byID[g.ID] = g
	return nil
}

func (r *grantRepo) Update(ctx context.Context, g collaborators.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[g.ID]; !exists {
		return ErrNotFound
	}
	r.byID[g.ID] = g
	return nil
}

func (r *grantRepo) GetByID(ctx context.Context, id string) (collaborators.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.byID[id]
	if !ok {
		return collaborators.Grant{}, ErrNotFound
	}
	return g, nil
}

func (r *grantRepo) ListByDraft(ctx context.Context, draftID string) ([]collaborators.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]collaborators.Grant, 0)
	for _, g := range r.byID {
		if g.DraftID == draftID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Si por data sucia hubiera varios activos, gana el de UpdatedAt más reciente.
func (r *grantRepo) GetActiveGrant(ctx context.Context, draftID, granteeUserID string) (collaborators.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var winner collaborators.Grant
	has := false
	for _, g := range r.byID {
		if g.DraftID != draftID || g.GranteeUserID != granteeUserID {
			continue
		}
		if g.Status != collaborators.StatusActive {
			continue
		}
		if !has || g.UpdatedAt.After(winner.UpdatedAt) ||
			(g.UpdatedAt.Equal(winner.UpdatedAt) && g.CreatedAt.After(winner.CreatedAt)) {
			winner = g
			has = true
		}
	}

	if !has {
		return collaborators.Grant{}, ErrNotFound
	}
	return winner, nil
}

func (r *grantRepo) ListByGrantee(ctx context.Context, granteeUserID string) ([]collaborators.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]collaborators.Grant, 0)
	for _, g := range r.byID {
		if g.GranteeUserID == granteeUserID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}
