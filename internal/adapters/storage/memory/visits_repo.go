package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"dental-inspections/internal/domain/visits"
)

type visitRepo struct {
	mu   sync.RWMutex
	byID map[string]visits.Visit
}

func NewVisitRepo() visits.Repository {
	return &visitRepo{
		byID: make(map[string]visits.Visit),
	}
}

func (r *visitRepo) Create(ctx context.Context, v visits.Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(v.ID) == "" {
		return errors.New("visit id required")
	}
	if _, exists := r.byID[v.ID]; exists {
		return errors.New("visit already exists")
	}
	r.byID[v.ID] = v
	return nil
}

func (r *visitRepo) Update(ctx context.Context, v visits.Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[v.ID]; !exists {
		return ErrNotFound
	}
	r.byID[v.ID] = v
	return nil
}

func (r *visitRepo) GetByID(ctx context.Context, id string) (visits.Visit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.byID[id]
	if !ok {
		return visits.Visit{}, ErrNotFound
	}
	return v, nil
}

func (r *visitRepo) List(ctx context.Context, f visits.ListFilter) ([]visits.Visit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]visits.Visit, 0)
	for _, v := range r.byID {
		if f.ClinicID != "" && v.ClinicID != f.ClinicID {
			continue
		}
		if f.Status != "" && v.Status != f.Status {
			continue
		}
		if f.Type != "" && v.Type != f.Type {
			continue
		}
		if f.From != nil && v.ScheduledFor.Before(*f.From) {
			continue
		}
		if f.To != nil && v.ScheduledFor.After(*f.To) {
			continue
		}
		out = append(out, v)
	}

	// más recientes primero
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledFor.Equal(out[j].ScheduledFor) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ScheduledFor.After(out[j].ScheduledFor)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
