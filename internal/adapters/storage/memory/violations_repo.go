package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"dental-inspections/internal/domain/violations"
)

type violationRepo struct {
	mu   sync.RWMutex
	byID map[string]violations.Report
}

func NewViolationRepo() violations.Repository {
	return &violationRepo{
		byID: make(map[string]violations.Report),
	}
}

func (r *violationRepo) Create(ctx context.Context, rep violations.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(rep.ID) == "" {
		return errors.New("report id required")
	}
	if _, exists := r.byID[rep.ID]; exists {
		return errors.New("report already exists")
	}
	rep.Articles = append([]string(nil), rep.Articles...)
	r.byID[rep.ID] = rep
	return nil
}

func (r *violationRepo) GetByID(ctx context.Context, id string) (violations.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rep, ok := r.byID[id]
	if !ok {
		return violations.Report{}, ErrNotFound
	}
	return rep, nil
}

func (r *violationRepo) ListByVisit(ctx context.Context, visitID string, f violations.ListFilter) ([]violations.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make(map[violations.Kind]bool, len(f.Kinds))
	for _, k := range f.Kinds {
		kinds[k] = true
	}

	out := make([]violations.Report, 0)
	for _, rep := range r.byID {
		if rep.VisitID != visitID {
			continue
		}
		if !f.IncludeVoided && rep.Status == violations.StatusVoided {
			continue
		}
		if len(kinds) > 0 && !kinds[rep.Kind] {
			continue
		}
		out = append(out, rep)
	}

	// orden de emisión: es el orden del acta impresa
	sort.Slice(out, func(i, j int) bool {
		if out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].RecordedAt.Before(out[j].RecordedAt)
		}
		return out[i].IssuedAt.Before(out[j].IssuedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *violationRepo) Void(ctx context.Context, id, actorID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	if rep.Status == violations.StatusVoided {
		return nil
	}
	rep.Status = violations.StatusVoided
	rep.VoidedBy = actorID
	t := at
	rep.VoidedAt = &t
	r.byID[id] = rep
	return nil
}
