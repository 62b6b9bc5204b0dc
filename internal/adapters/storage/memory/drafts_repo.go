package memory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"dental-inspections/internal/domain/drafts"
)

type draftRepo struct {
	mu   sync.RWMutex
	byID map[string]drafts.Draft
}

func NewDraftRepo() drafts.Repository {
	return &draftRepo{
		byID: make(map[string]drafts.Draft),
	}
}

// cloneDraft copia el mapa de secciones para que nadie mute el estado guardado.
func cloneDraft(d drafts.Draft) drafts.Draft {
	sections := make(map[drafts.Section]json.RawMessage, len(d.Sections))
	for k, v := range d.Sections {
		sections[k] = append(json.RawMessage(nil), v...)
	}
	d.Sections = sections
	return d
}

func (r *draftRepo) Create(ctx context.Context, d drafts.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(d.ID) == "" {
		return errors.New("draft id required")
	}
	if _, exists := r.byID[d.ID]; exists {
		return errors.New("draft already exists")
	}
	if d.Status == drafts.StatusOpen {
		for _, other := range r.byID {
			if other.VisitID == d.VisitID && other.Status == drafts.StatusOpen {
				return ErrConflict
			}
		}
	}
	r.byID[d.ID] = cloneDraft(d)
	return nil
}

func (r *draftRepo) GetByID(ctx context.Context, id string) (drafts.Draft, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byID[id]
	if !ok {
		return drafts.Draft{}, ErrNotFound
	}
	return cloneDraft(d), nil
}

func (r *draftRepo) GetByVisit(ctx context.Context, visitID string) (drafts.Draft, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest drafts.Draft
	has := false
	for _, d := range r.byID {
		if d.VisitID != visitID {
			continue
		}
		if d.Status == drafts.StatusOpen {
			return cloneDraft(d), nil
		}
		if !has || d.UpdatedAt.After(latest.UpdatedAt) {
			latest = d
			has = true
		}
	}
	if !has {
		return drafts.Draft{}, ErrNotFound
	}
	return cloneDraft(latest), nil
}

func (r *draftRepo) MergeSections(ctx context.Context, id string, sections map[drafts.Section]json.RawMessage, actorID string, at time.Time, expectVersion int64) (drafts.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byID[id]
	if !ok || d.Status != drafts.StatusOpen {
		return drafts.Draft{}, ErrNotFound
	}
	if expectVersion > 0 && d.Version != expectVersion {
		return drafts.Draft{}, ErrNotFound
	}
	d = cloneDraft(d)
	for k, v := range sections {
		d.Sections[k] = append(json.RawMessage(nil), v...)
	}
	d.Version++
	d.UpdatedBy = actorID
	d.UpdatedAt = at
	r.byID[id] = d
	return cloneDraft(d), nil
}

func (r *draftRepo) SetStatus(ctx context.Context, id string, from, to drafts.Status, at time.Time) (drafts.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.byID[id]
	if !ok || d.Status != from {
		return drafts.Draft{}, ErrNotFound
	}
	if to == drafts.StatusOpen {
		for otherID, other := range r.byID {
			if otherID != id && other.VisitID == d.VisitID && other.Status == drafts.StatusOpen {
				return drafts.Draft{}, ErrConflict
			}
		}
	}
	d.Status = to
	d.UpdatedAt = at
	r.byID[id] = d
	return cloneDraft(d), nil
}

func (r *draftRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}
