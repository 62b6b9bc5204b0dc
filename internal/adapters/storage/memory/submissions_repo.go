package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"dental-inspections/internal/domain/submissions"
)

type submissionRepo struct {
	mu    sync.RWMutex
	byID  map[string]submissions.Submission
	byRef map[string]string
	seq   map[int]int64
}

func NewSubmissionRepo() submissions.Repository {
	return &submissionRepo{
		byID:  make(map[string]submissions.Submission),
		byRef: make(map[string]string),
		seq:   make(map[int]int64),
	}
}

func (r *submissionRepo) Create(ctx context.Context, s submissions.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(s.ID) == "" || strings.TrimSpace(s.ReferenceNumber) == "" {
		return errors.New("submission id and reference required")
	}
	if _, exists := r.byID[s.ID]; exists {
		return errors.New("submission already exists")
	}
	if _, taken := r.byRef[s.ReferenceNumber]; taken {
		return ErrConflict
	}
	r.byID[s.ID] = s
	r.byRef[s.ReferenceNumber] = s.ID
	return nil
}

func (r *submissionRepo) GetByID(ctx context.Context, id string) (submissions.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[id]
	if !ok {
		return submissions.Submission{}, ErrNotFound
	}
	return s, nil
}

func (r *submissionRepo) GetByReference(ctx context.Context, ref string) (submissions.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byRef[ref]
	if !ok {
		return submissions.Submission{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *submissionRepo) List(ctx context.Context, f submissions.ListFilter) ([]submissions.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]submissions.Submission, 0)
	for _, s := range r.byID {
		if f.ClinicID != "" && s.ClinicID != f.ClinicID {
			continue
		}
		if f.SubmittedBy != "" && s.SubmittedBy != f.SubmittedBy {
			continue
		}
		if f.From != nil && s.SubmittedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !s.SubmittedAt.Before(*f.To) {
			continue
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *submissionRepo) NextSequence(ctx context.Context, year int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq[year]++
	return r.seq[year], nil
}
