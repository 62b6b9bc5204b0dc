package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"dental-inspections/internal/domain/clinics"
)

type clinicRepo struct {
	mu        sync.RWMutex
	byID      map[string]clinics.Clinic
	byLicense map[string]string
}

func NewClinicRepo() clinics.Repository {
	return &clinicRepo{
		byID:      make(map[string]clinics.Clinic),
		byLicense: make(map[string]string),
	}
}

func (r *clinicRepo) Create(ctx context.Context, c clinics.Clinic) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(c.ID) == "" {
		return errors.New("clinic id required")
	}
	if _, exists := r.byID[c.ID]; exists {
		return errors.New("clinic already exists")
	}
	if _, taken := r.byLicense[c.LicenseNumber]; taken {
		return ErrConflict
	}
	r.byID[c.ID] = c
	r.byLicense[c.LicenseNumber] = c.ID
	return nil
}

func (r *clinicRepo) Update(ctx context.Context, c clinics.Clinic) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.byID[c.ID]
	if !ok {
		return ErrNotFound
	}
	// la licencia no cambia por Update
	c.LicenseNumber = prev.LicenseNumber
	r.byID[c.ID] = c
	return nil
}

func (r *clinicRepo) GetByID(ctx context.Context, id string) (clinics.Clinic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return clinics.Clinic{}, ErrNotFound
	}
	return c, nil
}

func (r *clinicRepo) GetByLicense(ctx context.Context, license string) (clinics.Clinic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byLicense[license]
	if !ok {
		return clinics.Clinic{}, ErrNotFound
	}
	return r.byID[id], nil
}

func (r *clinicRepo) List(ctx context.Context, f clinics.ListFilter) ([]clinics.Clinic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(f.Query)
	out := make([]clinics.Clinic, 0)
	for _, c := range r.byID {
		if f.Governorate != "" && c.Governorate != f.Governorate {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(c.Name), q) &&
			!strings.Contains(strings.ToLower(c.LicenseNumber), q) &&
			!strings.Contains(strings.ToLower(c.Area), q) {
			continue
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
