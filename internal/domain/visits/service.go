package visits

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("visit not found")
	ErrBadState     = errors.New("invalid visit state")
	ErrNoClinic     = errors.New("clinic not found")
)

// ClinicLookup evita importar clinics (mismo truco que OwnerOf en el resto de módulos).
type ClinicLookup interface {
	Exists(ctx context.Context, clinicID string) bool
}

type Service struct {
	repo    Repository
	clinics ClinicLookup
	now     func() time.Time
}

func NewService(repo Repository, clinics ClinicLookup) *Service {
	return &Service{
		repo:    repo,
		clinics: clinics,
		now:     time.Now,
	}
}

type CreateInput struct {
	ClinicID     string
	Type         VisitType
	ScheduledFor time.Time
	Notes        string
}

func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (Visit, error) {
	clinicID := strings.TrimSpace(in.ClinicID)
	if strings.TrimSpace(actorID) == "" || clinicID == "" {
		return Visit{}, ErrInvalidInput
	}
	if !in.Type.Valid() {
		return Visit{}, ErrInvalidInput
	}
	if s.clinics != nil && !s.clinics.Exists(ctx, clinicID) {
		return Visit{}, ErrNoClinic
	}

	now := s.now()
	scheduled := in.ScheduledFor
	if scheduled.IsZero() {
		scheduled = now
	}
	scheduled = truncateDay(scheduled)

	v := Visit{
		ID:           uuid.NewString(),
		ClinicID:     clinicID,
		Type:         in.Type,
		Status:       StatusDraft,
		ScheduledFor: scheduled,
		CreatedBy:    strings.TrimSpace(actorID),
		Notes:        strings.TrimSpace(in.Notes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return Visit{}, err
	}
	return v, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Visit, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Visit{}, ErrNotFound
	}
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Visit{}, ErrNotFound
	}
	return v, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Visit, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, ErrInvalidInput
	}
	switch filter.Status {
	case "", StatusDraft, StatusSubmitted, StatusCancelled:
	default:
		return nil, ErrInvalidInput
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

// Cancel: solo visitas en draft. Idempotente.
func (s *Service) Cancel(ctx context.Context, id string) (Visit, error) {
	v, err := s.GetByID(ctx, id)
	if err != nil {
		return Visit{}, err
	}
	if v.Status == StatusCancelled {
		return v, nil
	}
	if v.Status != StatusDraft {
		return Visit{}, ErrBadState
	}

	v.Status = StatusCancelled
	v.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, v); err != nil {
		return Visit{}, err
	}
	return v, nil
}

// MarkSubmitted lo llama submissions al archivar la inspección.
func (s *Service) MarkSubmitted(ctx context.Context, id string) (Visit, error) {
	v, err := s.GetByID(ctx, id)
	if err != nil {
		return Visit{}, err
	}
	if v.Status != StatusDraft {
		return Visit{}, ErrBadState
	}

	now := s.now()
	v.Status = StatusSubmitted
	v.UpdatedAt = now
	v.SubmittedAt = &now
	if err := s.repo.Update(ctx, v); err != nil {
		return Visit{}, err
	}
	return v, nil
}

// IsOpen: la visita existe y sigue en draft (se puede editar borrador / emitir violaciones).
func (s *Service) IsOpen(ctx context.Context, id string) (bool, error) {
	v, err := s.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return v.Status == StatusDraft, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
