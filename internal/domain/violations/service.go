package violations

import (
	"context"
	"errors"
	"strings"
	"time"

	"dental-inspections/internal/platform/metrics"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("violation report not found")
	ErrNoVisit      = errors.New("visit not found")
	ErrVisitClosed  = errors.New("visit is not open")
)

// VisitLookup: visits.Service cumple esta interfaz.
type VisitLookup interface {
	IsOpen(ctx context.Context, visitID string) (bool, error)
}

type Service struct {
	repo    Repository
	visits  VisitLookup
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo Repository, visits VisitLookup) *Service {
	return &Service{
		repo:   repo,
		visits: visits,
		now:    time.Now,
	}
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

type CreateInput struct {
	Kind        Kind
	Description string
	Articles    []string
	Action      Action
	IssuedAt    time.Time // opcional, default ahora
}

func (s *Service) Create(ctx context.Context, visitID, actorID string, in CreateInput) (Report, error) {
	visitID = strings.TrimSpace(visitID)
	actorID = strings.TrimSpace(actorID)
	if visitID == "" || actorID == "" {
		return Report{}, ErrInvalidInput
	}
	if !in.Kind.Valid() || !in.Action.Valid() {
		return Report{}, ErrInvalidInput
	}
	desc := strings.TrimSpace(in.Description)
	if in.Kind == KindOther && desc == "" {
		return Report{}, ErrInvalidInput
	}
	if err := s.requireOpenVisit(ctx, visitID); err != nil {
		return Report{}, err
	}

	now := s.now()
	issued := in.IssuedAt
	if issued.IsZero() {
		issued = now
	}

	rep := Report{
		ID:          uuid.NewString(),
		VisitID:     visitID,
		Kind:        in.Kind,
		Description: desc,
		Articles:    cleanArticles(in.Articles),
		Action:      in.Action,
		IssuedBy:    actorID,
		IssuedAt:    issued,
		RecordedAt:  now,
		Status:      StatusActive,
	}
	if err := s.repo.Create(ctx, rep); err != nil {
		return Report{}, err
	}
	if s.metrics != nil {
		s.metrics.Violations.WithLabelValues(string(rep.Kind)).Inc()
	}
	return rep, nil
}

// GetByID valida además que el acta pertenezca a la visita.
func (s *Service) GetByID(ctx context.Context, visitID, id string) (Report, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Report{}, ErrNotFound
	}
	rep, err := s.repo.GetByID(ctx, id)
	if err != nil || rep.VisitID != strings.TrimSpace(visitID) {
		return Report{}, ErrNotFound
	}
	return rep, nil
}

func (s *Service) ListByVisit(ctx context.Context, visitID string, filter ListFilter) ([]Report, error) {
	visitID = strings.TrimSpace(visitID)
	if visitID == "" {
		return nil, ErrInvalidInput
	}
	for _, k := range filter.Kinds {
		if !k.Valid() {
			return nil, ErrInvalidInput
		}
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.repo.ListByVisit(ctx, visitID, filter)
}

// Active devuelve las actas vigentes; submissions las congela al archivar.
func (s *Service) Active(ctx context.Context, visitID string) ([]Report, error) {
	return s.ListByVisit(ctx, visitID, ListFilter{Limit: 200})
}

// Void anula el acta (no se borra). Idempotente; solo mientras la visita sigue en draft.
func (s *Service) Void(ctx context.Context, visitID, id, actorID string) (Report, error) {
	rep, err := s.GetByID(ctx, visitID, id)
	if err != nil {
		return Report{}, err
	}
	if rep.Status == StatusVoided {
		return rep, nil
	}
	if err := s.requireOpenVisit(ctx, rep.VisitID); err != nil {
		return Report{}, err
	}

	now := s.now()
	if err := s.repo.Void(ctx, rep.ID, actorID, now); err != nil {
		return Report{}, err
	}
	rep.Status = StatusVoided
	rep.VoidedBy = actorID
	rep.VoidedAt = &now
	return rep, nil
}

func (s *Service) requireOpenVisit(ctx context.Context, visitID string) error {
	if s.visits == nil {
		return nil
	}
	open, err := s.visits.IsOpen(ctx, visitID)
	if err != nil {
		return ErrNoVisit
	}
	if !open {
		return ErrVisitClosed
	}
	return nil
}

func cleanArticles(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, a := range in {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
