package submissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dental-inspections/internal/domain/drafts"
	"dental-inspections/internal/domain/violations"
	"dental-inspections/internal/domain/visits"
	"dental-inspections/internal/platform/logger"
	"dental-inspections/internal/platform/metrics"
	"dental-inspections/internal/realtime"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("submission not found")
	ErrIncomplete   = errors.New("draft is incomplete")
	ErrLocked       = errors.New("draft is locked")
	ErrVisitClosed  = errors.New("visit is not open")
)

// RequiredSections deben tener contenido para poder enviar.
var RequiredSections = []drafts.Section{drafts.SectionGeneral, drafts.SectionSignatures}

// IncompleteError lista las secciones que faltan. errors.Is(err, ErrIncomplete) == true.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return "draft is incomplete: missing " + strings.Join(e.Missing, ", ")
}

func (e *IncompleteError) Unwrap() error { return ErrIncomplete }

type DraftStore interface {
	GetByID(ctx context.Context, id string) (drafts.Draft, error)
	Lock(ctx context.Context, id string) (drafts.Draft, error)
	Reopen(ctx context.Context, id string) error
}

type VisitStore interface {
	GetByID(ctx context.Context, id string) (visits.Visit, error)
	MarkSubmitted(ctx context.Context, id string) (visits.Visit, error)
}

type ViolationSource interface {
	Active(ctx context.Context, visitID string) ([]violations.Report, error)
}

type Publisher interface {
	Publish(ctx context.Context, draftID string, e realtime.Event) error
}

// PendingFlusher: autosave.Debouncer cumple esta interfaz.
type PendingFlusher interface {
	FlushDraft(ctx context.Context, draftID string)
}

type Service struct {
	repo       Repository
	drafts     DraftStore
	visits     VisitStore
	violations ViolationSource

	pub      Publisher
	autosave PendingFlusher
	log      logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(repo Repository, d DraftStore, v VisitStore, viol ViolationSource) *Service {
	return &Service{
		repo:       repo,
		drafts:     d,
		visits:     v,
		violations: viol,
		log:        logger.Nop(),
		now:        time.Now,
	}
}

func (s *Service) WithPublisher(p Publisher) *Service {
	s.pub = p
	return s
}

// WithAutosave hace que Submit escriba antes las ediciones en vivo que aún no se guardaron.
func (s *Service) WithAutosave(f PendingFlusher) *Service {
	s.autosave = f
	return s
}

func (s *Service) WithLogger(l logger.Logger) *Service {
	if l != nil {
		s.log = l.With(map[string]any{"module": "submissions"})
	}
	return s
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Submit archiva el borrador: valida, congela secciones y actas, asigna número de referencia,
// bloquea el borrador y marca la visita como enviada.
func (s *Service) Submit(ctx context.Context, draftID, actorID string) (Submission, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return Submission{}, ErrInvalidInput
	}

	if s.autosave != nil {
		s.autosave.FlushDraft(ctx, draftID)
	}

	d, err := s.drafts.GetByID(ctx, draftID)
	if err != nil {
		return Submission{}, err
	}
	if d.Locked() {
		return Submission{}, ErrLocked
	}
	if err := checkComplete(d); err != nil {
		return Submission{}, err
	}

	v, err := s.visits.GetByID(ctx, d.VisitID)
	if err != nil {
		return Submission{}, err
	}
	if v.Status != visits.StatusDraft {
		return Submission{}, ErrVisitClosed
	}

	// desde aquí el borrador queda bloqueado; solo un envío concurrente gana.
	// Se archiva la fila bloqueada, no la lectura de arriba: una escritura pudo entrar en el medio.
	locked, err := s.drafts.Lock(ctx, d.ID)
	if err != nil {
		if errors.Is(err, drafts.ErrLocked) {
			return Submission{}, ErrLocked
		}
		return Submission{}, err
	}

	now := s.now().UTC()
	sub, err := s.archiveLocked(ctx, locked, v, actorID, now)
	if err != nil {
		if rerr := s.drafts.Reopen(ctx, locked.ID); rerr != nil {
			s.log.Error("reopen after failed submit", map[string]any{"draft_id": locked.ID, "error": rerr})
		}
		return Submission{}, err
	}

	if _, err := s.visits.MarkSubmitted(ctx, v.ID); err != nil {
		s.log.Warn("mark visit submitted failed", map[string]any{"visit_id": v.ID, "submission_id": sub.ID, "error": err})
	}
	if s.metrics != nil {
		s.metrics.Submissions.Inc()
	}
	s.log.Info("inspection submitted", map[string]any{
		"submission_id": sub.ID,
		"reference":     sub.ReferenceNumber,
		"draft_id":      d.ID,
		"actor_id":      actorID,
	})

	if s.pub != nil {
		e := realtime.Event{
			Type:            realtime.EventDraftSubmitted,
			DraftID:         d.ID,
			ActorID:         actorID,
			SubmissionID:    sub.ID,
			ReferenceNumber: sub.ReferenceNumber,
			At:              now,
		}
		if err := s.pub.Publish(ctx, d.ID, e); err != nil {
			s.log.Warn("realtime publish failed", map[string]any{"draft_id": d.ID, "error": err})
		}
	}
	return sub, nil
}

func checkComplete(d drafts.Draft) error {
	missing := d.Missing(RequiredSections...)
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, 0, len(missing))
	for _, m := range missing {
		names = append(names, string(m))
	}
	return &IncompleteError{Missing: names}
}

// archiveLocked revalida el borrador ya bloqueado y guarda la inspección.
func (s *Service) archiveLocked(ctx context.Context, d drafts.Draft, v visits.Visit, actorID string, now time.Time) (Submission, error) {
	if err := checkComplete(d); err != nil {
		return Submission{}, err
	}
	reports, err := s.violations.Active(ctx, v.ID)
	if err != nil {
		return Submission{}, fmt.Errorf("load violations: %w", err)
	}
	return s.archive(ctx, d, v, reports, actorID, now)
}

func (s *Service) archive(ctx context.Context, d drafts.Draft, v visits.Visit, reports []violations.Report, actorID string, now time.Time) (Submission, error) {
	year := now.Year()
	seq, err := s.repo.NextSequence(ctx, year)
	if err != nil {
		return Submission{}, fmt.Errorf("next sequence: %w", err)
	}

	sections := make(map[string]json.RawMessage, len(d.Sections))
	for k, raw := range d.Sections {
		sections[string(k)] = append(json.RawMessage(nil), raw...)
	}

	sub := Submission{
		ID:              uuid.NewString(),
		ReferenceNumber: ReferenceNumber(year, seq),
		DraftID:         d.ID,
		VisitID:         v.ID,
		ClinicID:        v.ClinicID,
		VisitType:       string(v.Type),
		Sections:        sections,
		Violations:      snapshot(reports),
		SubmittedBy:     actorID,
		SubmittedAt:     now,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Submission, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Submission{}, ErrNotFound
	}
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Submission{}, ErrNotFound
	}
	return sub, nil
}

func (s *Service) GetByReference(ctx context.Context, ref string) (Submission, error) {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if ref == "" {
		return Submission{}, ErrNotFound
	}
	sub, err := s.repo.GetByReference(ctx, ref)
	if err != nil {
		return Submission{}, ErrNotFound
	}
	return sub, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Submission, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, ErrInvalidInput
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.repo.List(ctx, filter)
}

func snapshot(reports []violations.Report) []ViolationSnapshot {
	out := make([]ViolationSnapshot, 0, len(reports))
	for _, r := range reports {
		if r.Status != violations.StatusActive {
			continue
		}
		out = append(out, ViolationSnapshot{
			ID:          r.ID,
			Kind:        string(r.Kind),
			KindName:    r.Kind.ArabicName(),
			Description: r.Description,
			Articles:    append([]string(nil), r.Articles...),
			Action:      string(r.Action),
			ActionName:  r.Action.ArabicName(),
			IssuedBy:    r.IssuedBy,
			IssuedAt:    r.IssuedAt,
		})
	}
	return out
}
