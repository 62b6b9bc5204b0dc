package drafts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"dental-inspections/internal/domain/collaborators"
	"dental-inspections/internal/platform/logger"
	"dental-inspections/internal/platform/metrics"
	"dental-inspections/internal/ports/auth"
	"dental-inspections/internal/realtime"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("draft not found")
	ErrForbidden    = errors.New("forbidden")
	ErrLocked       = errors.New("draft is locked")
	ErrTooLarge     = errors.New("section too large")
	ErrVisitClosed  = errors.New("visit is not open")
	ErrNoVisit      = errors.New("visit not found")
	ErrStale        = errors.New("draft changed concurrently")
)

// updateAttempts acota los reintentos de UpdateSection cuando otra escritura gana la carrera.
const updateAttempts = 5

// VisitLookup: visits.Service cumple esta interfaz.
type VisitLookup interface {
	IsOpen(ctx context.Context, visitID string) (bool, error)
}

// GrantChecker: collaborators.Service cumple esta interfaz.
type GrantChecker interface {
	Allows(ctx context.Context, draftID, userID string, scope collaborators.Scope) bool
}

type Publisher interface {
	Publish(ctx context.Context, draftID string, e realtime.Event) error
}

type Service struct {
	repo    Repository
	visits  VisitLookup
	grants  GrantChecker
	pub     Publisher
	log     logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo Repository, visits VisitLookup, grants GrantChecker) *Service {
	return &Service{
		repo:   repo,
		visits: visits,
		grants: grants,
		log:    logger.Nop(),
		now:    time.Now,
	}
}

func (s *Service) WithPublisher(p Publisher) *Service {
	s.pub = p
	return s
}

func (s *Service) WithLogger(l logger.Logger) *Service {
	if l != nil {
		s.log = l.With(map[string]any{"module": "drafts"})
	}
	return s
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// Open devuelve el borrador abierto de la visita o crea uno. created=false si ya existía.
func (s *Service) Open(ctx context.Context, visitID, actorID string) (Draft, bool, error) {
	visitID = strings.TrimSpace(visitID)
	actorID = strings.TrimSpace(actorID)
	if visitID == "" || actorID == "" {
		return Draft{}, false, ErrInvalidInput
	}

	open, err := s.visits.IsOpen(ctx, visitID)
	if err != nil {
		return Draft{}, false, ErrNoVisit
	}

	if d, err := s.repo.GetByVisit(ctx, visitID); err == nil && d.Status == StatusOpen {
		return d, false, nil
	}
	if !open {
		return Draft{}, false, ErrVisitClosed
	}

	now := s.now()
	d := Draft{
		ID:        uuid.NewString(),
		VisitID:   visitID,
		Status:    StatusOpen,
		Sections:  map[Section]json.RawMessage{},
		Version:   1,
		CreatedBy: actorID,
		UpdatedBy: actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return Draft{}, false, err
	}
	s.log.Info("draft opened", map[string]any{"draft_id": d.ID, "visit_id": visitID, "actor_id": actorID})
	return d, true, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Draft, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Draft{}, ErrNotFound
	}
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Draft{}, ErrNotFound
	}
	return d, nil
}

func (s *Service) GetByVisit(ctx context.Context, visitID string) (Draft, error) {
	visitID = strings.TrimSpace(visitID)
	if visitID == "" {
		return Draft{}, ErrNotFound
	}
	d, err := s.repo.GetByVisit(ctx, visitID)
	if err != nil {
		return Draft{}, ErrNotFound
	}
	return d, nil
}

// OwnerOf lo usa collaborators para validar quién administra el borrador.
func (s *Service) OwnerOf(ctx context.Context, draftID string) (string, error) {
	d, err := s.GetByID(ctx, draftID)
	if err != nil {
		return "", err
	}
	return d.CreatedBy, nil
}

func (s *Service) SaveSection(ctx context.Context, id string, section Section, data json.RawMessage, actorID string) (Draft, error) {
	return s.SaveSections(ctx, id, map[Section]json.RawMessage{section: data}, actorID)
}

// SaveSections escribe varias secciones en una sola versión (lote de autosave).
func (s *Service) SaveSections(ctx context.Context, id string, sections map[Section]json.RawMessage, actorID string) (Draft, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" || len(sections) == 0 {
		return Draft{}, ErrInvalidInput
	}

	clean := make(map[Section]json.RawMessage, len(sections))
	for sec, raw := range sections {
		if !sec.Valid() {
			return Draft{}, ErrInvalidInput
		}
		data, err := normalizeSection(raw)
		if err != nil {
			return Draft{}, err
		}
		clean[sec] = data
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return Draft{}, err
	}
	return s.merge(ctx, current, clean, actorID, 0)
}

// UpdateSection hace leer-modificar-escribir de una sección sin pisar escrituras concurrentes:
// si la versión cambió entre la lectura y la escritura, vuelve a leer y reaplica mutate.
func (s *Service) UpdateSection(ctx context.Context, id string, section Section, actorID string, mutate func(current json.RawMessage) (json.RawMessage, error)) (Draft, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" || !section.Valid() {
		return Draft{}, ErrInvalidInput
	}

	for attempt := 0; attempt < updateAttempts; attempt++ {
		current, err := s.GetByID(ctx, id)
		if err != nil {
			return Draft{}, err
		}
		if current.Locked() {
			return Draft{}, ErrLocked
		}

		raw, err := mutate(append(json.RawMessage(nil), current.Sections[section]...))
		if err != nil {
			return Draft{}, err
		}
		data, err := normalizeSection(raw)
		if err != nil {
			return Draft{}, err
		}

		d, err := s.merge(ctx, current, map[Section]json.RawMessage{section: data}, actorID, current.Version)
		if errors.Is(err, ErrStale) {
			continue
		}
		return d, err
	}
	return Draft{}, ErrStale
}

// merge escribe secciones ya normalizadas. expect > 0 exige que la versión no haya cambiado.
func (s *Service) merge(ctx context.Context, current Draft, clean map[Section]json.RawMessage, actorID string, expect int64) (Draft, error) {
	if current.Locked() {
		return Draft{}, ErrLocked
	}

	d, err := s.repo.MergeSections(ctx, current.ID, clean, actorID, s.now(), expect)
	if err != nil {
		// entre la lectura y la escritura alguien pudo enviar el borrador o escribir antes
		if again, gerr := s.GetByID(ctx, current.ID); gerr == nil {
			if again.Locked() {
				return Draft{}, ErrLocked
			}
			if expect > 0 && again.Version != expect {
				return Draft{}, ErrStale
			}
		}
		return Draft{}, err
	}

	names := make([]string, 0, len(clean))
	for sec := range clean {
		names = append(names, string(sec))
		if s.metrics != nil {
			s.metrics.SectionsSaved.WithLabelValues(string(sec)).Inc()
		}
	}
	sort.Strings(names)

	s.publish(ctx, realtime.Event{
		Type:     realtime.EventDraftUpdated,
		DraftID:  d.ID,
		ActorID:  actorID,
		Sections: names,
		Version:  d.Version,
		At:       d.UpdatedAt,
	})
	return d, nil
}

// FlushBatch adapta SaveSections a autosave.FlushFunc. Una sección inválida no tumba el lote:
// se descarta sola y se escriben las demás.
func (s *Service) FlushBatch(ctx context.Context, draftID, actorID string, sections map[string]json.RawMessage) error {
	in := make(map[Section]json.RawMessage, len(sections))
	var rejected []string
	for k, v := range sections {
		if err := ValidateSection(Section(k), v); err != nil {
			rejected = append(rejected, k)
			continue
		}
		in[Section(k)] = v
	}
	if len(rejected) > 0 {
		sort.Strings(rejected)
		s.log.Warn("autosave sections rejected", map[string]any{"draft_id": draftID, "actor_id": actorID, "sections": rejected})
	}
	if len(in) == 0 {
		return ErrInvalidInput
	}
	_, err := s.SaveSections(ctx, draftID, in, actorID)
	return err
}

// Discard borra un borrador abierto. Solo quien lo abrió o un supervisor.
func (s *Service) Discard(ctx context.Context, id string, actor auth.Claims) error {
	d, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if d.CreatedBy != actor.UserID && !actor.IsSupervisor() {
		return ErrForbidden
	}
	if d.Locked() {
		return ErrLocked
	}
	if err := s.repo.Delete(ctx, d.ID); err != nil {
		return err
	}
	s.log.Info("draft discarded", map[string]any{"draft_id": d.ID, "actor_id": actor.UserID})
	return nil
}

// Lock lo llama submissions al archivar.
func (s *Service) Lock(ctx context.Context, id string) (Draft, error) {
	d, err := s.GetByID(ctx, id)
	if err != nil {
		return Draft{}, err
	}
	if d.Locked() {
		return Draft{}, ErrLocked
	}
	// la fila que devuelve SetStatus es la que queda congelada, con lo último que se haya escrito
	locked, err := s.repo.SetStatus(ctx, d.ID, StatusOpen, StatusSubmitted, s.now())
	if err != nil {
		return Draft{}, ErrLocked
	}
	return locked, nil
}

// Reopen deshace Lock cuando el archivo de la inspección falla a mitad de camino.
func (s *Service) Reopen(ctx context.Context, id string) error {
	if _, err := s.repo.SetStatus(ctx, id, StatusSubmitted, StatusOpen, s.now()); err != nil {
		return fmt.Errorf("reopen draft %s: %w", id, err)
	}
	return nil
}

// CanAccess: el creador siempre; supervisor/admin siempre; el resto necesita grant activo con el scope.
func (s *Service) CanAccess(ctx context.Context, d Draft, who auth.Claims, scope collaborators.Scope) bool {
	if who.UserID == "" {
		return false
	}
	if d.CreatedBy == who.UserID || who.IsSupervisor() {
		return true
	}
	if s.grants == nil {
		return false
	}
	return s.grants.Allows(ctx, d.ID, who.UserID, scope)
}

func (s *Service) publish(ctx context.Context, e realtime.Event) {
	if s.pub == nil {
		return
	}
	if err := s.pub.Publish(ctx, e.DraftID, e); err != nil {
		s.log.Warn("realtime publish failed", map[string]any{"draft_id": e.DraftID, "type": string(e.Type), "error": err})
	}
}

// ValidateSection aplica las mismas reglas que SaveSection sin escribir nada.
func ValidateSection(section Section, data json.RawMessage) error {
	if !section.Valid() {
		return ErrInvalidInput
	}
	_, err := normalizeSection(data)
	return err
}

// normalizeSection exige un objeto JSON y lo compacta.
func normalizeSection(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) > MaxSectionBytes {
		return nil, ErrTooLarge
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, ErrInvalidInput
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, ErrInvalidInput
	}
	return buf.Bytes(), nil
}
