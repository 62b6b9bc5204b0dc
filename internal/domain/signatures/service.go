package signatures

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"dental-inspections/internal/domain/drafts"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnknownRole  = errors.New("unknown signature role")
)

type Role string

const (
	RoleInspector     Role = "inspector"
	RoleClinicManager Role = "clinic_manager"
	RoleClinicStamp   Role = "clinic_stamp"
	RoleSupervisor    Role = "supervisor"
)

// Roles en el orden del bloque de firmas impreso.
var Roles = []Role{RoleInspector, RoleClinicManager, RoleClinicStamp, RoleSupervisor}

func (r Role) Valid() bool {
	for _, k := range Roles {
		if r == k {
			return true
		}
	}
	return false
}

func (r Role) ArabicName() string {
	switch r {
	case RoleInspector:
		return "توقيع المفتش"
	case RoleClinicManager:
		return "توقيع مدير العيادة"
	case RoleClinicStamp:
		return "ختم العيادة"
	case RoleSupervisor:
		return "توقيع المشرف"
	default:
		return string(r)
	}
}

// Entry es lo que queda guardado en la sección signatures bajo la clave del rol.
type Entry struct {
	Image      string    `json:"image"`
	SignerName string    `json:"signer_name,omitempty"`
	SignedBy   string    `json:"signed_by"`
	SignedAt   time.Time `json:"signed_at"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
}

// DraftWriter: drafts.Service cumple esta interfaz.
// UpdateSection reaplica mutate si otra escritura cambió el borrador en el medio.
type DraftWriter interface {
	UpdateSection(ctx context.Context, id string, section drafts.Section, actorID string, mutate func(current json.RawMessage) (json.RawMessage, error)) (drafts.Draft, error)
}

type Service struct {
	drafts DraftWriter
	now    func() time.Time
}

func NewService(d DraftWriter) *Service {
	return &Service{drafts: d, now: time.Now}
}

type SignInput struct {
	DraftID    string
	Role       Role
	Image      string
	SignerName string
	ActorID    string
}

// Sign procesa la imagen y la guarda en la sección signatures bajo la clave del rol;
// las firmas de otros roles, aunque lleguen a la vez, se conservan.
func (s *Service) Sign(ctx context.Context, in SignInput) (drafts.Draft, Entry, error) {
	if strings.TrimSpace(in.ActorID) == "" || strings.TrimSpace(in.DraftID) == "" {
		return drafts.Draft{}, Entry{}, ErrInvalidInput
	}
	if !in.Role.Valid() {
		return drafts.Draft{}, Entry{}, ErrUnknownRole
	}

	img, err := Process(in.Image)
	if err != nil {
		return drafts.Draft{}, Entry{}, err
	}

	entry := Entry{
		Image:      img.DataURL,
		SignerName: strings.TrimSpace(in.SignerName),
		SignedBy:   in.ActorID,
		SignedAt:   s.now(),
		Width:      img.Width,
		Height:     img.Height,
	}

	d, err := s.update(ctx, in.DraftID, in.ActorID, func(m map[string]json.RawMessage) error {
		raw, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		m[string(in.Role)] = raw
		return nil
	})
	if err != nil {
		return drafts.Draft{}, Entry{}, err
	}
	return d, entry, nil
}

// Clear quita la firma de un rol. Si no existía no hace nada.
func (s *Service) Clear(ctx context.Context, draftID string, role Role, actorID string) (drafts.Draft, error) {
	if !role.Valid() {
		return drafts.Draft{}, ErrUnknownRole
	}
	return s.update(ctx, draftID, actorID, func(m map[string]json.RawMessage) error {
		delete(m, string(role))
		return nil
	})
}

func (s *Service) update(ctx context.Context, draftID, actorID string, mutate func(map[string]json.RawMessage) error) (drafts.Draft, error) {
	return s.drafts.UpdateSection(ctx, draftID, drafts.SectionSignatures, actorID, func(raw json.RawMessage) (json.RawMessage, error) {
		current := map[string]json.RawMessage{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &current); err != nil {
				// sección corrupta: se reescribe desde cero
				current = map[string]json.RawMessage{}
			}
		}
		if err := mutate(current); err != nil {
			return nil, err
		}
		return json.Marshal(current)
	})
}

// Decode lee la sección signatures de un borrador o una inspección archivada.
func Decode(raw json.RawMessage) map[Role]Entry {
	out := map[Role]Entry{}
	if len(raw) == 0 {
		return out
	}
	var m map[string]Entry
	if err := json.Unmarshal(raw, &m); err != nil {
		return out
	}
	for k, v := range m {
		out[Role(k)] = v
	}
	return out
}
