package drafts

import (
	"encoding/json"
	"time"
)

type Section string

const (
	SectionGeneral       Section = "general"
	SectionClinicHygiene Section = "clinic_hygiene"
	SectionSterilization Section = "sterilization"
	SectionXRay          Section = "xray"
	SectionLab           Section = "lab"
	SectionStaff         Section = "staff"
	SectionFiles         Section = "files"
	SectionViolations    Section = "violations"
	SectionSignatures    Section = "signatures"
	SectionNotes         Section = "notes"
)

// Sections en el orden del formulario impreso.
var Sections = []Section{
	SectionGeneral,
	SectionClinicHygiene,
	SectionSterilization,
	SectionXRay,
	SectionLab,
	SectionStaff,
	SectionFiles,
	SectionViolations,
	SectionSignatures,
	SectionNotes,
}

func (s Section) Valid() bool {
	for _, known := range Sections {
		if s == known {
			return true
		}
	}
	return false
}

func (s Section) ArabicName() string {
	switch s {
	case SectionGeneral:
		return "البيانات العامة"
	case SectionClinicHygiene:
		return "نظافة العيادة"
	case SectionSterilization:
		return "التعقيم"
	case SectionXRay:
		return "الأشعة"
	case SectionLab:
		return "المختبر"
	case SectionStaff:
		return "الكادر الطبي"
	case SectionFiles:
		return "الملفات والسجلات"
	case SectionViolations:
		return "المخالفات"
	case SectionSignatures:
		return "التواقيع"
	case SectionNotes:
		return "ملاحظات"
	default:
		return string(s)
	}
}

type Status string

const (
	StatusOpen      Status = "open"
	StatusSubmitted Status = "submitted"
)

// MaxSectionBytes limita el JSON de una sección (las firmas viajan como data URL dentro).
const MaxSectionBytes = 1 << 20

// Draft es el formulario de inspección en curso de una visita.
// Cada sección se guarda entera: la última escritura gana.
type Draft struct {
	ID      string
	VisitID string
	Status  Status

	Sections map[Section]json.RawMessage
	Version  int64

	CreatedBy string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (d Draft) Locked() bool {
	return d.Status != StatusOpen
}

// Missing devuelve las secciones requeridas que aún no tienen contenido.
func (d Draft) Missing(required ...Section) []Section {
	var out []Section
	for _, s := range required {
		raw, ok := d.Sections[s]
		if !ok || isEmptyObject(raw) {
			out = append(out, s)
		}
	}
	return out
}

func isEmptyObject(raw json.RawMessage) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return true
	}
	return len(m) == 0
}
