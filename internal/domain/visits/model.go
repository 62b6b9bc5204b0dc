package visits

import "time"

// VisitType es el tipo de encuentro con la clínica.
type VisitType string

const (
	TypeInspection VisitType = "inspection"
	TypeResponse   VisitType = "response" // respuesta de la clínica a una inspección previa
	TypeFollowUp   VisitType = "follow_up"
	TypeComplaint  VisitType = "complaint"
)

func (t VisitType) Valid() bool {
	switch t {
	case TypeInspection, TypeResponse, TypeFollowUp, TypeComplaint:
		return true
	}
	return false
}

func (t VisitType) ArabicName() string {
	switch t {
	case TypeInspection:
		return "تفتيش"
	case TypeResponse:
		return "رد"
	case TypeFollowUp:
		return "متابعة"
	case TypeComplaint:
		return "شكوى"
	}
	return string(t)
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusCancelled Status = "cancelled"
)

type Visit struct {
	ID       string
	ClinicID string

	Type   VisitType
	Status Status

	ScheduledFor time.Time // fecha (medianoche UTC)
	CreatedBy    string
	Notes        string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	SubmittedAt *time.Time
}
