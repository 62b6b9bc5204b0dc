package capabilities

import (
	"context"

	"dental-inspections/internal/ports/auth"
)

type Capability string

const (
	ClinicsWrite      Capability = "clinics:write"
	VisitsWrite       Capability = "visits:write"
	InspectionsSubmit Capability = "inspections:submit"
	InspectionsPrint  Capability = "inspections:print"
	ViolationsIssue   Capability = "violations:issue"
	ViolationsVoid    Capability = "violations:void"
)

type CapabilityCheck struct {
	UserID     string
	Role       auth.Role
	Capability Capability
}

type CapabilitiesResolver interface {
	HasFeature(ctx context.Context, in CapabilityCheck) (bool, error)
}
