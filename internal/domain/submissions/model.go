package submissions

import (
	"encoding/json"
	"fmt"
	"time"
)

// Submission es la copia archivada e inmutable del borrador al momento de enviarlo.
type Submission struct {
	ID              string
	ReferenceNumber string

	DraftID   string
	VisitID   string
	ClinicID  string
	VisitType string

	Sections   map[string]json.RawMessage
	Violations []ViolationSnapshot

	SubmittedBy string
	SubmittedAt time.Time
}

// ViolationSnapshot congela un acta vigente; anulaciones posteriores no la cambian.
type ViolationSnapshot struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	KindName    string    `json:"kind_name"`
	Description string    `json:"description"`
	Articles    []string  `json:"articles"`
	Action      string    `json:"action"`
	ActionName  string    `json:"action_name"`
	IssuedBy    string    `json:"issued_by"`
	IssuedAt    time.Time `json:"issued_at"`
}

// ReferenceNumber: MOH-DENT-2026-000123
func ReferenceNumber(year int, seq int64) string {
	return fmt.Sprintf("MOH-DENT-%d-%06d", year, seq)
}
