package collaborators

import "time"

type Scope string

const (
	ScopeDraftRead   Scope = "draft:read"
	ScopeDraftEdit   Scope = "draft:edit"
	ScopeDraftSubmit Scope = "draft:submit"
)

type Status string

const (
	StatusInvited Status = "invited"
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// Grant habilita a otro inspector a trabajar sobre un borrador ajeno.
type Grant struct {
	ID string

	DraftID string

	OwnerUserID   string // quien abrió el borrador
	GranteeUserID string // colaborador

	Scopes []Scope
	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}
