package auth

// Role del usuario dentro del ministerio.
type Role string

const (
	RoleInspector  Role = "inspector"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// Claims representa la información extraída del token.
type Claims struct {
	UserID   string
	Email    string
	Name     string
	Role     Role
	TenantID string
}

// IsSupervisor: supervisores y admins ven/editan cualquier borrador.
func (c Claims) IsSupervisor() bool {
	return c.Role == RoleSupervisor || c.Role == RoleAdmin
}
