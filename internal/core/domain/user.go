package domain

import "time"

// Role defines the authorization level of an operator account.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// User is an operator of the control plane, not a managed device.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	LastLogin    time.Time `json:"last_login,omitempty"`
}

// CanApprove reports whether the role may decide admission requests.
func (u *User) CanApprove() bool {
	return u.Role == RoleAdmin || u.Role == RoleOperator
}

// Credentials is the login request DTO.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
