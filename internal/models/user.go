package models

import (
	"time"
)

// Role determines which API capabilities a user holds
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// CanOperate reports whether the role may issue device commands.
func (r Role) CanOperate() bool {
	return r == RoleAdmin || r == RoleOperator
}

// User represents a system user
type User struct {
	BaseModel

	Email     string `json:"email" db:"email"`
	Username  string `json:"username" db:"username"`
	FirstName string `json:"firstName" db:"first_name"`
	LastName  string `json:"lastName" db:"last_name"`

	PasswordHash string `json:"-" db:"password_hash"`

	Role     Role `json:"role" db:"role"`
	IsActive bool `json:"isActive" db:"is_active"`

	LastLoginAt *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`
}
