// Package team manages the user accounts that operate the shop. Users are
// soft-deactivated, never deleted: audit rows and ledger created_by columns
// keep pointing at them.
package team

import "time"

// Role controls what a user may do. Enforcement happens at the router.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStaff:
		return true
	}
	return false
}

// User is an operator account. PasswordHash never leaves the package.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateUserInput carries the fields needed to open an account.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     Role
}

// UpdateUserInput changes profile fields; the password has its own flow.
type UpdateUserInput struct {
	ID    int64
	Name  string
	Email string
	Role  Role
}
