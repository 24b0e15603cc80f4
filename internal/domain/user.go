package domain

import "time"

type UserRole string

const (
	RoleAdmin UserRole = "Admin"
	RoleUser  UserRole = "User"
)

func (r UserRole) IsValid() bool {
	return r == RoleAdmin || r == RoleUser
}

type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name"`
	Role         UserRole   `json:"role"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// Actor is the authenticated identity a request runs as. DisplayName is the
// user's full name and is what room loans record as borrower.
type Actor struct {
	UserID      int64    `json:"user_id"`
	Role        UserRole `json:"role"`
	DisplayName string   `json:"display_name"`
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }
