package types

import "time"

// Role is the authorization level of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleHost, RoleGuest:
		return true
	default:
		return false
	}
}

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the hex ObjectID of the user. It is also the token subject.
	ID string `json:"id" db:"id"`

	// Username is the display name chosen at registration.
	Username string `json:"username" db:"username"`

	// Email is unique across users and is the login identifier.
	Email string `json:"email" db:"email"`

	// Role decides which permissions the user holds.
	Role Role `json:"role" db:"role"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
