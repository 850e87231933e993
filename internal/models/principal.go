package models

import "time"

// Role identifies what an authenticated principal may do.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleStaff   Role = "STAFF"
	RoleAdmin   Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// CanTriage reports whether the role may process the shared queue.
func (r Role) CanTriage() bool {
	return r == RoleStaff || r == RoleAdmin
}

// Principal is an authenticated actor. It is fixed for a session's lifetime.
type Principal struct {
	Identity string `json:"identity"`
	Role     Role   `json:"role"`
}

// Session binds an opaque token to a principal until ExpiresAt.
type Session struct {
	Token     string    `json:"token"`
	Principal Principal `json:"principal"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ExpiredAt reports whether the session is no longer live at t.
func (s *Session) ExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}
