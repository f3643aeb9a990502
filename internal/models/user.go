package models

import "time"

// User represents a row in the PostgreSQL users table.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"` // bcrypt hash, never serialize
	CreatedAt time.Time `json:"created_at"`
}

// Session is the server-side record a session cookie points at. An
// anonymous session (empty UserID) exists only to bind a CSRF token to a
// visitor before they log in.
type Session struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	CSRFToken string    `json:"csrf_token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authenticated reports whether the session belongs to a logged-in user.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != ""
}

// Expired reports whether the session is past its absolute lifetime.
// The session store enforces a TTL too; this is the lazy check on access.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || now.After(s.ExpiresAt)
}

// RegisterForm is the form body for POST /register.
type RegisterForm struct {
	Username string `validate:"required,min=3,max=50,alphanum"`
	Password string `validate:"required,min=8,max=128"`
}

// LoginForm is the form body for POST /login. It is deliberately not
// validated beyond presence: any malformed submission fails with the same
// generic message as bad credentials.
type LoginForm struct {
	Username string
	Password string
}
