package models

import (
	"strings"
	"time"
)

// Role constants.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User owns cards and authenticates against the API.
type User struct {
	ID           int64     `db:"id" json:"-"`
	UserID       string    `db:"user_id" json:"user_id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
