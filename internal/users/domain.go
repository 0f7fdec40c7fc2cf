// Package users provides the user directory consulted by role
// administration: listing accounts and the roles they hold.
package users

import (
	"errors"
	"time"
)

// ErrNotFound indicates the requested user does not exist.
var ErrNotFound = errors.New("users: not found")

// User represents a user account.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserWithRoles pairs an account with the names of its held roles.
type UserWithRoles struct {
	User
	Roles []string `json:"roles"`
}
