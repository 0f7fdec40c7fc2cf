// Package auth establishes authenticated sessions. It is the identity
// provider consumed by the authorization engine: the user ID and role names
// it stores in the session are what the engine trusts.
package auth

import "time"

// User represents an account eligible to authenticate.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
