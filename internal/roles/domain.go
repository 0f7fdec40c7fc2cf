// Package roles implements the role administration workflows: role
// lifecycle, per-module grants, and user-role assignment.
package roles

import (
	"errors"
	"time"

	"github.com/meridian-crm/meridian-crm/internal/authz"
)

// Sentinel errors surfaced by administration workflows. Unlike resolution,
// administration must tell the caller exactly why an action did not take
// effect.
var (
	ErrNotFound            = errors.New("roles: not found")
	ErrNameTaken           = errors.New("roles: role name already exists")
	ErrSystemRole          = errors.New("roles: system role cannot be modified or deleted")
	ErrRoleInUse           = errors.New("roles: role is still assigned to users")
	ErrDuplicateAssignment = errors.New("roles: role already assigned to user")
	ErrUnknownModule       = errors.New("roles: unknown module")
	ErrReservedHierarchy   = errors.New("roles: hierarchy level is reserved for the administrator role")
	ErrInvalidName         = errors.New("roles: invalid role name")
)

// Role is a role with administration metadata.
type Role struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	DisplayName    string    `json:"display_name"`
	Description    string    `json:"description"`
	HierarchyLevel int       `json:"hierarchy_level"`
	IsSystemRole   bool      `json:"is_system_role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Grant is a per-(role, module) permission row as managed by administrators.
type Grant struct {
	RoleID     int64       `json:"role_id"`
	ModuleName string      `json:"module_name"`
	Flags      authz.Flags `json:"flags"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Assignment links a user to a role.
type Assignment struct {
	UserID    int64     `json:"user_id"`
	RoleID    int64     `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}
