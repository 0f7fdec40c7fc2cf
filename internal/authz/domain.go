// Package authz implements the module based role/permission engine: grant
// resolution, the admin override, the session permission cache and HTTP
// enforcement. The same aggregation algorithm also exists as SQL functions in
// the storage tier (see migrations); the two are kept in agreement by the
// shared test fixtures in this package.
package authz

import "time"

// AdminRoleName is the reserved role whose holders bypass grant aggregation.
const AdminRoleName = "admin"

// AdminHierarchyLevel is the hierarchy level reserved for the administrator role.
const AdminHierarchyLevel = 100

// Actions answered by permission checks.
const (
	ActionCreate  = "create"
	ActionRead    = "read"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionVisible = "visible"
)

// Role is a named bundle of per-module grants assignable to users.
type Role struct {
	ID             int64
	Name           string
	DisplayName    string
	Description    string
	HierarchyLevel int
	IsSystemRole   bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsAdmin reports whether the role is the reserved administrator role.
func (r Role) IsAdmin() bool {
	return r.Name == AdminRoleName || r.HierarchyLevel >= AdminHierarchyLevel
}

// Flags is the per-module permission tuple. ScreenVisible controls UI
// navigation exposure only; it does not gate API access.
type Flags struct {
	CanCreate     bool `json:"can_create"`
	CanRead       bool `json:"can_read"`
	CanUpdate     bool `json:"can_update"`
	CanDelete     bool `json:"can_delete"`
	ScreenVisible bool `json:"screen_visible"`
}

// Any reports whether at least one CRUD flag is set.
func (f Flags) Any() bool {
	return f.CanCreate || f.CanRead || f.CanUpdate || f.CanDelete
}

// Allows answers a single action against the tuple. Unknown actions are false.
func (f Flags) Allows(action string) bool {
	switch action {
	case ActionCreate:
		return f.CanCreate
	case ActionRead:
		return f.CanRead
	case ActionUpdate:
		return f.CanUpdate
	case ActionDelete:
		return f.CanDelete
	case ActionVisible:
		return f.ScreenVisible
	default:
		return false
	}
}

// Grant is a persisted (role, module) permission row.
type Grant struct {
	RoleID     int64
	ModuleName string
	Flags
}

// PermissionSet maps module names to resolved flags. It is always a
// projection of current role/grant state, never written back as source of
// truth. Modules absent from the map resolve to all-false.
type PermissionSet map[string]Flags

// Get returns the flags for module; absent modules are all-false.
func (p PermissionSet) Get(module string) Flags {
	return p[module]
}

// Allows answers a (module, action) point query, failing closed on anything
// unknown.
func (p PermissionSet) Allows(module, action string) bool {
	return p[module].Allows(action)
}

// FullAccess returns a set granting every flag for every given module. Used
// exclusively by the admin override so that new registry modules are covered
// without data migration.
func FullAccess(modules []string) PermissionSet {
	set := make(PermissionSet, len(modules))
	for _, m := range modules {
		set[m] = Flags{CanCreate: true, CanRead: true, CanUpdate: true, CanDelete: true, ScreenVisible: true}
	}
	return set
}

// HoldsAdmin reports whether any of the role names is the administrator role.
// It mirrors the override branch of the resolution algorithm for callers that
// only know role names, such as the session cache.
func HoldsAdmin(roleNames []string) bool {
	for _, name := range roleNames {
		if name == AdminRoleName {
			return true
		}
	}
	return false
}
