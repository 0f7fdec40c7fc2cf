package authz

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed reads for permission resolution.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RolesForUser returns every role currently assigned to the user.
func (r *Repository) RolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, r.display_name, r.description, r.hierarchy_level, r.is_system_role, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.hierarchy_level DESC, r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description, &role.HierarchyLevel, &role.IsSystemRole, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GrantsForRoles returns every permission row belonging to the given roles.
func (r *Repository) GrantsForRoles(ctx context.Context, roleIDs []int64) ([]Grant, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT role_id, module_name, can_create, can_read, can_update, can_delete, screen_visible
		FROM role_permissions
		WHERE role_id = ANY($1)
		ORDER BY role_id, module_name`, roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var grant Grant
		if err := rows.Scan(&grant.RoleID, &grant.ModuleName, &grant.CanCreate, &grant.CanRead, &grant.CanUpdate, &grant.CanDelete, &grant.ScreenVisible); err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}
