package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/platform/db"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Repository provides PostgreSQL backed persistence for role administration.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, display_name, description, hierarchy_level, is_system_role, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description, &role.HierarchyLevel, &role.IsSystemRole, &role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, ErrNotFound
	}
	return role, err
}

// ListRoles returns all roles ordered by hierarchy then name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY hierarchy_level DESC, name`)
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

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

// CreateRole inserts a new role with zero grants.
func (r *Repository) CreateRole(ctx context.Context, name, displayName, description string, hierarchyLevel int) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, display_name, description, hierarchy_level, is_system_role)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING `+roleColumns, name, displayName, description, hierarchyLevel))
	if isPgErr(err, pgUniqueViolation) {
		return Role{}, ErrNameTaken
	}
	return role, err
}

// UpdateRole updates mutable role attributes.
func (r *Repository) UpdateRole(ctx context.Context, id int64, displayName, description string, hierarchyLevel int) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `
		UPDATE roles
		SET display_name = $2, description = $3, hierarchy_level = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING `+roleColumns, id, displayName, description, hierarchyLevel))
}

// DeleteRole removes a role. Grants cascade via FK; user assignments must be
// revoked beforehand, which the service enforces.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountAssignments returns how many users currently hold the role.
func (r *Repository) CountAssignments(ctx context.Context, roleID int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_roles WHERE role_id = $1`, roleID).Scan(&count)
	return count, err
}

// ListGrants returns the permission rows of a role.
func (r *Repository) ListGrants(ctx context.Context, roleID int64) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT role_id, module_name, can_create, can_read, can_update, can_delete, screen_visible, created_at, updated_at
		FROM role_permissions WHERE role_id = $1 ORDER BY module_name`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.RoleID, &g.ModuleName, &g.Flags.CanCreate, &g.Flags.CanRead, &g.Flags.CanUpdate, &g.Flags.CanDelete, &g.Flags.ScreenVisible, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

const upsertGrantSQL = `
	INSERT INTO role_permissions (role_id, module_name, can_create, can_read, can_update, can_delete, screen_visible)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (role_id, module_name) DO UPDATE
	SET can_create = EXCLUDED.can_create,
	    can_read = EXCLUDED.can_read,
	    can_update = EXCLUDED.can_update,
	    can_delete = EXCLUDED.can_delete,
	    screen_visible = EXCLUDED.screen_visible,
	    updated_at = NOW()`

// UpsertGrant writes a (role, module) permission row, overwriting any
// existing row for the pair.
func (r *Repository) UpsertGrant(ctx context.Context, roleID int64, module string, flags authz.Flags) error {
	_, err := r.pool.Exec(ctx, upsertGrantSQL, roleID, module, flags.CanCreate, flags.CanRead, flags.CanUpdate, flags.CanDelete, flags.ScreenVisible)
	if isPgErr(err, pgForeignKeyViolation) {
		return ErrNotFound
	}
	return err
}

// DeleteGrant removes the (role, module) permission row entirely.
func (r *Repository) DeleteGrant(ctx context.Context, roleID int64, module string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND module_name = $2`, roleID, module)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// BulkGrant writes a uniform flag set for every given module in a single
// transaction, so a mid-way failure leaves no partial grant state.
func (r *Repository) BulkGrant(ctx context.Context, roleID int64, modules []string, flags authz.Flags) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, module := range modules {
			if _, err := tx.Exec(ctx, upsertGrantSQL, roleID, module, flags.CanCreate, flags.CanRead, flags.CanUpdate, flags.CanDelete, flags.ScreenVisible); err != nil {
				return err
			}
		}
		return nil
	})
	if isPgErr(err, pgForeignKeyViolation) {
		return ErrNotFound
	}
	return err
}

// AssignRole inserts a user-role assignment.
func (r *Repository) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, roleID)
	switch {
	case isPgErr(err, pgUniqueViolation):
		return ErrDuplicateAssignment
	case isPgErr(err, pgForeignKeyViolation):
		return ErrNotFound
	}
	return err
}

// RevokeRole deletes a user-role assignment.
func (r *Repository) RevokeRole(ctx context.Context, userID, roleID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isPgErr(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
