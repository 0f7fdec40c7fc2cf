package authz

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Procedures wraps the authorization functions that live inside the storage
// tier. They duplicate the resolution algorithm as SQL so row-level checks
// stay authoritative even when the application cache is stale; client-side
// predicates are advisory only.
type Procedures struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewProcedures builds a Procedures instance.
func NewProcedures(pool *pgxpool.Pool, logger *slog.Logger) *Procedures {
	return &Procedures{pool: pool, logger: logger}
}

// UserPermissions calls get_user_permissions and materialises the rows into a
// PermissionSet. Unknown users yield an empty set.
func (p *Procedures) UserPermissions(ctx context.Context, userID int64) (PermissionSet, error) {
	rows, err := p.pool.Query(ctx, `SELECT module_name, can_create, can_read, can_update, can_delete, screen_visible FROM get_user_permissions($1)`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	set := make(PermissionSet)
	for rows.Next() {
		var module string
		var flags Flags
		if err := rows.Scan(&module, &flags.CanCreate, &flags.CanRead, &flags.CanUpdate, &flags.CanDelete, &flags.ScreenVisible); err != nil {
			return nil, err
		}
		set[module] = flags
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// HasPermission answers a point query through user_has_permission. It fails
// closed: storage errors are logged and reported as denied, never surfaced as
// a fault a caller could mistake for a grant.
func (p *Procedures) HasPermission(ctx context.Context, userID int64, module, action string) bool {
	var allowed bool
	if err := p.pool.QueryRow(ctx, `SELECT user_has_permission($1, $2, $3)`, userID, module, action).Scan(&allowed); err != nil {
		if p.logger != nil {
			p.logger.Error("authz point query", slog.Int64("user_id", userID), slog.String("module", module), slog.String("action", action), slog.Any("error", err))
		}
		return false
	}
	return allowed
}
