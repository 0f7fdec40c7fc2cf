package roles

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/registry"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// RepositoryPort defines data access methods for role administration.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, name, displayName, description string, hierarchyLevel int) (Role, error)
	UpdateRole(ctx context.Context, id int64, displayName, description string, hierarchyLevel int) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	CountAssignments(ctx context.Context, roleID int64) (int64, error)
	ListGrants(ctx context.Context, roleID int64) ([]Grant, error)
	UpsertGrant(ctx context.Context, roleID int64, module string, flags authz.Flags) error
	DeleteGrant(ctx context.Context, roleID int64, module string) error
	BulkGrant(ctx context.Context, roleID int64, modules []string, flags authz.Flags) error
	AssignRole(ctx context.Context, userID, roleID int64) error
	RevokeRole(ctx context.Context, userID, roleID int64) error
}

// Auditor records administration actions.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles role administration business rules.
type Service struct {
	repo    RepositoryPort
	auditor Auditor
	logger  *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, auditor Auditor, logger *slog.Logger) *Service {
	return &Service{repo: repo, auditor: auditor, logger: logger}
}

// CreateRoleInput carries attributes for role creation.
type CreateRoleInput struct {
	Name           string
	DisplayName    string
	Description    string
	HierarchyLevel int
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole returns a role together with its grants.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, []Grant, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, nil, err
	}
	grants, err := s.repo.ListGrants(ctx, id)
	if err != nil {
		return Role{}, nil, err
	}
	return role, grants, nil
}

// CreateRole creates a role with zero grants. Names must be unique; the
// hierarchy level reserved for the administrator role is rejected.
func (s *Service) CreateRole(ctx context.Context, actorID int64, in CreateRoleInput) (Role, error) {
	if err := validateName(in.Name); err != nil {
		return Role{}, err
	}
	if in.HierarchyLevel >= authz.AdminHierarchyLevel {
		return Role{}, ErrReservedHierarchy
	}
	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = registry.DisplayName(in.Name)
	}
	role, err := s.repo.CreateRole(ctx, in.Name, displayName, strings.TrimSpace(in.Description), in.HierarchyLevel)
	if err != nil {
		return Role{}, err
	}
	s.audit(ctx, actorID, "role.create", "role", role.ID, map[string]any{"name": role.Name})
	return role, nil
}

// UpdateRole updates display attributes of a non-system role.
func (s *Service) UpdateRole(ctx context.Context, actorID, id int64, displayName, description string, hierarchyLevel int) (Role, error) {
	existing, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if existing.IsSystemRole {
		return Role{}, ErrSystemRole
	}
	if hierarchyLevel >= authz.AdminHierarchyLevel {
		return Role{}, ErrReservedHierarchy
	}
	role, err := s.repo.UpdateRole(ctx, id, strings.TrimSpace(displayName), strings.TrimSpace(description), hierarchyLevel)
	if err != nil {
		return Role{}, err
	}
	s.audit(ctx, actorID, "role.update", "role", role.ID, map[string]any{"name": role.Name})
	return role, nil
}

// DeleteRole removes a role. System roles and roles still held by users are
// rejected with distinguishable errors; the caller must revoke assignments
// first. Grant rows cascade with the role.
func (s *Service) DeleteRole(ctx context.Context, actorID, id int64) error {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return ErrSystemRole
	}
	assigned, err := s.repo.CountAssignments(ctx, id)
	if err != nil {
		return err
	}
	if assigned > 0 {
		return ErrRoleInUse
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, actorID, "role.delete", "role", id, map[string]any{"name": role.Name})
	return nil
}

// SetPermission upserts the (role, module) grant. Writing all-false flags is
// a first-class operation distinct from removing the row.
func (s *Service) SetPermission(ctx context.Context, actorID, roleID int64, module string, flags authz.Flags) error {
	if !registry.IsKnown(module) {
		return ErrUnknownModule
	}
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.repo.UpsertGrant(ctx, roleID, module, flags); err != nil {
		return err
	}
	s.audit(ctx, actorID, "role.grant", "role", roleID, map[string]any{"module": module, "flags": flags})
	return nil
}

// RevokePermission deletes the (role, module) grant row.
func (s *Service) RevokePermission(ctx context.Context, actorID, roleID int64, module string) error {
	if !registry.IsKnown(module) {
		return ErrUnknownModule
	}
	if err := s.repo.DeleteGrant(ctx, roleID, module); err != nil {
		return err
	}
	s.audit(ctx, actorID, "role.revoke_grant", "role", roleID, map[string]any{"module": module})
	return nil
}

// BulkGrant applies a uniform flag set to every registry module atomically.
func (s *Service) BulkGrant(ctx context.Context, actorID, roleID int64, flags authz.Flags) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	if err := s.repo.BulkGrant(ctx, roleID, registry.All(), flags); err != nil {
		return err
	}
	s.audit(ctx, actorID, "role.bulk_grant", "role", roleID, map[string]any{"flags": flags})
	return nil
}

// AssignRole grants a role to a user. Duplicate assignment is an explicit
// conflict, not an idempotent no-op.
func (s *Service) AssignRole(ctx context.Context, actorID, userID, roleID int64) error {
	if err := s.repo.AssignRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.audit(ctx, actorID, "role.assign", "user", userID, map[string]any{"role_id": roleID})
	return nil
}

// RevokeRole removes a role from a user.
func (s *Service) RevokeRole(ctx context.Context, actorID, userID, roleID int64) error {
	if err := s.repo.RevokeRole(ctx, userID, roleID); err != nil {
		return err
	}
	s.audit(ctx, actorID, "role.revoke", "user", userID, map[string]any{"role_id": roleID})
	return nil
}

func (s *Service) audit(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func validateName(name string) error {
	if len(name) < 2 || len(name) > 50 {
		return fmt.Errorf("%w: must be 2-50 characters", ErrInvalidName)
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return fmt.Errorf("%w: only lowercase letters, digits and underscores", ErrInvalidName)
		}
	}
	return nil
}
