package users

import (
	"context"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	CountUsers(ctx context.Context) (int, error)
	ListUsers(ctx context.Context, limit, offset int) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	SetActive(ctx context.Context, id int64, active bool) error
	RoleNamesForUser(ctx context.Context, userID int64) ([]string, error)
}

// Service handles user directory business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns a page of users plus pagination metadata.
func (s *Service) ListUsers(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	total, err := s.repo.CountUsers(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	p := shared.NewPagination(page, perPage, total)
	list, err := s.repo.ListUsers(ctx, p.PerPage, p.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, p, nil
}

// GetUser returns a user together with the names of the roles they hold.
func (s *Service) GetUser(ctx context.Context, id int64) (UserWithRoles, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return UserWithRoles{}, err
	}
	roles, err := s.repo.RoleNamesForUser(ctx, id)
	if err != nil {
		return UserWithRoles{}, err
	}
	return UserWithRoles{User: user, Roles: roles}, nil
}

// SetActive activates or deactivates an account. Deactivated accounts cannot
// sign in; existing sessions expire on their own TTL.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) (UserWithRoles, error) {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return UserWithRoles{}, err
	}
	return s.GetUser(ctx, id)
}
