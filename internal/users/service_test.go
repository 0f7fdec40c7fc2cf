package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	users map[int64]User
	roles map[int64][]string
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		users: map[int64]User{},
		roles: map[int64][]string{},
	}
}

func (m *mockRepository) CountUsers(ctx context.Context) (int, error) {
	return len(m.users), nil
}

func (m *mockRepository) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	var list []User
	for id := int64(1); id <= int64(len(m.users)); id++ {
		if user, ok := m.users[id]; ok {
			list = append(list, user)
		}
	}
	if offset >= len(list) {
		return nil, nil
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	return list[offset:end], nil
}

func (m *mockRepository) GetUser(ctx context.Context, id int64) (User, error) {
	user, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (m *mockRepository) SetActive(ctx context.Context, id int64, active bool) error {
	user, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	user.IsActive = active
	user.UpdatedAt = time.Now()
	m.users[id] = user
	return nil
}

func (m *mockRepository) RoleNamesForUser(ctx context.Context, userID int64) ([]string, error) {
	return m.roles[userID], nil
}

func seedAccounts(repo *mockRepository, n int) {
	for i := 1; i <= n; i++ {
		id := int64(i)
		repo.users[id] = User{ID: id, Email: "user@meridian.local", IsActive: true}
	}
}

func TestListUsersPaginates(t *testing.T) {
	repo := newMockRepository()
	seedAccounts(repo, 45)
	svc := NewService(repo)

	list, p, err := svc.ListUsers(context.Background(), 2, 20)
	require.NoError(t, err)
	assert.Len(t, list, 20)
	assert.EqualValues(t, 21, list[0].ID)
	assert.Equal(t, 45, p.Total)
	assert.Equal(t, 3, p.TotalPages)
}

func TestListUsersDefaultsPage(t *testing.T) {
	repo := newMockRepository()
	seedAccounts(repo, 3)
	svc := NewService(repo)

	list, p, err := svc.ListUsers(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PerPage)
}

func TestGetUserIncludesRoles(t *testing.T) {
	repo := newMockRepository()
	seedAccounts(repo, 1)
	repo.roles[1] = []string{"sales_agent", "support"}
	svc := NewService(repo)

	user, err := svc.GetUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"sales_agent", "support"}, user.Roles)
}

func TestGetUserNotFound(t *testing.T) {
	svc := NewService(newMockRepository())

	_, err := svc.GetUser(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetActiveDeactivates(t *testing.T) {
	repo := newMockRepository()
	seedAccounts(repo, 1)
	svc := NewService(repo)

	user, err := svc.SetActive(context.Background(), 1, false)
	require.NoError(t, err)
	assert.False(t, user.IsActive)

	user, err = svc.SetActive(context.Background(), 1, true)
	require.NoError(t, err)
	assert.True(t, user.IsActive)
}

func TestSetActiveNotFound(t *testing.T) {
	svc := NewService(newMockRepository())

	_, err := svc.SetActive(context.Background(), 99, false)
	assert.ErrorIs(t, err, ErrNotFound)
}
