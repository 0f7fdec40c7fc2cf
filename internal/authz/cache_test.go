package authz

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticResolve(set PermissionSet) ResolveFunc {
	return func(ctx context.Context, userID int64) (PermissionSet, error) {
		return set, nil
	}
}

func failingResolve(err error) ResolveFunc {
	return func(ctx context.Context, userID int64) (PermissionSet, error) {
		return nil, err
	}
}

func TestSessionPermissionsLoadingDeniesEverything(t *testing.T) {
	cache := NewSessionPermissions(1, []string{"sales_agent"}, staticResolve(PermissionSet{
		"leads": {CanRead: true},
	}), nil)

	assert.True(t, cache.Loading())
	assert.False(t, cache.CanRead("leads"))
	assert.False(t, cache.CanCreate("leads"))
	assert.False(t, cache.HasAnyPermission("leads"))
	assert.False(t, cache.IsVisible("leads"))
	assert.Nil(t, cache.Snapshot())
}

func TestSessionPermissionsRefreshPopulates(t *testing.T) {
	cache := NewSessionPermissions(1, []string{"sales_agent"}, staticResolve(PermissionSet{
		"leads":    {CanRead: true, CanCreate: true, ScreenVisible: true},
		"contacts": {CanRead: true},
	}), nil)

	require.NoError(t, cache.Refresh(context.Background()))

	assert.False(t, cache.Loading())
	assert.True(t, cache.CanRead("leads"))
	assert.True(t, cache.CanCreate("leads"))
	assert.False(t, cache.CanDelete("leads"))
	assert.True(t, cache.IsVisible("leads"))
	assert.True(t, cache.HasAnyPermission("contacts"))
	assert.False(t, cache.HasAnyPermission("billing"))
}

func TestSessionPermissionsAdminOverrideWithoutRefresh(t *testing.T) {
	// The override is evaluated against the login identity, never against
	// cached grant rows, so it holds even before the first refresh.
	cache := NewSessionPermissions(1, []string{"admin"}, failingResolve(errors.New("db down")), nil)

	assert.False(t, cache.Loading())
	assert.True(t, cache.CanRead("leads"))
	assert.True(t, cache.CanDelete("settings"))
	assert.True(t, cache.HasAnyPermission("anything"))
}

func TestSessionPermissionsRefreshRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	resolve := func(ctx context.Context, userID int64) (PermissionSet, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("transient")
		}
		return PermissionSet{"leads": {CanRead: true}}, nil
	}
	cache := NewSessionPermissions(1, nil, resolve, nil)

	require.NoError(t, cache.Refresh(context.Background()))
	assert.EqualValues(t, 3, calls.Load())
	assert.True(t, cache.CanRead("leads"))
}

func TestSessionPermissionsKeepsLastKnownGoodOnFailure(t *testing.T) {
	var fail atomic.Bool
	resolve := func(ctx context.Context, userID int64) (PermissionSet, error) {
		if fail.Load() {
			return nil, errors.New("db down")
		}
		return PermissionSet{"leads": {CanRead: true}}, nil
	}
	cache := NewSessionPermissions(1, nil, resolve, nil)
	require.NoError(t, cache.Refresh(context.Background()))

	fail.Store(true)
	err := cache.Refresh(context.Background())
	require.Error(t, err)

	// The failed refresh must not clear the cached set.
	assert.False(t, cache.Loading())
	assert.True(t, cache.CanRead("leads"))
}

func TestSessionPermissionsStaleRefreshDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var first atomic.Bool
	first.Store(true)

	resolve := func(ctx context.Context, userID int64) (PermissionSet, error) {
		if first.CompareAndSwap(true, false) {
			close(started)
			<-release
			return PermissionSet{"leads": {CanRead: true}}, nil
		}
		return PermissionSet{"contacts": {CanRead: true}}, nil
	}
	cache := NewSessionPermissions(1, nil, resolve, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cache.Refresh(context.Background())
	}()

	<-started
	// A newer refresh starts and completes while the first is still in
	// flight.
	require.NoError(t, cache.Refresh(context.Background()))
	close(release)
	wg.Wait()

	// The late completion of the older refresh must not overwrite the newer
	// result.
	assert.True(t, cache.CanRead("contacts"))
	assert.False(t, cache.CanRead("leads"))
}

func TestSessionPermissionsAgreeWithAggregation(t *testing.T) {
	// The cache predicates and the aggregation step must answer identically
	// over the same fixture, or a request could pass one layer and fail the
	// other.
	held := []Role{role(1, "sales_agent", 10), role(2, "support", 5)}
	grants := []Grant{
		{RoleID: 1, ModuleName: "leads", Flags: Flags{CanRead: true, CanCreate: true, ScreenVisible: true}},
		{RoleID: 2, ModuleName: "leads", Flags: Flags{CanUpdate: true}},
		{RoleID: 2, ModuleName: "reports", Flags: Flags{CanRead: true}},
	}
	set := Aggregate(held, grants, testModules)

	cache := NewSessionPermissions(1, []string{"sales_agent", "support"}, staticResolve(set), nil)
	require.NoError(t, cache.Refresh(context.Background()))

	for _, module := range testModules {
		flags := set[module]
		assert.Equal(t, flags.CanRead, cache.CanRead(module), module)
		assert.Equal(t, flags.CanCreate, cache.CanCreate(module), module)
		assert.Equal(t, flags.CanUpdate, cache.CanUpdate(module), module)
		assert.Equal(t, flags.CanDelete, cache.CanDelete(module), module)
		assert.Equal(t, flags.ScreenVisible, cache.IsVisible(module), module)
	}
	assert.False(t, cache.HasAnyPermission("billing"))
}

func TestSessionPermissionsSnapshotIsWholeSet(t *testing.T) {
	setA := PermissionSet{"leads": {CanRead: true}}
	setB := PermissionSet{"contacts": {CanCreate: true}, "deals": {CanRead: true}}

	var useB atomic.Bool
	resolve := func(ctx context.Context, userID int64) (PermissionSet, error) {
		if useB.Load() {
			return setB, nil
		}
		return setA, nil
	}
	cache := NewSessionPermissions(1, nil, resolve, nil)
	require.NoError(t, cache.Refresh(context.Background()))
	assert.Equal(t, setA, cache.Snapshot())

	useB.Store(true)
	require.NoError(t, cache.Refresh(context.Background()))

	// The swap replaces the entire set; no leftovers from the previous one.
	snap := cache.Snapshot()
	assert.Equal(t, setB, snap)
	assert.NotContains(t, snap, "leads")
}
