package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testModules = []string{"dashboard", "leads", "contacts", "reports", "settings"}

func role(id int64, name string, level int) Role {
	return Role{ID: id, Name: name, HierarchyLevel: level}
}

func TestAggregateNoRoles(t *testing.T) {
	set := Aggregate(nil, nil, testModules)
	require.NotNil(t, set)
	assert.Empty(t, set)
	assert.False(t, set.Allows("dashboard", ActionRead))
}

func TestAggregateAdminOverride(t *testing.T) {
	held := []Role{role(1, "admin", 100)}
	// Explicit all-false grant rows must not narrow the override.
	grants := []Grant{
		{RoleID: 1, ModuleName: "leads", Flags: Flags{}},
	}

	set := Aggregate(held, grants, testModules)
	require.Len(t, set, len(testModules))
	for _, module := range testModules {
		for _, action := range []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionVisible} {
			assert.True(t, set.Allows(module, action), "admin should allow %s on %s", action, module)
		}
	}
}

func TestAggregateHierarchyLevelOverride(t *testing.T) {
	// A role at the reserved hierarchy level counts as administrator even
	// under a different name.
	held := []Role{role(7, "superuser", 100)}
	set := Aggregate(held, nil, testModules)
	assert.True(t, set.Allows("settings", ActionDelete))
}

func TestAggregateORMergeAcrossRoles(t *testing.T) {
	held := []Role{role(1, "support", 10), role(2, "analyst", 20)}
	grants := []Grant{
		{RoleID: 1, ModuleName: "leads", Flags: Flags{CanRead: true, ScreenVisible: true}},
		{RoleID: 2, ModuleName: "leads", Flags: Flags{CanCreate: true, CanUpdate: true}},
		{RoleID: 2, ModuleName: "reports", Flags: Flags{CanRead: true, ScreenVisible: true}},
	}

	set := Aggregate(held, grants, testModules)

	leads := set.Get("leads")
	assert.True(t, leads.CanCreate)
	assert.True(t, leads.CanRead)
	assert.True(t, leads.CanUpdate)
	assert.False(t, leads.CanDelete)
	assert.True(t, leads.ScreenVisible)

	assert.True(t, set.Allows("reports", ActionRead))
	assert.False(t, set.Allows("reports", ActionCreate))
}

func TestAggregateIgnoresUnheldGrants(t *testing.T) {
	held := []Role{role(1, "support", 10)}
	grants := []Grant{
		{RoleID: 1, ModuleName: "leads", Flags: Flags{CanRead: true}},
		{RoleID: 99, ModuleName: "settings", Flags: Flags{CanDelete: true}},
	}

	set := Aggregate(held, grants, testModules)
	assert.True(t, set.Allows("leads", ActionRead))
	assert.False(t, set.Allows("settings", ActionDelete))
}

func TestAggregateAdditiveOnly(t *testing.T) {
	base := []Role{role(1, "support", 10)}
	widened := []Role{role(1, "support", 10), role(2, "analyst", 20)}
	grants := []Grant{
		{RoleID: 1, ModuleName: "leads", Flags: Flags{CanRead: true}},
		{RoleID: 2, ModuleName: "leads", Flags: Flags{}},
		{RoleID: 2, ModuleName: "reports", Flags: Flags{CanRead: true}},
	}

	before := Aggregate(base, grants, testModules)
	after := Aggregate(widened, grants, testModules)

	// Adding a role may only widen the result, even when the added role
	// carries all-false rows for an already-granted module.
	for module, flags := range before {
		for _, action := range []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionVisible} {
			if flags.Allows(action) {
				assert.True(t, after.Allows(module, action), "adding a role must not remove %s on %s", action, module)
			}
		}
	}
	assert.True(t, after.Allows("reports", ActionRead))
}

func TestAggregateAbsentModuleFailsClosed(t *testing.T) {
	held := []Role{role(1, "support", 10)}
	grants := []Grant{{RoleID: 1, ModuleName: "leads", Flags: Flags{CanRead: true}}}

	set := Aggregate(held, grants, testModules)
	assert.False(t, set.Allows("billing", ActionRead))
	assert.False(t, set.Allows("does_not_exist", ActionRead))
	assert.False(t, set.Get("billing").Any())
}

func TestFlagsAllowsUnknownAction(t *testing.T) {
	flags := Flags{CanCreate: true, CanRead: true, CanUpdate: true, CanDelete: true, ScreenVisible: true}
	assert.False(t, flags.Allows("execute"))
	assert.False(t, flags.Allows(""))
}

func TestFlagsAnyExcludesVisibility(t *testing.T) {
	assert.False(t, Flags{ScreenVisible: true}.Any())
	assert.True(t, Flags{CanRead: true}.Any())
}

func TestHoldsAdmin(t *testing.T) {
	assert.True(t, HoldsAdmin([]string{"sales_agent", "admin"}))
	assert.False(t, HoldsAdmin([]string{"sales_agent"}))
	assert.False(t, HoldsAdmin(nil))
}

func TestFullAccessCoversAllModules(t *testing.T) {
	set := FullAccess(testModules)
	require.Len(t, set, len(testModules))
	for _, module := range testModules {
		assert.True(t, set.Get(module).Any())
		assert.True(t, set.Allows(module, ActionVisible))
	}
}
