package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllReturnsCopy(t *testing.T) {
	first := All()
	require.Len(t, first, Count())

	first[0] = "tampered"
	assert.Equal(t, ModuleDashboard, All()[0])
}

func TestIsKnown(t *testing.T) {
	for _, name := range All() {
		assert.True(t, IsKnown(name), name)
	}
	assert.False(t, IsKnown("warehouse"))
	assert.False(t, IsKnown(""))
	assert.False(t, IsKnown("Dashboard"))
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Dashboard", DisplayName(ModuleDashboard))
	assert.Equal(t, "User Management", DisplayName(ModuleUserManagement))
	assert.Equal(t, "Role Management", DisplayName(ModuleRoleManagement))
}
