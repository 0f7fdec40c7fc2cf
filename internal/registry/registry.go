// Package registry defines the controlled vocabulary of application modules
// that permissions are scoped to. Module names are static; adding a module is
// a code change, never a runtime mutation.
package registry

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Application module names.
const (
	ModuleDashboard      = "dashboard"
	ModuleLeads          = "leads"
	ModuleContacts       = "contacts"
	ModuleAccounts       = "accounts"
	ModuleDeals          = "deals"
	ModuleTasks          = "tasks"
	ModuleCalendar       = "calendar"
	ModuleProjects       = "projects"
	ModuleSales          = "sales"
	ModuleBilling        = "billing"
	ModuleReports        = "reports"
	ModuleEmployees      = "employees"
	ModuleUserManagement = "user_management"
	ModuleRoleManagement = "role_management"
	ModuleSettings       = "settings"
)

var modules = []string{
	ModuleDashboard,
	ModuleLeads,
	ModuleContacts,
	ModuleAccounts,
	ModuleDeals,
	ModuleTasks,
	ModuleCalendar,
	ModuleProjects,
	ModuleSales,
	ModuleBilling,
	ModuleReports,
	ModuleEmployees,
	ModuleUserManagement,
	ModuleRoleManagement,
	ModuleSettings,
}

var known = func() map[string]struct{} {
	m := make(map[string]struct{}, len(modules))
	for _, name := range modules {
		m[name] = struct{}{}
	}
	return m
}()

var titleCaser = cases.Title(language.English)

// All returns every registered module name in display order. Callers receive
// a copy and may not mutate the registry.
func All() []string {
	out := make([]string, len(modules))
	copy(out, modules)
	return out
}

// IsKnown reports whether name is a registered module.
func IsKnown(name string) bool {
	_, ok := known[name]
	return ok
}

// DisplayName derives a human readable label for a module name.
func DisplayName(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

// Count returns the number of registered modules.
func Count() int {
	return len(modules)
}
