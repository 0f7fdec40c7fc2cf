package authz

// Aggregate computes the effective permission set for a user holding the
// given roles. This is the single specification of the resolution algorithm;
// the SQL functions in the storage tier implement the same steps and are held
// to the same fixtures by the tests in this package.
//
// Steps:
//  1. No roles held: empty set, never an error.
//  2. Admin override: holding the administrator role short-circuits to full
//     access across every known module, before grant rows are consulted.
//     OR-aggregation of absent rows cannot manufacture true values, so the
//     override must not be folded into step 3.
//  3. Otherwise each flag is OR-merged across every grant row of the held
//     roles. The policy language is additive only: there is no deny grant,
//     and adding a role can only widen the result.
func Aggregate(held []Role, grants []Grant, modules []string) PermissionSet {
	if len(held) == 0 {
		return PermissionSet{}
	}

	for _, role := range held {
		if role.IsAdmin() {
			return FullAccess(modules)
		}
	}

	heldIDs := make(map[int64]struct{}, len(held))
	for _, role := range held {
		heldIDs[role.ID] = struct{}{}
	}

	set := make(PermissionSet)
	for _, grant := range grants {
		if _, ok := heldIDs[grant.RoleID]; !ok {
			continue
		}
		merged := set[grant.ModuleName]
		merged.CanCreate = merged.CanCreate || grant.CanCreate
		merged.CanRead = merged.CanRead || grant.CanRead
		merged.CanUpdate = merged.CanUpdate || grant.CanUpdate
		merged.CanDelete = merged.CanDelete || grant.CanDelete
		merged.ScreenVisible = merged.ScreenVisible || grant.ScreenVisible
		set[grant.ModuleName] = merged
	}
	return set
}
