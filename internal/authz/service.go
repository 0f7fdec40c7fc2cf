package authz

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/meridian-crm/meridian-crm/internal/registry"
)

// ResolverPort defines the reads the resolver needs.
type ResolverPort interface {
	RolesForUser(ctx context.Context, userID int64) ([]Role, error)
	GrantsForRoles(ctx context.Context, roleIDs []int64) ([]Grant, error)
}

// Resolver computes effective permission sets from current role/grant state.
// Resolution is a pure read; concurrent calls for the same user are coalesced.
type Resolver struct {
	repo  ResolverPort
	group singleflight.Group
}

// NewResolver builds a Resolver instance.
func NewResolver(repo ResolverPort) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve returns the effective permission set for the user. A user with no
// roles resolves to an empty set, not an error.
func (r *Resolver) Resolve(ctx context.Context, userID int64) (PermissionSet, error) {
	result, err, _ := r.group.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		return r.resolve(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return result.(PermissionSet), nil
}

func (r *Resolver) resolve(ctx context.Context, userID int64) (PermissionSet, error) {
	held, err := r.repo.RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(held) == 0 {
		return PermissionSet{}, nil
	}

	// The override never consults grant rows, so skip the second query.
	for _, role := range held {
		if role.IsAdmin() {
			return FullAccess(registry.All()), nil
		}
	}

	roleIDs := make([]int64, len(held))
	for i, role := range held {
		roleIDs[i] = role.ID
	}
	grants, err := r.repo.GrantsForRoles(ctx, roleIDs)
	if err != nil {
		return nil, err
	}
	return Aggregate(held, grants, registry.All()), nil
}
