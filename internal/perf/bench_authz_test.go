package perf

import (
	"context"
	"fmt"
	"testing"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/registry"
)

// Resolution sits on the hot path of every gated request, so the aggregation
// step has to stay cheap even for users holding many roles.

func buildFixture(roleCount, grantsPerRole int) ([]authz.Role, []authz.Grant) {
	modules := registry.All()
	held := make([]authz.Role, 0, roleCount)
	grants := make([]authz.Grant, 0, roleCount*grantsPerRole)
	for i := 0; i < roleCount; i++ {
		id := int64(i + 1)
		held = append(held, authz.Role{ID: id, Name: fmt.Sprintf("role_%d", id), HierarchyLevel: 10})
		for j := 0; j < grantsPerRole; j++ {
			grants = append(grants, authz.Grant{
				RoleID:     id,
				ModuleName: modules[j%len(modules)],
				Flags:      authz.Flags{CanRead: true, ScreenVisible: j%2 == 0},
			})
		}
	}
	return held, grants
}

func BenchmarkAggregateSingleRole(b *testing.B) {
	held, grants := buildFixture(1, 8)
	modules := registry.All()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		set := authz.Aggregate(held, grants, modules)
		if len(set) == 0 {
			b.Fatal("empty set")
		}
	}
}

func BenchmarkAggregateManyRoles(b *testing.B) {
	held, grants := buildFixture(20, 15)
	modules := registry.All()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		set := authz.Aggregate(held, grants, modules)
		if len(set) == 0 {
			b.Fatal("empty set")
		}
	}
}

func BenchmarkAggregateAdminOverride(b *testing.B) {
	held := []authz.Role{{ID: 1, Name: "admin", HierarchyLevel: 100}}
	_, grants := buildFixture(20, 15)
	modules := registry.All()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		set := authz.Aggregate(held, grants, modules)
		if len(set) != len(modules) {
			b.Fatal("override must cover every module")
		}
	}
}

type staticPort struct {
	roles  []authz.Role
	grants []authz.Grant
}

func (p *staticPort) RolesForUser(ctx context.Context, userID int64) ([]authz.Role, error) {
	return p.roles, nil
}

func (p *staticPort) GrantsForRoles(ctx context.Context, roleIDs []int64) ([]authz.Grant, error) {
	return p.grants, nil
}

func BenchmarkResolveCoalesced(b *testing.B) {
	held, grants := buildFixture(5, 10)
	resolver := authz.NewResolver(&staticPort{roles: held, grants: grants})
	ctx := context.Background()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := resolver.Resolve(ctx, 42); err != nil {
				b.Fatal(err)
			}
		}
	})
}
