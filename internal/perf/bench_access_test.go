package perf

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/bginfotechs/bginfotechs/internal/access"
	"github.com/bginfotechs/bginfotechs/internal/rbac"
)

type row struct{ owner int64 }

func (r row) OwnerID() int64 { return r.owner }

func staffPrincipal() *access.Principal {
	groups := make([]access.Group, 0, 5)
	for i := 0; i < 5; i++ {
		groups = append(groups, access.Group{ID: int64(i), Name: fmt.Sprintf("g%d", i), Permissions: []string{fmt.Sprintf("blog_app.view_category%d", i)}})
	}
	return &access.Principal{
		ID:       42,
		IsActive: true,
		IsStaff:  true,
		Role: &access.Role{Name: access.RoleStaff, Permissions: []string{
			"bg_app.view_staff_dashboard", "course_app.view_course", "course_app.change_course",
		}},
		Groups:      groups,
		Permissions: []string{"blog_app.add_blog"},
	}
}

func BenchmarkDecideDeny(b *testing.B) {
	p := staffPrincipal()
	req := access.Request{Permissions: []string{"bg_app.manage_roles"}, Role: access.RoleAdmin, Resource: row{owner: 7}, AllowOwner: true}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if access.Decide(p, req).Allowed {
			b.Fatal("unexpected allow")
		}
	}
}

func BenchmarkScopeOwnRows(b *testing.B) {
	p := staffPrincipal()
	items := make([]row, 1000)
	for i := range items {
		items[i] = row{owner: int64(i % 50)}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = access.Scope(p, items, "blog_app.view_blog")
	}
}

func BenchmarkPrincipalCacheHit(b *testing.B) {
	cache := rbac.NewPrincipalCache(128, time.Minute)
	p := staffPrincipal()
	load := func(ctx context.Context, id int64) (*access.Principal, error) { return p, nil }
	ctx := context.Background()
	if _, err := cache.Get(ctx, p.ID, load); err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := cache.Get(ctx, p.ID, load); err != nil {
			b.Fatal(err)
		}
	}
}

func TestDecideLatencyTarget(t *testing.T) {
	p := staffPrincipal()
	req := access.Request{Permissions: []string{"course_app.change_course"}}
	samples := make([]time.Duration, 0, 200)
	for i := 0; i < cap(samples); i++ {
		start := time.Now()
		access.Decide(p, req)
		samples = append(samples, time.Since(start))
	}
	if p95 := percentile95(samples); p95 > 5*time.Millisecond {
		t.Fatalf("decide latency regression: p95=%s", p95)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
