package access

import (
	"context"
	"sort"
)

// RoleName is one of the fixed role choices a principal can be assigned.
type RoleName string

// Role choices.
const (
	RoleAdmin   RoleName = "admin"
	RoleStaff   RoleName = "staff"
	RoleStudent RoleName = "student"
	RoleOther   RoleName = "other"
)

// RoleNames lists every valid role name in display order.
func RoleNames() []RoleName {
	return []RoleName{RoleAdmin, RoleStaff, RoleStudent, RoleOther}
}

// Valid reports whether n is one of the fixed role choices.
func (n RoleName) Valid() bool {
	switch n {
	case RoleAdmin, RoleStaff, RoleStudent, RoleOther:
		return true
	}
	return false
}

// IsSystem reports whether the role is one the site depends on and must never be deleted.
func (n RoleName) IsSystem() bool {
	return n == RoleAdmin || n == RoleStaff || n == RoleStudent
}

// Display returns the human label of the role.
func (n RoleName) Display() string {
	switch n {
	case RoleAdmin:
		return "Admin"
	case RoleStaff:
		return "Staff"
	case RoleStudent:
		return "Student"
	case RoleOther:
		return "Other"
	}
	return string(n)
}

// Role is a named bundle of permissions.
type Role struct {
	ID          int64
	Name        RoleName
	Description string
	Permissions []string
}

// Group is a many-to-many bundle of permissions independent of Role.
type Group struct {
	ID          int64
	Name        string
	Permissions []string
}

// Principal is the authenticated actor evaluated for access.
type Principal struct {
	ID          int64
	Username    string
	IsSuperuser bool
	IsStaff     bool
	IsActive    bool
	// Role is nil when the principal has no assigned role.
	Role        *Role
	Groups      []Group
	Permissions []string
}

// HasPermission reports whether perm is granted directly, through the assigned role or through a group.
func (p *Principal) HasPermission(perm string) bool {
	if p == nil {
		return false
	}
	perm = Normalize(perm)
	if perm == "" {
		return false
	}
	if containsPermission(p.Permissions, perm) {
		return true
	}
	if p.Role != nil && containsPermission(p.Role.Permissions, perm) {
		return true
	}
	for _, g := range p.Groups {
		if containsPermission(g.Permissions, perm) {
			return true
		}
	}
	return false
}

// HasRole reports whether the assigned role carries the given name.
func (p *Principal) HasRole(name RoleName) bool {
	return p != nil && p.Role != nil && p.Role.Name == name
}

// RoleName returns the assigned role name or the empty string.
func (p *Principal) RoleName() RoleName {
	if p == nil || p.Role == nil {
		return ""
	}
	return p.Role.Name
}

// EffectivePermissions returns the sorted union of direct, role and group grants.
func (p *Principal) EffectivePermissions() []string {
	if p == nil {
		return nil
	}
	set := make(map[string]struct{})
	add := func(perms []string) {
		for _, perm := range perms {
			if n := Normalize(perm); n != "" {
				set[n] = struct{}{}
			}
		}
	}
	add(p.Permissions)
	if p.Role != nil {
		add(p.Role.Permissions)
	}
	for _, g := range p.Groups {
		add(g.Permissions)
	}
	out := make([]string, 0, len(set))
	for perm := range set {
		out = append(out, perm)
	}
	sort.Strings(out)
	return out
}

// Owned is implemented by resources carrying an author or creator reference.
type Owned interface {
	OwnerID() int64
}

func containsPermission(perms []string, want string) bool {
	for _, p := range perms {
		if Normalize(p) == want {
			return true
		}
	}
	return false
}

type principalContextKey struct{}

// ContextWithPrincipal stores the resolved principal in ctx.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal resolved by the guard, if any.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
