package rbac

import (
	"context"
	"sort"
	"sync"

	"github.com/bginfotechs/bginfotechs/internal/access"
	"github.com/bginfotechs/bginfotechs/internal/shared"
)

type memoryRepo struct {
	mu         sync.Mutex
	users      map[int64]User
	roles      map[int64]Role
	groups     map[int64]Group
	userPerms  map[int64][]string
	userGroups map[int64][]int64
	nextID     int64
	calls      []string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users:      make(map[int64]User),
		roles:      make(map[int64]Role),
		groups:     make(map[int64]Group),
		userPerms:  make(map[int64][]string),
		userGroups: make(map[int64][]int64),
		nextID:     100,
	}
}

func (r *memoryRepo) addRole(id int64, name access.RoleName, perms ...string) {
	r.roles[id] = Role{ID: id, Name: name, Permissions: perms}
}

func (r *memoryRepo) addUser(u User) {
	r.users[u.ID] = u
}

func (r *memoryRepo) track(call string) {
	r.calls = append(r.calls, call)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Writes go to a copy that only replaces the state when fn succeeds.
	snapshot := r.clone()
	if err := fn(ctx, &memoryTx{repo: snapshot}); err != nil {
		return err
	}
	r.users, r.roles, r.groups, r.userPerms, r.userGroups, r.nextID = snapshot.users, snapshot.roles, snapshot.groups, snapshot.userPerms, snapshot.userGroups, snapshot.nextID
	return nil
}

func (r *memoryRepo) clone() *memoryRepo {
	c := newMemoryRepo()
	c.nextID = r.nextID
	for k, v := range r.users {
		c.users[k] = v
	}
	for k, v := range r.roles {
		v.Permissions = append([]string(nil), v.Permissions...)
		c.roles[k] = v
	}
	for k, v := range r.groups {
		c.groups[k] = v
	}
	for k, v := range r.userPerms {
		c.userPerms[k] = append([]string(nil), v...)
	}
	for k, v := range r.userGroups {
		c.userGroups[k] = append([]int64(nil), v...)
	}
	return c
}

func (r *memoryRepo) GetUser(ctx context.Context, id int64) (User, error) {
	r.track("GetUser")
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *memoryRepo) GetRole(ctx context.Context, id int64) (Role, error) {
	r.track("GetRole")
	role, ok := r.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	role.UserCount = r.countUsers(id)
	return role, nil
}

func (r *memoryRepo) GetRoleByName(ctx context.Context, name access.RoleName) (Role, error) {
	for _, role := range r.roles {
		if role.Name == name {
			return r.GetRole(ctx, role.ID)
		}
	}
	return Role{}, ErrNotFound
}

func (r *memoryRepo) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(r.roles))
	for id := range r.roles {
		role, _ := r.GetRole(ctx, id)
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryRepo) ListPermissions(ctx context.Context) ([]Permission, error) {
	return nil, nil
}

func (r *memoryRepo) ListGroups(ctx context.Context) ([]Group, error) {
	out := make([]Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryRepo) UserPermissions(ctx context.Context, userID int64) ([]string, error) {
	r.track("UserPermissions")
	return append([]string(nil), r.userPerms[userID]...), nil
}

func (r *memoryRepo) UserGroups(ctx context.Context, userID int64) ([]Group, error) {
	r.track("UserGroups")
	var out []Group
	for _, id := range r.userGroups[userID] {
		out = append(out, r.groups[id])
	}
	return out, nil
}

func (r *memoryRepo) EnsurePermission(ctx context.Context, name, description string) (Permission, error) {
	return Permission{Name: name, Description: description}, nil
}

func (r *memoryRepo) countUsers(roleID int64) int {
	n := 0
	for _, u := range r.users {
		if u.RoleID != nil && *u.RoleID == roleID {
			n++
		}
	}
	return n
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) GetUser(ctx context.Context, id int64) (User, error) {
	return t.repo.GetUser(ctx, id)
}

func (t *memoryTx) GetRole(ctx context.Context, id int64) (Role, error) {
	return t.repo.GetRole(ctx, id)
}

func (t *memoryTx) CreateRole(ctx context.Context, name access.RoleName, description string) (Role, error) {
	for _, role := range t.repo.roles {
		if role.Name == name {
			return Role{}, ErrDuplicate
		}
	}
	t.repo.nextID++
	role := Role{ID: t.repo.nextID, Name: name, Description: description}
	t.repo.roles[role.ID] = role
	return role, nil
}

func (t *memoryTx) UpdateRole(ctx context.Context, id int64, description string) error {
	role, ok := t.repo.roles[id]
	if !ok {
		return ErrNotFound
	}
	role.Description = description
	t.repo.roles[id] = role
	return nil
}

func (t *memoryTx) DeleteRole(ctx context.Context, id int64) error {
	if _, ok := t.repo.roles[id]; !ok {
		return ErrNotFound
	}
	delete(t.repo.roles, id)
	return nil
}

func (t *memoryTx) CountRoleUsers(ctx context.Context, roleID int64) (int, error) {
	return t.repo.countUsers(roleID), nil
}

func (t *memoryTx) SetRolePermissions(ctx context.Context, roleID int64, perms []string) error {
	role, ok := t.repo.roles[roleID]
	if !ok {
		return ErrNotFound
	}
	role.Permissions = append([]string(nil), perms...)
	t.repo.roles[roleID] = role
	return nil
}

func (t *memoryTx) SetUserRole(ctx context.Context, userID int64, roleID *int64) error {
	u, ok := t.repo.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.RoleID = roleID
	t.repo.users[userID] = u
	return nil
}

func (t *memoryTx) SetUserActive(ctx context.Context, userID int64, active bool) error {
	u, ok := t.repo.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.IsActive = active
	t.repo.users[userID] = u
	return nil
}

func (t *memoryTx) SetUserPermissions(ctx context.Context, userID int64, perms []string) error {
	t.repo.userPerms[userID] = append([]string(nil), perms...)
	return nil
}

func (t *memoryTx) SetUserGroups(ctx context.Context, userID int64, groupIDs []int64) error {
	for _, id := range groupIDs {
		if _, ok := t.repo.groups[id]; !ok {
			return ErrNotFound
		}
	}
	t.repo.userGroups[userID] = append([]int64(nil), groupIDs...)
	return nil
}

type memoryAudit struct {
	mu      sync.Mutex
	actions []string
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, log.Action)
	return nil
}

func int64Ptr(v int64) *int64 { return &v }
