package rbac

import (
	"context"

	"github.com/bginfotechs/bginfotechs/internal/access"
)

// Repository is the persistence port of the access-control store.
type Repository interface {
	GetUser(ctx context.Context, id int64) (User, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	GetRoleByName(ctx context.Context, name access.RoleName) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListGroups(ctx context.Context) ([]Group, error)
	UserPermissions(ctx context.Context, userID int64) ([]string, error)
	UserGroups(ctx context.Context, userID int64) ([]Group, error)
	EnsurePermission(ctx context.Context, name, description string) (Permission, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the writes that run inside one transaction.
type TxRepository interface {
	GetUser(ctx context.Context, id int64) (User, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, name access.RoleName, description string) (Role, error)
	UpdateRole(ctx context.Context, id int64, description string) error
	DeleteRole(ctx context.Context, id int64) error
	CountRoleUsers(ctx context.Context, roleID int64) (int, error)
	SetRolePermissions(ctx context.Context, roleID int64, perms []string) error
	SetUserRole(ctx context.Context, userID int64, roleID *int64) error
	SetUserActive(ctx context.Context, userID int64, active bool) error
	SetUserPermissions(ctx context.Context, userID int64, perms []string) error
	SetUserGroups(ctx context.Context, userID int64, groupIDs []int64) error
}
