package roles

import (
	"context"

	"github.com/bginfotechs/bginfotechs/internal/rbac"
)

// Manager is the role store the handler drives. *rbac.Service implements it.
type Manager interface {
	ListRoles(ctx context.Context) ([]rbac.Role, error)
	GetRole(ctx context.Context, id int64) (rbac.Role, error)
	CreateRole(ctx context.Context, in rbac.RoleInput) (rbac.Role, error)
	UpdateRole(ctx context.Context, id int64, description string, permissions []string) (rbac.Role, error)
	DeleteRole(ctx context.Context, id int64) (rbac.Role, error)
}

var _ Manager = (*rbac.Service)(nil)
