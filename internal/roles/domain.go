package roles

import (
	"time"

	"github.com/bginfotechs/bginfotechs/internal/rbac"
)

// RoleView is the JSON shape of a role.
type RoleView struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Display          string    `json:"display"`
	Description      string    `json:"description"`
	System           bool      `json:"system"`
	PermissionsCount int       `json:"permissions_count"`
	UsersCount       int       `json:"users_count"`
	Permissions      []string  `json:"permissions,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toView(role rbac.Role, withPermissions bool) RoleView {
	v := RoleView{
		ID:               role.ID,
		Name:             string(role.Name),
		Display:          role.Name.Display(),
		Description:      role.Description,
		System:           role.Name.IsSystem(),
		PermissionsCount: len(role.Permissions),
		UsersCount:       role.UserCount,
		CreatedAt:        role.CreatedAt,
		UpdatedAt:        role.UpdatedAt,
	}
	if withPermissions {
		v.Permissions = append([]string{}, role.Permissions...)
	}
	return v
}

type roleForm struct {
	Name        string   `json:"name" validate:"required,oneof=admin staff student other"`
	Description string   `json:"description" validate:"max=255"`
	Permissions []string `json:"permissions" validate:"dive,required,max=150"`
}

type roleEditForm struct {
	Description string   `json:"description" validate:"max=255"`
	Permissions []string `json:"permissions" validate:"dive,required,max=150"`
}
