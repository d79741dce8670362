package users

import (
	"time"

	"github.com/bginfotechs/bginfotechs/internal/access"
)

// Listing is one row of the user directory.
type Listing struct {
	ID          int64           `json:"id"`
	Username    string          `json:"username"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	IsActive    bool            `json:"is_active"`
	IsStaff     bool            `json:"is_staff"`
	IsSuperuser bool            `json:"is_superuser"`
	Role        access.RoleName `json:"role,omitempty"`
	LastLogin   *time.Time      `json:"last_login,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ListFilter narrows the directory.
type ListFilter struct {
	Search  string
	Role    access.RoleName
	Active  *bool
	Page    int
	PerPage int
}

func (f ListFilter) offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PerPage
}

type roleForm struct {
	RoleID *int64 `json:"role_id" validate:"omitempty,gt=0"`
}

type permissionsForm struct {
	Permissions []string `json:"permissions" validate:"dive,required,max=150"`
}

type groupsForm struct {
	Groups []int64 `json:"groups" validate:"dive,gt=0"`
}
