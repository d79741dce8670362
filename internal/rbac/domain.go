package rbac

import (
	"errors"
	"fmt"
	"time"

	"github.com/bginfotechs/bginfotechs/internal/access"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("rbac: not found")
	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("rbac: duplicate")
	// ErrInvalidRole indicates a role name outside the fixed choices.
	ErrInvalidRole = errors.New("rbac: invalid role name")
	// ErrSystemRole is matched by SystemRoleError.
	ErrSystemRole = errors.New("rbac: system role")
	// ErrRoleInUse is matched by RoleInUseError.
	ErrRoleInUse = errors.New("rbac: role in use")
	// ErrProtectedUser is returned when toggling a superuser or admin account.
	ErrProtectedUser = errors.New("rbac: protected user")
)

// SystemRoleError rejects deletion of a role the site depends on.
type SystemRoleError struct {
	Role access.RoleName
}

func (e *SystemRoleError) Error() string {
	return fmt.Sprintf("System role %q cannot be deleted.", e.Role.Display())
}

func (e *SystemRoleError) Is(target error) bool { return target == ErrSystemRole }

// RoleInUseError rejects deletion of a role that still has users.
type RoleInUseError struct {
	Role  access.RoleName
	Users int
}

func (e *RoleInUseError) Error() string {
	return fmt.Sprintf("Cannot delete role %q because it has %d user(s) assigned. Please reassign users first.", e.Role.Display(), e.Users)
}

func (e *RoleInUseError) Is(target error) bool { return target == ErrRoleInUse }

// Role represents a high-level permission grouping.
type Role struct {
	ID          int64
	Name        access.RoleName
	Description string
	Permissions []string
	UserCount   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents an atomic capability.
type Permission struct {
	ID          int64
	Name        string
	Description string
}

// Group is a named permission bundle users can belong to.
type Group struct {
	ID          int64
	Name        string
	Permissions []string
}

// User is the account record the principal is built from.
type User struct {
	ID          int64
	Username    string
	Email       string
	FirstName   string
	LastName    string
	IsActive    bool
	IsStaff     bool
	IsSuperuser bool
	RoleID      *int64
}

// DisplayName mirrors the full name, falling back to the username.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Username
}

// PermissionSummary lists every grant a user holds and where it comes from.
type PermissionSummary struct {
	UserID     int64                          `json:"user_id"`
	Username   string                         `json:"username"`
	Role       access.RoleName                `json:"role,omitempty"`
	Groups     []string                       `json:"groups"`
	Direct     []string                       `json:"direct"`
	FromGroups []string                       `json:"from_groups"`
	FromRole   []string                       `json:"from_role"`
	All        []string                       `json:"all"`
	ByApp      map[string]map[string][]string `json:"by_app"`
}

// RoleInput carries the editable fields of a role.
type RoleInput struct {
	Name        access.RoleName
	Description string
	Permissions []string
}
