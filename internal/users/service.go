package users

import (
	"context"

	"github.com/bginfotechs/bginfotechs/internal/rbac"
	"github.com/bginfotechs/bginfotechs/internal/shared"
)

const defaultPerPage = 25

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, f ListFilter) ([]Listing, int, error)
}

// Manager performs the grant and status changes. *rbac.Service implements it.
type Manager interface {
	AssignRole(ctx context.Context, userID int64, roleID *int64) error
	SetUserPermissions(ctx context.Context, userID int64, permissions []string) ([]string, error)
	SetUserGroups(ctx context.Context, userID int64, groupIDs []int64) error
	ToggleUserStatus(ctx context.Context, userID int64) (rbac.User, error)
	ToggleStaffStatus(ctx context.Context, userID int64) (rbac.User, error)
	PermissionSummary(ctx context.Context, userID int64) (rbac.PermissionSummary, error)
}

var _ Manager = (*rbac.Service)(nil)

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns one page of the directory.
func (s *Service) ListUsers(ctx context.Context, f ListFilter) ([]Listing, shared.Pagination, error) {
	if f.PerPage <= 0 || f.PerPage > 100 {
		f.PerPage = defaultPerPage
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	rows, total, err := s.repo.ListUsers(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if rows == nil {
		rows = []Listing{}
	}
	return rows, shared.NewPagination(f.Page, f.PerPage, total), nil
}
