package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/bginfotechs/bginfotechs/internal/access"
	"github.com/bginfotechs/bginfotechs/internal/shared"
)

// Service orchestrates RBAC operations.
type Service struct {
	repo     Repository
	registry *access.Registry
	cache    *PrincipalCache
	audit    shared.AuditRecorder
	logger   *slog.Logger
}

// NewService constructs a Service. cache and audit may be nil.
func NewService(repo Repository, registry *access.Registry, cache *PrincipalCache, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, registry: registry, cache: cache, audit: audit, logger: logger}
}

// Registry exposes the permission registry used for validation.
func (s *Service) Registry() *access.Registry {
	return s.registry
}

// LoadPrincipal composes the principal of userID from its role, groups and direct grants.
func (s *Service) LoadPrincipal(ctx context.Context, userID int64) (*access.Principal, error) {
	return s.cache.Get(ctx, userID, s.loadPrincipal)
}

func (s *Service) loadPrincipal(ctx context.Context, userID int64) (*access.Principal, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: load user %d: %w", userID, err)
	}
	p := &access.Principal{
		ID:          user.ID,
		Username:    user.Username,
		IsSuperuser: user.IsSuperuser,
		IsStaff:     user.IsStaff,
		IsActive:    user.IsActive,
	}
	if user.RoleID != nil {
		role, err := s.repo.GetRole(ctx, *user.RoleID)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("rbac: load role: %w", err)
		default:
			p.Role = &access.Role{ID: role.ID, Name: role.Name, Description: role.Description, Permissions: role.Permissions}
		}
	}
	groups, err := s.repo.UserGroups(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: load groups: %w", err)
	}
	for _, g := range groups {
		p.Groups = append(p.Groups, access.Group{ID: g.ID, Name: g.Name, Permissions: g.Permissions})
	}
	if p.Permissions, err = s.repo.UserPermissions(ctx, userID); err != nil {
		return nil, fmt.Errorf("rbac: load user permissions: %w", err)
	}
	return p, nil
}

// EffectivePermissions returns deduplicated permission names for a user.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	p, err := s.LoadPrincipal(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p.EffectivePermissions(), nil
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// ListGroups returns all groups with their grants.
func (s *Service) ListGroups(ctx context.Context) ([]Group, error) {
	return s.repo.ListGroups(ctx)
}

// ListPermissions returns the registered permission catalog.
func (s *Service) ListPermissions() []access.PermissionInfo {
	if s.registry == nil {
		return nil
	}
	return s.registry.List()
}

// SyncPermissions stores every registered permission so grants can reference it.
func (s *Service) SyncPermissions(ctx context.Context) (int, error) {
	perms := s.ListPermissions()
	for _, info := range perms {
		if _, err := s.repo.EnsurePermission(ctx, info.Name, info.Description); err != nil {
			return 0, fmt.Errorf("rbac: ensure permission %s: %w", info.Name, err)
		}
	}
	return len(perms), nil
}

// CreateRole inserts a new role with its permissions.
func (s *Service) CreateRole(ctx context.Context, in RoleInput) (Role, error) {
	if !in.Name.Valid() {
		return Role{}, ErrInvalidRole
	}
	perms, err := s.validPermissions(in.Permissions)
	if err != nil {
		return Role{}, err
	}
	var created Role
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		role, err := tx.CreateRole(ctx, in.Name, strings.TrimSpace(in.Description))
		if err != nil {
			return err
		}
		if err := tx.SetRolePermissions(ctx, role.ID, perms); err != nil {
			return err
		}
		role.Permissions = perms
		created = role
		return nil
	})
	if err != nil {
		return Role{}, fmt.Errorf("rbac: create role %s: %w", in.Name, err)
	}
	s.record(ctx, shared.AuditRoleCreated, "role", created.ID, map[string]any{"name": created.Name, "permissions": len(perms)})
	return created, nil
}

// UpdateRole replaces the description and permissions of a role. The name is fixed.
func (s *Service) UpdateRole(ctx context.Context, id int64, description string, permissions []string) (Role, error) {
	perms, err := s.validPermissions(permissions)
	if err != nil {
		return Role{}, err
	}
	var updated Role
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		role, err := tx.GetRole(ctx, id)
		if err != nil {
			return err
		}
		role.Description = strings.TrimSpace(description)
		if err := tx.UpdateRole(ctx, id, role.Description); err != nil {
			return err
		}
		if err := tx.SetRolePermissions(ctx, id, perms); err != nil {
			return err
		}
		role.Permissions = perms
		updated = role
		return nil
	})
	if err != nil {
		return Role{}, fmt.Errorf("rbac: update role %d: %w", id, err)
	}
	s.cache.Purge()
	s.record(ctx, shared.AuditRoleUpdated, "role", id, map[string]any{"permissions": len(perms)})
	return updated, nil
}

// DeleteRole removes a role. System roles and roles with assigned users are refused.
func (s *Service) DeleteRole(ctx context.Context, id int64) (Role, error) {
	var deleted Role
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		role, err := tx.GetRole(ctx, id)
		if err != nil {
			return err
		}
		if role.Name.IsSystem() {
			return &SystemRoleError{Role: role.Name}
		}
		n, err := tx.CountRoleUsers(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return &RoleInUseError{Role: role.Name, Users: n}
		}
		deleted = role
		return tx.DeleteRole(ctx, id)
	})
	if err != nil {
		return Role{}, fmt.Errorf("rbac: delete role %d: %w", id, err)
	}
	s.record(ctx, shared.AuditRoleDeleted, "role", id, map[string]any{"name": deleted.Name})
	return deleted, nil
}

// AssignRole sets or clears (roleID nil) the role of a user.
func (s *Service) AssignRole(ctx context.Context, userID int64, roleID *int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		if roleID != nil {
			if _, err := tx.GetRole(ctx, *roleID); err != nil {
				return err
			}
		}
		return tx.SetUserRole(ctx, userID, roleID)
	})
	if err != nil {
		return fmt.Errorf("rbac: assign role: %w", err)
	}
	s.cache.Invalidate(userID)
	meta := map[string]any{"role_id": nil}
	if roleID != nil {
		meta["role_id"] = *roleID
	}
	s.record(ctx, shared.AuditRoleAssigned, "user", userID, meta)
	return nil
}

// SetUserPermissions replaces the direct grants of a user.
func (s *Service) SetUserPermissions(ctx context.Context, userID int64, permissions []string) ([]string, error) {
	perms, err := s.validPermissions(permissions)
	if err != nil {
		return nil, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		return tx.SetUserPermissions(ctx, userID, perms)
	})
	if err != nil {
		return nil, fmt.Errorf("rbac: set user permissions: %w", err)
	}
	s.cache.Invalidate(userID)
	s.record(ctx, shared.AuditPermissionsChanged, "user", userID, map[string]any{"permissions": perms})
	return perms, nil
}

// SetUserGroups replaces the group memberships of a user.
func (s *Service) SetUserGroups(ctx context.Context, userID int64, groupIDs []int64) error {
	ids := dedupeIDs(groupIDs)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		return tx.SetUserGroups(ctx, userID, ids)
	})
	if err != nil {
		return fmt.Errorf("rbac: set user groups: %w", err)
	}
	s.cache.Invalidate(userID)
	s.record(ctx, shared.AuditGroupsChanged, "user", userID, map[string]any{"groups": ids})
	return nil
}

// ToggleUserStatus flips the active flag of a user. Superusers and admin-role
// users are refused with ErrProtectedUser.
func (s *Service) ToggleUserStatus(ctx context.Context, userID int64) (User, error) {
	return s.toggleActive(ctx, userID, func(ctx context.Context, tx TxRepository, u User) error {
		if u.IsSuperuser {
			return ErrProtectedUser
		}
		if u.RoleID != nil {
			role, err := tx.GetRole(ctx, *u.RoleID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			if role.Name == access.RoleAdmin {
				return ErrProtectedUser
			}
		}
		return nil
	})
}

// ToggleStaffStatus flips the active flag of a user holding the staff role.
// Any other user is reported as not found.
func (s *Service) ToggleStaffStatus(ctx context.Context, userID int64) (User, error) {
	return s.toggleActive(ctx, userID, func(ctx context.Context, tx TxRepository, u User) error {
		if u.RoleID == nil {
			return ErrNotFound
		}
		role, err := tx.GetRole(ctx, *u.RoleID)
		if err != nil {
			return err
		}
		if role.Name != access.RoleStaff {
			return ErrNotFound
		}
		return nil
	})
}

func (s *Service) toggleActive(ctx context.Context, userID int64, check func(context.Context, TxRepository, User) error) (User, error) {
	var user User
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := check(ctx, tx, u); err != nil {
			return err
		}
		u.IsActive = !u.IsActive
		if err := tx.SetUserActive(ctx, userID, u.IsActive); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return User{}, fmt.Errorf("rbac: toggle status of user %d: %w", userID, err)
	}
	s.cache.Invalidate(userID)
	s.record(ctx, shared.AuditStatusToggled, "user", userID, map[string]any{"active": user.IsActive})
	return user, nil
}

// PermissionSummary lists the grants of a user grouped by source and by app and model.
func (s *Service) PermissionSummary(ctx context.Context, userID int64) (PermissionSummary, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return PermissionSummary{}, fmt.Errorf("rbac: permission summary: %w", err)
	}
	direct, err := s.repo.UserPermissions(ctx, userID)
	if err != nil {
		return PermissionSummary{}, err
	}
	groups, err := s.repo.UserGroups(ctx, userID)
	if err != nil {
		return PermissionSummary{}, err
	}
	summary := PermissionSummary{
		UserID:   user.ID,
		Username: user.Username,
		Groups:   []string{},
		Direct:   sortedSet(direct),
	}
	var fromGroups []string
	for _, g := range groups {
		summary.Groups = append(summary.Groups, g.Name)
		fromGroups = append(fromGroups, g.Permissions...)
	}
	summary.FromGroups = sortedSet(fromGroups)
	summary.FromRole = []string{}
	if user.RoleID != nil {
		role, err := s.repo.GetRole(ctx, *user.RoleID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return PermissionSummary{}, err
		}
		summary.Role = role.Name
		summary.FromRole = sortedSet(role.Permissions)
	}
	summary.All = sortedSet(append(append(append([]string(nil), summary.Direct...), summary.FromGroups...), summary.FromRole...))
	summary.ByApp = groupByAppModel(summary.All)
	return summary, nil
}

func (s *Service) validPermissions(perms []string) ([]string, error) {
	out := sortedSet(perms)
	if s.registry != nil {
		if err := s.registry.Validate(out...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	var actor int64
	if p := access.PrincipalFromContext(ctx); p != nil {
		actor = p.ID
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("rbac audit", slog.String("action", action), slog.Any("error", err))
	}
}

// sortedSet normalizes, dedupes and sorts permission names. Never nil.
func sortedSet(perms []string) []string {
	seen := make(map[string]struct{}, len(perms))
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		n := access.Normalize(p)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// groupByAppModel indexes "<app>.<action>_<model>" names. Custom actions land under "custom".
func groupByAppModel(perms []string) map[string]map[string][]string {
	out := make(map[string]map[string][]string)
	for _, perm := range perms {
		app, codename, ok := strings.Cut(perm, ".")
		if !ok {
			continue
		}
		model := "custom"
		if action, rest, ok := strings.Cut(codename, "_"); ok && isDefaultAction(action) {
			model = rest
		}
		if out[app] == nil {
			out[app] = make(map[string][]string)
		}
		out[app][model] = append(out[app][model], perm)
	}
	return out
}

func isDefaultAction(action string) bool {
	for _, a := range access.DefaultActions {
		if a == action {
			return true
		}
	}
	return false
}
