package users

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bginfotechs/bginfotechs/internal/access"
	"github.com/bginfotechs/bginfotechs/internal/platform/httpx"
	"github.com/bginfotechs/bginfotechs/internal/rbac"
	"github.com/bginfotechs/bginfotechs/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	manager   Manager
	guard     rbac.Guard
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, manager Manager, guard rbac.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, manager: manager, guard: guard, validator: validator.New()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequirePermission(shared.PermViewUser)).Get("/", h.listUsers)
	r.With(h.guard.RequireAny(shared.PermViewUser, shared.PermManageStaff)).Get("/{id}/permissions", h.permissionSummary)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermChangeUser))
		r.Post("/{id}/toggle-status", h.toggleStatus)
		r.Post("/{id}/permissions", h.savePermissions)
		r.Post("/{id}/groups", h.saveGroups)
	})
	r.With(h.guard.RequirePermission(shared.PermManageStaff)).Post("/{id}/toggle-staff-status", h.toggleStaffStatus)
	r.With(h.guard.RequirePermission(shared.PermManageRoles)).Post("/{id}/role", h.assignRole)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Search: q.Get("q"), Role: access.RoleName(q.Get("role"))}
	if filter.Role != "" && !filter.Role.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Select a valid role name.")
		return
	}
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "active must be true or false")
			return
		}
		filter.Active = &active
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PerPage, _ = strconv.Atoi(q.Get("per_page"))

	rows, page, err := h.service.ListUsers(r.Context(), filter)
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", shared.UserSafeMessage(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": rows, "pagination": page})
}

func (h *Handler) toggleStatus(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.manager.ToggleUserStatus, "User not found")
}

func (h *Handler) toggleStaffStatus(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.manager.ToggleStaffStatus, "Staff user not found")
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) (rbac.User, error), notFound string) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	user, err := fn(r.Context(), id)
	switch {
	case errors.Is(err, rbac.ErrProtectedUser):
		fail(w, http.StatusForbidden, "Cannot toggle status for superuser/admin roles")
		return
	case errors.Is(err, rbac.ErrNotFound):
		fail(w, http.StatusNotFound, notFound)
		return
	case err != nil:
		h.internal(w, r, err)
		return
	}
	statusText := "Inactive"
	if user.IsActive {
		statusText = "Active"
	}
	h.logger.Info("user status toggled", slog.Int64("user_id", id), slog.Bool("active", user.IsActive), slog.Int64("actor", actorID(r)))
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "new_status": user.IsActive, "status_text": statusText})
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var form roleForm
	if !h.decode(w, r, &form) {
		return
	}
	if err := h.manager.AssignRole(r.Context(), id, form.RoleID); err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			fail(w, http.StatusNotFound, "User or role not found")
			return
		}
		h.internal(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "Role updated successfully"})
}

func (h *Handler) savePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var form permissionsForm
	if !h.decode(w, r, &form) {
		return
	}
	perms, err := h.manager.SetUserPermissions(r.Context(), id, form.Permissions)
	if err != nil {
		var cfgErr *access.ConfigurationError
		switch {
		case errors.As(err, &cfgErr):
			fail(w, http.StatusBadRequest, "Unknown permission: "+cfgErr.Permission)
		case errors.Is(err, rbac.ErrNotFound):
			fail(w, http.StatusNotFound, "User not found")
		default:
			h.internal(w, r, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "Permissions saved successfully", "permissions": perms})
}

func (h *Handler) saveGroups(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var form groupsForm
	if !h.decode(w, r, &form) {
		return
	}
	if err := h.manager.SetUserGroups(r.Context(), id, form.Groups); err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			fail(w, http.StatusNotFound, "User not found")
			return
		}
		h.internal(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "Groups saved successfully"})
}

func (h *Handler) permissionSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	summary, err := h.manager.PermissionSummary(r.Context(), id)
	if err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			fail(w, http.StatusNotFound, "User not found")
			return
		}
		h.internal(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		fail(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, strings.ToLower(fe.Field()))
			}
			fail(w, http.StatusBadRequest, "Invalid value for "+strings.Join(fields, ", "))
			return false
		}
		fail(w, http.StatusBadRequest, "Invalid request")
		return false
	}
	return true
}

func (h *Handler) internal(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("user management", slog.String("path", r.URL.Path), slog.Any("error", err))
	fail(w, http.StatusInternalServerError, shared.UserSafeMessage(err))
}

func fail(w http.ResponseWriter, status int, message string) {
	httpx.JSON(w, status, map[string]any{"success": false, "message": message})
}

func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		fail(w, http.StatusNotFound, "User not found")
		return 0, false
	}
	return id, true
}

func actorID(r *http.Request) int64 {
	if p := access.PrincipalFromContext(r.Context()); p != nil {
		return p.ID
	}
	return 0
}
