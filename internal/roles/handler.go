package roles

import (
	"errors"
	"fmt"
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

const listPath = "/roles/"

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   Manager
	guard     rbac.Guard
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service Manager, guard rbac.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermManageRoles))
		r.Get("/", h.listRoles)
		r.Post("/", h.createRole)
		r.Get("/{id}", h.showRole)
		r.Put("/{id}", h.updateRole)
		r.Post("/{id}", h.updateRole)
		r.Delete("/{id}", h.deleteRole)
		r.Post("/{id}/delete", h.deleteRole)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "Error loading roles")
		return
	}
	out := make([]RoleView, 0, len(roles))
	for _, role := range roles {
		out = append(out, toView(role, false))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out, "flashes": shared.Flashes(r)})
}

func (h *Handler) showRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toView(role, true))
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var form roleForm
	if err := decodeForm(r, &form); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		h.fail(w, r, err)
		return
	}
	role, err := h.service.CreateRole(r.Context(), rbac.RoleInput{
		Name:        access.RoleName(form.Name),
		Description: form.Description,
		Permissions: form.Permissions,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("role created", slog.String("role", string(role.Name)), slog.Int64("actor", actorID(r)))
	msg := fmt.Sprintf("Role %q created successfully with %d permissions", role.Name.Display(), len(role.Permissions))
	h.done(w, r, http.StatusCreated, msg, toView(role, true))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var form roleEditForm
	if err := decodeForm(r, &form); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		h.fail(w, r, err)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, form.Description, form.Permissions)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("role updated", slog.String("role", string(role.Name)), slog.Int64("actor", actorID(r)))
	h.done(w, r, http.StatusOK, fmt.Sprintf("Role %q updated successfully", role.Name.Display()), toView(role, true))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	role, err := h.service.DeleteRole(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("role deleted", slog.String("role", string(role.Name)), slog.Int64("actor", actorID(r)))
	h.done(w, r, http.StatusOK, fmt.Sprintf("Role %q deleted successfully", role.Name.Display()), map[string]any{"deleted": role.ID})
}

func (h *Handler) done(w http.ResponseWriter, r *http.Request, status int, message string, body any) {
	if wantsJSON(r) {
		httpx.JSON(w, status, map[string]any{"success": true, "message": message, "role": body})
		return
	}
	shared.RedirectWithFlash(w, r, listPath, shared.FlashSuccess, message)
}

// fail maps service errors to a status and a message safe to show.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, title, msg := classify(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("role management", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	if wantsJSON(r) {
		httpx.Problem(w, status, title, msg)
		return
	}
	shared.RedirectWithFlash(w, r, listPath, shared.FlashError, msg)
}

func classify(err error) (int, string, string) {
	var (
		validationErrs validator.ValidationErrors
		cfgErr         *access.ConfigurationError
		sysErr         *rbac.SystemRoleError
		inUseErr       *rbac.RoleInUseError
	)
	switch {
	case errors.As(err, &validationErrs):
		fields := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			fields = append(fields, strings.ToLower(fe.Field()))
		}
		return http.StatusBadRequest, "Validation Failed", "Please correct the errors below: " + strings.Join(fields, ", ")
	case errors.Is(err, errBadForm):
		return http.StatusBadRequest, "Validation Failed", err.Error()
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest, "Validation Failed", fmt.Sprintf("Unknown permission %q.", cfgErr.Permission)
	case errors.Is(err, rbac.ErrInvalidRole):
		return http.StatusBadRequest, "Validation Failed", "Select a valid role name."
	case errors.As(err, &sysErr):
		return http.StatusConflict, "Conflict", sysErr.Error()
	case errors.As(err, &inUseErr):
		return http.StatusConflict, "Conflict", inUseErr.Error()
	case errors.Is(err, rbac.ErrDuplicate):
		return http.StatusConflict, "Duplicate", "Role with this name already exists."
	case errors.Is(err, rbac.ErrNotFound):
		return http.StatusNotFound, "Not Found", "Role not found."
	}
	return http.StatusInternalServerError, "Internal Error", shared.UserSafeMessage(err)
}

var errBadForm = errors.New("malformed request body")

func decodeForm(r *http.Request, dst any) error {
	if httpx.HasJSONBody(r) {
		if err := httpx.DecodeJSON(r, dst); err != nil {
			return fmt.Errorf("%w: %v", errBadForm, err)
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("%w: %v", errBadForm, err)
	}
	switch f := dst.(type) {
	case *roleForm:
		f.Name = strings.TrimSpace(r.PostForm.Get("name"))
		f.Description = r.PostForm.Get("description")
		f.Permissions = r.PostForm["permissions"]
	case *roleEditForm:
		f.Description = r.PostForm.Get("description")
		f.Permissions = r.PostForm["permissions"]
	}
	return nil
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "Role not found.")
		return 0, false
	}
	return id, true
}

func wantsJSON(r *http.Request) bool {
	return httpx.WantsJSON(r) || httpx.HasJSONBody(r)
}

func actorID(r *http.Request) int64 {
	if p := access.PrincipalFromContext(r.Context()); p != nil {
		return p.ID
	}
	return 0
}
