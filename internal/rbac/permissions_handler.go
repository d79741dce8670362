package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bginfotechs/bginfotechs/internal/platform/httpx"
	"github.com/bginfotechs/bginfotechs/internal/shared"
)

// PermissionsHandler manages permission listing.
type PermissionsHandler struct {
	logger  *slog.Logger
	service *Service
	guard   Guard
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, guard Guard) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(shared.PermViewPermissions))
		r.Get("/", h.listPermissions)
	})
}

type permissionView struct {
	Name        string `json:"name"`
	App         string `json:"app"`
	Description string `json:"description"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	app := strings.TrimSpace(strings.ToLower(r.URL.Query().Get("app")))
	perms := h.service.ListPermissions()
	out := make([]permissionView, 0, len(perms))
	for _, p := range perms {
		if app != "" && p.AppLabel() != app {
			continue
		}
		out = append(out, permissionView{Name: p.Name, App: p.AppLabel(), Description: p.Description})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": out, "count": len(out)})
}
