package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bginfotechs/bginfotechs/internal/access"
	"github.com/bginfotechs/bginfotechs/internal/platform/httpx"
	"github.com/bginfotechs/bginfotechs/internal/rbac"
	"github.com/bginfotechs/bginfotechs/internal/shared"
)

const (
	loginPath        = "/auth/login"
	msgMissingFields = "Please provide both username and password"
	msgLoggedOut     = "You have been logged out successfully"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	guard          rbac.Guard
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance. guard.Loader resolves the
// principal used for the post-login redirect and the portal pages.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager, guard rbac.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		guard:          guard,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

// MountPortal registers the profile page and the dashboards.
func (h *Handler) MountPortal(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireLogin())
		r.Get(ProfilePath, h.showProfile)
		r.Get("/dashboard/", h.redirectToDashboard)
	})
	r.With(h.guard.RequirePermission(shared.PermViewAdminDashboard)).Get(AdminDashboardPath, h.showDashboard("admin"))
	r.With(h.guard.RequirePermission(shared.PermViewStaffDashboard)).Get(StaffDashboardPath, h.showDashboard("staff"))
	r.With(h.guard.RequirePermission(shared.PermViewStudentDashboard)).Get(StudentDashboardPath, h.showDashboard("student"))
	for _, c := range access.StaffCapabilities() {
		r.With(h.guard.RequireStaff(c)).Get(StaffAreaPath(c), h.showStaffArea(c))
	}
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if p := h.currentPrincipal(r); p != nil {
		http.Redirect(w, r, DashboardPath(p), http.StatusSeeOther)
		return
	}
	csrfToken, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("csrf token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", shared.UserSafeMessage(err))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"csrf_token": csrfToken,
		"next":       safeNext(r.URL.Query().Get("next")),
		"flashes":    shared.Flashes(r),
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	form, err := h.parseLogin(r)
	if err != nil {
		h.loginFailed(w, r, http.StatusBadRequest, "Invalid request", "")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		h.loginFailed(w, r, http.StatusBadRequest, msgMissingFields, form.Next)
		return
	}

	account, err := h.service.Authenticate(r.Context(), form.Username, form.Password)
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials), errors.Is(err, shared.ErrAccountInactive):
		h.logger.Info("login rejected", slog.String("username", form.Username), slog.String("reason", err.Error()))
		h.loginFailed(w, r, http.StatusUnauthorized, shared.UserSafeMessage(err), form.Next)
		return
	case err != nil:
		h.logger.Error("authenticate", slog.Any("error", err))
		h.loginFailed(w, r, http.StatusInternalServerError, shared.UserSafeMessage(err), form.Next)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", shared.UserSafeMessage(errors.New("no session")))
		return
	}
	if err := h.sessionManager.Rotate(r.Context(), sess); err != nil {
		h.logger.Warn("rotate session", slog.Any("error", err))
	}
	sess.SetUser(account.ID)
	sess.Delete(shared.CSRFSessionKey)
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)

	ip := clientIP(r)
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, account.ID, expiresAt, ip, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	if err := h.service.RecordLogin(r.Context(), account.ID, ip); err != nil {
		h.logger.Warn("record login", slog.Any("error", err))
	}
	h.logger.Info("login", slog.Int64("user_id", account.ID), slog.String("ip", ip))

	target := safeNext(form.Next)
	if target == "" {
		p, err := h.guard.Loader.LoadPrincipal(r.Context(), account.ID)
		if err != nil {
			h.logger.Warn("load principal after login", slog.Int64("user_id", account.ID), slog.Any("error", err))
		}
		target = DashboardPath(p)
	}
	welcome := fmt.Sprintf("Welcome back, %s!", account.DisplayName())
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "message": welcome, "redirect": target, "csrf_token": csrfToken})
		return
	}
	shared.RedirectWithFlash(w, r, target, shared.FlashSuccess, welcome)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		sess.ClearUser()
		sess.Delete(shared.CSRFSessionKey)
		if err := h.sessionManager.Rotate(r.Context(), sess); err != nil {
			h.logger.Warn("rotate session", slog.Any("error", err))
		}
	}
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "message": msgLoggedOut})
		return
	}
	shared.RedirectWithFlash(w, r, loginPath, shared.FlashSuccess, msgLoggedOut)
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	p := access.PrincipalFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), shared.SessionFromContext(r.Context()))
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user":       principalView(p),
		"dashboard":  DashboardPath(p),
		"csrf_token": csrfToken,
		"flashes":    shared.Flashes(r),
	})
}

func (h *Handler) redirectToDashboard(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, DashboardPath(access.PrincipalFromContext(r.Context())), http.StatusSeeOther)
}

func (h *Handler) showDashboard(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]any{
			"dashboard": name,
			"user":      principalView(access.PrincipalFromContext(r.Context())),
			"flashes":   shared.Flashes(r),
		})
	}
}

func (h *Handler) showStaffArea(c access.Capability) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]any{
			"dashboard":  "staff",
			"capability": string(c),
			"user":       principalView(access.PrincipalFromContext(r.Context())),
			"flashes":    shared.Flashes(r),
		})
	}
}

func (h *Handler) loginFailed(w http.ResponseWriter, r *http.Request, status int, message, next string) {
	if wantsJSON(r) {
		httpx.Problem(w, status, http.StatusText(status), message)
		return
	}
	location := loginPath
	if next = safeNext(next); next != "" {
		location += "?next=" + url.QueryEscape(next)
	}
	shared.RedirectWithFlash(w, r, location, shared.FlashError, message)
}

func (h *Handler) parseLogin(r *http.Request) (loginForm, error) {
	var form loginForm
	if httpx.HasJSONBody(r) {
		if err := httpx.DecodeJSON(r, &form); err != nil {
			return loginForm{}, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return loginForm{}, err
		}
		form = loginForm{
			Username: r.PostFormValue("username"),
			Password: r.PostFormValue("password"),
			Next:     r.PostFormValue("next"),
		}
	}
	form.Username = strings.TrimSpace(form.Username)
	if form.Next == "" {
		form.Next = r.URL.Query().Get("next")
	}
	return form, nil
}

// currentPrincipal returns the active principal of the session, if any.
func (h *Handler) currentPrincipal(r *http.Request) *access.Principal {
	userID, ok := shared.SessionFromContext(r.Context()).UserID()
	if !ok || h.guard.Loader == nil {
		return nil
	}
	p, err := h.guard.Loader.LoadPrincipal(r.Context(), userID)
	if err != nil || p == nil || !p.IsActive {
		return nil
	}
	return p
}

func principalView(p *access.Principal) map[string]any {
	if p == nil {
		return nil
	}
	view := map[string]any{
		"id":           p.ID,
		"username":     p.Username,
		"is_staff":     p.IsStaff,
		"is_superuser": p.IsSuperuser,
		"permissions":  p.Permissions,
		"role":         nil,
	}
	if p.Role != nil {
		view["role"] = p.Role.Name
	}
	return view
}

// safeNext keeps only local absolute paths.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return ""
	}
	if u, err := url.Parse(next); err != nil || u.Host != "" || u.Scheme != "" {
		return ""
	}
	return next
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func wantsJSON(r *http.Request) bool {
	return httpx.WantsJSON(r) || httpx.HasJSONBody(r)
}
