package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/bginfotechs/bginfotechs/internal/access"
	"github.com/bginfotechs/bginfotechs/internal/platform/httpx"
	"github.com/bginfotechs/bginfotechs/internal/shared"
)

// PrincipalLoader resolves the principal of an authenticated user.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID int64) (*access.Principal, error)
}

// DecisionObserver receives every decision made by the guard.
type DecisionObserver interface {
	ObserveDecision(rule access.Rule, allowed bool)
}

// Guard wires access decisions into HTTP handlers.
type Guard struct {
	Loader     PrincipalLoader
	Registry   *access.Registry
	Logger     *slog.Logger
	Metrics    DecisionObserver
	LoginPath  string
	DeniedPath string
}

// RequireLogin only requires an active authenticated principal.
func (g Guard) RequireLogin() func(http.Handler) http.Handler {
	return g.enforce(func(p *access.Principal) access.Decision {
		return access.Decision{Allowed: true, Rule: access.RuleAuthenticated}
	})
}

// RequirePermission requires a single permission.
func (g Guard) RequirePermission(perm string) func(http.Handler) http.Handler {
	return g.Require(access.Request{Permissions: []string{perm}})
}

// RequireAny ensures the current user has at least one of the required permissions.
func (g Guard) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return g.Require(access.Request{Permissions: perms, Match: access.MatchAny})
}

// RequireAll ensures the current user has all required permissions.
func (g Guard) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return g.Require(access.Request{Permissions: perms, Match: access.MatchAll})
}

// RequireRole restricts a route to one role. Superusers always pass.
func (g Guard) RequireRole(role access.RoleName) func(http.Handler) http.Handler {
	if !role.Valid() {
		panic(fmt.Errorf("rbac: unknown role %q", role))
	}
	return g.Require(access.Request{Role: role})
}

// RequireStaff restricts a route to staff holding the capability.
func (g Guard) RequireStaff(c access.Capability) func(http.Handler) http.Handler {
	g.mustKnow(c.Permission())
	return g.enforce(func(p *access.Principal) access.Decision {
		return access.DecideStaff(p, c)
	})
}

// Require evaluates a full request. Permission names are checked against the
// registry now, so an unknown name panics while routes are mounted.
func (g Guard) Require(req access.Request) func(http.Handler) http.Handler {
	g.mustKnow(req.Permissions...)
	return g.enforce(func(p *access.Principal) access.Decision {
		return access.Decide(p, req)
	})
}

// Authorize checks req against the principal stored by an outer guard. On deny
// it writes the deny response and returns false.
func (g Guard) Authorize(w http.ResponseWriter, r *http.Request, req access.Request) bool {
	p := access.PrincipalFromContext(r.Context())
	if p == nil {
		g.unauthenticated(w, r)
		return false
	}
	d := access.Decide(p, req)
	if !d.Allowed {
		g.Deny(w, r, d)
		return false
	}
	g.observe(r, p, d)
	return true
}

// Deny records a refused decision made outside the guard, such as a row-level
// check in a service, and writes the same response as a guard denial.
func (g Guard) Deny(w http.ResponseWriter, r *http.Request, d access.Decision) {
	p := access.PrincipalFromContext(r.Context())
	if p == nil && d.Rule == access.RuleUnauthenticated {
		g.unauthenticated(w, r)
		return
	}
	g.observe(r, p, d)
	g.deny(w, r, d)
}

func (g Guard) mustKnow(perms ...string) {
	if g.Registry == nil {
		return
	}
	g.Registry.MustValidate(perms...)
}

func (g Guard) enforce(decide func(*access.Principal) access.Decision) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := g.authenticate(w, r)
			if !ok {
				return
			}
			d := decide(p)
			g.observe(r, p, d)
			if !d.Allowed {
				g.deny(w, r, d)
				return
			}
			next.ServeHTTP(w, r.WithContext(access.ContextWithPrincipal(r.Context(), p)))
		})
	}
}

// authenticate resolves the principal. Missing sessions are rejected before
// anything is loaded.
func (g Guard) authenticate(w http.ResponseWriter, r *http.Request) (*access.Principal, bool) {
	if p := access.PrincipalFromContext(r.Context()); p != nil {
		return p, true
	}
	sess := shared.SessionFromContext(r.Context())
	userID, ok := sess.UserID()
	if !ok {
		g.unauthenticated(w, r)
		return nil, false
	}
	p, err := g.Loader.LoadPrincipal(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			sess.ClearUser()
			g.unauthenticated(w, r)
			return nil, false
		}
		g.logger().Error("rbac load principal", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", shared.UserSafeMessage(err))
		return nil, false
	}
	if p == nil || !p.IsActive {
		g.unauthenticated(w, r)
		return nil, false
	}
	return p, true
}

func (g Guard) unauthenticated(w http.ResponseWriter, r *http.Request) {
	g.observe(r, nil, access.Decision{Rule: access.RuleUnauthenticated, Reason: access.MsgLoginRequired})
	if httpx.WantsJSON(r) {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", access.MsgLoginRequired)
		return
	}
	http.Redirect(w, r, g.loginPath()+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
}

func (g Guard) loginPath() string {
	if g.LoginPath == "" {
		return "/auth/login"
	}
	return g.LoginPath
}

func (g Guard) deny(w http.ResponseWriter, r *http.Request, d access.Decision) {
	reason := d.Reason
	if reason == "" {
		reason = access.MsgPermissionDenied
	}
	if httpx.WantsJSON(r) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", reason)
		return
	}
	denied := g.DeniedPath
	if denied == "" {
		denied = "/profile"
	}
	shared.RedirectWithFlash(w, r, denied, shared.FlashError, reason)
}

func (g Guard) observe(r *http.Request, p *access.Principal, d access.Decision) {
	if g.Metrics != nil {
		g.Metrics.ObserveDecision(d.Rule, d.Allowed)
	}
	if d.Allowed {
		return
	}
	attrs := []any{
		slog.String("path", r.URL.Path),
		slog.String("rule", string(d.Rule)),
		slog.String("reason", d.Reason),
	}
	if p != nil {
		attrs = append(attrs, slog.Int64("user_id", p.ID))
	}
	g.logger().Info("access denied", attrs...)
}

func (g Guard) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}
