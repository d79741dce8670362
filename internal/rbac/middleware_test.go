package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bginfotechs/bginfotechs/internal/access"
	"github.com/bginfotechs/bginfotechs/internal/shared"
)

type stubLoader struct {
	principals map[int64]*access.Principal
	err        error
	calls      []int64
}

func (l *stubLoader) LoadPrincipal(ctx context.Context, userID int64) (*access.Principal, error) {
	l.calls = append(l.calls, userID)
	if l.err != nil {
		return nil, l.err
	}
	p, ok := l.principals[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

type decisionCounter struct {
	seen []access.Rule
}

func (c *decisionCounter) ObserveDecision(rule access.Rule, allowed bool) {
	c.seen = append(c.seen, rule)
}

func newTestGuard(t *testing.T, loader PrincipalLoader) (Guard, *decisionCounter) {
	t.Helper()
	_, reg, err := access.DefaultCatalog()
	require.NoError(t, err)
	counter := &decisionCounter{}
	return Guard{Loader: loader, Registry: reg, Metrics: counter, LoginPath: "/auth/login", DeniedPath: "/profile"}, counter
}

func newSessionRequest(t *testing.T, method, target string, userID int64) (*http.Request, *shared.Session) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	req := httptest.NewRequest(method, target, nil)
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	if userID > 0 {
		sess.SetUser(userID)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func okHandler(t *testing.T, called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		require.NotNil(t, access.PrincipalFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestGuardRedirectsAnonymousBeforeLoading(t *testing.T) {
	loader := &stubLoader{}
	guard, counter := newTestGuard(t, loader)
	req, _ := newSessionRequest(t, http.MethodGet, "/roles/?page=2", 0)

	called := false
	rec := httptest.NewRecorder()
	guard.RequirePermission("bg_app.manage_roles")(okHandler(t, &called)).ServeHTTP(rec, req)

	require.False(t, called)
	require.Empty(t, loader.calls)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/auth/login?next=%2Froles%2F%3Fpage%3D2", rec.Header().Get("Location"))
	require.Equal(t, []access.Rule{access.RuleUnauthenticated}, counter.seen)
}

func TestGuardAnonymousJSONGets401(t *testing.T) {
	guard, _ := newTestGuard(t, &stubLoader{})
	req, _ := newSessionRequest(t, http.MethodPost, "/users/3/toggle-status", 0)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	called := false
	rec := httptest.NewRecorder()
	guard.RequirePermission("bg_app.change_user")(okHandler(t, &called)).ServeHTTP(rec, req)
	require.False(t, called)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), access.MsgLoginRequired)
}

func TestGuardInactivePrincipalIsUnauthenticated(t *testing.T) {
	loader := &stubLoader{principals: map[int64]*access.Principal{5: {ID: 5, IsSuperuser: true, IsActive: false}}}
	guard, _ := newTestGuard(t, loader)
	req, _ := newSessionRequest(t, http.MethodGet, "/roles/", 5)

	called := false
	rec := httptest.NewRecorder()
	guard.RequirePermission("bg_app.manage_roles")(okHandler(t, &called)).ServeHTTP(rec, req)
	require.False(t, called)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "/auth/login?next=")
}

func TestGuardDeletedUserClearsSession(t *testing.T) {
	guard, _ := newTestGuard(t, &stubLoader{})
	req, sess := newSessionRequest(t, http.MethodGet, "/roles/", 9)

	called := false
	rec := httptest.NewRecorder()
	guard.RequirePermission("bg_app.manage_roles")(okHandler(t, &called)).ServeHTTP(rec, req)
	require.False(t, called)
	_, ok := sess.UserID()
	require.False(t, ok)
}

func TestGuardDenyFlashesAndRedirects(t *testing.T) {
	loader := &stubLoader{principals: map[int64]*access.Principal{2: {ID: 2, IsActive: true, IsStaff: true}}}
	guard, counter := newTestGuard(t, loader)
	req, sess := newSessionRequest(t, http.MethodGet, "/roles/", 2)

	called := false
	rec := httptest.NewRecorder()
	guard.RequirePermission("bg_app.manage_roles")(okHandler(t, &called)).ServeHTTP(rec, req)

	require.False(t, called)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/profile", rec.Header().Get("Location"))
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	require.Equal(t, shared.FlashError, flash.Kind)
	require.Equal(t, access.MsgPermissionDenied, flash.Message)
	require.Equal(t, []access.Rule{access.RuleNone}, counter.seen)
}

func TestGuardRoleDenyMessage(t *testing.T) {
	loader := &stubLoader{principals: map[int64]*access.Principal{2: {ID: 2, IsActive: true, Role: &access.Role{Name: access.RoleStudent}}}}
	guard, _ := newTestGuard(t, loader)
	req, _ := newSessionRequest(t, http.MethodGet, "/dashboard/staff", 2)
	req.Header.Set("Accept", "application/json")

	called := false
	rec := httptest.NewRecorder()
	guard.RequireRole(access.RoleStaff)(okHandler(t, &called)).ServeHTTP(rec, req)
	require.False(t, called)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "Access restricted to staff role.")
}

func TestGuardAllowsAndStoresPrincipal(t *testing.T) {
	loader := &stubLoader{principals: map[int64]*access.Principal{
		1: {ID: 1, IsActive: true, IsSuperuser: true},
		3: {ID: 3, IsActive: true, Permissions: []string{"bg_app.view_user"}, Role: &access.Role{Name: access.RoleStaff}},
	}}
	guard, counter := newTestGuard(t, loader)

	for _, id := range []int64{1, 3} {
		req, _ := newSessionRequest(t, http.MethodGet, "/users/4/permissions", id)
		called := false
		rec := httptest.NewRecorder()
		guard.RequireAny("bg_app.view_user", "bg_app.manage_staff")(okHandler(t, &called)).ServeHTTP(rec, req)
		require.True(t, called)
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
	require.Equal(t, []access.Rule{access.RuleSuperuser, access.RulePermission}, counter.seen)
}

func TestGuardStaffCapability(t *testing.T) {
	loader := &stubLoader{principals: map[int64]*access.Principal{
		4: {ID: 4, IsActive: true, Role: &access.Role{Name: access.RoleStaff}},
		5: {ID: 5, IsActive: true},
	}}
	guard, _ := newTestGuard(t, loader)
	mw := guard.RequireStaff(access.CapManageContent)

	req, sess := newSessionRequest(t, http.MethodGet, "/staff/content", 4)
	called := false
	mw(okHandler(t, &called)).ServeHTTP(httptest.NewRecorder(), req)
	require.False(t, called)
	require.Equal(t, access.MsgStaffCapability, sess.PopFlash().Message)

	req, sess = newSessionRequest(t, http.MethodGet, "/staff/content", 5)
	mw(okHandler(t, &called)).ServeHTTP(httptest.NewRecorder(), req)
	require.False(t, called)
	require.Equal(t, access.MsgStaffOnly, sess.PopFlash().Message)
}

func TestGuardLoadErrorIs500(t *testing.T) {
	guard, _ := newTestGuard(t, &stubLoader{err: errors.New("db down")})
	req, _ := newSessionRequest(t, http.MethodGet, "/roles/", 1)
	called := false
	rec := httptest.NewRecorder()
	guard.RequireLogin()(okHandler(t, &called)).ServeHTTP(rec, req)
	require.False(t, called)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "db down")
}

func TestGuardRejectsUnknownPermissionAtConstruction(t *testing.T) {
	guard, _ := newTestGuard(t, &stubLoader{})
	require.PanicsWithError(t, (&access.ConfigurationError{Permission: "teams_app.view_jobapplication"}).Error(), func() {
		guard.RequirePermission("teams_app.view_jobapplication")
	})
	require.Panics(t, func() { guard.RequireAll("bg_app.view_user", "auth.change_user") })
	require.Panics(t, func() { guard.RequireRole("instructor") })
	require.NotPanics(t, func() { guard.RequireAll("bg_app.view_user", "bg_app.change_user") })
}

type ownedThing struct{ owner int64 }

func (o ownedThing) OwnerID() int64 { return o.owner }

func TestGuardAuthorizeOwnership(t *testing.T) {
	guard, _ := newTestGuard(t, &stubLoader{})
	req, sess := newSessionRequest(t, http.MethodPost, "/content/blog/3", 7)
	p := &access.Principal{ID: 7, IsActive: true}
	req = req.WithContext(access.ContextWithPrincipal(req.Context(), p))

	rec := httptest.NewRecorder()
	ok := guard.Authorize(rec, req, access.Request{Permissions: []string{"blog_app.change_blog"}, Resource: ownedThing{owner: 7}, AllowOwner: true})
	require.True(t, ok)

	rec = httptest.NewRecorder()
	ok = guard.Authorize(rec, req, access.Request{Permissions: []string{"blog_app.change_blog"}, Resource: ownedThing{owner: 8}, AllowOwner: true})
	require.False(t, ok)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.NotNil(t, sess.PopFlash())
}
