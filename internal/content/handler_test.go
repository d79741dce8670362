package content

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bginfotechs/bginfotechs/internal/access"
	"github.com/bginfotechs/bginfotechs/internal/rbac"
	"github.com/bginfotechs/bginfotechs/internal/shared"
)

type principalLoader map[int64]*access.Principal

func (l principalLoader) LoadPrincipal(ctx context.Context, id int64) (*access.Principal, error) {
	p, ok := l[id]
	if !ok {
		return nil, rbac.ErrNotFound
	}
	return p, nil
}

type decisionLog []access.Rule

func (l *decisionLog) ObserveDecision(rule access.Rule, allowed bool) {
	if !allowed {
		*l = append(*l, rule)
	}
}

func newRouter(t *testing.T, actor int64) http.Handler {
	t.Helper()
	h, _, _ := newRouterWithSession(t, actor)
	return h
}

func newRouterWithSession(t *testing.T, actor int64) (http.Handler, *shared.Session, *decisionLog) {
	t.Helper()
	svc, _ := seededService(t)
	_, reg, err := access.DefaultCatalog()
	require.NoError(t, err)
	denials := &decisionLog{}
	guard := rbac.Guard{
		Loader:     principalLoader{1: superuser, 2: editor, 3: author, 4: stranger},
		Registry:   reg,
		Metrics:    denials,
		DeniedPath: "/dashboard/",
	}

	mr := miniredis.RunT(t)
	sessions := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test", "secret", time.Hour, false)
	sess, err := sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	if actor > 0 {
		sess.SetUser(actor)
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	r.Route("/content/{kind}", NewHandler(nil, svc, guard).MountRoutes)
	return r, sess, denials
}

func send(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestContentRequiresLogin(t *testing.T) {
	rec := send(newRouter(t, 0), http.MethodGet, "/content/blog/", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestContentListIsScoped(t *testing.T) {
	rec := send(newRouter(t, 3), http.MethodGet, "/content/blog/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Items      []Item            `json:"items"`
		Pagination shared.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 2)
	require.Equal(t, 2, body.Pagination.Total)
}

func TestContentUnknownKind(t *testing.T) {
	rec := send(newRouter(t, 1), http.MethodGet, "/content/podcast/", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContentCreateAndDeny(t *testing.T) {
	h := newRouter(t, 3)
	rec := send(h, http.MethodPost, "/content/blog/", `{"title":"Fresh post"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var item Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &item))
	require.Equal(t, "fresh-post", item.Slug)
	require.Equal(t, int64(3), item.Owner)

	rec = send(h, http.MethodPut, "/content/blog/2", `{"title":"Taken over"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), access.MsgPermissionDenied)

	rec = send(h, http.MethodPost, "/content/blog/", `{"title":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContentOwnerDelete(t *testing.T) {
	h := newRouter(t, 3)
	rec := send(h, http.MethodPost, "/content/blog/1/delete", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = send(h, http.MethodGet, "/content/blog/1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContentBrowserDeleteDeniedRedirects(t *testing.T) {
	h, sess, denials := newRouterWithSession(t, 3)
	req := httptest.NewRequest(http.MethodPost, "/content/blog/2/delete", nil)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/dashboard/", rec.Header().Get("Location"))
	flash := sess.PopFlash()
	require.NotNil(t, flash)
	require.Equal(t, shared.FlashError, flash.Kind)
	require.Equal(t, access.MsgPermissionDenied, flash.Message)
	require.Equal(t, decisionLog{access.RuleNone}, *denials)
}
