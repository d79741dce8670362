package audithttp

import (
	"context"
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
	"github.com/bginfotechs/bginfotechs/internal/audit"
	"github.com/bginfotechs/bginfotechs/internal/rbac"
	"github.com/bginfotechs/bginfotechs/internal/shared"
)

type stubTimelineService struct {
	result      audit.Result
	exportRows  []audit.TimelineRow
	lastFilters audit.TimelineFilters
}

func (s *stubTimelineService) Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastFilters = filters
	return s.result, nil
}

func (s *stubTimelineService) Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.lastFilters = filters
	return s.exportRows, nil
}

type principalLoader map[int64]*access.Principal

func (l principalLoader) LoadPrincipal(ctx context.Context, id int64) (*access.Principal, error) {
	p, ok := l[id]
	if !ok {
		return nil, rbac.ErrNotFound
	}
	return p, nil
}

func newRouter(t *testing.T, service *stubTimelineService, userID int64) chi.Router {
	t.Helper()
	_, reg, err := access.DefaultCatalog()
	require.NoError(t, err)
	loader := principalLoader{
		1: {ID: 1, IsActive: true, IsSuperuser: true},
		2: {ID: 2, IsActive: true, IsStaff: true, Role: &access.Role{Name: access.RoleStaff}},
	}
	handler := NewHandler(nil, service, rbac.Guard{Loader: loader, Registry: reg})
	handler.now = func() time.Time { return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC) }

	mr := miniredis.RunT(t)
	sessions := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test", "secret", time.Hour, false)
	sess, err := sessions.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser(userID)

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(shared.ContextWithSession(r.Context(), sess)))
		})
	})
	router.Route("/audit", handler.MountRoutes)
	return router
}

func serve(router chi.Router, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestTimelineRequiresPermission(t *testing.T) {
	rec := serve(newRouter(t, &stubTimelineService{}, 2), "/audit/")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTimelineReturnsRows(t *testing.T) {
	rows := []audit.TimelineRow{{At: time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC), Actor: "admin", Action: shared.AuditRoleCreated, Entity: "role", EntityID: "4"}}
	service := &stubTimelineService{result: audit.Result{Rows: rows, Paging: audit.PagingInfo{Page: 1, PageSize: 20}}}
	rec := serve(newRouter(t, service, 1), "/audit/?from=2024-03-01&to=2024-03-15&entity=role")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"actor":"admin"`)
	require.Equal(t, "2024-03-01", service.lastFilters.From.Format("2006-01-02"))
	require.Equal(t, "role", service.lastFilters.Entity)
}

func TestTimelineDefaultsToLastWeek(t *testing.T) {
	service := &stubTimelineService{}
	rec := serve(newRouter(t, service, 1), "/audit/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2024-03-08", service.lastFilters.From.Format("2006-01-02"))
	require.Equal(t, "2024-03-15", service.lastFilters.To.Format("2006-01-02"))
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	router := newRouter(t, &stubTimelineService{}, 1)
	for _, q := range []string{"from=yesterday", "from=2024-03-10&to=2024-03-01", "from=2023-01-01&to=2024-03-01", "page=0", "page_size=x"} {
		rec := serve(router, "/audit/?"+q)
		require.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestExportCSV(t *testing.T) {
	service := &stubTimelineService{exportRows: []audit.TimelineRow{{Actor: "admin", Action: shared.AuditStatusToggled, Entity: "user", EntityID: "9"}}}
	rec := serve(newRouter(t, service, 1), "/audit/export.csv?from=2024-03-01&to=2024-03-05")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	require.Contains(t, rec.Body.String(), "user.status_toggled")
}
