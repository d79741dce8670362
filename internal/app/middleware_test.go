package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bginfotechs/bginfotechs/internal/shared"
)

func newCSRFRouter(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	csrf := shared.NewCSRFManager("csrf")
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:         &Config{RateLimitPerMinute: 1000},
		SessionManager: shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "bg_session", "secret", time.Hour, false),
		CSRFManager:    csrf,
	}) {
		r.Use(mw)
	}
	r.Get("/token", func(w http.ResponseWriter, r *http.Request) {
		token, err := csrf.EnsureToken(r.Context(), shared.SessionFromContext(r.Context()))
		require.NoError(t, err)
		_, _ = w.Write([]byte(token))
	})
	r.Post("/submit", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func fetchToken(t *testing.T, h http.Handler) (string, *http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/token", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return rec.Body.String(), cookies[0]
}

func TestCSRFAcceptsHeaderToken(t *testing.T) {
	h := newCSRFRouter(t)
	token, cookie := fetchToken(t, h)

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(cookie)
	req.Header.Set(shared.CSRFHeader, token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCSRFAcceptsFormField(t *testing.T) {
	h := newCSRFRouter(t)
	token, cookie := fetchToken(t, h)

	form := url.Values{shared.CSRFFormField: {token}}
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCSRFRejectsMismatchedToken(t *testing.T) {
	h := newCSRFRouter(t)
	_, cookie := fetchToken(t, h)

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.AddCookie(cookie)
	req.Header.Set(shared.CSRFHeader, "forged")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
