package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AkZcH/MutexTalk/internal/admin"
	"github.com/AkZcH/MutexTalk/internal/audit"
	"github.com/AkZcH/MutexTalk/internal/chat"
	"github.com/AkZcH/MutexTalk/internal/command"
	commandhttp "github.com/AkZcH/MutexTalk/internal/command/http"
	"github.com/AkZcH/MutexTalk/internal/observability"
	"github.com/AkZcH/MutexTalk/internal/permit"
	"github.com/AkZcH/MutexTalk/internal/storage/flatfile"
)

func testConfig() *Config {
	return &Config{AppEnv: "test", RateLimitPerMinute: 1000, CORSOrigin: "*"}
}

func newTestRouter(t *testing.T, health HealthCheck) (http.Handler, *observability.Metrics) {
	t.Helper()
	store, err := flatfile.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	metrics := observability.NewMetrics()
	arbiter := permit.NewArbiter()
	metrics.TrackPermit(func() (bool, bool) {
		st := arbiter.Status()
		return !st.Available, st.Enabled
	})
	recorder := audit.New(store, nil, audit.WithMetrics(metrics))
	messages := chat.NewService(permit.NewGate(arbiter), store, arbiter, recorder, nil)
	gate := admin.NewGate(admin.NewAllowList(admin.DefaultAdmins...), arbiter, store, recorder, nil)
	d := command.NewDispatcher(arbiter, messages, gate, recorder, command.WithMetrics(metrics))

	router := NewRouter(RouterParams{
		Logger:         newLogger(testConfig(), &bytes.Buffer{}),
		Config:         testConfig(),
		Metrics:        metrics,
		CommandHandler: commandhttp.NewHandler(nil, d, gate),
		Health:         health,
	})
	return router, metrics
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t, func(context.Context) error { return nil })

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestHealthzReportsFailure(t *testing.T) {
	router, _ := newTestRouter(t, func(context.Context) error { return errors.New("down") })

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestSecurityAndCORSHeaders(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/api/semaphore/status", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rr.Header().Get("Access-Control-Allow-Methods"))
}

func TestPreflight(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/messages", nil)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := serve(router, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "X-User")
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
}

func TestMetricsEndpointTracksPermit(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/semaphore/acquire", nil)
	req.Header.Set(commandhttp.UserHeader, "alice")
	require.Equal(t, http.StatusOK, serve(router, req).Code)

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, "mutextalk_permit_held 1"), body)
	assert.Contains(t, body, `mutextalk_permit_acquire_total{outcome="granted"} 1`)
	assert.Contains(t, body, `mutextalk_commands_total{code="0",kind="TRY_ACQUIRE"} 1`)
	assert.Contains(t, body, `route="/api/semaphore/acquire"`)
}

func TestCommandEndpointMounted(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader(`{"action":"STATUS"}`))
	rr := serve(router, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"OK","data":{"semaphore":1,"holder":""}}`, rr.Body.String())
}

func TestUnknownRouteIsProblem(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "no route for /nope")

	rr = serve(router, httptest.NewRequest(http.MethodDelete, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
