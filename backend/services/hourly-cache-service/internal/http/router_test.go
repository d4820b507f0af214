package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ok(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func testRoutes() Routes {
	return Routes{
		Recalculate:    ok,
		SessionWritten: ok,
		HourlyTotals:   ok,
		LiveFeed:       ok,
		Health:         ok,
	}
}

func serve(h http.Handler, method, path, token string) int {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func TestRouterPublicRoutes(t *testing.T) {
	h := NewRouter(testRoutes(), RouterOptions{JWTSecret: "s"})

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/health", ""))
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/hourly-totals", ""))
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/ws/hourly-totals", ""))
	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodPost, "/health", ""))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "go_goroutines"))
}

func TestRouterInternalRoutesRequireToken(t *testing.T) {
	h := NewRouter(testRoutes(), RouterOptions{JWTSecret: "s"})
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "session-ingest"}).SignedString([]byte("s"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodPost, "/internal/sessions/written", ""))
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/internal/sessions/written", token))
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/internal/machines/67808/hourly-totals/recalculate", token))
	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodGet, "/internal/sessions/written", token))
}

func TestRouterRateLimitsInternalRoutes(t *testing.T) {
	h := NewRouter(testRoutes(), RouterOptions{RateLimitPerMinute: 1})

	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/internal/sessions/written", ""))
	assert.Equal(t, http.StatusTooManyRequests, serve(h, http.MethodPost, "/internal/sessions/written", ""))
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/health", ""))
}

func TestServerRunStopsOnCancel(t *testing.T) {
	srv := NewServer("127.0.0.1:0", http.NewServeMux(), 0, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
