package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "storefront-test", ExpirationMinutes: 5},
	}
}

func bearer(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{UserID: uuid.New(), Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func serve(h http.Handler, method, target, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestHealthRoutes(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(Params{
		Config: cfg,
		Health: []controllers.Dependency{{Name: "postgres", Pinger: stubPinger{}}},
	})
	if resp := serve(router, http.MethodGet, "/health/live", ""); resp.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", resp.Code)
	}
	if resp := serve(router, http.MethodGet, "/health/ready", ""); resp.Code != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d", resp.Code)
	}

	down := NewRouter(Params{
		Config: cfg,
		Health: []controllers.Dependency{{Name: "redis", Pinger: stubPinger{err: errors.New("dial tcp: refused")}}},
	})
	if resp := serve(down, http.MethodGet, "/health/ready", ""); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready with failing dependency: expected 503 got %d", resp.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewWebhookMetrics(reg).Observe("checkout.session.completed", "processed")

	router := NewRouter(Params{Config: testConfig(), Metrics: reg})
	resp := serve(router, http.MethodGet, "/metrics", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "checkout.session.completed") {
		t.Fatalf("expected webhook counter in exposition, got %s", resp.Body.String())
	}
}

func TestAuthBoundaries(t *testing.T) {
	cfg := testConfig()
	router := NewRouter(Params{Config: cfg})

	tests := []struct {
		name   string
		method string
		target string
		auth   string
		want   int
	}{
		{"customer route without token", http.MethodGet, "/api/v1/orders", "", http.StatusUnauthorized},
		{"admin route without token", http.MethodGet, "/api/admin/v1/orders", "", http.StatusUnauthorized},
		{"admin route as customer", http.MethodGet, "/api/admin/v1/orders", bearer(t, cfg, enums.UserRoleUser), http.StatusForbidden},
		{"admin route as courier", http.MethodGet, "/api/admin/v1/returns", bearer(t, cfg, enums.UserRoleDelivery), http.StatusForbidden},
		{"courier route as customer", http.MethodPatch, "/api/v1/deliveries/" + uuid.NewString() + "/status", bearer(t, cfg, enums.UserRoleUser), http.StatusForbidden},
		// unwired services surface as 500 once auth passes
		{"admin route as admin", http.MethodGet, "/api/admin/v1/orders", bearer(t, cfg, enums.UserRoleAdmin), http.StatusInternalServerError},
		{"customer route as customer", http.MethodGet, "/api/v1/returns", bearer(t, cfg, enums.UserRoleUser), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := serve(router, tc.method, tc.target, tc.auth)
			if resp.Code != tc.want {
				t.Fatalf("expected %d got %d: %s", tc.want, resp.Code, resp.Body.String())
			}
		})
	}
}

func TestStripeWebhookSkipsAuth(t *testing.T) {
	router := NewRouter(Params{Config: testConfig()})
	resp := serve(router, http.MethodPost, "/api/v1/webhooks/stripe", "")
	if resp.Code == http.StatusUnauthorized || resp.Code == http.StatusNotFound {
		t.Fatalf("webhook route should be reachable without a token, got %d", resp.Code)
	}
}
