package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"arclight-hq/relay/pkg/config"
	"arclight-hq/relay/pkg/egress"
	"arclight-hq/relay/pkg/providers"
	"arclight-hq/relay/pkg/telemetry/metrics"
)

func newTestServer(secret string) *Server {
	pipeline := NewPipeline(PipelineConfig{
		Registry: providers.NewRegistry(providers.RegistryConfig{CooldownWindow: time.Minute}),
		Egress:   egress.NewPool(egress.PoolConfig{}),
	})
	admin := NewAdmin(&fakeSyncEngine{}, pipeline, nil)

	return NewServer(ServerConfig{
		Config:     config.NewDefaultConfig().Server,
		AuthSecret: secret,
		Pipeline:   pipeline,
		Admin:      admin,
		Metrics:    metrics.NewCollector().Handler(),
	})
}

func TestChatRouteRequiresAuth(t *testing.T) {
	handler := newTestServer("hunter2").Handler()

	req := httptest.NewRequest(http.MethodPost, "/x/deepinfra/v1/chat/completions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("chat without secret: status = %d, want 401", rec.Code)
	}
}

func TestModelsRouteRequiresAuth(t *testing.T) {
	handler := newTestServer("hunter2").Handler()

	req := httptest.NewRequest(http.MethodGet, "/x/deepinfra/v1/models", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("models without secret: status = %d, want 401", rec.Code)
	}
}

func TestModelsRouteWithSecret(t *testing.T) {
	handler := newTestServer("hunter2").Handler()

	// Unknown provider proves the request cleared auth and reached
	// the pipeline.
	req := httptest.NewRequest(http.MethodGet, "/x/nonesuch/v1/models", nil)
	req.Header.Set("Authorization", "Bearer hunter2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("models with secret: status = %d, want 404 from pipeline", rec.Code)
	}
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	handler := newTestServer("hunter2").Handler()

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodPost, "/auths"},
		{http.MethodPut, "/auths"},
		{http.MethodPost, "/show_chat"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without secret: status = %d, want 401", tc.method, tc.path, rec.Code)
		}
	}
}

func TestAdminRouteWithSecret(t *testing.T) {
	handler := newTestServer("hunter2").Handler()

	req := httptest.NewRequest(http.MethodPost, "/show_chat", nil)
	req.Header.Set("Authorization", "Bearer hunter2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("show_chat with secret: status = %d, want 200", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	handler := newTestServer("").Handler()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("metrics: status = %d, want 200", rec.Code)
	}
}

func TestRequestIDOnEveryResponse(t *testing.T) {
	handler := newTestServer("").Handler()

	req := httptest.NewRequest(http.MethodGet, "/x/nonesuch/v1/models", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID")
	}
}
