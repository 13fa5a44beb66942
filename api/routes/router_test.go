package routes

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/velopay/payswitch-backend/pkg/config"
	"github.com/velopay/payswitch-backend/pkg/logger"
)

func testParams() RouterParams {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return RouterParams{
		Config: &config.Config{App: config.AppConfig{Env: "test", Port: "0"}},
		Logger: logg,
	}
}

func TestAuthenticatedGroupRejectsMissingAPIKey(t *testing.T) {
	router := NewRouter(testParams())

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/payments"},
		{http.MethodGet, "/api/v1/mandates"},
		{http.MethodGet, "/api/v1/refunds/00000000-0000-0000-0000-000000000000"},
	}
	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 without api key got %d", p.method, p.path, resp.Code)
		}
	}
}

func TestHealthLiveIsOpen(t *testing.T) {
	router := NewRouter(testParams())

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for liveness got %d", resp.Code)
	}
	if resp.Header().Get("X-PaySwitch-Env") != "test" {
		t.Fatalf("expected env header on health responses")
	}
}

func TestMetricsRouteRequiresGatherer(t *testing.T) {
	withoutGatherer := NewRouter(testParams())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	withoutGatherer.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a gatherer got %d", resp.Code)
	}

	params := testParams()
	params.Gatherer = prometheus.NewRegistry()
	withGatherer := NewRouter(params)
	resp = httptest.NewRecorder()
	withGatherer.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics endpoint got %d", resp.Code)
	}
}
