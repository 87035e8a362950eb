package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seva-flowers/api/internal/domain"
	"github.com/seva-flowers/api/internal/services"
)

type stubSystemService struct {
	healthFunc func(ctx context.Context) (services.SystemHealthReport, error)
}

func (s *stubSystemService) HealthCheck(ctx context.Context) (services.SystemHealthReport, error) {
	if s.healthFunc != nil {
		return s.healthFunc(ctx)
	}
	return services.SystemHealthReport{Status: domain.HealthStatusOK}, nil
}

func TestRouterHealthz(t *testing.T) {
	r := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload["status"] != domain.HealthStatusOK {
		t.Errorf("unexpected status %v", payload["status"])
	}
}

func TestRouterNotFoundIsJSON(t *testing.T) {
	r := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON body, got %q: %v", rec.Body.String(), err)
	}
	if payload.Error != "route_not_found" {
		t.Errorf("unexpected error code %q", payload.Error)
	}
}

func TestRouterUnconfiguredGroupReturnsNotImplemented(t *testing.T) {
	r := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}

func TestRouterMountsConfiguredGroup(t *testing.T) {
	r := NewRouter(WithCatalogRoutes(func(group chi.Router) {
		group.Get("/flowers", func(w http.ResponseWriter, _ *http.Request) {
			writeJSONResponse(w, http.StatusOK, map[string]any{"flowers": []any{}})
		})
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/flowers", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReadyzDegradedStaysAvailable(t *testing.T) {
	system := &stubSystemService{
		healthFunc: func(context.Context) (services.SystemHealthReport, error) {
			return services.SystemHealthReport{
				Status: domain.HealthStatusDegraded,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond},
					"pubsub":    {Status: domain.HealthStatusDegraded, Detail: "publish latency above threshold"},
				},
				GeneratedAt: time.Date(2025, 5, 6, 10, 0, 0, 0, time.UTC),
			}, nil
		},
	}

	r := NewRouter(WithHealthHandlers(NewHealthHandlers(system)))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("degraded report should stay 200, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload["status"] != domain.HealthStatusDegraded {
		t.Errorf("unexpected status %v", payload["status"])
	}
	checks, ok := payload["checks"].(map[string]any)
	if !ok || len(checks) != 2 {
		t.Errorf("expected two checks, got %v", payload["checks"])
	}
}

func TestReadyzErrorReturns503(t *testing.T) {
	system := &stubSystemService{
		healthFunc: func(context.Context) (services.SystemHealthReport, error) {
			return services.SystemHealthReport{}, errors.New("firestore unreachable")
		},
	}

	r := NewRouter(WithHealthHandlers(NewHealthHandlers(system)))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
