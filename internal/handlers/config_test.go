package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seva-flowers/api/internal/domain"
	"github.com/seva-flowers/api/internal/services"
)

type stubConfigService struct {
	getFunc    func(ctx context.Context) (services.AppConfig, error)
	updateFunc func(ctx context.Context, cmd services.UpdateAppConfigCommand) (services.AppConfig, error)
}

func (s *stubConfigService) Get(ctx context.Context) (services.AppConfig, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx)
	}
	return services.AppConfig{}, nil
}

func (s *stubConfigService) Update(ctx context.Context, cmd services.UpdateAppConfigCommand) (services.AppConfig, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, cmd)
	}
	return services.AppConfig{}, nil
}

func TestPublicConfigExposesOnlyDeliveryFee(t *testing.T) {
	cfg := &stubConfigService{
		getFunc: func(context.Context) (services.AppConfig, error) {
			return domain.AppConfig{DeliveryFee: 350, NotifyChat: -100555}, nil
		},
	}

	r := chi.NewRouter()
	NewConfigHandlers(cfg).Routes(r)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if fee, ok := payload["delivery_fee"].(float64); !ok || fee != 350 {
		t.Errorf("unexpected delivery fee %v", payload["delivery_fee"])
	}
	if _, leaked := payload["notify_chat"]; leaked {
		t.Error("public config must not expose the notify chat id")
	}
}

func TestAdminConfigUpdateAppliesFields(t *testing.T) {
	var captured services.UpdateAppConfigCommand
	cfg := &stubConfigService{
		updateFunc: func(_ context.Context, cmd services.UpdateAppConfigCommand) (services.AppConfig, error) {
			captured = cmd
			return domain.AppConfig{DeliveryFee: 450, NotifyChat: -100777, UpdatedAt: time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)}, nil
		},
	}

	r := chi.NewRouter()
	NewConfigHandlers(cfg).AdminRoutes(r)

	body := strings.NewReader(`{"delivery_fee": 450, "notify_chat": -100777}`)
	req := httptest.NewRequest(http.MethodPut, "/", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.DeliveryFee == nil || *captured.DeliveryFee != 450 {
		t.Errorf("expected delivery fee 450, got %#v", captured.DeliveryFee)
	}
	if captured.NotifyChat == nil || *captured.NotifyChat != -100777 {
		t.Errorf("expected notify chat, got %#v", captured.NotifyChat)
	}

	var resp adminConfigResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Config.NotifyChat != -100777 {
		t.Errorf("admin payload should include notify chat, got %#v", resp.Config)
	}
}

func TestAdminConfigUpdateRejectsEmptyBody(t *testing.T) {
	r := chi.NewRouter()
	NewConfigHandlers(&stubConfigService{}).AdminRoutes(r)

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
