package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/seva-flowers/api/internal/domain"
	"github.com/seva-flowers/api/internal/platform/auth"
	"github.com/seva-flowers/api/internal/services"
)

func newAdminOrderRouter(orders services.OrderService) chi.Router {
	r := chi.NewRouter()
	NewAdminOrderHandlers(orders).Routes(r)
	return r
}

func TestAdminListOrdersParsesStatusFilter(t *testing.T) {
	var captured services.OrderListFilter
	orders := &stubOrderService{
		listFunc: func(_ context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
			captured = filter
			return domain.CursorPage[services.Order]{}, nil
		},
	}

	req := withTestIdentity(httptest.NewRequest(http.MethodGet, "/?status=pending,confirmed", nil), "usr_admin", auth.RoleAdmin)
	rec := httptest.NewRecorder()
	newAdminOrderRouter(orders).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(captured.Status) != 2 || captured.Status[0] != domain.OrderStatusPending || captured.Status[1] != domain.OrderStatusConfirmed {
		t.Fatalf("unexpected status filter %v", captured.Status)
	}
	if captured.UserID != "" {
		t.Errorf("admin listing must not scope to the caller, got %q", captured.UserID)
	}
}

func TestAdminListOrdersRejectsUnknownStatus(t *testing.T) {
	req := withTestIdentity(httptest.NewRequest(http.MethodGet, "/?status=SHIPPED", nil), "usr_admin", auth.RoleAdmin)
	rec := httptest.NewRecorder()
	newAdminOrderRouter(&stubOrderService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAdminGetOrderReadsAcrossOwners(t *testing.T) {
	orders := &stubOrderService{
		getFunc: func(_ context.Context, cmd services.GetOrderCommand) (services.Order, error) {
			if cmd.UserID != "" {
				t.Fatalf("admin read must not be owner-scoped, got %q", cmd.UserID)
			}
			return sampleHandlerOrder(), nil
		},
	}

	req := withTestIdentity(httptest.NewRequest(http.MethodGet, "/ord_1", nil), "usr_admin", auth.RoleAdmin)
	rec := httptest.NewRecorder()
	newAdminOrderRouter(orders).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminTransitionStatus(t *testing.T) {
	var captured services.OrderStatusTransitionCommand
	orders := &stubOrderService{
		transitionFunc: func(_ context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
			captured = cmd
			order := sampleHandlerOrder()
			order.Status = domain.OrderStatusConfirmed
			return order, nil
		},
	}

	body := strings.NewReader(`{"status": "confirmed"}`)
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/ord_1/status", body), "usr_admin", auth.RoleAdmin)
	rec := httptest.NewRecorder()
	newAdminOrderRouter(orders).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.OrderID != "ord_1" || captured.Status != domain.OrderStatusConfirmed || captured.ActorID != "usr_admin" {
		t.Fatalf("unexpected command %#v", captured)
	}
}

func TestAdminTransitionInvalidStateMapsToConflict(t *testing.T) {
	orders := &stubOrderService{
		transitionFunc: func(_ context.Context, _ services.OrderStatusTransitionCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderInvalidState
		},
	}

	body := strings.NewReader(`{"status": "DELIVERED"}`)
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/ord_1/status", body), "usr_admin", auth.RoleAdmin)
	rec := httptest.NewRecorder()
	newAdminOrderRouter(orders).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}
