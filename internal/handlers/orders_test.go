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

type stubOrderService struct {
	createFunc     func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error)
	listFunc       func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error)
	getFunc        func(ctx context.Context, cmd services.GetOrderCommand) (services.Order, error)
	transitionFunc func(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error)
}

func (s *stubOrderService) CreateFromCart(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubOrderService) GetOrder(ctx context.Context, cmd services.GetOrderCommand) (services.Order, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
	if s.transitionFunc != nil {
		return s.transitionFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func sampleHandlerOrder() services.Order {
	return services.Order{
		ID:             "ord_1",
		Number:         "SF-2025-000042",
		UserID:         "usr_1",
		Status:         domain.OrderStatusPending,
		DeliveryMethod: domain.DeliveryMethodCourier,
		Contact:        domain.OrderContact{Name: "Анна", Phone: "79123456789", Address: "ул. Ленина, 1"},
		Lines: []domain.OrderLine{
			{FlowerID: "flw_1", FlowerName: "Пионы", UnitPrice: 1200, Quantity: 2, Subtotal: 2400},
		},
		Currency:    "RUB",
		ItemsTotal:  2400,
		DeliveryFee: 300,
		Total:       2700,
		CreatedAt:   time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC),
	}
}

func newOrderRouter(orders services.OrderService) chi.Router {
	r := chi.NewRouter()
	NewOrderHandlers(nil, orders, nil).Routes(r)
	return r
}

func TestCreateOrderReturnsCreated(t *testing.T) {
	var captured services.CreateOrderCommand
	orders := &stubOrderService{
		createFunc: func(_ context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			captured = cmd
			return sampleHandlerOrder(), nil
		},
	}

	body := strings.NewReader(`{"delivery_method": "delivery", "contact": {"name": "Анна", "phone": "+7 (912) 345-67-89", "address": "ул. Ленина, 1"}}`)
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/", body), "usr_1")
	rec := httptest.NewRecorder()
	newOrderRouter(orders).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.UserID != "usr_1" {
		t.Errorf("unexpected user id %s", captured.UserID)
	}
	if captured.DeliveryMethod != domain.DeliveryMethodCourier {
		t.Errorf("expected upper-cased delivery method, got %s", captured.DeliveryMethod)
	}

	var resp orderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Order.Number != "SF-2025-000042" || resp.Order.Total != 2700 {
		t.Fatalf("unexpected order payload %#v", resp.Order)
	}
}

func TestCreateOrderForwardsExplicitItems(t *testing.T) {
	var captured services.CreateOrderCommand
	orders := &stubOrderService{
		createFunc: func(_ context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			captured = cmd
			return sampleHandlerOrder(), nil
		},
	}

	body := strings.NewReader(`{"delivery_method": "PICKUP", "contact": {"name": "Анна"}, "items": [{"flower_id": "flw_1", "quantity": 2}]}`)
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/", body), "usr_1")
	rec := httptest.NewRecorder()
	newOrderRouter(orders).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(captured.Items) != 1 {
		t.Fatalf("expected 1 item forwarded, got %d", len(captured.Items))
	}
	if captured.Items[0].FlowerID != "flw_1" || captured.Items[0].Quantity != 2 {
		t.Fatalf("unexpected item %+v", captured.Items[0])
	}
}

func TestCreateOrderMapsEmptyCart(t *testing.T) {
	orders := &stubOrderService{
		createFunc: func(_ context.Context, _ services.CreateOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderEmptyCart
		},
	}

	body := strings.NewReader(`{"delivery_method": "PICKUP", "contact": {"name": "Анна", "phone": "79123456789"}}`)
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/", body), "usr_1")
	rec := httptest.NewRecorder()
	newOrderRouter(orders).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "empty_cart") {
		t.Errorf("expected empty_cart code, got %s", rec.Body.String())
	}
}

func TestCreateOrderMapsInvalidItemsToConflict(t *testing.T) {
	orders := &stubOrderService{
		createFunc: func(_ context.Context, _ services.CreateOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderInvalidItems
		},
	}

	body := strings.NewReader(`{"delivery_method": "PICKUP", "contact": {"name": "Анна", "phone": "79123456789"}}`)
	req := withTestIdentity(httptest.NewRequest(http.MethodPost, "/", body), "usr_1")
	rec := httptest.NewRecorder()
	newOrderRouter(orders).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestListOrdersScopesToIdentity(t *testing.T) {
	orders := &stubOrderService{
		listFunc: func(_ context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
			if filter.UserID != "usr_1" {
				t.Fatalf("expected owner scope, got %q", filter.UserID)
			}
			return domain.CursorPage[services.Order]{Items: []services.Order{sampleHandlerOrder()}, NextPageToken: "tok"}, nil
		},
	}

	req := withTestIdentity(httptest.NewRequest(http.MethodGet, "/?page_size=5", nil), "usr_1")
	rec := httptest.NewRecorder()
	newOrderRouter(orders).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp orderListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(resp.Orders) != 1 || resp.NextPageToken != "tok" {
		t.Fatalf("unexpected list payload %#v", resp)
	}
}

func TestGetOrderHidesForeignOrders(t *testing.T) {
	orders := &stubOrderService{
		getFunc: func(_ context.Context, cmd services.GetOrderCommand) (services.Order, error) {
			if cmd.UserID != "usr_1" || cmd.OrderID != "ord_other" {
				t.Fatalf("unexpected command %#v", cmd)
			}
			return services.Order{}, services.ErrOrderNotFound
		},
	}

	req := withTestIdentity(httptest.NewRequest(http.MethodGet, "/ord_other", nil), "usr_1")
	rec := httptest.NewRecorder()
	newOrderRouter(orders).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestCreateOrderRequiresIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	newOrderRouter(&stubOrderService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
