package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/seva-flowers/api/internal/domain"
	"github.com/seva-flowers/api/internal/repositories"
)

const (
	orderIDPrefix      = "ord_"
	orderNumberCounter = "orders"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates optimistic concurrency conflicts or duplicates.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderEmptyCart indicates the user's cart held no lines at checkout.
	ErrOrderEmptyCart = errors.New("order: cart is empty")
	// ErrOrderInvalidItems indicates cart lines reference flowers missing from the catalog or withdrawn from sale.
	ErrOrderInvalidItems = errors.New("order: cart contains unavailable items")
)

var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:   {domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed: {domain.OrderStatusDelivered, domain.OrderStatusCancelled},
}

type appConfigReader interface {
	Get(ctx context.Context) (domain.AppConfig, error)
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders          repositories.OrderRepository
	Carts           repositories.CartRepository
	Catalog         flowerCatalog
	Counters        repositories.CounterRepository
	Config          appConfigReader
	UnitOfWork      repositories.UnitOfWork
	Clock           func() time.Time
	IDGenerator     func() string
	Events          OrderEventPublisher
	Notifier        OrderNotifier
	DefaultCurrency string
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	carts      repositories.CartRepository
	catalog    flowerCatalog
	counters   repositories.CounterRepository
	config     appConfigReader
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	events     OrderEventPublisher
	notifier   OrderNotifier
	currency   string
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "RUB"
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		carts:      deps.Carts,
		catalog:    deps.Catalog,
		counters:   deps.Counters,
		config:     deps.Config,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:    idGen,
		events:   deps.Events,
		notifier: deps.Notifier,
		currency: currency,
		logger:   logger,
	}, nil
}

// CreateFromCart snapshots the user's cart, or an explicit item list when the
// command carries one, into an order. Cart-sourced orders clear the cart in
// the same transaction; explicit-item orders leave the cart untouched.
func (s *orderService) CreateFromCart(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if !domain.ValidDeliveryMethod(cmd.DeliveryMethod) {
		return Order{}, fmt.Errorf("%w: unknown delivery method %q", ErrOrderInvalidInput, cmd.DeliveryMethod)
	}

	contact := cmd.Contact
	if err := contact.Validate(cmd.DeliveryMethod); err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}
	if strings.TrimSpace(contact.Phone) != "" {
		phone, err := domain.NormalizePhone(contact.Phone)
		if err != nil {
			return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		}
		contact.Phone = phone
	} else {
		contact.Phone = ""
	}

	var (
		lines    []domain.CartLine
		fromCart bool
		err      error
	)
	if len(cmd.Items) > 0 {
		lines, err = explicitLines(cmd.Items)
		if err != nil {
			return Order{}, err
		}
	} else {
		fromCart = true
		lines, err = s.carts.ListLines(ctx, userID)
		if err != nil {
			return Order{}, s.mapRepositoryError(err)
		}
	}
	if len(lines) == 0 {
		return Order{}, ErrOrderEmptyCart
	}

	orderLines, currency, err := s.snapshotCart(ctx, lines)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	fee := s.deliveryFee(ctx, cmd.DeliveryMethod)
	totals := domain.ComputeOrderTotals(currency, orderLines, cmd.DeliveryMethod, fee)

	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}

	order := Order{
		ID:             orderIDPrefix + s.newID(),
		Number:         number,
		UserID:         userID,
		Status:         domain.OrderStatusPending,
		DeliveryMethod: cmd.DeliveryMethod,
		Contact:        contact,
		Lines:          orderLines,
		Currency:       totals.Currency,
		ItemsTotal:     totals.ItemsTotal,
		DeliveryFee:    totals.DeliveryFee,
		Total:          totals.Total,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		if !fromCart {
			return nil
		}
		// The lines were listed before the transaction opened, so clearing
		// deletes those exact documents. Firestore forbids reads once a
		// transaction holds a buffered write, which rules out a query here.
		ids := make([]string, 0, len(lines))
		for _, line := range lines {
			ids = append(ids, line.FlowerID)
		}
		if err := s.carts.DeleteLines(txCtx, userID, ids); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:       OrderEventCreated,
		OrderID:    order.ID,
		Number:     order.Number,
		UserID:     order.UserID,
		Status:     string(order.Status),
		Total:      order.Total,
		Currency:   order.Currency,
		OccurredAt: now,
	})
	s.notifyCreated(ctx, order)

	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// GetOrder loads a single order. A non-empty UserID scopes the read to the
// owner; a mismatch surfaces as not found rather than forbidden.
func (s *orderService) GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if owner := strings.TrimSpace(cmd.UserID); owner != "" && order.UserID != owner {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return order, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := cmd.Status
	if !validOrderStatus(target) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if order.Status == target {
		return order, nil
	}
	if !canTransition(order.Status, target) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, order.Status, target)
	}

	now := s.now()
	order.Status = target
	order.UpdatedAt = now

	if err := s.orders.Update(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.publishEvent(ctx, OrderEvent{
		Type:       OrderEventStatusChanged,
		OrderID:    order.ID,
		Number:     order.Number,
		UserID:     order.UserID,
		Status:     string(order.Status),
		Total:      order.Total,
		Currency:   order.Currency,
		OccurredAt: now,
	})
	s.notifyStatus(ctx, order)

	return order, nil
}

// explicitLines validates a caller-supplied item list and folds duplicate
// flower ids into a single line.
func explicitLines(items []OrderItemInput) ([]domain.CartLine, error) {
	lines := make([]domain.CartLine, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.FlowerID)
		if id == "" {
			return nil, fmt.Errorf("%w: item flower id is required", ErrOrderInvalidInput)
		}
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: item quantity must be at least 1", ErrOrderInvalidInput)
		}
		if at, ok := index[id]; ok {
			lines[at].Quantity += item.Quantity
			continue
		}
		index[id] = len(lines)
		lines = append(lines, domain.CartLine{FlowerID: id, Quantity: item.Quantity})
	}
	return lines, nil
}

// snapshotCart prices every cart line at the current catalog state. Any line
// whose flower is missing or withdrawn fails the whole checkout.
func (s *orderService) snapshotCart(ctx context.Context, lines []domain.CartLine) ([]OrderLine, string, error) {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.FlowerID)
	}

	flowers, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, "", s.mapRepositoryError(err)
	}

	var invalid []string
	orderLines := make([]OrderLine, 0, len(lines))
	currency := s.currency
	for _, line := range lines {
		flower, ok := flowers[line.FlowerID]
		if !ok || !flower.Available {
			invalid = append(invalid, line.FlowerID)
			continue
		}
		if flower.Currency != "" {
			currency = flower.Currency
		}
		orderLines = append(orderLines, domain.SnapshotLine(flower, line.Quantity))
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return nil, "", fmt.Errorf("%w: %s", ErrOrderInvalidItems, strings.Join(invalid, ", "))
	}
	return orderLines, currency, nil
}

func (s *orderService) deliveryFee(ctx context.Context, method DeliveryMethod) int64 {
	var configured int64
	if s.config != nil {
		cfg, err := s.config.Get(ctx)
		if err != nil {
			s.logger(ctx, "order.config.load.failed", map[string]any{"error": err.Error()})
		} else {
			configured = cfg.DeliveryFee
		}
	}
	return domain.DeliveryFeeFor(method, configured)
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderNumberCounter, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SF-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.Status,
		})
	}
}

func (s *orderService) notifyCreated(ctx context.Context, order Order) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyOrderCreated(ctx, order); err != nil {
		s.logger(ctx, "order.notify.failed", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
	}
}

func (s *orderService) notifyStatus(ctx context.Context, order Order) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyOrderStatus(ctx, order); err != nil {
		s.logger(ctx, "order.notify.failed", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func canTransition(current, target domain.OrderStatus) bool {
	for _, allowed := range orderStateTransitions[current] {
		if allowed == target {
			return true
		}
	}
	return false
}

func validOrderStatus(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusConfirmed, domain.OrderStatusDelivered, domain.OrderStatusCancelled:
		return true
	}
	return false
}
