package services

import (
	"context"
	"time"

	domain "github.com/seva-flowers/api/internal/domain"
	"github.com/seva-flowers/api/internal/platform/auth"
	"github.com/seva-flowers/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	SortOrder          = domain.SortOrder
	User               = domain.User
	Category           = domain.Category
	CategoryKind       = domain.CategoryKind
	Flower             = domain.Flower
	Cart               = domain.Cart
	CartEntry          = domain.CartEntry
	CartLine           = domain.CartLine
	Order              = domain.Order
	OrderLine          = domain.OrderLine
	OrderStatus        = domain.OrderStatus
	OrderContact       = domain.OrderContact
	OrderTotals        = domain.OrderTotals
	DeliveryMethod     = domain.DeliveryMethod
	AppConfig          = domain.AppConfig
	SystemHealthReport = domain.SystemHealthReport
)

// AuthService resolves verified launch users into stored accounts.
type AuthService interface {
	ResolveLaunch(ctx context.Context, launch auth.LaunchUser) (*domain.User, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// CatalogService serves the public storefront catalog and its admin management surface.
type CatalogService interface {
	ListCategories(ctx context.Context, filter CategoryListFilter) ([]Category, error)
	GetCategory(ctx context.Context, categoryID string) (Category, error)
	CreateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error)
	UpdateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error
	ListFlowers(ctx context.Context, filter FlowerListFilter) (domain.CursorPage[Flower], error)
	GetFlower(ctx context.Context, flowerID string) (Flower, error)
	CreateFlower(ctx context.Context, cmd UpsertFlowerCommand) (Flower, error)
	UpdateFlower(ctx context.Context, cmd UpsertFlowerCommand) (Flower, error)
	DeleteFlower(ctx context.Context, flowerID string) error
}

// CartService manages per-user cart lines and joins them against the catalog.
type CartService interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	UpdateItem(ctx context.Context, cmd UpdateCartItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// OrderService assembles orders from cart state and drives the status lifecycle.
type OrderService interface {
	CreateFromCart(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	GetOrder(ctx context.Context, cmd GetOrderCommand) (Order, error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
}

// ConfigService reads and updates storefront-wide settings.
type ConfigService interface {
	Get(ctx context.Context) (AppConfig, error)
	Update(ctx context.Context, cmd UpdateAppConfigCommand) (AppConfig, error)
}

// AssetService issues signed URLs for catalog image uploads.
type AssetService interface {
	IssueUploadURL(ctx context.Context, cmd IssueUploadURLCommand) (SignedUpload, error)
}

// SystemService aggregates utility endpoints such as health checks.
type SystemService interface {
	HealthCheck(ctx context.Context) (SystemHealthReport, error)
}

// OrderEventPublisher accepts order lifecycle notifications for downstream processing.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderNotifier delivers human-readable order updates, e.g. to a staff chat.
type OrderNotifier interface {
	NotifyOrderCreated(ctx context.Context, order Order) error
	NotifyOrderStatus(ctx context.Context, order Order) error
}

// Command and DTO definitions ------------------------------------------------

type CategoryListFilter struct {
	Kind *CategoryKind
}

type UpsertCategoryCommand struct {
	CategoryID string
	Name       string
	Kind       CategoryKind
	SortIndex  int
}

type FlowerListFilter struct {
	CategoryID    *string
	AttributeIDs  []string
	AvailableOnly bool
	Search        string
	IncludeHidden bool
	Pagination    Pagination
}

type UpsertFlowerCommand struct {
	FlowerID     string
	Name         string
	Description  string
	Price        int64
	Currency     string
	ImageURL     string
	CategoryID   string
	AttributeIDs []string
	Attributes   map[string]string
	Available    bool
}

type AddCartItemCommand struct {
	UserID   string
	FlowerID string
	Quantity int
}

type UpdateCartItemCommand struct {
	UserID   string
	FlowerID string
	Quantity int
}

type RemoveCartItemCommand struct {
	UserID   string
	FlowerID string
}

type CreateOrderCommand struct {
	UserID         string
	DeliveryMethod DeliveryMethod
	Contact        OrderContact
	// Items, when non-empty, bypasses the stored cart: the order is assembled
	// from these lines and the cart is left untouched.
	Items []OrderItemInput
}

// OrderItemInput names one explicit order line for cartless checkout.
type OrderItemInput struct {
	FlowerID string
	Quantity int
}

type GetOrderCommand struct {
	OrderID string
	// UserID scopes the lookup to an owner; empty means an admin read.
	UserID string
}

type OrderListFilter = repositories.OrderListFilter

type OrderStatusTransitionCommand struct {
	OrderID string
	Status  OrderStatus
	ActorID string
}

type UpdateAppConfigCommand struct {
	DeliveryFee *int64
	NotifyChat  *int64
}

type IssueUploadURLCommand struct {
	FileName    string
	ContentType string
	ActorID     string
}

type SignedUpload struct {
	UploadURL string
	PublicURL string
	ObjectKey string
	ExpiresAt time.Time
}

// OrderEvent is the payload published on order lifecycle changes.
type OrderEvent struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"orderId"`
	Number     string    `json:"number"`
	UserID     string    `json:"userId"`
	Status     string    `json:"status"`
	Total      int64     `json:"total"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurredAt"`
}

const (
	OrderEventCreated       = "order.created"
	OrderEventStatusChanged = "order.status_changed"
)
