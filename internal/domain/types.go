package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// TelegramProfile carries the profile fields Telegram includes in the signed
// launch payload. All fields except ID are optional on Telegram's side.
type TelegramProfile struct {
	TelegramID int64
	FirstName  string
	LastName   string
	Username   string
	PhotoURL   string
}

// User is a storefront customer resolved from a verified Telegram launch.
type User struct {
	ID         string
	TelegramID int64
	FirstName  string
	LastName   string
	Username   string
	PhotoURL   string
	Roles      []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CategoryKind distinguishes primary catalog sections from attribute tags.
type CategoryKind string

const (
	// CategoryKindMain marks top-level storefront sections (bouquets, boxes, ...).
	CategoryKindMain CategoryKind = "MAIN"
	// CategoryKindAttribute marks cross-cutting tags (color, occasion, ...).
	CategoryKindAttribute CategoryKind = "ATTRIBUTE"
)

// Category groups flowers either as a main section or as an attribute tag.
type Category struct {
	ID        string
	Name      string
	Kind      CategoryKind
	SortIndex int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Flower is a sellable catalog item. Price is stored in minor currency units.
type Flower struct {
	ID           string
	Name         string
	Description  string
	Price        int64
	Currency     string
	ImageURL     string
	CategoryID   string
	AttributeIDs []string
	Attributes   map[string]string
	Available    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CartLine is a single (user, flower) entry in a cart. The storage layer keys
// lines by flower id, so a user can never hold two lines for the same flower.
type CartLine struct {
	FlowerID  string
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartEntry joins a cart line with the current catalog record. Flower is nil
// when the referenced catalog item no longer exists.
type CartEntry struct {
	Line   CartLine
	Flower *Flower
}

// Cart is a user's full cart view.
type Cart struct {
	UserID  string
	Entries []CartEntry
}

// DeliveryMethod selects how an order reaches the customer.
type DeliveryMethod string

const (
	// DeliveryMethodCourier delivers to the provided address.
	DeliveryMethodCourier DeliveryMethod = "DELIVERY"
	// DeliveryMethodPickup means the customer collects the order in person.
	DeliveryMethodPickup DeliveryMethod = "PICKUP"
)

// OrderStatus enumerates the order lifecycle.
type OrderStatus string

const (
	// OrderStatusPending is the initial state of every new order.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusConfirmed means the shop accepted the order.
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	// OrderStatusDelivered is a terminal success state.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled is a terminal failure state.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// OrderContact holds the customer-provided delivery details for a single order.
type OrderContact struct {
	Name    string
	Phone   string
	Address string
	Comment string
}

// OrderLine is an immutable snapshot of one cart line at order-creation time.
// UnitPrice is fixed at creation and never re-read from the catalog.
type OrderLine struct {
	FlowerID   string
	FlowerName string
	UnitPrice  int64
	Quantity   int
	Subtotal   int64
}

// Order is a placed order with its price snapshot and lifecycle status.
type Order struct {
	ID             string
	Number         string
	UserID         string
	Status         OrderStatus
	DeliveryMethod DeliveryMethod
	Contact        OrderContact
	Lines          []OrderLine
	Currency       string
	ItemsTotal     int64
	DeliveryFee    int64
	Total          int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AppConfig is the singleton runtime configuration document for the shop.
type AppConfig struct {
	DeliveryFee int64
	NotifyChat  int64
	UpdatedAt   time.Time
}

// Health status values reported by dependency probes.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck captures the probe result for a single dependency.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// CursorPage wraps a page of results together with the token for the next page.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
