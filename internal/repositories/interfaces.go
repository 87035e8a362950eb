package repositories

import (
	"context"
	"time"

	domain "github.com/seva-flowers/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Users() UserRepository
	Categories() CategoryRepository
	Flowers() FlowerRepository
	Carts() CartRepository
	Orders() OrderRepository
	AppConfig() AppConfigRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository stores customer profiles keyed by internal id with a Telegram id lookup.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.User, error)
	FindByTelegramID(ctx context.Context, telegramID int64) (domain.User, error)
	// Upsert creates the user on first sight and refreshes mutable profile
	// fields afterwards. The internal id is assigned exactly once.
	Upsert(ctx context.Context, user domain.User) (domain.User, error)
}

// CategoryRepository maintains main sections and attribute tags.
type CategoryRepository interface {
	Insert(ctx context.Context, category domain.Category) error
	Update(ctx context.Context, category domain.Category) error
	Delete(ctx context.Context, categoryID string) error
	FindByID(ctx context.Context, categoryID string) (domain.Category, error)
	List(ctx context.Context, filter CategoryFilter) ([]domain.Category, error)
}

// FlowerRepository persists catalog items.
type FlowerRepository interface {
	Insert(ctx context.Context, flower domain.Flower) error
	Update(ctx context.Context, flower domain.Flower) error
	Delete(ctx context.Context, flowerID string) error
	FindByID(ctx context.Context, flowerID string) (domain.Flower, error)
	// FindByIDs returns the subset of requested flowers that exist, keyed by id.
	FindByIDs(ctx context.Context, flowerIDs []string) (map[string]domain.Flower, error)
	List(ctx context.Context, filter FlowerFilter) (domain.CursorPage[domain.Flower], error)
}

// CartRepository owns per-user cart lines. Lines are keyed by flower id so a
// user can never hold duplicate lines for the same flower.
type CartRepository interface {
	ListLines(ctx context.Context, userID string) ([]domain.CartLine, error)
	GetLine(ctx context.Context, userID string, flowerID string) (domain.CartLine, error)
	// UpsertLine sets the line to the given quantity, creating it when absent.
	UpsertLine(ctx context.Context, userID string, line domain.CartLine) (domain.CartLine, error)
	// IncrementLine adds delta to the stored quantity, creating the line at
	// delta when absent. The resulting quantity is returned.
	IncrementLine(ctx context.Context, userID string, flowerID string, delta int, now time.Time) (domain.CartLine, error)
	DeleteLine(ctx context.Context, userID string, flowerID string) error
	// DeleteLines removes the named lines. Inside a transaction the deletes
	// are buffered writes only, so the call stays legal after other writes
	// have been queued.
	DeleteLines(ctx context.Context, userID string, flowerIDs []string) error
	Clear(ctx context.Context, userID string) error
}

// OrderRepository persists order documents and provides query helpers for users and admins.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// AppConfigRepository stores the singleton shop configuration document.
type AppConfigRepository interface {
	// Get returns the stored configuration. Implementations report absence
	// with a RepositoryError whose IsNotFound is true; callers substitute
	// defaults.
	Get(ctx context.Context) (domain.AppConfig, error)
	Save(ctx context.Context, cfg domain.AppConfig) (domain.AppConfig, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type CategoryFilter struct {
	Kind *domain.CategoryKind
}

type FlowerFilter struct {
	CategoryID    *string
	AttributeIDs  []string
	AvailableOnly bool
	Search        string
	Pagination    domain.Pagination
}

type OrderListFilter struct {
	UserID     string
	Status     []domain.OrderStatus
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
