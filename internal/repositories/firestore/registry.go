package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/seva-flowers/api/internal/platform/firestore"
	"github.com/seva-flowers/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the shared
// accessor interface, sharing one lazily initialised client.
type Registry struct {
	provider *pfirestore.Provider

	users      *UserRepository
	categories *CategoryRepository
	flowers    *FlowerRepository
	carts      *CartRepository
	orders     *OrderRepository
	appConfig  *AppConfigRepository
	counters   *CounterRepository
	health     repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// RegistryOption customises registry construction.
type RegistryOption func(*Registry)

// WithHealthRepository supplies the dependency probes evaluated by /readyz.
func WithHealthRepository(health repositories.HealthRepository) RegistryOption {
	return func(r *Registry) {
		r.health = health
	}
}

// NewRegistry constructs all Firestore repositories against the provider.
func NewRegistry(provider *pfirestore.Provider, opts ...RegistryOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	reg := &Registry{provider: provider}
	for _, opt := range opts {
		if opt != nil {
			opt(reg)
		}
	}

	var err error
	if reg.users, err = NewUserRepository(provider); err != nil {
		return nil, fmt.Errorf("registry: user repository: %w", err)
	}
	if reg.categories, err = NewCategoryRepository(provider); err != nil {
		return nil, fmt.Errorf("registry: category repository: %w", err)
	}
	if reg.flowers, err = NewFlowerRepository(provider); err != nil {
		return nil, fmt.Errorf("registry: flower repository: %w", err)
	}
	if reg.carts, err = NewCartRepository(provider); err != nil {
		return nil, fmt.Errorf("registry: cart repository: %w", err)
	}
	if reg.orders, err = NewOrderRepository(provider); err != nil {
		return nil, fmt.Errorf("registry: order repository: %w", err)
	}
	if reg.appConfig, err = NewAppConfigRepository(provider); err != nil {
		return nil, fmt.Errorf("registry: app config repository: %w", err)
	}
	if reg.counters, err = NewCounterRepository(provider); err != nil {
		return nil, fmt.Errorf("registry: counter repository: %w", err)
	}

	return reg, nil
}

func (r *Registry) Users() repositories.UserRepository           { return r.users }
func (r *Registry) Categories() repositories.CategoryRepository  { return r.categories }
func (r *Registry) Flowers() repositories.FlowerRepository       { return r.flowers }
func (r *Registry) Carts() repositories.CartRepository           { return r.carts }
func (r *Registry) Orders() repositories.OrderRepository         { return r.orders }
func (r *Registry) AppConfig() repositories.AppConfigRepository  { return r.appConfig }
func (r *Registry) Counters() repositories.CounterRepository     { return r.counters }
func (r *Registry) Health() repositories.HealthRepository        { return r.health }

// RunInTx executes fn inside a Firestore transaction. Repository calls made
// with the derived context join the transaction instead of writing directly.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("registry: transaction function is required")
	}
	return r.provider.RunTransaction(ctx, func(txCtx context.Context, tx *firestore.Transaction) error {
		return fn(pfirestore.WithTransaction(txCtx, tx))
	})
}

// Close releases the shared Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}
