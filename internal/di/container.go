package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seva-flowers/api/internal/platform/config"
	pstorage "github.com/seva-flowers/api/internal/platform/storage"
	"github.com/seva-flowers/api/internal/repositories"
	"github.com/seva-flowers/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Auth    services.AuthService
	Catalog services.CatalogService
	Cart    services.CartService
	Orders  services.OrderService
	Config  services.ConfigService
	Assets  services.AssetService
	System  services.SystemService
}

// ContainerDeps carries the runtime collaborators that live outside the
// repository registry: event transport, staff notifications, URL signing.
type ContainerDeps struct {
	Registry repositories.Registry
	Events   services.OrderEventPublisher
	Notifier services.OrderNotifier
	Signer   *pstorage.Client
	Build    services.BuildInfo
	Logger   *zap.Logger
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides Firestore-backed
// registries, while tests can supply in-memory ones.
func NewContainer(ctx context.Context, cfg config.Config, deps ContainerDeps) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: deps.Registry,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, cfg config.Config, deps ContainerDeps) (Services, error) {
	var svc Services
	reg := deps.Registry

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	userSvc, err := services.NewUserService(services.UserServiceDeps{
		Users:  reg.Users(),
		Clock:  time.Now,
		Logger: zapEventLogger(logger.Named("users")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build user service: %w", err)
	}
	svc.Auth = userSvc

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Categories:      reg.Categories(),
		Flowers:         reg.Flowers(),
		Clock:           time.Now,
		DefaultCurrency: cfg.Shop.DefaultCurrency,
		Logger:          zapEventLogger(logger.Named("catalog")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Repository: reg.Carts(),
		Catalog:    reg.Flowers(),
		Clock:      time.Now,
		Logger:     zapEventLogger(logger.Named("cart")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	configSvc, err := services.NewAppConfigService(services.AppConfigServiceDeps{
		Repository:         reg.AppConfig(),
		Clock:              time.Now,
		DefaultDeliveryFee: cfg.Shop.DeliveryFee,
		Logger:             zapEventLogger(logger.Named("config")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build config service: %w", err)
	}
	svc.Config = configSvc

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:          reg.Orders(),
		Carts:           reg.Carts(),
		Catalog:         reg.Flowers(),
		Counters:        reg.Counters(),
		Config:          configSvc,
		UnitOfWork:      reg,
		Clock:           time.Now,
		Events:          deps.Events,
		Notifier:        deps.Notifier,
		DefaultCurrency: cfg.Shop.DefaultCurrency,
		Logger:          zapEventLogger(logger.Named("orders")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	if deps.Signer != nil && cfg.Storage.MediaBucket != "" {
		assetSvc, err := services.NewAssetService(services.AssetServiceDeps{
			Signer:        deps.Signer,
			Bucket:        cfg.Storage.MediaBucket,
			PublicBaseURL: cfg.Storage.PublicMediaBaseURL,
			Clock:         time.Now,
			Logger:        zapEventLogger(logger.Named("assets")),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build asset service: %w", err)
		}
		svc.Assets = assetSvc
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
			Build:            deps.Build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

func zapEventLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("service event", zFields...)
	}
}
