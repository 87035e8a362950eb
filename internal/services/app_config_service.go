package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seva-flowers/api/internal/repositories"
)

var (
	// ErrConfigInvalidInput indicates the caller supplied invalid input.
	ErrConfigInvalidInput = errors.New("config service: invalid input")
	// ErrConfigUnavailable indicates the backing store could not serve the request.
	ErrConfigUnavailable = errors.New("config service: unavailable")
)

// AppConfigServiceDeps wires the repository and defaults for storefront settings.
type AppConfigServiceDeps struct {
	Repository         repositories.AppConfigRepository
	Clock              func() time.Time
	DefaultDeliveryFee int64
	Logger             func(context.Context, string, map[string]any)
}

type appConfigService struct {
	repo       repositories.AppConfigRepository
	now        func() time.Time
	defaultFee int64
	logger     func(context.Context, string, map[string]any)
}

// NewAppConfigService constructs a ConfigService enforcing dependency validation.
func NewAppConfigService(deps AppConfigServiceDeps) (ConfigService, error) {
	if deps.Repository == nil {
		return nil, errors.New("config service: repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &appConfigService{
		repo:       deps.Repository,
		now:        func() time.Time { return clock().UTC() },
		defaultFee: deps.DefaultDeliveryFee,
		logger:     logger,
	}, nil
}

// Get returns the stored configuration, falling back to built-in defaults when
// the document has never been written.
func (s *appConfigService) Get(ctx context.Context) (AppConfig, error) {
	cfg, err := s.repo.Get(ctx)
	if err != nil {
		if isRepoNotFound(err) {
			return AppConfig{DeliveryFee: s.defaultFee}, nil
		}
		return AppConfig{}, fmt.Errorf("%w: %v", ErrConfigUnavailable, err)
	}
	return cfg, nil
}

func (s *appConfigService) Update(ctx context.Context, cmd UpdateAppConfigCommand) (AppConfig, error) {
	if cmd.DeliveryFee == nil && cmd.NotifyChat == nil {
		return AppConfig{}, fmt.Errorf("%w: no fields to update", ErrConfigInvalidInput)
	}
	if cmd.DeliveryFee != nil && *cmd.DeliveryFee < 0 {
		return AppConfig{}, fmt.Errorf("%w: delivery fee must not be negative", ErrConfigInvalidInput)
	}

	cfg, err := s.Get(ctx)
	if err != nil {
		return AppConfig{}, err
	}

	if cmd.DeliveryFee != nil {
		cfg.DeliveryFee = *cmd.DeliveryFee
	}
	if cmd.NotifyChat != nil {
		cfg.NotifyChat = *cmd.NotifyChat
	}
	cfg.UpdatedAt = s.now()

	saved, err := s.repo.Save(ctx, cfg)
	if err != nil {
		return AppConfig{}, fmt.Errorf("%w: %v", ErrConfigUnavailable, err)
	}

	s.logger(ctx, "config.updated", map[string]any{
		"deliveryFee": saved.DeliveryFee,
	})
	return saved, nil
}

var _ appConfigReader = (ConfigService)(nil)
