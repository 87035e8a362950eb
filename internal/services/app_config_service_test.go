package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/seva-flowers/api/internal/domain"
)

func TestAppConfigServiceGetFallsBackToDefaults(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	repo := &stubAppConfigRepository{
		getFunc: func(ctx context.Context) (domain.AppConfig, error) {
			return domain.AppConfig{}, &repositoryErrorStub{notFound: true}
		},
	}

	service := newTestAppConfigService(t, repo, now, 350)

	cfg, err := service.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DeliveryFee != 350 {
		t.Fatalf("expected default fee 350, got %d", cfg.DeliveryFee)
	}
}

func TestAppConfigServiceUpdateAppliesFields(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)

	var saved domain.AppConfig
	repo := &stubAppConfigRepository{
		getFunc: func(ctx context.Context) (domain.AppConfig, error) {
			return domain.AppConfig{DeliveryFee: 300, NotifyChat: -100500}, nil
		},
		saveFunc: func(ctx context.Context, cfg domain.AppConfig) (domain.AppConfig, error) {
			saved = cfg
			return cfg, nil
		},
	}

	service := newTestAppConfigService(t, repo, now, 0)

	fee := int64(450)
	cfg, err := service.Update(context.Background(), UpdateAppConfigCommand{DeliveryFee: &fee})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DeliveryFee != 450 {
		t.Fatalf("expected fee 450, got %d", cfg.DeliveryFee)
	}
	if cfg.NotifyChat != -100500 {
		t.Fatalf("expected notify chat untouched, got %d", cfg.NotifyChat)
	}
	if !saved.UpdatedAt.Equal(now) {
		t.Fatalf("expected updatedAt stamped")
	}
}

func TestAppConfigServiceUpdateRejectsEmptyCommand(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	service := newTestAppConfigService(t, &stubAppConfigRepository{}, now, 0)

	if _, err := service.Update(context.Background(), UpdateAppConfigCommand{}); !errors.Is(err, ErrConfigInvalidInput) {
		t.Fatalf("expected ErrConfigInvalidInput, got %v", err)
	}
}

func TestAppConfigServiceUpdateRejectsNegativeFee(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	service := newTestAppConfigService(t, &stubAppConfigRepository{}, now, 0)

	fee := int64(-1)
	if _, err := service.Update(context.Background(), UpdateAppConfigCommand{DeliveryFee: &fee}); !errors.Is(err, ErrConfigInvalidInput) {
		t.Fatalf("expected ErrConfigInvalidInput, got %v", err)
	}
}

func newTestAppConfigService(t *testing.T, repo *stubAppConfigRepository, now time.Time, defaultFee int64) ConfigService {
	t.Helper()
	service, err := NewAppConfigService(AppConfigServiceDeps{
		Repository:         repo,
		Clock:              func() time.Time { return now },
		DefaultDeliveryFee: defaultFee,
	})
	if err != nil {
		t.Fatalf("unexpected error constructing config service: %v", err)
	}
	return service
}

type stubAppConfigRepository struct {
	getFunc  func(ctx context.Context) (domain.AppConfig, error)
	saveFunc func(ctx context.Context, cfg domain.AppConfig) (domain.AppConfig, error)
}

func (s *stubAppConfigRepository) Get(ctx context.Context) (domain.AppConfig, error) {
	if s.getFunc == nil {
		return domain.AppConfig{}, &repositoryErrorStub{notFound: true}
	}
	return s.getFunc(ctx)
}

func (s *stubAppConfigRepository) Save(ctx context.Context, cfg domain.AppConfig) (domain.AppConfig, error) {
	if s.saveFunc == nil {
		return cfg, nil
	}
	return s.saveFunc(ctx, cfg)
}
