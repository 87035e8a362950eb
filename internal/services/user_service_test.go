package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/seva-flowers/api/internal/domain"
	"github.com/seva-flowers/api/internal/platform/auth"
)

func TestUserServiceResolveLaunchCreatesAccount(t *testing.T) {
	now := time.Date(2025, 4, 20, 8, 0, 0, 0, time.UTC)

	var upserted domain.User
	users := &stubUserRepository{
		findByTelegramIDFunc: func(ctx context.Context, telegramID int64) (domain.User, error) {
			return domain.User{}, &repositoryErrorStub{notFound: true}
		},
		upsertFunc: func(ctx context.Context, user domain.User) (domain.User, error) {
			upserted = user
			return user, nil
		},
	}

	service := newTestUserService(t, users, now)

	user, err := service.ResolveLaunch(context.Background(), auth.LaunchUser{
		ID:        99001,
		FirstName: "Анна",
		Username:  "anna_flowers",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(user.ID, "usr_") {
		t.Fatalf("expected internal id prefix, got %q", user.ID)
	}
	if user.TelegramID != 99001 {
		t.Fatalf("expected telegram id preserved, got %d", user.TelegramID)
	}
	if len(user.Roles) != 1 || user.Roles[0] != auth.RoleCustomer {
		t.Fatalf("expected customer role, got %v", user.Roles)
	}
	if upserted.ID != user.ID {
		t.Fatalf("expected upsert with generated id")
	}
	if !user.CreatedAt.Equal(now) {
		t.Fatalf("expected createdAt %v, got %v", now, user.CreatedAt)
	}
}

func TestUserServiceResolveLaunchKeepsExistingIdentity(t *testing.T) {
	now := time.Date(2025, 4, 21, 8, 0, 0, 0, time.UTC)
	createdAt := now.Add(-90 * 24 * time.Hour)

	users := &stubUserRepository{
		findByTelegramIDFunc: func(ctx context.Context, telegramID int64) (domain.User, error) {
			return domain.User{
				ID:         "usr_existing",
				TelegramID: telegramID,
				FirstName:  "Old",
				Roles:      []string{auth.RoleCustomer, auth.RoleAdmin},
				CreatedAt:  createdAt,
			}, nil
		},
		upsertFunc: func(ctx context.Context, user domain.User) (domain.User, error) {
			return user, nil
		},
	}

	service := newTestUserService(t, users, now)

	user, err := service.ResolveLaunch(context.Background(), auth.LaunchUser{
		ID:        99001,
		FirstName: "New",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if user.ID != "usr_existing" {
		t.Fatalf("expected stable internal id, got %q", user.ID)
	}
	if user.FirstName != "New" {
		t.Fatalf("expected refreshed profile, got %q", user.FirstName)
	}
	if len(user.Roles) != 2 {
		t.Fatalf("expected stored roles preserved, got %v", user.Roles)
	}
	if !user.CreatedAt.Equal(createdAt) {
		t.Fatalf("expected original createdAt preserved")
	}
}

func TestUserServiceResolveLaunchRequiresTelegramID(t *testing.T) {
	now := time.Date(2025, 4, 21, 8, 0, 0, 0, time.UTC)
	service := newTestUserService(t, &stubUserRepository{}, now)

	if _, err := service.ResolveLaunch(context.Background(), auth.LaunchUser{}); !errors.Is(err, ErrUserInvalidInput) {
		t.Fatalf("expected ErrUserInvalidInput, got %v", err)
	}
}

func TestUserServiceGetUserNotFound(t *testing.T) {
	now := time.Date(2025, 4, 21, 8, 0, 0, 0, time.UTC)

	users := &stubUserRepository{
		findByIDFunc: func(ctx context.Context, userID string) (domain.User, error) {
			return domain.User{}, &repositoryErrorStub{notFound: true}
		},
	}

	service := newTestUserService(t, users, now)

	if _, err := service.GetUser(context.Background(), "usr_missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func newTestUserService(t *testing.T, users *stubUserRepository, now time.Time) AuthService {
	t.Helper()
	service, err := NewUserService(UserServiceDeps{
		Users: users,
		Clock: func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing user service: %v", err)
	}
	return service
}

type stubUserRepository struct {
	findByIDFunc         func(ctx context.Context, userID string) (domain.User, error)
	findByTelegramIDFunc func(ctx context.Context, telegramID int64) (domain.User, error)
	upsertFunc           func(ctx context.Context, user domain.User) (domain.User, error)
}

func (s *stubUserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if s.findByIDFunc == nil {
		return domain.User{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByIDFunc(ctx, userID)
}

func (s *stubUserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (domain.User, error) {
	if s.findByTelegramIDFunc == nil {
		return domain.User{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByTelegramIDFunc(ctx, telegramID)
}

func (s *stubUserRepository) Upsert(ctx context.Context, user domain.User) (domain.User, error) {
	if s.upsertFunc == nil {
		return user, nil
	}
	return s.upsertFunc(ctx, user)
}
