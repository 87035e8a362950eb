package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/seva-flowers/api/internal/domain"
	"github.com/seva-flowers/api/internal/platform/auth"
	"github.com/seva-flowers/api/internal/repositories"
)

const userIDPrefix = "usr_"

var (
	// ErrUserInvalidInput indicates the caller supplied invalid input.
	ErrUserInvalidInput = errors.New("user service: invalid input")
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user service: not found")
	// ErrUserConflict indicates the profile could not be saved due to concurrent writes.
	ErrUserConflict = errors.New("user service: conflict")
	// ErrUserUnavailable indicates the backing store could not serve the request.
	ErrUserUnavailable = errors.New("user service: unavailable")
)

// UserServiceDeps wires the repository and utility dependencies for identity resolution.
type UserServiceDeps struct {
	Users       repositories.UserRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type userService struct {
	users  repositories.UserRepository
	now    func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewUserService constructs an AuthService backed by the user repository.
func NewUserService(deps UserServiceDeps) (AuthService, error) {
	if deps.Users == nil {
		return nil, errors.New("user service: repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &userService{
		users:  deps.Users,
		now:    func() time.Time { return clock().UTC() },
		newID:  idGen,
		logger: logger,
	}, nil
}

// ResolveLaunch maps a verified launch user onto a stored account, creating
// the account on first contact and refreshing profile fields on every launch.
func (s *userService) ResolveLaunch(ctx context.Context, launch auth.LaunchUser) (*domain.User, error) {
	if launch.ID == 0 {
		return nil, fmt.Errorf("%w: telegram id is required", ErrUserInvalidInput)
	}

	now := s.now()
	user := domain.User{
		TelegramID: launch.ID,
		FirstName:  strings.TrimSpace(launch.FirstName),
		LastName:   strings.TrimSpace(launch.LastName),
		Username:   strings.TrimSpace(launch.Username),
		PhotoURL:   strings.TrimSpace(launch.PhotoURL),
		Roles:      []string{auth.RoleCustomer},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	existing, err := s.users.FindByTelegramID(ctx, launch.ID)
	switch {
	case err == nil:
		user.ID = existing.ID
		user.Roles = existing.Roles
		user.CreatedAt = existing.CreatedAt
	case isRepoNotFound(err):
		user.ID = userIDPrefix + s.newID()
		s.logger(ctx, "user.created", map[string]any{
			"userID":     user.ID,
			"telegramID": launch.ID,
		})
	default:
		return nil, s.translateRepoError(err)
	}

	saved, err := s.users.Upsert(ctx, user)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return &saved, nil
}

func (s *userService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrUserInvalidInput)
	}

	user, err := s.users.FindByID(ctx, uid)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return &user, nil
}

func (s *userService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrUserNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrUserConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrUserUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUserUnavailable, err)
}
