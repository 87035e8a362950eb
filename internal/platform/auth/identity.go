package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/seva-flowers/api/internal/domain"
)

// Role constants used throughout the API when checking authorisation boundaries.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// ErrUserLoaderUnavailable indicates that the identity was created without a user loader.
var ErrUserLoaderUnavailable = errors.New("auth: user loader not configured")

// Identity captures the authenticated principal resolved from a verified
// Telegram launch payload.
type Identity struct {
	UserID     string
	TelegramID int64
	Username   string
	Roles      []string

	launch *LaunchData

	userLoader UserLoader
	once       sync.Once
	user       *domain.User
	userErr    error
}

// Launch exposes the verified launch payload associated with this identity.
func (i *Identity) Launch() *LaunchData {
	if i == nil {
		return nil
	}
	return i.launch
}

// HasRole reports whether the identity includes the requested role (case-insensitive).
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, r := range i.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity includes any of the provided roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

// User resolves the stored customer record using the injected loader on first access.
func (i *Identity) User(ctx context.Context) (*domain.User, error) {
	if i == nil {
		return nil, ErrUserLoaderUnavailable
	}
	if i.userLoader == nil {
		return nil, ErrUserLoaderUnavailable
	}

	i.once.Do(func() {
		i.user, i.userErr = i.userLoader(ctx, i.UserID)
	})

	return i.user, i.userErr
}

type contextKey string

const identityContextKey contextKey = "github.com/seva-flowers/api/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

// UserLoader fetches the stored customer record for an internal user id.
type UserLoader func(ctx context.Context, userID string) (*domain.User, error)
