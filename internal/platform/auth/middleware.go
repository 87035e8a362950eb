package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/seva-flowers/api/internal/domain"
)

const (
	// InitDataHeader carries the raw Telegram launch payload on API requests.
	InitDataHeader = "X-Telegram-Init-Data"

	defaultFallbackRole  = RoleCustomer
	defaultVerifyTimeout = 5 * time.Second
)

// IdentityResolver upserts the customer record behind a verified launch and
// returns the stored user.
type IdentityResolver interface {
	ResolveLaunch(ctx context.Context, user LaunchUser) (*domain.User, error)
}

// UserGetter retrieves stored customer records by internal id.
type UserGetter interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// Authenticator wires Telegram launch verification into HTTP middleware.
type Authenticator struct {
	verifier *LaunchVerifier
	resolver IdentityResolver
	users    UserGetter

	adminIDs map[int64]struct{}

	fallbackRole string
	timeout      time.Duration
	header       string
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithUserGetter enables lazy user record reloading on Identity.User.
func WithUserGetter(getter UserGetter) Option {
	return func(a *Authenticator) {
		a.users = getter
	}
}

// WithAdminIDs grants the admin role to the listed Telegram ids.
func WithAdminIDs(ids []int64) Option {
	return func(a *Authenticator) {
		if len(ids) == 0 {
			return
		}
		a.adminIDs = make(map[int64]struct{}, len(ids))
		for _, id := range ids {
			a.adminIDs[id] = struct{}{}
		}
	}
}

// WithFallbackRole sets the default role when the stored user carries none.
func WithFallbackRole(role string) Option {
	return func(a *Authenticator) {
		role = normaliseRole(role)
		if role != "" {
			a.fallbackRole = role
		}
	}
}

// WithInitDataHeader overrides the header name carrying the launch payload.
func WithInitDataHeader(name string) Option {
	return func(a *Authenticator) {
		name = strings.TrimSpace(name)
		if name != "" {
			a.header = name
		}
	}
}

// WithVerificationTimeout sets the timeout used when verifying payloads and
// resolving identities.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs a Telegram Authenticator for middleware composition.
func NewAuthenticator(verifier *LaunchVerifier, resolver IdentityResolver, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:     verifier,
		resolver:     resolver,
		fallbackRole: defaultFallbackRole,
		timeout:      defaultVerifyTimeout,
		header:       InitDataHeader,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// RequireTelegramAuth verifies the launch payload header and ensures allowed roles.
func (a *Authenticator) RequireTelegramAuth(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		role = normaliseRole(role)
		if role == "" {
			continue
		}
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			initData := strings.TrimSpace(r.Header.Get(a.headerName()))
			if initData == "" {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "launch data header missing")
				return
			}
			if a == nil || a.verifier == nil || a.resolver == nil {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization service unavailable")
				return
			}

			ctx, cancel := a.contextWithTimeout(r.Context())
			if cancel != nil {
				defer cancel()
			}

			identity, err := a.Authenticate(ctx, initData)
			if err != nil {
				respondVerificationError(w, err)
				return
			}

			if len(allowed) > 0 && !hasAllowedRole(identity.Roles, allowed) {
				respondAuthError(w, http.StatusForbidden, "insufficient_role", "identity does not have required role")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// Authenticate verifies raw launch data and resolves the backing identity.
// Handlers performing an explicit auth exchange share this path with the
// middleware.
func (a *Authenticator) Authenticate(ctx context.Context, initData string) (*Identity, error) {
	if a == nil || a.verifier == nil || a.resolver == nil {
		return nil, errors.New("auth: authenticator not configured")
	}

	launch, err := a.verifier.Verify(ctx, initData)
	if err != nil {
		return nil, err
	}

	user, err := a.resolver.ResolveLaunch(ctx, launch.User)
	if err != nil {
		return nil, err
	}

	identity := &Identity{
		UserID:     user.ID,
		TelegramID: user.TelegramID,
		Username:   user.Username,
		Roles:      normaliseRoles(user.Roles),
		launch:     launch,
	}

	if len(identity.Roles) == 0 && a.fallbackRole != "" {
		identity.Roles = []string{a.fallbackRole}
	}
	if _, ok := a.adminIDs[identity.TelegramID]; ok && !identity.HasRole(RoleAdmin) {
		identity.Roles = append(identity.Roles, RoleAdmin)
	}

	resolved := *user
	identity.userLoader = func(ctx context.Context, userID string) (*domain.User, error) {
		if a.users == nil {
			return &resolved, nil
		}
		if userID == "" {
			userID = identity.UserID
		}
		ctx, cancel := a.contextWithTimeout(ctx)
		if cancel != nil {
			defer cancel()
		}
		return a.users.GetUser(ctx, userID)
	}

	return identity, nil
}

func (a *Authenticator) headerName() string {
	if a == nil || a.header == "" {
		return InitDataHeader
	}
	return a.header
}

func (a *Authenticator) contextWithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a == nil || a.timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, a.timeout)
}

func hasAllowedRole(identityRoles []string, allowed map[string]struct{}) bool {
	for _, role := range identityRoles {
		if _, ok := allowed[normaliseRole(role)]; ok {
			return true
		}
	}
	return false
}

func normaliseRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	seen := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = normaliseRole(role)
		if role == "" {
			continue
		}
		if _, exists := seen[role]; exists {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}

func normaliseRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   code,
		"message": message,
		"status":  status,
	})
}

func respondVerificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLaunchExpired):
		respondAuthError(w, http.StatusUnauthorized, "launch_expired", "launch data expired")
	case errors.Is(err, ErrLaunchSignature):
		respondAuthError(w, http.StatusUnauthorized, "invalid_launch", "launch data signature mismatch")
	case errors.Is(err, ErrLaunchMalformed), errors.Is(err, ErrLaunchUserMissing):
		respondAuthError(w, http.StatusUnauthorized, "invalid_launch", "launch data malformed")
	default:
		respondAuthError(w, http.StatusUnauthorized, "invalid_launch", "launch data verification failed")
	}
}
