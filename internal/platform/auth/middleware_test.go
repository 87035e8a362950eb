package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/seva-flowers/api/internal/domain"
)

type stubResolver struct {
	resolveFunc func(ctx context.Context, user LaunchUser) (*domain.User, error)
}

func (s *stubResolver) ResolveLaunch(ctx context.Context, user LaunchUser) (*domain.User, error) {
	return s.resolveFunc(ctx, user)
}

func newTestAuthenticator(t *testing.T, now time.Time, opts ...Option) *Authenticator {
	t.Helper()

	verifier := NewLaunchVerifier(staticSecretProvider(testBotToken), "bot-token",
		WithLaunchClock(func() time.Time { return now }))
	resolver := &stubResolver{resolveFunc: func(ctx context.Context, user LaunchUser) (*domain.User, error) {
		return &domain.User{
			ID:         "usr_01",
			TelegramID: user.ID,
			Username:   user.Username,
		}, nil
	}}
	return NewAuthenticator(verifier, resolver, opts...)
}

func TestRequireTelegramAuthStoresIdentity(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	authenticator := newTestAuthenticator(t, now)

	var seen *Identity
	handler := authenticator.RequireTelegramAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/cart", nil)
	req.Header.Set(InitDataHeader, signInitData(t, testBotToken, validLaunchValues(now.Add(-time.Minute))))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if seen == nil {
		t.Fatal("identity missing from context")
	}
	if seen.UserID != "usr_01" || seen.TelegramID != 99001 {
		t.Fatalf("unexpected identity %+v", seen)
	}
	if !seen.HasRole(RoleCustomer) {
		t.Fatalf("expected fallback customer role, got %v", seen.Roles)
	}
}

func TestRequireTelegramAuthMissingHeader(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	authenticator := newTestAuthenticator(t, now)

	handler := authenticator.RequireTelegramAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/cart", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestRequireTelegramAuthRejectsForgedPayload(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	authenticator := newTestAuthenticator(t, now)

	handler := authenticator.RequireTelegramAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/cart", nil)
	req.Header.Set(InitDataHeader, signInitData(t, "wrong-token", validLaunchValues(now)))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestRequireTelegramAuthAdminAllowList(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	authenticator := newTestAuthenticator(t, now, WithAdminIDs([]int64{99001}))

	var seen *Identity
	handler := authenticator.RequireTelegramAuth(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/flowers", nil)
	req.Header.Set(InitDataHeader, signInitData(t, testBotToken, validLaunchValues(now.Add(-time.Minute))))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if seen == nil || !seen.HasRole(RoleAdmin) {
		t.Fatalf("expected admin role, got %+v", seen)
	}
}

func TestRequireTelegramAuthInsufficientRole(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	authenticator := newTestAuthenticator(t, now)

	handler := authenticator.RequireTelegramAuth(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/flowers", nil)
	req.Header.Set(InitDataHeader, signInitData(t, testBotToken, validLaunchValues(now.Add(-time.Minute))))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}
