package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"
)

const testBotToken = "1234567890:TEST_TOKEN_abcdef"

func staticSecretProvider(token string) SecretProvider {
	return SecretProviderFunc(func(ctx context.Context, name string) (string, error) {
		return token, nil
	})
}

func signInitData(t *testing.T, botToken string, values url.Values) string {
	t.Helper()

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+values.Get(key))
	}

	seed := hmac.New(sha256.New, []byte("WebAppData"))
	seed.Write([]byte(botToken))
	secret := seed.Sum(nil)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strings.Join(pairs, "\n")))
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))

	return values.Encode()
}

func validLaunchValues(authDate time.Time) url.Values {
	values := url.Values{}
	values.Set("user", `{"id":99001,"first_name":"Seva","last_name":"K","username":"sevak","photo_url":"https://t.me/p.jpg"}`)
	values.Set("auth_date", fmt.Sprintf("%d", authDate.Unix()))
	values.Set("query_id", "AAF0x")
	return values
}

func TestLaunchVerifierAcceptsSignedPayload(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	verifier := NewLaunchVerifier(staticSecretProvider(testBotToken), "bot-token",
		WithLaunchClock(func() time.Time { return now }))

	initData := signInitData(t, testBotToken, validLaunchValues(now.Add(-time.Minute)))

	data, err := verifier.Verify(context.Background(), initData)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if data.User.ID != 99001 {
		t.Fatalf("unexpected user id %d", data.User.ID)
	}
	if data.User.Username != "sevak" {
		t.Fatalf("unexpected username %q", data.User.Username)
	}
	if !data.AuthDate.Equal(now.Add(-time.Minute).Truncate(time.Second)) {
		t.Fatalf("unexpected auth date %v", data.AuthDate)
	}
}

func TestLaunchVerifierRejectsForgedHash(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	verifier := NewLaunchVerifier(staticSecretProvider(testBotToken), "bot-token",
		WithLaunchClock(func() time.Time { return now }))

	values := validLaunchValues(now.Add(-time.Minute))
	initData := signInitData(t, "other-token", values)

	if _, err := verifier.Verify(context.Background(), initData); !errors.Is(err, ErrLaunchSignature) {
		t.Fatalf("expected ErrLaunchSignature, got %v", err)
	}
}

func TestLaunchVerifierRejectsTamperedField(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	verifier := NewLaunchVerifier(staticSecretProvider(testBotToken), "bot-token",
		WithLaunchClock(func() time.Time { return now }))

	values := validLaunchValues(now.Add(-time.Minute))
	initData := signInitData(t, testBotToken, values)

	parsed, err := url.ParseQuery(initData)
	if err != nil {
		t.Fatalf("parse signed payload: %v", err)
	}
	parsed.Set("user", `{"id":1,"first_name":"Mallory"}`)

	if _, err := verifier.Verify(context.Background(), parsed.Encode()); !errors.Is(err, ErrLaunchSignature) {
		t.Fatalf("expected ErrLaunchSignature, got %v", err)
	}
}

func TestLaunchVerifierRejectsMissingHash(t *testing.T) {
	verifier := NewLaunchVerifier(staticSecretProvider(testBotToken), "bot-token")

	values := validLaunchValues(time.Now())
	if _, err := verifier.Verify(context.Background(), values.Encode()); !errors.Is(err, ErrLaunchMalformed) {
		t.Fatalf("expected ErrLaunchMalformed, got %v", err)
	}
}

func TestLaunchVerifierRejectsEmptyPayload(t *testing.T) {
	verifier := NewLaunchVerifier(staticSecretProvider(testBotToken), "bot-token")

	if _, err := verifier.Verify(context.Background(), "   "); !errors.Is(err, ErrLaunchMalformed) {
		t.Fatalf("expected ErrLaunchMalformed, got %v", err)
	}
}

func TestLaunchVerifierRejectsShortHash(t *testing.T) {
	verifier := NewLaunchVerifier(staticSecretProvider(testBotToken), "bot-token")

	values := validLaunchValues(time.Now())
	values.Set("hash", "abcd1234")

	if _, err := verifier.Verify(context.Background(), values.Encode()); !errors.Is(err, ErrLaunchMalformed) {
		t.Fatalf("expected ErrLaunchMalformed, got %v", err)
	}
}

func TestLaunchVerifierRejectsStaleAuthDate(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	verifier := NewLaunchVerifier(staticSecretProvider(testBotToken), "bot-token",
		WithLaunchClock(func() time.Time { return now }),
		WithLaunchTTL(time.Hour))

	initData := signInitData(t, testBotToken, validLaunchValues(now.Add(-2*time.Hour)))

	if _, err := verifier.Verify(context.Background(), initData); !errors.Is(err, ErrLaunchExpired) {
		t.Fatalf("expected ErrLaunchExpired, got %v", err)
	}
}

func TestLaunchVerifierZeroTTLDisablesFreshness(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	verifier := NewLaunchVerifier(staticSecretProvider(testBotToken), "bot-token",
		WithLaunchClock(func() time.Time { return now }),
		WithLaunchTTL(0))

	initData := signInitData(t, testBotToken, validLaunchValues(now.Add(-90*24*time.Hour)))

	if _, err := verifier.Verify(context.Background(), initData); err != nil {
		t.Fatalf("Verify returned error with disabled ttl: %v", err)
	}
}

func TestLaunchVerifierRejectsMissingUserClaim(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	verifier := NewLaunchVerifier(staticSecretProvider(testBotToken), "bot-token",
		WithLaunchClock(func() time.Time { return now }))

	values := url.Values{}
	values.Set("auth_date", fmt.Sprintf("%d", now.Unix()))
	initData := signInitData(t, testBotToken, values)

	if _, err := verifier.Verify(context.Background(), initData); !errors.Is(err, ErrLaunchUserMissing) {
		t.Fatalf("expected ErrLaunchUserMissing, got %v", err)
	}
}

func TestLaunchVerifierSecretProviderFailure(t *testing.T) {
	providerErr := errors.New("secret backend down")
	provider := SecretProviderFunc(func(ctx context.Context, name string) (string, error) {
		return "", providerErr
	})
	verifier := NewLaunchVerifier(provider, "bot-token")

	initData := signInitData(t, testBotToken, validLaunchValues(time.Now()))

	if _, err := verifier.Verify(context.Background(), initData); !errors.Is(err, providerErr) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
