package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// launchSecretSeed is the fixed HMAC key Telegram prescribes for deriving
	// the per-bot signing secret from the bot token.
	launchSecretSeed = "WebAppData"

	defaultLaunchTTL = 24 * time.Hour
)

var (
	// ErrLaunchMalformed indicates the init data payload could not be parsed.
	ErrLaunchMalformed = errors.New("auth: launch data malformed")
	// ErrLaunchSignature indicates the hash did not match the derived secret.
	ErrLaunchSignature = errors.New("auth: launch data signature mismatch")
	// ErrLaunchExpired indicates auth_date falls outside the freshness window.
	ErrLaunchExpired = errors.New("auth: launch data expired")
	// ErrLaunchUserMissing indicates the payload carries no user claim.
	ErrLaunchUserMissing = errors.New("auth: launch data user claim missing")
)

// Logger captures the minimal logging contract used by the auth package.
type Logger interface {
	Printf(format string, args ...any)
}

// MetricsRecorder records verification outcomes for observability.
type MetricsRecorder interface {
	RecordVerification(ctx context.Context, kind string, success bool, reason string, duration time.Duration)
}

// MetricsRecorderFunc adapts a function to MetricsRecorder.
type MetricsRecorderFunc func(context.Context, string, bool, string, time.Duration)

// RecordVerification implements MetricsRecorder.
func (f MetricsRecorderFunc) RecordVerification(ctx context.Context, kind string, success bool, reason string, duration time.Duration) {
	if f != nil {
		f(ctx, kind, success, reason, duration)
	}
}

// SecretProvider resolves shared secrets used for launch-data verification.
type SecretProvider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// SecretProviderFunc adapts a function to the SecretProvider interface.
type SecretProviderFunc func(context.Context, string) (string, error)

// GetSecret implements SecretProvider.
func (f SecretProviderFunc) GetSecret(ctx context.Context, name string) (string, error) {
	if f == nil {
		return "", errors.New("auth: secret provider not configured")
	}
	return f(ctx, name)
}

// LaunchUser is the user claim Telegram embeds in signed init data.
type LaunchUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	PhotoURL  string `json:"photo_url"`
	Language  string `json:"language_code"`
}

// LaunchData is the verified content of a Telegram Mini App launch payload.
type LaunchData struct {
	User     LaunchUser
	AuthDate time.Time
	QueryID  string
	StartKey string
	Raw      url.Values
}

// LaunchVerifier validates Telegram Mini App init data against the bot token.
type LaunchVerifier struct {
	provider   SecretProvider
	secretName string

	logger  Logger
	metrics MetricsRecorder
	now     func() time.Time

	ttl time.Duration

	mu     sync.Mutex
	secret []byte
}

// LaunchOption customises the verifier.
type LaunchOption func(*LaunchVerifier)

// NewLaunchVerifier builds a verifier that resolves the bot token through the
// given secret provider under secretName.
func NewLaunchVerifier(provider SecretProvider, secretName string, opts ...LaunchOption) *LaunchVerifier {
	verifier := &LaunchVerifier{
		provider:   provider,
		secretName: strings.TrimSpace(secretName),
		logger:     log.Default(),
		now:        time.Now,
		ttl:        defaultLaunchTTL,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(verifier)
		}
	}

	return verifier
}

// WithLaunchLogger overrides the verifier logger.
func WithLaunchLogger(logger Logger) LaunchOption {
	return func(v *LaunchVerifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithLaunchMetrics sets the metrics recorder.
func WithLaunchMetrics(metrics MetricsRecorder) LaunchOption {
	return func(v *LaunchVerifier) {
		v.metrics = metrics
	}
}

// WithLaunchClock injects a custom clock, primarily for tests.
func WithLaunchClock(now func() time.Time) LaunchOption {
	return func(v *LaunchVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithLaunchTTL adjusts the accepted auth_date freshness window. Zero disables
// the check.
func WithLaunchTTL(d time.Duration) LaunchOption {
	return func(v *LaunchVerifier) {
		if d >= 0 {
			v.ttl = d
		}
	}
}

// Verify checks the payload signature and freshness, returning the decoded
// launch data. Signature comparison is constant time.
func (v *LaunchVerifier) Verify(ctx context.Context, initData string) (*LaunchData, error) {
	start := v.now()

	initData = strings.TrimSpace(initData)
	if initData == "" {
		v.record(ctx, false, "payload_empty", start)
		return nil, fmt.Errorf("%w: empty payload", ErrLaunchMalformed)
	}

	values, err := url.ParseQuery(initData)
	if err != nil {
		v.record(ctx, false, "payload_unparseable", start)
		return nil, fmt.Errorf("%w: %v", ErrLaunchMalformed, err)
	}

	providedHash := values.Get("hash")
	if providedHash == "" {
		v.record(ctx, false, "hash_missing", start)
		return nil, fmt.Errorf("%w: hash missing", ErrLaunchMalformed)
	}

	provided, err := hex.DecodeString(providedHash)
	if err != nil || len(provided) != sha256.Size {
		v.record(ctx, false, "hash_invalid", start)
		return nil, fmt.Errorf("%w: hash encoding invalid", ErrLaunchMalformed)
	}

	secret, err := v.loadSecret(ctx)
	if err != nil {
		v.record(ctx, false, "secret_unavailable", start)
		return nil, err
	}

	expected := computeLaunchHash(secret, buildDataCheckString(values))
	if !hmac.Equal(provided, expected) {
		v.record(ctx, false, "signature_mismatch", start)
		return nil, ErrLaunchSignature
	}

	data, err := decodeLaunchData(values)
	if err != nil {
		v.record(ctx, false, "claims_invalid", start)
		return nil, err
	}

	if v.ttl > 0 {
		age := v.now().Sub(data.AuthDate)
		if age > v.ttl || age < -time.Minute {
			v.record(ctx, false, "auth_date_stale", start)
			return nil, ErrLaunchExpired
		}
	}

	v.record(ctx, true, "ok", start)
	return data, nil
}

func (v *LaunchVerifier) record(ctx context.Context, success bool, reason string, start time.Time) {
	if v == nil || v.metrics == nil {
		return
	}
	duration := v.now().Sub(start)
	v.metrics.RecordVerification(ctx, "telegram_launch", success, reason, duration)
}

// loadSecret derives and caches HMAC-SHA256("WebAppData", botToken).
func (v *LaunchVerifier) loadSecret(ctx context.Context) ([]byte, error) {
	if v == nil || v.provider == nil {
		return nil, errors.New("auth: secret provider not configured")
	}
	if v.secretName == "" {
		return nil, errors.New("auth: bot token secret not configured")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if len(v.secret) > 0 {
		return v.secret, nil
	}

	token, err := v.provider.GetSecret(ctx, v.secretName)
	if err != nil {
		if v.logger != nil {
			v.logger.Printf("auth: bot token lookup failed: %v", err)
		}
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("auth: bot token is empty")
	}

	mac := hmac.New(sha256.New, []byte(launchSecretSeed))
	_, _ = mac.Write([]byte(token))
	v.secret = mac.Sum(nil)
	return v.secret, nil
}

// buildDataCheckString drops the hash field, sorts the remaining pairs by key
// and joins key=value lines with newlines, as Telegram specifies.
func buildDataCheckString(values url.Values) []byte {
	keys := make([]string, 0, len(values))
	for key := range values {
		if key == "hash" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+values.Get(key))
	}
	return []byte(strings.Join(pairs, "\n"))
}

func computeLaunchHash(secret, message []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(message)
	return mac.Sum(nil)
}

func decodeLaunchData(values url.Values) (*LaunchData, error) {
	userRaw := values.Get("user")
	if strings.TrimSpace(userRaw) == "" {
		return nil, ErrLaunchUserMissing
	}

	var user LaunchUser
	if err := json.Unmarshal([]byte(userRaw), &user); err != nil {
		return nil, fmt.Errorf("%w: user claim: %v", ErrLaunchMalformed, err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("%w: user id missing", ErrLaunchMalformed)
	}

	authRaw := values.Get("auth_date")
	seconds, err := strconv.ParseInt(strings.TrimSpace(authRaw), 10, 64)
	if err != nil || seconds <= 0 {
		return nil, fmt.Errorf("%w: auth_date invalid", ErrLaunchMalformed)
	}

	return &LaunchData{
		User:     user,
		AuthDate: time.Unix(seconds, 0).UTC(),
		QueryID:  values.Get("query_id"),
		StartKey: values.Get("start_param"),
		Raw:      values,
	}, nil
}
