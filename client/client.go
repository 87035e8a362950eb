// Package client is the storefront-facing API client with a local
// persisted mirror. While Telegram identity is still unresolved, or when
// the server is unreachable, reads fall back to the mirror and cart
// mutations queue locally; Sync replays the queue once the server is
// reachable again. The server stays the source of truth: every confirmed
// server response overwrites the mirror, never the reverse.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	initDataHeader       = "X-Telegram-Init-Data"
	idempotencyHeader    = "Idempotency-Key"
	defaultAuthAttempts  = 5
	defaultAuthInterval  = time.Second
	defaultClientTimeout = 10 * time.Second
)

// ErrUnauthenticated is returned when identity has not been resolved and the
// requested operation needs the server.
var ErrUnauthenticated = errors.New("client: identity not resolved")

// Logger is the printf-style logging hook used by the client.
type Logger interface {
	Printf(format string, args ...any)
}

// Client talks to the storefront API and keeps the local mirror in step.
// Methods are safe for concurrent use.
type Client struct {
	baseURL      string
	initData     string
	httpClient   *http.Client
	mirror       Mirror
	logger       Logger
	clock        func() time.Time
	newID        func() string
	authAttempts int
	authInterval time.Duration

	mu            sync.Mutex
	authenticated bool
	user          User
}

// Option customises client construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger installs a logger for fallback and sync events.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithIDGenerator overrides the idempotency-key generator.
func WithIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// WithAuthRetry tunes the launch-data exchange polling. The exchange is
// retried because init data may not be present on first render.
func WithAuthRetry(attempts int, interval time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.authAttempts = attempts
		}
		if interval > 0 {
			c.authInterval = interval
		}
	}
}

// New creates a client for the API at baseURL. The init data string comes
// from the Telegram launch context; mirror persists local state.
func New(baseURL, initData string, mirror Mirror, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("client: base url is required")
	}
	if mirror == nil {
		return nil, errors.New("client: mirror is required")
	}
	c := &Client{
		baseURL:      baseURL,
		initData:     strings.TrimSpace(initData),
		httpClient:   &http.Client{Timeout: defaultClientTimeout},
		mirror:       mirror,
		clock:        time.Now,
		newID:        func() string { return ulid.Make().String() },
		authAttempts: defaultAuthAttempts,
		authInterval: defaultAuthInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Authenticated reports whether the launch-data exchange has succeeded.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// Authenticate exchanges the launch data for an account, polling the verify
// endpoint a bounded number of times because init data can arrive late in
// the host environment. It returns ErrUnauthenticated once attempts are
// exhausted.
func (c *Client) Authenticate(ctx context.Context) (User, error) {
	if c.initData == "" {
		return User{}, fmt.Errorf("%w: no launch data", ErrUnauthenticated)
	}

	var lastErr error
	for attempt := 0; attempt < c.authAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return User{}, ctx.Err()
			case <-time.After(c.authInterval):
			}
		}

		var payload struct {
			User User `json:"user"`
		}
		err := c.do(ctx, http.MethodPost, "/api/v1/auth/telegram", nil, &payload)
		if err == nil {
			c.mu.Lock()
			c.authenticated = true
			c.user = payload.User
			c.mu.Unlock()
			return payload.User, nil
		}
		lastErr = err
		c.logf("client: auth attempt %d failed: %v", attempt+1, err)
	}
	return User{}, fmt.Errorf("%w: %v", ErrUnauthenticated, lastErr)
}

// GetCart returns the server cart when reachable, refreshing the mirror;
// otherwise it returns the mirrored cart.
func (c *Client) GetCart(ctx context.Context) (Cart, error) {
	if !c.Authenticated() {
		state, err := c.loadCartState()
		return state.Cart, err
	}

	var payload struct {
		Cart Cart `json:"cart"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/cart", nil, &payload); err != nil {
		if isTransportError(err) {
			c.logf("client: cart read fell back to mirror: %v", err)
			state, loadErr := c.loadCartState()
			return state.Cart, loadErr
		}
		return Cart{}, err
	}
	c.refreshCartMirror(payload.Cart)
	return payload.Cart, nil
}

// AddItem adds quantity of a flower to the cart. Offline or before identity
// resolves, the mutation applies to the mirror and queues for Sync.
func (c *Client) AddItem(ctx context.Context, flowerID string, quantity int) (Cart, error) {
	flowerID = strings.TrimSpace(flowerID)
	if flowerID == "" {
		return Cart{}, errors.New("client: flower id is required")
	}
	if quantity <= 0 {
		quantity = 1
	}
	op := PendingOp{Op: opAdd, FlowerID: flowerID, Quantity: quantity, QueuedAt: c.clock().UTC()}
	body := map[string]any{"flower_id": flowerID, "quantity": quantity}
	return c.mutateCart(ctx, http.MethodPost, "/api/v1/cart/items", body, op)
}

// UpdateItem sets the quantity of a cart line. Zero or negative removes it.
func (c *Client) UpdateItem(ctx context.Context, flowerID string, quantity int) (Cart, error) {
	flowerID = strings.TrimSpace(flowerID)
	if flowerID == "" {
		return Cart{}, errors.New("client: flower id is required")
	}
	op := PendingOp{Op: opUpdate, FlowerID: flowerID, Quantity: quantity, QueuedAt: c.clock().UTC()}
	body := map[string]any{"quantity": quantity}
	return c.mutateCart(ctx, http.MethodPatch, "/api/v1/cart/items/"+url.PathEscape(flowerID), body, op)
}

// RemoveItem deletes a cart line.
func (c *Client) RemoveItem(ctx context.Context, flowerID string) (Cart, error) {
	flowerID = strings.TrimSpace(flowerID)
	if flowerID == "" {
		return Cart{}, errors.New("client: flower id is required")
	}
	op := PendingOp{Op: opRemove, FlowerID: flowerID, QueuedAt: c.clock().UTC()}
	return c.mutateCart(ctx, http.MethodDelete, "/api/v1/cart/items/"+url.PathEscape(flowerID), nil, op)
}

// ClearCart empties the cart.
func (c *Client) ClearCart(ctx context.Context) error {
	op := PendingOp{Op: opClear, QueuedAt: c.clock().UTC()}
	if !c.Authenticated() {
		c.applyLocal(op)
		return nil
	}
	if err := c.do(ctx, http.MethodDelete, "/api/v1/cart", nil, nil); err != nil {
		if isTransportError(err) {
			c.logf("client: cart clear queued for sync: %v", err)
			c.applyLocal(op)
			return nil
		}
		return err
	}
	c.refreshCartMirror(Cart{Items: []CartItem{}})
	return nil
}

// Sync replays queued cart mutations against the server in order, then
// overwrites the mirror with the confirmed server cart. Mutations the
// server rejects are dropped; a transport error stops the replay with the
// remaining queue intact.
func (c *Client) Sync(ctx context.Context) error {
	if !c.Authenticated() {
		return ErrUnauthenticated
	}

	state, err := c.loadCartState()
	if err != nil {
		return err
	}
	for len(state.Pending) > 0 {
		op := state.Pending[0]
		if err := c.replay(ctx, op); err != nil {
			if isTransportError(err) {
				c.saveCartState(state)
				return fmt.Errorf("client: sync interrupted: %w", err)
			}
			c.logf("client: sync dropped rejected %s op for %s: %v", op.Op, op.FlowerID, err)
		}
		state.Pending = state.Pending[1:]
	}

	var payload struct {
		Cart Cart `json:"cart"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/cart", nil, &payload); err != nil {
		c.saveCartState(state)
		return fmt.Errorf("client: sync readback: %w", err)
	}
	c.saveCartState(CartState{Cart: payload.Cart, SavedAt: c.clock().UTC()})
	return nil
}

// CreateOrder places an order from the server cart. It refuses while
// identity is unresolved, leaving the mirrored cart untouched. Queued cart
// mutations are synced first so the order covers everything the user added
// offline. Each attempt carries a fresh idempotency key.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (Order, error) {
	if !c.Authenticated() {
		return Order{}, ErrUnauthenticated
	}
	if err := c.Sync(ctx); err != nil {
		return Order{}, err
	}

	var payload struct {
		Order Order `json:"order"`
	}
	headers := map[string]string{idempotencyHeader: c.newID()}
	if err := c.doWithHeaders(ctx, http.MethodPost, "/api/v1/orders", req, &payload, headers); err != nil {
		return Order{}, err
	}

	c.refreshCartMirror(Cart{Items: []CartItem{}})
	c.prependOrderMirror(payload.Order)
	return payload.Order, nil
}

// ListOrders returns the user's orders, newest first, falling back to the
// mirrored snapshots when the server is unreachable.
func (c *Client) ListOrders(ctx context.Context) ([]Order, error) {
	if !c.Authenticated() {
		return c.mirror.LoadOrders()
	}

	var payload struct {
		Orders []Order `json:"orders"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/orders", nil, &payload); err != nil {
		if isTransportError(err) {
			c.logf("client: order list fell back to mirror: %v", err)
			return c.mirror.LoadOrders()
		}
		return nil, err
	}
	if err := c.mirror.SaveOrders(payload.Orders); err != nil {
		c.logf("client: order mirror write failed: %v", err)
	}
	return payload.Orders, nil
}

// GetOrder returns a single order by id, consulting the mirror when the
// server is unreachable.
func (c *Client) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, errors.New("client: order id is required")
	}
	if c.Authenticated() {
		var payload struct {
			Order Order `json:"order"`
		}
		err := c.do(ctx, http.MethodGet, "/api/v1/orders/"+url.PathEscape(orderID), nil, &payload)
		if err == nil {
			return payload.Order, nil
		}
		if !isTransportError(err) {
			return Order{}, err
		}
		c.logf("client: order read fell back to mirror: %v", err)
	}

	orders, err := c.mirror.LoadOrders()
	if err != nil {
		return Order{}, err
	}
	for _, order := range orders {
		if order.ID == orderID {
			return order, nil
		}
	}
	return Order{}, fmt.Errorf("client: order %s not found in mirror", orderID)
}

func (c *Client) mutateCart(ctx context.Context, method, path string, body any, op PendingOp) (Cart, error) {
	if !c.Authenticated() {
		return c.applyLocal(op), nil
	}

	var payload struct {
		Cart Cart `json:"cart"`
	}
	if err := c.do(ctx, method, path, body, &payload); err != nil {
		if isTransportError(err) {
			c.logf("client: cart %s queued for sync: %v", op.Op, err)
			return c.applyLocal(op), nil
		}
		return Cart{}, err
	}
	c.refreshCartMirror(payload.Cart)
	return payload.Cart, nil
}

func (c *Client) replay(ctx context.Context, op PendingOp) error {
	switch op.Op {
	case opAdd:
		body := map[string]any{"flower_id": op.FlowerID, "quantity": op.Quantity}
		return c.do(ctx, http.MethodPost, "/api/v1/cart/items", body, nil)
	case opUpdate:
		body := map[string]any{"quantity": op.Quantity}
		return c.do(ctx, http.MethodPatch, "/api/v1/cart/items/"+url.PathEscape(op.FlowerID), body, nil)
	case opRemove:
		return c.do(ctx, http.MethodDelete, "/api/v1/cart/items/"+url.PathEscape(op.FlowerID), nil, nil)
	case opClear:
		return c.do(ctx, http.MethodDelete, "/api/v1/cart", nil, nil)
	default:
		c.logf("client: skipping unknown queued op %q", op.Op)
		return nil
	}
}

// applyLocal applies a mutation to the mirrored cart and queues it.
func (c *Client) applyLocal(op PendingOp) Cart {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.mirror.LoadCart()
	if err != nil {
		c.logf("client: cart mirror read failed: %v", err)
		state = CartState{Cart: Cart{Items: []CartItem{}}}
	}
	state.Cart = applyCartOp(state.Cart, op)
	state.Pending = append(state.Pending, op)
	state.SavedAt = c.clock().UTC()
	if err := c.mirror.SaveCart(state); err != nil {
		c.logf("client: cart mirror write failed: %v", err)
	}
	return state.Cart
}

func applyCartOp(cart Cart, op PendingOp) Cart {
	switch op.Op {
	case opAdd:
		for i := range cart.Items {
			if cart.Items[i].FlowerID == op.FlowerID {
				cart.Items[i].Quantity += op.Quantity
				cart.ItemsCount = len(cart.Items)
				return cart
			}
		}
		cart.Items = append(cart.Items, CartItem{FlowerID: op.FlowerID, Quantity: op.Quantity})
	case opUpdate:
		kept := cart.Items[:0]
		for _, item := range cart.Items {
			if item.FlowerID == op.FlowerID {
				if op.Quantity <= 0 {
					continue
				}
				item.Quantity = op.Quantity
			}
			kept = append(kept, item)
		}
		cart.Items = kept
	case opRemove:
		kept := cart.Items[:0]
		for _, item := range cart.Items {
			if item.FlowerID != op.FlowerID {
				kept = append(kept, item)
			}
		}
		cart.Items = kept
	case opClear:
		cart.Items = []CartItem{}
	}
	cart.ItemsCount = len(cart.Items)
	return cart
}

// refreshCartMirror overwrites the mirror with a confirmed server cart and
// drops the pending queue: the server state already reflects everything it
// accepted, and anything it did not accept is stale by definition.
func (c *Client) refreshCartMirror(cart Cart) {
	if cart.Items == nil {
		cart.Items = []CartItem{}
	}
	cart.ItemsCount = len(cart.Items)
	c.saveCartState(CartState{Cart: cart, SavedAt: c.clock().UTC()})
}

func (c *Client) prependOrderMirror(order Order) {
	c.mu.Lock()
	defer c.mu.Unlock()

	orders, err := c.mirror.LoadOrders()
	if err != nil {
		c.logf("client: order mirror read failed: %v", err)
		orders = nil
	}
	orders = append([]Order{order}, orders...)
	if err := c.mirror.SaveOrders(orders); err != nil {
		c.logf("client: order mirror write failed: %v", err)
	}
}

func (c *Client) loadCartState() (CartState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mirror.LoadCart()
}

func (c *Client) saveCartState(state CartState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mirror.SaveCart(state); err != nil {
		c.logf("client: cart mirror write failed: %v", err)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return c.doWithHeaders(ctx, method, path, body, out, nil)
}

func (c *Client) doWithHeaders(ctx context.Context, method, path string, body, out any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.initData != "" {
		req.Header.Set(initDataHeader, c.initData)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if len(data) > 0 {
			_ = json.Unmarshal(data, apiErr)
		}
		if apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode >= 500 {
			// Server faults count as unreachable for fallback purposes.
			return &transportError{err: apiErr}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return fmt.Sprintf("client: server unreachable: %v", e.err) }
func (e *transportError) Unwrap() error { return e.err }

func isTransportError(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
