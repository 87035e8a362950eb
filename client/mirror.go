package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	cartMirrorFile   = "seva-flowers-cart.json"
	ordersMirrorFile = "seva-flowers-orders.json"
)

// PendingOp is a cart mutation applied locally while the server was
// unreachable (or identity unresolved), waiting to be replayed by Sync.
type PendingOp struct {
	Op       string    `json:"op"`
	FlowerID string    `json:"flower_id,omitempty"`
	Quantity int       `json:"quantity,omitempty"`
	QueuedAt time.Time `json:"queued_at"`
}

const (
	opAdd    = "add"
	opUpdate = "update"
	opRemove = "remove"
	opClear  = "clear"
)

// CartState is the persisted cart mirror: the last known cart plus the
// queue of mutations not yet confirmed by the server.
type CartState struct {
	Cart    Cart        `json:"cart"`
	Pending []PendingOp `json:"pending,omitempty"`
	SavedAt time.Time   `json:"saved_at"`
}

// Mirror persists cart and order snapshots across application restarts.
type Mirror interface {
	LoadCart() (CartState, error)
	SaveCart(state CartState) error
	LoadOrders() ([]Order, error)
	SaveOrders(orders []Order) error
}

// FileMirror stores the snapshots as JSON files in a directory, one file per
// storage key. Missing files read as empty state.
type FileMirror struct {
	dir string
}

// NewFileMirror creates a mirror rooted at dir, creating it when absent.
func NewFileMirror(dir string) (*FileMirror, error) {
	if dir == "" {
		return nil, errors.New("mirror: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mirror: create directory: %w", err)
	}
	return &FileMirror{dir: dir}, nil
}

// LoadCart reads the persisted cart state. A missing or corrupt file yields
// an empty state rather than an error so the mirror never blocks startup.
func (m *FileMirror) LoadCart() (CartState, error) {
	var state CartState
	data, err := os.ReadFile(filepath.Join(m.dir, cartMirrorFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return CartState{Cart: Cart{Items: []CartItem{}}}, nil
		}
		return state, fmt.Errorf("mirror: read cart: %w", err)
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return CartState{Cart: Cart{Items: []CartItem{}}}, nil
	}
	if state.Cart.Items == nil {
		state.Cart.Items = []CartItem{}
	}
	return state, nil
}

// SaveCart persists the cart state atomically.
func (m *FileMirror) SaveCart(state CartState) error {
	return m.writeFile(cartMirrorFile, state)
}

// LoadOrders reads the persisted order snapshots, newest first.
func (m *FileMirror) LoadOrders() ([]Order, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, ordersMirrorFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Order{}, nil
		}
		return nil, fmt.Errorf("mirror: read orders: %w", err)
	}
	var orders []Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return []Order{}, nil
	}
	return orders, nil
}

// SaveOrders persists the order snapshots atomically.
func (m *FileMirror) SaveOrders(orders []Order) error {
	if orders == nil {
		orders = []Order{}
	}
	return m.writeFile(ordersMirrorFile, orders)
}

func (m *FileMirror) writeFile(name string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("mirror: encode %s: %w", name, err)
	}
	path := filepath.Join(m.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("mirror: write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("mirror: replace %s: %w", name, err)
	}
	return nil
}
