package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileMirrorCartRoundTrip(t *testing.T) {
	mirror, err := NewFileMirror(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileMirror returned error: %v", err)
	}

	saved := CartState{
		Cart: Cart{
			UserID:     "usr_1",
			ItemsCount: 1,
			Items:      []CartItem{{FlowerID: "flw_1", Quantity: 2}},
		},
		Pending: []PendingOp{{Op: opAdd, FlowerID: "flw_2", Quantity: 1, QueuedAt: time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC)}},
		SavedAt: time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC),
	}
	if err := mirror.SaveCart(saved); err != nil {
		t.Fatalf("SaveCart returned error: %v", err)
	}

	loaded, err := mirror.LoadCart()
	if err != nil {
		t.Fatalf("LoadCart returned error: %v", err)
	}
	if loaded.Cart.UserID != "usr_1" {
		t.Errorf("expected user usr_1, got %q", loaded.Cart.UserID)
	}
	if len(loaded.Cart.Items) != 1 || loaded.Cart.Items[0].Quantity != 2 {
		t.Errorf("unexpected items: %+v", loaded.Cart.Items)
	}
	if len(loaded.Pending) != 1 || loaded.Pending[0].FlowerID != "flw_2" {
		t.Errorf("unexpected pending queue: %+v", loaded.Pending)
	}
}

func TestFileMirrorMissingFilesReadEmpty(t *testing.T) {
	mirror, err := NewFileMirror(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileMirror returned error: %v", err)
	}

	state, err := mirror.LoadCart()
	if err != nil {
		t.Fatalf("LoadCart returned error: %v", err)
	}
	if len(state.Cart.Items) != 0 || len(state.Pending) != 0 {
		t.Errorf("expected empty state, got %+v", state)
	}

	orders, err := mirror.LoadOrders()
	if err != nil {
		t.Fatalf("LoadOrders returned error: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("expected no orders, got %d", len(orders))
	}
}

func TestFileMirrorCorruptCartReadsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, cartMirrorFile), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	mirror, err := NewFileMirror(dir)
	if err != nil {
		t.Fatalf("NewFileMirror returned error: %v", err)
	}
	state, err := mirror.LoadCart()
	if err != nil {
		t.Fatalf("LoadCart returned error: %v", err)
	}
	if len(state.Cart.Items) != 0 {
		t.Errorf("expected empty cart from corrupt file, got %+v", state.Cart)
	}
}

func TestFileMirrorOrdersRoundTrip(t *testing.T) {
	mirror, err := NewFileMirror(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileMirror returned error: %v", err)
	}

	orders := []Order{
		{ID: "ord_2", Number: "SF-2025-000002", Status: "PENDING", Total: 5350},
		{ID: "ord_1", Number: "SF-2025-000001", Status: "DELIVERED", Total: 1200},
	}
	if err := mirror.SaveOrders(orders); err != nil {
		t.Fatalf("SaveOrders returned error: %v", err)
	}

	loaded, err := mirror.LoadOrders()
	if err != nil {
		t.Fatalf("LoadOrders returned error: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Number != "SF-2025-000002" {
		t.Errorf("unexpected orders: %+v", loaded)
	}
}
