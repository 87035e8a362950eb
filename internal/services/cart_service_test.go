package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/seva-flowers/api/internal/domain"
)

func TestCartServiceGetCartJoinsCatalog(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	repo := &stubCartRepository{
		listFunc: func(ctx context.Context, userID string) ([]domain.CartLine, error) {
			if userID != "usr_1" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return []domain.CartLine{
				{FlowerID: "flw_roses", Quantity: 2},
				{FlowerID: "flw_gone", Quantity: 1},
			}, nil
		},
	}
	catalog := &stubFlowerCatalog{
		findByIDsFunc: func(ctx context.Context, ids []string) (map[string]domain.Flower, error) {
			return map[string]domain.Flower{
				"flw_roses": {ID: "flw_roses", Name: "Красные розы", Price: 3500, Available: true},
			}, nil
		},
	}

	service := newTestCartService(t, repo, catalog, now)

	cart, err := service.GetCart(context.Background(), " usr_1 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.UserID != "usr_1" {
		t.Fatalf("expected user id usr_1, got %q", cart.UserID)
	}
	if len(cart.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(cart.Entries))
	}
	if cart.Entries[0].Flower == nil || cart.Entries[0].Flower.Name != "Красные розы" {
		t.Fatalf("expected first entry joined to catalog flower")
	}
	if cart.Entries[1].Flower != nil {
		t.Fatalf("expected missing flower to stay nil")
	}
}

func TestCartServiceAddItemDefaultsQuantity(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	var gotDelta int
	repo := &stubCartRepository{
		getLineFunc: func(ctx context.Context, userID, flowerID string) (domain.CartLine, error) {
			return domain.CartLine{}, &repositoryErrorStub{notFound: true}
		},
		incrementFunc: func(ctx context.Context, userID, flowerID string, delta int, ts time.Time) (domain.CartLine, error) {
			gotDelta = delta
			if !ts.Equal(now) {
				t.Fatalf("expected timestamp %v, got %v", now, ts)
			}
			return domain.CartLine{FlowerID: flowerID, Quantity: delta}, nil
		},
		listFunc: func(ctx context.Context, userID string) ([]domain.CartLine, error) {
			return []domain.CartLine{{FlowerID: "flw_tulips", Quantity: 1}}, nil
		},
	}
	catalog := availableFlowerCatalog("flw_tulips")

	service := newTestCartService(t, repo, catalog, now)

	cart, err := service.AddItem(context.Background(), AddCartItemCommand{UserID: "usr_1", FlowerID: "flw_tulips"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotDelta != 1 {
		t.Fatalf("expected delta 1, got %d", gotDelta)
	}
	if len(cart.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(cart.Entries))
	}
}

func TestCartServiceAddItemRejectsHugeQuantity(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	repo := &stubCartRepository{
		incrementFunc: func(ctx context.Context, userID, flowerID string, delta int, ts time.Time) (domain.CartLine, error) {
			t.Fatalf("increment should not be called for a rejected quantity")
			return domain.CartLine{}, nil
		},
	}
	catalog := availableFlowerCatalog("flw_tulips")

	service := newTestCartService(t, repo, catalog, now)

	_, err := service.AddItem(context.Background(), AddCartItemCommand{UserID: "usr_1", FlowerID: "flw_tulips", Quantity: 500})
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput, got %v", err)
	}
}

func TestCartServiceAddItemRejectsIncrementPastCap(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	repo := &stubCartRepository{
		getLineFunc: func(ctx context.Context, userID, flowerID string) (domain.CartLine, error) {
			return domain.CartLine{FlowerID: flowerID, Quantity: 97}, nil
		},
		incrementFunc: func(ctx context.Context, userID, flowerID string, delta int, ts time.Time) (domain.CartLine, error) {
			t.Fatalf("increment should not be called past the cap")
			return domain.CartLine{}, nil
		},
	}
	catalog := availableFlowerCatalog("flw_tulips")

	service := newTestCartService(t, repo, catalog, now)

	_, err := service.AddItem(context.Background(), AddCartItemCommand{UserID: "usr_1", FlowerID: "flw_tulips", Quantity: 10})
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput, got %v", err)
	}
}

func TestCartServiceAddItemRejectsUnavailableFlower(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	repo := &stubCartRepository{}
	catalog := &stubFlowerCatalog{
		findByIDFunc: func(ctx context.Context, flowerID string) (domain.Flower, error) {
			return domain.Flower{ID: flowerID, Available: false}, nil
		},
	}

	service := newTestCartService(t, repo, catalog, now)

	_, err := service.AddItem(context.Background(), AddCartItemCommand{UserID: "usr_1", FlowerID: "flw_hidden"})
	if !errors.Is(err, ErrCartItemUnavailable) {
		t.Fatalf("expected ErrCartItemUnavailable, got %v", err)
	}
}

func TestCartServiceAddItemRejectsUnknownFlower(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	repo := &stubCartRepository{}
	catalog := &stubFlowerCatalog{
		findByIDFunc: func(ctx context.Context, flowerID string) (domain.Flower, error) {
			return domain.Flower{}, &repositoryErrorStub{notFound: true}
		},
	}

	service := newTestCartService(t, repo, catalog, now)

	_, err := service.AddItem(context.Background(), AddCartItemCommand{UserID: "usr_1", FlowerID: "flw_none"})
	if !errors.Is(err, ErrCartItemUnavailable) {
		t.Fatalf("expected ErrCartItemUnavailable, got %v", err)
	}
}

func TestCartServiceUpdateItemZeroQuantityDeletes(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	deleted := false
	repo := &stubCartRepository{
		deleteFunc: func(ctx context.Context, userID, flowerID string) error {
			deleted = true
			if flowerID != "flw_roses" {
				t.Fatalf("unexpected flower id %q", flowerID)
			}
			return nil
		},
		listFunc: func(ctx context.Context, userID string) ([]domain.CartLine, error) {
			return nil, nil
		},
	}
	catalog := &stubFlowerCatalog{}

	service := newTestCartService(t, repo, catalog, now)

	cart, err := service.UpdateItem(context.Background(), UpdateCartItemCommand{UserID: "usr_1", FlowerID: "flw_roses", Quantity: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Fatalf("expected line deleted")
	}
	if len(cart.Entries) != 0 {
		t.Fatalf("expected empty cart")
	}
}

func TestCartServiceUpdateItemRejectsHugeQuantity(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	repo := &stubCartRepository{
		upsertFunc: func(ctx context.Context, userID string, line domain.CartLine) (domain.CartLine, error) {
			t.Fatalf("upsert should not be called for a rejected quantity")
			return line, nil
		},
	}
	catalog := availableFlowerCatalog("flw_roses")

	service := newTestCartService(t, repo, catalog, now)

	_, err := service.UpdateItem(context.Background(), UpdateCartItemCommand{UserID: "usr_1", FlowerID: "flw_roses", Quantity: 500})
	if !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput, got %v", err)
	}
}

func TestCartServiceUpdateItemSetsExistingLine(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	var stored domain.CartLine
	repo := &stubCartRepository{
		getLineFunc: func(ctx context.Context, userID, flowerID string) (domain.CartLine, error) {
			return domain.CartLine{FlowerID: flowerID, Quantity: 2}, nil
		},
		upsertFunc: func(ctx context.Context, userID string, line domain.CartLine) (domain.CartLine, error) {
			stored = line
			return line, nil
		},
		listFunc: func(ctx context.Context, userID string) ([]domain.CartLine, error) {
			return []domain.CartLine{stored}, nil
		},
	}
	catalog := availableFlowerCatalog("flw_roses")

	service := newTestCartService(t, repo, catalog, now)

	if _, err := service.UpdateItem(context.Background(), UpdateCartItemCommand{UserID: "usr_1", FlowerID: "flw_roses", Quantity: 7}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Quantity != 7 {
		t.Fatalf("expected quantity set to 7, got %d", stored.Quantity)
	}
}

func TestCartServiceUpdateItemAbsentLineIsNoOp(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	repo := &stubCartRepository{
		getLineFunc: func(ctx context.Context, userID, flowerID string) (domain.CartLine, error) {
			return domain.CartLine{}, &repositoryErrorStub{notFound: true}
		},
		upsertFunc: func(ctx context.Context, userID string, line domain.CartLine) (domain.CartLine, error) {
			t.Fatalf("upsert should not create a line on update")
			return line, nil
		},
		listFunc: func(ctx context.Context, userID string) ([]domain.CartLine, error) {
			return nil, nil
		},
	}
	catalog := availableFlowerCatalog("flw_roses")

	service := newTestCartService(t, repo, catalog, now)

	cart, err := service.UpdateItem(context.Background(), UpdateCartItemCommand{UserID: "usr_1", FlowerID: "flw_roses", Quantity: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cart.Entries) != 0 {
		t.Fatalf("expected the cart to stay empty, got %d entries", len(cart.Entries))
	}
}

func TestCartServiceClearCartValidatesUserID(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	service := newTestCartService(t, &stubCartRepository{}, &stubFlowerCatalog{}, now)

	if err := service.ClearCart(context.Background(), "  "); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected ErrCartInvalidInput, got %v", err)
	}
}

func newTestCartService(t *testing.T, repo *stubCartRepository, catalog *stubFlowerCatalog, now time.Time) CartService {
	t.Helper()
	service, err := NewCartService(CartServiceDeps{
		Repository: repo,
		Catalog:    catalog,
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("unexpected error constructing cart service: %v", err)
	}
	return service
}

func availableFlowerCatalog(ids ...string) *stubFlowerCatalog {
	known := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}
	return &stubFlowerCatalog{
		findByIDFunc: func(ctx context.Context, flowerID string) (domain.Flower, error) {
			if _, ok := known[flowerID]; !ok {
				return domain.Flower{}, &repositoryErrorStub{notFound: true}
			}
			return domain.Flower{ID: flowerID, Name: flowerID, Price: 1000, Available: true}, nil
		},
		findByIDsFunc: func(ctx context.Context, flowerIDs []string) (map[string]domain.Flower, error) {
			result := make(map[string]domain.Flower)
			for _, id := range flowerIDs {
				if _, ok := known[id]; ok {
					result[id] = domain.Flower{ID: id, Name: id, Price: 1000, Available: true}
				}
			}
			return result, nil
		},
	}
}

type stubCartRepository struct {
	listFunc        func(ctx context.Context, userID string) ([]domain.CartLine, error)
	getLineFunc     func(ctx context.Context, userID, flowerID string) (domain.CartLine, error)
	upsertFunc      func(ctx context.Context, userID string, line domain.CartLine) (domain.CartLine, error)
	incrementFunc   func(ctx context.Context, userID, flowerID string, delta int, now time.Time) (domain.CartLine, error)
	deleteFunc      func(ctx context.Context, userID, flowerID string) error
	deleteLinesFunc func(ctx context.Context, userID string, flowerIDs []string) error
	clearFunc       func(ctx context.Context, userID string) error
}

func (s *stubCartRepository) ListLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	if s.listFunc == nil {
		return nil, nil
	}
	return s.listFunc(ctx, userID)
}

func (s *stubCartRepository) GetLine(ctx context.Context, userID string, flowerID string) (domain.CartLine, error) {
	if s.getLineFunc == nil {
		return domain.CartLine{}, &repositoryErrorStub{notFound: true}
	}
	return s.getLineFunc(ctx, userID, flowerID)
}

func (s *stubCartRepository) UpsertLine(ctx context.Context, userID string, line domain.CartLine) (domain.CartLine, error) {
	if s.upsertFunc == nil {
		return line, nil
	}
	return s.upsertFunc(ctx, userID, line)
}

func (s *stubCartRepository) IncrementLine(ctx context.Context, userID string, flowerID string, delta int, now time.Time) (domain.CartLine, error) {
	if s.incrementFunc == nil {
		return domain.CartLine{FlowerID: flowerID, Quantity: delta}, nil
	}
	return s.incrementFunc(ctx, userID, flowerID, delta, now)
}

func (s *stubCartRepository) DeleteLine(ctx context.Context, userID string, flowerID string) error {
	if s.deleteFunc == nil {
		return nil
	}
	return s.deleteFunc(ctx, userID, flowerID)
}

func (s *stubCartRepository) DeleteLines(ctx context.Context, userID string, flowerIDs []string) error {
	if s.deleteLinesFunc == nil {
		return nil
	}
	return s.deleteLinesFunc(ctx, userID, flowerIDs)
}

func (s *stubCartRepository) Clear(ctx context.Context, userID string) error {
	if s.clearFunc == nil {
		return nil
	}
	return s.clearFunc(ctx, userID)
}

type stubFlowerCatalog struct {
	findByIDFunc  func(ctx context.Context, flowerID string) (domain.Flower, error)
	findByIDsFunc func(ctx context.Context, flowerIDs []string) (map[string]domain.Flower, error)
}

func (s *stubFlowerCatalog) FindByID(ctx context.Context, flowerID string) (domain.Flower, error) {
	if s.findByIDFunc == nil {
		return domain.Flower{}, &repositoryErrorStub{notFound: true}
	}
	return s.findByIDFunc(ctx, flowerID)
}

func (s *stubFlowerCatalog) FindByIDs(ctx context.Context, flowerIDs []string) (map[string]domain.Flower, error) {
	if s.findByIDsFunc == nil {
		return map[string]domain.Flower{}, nil
	}
	return s.findByIDsFunc(ctx, flowerIDs)
}

type repositoryErrorStub struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *repositoryErrorStub) Error() string {
	return "repository error"
}

func (e *repositoryErrorStub) IsNotFound() bool {
	return e.notFound
}

func (e *repositoryErrorStub) IsConflict() bool {
	return e.conflict
}

func (e *repositoryErrorStub) IsUnavailable() bool {
	return e.unavailable
}
