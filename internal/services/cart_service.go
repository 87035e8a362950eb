package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	domain "github.com/seva-flowers/api/internal/domain"
	"github.com/seva-flowers/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartCatalogRequired    = errors.New("cart service: catalog is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

// maxCartQuantity bounds a single cart line.
const maxCartQuantity = 99

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart service cannot fulfil the request due to missing dependencies or backend issues.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartNotFound indicates the requested cart line does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// ErrCartConflict indicates the cart could not be updated due to concurrent modifications.
var ErrCartConflict = errors.New("cart service: conflict")

// ErrCartItemUnavailable indicates the requested flower is missing from the catalog or not for sale.
var ErrCartItemUnavailable = errors.New("cart service: item unavailable")

type flowerCatalog interface {
	FindByID(ctx context.Context, flowerID string) (domain.Flower, error)
	FindByIDs(ctx context.Context, flowerIDs []string) (map[string]domain.Flower, error)
}

// CartServiceDeps wires the repository and catalog dependencies for cart operations.
type CartServiceDeps struct {
	Repository repositories.CartRepository
	Catalog    flowerCatalog
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type cartService struct {
	repo    repositories.CartRepository
	catalog flowerCatalog
	now     func() time.Time
	logger  func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Catalog == nil {
		return nil, errCartCatalogRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	service := &cartService{
		repo:    deps.Repository,
		catalog: deps.Catalog,
		now:     func() time.Time { return deps.Clock().UTC() },
		logger:  logger,
	}
	return service, nil
}

// GetCart loads every cart line for the user and joins it against the catalog.
// Lines whose flower has been removed from the catalog stay in the result with a nil Flower.
func (s *cartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	lines, err := s.repo.ListLines(ctx, uid)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}

	entries, err := s.joinLines(ctx, lines)
	if err != nil {
		return Cart{}, err
	}
	return Cart{UserID: uid, Entries: entries}, nil
}

// AddItem increments the line for the flower, creating it when absent.
// A zero quantity defaults to one; a request that would push the line past
// maxCartQuantity is rejected.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	flowerID := strings.TrimSpace(cmd.FlowerID)
	if uid == "" || flowerID == "" {
		return Cart{}, ErrCartInvalidInput
	}

	quantity := cmd.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return Cart{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}
	if quantity > maxCartQuantity {
		return Cart{}, fmt.Errorf("%w: quantity cannot exceed %d", ErrCartInvalidInput, maxCartQuantity)
	}

	flower, err := s.catalog.FindByID(ctx, flowerID)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, ErrCartItemUnavailable
		}
		return Cart{}, s.translateRepoError(err)
	}
	if !flower.Available {
		return Cart{}, ErrCartItemUnavailable
	}

	current := 0
	if line, err := s.repo.GetLine(ctx, uid, flowerID); err == nil {
		current = line.Quantity
	} else if !isRepoNotFound(err) {
		return Cart{}, s.translateRepoError(err)
	}

	if current+quantity > maxCartQuantity {
		return Cart{}, fmt.Errorf("%w: line quantity cannot exceed %d", ErrCartInvalidInput, maxCartQuantity)
	}
	if _, err := s.repo.IncrementLine(ctx, uid, flowerID, quantity, s.now()); err != nil {
		return Cart{}, s.translateRepoError(err)
	}

	return s.GetCart(ctx, uid)
}

// UpdateItem sets the line quantity outright; zero or negative removes the
// line. Updating a line that does not exist is a no-op.
func (s *cartService) UpdateItem(ctx context.Context, cmd UpdateCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	flowerID := strings.TrimSpace(cmd.FlowerID)
	if uid == "" || flowerID == "" {
		return Cart{}, ErrCartInvalidInput
	}

	if cmd.Quantity <= 0 {
		if err := s.repo.DeleteLine(ctx, uid, flowerID); err != nil {
			return Cart{}, s.translateRepoError(err)
		}
		return s.GetCart(ctx, uid)
	}
	if cmd.Quantity > maxCartQuantity {
		return Cart{}, fmt.Errorf("%w: quantity cannot exceed %d", ErrCartInvalidInput, maxCartQuantity)
	}

	if _, err := s.repo.GetLine(ctx, uid, flowerID); err != nil {
		if isRepoNotFound(err) {
			return s.GetCart(ctx, uid)
		}
		return Cart{}, s.translateRepoError(err)
	}

	if _, err := s.catalog.FindByID(ctx, flowerID); err != nil {
		if isRepoNotFound(err) {
			return Cart{}, ErrCartItemUnavailable
		}
		return Cart{}, s.translateRepoError(err)
	}

	now := s.now()
	line := domain.CartLine{
		FlowerID:  flowerID,
		Quantity:  cmd.Quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.repo.UpsertLine(ctx, uid, line); err != nil {
		return Cart{}, s.translateRepoError(err)
	}

	return s.GetCart(ctx, uid)
}

// RemoveItem deletes the line for the flower; removing an absent line is not an error.
func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	flowerID := strings.TrimSpace(cmd.FlowerID)
	if uid == "" || flowerID == "" {
		return Cart{}, ErrCartInvalidInput
	}

	if err := s.repo.DeleteLine(ctx, uid, flowerID); err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return s.GetCart(ctx, uid)
}

// ClearCart removes every line in the user's cart.
func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	if s == nil || s.repo == nil {
		return ErrCartUnavailable
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return ErrCartInvalidInput
	}

	if err := s.repo.Clear(ctx, uid); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *cartService) joinLines(ctx context.Context, lines []domain.CartLine) ([]domain.CartEntry, error) {
	if len(lines) == 0 {
		return []domain.CartEntry{}, nil
	}

	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.FlowerID)
	}
	sort.Strings(ids)

	flowers, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, s.translateRepoError(err)
	}

	entries := make([]domain.CartEntry, 0, len(lines))
	for _, line := range lines {
		entry := domain.CartEntry{Line: line}
		if flower, ok := flowers[line.FlowerID]; ok {
			dup := flower
			entry.Flower = &dup
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartNotFound
		case repoErr.IsConflict():
			return ErrCartConflict
		case repoErr.IsUnavailable():
			return ErrCartUnavailable
		}
		return ErrCartUnavailable
	}
	return ErrCartUnavailable
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
