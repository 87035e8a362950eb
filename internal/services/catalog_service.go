package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	domain "github.com/seva-flowers/api/internal/domain"
	"github.com/seva-flowers/api/internal/platform/textutil"
	"github.com/seva-flowers/api/internal/repositories"
)

const (
	categoryIDPrefix = "cat_"
	flowerIDPrefix   = "flw_"

	maxFlowerNameLength        = 200
	maxFlowerDescriptionLength = 4000
)

var (
	// ErrCatalogInvalidInput indicates the caller supplied invalid input.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
	// ErrCatalogNotFound indicates the requested catalog entity does not exist.
	ErrCatalogNotFound = errors.New("catalog service: not found")
	// ErrCatalogConflict indicates a duplicate id or concurrent modification.
	ErrCatalogConflict = errors.New("catalog service: conflict")
	// ErrCatalogUnavailable indicates the backing store could not serve the request.
	ErrCatalogUnavailable = errors.New("catalog service: unavailable")
)

// CatalogServiceDeps wires repositories and utilities for catalog management.
type CatalogServiceDeps struct {
	Categories      repositories.CategoryRepository
	Flowers         repositories.FlowerRepository
	Clock           func() time.Time
	IDGenerator     func() string
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
}

type catalogService struct {
	categories repositories.CategoryRepository
	flowers    repositories.FlowerRepository
	now        func() time.Time
	newID      func() string
	currency   string
	sanitizer  *bluemonday.Policy
	collator   *collate.Collator
	logger     func(context.Context, string, map[string]any)
}

// NewCatalogService constructs a CatalogService enforcing dependency validation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Categories == nil {
		return nil, errors.New("catalog service: category repository is required")
	}
	if deps.Flowers == nil {
		return nil, errors.New("catalog service: flower repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "RUB"
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		categories: deps.Categories,
		flowers:    deps.Flowers,
		now:        func() time.Time { return clock().UTC() },
		newID:      idGen,
		currency:   currency,
		sanitizer:  bluemonday.StrictPolicy(),
		collator:   collate.New(language.Russian, collate.IgnoreCase),
		logger:     logger,
	}, nil
}

// ListCategories returns categories ordered by sort index with Russian
// collation breaking ties on the name.
func (s *catalogService) ListCategories(ctx context.Context, filter CategoryListFilter) ([]Category, error) {
	categories, err := s.categories.List(ctx, repositories.CategoryFilter{Kind: filter.Kind})
	if err != nil {
		return nil, s.translateRepoError(err)
	}

	sort.SliceStable(categories, func(i, j int) bool {
		if categories[i].SortIndex != categories[j].SortIndex {
			return categories[i].SortIndex < categories[j].SortIndex
		}
		return s.collator.CompareString(categories[i].Name, categories[j].Name) < 0
	})
	return categories, nil
}

func (s *catalogService) GetCategory(ctx context.Context, categoryID string) (Category, error) {
	id := strings.TrimSpace(categoryID)
	if id == "" {
		return Category{}, fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}

	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return Category{}, s.translateRepoError(err)
	}
	return category, nil
}

func (s *catalogService) CreateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name is required", ErrCatalogInvalidInput)
	}
	if !validCategoryKind(cmd.Kind) {
		return Category{}, fmt.Errorf("%w: unknown category kind %q", ErrCatalogInvalidInput, cmd.Kind)
	}

	now := s.now()
	category := Category{
		ID:        categoryIDPrefix + s.newID(),
		Name:      name,
		Kind:      cmd.Kind,
		SortIndex: cmd.SortIndex,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.categories.Insert(ctx, category); err != nil {
		return Category{}, s.translateRepoError(err)
	}
	return category, nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error) {
	id := strings.TrimSpace(cmd.CategoryID)
	if id == "" {
		return Category{}, fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name is required", ErrCatalogInvalidInput)
	}
	if !validCategoryKind(cmd.Kind) {
		return Category{}, fmt.Errorf("%w: unknown category kind %q", ErrCatalogInvalidInput, cmd.Kind)
	}

	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return Category{}, s.translateRepoError(err)
	}

	category.Name = name
	category.Kind = cmd.Kind
	category.SortIndex = cmd.SortIndex
	category.UpdatedAt = s.now()

	if err := s.categories.Update(ctx, category); err != nil {
		return Category{}, s.translateRepoError(err)
	}
	return category, nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, categoryID string) error {
	id := strings.TrimSpace(categoryID)
	if id == "" {
		return fmt.Errorf("%w: category id is required", ErrCatalogInvalidInput)
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func (s *catalogService) ListFlowers(ctx context.Context, filter FlowerListFilter) (domain.CursorPage[Flower], error) {
	repoFilter := repositories.FlowerFilter{
		CategoryID:   filter.CategoryID,
		AttributeIDs: append([]string(nil), filter.AttributeIDs...),
		Search:       strings.TrimSpace(filter.Search),
		Pagination:   filter.Pagination,
	}
	// The public storefront only sees flowers currently for sale.
	if !filter.IncludeHidden {
		repoFilter.AvailableOnly = true
	} else {
		repoFilter.AvailableOnly = filter.AvailableOnly
	}

	page, err := s.flowers.List(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[Flower]{}, s.translateRepoError(err)
	}
	return page, nil
}

func (s *catalogService) GetFlower(ctx context.Context, flowerID string) (Flower, error) {
	id := strings.TrimSpace(flowerID)
	if id == "" {
		return Flower{}, fmt.Errorf("%w: flower id is required", ErrCatalogInvalidInput)
	}

	flower, err := s.flowers.FindByID(ctx, id)
	if err != nil {
		return Flower{}, s.translateRepoError(err)
	}
	return flower, nil
}

func (s *catalogService) CreateFlower(ctx context.Context, cmd UpsertFlowerCommand) (Flower, error) {
	flower, err := s.buildFlower(cmd)
	if err != nil {
		return Flower{}, err
	}

	now := s.now()
	flower.ID = flowerIDPrefix + s.newID()
	flower.CreatedAt = now
	flower.UpdatedAt = now

	if err := s.flowers.Insert(ctx, flower); err != nil {
		return Flower{}, s.translateRepoError(err)
	}
	return flower, nil
}

func (s *catalogService) UpdateFlower(ctx context.Context, cmd UpsertFlowerCommand) (Flower, error) {
	id := strings.TrimSpace(cmd.FlowerID)
	if id == "" {
		return Flower{}, fmt.Errorf("%w: flower id is required", ErrCatalogInvalidInput)
	}

	existing, err := s.flowers.FindByID(ctx, id)
	if err != nil {
		return Flower{}, s.translateRepoError(err)
	}

	flower, err := s.buildFlower(cmd)
	if err != nil {
		return Flower{}, err
	}
	flower.ID = existing.ID
	flower.CreatedAt = existing.CreatedAt
	flower.UpdatedAt = s.now()

	if err := s.flowers.Update(ctx, flower); err != nil {
		return Flower{}, s.translateRepoError(err)
	}
	return flower, nil
}

func (s *catalogService) DeleteFlower(ctx context.Context, flowerID string) error {
	id := strings.TrimSpace(flowerID)
	if id == "" {
		return fmt.Errorf("%w: flower id is required", ErrCatalogInvalidInput)
	}
	if err := s.flowers.Delete(ctx, id); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

// buildFlower validates and normalises the command into a flower without
// identifiers or timestamps; callers fill those in.
func (s *catalogService) buildFlower(cmd UpsertFlowerCommand) (Flower, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Flower{}, fmt.Errorf("%w: flower name is required", ErrCatalogInvalidInput)
	}
	if len(name) > maxFlowerNameLength {
		return Flower{}, fmt.Errorf("%w: flower name exceeds %d characters", ErrCatalogInvalidInput, maxFlowerNameLength)
	}
	if cmd.Price <= 0 {
		return Flower{}, fmt.Errorf("%w: price must be positive", ErrCatalogInvalidInput)
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = s.currency
	}
	if err := validateCurrencyCode(currency); err != nil {
		return Flower{}, err
	}

	description := s.sanitizer.Sanitize(strings.TrimSpace(cmd.Description))
	if len(description) > maxFlowerDescriptionLength {
		return Flower{}, fmt.Errorf("%w: description exceeds %d characters", ErrCatalogInvalidInput, maxFlowerDescriptionLength)
	}

	imageURL := strings.TrimSpace(cmd.ImageURL)
	if imageURL != "" && !isAbsoluteURL(imageURL) {
		return Flower{}, fmt.Errorf("%w: image url must be absolute", ErrCatalogInvalidInput)
	}

	attributeIDs := make([]string, 0, len(cmd.AttributeIDs))
	for _, raw := range cmd.AttributeIDs {
		if id := strings.TrimSpace(raw); id != "" {
			attributeIDs = append(attributeIDs, id)
		}
	}
	sort.Strings(attributeIDs)

	return Flower{
		Name:         name,
		Description:  description,
		Price:        cmd.Price,
		Currency:     currency,
		ImageURL:     imageURL,
		CategoryID:   strings.TrimSpace(cmd.CategoryID),
		AttributeIDs: attributeIDs,
		Attributes:   textutil.NormalizeStringMap(cmd.Attributes),
		Available:    cmd.Available,
	}, nil
}

func (s *catalogService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrCatalogNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrCatalogConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
}

func validCategoryKind(kind CategoryKind) bool {
	return kind == domain.CategoryKindMain || kind == domain.CategoryKindAttribute
}

func validateCurrencyCode(code string) error {
	if len(code) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter ISO code", ErrCatalogInvalidInput)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("%w: currency must be a 3-letter ISO code", ErrCatalogInvalidInput)
		}
	}
	return nil
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
