package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/seva-flowers/api/internal/domain"
	pfirestore "github.com/seva-flowers/api/internal/platform/firestore"
	"github.com/seva-flowers/api/internal/repositories"
)

const categoryCollection = "categories"

// CategoryRepository persists catalog sections and attribute tags.
type CategoryRepository struct {
	base *pfirestore.BaseRepository[categoryDocument]
}

// NewCategoryRepository constructs a Firestore-backed category repository.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[categoryDocument](provider, categoryCollection, nil, nil)
	return &CategoryRepository{base: base}, nil
}

// Insert creates the category document, failing on duplicate id.
func (r *CategoryRepository) Insert(ctx context.Context, category domain.Category) error {
	if r == nil || r.base == nil {
		return errors.New("category repository not initialised")
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(category.ID))
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, fromDomainCategory(category)); err != nil {
		return pfirestore.WrapError("categories.insert", err)
	}
	return nil
}

// Update overwrites the stored document.
func (r *CategoryRepository) Update(ctx context.Context, category domain.Category) error {
	if r == nil || r.base == nil {
		return errors.New("category repository not initialised")
	}
	if strings.TrimSpace(category.ID) == "" {
		return errors.New("category repository: category id is required")
	}
	if _, err := r.base.Set(ctx, category.ID, fromDomainCategory(category)); err != nil {
		return err
	}
	return nil
}

// Delete removes the category document.
func (r *CategoryRepository) Delete(ctx context.Context, categoryID string) error {
	if r == nil || r.base == nil {
		return errors.New("category repository not initialised")
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(categoryID))
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("categories.delete", err)
	}
	return nil
}

// FindByID loads the category by id.
func (r *CategoryRepository) FindByID(ctx context.Context, categoryID string) (domain.Category, error) {
	if r == nil || r.base == nil {
		return domain.Category{}, errors.New("category repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(categoryID))
	if err != nil {
		return domain.Category{}, err
	}
	return toDomainCategory(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// List returns categories ordered by sort index then name.
func (r *CategoryRepository) List(ctx context.Context, filter repositories.CategoryFilter) ([]domain.Category, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("category repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Kind != nil {
			q = q.Where("kind", "==", string(*filter.Kind))
		}
		return q.OrderBy("sortIndex", firestore.Asc).OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	categories := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		categories = append(categories, toDomainCategory(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}
	return categories, nil
}

type categoryDocument struct {
	Name      string    `firestore:"name"`
	Kind      string    `firestore:"kind"`
	SortIndex int       `firestore:"sortIndex"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func fromDomainCategory(category domain.Category) categoryDocument {
	doc := categoryDocument{
		Name:      strings.TrimSpace(category.Name),
		Kind:      string(category.Kind),
		SortIndex: category.SortIndex,
		CreatedAt: category.CreatedAt.UTC(),
		UpdatedAt: category.UpdatedAt.UTC(),
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}
	return doc
}

func toDomainCategory(id string, doc categoryDocument, createTime, updateTime time.Time) domain.Category {
	category := domain.Category{
		ID:        id,
		Name:      doc.Name,
		Kind:      domain.CategoryKind(doc.Kind),
		SortIndex: doc.SortIndex,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = createTime
	}
	if category.UpdatedAt.IsZero() {
		category.UpdatedAt = updateTime
	}
	return category
}

var _ repositories.CategoryRepository = (*CategoryRepository)(nil)
