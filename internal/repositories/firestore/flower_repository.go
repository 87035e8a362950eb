package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/seva-flowers/api/internal/domain"
	pfirestore "github.com/seva-flowers/api/internal/platform/firestore"
	"github.com/seva-flowers/api/internal/platform/pagination"
	"github.com/seva-flowers/api/internal/repositories"
)

const flowerCollection = "flowers"

// FlowerRepository persists catalog items in Firestore.
type FlowerRepository struct {
	base     *pfirestore.BaseRepository[flowerDocument]
	provider *pfirestore.Provider
}

// NewFlowerRepository constructs a Firestore-backed flower repository.
func NewFlowerRepository(provider *pfirestore.Provider) (*FlowerRepository, error) {
	if provider == nil {
		return nil, errors.New("flower repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[flowerDocument](provider, flowerCollection, nil, nil)
	return &FlowerRepository{base: base, provider: provider}, nil
}

// Insert creates the flower document, failing on duplicate id.
func (r *FlowerRepository) Insert(ctx context.Context, flower domain.Flower) error {
	if r == nil || r.base == nil {
		return errors.New("flower repository not initialised")
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(flower.ID))
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, fromDomainFlower(flower)); err != nil {
		return pfirestore.WrapError("flowers.insert", err)
	}
	return nil
}

// Update overwrites the stored document.
func (r *FlowerRepository) Update(ctx context.Context, flower domain.Flower) error {
	if r == nil || r.base == nil {
		return errors.New("flower repository not initialised")
	}
	if strings.TrimSpace(flower.ID) == "" {
		return errors.New("flower repository: flower id is required")
	}
	if _, err := r.base.Set(ctx, flower.ID, fromDomainFlower(flower)); err != nil {
		return err
	}
	return nil
}

// Delete removes the flower document.
func (r *FlowerRepository) Delete(ctx context.Context, flowerID string) error {
	if r == nil || r.base == nil {
		return errors.New("flower repository not initialised")
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(flowerID))
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		return pfirestore.WrapError("flowers.delete", err)
	}
	return nil
}

// FindByID loads the flower document by id.
func (r *FlowerRepository) FindByID(ctx context.Context, flowerID string) (domain.Flower, error) {
	if r == nil || r.base == nil {
		return domain.Flower{}, errors.New("flower repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(flowerID))
	if err != nil {
		return domain.Flower{}, err
	}
	return toDomainFlower(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// FindByIDs returns the subset of requested flowers that exist, keyed by id.
// Missing ids are simply absent from the result.
func (r *FlowerRepository) FindByIDs(ctx context.Context, flowerIDs []string) (map[string]domain.Flower, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("flower repository not initialised")
	}

	found := make(map[string]domain.Flower, len(flowerIDs))
	if len(flowerIDs) == 0 {
		return found, nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	refs := make([]*firestore.DocumentRef, 0, len(flowerIDs))
	for _, id := range flowerIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		refs = append(refs, client.Collection(flowerCollection).Doc(id))
	}

	snaps, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("flowers.find_by_ids", err)
	}

	for _, snap := range snaps {
		if snap == nil || !snap.Exists() {
			continue
		}
		var doc flowerDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode flower %s: %w", snap.Ref.ID, err)
		}
		found[snap.Ref.ID] = toDomainFlower(snap.Ref.ID, doc, snap.CreateTime, snap.UpdateTime)
	}
	return found, nil
}

// List returns flowers matching the filter, ordered by name with cursor paging.
func (r *FlowerRepository) List(ctx context.Context, filter repositories.FlowerFilter) (domain.CursorPage[domain.Flower], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Flower]{}, errors.New("flower repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := 0
	if limit > 0 {
		fetchLimit = limit + 1
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.CategoryID != nil && strings.TrimSpace(*filter.CategoryID) != "" {
			q = q.Where("categoryId", "==", strings.TrimSpace(*filter.CategoryID))
		}
		for _, attr := range filter.AttributeIDs {
			attr = strings.TrimSpace(attr)
			if attr != "" {
				q = q.Where("attributeIds", "array-contains", attr)
			}
		}
		if filter.AvailableOnly {
			q = q.Where("available", "==", true)
		}
		q = q.OrderBy("name", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)
		if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
			if cursor, err := pagination.Decode(token); err == nil && cursor.DocID != "" {
				q = q.StartAfter(cursor.Key, cursor.DocID)
			}
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Flower]{}, err
	}

	nextToken := ""
	if fetchLimit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		nextToken = pagination.Encode(pagination.Cursor{Key: last.Data.Name, DocID: last.ID})
		docs = docs[:len(docs)-1]
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	items := make([]domain.Flower, 0, len(docs))
	for _, doc := range docs {
		flower := toDomainFlower(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime)
		if search != "" && !strings.Contains(strings.ToLower(flower.Name), search) {
			continue
		}
		items = append(items, flower)
	}

	return domain.CursorPage[domain.Flower]{Items: items, NextPageToken: nextToken}, nil
}

type flowerDocument struct {
	Name         string            `firestore:"name"`
	Description  string            `firestore:"description,omitempty"`
	Price        int64             `firestore:"price"`
	Currency     string            `firestore:"currency"`
	ImageURL     string            `firestore:"imageUrl,omitempty"`
	CategoryID   string            `firestore:"categoryId,omitempty"`
	AttributeIDs []string          `firestore:"attributeIds,omitempty"`
	Attributes   map[string]string `firestore:"attributes,omitempty"`
	Available    bool              `firestore:"available"`
	CreatedAt    time.Time         `firestore:"createdAt"`
	UpdatedAt    time.Time         `firestore:"updatedAt"`
}

func fromDomainFlower(flower domain.Flower) flowerDocument {
	doc := flowerDocument{
		Name:         strings.TrimSpace(flower.Name),
		Description:  strings.TrimSpace(flower.Description),
		Price:        flower.Price,
		Currency:     strings.ToUpper(strings.TrimSpace(flower.Currency)),
		ImageURL:     strings.TrimSpace(flower.ImageURL),
		CategoryID:   strings.TrimSpace(flower.CategoryID),
		AttributeIDs: cloneStringSlice(flower.AttributeIDs),
		Available:    flower.Available,
		CreatedAt:    flower.CreatedAt.UTC(),
		UpdatedAt:    flower.UpdatedAt.UTC(),
	}
	if len(flower.Attributes) > 0 {
		doc.Attributes = make(map[string]string, len(flower.Attributes))
		for k, v := range flower.Attributes {
			doc.Attributes[k] = v
		}
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

func toDomainFlower(id string, doc flowerDocument, createTime, updateTime time.Time) domain.Flower {
	flower := domain.Flower{
		ID:           id,
		Name:         doc.Name,
		Description:  doc.Description,
		Price:        doc.Price,
		Currency:     doc.Currency,
		ImageURL:     doc.ImageURL,
		CategoryID:   doc.CategoryID,
		AttributeIDs: cloneStringSlice(doc.AttributeIDs),
		Available:    doc.Available,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
	if len(doc.Attributes) > 0 {
		flower.Attributes = make(map[string]string, len(doc.Attributes))
		for k, v := range doc.Attributes {
			flower.Attributes[k] = v
		}
	}
	if flower.CreatedAt.IsZero() {
		flower.CreatedAt = createTime
	}
	if flower.UpdatedAt.IsZero() {
		flower.UpdatedAt = updateTime
	}
	return flower
}

var _ repositories.FlowerRepository = (*FlowerRepository)(nil)
