package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/seva-flowers/api/internal/domain"
	pfirestore "github.com/seva-flowers/api/internal/platform/firestore"
	"github.com/seva-flowers/api/internal/platform/pagination"
	"github.com/seva-flowers/api/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository persists orders with their embedded line snapshots. Writes
// join an ambient transaction when the context carries one, so order creation
// and the cart clear commit as a single unit.
type OrderRepository struct {
	base     *pfirestore.BaseRepository[orderDocument]
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil)
	return &OrderRepository{base: base, provider: provider}, nil
}

// Insert creates the order document, failing on duplicate id.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	ref, err := r.base.DocumentRef(ctx, strings.TrimSpace(order.ID))
	if err != nil {
		return err
	}

	doc := fromDomainOrder(order)
	if tx, ok := pfirestore.TransactionFromContext(ctx); ok {
		if err := tx.Create(ref, doc); err != nil {
			return pfirestore.WrapError("orders.insert", err)
		}
		return nil
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update overwrites the stored order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}

	doc := fromDomainOrder(order)
	if tx, ok := pfirestore.TransactionFromContext(ctx); ok {
		ref, err := r.base.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}
		if err := tx.Set(ref, doc); err != nil {
			return pfirestore.WrapError("orders.update", err)
		}
		return nil
	}
	if _, err := r.base.Set(ctx, order.ID, doc); err != nil {
		return err
	}
	return nil
}

// FindByID loads an order by id.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return toDomainOrder(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// List returns orders newest first, filtered by user and status.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
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
		if uid := strings.TrimSpace(filter.UserID); uid != "" {
			q = q.Where("userId", "==", uid)
		}
		if len(filter.Status) > 0 {
			statuses := make([]string, 0, len(filter.Status))
			for _, status := range filter.Status {
				statuses = append(statuses, string(status))
			}
			q = q.Where("status", "in", statuses)
		}
		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
			if createdAt, docID, err := decodeOrderCursor(token); err == nil {
				q = q.StartAfter(createdAt, docID)
			}
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	nextToken := ""
	if fetchLimit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		nextToken = pagination.Encode(pagination.Cursor{
			Key:   last.Data.CreatedAt.UTC().Format(time.RFC3339Nano),
			DocID: last.ID,
		})
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toDomainOrder(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}
	return domain.CursorPage[domain.Order]{Items: items, NextPageToken: nextToken}, nil
}

type orderDocument struct {
	Number         string              `firestore:"number"`
	UserID         string              `firestore:"userId"`
	Status         string              `firestore:"status"`
	DeliveryMethod string              `firestore:"deliveryMethod"`
	ContactName    string              `firestore:"contactName"`
	ContactPhone   string              `firestore:"contactPhone"`
	Address        string              `firestore:"address,omitempty"`
	Comment        string              `firestore:"comment,omitempty"`
	Lines          []orderLineDocument `firestore:"lines"`
	Currency       string              `firestore:"currency"`
	ItemsTotal     int64               `firestore:"itemsTotal"`
	DeliveryFee    int64               `firestore:"deliveryFee"`
	Total          int64               `firestore:"total"`
	CreatedAt      time.Time           `firestore:"createdAt"`
	UpdatedAt      time.Time           `firestore:"updatedAt"`
}

type orderLineDocument struct {
	FlowerID   string `firestore:"flowerId"`
	FlowerName string `firestore:"flowerName"`
	UnitPrice  int64  `firestore:"unitPrice"`
	Quantity   int    `firestore:"quantity"`
	Subtotal   int64  `firestore:"subtotal"`
}

func fromDomainOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		Number:         strings.TrimSpace(order.Number),
		UserID:         strings.TrimSpace(order.UserID),
		Status:         string(order.Status),
		DeliveryMethod: string(order.DeliveryMethod),
		ContactName:    strings.TrimSpace(order.Contact.Name),
		ContactPhone:   strings.TrimSpace(order.Contact.Phone),
		Address:        strings.TrimSpace(order.Contact.Address),
		Comment:        strings.TrimSpace(order.Contact.Comment),
		Currency:       strings.ToUpper(strings.TrimSpace(order.Currency)),
		ItemsTotal:     order.ItemsTotal,
		DeliveryFee:    order.DeliveryFee,
		Total:          order.Total,
		CreatedAt:      order.CreatedAt.UTC(),
		UpdatedAt:      order.UpdatedAt.UTC(),
	}
	doc.Lines = make([]orderLineDocument, 0, len(order.Lines))
	for _, line := range order.Lines {
		doc.Lines = append(doc.Lines, orderLineDocument{
			FlowerID:   line.FlowerID,
			FlowerName: line.FlowerName,
			UnitPrice:  line.UnitPrice,
			Quantity:   line.Quantity,
			Subtotal:   line.Subtotal,
		})
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

func toDomainOrder(id string, doc orderDocument, createTime, updateTime time.Time) domain.Order {
	order := domain.Order{
		ID:             id,
		Number:         doc.Number,
		UserID:         doc.UserID,
		Status:         domain.OrderStatus(doc.Status),
		DeliveryMethod: domain.DeliveryMethod(doc.DeliveryMethod),
		Contact: domain.OrderContact{
			Name:    doc.ContactName,
			Phone:   doc.ContactPhone,
			Address: doc.Address,
			Comment: doc.Comment,
		},
		Currency:    doc.Currency,
		ItemsTotal:  doc.ItemsTotal,
		DeliveryFee: doc.DeliveryFee,
		Total:       doc.Total,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
	order.Lines = make([]domain.OrderLine, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		order.Lines = append(order.Lines, domain.OrderLine{
			FlowerID:   line.FlowerID,
			FlowerName: line.FlowerName,
			UnitPrice:  line.UnitPrice,
			Quantity:   line.Quantity,
			Subtotal:   line.Subtotal,
		})
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = createTime
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = updateTime
	}
	return order
}

func decodeOrderCursor(token string) (time.Time, string, error) {
	cursor, err := pagination.Decode(token)
	if err != nil {
		return time.Time{}, "", err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, cursor.Key)
	if err != nil {
		return time.Time{}, "", err
	}
	return createdAt, cursor.DocID, nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
