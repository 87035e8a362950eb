package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/seva-flowers/api/internal/domain"
	pfirestore "github.com/seva-flowers/api/internal/platform/firestore"
	"github.com/seva-flowers/api/internal/repositories"
)

const cartLineCollectionPattern = "carts/%s/items"

// CartRepository persists cart lines as a per-user subcollection where the
// document id is the flower id. The keying makes duplicate lines for one
// flower structurally impossible.
type CartRepository struct {
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{provider: provider}, nil
}

// ListLines returns the user's cart lines ordered by creation time.
func (r *CartRepository) ListLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return nil, err
	}

	iter := coll.OrderBy("createdAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var lines []domain.CartLine
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("cart.list", err)
		}
		line, err := decodeCartLine(snap)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// GetLine loads a single line by flower id.
func (r *CartRepository) GetLine(ctx context.Context, userID string, flowerID string) (domain.CartLine, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.CartLine{}, err
	}
	flowerID = strings.TrimSpace(flowerID)
	if flowerID == "" {
		return domain.CartLine{}, errors.New("cart repository: flower id is required")
	}

	snap, err := coll.Doc(flowerID).Get(ctx)
	if err != nil {
		return domain.CartLine{}, pfirestore.WrapError("cart.get", err)
	}
	return decodeCartLine(snap)
}

// UpsertLine sets the line to the given quantity, creating it when absent.
func (r *CartRepository) UpsertLine(ctx context.Context, userID string, line domain.CartLine) (domain.CartLine, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.CartLine{}, err
	}
	flowerID := strings.TrimSpace(line.FlowerID)
	if flowerID == "" {
		return domain.CartLine{}, errors.New("cart repository: flower id is required")
	}
	if line.Quantity <= 0 {
		return domain.CartLine{}, errors.New("cart repository: quantity must be positive")
	}

	now := time.Now().UTC()
	if !line.UpdatedAt.IsZero() {
		now = line.UpdatedAt.UTC()
	}

	saved := domain.CartLine{FlowerID: flowerID, Quantity: line.Quantity, UpdatedAt: now}
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := coll.Doc(flowerID)
		snap, err := tx.Get(ref)
		switch status.Code(err) {
		case codes.NotFound:
			saved.CreatedAt = now
		case codes.OK:
			var existing cartLineDocument
			if err := snap.DataTo(&existing); err != nil {
				return fmt.Errorf("firestore cart decode %s: %w", snap.Ref.ID, err)
			}
			saved.CreatedAt = existing.CreatedAt
			if saved.CreatedAt.IsZero() {
				saved.CreatedAt = snap.CreateTime
			}
		default:
			return err
		}
		return tx.Set(ref, cartLineDocument{
			Quantity:  saved.Quantity,
			CreatedAt: saved.CreatedAt,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return domain.CartLine{}, pfirestore.WrapError("cart.upsert", err)
	}
	return saved, nil
}

// IncrementLine adds delta to the stored quantity, creating the line at delta
// when absent.
func (r *CartRepository) IncrementLine(ctx context.Context, userID string, flowerID string, delta int, now time.Time) (domain.CartLine, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return domain.CartLine{}, err
	}
	flowerID = strings.TrimSpace(flowerID)
	if flowerID == "" {
		return domain.CartLine{}, errors.New("cart repository: flower id is required")
	}
	if delta <= 0 {
		return domain.CartLine{}, errors.New("cart repository: delta must be positive")
	}
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	var saved domain.CartLine
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref := coll.Doc(flowerID)
		snap, err := tx.Get(ref)
		switch status.Code(err) {
		case codes.NotFound:
			saved = domain.CartLine{FlowerID: flowerID, Quantity: delta, CreatedAt: now, UpdatedAt: now}
		case codes.OK:
			var existing cartLineDocument
			if err := snap.DataTo(&existing); err != nil {
				return fmt.Errorf("firestore cart decode %s: %w", snap.Ref.ID, err)
			}
			createdAt := existing.CreatedAt
			if createdAt.IsZero() {
				createdAt = snap.CreateTime
			}
			saved = domain.CartLine{
				FlowerID:  flowerID,
				Quantity:  existing.Quantity + delta,
				CreatedAt: createdAt,
				UpdatedAt: now,
			}
		default:
			return err
		}
		return tx.Set(ref, cartLineDocument{
			Quantity:  saved.Quantity,
			CreatedAt: saved.CreatedAt,
			UpdatedAt: now,
		})
	})
	if err != nil {
		return domain.CartLine{}, pfirestore.WrapError("cart.increment", err)
	}
	return saved, nil
}

// DeleteLine removes the line. Deleting a missing line is not an error.
func (r *CartRepository) DeleteLine(ctx context.Context, userID string, flowerID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}
	flowerID = strings.TrimSpace(flowerID)
	if flowerID == "" {
		return errors.New("cart repository: flower id is required")
	}
	if _, err := coll.Doc(flowerID).Delete(ctx); err != nil {
		return pfirestore.WrapError("cart.delete", err)
	}
	return nil
}

// DeleteLines removes the named lines without reading them first. Inside a
// transaction started through the provider the deletes are buffered writes,
// which keeps the call legal after other writes have been queued; Firestore
// rejects any read once a transaction holds a buffered write. Checkout relies
// on this to clear the cart after the order document is created.
func (r *CartRepository) DeleteLines(ctx context.Context, userID string, flowerIDs []string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}

	if tx, ok := pfirestore.TransactionFromContext(ctx); ok {
		for _, id := range flowerIDs {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if err := tx.Delete(coll.Doc(id)); err != nil {
				return pfirestore.WrapError("cart.delete_lines", err)
			}
		}
		return nil
	}

	for _, id := range flowerIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, err := coll.Doc(id).Delete(ctx); err != nil {
			return pfirestore.WrapError("cart.delete_lines", err)
		}
	}
	return nil
}

// Clear removes every line in the user's cart. Clearing starts with a
// collection read, so Clear must not run inside a transaction that has
// already buffered writes; checkout deletes the lines it listed up front
// through DeleteLines instead.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return err
	}

	if tx, ok := pfirestore.TransactionFromContext(ctx); ok {
		iter := tx.Documents(coll.Query)
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return pfirestore.WrapError("cart.clear", err)
			}
			if err := tx.Delete(snap.Ref); err != nil {
				return pfirestore.WrapError("cart.clear", err)
			}
		}
		return nil
	}

	iter := coll.Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return pfirestore.WrapError("cart.clear", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return pfirestore.WrapError("cart.clear", err)
		}
	}
	return nil
}

func (r *CartRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("cart repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(fmt.Sprintf(cartLineCollectionPattern, uid)), nil
}

func decodeCartLine(snapshot *firestore.DocumentSnapshot) (domain.CartLine, error) {
	var doc cartLineDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.CartLine{}, fmt.Errorf("decode cart line %s: %w", snapshot.Ref.ID, err)
	}
	line := domain.CartLine{
		FlowerID:  snapshot.Ref.ID,
		Quantity:  doc.Quantity,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if line.CreatedAt.IsZero() {
		line.CreatedAt = snapshot.CreateTime
	}
	if line.UpdatedAt.IsZero() {
		line.UpdatedAt = snapshot.UpdateTime
	}
	return line, nil
}

type cartLineDocument struct {
	Quantity  int       `firestore:"quantity"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

var _ repositories.CartRepository = (*CartRepository)(nil)
