package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/seva-flowers/api/internal/platform/firestore"
	"github.com/seva-flowers/api/internal/repositories"
)

const countersCollection = "counters"

// sequenceDocument is the persisted shape of an order-number sequence.
// Value holds the last issued number; Limit, when set, caps the sequence.
type sequenceDocument struct {
	Value     int64     `firestore:"value"`
	Step      int64     `firestore:"step"`
	Limit     *int64    `firestore:"limit,omitempty"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// CounterRepository issues monotonically increasing sequence numbers, most
// notably the per-shop order number sequence.
type CounterRepository struct {
	provider  *pfirestore.Provider
	sequences *pfirestore.BaseRepository[sequenceDocument]
}

// NewCounterRepository constructs a Firestore-backed counter repository.
func NewCounterRepository(provider *pfirestore.Provider) (*CounterRepository, error) {
	if provider == nil {
		return nil, errors.New("counter repository requires firestore provider")
	}
	return &CounterRepository{
		provider:  provider,
		sequences: pfirestore.NewBaseRepository[sequenceDocument](provider, countersCollection, nil, nil),
	}, nil
}

// Next returns the next value of the named sequence, creating it on first
// use. The increment either joins the ambient transaction (order creation
// runs number allocation and order write atomically) or runs in its own.
func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("counter repository not initialised")
	}
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}
	if step < 0 {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, fmt.Sprintf("step must be positive, got %d", step), nil)
	}

	ref, err := r.sequences.DocumentRef(ctx, id)
	if err != nil {
		return 0, err
	}

	var issued int64
	advance := func(ctx context.Context, tx *firestore.Transaction) error {
		value, err := r.advance(tx, ref, id, step)
		if err != nil {
			return err
		}
		issued = value
		return nil
	}

	if tx, ok := pfirestore.TransactionFromContext(ctx); ok {
		err = advance(ctx, tx)
	} else {
		err = r.provider.RunTransaction(ctx, advance)
	}
	if err != nil {
		var counterErr *repositories.CounterError
		if errors.As(err, &counterErr) {
			return 0, counterErr
		}
		return 0, pfirestore.WrapError("counters.next", err)
	}
	return issued, nil
}

func (r *CounterRepository) advance(tx *firestore.Transaction, ref *firestore.DocumentRef, id string, step int64) (int64, error) {
	now := time.Now().UTC()

	snapshot, err := tx.Get(ref)
	if status.Code(err) == codes.NotFound {
		increment := step
		if increment <= 0 {
			increment = 1
		}
		doc := sequenceDocument{Value: increment, Step: increment, UpdatedAt: now}
		if err := tx.Create(ref, doc); err != nil {
			return 0, err
		}
		return doc.Value, nil
	}
	if err != nil {
		return 0, err
	}

	var doc sequenceDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return 0, fmt.Errorf("firestore counters decode %s: %w", id, err)
	}

	increment := step
	if increment <= 0 {
		increment = doc.Step
		if increment <= 0 {
			increment = 1
		}
	}

	next := doc.Value + increment
	if doc.Limit != nil && next > *doc.Limit {
		return 0, repositories.NewCounterError(repositories.CounterErrorExhausted, fmt.Sprintf("counter %s exceeded limit %d", id, *doc.Limit), nil)
	}

	doc.Value = next
	doc.Step = increment
	doc.UpdatedAt = now
	if err := tx.Set(ref, doc, firestore.MergeAll); err != nil {
		return 0, err
	}
	return next, nil
}

// Configure adjusts step, limit, or current value of a sequence. Used by
// operators to reseed the order number sequence at a year boundary.
func (r *CounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	if r == nil || r.provider == nil {
		return errors.New("counter repository not initialised")
	}
	id := strings.TrimSpace(counterID)
	if id == "" {
		return repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}

	payload := map[string]any{"updatedAt": time.Now().UTC()}
	if cfg.Step > 0 {
		payload["step"] = cfg.Step
	}
	if cfg.MaxValue != nil {
		payload["limit"] = *cfg.MaxValue
	}
	if cfg.InitialValue != nil {
		payload["value"] = *cfg.InitialValue
	}

	ref, err := r.sequences.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, payload, firestore.MergeAll); err != nil {
		return pfirestore.WrapError("counters.configure", err)
	}
	return nil
}
