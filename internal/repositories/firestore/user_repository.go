package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/seva-flowers/api/internal/domain"
	pfirestore "github.com/seva-flowers/api/internal/platform/firestore"
	"github.com/seva-flowers/api/internal/repositories"
)

const userCollection = "users"

// UserRepository persists customer profiles in Firestore keyed by internal id
// with a secondary lookup on the Telegram id.
type UserRepository struct {
	base     *pfirestore.BaseRepository[userDocument]
	provider *pfirestore.Provider
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}

	base := pfirestore.NewBaseRepository[userDocument](provider, userCollection, nil, nil)
	return &UserRepository{base: base, provider: provider}, nil
}

// FindByID loads the customer record by internal id.
func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	if r == nil || r.base == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.User{}, errors.New("user id is required")
	}

	doc, err := r.base.Get(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}

	return toDomainUser(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// FindByTelegramID looks up a customer through the Telegram id index.
func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (domain.User, error) {
	if r == nil || r.base == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	if telegramID == 0 {
		return domain.User{}, errors.New("telegram id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("telegramId", "==", telegramID).Limit(1)
	})
	if err != nil {
		return domain.User{}, err
	}
	if len(docs) == 0 {
		return domain.User{}, pfirestore.NewNotFoundError("users.find_by_telegram_id", fmt.Sprintf("telegram id %d", telegramID))
	}

	doc := docs[0]
	return toDomainUser(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// Upsert creates the record on first sight of the Telegram id and refreshes
// the mutable profile fields afterwards. The incoming user.ID is used only
// when a new document is created; the stored id wins otherwise.
func (r *UserRepository) Upsert(ctx context.Context, user domain.User) (domain.User, error) {
	if r == nil || r.provider == nil {
		return domain.User{}, errors.New("user repository not initialised")
	}
	if user.TelegramID == 0 {
		return domain.User{}, errors.New("telegram id is required")
	}
	if strings.TrimSpace(user.ID) == "" {
		return domain.User{}, errors.New("user id is required")
	}

	now := time.Now().UTC()
	if !user.UpdatedAt.IsZero() {
		now = user.UpdatedAt.UTC()
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.User{}, err
	}

	savedID := user.ID
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		query := client.Collection(userCollection).Where("telegramId", "==", user.TelegramID).Limit(1)
		iter := tx.Documents(query)
		defer iter.Stop()

		snap, err := iter.Next()
		if err != nil && !errors.Is(err, iterator.Done) {
			return err
		}

		if errors.Is(err, iterator.Done) {
			doc := fromDomainUser(user, now)
			doc.CreatedAt = now
			return tx.Create(client.Collection(userCollection).Doc(user.ID), doc)
		}

		var existing userDocument
		if err := snap.DataTo(&existing); err != nil {
			return fmt.Errorf("firestore users decode %s: %w", snap.Ref.ID, err)
		}

		savedID = snap.Ref.ID
		updated := fromDomainUser(user, now)
		updated.Roles = existing.Roles
		updated.CreatedAt = existing.CreatedAt
		if updated.CreatedAt.IsZero() {
			updated.CreatedAt = snap.CreateTime
		}
		return tx.Set(snap.Ref, updated)
	})
	if err != nil {
		return domain.User{}, pfirestore.WrapError("users.upsert", err)
	}

	latest, err := r.base.Get(ctx, savedID)
	if err != nil {
		return domain.User{}, err
	}
	return toDomainUser(latest.ID, latest.Data, latest.CreateTime, latest.UpdateTime), nil
}

type userDocument struct {
	TelegramID int64     `firestore:"telegramId"`
	FirstName  string    `firestore:"firstName"`
	LastName   string    `firestore:"lastName,omitempty"`
	Username   string    `firestore:"username,omitempty"`
	PhotoURL   string    `firestore:"photoURL,omitempty"`
	Roles      []string  `firestore:"roles"`
	CreatedAt  time.Time `firestore:"createdAt"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

func toDomainUser(id string, doc userDocument, createTime, updateTime time.Time) domain.User {
	user := domain.User{
		ID:         id,
		TelegramID: doc.TelegramID,
		FirstName:  strings.TrimSpace(doc.FirstName),
		LastName:   strings.TrimSpace(doc.LastName),
		Username:   strings.TrimSpace(doc.Username),
		PhotoURL:   strings.TrimSpace(doc.PhotoURL),
		Roles:      cloneStringSlice(doc.Roles),
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = createTime
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = updateTime
	}
	return user
}

func fromDomainUser(user domain.User, now time.Time) userDocument {
	doc := userDocument{
		TelegramID: user.TelegramID,
		FirstName:  strings.TrimSpace(user.FirstName),
		LastName:   strings.TrimSpace(user.LastName),
		Username:   strings.TrimSpace(user.Username),
		PhotoURL:   strings.TrimSpace(user.PhotoURL),
		Roles:      normaliseRoles(user.Roles),
		CreatedAt:  user.CreatedAt.UTC(),
		UpdatedAt:  now,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.Roles == nil {
		doc.Roles = []string{}
	}
	return doc
}

func cloneStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func normaliseRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	uniq := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		trimmed := strings.ToLower(strings.TrimSpace(role))
		if trimmed == "" {
			continue
		}
		uniq[trimmed] = struct{}{}
	}
	if len(uniq) == 0 {
		return nil
	}
	normalised := make([]string, 0, len(uniq))
	for role := range uniq {
		normalised = append(normalised, role)
	}
	sort.Strings(normalised)
	return normalised
}

var _ repositories.UserRepository = (*UserRepository)(nil)
