package firestore

import (
	"context"
	"errors"
	"time"

	domain "github.com/seva-flowers/api/internal/domain"
	pfirestore "github.com/seva-flowers/api/internal/platform/firestore"
	"github.com/seva-flowers/api/internal/repositories"
)

const (
	appConfigCollection = "config"
	appConfigDocumentID = "default"
)

// AppConfigRepository stores the singleton shop configuration document.
type AppConfigRepository struct {
	base *pfirestore.BaseRepository[appConfigDocument]
}

// NewAppConfigRepository constructs a Firestore-backed config repository.
func NewAppConfigRepository(provider *pfirestore.Provider) (*AppConfigRepository, error) {
	if provider == nil {
		return nil, errors.New("app config repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[appConfigDocument](provider, appConfigCollection, nil, nil)
	return &AppConfigRepository{base: base}, nil
}

// Get loads the singleton document. Absence surfaces as a not-found
// repository error; callers substitute defaults.
func (r *AppConfigRepository) Get(ctx context.Context) (domain.AppConfig, error) {
	if r == nil || r.base == nil {
		return domain.AppConfig{}, errors.New("app config repository not initialised")
	}

	doc, err := r.base.Get(ctx, appConfigDocumentID)
	if err != nil {
		return domain.AppConfig{}, err
	}

	cfg := domain.AppConfig{
		DeliveryFee: doc.Data.DeliveryFee,
		NotifyChat:  doc.Data.NotifyChat,
		UpdatedAt:   doc.Data.UpdatedAt,
	}
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = doc.UpdateTime
	}
	return cfg, nil
}

// Save overwrites the singleton document.
func (r *AppConfigRepository) Save(ctx context.Context, cfg domain.AppConfig) (domain.AppConfig, error) {
	if r == nil || r.base == nil {
		return domain.AppConfig{}, errors.New("app config repository not initialised")
	}

	now := time.Now().UTC()
	if !cfg.UpdatedAt.IsZero() {
		now = cfg.UpdatedAt.UTC()
	}

	doc := appConfigDocument{
		DeliveryFee: cfg.DeliveryFee,
		NotifyChat:  cfg.NotifyChat,
		UpdatedAt:   now,
	}
	result, err := r.base.Set(ctx, appConfigDocumentID, doc)
	if err != nil {
		return domain.AppConfig{}, err
	}

	return domain.AppConfig{
		DeliveryFee: doc.DeliveryFee,
		NotifyChat:  doc.NotifyChat,
		UpdatedAt:   result.UpdateTime,
	}, nil
}

type appConfigDocument struct {
	DeliveryFee int64     `firestore:"deliveryFee"`
	NotifyChat  int64     `firestore:"notifyChat,omitempty"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

var _ repositories.AppConfigRepository = (*AppConfigRepository)(nil)
