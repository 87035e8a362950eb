package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seva-flowers/api/internal/domain"
	"github.com/seva-flowers/api/internal/platform/httpx"
	"github.com/seva-flowers/api/internal/services"
)

const (
	defaultFlowerPageSize = 20
	maxFlowerPageSize     = 100
)

// CatalogHandlers exposes the public storefront catalog.
type CatalogHandlers struct {
	catalog services.CatalogService
}

// NewCatalogHandlers constructs the public catalog handlers.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes wires the /catalog endpoints onto the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/flowers", h.listFlowers)
	r.Get("/flowers/{flowerId}", h.getFlower)
	r.Get("/categories", h.listCategories)
	r.Get("/categories/{categoryId}", h.getCategory)
}

func (h *CatalogHandlers) listFlowers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	filter := services.FlowerListFilter{
		Search:     strings.TrimSpace(r.URL.Query().Get("q")),
		Pagination: parsePagination(r, defaultFlowerPageSize, maxFlowerPageSize),
	}
	if category := strings.TrimSpace(r.URL.Query().Get("category")); category != "" {
		filter.CategoryID = &category
	}
	if attrs := strings.TrimSpace(r.URL.Query().Get("attributes")); attrs != "" {
		for _, id := range strings.Split(attrs, ",") {
			if id = strings.TrimSpace(id); id != "" {
				filter.AttributeIDs = append(filter.AttributeIDs, id)
			}
		}
	}

	page, err := h.catalog.ListFlowers(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, flowerListResponse{
		Flowers:       buildFlowerPayloads(page.Items),
		NextPageToken: page.NextPageToken,
	})
}

func (h *CatalogHandlers) getFlower(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	flower, err := h.catalog.GetFlower(ctx, chi.URLParam(r, "flowerId"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	if !flower.Available {
		// Hidden items are not discoverable on the public surface.
		httpx.WriteError(ctx, w, httpx.NewError("flower_not_found", "flower not found", http.StatusNotFound))
		return
	}

	writeJSONResponse(w, http.StatusOK, flowerResponse{Flower: buildFlowerPayload(flower)})
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	filter := services.CategoryListFilter{}
	if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
		kind := domain.CategoryKind(strings.ToUpper(raw))
		if kind != domain.CategoryKindMain && kind != domain.CategoryKindAttribute {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "kind must be MAIN or ATTRIBUTE", http.StatusBadRequest))
			return
		}
		filter.Kind = &kind
	}

	categories, err := h.catalog.ListCategories(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, categoryListResponse{Categories: buildCategoryPayloads(categories)})
}

func (h *CatalogHandlers) getCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	category, err := h.catalog.GetCategory(ctx, chi.URLParam(r, "categoryId"))
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, categoryResponse{Category: buildCategoryPayload(category)})
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("flower_not_found", "catalog item not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_conflict", "catalog item has been modified; retry", http.StatusConflict))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "catalog request failed", http.StatusInternalServerError))
	}
}

type flowerListResponse struct {
	Flowers       []flowerPayload `json:"flowers"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

type flowerResponse struct {
	Flower flowerPayload `json:"flower"`
}

type categoryListResponse struct {
	Categories []categoryPayload `json:"categories"`
}

type categoryResponse struct {
	Category categoryPayload `json:"category"`
}

type flowerPayload struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Price        int64             `json:"price"`
	Currency     string            `json:"currency"`
	ImageURL     string            `json:"image_url,omitempty"`
	CategoryID   string            `json:"category_id,omitempty"`
	AttributeIDs []string          `json:"attribute_ids,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Available    bool              `json:"available"`
	CreatedAt    string            `json:"created_at,omitempty"`
	UpdatedAt    string            `json:"updated_at,omitempty"`
}

type categoryPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	SortIndex int    `json:"sort_index"`
}

func buildFlowerPayload(flower services.Flower) flowerPayload {
	return flowerPayload{
		ID:           flower.ID,
		Name:         flower.Name,
		Description:  flower.Description,
		Price:        flower.Price,
		Currency:     flower.Currency,
		ImageURL:     flower.ImageURL,
		CategoryID:   flower.CategoryID,
		AttributeIDs: flower.AttributeIDs,
		Attributes:   flower.Attributes,
		Available:    flower.Available,
		CreatedAt:    formatTime(flower.CreatedAt),
		UpdatedAt:    formatTime(flower.UpdatedAt),
	}
}

func buildFlowerPayloads(flowers []services.Flower) []flowerPayload {
	out := make([]flowerPayload, 0, len(flowers))
	for _, flower := range flowers {
		out = append(out, buildFlowerPayload(flower))
	}
	return out
}

func buildCategoryPayload(category services.Category) categoryPayload {
	return categoryPayload{
		ID:        category.ID,
		Name:      category.Name,
		Kind:      string(category.Kind),
		SortIndex: category.SortIndex,
	}
}

func buildCategoryPayloads(categories []services.Category) []categoryPayload {
	out := make([]categoryPayload, 0, len(categories))
	for _, category := range categories {
		out = append(out, buildCategoryPayload(category))
	}
	return out
}
