package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seva-flowers/api/internal/domain"
	"github.com/seva-flowers/api/internal/platform/httpx"
	"github.com/seva-flowers/api/internal/services"
)

const maxCatalogBodySize = 64 * 1024

// AdminCatalogHandlers exposes flower and category management.
type AdminCatalogHandlers struct {
	catalog services.CatalogService
}

// NewAdminCatalogHandlers constructs the admin catalog handlers.
func NewAdminCatalogHandlers(catalog services.CatalogService) *AdminCatalogHandlers {
	return &AdminCatalogHandlers{catalog: catalog}
}

// FlowerRoutes wires the /admin/flowers endpoints.
func (h *AdminCatalogHandlers) FlowerRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listFlowers)
	r.Post("/", h.createFlower)
	r.Get("/{flowerId}", h.getFlower)
	r.Put("/{flowerId}", h.updateFlower)
	r.Delete("/{flowerId}", h.deleteFlower)
}

// CategoryRoutes wires the /admin/categories endpoints.
func (h *AdminCatalogHandlers) CategoryRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listCategories)
	r.Post("/", h.createCategory)
	r.Put("/{categoryId}", h.updateCategory)
	r.Delete("/{categoryId}", h.deleteCategory)
}

func (h *AdminCatalogHandlers) listFlowers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	filter := services.FlowerListFilter{
		Search:        strings.TrimSpace(r.URL.Query().Get("q")),
		IncludeHidden: true,
		Pagination:    parsePagination(r, defaultFlowerPageSize, maxFlowerPageSize),
	}
	if category := strings.TrimSpace(r.URL.Query().Get("category")); category != "" {
		filter.CategoryID = &category
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("available")); raw != "" {
		filter.AvailableOnly = raw == "true" || raw == "1"
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

func (h *AdminCatalogHandlers) getFlower(w http.ResponseWriter, r *http.Request) {
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
	writeJSONResponse(w, http.StatusOK, flowerResponse{Flower: buildFlowerPayload(flower)})
}

func (h *AdminCatalogHandlers) createFlower(w http.ResponseWriter, r *http.Request) {
	h.upsertFlower(w, r, "")
}

func (h *AdminCatalogHandlers) updateFlower(w http.ResponseWriter, r *http.Request) {
	h.upsertFlower(w, r, chi.URLParam(r, "flowerId"))
}

func (h *AdminCatalogHandlers) upsertFlower(w http.ResponseWriter, r *http.Request, flowerID string) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req upsertFlowerRequest
	if err := decodeJSONBody(r, maxCatalogBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	cmd := services.UpsertFlowerCommand{
		FlowerID:     flowerID,
		Name:         req.Name,
		Description:  req.Description,
		Price:        req.Price,
		Currency:     req.Currency,
		ImageURL:     req.ImageURL,
		CategoryID:   req.CategoryID,
		AttributeIDs: req.AttributeIDs,
		Attributes:   req.Attributes,
		Available:    req.Available,
	}

	var (
		flower services.Flower
		err    error
		status = http.StatusOK
	)
	if flowerID == "" {
		flower, err = h.catalog.CreateFlower(ctx, cmd)
		status = http.StatusCreated
	} else {
		flower, err = h.catalog.UpdateFlower(ctx, cmd)
	}
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, status, flowerResponse{Flower: buildFlowerPayload(flower)})
}

func (h *AdminCatalogHandlers) deleteFlower(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := h.catalog.DeleteFlower(ctx, chi.URLParam(r, "flowerId")); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminCatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	filter := services.CategoryListFilter{}
	if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
		kind := domain.CategoryKind(strings.ToUpper(raw))
		filter.Kind = &kind
	}

	categories, err := h.catalog.ListCategories(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, categoryListResponse{Categories: buildCategoryPayloads(categories)})
}

func (h *AdminCatalogHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	h.upsertCategory(w, r, "")
}

func (h *AdminCatalogHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	h.upsertCategory(w, r, chi.URLParam(r, "categoryId"))
}

func (h *AdminCatalogHandlers) upsertCategory(w http.ResponseWriter, r *http.Request, categoryID string) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req upsertCategoryRequest
	if err := decodeJSONBody(r, maxCatalogBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	cmd := services.UpsertCategoryCommand{
		CategoryID: categoryID,
		Name:       req.Name,
		Kind:       domain.CategoryKind(strings.ToUpper(strings.TrimSpace(req.Kind))),
		SortIndex:  req.SortIndex,
	}

	var (
		category services.Category
		err      error
		status   = http.StatusOK
	)
	if categoryID == "" {
		category, err = h.catalog.CreateCategory(ctx, cmd)
		status = http.StatusCreated
	} else {
		category, err = h.catalog.UpdateCategory(ctx, cmd)
	}
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, status, categoryResponse{Category: buildCategoryPayload(category)})
}

func (h *AdminCatalogHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := h.catalog.DeleteCategory(ctx, chi.URLParam(r, "categoryId")); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type upsertFlowerRequest struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Price        int64             `json:"price"`
	Currency     string            `json:"currency"`
	ImageURL     string            `json:"image_url"`
	CategoryID   string            `json:"category_id"`
	AttributeIDs []string          `json:"attribute_ids"`
	Attributes   map[string]string `json:"attributes"`
	Available    bool              `json:"available"`
}

type upsertCategoryRequest struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	SortIndex int    `json:"sort_index"`
}
