package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seva-flowers/api/internal/platform/httpx"
	"github.com/seva-flowers/api/internal/services"
)

const maxAssetBodySize = 8 * 1024

// AssetHandlers issues signed upload URLs for catalog images.
type AssetHandlers struct {
	assets services.AssetService
}

// NewAssetHandlers constructs the asset handlers.
func NewAssetHandlers(assets services.AssetService) *AssetHandlers {
	return &AssetHandlers{assets: assets}
}

// Routes wires the /admin/assets endpoints.
func (h *AssetHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/uploads", h.issueUploadURL)
}

func (h *AssetHandlers) issueUploadURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.assets == nil {
		httpx.WriteError(ctx, w, httpx.NewError("asset_service_unavailable", "asset service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req uploadURLRequest
	if err := decodeJSONBody(r, maxAssetBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}

	upload, err := h.assets.IssueUploadURL(ctx, services.IssueUploadURLCommand{
		FileName:    strings.TrimSpace(req.FileName),
		ContentType: strings.TrimSpace(req.ContentType),
		ActorID:     identity.UserID,
	})
	if err != nil {
		writeAssetError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, uploadURLResponse{
		UploadURL: upload.UploadURL,
		PublicURL: upload.PublicURL,
		ObjectKey: upload.ObjectKey,
		ExpiresAt: formatTime(upload.ExpiresAt),
	})
}

func writeAssetError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrAssetInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrAssetUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("asset_service_unavailable", "asset service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("asset_error", "asset request failed", http.StatusInternalServerError))
	}
}

type uploadURLRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
}

type uploadURLResponse struct {
	UploadURL string `json:"upload_url"`
	PublicURL string `json:"public_url"`
	ObjectKey string `json:"object_key"`
	ExpiresAt string `json:"expires_at"`
}
