package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seva-flowers/api/internal/platform/httpx"
	"github.com/seva-flowers/api/internal/services"
)

const maxConfigBodySize = 4 * 1024

// ConfigHandlers serves storefront settings. The public surface exposes only
// the delivery fee; the admin surface includes the notification chat id.
type ConfigHandlers struct {
	config services.ConfigService
}

// NewConfigHandlers constructs config handlers.
func NewConfigHandlers(config services.ConfigService) *ConfigHandlers {
	return &ConfigHandlers{config: config}
}

// Routes wires the public /config endpoint.
func (h *ConfigHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getPublic)
}

// AdminRoutes wires the admin config endpoints; callers apply role middleware.
func (h *ConfigHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getAdmin)
	r.Put("/", h.update)
}

func (h *ConfigHandlers) getPublic(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg, ok := h.load(ctx, w)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, publicConfigResponse{
		DeliveryFee: cfg.DeliveryFee,
	})
}

func (h *ConfigHandlers) getAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg, ok := h.load(ctx, w)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, adminConfigResponse{Config: buildConfigPayload(cfg)})
}

func (h *ConfigHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.config == nil {
		httpx.WriteError(ctx, w, httpx.NewError("config_service_unavailable", "config service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req updateConfigRequest
	if err := decodeJSONBody(r, maxConfigBodySize, &req); err != nil {
		writeBodyError(w, r, err)
		return
	}
	if req.DeliveryFee == nil && req.NotifyChat == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "no editable fields provided", http.StatusBadRequest))
		return
	}

	updated, err := h.config.Update(ctx, services.UpdateAppConfigCommand{
		DeliveryFee: req.DeliveryFee,
		NotifyChat:  req.NotifyChat,
	})
	if err != nil {
		writeConfigError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, adminConfigResponse{Config: buildConfigPayload(updated)})
}

func (h *ConfigHandlers) load(ctx context.Context, w http.ResponseWriter) (services.AppConfig, bool) {
	if h.config == nil {
		httpx.WriteError(ctx, w, httpx.NewError("config_service_unavailable", "config service is unavailable", http.StatusServiceUnavailable))
		return services.AppConfig{}, false
	}
	cfg, err := h.config.Get(ctx)
	if err != nil {
		writeConfigError(ctx, w, err)
		return services.AppConfig{}, false
	}
	return cfg, true
}

func writeConfigError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrConfigInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrConfigUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("config_service_unavailable", "config service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("config_error", "config request failed", http.StatusInternalServerError))
	}
}

type publicConfigResponse struct {
	DeliveryFee int64 `json:"delivery_fee"`
}

type adminConfigResponse struct {
	Config configPayload `json:"config"`
}

type configPayload struct {
	DeliveryFee int64  `json:"delivery_fee"`
	NotifyChat  int64  `json:"notify_chat"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

type updateConfigRequest struct {
	DeliveryFee *int64 `json:"delivery_fee"`
	NotifyChat  *int64 `json:"notify_chat"`
}

func buildConfigPayload(cfg services.AppConfig) configPayload {
	return configPayload{
		DeliveryFee: cfg.DeliveryFee,
		NotifyChat:  cfg.NotifyChat,
		UpdatedAt:   formatTime(cfg.UpdatedAt),
	}
}
