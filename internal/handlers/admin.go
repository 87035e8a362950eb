package handlers

import (
	"github.com/go-chi/chi/v5"

	"github.com/seva-flowers/api/internal/platform/auth"
)

// AdminHandlers groups the admin surface behind a single role-guarded mount.
type AdminHandlers struct {
	authn   *auth.Authenticator
	catalog *AdminCatalogHandlers
	orders  *AdminOrderHandlers
	config  *ConfigHandlers
	assets  *AssetHandlers
}

// NewAdminHandlers constructs the admin route group.
func NewAdminHandlers(authn *auth.Authenticator, catalog *AdminCatalogHandlers, orders *AdminOrderHandlers, config *ConfigHandlers, assets *AssetHandlers) *AdminHandlers {
	return &AdminHandlers{
		authn:   authn,
		catalog: catalog,
		orders:  orders,
		config:  config,
		assets:  assets,
	}
}

// Routes wires the /admin endpoints onto the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireTelegramAuth(auth.RoleAdmin))
	}
	if h.catalog != nil {
		r.Route("/flowers", h.catalog.FlowerRoutes)
		r.Route("/categories", h.catalog.CategoryRoutes)
	}
	if h.orders != nil {
		r.Route("/orders", h.orders.Routes)
	}
	if h.config != nil {
		r.Route("/config", h.config.AdminRoutes)
	}
	if h.assets != nil {
		r.Route("/assets", h.assets.Routes)
	}
}
