package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seva-flowers/api/internal/platform/auth"
	"github.com/seva-flowers/api/internal/platform/httpx"
	"github.com/seva-flowers/api/internal/services"
)

// MeHandlers exposes the authenticated profile endpoint.
type MeHandlers struct {
	authn *auth.Authenticator
	users services.AuthService
}

// NewMeHandlers constructs handlers serving the current user's profile.
func NewMeHandlers(authn *auth.Authenticator, users services.AuthService) *MeHandlers {
	return &MeHandlers{authn: authn, users: users}
}

// Routes wires the /me endpoints onto the provided router.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireTelegramAuth())
	}
	r.Get("/", h.getProfile)
}

func (h *MeHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("profile_service_unavailable", "profile service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetUser(ctx, identity.UserID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			httpx.WriteError(ctx, w, httpx.NewError("profile_not_found", "profile not found", http.StatusNotFound))
		case errors.Is(err, services.ErrUserUnavailable):
			httpx.WriteError(ctx, w, httpx.NewError("profile_service_unavailable", "profile service is unavailable", http.StatusServiceUnavailable))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("profile_error", "failed to load profile", http.StatusInternalServerError))
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, authExchangeResponse{User: buildUserPayload(*user, identity.Roles)})
}
