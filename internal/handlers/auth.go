package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seva-flowers/api/internal/domain"
	"github.com/seva-flowers/api/internal/platform/auth"
	"github.com/seva-flowers/api/internal/platform/httpx"
)

const maxAuthBodySize = 8 * 1024

// AuthHandlers exposes the explicit launch-data exchange endpoint the Mini App
// client polls right after startup.
type AuthHandlers struct {
	authn *auth.Authenticator
}

// NewAuthHandlers constructs the auth exchange handlers.
func NewAuthHandlers(authn *auth.Authenticator) *AuthHandlers {
	return &AuthHandlers{authn: authn}
}

// Routes wires the /auth endpoints onto the provided router.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/telegram", h.exchange)
}

func (h *AuthHandlers) exchange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.authn == nil {
		httpx.WriteError(ctx, w, httpx.NewError("auth_service_unavailable", "auth service is unavailable", http.StatusServiceUnavailable))
		return
	}

	initData := strings.TrimSpace(r.Header.Get(auth.InitDataHeader))
	if initData == "" {
		var req authExchangeRequest
		if err := decodeJSONBody(r, maxAuthBodySize, &req); err != nil {
			writeBodyError(w, r, err)
			return
		}
		initData = strings.TrimSpace(req.InitData)
	}
	if initData == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "init_data is required", http.StatusBadRequest))
		return
	}

	identity, err := h.authn.Authenticate(ctx, initData)
	if err != nil {
		writeLaunchError(w, r, err)
		return
	}

	user, err := identity.User(ctx)
	if err != nil || user == nil {
		// The resolver already upserted the account; fall back to identity fields.
		user = &domain.User{
			ID:         identity.UserID,
			TelegramID: identity.TelegramID,
			Username:   identity.Username,
			Roles:      identity.Roles,
		}
	}

	writeJSONResponse(w, http.StatusOK, authExchangeResponse{User: buildUserPayload(*user, identity.Roles)})
}

func writeLaunchError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, auth.ErrLaunchExpired):
		httpx.WriteError(ctx, w, httpx.NewError("launch_expired", "launch data expired", http.StatusUnauthorized))
	case errors.Is(err, auth.ErrLaunchSignature):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_launch", "launch data signature mismatch", http.StatusUnauthorized))
	case errors.Is(err, auth.ErrLaunchMalformed), errors.Is(err, auth.ErrLaunchUserMissing):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_launch", "launch data malformed", http.StatusUnauthorized))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_launch", "launch data verification failed", http.StatusUnauthorized))
	}
}

type authExchangeRequest struct {
	InitData string `json:"init_data"`
}

type authExchangeResponse struct {
	User userPayload `json:"user"`
}

type userPayload struct {
	ID         string   `json:"id"`
	TelegramID int64    `json:"telegram_id"`
	FirstName  string   `json:"first_name,omitempty"`
	LastName   string   `json:"last_name,omitempty"`
	Username   string   `json:"username,omitempty"`
	PhotoURL   string   `json:"photo_url,omitempty"`
	Roles      []string `json:"roles"`
	CreatedAt  string   `json:"created_at,omitempty"`
}

func buildUserPayload(user domain.User, roles []string) userPayload {
	if len(roles) == 0 {
		roles = user.Roles
	}
	if roles == nil {
		roles = []string{}
	}
	return userPayload{
		ID:         user.ID,
		TelegramID: user.TelegramID,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Username:   user.Username,
		PhotoURL:   user.PhotoURL,
		Roles:      roles,
		CreatedAt:  formatTime(user.CreatedAt),
	}
}
