package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-social/meridian-users/internal/platform/httpx"
	"github.com/meridian-social/meridian-users/internal/shared"
	"github.com/meridian-social/meridian-users/internal/users"
)

// CredentialChecker verifies a username/password pair against the directory.
type CredentialChecker interface {
	GetByCredentials(ctx context.Context, username, password string) (users.Profile, error)
}

// Handler wires token issuance endpoints.
type Handler struct {
	logger      *slog.Logger
	tokens      *TokenIssuer
	credentials CredentialChecker
	validator   *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, tokens *TokenIssuer, credentials CredentialChecker) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, tokens: tokens, credentials: credentials, validator: validator.New()}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode body: %w", shared.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}
	profile, err := h.credentials.GetByCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.Warn("login failed", slog.String("username", req.Username), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	token, err := h.tokens.Issue(profile.Username)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.tokens.TTL().Seconds()),
	})
}
