package users

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-social/meridian-users/internal/platform/httpx"
	"github.com/meridian-social/meridian-users/internal/shared"
)

// maxPictureBytes caps profile picture uploads.
const maxPictureBytes = 10 << 20

// Handler wires the user directory endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	auth      func(http.Handler) http.Handler
	validator *validator.Validate
}

// NewHandler constructs a Handler. auth guards the mutation endpoints.
func NewHandler(logger *slog.Logger, service *Service, auth func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, auth: auth, validator: validator.New()}
}

// MountRoutes registers the directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/users", h.createUser)
	r.Get("/users/{id}", h.getUserByID)
	r.Get("/users/by-username/{username}", h.getUserByUsername)
	r.Post("/users/credentials", h.getUserByCredentials)

	r.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Patch("/profile", h.updateProfile)
		r.Patch("/profile/password", h.updatePassword)
		r.Patch("/profile/picture", h.updatePicture)
	})
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,min=6"`
	Password string `json:"password" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type updatePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode body: %w", shared.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}
	profile, err := h.service.Create(r.Context(), CreateParams{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
	})
	if err != nil {
		h.logger.Warn("create user failed", slog.String("username", req.Username), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, profile)
}

func (h *Handler) getUserByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("bad user id: %w", shared.ErrValidation))
		return
	}
	profile, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) getUserByUsername(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) getUserByCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode body: %w", shared.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}
	profile, err := h.service.GetByCredentials(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := shared.CallerFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	var patch ProfilePatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode body: %w", shared.ErrValidation))
		return
	}
	profile, err := h.service.UpdateProfile(r.Context(), caller.ID, patch)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) updatePassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := shared.CallerFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	var req updatePasswordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("decode body: %w", shared.ErrValidation))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%v: %w", err, shared.ErrValidation))
		return
	}
	if err := h.service.UpdatePassword(r.Context(), caller.ID, req.OldPassword, req.NewPassword); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"detail": "password updated"})
}

func (h *Handler) updatePicture(w http.ResponseWriter, r *http.Request) {
	caller, ok := shared.CallerFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	if err := r.ParseMultipartForm(maxPictureBytes); err != nil {
		httpx.RespondError(w, fmt.Errorf("parse upload: %w", shared.ErrValidation))
		return
	}
	file, _, err := r.FormFile("picture")
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("picture field missing: %w", shared.ErrValidation))
		return
	}
	defer func() {
		_ = file.Close()
	}()
	name, err := h.service.UpdatePicture(r.Context(), caller.ID, file)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"detail": "picture updated", "profile_picture": name})
}
