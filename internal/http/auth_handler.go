package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

type AuthHandler struct {
	timeout  time.Duration
	validate *validator.Validate
	log      *slog.Logger
}

func NewAuthHandler(timeout time.Duration, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		timeout:  timeout,
		validate: validator.New(),
		log:      log,
	}
}

type SignInRequestDTO struct {
	Email    string `json:"email" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type SignUpRequestDTO struct {
	Email       string `json:"email" validate:"required,max=254"`
	Password    string `json:"password" validate:"required,max=128"`
	DisplayName string `json:"display_name" validate:"max=100"`
}

type OAuthRequestDTO struct {
	Provider string `json:"provider" validate:"required"`
	IDToken  string `json:"id_token" validate:"required"`
}

type AuthResponseDTO struct {
	Token   string              `json:"token"`
	UserID  string              `json:"user_id"`
	Profile *domain.UserProfile `json:"profile,omitempty"`
}

type MeResponseDTO struct {
	DeviceID      string `json:"device_id"`
	UserID        string `json:"user_id,omitempty"`
	Guest         bool   `json:"guest"`
	CartItemCount int    `json:"cart_item_count"`
	CartDegraded  bool   `json:"cart_degraded"`
}

// POST /api/v1/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SignInRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	result, err := getSession(r.Context()).SignIn(ctx, req.Email, req.Password)
	h.respondResult(w, r, http.StatusOK, result, err)
}

// POST /api/v1/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SignUpRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	result, err := getSession(r.Context()).SignUp(ctx, req.Email, req.Password, req.DisplayName)
	h.respondResult(w, r, http.StatusCreated, result, err)
}

// POST /api/v1/auth/oauth
func (h *AuthHandler) OAuth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req OAuthRequestDTO
	if !h.decode(w, r, &req) {
		return
	}
	result, err := getSession(r.Context()).SignInWithProvider(ctx, req.Provider, req.IDToken)
	h.respondResult(w, r, http.StatusOK, result, err)
}

// POST /api/v1/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := getSession(r.Context())
	s.SignOut(ctx)
	h.Me(w, r)
}

// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	s := getSession(r.Context())
	ident := s.Identity()
	snap := s.Cart().Snapshot()
	respondJSON(w, http.StatusOK, MeResponseDTO{
		DeviceID:      s.DeviceID(),
		UserID:        ident.UserID(),
		Guest:         ident.IsGuest(),
		CartItemCount: snap.ItemCount,
		CartDegraded:  snap.Degraded,
	})
}

func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(r, dst); err != nil {
		respondDecodeError(w, err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondValidationError(w, err)
		return false
	}
	return true
}

func (h *AuthHandler) respondResult(w http.ResponseWriter, r *http.Request, status int, result auth.Result, err error) {
	if err != nil {
		h.handleAuthError(w, r, err)
		return
	}
	respondJSON(w, status, AuthResponseDTO{
		Token:   result.Token,
		UserID:  result.Identity.UserID(),
		Profile: result.Profile,
	})
}

func (h *AuthHandler) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		respondError(w, http.StatusUnauthorized, "invalid_token", err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		respondError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidEmail):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, auth.ErrProviderUnavailable):
		respondError(w, http.StatusBadRequest, "provider_unavailable", err.Error())
	default:
		respondInternal(w, r, h.log, err)
	}
}
