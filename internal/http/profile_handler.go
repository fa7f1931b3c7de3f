package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/profile"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

type ProfileHandler struct {
	profiles *profile.Service
	timeout  time.Duration
	log      *slog.Logger
}

func NewProfileHandler(profiles *profile.Service, timeout time.Duration, log *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		timeout:  timeout,
		log:      log,
	}
}

// GET /api/v1/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := getSession(r.Context())
	ident, ok := requireUser(w, s)
	if !ok {
		return
	}
	overview, err := h.profiles.Get(ctx, ident.UserID(), s.Cart().Snapshot())
	if err != nil {
		h.handleProfileError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

// PUT /api/v1/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ident, ok := requireUser(w, getSession(r.Context()))
	if !ok {
		return
	}
	var req profile.ProfileUpdate
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	p, err := h.profiles.UpdateProfile(ctx, ident.UserID(), req)
	if err != nil {
		h.handleProfileError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// GET /api/v1/settings
func (h *ProfileHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := getSession(r.Context())
	ident, ok := requireUser(w, s)
	if !ok {
		return
	}
	overview, err := h.profiles.Get(ctx, ident.UserID(), s.Cart().Snapshot())
	if err != nil {
		h.handleProfileError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, overview.Profile.Settings)
}

// PUT /api/v1/settings
func (h *ProfileHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ident, ok := requireUser(w, getSession(r.Context()))
	if !ok {
		return
	}
	var req domain.Settings
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	p, err := h.profiles.UpdateSettings(ctx, ident.UserID(), req)
	if err != nil {
		h.handleProfileError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p.Settings)
}

func (h *ProfileHandler) handleProfileError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, profile.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, repository.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "not_found", "profile not found")
	default:
		respondInternal(w, r, h.log, err)
	}
}
