package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/chat"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

// GuestEmailHeader identifies a guest's chat conversation on reads from the
// device that started it.
const GuestEmailHeader = "X-Guest-Email"

type ChatHandler struct {
	chat    *chat.Service
	timeout time.Duration
	log     *slog.Logger
}

func NewChatHandler(chat *chat.Service, timeout time.Duration, log *slog.Logger) *ChatHandler {
	return &ChatHandler{
		chat:    chat,
		timeout: timeout,
		log:     log,
	}
}

type SendMessageRequestDTO struct {
	Message    string `json:"message"`
	GuestEmail string `json:"guest_email"`
}

type ChatHistoryDTO struct {
	Messages []domain.ChatMessage `json:"messages"`
}

// GET /api/v1/chat
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sender := chat.Sender{
		Identity:   getSession(r.Context()).Identity(),
		GuestEmail: r.Header.Get(GuestEmailHeader),
		DeviceID:   getSession(r.Context()).DeviceID(),
	}
	messages, err := h.chat.History(ctx, sender)
	if err != nil {
		h.handleChatError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ChatHistoryDTO{Messages: messages})
}

// POST /api/v1/chat
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SendMessageRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	if len(req.Message) > 2000 {
		respondError(w, http.StatusBadRequest, "invalid_argument", "message too long")
		return
	}
	if req.GuestEmail == "" {
		req.GuestEmail = r.Header.Get(GuestEmailHeader)
	}

	s := getSession(r.Context())
	sender := chat.Sender{Identity: s.Identity(), GuestEmail: req.GuestEmail, DeviceID: s.DeviceID()}
	msg, err := h.chat.Send(ctx, sender, req.Message)
	if err != nil {
		h.handleChatError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (h *ChatHandler) handleChatError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrGuestEmailRequired):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	default:
		respondInternal(w, r, h.log, err)
	}
}
