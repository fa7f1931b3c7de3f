// Package chat is the support chat behind the storefront widget.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

const (
	WelcomeMessage = "Hi there! How can I assist you today in finding the perfect fit?"
	historyLimit   = 100
	replyTimeout   = 5 * time.Second
)

var cannedReplies = []string{
	"I'd be happy to help you find the perfect outfit!",
	"Let me assist you with your fashion needs.",
	"What style are you looking for today?",
	"I can help you with sizing, styling, or product recommendations.",
}

var (
	ErrEmptyMessage       = errors.New("message is empty")
	ErrGuestEmailRequired = errors.New("guests must provide a valid email to chat")
)

// Sender is either a signed-in user or a guest identified by email on the
// device that opened the conversation.
type Sender struct {
	Identity   domain.Identity
	GuestEmail string
	DeviceID   string
}

var validate = validator.New()

// ConversationID is the user id for signed-in users. Guest conversations are
// scoped to the device and email so another device cannot read them back.
func (s Sender) ConversationID() (string, error) {
	if !s.Identity.IsGuest() {
		return s.Identity.UserID(), nil
	}
	email, err := s.email()
	if err != nil {
		return "", err
	}
	if s.DeviceID == "" {
		return "", ErrGuestEmailRequired
	}
	return "guest:" + s.DeviceID + ":" + email, nil
}

// SenderID is what support sees: the user id or the guest's email.
func (s Sender) SenderID() (string, error) {
	if !s.Identity.IsGuest() {
		return s.Identity.UserID(), nil
	}
	return s.email()
}

func (s Sender) email() (string, error) {
	email := strings.ToLower(strings.TrimSpace(s.GuestEmail))
	if err := validate.Var(email, "required,email"); err != nil {
		return "", ErrGuestEmailRequired
	}
	return email, nil
}

type Service struct {
	messages   repository.ChatRepository
	publisher  events.Publisher
	topic      string
	replyDelay time.Duration
	pick       func(n int) int
	log        *slog.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	stop   chan struct{}
	closed bool
}

func NewService(messages repository.ChatRepository, publisher events.Publisher, topic string, replyDelay time.Duration, log *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		messages:   messages,
		publisher:  publisher,
		topic:      topic,
		replyDelay: replyDelay,
		pick:       rand.IntN,
		log:        log,
		stop:       make(chan struct{}),
	}
}

// Send stores the message, forwards it to support and schedules a reply.
func (s *Service) Send(ctx context.Context, sender Sender, text string) (domain.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatMessage{}, ErrEmptyMessage
	}
	conversationID, err := sender.ConversationID()
	if err != nil {
		return domain.ChatMessage{}, err
	}
	senderID, err := sender.SenderID()
	if err != nil {
		return domain.ChatMessage{}, err
	}

	msg := domain.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Message:        text,
		Timestamp:      time.Now().UTC(),
	}
	if err := s.messages.AppendMessage(ctx, msg); err != nil {
		return domain.ChatMessage{}, err
	}

	event := events.SupportMessage{Message: msg, Guest: sender.Identity.IsGuest()}
	if err := s.publisher.Publish(ctx, s.topic, events.TypeSupportMessage, conversationID, event); err != nil {
		s.log.WarnContext(ctx, "forward chat message failed", slog.String("conversation_id", conversationID), slog.Any("error", err))
	}

	s.scheduleReply(conversationID)
	return msg, nil
}

func (s *Service) scheduleReply(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(s.replyDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.stop:
			return
		}

		reply := domain.ChatMessage{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			SenderID:       domain.AssistantID,
			Message:        cannedReplies[s.pick(len(cannedReplies))],
			IsAdmin:        true,
			Timestamp:      time.Now().UTC(),
		}

		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()
		if err := s.messages.AppendMessage(ctx, reply); err != nil {
			s.log.Warn("store chat reply failed", slog.String("conversation_id", conversationID), slog.Any("error", err))
		}
	}()
}

// History returns the conversation in chronological order, starting with
// the welcome message when nothing has been said yet.
func (s *Service) History(ctx context.Context, sender Sender) ([]domain.ChatMessage, error) {
	conversationID, err := sender.ConversationID()
	if err != nil {
		return nil, err
	}

	msgs, err := s.messages.ListMessages(ctx, conversationID, historyLimit)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return []domain.ChatMessage{welcome(conversationID)}, nil
	}
	return msgs, nil
}

func welcome(conversationID string) domain.ChatMessage {
	return domain.ChatMessage{
		ID:             "welcome",
		ConversationID: conversationID,
		SenderID:       domain.AssistantID,
		Message:        WelcomeMessage,
		IsAdmin:        true,
		Timestamp:      time.Now().UTC(),
	}
}

// Close drops pending replies and waits for in-flight ones.
func (s *Service) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.stop)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
