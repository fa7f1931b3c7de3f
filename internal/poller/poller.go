package poller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/fjod/go_cart/storefront/internal/events"
)

// Handler reacts to a cart change made on another device.
type Handler func(ctx context.Context, event events.CartUpdated)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Poller consumes cart-updated events so that every open session of a user
// sees changes made elsewhere.
type Poller struct {
	reader  messageReader
	handler Handler
	log     *slog.Logger
}

// NewPoller reads topic as part of groupID. Each storefront instance needs
// its own group id to see every event.
func NewPoller(handler Handler, log *slog.Logger, topic, groupID string, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{reader: reader, handler: handler, log: log}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.handleNext(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Error("error closing reader", slog.Any("error", err))
	}
}

func (p *Poller) handleNext(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.log.ErrorContext(ctx, "error reading message", slog.Any("error", err))
		}
		return
	}

	var event events.CartUpdated
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.log.WarnContext(ctx, "error parsing message", slog.Any("error", err), slog.Int64("offset", m.Offset))
		return
	}
	if event.UserID == "" {
		p.log.WarnContext(ctx, "missing user_id", slog.Int64("offset", m.Offset))
		return
	}

	p.handler(ctx, event)
}
