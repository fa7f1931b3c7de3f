// Package events publishes storefront domain events.
package events

import (
	"context"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

const (
	TypeCartUpdated    = "cart.updated"
	TypeOrderPlaced    = "order.placed"
	TypeSupportMessage = "support.message"
)

type Topics struct {
	CartUpdated string
	OrderPlaced string
	SupportChat string
}

func DefaultTopics() Topics {
	return Topics{
		CartUpdated: "cart-updated",
		OrderPlaced: "order-placed",
		SupportChat: "support-chat",
	}
}

// Publisher delivers an event payload to a topic. The key decides ordering:
// events with the same key are delivered in publish order.
type Publisher interface {
	Publish(ctx context.Context, topic, eventType, key string, payload any) error
	Close() error
}

// CartUpdated is emitted after a user's remote cart changed.
type CartUpdated struct {
	UserID       string    `json:"user_id"`
	OriginDevice string    `json:"origin_device"`
	ItemCount    int       `json:"item_count"`
	Subtotal     int64     `json:"subtotal"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type OrderPlaced struct {
	Order domain.Order `json:"order"`
}

type SupportMessage struct {
	Message domain.ChatMessage `json:"message"`
	Guest   bool               `json:"guest"`
}
