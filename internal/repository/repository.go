package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// CartRepository is the remote, per-user cart document store.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	PutCart(ctx context.Context, userID string, cart *domain.Cart) error
	RemoveCartItem(ctx context.Context, userID string, key domain.LineKey) error
	DeleteCart(ctx context.Context, userID string) error
}

type ScanRepository interface {
	GetScans(ctx context.Context, userID string) ([]domain.Scan, error)
	PutScan(ctx context.Context, userID string, scan domain.Scan) error
}

type SearchRepository interface {
	AppendRecentSearch(ctx context.Context, userID, term string) error
	RecentSearches(ctx context.Context, userID string) ([]string, error)
}

type UserRepository interface {
	EnsureUser(ctx context.Context, profile domain.UserProfile) (*domain.UserProfile, error)
	GetUser(ctx context.Context, userID string) (*domain.UserProfile, error)
	UpdateProfile(ctx context.Context, userID, displayName, stylePreference, gender string) (*domain.UserProfile, error)
	UpdateSettings(ctx context.Context, userID string, settings domain.Settings) (*domain.UserProfile, error)
	GetCredentials(ctx context.Context, email string) (*domain.Credentials, error)
	CreateCredentials(ctx context.Context, creds domain.Credentials) error
}

type ChatRepository interface {
	AppendMessage(ctx context.Context, msg domain.ChatMessage) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.ChatMessage, error)
}
