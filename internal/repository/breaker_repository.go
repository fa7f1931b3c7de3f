package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/circuitbreaker"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

// breakerCartRepository fails fast while the document store is unhealthy so
// the cart reconciler drops to local-only mode without waiting on timeouts.
type breakerCartRepository struct {
	next    CartRepository
	breaker *circuitbreaker.Breaker
}

func NewBreakerCartRepository(next CartRepository, breaker *circuitbreaker.Breaker) CartRepository {
	return &breakerCartRepository{next: next, breaker: breaker}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrCartNotFound)
}

func (b *breakerCartRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	return circuitbreaker.Execute(b.breaker, func() (*domain.Cart, error) {
		return b.next.GetCart(ctx, userID)
	}, isNotFound)
}

func (b *breakerCartRepository) PutCart(ctx context.Context, userID string, cart *domain.Cart) error {
	_, err := circuitbreaker.Execute(b.breaker, func() (struct{}, error) {
		return struct{}{}, b.next.PutCart(ctx, userID, cart)
	}, nil)
	return err
}

func (b *breakerCartRepository) RemoveCartItem(ctx context.Context, userID string, key domain.LineKey) error {
	_, err := circuitbreaker.Execute(b.breaker, func() (struct{}, error) {
		return struct{}{}, b.next.RemoveCartItem(ctx, userID, key)
	}, nil)
	return err
}

func (b *breakerCartRepository) DeleteCart(ctx context.Context, userID string) error {
	_, err := circuitbreaker.Execute(b.breaker, func() (struct{}, error) {
		return struct{}{}, b.next.DeleteCart(ctx, userID)
	}, isNotFound)
	return err
}
