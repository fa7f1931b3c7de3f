package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

var (
	ErrInvalidItem       = errors.New("invalid cart item")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNotAuthenticated  = errors.New("sign in required")
	ErrRemoteUnavailable = errors.New("cart store unavailable")
)

const publishTimeout = 5 * time.Second

// Snapshot is a copy of the cart state at one point in time.
type Snapshot struct {
	Items     []domain.CartLineItem `json:"items"`
	Totals    domain.Totals         `json:"totals"`
	ItemCount int                   `json:"item_count"`
	Degraded  bool                  `json:"degraded"`
	// 0 for an empty cart and once shipping is free
	FreeShippingRemaining int64 `json:"free_shipping_remaining"`
}

// CartReconciler owns the cart of one device session. All operations,
// including reconciliation on identity change, run under mu so a mutation
// never interleaves with a merge.
//
// For guests the local store is the only persistence. For authenticated
// users the remote store is authoritative and the local store keeps a mirror
// tagged with the user id. When the remote store fails the reconciler keeps
// working from local state and marks itself degraded until Resync succeeds.
type CartReconciler struct {
	mu sync.Mutex

	identity domain.Identity
	cart     *domain.Cart

	// degraded means local state has changes the remote store has not seen.
	degraded bool
	// pendingMerge means those changes are guest lines from a failed login
	// merge and must be added to the remote cart rather than replace it.
	pendingMerge bool

	local     *cache.DeviceStorage
	remote    repository.CartRepository
	policy    domain.PricingPolicy
	publisher events.Publisher
	topics    events.Topics
	log       *slog.Logger

	inflight sync.WaitGroup
}

func NewCartReconciler(
	local *cache.DeviceStorage,
	remote repository.CartRepository,
	policy domain.PricingPolicy,
	publisher events.Publisher,
	topics events.Topics,
	log *slog.Logger,
) *CartReconciler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &CartReconciler{
		identity:  domain.Guest(),
		cart:      domain.NewCart(""),
		local:     local,
		remote:    remote,
		policy:    policy,
		publisher: publisher,
		topics:    topics,
		log:       log.With(slog.String("device_id", local.DeviceID())),
	}
}

func (r *CartReconciler) Identity() domain.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identity
}

func (r *CartReconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *CartReconciler) snapshotLocked() Snapshot {
	cart := r.cart.Clone()
	snap := Snapshot{
		Items:     cart.Items,
		Totals:    domain.ComputeTotals(r.policy, cart.Items),
		ItemCount: cart.ItemCount(),
		Degraded:  r.degraded,
	}
	if !cart.IsEmpty() {
		snap.FreeShippingRemaining = r.policy.FreeShippingRemaining(snap.Totals.Subtotal)
	}
	return snap
}

func (r *CartReconciler) Totals() domain.Totals {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.ComputeTotals(r.policy, r.cart.Items)
}

func (r *CartReconciler) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}

// AddItem adds qty units of item, incrementing an existing line with the
// same product and size. Non-positive quantities are ignored.
func (r *CartReconciler) AddItem(ctx context.Context, item domain.CartLineItem, qty int) (Snapshot, error) {
	if item.ProductID == "" || item.UnitPrice < 0 {
		return Snapshot{}, ErrInvalidItem
	}
	if qty <= 0 {
		return r.Snapshot(), nil
	}

	return r.mutate(ctx,
		func(c *domain.Cart) { c.AddItem(item, qty) },
		func(ctx context.Context, uid string, c *domain.Cart) error {
			return r.remote.PutCart(ctx, uid, c)
		},
	)
}

// SetQuantity overwrites the quantity of an existing line; qty <= 0 removes
// it. Unknown lines are left alone.
func (r *CartReconciler) SetQuantity(ctx context.Context, productID, size string, qty int) (Snapshot, error) {
	if qty <= 0 {
		return r.RemoveItem(ctx, productID, size)
	}

	r.mu.Lock()
	_, found := r.cart.Find(productID, size)
	r.mu.Unlock()
	if !found {
		return r.Snapshot(), nil
	}

	return r.mutate(ctx,
		func(c *domain.Cart) { c.SetQuantity(productID, size, qty) },
		func(ctx context.Context, uid string, c *domain.Cart) error {
			return r.remote.PutCart(ctx, uid, c)
		},
	)
}

// RemoveItem is idempotent.
func (r *CartReconciler) RemoveItem(ctx context.Context, productID, size string) (Snapshot, error) {
	key := domain.LineKey{ProductID: productID, Size: size}
	return r.mutate(ctx,
		func(c *domain.Cart) { c.RemoveItem(productID, size) },
		func(ctx context.Context, uid string, _ *domain.Cart) error {
			return r.remote.RemoveCartItem(ctx, uid, key)
		},
	)
}

func (r *CartReconciler) Clear(ctx context.Context) (Snapshot, error) {
	return r.mutate(ctx,
		func(c *domain.Cart) { c.Items = []domain.CartLineItem{} },
		func(ctx context.Context, uid string, _ *domain.Cart) error {
			err := r.remote.DeleteCart(ctx, uid)
			if errors.Is(err, repository.ErrCartNotFound) {
				return nil
			}
			return err
		},
	)
}

type pushFunc func(ctx context.Context, userID string, cart *domain.Cart) error

func (r *CartReconciler) mutate(ctx context.Context, apply func(*domain.Cart), push pushFunc) (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.degraded {
		if err := r.resyncLocked(ctx); err != nil {
			r.log.DebugContext(ctx, "resync before mutation failed", slog.Any("error", err))
		}
	}

	next := r.cart.Clone()
	apply(next)
	r.cart = next

	if r.identity.IsGuest() || r.degraded {
		r.saveLocal(ctx)
		return r.snapshotLocked(), nil
	}

	uid := r.identity.UserID()
	if err := push(ctx, uid, next); err != nil {
		r.log.WarnContext(ctx, "remote cart write failed, continuing locally",
			slog.String("user_id", uid), slog.Any("error", err))
		r.degraded = true
		r.saveLocal(ctx)
		return r.snapshotLocked(), nil
	}

	r.saveLocal(ctx)
	r.publishCartUpdated(uid, next)
	return r.snapshotLocked(), nil
}

// Reconcile moves the cart to identity to. It never fails because of the
// remote store: on remote errors the reconciler falls back to local state and
// reports degraded.
func (r *CartReconciler) Reconcile(ctx context.Context, to domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	from := r.identity
	switch {
	case from.IsGuest() && to.IsGuest():
		return r.loadGuestLocked(ctx)

	case from.Equal(to):
		if err := r.resyncLocked(ctx); err != nil {
			r.log.DebugContext(ctx, "resync on reconcile failed", slog.Any("error", err))
		}
		return nil

	case from.IsGuest():
		guestLines := r.cart.Clone()
		r.loginLocked(ctx, to, guestLines)
		return nil

	case to.IsGuest():
		r.logoutLocked(ctx)
		return nil

	default:
		r.logoutLocked(ctx)
		r.loginLocked(ctx, to, domain.NewCart(""))
		return nil
	}
}

// loadGuestLocked restores the guest cart from the device. A mirror left
// behind by an authenticated session is not guest data and is ignored.
func (r *CartReconciler) loadGuestLocked(ctx context.Context) error {
	stored, err := r.local.LoadCart(ctx)
	if err != nil {
		r.log.WarnContext(ctx, "load local cart failed", slog.Any("error", err))
		return nil
	}
	if stored.UserID != "" {
		r.cart = domain.NewCart("")
		return nil
	}
	r.cart = stored
	return nil
}

func (r *CartReconciler) loginLocked(ctx context.Context, to domain.Identity, guestLines *domain.Cart) {
	uid := to.UserID()
	r.identity = to
	r.degraded = false
	r.pendingMerge = false

	remote, err := r.fetchRemote(ctx, uid)
	if err != nil {
		r.degradeLocked(ctx, uid, guestLines, true, err)
		return
	}

	if guestLines.IsEmpty() {
		r.cart = remote
		r.clearLocal(ctx)
		return
	}

	merged := remote.Clone()
	merged.Merge(guestLines)
	if err := r.remote.PutCart(ctx, uid, merged); err != nil {
		r.degradeLocked(ctx, uid, guestLines, true, err)
		return
	}

	r.cart = merged
	r.clearLocal(ctx)
	r.publishCartUpdated(uid, merged)
	r.log.InfoContext(ctx, "guest cart merged",
		slog.String("user_id", uid), slog.Int("guest_lines", len(guestLines.Items)), slog.Int("lines", len(merged.Items)))
}

func (r *CartReconciler) logoutLocked(ctx context.Context) {
	if r.degraded {
		if err := r.resyncLocked(ctx); err != nil {
			r.log.WarnContext(ctx, "unsynced cart changes dropped on sign-out",
				slog.String("user_id", r.identity.UserID()), slog.Any("error", err))
		}
	}

	r.identity = domain.Guest()
	r.cart = domain.NewCart("")
	r.degraded = false
	r.pendingMerge = false
	r.clearLocal(ctx)
}

func (r *CartReconciler) degradeLocked(ctx context.Context, uid string, lines *domain.Cart, pendingMerge bool, cause error) {
	cart := lines.Clone()
	cart.UserID = uid
	r.cart = cart
	r.degraded = true
	r.pendingMerge = r.pendingMerge || pendingMerge
	r.saveLocal(ctx)

	r.log.WarnContext(ctx, "cart store unavailable, using local cart",
		slog.String("user_id", uid), slog.Bool("pending_merge", r.pendingMerge), slog.Any("error", cause))
}

// Resync pushes local changes made while degraded. It is a no-op otherwise.
func (r *CartReconciler) Resync(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resyncLocked(ctx)
}

func (r *CartReconciler) resyncLocked(ctx context.Context) error {
	if !r.degraded || r.identity.IsGuest() {
		return nil
	}
	uid := r.identity.UserID()

	target := r.cart
	if r.pendingMerge {
		remote, err := r.fetchRemote(ctx, uid)
		if err != nil {
			return errors.Join(ErrRemoteUnavailable, err)
		}
		target = remote.Clone()
		target.Merge(r.cart)
	}

	if err := r.remote.PutCart(ctx, uid, target); err != nil {
		return errors.Join(ErrRemoteUnavailable, err)
	}

	r.cart = target
	r.degraded = false
	r.pendingMerge = false
	r.saveLocal(ctx)
	r.publishCartUpdated(uid, target)
	r.log.InfoContext(ctx, "cart resynced", slog.String("user_id", uid), slog.Int("lines", len(target.Items)))
	return nil
}

// Refresh reloads the remote cart after another device changed it. Local
// changes that are not yet synced take precedence.
func (r *CartReconciler) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.identity.IsGuest() {
		return nil
	}
	if r.degraded {
		return r.resyncLocked(ctx)
	}

	remote, err := r.fetchRemote(ctx, r.identity.UserID())
	if err != nil {
		return err
	}
	r.cart = remote
	r.saveLocal(ctx)
	return nil
}

// Checkout places an order for the current cart and empties it.
func (r *CartReconciler) Checkout(ctx context.Context, billing domain.BillingAddress, cardLast4 string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.identity.IsGuest() {
		return nil, ErrNotAuthenticated
	}
	if r.degraded {
		if err := r.resyncLocked(ctx); err != nil {
			return nil, err
		}
	}
	if r.cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	uid := r.identity.UserID()
	items := r.cart.Clone().Items
	order := &domain.Order{
		ID:        uuid.NewString(),
		UserID:    uid,
		Items:     items,
		Totals:    domain.ComputeTotals(r.policy, items),
		Billing:   billing,
		CardLast4: cardLast4,
		PlacedAt:  time.Now().UTC(),
	}

	err := r.publisher.Publish(ctx, r.topics.OrderPlaced, events.TypeOrderPlaced, order.ID, events.OrderPlaced{Order: *order})
	if err != nil {
		return nil, err
	}

	r.cart = domain.NewCart(uid)
	err = r.remote.DeleteCart(ctx, uid)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		r.log.WarnContext(ctx, "clear cart after checkout failed", slog.String("user_id", uid), slog.Any("error", err))
		r.degraded = true
	}
	r.clearLocal(ctx)
	if !r.degraded {
		r.publishCartUpdated(uid, r.cart)
	}

	r.log.InfoContext(ctx, "order placed",
		slog.String("user_id", uid), slog.String("order_id", order.ID), slog.Int64("total", order.Totals.Total))
	return order, nil
}

func (r *CartReconciler) fetchRemote(ctx context.Context, uid string) (*domain.Cart, error) {
	cart, err := r.remote.GetCart(ctx, uid)
	if errors.Is(err, repository.ErrCartNotFound) {
		return domain.NewCart(uid), nil
	}
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// saveLocal writes the in-memory cart to the device. Failures only cost the
// offline copy and are logged.
func (r *CartReconciler) saveLocal(ctx context.Context) {
	r.cart.UserID = r.identity.UserID()
	if err := r.local.SaveCart(ctx, r.cart); err != nil {
		r.log.WarnContext(ctx, "save local cart failed", slog.Any("error", err))
	}
}

func (r *CartReconciler) clearLocal(ctx context.Context) {
	if err := r.local.ClearCart(ctx); err != nil {
		r.log.WarnContext(ctx, "clear local cart failed", slog.Any("error", err))
	}
}

// Wait blocks until background cart update publishes have finished.
func (r *CartReconciler) Wait() {
	r.inflight.Wait()
}

func (r *CartReconciler) publishCartUpdated(uid string, cart *domain.Cart) {
	event := events.CartUpdated{
		UserID:       uid,
		OriginDevice: r.local.DeviceID(),
		ItemCount:    cart.ItemCount(),
		Subtotal:     domain.ComputeTotals(r.policy, cart.Items).Subtotal,
		UpdatedAt:    time.Now().UTC(),
	}

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := r.publisher.Publish(ctx, r.topics.CartUpdated, events.TypeCartUpdated, uid, event); err != nil {
			r.log.Warn("publish cart update failed", slog.String("user_id", uid), slog.Any("error", err))
		}
	}()
}
