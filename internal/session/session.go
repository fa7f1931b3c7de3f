// Package session tracks who is using each device and keeps its cart in
// step with identity changes.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/service"
)

// Listener is notified after every identity change, once the cart has been
// reconciled for the new identity.
type Listener func(ctx context.Context, from, to domain.Identity)

// Session is the state of one device: the signed-in identity, its token and
// its cart. Identity transitions are serialized.
type Session struct {
	deviceID string
	auth     auth.Authenticator
	cart     *service.CartReconciler
	storage  *cache.DeviceStorage
	log      *slog.Logger

	mu       sync.Mutex
	identity domain.Identity
	token    string

	lmu       sync.Mutex
	listeners map[int]Listener
	nextID    int

	// unix nanos; readable without mu while a transition is in flight
	lastSeen atomic.Int64
}

func newSession(deviceID string, authn auth.Authenticator, cart *service.CartReconciler, storage *cache.DeviceStorage, log *slog.Logger) *Session {
	s := &Session{
		deviceID:  deviceID,
		auth:      authn,
		cart:      cart,
		storage:   storage,
		log:       log.With(slog.String("device_id", deviceID)),
		identity:  domain.Guest(),
		listeners: make(map[int]Listener),
	}
	s.lastSeen.Store(time.Now().UnixNano())
	return s
}

func (s *Session) DeviceID() string { return s.deviceID }

func (s *Session) Cart() *service.CartReconciler { return s.cart }

func (s *Session) Storage() *cache.DeviceStorage { return s.storage }

func (s *Session) Identity() domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Subscribe registers fn for identity changes and returns a function that
// removes it.
func (s *Session) Subscribe(fn Listener) func() {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Session) SignIn(ctx context.Context, email, password string) (auth.Result, error) {
	return s.signIn(ctx, func() (auth.Result, error) {
		return s.auth.SignInWithPassword(ctx, email, password)
	})
}

func (s *Session) SignUp(ctx context.Context, email, password, displayName string) (auth.Result, error) {
	return s.signIn(ctx, func() (auth.Result, error) {
		return s.auth.SignUpWithPassword(ctx, email, password, displayName)
	})
}

func (s *Session) SignInWithProvider(ctx context.Context, provider, idToken string) (auth.Result, error) {
	return s.signIn(ctx, func() (auth.Result, error) {
		return s.auth.SignInWithOAuthProvider(ctx, provider, idToken)
	})
}

func (s *Session) signIn(ctx context.Context, call func() (auth.Result, error)) (auth.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := call()
	if err != nil {
		return auth.Result{}, err
	}
	s.transitionLocked(ctx, result.Identity, result.Token)
	return result, nil
}

func (s *Session) SignOut(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitionLocked(ctx, domain.Guest(), "")
}

// Restore applies a session token presented by the client. Auth failures are
// returned and leave the session unchanged. If the token cannot be checked
// because a collaborator is down the session falls back to guest without an
// error so the device keeps working offline.
func (s *Session) Restore(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == s.token && !s.identity.IsGuest() {
		return nil
	}

	ident, err := s.auth.ResolveIdentity(ctx, token)
	if err != nil {
		if auth.IsAuthFailure(err) {
			return err
		}
		s.log.WarnContext(ctx, "identity resolution failed, continuing as guest", slog.Any("error", err))
		s.transitionLocked(ctx, domain.Guest(), "")
		return nil
	}

	s.transitionLocked(ctx, ident, token)
	return nil
}

// transitionLocked reconciles the cart before publishing the new identity so
// listeners and later cart calls never see a half-merged cart.
func (s *Session) transitionLocked(ctx context.Context, to domain.Identity, token string) {
	from := s.identity
	if err := s.cart.Reconcile(ctx, to); err != nil {
		s.log.WarnContext(ctx, "cart reconcile failed", slog.Any("error", err))
	}
	s.identity = to
	s.token = token

	if from.Equal(to) {
		return
	}
	s.log.InfoContext(ctx, "identity changed", slog.String("from", from.String()), slog.String("to", to.String()))
	s.notify(ctx, from, to)
}

func (s *Session) notify(ctx context.Context, from, to domain.Identity) {
	s.lmu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.lmu.Unlock()

	for _, fn := range listeners {
		fn(ctx, from, to)
	}
}

// touch waits for any identity transition on this device to finish.
func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen.Store(now.UnixNano())
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}
