package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/service"
)

type Deps struct {
	Auth      auth.Authenticator
	Local     cache.LocalStore
	Carts     repository.CartRepository
	Policy    domain.PricingPolicy
	Publisher events.Publisher
	Topics    events.Topics
	Log       *slog.Logger
}

// Manager holds one Session per device id.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Get returns the session for deviceID, creating a guest session with the
// device's stored cart on first use.
func (m *Manager) Get(ctx context.Context, deviceID string) *Session {
	m.mu.Lock()
	s, ok := m.sessions[deviceID]
	if ok {
		m.mu.Unlock()
		// waits for the initial load if another caller created the session
		s.touch(time.Now())
		return s
	}

	storage := cache.NewDeviceStorage(m.deps.Local, deviceID)
	cart := service.NewCartReconciler(storage, m.deps.Carts, m.deps.Policy, m.deps.Publisher, m.deps.Topics, m.deps.Log)
	s = newSession(deviceID, m.deps.Auth, cart, storage, m.deps.Log)
	s.mu.Lock()
	m.sessions[deviceID] = s
	m.mu.Unlock()

	if err := cart.Reconcile(ctx, domain.Guest()); err != nil {
		s.log.WarnContext(ctx, "load guest cart failed", slog.Any("error", err))
	}
	s.mu.Unlock()
	return s
}

// ForUser returns every session currently signed in as userID.
func (m *Manager) ForUser(userID string) []*Session {
	var out []*Session
	m.Each(func(s *Session) {
		if id := s.Identity(); !id.IsGuest() && id.UserID() == userID {
			out = append(out, s)
		}
	})
	return out
}

func (m *Manager) Each(fn func(*Session)) {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		fn(s)
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Resync retries remote writes for every degraded cart.
func (m *Manager) Resync(ctx context.Context) {
	m.Each(func(s *Session) {
		if !s.cart.Degraded() {
			return
		}
		if err := s.cart.Resync(ctx); err != nil {
			m.deps.Log.DebugContext(ctx, "resync failed", slog.String("device_id", s.deviceID), slog.Any("error", err))
		}
	})
}

// Wait blocks until every session's background publishes have finished.
func (m *Manager) Wait() {
	m.Each(func(s *Session) { s.cart.Wait() })
}

// HandleCartUpdated refreshes the user's sessions on other devices.
func (m *Manager) HandleCartUpdated(ctx context.Context, event events.CartUpdated) {
	for _, s := range m.ForUser(event.UserID) {
		if s.deviceID == event.OriginDevice {
			continue
		}
		if err := s.cart.Refresh(ctx); err != nil {
			m.deps.Log.WarnContext(ctx, "refresh after remote update failed",
				slog.String("device_id", s.deviceID), slog.Any("error", err))
		}
	}
}

// Prune drops sessions unused for longer than maxIdle. Their carts are
// already persisted locally or remotely. Degraded sessions are kept until
// their resync succeeds.
func (m *Manager) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	var idle []*Session
	m.Each(func(s *Session) {
		if s.idleSince().Before(cutoff) && !s.cart.Degraded() {
			idle = append(idle, s)
		}
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range idle {
		// skip sessions replaced or used since the scan
		if m.sessions[s.deviceID] != s || !s.idleSince().Before(cutoff) {
			continue
		}
		delete(m.sessions, s.deviceID)
		n++
	}
	return n
}

// RunResync calls Resync every interval until ctx is done.
func (m *Manager) RunResync(ctx context.Context, interval time.Duration, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Resync(ctx)
			if maxIdle > 0 {
				if n := m.Prune(maxIdle); n > 0 {
					m.deps.Log.DebugContext(ctx, "pruned idle sessions", slog.Int("count", n))
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
