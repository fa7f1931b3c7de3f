package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/chat"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/profile"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/scan"
	"github.com/fjod/go_cart/storefront/internal/session"
)

// memoryStore implements every document repository in memory
type memoryStore struct {
	mu       sync.Mutex
	carts    map[string]*domain.Cart
	scans    map[string][]domain.Scan
	searches map[string][]string
	users    map[string]*domain.UserProfile
	creds    map[string]domain.Credentials
	messages map[string][]domain.ChatMessage
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		carts:    make(map[string]*domain.Cart),
		scans:    make(map[string][]domain.Scan),
		searches: make(map[string][]string),
		users:    make(map[string]*domain.UserProfile),
		creds:    make(map[string]domain.Credentials),
		messages: make(map[string][]domain.ChatMessage),
	}
}

func (m *memoryStore) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cart, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return cart.Clone(), nil
}

func (m *memoryStore) PutCart(_ context.Context, userID string, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[userID] = cart.Clone()
	return nil
}

func (m *memoryStore) RemoveCartItem(_ context.Context, userID string, key domain.LineKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cart, ok := m.carts[userID]; ok {
		cart.RemoveItem(key.ProductID, key.Size)
	}
	return nil
}

func (m *memoryStore) DeleteCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

func (m *memoryStore) GetScans(_ context.Context, userID string) ([]domain.Scan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.scans[userID]), nil
}

func (m *memoryStore) PutScan(_ context.Context, userID string, s domain.Scan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans[userID] = append([]domain.Scan{s}, m.scans[userID]...)
	return nil
}

func (m *memoryStore) AppendRecentSearch(_ context.Context, userID, term string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	terms := slices.DeleteFunc(m.searches[userID], func(t string) bool { return t == term })
	m.searches[userID] = append([]string{term}, terms...)
	return nil
}

func (m *memoryStore) RecentSearches(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.searches[userID]), nil
}

func (m *memoryStore) EnsureUser(_ context.Context, p domain.UserProfile) (*domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.users[p.UserID]; ok {
		out := *existing
		return &out, nil
	}
	p.Settings = domain.Settings{Notifications: domain.DefaultNotificationSettings(), Addresses: []domain.Address{}}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.users[p.UserID] = &p
	out := p
	return &out, nil
}

func (m *memoryStore) GetUser(_ context.Context, userID string) (*domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	out := *p
	return &out, nil
}

func (m *memoryStore) UpdateProfile(_ context.Context, userID, displayName, stylePreference, gender string) (*domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	p.DisplayName, p.StylePreference, p.Gender = displayName, stylePreference, gender
	out := *p
	return &out, nil
}

func (m *memoryStore) UpdateSettings(_ context.Context, userID string, settings domain.Settings) (*domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.users[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	p.Settings = settings
	out := *p
	return &out, nil
}

func (m *memoryStore) GetCredentials(_ context.Context, email string) (*domain.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &c, nil
}

func (m *memoryStore) CreateCredentials(_ context.Context, creds domain.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(creds.Email)
	if _, ok := m.creds[email]; ok {
		return repository.ErrEmailTaken
	}
	m.creds[email] = creds
	return nil
}

func (m *memoryStore) AppendMessage(_ context.Context, msg domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

func (m *memoryStore) ListMessages(_ context.Context, conversationID string, limit int) ([]domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[conversationID]
	return slices.Clone(msgs[max(0, len(msgs)-limit):]), nil
}

type testServer struct {
	router   chi.Router
	store    *memoryStore
	sessions *session.Manager
	camera   *scan.ClientCamera
	scans    *scan.Service
	redis    *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.Discard()
	store := newMemoryStore()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	products, err := catalog.NewRepository(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { products.Close() })
	require.NoError(t, products.RunMigrations())

	tokens, err := auth.NewJWTService("test-secret", time.Hour)
	require.NoError(t, err)
	authService := auth.NewService(store, auth.NewBcryptHasher(bcrypt.MinCost), tokens, auth.DisabledVerifier{}, log)

	sessions := session.NewManager(session.Deps{
		Auth:      authService,
		Local:     cache.NewRedisStore(client, time.Hour),
		Carts:     store,
		Policy:    domain.DefaultPricingPolicy(),
		Publisher: events.NopPublisher{},
		Topics:    events.DefaultTopics(),
		Log:       log,
	})

	camera := scan.NewClientCamera()
	scans := scan.NewService(camera, store, 50, 10*time.Millisecond, log)
	t.Cleanup(func() { _ = scans.Shutdown(context.Background()) })

	chatService := chat.NewService(store, events.NopPublisher{}, "support-chat", time.Hour, log)
	t.Cleanup(chatService.Close)

	catalogService := catalog.NewService(products, log)
	timeout := 5 * time.Second
	router := NewRouter(RouterConfig{RequestTimeout: timeout, MaxRequestBodySize: 1 << 16}, sessions, Handlers{
		Cart:    NewCartHandler(catalogService, timeout, log),
		Catalog: NewCatalogHandler(catalogService, store, timeout, log),
		Auth:    NewAuthHandler(timeout, log),
		Profile: NewProfileHandler(profile.NewService(store), timeout, log),
		Scan:    NewScanHandler(scans, camera, timeout, log),
		Chat:    NewChatHandler(chatService, timeout, log),
	}, log)

	return &testServer{router: router, store: store, sessions: sessions, camera: camera, scans: scans, redis: mr}
}

type request struct {
	method   string
	path     string
	body     any
	deviceID string
	token    string
	header   map[string]string
}

func (ts *testServer) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if req.body != nil {
		switch b := req.body.(type) {
		case string:
			body.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&body).Encode(b))
		}
	}
	r := httptest.NewRequest(req.method, req.path, &body)
	if req.deviceID != "" {
		r.Header.Set(DeviceIDHeader, req.deviceID)
	}
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	for k, v := range req.header {
		r.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	ts.router.ServeHTTP(recorder, r)
	return recorder
}

// signUp registers a fresh account on deviceID and returns its token.
func (ts *testServer) signUp(t *testing.T, deviceID, email string) string {
	t.Helper()
	rec := ts.do(t, request{
		method:   http.MethodPost,
		path:     "/api/v1/auth/signup",
		deviceID: deviceID,
		body:     SignUpRequestDTO{Email: email, Password: "secret123", DisplayName: "Ada"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp AuthResponseDTO
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dst), rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decode(t, rec, &resp)
	return resp.Code
}
