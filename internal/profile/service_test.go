package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/service"
)

type mockUserRepository struct {
	profiles map[string]*domain.UserProfile
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{profiles: map[string]*domain.UserProfile{
		"ada": {UserID: "ada", Email: "ada@example.com", Settings: domain.Settings{Notifications: domain.DefaultNotificationSettings()}},
	}}
}

func (m *mockUserRepository) EnsureUser(_ context.Context, p domain.UserProfile) (*domain.UserProfile, error) {
	return &p, nil
}

func (m *mockUserRepository) GetUser(_ context.Context, userID string) (*domain.UserProfile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return p, nil
}

func (m *mockUserRepository) UpdateProfile(_ context.Context, userID, displayName, style, gender string) (*domain.UserProfile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	p.DisplayName, p.StylePreference, p.Gender = displayName, style, gender
	return p, nil
}

func (m *mockUserRepository) UpdateSettings(_ context.Context, userID string, settings domain.Settings) (*domain.UserProfile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	p.Settings = settings
	return p, nil
}

func (m *mockUserRepository) GetCredentials(context.Context, string) (*domain.Credentials, error) {
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) CreateCredentials(context.Context, domain.Credentials) error {
	return nil
}

func TestGet_IncludesCartSummary(t *testing.T) {
	svc := NewService(newMockUserRepository())

	overview, err := svc.Get(context.Background(), "ada", service.Snapshot{
		ItemCount: 3,
		Totals:    domain.Totals{Subtotal: 5997, Total: 7077},
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", overview.Profile.Email)
	assert.Equal(t, CartSummary{ItemCount: 3, Subtotal: 5997}, overview.Cart)

	_, err = svc.Get(context.Background(), "ghost", service.Snapshot{})
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUpdateProfile(t *testing.T) {
	svc := NewService(newMockUserRepository())
	ctx := context.Background()

	p, err := svc.UpdateProfile(ctx, "ada", ProfileUpdate{DisplayName: " Ada ", StylePreference: "Classic", Gender: "Female"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.DisplayName)
	assert.Equal(t, "Classic", p.StylePreference)

	_, err = svc.UpdateProfile(ctx, "ada", ProfileUpdate{StylePreference: "Goth"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateProfile(ctx, "ada", ProfileUpdate{Gender: "unknown"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateSettings_NormalizesAddresses(t *testing.T) {
	svc := NewService(newMockUserRepository())

	p, err := svc.UpdateSettings(context.Background(), "ada", domain.Settings{
		Notifications: domain.NotificationSettings{Promotions: true},
		Phone:         " +91 98765 43210 ",
		Addresses: []domain.Address{
			{Address: "1 Main St"},
			{Type: "Work", Address: "2 Office Rd", IsDefault: true},
			{Address: "3 Lake View", IsDefault: true},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "+91 98765 43210", p.Settings.Phone)
	assert.True(t, p.Settings.Notifications.Promotions)
	require.Len(t, p.Settings.Addresses, 3)
	for _, a := range p.Settings.Addresses {
		assert.NotEmpty(t, a.ID)
	}
	assert.Equal(t, "Home", p.Settings.Addresses[0].Type)
	assert.Equal(t, []bool{false, true, false}, []bool{
		p.Settings.Addresses[0].IsDefault,
		p.Settings.Addresses[1].IsDefault,
		p.Settings.Addresses[2].IsDefault,
	})
}

func TestUpdateSettings_FirstAddressBecomesDefault(t *testing.T) {
	svc := NewService(newMockUserRepository())

	p, err := svc.UpdateSettings(context.Background(), "ada", domain.Settings{
		Addresses: []domain.Address{{Address: "1 Main St"}, {Address: "2 Side St"}},
	})
	require.NoError(t, err)
	assert.True(t, p.Settings.Addresses[0].IsDefault)
	assert.False(t, p.Settings.Addresses[1].IsDefault)
}

func TestUpdateSettings_Validation(t *testing.T) {
	svc := NewService(newMockUserRepository())
	ctx := context.Background()

	_, err := svc.UpdateSettings(ctx, "ada", domain.Settings{Addresses: []domain.Address{{Address: "  "}}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateSettings(ctx, "ada", domain.Settings{Phone: "012345678901234567890123"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
