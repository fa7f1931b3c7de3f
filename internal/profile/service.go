// Package profile serves the profile and settings pages.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/service"
)

var ErrInvalidInput = errors.New("invalid profile input")

type ProfileUpdate struct {
	DisplayName     string `json:"display_name" validate:"max=100"`
	StylePreference string `json:"style_preference" validate:"omitempty,oneof=Minimalist Streetwear Classic Luxury"`
	Gender          string `json:"gender" validate:"omitempty,oneof=Male Female Other"`
}

type CartSummary struct {
	ItemCount int   `json:"item_count"`
	Subtotal  int64 `json:"subtotal"`
}

// Overview is everything the profile page shows.
type Overview struct {
	Profile *domain.UserProfile `json:"profile"`
	Cart    CartSummary         `json:"cart"`
}

type Service struct {
	users    repository.UserRepository
	validate *validator.Validate
}

func NewService(users repository.UserRepository) *Service {
	return &Service{users: users, validate: validator.New()}
}

func (s *Service) Get(ctx context.Context, userID string, cart service.Snapshot) (Overview, error) {
	p, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return Overview{}, err
	}
	return Overview{
		Profile: p,
		Cart:    CartSummary{ItemCount: cart.ItemCount, Subtotal: cart.Totals.Subtotal},
	}, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*domain.UserProfile, error) {
	update.DisplayName = strings.TrimSpace(update.DisplayName)
	if err := s.validate.Struct(update); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.users.UpdateProfile(ctx, userID, update.DisplayName, update.StylePreference, update.Gender)
}

// UpdateSettings stores settings after normalizing addresses: every address
// gets an id and exactly one is the default when any exist.
func (s *Service) UpdateSettings(ctx context.Context, userID string, settings domain.Settings) (*domain.UserProfile, error) {
	settings.Phone = strings.TrimSpace(settings.Phone)
	if err := s.validate.Var(settings.Phone, "omitempty,max=20"); err != nil {
		return nil, fmt.Errorf("%w: phone: %v", ErrInvalidInput, err)
	}

	addresses := make([]domain.Address, 0, len(settings.Addresses))
	hasDefault := false
	for _, a := range settings.Addresses {
		a.Address = strings.TrimSpace(a.Address)
		if a.Address == "" {
			return nil, fmt.Errorf("%w: address is required", ErrInvalidInput)
		}
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.Type == "" {
			a.Type = "Home"
		}
		if a.IsDefault && hasDefault {
			a.IsDefault = false
		}
		hasDefault = hasDefault || a.IsDefault
		addresses = append(addresses, a)
	}
	if !hasDefault && len(addresses) > 0 {
		addresses[0].IsDefault = true
	}
	settings.Addresses = addresses

	return s.users.UpdateSettings(ctx, userID, settings)
}
