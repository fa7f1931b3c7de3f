package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

const (
	cartKey           = "cart"
	recentSearchesKey = "recentSearches"
	wishlistKey       = "wishlist"

	// MaxRecentSearches is how many search terms a device remembers.
	MaxRecentSearches = 5
)

// DeviceStorage is the local storage of a single device. List updates are
// serialized so concurrent requests from one device never lose a write.
type DeviceStorage struct {
	store    LocalStore
	deviceID string

	listMu sync.Mutex
}

func NewDeviceStorage(store LocalStore, deviceID string) *DeviceStorage {
	return &DeviceStorage{store: store, deviceID: deviceID}
}

func (d *DeviceStorage) DeviceID() string {
	return d.deviceID
}

func (d *DeviceStorage) key(name string) string {
	return fmt.Sprintf("local:%s:%s", d.deviceID, name)
}

// LoadCart returns the cached cart, or an empty cart when nothing is stored.
func (d *DeviceStorage) LoadCart(ctx context.Context) (*domain.Cart, error) {
	raw, err := d.store.Get(ctx, d.key(cartKey))
	if errors.Is(err, ErrCacheMiss) {
		return domain.NewCart(""), nil
	}
	if err != nil {
		return nil, err
	}

	var cart domain.Cart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	cart.Normalize()
	return &cart, nil
}

func (d *DeviceStorage) SaveCart(ctx context.Context, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	return d.store.Set(ctx, d.key(cartKey), string(data))
}

func (d *DeviceStorage) ClearCart(ctx context.Context) error {
	return d.store.Delete(ctx, d.key(cartKey))
}

func (d *DeviceStorage) RecentSearches(ctx context.Context) ([]string, error) {
	return d.loadList(ctx, recentSearchesKey)
}

// PushRecentSearch moves term to the front of the list, dropping duplicates
// and anything past MaxRecentSearches.
func (d *DeviceStorage) PushRecentSearch(ctx context.Context, term string) ([]string, error) {
	d.listMu.Lock()
	defer d.listMu.Unlock()

	terms, err := d.loadList(ctx, recentSearchesKey)
	if err != nil {
		return nil, err
	}

	updated := make([]string, 0, MaxRecentSearches)
	updated = append(updated, term)
	for _, t := range terms {
		if t != term && len(updated) < MaxRecentSearches {
			updated = append(updated, t)
		}
	}

	if err := d.saveList(ctx, recentSearchesKey, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

func (d *DeviceStorage) Wishlist(ctx context.Context) ([]string, error) {
	return d.loadList(ctx, wishlistKey)
}

// ToggleWishlist adds productID when absent and removes it otherwise.
func (d *DeviceStorage) ToggleWishlist(ctx context.Context, productID string) (bool, error) {
	d.listMu.Lock()
	defer d.listMu.Unlock()

	ids, err := d.loadList(ctx, wishlistKey)
	if err != nil {
		return false, err
	}

	added := !slices.Contains(ids, productID)
	if added {
		ids = append(ids, productID)
	} else {
		ids = slices.DeleteFunc(ids, func(id string) bool { return id == productID })
	}
	return added, d.saveList(ctx, wishlistKey, ids)
}

func (d *DeviceStorage) RemoveFromWishlist(ctx context.Context, productID string) error {
	d.listMu.Lock()
	defer d.listMu.Unlock()

	ids, err := d.loadList(ctx, wishlistKey)
	if err != nil {
		return err
	}
	ids = slices.DeleteFunc(ids, func(id string) bool { return id == productID })
	return d.saveList(ctx, wishlistKey, ids)
}

func (d *DeviceStorage) loadList(ctx context.Context, name string) ([]string, error) {
	raw, err := d.store.Get(ctx, d.key(name))
	if errors.Is(err, ErrCacheMiss) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("unmarshal %s failed: %w", name, err)
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

func (d *DeviceStorage) saveList(ctx context.Context, name string, list []string) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", name, err)
	}
	return d.store.Set(ctx, d.key(name), string(data))
}
