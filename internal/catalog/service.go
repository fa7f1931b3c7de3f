package catalog

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// LatestCount is how many products the search overlay shows before a query.
const LatestCount = 8

type Service struct {
	store Store
	sfg   singleflight.Group // collapses concurrent full-catalog loads
	log   *slog.Logger
}

func NewService(store Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log}
}

// Page is one catalog view: the visible products plus the unfiltered total
// for "Showing X of Y".
type Page struct {
	Products []domain.Product `json:"products"`
	Showing  int              `json:"showing"`
	Total    int              `json:"total"`
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	v, err, shared := s.sfg.Do("products", func() (interface{}, error) {
		return s.store.ListProducts(ctx)
	})
	if err != nil {
		s.log.ErrorContext(ctx, "list products failed", slog.Any("error", err))
		return nil, err
	}
	if shared {
		s.log.DebugContext(ctx, "product list shared with concurrent caller")
	}
	// callers sharing a result must not alias one another's slice
	return slices.Clone(v.([]domain.Product)), nil
}

func (s *Service) Query(ctx context.Context, q Query) (Page, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return Page{}, err
	}
	visible := Filter(products, q)
	return Page{Products: visible, Showing: len(visible), Total: len(products)}, nil
}

// Search matches text with the same case folding as the catalog filter,
// newest first. Blank text yields an empty result.
func (s *Service) Search(ctx context.Context, text string) ([]domain.Product, error) {
	if strings.TrimSpace(text) == "" {
		return []domain.Product{}, nil
	}
	products, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(products, Query{Text: text, Sort: SortNewest}), nil
}

func (s *Service) Latest(ctx context.Context, n int) ([]domain.Product, error) {
	if n <= 0 {
		n = LatestCount
	}
	return s.store.GetLatestProducts(ctx, n)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.store.GetProduct(ctx, id)
}

// Categories returns the distinct categories in alphabetical order.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	categories := make([]string, 0, len(products))
	for _, p := range products {
		if p.Category != "" {
			categories = append(categories, p.Category)
		}
	}
	slices.Sort(categories)
	return slices.Compact(categories), nil
}
