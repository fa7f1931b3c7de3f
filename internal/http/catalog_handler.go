package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

const maxSearchTermLength = 100

// CatalogHandler serves the product listing, search overlay and wishlist.
type CatalogHandler struct {
	catalog  *catalog.Service
	searches repository.SearchRepository
	timeout  time.Duration
	log      *slog.Logger
}

func NewCatalogHandler(catalog *catalog.Service, searches repository.SearchRepository, timeout time.Duration, log *slog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog:  catalog,
		searches: searches,
		timeout:  timeout,
		log:      log,
	}
}

type SearchResponseDTO struct {
	Products []domain.Product `json:"products"`
	Recent   []string         `json:"recent"`
}

type RecentSearchesDTO struct {
	Recent []string `json:"recent"`
}

type WishlistDTO struct {
	ProductIDs []string `json:"product_ids"`
}

type ToggleWishlistRequestDTO struct {
	ProductID string `json:"product_id"`
}

type ToggleWishlistResponseDTO struct {
	ProductID  string   `json:"product_id"`
	Added      bool     `json:"added"`
	ProductIDs []string `json:"product_ids"`
}

// GET /api/v1/catalog?q=&category=&sort=
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	page, err := h.catalog.Query(ctx, catalog.Query{
		Text:     q.Get("q"),
		Category: q.Get("category"),
		Sort:     catalog.ParseSortKey(q.Get("sort")),
	})
	if err != nil {
		respondInternal(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// GET /api/v1/catalog/categories
func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	categories, err := h.catalog.Categories(ctx)
	if err != nil {
		respondInternal(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

// GET /api/v1/catalog/{id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		respondInternal(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// GET /api/v1/catalog/latest?n=
func (h *CatalogHandler) Latest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.catalog.Latest(ctx, min(queryInt(r, "n"), 50))
	if err != nil {
		respondInternal(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// GET /api/v1/search?q=
//
// Non-empty terms are remembered on the device, and in the user's remote
// history when signed in. A failed remote write does not fail the search.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(term) > maxSearchTermLength {
		respondError(w, http.StatusBadRequest, "invalid_argument", "search term too long")
		return
	}

	products, err := h.catalog.Search(ctx, term)
	if err != nil {
		respondInternal(w, r, h.log, err)
		return
	}

	s := getSession(r.Context())
	if term == "" {
		recent := h.recent(ctx, s.Identity(), s.Storage())
		respondJSON(w, http.StatusOK, SearchResponseDTO{Products: products, Recent: recent})
		return
	}

	recent, err := s.Storage().PushRecentSearch(ctx, term)
	if err != nil {
		h.log.WarnContext(ctx, "save recent search locally failed", slog.Any("error", err))
		recent = []string{term}
	}
	if ident := s.Identity(); !ident.IsGuest() {
		if err := h.searches.AppendRecentSearch(ctx, ident.UserID(), term); err != nil {
			h.log.WarnContext(ctx, "save recent search remotely failed",
				slog.String("user_id", ident.UserID()), slog.Any("error", err))
		}
	}
	respondJSON(w, http.StatusOK, SearchResponseDTO{Products: products, Recent: recent})
}

// GET /api/v1/search/recent
func (h *CatalogHandler) RecentSearches(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := getSession(r.Context())
	respondJSON(w, http.StatusOK, RecentSearchesDTO{Recent: h.recent(ctx, s.Identity(), s.Storage())})
}

// recent prefers the user's remote history and falls back to the device
// list. An unreadable device list reads as empty.
func (h *CatalogHandler) recent(ctx context.Context, ident domain.Identity, storage *cache.DeviceStorage) []string {
	if !ident.IsGuest() {
		terms, err := h.searches.RecentSearches(ctx, ident.UserID())
		if err == nil && len(terms) > 0 {
			return terms[:min(len(terms), cache.MaxRecentSearches)]
		}
		if err != nil {
			h.log.WarnContext(ctx, "load remote searches failed", slog.Any("error", err))
		}
	}
	terms, err := storage.RecentSearches(ctx)
	if err != nil {
		h.log.WarnContext(ctx, "load recent searches failed", slog.Any("error", err))
		return []string{}
	}
	return terms
}

// wishlist reads the device wishlist, empty when local storage is down.
func (h *CatalogHandler) wishlist(ctx context.Context, storage *cache.DeviceStorage) []string {
	ids, err := storage.Wishlist(ctx)
	if err != nil {
		h.log.WarnContext(ctx, "load wishlist failed", slog.Any("error", err))
		return []string{}
	}
	return ids
}

// GET /api/v1/wishlist
func (h *CatalogHandler) Wishlist(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	respondJSON(w, http.StatusOK, WishlistDTO{ProductIDs: h.wishlist(ctx, getSession(r.Context()).Storage())})
}

// POST /api/v1/wishlist
func (h *CatalogHandler) ToggleWishlist(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ToggleWishlistRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_argument", "product_id is required")
		return
	}
	if _, err := h.catalog.Get(ctx, req.ProductID); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "product not found")
			return
		}
		respondInternal(w, r, h.log, err)
		return
	}

	storage := getSession(r.Context()).Storage()
	added, err := storage.ToggleWishlist(ctx, req.ProductID)
	if err != nil {
		h.respondStorageUnavailable(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ToggleWishlistResponseDTO{ProductID: req.ProductID, Added: added, ProductIDs: h.wishlist(ctx, storage)})
}

// DELETE /api/v1/wishlist/{product_id}
func (h *CatalogHandler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	storage := getSession(r.Context()).Storage()
	if err := storage.RemoveFromWishlist(ctx, chi.URLParam(r, "product_id")); err != nil {
		h.respondStorageUnavailable(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, WishlistDTO{ProductIDs: h.wishlist(ctx, storage)})
}

func (h *CatalogHandler) respondStorageUnavailable(w http.ResponseWriter, r *http.Request, err error) {
	h.log.WarnContext(r.Context(), "update wishlist failed", slog.Any("error", err))
	respondError(w, http.StatusServiceUnavailable, "storage_unavailable", "wishlist could not be saved, try again later")
}
