package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fjod/go_cart/storefront/internal/session"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

type Handlers struct {
	Cart    *CartHandler
	Catalog *CatalogHandler
	Auth    *AuthHandler
	Profile *ProfileHandler
	Scan    *ScanHandler
	Chat    *ChatHandler
}

// NewRouter mounts every storefront route under /api/v1. All API routes run
// inside a device session.
func NewRouter(cfg RouterConfig, sessions *session.Manager, h Handlers, log *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(MaxBodySize(cfg.MaxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"status":   "healthy",
			"sessions": sessions.Len(),
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware(sessions, log))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Delete("/", h.Cart.ClearCart)
			r.Post("/items", h.Cart.AddItem)
			r.Put("/items/{product_id}", h.Cart.UpdateQuantity)
			r.Delete("/items/{product_id}", h.Cart.RemoveItem)
			r.Post("/checkout", h.Cart.Checkout)
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", h.Catalog.ListProducts)
			r.Get("/categories", h.Catalog.Categories)
			r.Get("/latest", h.Catalog.Latest)
			r.Get("/{id}", h.Catalog.GetProduct)
		})

		r.Get("/search", h.Catalog.Search)
		r.Get("/search/recent", h.Catalog.RecentSearches)

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", h.Catalog.Wishlist)
			r.Post("/", h.Catalog.ToggleWishlist)
			r.Delete("/{product_id}", h.Catalog.RemoveFromWishlist)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signin", h.Auth.SignIn)
			r.Post("/signup", h.Auth.SignUp)
			r.Post("/oauth", h.Auth.OAuth)
			r.Post("/signout", h.Auth.SignOut)
			r.Get("/me", h.Auth.Me)
		})

		r.Get("/profile", h.Profile.GetProfile)
		r.Put("/profile", h.Profile.UpdateProfile)
		r.Get("/settings", h.Profile.GetSettings)
		r.Put("/settings", h.Profile.UpdateSettings)

		r.Route("/scan", func(r chi.Router) {
			r.Get("/", h.Scan.Status)
			r.Delete("/", h.Scan.Cancel)
			r.Post("/start", h.Scan.Start)
			r.Get("/history", h.Scan.History)
		})

		r.Get("/chat", h.Chat.History)
		r.Post("/chat", h.Chat.Send)
	})

	return r
}
