package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fjod/go_cart/storefront/internal/auth"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/chat"
	"github.com/fjod/go_cart/storefront/internal/circuitbreaker"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/poller"
	"github.com/fjod/go_cart/storefront/internal/profile"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/scan"
	"github.com/fjod/go_cart/storefront/internal/session"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.Env.Log.Level, cfg.Env.Log.Pretty)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	slog.SetDefault(lg)

	ctx := context.Background()

	// Document store
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Env.ServiceName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Client().Disconnect(context.Background())
	if err := repository.CreateIndexes(ctx, mongoDB); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}
	lg.Info("connected to MongoDB", slog.String("database", cfg.Mongo.Database))

	breaker := circuitbreaker.New(circuitbreaker.Settings{
		Name:                "cart-store",
		MaxRequests:         cfg.Breaker.MaxRequests,
		Interval:            cfg.Breaker.Interval,
		Timeout:             cfg.Breaker.Timeout,
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
	}, lg)
	carts := repository.NewBreakerCartRepository(repository.NewMongoCartRepository(mongoDB), breaker)
	users := repository.NewMongoUserRepository(mongoDB)

	// Device storage
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Redis connection failed: %v", err)
	}
	lg.Info("redis ping succeeded", slog.String("addr", cfg.Redis.Addr))

	// Catalog
	products, err := catalog.NewRepository(cfg.Catalog.DBPath)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer products.Close()
	if err := products.RunMigrations(); err != nil {
		log.Fatalf("Failed to run catalog migrations: %v", err)
	}
	catalogService := catalog.NewService(products, lg)

	// Identity
	tokens, err := auth.NewJWTService(cfg.Auth.AccessSecret, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatalf("Failed to create token service: %v", err)
	}
	var verifier auth.ProviderVerifier = auth.DisabledVerifier{}
	if cfg.Firebase.CredentialsPath != "" {
		fv, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsPath)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
		verifier = fv
	} else {
		lg.Warn("firebase credentials not configured, provider sign-in disabled")
	}
	authService := auth.NewService(users, auth.NewBcryptHasher(cfg.Auth.BcryptCost), tokens, verifier, lg)

	// Events
	topics := events.Topics{
		CartUpdated: cfg.Kafka.Topics.CartUpdated,
		OrderPlaced: cfg.Kafka.Topics.OrderPlaced,
		SupportChat: cfg.Kafka.Topics.SupportChat,
	}
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers...)
		lg.Info("publishing events to kafka", slog.Any("brokers", cfg.Kafka.Brokers))
	}
	defer publisher.Close()

	policy, err := domain.NewPricingPolicy(cfg.Pricing.FreeShippingThreshold, cfg.Pricing.FlatShippingFee, cfg.Pricing.TaxRate)
	if err != nil {
		log.Fatalf("Invalid pricing config: %v", err)
	}

	sessions := session.NewManager(session.Deps{
		Auth:      authService,
		Local:     cache.NewRedisStore(redisClient, cfg.Redis.LocalTTL),
		Carts:     carts,
		Policy:    policy,
		Publisher: publisher,
		Topics:    topics,
		Log:       lg,
	})

	camera := scan.NewClientCamera()
	scanService := scan.NewService(camera, repository.NewMongoScanRepository(mongoDB), cfg.Scan.Countdown, cfg.Scan.Tick, lg)
	chatService := chat.NewService(repository.NewMongoChatRepository(mongoDB), publisher, topics.SupportChat, cfg.Chat.ReplyDelay, lg)
	profileService := profile.NewService(users)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	go sessions.RunResync(bgCtx, cfg.Resync.Interval, cfg.Resync.SessionIdle)

	// Every instance must see every cart update, so each one gets its own group.
	var cartPoller *poller.Poller
	if len(cfg.Kafka.Brokers) > 0 {
		groupID := fmt.Sprintf("%s-%s", cfg.Kafka.GroupID, uuid.NewString())
		cartPoller = poller.NewPoller(sessions.HandleCartUpdated, lg, topics.CartUpdated, groupID, cfg.Kafka.Brokers...)
		go cartPoller.Run(bgCtx)
	}

	timeout := cfg.HTTP.RequestTimeout
	router := h.NewRouter(h.RouterConfig{
		RequestTimeout:     timeout,
		MaxRequestBodySize: cfg.HTTP.MaxRequestBodySize,
	}, sessions, h.Handlers{
		Cart:    h.NewCartHandler(catalogService, timeout, lg),
		Catalog: h.NewCatalogHandler(catalogService, repository.NewMongoSearchRepository(mongoDB), timeout, lg),
		Auth:    h.NewAuthHandler(timeout, lg),
		Profile: h.NewProfileHandler(profileService, timeout, lg),
		Scan:    h.NewScanHandler(scanService, camera, timeout, lg),
		Chat:    h.NewChatHandler(chatService, timeout, lg),
	}, lg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      otelhttp.NewHandler(router, cfg.Env.ServiceName),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		lg.Info("storefront starting", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// release cameras before in-flight requests are drained
	if err := scanService.Shutdown(shutdownCtx); err != nil {
		lg.Error("scan shutdown incomplete", slog.Any("error", err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("server forced to shutdown", slog.Any("error", err))
	}

	stopBackground()
	if cartPoller != nil {
		cartPoller.Close()
	}
	chatService.Close()
	sessions.Resync(shutdownCtx)
	sessions.Wait()

	lg.Info("server exited")
}
