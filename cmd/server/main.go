package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aditya/rideshare/internal/auth"
	"github.com/aditya/rideshare/internal/cache"
	"github.com/aditya/rideshare/internal/config"
	"github.com/aditya/rideshare/internal/database"
	"github.com/aditya/rideshare/internal/events"
	"github.com/aditya/rideshare/internal/handler"
	"github.com/aditya/rideshare/internal/middleware"
	"github.com/aditya/rideshare/internal/realtime"
	"github.com/aditya/rideshare/internal/repository"
	"github.com/aditya/rideshare/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/newrelic/go-agent/v3/newrelic"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize New Relic (optional)
	var nrApp *newrelic.Application
	if cfg.NewRelicEnabled && cfg.NewRelicLicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelicAppName),
			newrelic.ConfigLicense(cfg.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
			newrelic.ConfigInfoLogger(os.Stdout),
		)
		if err != nil {
			log.Printf("Warning: Failed to initialize New Relic: %v", err)
		} else if err := nrApp.WaitForConnection(10 * time.Second); err != nil {
			log.Printf("Warning: New Relic connection timeout: %v", err)
		} else {
			log.Println("New Relic connected")
		}
	}

	// Initialize PostgreSQL
	db, err := database.NewPostgres(
		cfg.DatabaseURL,
		cfg.DBMaxConnections,
		cfg.DBMaxIdleConnections,
	)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	if cfg.DBEnsureSchema {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.EnsureSchema(ctx)
		cancel()
		if err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
	}

	// Initialize Redis
	redis, err := database.NewRedis(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()
	log.Println("Connected to Redis")

	// Ride events go to RabbitMQ when configured
	var publisher events.Publisher = events.NewNopPublisher()
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL)
		if err != nil {
			log.Printf("Warning: RabbitMQ unavailable, ride events disabled: %v", err)
		} else {
			publisher = amqpPublisher
			log.Println("Connected to RabbitMQ")
		}
	}
	defer publisher.Close()

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// Realtime fan-out
	hub := realtime.NewHub(cfg.ChatBufferSize)
	relay := realtime.NewRedisRelay(redis.Client, hub, cfg.ChatBufferSize)
	go relay.Run(rootCtx)

	// Initialize cache
	profiles := cache.NewProfileCache(redis.Client, time.Duration(cfg.ProfileCacheTTL)*time.Second)

	// Initialize repositories
	tx := repository.NewTransactor(db.DB)
	userRepo := repository.NewUserRepository(db.DB)
	rideRepo := repository.NewRideRepository(db.DB)
	ledger := repository.NewRideRequestRepository(db.DB)
	chatRepo := repository.NewChatRepository(db.DB)

	// Initialize services
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTExpiryMinutes)
	userService := service.NewUserService(userRepo, profiles)
	emitter := service.NewSystemMessageEmitter(chatRepo, relay)
	rideService := service.NewRideService(tx, rideRepo, ledger, chatRepo, userService, emitter, publisher)
	chatService := service.NewChatService(rideRepo, chatRepo, userService, relay)
	gatekeeper := realtime.NewGatekeeper(jwtService, chatService, hub)

	// Initialize handlers
	userHandler := handler.NewUserHandler(userService)
	rideHandler := handler.NewRideHandler(rideService, chatService)
	chatHandler := handler.NewChatHandler(gatekeeper)

	// Create router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.Recovery)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// New Relic middleware
	if nrApp != nil {
		r.Use(middleware.NewRelicMiddleware(nrApp))
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := db.Health(ctx); err != nil {
			http.Error(w, "database unhealthy", http.StatusServiceUnavailable)
			return
		}

		if err := redis.Health(ctx); err != nil {
			http.Error(w, "redis unhealthy", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","services":{"database":"up","redis":"up"}}`))
	})

	rateLimiter := middleware.NewRateLimiter(redis.Client, cfg.RateLimitPerMinute, time.Minute)
	idempotencyMw := middleware.NewIdempotencyMiddleware(redis.Client)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Chat sockets authenticate inside the gatekeeper
		chatHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtService))
			r.Use(rateLimiter.Handler)
			r.Use(idempotencyMw.Handler)

			userHandler.RegisterRoutes(r)
			rideHandler.RegisterRoutes(r)
		})
	})

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", cfg.Port)
	log.Println("API endpoints:")
	log.Println("  POST   /v1/rides                  - Create ride")
	log.Println("  GET    /v1/rides                  - List open rides")
	log.Println("  POST   /v1/rides/join-by-code     - Join by ride code")
	log.Println("  POST   /v1/rides/{id}/join        - Join ride")
	log.Println("  POST   /v1/rides/{id}/leave       - Leave ride")
	log.Println("  POST   /v1/rides/{id}/complete    - Complete ride")
	log.Println("  DELETE /v1/rides/{id}             - Delete ride")
	log.Println("  GET    /v1/ws/rides/{id}/chat     - Ride chat socket")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
