//	@title			Filedrop API
//	@version		1.0
//	@description	Quota-enforced file storage backend with live change feeds.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/filedrop/service/internal/auth"
	"github.com/filedrop/service/internal/config"
	"github.com/filedrop/service/internal/db"
	"github.com/filedrop/service/internal/feed"
	"github.com/filedrop/service/internal/file"
	applogger "github.com/filedrop/service/internal/logger"
	appMiddleware "github.com/filedrop/service/internal/middleware"
	"github.com/filedrop/service/internal/quota"
	"github.com/filedrop/service/internal/storage"
	"github.com/filedrop/service/internal/user"

	_ "github.com/filedrop/service/docs/swagger"
)

func main() {
	cfg := config.Load()

	logger, err := applogger.New(cfg.Verbose)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}
	logger.Info("database ready")

	store, err := storage.NewMinioStorage(
		cfg.StorageEndpoint,
		cfg.StorageAccessKey,
		cfg.StorageSecretKey,
		cfg.StorageBucket,
		cfg.StoragePublicBase,
		cfg.StorageUseSSL,
		logger,
	)
	if err != nil {
		logger.Fatal("object storage init failed", zap.Error(err))
	}

	// Change feed: LISTEN on the files channel for the life of the process.
	listener := feed.NewListener(pool, logger)
	listener.Start(ctx)

	// Wire dependencies: repository → service → handler
	ledger := quota.NewLedger(pool)

	userRepo := user.NewRepository(pool)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc, ledger)

	authSvc := auth.NewService(userSvc, cfg)
	authHandler := auth.NewHandler(authSvc)

	fileRepo := file.NewPostgresRepository(pool)
	fileSvc := file.NewService(fileRepo, store, ledger, logger)
	catalog := file.NewCatalog(fileRepo, listener)
	fileHandler := file.NewHandler(fileSvc, catalog, logger)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Swagger UI — available at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		// Protected file endpoints
		r.Route("/files", func(r chi.Router) {
			r.Use(appMiddleware.RequireAuth(cfg.JWTSecret))
			r.Post("/", fileHandler.Upload)
			r.Get("/", fileHandler.List)
			r.Get("/watch", fileHandler.Watch)
			r.Delete("/{id}", fileHandler.Delete)
		})

		// Protected user endpoints
		r.Route("/users", func(r chi.Router) {
			r.Use(appMiddleware.RequireAuth(cfg.JWTSecret))
			r.Get("/me", userHandler.GetMe)
			r.Get("/me/storage", userHandler.GetStorage)
		})
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: /files/watch holds a websocket open indefinitely
		// and uploads of large objects can outlive any fixed deadline.
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server listening",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.AppEnv),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down gracefully")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
