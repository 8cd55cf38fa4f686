//	@title			Stashbin API
//	@version		1.0
//	@description	Chunked, resumable file uploads into interchangeable blob-storage backends.
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

	"github.com/stashbin/service/internal/backend"
	"github.com/stashbin/service/internal/config"
	"github.com/stashbin/service/internal/kv"
	appMiddleware "github.com/stashbin/service/internal/middleware"
	"github.com/stashbin/service/internal/quota"
	"github.com/stashbin/service/internal/upload"

	_ "github.com/stashbin/service/docs/swagger"
)

func main() {
	cfg := config.Load()

	store, err := kv.Connect(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("key-value store connection failed: %v", err)
	}
	defer store.Close()

	backends := backend.NewRegistry(cfg)
	log.Printf("storage backends configured: %v (primary=%s)", backends.Modes(), backends.Primary())

	// Wire dependencies: store → orchestrator → handler
	sessions := upload.NewSessionStore(store, cfg.SessionTTL)
	orchestrator := upload.NewOrchestrator(sessions, backends, cfg.ChunkSize, cfg.MaxFileSize)
	guard := quota.NewGuard(store, cfg.GuestUploadsEnabled, cfg.GuestMaxFileSize, cfg.GuestDailyLimit)
	uploadHandler := upload.NewHandler(orchestrator, guard, backends)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
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
		r.Route("/uploads", func(r chi.Router) {
			r.Use(appMiddleware.OptionalAuth(cfg.JWTSecret))
			r.Post("/init", uploadHandler.Init)
			r.Get("/status", uploadHandler.Status)
			r.Post("/{uploadID}/chunks/{index}", uploadHandler.Chunk)
			r.Post("/{uploadID}/complete", uploadHandler.Complete)
			r.Delete("/{uploadID}", uploadHandler.Abort)
		})

		r.Route("/storage", func(r chi.Router) {
			r.Use(appMiddleware.RequireAuth(cfg.JWTSecret))
			r.Get("/check", uploadHandler.StorageCheck)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("server listening on :%s (env=%s)", cfg.Port, cfg.AppEnv)
		log.Printf("swagger UI at http://localhost:%s/swagger/", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	log.Println("server stopped")
}
