// Entry point of the event management service. It loads configuration,
// wires the storage backend, response cache, and feature services together,
// mounts the HTTP router, and runs the server with graceful shutdown.
//
// @title Event Management API
// @version 1.0
// @description An API for managing users, events, and event participation.
// @BasePath /api
// @securityDefinitions.apikey UserKeyAuth
// @in header
// @name User-Api-Key
// @description User-scoped API key issued at user creation
// @securityDefinitions.apikey AdminKeyAuth
// @in header
// @name EMS-Api-Key
// @description Deployment-wide admin API key
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/user/ems-go/api"
	"github.com/user/ems-go/apikey"
	"github.com/user/ems-go/apperror"
	"github.com/user/ems-go/cache"
	"github.com/user/ems-go/config"
	"github.com/user/ems-go/db"
	_ "github.com/user/ems-go/docs" // Generated Swagger docs
	"github.com/user/ems-go/monitoring"
	"github.com/user/ems-go/store"
)

func main() {
	// A .env file is a development convenience; production sets real env vars.
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading it: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	st, cleanup, err := newStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer cleanup()

	responseCache := newCache(cfg.Cache)

	keyService := apikey.NewService(st)
	if cfg.Keys.BootstrapAdmin {
		if err := bootstrapAdminKey(keyService, st, cfg.Keys.AdminHeader, os.Stdout); err != nil {
			log.Fatalf("Failed to bootstrap admin key: %v", err)
		}
	}

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(monitoring.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", cfg.Keys.UserHeader, cfg.Keys.AdminHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Handle("/metrics", monitoring.Handler())

	r.Mount("/", api.NewRouter(api.Options{
		Store: st,
		Keys:  cfg.Keys,
		Cache: responseCache,
	}))

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}
	log.Println("Server stopped gracefully")
}

// newStore builds the configured storage backend. The returned cleanup
// releases whatever the backend holds open.
func newStore(cfg *config.AppConfig) (store.Store, func(), error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		pool, err := db.NewPool(cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(cfg.DB, "./migrations"); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return db.NewStore(pool), pool.Close, nil
	case config.StorageMemory:
		log.Println("Using in-memory storage, data will not survive a restart")
		return store.NewMemory(), func() {}, nil
	default:
		return nil, nil, apperror.NewConfigError(
			fmt.Sprintf("unknown storage backend %q", cfg.Storage), nil)
	}
}

// newCache connects the response cache when an address is configured. An
// unreachable redis disables caching instead of blocking startup.
func newCache(cfg *config.CacheConfig) *cache.Cache {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: redis at %s unreachable, response cache disabled: %v", cfg.Addr, err)
		return nil
	}

	log.Printf("Response cache enabled (redis at %s)", cfg.Addr)
	return cache.New(client, cfg.TTL)
}

// bootstrapAdminKey issues the deployment's admin key on first startup. The
// raw secret goes to out exactly once and is never persisted or logged, so
// the operator must record it from the console.
func bootstrapAdminKey(keys *apikey.Service, st store.Store, adminHeader string, out io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := st.AdminKey(ctx); err == nil {
		return nil
	} else if !apperror.IsNotFound(err) {
		return err
	}

	secret, err := keys.Issue(ctx, apikey.AdminPrincipal())
	if err != nil {
		return err
	}
	log.Printf("Issued the admin API key, printed once below (send it in the %q header)", adminHeader)
	_, err = fmt.Fprintf(out, "ADMIN API KEY: %s\n", secret)
	return err
}
