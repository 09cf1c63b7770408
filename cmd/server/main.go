package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/contentenhancer/web/internal/client"
	"github.com/contentenhancer/web/internal/config"
	"github.com/contentenhancer/web/internal/handler"
	"github.com/contentenhancer/web/internal/media"
	"github.com/contentenhancer/web/internal/middleware"
	"github.com/contentenhancer/web/internal/session"
	"github.com/contentenhancer/web/internal/view"
	ws "github.com/contentenhancer/web/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client (optional - rate limiting is skipped without it)
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("Warning: Redis not available: %v", err)
		}
		defer redisClient.Close()
	}

	// Source store: in-memory registry served under /media, or an R2 bucket
	registry := media.NewRegistry("/media")
	var store media.Store = registry
	if cfg.Storage.Driver == "r2" {
		r2Client, err := client.NewR2Client(&cfg.Storage.R2)
		if err != nil {
			log.Fatalf("Failed to initialize R2 client: %v", err)
		}
		store = media.NewBucketStore(r2Client, time.Duration(cfg.Storage.SignedURLTTL)*time.Minute, "sources")
		registry = nil
	}
	log.Printf("Source storage: %s", store.Driver())

	// Initialize backend clients
	enhanceClient := client.NewEnhanceClient(&cfg.Backend, store)
	shortsClient := client.NewShortsClient(&cfg.Backend)

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()
	defer hub.Stop()

	renderer, err := view.NewRenderer()
	if err != nil {
		log.Fatalf("Failed to parse templates: %v", err)
	}

	sessions := session.NewManager(session.Deps{
		Store:     store,
		Enhancer:  enhanceClient,
		Shorts:    shortsClient,
		Upload:    &cfg.Upload,
		Publisher: handler.NewPublisher(hub, renderer),
	}, time.Duration(cfg.Session.IdleTimeout)*time.Minute)
	defer sessions.Close()

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sessions.Run(sweepCtx, time.Minute)

	sessionTTL := time.Duration(cfg.Session.IdleTimeout) * time.Minute
	app, err := handler.NewApp(handler.Deps{
		Config:      cfg,
		Sessions:    sessions,
		Hub:         hub,
		Renderer:    renderer,
		Registry:    registry,
		Backend:     enhanceClient,
		SessionAuth: middleware.NewSessionMiddleware(cfg.Session.Secret, cfg.Session.CookieName, sessionTTL, cfg.Server.Env == "production", session.NewID),
		RateLimiter: middleware.NewRateLimiter(redisClient),
		Validator:   validator.New(),
	})
	if err != nil {
		log.Fatalf("Failed to build app: %v", err)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s (backend %s)", addr, cfg.Backend.BaseURL)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
