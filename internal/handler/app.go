package handler

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/contentenhancer/web/internal/config"
	"github.com/contentenhancer/web/internal/media"
	"github.com/contentenhancer/web/internal/middleware"
	"github.com/contentenhancer/web/internal/session"
	"github.com/contentenhancer/web/internal/view"
	ws "github.com/contentenhancer/web/internal/websocket"
	"github.com/contentenhancer/web/pkg/response"
)

// Deps are the components the routes are built from
type Deps struct {
	Config      *config.Config
	Sessions    *session.Manager
	Hub         *ws.Hub
	Renderer    *view.Renderer
	Registry    *media.Registry
	Backend     HealthChecker
	SessionAuth *middleware.SessionMiddleware
	RateLimiter *middleware.RateLimiter
	Validator   *validator.Validate
}

// NewApp builds the Fiber app with every route registered
func NewApp(d Deps) (*fiber.App, error) {
	cfg := d.Config

	static, err := view.Static()
	if err != nil {
		return nil, err
	}
	if d.Validator == nil {
		d.Validator = validator.New()
	}

	pageHandler := NewPageHandler(d.Sessions, d.Renderer)
	uploadHandler := NewUploadHandler(d.Sessions, pageHandler)
	shortsHandler := NewShortsHandler(d.Sessions, pageHandler, d.Validator)
	playerHandler := NewPlayerHandler(d.Sessions, pageHandler)
	mediaHandler := NewMediaHandler(d.Registry)
	socketHandler := NewSocketHandler(d.Sessions, d.Hub, d.Renderer)
	healthHandler := NewHealthHandler(d.Backend, cfg.Storage.Driver, cfg.Redis.Enabled)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check
	app.Get("/health", healthHandler.Health)

	app.Use("/static", filesystem.New(filesystem.Config{
		Root:   http.FS(static),
		MaxAge: 3600,
	}))

	// Session-scoped routes
	app.Use(d.SessionAuth.Attach())

	app.Get("/", pageHandler.Index)

	api := app.Group("/api")
	api.Get("/state", pageHandler.State)
	api.Post("/enhance", d.RateLimiter.EnhanceLimit(cfg.RateLimit.EnhancePerHour), uploadHandler.Enhance)
	api.Post("/shorts", d.RateLimiter.ShortsLimit(cfg.RateLimit.ShortsPerHour), shortsHandler.Generate)
	api.Post("/players/:id/toggle", playerHandler.Toggle)

	app.Get("/media/:id", mediaHandler.Stream)
	app.Get("/media/:id/download", mediaHandler.Download)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/session", websocket.New(socketHandler.Serve))

	return app, nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	switch code {
	case fiber.StatusUpgradeRequired:
		return response.UpgradeRequired(c)
	case fiber.StatusNotFound:
		return response.NotFound(c, message)
	case fiber.StatusRequestEntityTooLarge:
		return response.ValidationError(c, message, nil)
	}
	return response.Error(c, code, response.CodeServiceError, message, nil)
}
