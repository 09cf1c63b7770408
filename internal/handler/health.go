package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthChecker reports whether a backend is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	IsConfigured() bool
}

type HealthHandler struct {
	backend HealthChecker
	storage string
	redis   bool
}

func NewHealthHandler(backend HealthChecker, storageDriver string, redisEnabled bool) *HealthHandler {
	return &HealthHandler{
		backend: backend,
		storage: storageDriver,
		redis:   redisEnabled,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	backendOK := false
	if h.backend != nil && h.backend.IsConfigured() {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()
		backendOK = h.backend.HealthCheck(ctx) == nil
	}

	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"services": fiber.Map{
			"backend": backendOK,
			"storage": h.storage,
			"redis":   h.redis,
		},
	})
}
