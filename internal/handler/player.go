package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/contentenhancer/web/internal/middleware"
	"github.com/contentenhancer/web/internal/player"
	"github.com/contentenhancer/web/internal/session"
	"github.com/contentenhancer/web/pkg/response"
)

type PlayerHandler struct {
	sessions *session.Manager
	page     *PageHandler
}

func NewPlayerHandler(sessions *session.Manager, page *PageHandler) *PlayerHandler {
	return &PlayerHandler{
		sessions: sessions,
		page:     page,
	}
}

// Toggle handles POST /api/players/:id/toggle
func (h *PlayerHandler) Toggle(c *fiber.Ctx) error {
	sess := h.sessions.Get(middleware.GetSessionID(c))

	if err := sess.Toggle(c.Params("id")); err != nil {
		switch {
		case errors.Is(err, session.ErrPlayerNotFound):
			return response.NotFound(c, "Player not found")
		case errors.Is(err, player.ErrUnavailable):
			return response.Busy(c, player.VideoErrorText)
		default:
			return response.ServiceError(c, "Failed to toggle playback")
		}
	}

	return h.page.respond(c, fiber.StatusOK, sess)
}
