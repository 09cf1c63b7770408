package handler

import (
	"bytes"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/contentenhancer/web/internal/middleware"
	"github.com/contentenhancer/web/internal/session"
	"github.com/contentenhancer/web/internal/view"
	"github.com/contentenhancer/web/pkg/response"
)

type PageHandler struct {
	sessions *session.Manager
	renderer *view.Renderer
}

func NewPageHandler(sessions *session.Manager, renderer *view.Renderer) *PageHandler {
	return &PageHandler{
		sessions: sessions,
		renderer: renderer,
	}
}

// Index handles GET /
func (h *PageHandler) Index(c *fiber.Ctx) error {
	sess := h.sessions.Get(middleware.GetSessionID(c))

	var buf bytes.Buffer
	if err := h.renderer.Page(&buf, sess.State()); err != nil {
		log.Printf("[page] render failed: %v", err)
		return response.ServiceError(c, "Failed to render page")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(buf.Bytes())
}

// State handles GET /api/state
func (h *PageHandler) State(c *fiber.Ctx) error {
	sess := h.sessions.Get(middleware.GetSessionID(c))
	return h.respond(c, fiber.StatusOK, sess)
}

func (h *PageHandler) respond(c *fiber.Ctx, status int, sess *session.Session) error {
	up, err := h.renderer.Update(sess.State())
	if err != nil {
		log.Printf("[page] render update failed: %v", err)
		return response.ServiceError(c, "Failed to render state")
	}
	return c.Status(status).JSON(up)
}
