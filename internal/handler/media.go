package handler

import (
	"bytes"
	"mime"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/contentenhancer/web/internal/media"
	"github.com/contentenhancer/web/pkg/response"
)

// MediaHandler serves sources held by the in-memory registry. Range requests are
// honored so the browser can seek.
type MediaHandler struct {
	registry *media.Registry
}

func NewMediaHandler(registry *media.Registry) *MediaHandler {
	return &MediaHandler{registry: registry}
}

// Stream handles GET /media/:id
func (h *MediaHandler) Stream(c *fiber.Ctx) error {
	return h.serve(c, "")
}

// Download handles GET /media/:id/download
func (h *MediaHandler) Download(c *fiber.Ctx) error {
	return h.serve(c, media.DownloadFileName)
}

func (h *MediaHandler) serve(c *fiber.Ctx, attachment string) error {
	if h.registry == nil {
		return response.NotFound(c, "Media not found")
	}
	blob, ok := h.registry.Get(c.Params("id"))
	if !ok {
		return response.NotFound(c, "Media not found")
	}

	return adaptor.HTTPHandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", blob.Source.ContentType)
		w.Header().Set("Cache-Control", "private, max-age=3600")
		if attachment != "" {
			w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": attachment}))
		}
		http.ServeContent(w, r, blob.Name, blob.CreatedAt, bytes.NewReader(blob.Data))
	})(c)
}
