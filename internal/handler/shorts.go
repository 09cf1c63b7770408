package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/contentenhancer/web/internal/client"
	"github.com/contentenhancer/web/internal/middleware"
	"github.com/contentenhancer/web/internal/model"
	"github.com/contentenhancer/web/internal/session"
	"github.com/contentenhancer/web/internal/workflow"
	"github.com/contentenhancer/web/pkg/response"
)

// ShortsRequest is the form posted by the YouTube panel
type ShortsRequest struct {
	URL string `form:"url" validate:"required,max=2048"`
}

type ShortsHandler struct {
	sessions  *session.Manager
	page      *PageHandler
	validator *validator.Validate
}

func NewShortsHandler(sessions *session.Manager, page *PageHandler, v *validator.Validate) *ShortsHandler {
	return &ShortsHandler{
		sessions:  sessions,
		page:      page,
		validator: v,
	}
}

// Generate handles POST /api/shorts
func (h *ShortsHandler) Generate(c *fiber.Ctx) error {
	sess := h.sessions.Get(middleware.GetSessionID(c))

	req := ShortsRequest{URL: strings.TrimSpace(c.FormValue("url"))}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if sess.Controller.Busy(model.KindShorts) {
		return response.Busy(c, "Shorts are already being generated")
	}

	if err := sess.Controller.SubmitURL(req.URL); err != nil {
		switch {
		case errors.Is(err, workflow.ErrBusy):
			return response.Busy(c, "Shorts are already being generated")
		case errors.Is(err, client.ErrValidation):
			return response.ValidationError(c, "YouTube URL is required", nil)
		default:
			return response.ServiceError(c, workflow.VideoFailureMessage)
		}
	}

	return h.page.respond(c, fiber.StatusAccepted, sess)
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
