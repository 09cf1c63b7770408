package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/contentenhancer/web/internal/client"
	"github.com/contentenhancer/web/internal/middleware"
	"github.com/contentenhancer/web/internal/session"
	"github.com/contentenhancer/web/internal/uploader"
	"github.com/contentenhancer/web/internal/workflow"
	"github.com/contentenhancer/web/pkg/response"
)

type UploadHandler struct {
	sessions *session.Manager
	page     *PageHandler
}

func NewUploadHandler(sessions *session.Manager, page *PageHandler) *UploadHandler {
	return &UploadHandler{
		sessions: sessions,
		page:     page,
	}
}

// Enhance handles POST /api/enhance
func (h *UploadHandler) Enhance(c *fiber.Ctx) error {
	sess := h.sessions.Get(middleware.GetSessionID(c))

	form, err := c.MultipartForm()
	if err != nil {
		return response.ValidationError(c, "Multipart form with a file field is required", nil)
	}

	if err := sess.Uploader.Select(form.File["file"]); err != nil {
		return selectError(c, err)
	}

	return h.page.respond(c, fiber.StatusAccepted, sess)
}

func selectError(c *fiber.Ctx, err error) error {
	var cerr *client.Error
	switch {
	case errors.Is(err, uploader.ErrDisabled), errors.Is(err, workflow.ErrBusy):
		return response.Busy(c, "Audio is already being processed")
	case errors.As(err, &cerr) && errors.Is(err, client.ErrValidation):
		return response.ValidationError(c, cerr.Message, fiber.Map{"reason": reasonOf(err)})
	default:
		return response.ServiceError(c, workflow.AudioFailureMessage)
	}
}

func reasonOf(err error) string {
	for _, reason := range []error{
		uploader.ErrNoFile,
		uploader.ErrTooManyFiles,
		uploader.ErrTooLarge,
		uploader.ErrUnsupportedType,
	} {
		if errors.Is(err, reason) {
			return reason.Error()
		}
	}
	return client.ErrValidation.Error()
}
