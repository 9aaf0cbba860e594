package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campusfix-api/internal/middleware"
	"github.com/noah-isme/campusfix-api/internal/service"
	"github.com/noah-isme/campusfix-api/internal/utils"
)

// UploadHandler handles report photo uploads.
type UploadHandler struct {
	service service.UploadService
	logger  zerolog.Logger
}

// NewUploadHandler constructs an upload handler.
func NewUploadHandler(service service.UploadService, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		service: service,
		logger:  logger.With().Str("component", "upload_handler").Logger(),
	}
}

// Register wires upload routes.
func (h *UploadHandler) Register(router fiber.Router) {
	router.Post("/signature", h.signature)
	router.Post("/photo", h.photo)
}

func (h *UploadHandler) photo(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		return unauthenticated(c)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	result, err := h.service.UploadPhoto(requestContext(c), caller, file)
	if err != nil {
		return respondError(c, h.logger, err, "upload failed")
	}

	return utils.SendSuccess(c, "upload successful", result)
}

func (h *UploadHandler) signature(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		return unauthenticated(c)
	}

	result, err := h.service.Signature(requestContext(c), caller)
	if err != nil {
		return respondError(c, h.logger, err, "failed to sign upload")
	}

	return utils.SendSuccess(c, "upload signature issued", result)
}
