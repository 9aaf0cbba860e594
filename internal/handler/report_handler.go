package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campusfix-api/internal/dto"
	"github.com/noah-isme/campusfix-api/internal/middleware"
	"github.com/noah-isme/campusfix-api/internal/models"
	"github.com/noah-isme/campusfix-api/internal/service"
	"github.com/noah-isme/campusfix-api/internal/utils"
)

// ReportHandler exposes the maintenance report lifecycle.
type ReportHandler struct {
	service service.ReportService
	logger  zerolog.Logger
}

// NewReportHandler constructs a report handler.
func NewReportHandler(service service.ReportService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		logger:  logger.With().Str("component", "report_handler").Logger(),
	}
}

// Register wires report routes. The router must already authenticate the caller.
func (h *ReportHandler) Register(router fiber.Router) {
	staffOrAdmin := middleware.RequireRole(models.RoleStaff, models.RoleAdmin)

	router.Post("", middleware.RequireRole(models.RoleStudent), h.create)
	router.Get("", staffOrAdmin, h.list)
	router.Delete("", middleware.RequireRole(models.RoleAdmin), h.purge)
	router.Get("/mine", h.listMine)
	router.Get("/assigned-to-me", middleware.RequireRole(models.RoleStaff), h.listAssigned)
	router.Get("/rejected", middleware.RequireRole(models.RoleStudent), h.listRejected)
	router.Get("/:id", h.get)
	router.Patch("/:id", staffOrAdmin, h.update)
	router.Post("/:id/conversation", staffOrAdmin, h.addConversation)
}

func (h *ReportHandler) create(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		return unauthenticated(c)
	}

	var payload dto.ReportCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	report, err := h.service.Create(requestContext(c), caller, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create report")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "report created", fiber.Map{"report": report})
}

func (h *ReportHandler) list(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		return unauthenticated(c)
	}

	filter := dto.ReportListFilter{
		AssignedTo: strings.TrimSpace(c.Query("assignedTo")),
		Status:     strings.TrimSpace(c.Query("status")),
	}

	reports, err := h.service.List(requestContext(c), caller, filter)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list reports")
	}

	return utils.SendSuccess(c, "reports retrieved", fiber.Map{"reports": reports})
}

func (h *ReportHandler) listMine(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		return unauthenticated(c)
	}

	reports, err := h.service.ListMine(requestContext(c), caller)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list reports")
	}

	return utils.SendSuccess(c, "reports retrieved", fiber.Map{"reports": reports})
}

func (h *ReportHandler) listAssigned(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		return unauthenticated(c)
	}

	reports, err := h.service.ListAssignedToMe(requestContext(c), caller)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list assigned reports")
	}

	return utils.SendSuccess(c, "reports retrieved", fiber.Map{"reports": reports})
}

func (h *ReportHandler) listRejected(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		return unauthenticated(c)
	}

	reports, err := h.service.ListRejected(requestContext(c), caller)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list rejected reports")
	}

	return utils.SendSuccess(c, "reports retrieved", fiber.Map{"reports": reports})
}

func (h *ReportHandler) get(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		return unauthenticated(c)
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid report id")
	}

	report, err := h.service.Get(requestContext(c), caller, id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load report")
	}

	return utils.SendSuccess(c, "report retrieved", fiber.Map{"report": report})
}

func (h *ReportHandler) update(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		return unauthenticated(c)
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid report id")
	}

	var payload dto.ReportUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	report, err := h.service.Update(requestContext(c), caller, id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update report")
	}

	return utils.SendSuccess(c, "report updated", fiber.Map{"report": report})
}

func (h *ReportHandler) addConversation(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		return unauthenticated(c)
	}

	id, ok := parseIDParam(c, "id")
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid report id")
	}

	var payload dto.ConversationMessageRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	message, err := h.service.AddConversationMessage(requestContext(c), caller, id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to post message")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message posted", fiber.Map{"message": message})
}

func (h *ReportHandler) purge(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		return unauthenticated(c)
	}

	var payload dto.PurgeReportsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.PurgeAll(requestContext(c), caller, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to purge reports")
	}

	requestLogger(h.logger, c).Warn().Uint("admin_id", caller.ID).Int64("deleted", result.Deleted).Msg("reports purged")
	return utils.SendSuccess(c, "reports deleted", result)
}
