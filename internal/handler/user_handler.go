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

// UserHandler serves account self-service and admin directory routes.
type UserHandler struct {
	users  service.UserService
	stats  service.StaffStatsService
	logger zerolog.Logger
}

// NewUserHandler constructs a user handler.
func NewUserHandler(users service.UserService, stats service.StaffStatsService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		stats:  stats,
		logger: logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register wires user routes. The router must already authenticate the caller.
func (h *UserHandler) Register(router fiber.Router) {
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	router.Get("", adminOnly, h.list)
	router.Get("/staff-stats", adminOnly, h.staffStats)
	router.Patch("/me/profileImage", h.updateProfileImage)
	router.Patch("/me/password", h.changePassword)
}

func (h *UserHandler) list(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		return unauthenticated(c)
	}

	users, err := h.users.List(requestContext(c), caller, strings.TrimSpace(c.Query("role")))
	if err != nil {
		return respondError(c, h.logger, err, "failed to list users")
	}

	return utils.SendSuccess(c, "users retrieved", fiber.Map{"users": users})
}

func (h *UserHandler) staffStats(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		return unauthenticated(c)
	}

	stats, err := h.stats.StaffStats(requestContext(c), caller)
	if err != nil {
		return respondError(c, h.logger, err, "failed to compute staff stats")
	}

	return utils.SendSuccess(c, "staff stats retrieved", fiber.Map{"stats": stats})
}

func (h *UserHandler) updateProfileImage(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		return unauthenticated(c)
	}

	var payload dto.ProfileImageRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	user, err := h.users.UpdateProfileImage(requestContext(c), caller, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update profile image")
	}

	return utils.SendSuccess(c, "profile image updated", fiber.Map{"user": user})
}

func (h *UserHandler) changePassword(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		return unauthenticated(c)
	}

	var payload dto.PasswordChangeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if err := h.users.ChangePassword(requestContext(c), caller, payload); err != nil {
		return respondError(c, h.logger, err, "failed to change password")
	}

	return utils.SendSuccess(c, "password updated", nil)
}
