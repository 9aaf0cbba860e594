package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campusfix-api/internal/dto"
	"github.com/noah-isme/campusfix-api/internal/middleware"
	"github.com/noah-isme/campusfix-api/internal/models"
	"github.com/noah-isme/campusfix-api/internal/service"
	"github.com/noah-isme/campusfix-api/internal/utils"
)

// AuthGuards carries the middleware the auth routes need but do not own.
type AuthGuards struct {
	// Authenticate verifies the bearer token and resolves the caller.
	Authenticate []fiber.Handler
	// Limiter throttles credential endpoints. Optional.
	Limiter fiber.Handler
}

// AuthHandler exposes account registration and sign-in.
type AuthHandler struct {
	service service.AuthService
	logger  zerolog.Logger
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(service service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register wires the auth routes.
func (h *AuthHandler) Register(router fiber.Router, guards AuthGuards) {
	limited := func(handler fiber.Handler) []fiber.Handler {
		if guards.Limiter == nil {
			return []fiber.Handler{handler}
		}
		return []fiber.Handler{guards.Limiter, handler}
	}
	authenticated := func(handlers ...fiber.Handler) []fiber.Handler {
		chain := make([]fiber.Handler, 0, len(guards.Authenticate)+len(handlers))
		chain = append(chain, guards.Authenticate...)
		return append(chain, handlers...)
	}

	router.Post("/register", limited(h.registerStudent)...)
	router.Post("/register-admin", limited(h.registerAdmin)...)
	router.Post("/login", limited(h.login)...)
	router.Post("/register-staff", authenticated(middleware.RequireRole(models.RoleAdmin), h.registerStaff)...)
	router.Get("/me", authenticated(h.me)...)
}

func (h *AuthHandler) registerStudent(c *fiber.Ctx) error {
	var payload dto.RegisterStudentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.RegisterStudent(requestContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to register student")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "registration successful", result)
}

func (h *AuthHandler) registerAdmin(c *fiber.Ctx) error {
	var payload dto.RegisterAdminRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.RegisterAdmin(requestContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to register admin")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "admin registered", result)
}

func (h *AuthHandler) registerStaff(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		return unauthenticated(c)
	}

	var payload dto.RegisterStaffRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.RegisterStaff(requestContext(c), caller, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create staff account")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "staff account created", fiber.Map{"user": result.User})
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.Login(requestContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to sign in")
	}

	return utils.SendSuccess(c, "login successful", result)
}

func (h *AuthHandler) me(c *fiber.Ctx) error {
	caller, ok := middleware.CallerFromContext(c)
	if !ok {
		return unauthenticated(c)
	}

	user, err := h.service.Me(requestContext(c), caller.ID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load profile")
	}

	return utils.SendSuccess(c, "profile retrieved", fiber.Map{"user": user})
}
