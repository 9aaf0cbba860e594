package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/campusfix-api/internal/models"
	"github.com/noah-isme/campusfix-api/internal/utils"
)

const (
	localUserID   = "user_id"
	localUser     = "user"
	localUserRole = "user_role"
)

// UserLookup loads the account behind a verified token.
type UserLookup interface {
	FindByID(ctx context.Context, id uint) (models.User, error)
}

// ResolveUser reloads the caller on every request so that role checks never trust
// anything cached in the credential.
func ResolveUser(lookup UserLookup, logger zerolog.Logger) fiber.Handler {
	logger = logger.With().Str("component", "resolve_user").Logger()

	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals(localUserID).(uint)
		if !ok || userID == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}

		user, err := lookup.FindByID(c.UserContext(), userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.SendError(c, fiber.StatusUnauthorized, "account no longer exists")
			}
			logger.Error().Err(err).Str("correlation_id", GetCorrelationID(c)).Uint("user_id", userID).Msg("failed to resolve caller")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to resolve caller")
		}

		c.Locals(localUser, user)
		c.Locals(localUserRole, user.Role)
		return c.Next()
	}
}

// CallerFromContext returns the account resolved for the active request.
func CallerFromContext(c *fiber.Ctx) (models.User, bool) {
	user, ok := c.Locals(localUser).(models.User)
	return user, ok
}

// WithCaller stores a resolved account on the request. Used by tests and websocket upgrades.
func WithCaller(c *fiber.Ctx, user models.User) {
	c.Locals(localUserID, user.ID)
	c.Locals(localUser, user)
	c.Locals(localUserRole, user.Role)
}
