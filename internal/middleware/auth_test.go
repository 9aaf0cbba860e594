package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/campusfix-api/internal/auth"
	"github.com/noah-isme/campusfix-api/internal/middleware"
	"github.com/noah-isme/campusfix-api/internal/models"
)

type stubUserLookup struct {
	users map[uint]models.User
	err   error
	calls int
}

func (s *stubUserLookup) FindByID(_ context.Context, id uint) (models.User, error) {
	s.calls++
	if s.err != nil {
		return models.User{}, s.err
	}
	user, ok := s.users[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func newProtectedApp(issuer *auth.TokenIssuer, lookup middleware.UserLookup) *fiber.App {
	app := fiber.New()
	app.Use(middleware.JWTProtected(issuer), middleware.ResolveUser(lookup, zerolog.Nop()))
	app.Get("/me", func(c *fiber.Ctx) error {
		caller, ok := middleware.CallerFromContext(c)
		if !ok {
			return c.SendStatus(fiber.StatusTeapot)
		}
		return c.JSON(fiber.Map{"id": caller.ID, "role": caller.Role})
	})
	return app
}

func TestJWTProtectedResolvesCallerRoleFromStore(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Hour)
	lookup := &stubUserLookup{users: map[uint]models.User{9: {ID: 9, Role: models.RoleAdmin, StaffID: "1000"}}}
	app := newProtectedApp(issuer, lookup)

	token, err := issuer.Issue(9)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		ID   uint   `json:"id"`
		Role string `json:"role"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, uint(9), payload.ID)
	require.Equal(t, "admin", payload.Role)
	require.Equal(t, 1, lookup.calls)
}

func TestJWTProtectedRejectsMissingAndMalformedCredentials(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Hour)
	app := newProtectedApp(issuer, &stubUserLookup{})

	cases := map[string]string{
		"missing":   "",
		"scheme":    "Basic abc",
		"empty":     "Bearer   ",
		"malformed": "Bearer not-a-jwt",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

			var payload struct {
				Error string `json:"error"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
			require.NotEmpty(t, payload.Error)
		})
	}
}

func TestResolveUserRejectsDeletedAccount(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Hour)
	app := newProtectedApp(issuer, &stubUserLookup{users: map[uint]models.User{}})

	token, err := issuer.Issue(77)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestResolveUserStoreFailureIsInternalError(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Hour)
	app := newProtectedApp(issuer, &stubUserLookup{err: errors.New("connection reset")})

	token, err := issuer.Issue(3)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestCorrelationIDIsEchoed(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		require.Equal(t, middleware.GetCorrelationID(c), middleware.CorrelationIDFromContext(c.UserContext()))
		return c.SendString(middleware.GetCorrelationID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, "req-123", resp.Header.Get("X-Correlation-ID"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))
}

func TestRateLimitBlocksAfterBudget(t *testing.T) {
	app := fiber.New()
	app.Post("/auth/login", middleware.RateLimit("login", 2, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
	}
	require.Equal(t, []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}, statuses)
}
