package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campusfix-api/internal/middleware"
	"github.com/noah-isme/campusfix-api/internal/models"
)

var (
	studentCaller = models.User{ID: 1, Name: "Ayu", Role: models.RoleStudent, StudentID: "S100", Email: "s100@student.local"}
	staffCaller   = models.User{ID: 2, Name: "Budi", Role: models.RoleStaff, StaffID: "5551", Email: "5551@staff.local"}
	adminCaller   = models.User{ID: 3, Name: "Rina", Role: models.RoleAdmin, StaffID: "A1", Email: "a1@admin.local"}
)

func discardLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// asCaller stands in for the JWT and ResolveUser chain.
func asCaller(user models.User) fiber.Handler {
	return func(c *fiber.Ctx) error {
		middleware.WithCaller(c, user)
		return c.Next()
	}
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return req
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}
