package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campusfix-api/internal/dto"
	"github.com/noah-isme/campusfix-api/internal/middleware"
	"github.com/noah-isme/campusfix-api/internal/models"
	"github.com/noah-isme/campusfix-api/internal/service"
)

const (
	realtimeCallerKey  = "realtime_caller"
	realtimeContextKey = "request_ctx"
	realtimePingPeriod = 30 * time.Second
)

// RealtimeHandler streams report events over a websocket.
type RealtimeHandler struct {
	hub    service.ReportEventHub
	logger zerolog.Logger
}

// NewRealtimeHandler creates a realtime handler instance.
func NewRealtimeHandler(hub service.ReportEventHub, logger zerolog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		hub:    hub,
		logger: logger.With().Str("component", "realtime_handler").Logger(),
	}
}

// Register binds the websocket route. The router must already authenticate the caller.
func (h *RealtimeHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		caller, ok := middleware.CallerFromContext(c)
		if !ok {
			return unauthenticated(c)
		}
		c.Locals(realtimeCallerKey, caller)
		c.Locals(realtimeContextKey, requestContext(c))
		return c.Next()
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *RealtimeHandler) handleConnection(conn *websocket.Conn) {
	caller, ok := conn.Locals(realtimeCallerKey).(models.User)
	if !ok {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication required"))
		_ = conn.Close()
		return
	}

	baseCtx, _ := conn.Locals(realtimeContextKey).(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	events, unsubscribe := h.hub.Subscribe(caller)
	defer unsubscribe()

	logger := h.logger.With().Uint("user_id", caller.ID).Str("role", caller.Role.String()).Logger()
	logger.Info().Msg("realtime websocket connected")

	// Clients never send anything meaningful; the read loop only notices the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.stream(ctx, conn, events, logger)
	_ = conn.Close()
	logger.Info().Msg("realtime websocket disconnected")
}

func (h *RealtimeHandler) stream(ctx context.Context, conn *websocket.Conn, events <-chan dto.ReportEvent, logger zerolog.Logger) {
	ticker := time.NewTicker(realtimePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Msg("realtime write loop terminated")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				logger.Debug().Err(err).Msg("realtime ping failed")
				return
			}
		}
	}
}
