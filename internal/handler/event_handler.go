package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/promptlab-api/internal/dto"
	"github.com/noah-isme/promptlab-api/internal/middleware"
	"github.com/noah-isme/promptlab-api/internal/service"
	"github.com/noah-isme/promptlab-api/internal/utils"
)

const (
	transportSSE       = "sse"
	transportWebsocket = "websocket"
)

// EventHandler streams project status changes over SSE and websockets.
type EventHandler struct {
	service   service.EventService
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewEventHandler constructs a handler instance.
func NewEventHandler(service service.EventService, logger zerolog.Logger, keepAlive time.Duration) *EventHandler {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &EventHandler{
		service:   service,
		logger:    logger.With().Str("component", "event_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the stream routes.
func (h *EventHandler) Register(router fiber.Router) {
	router.Get("/stream", h.stream)

	router.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if userIDFromContext(c) == 0 {
			return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
		}
		c.Locals("request_ctx", requestContext(c))
		return c.Next()
	})
	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *EventHandler) stream(c *fiber.Ctx) error {
	actor := activityActorFromContext(c)
	if actor.ID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(requestContext(c))
	events, cleanup := h.service.Subscribe(actor, transportSSE)
	logger := requestLogger(h.logger, c).With().Uint("user_id", actor.ID).Logger()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		ticker := time.NewTicker(h.keepAlive / 2)
		defer ticker.Stop()

		// Flush headers so clients see the stream open before the first event.
		if err := writeKeepAlive(w); err != nil {
			return
		}

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := writeStatusEvent(w, event); err != nil {
					logger.Debug().Err(err).Msg("failed to write status event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					logger.Debug().Err(err).Msg("failed to write keepalive")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func (h *EventHandler) handleConnection(conn *websocket.Conn) {
	actor := service.ActivityActor{ID: websocketUserID(conn), Role: websocketUserRole(conn)}
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	logger := h.logger.With().
		Uint("user_id", actor.ID).
		Str("correlation_id", middleware.CorrelationIDFromContext(ctx)).
		Logger()

	events, cleanup := h.service.Subscribe(actor, transportWebsocket)
	defer cleanup()

	logger.Info().Msg("event websocket connected")
	defer logger.Info().Msg("event websocket disconnected")

	// Reads only detect the peer closing; clients never send events.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.keepAlive / 2)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.keepAlive))
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Msg("failed to write status event")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.keepAlive)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func writeStatusEvent(w *bufio.Writer, event dto.StatusChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: status\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}

func websocketUserID(conn *websocket.Conn) uint {
	switch v := conn.Locals("user_id").(type) {
	case uint:
		return v
	case int:
		if v > 0 {
			return uint(v)
		}
	}
	return 0
}

func websocketUserRole(conn *websocket.Conn) string {
	role, _ := conn.Locals("user_role").(string)
	return role
}
