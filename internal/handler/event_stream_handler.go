package handler

import (
	"strings"

	"curiow-be/internal/pkg/logger"
	"curiow-be/internal/pkg/serverutils"
	internalWS "curiow-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// EventStreamHandler upgrades authenticated requests to a websocket that
// streams the user's deep-chat events.
type EventStreamHandler struct {
	hub       *internalWS.Hub
	jwtSecret string
	logger    logger.ILogger
}

func NewEventStreamHandler(hub *internalWS.Hub, jwtSecret string, log logger.ILogger) *EventStreamHandler {
	return &EventStreamHandler{hub: hub, jwtSecret: jwtSecret, logger: log}
}

// ServeWs accepts the token from the "token" query parameter (browsers cannot
// set headers on a websocket handshake) or from the Authorization header.
func (h *EventStreamHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		tokenStr = strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	}
	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Missing token (Query 'token' or Header 'Authorization')"))
	}

	userID, err := serverutils.ParseUserID(tokenStr, h.jwtSecret)
	if err != nil {
		h.logger.Warn("EventStream", "Rejected websocket handshake", map[string]interface{}{"ip": c.IP()})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		internalWS.Serve(h.hub, conn, userID)
	})(c)
}

func (h *EventStreamHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/events/ws", h.ServeWs)
}
