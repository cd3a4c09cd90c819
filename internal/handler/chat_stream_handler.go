package handler

import (
	"context"

	"kbchat-be/internal/pkg/logger"
	"kbchat-be/internal/service"
	internalWS "kbchat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type ChatStreamHandler struct {
	chatbot service.IChatbotService
	logger  logger.ILogger
}

func NewChatStreamHandler(chatbot service.IChatbotService, log logger.ILogger) *ChatStreamHandler {
	return &ChatStreamHandler{chatbot: chatbot, logger: log}
}

func (h *ChatStreamHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/chat/ws", h.HandleWebSocket)
}

func (h *ChatStreamHandler) HandleWebSocket(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	// The fiber context is recycled once the upgrade returns; the stream
	// lives on its own context.
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("ChatStreamHandler", "Starting chat stream", map[string]interface{}{"remote": conn.RemoteAddr().String()})
		internalWS.ServeChat(context.Background(), conn, h.chatbot, h.logger)
		h.logger.Info("ChatStreamHandler", "Chat stream ended", nil)
	})(c)
}
