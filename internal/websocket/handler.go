package websocket

import (
	"context"
	"encoding/json"

	"kbchat-be/internal/dto"
	"kbchat-be/internal/pkg/logger"
	"kbchat-be/internal/pkg/serverutils"
	"kbchat-be/internal/service"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeChat streams answers for the lifetime of one websocket connection.
// Each inbound frame is a dto.SendChatRequest; the reply is a "session" frame,
// any number of "delta" frames, then "done" or "error".
func ServeChat(ctx context.Context, conn *websocket.Conn, chatbot service.IChatbotService, log logger.ILogger) {
	client := NewClient(conn, log)
	done := make(chan struct{})
	go client.writePump(done)

	client.readPump(func(raw []byte) {
		handleFrame(ctx, client, chatbot, raw)
	})
	<-done
}

func handleFrame(ctx context.Context, client *Client, chatbot service.IChatbotService, raw []byte) {
	var req dto.SendChatRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		client.sendJSON(dto.StreamFrame{Type: dto.FrameError, Code: 400, ErrorType: "INVALID_INPUT", Message: "invalid frame"})
		return
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		sendError(client, err)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	client.sendJSON(dto.StreamFrame{Type: dto.FrameSession, SessionID: sessionID})

	res, err := chatbot.HandleMessageStream(ctx, sessionID, req.Message, req.ContextLimit, func(delta string) {
		client.sendJSON(dto.StreamFrame{Type: dto.FrameDelta, Delta: delta})
	})
	if err != nil {
		sendError(client, err)
		return
	}

	client.sendJSON(dto.StreamFrame{
		Type:      dto.FrameDone,
		SessionID: res.SessionID,
		Response:  res.Answer,
		Mode:      res.Mode,
		Context:   res.UsedChunks,
	})
}

func sendError(client *Client, err error) {
	code, errorType, message := serverutils.Describe(err)
	client.sendJSON(dto.StreamFrame{Type: dto.FrameError, Code: code, ErrorType: errorType, Message: message})
}
