package controller

import (
	"kbchat-be/internal/constant"
	"kbchat-be/internal/dto"
	"kbchat-be/internal/entity"
	"kbchat-be/internal/pkg/serverutils"
	"kbchat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IChatbotController interface {
	RegisterRoutes(r fiber.Router)
	SendChat(ctx *fiber.Ctx) error
	ClearSession(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
}

type chatbotController struct {
	service service.IChatbotService
}

func NewChatbotController(service service.IChatbotService) IChatbotController {
	return &chatbotController{service: service}
}

func (c *chatbotController) RegisterRoutes(r fiber.Router) {
	r.Post("/chat", c.SendChat)
	r.Post("/clear-session", c.ClearSession)
	r.Get("/history/:session_id", c.GetHistory)
}

// SendChat answers one message. ?include_context=true adds the retrieved chunks.
func (c *chatbotController) SendChat(ctx *fiber.Ctx) error {
	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	// Generated here so a failed answer can still name the session.
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	res, err := c.service.HandleMessage(ctx.UserContext(), req.SessionID, req.Message, req.ContextLimit)
	if err != nil {
		return serverutils.WithData(err, dto.ChatSessionRef{SessionID: req.SessionID})
	}

	out := dto.SendChatResponse{
		Response:  res.Answer,
		SessionID: res.SessionID,
		Mode:      res.Mode,
	}
	if ctx.QueryBool("include_context") {
		out.Context = res.UsedChunks
		if out.Context == nil {
			out.Context = []entity.RetrievedChunk{}
		}
	}
	return ctx.JSON(out)
}

func (c *chatbotController) ClearSession(ctx *fiber.Ctx) error {
	var req dto.ClearSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.service.ClearSession(ctx.UserContext(), req.SessionID); err != nil {
		return err
	}
	return ctx.JSON(dto.ClearSessionResponse{Status: constant.SessionClearedStatus})
}

func (c *chatbotController) GetHistory(ctx *fiber.Ctx) error {
	sessionID := ctx.Params("session_id")

	turns, err := c.service.GetHistory(ctx.UserContext(), sessionID)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get chat history", dto.ChatHistoryResponse{
		SessionID: sessionID,
		Turns:     turns,
	}))
}
