package dto

import (
	"kbchat-be/internal/entity"
)

type SendChatRequest struct {
	Message      string `json:"message" validate:"required"`
	SessionID    string `json:"session_id,omitempty" validate:"omitempty,max=128"`
	ContextLimit int    `json:"context_limit,omitempty" validate:"gte=0"` // 0 means the configured default
}

// ChatResult is what the orchestrator hands back for one user message.
type ChatResult struct {
	SessionID  string
	Answer     string
	Mode       string
	UsedChunks []entity.RetrievedChunk
}

type SendChatResponse struct {
	Response  string                  `json:"response"`
	SessionID string                  `json:"session_id"`
	Mode      string                  `json:"mode"`
	Context   []entity.RetrievedChunk `json:"context,omitempty"`
}

// ChatSessionRef travels in the error envelope of a failed chat so the
// client can still reach the recorded user turn.
type ChatSessionRef struct {
	SessionID string `json:"session_id"`
}

type ClearSessionRequest struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
}

type ClearSessionResponse struct {
	Status string `json:"status"`
}

type ChatHistoryResponse struct {
	SessionID string            `json:"session_id"`
	Turns     []entity.ChatTurn `json:"turns"`
}

// StreamFrame is one websocket message of a streamed answer.
type StreamFrame struct {
	Type      string                  `json:"type"` // session | delta | done | error
	SessionID string                  `json:"session_id,omitempty"`
	Delta     string                  `json:"delta,omitempty"`
	Response  string                  `json:"response,omitempty"`
	Mode      string                  `json:"mode,omitempty"`
	Context   []entity.RetrievedChunk `json:"context,omitempty"`
	Code      int                     `json:"code,omitempty"`
	ErrorType string                  `json:"error_type,omitempty"`
	Message   string                  `json:"message,omitempty"`
}

const (
	FrameSession = "session"
	FrameDelta   = "delta"
	FrameDone    = "done"
	FrameError   = "error"
)
