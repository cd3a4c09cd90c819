package contract

import (
	"context"

	"kbchat-be/internal/entity"
)

// SessionRepository keeps the ordered chat turns of each session.
// Unknown session ids behave like empty sessions on every method.
type SessionRepository interface {
	Append(ctx context.Context, sessionID string, turns ...entity.ChatTurn) error
	GetHistory(ctx context.Context, sessionID string) ([]entity.ChatTurn, error)
	Clear(ctx context.Context, sessionID string) error
}
