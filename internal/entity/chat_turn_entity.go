package entity

import "time"

type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatTurn is one message of a session. Turns are values and are never
// mutated after being appended to a session.
type ChatTurn struct {
	Role      ChatRole  `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func NewUserTurn(text string, at time.Time) ChatTurn {
	return ChatTurn{Role: ChatRoleUser, Text: text, CreatedAt: at}
}

func NewAssistantTurn(text string, at time.Time) ChatTurn {
	return ChatTurn{Role: ChatRoleAssistant, Text: text, CreatedAt: at}
}

// RetrievedChunk is a unit of context returned by the knowledge base.
type RetrievedChunk struct {
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
	SourceTag string  `json:"source_tag,omitempty"`
}
