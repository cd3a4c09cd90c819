package llm

import (
	"context"
	"fmt"
	"net/http"

	"kbchat-be/internal/pkg/apperror"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	System      string
	Temperature float64 // 0 leaves the provider default
	MaxTokens   int
	Model       string // Override default model
}

func WithSystem(system string) Option {
	return func(o *Options) {
		o.System = system
	}
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// ApplyOptions folds opts over defaults.
func ApplyOptions(defaults Options, opts ...Option) *Options {
	o := defaults
	for _, opt := range opts {
		opt(&o)
	}
	return &o
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)
}

// DeltaFunc receives generated text as it arrives.
type DeltaFunc func(delta string)

// StreamingProvider is implemented by backends that can deliver partial output.
// The returned string is the complete answer, identical to the concatenated deltas.
type StreamingProvider interface {
	LLMProvider
	ChatStream(ctx context.Context, history []Message, onDelta DeltaFunc, options ...Option) (string, error)
}

// Stream uses ChatStream when p supports it, otherwise Chat followed by a single delta.
func Stream(ctx context.Context, p LLMProvider, history []Message, onDelta DeltaFunc, options ...Option) (string, error) {
	if sp, ok := p.(StreamingProvider); ok {
		return sp.ChatStream(ctx, history, onDelta, options...)
	}
	answer, err := p.Chat(ctx, history, options...)
	if err != nil {
		return "", err
	}
	if onDelta != nil {
		onDelta(answer)
	}
	return answer, nil
}

// StatusError classifies a non-2xx answer from a generation backend.
func StatusError(provider string, status int, body string) error {
	msg := fmt.Sprintf("%s api error (status %d): %s", provider, status, body)
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return apperror.New(apperror.KindGenerationAuth, msg)
	}
	return apperror.New(apperror.KindGenerationUnavailable, msg)
}

// TransportError classifies a failure to reach a generation backend at all.
func TransportError(provider string, err error) error {
	return apperror.Wrap(apperror.KindGenerationUnavailable, err, provider+" request failed")
}
