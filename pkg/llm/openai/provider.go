package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	goopenai "github.com/sashabaranov/go-openai"

	"kbchat-be/pkg/llm"
)

// Provider serves any OpenAI-compatible chat completions endpoint.
type Provider struct {
	ModelName string
	MaxTokens int
	client    *goopenai.Client
}

var _ llm.StreamingProvider = &Provider{}

func NewProvider(baseURL, apiKey, modelName string, maxTokens int, timeout time.Duration) *Provider {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Provider{
		ModelName: modelName,
		MaxTokens: maxTokens,
		client:    goopenai.NewClientWithConfig(cfg),
	}
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(history, false, opts...))
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", llm.StatusError("openai", http.StatusBadGateway, "response contained no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) ChatStream(ctx context.Context, history []llm.Message, onDelta llm.DeltaFunc, opts ...llm.Option) (string, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, p.request(history, true, opts...))
	if err != nil {
		return "", classify(err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return full.String(), nil
		}
		if err != nil {
			return "", classify(err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
}

func (p *Provider) request(history []llm.Message, stream bool, opts ...llm.Option) goopenai.ChatCompletionRequest {
	options := llm.ApplyOptions(llm.Options{MaxTokens: p.MaxTokens, Model: p.ModelName}, opts...)

	messages := make([]goopenai.ChatCompletionMessage, 0, len(history)+1)
	if options.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: options.System})
	}
	for _, m := range history {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	return goopenai.ChatCompletionRequest{
		Model:       options.Model,
		Messages:    messages,
		MaxTokens:   options.MaxTokens,
		Temperature: float32(options.Temperature),
		Stream:      stream,
	}
}

func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return llm.StatusError("openai", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return llm.StatusError("openai", reqErr.HTTPStatusCode, reqErr.Error())
	}
	return llm.TransportError("openai", pkgerrors.WithStack(err))
}
