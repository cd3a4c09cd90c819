package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"kbchat-be/pkg/llm"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	defaultMaxTokens = 1024
)

// Provider talks to the Anthropic Messages API.
type Provider struct {
	ModelName string
	MaxTokens int
	client    sdk.Client
}

var _ llm.StreamingProvider = &Provider{}

func NewProvider(baseURL, apiKey, modelName string, maxTokens int, timeout time.Duration) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Provider{
		ModelName: modelName,
		MaxTokens: maxTokens,
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(strings.TrimRight(baseURL, "/")),
			option.WithHTTPClient(&http.Client{Timeout: timeout}),
			// one attempt per request, callers decide what a failure means
			option.WithMaxRetries(0),
		),
	}
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	msg, err := p.client.Messages.New(ctx, p.params(history, opts...))
	if err != nil {
		return "", classify(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// ChatStream forwards text deltas as they arrive and returns their concatenation.
func (p *Provider) ChatStream(ctx context.Context, history []llm.Message, onDelta llm.DeltaFunc, opts ...llm.Option) (string, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.params(history, opts...))
	defer stream.Close()

	var full strings.Builder
	for stream.Next() {
		event, ok := stream.Current().AsAny().(sdk.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		delta, ok := event.Delta.AsAny().(sdk.TextDelta)
		if !ok || delta.Text == "" {
			continue
		}
		full.WriteString(delta.Text)
		if onDelta != nil {
			onDelta(delta.Text)
		}
	}
	if err := stream.Err(); err != nil {
		return "", classify(err)
	}
	return full.String(), nil
}

func (p *Provider) params(history []llm.Message, opts ...llm.Option) sdk.MessageNewParams {
	options := llm.ApplyOptions(llm.Options{MaxTokens: p.MaxTokens, Model: p.ModelName}, opts...)

	messages := make([]sdk.MessageParam, 0, len(history))
	for _, m := range history {
		block := sdk.NewTextBlock(m.Content)
		if m.Role == llm.RoleAssistant {
			messages = append(messages, sdk.NewAssistantMessage(block))
		} else {
			messages = append(messages, sdk.NewUserMessage(block))
		}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(options.Model),
		MaxTokens: int64(options.MaxTokens),
		Messages:  messages,
	}
	if options.System != "" {
		params.System = []sdk.TextBlockParam{{Text: options.System}}
	}
	if options.Temperature > 0 {
		params.Temperature = sdk.Float(options.Temperature)
	}
	return params
}

// classify maps SDK errors onto the generation error kinds. Anything that is
// not an API status error never got an answer from the service.
func classify(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return llm.StatusError("anthropic", apiErr.StatusCode, apiErr.Error())
	}
	return llm.TransportError("anthropic", err)
}
