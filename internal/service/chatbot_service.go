package service

import (
	"context"
	"strings"
	"time"

	"kbchat-be/internal/config"
	"kbchat-be/internal/constant"
	"kbchat-be/internal/dto"
	"kbchat-be/internal/entity"
	"kbchat-be/internal/pkg/apperror"
	"kbchat-be/internal/pkg/logger"
	"kbchat-be/internal/repository/contract"
	"kbchat-be/pkg/events"
	"kbchat-be/pkg/llm"
	"kbchat-be/pkg/rag/intent"
	"kbchat-be/pkg/rag/prompt"
	"kbchat-be/pkg/retrieval"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const chatbotModule = "CHATBOT"

var chatTracer = otel.Tracer("kbchat-be/chatbot")

// IChatbotService answers chat messages against the knowledge base.
type IChatbotService interface {
	HandleMessage(ctx context.Context, sessionID, userText string, contextLimit int) (*dto.ChatResult, error)
	// HandleMessageStream delivers the answer incrementally to onDelta.
	// The recorded assistant turn equals the returned Answer.
	HandleMessageStream(ctx context.Context, sessionID, userText string, contextLimit int, onDelta llm.DeltaFunc) (*dto.ChatResult, error)
	GetHistory(ctx context.Context, sessionID string) ([]entity.ChatTurn, error)
	ClearSession(ctx context.Context, sessionID string) error
}

type ChatbotSettings struct {
	SystemPrompt        string
	DefaultContextLimit int
	RetrievalTimeout    time.Duration
	GenerationTimeout   time.Duration
}

type chatbotService struct {
	sessions  contract.SessionRepository
	retriever retrieval.Retriever
	generator llm.LLMProvider
	analyzer  *intent.Analyzer // nil disables the small-talk shortcut
	publisher IPublisherService
	logger    logger.ILogger
	settings  ChatbotSettings
	now       func() time.Time
}

func NewChatbotService(
	sessions contract.SessionRepository,
	retriever retrieval.Retriever,
	generator llm.LLMProvider,
	analyzer *intent.Analyzer,
	publisher IPublisherService,
	log logger.ILogger,
	settings ChatbotSettings,
) IChatbotService {
	if settings.SystemPrompt == "" {
		settings.SystemPrompt = constant.DefaultSystemPrompt
	}
	if publisher == nil {
		publisher = NewNopPublisherService()
	}
	return &chatbotService{
		sessions:  sessions,
		retriever: retriever,
		generator: generator,
		analyzer:  analyzer,
		publisher: publisher,
		logger:    log,
		settings:  settings,
		now:       time.Now,
	}
}

func (cs *chatbotService) HandleMessage(ctx context.Context, sessionID, userText string, contextLimit int) (*dto.ChatResult, error) {
	return cs.handle(ctx, sessionID, userText, contextLimit, nil)
}

func (cs *chatbotService) HandleMessageStream(ctx context.Context, sessionID, userText string, contextLimit int, onDelta llm.DeltaFunc) (*dto.ChatResult, error) {
	if onDelta == nil {
		onDelta = func(string) {}
	}
	return cs.handle(ctx, sessionID, userText, contextLimit, onDelta)
}

func (cs *chatbotService) handle(ctx context.Context, sessionID, userText string, contextLimit int, onDelta llm.DeltaFunc) (*dto.ChatResult, error) {
	ctx, span := chatTracer.Start(ctx, "chatbot.HandleMessage")
	defer span.End()

	// 1. Validate
	if strings.TrimSpace(userText) == "" {
		return nil, apperror.New(apperror.KindInvalidInput, "message must not be empty")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	limit := contextLimit
	if limit == 0 {
		limit = cs.settings.DefaultContextLimit
	}
	limit = config.ClampContextLimit(limit)
	span.SetAttributes(
		attribute.String("chat.session_id", sessionID),
		attribute.Int("chat.context_limit", limit),
		attribute.Bool("chat.stream", onDelta != nil),
	)

	// 2. Record the question. It stays even if a later step fails.
	prior, err := cs.sessions.GetHistory(ctx, sessionID)
	if err != nil {
		return nil, cs.fail(ctx, span, sessionID, "load_history", err)
	}
	if err := cs.sessions.Append(ctx, sessionID, entity.NewUserTurn(userText, cs.now())); err != nil {
		return nil, cs.fail(ctx, span, sessionID, "record_question", err)
	}

	// 3. Small talk never reaches the knowledge base
	if cs.analyzer != nil {
		if r := cs.analyzer.Analyze(userText); r.IsSmallTalk() {
			return cs.answerSmallTalk(ctx, span, sessionID, r, onDelta)
		}
	}

	// 4. Retrieve
	chunks, err := cs.retrieve(ctx, userText, limit)
	if err != nil {
		return nil, cs.fail(ctx, span, sessionID, "retrieve", err)
	}
	span.SetAttributes(attribute.Int("chat.chunks", len(chunks)))

	// 5. Compose
	composed := prompt.Compose(cs.settings.SystemPrompt, chunks, userText)
	messages := buildMessages(prior, composed.Render())

	// 6. Generate
	answer, err := cs.generate(ctx, messages, composed.Preamble, onDelta)
	if err != nil {
		return nil, cs.fail(ctx, span, sessionID, "generate", err)
	}

	// 7. Record the answer
	if err := cs.sessions.Append(ctx, sessionID, entity.NewAssistantTurn(answer, cs.now())); err != nil {
		return nil, cs.fail(ctx, span, sessionID, "record_answer", err)
	}

	cs.logger.Info(chatbotModule, "Answered chat message", map[string]interface{}{
		"session_id":  sessionID,
		"chunks":      len(chunks),
		"has_context": composed.HasContext(),
	})
	cs.emit(ctx, events.New(events.TypeChatCompleted, map[string]interface{}{
		"session_id": sessionID,
		"chunks":     len(chunks),
		"mode":       constant.ChatModeRAG,
	}))

	return &dto.ChatResult{
		SessionID:  sessionID,
		Answer:     answer,
		Mode:       constant.ChatModeRAG,
		UsedChunks: chunks,
	}, nil
}

func (cs *chatbotService) answerSmallTalk(ctx context.Context, span trace.Span, sessionID string, r intent.Result, onDelta llm.DeltaFunc) (*dto.ChatResult, error) {
	span.SetAttributes(attribute.String("chat.smalltalk", string(r.Category)))

	if err := cs.sessions.Append(ctx, sessionID, entity.NewAssistantTurn(r.Reply, cs.now())); err != nil {
		return nil, cs.fail(ctx, span, sessionID, "record_answer", err)
	}
	if onDelta != nil {
		onDelta(r.Reply)
	}

	cs.emit(ctx, events.New(events.TypeSmallTalk, map[string]interface{}{
		"session_id": sessionID,
		"category":   string(r.Category),
	}))

	return &dto.ChatResult{
		SessionID:  sessionID,
		Answer:     r.Reply,
		Mode:       constant.ChatModeSmallTalk,
		UsedChunks: []entity.RetrievedChunk{},
	}, nil
}

func (cs *chatbotService) retrieve(ctx context.Context, query string, limit int) ([]entity.RetrievedChunk, error) {
	if cs.settings.RetrievalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cs.settings.RetrievalTimeout)
		defer cancel()
	}

	chunks, err := cs.retriever.Search(ctx, query, limit)
	if err != nil {
		if apperror.KindOf(err) == "" {
			err = apperror.Wrap(apperror.KindRetrievalUnavailable, err, "knowledge base search failed")
		}
		return nil, err
	}
	if len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

func (cs *chatbotService) generate(ctx context.Context, messages []llm.Message, system string, onDelta llm.DeltaFunc) (string, error) {
	if cs.settings.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cs.settings.GenerationTimeout)
		defer cancel()
	}

	var (
		answer string
		err    error
	)
	if onDelta != nil {
		answer, err = llm.Stream(ctx, cs.generator, messages, onDelta, llm.WithSystem(system))
	} else {
		answer, err = cs.generator.Chat(ctx, messages, llm.WithSystem(system))
	}
	if err != nil && apperror.KindOf(err) == "" {
		err = apperror.Wrap(apperror.KindGenerationUnavailable, err, "generation failed")
	}
	return answer, err
}

func (cs *chatbotService) fail(ctx context.Context, span trace.Span, sessionID, stage string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, stage)

	cs.logger.Error(chatbotModule, "Chat message failed", map[string]interface{}{
		"session_id": sessionID,
		"stage":      stage,
		"kind":       string(apperror.KindOf(err)),
		"error":      err.Error(),
	})
	cs.emit(ctx, events.New(events.TypeChatFailed, map[string]interface{}{
		"session_id": sessionID,
		"stage":      stage,
		"kind":       string(apperror.KindOf(err)),
	}))
	return err
}

func (cs *chatbotService) GetHistory(ctx context.Context, sessionID string) ([]entity.ChatTurn, error) {
	if sessionID == "" {
		return nil, apperror.New(apperror.KindInvalidInput, "session_id is required")
	}
	return cs.sessions.GetHistory(ctx, sessionID)
}

func (cs *chatbotService) ClearSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return apperror.New(apperror.KindInvalidInput, "session_id is required")
	}
	if err := cs.sessions.Clear(ctx, sessionID); err != nil {
		return err
	}
	cs.emit(ctx, events.New(events.TypeSessionCleared, map[string]interface{}{"session_id": sessionID}))
	return nil
}

// emit never fails the request.
func (cs *chatbotService) emit(ctx context.Context, event events.Event) {
	if err := cs.publisher.Publish(ctx, event); err != nil {
		cs.logger.Warn(chatbotModule, "Failed to publish event", map[string]interface{}{
			"event_type": event.EventType(),
			"error":      err.Error(),
		})
	}
}

// buildMessages puts the prior turns ahead of the composed question. Consecutive
// turns of the same role (left by failed requests) are merged, since chat APIs
// expect alternating roles.
func buildMessages(prior []entity.ChatTurn, question string) []llm.Message {
	messages := make([]llm.Message, 0, len(prior)+1)
	push := func(role, content string) {
		if n := len(messages); n > 0 && messages[n-1].Role == role {
			messages[n-1].Content += "\n\n" + content
			return
		}
		messages = append(messages, llm.Message{Role: role, Content: content})
	}
	for _, t := range prior {
		push(string(t.Role), t.Text)
	}
	push(llm.RoleUser, question)
	return messages
}
