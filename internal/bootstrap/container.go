package bootstrap

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"kbchat-be/internal/config"
	"kbchat-be/internal/constant"
	"kbchat-be/internal/controller"
	"kbchat-be/internal/handler"
	"kbchat-be/internal/pkg/logger"
	"kbchat-be/internal/repository/contract"
	"kbchat-be/internal/repository/memory"
	"kbchat-be/internal/repository/redisstore"
	"kbchat-be/internal/service"
	"kbchat-be/pkg/llm/factory"
	pktNats "kbchat-be/pkg/nats"
	"kbchat-be/pkg/rag/intent"
	"kbchat-be/pkg/retrieval/supermemory"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type Container struct {
	Logger logger.ILogger

	// Controllers
	ChatbotController  controller.IChatbotController
	DocumentController controller.IDocumentController
	ChatStreamHandler  *handler.ChatStreamHandler

	// Services
	ChatbotService service.IChatbotService
	IngestService  service.IIngestService

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	closers []func()
}

func NewContainer(cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	c := &Container{Logger: sysLogger}

	// 2. Event Bus
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	c.closers = append(c.closers, func() { _ = pubSub.Close() })
	publisherService := service.NewPublisherService(pubSub, service.EventTopic)

	var sink service.EventSink
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			sink = natsPub
			c.closers = append(c.closers, natsPub.Close)
		}
	}
	c.ConsumerService = service.NewConsumerService(pubSub, service.EventTopic, sink, sysLogger)

	// 3. Session Store
	sessions, err := c.newSessionRepository(cfg)
	if err != nil {
		return nil, err
	}

	// 4. External Clients
	knowledgeBase := supermemory.NewClient(cfg.Ai.RetrievalBaseURL, cfg.Keys.Supermemory, cfg.Ai.RetrievalTag, cfg.Ai.RetrievalTimeout)

	llmProvider, err := factory.NewLLMProvider(factory.ProviderConfig{
		Provider:  cfg.Ai.LLMProvider,
		Model:     cfg.Ai.LLMModel,
		BaseURL:   cfg.Ai.LLMBaseURL,
		APIKey:    llmAPIKey(cfg),
		MaxTokens: cfg.Ai.LLMMaxTokens,
		Timeout:   cfg.Ai.GenerationTimeout,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", strings.ToUpper(cfg.Ai.LLMProvider), cfg.Ai.LLMModel)

	// 5. Services
	var analyzer *intent.Analyzer
	if cfg.Ai.SmallTalkEnabled {
		analyzer = intent.NewAnalyzer()
	}

	c.ChatbotService = service.NewChatbotService(sessions, knowledgeBase, llmProvider, analyzer, publisherService, sysLogger, service.ChatbotSettings{
		SystemPrompt:        loadSystemPrompt(cfg.Ai.SystemPromptFile),
		DefaultContextLimit: cfg.Ai.ContextLimit,
		RetrievalTimeout:    cfg.Ai.RetrievalTimeout,
		GenerationTimeout:   cfg.Ai.GenerationTimeout,
	})
	c.IngestService = service.NewIngestService(knowledgeBase, cfg.Ingest.ContainerTag, publisherService, sysLogger)

	// 6. Controllers
	c.ChatbotController = controller.NewChatbotController(c.ChatbotService)
	c.DocumentController = controller.NewDocumentController(c.IngestService, cfg.Ingest.DocsPath)
	c.ChatStreamHandler = handler.NewChatStreamHandler(c.ChatbotService, sysLogger)

	return c, nil
}

// NewIngestService wires only what uploading needs. Used by the ingest CLI.
func NewIngestService(cfg *config.Config, log logger.ILogger) service.IIngestService {
	knowledgeBase := supermemory.NewClient(cfg.Ai.RetrievalBaseURL, cfg.Keys.Supermemory, cfg.Ai.RetrievalTag, cfg.Ai.RetrievalTimeout)
	return service.NewIngestService(knowledgeBase, cfg.Ingest.ContainerTag, nil, log)
}

func (c *Container) newSessionRepository(cfg *config.Config) (contract.SessionRepository, error) {
	switch cfg.Session.Backend {
	case "", "memory":
		return memory.NewSessionRepository(cfg.Session.TTL, cfg.Session.MaxTurns), nil
	case "redis":
		if cfg.App.RedisURL == "" {
			return nil, fmt.Errorf("SESSION_BACKEND=redis requires REDIS_URL")
		}
		rdb, err := redisstore.NewClient(context.Background(), cfg.App.RedisURL)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() { _ = rdb.Close() })
		return redisstore.NewSessionRepository(rdb, cfg.Session.TTL, cfg.Session.MaxTurns), nil
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.Session.Backend)
	}
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}

func llmAPIKey(cfg *config.Config) string {
	if cfg.Ai.LLMProvider == "openai" {
		return cfg.Keys.OpenAI
	}
	return cfg.Keys.Anthropic
}

func loadSystemPrompt(path string) string {
	if path == "" {
		return constant.DefaultSystemPrompt
	}
	raw, err := os.ReadFile(path)
	if err != nil || strings.TrimSpace(string(raw)) == "" {
		log.Printf("[WARN] Cannot use system prompt file %s (%v), falling back to default", path, err)
		return constant.DefaultSystemPrompt
	}
	return string(raw)
}
