package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbchat-be/internal/constant"
	"kbchat-be/internal/entity"
	"kbchat-be/internal/pkg/apperror"
	"kbchat-be/internal/pkg/logger"
	"kbchat-be/internal/repository/memory"
	"kbchat-be/pkg/events"
	"kbchat-be/pkg/llm"
	"kbchat-be/pkg/rag/intent"
	"kbchat-be/pkg/rag/prompt"
)

type fakeRetriever struct {
	chunks    []entity.RetrievedChunk
	err       error
	lastLimit int
	calls     int
}

func (f *fakeRetriever) Search(_ context.Context, _ string, limit int) ([]entity.RetrievedChunk, error) {
	f.calls++
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

// echoGenerator answers with the last user message it was given.
type echoGenerator struct {
	err      error
	system   string
	messages []llm.Message
}

func (g *echoGenerator) Chat(_ context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	g.messages = history
	g.system = llm.ApplyOptions(llm.Options{}, opts...).System
	if g.err != nil {
		return "", g.err
	}
	return history[len(history)-1].Content, nil
}

type streamingGenerator struct {
	pieces []string
	err    error // returned after all pieces were delivered
}

func (g *streamingGenerator) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	return strings.Join(g.pieces, ""), nil
}

func (g *streamingGenerator) ChatStream(_ context.Context, _ []llm.Message, onDelta llm.DeltaFunc, _ ...llm.Option) (string, error) {
	for _, p := range g.pieces {
		onDelta(p)
	}
	if g.err != nil {
		return "", g.err
	}
	return strings.Join(g.pieces, ""), nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, e.EventType())
	return errors.New("bus unavailable") // must never fail the request
}

func newChatbot(retriever *fakeRetriever, generator llm.LLMProvider, analyzer *intent.Analyzer, pub IPublisherService) (IChatbotService, *memory.SessionRepository) {
	repo := memory.NewSessionRepository(time.Hour, 100)
	svc := NewChatbotService(repo, retriever, generator, analyzer, pub, logger.NewNopLogger(), ChatbotSettings{
		DefaultContextLimit: 5,
		RetrievalTimeout:    time.Second,
		GenerationTimeout:   time.Second,
	})
	return svc, repo
}

func TestHandleMessageReturnPolicyScenario(t *testing.T) {
	retriever := &fakeRetriever{chunks: []entity.RetrievedChunk{{Text: "Returns accepted within 30 days.", Score: 0.9}}}
	gen := &echoGenerator{}
	svc, _ := newChatbot(retriever, gen, nil, nil)
	ctx := context.Background()

	result, err := svc.HandleMessage(ctx, "s1", "What is the return policy?", 0)

	require.NoError(t, err)
	assert.Contains(t, result.Answer, "30 days")
	assert.Equal(t, "s1", result.SessionID)
	assert.Equal(t, constant.ChatModeRAG, result.Mode)
	assert.Len(t, result.UsedChunks, 1)
	assert.Equal(t, constant.DefaultSystemPrompt, gen.system)
	assert.Equal(t, 5, retriever.lastLimit)

	history, err := svc.GetHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, entity.ChatRoleUser, history[0].Role)
	assert.Equal(t, "What is the return policy?", history[0].Text)
	assert.Equal(t, entity.ChatRoleAssistant, history[1].Role)
	assert.Equal(t, result.Answer, history[1].Text)
}

func TestHandleMessageAccumulatesTwoTurnsPerCall(t *testing.T) {
	gen := &echoGenerator{}
	svc, _ := newChatbot(&fakeRetriever{}, gen, nil, nil)
	ctx := context.Background()

	const n = 4
	for i := 0; i < n; i++ {
		_, err := svc.HandleMessage(ctx, "s1", "question", 3)
		require.NoError(t, err)
	}

	history, err := svc.GetHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2*n)
	for i, turn := range history {
		if i%2 == 0 {
			assert.Equal(t, entity.ChatRoleUser, turn.Role)
		} else {
			assert.Equal(t, entity.ChatRoleAssistant, turn.Role)
		}
	}

	// Prior turns precede the composed question.
	require.Len(t, gen.messages, 2*(n-1)+1)
	assert.Equal(t, "question", gen.messages[0].Content)
	assert.Contains(t, gen.messages[len(gen.messages)-1].Content, prompt.NoContextMarker)
}

func TestHandleMessageRetrievalFailureKeepsOnlyUserTurn(t *testing.T) {
	retriever := &fakeRetriever{err: apperror.New(apperror.KindRetrievalUnavailable, "down")}
	gen := &echoGenerator{}
	svc, _ := newChatbot(retriever, gen, nil, nil)
	ctx := context.Background()

	_, err := svc.HandleMessage(ctx, "s1", "anything?", 0)

	require.Error(t, err)
	assert.Equal(t, apperror.KindRetrievalUnavailable, apperror.KindOf(err))
	assert.Nil(t, gen.messages, "generator must not be called")

	history, _ := svc.GetHistory(ctx, "s1")
	require.Len(t, history, 1)
	assert.Equal(t, entity.ChatRoleUser, history[0].Role)
}

func TestHandleMessageGenerationFailureKeepsOnlyUserTurn(t *testing.T) {
	gen := &echoGenerator{err: apperror.New(apperror.KindGenerationAuth, "bad key")}
	svc, _ := newChatbot(&fakeRetriever{}, gen, nil, nil)
	ctx := context.Background()

	_, err := svc.HandleMessage(ctx, "s1", "anything?", 0)
	assert.Equal(t, apperror.KindGenerationAuth, apperror.KindOf(err))

	history, _ := svc.GetHistory(ctx, "s1")
	assert.Len(t, history, 1)
}

func TestHandleMessageUnclassifiedGenerationError(t *testing.T) {
	svc, _ := newChatbot(&fakeRetriever{}, &echoGenerator{err: errors.New("boom")}, nil, nil)

	_, err := svc.HandleMessage(context.Background(), "s1", "q", 0)
	assert.Equal(t, apperror.KindGenerationUnavailable, apperror.KindOf(err))
}

func TestHandleMessageMergesDanglingUserTurns(t *testing.T) {
	gen := &echoGenerator{err: errors.New("boom")}
	svc, _ := newChatbot(&fakeRetriever{}, gen, nil, nil)
	ctx := context.Background()

	_, err := svc.HandleMessage(ctx, "s1", "first", 0)
	require.Error(t, err)

	gen.err = nil
	_, err = svc.HandleMessage(ctx, "s1", "second", 0)
	require.NoError(t, err)

	require.Len(t, gen.messages, 1)
	assert.Equal(t, llm.RoleUser, gen.messages[0].Role)
	assert.True(t, strings.HasPrefix(gen.messages[0].Content, "first\n\n"))
}

func TestHandleMessageValidation(t *testing.T) {
	svc, repo := newChatbot(&fakeRetriever{}, &echoGenerator{}, nil, nil)

	_, err := svc.HandleMessage(context.Background(), "s1", "   ", 0)
	assert.Equal(t, apperror.KindInvalidInput, apperror.KindOf(err))
	assert.Equal(t, 0, repo.Count())
}

func TestHandleMessageGeneratesSessionID(t *testing.T) {
	svc, _ := newChatbot(&fakeRetriever{}, &echoGenerator{}, nil, nil)

	result, err := svc.HandleMessage(context.Background(), "", "q", 0)
	require.NoError(t, err)
	assert.Len(t, result.SessionID, 36)
}

func TestHandleMessageClampsContextLimit(t *testing.T) {
	retriever := &fakeRetriever{}
	svc, _ := newChatbot(retriever, &echoGenerator{}, nil, nil)

	_, err := svc.HandleMessage(context.Background(), "s1", "q", 99)
	require.NoError(t, err)
	assert.Equal(t, 10, retriever.lastLimit)

	_, err = svc.HandleMessage(context.Background(), "s1", "q", -4)
	require.NoError(t, err)
	assert.Equal(t, 1, retriever.lastLimit)
}

func TestHandleMessageSmallTalkSkipsRetrieval(t *testing.T) {
	retriever := &fakeRetriever{}
	gen := &echoGenerator{}
	svc, _ := newChatbot(retriever, gen, intent.NewAnalyzer(), nil)

	result, err := svc.HandleMessage(context.Background(), "s1", "hello!", 0)

	require.NoError(t, err)
	assert.Equal(t, constant.ChatModeSmallTalk, result.Mode)
	assert.NotEmpty(t, result.Answer)
	assert.Equal(t, 0, retriever.calls)
	assert.Nil(t, gen.messages)

	history, _ := svc.GetHistory(context.Background(), "s1")
	assert.Len(t, history, 2)
}

func TestHandleMessageStreamRecordsFinalText(t *testing.T) {
	gen := &streamingGenerator{pieces: []string{"Within ", "30 ", "days."}}
	svc, _ := newChatbot(&fakeRetriever{}, gen, nil, nil)

	var deltas []string
	result, err := svc.HandleMessageStream(context.Background(), "s1", "q", 0, func(d string) { deltas = append(deltas, d) })

	require.NoError(t, err)
	assert.Equal(t, []string{"Within ", "30 ", "days."}, deltas)
	assert.Equal(t, "Within 30 days.", result.Answer)

	history, _ := svc.GetHistory(context.Background(), "s1")
	require.Len(t, history, 2)
	assert.Equal(t, "Within 30 days.", history[1].Text)
}

func TestHandleMessageStreamFailsAfterPartialOutput(t *testing.T) {
	gen := &streamingGenerator{pieces: []string{"Within ", "30 "}, err: errors.New("connection reset by peer")}
	pub := &recordingPublisher{}
	svc, _ := newChatbot(&fakeRetriever{}, gen, nil, pub)

	var deltas []string
	result, err := svc.HandleMessageStream(context.Background(), "s1", "q", 0, func(d string) { deltas = append(deltas, d) })

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, apperror.KindGenerationUnavailable, apperror.KindOf(err))
	assert.Equal(t, []string{"Within ", "30 "}, deltas)

	history, _ := svc.GetHistory(context.Background(), "s1")
	require.Len(t, history, 1)
	assert.Equal(t, entity.ChatRoleUser, history[0].Role)
	assert.Equal(t, []string{events.TypeChatFailed}, pub.types)
}

func TestClearSession(t *testing.T) {
	pub := &recordingPublisher{}
	svc, _ := newChatbot(&fakeRetriever{}, &echoGenerator{}, nil, pub)
	ctx := context.Background()

	_, err := svc.HandleMessage(ctx, "s1", "q", 0)
	require.NoError(t, err)

	require.NoError(t, svc.ClearSession(ctx, "s1"))
	history, err := svc.GetHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.Equal(t, []string{events.TypeChatCompleted, events.TypeSessionCleared}, pub.types)

	err = svc.ClearSession(ctx, "")
	assert.Equal(t, apperror.KindInvalidInput, apperror.KindOf(err))
}
