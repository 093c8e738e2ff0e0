package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"kb-assistant-be/internal/constant"
	"kb-assistant-be/internal/dto"
	"kb-assistant-be/internal/entity"
	"kb-assistant-be/internal/pkg/apperror"
	"kb-assistant-be/internal/repository/contract"
	"kb-assistant-be/pkg/chat/ratelimit"
	"kb-assistant-be/pkg/llm"
	"kb-assistant-be/pkg/rag/search"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	deltas    []string
	streamErr error
	gotPrompt string
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return strings.Join(f.deltas, ""), nil
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return strings.Join(f.deltas, ""), nil
}

func (f *fakeLLM) ChatStream(ctx context.Context, history []llm.Message, onDelta llm.DeltaFunc, options ...llm.Option) (string, error) {
	if len(history) > 0 {
		f.gotPrompt = history[len(history)-1].Content
	}
	if f.streamErr != nil {
		return "", f.streamErr
	}
	var full strings.Builder
	for _, d := range f.deltas {
		if err := onDelta(d); err != nil {
			return "", err
		}
		full.WriteString(d)
	}
	return full.String(), nil
}

type fakeQuestionEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeQuestionEmbedder) Initialize(ctx context.Context, onProgress func(progress int)) error {
	return nil
}

func (f *fakeQuestionEmbedder) EmbedBatch(ctx context.Context, texts []string, onProgress func(completed, total int)) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = make([]float32, entity.EmbeddingDim)
		if onProgress != nil {
			onProgress(i+1, len(texts))
		}
	}
	return vectors, nil
}

func (f *fakeQuestionEmbedder) EmbedQuestion(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

type sentEvent struct {
	event   string
	payload interface{}
}

type memSink struct {
	events []sentEvent
}

func (s *memSink) Send(event string, payload interface{}) error {
	s.events = append(s.events, sentEvent{event: event, payload: payload})
	return nil
}

type chatFixture struct {
	uow      *fakeUnitOfWork
	llm      *fakeLLM
	embedder *fakeQuestionEmbedder
	service  IChatService
}

func newChatFixture(t *testing.T, maxPerWindow int) *chatFixture {
	t.Helper()
	uow := newFakeUnitOfWork()
	provider := &fakeLLM{deltas: []string{"The ", "answer."}}
	embedder := &fakeQuestionEmbedder{vector: make([]float32, entity.EmbeddingDim)}
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), time.Minute, maxPerWindow)
	retriever := search.NewRetriever(uow, search.DefaultOptions())
	svc := NewChatService(&fakeUowFactory{uow: uow}, provider, embedder, retriever, limiter, noopLogger{}, ChatOptions{EvidenceThreshold: 0.2})
	return &chatFixture{uow: uow, llm: provider, embedder: embedder, service: svc}
}

func validRequest(message string) *dto.SendChatRequest {
	return &dto.SendChatRequest{
		Message:   message,
		MessageId: uuid.NewString(),
	}
}

func retrievedChunk(similarity float64) contract.RetrievedChunk {
	return contract.RetrievedChunk{
		ChunkId:       uuid.New(),
		Content:       "CSEC was founded in 2019.",
		DocumentId:    uuid.New(),
		DocumentTitle: "club-handbook.pdf",
		DocumentURL:   "http://localhost:8080/uploads/kb/1_club-handbook.pdf",
		Pages:         []int{3},
		Similarity:    similarity,
	}
}

func TestPrepareRejectsInvalidInput(t *testing.T) {
	fx := newChatFixture(t, 20)
	userId := uuid.New()

	cases := []struct {
		name    string
		request *dto.SendChatRequest
		message string
	}{
		{"empty message", &dto.SendChatRequest{Message: "  ", MessageId: uuid.NewString()}, "Message is required"},
		{"missing message id", &dto.SendChatRequest{Message: "hi there"}, "message_id is required"},
		{"malformed message id", &dto.SendChatRequest{Message: "hi there", MessageId: "not-a-uuid"}, "Invalid message_id format"},
		{"wrong embedding size", &dto.SendChatRequest{Message: "hi there", MessageId: uuid.NewString(), Embedding: make([]float32, 3)}, "Invalid embedding format"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.service.Prepare(context.Background(), userId, tc.request)
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeInvalidInput, appErr.Code)
			assert.Equal(t, tc.message, appErr.Message)
		})
	}
}

func TestPrepareDuplicateMessageIsSoft(t *testing.T) {
	fx := newChatFixture(t, 20)
	userId := uuid.New()

	request := validRequest("what is the meeting schedule?")
	seen := entity.ChatMessage{
		Id:            uuid.MustParse(request.MessageId),
		ChatSessionId: uuid.New(),
		Role:          constant.ChatMessageRoleUser,
		Content:       request.Message,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, fx.uow.messages.Create(context.Background(), &seen))

	_, err := fx.service.Prepare(context.Background(), userId, request)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeDuplicateMessage, appErr.Code)
	assert.Equal(t, "This message has already been processed.", appErr.Message)
	assert.Equal(t, 200, appErr.Status())
}

func TestPrepareRateLimited(t *testing.T) {
	fx := newChatFixture(t, 1)
	fx.uow.embeddings.hits = []contract.RetrievedChunk{retrievedChunk(0.9)}
	userId := uuid.New()

	_, err := fx.service.Prepare(context.Background(), userId, validRequest("first question"))
	require.NoError(t, err)

	_, err = fx.service.Prepare(context.Background(), userId, validRequest("second question"))
	require.Error(t, err)

	var limited *apperror.RateLimitedError
	require.ErrorAs(t, err, &limited)
	assert.Equal(t, apperror.CodeRateLimited, limited.Code)
	assert.GreaterOrEqual(t, limited.RetryAfterSeconds, 1)
	assert.Contains(t, limited.Message, "You're sending messages too fast.")
}

func TestPrepareGreetingShortCircuits(t *testing.T) {
	fx := newChatFixture(t, 20)
	fx.embedder.err = assert.AnError
	userId := uuid.New()

	turn, err := fx.service.Prepare(context.Background(), userId, validRequest("Hello!"))
	require.NoError(t, err)

	assert.Equal(t, TurnGreeting, turn.Kind)
	require.NotNil(t, turn.Greeting)
	assert.Equal(t, "answer", turn.Greeting.Type)
	assert.Equal(t, constant.GreetingAnswer, turn.Greeting.Text)
	assert.Equal(t, turn.SessionId, turn.Greeting.SessionId)

	// Greeting persists both sides of the exchange without touching
	// retrieval.
	messages, err := fx.uow.messages.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, constant.ChatMessageRoleUser, messages[0].Role)
	assert.Equal(t, constant.ChatMessageRoleAssistant, messages[1].Role)
	assert.Zero(t, fx.embedder.calls)
}

func TestPrepareCreatesSessionWithTruncatedTitle(t *testing.T) {
	fx := newChatFixture(t, 20)
	fx.uow.embeddings.hits = []contract.RetrievedChunk{retrievedChunk(0.9)}
	userId := uuid.New()

	long := strings.Repeat("q", 100)
	turn, err := fx.service.Prepare(context.Background(), userId, validRequest(long))
	require.NoError(t, err)

	sess, err := fx.uow.sessions.FindOne(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, turn.SessionId, sess.Id)
	assert.Equal(t, strings.Repeat("q", 80)+"…", sess.Title)
	assert.Equal(t, userId, sess.UserId)
}

func TestPrepareReusesOwnedSession(t *testing.T) {
	fx := newChatFixture(t, 20)
	fx.uow.embeddings.hits = []contract.RetrievedChunk{retrievedChunk(0.9)}
	userId := uuid.New()

	existing := entity.ChatSession{Id: uuid.New(), UserId: userId, Title: "earlier chat", CreatedAt: time.Now()}
	require.NoError(t, fx.uow.sessions.Create(context.Background(), &existing))

	request := validRequest("follow-up question")
	request.SessionId = existing.Id.String()

	turn, err := fx.service.Prepare(context.Background(), userId, request)
	require.NoError(t, err)
	assert.Equal(t, existing.Id, turn.SessionId)

	sess, _ := fx.uow.sessions.FindOne(context.Background())
	require.NotNil(t, sess.UpdatedAt)
}

func TestPrepareForeignSessionGetsFreshOne(t *testing.T) {
	fx := newChatFixture(t, 20)
	fx.uow.embeddings.hits = []contract.RetrievedChunk{retrievedChunk(0.9)}

	other := entity.ChatSession{Id: uuid.New(), UserId: uuid.New(), Title: "someone else", CreatedAt: time.Now()}
	require.NoError(t, fx.uow.sessions.Create(context.Background(), &other))

	request := validRequest("my question")
	request.SessionId = other.Id.String()

	turn, err := fx.service.Prepare(context.Background(), uuid.New(), request)
	require.NoError(t, err)
	assert.NotEqual(t, other.Id, turn.SessionId)
}

func TestPrepareRefusesWithoutEvidence(t *testing.T) {
	fx := newChatFixture(t, 20)
	userId := uuid.New()

	turn, err := fx.service.Prepare(context.Background(), userId, validRequest("what color is the moon base?"))
	require.NoError(t, err)

	assert.Equal(t, TurnRefusal, turn.Kind)
	require.NotNil(t, turn.Refusal)
	assert.Equal(t, "refusal", turn.Refusal.Type)
	assert.Equal(t, "I couldn't find any relevant information in the knowledge base to answer your question.", turn.Refusal.Message)
	assert.Len(t, turn.Refusal.Suggestions, 3)
	assert.Equal(t, 1, fx.embedder.calls)
}

func TestPrepareUsesClientEmbeddingWhenPresent(t *testing.T) {
	fx := newChatFixture(t, 20)
	fx.uow.embeddings.hits = []contract.RetrievedChunk{retrievedChunk(0.9)}
	userId := uuid.New()

	request := validRequest("when was the club founded?")
	request.Embedding = make([]float32, entity.EmbeddingDim)

	turn, err := fx.service.Prepare(context.Background(), userId, request)
	require.NoError(t, err)

	assert.Equal(t, TurnAnswer, turn.Kind)
	assert.Len(t, turn.Chunks, 1)
	assert.Zero(t, fx.embedder.calls)
}

func TestStreamAnswerHappyPath(t *testing.T) {
	fx := newChatFixture(t, 20)
	fx.uow.embeddings.hits = []contract.RetrievedChunk{retrievedChunk(0.9)}
	userId := uuid.New()

	turn, err := fx.service.Prepare(context.Background(), userId, validRequest("when was CSEC founded?"))
	require.NoError(t, err)
	require.Equal(t, TurnAnswer, turn.Kind)

	sink := &memSink{}
	fx.service.StreamAnswer(context.Background(), turn, sink)

	require.Len(t, sink.events, 5)
	assert.Equal(t, "answer_start", sink.events[0].event)
	assert.Equal(t, "answer_delta", sink.events[1].event)
	assert.Equal(t, "answer_delta", sink.events[2].event)
	assert.Equal(t, "sources", sink.events[3].event)
	assert.Equal(t, "answer_end", sink.events[4].event)

	sources, ok := sink.events[3].payload.(dto.SourcesEvent)
	require.True(t, ok)
	require.Len(t, sources.Citations, 1)
	assert.Equal(t, "club-handbook.pdf", sources.Citations[0].DocumentTitle)

	// The grounded prompt carries the retrieved context and question.
	assert.Contains(t, fx.llm.gotPrompt, "CSEC was founded in 2019.")
	assert.Contains(t, fx.llm.gotPrompt, "when was CSEC founded?")

	messages, _ := fx.uow.messages.FindAll(context.Background())
	require.Len(t, messages, 2)
	assistant := messages[1]
	assert.Equal(t, constant.ChatMessageRoleAssistant, assistant.Role)
	assert.Equal(t, "The answer.", assistant.Content)
	require.Len(t, assistant.Citations, 1)

	end, ok := sink.events[4].payload.(dto.AnswerEndEvent)
	require.True(t, ok)
	assert.Equal(t, assistant.Id, end.MessageId)
}

func TestStreamAnswerFailureDiscardsPartialText(t *testing.T) {
	fx := newChatFixture(t, 20)
	fx.uow.embeddings.hits = []contract.RetrievedChunk{retrievedChunk(0.9)}
	fx.llm.streamErr = &llm.StatusError{StatusCode: 404, Body: "model not found"}
	userId := uuid.New()

	turn, err := fx.service.Prepare(context.Background(), userId, validRequest("when was CSEC founded?"))
	require.NoError(t, err)

	sink := &memSink{}
	fx.service.StreamAnswer(context.Background(), turn, sink)

	require.Len(t, sink.events, 2)
	assert.Equal(t, "answer_start", sink.events[0].event)
	assert.Equal(t, "error", sink.events[1].event)

	errEvent, ok := sink.events[1].payload.(dto.StreamErrorEvent)
	require.True(t, ok)
	assert.Equal(t, "Intelligence model not found (404). Check API key and model name.", errEvent.Message)

	// Only the user message survives a broken stream.
	messages, _ := fx.uow.messages.FindAll(context.Background())
	require.Len(t, messages, 1)
	assert.Equal(t, constant.ChatMessageRoleUser, messages[0].Role)
}

func TestStreamErrorMessageMapping(t *testing.T) {
	assert.Equal(t,
		"Intelligence quota exceeded (429). Please check your provider limits.",
		streamErrorMessage(&llm.StatusError{StatusCode: 429, Body: "quota"}))

	long := strings.Repeat("x", 150)
	mapped := streamErrorMessage(assert.AnError)
	assert.True(t, strings.HasPrefix(mapped, "Intelligence error: "))
	assert.True(t, strings.HasSuffix(mapped, "..."))

	mappedLong := streamErrorMessage(&llm.StatusError{StatusCode: 500, Body: long})
	assert.LessOrEqual(t, len(mappedLong), len("Intelligence error: ")+100+len("..."))
}

func TestGetChatHistoryEnforcesOwnership(t *testing.T) {
	fx := newChatFixture(t, 20)
	owner := uuid.New()

	sess := entity.ChatSession{Id: uuid.New(), UserId: owner, Title: "mine", CreatedAt: time.Now()}
	require.NoError(t, fx.uow.sessions.Create(context.Background(), &sess))

	_, err := fx.service.GetChatHistory(context.Background(), uuid.New(), sess.Id)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)

	history, err := fx.service.GetChatHistory(context.Background(), owner, sess.Id)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDeleteSession(t *testing.T) {
	fx := newChatFixture(t, 20)
	owner := uuid.New()

	sess := entity.ChatSession{Id: uuid.New(), UserId: owner, Title: "mine", CreatedAt: time.Now()}
	require.NoError(t, fx.uow.sessions.Create(context.Background(), &sess))

	err := fx.service.DeleteSession(context.Background(), owner, &dto.DeleteSessionRequest{ChatSessionId: sess.Id})
	require.NoError(t, err)

	remaining, _ := fx.uow.sessions.FindOne(context.Background())
	assert.Nil(t, remaining)
}
