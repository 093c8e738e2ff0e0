package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"kb-assistant-be/internal/constant"
	"kb-assistant-be/internal/dto"
	"kb-assistant-be/internal/entity"
	"kb-assistant-be/internal/pkg/apperror"
	"kb-assistant-be/internal/pkg/logger"
	"kb-assistant-be/internal/repository/contract"
	"kb-assistant-be/internal/repository/specification"
	"kb-assistant-be/internal/repository/unitofwork"
	"kb-assistant-be/pkg/chat/ratelimit"
	"kb-assistant-be/pkg/llm"
	"kb-assistant-be/pkg/rag/cite"
	"kb-assistant-be/pkg/rag/evidence"
	"kb-assistant-be/pkg/rag/prompt"
	"kb-assistant-be/pkg/rag/search"
	"kb-assistant-be/pkg/sse"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Turn kinds produced by Prepare.
const (
	TurnGreeting = "greeting"
	TurnRefusal  = "refusal"
	TurnAnswer   = "answer"
)

// ChatTurn is the outcome of the pre-stream phase. Greeting and
// refusal turns are answered with plain JSON; answer turns continue
// into StreamAnswer.
type ChatTurn struct {
	Kind      string
	SessionId uuid.UUID
	Question  string
	Greeting  *dto.DirectAnswerResponse
	Refusal   *dto.RefusalResponse
	Chunks    []contract.RetrievedChunk
}

type IChatService interface {
	// Prepare validates, rate-limits, deduplicates, resolves the
	// session, persists the user message and runs retrieval plus the
	// evidence gate.
	Prepare(ctx context.Context, userId uuid.UUID, request *dto.SendChatRequest) (*ChatTurn, error)

	// StreamAnswer generates the grounded answer over the event sink.
	// The assistant message is only persisted after the model stream
	// completes; a broken stream leaves no partial answer behind.
	StreamAnswer(ctx context.Context, turn *ChatTurn, sink sse.EventSink)

	GetAllSessions(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllSessionsResponse, error)
	GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error)
	DeleteSession(ctx context.Context, userId uuid.UUID, request *dto.DeleteSessionRequest) error
}

type ChatOptions struct {
	EvidenceThreshold float64
}

type chatService struct {
	uowFactory  unitofwork.RepositoryFactory
	llmProvider llm.LLMProvider
	embedder    Embedder
	retriever   *search.Retriever
	limiter     *ratelimit.Limiter
	logger      logger.ILogger
	opts        ChatOptions
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	llmProvider llm.LLMProvider,
	embedder Embedder,
	retriever *search.Retriever,
	limiter *ratelimit.Limiter,
	log logger.ILogger,
	opts ChatOptions,
) IChatService {
	return &chatService{
		uowFactory:  uowFactory,
		llmProvider: llmProvider,
		embedder:    embedder,
		retriever:   retriever,
		limiter:     limiter,
		logger:      log,
		opts:        opts,
	}
}

func (cs *chatService) Prepare(ctx context.Context, userId uuid.UUID, request *dto.SendChatRequest) (*ChatTurn, error) {
	if strings.TrimSpace(request.Message) == "" {
		return nil, apperror.InvalidInput("Message is required")
	}
	if err := validate.Struct(request); err != nil {
		return nil, requestValidationError(err)
	}
	messageId, err := uuid.Parse(request.MessageId)
	if err != nil {
		return nil, apperror.InvalidInput("Invalid message_id format")
	}

	decision, err := cs.limiter.Check(ctx, userId.String())
	if err != nil {
		// A broken limiter store should not take the chat down.
		cs.logger.Warn("Chat", "Rate limiter unavailable, allowing request", map[string]interface{}{"error": err.Error()})
	} else if !decision.Allowed {
		seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		return nil, apperror.RateLimited(
			fmt.Sprintf("You're sending messages too fast. Please wait %d seconds.", seconds),
			seconds,
		)
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	existing, err := uow.ChatMessageRepository().FindOne(ctx, specification.ByID{ID: messageId})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.Duplicate("This message has already been processed.")
	}

	sessionId, err := cs.getOrCreateSession(ctx, uow, userId, request.SessionId, request.Message)
	if err != nil {
		return nil, err
	}

	userMessage := entity.ChatMessage{
		Id:            messageId,
		ChatSessionId: sessionId,
		Role:          constant.ChatMessageRoleUser,
		Content:       request.Message,
		CreatedAt:     time.Now(),
	}
	if err := uow.ChatMessageRepository().Create(ctx, &userMessage); err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrPersistenceFailure, err)
	}

	if isGreeting(request.Message) {
		assistantMessage := entity.ChatMessage{
			Id:            uuid.New(),
			ChatSessionId: sessionId,
			Role:          constant.ChatMessageRoleAssistant,
			Content:       constant.GreetingAnswer,
			CreatedAt:     time.Now(),
		}
		if err := uow.ChatMessageRepository().Create(ctx, &assistantMessage); err != nil {
			return nil, fmt.Errorf("%w: %v", apperror.ErrPersistenceFailure, err)
		}
		return &ChatTurn{
			Kind:      TurnGreeting,
			SessionId: sessionId,
			Greeting: &dto.DirectAnswerResponse{
				Type:      "answer",
				Text:      constant.GreetingAnswer,
				SessionId: sessionId,
				MessageId: assistantMessage.Id,
			},
		}, nil
	}

	questionEmbedding := request.Embedding
	if len(questionEmbedding) == 0 {
		questionEmbedding, err = cs.embedder.EmbedQuestion(ctx, request.Message)
		if err != nil {
			return nil, err
		}
	}

	chunks, err := cs.retriever.Match(ctx, questionEmbedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrRetrievalFailure, err)
	}

	gate := evidence.Check(chunks, cs.opts.EvidenceThreshold)
	if !gate.Pass {
		return &ChatTurn{
			Kind:      TurnRefusal,
			SessionId: sessionId,
			Refusal: &dto.RefusalResponse{
				Type:        "refusal",
				Message:     gate.Refusal.Message,
				Suggestions: gate.Refusal.Suggestions,
			},
		}, nil
	}

	return &ChatTurn{
		Kind:      TurnAnswer,
		SessionId: sessionId,
		Question:  request.Message,
		Chunks:    gate.Chunks,
	}, nil
}

func (cs *chatService) StreamAnswer(ctx context.Context, turn *ChatTurn, sink sse.EventSink) {
	if err := sink.Send(sse.EventAnswerStart, dto.AnswerStartEvent{SessionId: turn.SessionId}); err != nil {
		return
	}

	grounded := prompt.BuildGrounded(turn.Chunks, turn.Question)
	fullText, err := cs.llmProvider.ChatStream(ctx,
		[]llm.Message{{Role: constant.ChatMessageRoleUser, Content: grounded}},
		func(text string) error {
			return sink.Send(sse.EventAnswerDelta, dto.AnswerDeltaEvent{Text: text})
		},
	)
	if err != nil {
		cs.logger.Error("Chat", "Answer stream failed", map[string]interface{}{
			"session_id": turn.SessionId,
			"error":      err.Error(),
		})
		_ = sink.Send(sse.EventError, dto.StreamErrorEvent{Message: streamErrorMessage(err)})
		return
	}

	citations := cite.FromChunks(turn.Chunks)
	if err := sink.Send(sse.EventSources, dto.SourcesEvent{Citations: citations}); err != nil {
		return
	}

	assistantMessage := entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: turn.SessionId,
		Role:          constant.ChatMessageRoleAssistant,
		Content:       fullText,
		Citations:     citations,
		CreatedAt:     time.Now(),
	}
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ChatMessageRepository().Create(ctx, &assistantMessage); err != nil {
		cs.logger.Error("Chat", "Failed to persist assistant message", map[string]interface{}{
			"session_id": turn.SessionId,
			"error":      err.Error(),
		})
		_ = sink.Send(sse.EventError, dto.StreamErrorEvent{Message: "Failed to save the answer. Please try again."})
		return
	}

	_ = sink.Send(sse.EventAnswerEnd, dto.AnswerEndEvent{MessageId: assistantMessage.Id})
}

func (cs *chatService) GetAllSessions(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllSessionsResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	chatSessions, err := uow.ChatSessionRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.GetAllSessionsResponse, 0, len(chatSessions))
	for _, s := range chatSessions {
		response = append(response, &dto.GetAllSessionsResponse{
			Id:        s.Id,
			Title:     s.Title,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}

	return response, nil
}

func (cs *chatService) GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	sess, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, apperror.Unauthorized("Session not found or access denied")
	}

	chatMessages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.GetChatHistoryResponse, 0, len(chatMessages))
	for _, msg := range chatMessages {
		response = append(response, &dto.GetChatHistoryResponse{
			Id:        msg.Id,
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
			Citations: msg.Citations,
		})
	}

	return response, nil
}

func (cs *chatService) DeleteSession(ctx context.Context, userId uuid.UUID, request *dto.DeleteSessionRequest) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	sess, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: request.ChatSessionId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return err
	}
	if sess == nil {
		return apperror.Unauthorized("Session not found or access denied")
	}

	return uow.ChatSessionRepository().Delete(ctx, request.ChatSessionId)
}

func (cs *chatService) getOrCreateSession(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, sessionId string, firstMessage string) (uuid.UUID, error) {
	if sessionId != "" {
		if id, err := uuid.Parse(sessionId); err == nil {
			sess, err := uow.ChatSessionRepository().FindOne(ctx,
				specification.ByID{ID: id},
				specification.UserOwnedBy{UserID: userId},
			)
			if err != nil {
				return uuid.Nil, err
			}
			if sess != nil {
				if err := uow.ChatSessionRepository().Touch(ctx, id); err != nil {
					return uuid.Nil, err
				}
				return id, nil
			}
		}
		// Unknown or foreign session ids fall through to a fresh session.
	}

	title := constant.DefaultSessionTitle
	if firstMessage != "" {
		runes := []rune(firstMessage)
		if len(runes) > constant.SessionTitleMaxLen {
			title = string(runes[:constant.SessionTitleMaxLen]) + "…"
		} else {
			title = firstMessage
		}
	}

	session := entity.ChatSession{
		Id:        uuid.New(),
		UserId:    userId,
		Title:     title,
		CreatedAt: time.Now(),
	}
	if err := uow.ChatSessionRepository().Create(ctx, &session); err != nil {
		return uuid.Nil, err
	}

	return session.Id, nil
}

var validate = validator.New()

// requestValidationError maps struct-tag failures to the exact copy the
// client renders.
func requestValidationError(err error) *apperror.AppError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		switch fe := fieldErrs[0]; fe.Field() {
		case "Embedding":
			return apperror.InvalidInput("Invalid embedding format")
		case "Message":
			return apperror.InvalidInput("Message is required")
		case "MessageId":
			if fe.Tag() == "required" {
				return apperror.InvalidInput("message_id is required")
			}
			return apperror.InvalidInput("Invalid message_id format")
		}
	}
	return apperror.InvalidInput("Invalid request body")
}

func isGreeting(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, g := range constant.Greetings {
		if lower == g || strings.HasPrefix(lower, g+" ") || strings.HasPrefix(lower, g+"?") || strings.HasPrefix(lower, g+"!") {
			return true
		}
	}
	return false
}

func streamErrorMessage(err error) string {
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case 404:
			return "Intelligence model not found (404). Check API key and model name."
		case 429:
			return "Intelligence quota exceeded (429). Please check your provider limits."
		}
	}

	message := err.Error()
	if message == "" {
		return "Intelligence link interrupted."
	}
	if len(message) > 100 {
		message = message[:100]
	}
	return "Intelligence error: " + message + "..."
}
