package dto

import (
	"time"

	"github.com/google/uuid"

	"kb-assistant-be/internal/entity"
)

type SendChatRequest struct {
	Embedding []float32 `json:"embedding" validate:"omitempty,len=384"`
	Message   string    `json:"message" validate:"required"`
	MessageId string    `json:"message_id" validate:"required,uuid"`
	SessionId string    `json:"session_id,omitempty"`
}

// DirectAnswerResponse is the non-streamed reply used for greetings.
type DirectAnswerResponse struct {
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	SessionId uuid.UUID `json:"session_id"`
	MessageId uuid.UUID `json:"message_id"`
}

// RefusalResponse is the non-streamed reply when the evidence gate
// blocks generation.
type RefusalResponse struct {
	Type        string   `json:"type"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
}

type GetAllSessionsResponse struct {
	Id        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type GetChatHistoryResponse struct {
	Id        uuid.UUID         `json:"id"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	CreatedAt time.Time         `json:"created_at"`
	Citations []entity.Citation `json:"citations,omitempty"`
}

type DeleteSessionRequest struct {
	ChatSessionId uuid.UUID `json:"chat_session_id"`
}

// --- SSE payloads ---

type AnswerStartEvent struct {
	SessionId uuid.UUID `json:"session_id"`
}

type AnswerDeltaEvent struct {
	Text string `json:"text"`
}

type SourcesEvent struct {
	Citations []entity.Citation `json:"citations"`
}

type AnswerEndEvent struct {
	MessageId uuid.UUID `json:"message_id"`
}

type StreamErrorEvent struct {
	Message string `json:"message"`
}
