package entity

import (
	"time"

	"github.com/google/uuid"
)

// Citation references the source chunk/document backing an assistant answer.
// It lives only inside its owning message.
type Citation struct {
	ChunkId       uuid.UUID `json:"chunk_id"`
	DocumentTitle string    `json:"document_title"`
	URL           string    `json:"url,omitempty"`
	Pages         []int     `json:"pages,omitempty"`
	Section       string    `json:"section,omitempty"`
}

// ChatMessage.Id is client supplied and doubles as the idempotency key:
// a second write with the same id must be treated as a duplicate.
type ChatMessage struct {
	Id            uuid.UUID
	ChatSessionId uuid.UUID
	Role          string
	Content       string
	Citations     []Citation
	CreatedAt     time.Time
	DeletedAt     *time.Time
	IsDeleted     bool
}
