package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "document.ready").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Document lifecycle event types.
const (
	TypeDocumentReady  = "document.ready"
	TypeDocumentFailed = "document.failed"
)

// DocumentReady is published when ingestion finishes and a document
// becomes searchable.
type DocumentReady struct {
	DocumentId string
	Name       string
	ChunkCount int
	OccurredAt time.Time
}

func (e DocumentReady) EventType() string {
	return TypeDocumentReady
}

func (e DocumentReady) Payload() map[string]interface{} {
	return map[string]interface{}{
		"document_id": e.DocumentId,
		"name":        e.Name,
		"chunk_count": e.ChunkCount,
		"occurred_at": e.OccurredAt,
	}
}

func (e DocumentReady) Timestamp() time.Time {
	return e.OccurredAt
}

// DocumentFailed is published when ingestion gives up on a document.
type DocumentFailed struct {
	DocumentId string
	Name       string
	Reason     string
	OccurredAt time.Time
}

func (e DocumentFailed) EventType() string {
	return TypeDocumentFailed
}

func (e DocumentFailed) Payload() map[string]interface{} {
	return map[string]interface{}{
		"document_id": e.DocumentId,
		"name":        e.Name,
		"reason":      e.Reason,
		"occurred_at": e.OccurredAt,
	}
}

func (e DocumentFailed) Timestamp() time.Time {
	return e.OccurredAt
}
