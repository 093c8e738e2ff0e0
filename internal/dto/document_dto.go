package dto

import (
	"time"

	"github.com/google/uuid"

	"kb-assistant-be/internal/entity"
)

type UploadDocumentResponse struct {
	Id     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Status string    `json:"status"`
}

type GetAllDocumentsResponse struct {
	Id        uuid.UUID           `json:"id"`
	Name      string              `json:"name"`
	Status    string              `json:"status"`
	Enabled   bool                `json:"enabled"`
	URL       string              `json:"url,omitempty"`
	Meta      entity.DocumentMeta `json:"meta"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt *time.Time          `json:"updated_at"`
}

type SetDocumentEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// IngestProgress is broadcast over the websocket hub while a document
// moves through the pipeline.
type IngestProgress struct {
	DocumentId string `json:"document_id"`
	Step       string `json:"step"`
	Message    string `json:"message"`
	Progress   int    `json:"progress"`
}

// Pipeline step names reported in IngestProgress.
const (
	IngestStepUploading  = "uploading"
	IngestStepExtracting = "extracting"
	IngestStepChunking   = "chunking"
	IngestStepEmbedding  = "embedding"
	IngestStepSaving     = "saving"
	IngestStepDone       = "done"
	IngestStepError      = "error"
)

// PublishIngestDocumentMessage is the queue payload that schedules a
// document for processing.
type PublishIngestDocumentMessage struct {
	DocumentId uuid.UUID `json:"document_id"`
}
