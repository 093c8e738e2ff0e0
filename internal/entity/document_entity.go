package entity

import (
	"time"

	"github.com/google/uuid"
)

// Document lifecycle statuses. Terminal states are ready and failed.
const (
	DocumentStatusUploading  = "uploading"
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusFailed     = "failed"
)

type DocumentMeta struct {
	FileSize  int64  `json:"file_size"`
	PageCount int    `json:"page_count,omitempty"`
	Error     string `json:"error,omitempty"`
}

type Document struct {
	Id          uuid.UUID
	Name        string
	Status      string
	Enabled     bool
	StoragePath string
	Checksum    string // sha-256 hex of the raw upload
	URL         string
	Meta        DocumentMeta
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}
