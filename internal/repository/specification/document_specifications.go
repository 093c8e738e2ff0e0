package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ByStatus filters documents by lifecycle status
type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

// EnabledOnly excludes documents an operator switched off; disabled documents
// never contribute retrieval evidence.
type EnabledOnly struct{}

func (s EnabledOnly) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("enabled = TRUE")
}

// ByChecksum filters by upload content hash (audit lookups)
type ByChecksum struct {
	Checksum string
}

func (s ByChecksum) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("checksum = ?", s.Checksum)
}

// ByDocumentID filters chunks by their owning document
type ByDocumentID struct {
	DocumentID uuid.UUID
}

func (s ByDocumentID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("document_id = ?", s.DocumentID)
}
