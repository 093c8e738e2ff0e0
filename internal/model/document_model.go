package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Document struct {
	Id          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name        string         `gorm:"type:varchar(255);not null"`
	Status      string         `gorm:"type:varchar(20);not null;index"`
	Enabled     bool           `gorm:"not null;default:true"`
	StoragePath string         `gorm:"type:text;not null"`
	Checksum    string         `gorm:"type:char(64);not null;index"`
	URL         string         `gorm:"type:text"`
	Meta        datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
}

func (Document) TableName() string {
	return "kb_documents"
}
