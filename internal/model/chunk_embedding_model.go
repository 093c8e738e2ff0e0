package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type ChunkEmbedding struct {
	Id        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChunkId   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_embedding_chunk_model,priority:1"`
	Embedding pgvector.Vector `gorm:"type:vector(384)"` // all-MiniLM-L6-v2 uses 384 dimensions
	Model     string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_embedding_chunk_model,priority:2"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`

	Chunk *Chunk `gorm:"foreignKey:ChunkId;references:Id;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (ChunkEmbedding) TableName() string {
	return "kb_embeddings"
}
