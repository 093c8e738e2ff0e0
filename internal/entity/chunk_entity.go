package entity

import (
	"time"

	"github.com/google/uuid"
)

// EmbeddingDim is fixed by the embedding model (all-MiniLM-L6-v2). Query and
// document vectors must both match it; a mismatch is a hard error.
const EmbeddingDim = 384

type ChunkMeta struct {
	Pages     []int `json:"pages"`
	CharStart int   `json:"char_start"`
	CharEnd   int   `json:"char_end"`
}

// Chunk is a contiguous slice of a document's extracted text. ChunkIndex is
// contiguous from 0 per document and immutable once created.
type Chunk struct {
	Id         uuid.UUID
	DocumentId uuid.UUID
	ChunkIndex int
	Content    string
	Meta       ChunkMeta
	CreatedAt  time.Time
}

// ChunkEmbedding holds the 384-dim vector for one chunk under one model id.
type ChunkEmbedding struct {
	Id        uuid.UUID
	ChunkId   uuid.UUID
	Values    []float32
	Model     string
	CreatedAt time.Time
}
