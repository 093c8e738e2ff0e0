package contract

import (
	"context"

	"kb-assistant-be/internal/entity"

	"github.com/google/uuid"
)

// RetrievedChunk is one nearest-neighbor hit hydrated with its document.
type RetrievedChunk struct {
	ChunkId       uuid.UUID
	Content       string
	DocumentId    uuid.UUID
	DocumentTitle string
	DocumentURL   string
	Pages         []int
	Section       string
	Similarity    float64 // cosine similarity, 1.0 = identical
}

type ChunkEmbeddingRepository interface {
	CreateBulk(ctx context.Context, embeddings []*entity.ChunkEmbedding) error
	DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error
	// SearchSimilarWithScore runs a cosine nearest-neighbor query restricted to
	// ready, enabled documents. threshold prunes candidates in SQL; the caller
	// owns the authoritative cutoff. A dimension mismatch fails loudly.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, threshold float64) ([]RetrievedChunk, error)
}
