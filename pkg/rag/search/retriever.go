package search

import (
	"context"
	"fmt"

	"kb-assistant-be/internal/entity"
	"kb-assistant-be/internal/repository/contract"
	"kb-assistant-be/internal/repository/unitofwork"
)

type Options struct {
	MatchCount int
	Threshold  float64
}

func DefaultOptions() Options {
	return Options{MatchCount: 6, Threshold: 0.2}
}

// Retriever runs similarity search over stored chunk embeddings.
type Retriever struct {
	uow  unitofwork.UnitOfWork
	opts Options
}

func NewRetriever(uow unitofwork.UnitOfWork, opts Options) *Retriever {
	if opts.MatchCount <= 0 {
		opts.MatchCount = DefaultOptions().MatchCount
	}
	return &Retriever{uow: uow, opts: opts}
}

// Match returns up to MatchCount chunks ordered by similarity. Only
// chunks from enabled, ready documents that clear the threshold come
// back; the caller applies its own evidence gating on top.
func (r *Retriever) Match(ctx context.Context, embedding []float32) ([]contract.RetrievedChunk, error) {
	if len(embedding) != entity.EmbeddingDim {
		return nil, fmt.Errorf("embedding must have %d dimensions, got %d", entity.EmbeddingDim, len(embedding))
	}
	chunks, err := r.uow.ChunkEmbeddingRepository().SearchSimilarWithScore(ctx, embedding, r.opts.MatchCount, r.opts.Threshold)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return chunks, nil
}
