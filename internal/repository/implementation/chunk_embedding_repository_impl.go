package implementation

import (
	"context"
	"encoding/json"
	"fmt"

	"kb-assistant-be/internal/entity"
	"kb-assistant-be/internal/mapper"
	"kb-assistant-be/internal/model"
	"kb-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChunkEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChunkMapper
}

func NewChunkEmbeddingRepository(db *gorm.DB) contract.ChunkEmbeddingRepository {
	return &ChunkEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewChunkMapper(),
	}
}

func (r *ChunkEmbeddingRepositoryImpl) CreateBulk(ctx context.Context, embeddings []*entity.ChunkEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	models := make([]*model.ChunkEmbedding, len(embeddings))
	for i, e := range embeddings {
		if len(e.Values) != entity.EmbeddingDim {
			return fmt.Errorf("embedding for chunk %s has %d dimensions, want %d",
				e.ChunkId, len(e.Values), entity.EmbeddingDim)
		}
		models[i] = r.mapper.EmbeddingToModel(e)
	}

	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}

	for i, m := range models {
		*embeddings[i] = *r.mapper.EmbeddingToEntity(m)
	}
	return nil
}

func (r *ChunkEmbeddingRepositoryImpl) DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error {
	subQuery := r.db.Table("kb_chunks").Select("id").Where("document_id = ?", documentId)
	return r.db.WithContext(ctx).Where("chunk_id IN (?)", subQuery).Delete(&model.ChunkEmbedding{}).Error
}

func (r *ChunkEmbeddingRepositoryImpl) SearchSimilarWithScore(
	ctx context.Context,
	embedding []float32,
	limit int,
	threshold float64,
) ([]contract.RetrievedChunk, error) {
	if len(embedding) != entity.EmbeddingDim {
		return nil, fmt.Errorf("query embedding has %d dimensions, want %d",
			len(embedding), entity.EmbeddingDim)
	}
	if limit <= 0 {
		limit = 6
	}

	// Cosine distance in pgvector is 1 - cosine_similarity, so
	// 1 - (embedding <=> query) gives the similarity score directly.
	type row struct {
		ChunkId       uuid.UUID
		Content       string
		ChunkMeta     datatypes.JSON
		DocumentId    uuid.UUID
		DocumentTitle string
		DocumentURL   string
		Similarity    float64
	}
	var rows []row

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("kb_embeddings").
		Select(`kb_chunks.id AS chunk_id,
			kb_chunks.content AS content,
			kb_chunks.meta AS chunk_meta,
			kb_documents.id AS document_id,
			kb_documents.name AS document_title,
			kb_documents.url AS document_url,
			1 - (kb_embeddings.embedding <=> ?) AS similarity`, queryVector).
		Joins("JOIN kb_chunks ON kb_chunks.id = kb_embeddings.chunk_id").
		Joins("JOIN kb_documents ON kb_documents.id = kb_chunks.document_id").
		Where("kb_documents.status = ?", entity.DocumentStatusReady).
		Where("kb_documents.enabled = TRUE").
		Where("1 - (kb_embeddings.embedding <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Limit(limit).
		Scan(&rows).Error

	if err != nil {
		return nil, err
	}

	results := make([]contract.RetrievedChunk, len(rows))
	for i, res := range rows {
		var meta entity.ChunkMeta
		if len(res.ChunkMeta) > 0 {
			_ = json.Unmarshal(res.ChunkMeta, &meta)
		}
		results[i] = contract.RetrievedChunk{
			ChunkId:       res.ChunkId,
			Content:       res.Content,
			DocumentId:    res.DocumentId,
			DocumentTitle: res.DocumentTitle,
			DocumentURL:   res.DocumentURL,
			Pages:         meta.Pages,
			Similarity:    res.Similarity,
		}
	}
	return results, nil
}
