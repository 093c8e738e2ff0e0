package mapper

import (
	"encoding/json"

	"kb-assistant-be/internal/entity"
	"kb-assistant-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type ChunkMapper struct{}

func NewChunkMapper() *ChunkMapper {
	return &ChunkMapper{}
}

func (m *ChunkMapper) ToEntity(c *model.Chunk) *entity.Chunk {
	if c == nil {
		return nil
	}

	var meta entity.ChunkMeta
	if len(c.Meta) > 0 {
		_ = json.Unmarshal(c.Meta, &meta)
	}

	return &entity.Chunk{
		Id:         c.Id,
		DocumentId: c.DocumentId,
		ChunkIndex: c.ChunkIndex,
		Content:    c.Content,
		Meta:       meta,
		CreatedAt:  c.CreatedAt,
	}
}

func (m *ChunkMapper) ToModel(c *entity.Chunk) *model.Chunk {
	if c == nil {
		return nil
	}

	metaJson, _ := json.Marshal(c.Meta)

	return &model.Chunk{
		Id:         c.Id,
		DocumentId: c.DocumentId,
		ChunkIndex: c.ChunkIndex,
		Content:    c.Content,
		Meta:       metaJson,
		CreatedAt:  c.CreatedAt,
	}
}

func (m *ChunkMapper) EmbeddingToEntity(e *model.ChunkEmbedding) *entity.ChunkEmbedding {
	if e == nil {
		return nil
	}
	return &entity.ChunkEmbedding{
		Id:        e.Id,
		ChunkId:   e.ChunkId,
		Values:    e.Embedding.Slice(),
		Model:     e.Model,
		CreatedAt: e.CreatedAt,
	}
}

func (m *ChunkMapper) EmbeddingToModel(e *entity.ChunkEmbedding) *model.ChunkEmbedding {
	if e == nil {
		return nil
	}
	return &model.ChunkEmbedding{
		Id:        e.Id,
		ChunkId:   e.ChunkId,
		Embedding: pgvector.NewVector(e.Values),
		Model:     e.Model,
		CreatedAt: e.CreatedAt,
	}
}
