package mapper

import (
	"encoding/json"
	"time"

	"kb-assistant-be/internal/entity"
	"kb-assistant-be/internal/model"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToEntity(d *model.Document) *entity.Document {
	if d == nil {
		return nil
	}

	var meta entity.DocumentMeta
	if len(d.Meta) > 0 {
		// Malformed meta is treated as empty rather than failing the read
		_ = json.Unmarshal(d.Meta, &meta)
	}

	var updatedAt *time.Time
	if !d.UpdatedAt.IsZero() {
		t := d.UpdatedAt
		updatedAt = &t
	}

	return &entity.Document{
		Id:          d.Id,
		Name:        d.Name,
		Status:      d.Status,
		Enabled:     d.Enabled,
		StoragePath: d.StoragePath,
		Checksum:    d.Checksum,
		URL:         d.URL,
		Meta:        meta,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   updatedAt,
	}
}

func (m *DocumentMapper) ToModel(d *entity.Document) *model.Document {
	if d == nil {
		return nil
	}

	metaJson, _ := json.Marshal(d.Meta)

	doc := &model.Document{
		Id:          d.Id,
		Name:        d.Name,
		Status:      d.Status,
		Enabled:     d.Enabled,
		StoragePath: d.StoragePath,
		Checksum:    d.Checksum,
		URL:         d.URL,
		Meta:        metaJson,
		CreatedAt:   d.CreatedAt,
	}
	if d.UpdatedAt != nil {
		doc.UpdatedAt = *d.UpdatedAt
	}
	return doc
}

func (m *DocumentMapper) ToEntities(models []*model.Document) []*entity.Document {
	entities := make([]*entity.Document, len(models))
	for i, d := range models {
		entities[i] = m.ToEntity(d)
	}
	return entities
}
