package service

import (
	"context"

	"kb-assistant-be/internal/dto"
	"kb-assistant-be/internal/pkg/apperror"
	"kb-assistant-be/internal/pkg/logger"
	"kb-assistant-be/internal/repository/specification"
	"kb-assistant-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type IDocumentService interface {
	GetAll(ctx context.Context) ([]*dto.GetAllDocumentsResponse, error)
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentService struct {
	uowFactory unitofwork.RepositoryFactory
	store      ObjectStore
	logger     logger.ILogger
}

func NewDocumentService(
	uowFactory unitofwork.RepositoryFactory,
	store ObjectStore,
	log logger.ILogger,
) IDocumentService {
	return &documentService{
		uowFactory: uowFactory,
		store:      store,
		logger:     log,
	}
}

func (s *documentService) GetAll(ctx context.Context) ([]*dto.GetAllDocumentsResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	documents, err := uow.DocumentRepository().FindAll(ctx,
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.GetAllDocumentsResponse, 0, len(documents))
	for _, d := range documents {
		response = append(response, &dto.GetAllDocumentsResponse{
			Id:        d.Id,
			Name:      d.Name,
			Status:    d.Status,
			Enabled:   d.Enabled,
			URL:       d.URL,
			Meta:      d.Meta,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}

	return response, nil
}

func (s *documentService) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	document, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if document == nil {
		return apperror.InvalidInput("Document not found")
	}

	return uow.DocumentRepository().SetEnabled(ctx, id, enabled)
}

func (s *documentService) Delete(ctx context.Context, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	document, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if document == nil {
		return apperror.InvalidInput("Document not found")
	}

	if err := uow.DocumentRepository().Delete(ctx, id); err != nil {
		return err
	}

	// Stored file removal is best-effort; the row is already gone.
	if document.StoragePath != "" {
		if err := s.store.Delete(document.StoragePath); err != nil {
			s.logger.Warn("Document", "Failed to delete stored file", map[string]interface{}{
				"document_id": id,
				"path":        document.StoragePath,
				"error":       err.Error(),
			})
		}
	}

	return nil
}
