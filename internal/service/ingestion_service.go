package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"kb-assistant-be/internal/dto"
	"kb-assistant-be/internal/entity"
	"kb-assistant-be/internal/pkg/apperror"
	"kb-assistant-be/internal/pkg/logger"
	"kb-assistant-be/internal/repository/specification"
	"kb-assistant-be/internal/repository/unitofwork"
	"kb-assistant-be/pkg/events"
	"kb-assistant-be/pkg/extract"
	"kb-assistant-be/pkg/rag/chunker"
	"kb-assistant-be/pkg/storage"

	"github.com/google/uuid"
)

// ErrDocumentNotFound signals a queue message referencing a deleted
// document; consumers ack instead of retrying.
var ErrDocumentNotFound = errors.New("document not found")

// ObjectStore abstracts the file backend holding uploaded PDFs.
type ObjectStore interface {
	Save(key string, content []byte) error
	Read(key string) ([]byte, error)
	Delete(key string) error
}

// PageExtractor pulls per-page text out of an uploaded file.
type PageExtractor interface {
	Extract(content []byte, onProgress extract.ProgressFunc) (*extract.Result, error)
}

// Embedder is the slice of the embedding orchestrator the pipeline
// needs.
type Embedder interface {
	Initialize(ctx context.Context, onProgress func(progress int)) error
	EmbedBatch(ctx context.Context, texts []string, onProgress func(completed, total int)) ([][]float32, error)
	EmbedQuestion(ctx context.Context, text string) ([]float32, error)
}

// ProgressBroadcaster pushes pipeline progress to watching clients.
type ProgressBroadcaster interface {
	BroadcastProgress(progress dto.IngestProgress)
}

// EventPublisher emits document lifecycle events on the bus.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IngestionOptions struct {
	Chunker        chunker.Options
	EmbeddingModel string
	PublicBaseURL  string
}

type IIngestionService interface {
	// Upload stores the file, registers the document and schedules
	// processing.
	Upload(ctx context.Context, name string, content []byte) (*dto.UploadDocumentResponse, error)

	// Process runs extract, chunk, embed and persist for a stored
	// document.
	Process(ctx context.Context, documentId uuid.UUID) error

	// Reprocess schedules an existing document for a fresh pipeline run.
	Reprocess(ctx context.Context, documentId uuid.UUID) error
}

type ingestionService struct {
	uowFactory       unitofwork.RepositoryFactory
	store            ObjectStore
	extractor        PageExtractor
	embedder         Embedder
	publisherService IPublisherService
	eventPublisher   EventPublisher
	hub              ProgressBroadcaster
	logger           logger.ILogger
	opts             IngestionOptions
}

func NewIngestionService(
	uowFactory unitofwork.RepositoryFactory,
	store ObjectStore,
	extractor PageExtractor,
	embedder Embedder,
	publisherService IPublisherService,
	eventPublisher EventPublisher,
	hub ProgressBroadcaster,
	log logger.ILogger,
	opts IngestionOptions,
) IIngestionService {
	if opts.Chunker.ChunkSize == 0 {
		opts.Chunker = chunker.DefaultOptions()
	}
	return &ingestionService{
		uowFactory:       uowFactory,
		store:            store,
		extractor:        extractor,
		embedder:         embedder,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		hub:              hub,
		logger:           log,
		opts:             opts,
	}
}

func (s *ingestionService) Upload(ctx context.Context, name string, content []byte) (*dto.UploadDocumentResponse, error) {
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return nil, apperror.InvalidInput("Only PDF files are supported")
	}
	if len(content) == 0 {
		return nil, apperror.InvalidInput("Uploaded file is empty")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)

	// The checksum is recorded for audit lookups only. Re-uploading the
	// same bytes registers an independent document; merging uploads is a
	// client decision, not an ingestion one.
	checksum := storage.Checksum(content)

	s.broadcast(dto.IngestProgress{Step: dto.IngestStepUploading, Message: "Uploading file...", Progress: 0})

	storagePath := fmt.Sprintf("kb/%d_%s", time.Now().UnixMilli(), name)
	if err := s.store.Save(storagePath, content); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	document := entity.Document{
		Id:          uuid.New(),
		Name:        name,
		Status:      entity.DocumentStatusUploading,
		Enabled:     true,
		StoragePath: storagePath,
		Checksum:    checksum,
		URL:         s.opts.PublicBaseURL + "/uploads/" + storagePath,
		Meta:        entity.DocumentMeta{FileSize: int64(len(content))},
		CreatedAt:   time.Now(),
	}
	if err := uow.DocumentRepository().Create(ctx, &document); err != nil {
		return nil, err
	}

	s.broadcast(dto.IngestProgress{DocumentId: document.Id.String(), Step: dto.IngestStepUploading, Message: "File uploaded", Progress: 100})

	if err := s.enqueue(ctx, document.Id); err != nil {
		return nil, err
	}

	return &dto.UploadDocumentResponse{
		Id:     document.Id,
		Name:   document.Name,
		Status: document.Status,
	}, nil
}

func (s *ingestionService) Reprocess(ctx context.Context, documentId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	document, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: documentId})
	if err != nil {
		return err
	}
	if document == nil {
		return ErrDocumentNotFound
	}
	return s.enqueue(ctx, documentId)
}

func (s *ingestionService) enqueue(ctx context.Context, documentId uuid.UUID) error {
	payload, err := json.Marshal(dto.PublishIngestDocumentMessage{DocumentId: documentId})
	if err != nil {
		return err
	}
	return s.publisherService.Publish(ctx, payload)
}

func (s *ingestionService) Process(ctx context.Context, documentId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	document, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: documentId})
	if err != nil {
		return err
	}
	if document == nil {
		return ErrDocumentNotFound
	}

	if err := uow.DocumentRepository().UpdateStatus(ctx, documentId, entity.DocumentStatusProcessing, ""); err != nil {
		return err
	}

	if err := s.runPipeline(ctx, uow, document); err != nil {
		s.markFailed(documentId, document.Name, err)
		return err
	}

	s.logger.Info("Ingestion", "Document processed", map[string]interface{}{"document_id": documentId})
	return nil
}

func (s *ingestionService) runPipeline(ctx context.Context, uow unitofwork.UnitOfWork, document *entity.Document) error {
	docId := document.Id.String()

	content, err := s.store.Read(document.StoragePath)
	if err != nil {
		return fmt.Errorf("read stored file: %w", err)
	}

	s.broadcast(dto.IngestProgress{DocumentId: docId, Step: dto.IngestStepExtracting, Message: "Extracting text...", Progress: 0})
	extracted, err := s.extractor.Extract(content, func(current, total int) {
		s.broadcast(dto.IngestProgress{
			DocumentId: docId,
			Step:       dto.IngestStepExtracting,
			Message:    fmt.Sprintf("Extracting page %d/%d", current, total),
			Progress:   percent(current, total),
		})
	})
	if err != nil {
		return err
	}
	if extract.IsScanned(extracted) {
		return errors.New("No text found (scanned PDF?)")
	}

	document.Meta.PageCount = extracted.PageCount
	if err := uow.DocumentRepository().Update(ctx, document); err != nil {
		return err
	}

	s.broadcast(dto.IngestProgress{DocumentId: docId, Step: dto.IngestStepChunking, Message: "Chunking text...", Progress: 0})
	chunks, err := chunker.Split(extracted.Pages, s.opts.Chunker)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return errors.New("no chunks produced from extracted text")
	}
	s.broadcast(dto.IngestProgress{DocumentId: docId, Step: dto.IngestStepChunking, Message: fmt.Sprintf("Created %d chunks", len(chunks)), Progress: 100})

	s.broadcast(dto.IngestProgress{DocumentId: docId, Step: dto.IngestStepEmbedding, Message: "Loading model...", Progress: 0})
	if err := s.embedder.Initialize(ctx, func(progress int) {
		s.broadcast(dto.IngestProgress{DocumentId: docId, Step: dto.IngestStepEmbedding, Message: "Loading model...", Progress: progress})
	}); err != nil {
		return err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts, func(completed, total int) {
		s.broadcast(dto.IngestProgress{
			DocumentId: docId,
			Step:       dto.IngestStepEmbedding,
			Message:    fmt.Sprintf("Embedding chunk %d/%d", completed, total),
			Progress:   percent(completed, total),
		})
	})
	if err != nil {
		return err
	}

	s.broadcast(dto.IngestProgress{DocumentId: docId, Step: dto.IngestStepSaving, Message: "Saving to database...", Progress: 0})

	chunkEntities := make([]*entity.Chunk, len(chunks))
	now := time.Now()
	for i, c := range chunks {
		chunkEntities[i] = &entity.Chunk{
			Id:         uuid.New(),
			DocumentId: document.Id,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Meta: entity.ChunkMeta{
				Pages:     c.Pages,
				CharStart: c.CharStart,
				CharEnd:   c.CharEnd,
			},
			CreatedAt: now,
		}
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChunkEmbeddingRepository().DeleteByDocumentId(ctx, document.Id); err != nil {
		return err
	}
	if err := uow.ChunkRepository().DeleteByDocumentId(ctx, document.Id); err != nil {
		return err
	}
	if err := uow.ChunkRepository().CreateBulk(ctx, chunkEntities); err != nil {
		return err
	}

	s.broadcast(dto.IngestProgress{DocumentId: docId, Step: dto.IngestStepSaving, Message: "Saving embeddings...", Progress: 50})

	embeddings := make([]*entity.ChunkEmbedding, len(vectors))
	for i, values := range vectors {
		embeddings[i] = &entity.ChunkEmbedding{
			Id:        uuid.New(),
			ChunkId:   chunkEntities[i].Id,
			Values:    values,
			Model:     s.opts.EmbeddingModel,
			CreatedAt: now,
		}
	}
	if err := uow.ChunkEmbeddingRepository().CreateBulk(ctx, embeddings); err != nil {
		return err
	}

	if err := uow.DocumentRepository().UpdateStatus(ctx, document.Id, entity.DocumentStatusReady, ""); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return err
	}

	s.broadcast(dto.IngestProgress{DocumentId: docId, Step: dto.IngestStepDone, Message: "Ingestion complete!", Progress: 100})

	if s.eventPublisher != nil {
		evt := events.DocumentReady{
			DocumentId: docId,
			Name:       document.Name,
			ChunkCount: len(chunkEntities),
			OccurredAt: time.Now(),
		}
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("Ingestion", "Failed to publish ready event", map[string]interface{}{"document_id": docId, "error": err.Error()})
		}
	}

	return nil
}

// markFailed is best-effort: the pipeline error is what gets reported.
func (s *ingestionService) markFailed(documentId uuid.UUID, name string, cause error) {
	ctx := context.Background()
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.DocumentRepository().UpdateStatus(ctx, documentId, entity.DocumentStatusFailed, cause.Error()); err != nil {
		s.logger.Error("Ingestion", "Failed to mark document as failed", map[string]interface{}{"document_id": documentId, "error": err.Error()})
	}

	s.broadcast(dto.IngestProgress{DocumentId: documentId.String(), Step: dto.IngestStepError, Message: cause.Error(), Progress: 0})

	if s.eventPublisher != nil {
		evt := events.DocumentFailed{
			DocumentId: documentId.String(),
			Name:       name,
			Reason:     cause.Error(),
			OccurredAt: time.Now(),
		}
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("Ingestion", "Failed to publish failed event", map[string]interface{}{"document_id": documentId, "error": err.Error()})
		}
	}
}

func (s *ingestionService) broadcast(progress dto.IngestProgress) {
	if s.hub != nil {
		s.hub.BroadcastProgress(progress)
	}
}

func percent(current, total int) int {
	if total <= 0 {
		return 0
	}
	return int(float64(current) / float64(total) * 100)
}
