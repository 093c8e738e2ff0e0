package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"kb-assistant-be/internal/dto"
	"kb-assistant-be/internal/entity"
	"kb-assistant-be/internal/pkg/apperror"
	"kb-assistant-be/pkg/events"
	"kb-assistant-be/pkg/extract"
	"kb-assistant-be/pkg/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	readErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) Save(key string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = content
	return nil
}

func (s *fakeStore) Read(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	content, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return content, nil
}

func (s *fakeStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

type fakeQueue struct {
	payloads [][]byte
}

func (q *fakeQueue) Publish(ctx context.Context, payload []byte) error {
	q.payloads = append(q.payloads, payload)
	return nil
}

type fakeEventBus struct {
	published []events.Event
}

func (b *fakeEventBus) Publish(ctx context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}

type fakeProgressHub struct {
	mu       sync.Mutex
	progress []dto.IngestProgress
}

func (h *fakeProgressHub) BroadcastProgress(p dto.IngestProgress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.progress = append(h.progress, p)
}

func (h *fakeProgressHub) steps() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.progress))
	for i, p := range h.progress {
		out[i] = p.Step
	}
	return out
}

type fakeExtractor struct {
	result *extract.Result
	err    error
}

func (f *fakeExtractor) Extract(content []byte, onProgress extract.ProgressFunc) (*extract.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if onProgress != nil {
		for i := 1; i <= f.result.PageCount; i++ {
			onProgress(i, f.result.PageCount)
		}
	}
	return f.result, nil
}

type ingestionFixture struct {
	uow       *fakeUnitOfWork
	store     *fakeStore
	extractor *fakeExtractor
	queue     *fakeQueue
	bus       *fakeEventBus
	hub       *fakeProgressHub
	service   IIngestionService
}

func newIngestionFixture(t *testing.T) *ingestionFixture {
	t.Helper()
	uow := newFakeUnitOfWork()
	store := newFakeStore()
	extractor := &fakeExtractor{result: &extract.Result{PageCount: 0}}
	queue := &fakeQueue{}
	bus := &fakeEventBus{}
	hub := &fakeProgressHub{}
	svc := NewIngestionService(
		&fakeUowFactory{uow: uow},
		store,
		extractor,
		&fakeQuestionEmbedder{vector: make([]float32, entity.EmbeddingDim)},
		queue,
		bus,
		hub,
		noopLogger{},
		IngestionOptions{EmbeddingModel: "all-minilm", PublicBaseURL: "http://localhost:8080"},
	)
	return &ingestionFixture{uow: uow, store: store, extractor: extractor, queue: queue, bus: bus, hub: hub, service: svc}
}

func TestUploadRejectsNonPDF(t *testing.T) {
	fx := newIngestionFixture(t)

	_, err := fx.service.Upload(context.Background(), "notes.txt", []byte("plain text"))
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidInput, appErr.Code)
	assert.Equal(t, "Only PDF files are supported", appErr.Message)

	_, err = fx.service.Upload(context.Background(), "empty.pdf", nil)
	require.Error(t, err)
}

func TestUploadRegistersDocumentAndEnqueues(t *testing.T) {
	fx := newIngestionFixture(t)
	content := []byte("%PDF-1.4 fake content")

	response, err := fx.service.Upload(context.Background(), "handbook.pdf", content)
	require.NoError(t, err)
	assert.Equal(t, "handbook.pdf", response.Name)
	assert.Equal(t, entity.DocumentStatusUploading, response.Status)

	doc, err := fx.uow.documents.FindOne(context.Background())
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.True(t, doc.Enabled)
	assert.True(t, strings.HasPrefix(doc.StoragePath, "kb/"))
	assert.True(t, strings.HasSuffix(doc.StoragePath, "_handbook.pdf"))
	assert.Equal(t, "http://localhost:8080/uploads/"+doc.StoragePath, doc.URL)
	assert.Equal(t, storage.Checksum(content), doc.Checksum)
	assert.Equal(t, int64(len(content)), doc.Meta.FileSize)

	stored, err := fx.store.Read(doc.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, content, stored)

	require.Len(t, fx.queue.payloads, 1)
	var queued dto.PublishIngestDocumentMessage
	require.NoError(t, json.Unmarshal(fx.queue.payloads[0], &queued))
	assert.Equal(t, doc.Id, queued.DocumentId)

	steps := fx.hub.steps()
	require.Len(t, steps, 2)
	assert.Equal(t, dto.IngestStepUploading, steps[0])
	assert.Equal(t, dto.IngestStepUploading, steps[1])
}

func TestUploadIdenticalBytesAreIndependent(t *testing.T) {
	fx := newIngestionFixture(t)
	content := []byte("%PDF-1.4 same bytes")

	first, err := fx.service.Upload(context.Background(), "handbook.pdf", content)
	require.NoError(t, err)

	second, err := fx.service.Upload(context.Background(), "renamed.pdf", content)
	require.NoError(t, err)

	assert.NotEqual(t, first.Id, second.Id)
	assert.Equal(t, "renamed.pdf", second.Name)

	count, _ := fx.uow.documents.Count(context.Background())
	assert.Equal(t, int64(2), count)
	assert.Len(t, fx.queue.payloads, 2)

	docs, err := fx.uow.documents.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, docs[0].Checksum, docs[1].Checksum)
}

func TestReprocessUnknownDocument(t *testing.T) {
	fx := newIngestionFixture(t)
	err := fx.service.Reprocess(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestProcessUnknownDocument(t *testing.T) {
	fx := newIngestionFixture(t)
	err := fx.service.Process(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestProcessIngestsStoredDocument(t *testing.T) {
	fx := newIngestionFixture(t)

	doc := entity.Document{
		Id:          uuid.New(),
		Name:        "handbook.pdf",
		Status:      entity.DocumentStatusUploading,
		Enabled:     true,
		StoragePath: "kb/1_handbook.pdf",
		CreatedAt:   time.Now(),
	}
	require.NoError(t, fx.uow.documents.Create(context.Background(), &doc))
	require.NoError(t, fx.store.Save(doc.StoragePath, []byte("%PDF-1.4 stored bytes")))

	fx.extractor.result = &extract.Result{
		PageCount: 2,
		Pages: []extract.PageText{
			{Page: 1, Text: "Employees accrue twenty days of paid leave per calendar year."},
			{Page: 2, Text: "Unused leave carries over for at most ninety days into the next year."},
		},
	}

	require.NoError(t, fx.service.Process(context.Background(), doc.Id))

	updated, _ := fx.uow.documents.FindOne(context.Background())
	require.NotNil(t, updated)
	assert.Equal(t, entity.DocumentStatusReady, updated.Status)
	assert.Equal(t, 2, updated.Meta.PageCount)
	assert.Empty(t, updated.Meta.Error)

	chunkCount, _ := fx.uow.chunks.Count(context.Background())
	require.Greater(t, chunkCount, int64(0))
	assert.Len(t, fx.uow.embeddings.embeddings, int(chunkCount))
	for _, emb := range fx.uow.embeddings.embeddings {
		assert.Len(t, emb.Values, entity.EmbeddingDim)
		assert.Equal(t, "all-minilm", emb.Model)
	}

	assert.True(t, fx.uow.committed)
	assert.False(t, fx.uow.rolledBack)

	steps := fx.hub.steps()
	require.NotEmpty(t, steps)
	assert.Equal(t, dto.IngestStepDone, steps[len(steps)-1])
	assert.Contains(t, steps, dto.IngestStepExtracting)
	assert.Contains(t, steps, dto.IngestStepChunking)
	assert.Contains(t, steps, dto.IngestStepEmbedding)

	require.Len(t, fx.bus.published, 1)
	ready, ok := fx.bus.published[0].(events.DocumentReady)
	require.True(t, ok)
	assert.Equal(t, doc.Id.String(), ready.DocumentId)
	assert.Equal(t, int(chunkCount), ready.ChunkCount)
}

func TestProcessRejectsImageOnlyDocument(t *testing.T) {
	fx := newIngestionFixture(t)

	doc := entity.Document{
		Id:          uuid.New(),
		Name:        "scan.pdf",
		Status:      entity.DocumentStatusUploading,
		Enabled:     true,
		StoragePath: "kb/1_scan.pdf",
		CreatedAt:   time.Now(),
	}
	require.NoError(t, fx.uow.documents.Create(context.Background(), &doc))
	require.NoError(t, fx.store.Save(doc.StoragePath, []byte("%PDF-1.4 image pages")))

	fx.extractor.result = &extract.Result{
		PageCount: 3,
		Pages:     []extract.PageText{{Page: 2, Text: "  p.2  "}},
	}

	err := fx.service.Process(context.Background(), doc.Id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No text found (scanned PDF?)")

	updated, _ := fx.uow.documents.FindOne(context.Background())
	require.NotNil(t, updated)
	assert.Equal(t, entity.DocumentStatusFailed, updated.Status)

	chunkCount, _ := fx.uow.chunks.Count(context.Background())
	assert.Zero(t, chunkCount)

	steps := fx.hub.steps()
	require.NotEmpty(t, steps)
	assert.Equal(t, dto.IngestStepError, steps[len(steps)-1])
}

func TestProcessMarksDocumentFailed(t *testing.T) {
	fx := newIngestionFixture(t)

	doc := entity.Document{
		Id:          uuid.New(),
		Name:        "broken.pdf",
		Status:      entity.DocumentStatusUploading,
		Enabled:     true,
		StoragePath: "kb/1_broken.pdf",
		CreatedAt:   time.Now(),
	}
	require.NoError(t, fx.uow.documents.Create(context.Background(), &doc))
	fx.store.readErr = errors.New("disk gone")

	err := fx.service.Process(context.Background(), doc.Id)
	require.Error(t, err)

	updated, _ := fx.uow.documents.FindOne(context.Background())
	require.NotNil(t, updated)
	assert.Equal(t, entity.DocumentStatusFailed, updated.Status)
	assert.Contains(t, updated.Meta.Error, "disk gone")

	steps := fx.hub.steps()
	require.NotEmpty(t, steps)
	assert.Equal(t, dto.IngestStepError, steps[len(steps)-1])

	require.Len(t, fx.bus.published, 1)
	failed, ok := fx.bus.published[0].(events.DocumentFailed)
	require.True(t, ok)
	assert.Equal(t, doc.Id.String(), failed.DocumentId)
	assert.Equal(t, "broken.pdf", failed.Name)
}
