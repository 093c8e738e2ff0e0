package main

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"kb-assistant-be/internal/config"
	"kb-assistant-be/internal/dto"
	"kb-assistant-be/internal/pkg/logger"
	"kb-assistant-be/internal/repository/unitofwork"
	"kb-assistant-be/internal/service"
	"kb-assistant-be/pkg/database"
	"kb-assistant-be/pkg/embedding"
	"kb-assistant-be/pkg/extract"
	"kb-assistant-be/pkg/rag/chunker"
	"kb-assistant-be/pkg/storage"

	"github.com/fatih/color"
)

// consoleProgress prints pipeline progress the way the websocket hub
// would stream it to an admin UI.
type consoleProgress struct {
	stepColor *color.Color
	errColor  *color.Color
}

func newConsoleProgress() *consoleProgress {
	return &consoleProgress{
		stepColor: color.New(color.FgCyan),
		errColor:  color.New(color.FgRed, color.Bold),
	}
}

func (p *consoleProgress) BroadcastProgress(progress dto.IngestProgress) {
	if progress.Step == dto.IngestStepError {
		p.errColor.Printf("[%s] %s\n", progress.Step, progress.Message)
		return
	}
	p.stepColor.Printf("[%-10s] %3d%% %s\n", progress.Step, progress.Progress, progress.Message)
}

// noopQueue satisfies the publisher dependency; this command runs the
// pipeline inline instead of enqueueing.
type noopQueue struct{}

func (noopQueue) Publish(ctx context.Context, payload []byte) error { return nil }

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: %s <path-to-pdf>", filepath.Base(os.Args[0]))
	}
	pdfPath := os.Args[1]

	content, err := os.ReadFile(pdfPath)
	if err != nil {
		log.Fatalf("Error: failed to read %s: %v", pdfPath, err)
	}

	cfg := config.Load()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatalf("Error: failed to connect to database: %v", err)
	}
	uowFactory := unitofwork.NewRepositoryFactory(db)

	store, err := storage.NewLocalStore(cfg.Storage.UploadDir)
	if err != nil {
		log.Fatalf("Error: failed to open upload store: %v", err)
	}

	var provider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		provider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
	} else {
		provider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini, "")
	}
	embedder := embedding.NewOrchestrator(provider, embedding.OrchestratorOptions{
		BatchSize: cfg.Ingestion.BatchSize,
		Timeout:   cfg.Ai.EmbedTimeout,
	})

	ingestionService := service.NewIngestionService(
		uowFactory,
		store,
		extract.NewPDFExtractor(),
		embedder,
		noopQueue{},
		nil,
		newConsoleProgress(),
		logger.NewZapLogger(cfg.App.LogFilePath, false),
		service.IngestionOptions{
			Chunker: chunker.Options{
				ChunkSize: cfg.Ingestion.ChunkSize,
				Overlap:   cfg.Ingestion.Overlap,
			},
			EmbeddingModel: cfg.Ai.EmbeddingModel,
			PublicBaseURL:  cfg.App.BaseURL,
		},
	)

	ctx := context.Background()

	res, err := ingestionService.Upload(ctx, filepath.Base(pdfPath), content)
	if err != nil {
		log.Fatalf("Error: upload failed: %v", err)
	}

	if err := ingestionService.Process(ctx, res.Id); err != nil {
		log.Fatalf("Error: ingestion failed: %v", err)
	}

	color.New(color.FgGreen, color.Bold).Printf("Document %s (%s) is ready.\n", res.Name, res.Id)
}
