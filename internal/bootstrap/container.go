package bootstrap

import (
	"context"
	"log"

	"kb-assistant-be/internal/config"
	"kb-assistant-be/internal/controller"
	"kb-assistant-be/internal/handler"
	"kb-assistant-be/internal/pkg/logger"
	"kb-assistant-be/internal/repository/unitofwork"
	"kb-assistant-be/internal/service"
	"kb-assistant-be/internal/websocket"
	"kb-assistant-be/pkg/chat/ratelimit"
	"kb-assistant-be/pkg/embedding"
	"kb-assistant-be/pkg/extract"
	"kb-assistant-be/pkg/llm/factory"
	"kb-assistant-be/pkg/rag/chunker"
	"kb-assistant-be/pkg/rag/search"
	"kb-assistant-be/pkg/storage"

	pktNats "kb-assistant-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController     controller.IChatController
	DocumentController controller.IDocumentController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	IngestWsHandler *handler.IngestWsHandler
	WebSocketHub    *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	store, err := storage.NewLocalStore(cfg.Storage.UploadDir)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize upload store: %v", err)
	}

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini, "")
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	embedder := embedding.NewOrchestrator(embeddingProvider, embedding.OrchestratorOptions{
		BatchSize: cfg.Ingestion.BatchSize,
		Timeout:   cfg.Ai.EmbedTimeout,
	})

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Keys.GoogleGemini,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	var eventPublisher service.EventPublisher
	if natsPub != nil {
		eventPublisher = natsPub
	}

	// Redis (optional; rate limiting and hub fan-out fall back to in-process)
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
	}

	var limiterStore ratelimit.WindowStore
	if rdb != nil {
		limiterStore = ratelimit.NewRedisStore(rdb)
	} else {
		limiterStore = ratelimit.NewMemoryStore()
	}
	limiter := ratelimit.NewLimiter(limiterStore, cfg.Chat.RateLimitWindow, cfg.Chat.RateLimitMax)

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/ingestion.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 5. Services
	publisherService := service.NewPublisherService(cfg.Keys.IngestTopic, pubSub)

	ingestionService := service.NewIngestionService(
		uowFactory,
		store,
		extract.NewPDFExtractor(),
		embedder,
		publisherService,
		eventPublisher,
		wsHub,
		sysLogger,
		service.IngestionOptions{
			Chunker: chunker.Options{
				ChunkSize: cfg.Ingestion.ChunkSize,
				Overlap:   cfg.Ingestion.Overlap,
			},
			EmbeddingModel: cfg.Ai.EmbeddingModel,
			PublicBaseURL:  cfg.App.BaseURL,
		},
	)

	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Keys.IngestTopic,
		ingestionService,
		sysLogger,
	)

	retriever := search.NewRetriever(
		uowFactory.NewUnitOfWork(context.Background()),
		search.Options{
			MatchCount: cfg.Chat.MatchCount,
			Threshold:  cfg.Chat.EvidenceThreshold,
		},
	)

	chatService := service.NewChatService(
		uowFactory,
		llmProvider,
		embedder,
		retriever,
		limiter,
		sysLogger,
		service.ChatOptions{EvidenceThreshold: cfg.Chat.EvidenceThreshold},
	)

	documentService := service.NewDocumentService(uowFactory, store, sysLogger)

	// 6. Controllers
	return &Container{
		ChatController:     controller.NewChatController(chatService),
		DocumentController: controller.NewDocumentController(documentService, ingestionService),

		ConsumerService: consumerService,

		IngestWsHandler: handler.NewIngestWsHandler(wsHub, wsLogger),
		WebSocketHub:    wsHub,
	}
}
