package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Keys      APIKeys
	Ai        AIConfig
	Chat      ChatConfig
	Ingestion IngestionConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type StorageConfig struct {
	// Root directory for uploaded document objects.
	UploadDir string
}

type APIKeys struct {
	GoogleGemini string
	IngestTopic  string // Watermill topic for background document processing
}

type AIConfig struct {
	EmbeddingProvider string // "ollama" or "gemini"
	OllamaBaseURL     string
	OllamaModel       string
	EmbeddingModel    string // Recorded on every embedding row
	LLMProvider       string // "ollama" or "gemini"
	LLMModel          string
	EmbedTimeout      time.Duration
}

type ChatConfig struct {
	EvidenceThreshold float64
	MatchCount        int
	RateLimitWindow   time.Duration
	RateLimitMax      int
}

type IngestionConfig struct {
	ChunkSize int
	Overlap   int
	BatchSize int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Storage: StorageConfig{
			UploadDir: getEnv("UPLOAD_DIR", "./uploads"),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			IngestTopic:  getEnv("INGEST_DOCUMENT_TOPIC_NAME", "INGEST_DOCUMENT"),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "all-minilm"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL_ID", "all-minilm-l6-v2"),
			LLMProvider:       getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:          getEnv("LLM_MODEL", "llama3"),
			EmbedTimeout:      getEnvAsDuration("EMBED_TIMEOUT", 60*time.Second),
		},
		Chat: ChatConfig{
			EvidenceThreshold: getEnvAsFloat("CHAT_EVIDENCE_THRESHOLD", 0.2),
			MatchCount:        getEnvAsInt("CHAT_MATCH_COUNT", 6),
			RateLimitWindow:   getEnvAsDuration("CHAT_RATE_LIMIT_WINDOW", time.Minute),
			RateLimitMax:      getEnvAsInt("CHAT_RATE_LIMIT_MAX", 20),
		},
		Ingestion: IngestionConfig{
			ChunkSize: getEnvAsInt("INGEST_CHUNK_SIZE", 1200),
			Overlap:   getEnvAsInt("INGEST_CHUNK_OVERLAP", 150),
			BatchSize: getEnvAsInt("INGEST_EMBED_BATCH_SIZE", 5),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
