package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig          `toml:"app"`
	Log          LogConfig          `toml:"log"`
	Session      SessionConfig      `toml:"session"`
	Database     DatabaseConfig     `toml:"database"`
	Redis        RedisConfig        `toml:"redis"`
	RabbitMQ     RabbitMQConfig     `toml:"rabbitmq"`
	VectorStore  VectorStoreConfig  `toml:"vector_store"`
	LLM          LLMConfig          `toml:"llm"`
	Embedding    EmbeddingConfig    `toml:"embedding"`
	Chunking     ChunkingConfig     `toml:"chunking"`
	Retrieval    RetrievalConfig    `toml:"retrieval"`
	Conversation ConversationConfig `toml:"conversation"`
	Upload       UploadConfig       `toml:"upload"`
}

type AppConfig struct {
	Name    string `toml:"name"`
	Env     string `toml:"env"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	GinMode string `toml:"gin_mode"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// SessionConfig selects how the session id travels between client and server.
// Mode "header" uses a plain id in HeaderName; mode "cookie" stores a signed
// token in CookieName.
type SessionConfig struct {
	Mode          string `toml:"mode"`
	HeaderName    string `toml:"header_name"`
	CookieName    string `toml:"cookie_name"`
	Secret        string `toml:"secret"`
	CookieTTLHour int    `toml:"cookie_ttl_hour"`
	SecureCookie  bool   `toml:"secure_cookie"`
}

type DatabaseConfig struct {
	Driver   string `toml:"driver"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DB       string `toml:"db"`
	Params   string `toml:"params"`
	// Path is used by the sqlite driver only.
	Path string `toml:"path"`
}

type RedisConfig struct {
	Addr                   string `toml:"addr"`
	Password               string `toml:"password"`
	DB                     int    `toml:"db"`
	HistoryTTLSeconds      int    `toml:"history_ttl_seconds"`
	HistoryDirtyTTLSeconds int    `toml:"history_dirty_ttl_seconds"`
}

type RabbitMQConfig struct {
	URL                 string `toml:"url"`
	MessagePersistQueue string `toml:"message_persist_queue"`
}

type VectorStoreConfig struct {
	Backend          string `toml:"backend"`
	QdrantHost       string `toml:"qdrant_host"`
	QdrantPort       int    `toml:"qdrant_port"`
	QdrantAPIKey     string `toml:"qdrant_api_key"`
	QdrantCollection string `toml:"qdrant_collection"`
}

type LLMConfig struct {
	Provider       string `toml:"provider"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type EmbeddingConfig struct {
	BatchSize    int `toml:"batch_size"`
	MaxChars     int `toml:"max_chars"`
	MaxAttempts  int `toml:"max_attempts"`
	RetryDelayMS int `toml:"retry_delay_ms"`
	Dimensions   int `toml:"dimensions"`
}

type ChunkingConfig struct {
	Size    int `toml:"size"`
	Overlap int `toml:"overlap"`
}

type RetrievalConfig struct {
	TopK      int     `toml:"top_k"`
	Threshold float64 `toml:"threshold"`
	Overfetch int     `toml:"overfetch"`
}

type ConversationConfig struct {
	HistoryLimit int `toml:"history_limit"`
}

type UploadConfig struct {
	MaxFiles  int    `toml:"max_files"`
	MaxFileMB int    `toml:"max_file_mb"`
	TempDir   string `toml:"temp_dir"`
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Session.Mode {
	case "header", "cookie":
	default:
		return fmt.Errorf("invalid session mode %q", c.Session.Mode)
	}
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid database driver %q", c.Database.Driver)
	}
	switch c.VectorStore.Backend {
	case "sql":
	case "qdrant":
		if c.Embedding.Dimensions <= 0 {
			return fmt.Errorf("qdrant backend requires embedding.dimensions")
		}
	default:
		return fmt.Errorf("invalid vector store backend %q", c.VectorStore.Backend)
	}
	switch c.LLM.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("invalid llm provider %q", c.LLM.Provider)
	}
	if c.Chunking.Size <= 0 || c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("invalid chunking size/overlap %d/%d", c.Chunking.Size, c.Chunking.Overlap)
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

// DSN returns the driver specific connection string.
func (c *Config) DSN() string {
	d := c.Database
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s %s",
			d.Host, d.Port, d.User, d.Password, d.DB, d.Params)
	case "sqlite":
		return d.Path
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			d.User, d.Password, d.Host, d.Port, d.DB, d.Params)
	}
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Embedding.RetryDelayMS) * time.Millisecond
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxFileMB) << 20
}

// Default returns the built-in configuration without reading files or env.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "pdfqa",
			Env:     "dev",
			Host:    "0.0.0.0",
			Port:    3000,
			GinMode: "debug",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Session: SessionConfig{
			Mode:          "header",
			HeaderName:    "X-Session-Id",
			CookieName:    "pdfqa_session",
			Secret:        "change-me-in-production",
			CookieTTLHour: 24 * 7,
		},
		Database: DatabaseConfig{
			Driver: "postgres",
			Host:   "127.0.0.1",
			Port:   5432,
			User:   "postgres",
			DB:     "pdfqa",
			Params: "sslmode=disable",
			Path:   "pdfqa.db",
		},
		Redis: RedisConfig{
			HistoryTTLSeconds:      60,
			HistoryDirtyTTLSeconds: 5,
		},
		RabbitMQ: RabbitMQConfig{
			MessagePersistQueue: "pdfqa.message.persist",
		},
		VectorStore: VectorStoreConfig{
			Backend:          "sql",
			QdrantHost:       "localhost",
			QdrantPort:       6334,
			QdrantCollection: "document_chunks",
		},
		LLM: LLMConfig{
			Provider:       "gemini",
			Model:          "gemini-1.5-pro",
			EmbeddingModel: "text-embedding-004",
			TimeoutSeconds: 90,
		},
		Embedding: EmbeddingConfig{
			BatchSize:    10,
			MaxChars:     2048,
			MaxAttempts:  3,
			RetryDelayMS: 1000,
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Retrieval: RetrievalConfig{
			TopK:      5,
			Threshold: 0.3,
			Overfetch: 3,
		},
		Conversation: ConversationConfig{
			HistoryLimit: 5,
		},
		Upload: UploadConfig{
			MaxFiles:  10,
			MaxFileMB: 20,
			TempDir:   os.TempDir(),
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.Session.Mode = getEnv("SESSION_MODE", cfg.Session.Mode)
	cfg.Session.Secret = getEnv("SESSION_SECRET", cfg.Session.Secret)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvAsInt("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DB = getEnv("DB_NAME", cfg.Database.DB)
	cfg.Database.Params = getEnv("DB_PARAMS", cfg.Database.Params)
	cfg.Database.Path = getEnv("DB_PATH", cfg.Database.Path)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.HistoryTTLSeconds = getEnvAsInt("REDIS_HISTORY_TTL_SECONDS", cfg.Redis.HistoryTTLSeconds)
	cfg.Redis.HistoryDirtyTTLSeconds = getEnvAsInt("REDIS_HISTORY_DIRTY_TTL_SECONDS", cfg.Redis.HistoryDirtyTTLSeconds)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.MessagePersistQueue = getEnv("RABBITMQ_MESSAGE_PERSIST_QUEUE", cfg.RabbitMQ.MessagePersistQueue)

	cfg.VectorStore.Backend = getEnv("VECTOR_STORE", cfg.VectorStore.Backend)
	cfg.VectorStore.QdrantHost = getEnv("QDRANT_HOST", cfg.VectorStore.QdrantHost)
	cfg.VectorStore.QdrantPort = getEnvAsInt("QDRANT_PORT", cfg.VectorStore.QdrantPort)
	cfg.VectorStore.QdrantAPIKey = getEnv("QDRANT_API_KEY", cfg.VectorStore.QdrantAPIKey)

	cfg.LLM.Provider = getEnv("LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = getEnv("GOOGLE_API_KEY", "")
	}
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.EmbeddingModel = getEnv("LLM_EMBEDDING_MODEL", cfg.LLM.EmbeddingModel)

	cfg.Embedding.Dimensions = getEnvAsInt("EMBEDDING_DIMENSIONS", cfg.Embedding.Dimensions)
	cfg.Retrieval.TopK = getEnvAsInt("RETRIEVAL_TOP_K", cfg.Retrieval.TopK)
	cfg.Retrieval.Threshold = getEnvAsFloat("RETRIEVAL_THRESHOLD", cfg.Retrieval.Threshold)

	cfg.Upload.TempDir = getEnv("UPLOAD_TEMP_DIR", cfg.Upload.TempDir)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
