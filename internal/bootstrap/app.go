package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qdrant/go-client/qdrant"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"pdfqa/internal/ai"
	"pdfqa/internal/app"
	"pdfqa/internal/cache"
	"pdfqa/internal/config"
	"pdfqa/internal/platform/database"
	"pdfqa/internal/platform/logging"
	qdrantClient "pdfqa/internal/platform/qdrant"
	rabbitmqClient "pdfqa/internal/platform/rabbitmq"
	redisClient "pdfqa/internal/platform/redis"
	"pdfqa/internal/repository"
	"pdfqa/internal/vectorindex"
	"pdfqa/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger

	DB            *gorm.DB
	Redis         *redis.Client
	MQConn        *amqp.Connection
	Publisher     *rabbitmqClient.MessagePublisher
	MessageWorker *worker.MessagePersistWorker
	Qdrant        *qdrant.Client
	Provider      ai.Provider

	Services *Services

	StartedAt time.Time
}

// New connects every configured backend and wires the services. Redis,
// RabbitMQ and Qdrant are optional and stay nil when not configured.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	a := &App{Config: cfg, Logger: logger, StartedAt: time.Now()}
	if err := a.connect(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) connect(ctx context.Context) error {
	cfg := a.Config

	db, err := database.New(ctx, cfg.Database.Driver, cfg.DSN())
	if err != nil {
		return err
	}
	a.DB = db
	if err := database.Migrate(db); err != nil {
		return err
	}

	if a.Redis, err = redisClient.New(ctx, cfg.Redis); err != nil {
		return err
	}
	if a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL); err != nil {
		return err
	}

	deps := Dependencies{Logger: a.Logger}

	if cfg.VectorStore.Backend == "qdrant" {
		if a.Qdrant, err = qdrantClient.New(ctx, cfg.VectorStore); err != nil {
			return err
		}
		index := vectorindex.NewQdrant(a.Qdrant, cfg.VectorStore.QdrantCollection, cfg.Embedding.Dimensions)
		if err := index.EnsureCollection(ctx); err != nil {
			return err
		}
		deps.Index = index
	}

	if a.Redis != nil {
		deps.Cache = cache.NewHistoryCache(
			a.Redis,
			time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
		)
	}

	if a.MQConn != nil {
		a.Publisher = rabbitmqClient.NewMessagePublisher(a.MQConn, cfg.RabbitMQ.MessagePersistQueue)
		deps.Sink = a.Publisher

		messageRepo := repository.NewMessageRepository(db)
		a.MessageWorker = worker.NewMessagePersistWorker(a.MQConn, messageRepo, cfg.RabbitMQ.MessagePersistQueue, a.Logger)
		if err := a.MessageWorker.Start(ctx); err != nil {
			return fmt.Errorf("start message worker failed: %w", err)
		}
	}

	if a.Provider, err = ai.New(ctx, cfg.LLM); err != nil {
		return err
	}
	deps.Embeddings = a.Provider
	deps.Generator = a.Provider

	a.Services = NewServices(cfg, db, deps)
	a.Logger.Info("app initialized",
		"database", cfg.Database.Driver,
		"vector_store", cfg.VectorStore.Backend,
		"provider", a.Provider.Name(),
		"redis", a.Redis != nil,
		"rabbitmq", a.MQConn != nil,
	)
	return nil
}

func (a *App) Close() error {
	var closeErr error
	if a.MessageWorker != nil {
		a.MessageWorker.Close()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Qdrant != nil {
		if err := a.Qdrant.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		sqlDB, err := a.DB.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
