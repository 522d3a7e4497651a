package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"command-center/internal/ai"
	"command-center/internal/app"
	"command-center/internal/cache"
	"command-center/internal/config"
	mysqlClient "command-center/internal/platform/mysql"
	postgresClient "command-center/internal/platform/postgres"
	qdrantClient "command-center/internal/platform/qdrant"
	rabbitmqClient "command-center/internal/platform/rabbitmq"
	redisClient "command-center/internal/platform/redis"
	"command-center/internal/store"
	"command-center/internal/worker"
)

// App owns every long-lived dependency. Optional ones are nil when disabled.
type App struct {
	Config       *config.Config
	Log          *zap.SugaredLogger
	DB           *gorm.DB
	Bolt         *store.BoltStore
	Qdrant       *qdrant.Client
	Redis        *redis.Client
	MQConn       *amqp.Connection
	IngestWorker *worker.IngestWorker
	RAG          *app.RAGService

	StartedAt time.Time
}

func New(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*App, error) {
	a := &App{Config: cfg, Log: log, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	catalog, vectors, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	if cfg.Store.VectorBackend == "qdrant" {
		a.Qdrant, err = qdrantClient.New(ctx, cfg.Qdrant)
		if err != nil {
			return err
		}
		vectors = store.NewQdrantStore(a.Qdrant, cfg.Qdrant.Collection)
	}

	if cfg.LLM.APIKey == "" {
		a.Log.Warn("LLM_API_KEY is empty; upstream calls will be rejected")
	}
	llm := ai.NewOpenAICompatibleClient(ai.Options{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		ChatModel:      cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Timeout:        time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		RetryMax:       cfg.LLM.RetryMax,
	})

	a.RAG = app.NewRAGService(vectors, catalog, llm, llm, app.RAGOptions{
		ChunkSize:      cfg.RAG.ChunkSize,
		ChunkOverlap:   cfg.RAG.ChunkOverlap,
		TopK:           cfg.RAG.TopK,
		EmbedBatchSize: cfg.RAG.EmbedBatchSize,
		SystemPrompt:   cfg.RAG.SystemPrompt,
	}, a.Log)

	if cfg.Redis.Enabled {
		a.Redis, err = redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		ttl := time.Duration(cfg.Redis.SearchTTLSeconds) * time.Second
		a.RAG.WithCache(cache.NewSearchCache(a.Redis, ttl))
	}

	if cfg.RabbitMQ.Enabled {
		a.MQConn, err = rabbitmqClient.New(cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		a.RAG.WithPublisher(rabbitmqClient.NewIngestPublisher(a.MQConn, cfg.RabbitMQ.IngestQueue))
		a.IngestWorker = worker.NewIngestWorker(a.MQConn, a.RAG, cfg.RabbitMQ.IngestQueue, a.Log)
	}

	a.Log.Infow("dependencies ready",
		"store", cfg.Store.Backend,
		"vector_store", vectorBackendName(cfg),
		"redis", cfg.Redis.Enabled,
		"rabbitmq", cfg.RabbitMQ.Enabled,
	)
	return nil
}

func (a *App) openStore(ctx context.Context) (app.DocumentCatalog, app.VectorStore, error) {
	cfg := a.Config
	switch cfg.Store.Backend {
	case "memory":
		s := store.NewMemoryStore()
		return s, s, nil
	case "bolt":
		s, err := store.NewBoltStore(cfg.Bolt.Path)
		if err != nil {
			return nil, nil, err
		}
		a.Bolt = s
		return s, s, nil
	case "mysql", "postgres":
		var err error
		if cfg.Store.Backend == "mysql" {
			a.DB, err = mysqlClient.New(ctx, cfg.MySQLDSN())
		} else {
			a.DB, err = postgresClient.New(ctx, cfg.PostgresDSN())
		}
		if err != nil {
			return nil, nil, err
		}
		s, err := store.NewSQLStore(a.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("auto migrate tables failed: %w", err)
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// StartWorkers launches background consumers. Only the server calls this.
func (a *App) StartWorkers(ctx context.Context) error {
	if a.IngestWorker == nil {
		return nil
	}
	if err := a.IngestWorker.Start(ctx); err != nil {
		return fmt.Errorf("start ingest worker failed: %w", err)
	}
	return nil
}

func (a *App) Close() error {
	var closeErr error
	if a.IngestWorker != nil {
		a.IngestWorker.Close()
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
	if a.Bolt != nil {
		if err := a.Bolt.Close(); err != nil {
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

func vectorBackendName(cfg *config.Config) string {
	if cfg.Store.VectorBackend != "" {
		return cfg.Store.VectorBackend
	}
	return cfg.Store.Backend
}
