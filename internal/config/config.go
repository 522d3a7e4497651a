package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig       `toml:"app" yaml:"app"`
	Auth      AuthConfig      `toml:"auth" yaml:"auth"`
	LLM       LLMConfig       `toml:"llm" yaml:"llm"`
	RAG       RAGConfig       `toml:"rag" yaml:"rag"`
	Store     StoreConfig     `toml:"store" yaml:"store"`
	MySQL     MySQLConfig     `toml:"mysql" yaml:"mysql"`
	Postgres  PostgresConfig  `toml:"postgres" yaml:"postgres"`
	Bolt      BoltConfig      `toml:"bolt" yaml:"bolt"`
	Qdrant    QdrantConfig    `toml:"qdrant" yaml:"qdrant"`
	Redis     RedisConfig     `toml:"redis" yaml:"redis"`
	RabbitMQ  RabbitMQConfig  `toml:"rabbitmq" yaml:"rabbitmq"`
	RateLimit RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
}

type AppConfig struct {
	Name    string `toml:"name" yaml:"name"`
	Env     string `toml:"env" yaml:"env"`
	Host    string `toml:"host" yaml:"host"`
	Port    int    `toml:"port" yaml:"port"`
	GinMode string `toml:"gin_mode" yaml:"gin_mode"`
}

type AuthConfig struct {
	Enabled         bool   `toml:"enabled" yaml:"enabled"`
	JWTSecret       string `toml:"jwt_secret" yaml:"jwt_secret"`
	JWTExpireMinute int    `toml:"jwt_expire_minute" yaml:"jwt_expire_minute"`
}

type LLMConfig struct {
	BaseURL        string `toml:"base_url" yaml:"base_url"`
	APIKey         string `toml:"api_key" yaml:"api_key"`
	Model          string `toml:"model" yaml:"model"`
	EmbeddingModel string `toml:"embedding_model" yaml:"embedding_model"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
	// RetryMax of 0 means a single attempt per call.
	RetryMax int `toml:"retry_max" yaml:"retry_max"`
}

type RAGConfig struct {
	ChunkSize      int    `toml:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap   int    `toml:"chunk_overlap" yaml:"chunk_overlap"`
	TopK           int    `toml:"top_k" yaml:"top_k"`
	EmbedBatchSize int    `toml:"embed_batch_size" yaml:"embed_batch_size"`
	MaxUploadMB    int    `toml:"max_upload_mb" yaml:"max_upload_mb"`
	SystemPrompt   string `toml:"system_prompt" yaml:"system_prompt"`
}

type StoreConfig struct {
	// Backend holds document metadata and, unless VectorBackend is set, chunks too.
	// One of memory, bolt, mysql, postgres.
	Backend       string `toml:"backend" yaml:"backend"`
	VectorBackend string `toml:"vector_backend" yaml:"vector_backend"`
}

type MySQLConfig struct {
	Host     string `toml:"host" yaml:"host"`
	Port     int    `toml:"port" yaml:"port"`
	User     string `toml:"user" yaml:"user"`
	Password string `toml:"password" yaml:"password"`
	DB       string `toml:"db" yaml:"db"`
	Params   string `toml:"params" yaml:"params"`
}

type PostgresConfig struct {
	Host     string `toml:"host" yaml:"host"`
	Port     int    `toml:"port" yaml:"port"`
	User     string `toml:"user" yaml:"user"`
	Password string `toml:"password" yaml:"password"`
	DB       string `toml:"db" yaml:"db"`
	SSLMode  string `toml:"sslmode" yaml:"sslmode"`
}

type BoltConfig struct {
	Path string `toml:"path" yaml:"path"`
}

type QdrantConfig struct {
	Host       string `toml:"host" yaml:"host"`
	Port       int    `toml:"port" yaml:"port"`
	APIKey     string `toml:"api_key" yaml:"api_key"`
	UseTLS     bool   `toml:"use_tls" yaml:"use_tls"`
	Collection string `toml:"collection" yaml:"collection"`
}

type RedisConfig struct {
	Enabled          bool   `toml:"enabled" yaml:"enabled"`
	Addr             string `toml:"addr" yaml:"addr"`
	Password         string `toml:"password" yaml:"password"`
	DB               int    `toml:"db" yaml:"db"`
	SearchTTLSeconds int    `toml:"search_ttl_seconds" yaml:"search_ttl_seconds"`
}

type RabbitMQConfig struct {
	Enabled     bool   `toml:"enabled" yaml:"enabled"`
	URL         string `toml:"url" yaml:"url"`
	IngestQueue string `toml:"ingest_queue" yaml:"ingest_queue"`
}

type RateLimitConfig struct {
	Enabled   bool    `toml:"enabled" yaml:"enabled"`
	PerSecond float64 `toml:"per_second" yaml:"per_second"`
	Burst     int     `toml:"burst" yaml:"burst"`
}

// Load reads CONFIG_FILE (default configs/config.toml) if it exists and then
// applies environment overrides.
func Load() (*Config, error) {
	return LoadFile(getEnv("CONFIG_FILE", "configs/config.toml"))
}

// LoadFile is Load with an explicit path. A missing file is not an error.
func LoadFile(configPath string) (*Config, error) {
	cfg := defaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		if err := decodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file failed: %w", err)
		}
	}

	overrideByEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return yaml.Unmarshal(raw, cfg)
	default:
		_, err := toml.DecodeFile(path, cfg)
		return err
	}
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "bolt", "mysql", "postgres":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Store.VectorBackend {
	case "", "qdrant":
	default:
		return fmt.Errorf("unknown vector backend %q", c.Store.VectorBackend)
	}
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk_size must be positive")
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if c.RabbitMQ.Enabled && c.RabbitMQ.URL == "" {
		return fmt.Errorf("rabbitmq.url is required when rabbitmq is enabled")
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		c.MySQL.User,
		c.MySQL.Password,
		c.MySQL.Host,
		c.MySQL.Port,
		c.MySQL.DB,
		c.MySQL.Params,
	)
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.DB,
		c.Postgres.SSLMode,
	)
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.RAG.MaxUploadMB) << 20
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:    "command-center",
			Env:     "dev",
			Host:    "0.0.0.0",
			Port:    8080,
			GinMode: "debug",
		},
		Auth: AuthConfig{
			Enabled:         false,
			JWTExpireMinute: 120,
		},
		LLM: LLMConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			TimeoutSeconds: 90,
			RetryMax:       0,
		},
		RAG: RAGConfig{
			ChunkSize:      1000,
			ChunkOverlap:   0,
			TopK:           5,
			EmbedBatchSize: 10,
			MaxUploadMB:    10,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		MySQL: MySQLConfig{
			Host:   "127.0.0.1",
			Port:   3306,
			User:   "root",
			DB:     "command_center",
			Params: "parseTime=true&loc=Local&charset=utf8mb4",
		},
		Postgres: PostgresConfig{
			Host:    "127.0.0.1",
			Port:    5432,
			User:    "postgres",
			DB:      "command_center",
			SSLMode: "disable",
		},
		Bolt: BoltConfig{
			Path: "data/rag.db",
		},
		Qdrant: QdrantConfig{
			Host:       "127.0.0.1",
			Port:       6334,
			Collection: "rag_chunks",
		},
		Redis: RedisConfig{
			Addr:             "127.0.0.1:6379",
			SearchTTLSeconds: 300,
		},
		RabbitMQ: RabbitMQConfig{
			IngestQueue: "rag.ingest",
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			PerSecond: 5,
			Burst:     10,
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("APP_PORT", cfg.App.Port)
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)

	cfg.Auth.Enabled = getEnvAsBool("AUTH_ENABLED", cfg.Auth.Enabled)
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTExpireMinute = getEnvAsInt("JWT_EXPIRE_MINUTE", cfg.Auth.JWTExpireMinute)

	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.EmbeddingModel = getEnv("LLM_EMBEDDING_MODEL", cfg.LLM.EmbeddingModel)
	cfg.LLM.TimeoutSeconds = getEnvAsInt("LLM_TIMEOUT_SECONDS", cfg.LLM.TimeoutSeconds)
	cfg.LLM.RetryMax = getEnvAsInt("LLM_RETRY_MAX", cfg.LLM.RetryMax)

	cfg.RAG.ChunkSize = getEnvAsInt("RAG_CHUNK_SIZE", cfg.RAG.ChunkSize)
	cfg.RAG.ChunkOverlap = getEnvAsInt("RAG_CHUNK_OVERLAP", cfg.RAG.ChunkOverlap)
	cfg.RAG.TopK = getEnvAsInt("RAG_TOP_K", cfg.RAG.TopK)
	cfg.RAG.EmbedBatchSize = getEnvAsInt("RAG_EMBED_BATCH_SIZE", cfg.RAG.EmbedBatchSize)
	cfg.RAG.MaxUploadMB = getEnvAsInt("RAG_MAX_UPLOAD_MB", cfg.RAG.MaxUploadMB)
	cfg.RAG.SystemPrompt = getEnv("RAG_SYSTEM_PROMPT", cfg.RAG.SystemPrompt)

	cfg.Store.Backend = getEnv("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.VectorBackend = getEnv("STORE_VECTOR_BACKEND", cfg.Store.VectorBackend)

	cfg.MySQL.Host = getEnv("MYSQL_HOST", cfg.MySQL.Host)
	cfg.MySQL.Port = getEnvAsInt("MYSQL_PORT", cfg.MySQL.Port)
	cfg.MySQL.User = getEnv("MYSQL_USER", cfg.MySQL.User)
	cfg.MySQL.Password = getEnv("MYSQL_PASSWORD", cfg.MySQL.Password)
	cfg.MySQL.DB = getEnv("MYSQL_DB", cfg.MySQL.DB)
	cfg.MySQL.Params = getEnv("MYSQL_PARAMS", cfg.MySQL.Params)

	cfg.Postgres.Host = getEnv("POSTGRES_HOST", cfg.Postgres.Host)
	cfg.Postgres.Port = getEnvAsInt("POSTGRES_PORT", cfg.Postgres.Port)
	cfg.Postgres.User = getEnv("POSTGRES_USER", cfg.Postgres.User)
	cfg.Postgres.Password = getEnv("POSTGRES_PASSWORD", cfg.Postgres.Password)
	cfg.Postgres.DB = getEnv("POSTGRES_DB", cfg.Postgres.DB)
	cfg.Postgres.SSLMode = getEnv("POSTGRES_SSLMODE", cfg.Postgres.SSLMode)

	cfg.Bolt.Path = getEnv("BOLT_PATH", cfg.Bolt.Path)

	cfg.Qdrant.Host = getEnv("QDRANT_HOST", cfg.Qdrant.Host)
	cfg.Qdrant.Port = getEnvAsInt("QDRANT_PORT", cfg.Qdrant.Port)
	cfg.Qdrant.APIKey = getEnv("QDRANT_API_KEY", cfg.Qdrant.APIKey)
	cfg.Qdrant.UseTLS = getEnvAsBool("QDRANT_USE_TLS", cfg.Qdrant.UseTLS)
	cfg.Qdrant.Collection = getEnv("QDRANT_COLLECTION", cfg.Qdrant.Collection)

	cfg.Redis.Enabled = getEnvAsBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.SearchTTLSeconds = getEnvAsInt("REDIS_SEARCH_TTL_SECONDS", cfg.Redis.SearchTTLSeconds)

	cfg.RabbitMQ.Enabled = getEnvAsBool("RABBITMQ_ENABLED", cfg.RabbitMQ.Enabled)
	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.IngestQueue = getEnv("RABBITMQ_INGEST_QUEUE", cfg.RabbitMQ.IngestQueue)

	cfg.RateLimit.Enabled = getEnvAsBool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.PerSecond = getEnvAsFloat("RATE_LIMIT_PER_SECOND", cfg.RateLimit.PerSecond)
	cfg.RateLimit.Burst = getEnvAsInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst)
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

func getEnvAsBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
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
