// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for the
// search service, the corpus store, the per-index parameters and the
// supporting infrastructure (Postgres, Kafka, Redis, metrics).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig               `yaml:"server"`
	Store     StoreConfig                `yaml:"store"`
	Postgres  PostgresConfig             `yaml:"postgres"`
	Kafka     KafkaConfig                `yaml:"kafka"`
	Redis     RedisConfig                `yaml:"redis"`
	Index     IndexConfig                `yaml:"index"`
	Search    SearchConfig               `yaml:"search"`
	Indexes   map[string]IndexTypeConfig `yaml:"indexes"`
	Embedding EmbeddingConfig            `yaml:"embedding"`
	Analytics AnalyticsConfig            `yaml:"analytics"`
	Logging   LoggingConfig              `yaml:"logging"`
	Metrics   MetricsConfig              `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	// RateLimit is the number of API requests per minute allowed to one
	// client address; zero disables limiting.
	RateLimit   int      `yaml:"rateLimit"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

// StoreConfig selects the corpus/metadata database.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	Path   string `yaml:"path"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq keyword/value data source name with every value
// quoted, so empty or spaced passwords survive.
func (p PostgresConfig) DSN() string {
	quote := func(v string) string {
		return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quote(p.Host), p.Port, quote(p.User), quote(p.Password), quote(p.Database), quote(p.SSLMode),
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SearchEvents string `yaml:"searchEvents"`
}

// RedisConfig holds Redis connection and result-caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// IndexConfig controls where index caches and vector models live and how
// dense indexes are built.
type IndexConfig struct {
	IndexFolder    string `yaml:"indexFolder"`
	ModelFolder    string `yaml:"modelFolder"`
	BuildWorkers   int    `yaml:"buildWorkers"`
	QueryCacheSize int    `yaml:"queryCacheSize"`
}

// SearchConfig controls query limits and which index types are served.
type SearchConfig struct {
	MaxResults   int      `yaml:"maxResults"`
	DefaultLimit int      `yaml:"defaultLimit"`
	DefaultIndex string   `yaml:"defaultIndex"`
	IndexTypes   []string `yaml:"indexTypes"`
}

// IndexTypeConfig holds the free parameters of one index type.
type IndexTypeConfig struct {
	Implementation string       `yaml:"implementation"`
	Preprocessor   string       `yaml:"preprocessor"`
	Corpus         string       `yaml:"corpus"`
	K              float64      `yaml:"k"`
	B              float64      `yaml:"b"`
	LengthMeasure  string       `yaml:"lengthMeasure"`
	Model          *ModelConfig `yaml:"model,omitempty"`
}

// ModelConfig describes the pretrained model behind an embedding index.
type ModelConfig struct {
	Name   string `yaml:"name"`
	Path   string `yaml:"path"`
	URL    string `yaml:"url"`
	Metric string `yaml:"metric"`
}

// EmbeddingConfig points the sentence-embedding provider at an
// OpenAI-compatible embeddings endpoint.
type EmbeddingConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
}

// AnalyticsConfig controls the analytics service.
type AnalyticsConfig struct {
	Port             int           `yaml:"port"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	// SnapshotRetention is how many snapshots are kept; older ones are
	// pruned after every save. Zero keeps all.
	SnapshotRetention int `yaml:"snapshotRetention"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	fillIndexDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IndexType returns the parameters for the named index type.
func (c *Config) IndexType(name string) (IndexTypeConfig, error) {
	ic, ok := c.Indexes[name]
	if !ok {
		return IndexTypeConfig{}, apperrors.Configf("unknown index type %q", name)
	}
	return ic, nil
}

// ModelPath resolves a model file path relative to the model folder.
func (c *Config) ModelPath(m ModelConfig) string {
	if m.Path == "" || filepath.IsAbs(m.Path) {
		return m.Path
	}
	return filepath.Join(c.Index.ModelFolder, m.Path)
}

// Validate checks parameter ranges and enumerated values.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return apperrors.Configf("unknown store driver %q", c.Store.Driver)
	}
	if c.Server.RateLimit < 0 {
		return apperrors.Configf("server rate limit must not be negative, got %d", c.Server.RateLimit)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxResults < c.Search.DefaultLimit {
		return apperrors.Configf("search limits: default %d, max %d", c.Search.DefaultLimit, c.Search.MaxResults)
	}
	for _, name := range c.Search.IndexTypes {
		if _, ok := c.Indexes[name]; !ok {
			return apperrors.Configf("enabled index type %q has no configuration", name)
		}
	}
	for name, ic := range c.Indexes {
		if ic.K <= 0 {
			return apperrors.Configf("index %s: k must be positive, got %v", name, ic.K)
		}
		if ic.B < 0 || ic.B > 1 {
			return apperrors.Configf("index %s: b must be within [0, 1], got %v", name, ic.B)
		}
		switch ic.Preprocessor {
		case "lemmatize", "raw":
		default:
			return apperrors.Configf("index %s: unknown preprocessor %q", name, ic.Preprocessor)
		}
		switch ic.LengthMeasure {
		case "normalized", "tokens":
		default:
			return apperrors.Configf("index %s: unknown length measure %q", name, ic.LengthMeasure)
		}
		switch ic.Corpus {
		case "raw", "lemmatized":
		default:
			return apperrors.Configf("index %s: unknown corpus variant %q", name, ic.Corpus)
		}
		if ic.Model != nil {
			switch ic.Model.Metric {
			case "cosine", "dot":
			default:
				return apperrors.Configf("index %s: unknown similarity metric %q", name, ic.Model.Metric)
			}
			if ic.Model.Name == "" {
				return apperrors.Configf("index %s: model name is required", name)
			}
		}
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
			RateLimit:       600,
			CORSOrigins:     []string{"*"},
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "data/theses.db",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "thesis_search",
			User:            "thesis_search",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "thesis-search-analytics",
			Topics: KafkaTopics{
				SearchEvents: "search-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Index: IndexConfig{
			IndexFolder:    "data/indices",
			ModelFolder:    "data/vector_models",
			BuildWorkers:   4,
			QueryCacheSize: 1024,
		},
		Search: SearchConfig{
			MaxResults:   100,
			DefaultLimit: 10,
			DefaultIndex: "bm25",
			IndexTypes:   []string{"bm25", "ft", "w2v", "bert"},
		},
		Indexes: DefaultIndexes(),
		Embedding: EmbeddingConfig{
			Endpoint: "http://localhost:11434/v1",
			Timeout:  60 * time.Second,
		},
		Analytics: AnalyticsConfig{
			Port:              8083,
			SnapshotInterval:  time.Minute,
			SnapshotRetention: 1440,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// DefaultIndexes returns the built-in parameters of every known index type.
func DefaultIndexes() map[string]IndexTypeConfig {
	return map[string]IndexTypeConfig{
		"bm25": {Implementation: "matrix", Preprocessor: "lemmatize", Corpus: "lemmatized", K: 2, B: 0.75, LengthMeasure: "normalized"},
		"freq": {Implementation: "matrix", Preprocessor: "lemmatize", Corpus: "lemmatized", K: 2, B: 0.75, LengthMeasure: "normalized"},
		"w2v": {
			Implementation: "word2vec", Preprocessor: "lemmatize", Corpus: "lemmatized", K: 2, B: 0.75, LengthMeasure: "normalized",
			Model: &ModelConfig{
				Name:   "ruwikiruscorpora_upos_cbow_300_10_2021",
				Path:   "ruwikiruscorpora_upos_cbow_300_10_2021.bin",
				URL:    "http://vectors.nlpl.eu/repository/20/220.zip",
				Metric: "cosine",
			},
		},
		"ft": {
			Implementation: "fasttext", Preprocessor: "lemmatize", Corpus: "lemmatized", K: 2, B: 0.75, LengthMeasure: "normalized",
			Model: &ModelConfig{
				Name:   "cc.ru.300",
				Path:   "cc.ru.300.vec",
				URL:    "https://dl.fbaipublicfiles.com/fasttext/vectors-crawl/cc.ru.300.vec.gz",
				Metric: "cosine",
			},
		},
		"bert": {
			Implementation: "sentence", Preprocessor: "raw", Corpus: "raw", K: 2, B: 0.75, LengthMeasure: "normalized",
			Model: &ModelConfig{
				Name:   "sbert_large_nlu_ru",
				Path:   "ai-forever/sbert_large_nlu_ru",
				Metric: "cosine",
			},
		},
	}
}

// fillIndexDefaults completes partially specified index sections from the
// built-in defaults, since YAML replaces map values wholesale.
func fillIndexDefaults(cfg *Config) {
	defaults := DefaultIndexes()
	for name, ic := range cfg.Indexes {
		def, known := defaults[name]
		if !known {
			def = IndexTypeConfig{Preprocessor: "lemmatize", Corpus: "lemmatized", K: 2, B: 0.75, LengthMeasure: "normalized"}
		}
		if ic.Implementation == "" {
			ic.Implementation = def.Implementation
		}
		if ic.Preprocessor == "" {
			ic.Preprocessor = def.Preprocessor
		}
		if ic.Corpus == "" {
			ic.Corpus = def.Corpus
		}
		if ic.LengthMeasure == "" {
			ic.LengthMeasure = "normalized"
		}
		if ic.K == 0 {
			ic.K = def.K
		}
		if ic.B == 0 {
			ic.B = def.B
		}
		if ic.Model == nil && def.Model != nil {
			m := *def.Model
			ic.Model = &m
		} else if ic.Model != nil && ic.Model.Metric == "" {
			ic.Model.Metric = "cosine"
		}
		cfg.Indexes[name] = ic
	}
}

// applyEnvOverrides reads TS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TS_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("TS_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("TS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("TS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("TS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("TS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("TS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("TS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("TS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("TS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TS_INDEX_FOLDER"); v != "" {
		cfg.Index.IndexFolder = v
	}
	if v := os.Getenv("TS_MODEL_FOLDER"); v != "" {
		cfg.Index.ModelFolder = v
	}
	if v := os.Getenv("TS_EMBEDDING_ENDPOINT"); v != "" {
		cfg.Embedding.Endpoint = v
	}
	if v := os.Getenv("TS_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("TS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
