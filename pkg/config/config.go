// Package config loads and validates application configuration from YAML (or
// JSONC) files with environment-variable overrides. It provides typed structs
// for every subsystem (Server, Postgres, Kafka, Redis, Book, Indexer, Search).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Output formats understood by the index writer.
const (
	FormatJS     = "js"
	FormatJSON   = "json"
	FormatJSONGz = "json.gz"
	FormatCBOR   = "cbor"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Book     BookConfig     `yaml:"book"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit caps API requests per client address per minute; 0 disables it.
	RateLimit int `yaml:"rateLimit"`
}

// PostgresConfig holds connection parameters for the build registry.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
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

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	RebuildRequests string `yaml:"rebuildRequests"`
	IndexComplete   string `yaml:"indexComplete"`
	SearchEvents    string `yaml:"searchEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// BookConfig describes where the markdown book lives and how it is split
// into searchable sections.
type BookConfig struct {
	Title             string `yaml:"title"`
	SourceDir         string `yaml:"sourceDir"`
	OutputDir         string `yaml:"outputDir"`
	HeadingSplitLevel int    `yaml:"headingSplitLevel"`
	Preprocess        bool   `yaml:"preprocess"`
}

// IndexerConfig controls which files a build writes and when the indexer
// service rebuilds on its own.
type IndexerConfig struct {
	OutputFormats   []string `yaml:"outputFormats"`
	StoreDocs       bool     `yaml:"storeDocs"`
	RebuildSchedule string   `yaml:"rebuildSchedule"`
	Language        string   `yaml:"language"`
}

// SearchConfig holds the options serialized next to the index for the
// client widget, plus limits for the HTTP search service.
type SearchConfig struct {
	LimitResults    int     `yaml:"limitResults"`
	TeaserWordCount int     `yaml:"teaserWordCount"`
	UseBooleanAnd   bool    `yaml:"useBooleanAnd"`
	Expand          bool    `yaml:"expand"`
	BoostTitle      float64 `yaml:"boostTitle"`
	BoostHierarchy  float64 `yaml:"boostHierarchy"`
	BoostParagraph  float64 `yaml:"boostParagraph"`

	DefaultLimit int           `yaml:"defaultLimit"`
	MaxResults   int           `yaml:"maxResults"`
	IndexPath    string        `yaml:"indexPath"`
	Timeout      time.Duration `yaml:"timeout"`
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

// Load reads a config file (if provided) and applies environment-variable
// overrides. Files ending in .json or .jsonc may carry comments and trailing
// commas. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json", ".jsonc":
			data = jsonc.ToJSON(data)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with defaults suitable for local development.
// The search defaults match what documentation sites ship with.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "bookindex",
			User:            "bookindex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "bookindex-group",
			Topics: KafkaTopics{
				RebuildRequests: "book-rebuild",
				IndexComplete:   "index.complete",
				SearchEvents:    "search-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Book: BookConfig{
			SourceDir:         "src",
			OutputDir:         "book",
			HeadingSplitLevel: 3,
			Preprocess:        true,
		},
		Indexer: IndexerConfig{
			OutputFormats: []string{FormatJS, FormatJSON},
			StoreDocs:     true,
			Language:      "English",
		},
		Search: SearchConfig{
			LimitResults:    30,
			TeaserWordCount: 30,
			Expand:          true,
			BoostTitle:      2,
			BoostHierarchy:  1,
			BoostParagraph:  1,
			DefaultLimit:    10,
			MaxResults:      100,
			IndexPath:       "book/searchindex.json",
			Timeout:         2 * time.Second,
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

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	for _, f := range c.Indexer.OutputFormats {
		switch f {
		case FormatJS, FormatJSON, FormatJSONGz, FormatCBOR:
		default:
			return fmt.Errorf("unknown output format %q", f)
		}
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rateLimit must not be negative, got %d", c.Server.RateLimit)
	}
	if c.Book.HeadingSplitLevel < 1 || c.Book.HeadingSplitLevel > 6 {
		return fmt.Errorf("book.headingSplitLevel must be between 1 and 6, got %d", c.Book.HeadingSplitLevel)
	}
	if c.Search.BoostTitle < 0 || c.Search.BoostHierarchy < 0 || c.Search.BoostParagraph < 0 {
		return fmt.Errorf("search boosts must be non-negative")
	}
	if c.Search.LimitResults < 1 {
		return fmt.Errorf("search.limitResults must be positive, got %d", c.Search.LimitResults)
	}
	if c.Search.TeaserWordCount < 1 {
		return fmt.Errorf("search.teaserWordCount must be positive, got %d", c.Search.TeaserWordCount)
	}
	if c.Indexer.RebuildSchedule != "" {
		if _, err := cronexpr.Parse(c.Indexer.RebuildSchedule); err != nil {
			return fmt.Errorf("indexer.rebuildSchedule: %w", err)
		}
	}
	return nil
}

// applyEnvOverrides reads BI_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BI_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BI_SERVER_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = n
		}
	}
	if v := os.Getenv("BI_POSTGRES_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Postgres.Enabled = enabled
		}
	}
	if v := os.Getenv("BI_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("BI_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("BI_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("BI_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("BI_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("BI_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("BI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("BI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("BI_BOOK_TITLE"); v != "" {
		cfg.Book.Title = v
	}
	if v := os.Getenv("BI_BOOK_SOURCE_DIR"); v != "" {
		cfg.Book.SourceDir = v
	}
	if v := os.Getenv("BI_BOOK_OUTPUT_DIR"); v != "" {
		cfg.Book.OutputDir = v
	}
	if v := os.Getenv("BI_INDEXER_OUTPUT_FORMATS"); v != "" {
		cfg.Indexer.OutputFormats = strings.Split(v, ",")
	}
	if v := os.Getenv("BI_INDEXER_REBUILD_SCHEDULE"); v != "" {
		cfg.Indexer.RebuildSchedule = v
	}
	if v := os.Getenv("BI_SEARCH_INDEX_PATH"); v != "" {
		cfg.Search.IndexPath = v
	}
	if v := os.Getenv("BI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
