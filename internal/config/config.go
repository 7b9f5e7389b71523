package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Redis         RedisConfig         `yaml:"redis"`
	ClickHouse    ClickHouseConfig    `yaml:"clickhouse"`
	Firestore     FirestoreConfig     `yaml:"firestore"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Search        SearchConfig        `yaml:"search"`
	Vocabulary    VocabularyConfig    `yaml:"vocabulary"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
}

type ElasticsearchConfig struct {
	Addresses         []string      `yaml:"addresses"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	IndexPrefix       string        `yaml:"index_prefix"`
	NumShards         int           `yaml:"num_shards"`
	NumReplicas       int           `yaml:"num_replicas"`
	RefreshInterval   string        `yaml:"refresh_interval"`
	BulkSize          int           `yaml:"bulk_size"`
	BulkFlushInterval time.Duration `yaml:"bulk_flush_interval"`
}

// ProductsIndex is the name of the index holding the product catalog.
func (c ElasticsearchConfig) ProductsIndex() string {
	return c.IndexPrefix + "-products"
}

type RedisConfig struct {
	Addresses    []string       `yaml:"addresses"`
	Password     string         `yaml:"password"`
	DB           int            `yaml:"db"`
	PoolSize     int            `yaml:"pool_size"`
	MinIdleConns int            `yaml:"min_idle_conns"`
	DialTimeout  time.Duration  `yaml:"dial_timeout"`
	ReadTimeout  time.Duration  `yaml:"read_timeout"`
	WriteTimeout time.Duration  `yaml:"write_timeout"`
	TTL          CacheTTLConfig `yaml:"ttl"`
}

type CacheTTLConfig struct {
	Autocomplete  time.Duration `yaml:"autocomplete"`
	Trending      time.Duration `yaml:"trending"`
	SearchResults time.Duration `yaml:"search_results"`
	BrowseResults time.Duration `yaml:"browse_results"`
	HitCounters   time.Duration `yaml:"hit_counters"`
	StaleFallback time.Duration `yaml:"stale_fallback"`
}

type ClickHouseConfig struct {
	Addresses    []string      `yaml:"addresses"`
	Database     string        `yaml:"database"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
}

type FirestoreConfig struct {
	ProjectID             string        `yaml:"project_id"`
	CredentialsFile       string        `yaml:"credentials_file"`
	RequestTimeout        time.Duration `yaml:"request_timeout"`
	MaxBatchSize          int           `yaml:"max_batch_size"`
	ProductsCollection    string        `yaml:"products_collection"`
	CategoriesCollection  string        `yaml:"categories_collection"`
	SubCategoryCollection string        `yaml:"subcategories_collection"`
}

type KafkaConfig struct {
	Brokers           []string      `yaml:"brokers"`
	TopicChanges      string        `yaml:"topic_changes"`
	TopicDLQ          string        `yaml:"topic_dlq"`
	ConsumerGroup     string        `yaml:"consumer_group"`
	NumPartitions     int           `yaml:"num_partitions"`
	ReplicationFactor int           `yaml:"replication_factor"`
	BatchSize         int           `yaml:"batch_size"`
	BatchTimeout      time.Duration `yaml:"batch_timeout"`
	MaxRetries        int           `yaml:"max_retries"`
}

type SearchConfig struct {
	DefaultPageSize int                  `yaml:"default_page_size"`
	MaxPageSize     int                  `yaml:"max_page_size"`
	FallbackLimit   int                  `yaml:"fallback_limit"`
	MaxCandidates   int                  `yaml:"max_candidates"`
	QueryTimeout    time.Duration        `yaml:"query_timeout"`
	Weights         WeightsConfig        `yaml:"weights"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
	Retry           RetryConfig          `yaml:"retry"`
	SlowQuery       SlowQueryConfig      `yaml:"slow_query"`
}

// WeightsConfig holds the per-field multipliers of the relevance score.
type WeightsConfig struct {
	Name     float64 `yaml:"name"`
	Brand    float64 `yaml:"brand"`
	Material float64 `yaml:"material"`
	Color    float64 `yaml:"color"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Multiplier  float64       `yaml:"multiplier"`
}

type SlowQueryConfig struct {
	WarningThreshold  time.Duration `yaml:"warning_threshold"`
	CriticalThreshold time.Duration `yaml:"critical_threshold"`
}

type VocabularyConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

type ObservabilityConfig struct {
	MetricsPort     int    `yaml:"metrics_port"`
	TracingEndpoint string `yaml:"tracing_endpoint"`
	LogLevel        string `yaml:"log_level"`
	ServiceName     string `yaml:"service_name"`
}

// LoadEnv loads variables from an optional .env file. A missing file is not
// an error; values already present in the environment win.
func LoadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxConcurrent:   1000,
		},
		Elasticsearch: ElasticsearchConfig{
			Addresses:         []string{"http://localhost:9200"},
			MaxRetries:        3,
			RequestTimeout:    500 * time.Millisecond,
			IndexPrefix:       "furniture",
			NumShards:         1,
			NumReplicas:       1,
			RefreshInterval:   "1s",
			BulkSize:          500,
			BulkFlushInterval: 5 * time.Second,
		},
		Redis: RedisConfig{
			Addresses:    []string{"localhost:6379"},
			PoolSize:     50,
			MinIdleConns: 5,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  1 * time.Second,
			WriteTimeout: 1 * time.Second,
			TTL: CacheTTLConfig{
				Autocomplete:  10 * time.Minute,
				Trending:      60 * time.Second,
				SearchResults: 2 * time.Minute,
				BrowseResults: 5 * time.Minute,
				HitCounters:   24 * time.Hour,
				StaleFallback: 1 * time.Hour,
			},
		},
		ClickHouse: ClickHouseConfig{
			Addresses:    []string{"localhost:9000"},
			Database:     "search_analytics",
			DialTimeout:  5 * time.Second,
			QueryTimeout: 2 * time.Second,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Firestore: FirestoreConfig{
			RequestTimeout:        2 * time.Second,
			MaxBatchSize:          100,
			ProductsCollection:    "products",
			CategoriesCollection:  "categories",
			SubCategoryCollection: "subcategories",
		},
		Kafka: KafkaConfig{
			Brokers:           []string{"localhost:9092"},
			TopicChanges:      "products.changes",
			TopicDLQ:          "products.changes.dlq",
			ConsumerGroup:     "furniture-indexer",
			NumPartitions:     6,
			ReplicationFactor: 3,
			BatchSize:         500,
			BatchTimeout:      1 * time.Second,
			MaxRetries:        3,
		},
		Search: SearchConfig{
			DefaultPageSize: 12,
			MaxPageSize:     60,
			FallbackLimit:   12,
			MaxCandidates:   2000,
			QueryTimeout:    2 * time.Second,
			Weights: WeightsConfig{
				Name:     3.0,
				Brand:    1.5,
				Material: 2.0,
				Color:    2.0,
			},
			CircuitBreaker: CircuitBreakerConfig{
				MaxRequests:      100,
				Interval:         30 * time.Second,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
			},
			Retry: RetryConfig{
				MaxAttempts: 2,
				InitialWait: 50 * time.Millisecond,
				MaxWait:     500 * time.Millisecond,
				Multiplier:  2.0,
			},
			SlowQuery: SlowQueryConfig{
				WarningThreshold:  300 * time.Millisecond,
				CriticalThreshold: 1 * time.Second,
			},
		},
		Observability: ObservabilityConfig{
			MetricsPort: 9090,
			LogLevel:    "info",
			ServiceName: "furniture-search",
		},
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if len(c.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("at least one elasticsearch address required")
	}
	if len(c.Redis.Addresses) == 0 {
		return fmt.Errorf("at least one redis address required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one kafka broker required")
	}
	return c.Search.Validate()
}

func (s SearchConfig) Validate() error {
	if s.DefaultPageSize <= 0 {
		return fmt.Errorf("default page size must be positive")
	}
	if s.MaxPageSize <= 0 || s.MaxPageSize > 60 {
		return fmt.Errorf("max page size must be between 1 and 60")
	}
	if s.DefaultPageSize > s.MaxPageSize {
		return fmt.Errorf("default page size %d exceeds max page size %d", s.DefaultPageSize, s.MaxPageSize)
	}
	if s.FallbackLimit <= 0 {
		return fmt.Errorf("fallback limit must be positive")
	}
	if s.MaxCandidates <= 0 {
		return fmt.Errorf("max candidates must be positive")
	}
	w := s.Weights
	if w.Name < 0 || w.Brand < 0 || w.Material < 0 || w.Color < 0 {
		return fmt.Errorf("field weights must not be negative")
	}
	return nil
}
