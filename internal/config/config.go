package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for TableScout.
type Config struct {
	Crawler   CrawlerConfig   `mapstructure:"crawler"   yaml:"crawler"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"   yaml:"fetcher"`
	Spider    SpiderConfig    `mapstructure:"spider"    yaml:"spider"`
	Storage   StorageConfig   `mapstructure:"storage"   yaml:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"     yaml:"redis"`
	Reconcile ReconcileConfig `mapstructure:"reconcile" yaml:"reconcile"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
}

// CrawlerConfig controls the crawl engine.
type CrawlerConfig struct {
	Concurrency    int           `mapstructure:"concurrency"     yaml:"concurrency"`
	MaxDepth       int           `mapstructure:"max_depth"       yaml:"max_depth"`
	MaxRequests    int           `mapstructure:"max_requests"    yaml:"max_requests"`
	MaxRetries     int           `mapstructure:"max_retries"     yaml:"max_retries"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	UserAgents     []string      `mapstructure:"user_agents"     yaml:"user_agents"`
	AllowedDomains []string      `mapstructure:"allowed_domains" yaml:"allowed_domains"`
	SeenStore      string        `mapstructure:"seen_store"      yaml:"seen_store"` // memory, redis
}

// FetcherConfig controls the page fetcher.
type FetcherConfig struct {
	Type            string        `mapstructure:"type"              yaml:"type"` // http, browser
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	Stealth         bool          `mapstructure:"stealth"           yaml:"stealth"`
}

// SpiderConfig selects what is scraped.
type SpiderConfig struct {
	BaseURL  string   `mapstructure:"base_url" yaml:"base_url"`
	Places   []string `mapstructure:"places"   yaml:"places"`
	Sections []string `mapstructure:"sections" yaml:"sections"` // info, reviews, comments, listing
}

// StorageConfig controls where records go.
type StorageConfig struct {
	Types      []string       `mapstructure:"types"       yaml:"types"` // jsonl, csv, mongo, postgres, kafka
	OutputPath string         `mapstructure:"output_path" yaml:"output_path"`
	BatchSize  int            `mapstructure:"batch_size"  yaml:"batch_size"`
	Mongo      MongoConfig    `mapstructure:"mongo"       yaml:"mongo"`
	Postgres   PostgresConfig `mapstructure:"postgres"    yaml:"postgres"`
	Kafka      KafkaConfig    `mapstructure:"kafka"       yaml:"kafka"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"      yaml:"uri"`
	Database string `mapstructure:"database" yaml:"database"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"      yaml:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix" yaml:"topic_prefix"`
}

// RedisConfig is used by the shared seen-set.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"       yaml:"addr"`
	Password  string `mapstructure:"password"   yaml:"password"`
	DB        int    `mapstructure:"db"         yaml:"db"`
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// ReconcileConfig controls the offline reconciliation pass.
type ReconcileConfig struct {
	Input       string            `mapstructure:"input"        yaml:"input"` // csv path or "postgres"
	Output      string            `mapstructure:"output"       yaml:"output"`
	Lookups     LookupConfig      `mapstructure:"lookups"      yaml:"lookups"`
	ExistingTag string            `mapstructure:"existing_tag" yaml:"existing_tag"`
	Rename      map[string]string `mapstructure:"rename"       yaml:"rename"`
	SortBy      string            `mapstructure:"sort_by"      yaml:"sort_by"`
}

// LookupConfig names the id-list files for each membership flag.
type LookupConfig struct {
	Existing string `mapstructure:"existing" yaml:"existing"`
	Elastic  string `mapstructure:"elastic"  yaml:"elastic"`
	Image    string `mapstructure:"image"    yaml:"image"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Crawler: CrawlerConfig{
			Concurrency:    4,
			MaxDepth:       50,
			MaxRetries:     3,
			RequestTimeout: 30 * time.Second,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
			AllowedDomains: []string{"www.iens.nl"},
			SeenStore:      "memory",
		},
		Fetcher: FetcherConfig{
			Type:            "http",
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
			Stealth:         true,
		},
		Spider: SpiderConfig{
			BaseURL:  "https://www.iens.nl",
			Sections: []string{"info", "reviews"},
		},
		Storage: StorageConfig{
			Types:      []string{"jsonl"},
			OutputPath: "./output",
			BatchSize:  100,
			Mongo: MongoConfig{
				URI:      "mongodb://localhost:27017",
				Database: "tablescout",
			},
			Kafka: KafkaConfig{
				TopicPrefix: "tablescout.",
			},
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "tablescout:seen:",
		},
		Reconcile: ReconcileConfig{
			Output:      "./output/reconciled.csv",
			ExistingTag: "Hamburger",
			SortBy:      "rating_food",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
