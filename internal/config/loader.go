package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. TABLESCOUT_CRAWLER_CONCURRENCY.
const EnvPrefix = "TABLESCOUT"

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flags are applied by the caller on top of the result.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("tablescout")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".tablescout"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine unless one was asked for explicitly.
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides resolve.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("crawler.concurrency", cfg.Crawler.Concurrency)
	v.SetDefault("crawler.max_depth", cfg.Crawler.MaxDepth)
	v.SetDefault("crawler.max_requests", cfg.Crawler.MaxRequests)
	v.SetDefault("crawler.max_retries", cfg.Crawler.MaxRetries)
	v.SetDefault("crawler.request_timeout", cfg.Crawler.RequestTimeout)
	v.SetDefault("crawler.user_agents", cfg.Crawler.UserAgents)
	v.SetDefault("crawler.allowed_domains", cfg.Crawler.AllowedDomains)
	v.SetDefault("crawler.seen_store", cfg.Crawler.SeenStore)

	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)
	v.SetDefault("fetcher.stealth", cfg.Fetcher.Stealth)

	v.SetDefault("spider.base_url", cfg.Spider.BaseURL)
	v.SetDefault("spider.places", cfg.Spider.Places)
	v.SetDefault("spider.sections", cfg.Spider.Sections)

	v.SetDefault("storage.types", cfg.Storage.Types)
	v.SetDefault("storage.output_path", cfg.Storage.OutputPath)
	v.SetDefault("storage.batch_size", cfg.Storage.BatchSize)
	v.SetDefault("storage.mongo.uri", cfg.Storage.Mongo.URI)
	v.SetDefault("storage.mongo.database", cfg.Storage.Mongo.Database)
	v.SetDefault("storage.postgres.dsn", cfg.Storage.Postgres.DSN)
	v.SetDefault("storage.kafka.brokers", cfg.Storage.Kafka.Brokers)
	v.SetDefault("storage.kafka.topic_prefix", cfg.Storage.Kafka.TopicPrefix)

	v.SetDefault("redis.addr", cfg.Redis.Addr)
	v.SetDefault("redis.password", cfg.Redis.Password)
	v.SetDefault("redis.db", cfg.Redis.DB)
	v.SetDefault("redis.key_prefix", cfg.Redis.KeyPrefix)

	v.SetDefault("reconcile.input", cfg.Reconcile.Input)
	v.SetDefault("reconcile.output", cfg.Reconcile.Output)
	v.SetDefault("reconcile.lookups.existing", cfg.Reconcile.Lookups.Existing)
	v.SetDefault("reconcile.lookups.elastic", cfg.Reconcile.Lookups.Elastic)
	v.SetDefault("reconcile.lookups.image", cfg.Reconcile.Lookups.Image)
	v.SetDefault("reconcile.existing_tag", cfg.Reconcile.ExistingTag)
	v.SetDefault("reconcile.sort_by", cfg.Reconcile.SortBy)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
