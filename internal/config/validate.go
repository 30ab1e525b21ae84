package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Sections that can be enabled under spider.sections.
var validSections = map[string]bool{
	"info": true, "reviews": true, "comments": true, "listing": true,
}

var validStorageTypes = map[string]bool{
	"jsonl": true, "csv": true, "mongo": true, "postgres": true, "kafka": true,
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Crawler.Concurrency < 1 {
		return fmt.Errorf("crawler.concurrency must be >= 1, got %d", cfg.Crawler.Concurrency)
	}
	if cfg.Crawler.Concurrency > 1000 {
		return fmt.Errorf("crawler.concurrency must be <= 1000, got %d", cfg.Crawler.Concurrency)
	}
	if cfg.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0, got %d", cfg.Crawler.MaxDepth)
	}
	if cfg.Crawler.MaxRequests < 0 {
		return fmt.Errorf("crawler.max_requests must be >= 0, got %d", cfg.Crawler.MaxRequests)
	}
	if cfg.Crawler.MaxRetries < 0 {
		return fmt.Errorf("crawler.max_retries must be >= 0, got %d", cfg.Crawler.MaxRetries)
	}
	if cfg.Crawler.RequestTimeout <= 0 {
		return fmt.Errorf("crawler.request_timeout must be > 0")
	}
	switch cfg.Crawler.SeenStore {
	case "memory":
	case "redis":
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when crawler.seen_store is redis")
		}
	default:
		return fmt.Errorf("crawler.seen_store must be 'memory' or 'redis', got %q", cfg.Crawler.SeenStore)
	}

	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}
	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}

	if err := ValidateURL(cfg.Spider.BaseURL); err != nil {
		return fmt.Errorf("spider.base_url: %w", err)
	}
	if len(cfg.Spider.Sections) == 0 {
		return fmt.Errorf("spider.sections must not be empty")
	}
	for _, s := range cfg.Spider.Sections {
		if !validSections[s] {
			return fmt.Errorf("spider.sections: unknown section %q (valid: info, reviews, comments, listing)", s)
		}
	}

	if len(cfg.Storage.Types) == 0 {
		return fmt.Errorf("storage.types must not be empty")
	}
	for _, t := range cfg.Storage.Types {
		if !validStorageTypes[t] {
			return fmt.Errorf("storage.types: %q is not supported (valid: jsonl, csv, mongo, postgres, kafka)", t)
		}
		switch t {
		case "postgres":
			if cfg.Storage.Postgres.DSN == "" {
				return fmt.Errorf("storage.postgres.dsn is required for postgres storage")
			}
		case "kafka":
			if len(cfg.Storage.Kafka.Brokers) == 0 {
				return fmt.Errorf("storage.kafka.brokers is required for kafka storage")
			}
		case "mongo":
			if cfg.Storage.Mongo.URI == "" || cfg.Storage.Mongo.Database == "" {
				return fmt.Errorf("storage.mongo.uri and storage.mongo.database are required for mongo storage")
			}
		}
	}
	if cfg.Storage.BatchSize < 1 {
		return fmt.Errorf("storage.batch_size must be >= 1, got %d", cfg.Storage.BatchSize)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is valid for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// HasSection reports whether the named spider section is enabled.
func (c *Config) HasSection(name string) bool {
	for _, s := range c.Spider.Sections {
		if s == name {
			return true
		}
	}
	return false
}

// HasStorage reports whether the named storage backend is enabled.
func (c *Config) HasStorage(name string) bool {
	for _, s := range c.Storage.Types {
		if s == name {
			return true
		}
	}
	return false
}
