package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero concurrency", func(c *Config) { c.Crawler.Concurrency = 0 }, "crawler.concurrency"},
		{"bad fetcher", func(c *Config) { c.Fetcher.Type = "curl" }, "fetcher.type"},
		{"unknown section", func(c *Config) { c.Spider.Sections = []string{"menu"} }, "spider.sections"},
		{"unknown storage", func(c *Config) { c.Storage.Types = []string{"s3"} }, "storage.types"},
		{"postgres without dsn", func(c *Config) { c.Storage.Types = []string{"postgres"} }, "storage.postgres.dsn"},
		{"kafka without brokers", func(c *Config) { c.Storage.Types = []string{"kafka"} }, "storage.kafka.brokers"},
		{"redis without addr", func(c *Config) { c.Crawler.SeenStore = "redis"; c.Redis.Addr = "" }, "redis.addr"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad base url", func(c *Config) { c.Spider.BaseURL = "ftp://iens.nl" }, "spider.base_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tablescout.yaml")
	yaml := `
crawler:
  concurrency: 2
  request_timeout: 5s
spider:
  places: [amsterdam, utrecht]
  sections: [info, reviews, comments]
storage:
  types: [jsonl, csv]
reconcile:
  rename:
    name: Name
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Crawler.Concurrency != 2 {
		t.Errorf("concurrency = %d, want 2", cfg.Crawler.Concurrency)
	}
	if cfg.Crawler.RequestTimeout != 5*time.Second {
		t.Errorf("request_timeout = %v, want 5s", cfg.Crawler.RequestTimeout)
	}
	if len(cfg.Spider.Places) != 2 || cfg.Spider.Places[1] != "utrecht" {
		t.Errorf("places = %v", cfg.Spider.Places)
	}
	if !cfg.HasSection("comments") || cfg.HasSection("listing") {
		t.Errorf("sections = %v", cfg.Spider.Sections)
	}
	if !cfg.HasStorage("csv") {
		t.Errorf("storage types = %v", cfg.Storage.Types)
	}
	if cfg.Reconcile.Rename["name"] != "Name" {
		t.Errorf("rename = %v", cfg.Reconcile.Rename)
	}
	// untouched values keep their defaults
	if cfg.Reconcile.ExistingTag != "Hamburger" {
		t.Errorf("existing_tag = %q, want default", cfg.Reconcile.ExistingTag)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TABLESCOUT_CRAWLER_CONCURRENCY", "7")
	t.Setenv("TABLESCOUT_LOGGING_LEVEL", "debug")

	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Crawler.Concurrency != 7 {
		t.Errorf("concurrency = %d, want 7", cfg.Crawler.Concurrency)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Logging.Level)
	}
}
