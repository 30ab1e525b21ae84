package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/TableScout/internal/config"
	"github.com/IshaanNene/TableScout/internal/observability"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tablescout",
		Short: "TableScout scrapes restaurant pages from iens.nl",
		Long: `TableScout crawls iens.nl listing and restaurant pages, turns them into
restaurant, comment and listing records, and stores them as JSONL, CSV,
MongoDB documents, Postgres rows or Kafka messages.

The reconcile command merges the per-tag restaurant table of a crawl into
one row per restaurant and flags restaurants found in lookup lists.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(crawlCmd())
	root.AddCommand(parseCmd())
	root.AddCommand(reconcileCmd())
	root.AddCommand(configCmd())
	root.AddCommand(versionCmd())
	return root
}

// loadConfig reads the config file, lets apply override it from flags and
// validates the result.
func loadConfig(apply func(*config.Config)) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if apply != nil {
		apply(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, observability.NewLogger(os.Stderr, cfg.Logging, verbose), nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "TableScout %s\n", config.Version)
		},
	}
}

// configCmd prints the effective configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Crawler:\n")
			fmt.Fprintf(w, "  Concurrency:      %d\n", cfg.Crawler.Concurrency)
			fmt.Fprintf(w, "  Max Depth:        %d\n", cfg.Crawler.MaxDepth)
			fmt.Fprintf(w, "  Max Requests:     %d\n", cfg.Crawler.MaxRequests)
			fmt.Fprintf(w, "  Max Retries:      %d\n", cfg.Crawler.MaxRetries)
			fmt.Fprintf(w, "  Request Timeout:  %s\n", cfg.Crawler.RequestTimeout)
			fmt.Fprintf(w, "  Allowed Domains:  %v\n", cfg.Crawler.AllowedDomains)
			fmt.Fprintf(w, "  Seen Store:       %s\n", cfg.Crawler.SeenStore)
			fmt.Fprintf(w, "\nFetcher:\n")
			fmt.Fprintf(w, "  Type:             %s\n", cfg.Fetcher.Type)
			fmt.Fprintf(w, "  Max Body Size:    %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Fprintf(w, "\nSpider:\n")
			fmt.Fprintf(w, "  Base URL:         %s\n", cfg.Spider.BaseURL)
			fmt.Fprintf(w, "  Places:           %v\n", cfg.Spider.Places)
			fmt.Fprintf(w, "  Sections:         %v\n", cfg.Spider.Sections)
			fmt.Fprintf(w, "\nStorage:\n")
			fmt.Fprintf(w, "  Types:            %v\n", cfg.Storage.Types)
			fmt.Fprintf(w, "  Output Path:      %s\n", cfg.Storage.OutputPath)
			fmt.Fprintf(w, "  Batch Size:       %d\n", cfg.Storage.BatchSize)
			fmt.Fprintf(w, "\nReconcile:\n")
			fmt.Fprintf(w, "  Input:            %s\n", cfg.Reconcile.Input)
			fmt.Fprintf(w, "  Output:           %s\n", cfg.Reconcile.Output)
			fmt.Fprintf(w, "  Existing Tag:     %s\n", cfg.Reconcile.ExistingTag)
			fmt.Fprintf(w, "  Sort By:          %s\n", cfg.Reconcile.SortBy)
			fmt.Fprintf(w, "\nMetrics:\n")
			fmt.Fprintf(w, "  Enabled:          %v\n", cfg.Metrics.Enabled)
			fmt.Fprintf(w, "  Port:             %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}
