package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/TableScout/internal/config"
	"github.com/IshaanNene/TableScout/internal/parser"
	"github.com/IshaanNene/TableScout/internal/pipeline"
	"github.com/IshaanNene/TableScout/internal/record"
	"github.com/IshaanNene/TableScout/internal/types"
)

var (
	pageURL  string
	pageKind string
)

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file.html>",
		Short: "Extract records from a saved page",
		Long: `Parse runs the record builders over a page saved to disk and writes the
records to stdout as JSON lines. The page URL is needed because the
restaurant id is read from it.`,
		Args: cobra.ExactArgs(1),
		RunE: runParse,
	}
	cmd.Flags().StringVar(&pageURL, "url", "", "URL the page was fetched from (required)")
	cmd.Flags().StringVar(&pageKind, "kind", types.TagDetail, "page kind: detail, comments or listing")
	cmd.Flags().StringVar(&sections, "sections", "", "comma-separated sections: info, reviews, comments, listing")
	cmd.MarkFlagRequired("url")
	return cmd
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(func(cfg *config.Config) {
		if sections != "" {
			cfg.Spider.Sections = splitList(sections)
		}
	})
	if err != nil {
		return err
	}
	secs, err := record.ParseSections(cfg.Spider.Sections)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := parser.Parse(pageURL, f)
	if err != nil {
		return err
	}

	records, err := buildPage(doc, pageKind, secs, logger)
	if err != nil {
		return err
	}
	return writeRecords(cmd.OutOrStdout(), records, pipeline.Default(logger), logger)
}

// buildPage runs the builder matching kind, the same way the crawler does
// for a page with that tag.
func buildPage(doc *parser.Document, kind string, secs record.Section, logger *slog.Logger) ([]types.Record, error) {
	var (
		res *record.Result
		err error
	)
	switch kind {
	case types.TagListing:
		var records []types.Record
		for _, l := range record.NewBuilder(record.SectionListing, logger).BuildListing(doc) {
			records = append(records, l)
		}
		return records, nil
	case types.TagDetail:
		res, err = record.NewBuilder(secs&^record.SectionListing, logger).Build(doc)
	case types.TagComments:
		res, err = record.NewBuilder(record.SectionComments, logger).Build(doc)
	default:
		return nil, fmt.Errorf("unknown page kind %q (valid: detail, comments, listing)", kind)
	}
	if err != nil {
		return nil, err
	}
	for _, issue := range res.Issues {
		logger.Warn("field issue", "url", doc.URL, "error", issue)
	}
	return res.Records, nil
}

func writeRecords(w io.Writer, records []types.Record, pipe *pipeline.Pipeline, logger *slog.Logger) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		out, err := pipe.Process(rec)
		if err != nil {
			if errors.Is(err, types.ErrRecordRejected) {
				logger.Warn("record rejected", "error", err)
				continue
			}
			return err
		}
		if out == nil {
			continue
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return nil
}
