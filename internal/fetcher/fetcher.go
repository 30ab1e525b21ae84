// Package fetcher retrieves iens pages over plain HTTP or through a
// headless browser.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/TableScout/internal/config"
	"github.com/IshaanNene/TableScout/internal/types"
)

// Fetcher is the interface for all request fetcher implementations.
type Fetcher interface {
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)
	Close() error

	// Type returns the identifier requests use to select this fetcher.
	Type() string
}

// New builds the fetcher named by cfg.Fetcher.Type.
func New(cfg *config.Config, logger *slog.Logger) (Fetcher, error) {
	switch cfg.Fetcher.Type {
	case "http", "":
		return NewHTTPFetcher(cfg, logger)
	case "browser":
		return NewBrowserFetcher(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown fetcher type %q", cfg.Fetcher.Type)
	}
}
