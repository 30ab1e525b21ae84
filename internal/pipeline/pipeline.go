// Package pipeline runs records through a chain of middleware between
// extraction and storage.
package pipeline

import (
	"log/slog"

	"github.com/IshaanNene/TableScout/internal/types"
)

// Middleware processes a record and returns the (possibly modified) record.
// Returning nil drops it silently; returning an error rejects it.
type Middleware interface {
	Name() string
	Process(rec types.Record) (types.Record, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Default returns the pipeline used by the crawl command: required fields
// first, then text cleanup, then tag filtering.
func Default(logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(&RequiredFieldsMiddleware{})
	p.Use(&TextCleanMiddleware{})
	p.Use(&TagFilterMiddleware{})
	return p
}

// Use appends a middleware to the chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs rec through all middleware in order. Errors are wrapped in a
// *types.PipelineError naming the stage.
func (p *Pipeline) Process(rec types.Record) (types.Record, error) {
	current := rec
	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{Stage: mw.Name(), Record: current, Err: err}
		}
		if result == nil {
			p.logger.Debug("record dropped", "stage", mw.Name(), "kind", rec.Kind(), "url", rec.SourceURL())
			return nil, nil
		}
		current = result
	}
	return current, nil
}

func (p *Pipeline) Len() int {
	return len(p.middlewares)
}
