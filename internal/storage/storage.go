// Package storage persists the record stream. Every backend accepts all
// record kinds and routes each kind to its own file, table, collection or
// topic.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/TableScout/internal/config"
	"github.com/IshaanNene/TableScout/internal/observability"
	"github.com/IshaanNene/TableScout/internal/types"
)

// Storage is the interface for all storage backends.
type Storage interface {
	// Store persists a batch of records.
	Store(recs []types.Record) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// New opens every backend listed in cfg.Storage.Types behind one
// MultiStorage. Backends opened before a failure are closed again.
func New(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*MultiStorage, error) {
	var backends []Storage
	fail := func(err error) (*MultiStorage, error) {
		for _, b := range backends {
			b.Close()
		}
		return nil, err
	}

	for _, typ := range cfg.Storage.Types {
		var (
			b   Storage
			err error
		)
		switch typ {
		case "jsonl":
			b, err = NewJSONLStorage(cfg.Storage.OutputPath, logger)
		case "csv":
			b, err = NewCSVStorage(cfg.Storage.OutputPath, logger)
		case "mongo":
			b, err = NewMongoStorage(ctx, cfg.Storage.Mongo.URI, cfg.Storage.Mongo.Database, logger)
		case "postgres":
			b, err = NewPostgresStorage(ctx, cfg.Storage.Postgres.DSN, logger)
		case "kafka":
			b, err = NewKafkaStorage(cfg.Storage.Kafka.Brokers, cfg.Storage.Kafka.TopicPrefix, logger)
		default:
			err = fmt.Errorf("unsupported storage type: %s", typ)
		}
		if err != nil {
			return fail(&types.StorageError{Backend: typ, Err: err})
		}
		backends = append(backends, b)
	}
	return NewMultiStorage(backends, metrics, logger), nil
}

// MultiStorage writes records to several backends. A failing backend does
// not stop the others.
type MultiStorage struct {
	backends []Storage
	metrics  *observability.Metrics
	logger   *slog.Logger
}

func NewMultiStorage(backends []Storage, metrics *observability.Metrics, logger *slog.Logger) *MultiStorage {
	return &MultiStorage{
		backends: backends,
		metrics:  metrics,
		logger:   logger.With("component", "multi_storage"),
	}
}

func (s *MultiStorage) Name() string { return "multi" }

func (s *MultiStorage) Store(recs []types.Record) error {
	var errs []error
	for _, backend := range s.backends {
		if err := backend.Store(recs); err != nil {
			s.logger.Error("backend store failed", "backend", backend.Name(), "error", err)
			errs = append(errs, &types.StorageError{Backend: backend.Name(), Err: err})
			continue
		}
		s.metrics.AddStored(backend.Name(), len(recs))
	}
	return errors.Join(errs...)
}

func (s *MultiStorage) Close() error {
	var errs []error
	for _, backend := range s.backends {
		if err := backend.Close(); err != nil {
			errs = append(errs, &types.StorageError{Backend: backend.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}
