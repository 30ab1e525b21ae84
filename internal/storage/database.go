package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/TableScout/internal/types"
)

// MongoStorage writes records to MongoDB, one collection per record kind.
// Documents have the same shape and sentinel values as the JSONL output.
type MongoStorage struct {
	client *mongo.Client
	db     *mongo.Database
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

func NewMongoStorage(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &MongoStorage{
		client: client,
		db:     client.Database(database),
		logger: logger.With("component", "mongo_storage"),
	}, nil
}

func (s *MongoStorage) Name() string { return "mongo" }

// toDocument converts a record through its JSON form so that optional
// fields keep their wire encoding.
func toDocument(rec types.Record) (bson.M, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		return nil, err
	}
	doc["kind"] = string(rec.Kind())
	return doc, nil
}

func (s *MongoStorage) Store(recs []types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKind := make(map[types.RecordKind][]any)
	for _, rec := range recs {
		doc, err := toDocument(rec)
		if err != nil {
			s.logger.Warn("record skipped", "kind", rec.Kind(), "id", rec.EntityID(), "url", rec.SourceURL(), "error", err)
			continue
		}
		byKind[rec.Kind()] = append(byKind[rec.Kind()], doc)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for kind, docs := range byKind {
		if _, err := s.db.Collection(FileBase(kind)).InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("mongodb insert %s: %w", kind, err)
		}
	}

	n := 0
	for _, docs := range byKind {
		n += len(docs)
	}
	s.count += n
	s.logger.Debug("records stored in mongodb", "count", n, "total", s.count)
	return nil
}

func (s *MongoStorage) Close() error {
	s.logger.Info("mongodb storage closing", "total_records", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
