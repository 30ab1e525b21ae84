package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/IshaanNene/TableScout/internal/types"
)

// PostgresStorage keeps the analytical tables: restaurant_tags holds one
// row per (restaurant id, tag) with every field in its wire form, next to
// comments and listings tables.
type PostgresStorage struct {
	db     *sql.DB
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewPostgresStorage opens the database, pings it and creates missing tables.
func NewPostgresStorage(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := &PostgresStorage{db: db, logger: logger.With("component", "postgres_storage")}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return s, nil
}

// textColumns renders "name TEXT NOT NULL" definitions for cols.
func textColumns(cols []string) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = c + " TEXT NOT NULL DEFAULT ''"
	}
	return strings.Join(defs, ",\n\t\t\t")
}

func (s *PostgresStorage) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS restaurant_tags (
			row_id     BIGSERIAL PRIMARY KEY,
			id         BIGINT NOT NULL,
			%s,
			scraped_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_restaurant_tags_id ON restaurant_tags(id);

		CREATE TABLE IF NOT EXISTS comments (
			row_id        BIGSERIAL PRIMARY KEY,
			restaurant_id BIGINT NOT NULL,
			%s,
			certified     BOOLEAN NOT NULL DEFAULT FALSE
		);
		CREATE INDEX IF NOT EXISTS idx_comments_restaurant_id ON comments(restaurant_id);

		CREATE TABLE IF NOT EXISTS listings (
			row_id BIGSERIAL PRIMARY KEY,
			id     BIGINT NOT NULL,
			%s
		);
	`,
		textColumns(append(append([]string{}, types.RestaurantColumns[1:]...), types.TagColumn)),
		textColumns([]string{"restaurant_name", "comment_text", "reviewer", "visit_date", "rating", "url"}),
		textColumns(ListingColumns[1:]),
	))
	return err
}

// table describes how one record kind is inserted.
type table struct {
	name string
	cols []string
	rows [][]any
}

func (t *table) add(row []any) { t.rows = append(t.rows, row) }

func (s *PostgresStorage) Name() string { return "postgres" }

func (s *PostgresStorage) Store(recs []types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	restaurants := &table{name: "restaurant_tags", cols: RestaurantHeader()}
	comments := &table{name: "comments", cols: types.CommentColumns}
	listings := &table{name: "listings", cols: ListingColumns}

	for _, rec := range recs {
		switch r := rec.(type) {
		case *types.Restaurant:
			for _, row := range r.TagRows() {
				restaurants.add(withID(r.ID, row[1:]))
			}
		case *types.Comment:
			comments.add([]any{
				r.RestaurantID, r.RestaurantName, r.Text, r.Reviewer,
				r.VisitDate.String(), r.Certified, r.Rating.String(), r.URL,
			})
		case *types.ListingEntry:
			listings.add(withID(r.ID, listingRow(r)[1:]))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, t := range []*table{restaurants, comments, listings} {
			if err := insertRows(ctx, tx, t); err != nil {
				return fmt.Errorf("insert into %s: %w", t.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.count += len(recs)
	s.logger.Debug("records stored in postgres", "count", len(recs), "total", s.count)
	return nil
}

func withID(id int64, rest []string) []any {
	row := make([]any, 0, len(rest)+1)
	row = append(row, id)
	for _, v := range rest {
		row = append(row, v)
	}
	return row
}

// insertRows writes t in multi-row INSERT statements, keeping each one under
// the driver's parameter limit.
func insertRows(ctx context.Context, tx *sql.Tx, t *table) error {
	const maxParams = 60000
	perStmt := max(maxParams/len(t.cols), 1)

	for start := 0; start < len(t.rows); start += perStmt {
		batch := t.rows[start:min(start+perStmt, len(t.rows))]

		values := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*len(t.cols))
		for i, row := range batch {
			ph := make([]string, len(row))
			for j := range row {
				ph[j] = "$" + strconv.Itoa(i*len(t.cols)+j+1)
			}
			values = append(values, "("+strings.Join(ph, ",")+")")
			args = append(args, row...)
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			t.name, strings.Join(t.cols, ", "), strings.Join(values, ","))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStorage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// LoadRestaurantRows returns the raw restaurant_tags table in insertion
// order, with RestaurantHeader as header.
func (s *PostgresStorage) LoadRestaurantRows(ctx context.Context) ([]string, [][]string, error) {
	header := RestaurantHeader()
	query := fmt.Sprintf("SELECT id::text, %s FROM restaurant_tags ORDER BY row_id",
		strings.Join(header[1:], ", "))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: load restaurant_tags: %w", err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		vals := make([]string, len(header))
		ptrs := make([]any, len(header))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		out = append(out, vals)
	}
	return header, out, rows.Err()
}

func (s *PostgresStorage) Close() error {
	s.logger.Info("postgres storage closing", "total_records", s.count)
	return s.db.Close()
}
