package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/IshaanNene/TableScout/internal/types"
)

// ListSeparator joins list values inside a single CSV cell.
const ListSeparator = "|"

// FileBase returns the file name stem used for a record kind.
func FileBase(kind types.RecordKind) string {
	switch kind {
	case types.KindRestaurant:
		return "restaurants"
	case types.KindComment:
		return "comments"
	case types.KindListing:
		return "listings"
	default:
		return string(kind)
	}
}

// kindFiles opens one output file per record kind on first use.
type kindFiles struct {
	dir   string
	ext   string
	files map[types.RecordKind]*os.File
}

func newKindFiles(dir, ext string) (*kindFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &kindFiles{dir: dir, ext: ext, files: make(map[types.RecordKind]*os.File)}, nil
}

// get returns the file for kind and whether it was just created.
func (k *kindFiles) get(kind types.RecordKind) (*os.File, bool, error) {
	if f, ok := k.files[kind]; ok {
		return f, false, nil
	}
	f, err := os.Create(filepath.Join(k.dir, FileBase(kind)+k.ext))
	if err != nil {
		return nil, false, fmt.Errorf("create output file: %w", err)
	}
	k.files[kind] = f
	return f, true, nil
}

func (k *kindFiles) close() error {
	var errs []error
	for _, f := range k.files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// --- JSONL Storage ---

// JSONLStorage writes newline-delimited JSON, one file per record kind.
// Absent values are written as the sentinel.
type JSONLStorage struct {
	files  *kindFiles
	encs   map[types.RecordKind]*json.Encoder
	mu     sync.Mutex
	counts map[types.RecordKind]int
	logger *slog.Logger
}

func NewJSONLStorage(outputDir string, logger *slog.Logger) (*JSONLStorage, error) {
	files, err := newKindFiles(outputDir, ".jsonl")
	if err != nil {
		return nil, err
	}
	return &JSONLStorage{
		files:  files,
		encs:   make(map[types.RecordKind]*json.Encoder),
		counts: make(map[types.RecordKind]int),
		logger: logger.With("component", "jsonl_storage"),
	}, nil
}

func (s *JSONLStorage) Name() string { return "jsonl" }

func (s *JSONLStorage) Store(recs []types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range recs {
		enc, ok := s.encs[rec.Kind()]
		if !ok {
			f, _, err := s.files.get(rec.Kind())
			if err != nil {
				return err
			}
			enc = json.NewEncoder(f)
			enc.SetEscapeHTML(false)
			s.encs[rec.Kind()] = enc
		}
		if err := enc.Encode(rec); err != nil {
			s.logger.Warn("record skipped", "kind", rec.Kind(), "id", rec.EntityID(), "url", rec.SourceURL(), "error", err)
			continue
		}
		s.counts[rec.Kind()]++
	}
	return nil
}

func (s *JSONLStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info("JSONL written", "dir", s.files.dir, "counts", s.counts)
	return s.files.close()
}

// --- CSV Storage ---

// ListingColumns is the CSV layout of listing entries.
var ListingColumns = []string{
	"id", "name", "address", "avg_price", "rating", "nr_reviews", "styles", "detail_url",
}

// CSVStorage writes denormalized CSV, one file per record kind. Restaurants
// are fanned out to one row per tag, the layout the reconcile command reads.
type CSVStorage struct {
	files   *kindFiles
	writers map[types.RecordKind]*csv.Writer
	mu      sync.Mutex
	count   int
	logger  *slog.Logger
}

func NewCSVStorage(outputDir string, logger *slog.Logger) (*CSVStorage, error) {
	files, err := newKindFiles(outputDir, ".csv")
	if err != nil {
		return nil, err
	}
	return &CSVStorage{
		files:   files,
		writers: make(map[types.RecordKind]*csv.Writer),
		logger:  logger.With("component", "csv_storage"),
	}, nil
}

func (s *CSVStorage) Name() string { return "csv" }

// RestaurantHeader is the header of the restaurant CSV file.
func RestaurantHeader() []string {
	return append(append([]string{}, types.RestaurantColumns...), types.TagColumn)
}

func (s *CSVStorage) writer(kind types.RecordKind) (*csv.Writer, error) {
	if w, ok := s.writers[kind]; ok {
		return w, nil
	}
	f, _, err := s.files.get(kind)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	var header []string
	switch kind {
	case types.KindRestaurant:
		header = RestaurantHeader()
	case types.KindComment:
		header = types.CommentColumns
	case types.KindListing:
		header = ListingColumns
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write CSV header: %w", err)
	}
	s.writers[kind] = w
	return w, nil
}

func (s *CSVStorage) Store(recs []types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range recs {
		w, err := s.writer(rec.Kind())
		if err != nil {
			return err
		}
		var rows [][]string
		switch r := rec.(type) {
		case *types.Restaurant:
			rows = r.TagRows()
		case *types.Comment:
			rows = [][]string{r.FlatRow()}
		case *types.ListingEntry:
			rows = [][]string{listingRow(r)}
		}
		if err := w.WriteAll(rows); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
		s.count += len(rows)
	}
	return nil
}

func (s *CSVStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, w := range s.writers {
		w.Flush()
		errs = append(errs, w.Error())
	}
	s.logger.Info("CSV written", "dir", s.files.dir, "rows", s.count)
	errs = append(errs, s.files.close())
	return errors.Join(errs...)
}

func listingRow(l *types.ListingEntry) []string {
	return []string{
		strconv.FormatInt(l.ID, 10), l.Name, l.Address,
		l.AvgPrice.String(), l.Rating.String(), l.NrReviews.String(),
		strings.Join(l.Styles, ListSeparator), l.DetailURL,
	}
}
