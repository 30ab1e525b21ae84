package reconcile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/TableScout/internal/config"
	"github.com/IshaanNene/TableScout/internal/observability"
	"github.com/IshaanNene/TableScout/internal/types"
)

// IDSet is a set of restaurant ids. The nil set is empty.
type IDSet map[int64]struct{}

// parseID reads an id cell. Ids written as floats ("42.0") are accepted.
func parseID(cell string) (int64, bool) {
	cell = strings.TrimSpace(cell)
	if id, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return id, true
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

// AddString adds the id in cell, ignoring cells that are not ids.
func (s IDSet) AddString(cell string) {
	if id, ok := parseID(cell); ok {
		s[id] = struct{}{}
	}
}

// HasString reports whether the id in cell is in the set.
func (s IDSet) HasString(cell string) bool {
	id, ok := parseID(cell)
	if !ok {
		return false
	}
	_, found := s[id]
	return found
}

// Union returns a new set holding the ids of s and o.
func (s IDSet) Union(o IDSet) IDSet {
	out := make(IDSet, len(s)+len(o))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range o {
		out[id] = struct{}{}
	}
	return out
}

// LookupSets are the id lists behind the membership flags.
type LookupSets struct {
	Existing IDSet
	Elastic  IDSet
	Image    IDSet
}

func (ls LookupSets) flag(t *Table, idCol int) {
	for _, f := range []struct {
		col string
		set IDSet
	}{
		{ExistingColumn, ls.Existing},
		{ElasticColumn, ls.Elastic},
		{ImageColumn, ls.Image},
	} {
		col := t.ensureCol(f.col)
		for _, row := range t.Rows {
			row[col] = strconv.FormatBool(f.set.HasString(row[idCol]))
		}
	}
}

// ReadLookup reads ids from the first column of a headerless CSV. Cells
// that are not ids are skipped.
func ReadLookup(r io.Reader) (IDSet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	set := make(IDSet)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return set, nil
		}
		if err != nil {
			return nil, err
		}
		if len(rec) > 0 {
			set.AddString(rec[0])
		}
	}
}

// LoadLookupSet reads the lookup list at path. Any failure is a
// *types.LookupError.
func LoadLookupSet(name, path string) (IDSet, error) {
	if path == "" {
		return nil, &types.LookupError{Name: name, Err: errors.New("no path configured")}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &types.LookupError{Name: name, Path: path, Err: err}
	}
	defer f.Close()

	set, err := ReadLookup(f)
	if err != nil {
		return nil, &types.LookupError{Name: name, Path: path, Err: fmt.Errorf("read: %w", err)}
	}
	return set, nil
}

// LoadLookups reads the three lookup lists concurrently. A list that cannot
// be read is replaced by an empty set and logged; only cancellation of ctx
// is returned as an error.
func LoadLookups(ctx context.Context, cfg config.LookupConfig, metrics *observability.Metrics, logger *slog.Logger) (LookupSets, error) {
	var sets LookupSets
	g, gCtx := errgroup.WithContext(ctx)

	load := func(name, path string, dst *IDSet) {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			set, err := LoadLookupSet(name, path)
			if err != nil {
				logger.Warn("lookup unavailable, flags default to false", "lookup", name, "error", err)
				metrics.IncLookupDegraded(name)
				set = IDSet{}
			} else if len(set) == 0 {
				logger.Warn("lookup is empty", "lookup", name, "path", path)
			}
			*dst = set
			return nil
		})
	}
	load(ExistingColumn, cfg.Existing, &sets.Existing)
	load(ElasticColumn, cfg.Elastic, &sets.Elastic)
	load(ImageColumn, cfg.Image, &sets.Image)

	if err := g.Wait(); err != nil {
		return LookupSets{}, err
	}
	return sets, nil
}
