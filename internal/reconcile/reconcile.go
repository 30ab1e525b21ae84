package reconcile

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/IshaanNene/TableScout/internal/types"
)

// Column names the reconciler reads or adds.
const (
	IDColumn       = "id"
	TagColumn      = types.TagColumn
	ExistingColumn = "existing"
	ElasticColumn  = "elastic"
	ImageColumn    = "image"
)

// DefaultRenames maps raw column names to the names used in reports.
var DefaultRenames = map[string]string{
	"name":          "Name",
	"rating_food":   "Food rating",
	"price_quality": "Price quality",
	"noise_level":   "Noise level",
	"waiting_time":  "Waiting time",
}

// Reconcile collapses the raw table to one row per restaurant id. The tags
// of all rows of an id are gathered in row order, repeats included, into
// the first row of that id, which stands for the restaurant; the other rows are dropped. Cells in
// the tag column may already hold a list, so running Reconcile on its own
// output returns the same table. Finally a boolean column is set for each
// lookup set.
func Reconcile(raw *Table, sets LookupSets) (*Table, error) {
	idCol := raw.Col(IDColumn)
	if idCol < 0 {
		return nil, fmt.Errorf("reconcile: table has no %q column", IDColumn)
	}

	out := NewTable(raw.Header)
	tagCol := out.ensureCol(TagColumn)

	type group struct {
		row  []string
		tags []string
	}
	groups := make(map[string]*group)
	var order []string

	for _, row := range raw.Rows {
		id := strings.TrimSpace(row[idCol])
		g, ok := groups[id]
		if !ok {
			rep := make([]string, len(out.Header))
			copy(rep, row)
			g = &group{row: rep}
			groups[id] = g
			order = append(order, id)
		}
		if tagCol >= len(row) {
			continue
		}
		for _, tag := range SplitList(row[tagCol]) {
			if tag = strings.TrimSpace(tag); tag != "" {
				g.tags = append(g.tags, tag)
			}
		}
	}

	out.Rows = make([][]string, 0, len(order))
	for _, id := range order {
		g := groups[id]
		g.row[tagCol] = JoinList(g.tags)
		out.Rows = append(out.Rows, g.row)
	}

	sets.flag(out, idCol)
	return out, nil
}

// ExistingFromTag returns the ids of rows that carry tag.
func ExistingFromTag(raw *Table, tag string) IDSet {
	set := make(IDSet)
	idCol, tagCol := raw.Col(IDColumn), raw.Col(TagColumn)
	if tag == "" || idCol < 0 || tagCol < 0 {
		return set
	}
	for _, row := range raw.Rows {
		if slices.Contains(SplitList(row[tagCol]), tag) {
			set.AddString(row[idCol])
		}
	}
	return set
}

// Rename renames header columns present in names.
func (t *Table) Rename(names map[string]string) {
	for i, col := range t.Header {
		if to, ok := names[col]; ok {
			t.Header[i] = to
		}
	}
}

// SortDesc sorts rows by the named column, largest first. Numeric cells sort
// before anything else; absent values and text keep their relative order at
// the end.
func (t *Table) SortDesc(column string) error {
	col := t.Col(column)
	if col < 0 {
		return fmt.Errorf("reconcile: no column %q to sort by", column)
	}
	slices.SortStableFunc(t.Rows, func(a, b []string) int {
		av, aok := sortValue(a[col])
		bv, bok := sortValue(b[col])
		switch {
		case aok && bok:
			return cmp.Compare(bv, av)
		case aok:
			return -1
		case bok:
			return 1
		default:
			return 0
		}
	})
	return nil
}

func sortValue(cell string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || v == types.Sentinel {
		return 0, false
	}
	return v, true
}

// Options controls Run.
type Options struct {
	// ExistingTag adds rows carrying this tag to the existing set.
	ExistingTag string
	// Rename is applied to the header after reconciling. Nil keeps raw names.
	Rename map[string]string
	// SortBy names a raw column to sort on, descending. Empty keeps row order.
	SortBy string
}

// Run reconciles raw and then applies the presentation options.
func Run(raw *Table, sets LookupSets, opts Options) (*Table, error) {
	sets.Existing = sets.Existing.Union(ExistingFromTag(raw, opts.ExistingTag))

	out, err := Reconcile(raw, sets)
	if err != nil {
		return nil, err
	}

	sortBy := opts.SortBy
	if opts.Rename != nil {
		out.Rename(opts.Rename)
		if to, ok := opts.Rename[sortBy]; ok {
			sortBy = to
		}
	}
	if sortBy != "" {
		if err := out.SortDesc(sortBy); err != nil {
			return nil, err
		}
	}
	return out, nil
}
