package reconcile

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/IshaanNene/TableScout/internal/config"
	"github.com/IshaanNene/TableScout/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func rawTable() *Table {
	return &Table{
		Header: []string{"id", "name", "rating_food", "tags"},
		Rows: [][]string{
			{"42", "De Kas", "8.5", "A"},
			{"7", "Greetje", "9", "Hamburger"},
			{"42", "De Kas", "8.5", "B"},
			{"42", "De Kas", "8.5", "C"},
			{"7", "Greetje", "9", "Frans"},
			{"13", "Moeders", "-1", ""},
		},
	}
}

func idSet(ids ...int64) IDSet {
	s := make(IDSet)
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func TestReconcileCollapsesTags(t *testing.T) {
	got, err := Reconcile(rawTable(), LookupSets{Elastic: idSet(42), Image: idSet(7, 42)})
	if err != nil {
		t.Fatal(err)
	}

	want := &Table{
		Header: []string{"id", "name", "rating_food", "tags", "existing", "elastic", "image"},
		Rows: [][]string{
			{"42", "De Kas", "8.5", "A|B|C", "false", "true", "true"},
			{"7", "Greetje", "9", "Hamburger|Frans", "false", "false", "true"},
			{"13", "Moeders", "-1", "", "false", "false", "false"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Reconcile (-want +got):\n%s", diff)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	sets := LookupSets{Existing: idSet(7), Elastic: idSet(42)}
	once, err := Reconcile(rawTable(), sets)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Reconcile(once, sets)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second pass changed the table (-once +twice):\n%s", diff)
	}
}

func TestReconcileKeepsRepeatedTags(t *testing.T) {
	raw := &Table{
		Header: []string{"id", "tags"},
		Rows: [][]string{
			{"42", "A"},
			{"42", "B"},
			{"42", "A"},
		},
	}
	once, err := Reconcile(raw, LookupSets{})
	if err != nil {
		t.Fatal(err)
	}
	if got := once.Rows[0][1]; got != "A|B|A" {
		t.Errorf("tags = %q, want A|B|A", got)
	}

	twice, err := Reconcile(once, LookupSets{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second pass changed the table (-once +twice):\n%s", diff)
	}
}

func TestReconcileWithoutLookups(t *testing.T) {
	got, err := Reconcile(rawTable(), LookupSets{})
	if err != nil {
		t.Fatal(err)
	}
	for _, col := range []string{ExistingColumn, ElasticColumn, ImageColumn} {
		vals, err := got.Column(col)
		if err != nil {
			t.Fatal(err)
		}
		for _, v := range vals {
			if v != "false" {
				t.Errorf("%s = %q with no lookup, want false", col, v)
			}
		}
	}
}

func TestReconcileAddsMissingTagColumn(t *testing.T) {
	raw := &Table{Header: []string{"id", "name"}, Rows: [][]string{{"1", "A"}, {"1", "A"}}}
	got, err := Reconcile(raw, LookupSets{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Rows) != 1 || got.Col(TagColumn) != 2 || got.Rows[0][2] != "" {
		t.Errorf("unexpected table %+v", got)
	}
}

func TestReconcileNeedsID(t *testing.T) {
	if _, err := Reconcile(&Table{Header: []string{"name"}}, LookupSets{}); err == nil {
		t.Error("expected error without id column")
	}
}

func TestRun(t *testing.T) {
	got, err := Run(rawTable(), LookupSets{}, Options{
		ExistingTag: "Hamburger",
		Rename:      DefaultRenames,
		SortBy:      "rating_food",
	})
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"id", "Name", "Food rating", "tags", "existing", "elastic", "image"}, got.Header); diff != "" {
		t.Errorf("header (-want +got):\n%s", diff)
	}
	ids, _ := got.Column("id")
	if diff := cmp.Diff([]string{"7", "42", "13"}, ids); diff != "" {
		t.Errorf("sorted ids (-want +got):\n%s", diff)
	}
	existing, _ := got.Column(ExistingColumn)
	if diff := cmp.Diff([]string{"true", "false", "false"}, existing); diff != "" {
		t.Errorf("existing (-want +got):\n%s", diff)
	}
}

func TestSortDescKeepsAbsentLast(t *testing.T) {
	tbl := &Table{
		Header: []string{"id", "score"},
		Rows:   [][]string{{"1", "-1"}, {"2", "7"}, {"3", "n/a"}, {"4", "8.5"}, {"5", "7"}},
	}
	if err := tbl.SortDesc("score"); err != nil {
		t.Fatal(err)
	}
	ids, _ := tbl.Column("id")
	if diff := cmp.Diff([]string{"4", "2", "5", "1", "3"}, ids); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	if err := tbl.SortDesc("missing"); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestCSVRoundTrip(t *testing.T) {
	in := "id,name,tags\n42,De Kas,A|B\n"
	tbl, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"A", "B"}, SplitList(tbl.Rows[0][2])); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
	var buf bytes.Buffer
	if err := tbl.WriteCSV(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != in {
		t.Errorf("WriteCSV = %q, want %q", buf.String(), in)
	}
}

func TestReadLookup(t *testing.T) {
	set, err := ReadLookup(strings.NewReader("restaurant_id\n42\n7,extra\n13.0\n\n"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(idSet(42, 7, 13), set); diff != "" {
		t.Errorf("set (-want +got):\n%s", diff)
	}
}

func TestLoadLookupSetMissing(t *testing.T) {
	_, err := LoadLookupSet("image", filepath.Join(t.TempDir(), "nope.csv"))
	var le *types.LookupError
	if !errors.As(err, &le) || le.Name != "image" {
		t.Fatalf("error = %v, want LookupError", err)
	}
	if !errors.Is(err, types.ErrLookupMissing) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error %v should match ErrLookupMissing and os.ErrNotExist", err)
	}
}

func TestLoadLookupsDegrades(t *testing.T) {
	dir := t.TempDir()
	elastic := filepath.Join(dir, "elastic.csv")
	if err := os.WriteFile(elastic, []byte("42\n77\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sets, err := LoadLookups(context.Background(), config.LookupConfig{
		Elastic: elastic,
		Image:   filepath.Join(dir, "missing.csv"),
	}, nil, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(idSet(42, 77), sets.Elastic); diff != "" {
		t.Errorf("elastic (-want +got):\n%s", diff)
	}
	if sets.Image == nil || len(sets.Image) != 0 || len(sets.Existing) != 0 {
		t.Errorf("missing lookups should degrade to empty sets, got %+v", sets)
	}
}

func TestLoadLookupsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := LoadLookups(ctx, config.LookupConfig{}, nil, testLogger); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
