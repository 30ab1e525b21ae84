package spider

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/IshaanNene/TableScout/internal/config"
	"github.com/IshaanNene/TableScout/internal/engine"
	"github.com/IshaanNene/TableScout/internal/fetcher"
	"github.com/IshaanNene/TableScout/internal/record"
	"github.com/IshaanNene/TableScout/internal/types"
)

var site = map[string]string{
	"/restaurant+amsterdam": `<html><body>
<div id="resultsContent"><ul>
  <li class="resultItem"><div><h3 class="resultItem-name"><a href="/restaurant/42">De Kas</a></h3>
    <div class="resultItem-averagePrice">Gemiddelde prijs € 35</div></div></li>
  <li class="resultItem"><div><h3 class="resultItem-name"><a href="/restaurant/77">Zonder Naam</a></h3></div></li>
</ul></div>
<div class="pagination"><ul><li class="next"><a href="/restaurant+amsterdam?page=2">volgende</a></li></ul></div>
</body></html>`,

	"/restaurant+amsterdam?page=2": `<html><body>
<div id="resultsContent"><ul>
  <li class="resultItem"><div><h3 class="resultItem-name"><a href="/restaurant/42">De Kas</a></h3></div></li>
</ul></div>
<div class="pagination"><ul>
  <li class="prev"><a href="/restaurant+amsterdam">vorige</a></li>
  <li class="next"><a href="/restaurant+amsterdam">eerste</a></li>
</ul></div>
</body></html>`,

	"/restaurant/42": `<html><body>
<h1 class="restaurantSummary-name">De Kas</h1>
<span class="rating-ratingValue">9,1</span>
<div class="reviewItem">
  <div class="reviewItem-profileName">Jan</div>
  <span class="rating-ratingValue">9,5</span>
  <div class="reviewItem-date">Datum van je bezoek: 3 mrt. 2018</div>
  <div class="reviewItem-customerComment">Heerlijk.</div>
</div>
<div class="reviews-pagination"><ul><li class="next"><a href="/restaurant/42?page=2">volgende</a></li></ul></div>
</body></html>`,

	"/restaurant/42?page=2": `<html><body>
<h1 class="restaurantSummary-name">De Kas</h1>
<div class="reviewItem">
  <div class="reviewItem-profileName">Piet</div>
  <span class="rating-ratingValue">7</span>
  <div class="reviewItem-customerComment">Prima.</div>
</div>
<div class="reviewItem">
  <div class="reviewItem-profileName">Kees</div>
  <span class="rating-ratingValue">heel goed</span>
  <div class="reviewItem-customerComment">Top.</div>
</div>
<div class="reviews-pagination"><ul><li class="prev"><a href="/restaurant/42">vorige</a></li></ul></div>
</body></html>`,

	"/restaurant/77": `<html><body><div class="reviewItem">niets</div></body></html>`,
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := site[r.URL.RequestURI()]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type memStorage struct {
	mu      sync.Mutex
	records []types.Record
}

func (m *memStorage) Store(recs []types.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, recs...)
	return nil
}

func (m *memStorage) Close() error { return nil }

func (m *memStorage) byKind() map[types.RecordKind][]types.Record {
	out := make(map[types.RecordKind][]types.Record)
	for _, r := range m.records {
		out[r.Kind()] = append(out[r.Kind()], r)
	}
	return out
}

func crawl(t *testing.T, sections record.Section) *memStorage {
	t.Helper()
	srv := newSite(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.DefaultConfig()
	cfg.Crawler.Concurrency = 2
	cfg.Crawler.AllowedDomains = nil
	cfg.Crawler.RequestTimeout = 5 * time.Second
	cfg.Storage.BatchSize = 1

	f, err := fetcher.NewHTTPFetcher(cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	e := engine.New(cfg, logger)
	e.SetFetcher("http", f)
	store := &memStorage{}
	e.SetStorage(store)

	s := NewIens(srv.URL, sections, nil, logger)
	s.Register(e)
	if err := s.Seed(e, []string{"Amsterdam"}); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	e.Wait()
	return store
}

func TestCrawlAllSections(t *testing.T) {
	store := crawl(t, record.SectionAll)
	got := store.byKind()

	restaurants := got[types.KindRestaurant]
	if len(restaurants) != 1 {
		t.Fatalf("restaurants = %d, want 1", len(restaurants))
	}
	r := restaurants[0].(*types.Restaurant)
	if r.ID != 42 || r.Name != "De Kas" || r.Reviews == nil || r.Reviews.Rating != types.SomeFloat(9.1) {
		t.Errorf("unexpected restaurant %+v", r)
	}

	var reviewers []string
	for _, c := range got[types.KindComment] {
		c := c.(*types.Comment)
		if c.RestaurantID != 42 {
			t.Errorf("comment %q has restaurant id %d", c.Reviewer, c.RestaurantID)
		}
		reviewers = append(reviewers, c.Reviewer)
	}
	sort.Strings(reviewers)
	if diff := cmp.Diff([]string{"Jan", "Piet"}, reviewers); diff != "" {
		t.Errorf("comment reviewers (-want +got):\n%s", diff)
	}

	// page 2 repeats De Kas; emission does not deduplicate
	if n := len(got[types.KindListing]); n != 3 {
		t.Errorf("listing entries = %d, want 3", n)
	}
}

func TestCrawlInfoOnly(t *testing.T) {
	store := crawl(t, record.SectionInfo)
	got := store.byKind()

	if len(got[types.KindRestaurant]) != 1 {
		t.Errorf("restaurants = %d, want 1", len(got[types.KindRestaurant]))
	}
	if len(got[types.KindComment]) != 0 || len(got[types.KindListing]) != 0 {
		t.Errorf("unexpected records: %d comments, %d listings", len(got[types.KindComment]), len(got[types.KindListing]))
	}
	if r := got[types.KindRestaurant][0].(*types.Restaurant); r.Reviews != nil {
		t.Errorf("review summary should be absent without the reviews section, got %+v", r.Reviews)
	}
}

func TestHandleDetailRejectsPageWithoutName(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewIens("https://www.iens.nl", record.SectionInfo, nil, logger)

	req, _ := types.NewTaggedRequest("https://www.iens.nl/restaurant/77", types.TagDetail)
	resp := types.NewBrowserResponse(req, 200, []byte(site["/restaurant/77"]), req.URLString(), 0)

	records, follow, err := s.HandleDetail(resp)
	if !errors.Is(err, types.ErrRecordRejected) || !errors.Is(err, types.ErrMissingField) {
		t.Errorf("error = %v, want rejection for missing name", err)
	}
	if len(records) != 0 || len(follow) != 0 {
		t.Errorf("rejected page produced %d records and %d requests", len(records), len(follow))
	}
}

func TestSeedURL(t *testing.T) {
	s := NewIens("https://www.iens.nl/", record.SectionInfo, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if got := s.SeedURL(" Amsterdam "); got != "https://www.iens.nl/restaurant+amsterdam" {
		t.Errorf("SeedURL = %q", got)
	}
}
