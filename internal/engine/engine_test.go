package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/IshaanNene/TableScout/internal/config"
	"github.com/IshaanNene/TableScout/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Crawler.Concurrency = 2
	cfg.Crawler.AllowedDomains = []string{"www.iens.nl"}
	cfg.Crawler.RequestTimeout = time.Second
	cfg.Storage.BatchSize = 2
	return cfg
}

func TestFrontierPriorityThenFIFO(t *testing.T) {
	f := NewFrontier()

	push := func(path string, prio int) {
		r, err := types.NewRequest("https://www.iens.nl/" + path)
		if err != nil {
			t.Fatal(err)
		}
		r.Priority = prio
		f.Push(r)
	}
	push("a", types.PriorityNormal)
	push("b", types.PriorityLow)
	push("c", types.PriorityNormal)
	push("d", types.PriorityHighest)
	push("e", types.PriorityNormal)

	var got []string
	for r := f.TryPop(); r != nil; r = f.TryPop() {
		got = append(got, r.URL.Path)
	}
	want := []string{"/d", "/a", "/c", "/e", "/b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pop order (-want +got):\n%s", diff)
	}
}

func TestFrontierClosed(t *testing.T) {
	f := NewFrontier()
	r, _ := types.NewRequest("https://www.iens.nl/a")
	f.Push(r)
	f.Close()

	if !f.IsClosed() {
		t.Fatal("expected frontier to be closed")
	}
	f.Push(r)
	if f.Len() != 1 {
		t.Errorf("push after close should be ignored, len = %d", f.Len())
	}
	if got := f.Pop(context.Background()); got == nil {
		t.Error("queued request should still pop after close")
	}
	if got := f.Pop(context.Background()); got != nil {
		t.Errorf("closed empty frontier should return nil, got %v", got)
	}
}

func TestFrontierPopContext(t *testing.T) {
	f := NewFrontier()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if got := f.Pop(ctx); got != nil {
		t.Errorf("expected nil after context deadline, got %v", got)
	}
}

func TestDeduplicatorMarkIfNew(t *testing.T) {
	d := NewDeduplicator(16)
	ctx := context.Background()

	fresh, err := d.MarkIfNew(ctx, "https://www.iens.nl/restaurant+amsterdam?page=2")
	if err != nil || !fresh {
		t.Fatalf("first mark = %v, %v; want true, nil", fresh, err)
	}
	fresh, _ = d.MarkIfNew(ctx, "https://WWW.iens.nl/restaurant+amsterdam?page=2#top")
	if fresh {
		t.Error("host case and fragment should not make a URL new")
	}
	if d.Count() != 1 {
		t.Errorf("Count = %d, want 1", d.Count())
	}
	if !d.IsSeen("https://www.iens.nl:443/restaurant+amsterdam?page=2") {
		t.Error("default port should canonicalize away")
	}
}

func TestCanonicalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://Example.COM/Path?b=2&a=1", "https://example.com/Path?a=1&b=2"},
		{"http://example.com:80/x/", "http://example.com/x"},
		{"https://example.com", "https://example.com/"},
		{"https://example.com/a#frag", "https://example.com/a"},
	}
	for _, tt := range tests {
		if got := CanonicalizeURL(tt.in); got != tt.want {
			t.Errorf("CanonicalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStatsSnapshot(t *testing.T) {
	s := &Stats{StartTime: time.Now()}
	s.RequestsSent.Add(42)
	s.RecordsEmitted.Add(7)

	snap := s.Snapshot()
	if snap["requests_sent"].(int64) != 42 {
		t.Errorf("requests_sent = %v, want 42", snap["requests_sent"])
	}
	if snap["records_emitted"].(int64) != 7 {
		t.Errorf("records_emitted = %v, want 7", snap["records_emitted"])
	}
}

// fakeFetcher serves canned bodies keyed by URL path.
type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	failures map[string]int
	fetched  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, req *types.Request) (*types.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := req.URL.RequestURI()
	f.fetched = append(f.fetched, path)

	if f.failures[path] > 0 {
		f.failures[path]--
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: 503, Err: errors.New("unavailable"), Retryable: true}
	}
	body, ok := f.pages[path]
	if !ok {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: 404, Err: errors.New("not found")}
	}
	return types.NewBrowserResponse(req, 200, []byte(body), req.URLString(), 0), nil
}

func (f *fakeFetcher) Close() error { return nil }

type memStorage struct {
	mu      sync.Mutex
	records []types.Record
	closed  bool
}

func (m *memStorage) Store(recs []types.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, recs...)
	return nil
}

func (m *memStorage) Close() error {
	m.closed = true
	return nil
}

type dropUnnamed struct{}

func (dropUnnamed) Process(rec types.Record) (types.Record, error) {
	if l, ok := rec.(*types.ListingEntry); ok && l.Name == "" {
		return nil, types.Reject(types.KindListing, l.URL, types.ErrMissingField)
	}
	return rec, nil
}

// The fake site is two listing pages that link to each other and to three
// detail pages. Bodies are "name;link,link" pairs.
func fakeSite() map[string]string {
	return map[string]string{
		"/restaurant+amsterdam":        "listing;/restaurant+amsterdam?page=2,/restaurant/1,/restaurant/2",
		"/restaurant+amsterdam?page=2": "listing;/restaurant+amsterdam,/restaurant/2,/restaurant/3",
		"/restaurant/1":                "Een",
		"/restaurant/2":                "Twee",
		"/restaurant/3":                "",
	}
}

func registerFakeSpider(e *Engine) {
	e.OnResponse(types.TagListing, func(resp *types.Response) ([]types.Record, []*types.Request, error) {
		_, links, _ := strings.Cut(string(resp.Body), ";")
		var follow []*types.Request
		for _, l := range strings.Split(links, ",") {
			tag := types.TagDetail
			if strings.Contains(l, "+") {
				tag = types.TagListing
			}
			r, err := types.NewTaggedRequest("https://www.iens.nl"+l, tag)
			if err != nil {
				return nil, nil, err
			}
			follow = append(follow, r)
		}
		return nil, follow, nil
	})
	e.OnResponse(types.TagDetail, func(resp *types.Response) ([]types.Record, []*types.Request, error) {
		u := resp.Request.URLString()
		var id int64
		fmt.Sscanf(resp.Request.URL.Path, "/restaurant/%d", &id)
		return []types.Record{&types.ListingEntry{ID: id, Name: string(resp.Body), URL: u}}, nil, nil
	})
}

func TestEngineCrawl(t *testing.T) {
	cfg := testConfig()
	e := New(cfg, testLogger())

	fetcher := &fakeFetcher{pages: fakeSite(), failures: map[string]int{"/restaurant/2": 1}}
	store := &memStorage{}
	e.SetFetcher("http", fetcher)
	e.SetStorage(store)
	e.SetPipeline(dropUnnamed{})
	registerFakeSpider(e)

	if err := e.AddSeed("https://www.iens.nl/restaurant+amsterdam", types.TagListing); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	e.Wait()

	var names []string
	for _, r := range store.records {
		names = append(names, r.(*types.ListingEntry).Name)
	}
	sort.Strings(names)
	if diff := cmp.Diff([]string{"Een", "Twee"}, names); diff != "" {
		t.Errorf("stored names (-want +got):\n%s", diff)
	}
	if !store.closed {
		t.Error("storage should be closed after Wait")
	}

	// 2 listing pages, 3 detail pages, 1 retry
	if got := len(fetcher.fetched); got != 6 {
		t.Errorf("fetched %d pages, want 6: %v", got, fetcher.fetched)
	}
	if got := e.Stats().RecordsRejected.Load(); got != 1 {
		t.Errorf("RecordsRejected = %d, want 1", got)
	}
	if e.GetState() != StateStopped {
		t.Errorf("state = %s, want stopped", e.GetState())
	}
}

func TestEngineMaxRequests(t *testing.T) {
	cfg := testConfig()
	cfg.Crawler.Concurrency = 1
	cfg.Crawler.MaxRequests = 2
	e := New(cfg, testLogger())

	fetcher := &fakeFetcher{pages: fakeSite()}
	e.SetFetcher("http", fetcher)
	e.SetStorage(&memStorage{})
	registerFakeSpider(e)

	if err := e.AddSeed("https://www.iens.nl/restaurant+amsterdam", types.TagListing); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	e.Wait()

	if got := len(fetcher.fetched); got != 2 {
		t.Errorf("fetched %d pages, want 2", got)
	}
}

func TestAddRequestFilters(t *testing.T) {
	cfg := testConfig()
	cfg.Crawler.MaxDepth = 1
	e := New(cfg, testLogger())

	if err := e.AddSeed("https://www.iens.nl/restaurant+delft", types.TagListing); err != nil {
		t.Fatal(err)
	}
	if err := e.AddSeed("https://www.iens.nl/restaurant+delft", types.TagListing); !errors.Is(err, types.ErrDuplicate) {
		t.Errorf("second seed error = %v, want ErrDuplicate", err)
	}

	deep, _ := types.NewTaggedRequest("https://www.iens.nl/restaurant/9", types.TagDetail)
	deep.Depth = 2
	if err := e.AddRequest(deep); !errors.Is(err, types.ErrMaxDepth) {
		t.Errorf("deep request error = %v, want ErrMaxDepth", err)
	}

	if err := e.AddSeed("https://example.com/", types.TagListing); err == nil {
		t.Error("off-domain seed should be refused")
	}
	if err := e.AddSeed("/restaurant+delft", types.TagListing); !errors.Is(err, types.ErrInvalidURL) {
		t.Errorf("relative seed error = %v, want ErrInvalidURL", err)
	}
	if got := e.Stats().URLsEnqueued.Load(); got != 1 {
		t.Errorf("URLsEnqueued = %d, want 1", got)
	}
}

func TestAddRequestAfterStop(t *testing.T) {
	e := New(testConfig(), testLogger())
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	e.Stop()

	if err := e.AddSeed("https://www.iens.nl/restaurant+delft", types.TagListing); !errors.Is(err, types.ErrCrawlStopped) {
		t.Errorf("seed after Stop error = %v, want ErrCrawlStopped", err)
	}
	e.Wait()
	if got := e.Stats().URLsEnqueued.Load(); got != 0 {
		t.Errorf("URLsEnqueued = %d, want 0", got)
	}
}

func TestFetchFailure(t *testing.T) {
	req, _ := types.NewTaggedRequest("https://www.iens.nl/restaurant/1", types.TagDetail)
	req.RetryCount = 3

	deadline := &types.FetchError{URL: req.URLString(), Err: fmt.Errorf("get: %w", context.DeadlineExceeded)}
	if err := fetchFailure(req, false, deadline); !errors.Is(err, types.ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("deadline error = %v, want ErrTimeout", err)
	}

	unavailable := &types.FetchError{URL: req.URLString(), StatusCode: 503, Err: errors.New("unavailable"), Retryable: true}
	err := fetchFailure(req, true, unavailable)
	if !errors.Is(err, types.ErrMaxRetries) {
		t.Errorf("exhausted error = %v, want ErrMaxRetries", err)
	}
	var fe *types.FetchError
	if !errors.As(err, &fe) || fe.StatusCode != 503 {
		t.Errorf("exhausted error should keep the FetchError, got %v", err)
	}

	notFound := &types.FetchError{URL: req.URLString(), StatusCode: 404, Err: errors.New("not found")}
	if err := fetchFailure(req, false, notFound); err != notFound {
		t.Errorf("non-retryable error = %v, want it unchanged", err)
	}
}

func BenchmarkFrontierPushPop(b *testing.B) {
	f := NewFrontier()
	req, _ := types.NewRequest("https://www.iens.nl/restaurant/1")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Push(req)
	}
	for i := 0; i < b.N; i++ {
		f.TryPop()
	}
}
