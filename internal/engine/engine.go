// Package engine runs a crawl: a worker pool pulls tagged requests from a
// frontier, hands each response to the callback registered for its tag,
// and streams the resulting records through a pipeline into storage.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/TableScout/internal/config"
	"github.com/IshaanNene/TableScout/internal/observability"
	"github.com/IshaanNene/TableScout/internal/types"
)

// State represents the engine's current lifecycle state.
type State int32

const (
	StateIdle     State = 0
	StateRunning  State = 1
	StateStopping State = 2
	StateStopped  State = 3
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats tracks crawl statistics.
type Stats struct {
	RequestsSent    atomic.Int64
	RequestsFailed  atomic.Int64
	ResponsesOK     atomic.Int64
	ResponsesError  atomic.Int64
	RecordsEmitted  atomic.Int64
	RecordsRejected atomic.Int64
	RecordsStored   atomic.Int64
	URLsEnqueued    atomic.Int64
	URLsFiltered    atomic.Int64
	BytesDownloaded atomic.Int64
	ActiveWorkers   atomic.Int32
	StartTime       time.Time
}

// Snapshot returns the counters as a map, for logging.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"requests_sent":    s.RequestsSent.Load(),
		"requests_failed":  s.RequestsFailed.Load(),
		"responses_ok":     s.ResponsesOK.Load(),
		"responses_error":  s.ResponsesError.Load(),
		"records_emitted":  s.RecordsEmitted.Load(),
		"records_rejected": s.RecordsRejected.Load(),
		"records_stored":   s.RecordsStored.Load(),
		"urls_enqueued":    s.URLsEnqueued.Load(),
		"urls_filtered":    s.URLsFiltered.Load(),
		"bytes_downloaded": s.BytesDownloaded.Load(),
		"active_workers":   s.ActiveWorkers.Load(),
		"elapsed":          time.Since(s.StartTime).String(),
	}
}

// Fetcher retrieves a page.
type Fetcher interface {
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)
	Close() error
}

// Pipeline transforms or drops a record before storage. A nil record with
// a nil error drops it silently.
type Pipeline interface {
	Process(rec types.Record) (types.Record, error)
}

// Storage persists batches of records.
type Storage interface {
	Store(recs []types.Record) error
	Close() error
}

// ResponseCallback turns a response into records and follow-up requests.
// Follow-up requests must carry their own tag.
type ResponseCallback func(resp *types.Response) ([]types.Record, []*types.Request, error)

// Engine is the crawl orchestrator.
type Engine struct {
	cfg       *config.Config
	logger    *slog.Logger
	frontier  *Frontier
	seen      SeenSet
	scheduler *Scheduler
	fetchers  map[string]Fetcher
	pipeline  Pipeline
	storage   Storage
	metrics   *observability.Metrics

	state      atomic.Int32
	stats      *Stats
	callbacks  map[string]ResponseCallback
	recordChan chan types.Record
	resultChan chan types.Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// New creates an Engine with an in-memory seen-set.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		cfg:        cfg,
		logger:     logger.With("component", "engine"),
		frontier:   NewFrontier(),
		seen:       NewDeduplicator(100_000),
		fetchers:   make(map[string]Fetcher),
		callbacks:  make(map[string]ResponseCallback),
		recordChan: make(chan types.Record, cfg.Crawler.Concurrency*10),
		resultChan: make(chan types.Record, cfg.Crawler.Concurrency*10),
		stats:      &Stats{},
		ctx:        ctx,
		cancel:     cancel,
	}

	e.scheduler = NewScheduler(e, logger)
	return e
}

// SetFetcher registers a fetcher for a given type.
func (e *Engine) SetFetcher(fetcherType string, f Fetcher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fetchers[fetcherType] = f
}

func (e *Engine) SetPipeline(p Pipeline) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pipeline = p
}

func (e *Engine) SetStorage(s Storage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.storage = s
}

// SetSeenSet replaces the in-memory seen-set, e.g. with a RedisSeenSet.
// It must be called before any request is added.
func (e *Engine) SetSeenSet(s SeenSet) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen = s
}

func (e *Engine) SetMetrics(m *observability.Metrics) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = m
}

// OnResponse registers the callback for responses to requests tagged tag.
func (e *Engine) OnResponse(tag string, cb ResponseCallback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks[tag] = cb
}

// AddSeed queues a depth-0 request for rawURL with the given tag.
func (e *Engine) AddSeed(rawURL, tag string) error {
	req, err := types.NewTaggedRequest(rawURL, tag)
	if err != nil {
		return err
	}
	req.Priority = types.PriorityHighest
	req.MaxRetries = e.cfg.Crawler.MaxRetries
	return e.AddRequest(req)
}

// AddRequest queues req unless the crawl is stopping, or req is too deep,
// off-domain or already seen.
func (e *Engine) AddRequest(req *types.Request) error {
	if st := e.GetState(); st == StateStopping || st == StateStopped {
		return types.ErrCrawlStopped
	}
	if req.Depth > e.cfg.Crawler.MaxDepth {
		e.stats.URLsFiltered.Add(1)
		return types.ErrMaxDepth
	}

	if !e.isDomainAllowed(req.Domain()) {
		e.stats.URLsFiltered.Add(1)
		return fmt.Errorf("domain %q is not allowed", req.Domain())
	}

	fresh, err := e.seen.MarkIfNew(e.ctx, req.URLString())
	if err != nil {
		return err
	}
	if !fresh {
		e.stats.URLsFiltered.Add(1)
		return types.ErrDuplicate
	}

	e.frontier.Push(req)
	e.stats.URLsEnqueued.Add(1)
	e.metrics.SetQueueDepth(e.frontier.Len())
	return nil
}

// Start launches the workers and the record consumers.
func (e *Engine) Start() error {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("engine is in state %s, cannot start", State(e.state.Load()))
	}

	e.logger.Info("engine starting",
		"concurrency", e.cfg.Crawler.Concurrency,
		"max_depth", e.cfg.Crawler.MaxDepth,
		"max_requests", e.cfg.Crawler.MaxRequests,
	)

	e.stats.StartTime = time.Now()

	e.wg.Add(2)
	go e.processRecords()
	go e.storeResults()

	e.scheduler.Start(e.ctx)
	return nil
}

// Wait blocks until the crawl finishes and every record has been stored.
func (e *Engine) Wait() {
	e.scheduler.Wait()
	e.cancel()

	close(e.recordChan)
	e.wg.Wait()
	e.state.Store(int32(StateStopped))

	e.mu.RLock()
	for _, f := range e.fetchers {
		if err := f.Close(); err != nil {
			e.logger.Error("fetcher close error", "error", err)
		}
	}
	if err := e.seen.Close(); err != nil {
		e.logger.Error("seen-set close error", "error", err)
	}
	e.mu.RUnlock()

	e.logger.Info("engine stopped", "stats", e.stats.Snapshot())
}

// Stop ends the crawl. Requests in flight finish; queued ones are dropped.
func (e *Engine) Stop() {
	if !e.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return
	}
	e.logger.Info("engine stopping")
	e.frontier.Close()
	e.cancel()
}

func (e *Engine) Stats() *Stats {
	return e.stats
}

func (e *Engine) GetState() State {
	return State(e.state.Load())
}

func (e *Engine) isDomainAllowed(domain string) bool {
	if len(e.cfg.Crawler.AllowedDomains) == 0 {
		return true
	}
	return slices.Contains(e.cfg.Crawler.AllowedDomains, domain)
}

// emit hands a record to the pipeline stage.
func (e *Engine) emit(rec types.Record) {
	e.stats.RecordsEmitted.Add(1)
	e.metrics.IncEmitted(string(rec.Kind()))
	e.recordChan <- rec
}

// reject counts and logs a record that will not be emitted.
func (e *Engine) reject(err error) {
	e.stats.RecordsRejected.Add(1)

	var rej *types.RecordRejectedError
	if errors.As(err, &rej) {
		e.metrics.IncRejected(string(rej.Kind))
		e.logger.Warn("record rejected", "kind", rej.Kind, "url", rej.URL, "reason", rej.Reason)
		return
	}
	e.logger.Warn("record rejected", "error", err)
}

func (e *Engine) processRecords() {
	defer e.wg.Done()
	for rec := range e.recordChan {
		if e.pipeline != nil {
			processed, err := e.pipeline.Process(rec)
			if err != nil {
				e.reject(err)
				continue
			}
			if processed == nil {
				continue
			}
			rec = processed
		}
		e.resultChan <- rec
	}
	close(e.resultChan)
}

func (e *Engine) storeResults() {
	defer e.wg.Done()
	batchSize := max(e.cfg.Storage.BatchSize, 1)
	batch := make([]types.Record, 0, batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if e.storage != nil {
			if err := e.storage.Store(batch); err != nil {
				e.logger.Error("storage error", "error", err, "batch_size", len(batch))
			} else {
				e.stats.RecordsStored.Add(int64(len(batch)))
			}
		}
		batch = batch[:0]
	}

	for rec := range e.resultChan {
		batch = append(batch, rec)
		if len(batch) >= batchSize {
			flush()
		}
	}
	flush()

	if e.storage != nil {
		if err := e.storage.Close(); err != nil {
			e.logger.Error("storage close error", "error", err)
		}
	}
}
