package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/TableScout/internal/types"
)

// Scheduler runs the worker goroutines that dequeue from the frontier.
type Scheduler struct {
	engine      *Engine
	logger      *slog.Logger
	wg          sync.WaitGroup
	idleWorkers atomic.Int32
}

func NewScheduler(e *Engine, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		engine: e,
		logger: logger.With("component", "scheduler"),
	}
}

// Start launches the worker pool and the idle monitor.
func (s *Scheduler) Start(ctx context.Context) {
	concurrency := max(s.engine.cfg.Crawler.Concurrency, 1)
	s.logger.Info("starting worker pool", "workers", concurrency)

	for i := range concurrency {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	go s.idleMonitor(ctx, concurrency)
}

func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// idleMonitor closes the frontier once every worker has been idle with an
// empty queue for three consecutive ticks.
func (s *Scheduler) idleMonitor(ctx context.Context, concurrency int) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	idleStreak := 0

	for {
		select {
		case <-ctx.Done():
			s.engine.frontier.Close()
			return
		case <-ticker.C:
			if int(s.idleWorkers.Load()) >= concurrency && s.engine.frontier.Len() == 0 {
				idleStreak++
				if idleStreak >= 3 {
					s.logger.Info("all workers idle and frontier empty, crawl complete")
					s.engine.frontier.Close()
					return
				}
			} else {
				idleStreak = 0
			}
		}
	}
}

func (s *Scheduler) worker(ctx context.Context, id int) {
	defer s.wg.Done()
	logger := s.logger.With("worker_id", id)

	for {
		s.idleWorkers.Add(1)
		req := s.next(ctx)
		s.idleWorkers.Add(-1)
		if req == nil {
			return
		}
		s.engine.metrics.SetQueueDepth(s.engine.frontier.Len())

		s.engine.stats.ActiveWorkers.Add(1)
		s.engine.metrics.AddActiveWorkers(1)
		s.processRequest(ctx, logger, req)
		s.engine.metrics.AddActiveWorkers(-1)
		s.engine.stats.ActiveWorkers.Add(-1)

		if limit := s.engine.cfg.Crawler.MaxRequests; limit > 0 &&
			s.engine.stats.RequestsSent.Load() >= int64(limit) {
			logger.Info("max requests reached, stopping", "max_requests", limit)
			s.engine.Stop()
			return
		}
	}
}

// next polls the frontier until a request arrives, the frontier is closed
// and drained, or ctx is done.
func (s *Scheduler) next(ctx context.Context) *types.Request {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if req := s.engine.frontier.TryPop(); req != nil {
			return req
		}
		if s.engine.frontier.IsClosed() {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// processRequest fetches one page and dispatches it to its tag's callback.
func (s *Scheduler) processRequest(ctx context.Context, logger *slog.Logger, req *types.Request) {
	logger = logger.With("url", req.URLString(), "tag", req.Tag, "depth", req.Depth)

	fetcherType := req.FetcherType
	if fetcherType == "" {
		fetcherType = s.engine.cfg.Fetcher.Type
	}

	s.engine.mu.RLock()
	fetcher, ok := s.engine.fetchers[fetcherType]
	cb, hasCallback := s.engine.callbacks[req.Tag]
	s.engine.mu.RUnlock()

	if !ok {
		s.engine.stats.RequestsFailed.Add(1)
		logger.Error("no fetcher for type", "fetcher_type", fetcherType, "error", types.ErrNoFetcher)
		return
	}
	if !hasCallback {
		logger.Warn("no callback for tag, skipping")
		return
	}

	timeout := s.engine.cfg.Crawler.RequestTimeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	fetchCtx, fetchCancel := context.WithTimeout(ctx, timeout)
	defer fetchCancel()

	s.engine.stats.RequestsSent.Add(1)
	s.engine.metrics.IncRequests()
	resp, err := fetcher.Fetch(fetchCtx, req)
	if err != nil {
		s.handleFetchError(ctx, logger, req, err)
		return
	}

	s.engine.stats.ResponsesOK.Add(1)
	s.engine.stats.BytesDownloaded.Add(resp.ContentLength)
	s.engine.metrics.AddBytes(resp.ContentLength)
	logger.Debug("fetched", "status", resp.StatusCode, "size", resp.ContentLength, "duration", resp.FetchDuration)

	records, follow, err := cb(resp)
	if err != nil {
		// a rejected page still yields its follow-up links
		s.engine.reject(err)
	}
	s.engine.metrics.IncDocument(req.Tag)

	for _, rec := range records {
		s.engine.emit(rec)
	}
	for _, r := range follow {
		r.Depth = req.Depth + 1
		r.ParentURL = req.URLString()
		r.MaxRetries = s.engine.cfg.Crawler.MaxRetries
		if err := s.engine.AddRequest(r); err != nil &&
			!errors.Is(err, types.ErrDuplicate) && !errors.Is(err, types.ErrCrawlStopped) {
			logger.Debug("follow-up request skipped", "target", r.URLString(), "error", err)
		}
	}
}

// handleFetchError requeues retryable failures at low priority.
func (s *Scheduler) handleFetchError(ctx context.Context, logger *slog.Logger, req *types.Request, err error) {
	s.engine.stats.RequestsFailed.Add(1)

	var fetchErr *types.FetchError
	retryable := errors.As(err, &fetchErr) && fetchErr.IsRetryable()
	s.engine.metrics.IncFetchError(retryable)

	if retryable && req.RetryCount < req.MaxRetries {
		req.RetryCount++
		req.Priority = types.PriorityLow
		logger.Warn("retrying request",
			"retry", req.RetryCount,
			"max_retries", req.MaxRetries,
			"error", err,
		)
		if fetchErr.RetryAfter > 0 {
			logger.Info("rate limited, backing off", "retry_after", fetchErr.RetryAfter)
			select {
			case <-ctx.Done():
				return
			case <-time.After(fetchErr.RetryAfter):
			}
		}
		s.engine.metrics.IncRetried()
		s.engine.frontier.Push(req)
		return
	}

	s.engine.stats.ResponsesError.Add(1)
	logger.Error("fetch failed permanently", "error", fetchFailure(req, retryable, err), "retries", req.RetryCount)
}

// fetchFailure wraps a final fetch error with ErrTimeout when the request
// ran out of time, or ErrMaxRetries when a retryable error kept recurring.
func fetchFailure(req *types.Request, retryable bool, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", types.ErrTimeout, err)
	case retryable:
		return fmt.Errorf("%w after %d retries: %w", types.ErrMaxRetries, req.RetryCount, err)
	default:
		return err
	}
}
