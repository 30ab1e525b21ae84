package engine

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/IshaanNene/TableScout/internal/types"
)

// Frontier is a thread-safe priority queue of crawl requests. Requests of
// equal priority come out in the order they were pushed.
type Frontier struct {
	mu     sync.Mutex
	pq     priorityQueue
	seq    uint64
	closed bool
}

// NewFrontier creates an empty Frontier.
func NewFrontier() *Frontier {
	f := &Frontier{pq: make(priorityQueue, 0, 256)}
	heap.Init(&f.pq)
	return f
}

// Push adds a request. Pushing to a closed frontier is a no-op.
func (f *Frontier) Push(req *types.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.seq++
	heap.Push(&f.pq, &pqItem{request: req, priority: req.Priority, seq: f.seq})
}

// Pop removes and returns the next request, blocking until one is
// available. It returns nil once the frontier is closed and empty or ctx
// is done.
func (f *Frontier) Pop(ctx context.Context) *types.Request {
	for {
		if req := f.TryPop(); req != nil {
			return req
		}
		if f.IsClosed() {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// TryPop dequeues without blocking. Returns nil if empty.
func (f *Frontier) TryPop() *types.Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pq.Len() == 0 {
		return nil
	}
	return heap.Pop(&f.pq).(*pqItem).request
}

func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pq.Len()
}

// Close stops the frontier from accepting requests. Queued requests can
// still be popped.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *Frontier) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type pqItem struct {
	request  *types.Request
	priority int
	seq      uint64
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		// lower value first
		return pq[i].priority < pq[j].priority
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }

func (pq *priorityQueue) Push(x any) {
	*pq = append(*pq, x.(*pqItem))
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}
