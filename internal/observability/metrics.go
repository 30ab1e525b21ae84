package observability

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of a crawl. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	RequestsTotal   prometheus.Counter
	FetchErrors     *prometheus.CounterVec
	RequestsRetried prometheus.Counter
	DocumentsParsed *prometheus.CounterVec
	RecordsEmitted  *prometheus.CounterVec
	RecordsRejected *prometheus.CounterVec
	RecordsStored   *prometheus.CounterVec
	FieldIssues     prometheus.Counter
	QueueDepth      prometheus.Gauge
	ActiveWorkers   prometheus.Gauge
	BytesDownloaded prometheus.Counter
	ReconciledRows  prometheus.Gauge
	LookupsDegraded *prometheus.CounterVec

	registry *prometheus.Registry
	logger   *slog.Logger
	server   *http.Server
}

// NewMetrics creates the collectors and registers them on a private registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tablescout_requests_total",
			Help: "Total page fetches attempted.",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablescout_fetch_errors_total",
			Help: "Failed fetches by whether they will be retried.",
		}, []string{"retryable"}),
		RequestsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tablescout_requests_retried_total",
			Help: "Total requests put back on the queue after a failure.",
		}),
		DocumentsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablescout_documents_parsed_total",
			Help: "Documents turned into records, by page tag.",
		}, []string{"tag"}),
		RecordsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablescout_records_emitted_total",
			Help: "Records emitted, by kind.",
		}, []string{"kind"}),
		RecordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablescout_records_rejected_total",
			Help: "Records rejected during extraction or in the pipeline, by kind.",
		}, []string{"kind"}),
		RecordsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablescout_records_stored_total",
			Help: "Records written, by storage backend.",
		}, []string{"backend"}),
		FieldIssues: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tablescout_field_issues_total",
			Help: "Fields left absent because their text was malformed.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tablescout_queue_depth",
			Help: "Requests waiting in the crawl queue.",
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tablescout_active_workers",
			Help: "Workers currently fetching or parsing.",
		}),
		BytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tablescout_bytes_downloaded_total",
			Help: "Total response bytes read.",
		}),
		ReconciledRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tablescout_reconciled_rows",
			Help: "Rows in the last reconciled table.",
		}),
		LookupsDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tablescout_lookups_degraded_total",
			Help: "Lookup lists replaced by an empty set because they could not be read.",
		}, []string{"lookup"}),
		registry: prometheus.NewRegistry(),
		logger:   logger.With("component", "metrics"),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.FetchErrors,
		m.RequestsRetried,
		m.DocumentsParsed,
		m.RecordsEmitted,
		m.RecordsRejected,
		m.RecordsStored,
		m.FieldIssues,
		m.QueueDepth,
		m.ActiveWorkers,
		m.BytesDownloaded,
		m.ReconciledRows,
		m.LookupsDegraded,
	)
	return m
}

func (m *Metrics) IncRequests() {
	if m != nil {
		m.RequestsTotal.Inc()
	}
}

func (m *Metrics) IncFetchError(retryable bool) {
	if m != nil {
		m.FetchErrors.WithLabelValues(fmt.Sprint(retryable)).Inc()
	}
}

func (m *Metrics) IncRetried() {
	if m != nil {
		m.RequestsRetried.Inc()
	}
}

func (m *Metrics) IncDocument(tag string) {
	if m != nil {
		m.DocumentsParsed.WithLabelValues(tag).Inc()
	}
}

func (m *Metrics) IncEmitted(kind string) {
	if m != nil {
		m.RecordsEmitted.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncRejected(kind string) {
	if m != nil {
		m.RecordsRejected.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) AddStored(backend string, n int) {
	if m != nil {
		m.RecordsStored.WithLabelValues(backend).Add(float64(n))
	}
}

func (m *Metrics) AddFieldIssues(n int) {
	if m != nil && n > 0 {
		m.FieldIssues.Add(float64(n))
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}

func (m *Metrics) AddActiveWorkers(delta int) {
	if m != nil {
		m.ActiveWorkers.Add(float64(delta))
	}
}

func (m *Metrics) AddBytes(n int64) {
	if m != nil {
		m.BytesDownloaded.Add(float64(n))
	}
}

func (m *Metrics) SetReconciledRows(n int) {
	if m != nil {
		m.ReconciledRows.Set(float64(n))
	}
}

func (m *Metrics) IncLookupDegraded(name string) {
	if m != nil {
		m.LookupsDegraded.WithLabelValues(name).Inc()
	}
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// StartServer serves metrics on port at path, plus /health.
func (m *Metrics) StartServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.server = &http.Server{Addr: addr, Handler: mux}
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
}

// Close stops the metrics server if it was started.
func (m *Metrics) Close() error {
	if m == nil || m.server == nil {
		return nil
	}
	return m.server.Close()
}
