package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TradesSaved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_trades_saved_total",
		Help: "Total number of trade save attempts by outcome",
	}, []string{"status"})

	TradesImported = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_trades_imported_total",
		Help: "Total number of CSV rows imported by outcome",
	}, []string{"status"})

	AttachmentUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_attachment_uploads_total",
		Help: "Total number of attachment uploads by outcome",
	}, []string{"status"})

	AttachmentBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "journal_attachment_bytes_total",
		Help: "Total bytes written to object storage",
	})

	SignedURLs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_signed_urls_total",
		Help: "Total number of attachment link resolutions by result",
	}, []string{"result"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "journal_cache_hits_total",
		Help: "Total number of summary cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "journal_cache_misses_total",
		Help: "Total number of summary cache misses",
	})

	DatabaseQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_database_queries_total",
		Help: "Total number of database queries",
	}, []string{"query_type", "status"})

	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "journal_database_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query_type"})

	SummaryRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_summary_requests_total",
		Help: "Total number of summary requests",
	}, []string{"cached"})
)

func RecordCacheHit() {
	CacheHits.Inc()
}

func RecordCacheMiss() {
	CacheMisses.Inc()
}

func RecordDatabaseQuery(queryType, status string, duration float64) {
	DatabaseQueries.WithLabelValues(queryType, status).Inc()
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(duration)
}

func RecordTradeSaved(status string) {
	TradesSaved.WithLabelValues(status).Inc()
}

func RecordTradeImported(status string) {
	TradesImported.WithLabelValues(status).Inc()
}

func RecordAttachmentUpload(status string, size int) {
	AttachmentUploads.WithLabelValues(status).Inc()
	if status == "success" {
		AttachmentBytes.Add(float64(size))
	}
}

func RecordSignedURL(ok bool) {
	result := "unavailable"
	if ok {
		result = "ok"
	}
	SignedURLs.WithLabelValues(result).Inc()
}

func RecordSummaryRequest(cached bool) {
	cachedStr := "false"
	if cached {
		cachedStr = "true"
	}
	SummaryRequests.WithLabelValues(cachedStr).Inc()
}

type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{
		start: time.Now(),
	}
}

func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(time.Since(t.start).Seconds())
}

func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
