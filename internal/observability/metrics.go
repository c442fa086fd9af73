package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec

	documentUploadsTotal  *prometheus.CounterVec
	indexPollsTotal       *prometheus.CounterVec
	indexPollAttempts     prometheus.Histogram
	pipelineDuration      *prometheus.HistogramVec
	threadDeletionsTotal  *prometheus.CounterVec
	parseFailuresTotal    *prometheus.CounterVec
	assistantLookupsTotal *prometheus.CounterVec

	uploadRequestsTotal *prometheus.CounterVec
	uploadRejectedTotal *prometheus.CounterVec
	uploadLatency       prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used by the API and the exam pipeline.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testem",
			Name:      "api_requests_total",
			Help:      "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "testem",
			Name:      "api_latency_seconds",
			Help:      "Latency distribution for API requests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testem",
			Name:      "api_errors_total",
			Help:      "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		documentUploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testem",
			Subsystem: "pipeline",
			Name:      "document_uploads_total",
			Help:      "Document uploads to the AI service by outcome.",
		}, []string{"outcome"})

		indexPollsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testem",
			Subsystem: "pipeline",
			Name:      "index_polls_total",
			Help:      "Settled indexing polls by outcome.",
		}, []string{"outcome"})

		indexPollAttempts = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "testem",
			Subsystem: "pipeline",
			Name:      "index_poll_attempts",
			Help:      "Status queries issued per document before settling.",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
		})

		pipelineDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "testem",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of exam generation and grading runs.",
			Buckets:   []float64{1, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"operation", "outcome"})

		threadDeletionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testem",
			Subsystem: "pipeline",
			Name:      "thread_deletions_total",
			Help:      "Thread deletions by outcome.",
		}, []string{"outcome"})

		parseFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testem",
			Subsystem: "pipeline",
			Name:      "parse_failures_total",
			Help:      "Malformed response lines by parser.",
		}, []string{"parser"})

		assistantLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testem",
			Name:      "assistant_lookups_total",
			Help:      "Assistant id lookups by cache result.",
		}, []string{"result"})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testem",
			Name:      "document_uploads_total",
			Help:      "Study documents stored by detected MIME type.",
		}, []string{"type"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "testem",
			Name:      "document_uploads_rejected_total",
			Help:      "Rejected study document uploads by reason.",
		}, []string{"reason"})

		uploadLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "testem",
			Name:      "document_upload_seconds",
			Help:      "Latency of study document uploads.",
			Buckets:   prometheus.DefBuckets,
		})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			documentUploadsTotal, indexPollsTotal, indexPollAttempts, pipelineDuration,
			threadDeletionsTotal, parseFailuresTotal, assistantLookupsTotal,
			uploadRequestsTotal, uploadRejectedTotal, uploadLatency,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// DocumentUploads exposes the upload outcome counter.
func DocumentUploads() *prometheus.CounterVec {
	RegisterMetrics()
	return documentUploadsTotal
}

// IndexPolls exposes the settled poll outcome counter.
func IndexPolls() *prometheus.CounterVec {
	RegisterMetrics()
	return indexPollsTotal
}

// IndexPollAttempts exposes the attempts-per-document histogram.
func IndexPollAttempts() prometheus.Histogram {
	RegisterMetrics()
	return indexPollAttempts
}

// PipelineDuration exposes the run duration histogram.
func PipelineDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return pipelineDuration
}

// ThreadDeletions exposes the thread deletion counter.
func ThreadDeletions() *prometheus.CounterVec {
	RegisterMetrics()
	return threadDeletionsTotal
}

// ParseFailures exposes the malformed line counter.
func ParseFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return parseFailuresTotal
}

// AssistantLookups exposes the assistant cache counter.
func AssistantLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return assistantLookupsTotal
}

// UploadRequests exposes the stored document counter.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

// UploadRejected exposes the rejected upload counter.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency exposes the upload latency histogram.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatency
}
