package infra

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// HTTP metrics
	HttpRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	})
	HttpRequestErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "http_request_errors_total",
		Help: "Total number of HTTP request errors",
	})
	ProcessingDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "telemetry_processing_duration_seconds",
		Help:    "Duration of request processing in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// Fan-out fetch metrics
	FetchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_fetches_total",
		Help: "Total number of individual sample retrievals",
	})
	FetchErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_fetch_errors_total",
		Help: "Total number of failed sample retrievals",
	})
	FetchDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "telemetry_fetch_duration_seconds",
		Help:    "Duration of individual sample retrievals in seconds",
		Buckets: prometheus.DefBuckets,
	})
	FetchesInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "telemetry_fetches_in_flight",
		Help: "Number of sample retrievals currently in flight",
	})
	BatchSizeSamples = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "telemetry_batch_size_samples",
		Help:    "Number of samples aggregated per fan-out batch",
		Buckets: prometheus.ExponentialBuckets(1, 2, 11),
	})

	// Database metrics
	DbWritesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_db_writes_total",
		Help: "Total number of sample rows written to the database",
	})
	DbWriteErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_db_write_errors_total",
		Help: "Total number of failed database writes",
	})
	DbWriteDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "telemetry_db_write_duration_seconds",
		Help:    "Duration of database write statements in seconds",
		Buckets: prometheus.DefBuckets,
	})
	DbBatchSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "telemetry_db_batch_size",
		Help: "Size of the last flushed database batch",
	})
	DbBatchWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "telemetry_db_batch_wait_seconds",
		Help:    "Wait time before database batch flush (seconds)",
		Buckets: prometheus.DefBuckets,
	})

	ErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_errors_total",
		Help: "Total number of internal errors",
	})

	registerOnce      sync.Once
	metricsServerOnce sync.Once
)

func init() {
	InitMetrics()
}

// InitMetrics registers all Prometheus collectors used by the application.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HttpRequestsTotal,
			HttpRequestErrorsTotal,
			ProcessingDurationSeconds,
			FetchesTotal,
			FetchErrorsTotal,
			FetchDurationSeconds,
			FetchesInFlight,
			BatchSizeSamples,
			DbWritesTotal,
			DbWriteErrorsTotal,
			DbWriteDurationSeconds,
			DbBatchSize,
			DbBatchWaitSeconds,
			ErrorsTotal,
		)
	})
}

// Handler returns an HTTP handler that exposes the registered Prometheus metrics.
func Handler() http.Handler {
	InitMetrics()
	return promhttp.Handler()
}

// StartMetricsServer exposes Prometheus metrics on the configured port under /metrics.
func StartMetricsServer(logger *Logger, port string) {
	InitMetrics()
	if port == "" {
		return
	}
	metricsServerOnce.Do(func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		addr := fmt.Sprintf(":%s", port)
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				if logger != nil {
					logger.Printf(context.Background(), "metrics server error: %v", err)
				}
			}
		}()
	})
}

// HTTPMiddleware instruments HTTP handlers with request/latency metrics.
func HTTPMiddleware(pathResolver func(*http.Request) string) func(http.Handler) http.Handler {
	InitMetrics()
	if pathResolver == nil {
		pathResolver = func(r *http.Request) string {
			if r == nil {
				return "unknown"
			}
			return r.URL.Path
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r == nil {
				HttpRequestErrorsTotal.Inc()
				http.Error(w, "invalid request", http.StatusBadRequest)
				return
			}

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			defer func() {
				duration := time.Since(start)
				ProcessingDurationSeconds.Observe(duration.Seconds())
				HttpRequestsTotal.Inc()

				if recorder.Status() >= http.StatusBadRequest {
					HttpRequestErrorsTotal.Inc()
				}
			}()

			next.ServeHTTP(recorder, r)
		})
	}
}

// GRPCUnaryInterceptor instruments gRPC unary handlers with request/latency metrics.
func GRPCUnaryInterceptor() grpc.UnaryServerInterceptor {
	InitMetrics()
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		start := time.Now()

		defer func() {
			duration := time.Since(start)
			ProcessingDurationSeconds.Observe(duration.Seconds())
			HttpRequestsTotal.Inc()

			if status.Code(err) != codes.OK {
				HttpRequestErrorsTotal.Inc()
			}
		}()

		return handler(ctx, req)
	}
}

// FetchStarted marks the beginning of one sample retrieval.
func FetchStarted() {
	InitMetrics()
	FetchesTotal.Inc()
	FetchesInFlight.Inc()
}

// FetchFinished marks the end of one sample retrieval.
func FetchFinished(duration time.Duration) {
	InitMetrics()
	if duration < 0 {
		duration = 0
	}
	FetchesInFlight.Dec()
	FetchDurationSeconds.Observe(duration.Seconds())
}

// IncFetchErrors counts one failed sample retrieval.
func IncFetchErrors() {
	InitMetrics()
	FetchErrorsTotal.Inc()
}

// ObserveBatchSize records the number of samples aggregated by one fan-out.
func ObserveBatchSize(n int) {
	InitMetrics()
	if n < 0 {
		n = 0
	}
	BatchSizeSamples.Observe(float64(n))
}

// IncDBWrites counts one successful database write.
func IncDBWrites() {
	InitMetrics()
	DbWritesTotal.Inc()
}

// IncDBWriteErrors counts one failed database write.
func IncDBWriteErrors() {
	InitMetrics()
	DbWriteErrorsTotal.Inc()
}

// ObserveDBWrite records the duration of one database write statement.
func ObserveDBWrite(duration time.Duration) {
	InitMetrics()
	if duration < 0 {
		duration = 0
	}
	DbWriteDurationSeconds.Observe(duration.Seconds())
}

// ObserveDBBatchSize records the size of a flushed database batch.
func ObserveDBBatchSize(n int) {
	InitMetrics()
	if n < 0 {
		n = 0
	}
	DbBatchSize.Set(float64(n))
}

// ObserveDBBatchWait records the time a batch waited before being flushed.
func ObserveDBBatchWait(duration time.Duration) {
	InitMetrics()
	if duration < 0 {
		duration = 0
	}
	DbBatchWaitSeconds.Observe(duration.Seconds())
}

// IncErrors counts one internal error.
func IncErrors() {
	InitMetrics()
	ErrorsTotal.Inc()
}

// statusRecorder captures the response status code for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Status() int {
	return r.status
}
