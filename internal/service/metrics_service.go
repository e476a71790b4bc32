package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface, the model gateway, and the extraction pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	modelDuration   *prometheus.HistogramVec
	modelCalls      *prometheus.CounterVec
	modelTokens     *prometheus.CounterVec
	extractionRuns  *prometheus.CounterVec
	plansGenerated  prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	modelDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "model_call_duration_seconds",
		Help:    "Duration of model gateway calls",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
	}, []string{"event"})

	modelCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "model_calls_total",
		Help: "Total model gateway calls",
	}, []string{"event", "outcome"})

	modelTokens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "model_tokens_total",
		Help: "Total tokens exchanged with the model gateway",
	}, []string{"event", "direction"})

	extractionRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "topic_extraction_runs_total",
		Help: "Total topic extraction runs by final status",
	}, []string{"status"})

	plansGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "study_plans_generated_total",
		Help: "Total study plan versions persisted",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, modelDuration, modelCalls, modelTokens, extractionRuns, plansGenerated, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		modelDuration:   modelDuration,
		modelCalls:      modelCalls,
		modelTokens:     modelTokens,
		extractionRuns:  extractionRuns,
		plansGenerated:  plansGenerated,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveModelCall records latency and token counts per gateway call.
func (m *MetricsService) ObserveModelCall(event string, duration time.Duration, promptTokens, completionTokens int, success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.modelDuration.WithLabelValues(event).Observe(duration.Seconds())
	m.modelCalls.WithLabelValues(event, outcome).Inc()
	if promptTokens > 0 {
		m.modelTokens.WithLabelValues(event, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.modelTokens.WithLabelValues(event, "completion").Add(float64(completionTokens))
	}
}

// RecordExtraction counts a finished extraction run.
func (m *MetricsService) RecordExtraction(status string) {
	if m == nil {
		return
	}
	m.extractionRuns.WithLabelValues(status).Inc()
}

// RecordPlanGenerated counts a persisted plan version.
func (m *MetricsService) RecordPlanGenerated() {
	if m == nil {
		return
	}
	m.plansGenerated.Inc()
}
