package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatline"

type moduleMetrics struct {
	registry *prometheus.Registry

	exchangeTotal    *prometheus.CounterVec
	exchangeDuration *prometheus.HistogramVec
	tokensTotal      *prometheus.CounterVec
	skippedChunks    prometheus.Counter

	transcriptLoadDuration prometheus.Histogram
	transcriptSaveDuration prometheus.Histogram
	transcriptMessages     prometheus.Gauge

	sessionResolutions *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			registry: prometheus.NewRegistry(),
			exchangeTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "exchange_total",
					Help:      "Total completion exchanges by provider, mode and status.",
				},
				[]string{"provider", "mode", "status"},
			),
			exchangeDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "exchange_duration_seconds",
					Help:      "Completion exchange duration in seconds by provider and mode.",
					Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
				},
				[]string{"provider", "mode"},
			),
			tokensTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "tokens_total",
					Help:      "Tokens reported by the API by kind (prompt, completion, total).",
				},
				[]string{"kind"},
			),
			skippedChunks: prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "stream_chunks_skipped_total",
					Help:      "Stream chunks skipped because they could not be parsed.",
				},
			),
			transcriptLoadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "transcript_load_duration_seconds",
					Help:      "Transcript load duration in seconds.",
					Buckets:   prometheus.DefBuckets,
				},
			),
			transcriptSaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "transcript_save_duration_seconds",
					Help:      "Transcript save duration in seconds.",
					Buckets:   prometheus.DefBuckets,
				},
			),
			transcriptMessages: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "transcript_messages",
					Help:      "Message count of the transcript touched last.",
				},
			),
			sessionResolutions: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "session_resolutions_total",
					Help:      "Session resolutions by outcome (new, continued, fallback, loaded).",
				},
				[]string{"source"},
			),
		}

		m.registry.MustRegister(
			m.exchangeTotal,
			m.exchangeDuration,
			m.tokensTotal,
			m.skippedChunks,
			m.transcriptLoadDuration,
			m.transcriptSaveDuration,
			m.transcriptMessages,
			m.sessionResolutions,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// Gatherer exposes the module registry
func Gatherer() prometheus.Gatherer {
	return getMetrics().registry
}

// WriteTextfile writes every metric in the text exposition format, suitable
// for the node_exporter textfile collector.
func WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, Gatherer()); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

func RecordExchange(provider, mode string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.exchangeTotal.WithLabelValues(provider, mode, status).Inc()
	m.exchangeDuration.WithLabelValues(provider, mode).Observe(duration.Seconds())
}

func AddTokens(prompt, completion, total int) {
	m := getMetrics()
	m.tokensTotal.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensTotal.WithLabelValues("completion").Add(float64(completion))
	m.tokensTotal.WithLabelValues("total").Add(float64(total))
}

func RecordSkippedChunk() {
	getMetrics().skippedChunks.Inc()
}

func RecordTranscriptLoad(duration time.Duration) {
	getMetrics().transcriptLoadDuration.Observe(duration.Seconds())
}

func RecordTranscriptSave(duration time.Duration, messages int) {
	m := getMetrics()
	m.transcriptSaveDuration.Observe(duration.Seconds())
	m.transcriptMessages.Set(float64(messages))
}

func RecordResolution(source string) {
	getMetrics().sessionResolutions.WithLabelValues(source).Inc()
}
