package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests           *prometheus.CounterVec
	CounterNotesCreated       prometheus.Counter
	CounterNotesUpdated       prometheus.Counter
	CounterNotesDeleted       prometheus.Counter
	CounterLoadFallbacks      *prometheus.CounterVec
	CounterStorageErrors      *prometheus.CounterVec
	CounterBackups            prometheus.Counter
	CounterHandleRequestPanic prometheus.Counter
	CounterRateLimited        prometheus.Counter

	// gauges
	GaugeNotes      prometheus.Gauge
	GaugeRequests   prometheus.Gauge
	GaugeLifeSignal prometheus.Gauge

	// histograms
	HistogramRequestDuration *prometheus.HistogramVec
	HistogramStoreDuration   *prometheus.HistogramVec
}

func NewTestManager() *Manager {
	return NewManager("notesbox", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("notesbox", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterNotesCreated := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "notes_created",
		Help:      "The total number of created notes",
	})
	counterNotesUpdated := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "notes_updated",
		Help:      "The total number of edited notes",
	})
	counterNotesDeleted := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "notes_deleted",
		Help:      "The total number of deleted notes",
	})
	counterLoadFallbacks := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "notes_load_fallbacks",
		Help:      "Loads that degraded to an empty collection, by reason",
	}, []string{"reason"})
	counterStorageErrors := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "storage_errors",
		Help:      "Storage medium failures, by operation",
	}, []string{"op"})
	counterBackups := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "notes_backups",
		Help:      "The total number of created notes backups",
	})
	counterHandleRequestPanic := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "handle_request_panic",
		Help:      "The total number of serve request panics",
	})
	counterRateLimited := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "rate_limited_requests",
		Help:      "The total number of rate limited requests",
	})

	gaugeNotes := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "notes",
		Help:      "Number of notes in the last loaded or saved collection",
	})
	gaugeRequests := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "current_requests",
		Help:      "Current number of requests served",
	})
	gaugeLifeSignal := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "life_signal",
		Help:      "Shows whether the service is alive",
	})

	histogramRequestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of response time for requests in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"route", "method", "status_code"})
	histogramStoreDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "store_duration_seconds",
		Help:      "Duration of note store load and save calls in seconds",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"op"})

	return &Manager{
		CounterRequests:           counterRequests,
		CounterNotesCreated:       counterNotesCreated,
		CounterNotesUpdated:       counterNotesUpdated,
		CounterNotesDeleted:       counterNotesDeleted,
		CounterLoadFallbacks:      counterLoadFallbacks,
		CounterStorageErrors:      counterStorageErrors,
		CounterBackups:            counterBackups,
		CounterHandleRequestPanic: counterHandleRequestPanic,
		CounterRateLimited:        counterRateLimited,
		GaugeNotes:                gaugeNotes,
		GaugeRequests:             gaugeRequests,
		GaugeLifeSignal:           gaugeLifeSignal,
		HistogramRequestDuration:  histogramRequestDuration,
		HistogramStoreDuration:    histogramStoreDuration,
	}
}
