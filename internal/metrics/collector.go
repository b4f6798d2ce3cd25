package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the bot's Prometheus metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	updatesTotal       *prometheus.CounterVec
	admissionsTotal    *prometheus.CounterVec
	completionsTotal   *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	broadcastTotal     *prometheus.CounterVec
	newUsersTotal      prometheus.Counter
	droppedUpdates     prometheus.Counter
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,

		updatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_updates_total",
				Help: "Telegram updates handled, by kind",
			},
			[]string{"kind"},
		),

		admissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_admissions_total",
				Help: "Admission decisions, by result",
			},
			[]string{"result"},
		),

		completionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_completions_total",
				Help: "Completion service calls, by input kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		completionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bot_completion_duration_seconds",
				Help:    "Time spent waiting for the completion service",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"kind"},
		),

		broadcastTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bot_broadcast_deliveries_total",
				Help: "Broadcast deliveries, by status",
			},
			[]string{"status"},
		),

		newUsersTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "bot_new_users_total",
			Help: "Users recorded for the first time",
		}),

		droppedUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "bot_dropped_updates_total",
			Help: "Updates dropped because the worker queue was full",
		}),
	}
}

// A nil *Collector is valid and records nothing.

func (c *Collector) RecordUpdate(kind string) {
	if c == nil {
		return
	}
	c.updatesTotal.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordAdmission(result string) {
	if c == nil {
		return
	}
	c.admissionsTotal.WithLabelValues(result).Inc()
}

func (c *Collector) RecordCompletion(kind, outcome string, seconds float64) {
	if c == nil {
		return
	}
	c.completionsTotal.WithLabelValues(kind, outcome).Inc()
	c.completionDuration.WithLabelValues(kind).Observe(seconds)
}

func (c *Collector) RecordBroadcast(success, failed int) {
	if c == nil {
		return
	}
	c.broadcastTotal.WithLabelValues("success").Add(float64(success))
	c.broadcastTotal.WithLabelValues("failed").Add(float64(failed))
}

func (c *Collector) RecordNewUser() {
	if c == nil {
		return
	}
	c.newUsersTotal.Inc()
}

func (c *Collector) RecordDroppedUpdate() {
	if c == nil {
		return
	}
	c.droppedUpdates.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
