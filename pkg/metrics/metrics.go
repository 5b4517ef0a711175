package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Fan-out metrics
	DeliveriesSent    prometheus.Counter
	DeliveriesFailed  prometheus.Counter
	DispatchDuration  prometheus.Histogram
	DispatchAudience  prometheus.Histogram

	// Subscription store metrics
	SubscriptionUpserts prometheus.Counter
	SubscriptionDeletes prometheus.Counter

	// Worker metrics
	WorkerEventsHandled *prometheus.CounterVec
	WorkerEventsFailed  *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		DeliveriesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_deliveries_sent_total",
			Help:      "Total number of successful push deliveries",
		}),
		DeliveriesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_deliveries_failed_total",
			Help:      "Total number of failed push deliveries",
		}),
		DispatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "push_dispatch_duration_seconds",
			Help:      "Time spent fanning out one dispatch",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		DispatchAudience: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "push_dispatch_audience_size",
			Help:      "Number of subscriptions targeted per dispatch",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		}),
		SubscriptionUpserts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_subscription_upserts_total",
			Help:      "Total number of subscription upserts",
		}),
		SubscriptionDeletes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_subscription_deletes_total",
			Help:      "Total number of subscription deletes",
		}),
		WorkerEventsHandled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_events_handled_total",
			Help:      "Worker events handled, by event type",
		}, []string{"event_type"}),
		WorkerEventsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_events_failed_total",
			Help:      "Worker events that ended in a handler error, by event type",
		}, []string{"event_type"}),
	}
}
