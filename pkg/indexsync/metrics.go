package indexsync

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsPrefix = "search_indices_sync_"

type Metrics struct {
	Documents *prometheus.CounterVec
	Batches   *prometheus.CounterVec
	// ConsumerErrors counts errors reported by the kafka consumer group
	// outside of message handling, such as failed offset commits.
	ConsumerErrors prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Documents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricsPrefix + "documents_total",
				Help: "Documents sent to the cluster, by operation and outcome.",
			}, []string{
				"op", "status",
			}),
		Batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricsPrefix + "batches_total",
				Help: "Bulk requests sent to the cluster, by outcome.",
			}, []string{
				"status",
			}),
		ConsumerErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricsPrefix + "consumer_errors_total",
				Help: "Errors reported by the kafka consumer group.",
			}),
	}
}

func (m *Metrics) Register(registerer prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Documents, m.Batches, m.ConsumerErrors} {
		if err := registerer.Register(c); err != nil {
			return err
		}
	}
	return nil
}
