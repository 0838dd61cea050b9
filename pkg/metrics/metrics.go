// Package metrics records controller activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives controller events.
type Recorder interface {
	// Snapshot records an applied snapshot and the resulting mirror size.
	Snapshot(collection string, size int)
	// Write records the outcome of a create, update or delete.
	Write(collection, op string, err error)
	// Subscription records a subscription being opened (+1) or closed (-1).
	Subscription(collection string, delta int)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Snapshot(string, int)        {}
func (Nop) Write(string, string, error) {}
func (Nop) Subscription(string, int)    {}

// Prometheus implements Recorder with prometheus collectors.
type Prometheus struct {
	snapshots     *prometheus.CounterVec
	mirrorSize    *prometheus.GaugeVec
	writes        *prometheus.CounterVec
	subscriptions *prometheus.GaugeVec
}

// NewPrometheus creates the collectors and registers them on reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispensa",
			Name:      "snapshots_total",
			Help:      "Snapshots applied to a collection mirror.",
		}, []string{"collection"}),
		mirrorSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dispensa",
			Name:      "mirror_documents",
			Help:      "Documents currently held by a collection mirror.",
		}, []string{"collection"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispensa",
			Name:      "writes_total",
			Help:      "Store writes issued by mutation intents.",
		}, []string{"collection", "op", "result"}),
		subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dispensa",
			Name:      "subscriptions_active",
			Help:      "Open live subscriptions.",
		}, []string{"collection"}),
	}

	for _, c := range []prometheus.Collector{p.snapshots, p.mirrorSize, p.writes, p.subscriptions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) Snapshot(collection string, size int) {
	p.snapshots.WithLabelValues(collection).Inc()
	p.mirrorSize.WithLabelValues(collection).Set(float64(size))
}

func (p *Prometheus) Write(collection, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.writes.WithLabelValues(collection, op, result).Inc()
}

func (p *Prometheus) Subscription(collection string, delta int) {
	p.subscriptions.WithLabelValues(collection).Add(float64(delta))
}
