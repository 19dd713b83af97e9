// Package metrics exposes the payment-flow Prometheus collectors: webhook
// request outcomes and signature failures per provider, duplicate-delivery
// and completed-payment counters, a revenue total, and the expiry worker's
// downgrade counter. Files declare collectors and enqueue them via register;
// main flushes the queue once with MustRegister.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once       sync.Once
	collectors []prometheus.Collector
)

// register is called by init() in each metrics file to enqueue collectors.
func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// MustRegister registers ALL enqueued collectors with Prometheus exactly once.
func MustRegister() {
	once.Do(func() {
		if len(collectors) > 0 {
			prometheus.MustRegister(collectors...)
		}
	})
}
