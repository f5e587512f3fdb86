// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics mirrors the router's per-interface statistics onto
// Prometheus gauges, so an operator can scrape the helper process
// directly. The gauges are refreshed only when stats() is served over
// RPC; between such calls they hold the last observed values.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"kitero.dev/kitero/internal/kitrouter"
)

// Collector holds the gauge vectors updated every time stats are
// served. It is safe for concurrent use: its own mutex serializes
// Observe calls, which the RPC stats handler makes after Router.Stats
// has released the router's lock.
type Collector struct {
	mu sync.Mutex

	interfaceBytes   *prometheus.GaugeVec
	interfaceClients *prometheus.GaugeVec
}

// NewCollector creates a Collector with its own prometheus.Registry,
// so tests and multiple helper instances never collide on the global
// default registry.
func NewCollector() (*Collector, *prometheus.Registry) {
	c := &Collector{
		interfaceBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kitero_interface_bytes_total",
			Help: "Cumulative bytes accounted per interface and direction.",
		}, []string{"interface", "direction"}),
		interfaceClients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kitero_interface_clients",
			Help: "Number of clients currently bound to an interface.",
		}, []string{"interface"}),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(c.interfaceBytes, c.interfaceClients)
	return c, reg
}

// Observe updates every gauge from a stats snapshot as returned by
// kitrouter.Router.Stats. It does no I/O, so calling it while holding
// the router's lock does not violate the "observers must not block"
// discipline.
func (c *Collector) Observe(stats map[string]kitrouter.InterfaceStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for iface, s := range stats {
		c.interfaceBytes.WithLabelValues(iface, "up").Set(float64(s.Up))
		c.interfaceBytes.WithLabelValues(iface, "down").Set(float64(s.Down))
		c.interfaceClients.WithLabelValues(iface).Set(float64(s.Clients))
	}
}
