// Package biermetrics holds the forwarding-plane Prometheus metrics for
// the gobier daemon.
package biermetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "gobier"
	subsystem = "forwarder"
)

// Label names for forwarding-plane metrics.
const (
	labelBiftID    = "bift_id"
	labelErrorKind = "error_kind"
	labelNextHop   = "next_hop"
)

// -------------------------------------------------------------------------
// Collector — Prometheus forwarding-plane metrics
// -------------------------------------------------------------------------

// Collector holds all gobier Prometheus metrics: ingress/egress packet
// counters, per-error-kind drop counters, and duplication/local-delivery
// counters.
type Collector struct {
	// PacketsReceived counts BIER packets received on the raw IPv6
	// endpoint or synthesized from control envelopes, per BIFT.
	PacketsReceived *prometheus.CounterVec

	// PacketsSent counts BIER packets transmitted to a next hop, per
	// BIFT and next hop.
	PacketsSent *prometheus.CounterVec

	// PacketsDropped counts ingress or egress failures, labeled by the
	// error-taxonomy kind (HeaderParse, EnvelopeParse,
	// BitstringWidth, UnknownBift, MissingEntry, UnsupportedBiftType,
	// IoError).
	PacketsDropped *prometheus.CounterVec

	// DuplicationsEmitted counts (bitstring, next-hop) pairs produced by
	// the forwarding engine, per BIFT.
	DuplicationsEmitted *prometheus.CounterVec

	// LocalDeliveries counts packets decapsulated and handed to the
	// local delivery endpoint, per BIFT.
	LocalDeliveries *prometheus.CounterVec
}

// NewCollector creates a Collector with all metrics registered against
// the provided prometheus.Registerer. If reg is nil,
// prometheus.DefaultRegisterer is used.
//
// All metrics carry the "gobier_forwarder_" prefix (namespace_subsystem)
// to avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.PacketsReceived,
		c.PacketsSent,
		c.PacketsDropped,
		c.DuplicationsEmitted,
		c.LocalDeliveries,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	biftLabels := []string{labelBiftID}
	sentLabels := []string{labelBiftID, labelNextHop}
	droppedLabels := []string{labelErrorKind}

	return &Collector{
		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_received_total",
			Help:      "Total BIER packets received on the raw endpoint or synthesized from control envelopes.",
		}, biftLabels),

		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_sent_total",
			Help:      "Total BIER packets transmitted to a next hop.",
		}, sentLabels),

		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_dropped_total",
			Help:      "Total packets dropped, labeled by error-taxonomy kind.",
		}, droppedLabels),

		DuplicationsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duplications_emitted_total",
			Help:      "Total (bitstring, next-hop) duplications produced by the forwarding engine.",
		}, biftLabels),

		LocalDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "local_deliveries_total",
			Help:      "Total packets decapsulated and handed to the local delivery endpoint.",
		}, biftLabels),
	}
}

// -------------------------------------------------------------------------
// Recording helpers
// -------------------------------------------------------------------------

// IncPacketsReceived increments the received-packet counter for biftID.
func (c *Collector) IncPacketsReceived(biftID string) {
	c.PacketsReceived.WithLabelValues(biftID).Inc()
}

// IncPacketsSent increments the sent-packet counter for biftID and nextHop.
func (c *Collector) IncPacketsSent(biftID, nextHop string) {
	c.PacketsSent.WithLabelValues(biftID, nextHop).Inc()
}

// IncPacketsDropped increments the dropped-packet counter for the given
// error-taxonomy kind.
func (c *Collector) IncPacketsDropped(errorKind string) {
	c.PacketsDropped.WithLabelValues(errorKind).Inc()
}

// IncDuplicationsEmitted increments the duplications-emitted counter for
// biftID.
func (c *Collector) IncDuplicationsEmitted(biftID string) {
	c.DuplicationsEmitted.WithLabelValues(biftID).Inc()
}

// IncLocalDeliveries increments the local-delivery counter for biftID.
func (c *Collector) IncLocalDeliveries(biftID string) {
	c.LocalDeliveries.WithLabelValues(biftID).Inc()
}
