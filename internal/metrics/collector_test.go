package biermetrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	biermetrics "github.com/dantte-lp/gobier/internal/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := biermetrics.NewCollector(reg)

	if c.PacketsReceived == nil {
		t.Error("PacketsReceived is nil")
	}
	if c.PacketsSent == nil {
		t.Error("PacketsSent is nil")
	}
	if c.PacketsDropped == nil {
		t.Error("PacketsDropped is nil")
	}
	if c.DuplicationsEmitted == nil {
		t.Error("DuplicationsEmitted is nil")
	}
	if c.LocalDeliveries == nil {
		t.Error("LocalDeliveries is nil")
	}

	// Verify all metrics are registered by gathering them.
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	_ = families
}

func TestPacketCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := biermetrics.NewCollector(reg)

	c.IncPacketsReceived("1")
	c.IncPacketsReceived("1")
	c.IncPacketsReceived("1")

	val := counterValue(t, c.PacketsReceived, "1")
	if val != 3 {
		t.Errorf("PacketsReceived = %v, want 3", val)
	}

	c.IncPacketsSent("1", "babe:cafe:1::1")
	c.IncPacketsSent("1", "babe:cafe:1::1")

	val = counterValue(t, c.PacketsSent, "1", "babe:cafe:1::1")
	if val != 2 {
		t.Errorf("PacketsSent = %v, want 2", val)
	}
}

func TestPacketsDroppedByErrorKind(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := biermetrics.NewCollector(reg)

	c.IncPacketsDropped("UnknownBift")
	c.IncPacketsDropped("UnknownBift")
	c.IncPacketsDropped("HeaderParse")

	val := counterValue(t, c.PacketsDropped, "UnknownBift")
	if val != 2 {
		t.Errorf("PacketsDropped(UnknownBift) = %v, want 2", val)
	}

	val = counterValue(t, c.PacketsDropped, "HeaderParse")
	if val != 1 {
		t.Errorf("PacketsDropped(HeaderParse) = %v, want 1", val)
	}
}

func TestDuplicationsAndLocalDeliveries(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := biermetrics.NewCollector(reg)

	c.IncDuplicationsEmitted("1")
	c.IncDuplicationsEmitted("1")
	c.IncDuplicationsEmitted("1")

	val := counterValue(t, c.DuplicationsEmitted, "1")
	if val != 3 {
		t.Errorf("DuplicationsEmitted = %v, want 3", val)
	}

	c.IncLocalDeliveries("1")

	val = counterValue(t, c.LocalDeliveries, "1")
	if val != 1 {
		t.Errorf("LocalDeliveries = %v, want 1", val)
	}
}

// counterValue reads the current value of a CounterVec with the given labels.
func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}
