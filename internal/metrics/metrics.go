// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics provides Prometheus metrics for dispatch and transports.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/luxfi/msgrpc/errdefs"
)

const namespace = "msgrpc"

// CodeOK labels calls that returned without error.
const CodeOK = "OK"

// Collector holds all Prometheus metrics for a msgrpc process.
type Collector struct {
	// Dispatch metrics
	CallsTotal    *prometheus.CounterVec
	CallDuration  *prometheus.HistogramVec
	CallsInFlight prometheus.Gauge

	// Transport metrics
	ConnectionsTotal  *prometheus.CounterVec
	ConnectionsActive *prometheus.GaugeVec
	FrameErrors       *prometheus.CounterVec
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return newCollector(promauto.With(prometheus.DefaultRegisterer))
}

// NewWithRegistry creates a collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	return newCollector(promauto.With(reg))
}

func newCollector(factory promauto.Factory) *Collector {
	return &Collector{
		CallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_total",
				Help:      "Total number of dispatched calls by result code",
			},
			[]string{"scope", "method", "code"},
		),
		CallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "call_duration_seconds",
				Help:      "Dispatched call duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"scope", "method"},
		),
		CallsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "calls_in_flight",
				Help:      "Number of calls currently being dispatched",
			},
		),
		ConnectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_total",
				Help:      "Total number of accepted connections",
			},
			[]string{"transport"},
		),
		ConnectionsActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "connections_active",
				Help:      "Number of open connections",
			},
			[]string{"transport"},
		),
		FrameErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frame_errors_total",
				Help:      "Total number of undecodable requests",
			},
			[]string{"transport"},
		),
	}
}

// CallStarted marks a call in flight.
func (c *Collector) CallStarted() { c.CallsInFlight.Inc() }

// CallFinished records the outcome of a call started with CallStarted.
func (c *Collector) CallFinished(scope, method string, err error, elapsed time.Duration) {
	c.CallsInFlight.Dec()
	c.CallsTotal.WithLabelValues(scope, method, Code(err)).Inc()
	c.CallDuration.WithLabelValues(scope, method).Observe(elapsed.Seconds())
}

// ConnOpened records a new connection on transport.
func (c *Collector) ConnOpened(transport string) {
	c.ConnectionsTotal.WithLabelValues(transport).Inc()
	c.ConnectionsActive.WithLabelValues(transport).Inc()
}

// ConnClosed records a closed connection on transport.
func (c *Collector) ConnClosed(transport string) {
	c.ConnectionsActive.WithLabelValues(transport).Dec()
}

// FrameError records a request that could not be decoded.
func (c *Collector) FrameError(transport string) {
	c.FrameErrors.WithLabelValues(transport).Inc()
}

// Code returns the label value for a call result.
func Code(err error) string {
	if err == nil {
		return CodeOK
	}
	return string(errdefs.CodeOf(err))
}
