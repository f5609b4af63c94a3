// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package storageadapter

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/juju/gridstore/internal/gridfs"
)

const metricsNamespace = "gridstore"

const (
	operationWrite  = "write"
	operationRead   = "read"
	operationRemove = "remove"

	resultSuccess = "success"
	resultFailure = "failure"

	directionIn  = "in"
	directionOut = "out"
)

// Collector is a prometheus.Collector that collects metrics about the
// operations of an Adapter.
type Collector struct {
	operations      *prometheus.CounterVec
	bytes           *prometheus.CounterVec
	connectionState prometheus.Gauge
}

var _ gridfs.Recorder = (*Collector)(nil)

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "operations_total",
				Help:      "The number of completed file operations.",
			}, []string{"operation", "result"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "bytes_total",
				Help:      "The number of file bytes written to and read from the store.",
			}, []string{"direction"},
		),
		connectionState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "connection_state",
				Help:      "The connection state: 0 uninitialized, 1 connecting, 2 ready, 3 failed, 4 stopped.",
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.operations.Describe(ch)
	c.bytes.Describe(ch)
	c.connectionState.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.operations.Collect(ch)
	c.bytes.Collect(ch)
	c.connectionState.Collect(ch)
}

// RecordWrite is part of the gridfs.Recorder interface. Only committed
// bytes are counted.
func (c *Collector) RecordWrite(size int64, err error) {
	c.recordOperation(operationWrite, err)
	if err == nil {
		c.bytes.WithLabelValues(directionIn).Add(float64(size))
	}
}

// RecordRead is part of the gridfs.Recorder interface.
func (c *Collector) RecordRead(size int64, err error) {
	c.recordOperation(operationRead, err)
	c.bytes.WithLabelValues(directionOut).Add(float64(size))
}

// RecordRemove is part of the gridfs.Recorder interface.
func (c *Collector) RecordRemove(err error) {
	c.recordOperation(operationRemove, err)
}

func (c *Collector) recordOperation(operation string, err error) {
	result := resultSuccess
	if err != nil {
		result = resultFailure
	}
	c.operations.WithLabelValues(operation, result).Inc()
}

func (c *Collector) setState(state State) {
	c.connectionState.Set(float64(state))
}
