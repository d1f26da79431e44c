package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accel_operations_total",
		Help: "The total number of dispatched operations by outcome",
	}, []string{"subsystem", "operation", "status"})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "accel_operation_duration_ms",
		Help:    "Duration of dispatched operations in milliseconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 15), // 1ms to ~32s
	}, []string{"subsystem", "operation"})

	// Buffer lifecycle. Allocations and releases must match once every
	// operation has returned.
	BufferAllocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accel_buffer_allocations_total",
		Help: "Total number of device buffers allocated",
	}, []string{"backend"})

	BufferReleases = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accel_buffer_releases_total",
		Help: "Total number of device buffers released",
	}, []string{"backend"})

	ProgramBuildFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accel_program_build_failures_total",
		Help: "Total number of kernel programs that failed to build",
	}, []string{"backend"})

	DevicesFound = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "accel_devices_found",
		Help: "Number of compute devices enumerated by the last session",
	}, []string{"backend"})
)

// WriteTextfile writes every registered collector to path in the text
// exposition format, for pickup by a node_exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
