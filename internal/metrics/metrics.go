package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	ranges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfslicer",
			Name:      "ranges_total",
			Help:      "Range entries by result (accepted, format_error, range_error)",
		},
		[]string{"result"},
	)

	slices = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pdfslicer",
			Name:      "slices_total",
			Help:      "Slices by result (written, failed)",
		},
		[]string{"result"},
	)

	pagesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pdfslicer",
			Name:      "pages_written_total",
			Help:      "Pages written across all slices",
		},
	)

	writeLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pdfslicer",
			Name:      "slice_write_duration_seconds",
			Help:      "Time to serialize and store one slice",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func init() {
	registry.MustRegister(ranges, slices, pagesWritten, writeLatency)
}

// Registry exposes the collectors, e.g. for tests.
func Registry() *prometheus.Registry { return registry }

// ObserveRange counts one parsed range entry; result is "accepted" or an error kind.
func ObserveRange(result string) { ranges.WithLabelValues(result).Inc() }

// SliceWritten records a stored slice of n pages.
func SliceWritten(pages int, dur time.Duration) {
	slices.WithLabelValues("written").Inc()
	pagesWritten.Add(float64(pages))
	writeLatency.Observe(dur.Seconds())
}

// SliceFailed records a slice that could not be written.
func SliceFailed() { slices.WithLabelValues("failed").Inc() }

// WriteTextfile dumps all metrics in the node-exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, registry)
}
