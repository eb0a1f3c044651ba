// Package metrics declares the Prometheus namespace and instruments for the
// sealed block device façade, grounded on distribution's metrics package
// which wraps docker/go-metrics the same way.
package metrics

import "github.com/docker/go-metrics"

// NamespacePrefix is the namespace under which all instruments in this
// module are registered.
const NamespacePrefix = "sealedblock"

// StorageNamespace is the prometheus namespace of façade get/put/flush
// operations.
var StorageNamespace = metrics.NewNamespace(NamespacePrefix, "storage", nil)

var (
	// Gets counts calls to Device.Get, labeled by outcome.
	Gets = StorageNamespace.NewLabeledCounter("gets", "The number of Get calls", "outcome")

	// Puts counts calls to Device.Put, labeled by outcome.
	Puts = StorageNamespace.NewLabeledCounter("puts", "The number of Put calls", "outcome")

	// TamperDetected counts Get calls that failed their leaf digest check.
	TamperDetected = StorageNamespace.NewCounter("tamper_detected_total", "The number of data blocks that failed tamper verification")

	// RootMismatch counts Load calls that failed root verification.
	RootMismatch = StorageNamespace.NewCounter("root_mismatch_total", "The number of loads that failed root verification")

	// FlushDuration observes the wall time spent in sealed.Device.flushMerkle.
	FlushDuration = StorageNamespace.NewTimer("flush_duration_seconds", "The time spent flushing dirty hash blocks and the header")
)

func init() {
	metrics.Register(StorageNamespace)
}
