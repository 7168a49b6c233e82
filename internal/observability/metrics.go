// Package observability exposes prometheus counters for the pipeline,
// served on the metrics port by the API server binary.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReadingsAppended counts readings merged into daily partitions.
	ReadingsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "atmocast",
		Name:      "readings_appended_total",
		Help:      "Number of sensor readings appended to daily partitions.",
	})

	// MalformedEntries counts queue records dropped at the ingestion
	// boundary.
	MalformedEntries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "atmocast",
		Name:      "malformed_entries_total",
		Help:      "Number of malformed queue records skipped during ingestion.",
	})

	// PipelineRuns counts started end-to-end pipeline runs.
	PipelineRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "atmocast",
		Name:      "pipeline_runs_total",
		Help:      "Number of pipeline runs started.",
	})

	// ProvisioningFailures counts failed or timed-out provisioning waits.
	ProvisioningFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "atmocast",
		Name:      "provisioning_failures_total",
		Help:      "Number of provisioning operations that failed or timed out.",
	})

	// ForecastSlots counts successfully predicted forecast slots.
	ForecastSlots = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "atmocast",
		Name:      "forecast_slots_total",
		Help:      "Number of forecast slots predicted.",
	})
)
