package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Global telemetry handles, bound to the global providers so a provider
// installed later (InitOTEL) picks them up through delegation.
var (
	// Tracer for distributed tracing
	Tracer = otel.Tracer("github.com/yairfalse/aita")

	// Meter for metrics
	Meter = otel.Meter("github.com/yairfalse/aita")

	// Metrics - following OTEL naming conventions
	ReportLines        metric.Int64Counter
	ParseFailures      metric.Int64Counter
	AccessesClassified metric.Int64Counter
	ProcessesSeen      metric.Int64Counter
	SessionsFrozen     metric.Int64Counter
	IngestDuration     metric.Float64Histogram
)

func init() {
	ReportLines = mustCounter(
		"aita.report.lines",
		"Number of report lines ingested",
		"{line}",
	)
	ParseFailures = mustCounter(
		"aita.report.parse_failures",
		"Number of report lines rejected as unparseable",
		"{line}",
	)
	AccessesClassified = mustCounter(
		"aita.accesses.classified",
		"Number of file accesses added to a classification set",
		"{access}",
	)
	ProcessesSeen = mustCounter(
		"aita.processes.seen",
		"Number of process creations observed",
		"{process}",
	)
	SessionsFrozen = mustCounter(
		"aita.sessions.frozen",
		"Number of aggregation sessions frozen",
		"{session}",
	)

	var err error
	IngestDuration, err = Meter.Float64Histogram(
		"aita.ingest.duration",
		metric.WithDescription("Duration of report ingestion sessions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		panic(err)
	}
}

func mustCounter(name, desc, unit string) metric.Int64Counter {
	c, err := Meter.Int64Counter(
		name,
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	)
	if err != nil {
		panic(err)
	}
	return c
}
