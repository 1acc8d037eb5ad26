package store

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "go-opqueue"

func addDBStatsToSpan(span trace.Span, statement, dbSystem string, entryCount int, duration time.Duration) {
	span.SetAttributes(
		attribute.Int("entryCount", entryCount),
		attribute.String("db.system", dbSystem),
		attribute.String("db.statement", statement),
		attribute.Float64("db.execution_time_ms", float64(duration.Milliseconds())),
	)
}
