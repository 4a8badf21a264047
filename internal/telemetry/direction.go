package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ReadDirection is a measurement option that indicates a read operation.
	ReadDirection = metric.WithAttributeSet(
		attribute.NewSet(
			attribute.String("direction", "read"),
		),
	)

	// WriteDirection is a measurement option that indicates a write operation.
	WriteDirection = metric.WithAttributeSet(
		attribute.NewSet(
			attribute.String("direction", "write"),
		),
	)
)
