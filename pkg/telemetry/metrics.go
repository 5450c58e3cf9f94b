package telemetry

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics bundles the instruments the relay and supervisor report into.
// All instruments come from the globally registered meter provider, so if
// Setup was skipped they are no-op and safe to use anyway.
type Metrics struct {
	ClientsActive    metric.Int64UpDownCounter
	FramesRelayed    metric.Int64Counter
	BytesRelayed     metric.Int64Counter
	PipelineRestarts metric.Int64Counter
}

// NewMetrics registers the camstream instruments.
func NewMetrics() *Metrics {
	meter := otel.Meter("camstream")
	m := &Metrics{}
	var err error

	if m.ClientsActive, err = meter.Int64UpDownCounter("camstream.clients.active",
		metric.WithDescription("Number of connected MJPEG stream clients")); err != nil {
		slog.Warn("Failed to create instrument", "name", "camstream.clients.active", "error", err)
	}
	if m.FramesRelayed, err = meter.Int64Counter("camstream.frames.relayed",
		metric.WithDescription("Total JPEG frames written to clients")); err != nil {
		slog.Warn("Failed to create instrument", "name", "camstream.frames.relayed", "error", err)
	}
	if m.BytesRelayed, err = meter.Int64Counter("camstream.bytes.relayed",
		metric.WithDescription("Total frame payload bytes written to clients")); err != nil {
		slog.Warn("Failed to create instrument", "name", "camstream.bytes.relayed", "error", err)
	}
	if m.PipelineRestarts, err = meter.Int64Counter("camstream.pipeline.restarts",
		metric.WithDescription("Times the capture pipeline was relaunched after dying")); err != nil {
		slog.Warn("Failed to create instrument", "name", "camstream.pipeline.restarts", "error", err)
	}
	return m
}
