package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/BaSui01/structstream/events"
)

const instrumentationName = "github.com/BaSui01/structstream/internal/metrics"

// MeterSink 通过 OpenTelemetry Meter 上报与 Collector 相同口径的计数，
// 由 telemetry 包配置的 OTLP 导出器推送。
type MeterSink struct {
	fragments metric.Int64Counter
	partials  metric.Int64Counter
	failures  metric.Int64Counter
	attempts  metric.Int64Counter
	tokens    metric.Int64Counter
	jsonBytes metric.Int64Histogram
}

var _ events.Sink = (*MeterSink)(nil)

// NewMeterSink 创建 MeterSink；meter 为 nil 时使用全局 MeterProvider。
func NewMeterSink(meter metric.Meter) (*MeterSink, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	s := &MeterSink{}
	var err error

	s.fragments, err = meter.Int64Counter("structstream.fragments",
		metric.WithDescription("Fragments pulled from sources"),
		metric.WithUnit("{fragment}"))
	if err != nil {
		return nil, err
	}

	s.partials, err = meter.Int64Counter("structstream.partial.emissions",
		metric.WithDescription("Distinct partial values emitted"),
		metric.WithUnit("{emission}"))
	if err != nil {
		return nil, err
	}

	s.failures, err = meter.Int64Counter("structstream.partial.failures",
		metric.WithDescription("Repaired snapshots that failed to deserialize"),
		metric.WithUnit("{failure}"))
	if err != nil {
		return nil, err
	}

	s.attempts, err = meter.Int64Counter("structstream.attempts",
		metric.WithDescription("Attempts by outcome"),
		metric.WithUnit("{attempt}"))
	if err != nil {
		return nil, err
	}

	s.tokens, err = meter.Int64Counter("structstream.tokens",
		metric.WithDescription("Tokens reported by finalized responses"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	s.jsonBytes, err = meter.Int64Histogram("structstream.partial.json_size",
		metric.WithDescription("Size of repaired partial JSON documents"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(16, 64, 256, 1024, 4096, 16384, 65536))
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Dispatch implements events.Sink.
func (s *MeterSink) Dispatch(ctx context.Context, e events.Event) {
	switch ev := e.(type) {
	case events.ChunkReceived:
		s.fragments.Add(ctx, 1)
	case events.PartialJSONReceived:
		s.jsonBytes.Record(ctx, int64(len(ev.JSON)))
	case events.PartialValueGenerated:
		s.partials.Add(ctx, 1)
	case events.PartialGenerationFailed:
		s.failures.Add(ctx, 1)
	case events.ResponseFinalized:
		s.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "succeeded")))
		s.tokens.Add(ctx, int64(ev.Usage.InputTokens), metric.WithAttributes(attribute.String("type", "input")))
		s.tokens.Add(ctx, int64(ev.Usage.OutputTokens), metric.WithAttributes(attribute.String("type", "output")))
	case events.ResponseGenerationFailed:
		s.attempts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", "failed"),
			attribute.Bool("terminal", ev.Terminal),
		))
	}
}
