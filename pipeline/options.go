package pipeline

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/structstream/events"
)

// Option 配置 Orchestrator。
type Option func(*options)

type options struct {
	mode        OutputMode
	aggregation AggregationMode
	policy      *RetryPolicy
	sink        events.Sink
	logger      *zap.Logger
	tracer      trace.Tracer
	requestID   string
}

// WithMode selects content or tools extraction.
func WithMode(mode OutputMode) Option {
	return func(o *options) { o.mode = mode }
}

// WithAggregation selects keep-all or latest-only aggregation.
func WithAggregation(mode AggregationMode) Option {
	return func(o *options) { o.aggregation = mode }
}

// WithMaxAttempts sets the attempt limit on the current retry policy.
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		p := *o.policy
		p.MaxAttempts = n
		o.policy = &p
	}
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(p *RetryPolicy) Option {
	return func(o *options) {
		if p != nil {
			cp := *p
			o.policy = &cp
		}
	}
}

// WithSink sets the event sink. Multiple calls fan out to every sink.
func WithSink(s events.Sink) Option {
	return func(o *options) { o.sink = events.Multi(o.sink, s) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracer sets the tracer used for attempt spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithRequestID 固定请求 ID；默认每个 Stream 生成一个 UUID。
func WithRequestID(id string) Option {
	return func(o *options) { o.requestID = id }
}
