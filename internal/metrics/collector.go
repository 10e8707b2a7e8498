package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/structstream/events"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 把流水线事件转换为 Prometheus 指标，本身就是一个 events.Sink。
type Collector struct {
	fragmentsTotal   prometheus.Counter
	partialsTotal    prometheus.Counter
	partialFailures  prometheus.Counter
	partialJSONBytes prometheus.Histogram
	toolCallsTotal   *prometheus.CounterVec
	attemptsTotal    *prometheus.CounterVec
	responsesTotal   *prometheus.CounterVec
	tokensTotal      *prometheus.CounterVec

	logger *zap.Logger
}

var _ events.Sink = (*Collector)(nil)

// NewCollector 创建指标收集器并注册到 reg；reg 为 nil 时使用默认 Registerer。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.fragmentsTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fragments_total",
		Help:      "Total number of fragments pulled from sources",
	})

	c.partialsTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "partial_emissions_total",
		Help:      "Total number of distinct partial values emitted",
	})

	c.partialFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "partial_failures_total",
		Help:      "Total number of repaired snapshots that failed to deserialize",
	})

	c.partialJSONBytes = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "partial_json_bytes",
		Help:      "Size of repaired partial JSON documents in bytes",
		Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
	})

	c.toolCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool call lifecycle transitions",
		},
		[]string{"stage"}, // started, completed, repaired
	)

	c.attemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Attempts by outcome",
		},
		[]string{"outcome"}, // started, succeeded, failed
	)

	c.responsesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Requests by final outcome",
		},
		[]string{"outcome"}, // finalized, failed
	)

	c.tokensTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Tokens reported by finalized responses",
		},
		[]string{"type"}, // input, output, reasoning
	)

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 事件记录
// =============================================================================

// Dispatch implements events.Sink.
func (c *Collector) Dispatch(_ context.Context, e events.Event) {
	switch ev := e.(type) {
	case events.ChunkReceived:
		c.fragmentsTotal.Inc()
	case events.PartialJSONReceived:
		c.partialJSONBytes.Observe(float64(len(ev.JSON)))
	case events.PartialValueGenerated:
		c.partialsTotal.Inc()
	case events.PartialGenerationFailed:
		c.partialFailures.Inc()
	case events.ToolCallStarted:
		c.toolCallsTotal.WithLabelValues("started").Inc()
	case events.ToolCallCompleted:
		c.toolCallsTotal.WithLabelValues("completed").Inc()
		if !ev.Parsed {
			c.toolCallsTotal.WithLabelValues("repaired").Inc()
		}
	case events.AttemptStarted:
		c.attemptsTotal.WithLabelValues("started").Inc()
	case events.ResponseFinalized:
		c.attemptsTotal.WithLabelValues("succeeded").Inc()
		c.responsesTotal.WithLabelValues("finalized").Inc()
		c.tokensTotal.WithLabelValues("input").Add(float64(ev.Usage.InputTokens))
		c.tokensTotal.WithLabelValues("output").Add(float64(ev.Usage.OutputTokens))
		c.tokensTotal.WithLabelValues("reasoning").Add(float64(ev.Usage.ReasoningTokens))
	case events.ResponseGenerationFailed:
		c.attemptsTotal.WithLabelValues("failed").Inc()
		if ev.Terminal {
			c.responsesTotal.WithLabelValues("failed").Inc()
		}
	}
}
