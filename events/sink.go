package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Sink 接收事件。Dispatch 在数据路径上同步调用，实现不得修改事件或阻塞过久。
type Sink interface {
	Dispatch(ctx context.Context, e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event)

// Dispatch implements Sink.
func (f SinkFunc) Dispatch(ctx context.Context, e Event) { f(ctx, e) }

type nopSink struct{}

func (nopSink) Dispatch(context.Context, Event) {}

// Nop returns a sink that discards every event.
func Nop() Sink { return nopSink{} }

type multiSink []Sink

func (m multiSink) Dispatch(ctx context.Context, e Event) {
	for _, s := range m {
		s.Dispatch(ctx, e)
	}
}

// Multi 按顺序扇出到多个 Sink，nil 会被忽略。
func Multi(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return Nop()
	case 1:
		return out[0]
	}
	return out
}

// Recorder 是线程安全的内存 Sink，主要用于测试与调试回放。
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Dispatch implements Sink.
func (r *Recorder) Dispatch(_ context.Context, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type()
	}
	return out
}

// Count returns how many events of type t were recorded.
func (r *Recorder) Count(t EventType) int {
	n := 0
	for _, typ := range r.Types() {
		if typ == t {
			n++
		}
	}
	return n
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// OfType returns the recorded events of concrete type E.
func OfType[E Event](r *Recorder) []E {
	var out []E
	for _, e := range r.Events() {
		if typed, ok := e.(E); ok {
			out = append(out, typed)
		}
	}
	return out
}

// logSink 把事件写入 zap 日志。
type logSink struct {
	logger *zap.Logger
}

// NewLogSink returns a sink that logs every event. Failures log at Warn,
// finalized responses at Info, everything else at Debug.
func NewLogSink(logger *zap.Logger) Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logSink{logger: logger.With(zap.String("component", "events"))}
}

func (s *logSink) Dispatch(_ context.Context, e Event) {
	meta := e.Meta()
	fields := []zap.Field{
		zap.String("event", string(e.Type())),
		zap.String("request_id", meta.RequestID),
		zap.Int("attempt", meta.Attempt),
	}
	switch ev := e.(type) {
	case PartialGenerationFailed:
		s.logger.Warn("部分值生成失败", append(fields, zap.String("error", ev.Message))...)
	case ResponseGenerationFailed:
		s.logger.Warn("响应生成失败", append(fields, zap.String("error", ev.Message), zap.Bool("terminal", ev.Terminal))...)
	case ResponseFinalized:
		s.logger.Info("响应已完成", append(fields, zap.Int("total_tokens", ev.Usage.Total()))...)
	case ToolCallCompleted:
		s.logger.Debug("tool call completed", append(fields, zap.String("tool", ev.Name), zap.Bool("parsed", ev.Parsed))...)
	case PartialValueGenerated:
		s.logger.Debug("partial value", append(fields, zap.Int("sequence", ev.Sequence))...)
	default:
		s.logger.Debug("pipeline event", fields...)
	}
}
