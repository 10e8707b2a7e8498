package pipeline

import (
	"context"
	"time"

	"github.com/BaSui01/structstream/events"
)

// dispatchingStream 是纯观察装饰器：为每个 step 同步派发生命周期事件，
// 然后原样转发。不重排、不丢弃、不复制、不修改。
type dispatchingStream[T any] struct {
	inner     stepStream[T]
	sink      events.Sink
	requestID string
	attempt   int
	now       func() time.Time
}

func newDispatchingStream[T any](inner stepStream[T], sink events.Sink, requestID string, attempt int) *dispatchingStream[T] {
	return &dispatchingStream[T]{inner: inner, sink: sink, requestID: requestID, attempt: attempt, now: time.Now}
}

func (d *dispatchingStream[T]) next(ctx context.Context) (step[T], error) {
	s, err := d.inner.next(ctx)
	if err != nil {
		return s, err
	}
	for _, e := range d.derive(s) {
		d.sink.Dispatch(ctx, e)
	}
	return s, nil
}

// derive 按固定顺序推导事件：片段、工具调用变化、部分 JSON、失败诊断、
// 部分值、流结束。
func (d *dispatchingStream[T]) derive(s step[T]) []events.Event {
	env := newEnvelope(d.requestID, d.attempt, d.now)
	var out []events.Event

	if s.hasFragment {
		out = append(out, events.ChunkReceived{Envelope: env, Fragment: s.fragment})
	}
	for _, t := range s.transitions {
		out = append(out, transitionEvent(env, t))
	}
	if s.repaired != "" {
		out = append(out, events.PartialJSONReceived{Envelope: env, JSON: s.repaired})
	}
	if s.partialErr != nil {
		out = append(out, events.PartialGenerationFailed{
			Envelope: env,
			JSON:     s.repaired,
			Message:  s.partialErr.Error(),
			Err:      s.partialErr,
		})
	}
	if s.emitted {
		if p, ok := s.state.LatestPartial(); ok {
			out = append(out, events.PartialValueGenerated{
				Envelope: env,
				Sequence: p.Sequence,
				Hash:     p.Hash,
				JSON:     p.RepairedJSON,
				Value:    p.Value,
			})
		}
	}
	if s.finished {
		out = append(out, events.StreamFinished{
			Envelope:     env,
			FinishReason: s.state.FinishReason(),
			Usage:        s.state.Usage(),
		})
	}
	return out
}

func transitionEvent(env events.Envelope, t ToolTransition) events.Event {
	switch t.Kind {
	case ToolStarted:
		return events.ToolCallStarted{Envelope: env, ID: t.ID, Name: t.Name}
	case ToolUpdated:
		return events.ToolCallUpdated{Envelope: env, ID: t.ID, Name: t.Name, ArgsDelta: t.Delta, Args: t.Args}
	default:
		return events.ToolCallCompleted{
			Envelope:  env,
			ID:        t.Result.ID,
			Name:      t.Result.Name,
			Arguments: t.Result.Arguments,
			Raw:       t.Result.Raw,
			Parsed:    t.Result.Parsed,
		}
	}
}

func newEnvelope(requestID string, attempt int, now func() time.Time) events.Envelope {
	return events.Envelope{RequestID: requestID, Attempt: attempt, At: now()}
}
