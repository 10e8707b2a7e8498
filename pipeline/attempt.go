package pipeline

import (
	"context"
	"errors"
	"io"

	"github.com/BaSui01/structstream/jsonrepair"
	"github.com/BaSui01/structstream/llm"
	"github.com/BaSui01/structstream/types"
)

// step 是单个 attempt 内流向下游的一项：一个片段（或源耗尽）经过
// 提取、修复、去重、聚合后的全部结果。
type step[T any] struct {
	fragment    llm.Fragment
	hasFragment bool
	transitions []ToolTransition
	repaired    string
	partialErr  error
	emitted     bool
	finished    bool
	state       AggregationState[T]
}

// stepStream 是拉取式的 step 序列，结束时返回 io.EOF。
type stepStream[T any] interface {
	next(ctx context.Context) (step[T], error)
}

// attemptRun 持有一个 attempt 的全部状态，attempt 结束即丢弃。
type attemptRun[T any] struct {
	model     Model[T]
	source    llm.FragmentSource
	extractor deltaExtractor
	state     AggregationState[T]
	done      bool
}

func newAttemptRun[T any](attempt int, model Model[T], source llm.FragmentSource, mode OutputMode, agg AggregationMode) *attemptRun[T] {
	return &attemptRun[T]{
		model:     model,
		source:    source,
		extractor: newExtractor(mode, model.ToolName()),
		state:     newAggregationState[T](attempt, agg),
	}
}

func (a *attemptRun[T]) next(ctx context.Context) (step[T], error) {
	if a.done {
		return step[T]{}, io.EOF
	}
	f, err := a.source.Next(ctx)
	if errors.Is(err, io.EOF) {
		a.done = true
		return a.finishStep(step[T]{}), nil
	}
	if err != nil {
		if isContextError(err) {
			return step[T]{}, err
		}
		if _, ok := types.AsError(err); ok {
			return step[T]{}, err
		}
		return step[T]{}, types.NewTransportError(err)
	}

	s := step[T]{fragment: f, hasFragment: true}
	ext := a.extractor.extract(f)
	s.transitions = ext.transitions

	fs := foldStep[T]{fragment: true, usage: f.Usage, finishReason: f.FinishReason}
	if ext.changed {
		s.repaired = jsonrepair.Repair(ext.text)
		lastHash, hasHash := a.state.LastHash()
		c, ok, perr := deserializeAndDeduplicate(a.model, s.repaired, lastHash, hasHash)
		s.partialErr = perr
		if ok {
			fs.partial = &c
			s.emitted = true
		}
	}
	fs.completed = completedCalls(s.transitions)
	a.state = a.state.fold(fs)

	if f.IsTerminal() {
		a.done = true
		return a.finishStep(s), nil
	}
	s.state = a.state
	return s, nil
}

// finishStep 终结所有仍在构建的工具调用并标记流结束。
func (a *attemptRun[T]) finishStep(s step[T]) step[T] {
	closing := a.extractor.finish()
	s.transitions = append(s.transitions, closing...)
	a.state = a.state.fold(foldStep[T]{completed: completedCalls(closing)})
	s.finished = true
	s.state = a.state
	return s
}

// response returns the complete response text for the finalizer.
func (a *attemptRun[T]) response() (string, error) {
	return a.extractor.response()
}

// close 放弃片段源。
func (a *attemptRun[T]) close() {
	if c, ok := a.source.(io.Closer); ok {
		_ = c.Close()
	}
}

func completedCalls(transitions []ToolTransition) []ToolCallResult {
	var out []ToolCallResult
	for _, t := range transitions {
		if t.Kind == ToolCompleted {
			out = append(out, t.Result)
		}
	}
	return out
}
