package pipeline

import (
	"context"
	"errors"
	"io"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/structstream/events"
	"github.com/BaSui01/structstream/llm"
	"github.com/BaSui01/structstream/types"
)

const instrumentationName = "github.com/BaSui01/structstream/pipeline"

// Orchestrator 驱动 attempt 状态机：Attempting → Succeeded | 可重试失败 → Attempting | 终态失败。
// Orchestrator 本身不可变，可在多个 goroutine 间共享；每个 Stream 独占自己的状态。
type Orchestrator[T any] struct {
	model Model[T]
	opts  options
}

// New 创建 Orchestrator。
func New[T any](model Model[T], opts ...Option) (*Orchestrator[T], error) {
	if model == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "response model is required")
	}
	o := options{
		mode:        ModeContent,
		aggregation: LatestOnly,
		policy:      DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.policy.MaxAttempts < 1 {
		return nil, types.NewError(types.ErrInvalidRequest, "max attempts must be at least 1")
	}
	if o.mode != ModeContent && o.mode != ModeTools {
		return nil, types.NewError(types.ErrInvalidRequest, "unknown output mode "+o.mode.String())
	}
	if o.sink == nil {
		o.sink = events.Nop()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(instrumentationName)
	}
	o.logger = o.logger.With(zap.String("component", "pipeline"))
	return &Orchestrator[T]{model: model, opts: o}, nil
}

// Stream 开始一个请求。片段源在第一次 Next 时才获取；ctx 的值用于
// Close 时派发的事件。
func (o *Orchestrator[T]) Stream(ctx context.Context, factory llm.SourceFactory) *Stream[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	requestID := o.opts.requestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return &Stream[T]{
		ctx:       ctx,
		o:         o,
		factory:   factory,
		requestID: requestID,
		logger:    o.opts.logger.With(zap.String("request_id", requestID)),
	}
}

// Run 消费整个流并返回终态值。
func (o *Orchestrator[T]) Run(ctx context.Context, factory llm.SourceFactory) (T, error) {
	s := o.Stream(ctx, factory)
	defer s.Close()
	for {
		_, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return s.Result()
		}
		if err != nil {
			var zero T
			return zero, err
		}
	}
}

// Stream 是单个请求的拉取式快照序列，有限且不可重启。
type Stream[T any] struct {
	ctx       context.Context
	o         *Orchestrator[T]
	factory   llm.SourceFactory
	requestID string
	logger    *zap.Logger

	attempt int
	errors  []AttemptError
	run     *attemptRun[T]
	steps   stepStream[T]
	span    trace.Span
	state   AggregationState[T]

	done   bool
	result T
	err    error
}

// RequestID returns the id carried by every event of this stream.
func (s *Stream[T]) RequestID() string { return s.requestID }

// Attempt returns the current attempt number (1-based, 0 before the first Next).
func (s *Stream[T]) Attempt() int { return s.attempt }

// Next 返回下一个产生了新部分值的快照。成功结束返回 io.EOF，
// 终态失败返回 *AttemptsExhaustedError，上下文取消返回 ctx 的错误。
func (s *Stream[T]) Next(ctx context.Context) (AggregationState[T], error) {
	for {
		if s.done {
			if s.err != nil {
				return s.state, s.err
			}
			return s.state, io.EOF
		}
		if s.steps == nil {
			if err := s.startAttempt(ctx); err != nil {
				s.fail(ctx, err)
				continue
			}
		}

		st, err := s.steps.next(ctx)
		if errors.Is(err, io.EOF) {
			s.finishAttempt(ctx)
			continue
		}
		if err != nil {
			s.fail(ctx, err)
			continue
		}
		s.state = st.state
		if st.emitted {
			return st.state, nil
		}
	}
}

// Result returns the finalized value once Next has returned io.EOF.
func (s *Stream[T]) Result() (T, error) {
	if !s.done {
		var zero T
		return zero, types.NewError(types.ErrInvalidRequest, "stream has not finished")
	}
	return s.result, s.err
}

// Errors returns the errors recorded so far, one per failed attempt.
func (s *Stream[T]) Errors() []AttemptError {
	out := make([]AttemptError, len(s.errors))
	copy(out, s.errors)
	return out
}

// All adapts the stream to a range-over-func iterator. Iteration ends after
// success; a terminal failure is yielded once as the final pair.
func (s *Stream[T]) All(ctx context.Context) iter.Seq2[AggregationState[T], error] {
	return func(yield func(AggregationState[T], error) bool) {
		for {
			state, err := s.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(state, err) || err != nil {
				return
			}
		}
	}
}

// Close 放弃当前 attempt 的片段源。已开始但未结束的流会派发一次终态的
// ResponseGenerationFailed，使用 Stream 创建时 ctx 的值（忽略其取消）。
// 已结束的流调用 Close 无副作用。
func (s *Stream[T]) Close() error {
	if s.done {
		return nil
	}
	started := s.attempt > 0
	s.endAttempt(context.Canceled)
	s.done = true
	s.err = context.Canceled
	if started {
		s.dispatchFailure(context.WithoutCancel(s.ctx), context.Canceled, true)
		s.logger.Debug("流被提前关闭", zap.Int("attempt", s.attempt))
	}
	return nil
}

func (s *Stream[T]) startAttempt(ctx context.Context) error {
	s.attempt++
	opts := s.o.opts

	attemptCtx, span := opts.tracer.Start(ctx, "structstream.attempt",
		trace.WithAttributes(
			attribute.String("structstream.request_id", s.requestID),
			attribute.Int("structstream.attempt", s.attempt),
			attribute.String("structstream.mode", opts.mode.String()),
		))
	s.span = span
	s.state = newAggregationState[T](s.attempt, opts.aggregation)

	opts.sink.Dispatch(ctx, events.AttemptStarted{
		Envelope:    newEnvelope(s.requestID, s.attempt, time.Now),
		MaxAttempts: opts.policy.MaxAttempts,
	})
	s.logger.Debug("开始尝试", zap.Int("attempt", s.attempt), zap.Int("max_attempts", opts.policy.MaxAttempts))

	attemptCtx = types.WithAttempt(types.WithRequestID(attemptCtx, s.requestID), s.attempt)
	if sc := span.SpanContext(); sc.HasTraceID() {
		attemptCtx = types.WithTraceID(attemptCtx, sc.TraceID().String())
	}
	source, err := s.factory(attemptCtx, s.attempt)
	if err != nil {
		if isContextError(err) {
			return err
		}
		if _, ok := types.AsError(err); !ok {
			err = types.NewError(types.ErrSourceUnavailable, "acquire fragment source").WithCause(err).WithRetryable(true)
		}
		return err
	}
	if source == nil {
		return types.NewError(types.ErrSourceUnavailable, "factory returned nil source").WithRetryable(true)
	}
	s.run = newAttemptRun(s.attempt, s.o.model, source, opts.mode, opts.aggregation)
	s.steps = newDispatchingStream[T](s.run, opts.sink, s.requestID, s.attempt)
	return nil
}

func (s *Stream[T]) finishAttempt(ctx context.Context) {
	response, err := s.run.response()
	var value T
	if err == nil {
		value, err = finalize(s.o.model, response)
	} else {
		err = &FinalizeError{Stage: StageExtract, Err: err}
	}
	if err != nil {
		s.fail(ctx, err)
		return
	}

	s.o.opts.sink.Dispatch(ctx, events.ResponseFinalized{
		Envelope: newEnvelope(s.requestID, s.attempt, time.Now),
		Value:    value,
		Usage:    s.state.Usage(),
	})
	s.logger.Info("结构化输出完成",
		zap.Int("attempt", s.attempt),
		zap.Int("emissions", s.state.Emissions()),
		zap.Int("total_tokens", s.state.Usage().Total()),
	)
	s.endAttempt(nil)
	s.result = value
	s.done = true
}

// fail 记录失败并决定重试或进入终态。
func (s *Stream[T]) fail(ctx context.Context, err error) {
	policy := s.o.opts.policy
	s.endAttempt(err)

	if isContextError(err) || ctx.Err() != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		s.dispatchFailure(ctx, err, true)
		s.logger.Debug("请求被取消", zap.Int("attempt", s.attempt), zap.Error(err))
		s.done = true
		s.err = err
		return
	}

	s.errors = append(s.errors, AttemptError{Attempt: s.attempt, Err: err})
	retry := policy.shouldRetry(s.attempt, err)
	s.dispatchFailure(ctx, err, !retry)

	if retry {
		s.logger.Warn("尝试失败，准备重试", zap.Int("attempt", s.attempt), zap.Error(err))
		if policy.OnRetry != nil {
			policy.OnRetry(s.attempt+1, err)
		}
		return
	}

	s.logger.Warn("重试次数耗尽", zap.Int("attempts", s.attempt), zap.Error(err))
	s.done = true
	s.err = &AttemptsExhaustedError{Attempts: s.attempt, Errors: s.Errors()}
}

func (s *Stream[T]) dispatchFailure(ctx context.Context, err error, terminal bool) {
	s.o.opts.sink.Dispatch(ctx, events.ResponseGenerationFailed{
		Envelope: newEnvelope(s.requestID, s.attempt, time.Now),
		Message:  err.Error(),
		Code:     string(types.GetErrorCode(err)),
		Terminal: terminal,
		Err:      err,
	})
}

// endAttempt 丢弃当前 attempt 的全部状态并结束 span。
func (s *Stream[T]) endAttempt(err error) {
	if s.run != nil {
		s.run.close()
	}
	s.run = nil
	s.steps = nil
	if s.span == nil {
		return
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
	s.span = nil
}
