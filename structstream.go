// Package structstream provides a top-level convenience entry point for
// extracting typed values from a streaming model response.
//
// Usage:
//
//	import "github.com/BaSui01/structstream"
//
//	person, err := structstream.Extract[Person](ctx, factory)
//	stream, err := structstream.Stream[Person](ctx, factory, structstream.WithMode(structstream.ModeTools))
//
// This is a thin wrapper around [pipeline.New] and [structured.NewResponseModel];
// use those packages directly when you need custom validators or transforms.
package structstream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BaSui01/structstream/llm"
	"github.com/BaSui01/structstream/pipeline"
	"github.com/BaSui01/structstream/structured"
)

// Option configures the pipeline created by [Extract] and [Stream].
type Option = pipeline.Option

// Output modes.
const (
	ModeContent = pipeline.ModeContent
	ModeTools   = pipeline.ModeTools
)

// Re-export pipeline options so callers never need to import pipeline/.

// WithMode selects content or tools extraction.
var WithMode = pipeline.WithMode

// WithAggregation selects keep-all or latest-only aggregation.
var WithAggregation = pipeline.WithAggregation

// WithMaxAttempts sets the attempt limit.
var WithMaxAttempts = pipeline.WithMaxAttempts

// WithRetryPolicy replaces the retry policy.
var WithRetryPolicy = pipeline.WithRetryPolicy

// WithSink adds an event sink.
var WithSink = pipeline.WithSink

// WithLogger sets a custom zap logger.
var WithLogger = pipeline.WithLogger

// WithTracer sets the tracer used for attempt spans.
var WithTracer = pipeline.WithTracer

// WithRequestID fixes the request id carried by events.
var WithRequestID = pipeline.WithRequestID

// FromProvider returns a factory that re-issues req on every attempt.
var FromProvider = llm.ProviderFactory

// Stream builds a reflected response model for T and starts a stream.
func Stream[T any](ctx context.Context, factory llm.SourceFactory, opts ...Option) (*pipeline.Stream[T], error) {
	model, err := structured.NewResponseModel[T]()
	if err != nil {
		return nil, err
	}
	orch, err := pipeline.New[T](model, opts...)
	if err != nil {
		return nil, err
	}
	return orch.Stream(ctx, factory), nil
}

// Extract runs the stream to completion and returns the finalized value.
func Extract[T any](ctx context.Context, factory llm.SourceFactory, opts ...Option) (T, error) {
	model, err := structured.NewResponseModel[T]()
	if err != nil {
		var zero T
		return zero, err
	}
	orch, err := pipeline.New[T](model, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return orch.Run(ctx, factory)
}

// PrepareRequest 按输出模式改写请求：tools 模式注册响应模型对应的工具并强制调用；
// content 模式追加一条要求按 Schema 输出 JSON 的系统消息。返回新请求，原请求不变。
func PrepareRequest[T any](model *structured.ResponseModel[T], mode pipeline.OutputMode, req *llm.ChatRequest) (*llm.ChatRequest, error) {
	out := *req
	out.Messages = append([]llm.Message(nil), req.Messages...)
	out.Tools = append([]llm.ToolSchema(nil), req.Tools...)

	if mode == pipeline.ModeTools {
		out.Tools = append(out.Tools, model.ToolSchema())
		out.ToolChoice = model.ToolName()
		return &out, nil
	}

	schema, err := json.Marshal(model.Schema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	out.Messages = append(out.Messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: "Respond with a single JSON document that matches this JSON Schema:\n" + string(schema),
	})
	return &out, nil
}
