package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/BaSui01/structstream/config"
	"github.com/BaSui01/structstream/llm"
	"github.com/BaSui01/structstream/pipeline"
	"github.com/BaSui01/structstream/structured"
)

// maxLineSize 单行片段的上限，工具参数可能很长。
const maxLineSize = 4 << 20

// fragmentLine 是输入文件中的一行。attempt 缺省为 1。
type fragmentLine struct {
	Attempt int `json:"attempt,omitempty"`
	llm.Fragment
}

// outputLine 是 replay 写出的一行 JSON。
type outputLine struct {
	Event     string                    `json:"event"`
	RequestID string                    `json:"request_id,omitempty"`
	Attempt   int                       `json:"attempt,omitempty"`
	Sequence  int                       `json:"sequence,omitempty"`
	Value     any                       `json:"value,omitempty"`
	ToolCalls []pipeline.ToolCallResult `json:"tool_calls,omitempty"`
	Error     string                    `json:"error,omitempty"`
	Attempts  int                       `json:"attempts,omitempty"`
}

// =============================================================================
// 🔁 replay 命令
// =============================================================================

func runReplay(args []string) error {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	input := fs.String("input", "-", "JSONL fragment file, - for stdin")
	schemaPath := fs.String("schema", "", "JSON Schema file for the response")
	mode := fs.String("mode", "", "Output mode: content or tools")
	tool := fs.String("tool", "", "Tool name used in tools mode (empty accepts any tool)")
	aggregation := fs.String("aggregation", "", "Aggregation: latest_only or keep_all")
	requestID := fs.String("request", "", "Fixed request id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *mode != "" {
		cfg.Pipeline.Mode = *mode
	}
	if *tool != "" {
		cfg.Pipeline.ToolName = *tool
	}
	if *aggregation != "" {
		cfg.Pipeline.Aggregation = *aggregation
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	var schema []byte
	if *schemaPath != "" {
		if schema, err = os.ReadFile(*schemaPath); err != nil {
			return fmt.Errorf("read schema: %w", err)
		}
	}

	in := io.Reader(os.Stdin)
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Metrics.ShutdownTimeout)
		defer cancel()
		if err := rt.Close(shutdownCtx); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	opts := []pipeline.Option{
		pipeline.WithSink(rt.Sink()),
		pipeline.WithLogger(logger),
		pipeline.WithTracer(rt.Tracer()),
	}
	if *requestID != "" {
		opts = append(opts, pipeline.WithRequestID(*requestID))
	}
	return replayStream(ctx, cfg.Pipeline, schema, in, os.Stdout, opts...)
}

// replayStream 读取 in 中的片段，按 attempt 分组回放，并把每个新的部分值与
// 终态结果以 JSON 行写入 out。终态失败时写出 failed 行并返回错误。
func replayStream(ctx context.Context, pc config.PipelineConfig, schema []byte, in io.Reader, out io.Writer, opts ...pipeline.Option) error {
	attempts, err := readFragments(in)
	if err != nil {
		return err
	}

	model, err := buildModel(pc.ToolName, schema)
	if err != nil {
		return err
	}

	mode, err := pipeline.ParseOutputMode(pc.Mode)
	if err != nil {
		return err
	}
	agg, err := pipeline.ParseAggregationMode(pc.Aggregation)
	if err != nil {
		return err
	}

	base := []pipeline.Option{pipeline.WithMode(mode), pipeline.WithAggregation(agg)}
	if pc.MaxAttempts > 0 {
		base = append(base, pipeline.WithMaxAttempts(pc.MaxAttempts))
	}
	orch, err := pipeline.New[map[string]any](model, append(base, opts...)...)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	stream := orch.Stream(ctx, llm.AttemptsFactory(attempts...))
	defer stream.Close()

	for state, err := range stream.All(ctx) {
		if err != nil {
			break
		}
		partial, ok := state.LatestPartial()
		if !ok {
			continue
		}
		line := outputLine{
			Event:    "partial",
			Attempt:  state.Attempt(),
			Sequence: partial.Sequence,
			Value:    partial.Value,
		}
		if mode == pipeline.ModeTools {
			line.ToolCalls = state.ToolCalls()
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}

	result, err := stream.Result()
	if err != nil {
		if encErr := enc.Encode(outputLine{
			Event:     "failed",
			RequestID: stream.RequestID(),
			Error:     err.Error(),
			Attempts:  stream.Attempt(),
		}); encErr != nil {
			return errors.Join(err, encErr)
		}
		return err
	}
	return enc.Encode(outputLine{
		Event:     "result",
		RequestID: stream.RequestID(),
		Value:     result,
		Attempts:  stream.Attempt(),
	})
}

// buildModel 构造无类型的响应模型。schema 为空时接受任意 JSON 对象；
// name 为空时 tools 模式接受任意工具调用。
func buildModel(name string, schema []byte) (*structured.ResponseModel[map[string]any], error) {
	var opts []structured.ModelOption[map[string]any]
	if name != "" {
		opts = append(opts, structured.WithName[map[string]any](name))
	} else {
		opts = append(opts, structured.WithAnyTool[map[string]any]())
	}
	if len(schema) > 0 {
		s, err := structured.ParseSchema(schema)
		if err != nil {
			return nil, fmt.Errorf("parse schema: %w", err)
		}
		opts = append(opts, structured.WithSchema[map[string]any](s))
		if s.Description != "" {
			opts = append(opts, structured.WithDescription[map[string]any](s.Description))
		}
	}
	return structured.NewResponseModel(opts...)
}

// readFragments 解析 JSONL 片段。空行与以 # 开头的行被忽略。
func readFragments(r io.Reader) ([][]llm.Fragment, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var attempts [][]llm.Fragment
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var line fragmentLine
		if err := json.Unmarshal([]byte(text), &line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		attempt := line.Attempt
		if attempt <= 0 {
			attempt = 1
		}
		for len(attempts) < attempt {
			attempts = append(attempts, nil)
		}
		attempts[attempt-1] = append(attempts[attempt-1], line.Fragment)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read fragments: %w", err)
	}
	if len(attempts) == 0 {
		return nil, errors.New("no fragments in input")
	}
	return attempts, nil
}
