package pipeline

import (
	"fmt"
	"slices"
	"strings"

	"github.com/BaSui01/structstream/types"
)

// AggregationMode 在请求开始时选定，流中途不变。
type AggregationMode int

const (
	// LatestOnly 只保留最新部分值，适合长流。
	LatestOnly AggregationMode = iota
	// KeepAll 保留全部部分值，适合短流与调试回放。
	KeepAll
)

func (m AggregationMode) String() string {
	if m == KeepAll {
		return "keep_all"
	}
	return "latest_only"
}

// ParseAggregationMode parses "latest_only" or "keep_all".
func ParseAggregationMode(s string) (AggregationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "latest_only", "latest":
		return LatestOnly, nil
	case "keep_all", "all":
		return KeepAll, nil
	}
	return 0, types.NewError(types.ErrInvalidRequest, fmt.Sprintf("unknown aggregation mode %q", s))
}

// PartialResult 是一次新发出的部分值及其序号与累计用量。
type PartialResult[T any] struct {
	RepairedJSON string
	Value        T
	Hash         uint64
	Sequence     int
	UsageSoFar   types.Usage
}

// AggregationState 是单个 attempt 的聚合快照。只能通过 fold 得到新状态，
// 任何快照在交给调用方后都不会再被修改。
type AggregationState[T any] struct {
	attempt      int
	mode         AggregationMode
	latest       PartialResult[T]
	hasLatest    bool
	partials     []PartialResult[T]
	emissions    int
	usage        types.Usage
	finishReason string
	fragments    int
	toolCalls    []ToolCallResult
}

func newAggregationState[T any](attempt int, mode AggregationMode) AggregationState[T] {
	return AggregationState[T]{attempt: attempt, mode: mode}
}

func (s AggregationState[T]) Attempt() int          { return s.attempt }
func (s AggregationState[T]) Mode() AggregationMode { return s.mode }
func (s AggregationState[T]) Usage() types.Usage    { return s.usage }
func (s AggregationState[T]) FinishReason() string  { return s.finishReason }
func (s AggregationState[T]) Fragments() int        { return s.fragments }
func (s AggregationState[T]) Emissions() int        { return s.emissions }

// Latest returns the most recent partial value.
func (s AggregationState[T]) Latest() (T, bool) {
	return s.latest.Value, s.hasLatest
}

// LatestPartial returns the most recent partial with its metadata.
func (s AggregationState[T]) LatestPartial() (PartialResult[T], bool) {
	return s.latest, s.hasLatest
}

// LastHash returns the content hash of the last emitted value.
func (s AggregationState[T]) LastHash() (uint64, bool) {
	return s.latest.Hash, s.hasLatest
}

// Partials returns every emitted partial in KeepAll mode, nil otherwise.
func (s AggregationState[T]) Partials() []PartialResult[T] {
	return slices.Clone(s.partials)
}

// ToolCalls returns completed tool calls in finalize order.
func (s AggregationState[T]) ToolCalls() []ToolCallResult {
	return slices.Clone(s.toolCalls)
}

// foldStep 是 fold 的输入：一个片段带来的用量、结束原因、完成的工具调用，
// 以及可选的新部分值。
type foldStep[T any] struct {
	fragment     bool
	usage        types.Usage
	finishReason string
	completed    []ToolCallResult
	partial      *candidate[T]
}

// fold 返回吸收 step 后的新状态，接收者保持不变。
func (s AggregationState[T]) fold(step foldStep[T]) AggregationState[T] {
	next := s
	if step.fragment {
		next.fragments++
	}
	next.usage = s.usage.Add(step.usage)
	if step.finishReason != "" {
		next.finishReason = step.finishReason
	}
	if len(step.completed) > 0 {
		next.toolCalls = append(slices.Clip(s.toolCalls), step.completed...)
	}
	if step.partial != nil {
		p := PartialResult[T]{
			RepairedJSON: step.partial.json,
			Value:        step.partial.value,
			Hash:         step.partial.hash,
			Sequence:     s.emissions,
			UsageSoFar:   next.usage,
		}
		next.latest = p
		next.hasLatest = true
		next.emissions++
		if s.mode == KeepAll {
			next.partials = append(slices.Clip(s.partials), p)
		}
	}
	return next
}
