// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	frags := testutil.SplitContent(`{"a":1,"b":2}`, 7)
//	testutil.AssertJSONEqual(t, expected, actual)
//
// =============================================================================
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/BaSui01/structstream/events"
	"github.com/BaSui01/structstream/llm"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestContextWithTimeout 返回带自定义超时的测试上下文
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertJSONEqual 断言两个值的 JSON 表示相等
func AssertJSONEqual(t *testing.T, expected, actual any) {
	t.Helper()

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}
	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}

	var e, a any
	_ = json.Unmarshal(expectedJSON, &e)
	_ = json.Unmarshal(actualJSON, &a)
	if !reflect.DeepEqual(e, a) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}

// AssertEventTypes 断言记录的事件（只看 filter 中的类型）按给定顺序出现
func AssertEventTypes(t *testing.T, rec *events.Recorder, expected []events.EventType, filter ...events.EventType) {
	t.Helper()

	keep := make(map[events.EventType]bool, len(filter))
	for _, f := range filter {
		keep[f] = true
	}
	var actual []events.EventType
	for _, typ := range rec.Types() {
		if len(keep) == 0 || keep[typ] {
			actual = append(actual, typ)
		}
	}
	if !reflect.DeepEqual(expected, actual) {
		t.Errorf("event order mismatch:\nexpected: %v\nactual:   %v", expected, actual)
	}
}

// =============================================================================
// 📦 数据辅助
// =============================================================================

// MustJSON 将值序列化为 JSON 字符串，失败时 panic
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// MustParseJSON 解析 JSON 字符串，失败时 panic
func MustParseJSON[T any](s string) T {
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		panic(err)
	}
	return v
}

// =============================================================================
// 🌊 流式辅助
// =============================================================================

// splitAt 在给定的字节偏移处切分文档，忽略越界与重复的偏移。
func splitAt(doc string, cuts []int) []string {
	sorted := append([]int(nil), cuts...)
	sort.Ints(sorted)
	var parts []string
	prev := 0
	for _, c := range sorted {
		if c <= prev || c >= len(doc) {
			continue
		}
		parts = append(parts, doc[prev:c])
		prev = c
	}
	return append(parts, doc[prev:])
}

// SplitContent 把文档切分为内容片段
func SplitContent(doc string, cuts ...int) []llm.Fragment {
	parts := splitAt(doc, cuts)
	out := make([]llm.Fragment, len(parts))
	for i, p := range parts {
		out[i] = llm.ContentFragment(p)
	}
	return out
}

// SplitToolArgs 把参数文档切分为同一工具调用的片段，第一个片段携带 id 与名称
func SplitToolArgs(id, name, args string, cuts ...int) []llm.Fragment {
	parts := splitAt(args, cuts)
	out := make([]llm.Fragment, len(parts))
	for i, p := range parts {
		out[i] = llm.Fragment{ToolArgsDelta: p}
	}
	out[0].ToolCallID = id
	out[0].ToolCallName = name
	return out
}

// DrainSource 读取片段源直到 io.EOF 或错误
func DrainSource(ctx context.Context, src llm.FragmentSource) ([]llm.Fragment, error) {
	var out []llm.Fragment
	for {
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, f)
	}
}

// SendChunksToChannel 将块发送到通道
func SendChunksToChannel(chunks []llm.StreamChunk) <-chan llm.StreamChunk {
	ch := make(chan llm.StreamChunk, len(chunks))
	for _, chunk := range chunks {
		ch <- chunk
	}
	close(ch)
	return ch
}
