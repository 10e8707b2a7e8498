// =============================================================================
// 📦 测试数据工厂 - 片段脚本
// =============================================================================
// 提供预定义的片段序列与 StreamChunk，用于流水线测试
// =============================================================================
package fixtures

import (
	"encoding/json"

	"github.com/BaSui01/structstream/llm"
	"github.com/BaSui01/structstream/types"
)

// =============================================================================
// 🎯 内容模式
// =============================================================================

// ContentPair 返回 {"a":1,"b":2} 分两段到达的内容片段
func ContentPair() []llm.Fragment {
	return []llm.Fragment{
		llm.ContentFragment(`{"a":1,`),
		llm.ContentFragment(`"b":2}`),
	}
}

// FencedContent 返回包裹在 markdown 代码块与说明文字中的内容片段
func FencedContent() []llm.Fragment {
	return []llm.Fragment{
		llm.ContentFragment("Here is the result:\n```json\n{\"a\":"),
		llm.ContentFragment("1,\"b\":"),
		llm.ContentFragment("2}\n```\nDone."),
		llm.FinishFragment("stop", DefaultUsage()),
	}
}

// DefaultUsage 返回一个终止片段上常见的用量
func DefaultUsage() types.Usage {
	return types.Usage{InputTokens: 10, OutputTokens: 20}
}

// =============================================================================
// 🔧 工具模式
// =============================================================================

// TwoToolCalls 返回 calc 与 lookup 两个连续工具调用的片段
func TwoToolCalls() []llm.Fragment {
	return []llm.Fragment{
		{ToolCallID: "call_1", ToolCallName: "calc"},
		{ToolArgsDelta: `{"x":1}`},
		{ToolCallID: "call_2", ToolCallName: "lookup"},
		{ToolArgsDelta: `{"q":"x"}`},
		llm.FinishFragment("tool_calls", DefaultUsage()),
	}
}

// InterleavedToolCalls 返回名称顺序为 [A, B, A] 的工具调用片段
func InterleavedToolCalls() []llm.Fragment {
	return []llm.Fragment{
		llm.ToolFragment("", "a", `{"n":`),
		llm.ToolFragment("", "", `1}`),
		llm.ToolFragment("", "b", `{"m":2}`),
		llm.ToolFragment("", "a", `{"n":3}`),
	}
}

// =============================================================================
// 🌊 StreamChunk
// =============================================================================

// ToolCallChunks 返回 OpenAI 风格的工具调用流式块（参数为分段 JSON 字符串）
func ToolCallChunks(id, name string, argParts ...string) []llm.StreamChunk {
	chunks := make([]llm.StreamChunk, 0, len(argParts)+1)
	for i, part := range argParts {
		encoded, _ := json.Marshal(part)
		tc := llm.ToolCall{Arguments: encoded}
		if i == 0 {
			tc.ID, tc.Name = id, name
		}
		chunks = append(chunks, llm.StreamChunk{
			ID:       "chunk",
			Provider: "mock",
			Delta:    llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{tc}},
		})
	}
	return append(chunks, llm.StreamChunk{
		ID:           "chunk",
		Provider:     "mock",
		FinishReason: "tool_calls",
		Usage:        &llm.ChatUsage{PromptTokens: 10, CompletionTokens: 20},
	})
}

// ContentChunks 返回内容流式块
func ContentChunks(parts ...string) []llm.StreamChunk {
	chunks := make([]llm.StreamChunk, 0, len(parts)+1)
	for _, p := range parts {
		chunks = append(chunks, llm.StreamChunk{
			Provider: "mock",
			Delta:    llm.Message{Role: llm.RoleAssistant, Content: p},
		})
	}
	return append(chunks, llm.StreamChunk{
		Provider:     "mock",
		FinishReason: "stop",
		Usage:        &llm.ChatUsage{PromptTokens: 10, CompletionTokens: 20},
	})
}
