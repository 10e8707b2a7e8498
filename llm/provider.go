package llm

import (
	"context"
	"encoding/json"

	"github.com/BaSui01/structstream/types"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // 工具返回时标识对应调用
}

type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

type ChatRequest struct {
	TraceID     string            `json:"trace_id"`
	Model       string            `json:"model"`
	Messages    []Message         `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float32           `json:"temperature,omitempty"`
	Tools       []ToolSchema      `json:"tools,omitempty"`
	ToolChoice  string            `json:"tool_choice,omitempty"` // auto/none/<tool name>
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	CacheWriteTokens int `json:"cache_write_tokens,omitempty"`
	CacheReadTokens  int `json:"cache_read_tokens,omitempty"`
	ReasoningTokens  int `json:"reasoning_tokens,omitempty"`
}

// ToUsage converts provider usage to the pipeline usage record.
func (u ChatUsage) ToUsage() types.Usage {
	return types.Usage{
		InputTokens:      u.PromptTokens,
		OutputTokens:     u.CompletionTokens,
		CacheWriteTokens: u.CacheWriteTokens,
		CacheReadTokens:  u.CacheReadTokens,
		ReasoningTokens:  u.ReasoningTokens,
	}
}

type StreamChunk struct {
	ID           string       `json:"id,omitempty"`
	Provider     string       `json:"provider,omitempty"`
	Model        string       `json:"model,omitempty"`
	Index        int          `json:"index,omitempty"`
	Delta        Message      `json:"delta"`
	FinishReason string       `json:"finish_reason,omitempty"`
	Usage        *ChatUsage   `json:"usage,omitempty"` // 最终 chunk 可带 usage
	Err          *types.Error `json:"error,omitempty"`
}

// Fragments 把一个 StreamChunk 拆成流水线片段。一个块可能带多个工具调用增量，
// 此时每个工具调用一个片段；结束信号与用量挂在最后一个片段上。
func (c StreamChunk) Fragments() []Fragment {
	var out []Fragment
	if c.Delta.Content != "" || len(c.Delta.ToolCalls) == 0 {
		out = append(out, Fragment{ContentDelta: c.Delta.Content})
	}
	for _, tc := range c.Delta.ToolCalls {
		out = append(out, Fragment{
			ToolCallID:    tc.ID,
			ToolCallName:  tc.Name,
			ToolArgsDelta: argumentsText(tc.Arguments),
		})
	}
	last := &out[len(out)-1]
	last.FinishReason = c.FinishReason
	if c.Usage != nil {
		last.Usage = c.Usage.ToUsage()
	}
	return out
}

// argumentsText 兼容两种参数编码：OpenAI 把分段 JSON 作为字符串字段下发，
// 其他 Provider 直接下发原始字节。
func argumentsText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Provider 是流式推理传输的最小接口。具体 HTTP 适配由外部实现。
type Provider interface {
	// Stream 发起流式聊天请求，返回增量响应通道
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)

	// Name 返回 Provider 的唯一标识
	Name() string
}

// ProviderFactory 返回一个 SourceFactory：每次 attempt 重新调用 Provider.Stream，
// 并以可取消的 ChunkSource 包装返回的通道。
func ProviderFactory(p Provider, req *ChatRequest) SourceFactory {
	return func(ctx context.Context, attempt int) (FragmentSource, error) {
		streamCtx, cancel := context.WithCancel(ctx)
		ch, err := p.Stream(streamCtx, req)
		if err != nil {
			cancel()
			return nil, types.NewError(types.ErrSourceUnavailable, "provider stream failed").
				WithCause(err).
				WithProvider(p.Name()).
				WithRetryable(true)
		}
		return NewChunkSource(ch, cancel), nil
	}
}
