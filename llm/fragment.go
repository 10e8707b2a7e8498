package llm

import "github.com/BaSui01/structstream/types"

// Fragment 是一次流式步骤的原始增量，不可变。
type Fragment struct {
	ContentDelta  string      `json:"content_delta,omitempty"`
	ToolCallID    string      `json:"tool_call_id,omitempty"`
	ToolCallName  string      `json:"tool_call_name,omitempty"`
	ToolArgsDelta string      `json:"tool_args_delta,omitempty"`
	FinishReason  string      `json:"finish_reason,omitempty"`
	Usage         types.Usage `json:"usage,omitempty"`
}

// IsTerminal reports whether the fragment carries a finish signal.
func (f Fragment) IsTerminal() bool {
	return f.FinishReason != ""
}

// HasToolSignal reports whether the fragment carries any tool call data.
func (f Fragment) HasToolSignal() bool {
	return f.ToolCallID != "" || f.ToolCallName != "" || f.ToolArgsDelta != ""
}

// ContentFragment is a shorthand for a content-only fragment.
func ContentFragment(delta string) Fragment {
	return Fragment{ContentDelta: delta}
}

// ToolFragment is a shorthand for a tool call fragment.
func ToolFragment(id, name, argsDelta string) Fragment {
	return Fragment{ToolCallID: id, ToolCallName: name, ToolArgsDelta: argsDelta}
}

// FinishFragment is a shorthand for a terminal fragment.
func FinishFragment(reason string, usage types.Usage) Fragment {
	return Fragment{FinishReason: reason, Usage: usage}
}
