package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/BaSui01/structstream/jsonrepair"
	"github.com/BaSui01/structstream/types"
)

// ToolCallState 工具调用缓冲区状态，只能 Building → Finalized。
type ToolCallState int

const (
	ToolCallBuilding ToolCallState = iota
	ToolCallFinalized
)

func (s ToolCallState) String() string {
	if s == ToolCallFinalized {
		return "finalized"
	}
	return "building"
}

// ToolCallResult 是终结后的工具调用。Parsed 表示参数文本本身就是合法 JSON；
// 否则 Arguments 为修复后的最佳结果（可能为空）。
type ToolCallResult struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Raw       string          `json:"raw"`
	Parsed    bool            `json:"parsed"`
}

// ToolCallBuffer 跟踪一个进行中的工具调用。
type ToolCallBuffer struct {
	id    string
	name  string
	args  strings.Builder
	state ToolCallState
}

func newToolCallBuffer(id, name string) *ToolCallBuffer {
	return &ToolCallBuffer{id: id, name: name}
}

func (b *ToolCallBuffer) ID() string           { return b.id }
func (b *ToolCallBuffer) Name() string         { return b.name }
func (b *ToolCallBuffer) State() ToolCallState { return b.state }

// Args returns the accumulated argument text. A finalized buffer cannot be read.
func (b *ToolCallBuffer) Args() (string, error) {
	if b.state == ToolCallFinalized {
		return "", finalizedError(b)
	}
	return b.args.String(), nil
}

// Append adds an argument delta.
func (b *ToolCallBuffer) Append(delta string) error {
	if b.state == ToolCallFinalized {
		return finalizedError(b)
	}
	b.args.WriteString(delta)
	return nil
}

func (b *ToolCallBuffer) adoptID(id string) {
	if b.id == "" && b.state == ToolCallBuilding {
		b.id = id
	}
}

// Finalize 执行唯一一次终结转换，并尽力把参数解析为 JSON。
func (b *ToolCallBuffer) Finalize() (ToolCallResult, error) {
	if b.state == ToolCallFinalized {
		return ToolCallResult{}, finalizedError(b)
	}
	b.state = ToolCallFinalized

	raw := b.args.String()
	b.args.Reset()
	res := ToolCallResult{ID: b.id, Name: b.name, Raw: raw}
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
	case json.Valid([]byte(trimmed)):
		res.Arguments = json.RawMessage(trimmed)
		res.Parsed = true
	default:
		if repaired := jsonrepair.Repair(raw); repaired != "" {
			res.Arguments = json.RawMessage(repaired)
		}
	}
	return res, nil
}

func finalizedError(b *ToolCallBuffer) error {
	return types.NewError(types.ErrToolCallFinalized, "tool call "+b.name+" already finalized")
}

// TransitionKind 工具调用状态变化类型
type TransitionKind int

const (
	ToolStarted TransitionKind = iota
	ToolUpdated
	ToolCompleted
)

// ToolTransition 描述一次工具调用状态变化，按发生顺序排列。
type ToolTransition struct {
	Kind   TransitionKind
	ID     string
	Name   string
	Delta  string
	Args   string
	Result ToolCallResult
}
