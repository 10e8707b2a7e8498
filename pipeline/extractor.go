package pipeline

import (
	"fmt"
	"strings"

	"github.com/BaSui01/structstream/llm"
	"github.com/BaSui01/structstream/types"
)

// OutputMode 决定从片段中读取哪一部分增量。
type OutputMode int

const (
	// ModeContent 读取 ContentDelta。
	ModeContent OutputMode = iota
	// ModeTools 读取工具调用参数增量。
	ModeTools
)

func (m OutputMode) String() string {
	switch m {
	case ModeContent:
		return "content"
	case ModeTools:
		return "tools"
	default:
		return fmt.Sprintf("OutputMode(%d)", int(m))
	}
}

// ParseOutputMode parses "content" or "tools".
func ParseOutputMode(s string) (OutputMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "content":
		return ModeContent, nil
	case "tools", "tool":
		return ModeTools, nil
	}
	return 0, types.NewError(types.ErrInvalidRequest, fmt.Sprintf("unknown output mode %q", s))
}

// extraction 是一次片段提取的结果。text 为当前应送去修复的累积文本。
type extraction struct {
	text        string
	changed     bool
	transitions []ToolTransition
}

// deltaExtractor 是按模式选定的提取策略，每个 attempt 新建一个。
type deltaExtractor interface {
	extract(f llm.Fragment) extraction
	finish() []ToolTransition
	// response 返回交给终结器的完整响应文本。
	response() (string, error)
}

func newExtractor(mode OutputMode, toolName string) deltaExtractor {
	if mode == ModeTools {
		return &toolsExtractor{toolName: toolName}
	}
	return &contentExtractor{}
}

type contentExtractor struct {
	buf strings.Builder
}

func (e *contentExtractor) extract(f llm.Fragment) extraction {
	if f.ContentDelta == "" {
		return extraction{text: e.buf.String()}
	}
	e.buf.WriteString(f.ContentDelta)
	return extraction{text: e.buf.String(), changed: true}
}

func (e *contentExtractor) finish() []ToolTransition { return nil }

func (e *contentExtractor) response() (string, error) {
	return e.buf.String(), nil
}

// toolsExtractor 维护按首次出现排序的工具调用缓冲区，同一时刻最多一个活跃。
type toolsExtractor struct {
	toolName  string
	calls     []*ToolCallBuffer
	active    *ToolCallBuffer
	completed []ToolCallResult
}

func (e *toolsExtractor) extract(f llm.Fragment) extraction {
	var out extraction

	if f.ToolCallName != "" || f.ToolCallID != "" {
		if e.switches(f) {
			name := f.ToolCallName
			if name == "" {
				name = e.toolName
				if e.active != nil {
					name = e.active.Name()
				}
			}
			out.transitions = append(out.transitions, e.closeActive()...)
			out.transitions = append(out.transitions, e.open(f.ToolCallID, name))
		} else if f.ToolCallID != "" {
			e.active.adoptID(f.ToolCallID)
		}
	}

	if f.ToolArgsDelta != "" {
		if e.active == nil {
			out.transitions = append(out.transitions, e.open(f.ToolCallID, e.toolName))
		}
		_ = e.active.Append(f.ToolArgsDelta)
		args, _ := e.active.Args()
		out.transitions = append(out.transitions, ToolTransition{
			Kind:  ToolUpdated,
			ID:    e.active.ID(),
			Name:  e.active.Name(),
			Delta: f.ToolArgsDelta,
			Args:  args,
		})
		out.changed = e.feeds(e.active)
	}

	if e.active != nil && e.feeds(e.active) {
		out.text, _ = e.active.Args()
	}
	return out
}

// switches 判断片段是否开启一个新的工具调用。
func (e *toolsExtractor) switches(f llm.Fragment) bool {
	if e.active == nil {
		return true
	}
	if f.ToolCallName != "" && f.ToolCallName != e.active.Name() {
		return true
	}
	return f.ToolCallID != "" && e.active.ID() != "" && f.ToolCallID != e.active.ID()
}

// feeds 报告该缓冲区是否为部分值提供文本。
func (e *toolsExtractor) feeds(b *ToolCallBuffer) bool {
	return e.toolName == "" || b.Name() == e.toolName
}

func (e *toolsExtractor) open(id, name string) ToolTransition {
	b := newToolCallBuffer(id, name)
	e.calls = append(e.calls, b)
	e.active = b
	return ToolTransition{Kind: ToolStarted, ID: id, Name: name}
}

func (e *toolsExtractor) closeActive() []ToolTransition {
	if e.active == nil {
		return nil
	}
	b := e.active
	e.active = nil
	res, err := b.Finalize()
	if err != nil {
		return nil
	}
	e.completed = append(e.completed, res)
	return []ToolTransition{{Kind: ToolCompleted, ID: res.ID, Name: res.Name, Args: res.Raw, Result: res}}
}

func (e *toolsExtractor) finish() []ToolTransition {
	return e.closeActive()
}

func (e *toolsExtractor) response() (string, error) {
	for _, c := range e.completed {
		if e.toolName == "" || c.Name == e.toolName {
			return c.Raw, nil
		}
	}
	msg := "no tool call in response"
	if e.toolName != "" {
		msg = fmt.Sprintf("no tool call named %q in response", e.toolName)
	}
	return "", types.NewError(types.ErrNoToolCall, msg).WithRetryable(true)
}
