package events

import (
	"encoding/json"
	"time"

	"github.com/BaSui01/structstream/llm"
	"github.com/BaSui01/structstream/types"
)

// EventType 事件类型
type EventType string

const (
	TypeChunkReceived            EventType = "chunk_received"
	TypePartialJSONReceived      EventType = "partial_json_received"
	TypePartialValueGenerated    EventType = "partial_value_generated"
	TypePartialGenerationFailed  EventType = "partial_generation_failed"
	TypeToolCallStarted          EventType = "tool_call_started"
	TypeToolCallUpdated          EventType = "tool_call_updated"
	TypeToolCallCompleted        EventType = "tool_call_completed"
	TypeStreamFinished           EventType = "stream_finished"
	TypeAttemptStarted           EventType = "attempt_started"
	TypeResponseFinalized        EventType = "response_finalized"
	TypeResponseGenerationFailed EventType = "response_generation_failed"
)

// Event 事件接口
type Event interface {
	Type() EventType
	Timestamp() time.Time
	Meta() Envelope
}

// Envelope 是所有事件共有的元数据。
type Envelope struct {
	RequestID string    `json:"request_id"`
	Attempt   int       `json:"attempt"`
	At        time.Time `json:"at"`
}

// Timestamp returns when the event was produced.
func (e Envelope) Timestamp() time.Time { return e.At }

// Meta returns the envelope itself.
func (e Envelope) Meta() Envelope { return e }

// ChunkReceived 每个原始片段到达时触发。
type ChunkReceived struct {
	Envelope
	Fragment llm.Fragment `json:"fragment"`
}

func (ChunkReceived) Type() EventType { return TypeChunkReceived }

// PartialJSONReceived 修复后得到非空 JSON 时触发。
type PartialJSONReceived struct {
	Envelope
	JSON string `json:"json"`
}

func (PartialJSONReceived) Type() EventType { return TypePartialJSONReceived }

// PartialValueGenerated 产生新的（去重后的）部分值时触发。
type PartialValueGenerated struct {
	Envelope
	Sequence int    `json:"sequence"`
	Hash     uint64 `json:"hash"`
	JSON     string `json:"json"`
	Value    any    `json:"value"`
}

func (PartialValueGenerated) Type() EventType { return TypePartialValueGenerated }

// PartialGenerationFailed 部分值反序列化或转换失败，非致命。
type PartialGenerationFailed struct {
	Envelope
	JSON    string `json:"json"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (PartialGenerationFailed) Type() EventType { return TypePartialGenerationFailed }

// ToolCallStarted 新的工具调用缓冲区被打开。
type ToolCallStarted struct {
	Envelope
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

func (ToolCallStarted) Type() EventType { return TypeToolCallStarted }

// ToolCallUpdated 工具调用参数追加了增量。
type ToolCallUpdated struct {
	Envelope
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	ArgsDelta string `json:"args_delta"`
	Args      string `json:"args"`
}

func (ToolCallUpdated) Type() EventType { return TypeToolCallUpdated }

// ToolCallCompleted 工具调用缓冲区被终结。
type ToolCallCompleted struct {
	Envelope
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Raw       string          `json:"raw"`
	Parsed    bool            `json:"parsed"`
}

func (ToolCallCompleted) Type() EventType { return TypeToolCallCompleted }

// StreamFinished 片段源结束（finish 信号或耗尽）。
type StreamFinished struct {
	Envelope
	FinishReason string      `json:"finish_reason,omitempty"`
	Usage        types.Usage `json:"usage"`
}

func (StreamFinished) Type() EventType { return TypeStreamFinished }

// AttemptStarted 新的 attempt 开始。
type AttemptStarted struct {
	Envelope
	MaxAttempts int `json:"max_attempts"`
}

func (AttemptStarted) Type() EventType { return TypeAttemptStarted }

// ResponseFinalized 终态值通过校验。
type ResponseFinalized struct {
	Envelope
	Value any         `json:"value"`
	Usage types.Usage `json:"usage"`
}

func (ResponseFinalized) Type() EventType { return TypeResponseFinalized }

// ResponseGenerationFailed 某次 attempt 失败；Terminal 表示不会再重试。
type ResponseGenerationFailed struct {
	Envelope
	Message  string `json:"error"`
	Code     string `json:"code,omitempty"`
	Terminal bool   `json:"terminal"`
	Err      error  `json:"-"`
}

func (ResponseGenerationFailed) Type() EventType { return TypeResponseGenerationFailed }

// Record 是事件的 JSON 记录形式。
type Record struct {
	Type EventType `json:"type"`
	Envelope
	Data json.RawMessage `json:"data"`
}

// Marshal encodes e as a Record.
func Marshal(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Record{Type: e.Type(), Envelope: e.Meta(), Data: data})
}

// Unmarshal decodes a Record produced by Marshal.
func Unmarshal(data []byte) (Record, error) {
	var r Record
	err := json.Unmarshal(data, &r)
	return r, err
}
