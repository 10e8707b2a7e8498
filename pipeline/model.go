package pipeline

// Model 是流水线依赖的响应模型能力契约，structured.ResponseModel 实现了它。
type Model[T any] interface {
	// ToolName 返回 tools 模式下期望的工具名，空字符串表示接受任意工具。
	ToolName() string
	Deserialize(data []byte) (T, error)
	Validate(raw []byte, value T) (T, error)
	Transform(value T) (T, error)
}
