package structured

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/BaSui01/structstream/llm"
	"github.com/BaSui01/structstream/types"
)

// Validator 是针对终态值的自定义校验规则。
type Validator[T any] func(value T) error

// Transform 是针对值的转换规则，部分值与终态值都会经过它。
type Transform[T any] func(value T) (T, error)

// ResponseModel 描述目标结构：Schema、期望工具名、校验与转换规则。
// 构造后只读，可被多个并发请求共享。
type ResponseModel[T any] struct {
	name        string
	anyTool     bool
	description string
	schema      *JSONSchema
	validator   SchemaValidator
	validators  []Validator[T]
	transforms  []Transform[T]
}

// ModelOption configures a ResponseModel.
type ModelOption[T any] func(*ResponseModel[T])

// WithName sets the tool name the model expects in tools mode.
func WithName[T any](name string) ModelOption[T] {
	return func(m *ResponseModel[T]) { m.name = name }
}

// WithAnyTool 让 tools 模式接受任意工具调用：ToolName 返回空字符串，
// 名称只用于 ToolSchema。
func WithAnyTool[T any]() ModelOption[T] {
	return func(m *ResponseModel[T]) { m.anyTool = true }
}

// WithDescription sets the tool description.
func WithDescription[T any](desc string) ModelOption[T] {
	return func(m *ResponseModel[T]) { m.description = desc }
}

// WithSchema replaces the reflected schema.
func WithSchema[T any](s *JSONSchema) ModelOption[T] {
	return func(m *ResponseModel[T]) { m.schema = s }
}

// WithValidator appends a custom validation rule.
func WithValidator[T any](v Validator[T]) ModelOption[T] {
	return func(m *ResponseModel[T]) { m.validators = append(m.validators, v) }
}

// WithTransform appends a transform rule. Transforms run in registration order.
func WithTransform[T any](t Transform[T]) ModelOption[T] {
	return func(m *ResponseModel[T]) { m.transforms = append(m.transforms, t) }
}

// NewResponseModel 构造响应模型。未提供 Schema 时从 T 反射生成；未提供名称时
// 由类型名推导（snake_case），匿名类型回退为 "response"。
func NewResponseModel[T any](opts ...ModelOption[T]) (*ResponseModel[T], error) {
	m := &ResponseModel[T]{}
	for _, opt := range opts {
		opt(m)
	}

	t := reflect.TypeFor[T]()
	if m.schema == nil {
		s, err := NewSchemaGenerator().GenerateSchema(t)
		if err != nil {
			return nil, types.NewError(types.ErrInvalidRequest, "generate schema").WithCause(err)
		}
		m.schema = s
	}
	if m.name == "" {
		m.name = defaultName(t)
	}
	if m.schema.Title == "" && m.schema.Type == TypeObject {
		m.schema.Title = m.name
	}

	compiled, err := CompileSchema(m.schema)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "compile schema").WithCause(err)
	}
	m.validator = compiled
	return m, nil
}

// MustResponseModel is like NewResponseModel but panics on error.
func MustResponseModel[T any](opts ...ModelOption[T]) *ResponseModel[T] {
	m, err := NewResponseModel[T](opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// ToolName returns the expected tool name, or "" when any tool is accepted.
func (m *ResponseModel[T]) ToolName() string {
	if m.anyTool {
		return ""
	}
	return m.name
}

// Description returns the tool description.
func (m *ResponseModel[T]) Description() string { return m.description }

// Schema returns the target schema.
func (m *ResponseModel[T]) Schema() *JSONSchema { return m.schema }

// ToolSchema 返回用于 tools 模式请求的工具定义。
func (m *ResponseModel[T]) ToolSchema() llm.ToolSchema {
	params, _ := json.Marshal(m.schema)
	return llm.ToolSchema{Name: m.name, Description: m.description, Parameters: params}
}

// Deserialize decodes data into T.
func (m *ResponseModel[T]) Deserialize(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, types.NewDeserializationError(err)
	}
	return v, nil
}

// Validate 先用编译后的 Schema 校验原始 JSON，再依次执行自定义规则；
// 所有错误汇总到一个 *ValidationErrors 中。
func (m *ResponseModel[T]) Validate(raw []byte, value T) (T, error) {
	errs := &ValidationErrors{}
	if m.validator != nil {
		errs.Add(m.validator.Validate(raw))
	}
	for _, v := range m.validators {
		errs.Add(v(value))
	}
	if errs.HasErrors() {
		return value, types.NewValidationError(errs)
	}
	return value, nil
}

// Transform applies every transform rule in order.
func (m *ResponseModel[T]) Transform(value T) (T, error) {
	var err error
	for i, t := range m.transforms {
		value, err = t(value)
		if err != nil {
			var zero T
			return zero, types.NewTransformError(fmt.Errorf("transform %d: %w", i, err))
		}
	}
	return value, nil
}

func defaultName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" || strings.ContainsAny(name, "[]") {
		return "response"
	}
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
