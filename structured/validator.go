package structured

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonschema"
)

// SchemaValidator validates raw JSON against a compiled schema.
type SchemaValidator interface {
	Validate(data []byte) error
}

// ParseError represents a validation error with field path.
type ParseError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors struct {
	Errors []ParseError `json:"errors"`
}

// Error implements the error interface.
func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed with %d errors: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// Add 追加一个错误。*ParseError 与 *ValidationErrors 保留原路径，其他错误以空路径记录。
func (e *ValidationErrors) Add(err error) {
	if err == nil {
		return
	}
	var pe *ParseError
	var ve *ValidationErrors
	switch {
	case errors.As(err, &ve):
		e.Errors = append(e.Errors, ve.Errors...)
	case errors.As(err, &pe):
		e.Errors = append(e.Errors, *pe)
	default:
		e.Errors = append(e.Errors, ParseError{Message: err.Error()})
	}
}

// HasErrors reports whether any error was recorded.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// CompiledSchema 是经 kaptinlin/jsonschema 编译后的 JSONSchema。
type CompiledSchema struct {
	schema *jsonschema.Schema
}

// CompileSchema compiles s for repeated validation.
func CompileSchema(s *JSONSchema) (*CompiledSchema, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiled, err := jsonschema.NewCompiler().Compile(data)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &CompiledSchema{schema: compiled}, nil
}

// Validate implements SchemaValidator. A failure is returned as *ValidationErrors.
func (c *CompiledSchema) Validate(data []byte) error {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return &ValidationErrors{Errors: []ParseError{{Message: fmt.Sprintf("invalid JSON: %v", err)}}}
	}
	result := c.schema.Validate(instance)
	if result.IsValid() {
		return nil
	}
	return &ValidationErrors{Errors: []ParseError{{Message: result.Error()}}}
}
