package structured

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// SchemaGenerator 利用反射从 Go 类型生成 JSONSchema。
type SchemaGenerator struct {
	// 正在处理的类型，用于截断递归类型
	visiting map[reflect.Type]bool
}

// NewSchemaGenerator creates a new SchemaGenerator.
func NewSchemaGenerator() *SchemaGenerator {
	return &SchemaGenerator{visiting: make(map[reflect.Type]bool)}
}

// GenerateSchema 从 Go 类型生成 JSONSchema。
//
// 字段名取自 json 标签，约束取自 jsonschema 标签（逗号分隔）：
//   - required
//   - description=...（不能包含逗号）
//   - enum=a|b|c
//   - minimum=0 / maximum=100
//   - minLength=1 / maxLength=100
//   - minItems=1 / maxItems=10
//   - pattern=^[a-z]+$ / format=email
func (g *SchemaGenerator) GenerateSchema(t reflect.Type) (*JSONSchema, error) {
	g.visiting = make(map[reflect.Type]bool)
	return g.generate(t)
}

func (g *SchemaGenerator) generate(t reflect.Type) (*JSONSchema, error) {
	if t == nil {
		return nil, fmt.Errorf("cannot generate schema for nil type")
	}
	if t.Kind() == reflect.Ptr {
		return g.generate(t.Elem())
	}
	if g.visiting[t] {
		return &JSONSchema{Type: TypeObject}, nil
	}

	switch t.Kind() {
	case reflect.String:
		return NewSchema(TypeString), nil
	case reflect.Bool:
		return NewSchema(TypeBoolean), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return NewSchema(TypeInteger), nil
	case reflect.Float32, reflect.Float64:
		return NewSchema(TypeNumber), nil
	case reflect.Slice, reflect.Array:
		items, err := g.generate(t.Elem())
		if err != nil {
			return nil, fmt.Errorf("array element: %w", err)
		}
		return NewArraySchema(items), nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type: %s", t.Key())
		}
		values, err := g.generate(t.Elem())
		if err != nil {
			return nil, fmt.Errorf("map value: %w", err)
		}
		s := NewObjectSchema()
		s.AdditionalProperties = &AdditionalProperties{Allowed: true, Schema: values}
		if len(values.Properties) == 0 && values.Type == "" {
			s.AdditionalProperties.Schema = nil
		}
		return s, nil
	case reflect.Struct:
		return g.generateStruct(t)
	case reflect.Interface:
		return &JSONSchema{}, nil
	default:
		return nil, fmt.Errorf("unsupported type: %s", t.Kind())
	}
}

func (g *SchemaGenerator) generateStruct(t reflect.Type) (*JSONSchema, error) {
	g.visiting[t] = true
	defer delete(g.visiting, t)

	schema := NewObjectSchema()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name := jsonFieldName(field)
		if name == "-" {
			continue
		}
		fieldSchema, err := g.generate(field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		required := applyTag(fieldSchema, field)
		if required {
			schema.Required = append(schema.Required, name)
		}
		schema.Properties[name] = fieldSchema
	}
	return schema, nil
}

func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" {
		return field.Name
	}
	return name
}

// applyTag 把 jsonschema 标签约束写入 schema，返回字段是否必填。
func applyTag(s *JSONSchema, field reflect.StructField) bool {
	tag := field.Tag.Get("jsonschema")
	if tag == "" {
		return false
	}
	required := false
	for _, part := range strings.Split(tag, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch key {
		case "required":
			required = true
		case "description":
			s.Description = value
		case "enum":
			for _, v := range strings.Split(value, "|") {
				s.Enum = append(s.Enum, strings.TrimSpace(v))
			}
		case "pattern":
			s.Pattern = value
		case "format":
			s.Format = StringFormat(value)
		case "minimum":
			s.Minimum = parseFloat(value)
		case "maximum":
			s.Maximum = parseFloat(value)
		case "minLength":
			s.MinLength = parseInt(value)
		case "maxLength":
			s.MaxLength = parseInt(value)
		case "minItems":
			s.MinItems = parseInt(value)
		case "maxItems":
			s.MaxItems = parseInt(value)
		}
	}
	return required
}

func parseFloat(v string) *float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseInt(v string) *int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}
