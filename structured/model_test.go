package structured

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/structstream/types"
)

type testPerson struct {
	Name  string   `json:"name" jsonschema:"required,minLength=1,description=person name"`
	Age   int      `json:"age" jsonschema:"minimum=0,maximum=150"`
	Role  string   `json:"role,omitempty" jsonschema:"enum=admin|user"`
	Tags  []string `json:"tags,omitempty" jsonschema:"maxItems=3"`
	notes string
}

type treeNode struct {
	Value    int         `json:"value"`
	Children []*treeNode `json:"children,omitempty"`
}

func TestSchemaGenerator_Struct(t *testing.T) {
	m, err := NewResponseModel[testPerson]()
	require.NoError(t, err)

	s := m.Schema()
	assert.Equal(t, TypeObject, s.Type)
	assert.Equal(t, []string{"name"}, s.Required)
	require.Contains(t, s.Properties, "name")
	assert.Equal(t, "person name", s.Properties["name"].Description)
	require.NotNil(t, s.Properties["name"].MinLength)
	assert.Equal(t, 1, *s.Properties["name"].MinLength)
	assert.Equal(t, TypeInteger, s.Properties["age"].Type)
	assert.Equal(t, []any{"admin", "user"}, s.Properties["role"].Enum)
	assert.Equal(t, TypeArray, s.Properties["tags"].Type)
	assert.NotContains(t, s.Properties, "notes")
}

func TestSchemaGenerator_Recursive(t *testing.T) {
	s, err := NewSchemaGenerator().GenerateSchema(reflectType[treeNode]())
	require.NoError(t, err)
	children := s.Properties["children"]
	require.NotNil(t, children)
	assert.Equal(t, TypeArray, children.Type)
	assert.Equal(t, TypeObject, children.Items.Type)
}

func TestSchemaGenerator_Unsupported(t *testing.T) {
	_, err := NewResponseModel[chan int]()
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
}

func TestResponseModel_DefaultName(t *testing.T) {
	m := MustResponseModel[testPerson]()
	assert.Equal(t, "test_person", m.ToolName())

	anon := MustResponseModel[map[string]any]()
	assert.Equal(t, "response", anon.ToolName())

	named := MustResponseModel[testPerson](WithName[testPerson]("extract"), WithDescription[testPerson]("pull a person"))
	assert.Equal(t, "extract", named.ToolName())
	ts := named.ToolSchema()
	assert.Equal(t, "extract", ts.Name)
	assert.Equal(t, "pull a person", ts.Description)
	assert.Contains(t, string(ts.Parameters), `"name"`)
}

func TestResponseModel_AnyTool(t *testing.T) {
	m := MustResponseModel[map[string]any](WithAnyTool[map[string]any]())
	assert.Empty(t, m.ToolName())
	assert.Equal(t, "response", m.ToolSchema().Name)
}

func TestResponseModel_Deserialize(t *testing.T) {
	m := MustResponseModel[testPerson]()

	v, err := m.Deserialize([]byte(`{"name":"ann","age":3}`))
	require.NoError(t, err)
	assert.Equal(t, "ann", v.Name)
	assert.Equal(t, 3, v.Age)

	_, err = m.Deserialize([]byte(`{"name":1}`))
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrDeserialization))
}

func TestResponseModel_Validate(t *testing.T) {
	m := MustResponseModel[testPerson]()

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"name":"ann","age":3}`, false},
		{"missing required", `{"age":3}`, true},
		{"empty name", `{"name":"","age":3}`, true},
		{"age too high", `{"name":"ann","age":200}`, true},
		{"bad enum", `{"name":"ann","role":"root"}`, true},
		{"too many tags", `{"name":"ann","tags":["a","b","c","d"]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := m.Deserialize([]byte(tt.raw))
			_, err := m.Validate([]byte(tt.raw), v)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, types.IsErrorCode(err, types.ErrValidation))
			var ve *ValidationErrors
			require.True(t, errors.As(err, &ve))
			assert.NotEmpty(t, ve.Errors)
		})
	}
}

func TestResponseModel_CustomValidators(t *testing.T) {
	m := MustResponseModel[testPerson](
		WithValidator(func(p testPerson) error {
			if strings.HasPrefix(p.Name, "x") {
				return &ParseError{Path: "name", Message: "must not start with x"}
			}
			return nil
		}),
		WithValidator(func(p testPerson) error {
			if p.Age%2 == 1 {
				return errors.New("age must be even")
			}
			return nil
		}),
	)

	raw := []byte(`{"name":"xavier","age":3}`)
	v, err := m.Deserialize(raw)
	require.NoError(t, err)
	_, err = m.Validate(raw, v)
	require.Error(t, err)

	var ve *ValidationErrors
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Errors, 2)
	assert.Equal(t, "name", ve.Errors[0].Path)
	assert.Equal(t, "age must be even", ve.Errors[1].Message)
	assert.Contains(t, ve.Error(), "validation failed with 2 errors")
}

func TestResponseModel_Transform(t *testing.T) {
	m := MustResponseModel[testPerson](
		WithTransform(func(p testPerson) (testPerson, error) {
			p.Name = strings.ToUpper(p.Name)
			return p, nil
		}),
		WithTransform(func(p testPerson) (testPerson, error) {
			p.Age++
			return p, nil
		}),
	)
	out, err := m.Transform(testPerson{Name: "ann", Age: 1})
	require.NoError(t, err)
	assert.Equal(t, testPerson{Name: "ANN", Age: 2}, out)

	failing := MustResponseModel[testPerson](WithTransform(func(p testPerson) (testPerson, error) {
		return p, errors.New("boom")
	}))
	_, err = failing.Transform(testPerson{})
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrTransform))
	assert.Contains(t, err.Error(), "boom")
}

func TestResponseModel_ExplicitSchema(t *testing.T) {
	s, err := ParseSchema([]byte(`{"type":"object","properties":{"q":{"type":"string"}},"required":["q"]}`))
	require.NoError(t, err)
	m, err := NewResponseModel[map[string]any](WithSchema[map[string]any](s), WithName[map[string]any]("lookup"))
	require.NoError(t, err)

	raw := []byte(`{"x":1}`)
	v, err := m.Deserialize(raw)
	require.NoError(t, err)
	_, err = m.Validate(raw, v)
	assert.Error(t, err)

	raw = []byte(`{"q":"x"}`)
	v, err = m.Deserialize(raw)
	require.NoError(t, err)
	_, err = m.Validate(raw, v)
	assert.NoError(t, err)
}

func TestValidationErrors_Add(t *testing.T) {
	errs := &ValidationErrors{}
	errs.Add(nil)
	assert.False(t, errs.HasErrors())
	errs.Add(&ValidationErrors{Errors: []ParseError{{Path: "a", Message: "m1"}, {Message: "m2"}}})
	errs.Add(errors.New("plain"))
	require.Len(t, errs.Errors, 3)
	assert.Equal(t, "a: m1", errs.Errors[0].Error())
	assert.Equal(t, "plain", errs.Errors[2].Message)
}
