package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
	D string `json:"-"`
}

func TestCreateSchema(t *testing.T) {
	schema := CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	assert.NotContains(t, props, "D")
	assert.ElementsMatch(t, []string{"a"}, RequiredFields(schema))
}

func TestValidateParameters(t *testing.T) {
	for _, required := range []any{[]any{"x"}, []string{"x"}} {
		schema := map[string]any{
			"type": "object",
			"properties": map[string]any{
				"x": map[string]any{"type": "integer"},
			},
			"required": required,
		}

		assert.NoError(t, ValidateParameters(map[string]any{"x": 5}, schema))
		assert.NoError(t, ValidateParameters(map[string]any{"x": 5.0}, schema))

		err := ValidateParameters(map[string]any{}, schema)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "x", vErr.Field)

		err = ValidateParameters(map[string]any{"x": "not-int"}, schema)
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.Message, "expected type integer")
	}
}

func TestCreateSchema_TypesAndNonStructs(t *testing.T) {
	type args struct {
		Query string   `json:"query"`
		Limit int      `json:"limit,omitempty"`
		Score float64  `json:"score"`
		Tags  []string `json:"tags,omitempty"`
		Exact bool
	}
	schema := CreateSchema(&args{})
	props := schema["properties"].(map[string]any)
	assert.Equal(t, "string", props["query"].(map[string]any)["type"])
	assert.Equal(t, "integer", props["limit"].(map[string]any)["type"])
	assert.Equal(t, "number", props["score"].(map[string]any)["type"])
	assert.Equal(t, "array", props["tags"].(map[string]any)["type"])
	assert.Equal(t, "boolean", props["Exact"].(map[string]any)["type"])
	assert.Equal(t, []string{"query", "score", "Exact"}, RequiredFields(schema))

	empty := CreateSchema(42)
	assert.Equal(t, "object", empty["type"])
	assert.Empty(t, empty["properties"])
	assert.Nil(t, RequiredFields(empty))
}

func TestValidateParameters_Types(t *testing.T) {
	schema := CreateSchema(struct {
		N float64 `json:"n"`
		S string  `json:"s,omitempty"`
	}{})
	assert.NoError(t, ValidateParameters(map[string]any{"n": 3}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"n": 2.5, "s": nil, "extra": true}, schema))

	err := ValidateParameters(map[string]any{"n": 1, "s": 7}, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "s", vErr.Field)
	assert.Equal(t, 7, vErr.Value)
	assert.EqualError(t, err, `invalid argument "s": expected type string, got int`)
}

func TestStringProperties(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"b": map[string]any{"type": "string"},
			"a": map[string]any{"type": "string"},
			"n": map[string]any{"type": "number"},
		},
	}
	assert.Equal(t, []string{"a", "b"}, StringProperties(schema))
	assert.Empty(t, StringProperties(nil))
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("no markers", nil)
	require.NoError(t, err)
	assert.Equal(t, "no markers", out)

	out, err = RenderTemplate("Useful to lookup information about {{.Name}}. {{.Description}}",
		map[string]any{"Name": "golang", "Description": "The Go docs."})
	require.NoError(t, err)
	assert.Equal(t, "Useful to lookup information about golang. The Go docs.", out)

	out, err = RenderTemplate(`{{title .name}} <{{upper .tag}}> {{default "none" .missing}}`,
		map[string]any{"name": "wIKI", "tag": "x"})
	require.NoError(t, err)
	assert.Equal(t, "Wiki <X> none", out)

	out, err = RenderTemplate(`{{join .tools ", "}}`, map[string]any{"tools": []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "a, b", out)

	_, err = RenderTemplate("{{.Broken", nil)
	assert.Error(t, err)
}
