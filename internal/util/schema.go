package util

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ValidationError reports an argument that does not match a tool schema.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Message)
}

// CreateSchema derives an object schema from the exported fields of a struct.
// Property names follow the json tag and the description tag becomes the
// property description. Fields that are neither pointers nor omitempty are
// required.
func CreateSchema(v any) map[string]any {
	props := map[string]any{}
	schema := map[string]any{"type": "object", "properties": props}

	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return schema
	}

	var required []string
	for f := range structFields(t) {
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		prop := map[string]any{"type": jsonType(f.Type)}
		if d := f.Tag.Get("description"); d != "" {
			prop["description"] = d
		}
		props[name] = prop
		if f.Type.Kind() != reflect.Pointer && !strings.Contains(","+opts+",", ",omitempty,") {
			required = append(required, name)
		}
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func structFields(t reflect.Type) func(yield func(reflect.StructField) bool) {
	return func(yield func(reflect.StructField) bool) {
		for i := range t.NumField() {
			if f := t.Field(i); f.IsExported() && !yield(f) {
				return
			}
		}
	}
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Pointer:
		return jsonType(t.Elem())
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return "string"
	}
}

// ValidateParameters checks that every required property is present and that
// the present ones carry a value of the declared type. Unknown arguments and
// nil values pass.
func ValidateParameters(args map[string]any, schema map[string]any) error {
	for _, name := range RequiredFields(schema) {
		if _, ok := args[name]; !ok {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
	}
	props, _ := schema["properties"].(map[string]any)
	for name, v := range args {
		prop, _ := props[name].(map[string]any)
		want, _ := prop["type"].(string)
		if !hasType(v, want) {
			return &ValidationError{Field: name, Value: v, Message: fmt.Sprintf("expected type %s, got %T", want, v)}
		}
	}
	return nil
}

// RequiredFields returns the "required" list of a schema. Schemas built in
// Go carry []string while decoded JSON schemas carry []any.
func RequiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// StringProperties returns the names of the string typed properties of a
// schema, sorted.
func StringProperties(schema map[string]any) []string {
	properties, _ := schema["properties"].(map[string]any)
	var out []string
	for name, prop := range properties {
		if pm, ok := prop.(map[string]any); ok && pm["type"] == "string" {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func hasType(v any, want string) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch want {
	case "string":
		return rv.Kind() == reflect.String
	case "boolean":
		return rv.Kind() == reflect.Bool
	case "integer":
		// decoded JSON numbers are float64
		if rv.CanFloat() {
			f := rv.Float()
			return f == float64(int64(f))
		}
		return rv.CanInt() || rv.CanUint()
	case "number":
		return rv.CanInt() || rv.CanUint() || rv.CanFloat()
	case "array":
		_, ok := v.([]any)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}
