package util

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateParameters_RequiredAsStringSlice(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
			"limit": map[string]any{"type": "integer"},
		},
		"required": []string{"query"},
	}

	err := ValidateParameters(map[string]any{"limit": 3.0}, schema)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "query", ve.Field)

	assert.NoError(t, ValidateParameters(map[string]any{"query": "fire", "limit": 3.0}, schema))
	assert.Error(t, ValidateParameters(map[string]any{"query": "fire", "limit": 2.5}, schema))
}

func TestValidateParameters_RequiredAsDecodedJSON(t *testing.T) {
	schema := map[string]any{"required": []any{"id"}}
	assert.Error(t, ValidateParameters(map[string]any{}, schema))
	assert.NoError(t, ValidateParameters(map[string]any{"id": "x"}, schema))
}

func TestValidateParameters_Types(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"region":  map[string]any{"type": []any{"string", "null"}},
			"days":    map[string]any{"type": "integer"},
			"ids":     map[string]any{"type": "array"},
			"filter":  map[string]any{"type": "object"},
			"level":   map[string]any{"enum": []any{"warning", "watch"}},
			"verbose": map[string]any{"type": "boolean"},
		},
	}

	tests := []struct {
		name   string
		params map[string]any
		field  string
	}{
		{"nullable string", map[string]any{"region": nil}, ""},
		{"json number integer", map[string]any{"days": json.Number("3")}, ""},
		{"fractional integer", map[string]any{"days": 2.5}, "days"},
		{"array", map[string]any{"ids": []any{"a"}}, ""},
		{"string for array", map[string]any{"ids": "a"}, "ids"},
		{"object", map[string]any{"filter": map[string]any{"x": 1.0}}, ""},
		{"enum match", map[string]any{"level": "watch"}, ""},
		{"enum miss", map[string]any{"level": "advisory"}, "level"},
		{"enum with object", map[string]any{"level": map[string]any{}}, "level"},
		{"bool as string", map[string]any{"verbose": "true"}, "verbose"},
		{"extra field", map[string]any{"unknown": 1.0}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateParameters(tt.params, schema)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Where: {{.Location}} / {{orNone .News}}", map[string]any{"Location": "Seoul & Busan", "News": ""})
	require.NoError(t, err)
	assert.Equal(t, "Where: Seoul & Busan / No data collected.", out)

	out, err = RenderTemplate("plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", out)

	_, err = RenderTemplate("{{.Broken", nil)
	assert.Error(t, err)
}
