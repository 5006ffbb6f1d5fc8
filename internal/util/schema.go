package util

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// ValidationError reports the first argument that does not fit a tool schema.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateParameters checks decoded tool-call arguments against the top level
// of a JSON schema: required names, property types and enums. Schemas come
// either as Go literals or decoded from an MCP catalog, so "required" may be
// []string or []any and "type" may be a name or a list of names. Nested
// objects and unknown keywords are not inspected.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	for _, name := range stringList(schema["required"]) {
		if _, ok := params[name]; !ok {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
	}

	properties, _ := schema["properties"].(map[string]any)

	for _, name := range sortedKeys(params) {
		prop, ok := properties[name].(map[string]any)
		if !ok {
			continue
		}

		value := params[name]

		if types := stringList(prop["type"]); len(types) > 0 && !slices.ContainsFunc(types, func(t string) bool { return matchesType(value, t) }) {
			return &ValidationError{
				Field:   name,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %s", strings.Join(types, "|"), typeName(value)),
			}
		}

		if enum, ok := prop["enum"]; ok && !inEnum(value, enum) {
			return &ValidationError{Field: name, Value: value, Message: fmt.Sprintf("must be one of %v", enum)}
		}
	}

	return nil
}

func stringList(v any) []string {
	switch x := v.(type) {
	case string:
		return []string{x}
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// inEnum compares scalars only; maps and slices never match.
func inEnum(v any, enum any) bool {
	switch v.(type) {
	case nil, string, bool, float64:
	default:
		return false
	}

	switch e := enum.(type) {
	case []string:
		s, ok := v.(string)
		return ok && slices.Contains(e, s)
	case []any:
		for _, candidate := range e {
			switch candidate.(type) {
			case nil, string, bool, float64:
				if candidate == v {
					return true
				}
			}
		}
		return false
	default:
		return true
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// matchesType reports whether a value decoded from model JSON fits the
// JSON schema type t. Numbers arrive as float64 or json.Number.
func matchesType(v any, t string) bool {
	switch t {
	case "null":
		return v == nil
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "number":
		_, ok := number(v)
		return ok
	case "integer":
		f, ok := number(v)
		return ok && f == float64(int64(f))
	case "array":
		switch v.(type) {
		case []any, []string, []map[string]any:
			return true
		}
		return false
	case "object":
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	}
	if _, ok := number(v); ok {
		return "number"
	}
	if matchesType(v, "array") {
		return "array"
	}
	return fmt.Sprintf("%T", v)
}
