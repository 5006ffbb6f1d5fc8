package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/firegraph/core"
)

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ context.Context, args map[string]any) (any, error) {
		a := args["a"].(float64)
		b := args["b"].(float64)
		return a + b, nil
	})

	result, err := sumTool.Call(context.Background(), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		"required": []string{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(context.Context, map[string]any) (any, error) {
		return 0, nil
	})

	_, err := tTool.Call(context.Background(), nil)
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	execTool := NewFunctionTool("fail", "Fails", nil, func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := execTool.Call(context.Background(), map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "tool error [EXECUTION_ERROR] in fail: boom", toolErr.Error())
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	custom := NewToolError("quota", "rate limited", "RATE_LIMIT")
	qTool := NewFunctionTool("quota", "", nil, func(context.Context, map[string]any) (any, error) {
		return nil, custom
	})

	_, err := qTool.Call(context.Background(), map[string]any{})
	assert.Same(t, custom, err)
}

func TestFunctionTool_DecodedCatalogSchema(t *testing.T) {
	var params map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"type": "object",
		"properties": {
			"region": {"type": ["string", "null"]},
			"status": {"type": "string", "enum": ["in progress", "contained"]}
		},
		"required": ["status"]
	}`), &params))

	fires := NewFunctionTool("getForestFires", "Forest fires", params, func(_ context.Context, a map[string]any) (any, error) {
		return a["status"], nil
	})

	_, err := fires.Call(context.Background(), map[string]any{"region": "Gangwon"})
	assert.ErrorContains(t, err, "status")

	_, err = fires.Call(context.Background(), map[string]any{"status": "unknown"})
	assert.ErrorContains(t, err, "must be one of")

	res, err := fires.Call(context.Background(), map[string]any{"status": "contained", "region": nil})
	require.NoError(t, err)
	assert.Equal(t, "contained", res)
}

// -------------------- Allow-list Tests --------------------

func TestDefaultAllowList(t *testing.T) {
	assert.True(t, DefaultAllowList.Allows(core.RoleNews, GetYonhapNews))
	assert.True(t, DefaultAllowList.Allows(core.RoleLocator, GetLatestLocation))
	assert.False(t, DefaultAllowList.Allows(core.RoleNews, GetForestFires))
	assert.False(t, DefaultAllowList.Allows(core.Role("unknown"), Scrape))

	for _, role := range core.GatherRoles() {
		assert.NotEmpty(t, DefaultAllowList[role], "role %s has no tools", role)
	}
}
