package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/firegraph/model"
)

func TestBuildMessages_ToolRoundTrip(t *testing.T) {
	req := model.Request{
		Instructions: "You are the news agent.",
		Messages: []model.Message{
			model.UserMessage("any fires near Gangneung?"),
			{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{{ID: "c1", Function: model.ToolCallFunction{Name: "get_naver_news", Arguments: `{"query":"fire"}`}}}},
			model.ToolResultMessage("c1", "get_naver_news", "two articles", false),
			model.AssistantMessage("Two articles found."),
		},
	}

	msgs := buildMessages(req)
	require.Len(t, msgs, 5)

	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	require.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "get_naver_news", msgs[2].OfAssistant.ToolCalls[0].Function.Name)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)
	assert.NotNil(t, msgs[4].OfAssistant)
}

func TestBuildParams_Tools(t *testing.T) {
	m := NewModel(func(o *Options) { o.APIKey = "test" })
	params := m.buildParams(model.Request{Tools: []model.ToolDefinition{{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:       "scrape",
			Parameters: map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}}}, nil)

	require.Len(t, params.Tools, 1)
	assert.Equal(t, "scrape", params.Tools[0].Function.Name)
	assert.Equal(t, "gpt-4o", params.Model)
}

func TestInfo(t *testing.T) {
	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.Model = "gpt-4o-mini"
	})
	assert.Equal(t, model.Info{Name: "gpt-4o-mini", Provider: "openai", SupportsTools: true}, m.Info())
}
