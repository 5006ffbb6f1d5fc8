package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/firegraph/internal/testutil"
	"github.com/hupe1980/firegraph/model"
	"github.com/hupe1980/firegraph/tool"
)

func TestToolLoop_ExecutesToolsUntilFinalAnswer(t *testing.T) {
	llm := testutil.NewScriptedModel().On("news",
		model.ToolCallResponse(call("c1", "get_naver_news", `{"query":"fire"}`)),
		model.TextResponse("Two fires reported."),
	)

	var gotArgs map[string]any
	news := tool.NewFunctionTool("get_naver_news", "search news", nil, func(_ context.Context, args map[string]any) (any, error) {
		gotArgs = args
		return "article list", nil
	})

	loop := NewToolLoop(llm)
	answer, err := loop.Ask(context.Background(), "news worker", []model.Message{model.UserMessage("fire?")}, []tool.Tool{news})
	require.NoError(t, err)

	assert.Equal(t, "Two fires reported.", answer.Text)
	assert.Equal(t, 2, answer.Steps)
	assert.Equal(t, 1, answer.ToolCalls)
	assert.Equal(t, map[string]any{"query": "fire"}, gotArgs)

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, "get_naver_news", reqs[0].Tools[0].Function.Name)

	second := reqs[1].Messages
	require.Len(t, second, 3)
	assert.Equal(t, model.RoleAssistant, second[1].Role)
	assert.Equal(t, model.ToolResultMessage("c1", "get_naver_news", "article list", false), second[2])
}

func TestToolLoop_StepLimit(t *testing.T) {
	llm := testutil.NewScriptedModel().On("", model.ToolCallResponse(call("c", "noop", "")))

	loop := NewToolLoop(llm, func(o *ToolLoopOptions) { o.MaxSteps = 3 })
	_, err := loop.Ask(context.Background(), "x", nil, []tool.Tool{testutil.StaticTool("noop", "")})

	assert.ErrorIs(t, err, ErrStepLimit)
	assert.Len(t, llm.Requests(), 3)
}

func TestToolLoop_ModelError(t *testing.T) {
	llm := testutil.NewScriptedModel().OnError("", errors.New("rate limited"))

	_, err := NewToolLoop(llm).Ask(context.Background(), "x", nil, nil)
	assert.ErrorContains(t, err, "rate limited")
}

func TestToolLoop_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewToolLoop(testutil.NewScriptedModel()).Ask(ctx, "x", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
