package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/firegraph/core"
	"github.com/hupe1980/firegraph/logging"
	"github.com/hupe1980/firegraph/model"
	"github.com/hupe1980/firegraph/tool"
)

// ErrStepLimit is returned when the model keeps requesting tools beyond the
// configured number of model calls.
var ErrStepLimit = errors.New("tool loop step limit reached")

// ToolLoopOptions configures a ToolLoop.
type ToolLoopOptions struct {
	// MaxSteps caps the number of model calls per Ask. 0 means unlimited.
	MaxSteps int
	// Executor runs requested tools. Defaults to an unbounded parallel executor.
	Executor *ToolExecutor
	Logger   logging.Logger
}

// ToolLoop is the shared ask primitive: it calls the model, executes any
// requested tools and feeds their results back until the model produces a
// final text answer.
type ToolLoop struct {
	llm  model.Model
	opts ToolLoopOptions
}

// Answer is the outcome of a ToolLoop run.
type Answer struct {
	Text      string
	Steps     int
	ToolCalls int
	Usage     model.TokenUsage
}

// NewToolLoop creates a ToolLoop around llm.
func NewToolLoop(llm model.Model, optFns ...func(o *ToolLoopOptions)) *ToolLoop {
	opts := ToolLoopOptions{
		MaxSteps: 15,
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Executor == nil {
		opts.Executor = NewToolExecutor(ToolExecutorConfig{}, opts.Logger)
	}

	return &ToolLoop{llm: llm, opts: opts}
}

// Ask runs the loop with the given instructions, conversation and tools.
func (l *ToolLoop) Ask(ctx context.Context, instructions string, messages []model.Message, tools []tool.Tool) (*Answer, error) {
	registry := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		registry[t.Name()] = t
	}

	req := model.Request{
		Instructions: instructions,
		Messages:     append([]model.Message(nil), messages...),
		Tools:        toolDefinitions(tools),
	}

	limiter := core.NewStepLimiter(l.opts.MaxSteps)
	answer := &Answer{}
	info := l.llm.Info()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := limiter.Increment(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStepLimit, err)
		}

		start := time.Now()

		resp, err := l.llm.Generate(ctx, req)
		if err != nil {
			l.opts.Logger.Error("agent.model.error", "model", info.Name, "duration", time.Since(start), "error", err.Error())
			return nil, fmt.Errorf("generate: %w", err)
		}

		answer.Steps = limiter.Count()
		if resp.Usage != nil {
			answer.Usage.PromptTokens += resp.Usage.PromptTokens
			answer.Usage.CompletionTokens += resp.Usage.CompletionTokens
			answer.Usage.TotalTokens += resp.Usage.TotalTokens
		}

		if !resp.HasToolCalls() {
			answer.Text = resp.Message.Content
			return answer, nil
		}

		answer.ToolCalls += len(resp.Message.ToolCalls)

		l.opts.Logger.Debug("agent.model.tool_calls", "model", info.Name, "count", len(resp.Message.ToolCalls), "step", answer.Steps)

		assistant := resp.Message
		assistant.Role = model.RoleAssistant

		req.Messages = append(req.Messages, assistant)
		req.Messages = append(req.Messages, l.opts.Executor.Execute(ctx, registry, resp.Message.ToolCalls)...)
	}
}

func toolDefinitions(tools []tool.Tool) []model.ToolDefinition {
	if len(tools) == 0 {
		return nil
	}

	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return defs
}

// historyMessages converts the session history into model messages.
func historyMessages(history []core.Message) []model.Message {
	out := make([]model.Message, 0, len(history))
	for _, m := range history {
		if m.Content == "" {
			continue
		}
		if m.Role == core.MessageRoleUser {
			out = append(out, model.UserMessage(m.Content))
			continue
		}
		out = append(out, model.AssistantMessage(m.Content))
	}
	return out
}
