package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/firegraph/core"
	"github.com/hupe1980/firegraph/logging"
	"github.com/hupe1980/firegraph/model"
	"github.com/hupe1980/firegraph/tool"
)

// ToolSource hands out the tools a role may use. *tool.Gateway implements it.
type ToolSource interface {
	ToolsFor(ctx context.Context, role core.Role) ([]tool.Tool, error)
}

// Partial is the result of one worker: the value for its slot plus the
// messages it contributes to the history.
type Partial struct {
	Role     core.Role
	Domain   core.Domain
	Content  string
	Messages []core.Message
}

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	Objective   Instruction
	MaxSteps    int
	MaxParallel int
	ToolTimeout time.Duration
	Logger      logging.Logger
}

// Worker gathers data for one role using its allow-listed tools.
// A Worker holds no per-run state and may run concurrently.
type Worker struct {
	role      core.Role
	domain    core.Domain
	objective Instruction
	tools     ToolSource
	loop      *ToolLoop
	logger    logging.Logger
}

// NewWorker creates a worker for role. The role must own a slot.
func NewWorker(role core.Role, llm model.Model, tools ToolSource, optFns ...func(o *WorkerOptions)) (*Worker, error) {
	domain, ok := role.Domain()
	if !ok {
		return nil, fmt.Errorf("role %q does not own a state slot", role)
	}

	opts := WorkerOptions{
		Objective:   DefaultObjective(role),
		MaxSteps:    15,
		ToolTimeout: 30 * time.Second,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.ForComponent(opts.Logger, "worker."+string(role))

	return &Worker{
		role:      role,
		domain:    domain,
		objective: opts.Objective,
		tools:     tools,
		logger:    logger,
		loop: NewToolLoop(llm, func(o *ToolLoopOptions) {
			o.MaxSteps = opts.MaxSteps
			o.Logger = logger
			o.Executor = NewToolExecutor(ToolExecutorConfig{MaxParallel: opts.MaxParallel, ToolTimeout: opts.ToolTimeout}, logger)
		}),
	}, nil
}

// Role returns the worker's role.
func (w *Worker) Role() core.Role { return w.role }

// Run gathers data for the snapshot. The snapshot is never modified.
func (w *Worker) Run(ctx context.Context, snapshot *core.State) (*Partial, error) {
	instructions, err := w.objective.Resolve(snapshot)
	if err != nil {
		return nil, fmt.Errorf("resolve objective: %w", err)
	}

	tools, err := w.tools.ToolsFor(ctx, w.role)
	if err != nil {
		return nil, fmt.Errorf("tools for %s: %w", w.role, err)
	}

	w.logger.Debug("worker.run.start", "tools", len(tools))

	answer, err := w.loop.Ask(ctx, instructions, historyMessages(snapshot.History), tools)
	if err != nil {
		return nil, err
	}

	w.logger.Debug("worker.run.complete", "steps", answer.Steps, "tool_calls", answer.ToolCalls)

	return &Partial{
		Role:     w.role,
		Domain:   w.domain,
		Content:  answer.Text,
		Messages: []core.Message{core.NewAgentMessage(w.role.AgentName(), answer.Text)},
	}, nil
}
