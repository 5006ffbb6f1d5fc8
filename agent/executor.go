package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/firegraph/logging"
	"github.com/hupe1980/firegraph/model"
	"github.com/hupe1980/firegraph/tool"
)

// ToolExecutorConfig configures the parallel tool executor.
type ToolExecutorConfig struct {
	MaxParallel int           // 0 or <1 => no explicit limit (len(calls))
	ToolTimeout time.Duration // per call; 0 disables the bound
}

// ToolExecutor executes a batch of model tool calls, possibly in parallel.
// It never panics, produces exactly one tool result message per call and
// keeps results in call order.
type ToolExecutor struct {
	cfg    ToolExecutorConfig
	logger logging.Logger
}

// NewToolExecutor constructs a new executor with the given config.
func NewToolExecutor(cfg ToolExecutorConfig, logger logging.Logger) *ToolExecutor {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &ToolExecutor{cfg: cfg, logger: logger}
}

// Execute runs calls against registry and returns the matching tool messages.
func (e *ToolExecutor) Execute(ctx context.Context, registry map[string]tool.Tool, calls []model.ToolCall) []model.Message {
	n := len(calls)
	if n == 0 {
		return nil
	}

	results := make([]model.Message, n)

	// Fast path: single call, execute inline.
	if n == 1 {
		results[0] = e.executeOne(ctx, registry, calls[0])
		return results
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var wg sync.WaitGroup

	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()

	for i := range calls {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			// Calls that never got a slot still need a result message.
			for j := i; j < n; j++ {
				results[j] = model.ToolResultMessage(calls[j].ID, calls[j].Function.Name, "Error: "+ctx.Err().Error(), true)
			}
			e.logger.Warn("agent.tools.batch.cancelled", "skipped", n-i)
			wg.Wait()
			return results
		}

		wg.Add(1)
		go func(idx int, call model.ToolCall) {
			defer wg.Done()
			defer func() { <-sem }()

			results[idx] = e.executeOne(ctx, registry, call)
		}(i, calls[i])
	}

	wg.Wait()

	e.logger.Debug(
		"agent.tools.batch.complete",
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results
}

func (e *ToolExecutor) executeOne(ctx context.Context, registry map[string]tool.Tool, call model.ToolCall) model.Message {
	name := call.Function.Name

	if err := ctx.Err(); err != nil {
		return model.ToolResultMessage(call.ID, name, "Error: "+err.Error(), true)
	}

	callCtx := ctx
	if e.cfg.ToolTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.cfg.ToolTimeout)
		defer cancel()
	}

	start := time.Now()

	var (
		result any
		err    error
	)

	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
				e.logger.Error("agent.tool.panic", "tool", name, "recover", fmt.Sprint(r))
			}
		}()
		result, err = executeTool(callCtx, registry, name, call.Function.Arguments)
	}()

	e.logger.Info(
		"agent.tool.executed",
		"tool", name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	if err != nil {
		return model.ToolResultMessage(call.ID, name, "Error: "+err.Error(), true)
	}

	return model.ToolResultMessage(call.ID, name, stringify(result), false)
}

// panicError converts a recovered panic value to an error.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

// executeTool centralizes tool lookup, argument decoding and execution.
func executeTool(ctx context.Context, registry map[string]tool.Tool, name, args string) (any, error) {
	impl, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", tool.ErrToolNotFound, name)
	}

	argMap := map[string]any{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argMap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", err)
		}
	}

	return impl.Call(ctx, argMap)
}

func stringify(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	case []byte:
		return string(r)
	case fmt.Stringer:
		return r.String()
	default:
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Sprintf("%v", r)
		}
		return string(b)
	}
}
