package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/firegraph/agent"
	"github.com/hupe1980/firegraph/checkpoint"
	"github.com/hupe1980/firegraph/core"
	"github.com/hupe1980/firegraph/fanout"
	"github.com/hupe1980/firegraph/logging"
)

// TimeoutMessage is the reply of a turn that missed its deadline.
const TimeoutMessage = "Sorry, the response team could not finish in time. Please try again in a moment."

// Decider runs the two model backed steps. *agent.Decider implements it.
type Decider interface {
	Decide(ctx context.Context, s *core.State) (*agent.Decision, error)
	Synthesize(ctx context.Context, s *core.State) (*agent.Synthesis, error)
}

// Gatherer runs the gather workers. *fanout.Coordinator implements it.
type Gatherer interface {
	RunAll(ctx context.Context, roles []core.Role, snapshot *core.State) (*fanout.Merged, error)
}

// Options configures an Engine.
type Options struct {
	// HistoryLimit is the number of messages kept when a turn begins. 0 disables trimming.
	HistoryLimit int
	// MaxSteps bounds the steps of one turn. 0 means unlimited.
	MaxSteps int
	// Deadline bounds a whole turn. 0 disables the bound.
	Deadline time.Duration
	// Roles are dispatched in the gather step.
	Roles  []core.Role
	Hooks  []Hook
	Logger logging.Logger
}

// RunOptions configures a single Run.
type RunOptions struct {
	RequestID string
	Deadline  time.Duration
}

// WithRequestID tags the turn with a caller supplied idempotency key. A retry
// with the same key replays a completed turn or resumes an interrupted one.
func WithRequestID(id string) func(o *RunOptions) {
	return func(o *RunOptions) { o.RequestID = id }
}

// WithDeadline overrides the engine's turn deadline.
func WithDeadline(d time.Duration) func(o *RunOptions) {
	return func(o *RunOptions) { o.Deadline = d }
}

// Result is the outcome of a turn.
type Result struct {
	// Text is the reply for the user.
	Text string
	// Route is the last routing decision of the turn.
	Route Route
	// State is a copy of the last committed state. It is nil when the turn
	// timed out before it could start.
	State *core.State
	// Persisted reports whether every checkpoint write of the turn succeeded.
	Persisted bool
}

// Engine runs turns. It holds no per-turn state and may serve many threads
// concurrently; turns of the same thread are serialized.
type Engine struct {
	decider  Decider
	gatherer Gatherer
	store    core.CheckpointStore
	hooks    *HookManager
	threads  *threadLocks
	opts     Options
	logger   logging.Logger
}

// New creates an Engine. A nil store selects checkpoint.InMemoryStore.
func New(decider Decider, gatherer Gatherer, store core.CheckpointStore, optFns ...func(o *Options)) *Engine {
	opts := Options{
		HistoryLimit: 10,
		MaxSteps:     50,
		Deadline:     55 * time.Second,
		Roles:        core.GatherRoles(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if store == nil {
		store = checkpoint.NewInMemoryStore()
	}

	return &Engine{
		decider:  decider,
		gatherer: gatherer,
		store:    store,
		hooks:    NewHookManager(opts.Hooks...),
		threads:  newThreadLocks(),
		opts:     opts,
		logger:   logging.ForComponent(opts.Logger, "engine"),
	}
}

// Hooks returns the hook manager for registering further hooks.
func (e *Engine) Hooks() *HookManager { return e.hooks }

// Run executes one turn of threadID with the user's input.
//
// On failure the error is a *core.Failure. A Timeout failure comes with a
// Result whose Text is TimeoutMessage; a Persistence failure comes with the
// complete Result of the turn. When the checkpoint cannot be read the turn
// runs on a fresh state and nothing is saved. Other failures return a nil
// Result.
func (e *Engine) Run(ctx context.Context, threadID, input string, optFns ...func(o *RunOptions)) (*Result, error) {
	if threadID == "" {
		return nil, core.NewFailure(core.FailureConfiguration, "run", errors.New("thread id is required"))
	}

	ropts := RunOptions{Deadline: e.opts.Deadline}
	for _, fn := range optFns {
		fn(&ropts)
	}

	if ropts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ropts.Deadline)
		defer cancel()
	}

	release, err := e.threads.acquire(ctx, threadID)
	if err != nil {
		e.logger.Warn("engine.turn.lock_timeout", "thread_id", threadID, "error", err.Error())
		return &Result{Text: TimeoutMessage, Route: RouteTerminate}, core.NewFailure(core.FailureTimeout, "run", err)
	}
	defer release()

	t := &turn{
		e:         e,
		threadID:  threadID,
		requestID: ropts.RequestID,
		logger:    logging.ForThread(e.logger, threadID, ropts.RequestID),
	}

	t.state, t.loadErr = e.load(ctx, threadID, t.logger)

	switch {
	case t.requestID != "" && t.state.RequestID == t.requestID && t.state.TurnComplete:
		t.logger.Info("engine.turn.replayed", "turn", t.state.Turn)
		return &Result{Text: t.state.Reply, Route: Next(t.state), State: t.state.Clone(), Persisted: true}, nil
	case t.requestID != "" && t.state.RequestID == t.requestID:
		t.logger.Info("engine.turn.resumed", "turn", t.state.Turn, "phase", string(t.state.Phase))
	default:
		t.state.BeginTurn(input, t.requestID)
		t.state.History = Trim(t.state.History, e.opts.HistoryLimit)
		t.persist(ctx)
		t.logger.Info("engine.turn.started", "turn", t.state.Turn, "history", len(t.state.History))
	}

	return t.run(ctx)
}

// load returns the stored state. On error the turn runs on a fresh state
// that is never saved, so the unreadable checkpoint stays as it is.
func (e *Engine) load(ctx context.Context, threadID string, logger logging.Logger) (*core.State, error) {
	s, err := e.store.Load(ctx, threadID)
	if err != nil {
		logger.Error("engine.checkpoint.load_failed", "error", err.Error())
		return core.NewState(threadID), err
	}

	if s == nil {
		return core.NewState(threadID), nil
	}

	return s, nil
}

// turn carries the state of one Run.
type turn struct {
	e         *Engine
	threadID  string
	requestID string
	logger    logging.Logger
	state     *core.State
	route     Route
	loadErr   error
	saveErr   error
}

func (t *turn) run(ctx context.Context) (*Result, error) {
	steps := core.NewStepLimiter(t.e.opts.MaxSteps)

	for !t.state.TurnComplete {
		if err := steps.Increment(); err != nil {
			return t.fail(ctx, "", core.NewFailure(core.FailureTerminalStep, "run", err))
		}

		if err := t.step(ctx); err != nil {
			return t.fail(ctx, stepOf(t.state.Phase), err)
		}
	}

	res := t.result(t.state.Reply)

	t.logger.Info("engine.turn.completed", "route", string(t.route), "steps", steps.Count(), "persisted", res.Persisted)

	if t.loadErr != nil {
		return res, core.NewFailure(core.FailurePersistence, "load", t.loadErr)
	}

	if t.saveErr != nil {
		return res, core.NewFailure(core.FailurePersistence, "save", t.saveErr)
	}

	return res, nil
}

func (t *turn) step(ctx context.Context) error {
	step := stepOf(t.state.Phase)
	if step == "" {
		return core.NewFailure(core.FailureTerminalStep, "route", fmt.Errorf("unknown phase %q", t.state.Phase))
	}

	if err := t.e.hooks.Run(ctx, HookBeforeStep, t.hookContext(step, "", t.state, nil)); err != nil {
		return core.NewFailure(core.FailureTerminalStep, string(step), err)
	}

	start := time.Now()

	var (
		next  *core.State
		route Route
		err   error
	)

	switch step {
	case StepDecide:
		next, route, err = t.decide(ctx)
	case StepGather:
		next, route, err = t.gather(ctx)
	case StepSynthesize:
		next, route, err = t.synthesize(ctx)
	}

	t.logStep(step, route, time.Since(start), err)

	if err != nil {
		return t.classify(ctx, step, err)
	}

	if err := t.commit(ctx, step, route, next); err != nil {
		return err
	}

	if err := t.e.hooks.Run(ctx, HookAfterStep, t.hookContext(step, route, t.state, nil)); err != nil {
		t.logger.Warn("engine.hook.failed", "step", string(step), "error", err.Error())
	}

	return nil
}

func (t *turn) decide(ctx context.Context) (*core.State, Route, error) {
	next := t.state.Clone()

	d, err := t.e.decider.Decide(ctx, next.Clone())
	if err != nil {
		return nil, "", err
	}

	next.UseAgent = d.UseAgent
	next.Reply = d.Reply

	if d.Reply != "" {
		next.Append(core.NewAgentMessage(core.AuthorDecision, d.Reply))
	}

	route := Next(next)
	if route == RouteGather {
		next.Phase = core.PhaseGathering
	} else {
		next.Complete(d.Reply)
	}

	return next, route, nil
}

func (t *turn) gather(ctx context.Context) (*core.State, Route, error) {
	if t.e.gatherer == nil {
		return nil, "", core.NewFailure(core.FailureConfiguration, "gather", errors.New("no gatherer configured"))
	}

	merged, err := t.e.gatherer.RunAll(ctx, t.e.opts.Roles, t.state)
	if err != nil {
		return nil, "", err
	}

	if len(merged.Failures) > 0 {
		t.logger.Warn("engine.gather.partial", "failures", len(merged.Failures))
	}

	return merged.State, Next(merged.State), nil
}

func (t *turn) synthesize(ctx context.Context) (*core.State, Route, error) {
	next := t.state.Clone()

	syn, err := t.e.decider.Synthesize(ctx, next.Clone())
	if err != nil {
		return nil, "", err
	}

	if err := next.SetSlot(core.DomainAnswerContext, syn.AnswerContext); err != nil {
		return nil, "", err
	}

	next.Append(core.NewAgentMessage(core.RoleSynthesizer.AgentName(), syn.Reply))
	next.Complete(syn.Reply)

	return next, RouteFinish, nil
}

func (t *turn) commit(ctx context.Context, step Step, route Route, next *core.State) error {
	if err := t.e.hooks.Run(ctx, HookOnCommit, t.hookContext(step, route, next, nil)); err != nil {
		return core.NewFailure(core.FailureTerminalStep, string(step), err)
	}

	t.state = next
	t.route = route
	t.persist(ctx)

	return nil
}

func (t *turn) persist(ctx context.Context) {
	if t.loadErr != nil {
		return
	}

	if err := t.e.store.Save(ctx, t.threadID, t.state); err != nil {
		t.logger.Error("engine.checkpoint.save_failed", "phase", string(t.state.Phase), "error", err.Error())
		if t.saveErr == nil {
			t.saveErr = err
		}
	}
}

func (t *turn) classify(ctx context.Context, step Step, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return core.NewFailure(core.FailureTimeout, string(step), err)
	}

	if f, ok := core.AsFailure(err); ok {
		return f
	}

	return core.NewFailure(core.FailureTerminalStep, string(step), err)
}

func (t *turn) fail(ctx context.Context, step Step, err error) (*Result, error) {
	t.logger.Error("engine.turn.failed", "step", string(step), "error", err.Error())

	if hookErr := t.e.hooks.Run(ctx, HookOnError, t.hookContext(step, t.route, t.state, err)); hookErr != nil {
		t.logger.Warn("engine.hook.failed", "step", string(step), "error", hookErr.Error())
	}

	if core.IsKind(err, core.FailureTimeout) {
		res := t.result(TimeoutMessage)
		res.Route = RouteTerminate
		return res, err
	}

	return nil, err
}

func (t *turn) result(text string) *Result {
	return &Result{
		Text:      text,
		Route:     t.route,
		State:     t.state.Clone(),
		Persisted: t.loadErr == nil && t.saveErr == nil,
	}
}

func (t *turn) hookContext(step Step, route Route, s *core.State, err error) *HookContext {
	return &HookContext{
		ThreadID:  t.threadID,
		RequestID: t.requestID,
		Step:      step,
		Route:     route,
		State:     s.Clone(),
		Err:       err,
	}
}

func (t *turn) logStep(step Step, route Route, dur time.Duration, err error) {
	if gl, ok := t.logger.(*logging.GraphLogger); ok {
		gl.LogStep(string(step), string(route), dur, err == nil, err)
		return
	}

	t.logger.Debug("engine.step", "step", string(step), "route", string(route), "duration", dur, "success", err == nil)
}

func stepOf(p core.Phase) Step {
	switch p {
	case core.PhaseAwaitingDecision:
		return StepDecide
	case core.PhaseGathering:
		return StepGather
	case core.PhaseSynthesizing:
		return StepSynthesize
	default:
		return ""
	}
}
