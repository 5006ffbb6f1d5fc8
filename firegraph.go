// Package firegraph wires the wildfire response engine from its parts: the
// tool gateway, the gather workers with their fan-out coordinator, the
// decider and the checkpoint store.
//
// Most applications interact with this package by:
//  1. Creating an App via New() with a model and, optionally, durable stores
//  2. Running turns with App.Run, keyed by a thread id
//  3. Calling App.Shutdown once at process exit
//
// Unset collaborators default to in-memory implementations, which is enough
// for local development and tests.
package firegraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hupe1980/firegraph/agent"
	"github.com/hupe1980/firegraph/checkpoint"
	"github.com/hupe1980/firegraph/core"
	"github.com/hupe1980/firegraph/engine"
	"github.com/hupe1980/firegraph/fanout"
	"github.com/hupe1980/firegraph/logging"
	"github.com/hupe1980/firegraph/model"
	"github.com/hupe1980/firegraph/tool"
)

// Options configures the App.
type Options struct {
	// Dialer opens the tool catalog. Defaults to an empty in-process catalog.
	Dialer tool.Dialer
	// AllowList binds catalog tools to roles. Defaults to tool.DefaultAllowList.
	AllowList tool.AllowList

	// Store persists checkpoints. Defaults to checkpoint.InMemoryStore.
	Store core.CheckpointStore
	// Retriever supplies reference passages to the synthesis. Optional.
	Retriever core.Retriever

	HistoryLimit  int
	MaxSteps      int
	WorkerSteps   int
	TurnDeadline  time.Duration
	WorkerTimeout time.Duration

	Hooks  []engine.Hook
	Logger logging.Logger
}

// App aggregates the engine and the process-scoped resources it depends on.
type App struct {
	engine  *engine.Engine
	gateway *tool.Gateway
	store   core.CheckpointStore
	logger  logging.Logger

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates an App backed by llm.
func New(llm model.Model, optFns ...func(o *Options)) (*App, error) {
	opts := Options{
		Dialer:        tool.StaticDialer(tool.NewStaticCatalog()),
		AllowList:     tool.DefaultAllowList,
		Store:         checkpoint.NewInMemoryStore(),
		HistoryLimit:  10,
		MaxSteps:      50,
		WorkerSteps:   15,
		TurnDeadline:  55 * time.Second,
		WorkerTimeout: 45 * time.Second,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if llm == nil {
		return nil, core.NewFailure(core.FailureConfiguration, "new", errors.New("model is required"))
	}

	gateway := tool.NewGateway(opts.Dialer, func(o *tool.GatewayOptions) {
		o.AllowList = opts.AllowList
		o.Logger = opts.Logger
	})

	roles := core.GatherRoles()
	workers := make([]fanout.Runner, 0, len(roles))

	for _, role := range roles {
		w, err := agent.NewWorker(role, llm, gateway, func(o *agent.WorkerOptions) {
			o.MaxSteps = opts.WorkerSteps
			o.Logger = opts.Logger
		})
		if err != nil {
			return nil, core.NewFailure(core.FailureConfiguration, "new", fmt.Errorf("worker %s: %w", role, err))
		}

		workers = append(workers, w)
	}

	locator := agent.NewLocator(gateway, func(o *agent.LocatorOptions) {
		o.Logger = opts.Logger
	})

	coordinator := fanout.New(locator, workers, func(o *fanout.Options) {
		o.WorkerTimeout = opts.WorkerTimeout
		o.Logger = opts.Logger
	})

	decider := agent.NewDecider(llm, func(o *agent.DeciderOptions) {
		o.Retriever = opts.Retriever
		o.Tools = gateway
		o.MaxSteps = opts.WorkerSteps
		o.Logger = opts.Logger
	})

	eng := engine.New(decider, coordinator, opts.Store, func(o *engine.Options) {
		o.HistoryLimit = opts.HistoryLimit
		o.MaxSteps = opts.MaxSteps
		o.Deadline = opts.TurnDeadline
		o.Roles = roles
		o.Hooks = opts.Hooks
		o.Logger = opts.Logger
	})

	return &App{
		engine:  eng,
		gateway: gateway,
		store:   opts.Store,
		logger:  logging.ForComponent(opts.Logger, "app"),
	}, nil
}

// Engine returns the underlying engine.
func (a *App) Engine() *engine.Engine { return a.engine }

// Gateway returns the process-scoped tool gateway.
func (a *App) Gateway() *tool.Gateway { return a.gateway }

// Run executes one turn of threadID. See engine.Engine.Run.
func (a *App) Run(ctx context.Context, threadID, input string, optFns ...func(o *engine.RunOptions)) (*engine.Result, error) {
	return a.engine.Run(ctx, threadID, input, optFns...)
}

// Shutdown closes the tool gateway and, when it is closable, the checkpoint
// store. It is safe to call more than once.
func (a *App) Shutdown() error {
	a.shutdownOnce.Do(func() {
		var errs []error

		if err := a.gateway.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("gateway: %w", err))
		}

		if c, ok := a.store.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("store: %w", err))
			}
		}

		a.shutdownErr = errors.Join(errs...)
		a.logger.Info("app.shutdown", "ok", a.shutdownErr == nil)
	})

	return a.shutdownErr
}
