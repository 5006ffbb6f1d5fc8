package fanout

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/firegraph/agent"
	"github.com/hupe1980/firegraph/core"
	"github.com/hupe1980/firegraph/logging"
)

// Runner gathers data for a single role. *agent.Worker implements it.
type Runner interface {
	Role() core.Role
	Run(ctx context.Context, snapshot *core.State) (*agent.Partial, error)
}

// Locator resolves the user's location before dispatch. *agent.Locator implements it.
type Locator interface {
	Locate(ctx context.Context, s *core.State) (core.Location, error)
}

// Options configures a Coordinator.
type Options struct {
	// WorkerTimeout bounds each worker. 0 disables the per-worker bound.
	WorkerTimeout time.Duration
	// MaxParallel limits concurrently running workers. 0 means one goroutine per role.
	MaxParallel int
	Logger      logging.Logger
}

// Coordinator dispatches roles to their workers.
type Coordinator struct {
	locator Locator
	workers map[core.Role]Runner
	opts    Options
	logger  logging.Logger
}

// New creates a Coordinator. locator may be nil, in which case the snapshot's
// location is used as is.
func New(locator Locator, workers []Runner, optFns ...func(o *Options)) *Coordinator {
	opts := Options{
		WorkerTimeout: 45 * time.Second,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	byRole := make(map[core.Role]Runner, len(workers))
	for _, w := range workers {
		byRole[w.Role()] = w
	}

	return &Coordinator{
		locator: locator,
		workers: byRole,
		opts:    opts,
		logger:  logging.ForComponent(opts.Logger, "fanout"),
	}
}

// Roles returns the roles a worker is registered for, in core.GatherRoles order
// followed by any others.
func (c *Coordinator) Roles() []core.Role {
	roles := make([]core.Role, 0, len(c.workers))
	seen := make(map[core.Role]bool, len(c.workers))

	for _, r := range core.GatherRoles() {
		if _, ok := c.workers[r]; ok {
			roles = append(roles, r)
			seen[r] = true
		}
	}

	for r := range c.workers {
		if !seen[r] {
			roles = append(roles, r)
		}
	}

	return roles
}

// RunAll runs the worker of every role against a clone of snapshot, waits for
// all of them and merges the outcome. Worker failures are reported in
// Merged.Failures; the returned error is non-nil only when ctx ended first.
func (c *Coordinator) RunAll(ctx context.Context, roles []core.Role, snapshot *core.State) (*Merged, error) {
	base := snapshot.Clone()

	c.locate(ctx, base)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fanout: %w", err)
	}

	results := make([]Result, len(roles))
	done := make(chan struct{})

	go func() {
		defer close(done)

		g := new(errgroup.Group)
		if c.opts.MaxParallel > 0 {
			g.SetLimit(c.opts.MaxParallel)
		}

		for i, role := range roles {
			g.Go(func() error {
				results[i] = c.runOne(ctx, role, base.Clone())
				return nil
			})
		}

		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Warn("fanout.abandoned", "roles", len(roles), "error", ctx.Err().Error())
		return nil, fmt.Errorf("fanout: %w", ctx.Err())
	}

	merged := Merge(base, results)

	for _, f := range merged.Failures {
		c.logger.Warn("fanout.worker.failed", "role", string(f.Role), "kind", string(f.Kind), "error", f.Error())
	}

	c.logger.Info("fanout.merged", "roles", len(roles), "failures", len(merged.Failures))

	return merged, nil
}

func (c *Coordinator) locate(ctx context.Context, s *core.State) {
	if c.locator == nil {
		return
	}

	loc, err := c.locator.Locate(ctx, s)
	if err != nil {
		c.logger.Warn("fanout.locate.failed", "error", err.Error())
		return
	}

	s.Location = loc
}

func (c *Coordinator) runOne(ctx context.Context, role core.Role, view *core.State) (res Result) {
	res.Role = role

	w, ok := c.workers[role]
	if !ok {
		res.Err = core.NewWorkerFailure(role, errors.New("no worker registered"))
		return res
	}

	if c.opts.WorkerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.WorkerTimeout)
		defer cancel()
	}

	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("fanout.worker.panic", "role", string(role), "recover", fmt.Sprint(r), "stack", string(debug.Stack()))
			res.Partial = nil
			res.Err = fmt.Errorf("panic recovered: %v", r)
		}
		c.logWorker(role, time.Since(start), res.Err)
	}()

	res.Partial, res.Err = w.Run(ctx, view)

	return res
}

func (c *Coordinator) logWorker(role core.Role, dur time.Duration, err error) {
	if gl, ok := c.logger.(*logging.GraphLogger); ok {
		gl.LogWorker(string(role), dur, err == nil, err)
		return
	}

	if err != nil {
		c.logger.Debug("fanout.worker.complete", "role", string(role), "duration", dur, "error", err.Error())
		return
	}

	c.logger.Debug("fanout.worker.complete", "role", string(role), "duration", dur)
}
