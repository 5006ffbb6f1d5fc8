package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/firegraph/core"
	"github.com/hupe1980/firegraph/logging"
)

// ErrGatewayClosed is returned by a Gateway after Shutdown.
var ErrGatewayClosed = errors.New("tool gateway closed")

// GatewayOptions configures a Gateway.
type GatewayOptions struct {
	// AllowList restricts which catalog tools each role may bind.
	AllowList AllowList
	// DialTimeout bounds a single connection attempt. Zero disables the bound.
	DialTimeout time.Duration
	Logger      logging.Logger
}

// Gateway is the process-scoped access point to the tool catalog.
//
// The connection is dialed on first use and shared afterwards. Concurrent
// first use results in a single dial; a failed dial is not cached so the next
// caller retries. Shutdown closes the connection and is idempotent.
type Gateway struct {
	dial   Dialer
	opts   GatewayOptions
	logger logging.Logger

	group singleflight.Group

	mu      sync.RWMutex
	conn    Connection
	catalog map[Name]Tool
	closed  bool
}

// NewGateway creates a Gateway that connects through dial.
func NewGateway(dial Dialer, optFns ...func(o *GatewayOptions)) *Gateway {
	opts := GatewayOptions{
		AllowList:   DefaultAllowList,
		DialTimeout: 30 * time.Second,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Gateway{
		dial:   dial,
		opts:   opts,
		logger: logging.ForComponent(opts.Logger, "gateway"),
	}
}

// Connect dials the catalog if no connection exists yet. Failures are
// reported as configuration failures.
func (g *Gateway) Connect(ctx context.Context) error {
	_, err := g.ensure(ctx)
	return err
}

// ToolsFor returns the catalog tools role is allowed to use, in allow-list
// order. Catalog entries outside the allow-list are ignored, and allow-list
// entries missing from the catalog are skipped.
func (g *Gateway) ToolsFor(ctx context.Context, role core.Role) ([]Tool, error) {
	catalog, err := g.ensure(ctx)
	if err != nil {
		return nil, err
	}

	names := g.opts.AllowList[role]
	tools := make([]Tool, 0, len(names))

	for _, name := range names {
		t, ok := catalog[name]
		if !ok {
			g.logger.Debug("gateway.tool.missing", "role", string(role), "tool", string(name))
			continue
		}

		tools = append(tools, t)
	}

	return tools, nil
}

// Shutdown closes the shared connection. Subsequent calls are no-ops and any
// later use of the gateway returns ErrGatewayClosed.
func (g *Gateway) Shutdown() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}

	g.closed = true
	conn := g.conn
	g.conn = nil
	g.catalog = nil

	if conn == nil {
		return nil
	}

	if err := conn.Close(); err != nil {
		g.logger.Warn("gateway.close.failed", "error", err.Error())
		return fmt.Errorf("close tool connection: %w", err)
	}

	g.logger.Info("gateway.closed")

	return nil
}

func (g *Gateway) ensure(ctx context.Context) (map[Name]Tool, error) {
	g.mu.RLock()
	closed, catalog := g.closed, g.catalog
	g.mu.RUnlock()

	if closed {
		return nil, ErrGatewayClosed
	}

	if catalog != nil {
		return catalog, nil
	}

	ch := g.group.DoChan("connect", func() (any, error) {
		return g.connect(ctx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		return res.Val.(map[Name]Tool), nil
	}
}

func (g *Gateway) connect(ctx context.Context) (map[Name]Tool, error) {
	g.mu.RLock()
	if g.catalog != nil {
		catalog := g.catalog
		g.mu.RUnlock()

		return catalog, nil
	}
	g.mu.RUnlock()

	// Shared by every waiter; detached from the initiating caller's cancellation.
	dialCtx := context.WithoutCancel(ctx)
	if g.opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(dialCtx, g.opts.DialTimeout)
		defer cancel()
	}

	start := time.Now()

	conn, err := g.dial(dialCtx)
	if err != nil {
		g.logger.Error("gateway.dial.failed", "error", err.Error())
		return nil, core.NewFailure(core.FailureConfiguration, "dial tool catalog", err)
	}

	tools, err := conn.Tools(dialCtx)
	if err != nil {
		_ = conn.Close()
		g.logger.Error("gateway.list.failed", "error", err.Error())

		return nil, core.NewFailure(core.FailureConfiguration, "list tool catalog", err)
	}

	catalog := make(map[Name]Tool, len(tools))
	for _, t := range tools {
		catalog[Name(t.Name())] = t
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		_ = conn.Close()
		return nil, ErrGatewayClosed
	}

	g.conn = conn
	g.catalog = catalog

	g.logger.Info("gateway.connected", "tools", len(catalog), "duration_ms", time.Since(start).Milliseconds())

	return catalog, nil
}
