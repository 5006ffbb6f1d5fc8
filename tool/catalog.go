package tool

import (
	"context"
	"sync"
)

// Catalog lists the tools offered by a tool provider.
type Catalog interface {
	Tools(ctx context.Context) ([]Tool, error)
}

// Connection is an open session with a tool provider.
type Connection interface {
	Catalog
	Close() error
}

// Dialer opens a Connection. It is invoked lazily by the Gateway.
type Dialer func(ctx context.Context) (Connection, error)

// StaticCatalog is an in-process Connection over a fixed set of tools.
type StaticCatalog struct {
	mu     sync.Mutex
	tools  []Tool
	closed bool
}

// NewStaticCatalog creates a catalog serving tools.
func NewStaticCatalog(tools ...Tool) *StaticCatalog {
	return &StaticCatalog{tools: tools}
}

// Tools returns the catalog entries.
func (c *StaticCatalog) Tools(context.Context) ([]Tool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrGatewayClosed
	}

	out := make([]Tool, len(c.tools))
	copy(out, c.tools)

	return out, nil
}

// Close marks the catalog closed.
func (c *StaticCatalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	return nil
}

// Closed reports whether Close was called.
func (c *StaticCatalog) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// StaticDialer returns a Dialer that always hands out conn.
func StaticDialer(conn Connection) Dialer {
	return func(context.Context) (Connection, error) { return conn, nil }
}
