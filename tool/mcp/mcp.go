// Package mcp connects the tool Gateway to Model Context Protocol servers.
// Each configured server is started (stdio) or reached (sse) once per
// connection and its tools are exposed as tool.Tool values.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hupe1980/firegraph/logging"
	"github.com/hupe1980/firegraph/tool"
)

// Transport kinds accepted in ServerConfig.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// ServerConfig describes one MCP server.
type ServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"`
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	URL       string            `yaml:"url,omitempty"`
}

// Validate checks that the transport specific fields are present.
func (c ServerConfig) Validate() error {
	switch c.transport() {
	case TransportStdio:
		if c.Command == "" {
			return fmt.Errorf("mcp server %q: command is required for stdio transport", c.Name)
		}
	case TransportSSE:
		if c.URL == "" {
			return fmt.Errorf("mcp server %q: url is required for sse transport", c.Name)
		}
	default:
		return fmt.Errorf("mcp server %q: unknown transport %q", c.Name, c.Transport)
	}
	return nil
}

func (c ServerConfig) transport() string {
	if c.Transport == "" {
		return TransportStdio
	}
	return strings.ToLower(c.Transport)
}

func (c ServerConfig) environ() []string {
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+c.Env[k])
	}
	return env
}

// Options configures the dialer.
type Options struct {
	ClientName    string
	ClientVersion string
	Logger        logging.Logger
}

// NewDialer returns a tool.Dialer that starts every server in servers.
// Servers that fail to start or list tools abort the whole dial.
func NewDialer(servers []ServerConfig, optFns ...func(o *Options)) tool.Dialer {
	opts := Options{ClientName: "firegraph", ClientVersion: "1.0.0", Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.ForComponent(opts.Logger, "mcp")

	return func(ctx context.Context) (tool.Connection, error) {
		conn := &connection{}

		for _, srv := range servers {
			if err := srv.Validate(); err != nil {
				_ = conn.Close()
				return nil, err
			}

			c, err := start(ctx, srv, opts)
			if err != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("start mcp server %q: %w", srv.Name, err)
			}

			conn.clients = append(conn.clients, c)

			res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
			if err != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("list tools of %q: %w", srv.Name, err)
			}

			for _, t := range res.Tools {
				conn.tools = append(conn.tools, newRemoteTool(c, t))
			}

			logger.Info("mcp.server.ready", "server", srv.Name, "tools", len(res.Tools))
		}

		return conn, nil
	}
}

func start(ctx context.Context, srv ServerConfig, opts Options) (*client.Client, error) {
	var (
		c   *client.Client
		err error
	)

	switch srv.transport() {
	case TransportSSE:
		c, err = client.NewSSEMCPClient(srv.URL)
		if err == nil {
			err = c.Start(ctx)
		}
	default:
		c, err = client.NewStdioMCPClient(srv.Command, srv.environ(), srv.Args...)
	}

	if err != nil {
		return nil, err
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: opts.ClientName, Version: opts.ClientVersion}

	if _, err := c.Initialize(ctx, req); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}

	return c, nil
}

type connection struct {
	clients []*client.Client
	tools   []tool.Tool
}

func (c *connection) Tools(context.Context) ([]tool.Tool, error) {
	out := make([]tool.Tool, len(c.tools))
	copy(out, c.tools)
	return out, nil
}

func (c *connection) Close() error {
	var errs []error
	for _, cl := range c.clients {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.clients = nil
	return errors.Join(errs...)
}
