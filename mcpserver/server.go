// Package mcpserver exposes translation sessions as Model Context Protocol
// tools over stdio.
//
// The tools mirror the CLI commands one to one, so an agent can drive a
// whole session (init, batch, submit, status, finalize) without shelling
// out. Every call loads the session from its state file, which keeps the
// server stateless between calls.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/yigitkonur/cli-localize/session"
)

// Defaults fill in localize_init arguments the caller leaves out.
type Defaults struct {
	SourceLang   string
	TargetLang   string
	Format       string
	ContextSize  int
	TargetTokens int
	BatchSize    int
}

// Config configures the MCP server.
type Config struct {
	// Name is the implementation name (default: "cli-localize").
	Name string
	// Version is the implementation version (default: "dev").
	Version string

	Logger *zap.Logger

	// Session carries the registry, metrics and lock settings used for
	// every call. Session.Registry is required.
	Session  session.Options
	Defaults Defaults
}

// Server wraps an mcp.Server with the localize_* tools registered.
type Server struct {
	mcp      *mcp.Server
	opts     session.Options
	defaults Defaults
	logger   *zap.Logger
}

// New creates the server and registers its tools.
func New(cfg Config) (*Server, error) {
	if cfg.Session.Registry == nil {
		return nil, session.ErrNoRegistry
	}
	if cfg.Name == "" {
		cfg.Name = "cli-localize"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Session.Logger == nil {
		cfg.Session.Logger = cfg.Logger
	}
	if cfg.Defaults.SourceLang == "" {
		cfg.Defaults.SourceLang = "en"
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		opts:     cfg.Session,
		defaults: cfg.Defaults,
		logger:   cfg.Logger,
	}
	s.registerTools()
	return s, nil
}

// MCP returns the underlying server, for transports other than stdio.
func (s *Server) MCP() *mcp.Server { return s.mcp }

// Run serves on stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
