// Package mcp provides an MCP (Model Context Protocol) server exposing the
// psiz trial and probability tools.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/psiz/internal/agent"
	"github.com/nvandessel/psiz/internal/store"
)

// Server wraps the MCP SDK server and provides psiz-specific functionality.
type Server struct {
	server   *sdk.Server
	store    store.TrialStore
	engine   *agent.Engine
	root     string
	seed     uint64
	audit    *AuditLogger
	limiters toolLimiters
	allowed  []string
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "psiz")
	Version string // Server version
	Root    string // Project root directory

	// StoreDir holds the trial-set database and audit log. Empty means <Root>/.psiz.
	StoreDir string

	// Store replaces the SQLite database when set. The server closes it.
	Store store.TrialStore

	// Seed seeds simulations that do not name their own. Zero draws a
	// fresh seed per call.
	Seed uint64

	// Workers bounds concurrent configuration groups in the engine.
	Workers int

	Logger *slog.Logger
}

// NewServer creates a new MCP server with psiz tools.
func NewServer(cfg *Config) (*Server, error) {
	storeDir := cfg.StoreDir
	if storeDir == "" {
		storeDir = store.LocalPsizPath(cfg.Root)
	}
	trialStore := cfg.Store
	if trialStore == nil {
		sqliteStore, err := store.NewSQLiteTrialStore(storeDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create trial store: %w", err)
		}
		trialStore = sqliteStore
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	allowed := []string{cfg.Root}
	if home, err := os.UserHomeDir(); err == nil {
		allowed = append(allowed, filepath.Join(home, ".psiz"))
	}

	s := &Server{
		server:   mcpServer,
		store:    trialStore,
		engine:   agent.NewEngine(agent.WithWorkers(cfg.Workers), agent.WithEngineLogger(logger)),
		root:     cfg.Root,
		seed:     cfg.Seed,
		audit:    NewAuditLogger(storeDir),
		limiters: newToolLimiters(),
		allowed:  allowed,
		logger:   logger,
	}

	s.registerTools()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if closeErr := s.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// Close closes the server and releases resources. Safe to call repeatedly.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.store.Close()
		if err := s.audit.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
	})
	return s.closeErr
}
