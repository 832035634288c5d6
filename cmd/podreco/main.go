// Command podreco runs the episode recommendation pipeline as an MCP
// server, exposing podreco_create_session, podreco_load_more, and
// podreco_engage as tools for MCP-compatible agent clients over stdio.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/serafis/podreco"
	"github.com/serafis/podreco/internal/mcp"
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("PODRECO_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	const version = "0.1.0"

	app, err := podreco.New(
		podreco.WithLogger(logger),
		podreco.WithVersion(version),
	)
	if err != nil {
		return fmt.Errorf("init podreco: %w", err)
	}
	defer app.Close()

	srv := mcp.New(app, logger, version)

	errCh := make(chan error, 1)
	go func() {
		if err := mcpserver.ServeStdio(srv.MCPServer()); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	fmt.Println()
	slog.Info("podreco shutting down")
	return nil
}
