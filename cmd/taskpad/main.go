// taskpad: task trees, scratchpads and subagent runs over MCP.
//
// Usage:
//
//	taskpad serve        # Start MCP server (stdio transport)
//	taskpad serve-http   # Start MCP server (streamable HTTP)
//	taskpad migrate      # Create or update the database schema
//	taskpad config       # Print the effective configuration
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/taskpad/internal/command"
	"github.com/HendryAvila/taskpad/internal/config"
	"github.com/HendryAvila/taskpad/internal/logging"
	tpserver "github.com/HendryAvila/taskpad/internal/server"
	"github.com/HendryAvila/taskpad/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := command.BuildApp(command.Deps{
		Serve:   serve,
		Migrate: migrate,
		Version: tpserver.Version,
	})
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.Config, transport command.Transport) error {
	logger := logging.NewLogger(logging.Options{Level: cfg.LogLevel, Writer: os.Stderr, Component: "taskpad"})

	s, cleanup, err := tpserver.New(cfg, tpserver.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	switch transport {
	case command.TransportHTTP:
		return serveHTTP(ctx, s, cfg.HTTPAddr, logger)
	default:
		stdio := server.NewStdioServer(s)
		stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))
		logger.Info("serving on stdio")
		if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

func serveHTTP(ctx context.Context, s *server.MCPServer, addr string, logger *slog.Logger) error {
	httpServer := server.NewStreamableHTTPServer(s)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving streamable HTTP", "addr", addr)
		errCh <- httpServer.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	}
}

func migrate(_ context.Context, cfg config.Config) error {
	db, err := storage.Open(cfg.DBPath())
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "schema up to date: %s\n", cfg.DBPath())
	return db.Close()
}
