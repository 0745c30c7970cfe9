package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/idgrep/internal/mcp"
	"github.com/standardbeagle/idgrep/internal/server"
)

// serverCommand starts the HTTP search server
func serverCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	srv := server.NewSearchServer(cfg)
	if c.Bool("watch") {
		srv.SetConfigPath(configWatchPath(c, cfg))
	}

	var mcpServer *mcp.Server
	if c.Bool("mcp") {
		mcpServer, err = mcp.NewServer(cfg, mcp.NewWriterLogger(c.App.ErrWriter))
		if err != nil {
			return fmt.Errorf("failed to create MCP server: %w", err)
		}
		srv.Mount("/mcp", mcpServer.HTTPHandler())
		srv.OnReload(mcpServer.UpdateConfig)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Search server started successfully\n")
	fmt.Fprintf(w, "Listening: %s\n", srv.Addr())
	fmt.Fprintf(w, "Root: %s\n", cfg.Search.Root)
	if mcpServer != nil {
		fmt.Fprintf(w, "MCP: %s/mcp\n", srv.Addr())
	}
	fmt.Fprintf(w, "\nUse 'idgrep shutdown' to stop the server\n")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		fmt.Fprintf(w, "\nReceived signal %v, shutting down...\n", sig)
	case <-srv.Done():
		fmt.Fprintln(w, "Server shutdown requested")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	if mcpServer != nil {
		_ = mcpServer.Shutdown(ctx)
	}

	fmt.Fprintln(w, "Server shut down cleanly")
	return nil
}

// shutdownCommand sends a shutdown request to the running server
func shutdownCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	client := server.NewClient(cfg.Server.Listen)
	defer client.CloseIdleConnections()

	if !client.IsServerRunning() {
		return fmt.Errorf("no server is running at %s", cfg.Server.Listen)
	}

	fmt.Fprintf(c.App.Writer, "Shutting down server at %s\n", cfg.Server.Listen)
	if err := client.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for client.IsServerRunning() {
		if time.Now().After(deadline) {
			return fmt.Errorf("server did not shut down")
		}
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Fprintln(c.App.Writer, "Server shut down successfully")
	return nil
}
