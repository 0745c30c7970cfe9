package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/idgrep/internal/config"
	"github.com/standardbeagle/idgrep/internal/debug"
	"github.com/standardbeagle/idgrep/internal/display"
	"github.com/standardbeagle/idgrep/internal/mcp"
	"github.com/standardbeagle/idgrep/internal/version"
)

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath := c.String("config"); configPath != "" {
		cfg, err = config.LoadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadWithRoot(c.String("root"))
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if rootFlag := c.String("root"); rootFlag != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Search.Root = absRoot
	}
	if binary := c.String("rg"); binary != "" {
		cfg.Search.Binary = binary
	}
	if listen := c.String("listen"); listen != "" {
		cfg.Server.Listen = listen
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configWatchPath is the file or directory the server watches for reloads
func configWatchPath(c *cli.Context, cfg *config.Config) string {
	if p := c.String("config"); p != "" {
		return p
	}
	return cfg.Search.Root
}

func newPrinter(c *cli.Context, w io.Writer, root string) (*display.Printer, error) {
	mode, err := display.ParseColorMode(c.String("color"))
	if err != nil {
		return nil, err
	}
	return display.NewPrinter(w, display.Options{Color: mode, Verbose: c.Bool("verbose"), Root: root}), nil
}

// loadEnvFiles applies .env style files without overriding variables that
// are already set. A missing default .env is not an error.
func loadEnvFiles(c *cli.Context) error {
	files := c.StringSlice("env-file")
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

func queryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "type",
			Aliases: []string{"t"},
			Usage:   "Kind of the positional queries: phone, email, name or generic",
			Value:   "generic",
		},
		&cli.StringSliceFlag{
			Name:  "phone",
			Usage: "Phone number to search for (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "email",
			Usage: "Email address to search for (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "name",
			Usage: "Person name to search for (repeatable)",
		},
		&cli.StringFlag{
			Name:    "path",
			Aliases: []string{"p"},
			Usage:   "File or directory to search, relative to the root",
			Value:   ".",
		},
		&cli.IntFlag{
			Name:    "context",
			Aliases: []string{"C"},
			Usage:   "Context lines around each match (default from config)",
			Value:   -1,
		},
		&cli.BoolFlag{
			Name:  "no-fold",
			Usage: "Print long matched lines in full",
		},
		&cli.StringSliceFlag{
			Name:    "include",
			Aliases: []string{"g"},
			Usage:   "Only search files matching glob (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "exclude",
			Usage: "Skip files matching glob (repeatable)",
		},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                   "idgrep",
		Usage:                  "Search files for identifiers in all their common spellings",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (.kdl or .toml); default is .idgrep.kdl in the root",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Search root directory (overrides config)",
			},
			&cli.StringFlag{
				Name:  "rg",
				Usage: "ripgrep binary (overrides config)",
			},
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "Server address, host:port or unix:/path (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "Load environment variables from file (default .env when present)",
			},
			&cli.StringFlag{
				Name:  "color",
				Usage: "Color output: auto, always or never",
				Value: "auto",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Write debug logs to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "search",
				Aliases:   []string{"s"},
				Usage:     "Search for identifiers and print matching lines",
				ArgsUsage: "QUERY...",
				Flags: append(queryFlags(),
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Print the NDJSON event stream",
					},
					&cli.BoolFlag{
						Name:    "remote",
						Aliases: []string{"R"},
						Usage:   "Search through a running server instead of in process",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print the ripgrep command and variations first",
					},
				),
				Action: searchCommand,
			},
			{
				Name:      "preview",
				Usage:     "Print the ripgrep command a search would run",
				ArgsUsage: "QUERY...",
				Flags: append(queryFlags(),
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
				),
				Action: previewCommand,
			},
			{
				Name:      "expand",
				Usage:     "List the spellings generated for one identifier",
				ArgsUsage: "QUERY",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "type",
						Aliases: []string{"t"},
						Usage:   "Identifier kind: phone, email, name or generic",
						Value:   "generic",
					},
				},
				Action: expandCommand,
			},
			{
				Name:      "pathinfo",
				Usage:     "Report the size of a search path and the expected search time",
				ArgsUsage: "[PATH]",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "include", Aliases: []string{"g"}, Usage: "Only count files matching glob"},
					&cli.StringSliceFlag{Name: "exclude", Usage: "Skip files matching glob"},
					&cli.BoolFlag{Name: "gitignore", Usage: "Skip files ignored by the root .gitignore"},
					&cli.BoolFlag{Name: "json", Aliases: []string{"j"}, Usage: "Output as JSON"},
				},
				Action: pathInfoCommand,
			},
			{
				Name:  "server",
				Usage: "Serve searches over HTTP",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Reload configuration when it changes",
						Value: true,
					},
					&cli.BoolFlag{
						Name:  "mcp",
						Usage: "Also serve MCP over streamable HTTP at /mcp",
					},
				},
				Action: serverCommand,
			},
			{
				Name:   "shutdown",
				Usage:  "Stop a running server",
				Action: shutdownCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: mcpCommand,
			},
		},
		Before: func(c *cli.Context) error {
			if err := loadEnvFiles(c); err != nil {
				return err
			}
			if c.Bool("debug") {
				debug.EnableDebug = "true"
				debug.SetDebugOutput(c.App.ErrWriter)
			}
			if c.Args().First() == "mcp" {
				debug.SetMCPMode(true)
			}
			return nil
		},
	}
}

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode follows grep: 1 for no match, 2 for errors
func exitCode(err error) int {
	if errors.Is(err, errNoMatches) {
		return 1
	}
	return 2
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func mcpCommand(c *cli.Context) error {
	debug.SetMCPMode(true)

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return debug.Fatal("failed to load config: %v\n", err)
	}

	mcpServer, err := mcp.NewServer(cfg, nil)
	if err != nil {
		return debug.Fatal("failed to create MCP server: %v\n", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		debug.LogMCP("Starting MCP server with stdio transport...\n")
		errChan <- mcpServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		_ = mcpServer.Shutdown(context.Background())
		if err != nil && !errors.Is(err, context.Canceled) {
			return debug.Fatal("MCP server error: %v\n", err)
		}
		return nil
	case <-ctx.Done():
		debug.LogMCP("Received signal, shutting down gracefully...\n")

		shutdownTimer := time.NewTimer(2 * time.Second)
		defer shutdownTimer.Stop()

		select {
		case <-errChan:
			debug.LogMCP("Server shutdown completed\n")
		case <-shutdownTimer.C:
			debug.LogMCP("Graceful shutdown timeout, closing stdin\n")
			os.Stdin.Close()
		}
		return mcpServer.Shutdown(context.Background())
	}
}
