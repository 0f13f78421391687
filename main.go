// Command rpslobby starts the rock/paper/scissors lobby server.
//
// It supports these commands:
//  1. "serve" (default) runs the TCP game port plus the HTTP server exposing
//     the REST API, the WebSocket player and spectator endpoints and /mcp
//  2. "mcp" runs an MCP stdio server and spins up an internal HTTP API if
//     none is available
//  3. "validate" checks a config file and prints every problem found
//  4. "version" prints the version
//
// Settings come from built-in defaults, then an optional config file, then
// environment variables (a .env file is loaded first), then flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wricardo/mcp-training/rpslobby/game/config"
	"github.com/wricardo/mcp-training/rpslobby/logging"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Rock Paper Scissors Lobby Server"
)

// main loads .env and runs the command tree.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// newCommand builds the CLI. Flags on the root apply to every subcommand.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "rpslobby",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file (.json, .yaml or .yml)",
				Sources: cli.EnvVars("RPS_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "tcp-addr",
				Usage:   "TCP game port address",
				Sources: cli.EnvVars("RPS_TCP_ADDR"),
			},
			&cli.StringFlag{
				Name:    "http-addr",
				Usage:   "HTTP server address",
				Sources: cli.EnvVars("RPS_HTTP_ADDR"),
			},
			&cli.StringFlag{
				Name:    "host",
				Usage:   "public host advertised in join URLs",
				Sources: cli.EnvVars("RPS_HOST"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Sources: cli.EnvVars("RPS_LOG_LEVEL", "LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "json or console",
				Sources: cli.EnvVars("RPS_LOG_FORMAT"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "shorthand for --log-level=debug --log-format=console",
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "expose the HTTP server through an ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "custom ngrok domain",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the TCP game port and the HTTP server (default)",
				Action: runServe,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "run an MCP stdio server backed by the REST API",
				Action:  runStdioMCP,
			},
			{
				Name:      "validate",
				Usage:     "validate a config file",
				ArgsUsage: "[file]",
				Action:    runValidate,
			},
			{
				Name:  "version",
				Usage: "print the version",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Fprintf(cmd.Root().Writer, "%s v%s\n", AppName, Version)
					return nil
				},
			},
		},
	}
}

// loadConfig layers the config file and any set flags or environment
// variables over the defaults.
func loadConfig(cmd *cli.Command) (*config.Manager, error) {
	manager, err := config.NewManager(nil)
	if err != nil {
		return nil, err
	}

	if path := cmd.String("config"); path != "" {
		if _, err := manager.Load(path); err != nil {
			return nil, err
		}
	}

	err = manager.Update(func(c *config.Config) {
		if cmd.IsSet("tcp-addr") {
			c.TCPAddr = cmd.String("tcp-addr")
		}
		if cmd.IsSet("http-addr") {
			c.HTTPAddr = cmd.String("http-addr")
		}
		if cmd.IsSet("host") {
			c.Host = cmd.String("host")
		}
		if cmd.Bool("debug") {
			c.LogLevel = "debug"
			c.LogFormat = logging.FormatConsole
		}
		if cmd.IsSet("log-level") {
			c.LogLevel = cmd.String("log-level")
		}
		if cmd.IsSet("log-format") {
			c.LogFormat = cmd.String("log-format")
		}
		if cmd.IsSet("ngrok") {
			c.Ngrok.Enabled = cmd.Bool("ngrok")
		}
		if cmd.IsSet("ngrok-auth") {
			c.Ngrok.AuthToken = cmd.String("ngrok-auth")
		}
		if cmd.IsSet("ngrok-domain") {
			c.Ngrok.Domain = cmd.String("ngrok-domain")
		}
	})
	if err != nil {
		return nil, err
	}
	return manager, nil
}

// newLogger builds the process logger. output is "stdout" unless stdout is
// reserved for a protocol.
func newLogger(cfg config.Config, output string) (*zap.Logger, error) {
	return logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		Development: cfg.LogFormat == logging.FormatConsole,
		Output:      output,
	})
}

// runServe is the default action.
func runServe(ctx context.Context, cmd *cli.Command) error {
	manager, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg := manager.Get()

	log, err := newLogger(cfg, "stdout")
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting",
		zap.String("app", AppName),
		zap.String("version", Version),
		zap.String("config", manager.Path()))

	return newServerState(cfg, log).run(ctx)
}

// runStdioMCP serves MCP over stdio. Logs go to stderr.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	manager, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg := manager.Get()

	log, err := newLogger(cfg, "stderr")
	if err != nil {
		return err
	}
	defer log.Sync()

	return serveStdioMCP(ctx, cfg, log)
}

// runValidate checks the file given as argument, or --config.
func runValidate(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		path = cmd.String("config")
	}
	if path == "" {
		return cli.Exit("validate: no config file given", 2)
	}

	result := config.ValidateFile(path)
	fmt.Fprintln(cmd.Root().Writer, result.Summary())
	if !result.Valid {
		return cli.Exit("", 1)
	}
	return nil
}
