// Package command defines taskpad's command line.
package command

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/taskpad/internal/config"
)

// Transport selects how the MCP server is exposed.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
)

// Deps are the actions behind each command. Tests swap them out.
type Deps struct {
	LoadConfig func(path string) (config.Config, error)
	Serve      func(ctx context.Context, cfg config.Config, transport Transport) error
	Migrate    func(ctx context.Context, cfg config.Config) error
	Version    string
	Stdout     io.Writer
}

func BuildApp(deps Deps) *cli.App {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to a .yaml or .toml config file",
		EnvVars: []string{"TASKPAD_CONFIG"},
	}
	serveStdio := func(ctx *cli.Context) error {
		cfg, err := loadConfig(deps, ctx)
		if err != nil {
			return err
		}
		return deps.Serve(ctx.Context, cfg, TransportStdio)
	}

	return &cli.App{
		Name:    "taskpad",
		Usage:   "task trees, scratchpads and subagent runs over MCP",
		Version: deps.Version,
		Writer:  stdout(deps),
		Flags:   []cli.Flag{configFlag},
		Action:  serveStdio,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the MCP server on stdio",
				Action: serveStdio,
			},
			{
				Name:  "serve-http",
				Usage: "start the MCP server over streamable HTTP",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "listen address (overrides http_addr)",
						EnvVars: []string{"TASKPAD_HTTP_ADDR"},
					},
				},
				Action: func(ctx *cli.Context) error {
					cfg, err := loadConfig(deps, ctx)
					if err != nil {
						return err
					}
					if addr := ctx.String("addr"); addr != "" {
						cfg.HTTPAddr = addr
					}
					return deps.Serve(ctx.Context, cfg, TransportHTTP)
				},
			},
			{
				Name:  "migrate",
				Usage: "create or update the database schema",
				Action: func(ctx *cli.Context) error {
					cfg, err := loadConfig(deps, ctx)
					if err != nil {
						return err
					}
					return deps.Migrate(ctx.Context, cfg)
				},
			},
			{
				Name:  "config",
				Usage: "print the effective configuration as YAML",
				Action: func(ctx *cli.Context) error {
					cfg, err := loadConfig(deps, ctx)
					if err != nil {
						return err
					}
					enc := yaml.NewEncoder(stdout(deps))
					enc.SetIndent(2)
					if err := enc.Encode(cfg); err != nil {
						return fmt.Errorf("encode config: %w", err)
					}
					return enc.Close()
				},
			},
		},
	}
}

func loadConfig(deps Deps, ctx *cli.Context) (config.Config, error) {
	load := deps.LoadConfig
	if load == nil {
		load = config.Load
	}
	return load(ctx.String("config"))
}

func stdout(deps Deps) io.Writer {
	if deps.Stdout != nil {
		return deps.Stdout
	}
	return os.Stdout
}
