// Repricer CLI - marketplace repricing decision engine
//
// Usage:
//   repricer evaluate --config strategies.json --context product.json
//   repricer simulate --config strategies.json --contexts products.json
//   repricer serve
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"repricer/api"
	"repricer/decision/repricer"
	"repricer/internal/config"
	"repricer/internal/models"
	papi "repricer/pkg/api"
	"repricer/pkg/platform"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "repricer",
		Usage:   "Marketplace repricing decision engine",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"REPRICER_LOG_LEVEL"},
			},
		},

		Commands: []*cli.Command{
			evaluateCommand(),
			simulateCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func evaluateCommand() *cli.Command {
	return &cli.Command{
		Name:  "evaluate",
		Usage: "Evaluate pricing for a single product context",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to strategy configuration JSON",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "context",
				Usage:    "Path to pricing context JSON",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "tenant",
				Value: "default",
				Usage: "Tenant ID",
			},
			&cli.StringFlag{
				Name:  "strategy",
				Usage: "Strategy ID (defaults to the tenant's default strategy)",
			},
		},
		Action: runEvaluate,
	}
}

func runEvaluate(c *cli.Context) error {
	engine, err := fileEngine(c)
	if err != nil {
		return err
	}

	var pc papi.PricingContext
	if err := readJSON(c.String("context"), &pc); err != nil {
		return err
	}

	result, err := engine.Evaluate(context.Background(), c.String("tenant"), &pc, c.String("strategy"))
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	return printJSON(result)
}

func simulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "Dry-run pricing for a batch of product contexts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to strategy configuration JSON",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "contexts",
				Usage:    "Path to a JSON array of pricing contexts",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "tenant",
				Value: "default",
				Usage: "Tenant ID",
			},
			&cli.StringFlag{
				Name:  "strategy",
				Usage: "Strategy ID (defaults to the tenant's default strategy)",
			},
		},
		Action: runSimulate,
	}
}

func runSimulate(c *cli.Context) error {
	engine, err := fileEngine(c)
	if err != nil {
		return err
	}

	var contexts []*papi.PricingContext
	if err := readJSON(c.String("contexts"), &contexts); err != nil {
		return err
	}

	results, err := engine.Simulate(context.Background(), c.String("tenant"), contexts, c.String("strategy"))
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}
	return printJSON(results)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the API server against a configuration file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to strategy configuration JSON",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "port",
				Value: 8080,
				Usage: "Listen port",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	engine, err := fileEngine(c)
	if err != nil {
		return err
	}
	log := platform.NewLogger(c.String("log-level"))

	cfg := api.DefaultConfig()
	cfg.Port = c.Int("port")

	server := api.NewServer(engine, nil, cfg, log)
	return server.StartWithGracefulShutdown()
}

// fileEngine wires an engine over a configuration file: local artifact
// fetching, no audit sinks.
func fileEngine(c *cli.Context) (*repricer.Engine, error) {
	log := platform.NewLogger(c.String("log-level"))

	loader := &config.FileLoader{Path: c.String("config")}
	configCache := config.NewCache(loader, log)
	modelCache := models.NewCache(configCache, models.FileFetcher{}, log)

	return repricer.NewEngine(configCache, modelCache, log, repricer.DefaultOptions()), nil
}

func readJSON(path string, v any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
