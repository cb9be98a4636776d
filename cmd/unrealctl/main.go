package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/posener/complete"
	"github.com/willabides/kongplete"

	"github.com/fischp/unreal-engine-mcp/internal/config"
	"github.com/fischp/unreal-engine-mcp/internal/logging"
)

var version = "dev"

// Output destinations. Tests replace them.
var (
	output    io.Writer = os.Stdout
	errOutput io.Writer = os.Stderr
)

type Globals struct {
	Config string `help:"TOML config file." type:"path" env:"UNREALCTL_CONFIG" placeholder:"FILE" predictor:"toml"`
	Host   string `help:"Bridge host. Overrides the config file."`
	Port   int    `help:"Bridge port. Overrides the config file."`
}

type CLI struct {
	Globals

	Call    CallCmd    `cmd:"" help:"Send one command to the bridge and print the reply"`
	Check   CheckCmd   `cmd:"" help:"Check that the bridge accepts connections"`
	Mock    MockCmd    `cmd:"" help:"Run a mock bridge for local testing"`
	Version VersionCmd `cmd:"" help:"Show version"`

	InstallCompletions kongplete.InstallCompletions `cmd:"" help:"Install shell completions"`
}

// load resolves the effective config and installs the logger.
func (g *Globals) load() (config.Config, error) {
	cfg := config.Default()
	if strings.TrimSpace(g.Config) != "" {
		loaded, err := config.Load(g.Config)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if g.Host != "" {
		cfg.Host = g.Host
	}
	if g.Port != 0 {
		cfg.Port = g.Port
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	logging.ConfigureWith(cfg.LoggingConfig())
	return cfg, nil
}

func main() {
	os.Exit(run())
}

func run() int {
	cli := CLI{}
	parser := kong.Must(&cli,
		kong.Name("unrealctl"),
		kong.Description("Command-line client for the Unreal editor bridge"),
		kong.UsageOnError(),
	)
	kongplete.Complete(parser,
		kongplete.WithPredictor("kind", newKindPredictor()),
		kongplete.WithPredictor("yaml", complete.PredictFiles("*.y*ml")),
		kongplete.WithPredictor("toml", complete.PredictFiles("*.toml")),
	)
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	defer logging.Close()

	return exitCode(ctx.Run(&cli.Globals))
}

func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Message != "" {
			fmt.Fprintf(errOutput, "Error: %s\n", exitErr.Message)
		}
		return exitErr.Code
	}
	fmt.Fprintf(errOutput, "Error: %v\n", err)
	return exitError
}
