// Package commands implements the oxobuilder command line.
package commands

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/oxobuilder/internal/config"
)

// Global carries state shared by subcommands.
type Global struct {
	Out io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI is the root command.
type CLI struct {
	Config      string           `short:"c" help:"Configuration file path" default:"oxo.yaml" env:"OXO_CONFIG"`
	Verbose     bool             `short:"v" help:"Enable verbose logging"`
	LogLevel    string           `name:"log-level" help:"Log level (debug, info, warn, error)" default:"info" env:"OXO_LOG_LEVEL"`
	MetricsAddr string           `name:"metrics-addr" help:"Serve Prometheus metrics on this address (overrides metrics.address)"`
	Version     kong.VersionFlag `name:"version" help:"Show version and exit"`

	Shell      ShellCmd   `cmd:"" default:"1" help:"Open the interactive terminal"`
	Run        RunCmd     `cmd:"" help:"Run one command and wait for any build it starts"`
	Init       InitCmd    `cmd:"" help:"Write a default configuration file"`
	History    HistoryCmd `cmd:"" help:"List recent build jobs"`
	VersionCmd VersionCmd `cmd:"" name:"version" help:"Print version information"`
}

// AfterApply sets up logging once flags are parsed.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.level()})))
	return nil
}

func (c *CLI) level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadConfig reads the configured file, falling back to defaults when it
// does not exist, and applies flag overrides.
func (c *CLI) loadConfig() (*config.Config, bool, error) {
	cfg, found, err := config.LoadOrDefault(c.Config)
	if err != nil {
		return nil, false, err
	}
	if c.MetricsAddr != "" {
		cfg.Metrics.Address = c.MetricsAddr
	}
	if !found {
		slog.Debug("No configuration file; using defaults", slog.String("path", c.Config))
	}
	return cfg, found, nil
}
